package app

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"webinfinitygen/internal/events"
	"webinfinitygen/internal/model"
	"webinfinitygen/internal/repository"
)

// EventPublisher receives chat lifecycle events after a mutation commits.
type EventPublisher interface {
	Publish(ctx context.Context, ev events.ChatEvent) error
}

// ChatService is the chat history store. Every read goes to the database.
type ChatService struct {
	repo      *repository.ChatRepository
	publisher EventPublisher
	logger    *slog.Logger
	now       func() time.Time
}

type MessageInput struct {
	Role     string
	Content  string
	Metadata model.Metadata
}

type CreateChatInput struct {
	ChatID       string
	OwnerID      string
	Title        string
	ChatType     model.ChatType
	FirstMessage *MessageInput
}

type ListChatsInput struct {
	OwnerID  string
	Page     int
	PageSize int
	ChatType model.ChatType
}

type ChatPage struct {
	Items      []model.ChatSessionSummary
	Pagination Pagination
}

func NewChatService(repo *repository.ChatRepository, publisher EventPublisher, logger *slog.Logger) *ChatService {
	if logger == nil {
		logger = slog.Default()
	}
	return &ChatService{
		repo:      repo,
		publisher: publisher,
		logger:    logger.With("component", "chat_service"),
		now:       time.Now,
	}
}

func (s *ChatService) Create(ctx context.Context, input CreateChatInput) (*model.ChatSession, error) {
	chatID := strings.TrimSpace(input.ChatID)
	ownerID := strings.TrimSpace(input.OwnerID)
	title := strings.TrimSpace(input.Title)
	if chatID == "" || ownerID == "" || title == "" {
		return nil, invalidf("chatId, userId and title are required")
	}

	chatType := input.ChatType
	if chatType == "" {
		chatType = model.ChatTypeTextToText
	}
	if !chatType.Valid() {
		return nil, invalidf("unsupported chat type %q", chatType)
	}

	now := s.now()
	session := &model.ChatSession{
		ChatID:    chatID,
		OwnerID:   ownerID,
		Title:     title,
		ChatType:  chatType,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if input.FirstMessage != nil {
		first := *input.FirstMessage
		if first.Role == "" {
			first.Role = model.RoleChatUser
		}
		msg, err := buildMessage(first, now)
		if err != nil {
			return nil, err
		}
		session.Messages = []model.ChatMessage{*msg}
	}

	exists, err := s.repo.ExistsByChatID(ctx, chatID)
	if err != nil {
		return nil, storageErr(err)
	}
	if exists {
		return nil, ErrChatExists
	}

	if err := s.repo.CreateSession(ctx, session); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrChatExists
		}
		// A racing create may have won without the driver reporting a
		// duplicate key.
		if exists, checkErr := s.repo.ExistsByChatID(ctx, chatID); checkErr == nil && exists {
			return nil, ErrChatExists
		}
		return nil, storageErr(err)
	}

	s.publish(ctx, events.ChatEvent{Type: events.SessionCreated, ChatID: chatID, OwnerID: ownerID, Title: title, ChatType: string(chatType), At: now})
	return session, nil
}

// AppendMessage adds one message and returns the full updated session.
func (s *ChatService) AppendMessage(ctx context.Context, chatID string, input MessageInput) (*model.ChatSession, error) {
	chatID = strings.TrimSpace(chatID)
	if chatID == "" {
		return nil, invalidf("chatId is required")
	}

	now := s.now()
	msg, err := buildMessage(input, now)
	if err != nil {
		return nil, err
	}

	session, err := s.repo.AppendMessage(ctx, chatID, msg, now)
	if err != nil {
		return nil, storageErr(err)
	}
	if session == nil {
		return nil, ErrChatNotFound
	}

	s.publish(ctx, events.ChatEvent{Type: events.SessionMessageAppended, ChatID: chatID, OwnerID: session.OwnerID, Role: msg.Role, At: now})
	return session, nil
}

func (s *ChatService) GetByID(ctx context.Context, chatID string) (*model.ChatSession, error) {
	chatID = strings.TrimSpace(chatID)
	if chatID == "" {
		return nil, invalidf("chatId is required")
	}
	session, err := s.repo.GetByChatID(ctx, chatID)
	if err != nil {
		return nil, storageErr(err)
	}
	if session == nil {
		return nil, ErrChatNotFound
	}
	return session, nil
}

func (s *ChatService) ListByOwner(ctx context.Context, input ListChatsInput) (*ChatPage, error) {
	ownerID := strings.TrimSpace(input.OwnerID)
	if ownerID == "" {
		return nil, invalidf("userId is required")
	}
	if input.ChatType != "" && !input.ChatType.Valid() {
		return nil, invalidf("unsupported chat type %q", input.ChatType)
	}

	page, pageSize, offset := normalizePage(input.Page, input.PageSize, defaultPageSize)
	sessions, total, err := s.repo.ListByOwner(ctx, ownerID, input.ChatType, offset, pageSize)
	if err != nil {
		return nil, storageErr(err)
	}

	items := make([]model.ChatSessionSummary, 0, len(sessions))
	for i := range sessions {
		items = append(items, sessions[i].Summary())
	}
	return &ChatPage{Items: items, Pagination: newPagination(page, pageSize, total)}, nil
}

func (s *ChatService) RenameTitle(ctx context.Context, chatID, title string) (*model.ChatSessionSummary, error) {
	chatID = strings.TrimSpace(chatID)
	title = strings.TrimSpace(title)
	if chatID == "" {
		return nil, invalidf("chatId is required")
	}
	if title == "" {
		return nil, invalidf("title must not be empty")
	}

	now := s.now()
	session, err := s.repo.UpdateTitle(ctx, chatID, title, now)
	if err != nil {
		return nil, storageErr(err)
	}
	if session == nil {
		return nil, ErrChatNotFound
	}

	summary := session.Summary()
	s.publish(ctx, events.ChatEvent{Type: events.SessionRenamed, ChatID: chatID, OwnerID: session.OwnerID, Title: title, At: now})
	return &summary, nil
}

// Delete removes the session. Deleting an unknown or already deleted chat
// reports ErrChatNotFound.
func (s *ChatService) Delete(ctx context.Context, chatID string) error {
	chatID = strings.TrimSpace(chatID)
	if chatID == "" {
		return invalidf("chatId is required")
	}

	session, err := s.repo.DeleteByChatID(ctx, chatID)
	if err != nil {
		return storageErr(err)
	}
	if session == nil {
		return ErrChatNotFound
	}

	s.publish(ctx, events.ChatEvent{Type: events.SessionDeleted, ChatID: chatID, OwnerID: session.OwnerID, At: s.now()})
	return nil
}

func (s *ChatService) publish(ctx context.Context, ev events.ChatEvent) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, ev); err != nil {
		s.logger.Warn("publish chat event failed", "type", ev.Type, "chat_id", ev.ChatID, "error", err)
	}
}

// buildMessage validates a message. Assistant messages may have empty content
// when they carry an image or game.
func buildMessage(input MessageInput, now time.Time) (*model.ChatMessage, error) {
	role := strings.TrimSpace(input.Role)
	if role != model.RoleChatUser && role != model.RoleChatAssistant {
		return nil, invalidf("role must be %q or %q", model.RoleChatUser, model.RoleChatAssistant)
	}

	content := input.Content
	if strings.TrimSpace(content) == "" {
		kind := input.Metadata.Kind()
		if role == model.RoleChatUser || (kind != model.KindImage && kind != model.KindGame) {
			return nil, invalidf("content is required")
		}
	}
	if err := input.Metadata.Validate(); err != nil {
		return nil, invalidf("%v", err)
	}

	return &model.ChatMessage{
		Role:      role,
		Content:   content,
		Metadata:  input.Metadata,
		Timestamp: now,
	}, nil
}
