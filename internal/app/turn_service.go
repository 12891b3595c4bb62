package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/oklog/ulid/v2"

	"webinfinitygen/internal/ai"
	"webinfinitygen/internal/blob"
	"webinfinitygen/internal/model"
	"webinfinitygen/internal/normalize"
)

const (
	titleMaxRunes          = 50
	defaultUpstreamTimeout = 60 * time.Second
	defaultImagePrompt     = "Describe this image in detail."
	defaultFilePrompt      = "Summarize this file."
	assistantWriteTimeout  = 5 * time.Second
)

// Invoker calls the AI workflow for one prompt and returns its raw body.
type Invoker interface {
	Invoke(ctx context.Context, req ai.Request) ([]byte, error)
}

// BlobUploader stores generated payloads out of the chat document.
type BlobUploader interface {
	PutImageDataURI(ctx context.Context, dataURI, name string) (*blob.Object, error)
	PutJSON(ctx context.Context, value any, name string) (*blob.Object, error)
}

type TurnInput struct {
	ChatID   string
	OwnerID  string
	Text     string
	ChatType model.ChatType
	Image    *ai.Attachment
	File     *ai.Attachment
}

type TurnResult struct {
	ChatID        string           `json:"chatId"`
	Created       bool             `json:"created"`
	Result        normalize.Result `json:"result"`
	Metadata      model.Metadata   `json:"metadata"`
	UpstreamError string           `json:"upstreamError,omitempty"`
}

// TurnService runs one user turn: persist the prompt, call the workflow,
// normalize and persist the answer.
type TurnService struct {
	chats   *ChatService
	invoker Invoker
	blobs   BlobUploader
	timeout time.Duration
	logger  *slog.Logger
	now     func() time.Time
}

func NewTurnService(chats *ChatService, invoker Invoker, blobs BlobUploader, timeout time.Duration, logger *slog.Logger) *TurnService {
	if timeout <= 0 {
		timeout = defaultUpstreamTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &TurnService{
		chats:   chats,
		invoker: invoker,
		blobs:   blobs,
		timeout: timeout,
		logger:  logger.With("component", "turn_service"),
		now:     time.Now,
	}
}

func (s *TurnService) SubmitUserTurn(ctx context.Context, input TurnInput) (*TurnResult, error) {
	ownerID := strings.TrimSpace(input.OwnerID)
	if ownerID == "" {
		return nil, invalidf("userId is required")
	}
	chatType := input.ChatType
	if chatType == "" {
		chatType = model.ChatTypeTextToText
	}
	if !chatType.Valid() {
		return nil, invalidf("unsupported chat type %q", chatType)
	}

	input.Image = cleanAttachment(input.Image, true)
	input.File = cleanAttachment(input.File, false)
	if (input.Image != nil && input.Image.Data == "") || (input.File != nil && input.File.Data == "") {
		return nil, invalidf("attachment data is empty")
	}

	text := strings.TrimSpace(input.Text)
	if text == "" {
		switch {
		case input.Image != nil:
			text = defaultImagePrompt
		case input.File != nil:
			text = defaultFilePrompt
		default:
			return nil, invalidf("message text is required")
		}
	}

	userMeta, err := s.userMetadata(ctx, input)
	if err != nil {
		return nil, err
	}
	userMsg := MessageInput{Role: model.RoleChatUser, Content: text, Metadata: userMeta}

	chatID := strings.TrimSpace(input.ChatID)
	created := false
	if chatID == "" {
		chatID = s.newChatID()
		if _, err := s.chats.Create(ctx, CreateChatInput{
			ChatID:       chatID,
			OwnerID:      ownerID,
			Title:        deriveTitle(text),
			ChatType:     chatType,
			FirstMessage: &userMsg,
		}); err != nil {
			return nil, err
		}
		created = true
	} else if _, err := s.chats.AppendMessage(ctx, chatID, userMsg); err != nil {
		return nil, err
	}

	out := &TurnResult{ChatID: chatID, Created: created}

	raw, err := s.invoke(ctx, ai.Request{ChatType: chatType, Text: text, Image: input.Image, File: input.File})
	if err != nil {
		s.logger.Warn("upstream call failed", "chat_id", chatID, "chat_type", chatType, "error", err)
		out.UpstreamError = err.Error()
		out.Result = normalize.Result{Text: "Error: " + err.Error()}
		if appendErr := s.appendAssistant(ctx, chatID, MessageInput{Role: model.RoleChatAssistant, Content: out.Result.Text}); appendErr != nil {
			return nil, appendErr
		}
		return out, nil
	}

	mode := normalize.ModeFor(chatType)
	out.Result = normalize.Normalize(raw, mode)
	s.logger.Debug("upstream response normalized", "chat_id", chatID, "mode", mode.String(),
		"has_image", out.Result.HasImage(), "has_game", out.Result.HasGame())

	meta, err := s.persistPayload(ctx, out.Result)
	if err != nil {
		s.logger.Error("store generated payload failed", "chat_id", chatID, "error", err)
		failure := MessageInput{Role: model.RoleChatAssistant, Content: "Error: the generated content could not be stored."}
		if appendErr := s.appendAssistant(ctx, chatID, failure); appendErr != nil {
			return nil, errors.Join(err, appendErr)
		}
		return nil, err
	}
	out.Metadata = meta

	if err := s.appendAssistant(ctx, chatID, MessageInput{
		Role:     model.RoleChatAssistant,
		Content:  out.Result.Text,
		Metadata: meta,
	}); err != nil {
		return nil, err
	}
	return out, nil
}

// appendAssistant writes the reply on a context detached from the caller.
// A persisted user message must always be followed by an assistant message.
func (s *TurnService) appendAssistant(ctx context.Context, chatID string, msg MessageInput) error {
	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), assistantWriteTimeout)
	defer cancel()

	_, err := s.chats.AppendMessage(writeCtx, chatID, msg)
	return err
}

// invoke bounds the workflow call and folds every failure into an UpstreamError.
func (s *TurnService) invoke(ctx context.Context, req ai.Request) ([]byte, error) {
	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	raw, err := s.invoker.Invoke(callCtx, req)
	if err == nil {
		return raw, nil
	}
	var ue *ai.UpstreamError
	if errors.As(err, &ue) {
		return nil, ue
	}
	return nil, &ai.UpstreamError{Err: err}
}

func (s *TurnService) userMetadata(ctx context.Context, input TurnInput) (model.Metadata, error) {
	switch {
	case input.Image != nil:
		obj, err := s.blobs.PutImageDataURI(ctx, dataURI(input.Image), "")
		if err != nil {
			return model.Metadata{}, err
		}
		return model.NewMetadata(model.ImageMetadata{URL: obj.URL, ObjectName: obj.ObjectName}), nil
	case input.File != nil:
		return model.NewMetadata(model.FileMetadata{Name: input.File.Name, Type: input.File.MimeType}), nil
	default:
		return model.NewMetadata(model.TextMetadata{}), nil
	}
}

// persistPayload uploads a generated game or image and returns the metadata
// that references it. Absolute image URLs are referenced as they are.
func (s *TurnService) persistPayload(ctx context.Context, res normalize.Result) (model.Metadata, error) {
	switch {
	case res.HasGame():
		obj, err := s.blobs.PutJSON(ctx, res.GameCode, "")
		if err != nil {
			return model.Metadata{}, err
		}
		return model.NewMetadata(model.GameMetadata{URL: obj.URL, ObjectName: obj.ObjectName}), nil
	case res.HasImage():
		lower := strings.ToLower(res.Image)
		if strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://") {
			return model.NewMetadata(model.ImageMetadata{URL: res.Image}), nil
		}
		obj, err := s.blobs.PutImageDataURI(ctx, res.Image, "")
		if err != nil {
			return model.Metadata{}, err
		}
		return model.NewMetadata(model.ImageMetadata{URL: obj.URL, ObjectName: obj.ObjectName}), nil
	default:
		return model.NewMetadata(model.TextMetadata{}), nil
	}
}

func (s *TurnService) newChatID() string {
	id := ulid.Make().String()
	return fmt.Sprintf("chat_%d_%s", s.now().UnixMilli(), strings.ToLower(id[10:19]))
}

func deriveTitle(text string) string {
	text = strings.Join(strings.Fields(text), " ")
	if utf8.RuneCountInString(text) <= titleMaxRunes {
		return text
	}
	return string([]rune(text)[:titleMaxRunes]) + "..."
}

// cleanAttachment splits a data URI attachment into raw base64 and mime type.
func cleanAttachment(a *ai.Attachment, image bool) *ai.Attachment {
	if a == nil {
		return nil
	}
	out := *a
	out.Data = strings.TrimSpace(out.Data)
	if strings.HasPrefix(strings.ToLower(out.Data), "data:") {
		if header, body, ok := strings.Cut(out.Data[len("data:"):], ","); ok {
			out.Data = body
			if out.MimeType == "" {
				out.MimeType = strings.TrimSuffix(header, ";base64")
			}
		}
	}
	if image && out.MimeType == "" {
		out.MimeType = normalize.DetectBase64Mime(out.Data)
	}
	return &out
}

func dataURI(a *ai.Attachment) string {
	return "data:" + a.MimeType + ";base64," + a.Data
}
