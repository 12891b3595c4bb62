package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"webinfinitygen/internal/model"
)

// ErrDuplicate reports a unique index violation.
var ErrDuplicate = errors.New("duplicate record")

type ChatRepository struct {
	db *gorm.DB
}

func NewChatRepository(db *gorm.DB) *ChatRepository {
	return &ChatRepository{db: db}
}

// CreateSession inserts the session together with any messages it carries.
func (r *ChatRepository) CreateSession(ctx context.Context, session *model.ChatSession) error {
	if err := r.db.WithContext(ctx).Create(session).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrDuplicate
		}
		return fmt.Errorf("create chat session failed: %w", err)
	}
	return nil
}

func (r *ChatRepository) ExistsByChatID(ctx context.Context, chatID string) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&model.ChatSession{}).Where("chat_id = ?", chatID).Count(&count).Error; err != nil {
		return false, fmt.Errorf("check chat session failed: %w", err)
	}
	return count > 0, nil
}

// GetByChatID loads a session with its messages in append order.
func (r *ChatRepository) GetByChatID(ctx context.Context, chatID string) (*model.ChatSession, error) {
	return getByChatID(r.db.WithContext(ctx), chatID)
}

func getByChatID(db *gorm.DB, chatID string) (*model.ChatSession, error) {
	var session model.ChatSession
	err := db.Preload("Messages", func(tx *gorm.DB) *gorm.DB {
		return tx.Order("id ASC")
	}).Where("chat_id = ?", chatID).First(&session).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get chat session failed: %w", err)
	}
	return &session, nil
}

// AppendMessage adds msg to the session and bumps updated_at in one transaction.
// The session row update comes first so concurrent appends to one chat queue
// behind its row lock and commit in call order. Returns nil, nil when the chat
// does not exist.
func (r *ChatRepository) AppendMessage(ctx context.Context, chatID string, msg *model.ChatMessage, now time.Time) (*model.ChatSession, error) {
	var out *model.ChatSession
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&model.ChatSession{}).Where("chat_id = ?", chatID).Update("updated_at", now).Error; err != nil {
			return fmt.Errorf("touch chat session failed: %w", err)
		}

		var session model.ChatSession
		if err := tx.Select("id").Where("chat_id = ?", chatID).First(&session).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil
			}
			return fmt.Errorf("get chat session failed: %w", err)
		}

		msg.SessionID = session.ID
		if err := tx.Create(msg).Error; err != nil {
			return fmt.Errorf("append chat message failed: %w", err)
		}

		full, err := getByChatID(tx, chatID)
		if err != nil {
			return err
		}
		out = full
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// UpdateTitle renames the session. Returns nil, nil when the chat does not exist.
func (r *ChatRepository) UpdateTitle(ctx context.Context, chatID, title string, now time.Time) (*model.ChatSession, error) {
	db := r.db.WithContext(ctx)
	if err := db.Model(&model.ChatSession{}).Where("chat_id = ?", chatID).Updates(map[string]any{
		"title":      title,
		"updated_at": now,
	}).Error; err != nil {
		return nil, fmt.Errorf("update chat title failed: %w", err)
	}

	var session model.ChatSession
	if err := db.Where("chat_id = ?", chatID).First(&session).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get chat session failed: %w", err)
	}
	return &session, nil
}

// DeleteByChatID removes the session and its messages and returns what was
// deleted, or nil when the chat does not exist.
func (r *ChatRepository) DeleteByChatID(ctx context.Context, chatID string) (*model.ChatSession, error) {
	var deleted *model.ChatSession
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var session model.ChatSession
		if err := tx.Select("id", "chat_id", "owner_id").Where("chat_id = ?", chatID).First(&session).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil
			}
			return fmt.Errorf("get chat session failed: %w", err)
		}
		if err := tx.Where("session_id = ?", session.ID).Delete(&model.ChatMessage{}).Error; err != nil {
			return fmt.Errorf("delete chat messages failed: %w", err)
		}
		if err := tx.Delete(&model.ChatSession{}, session.ID).Error; err != nil {
			return fmt.Errorf("delete chat session failed: %w", err)
		}
		deleted = &session
		return nil
	})
	if err != nil {
		return nil, err
	}
	return deleted, nil
}

// ListByOwner returns one page of sessions without messages, most recently
// updated first, plus the total count for the filter.
func (r *ChatRepository) ListByOwner(ctx context.Context, ownerID string, chatType model.ChatType, offset, limit int) ([]model.ChatSession, int64, error) {
	scope := func() *gorm.DB {
		q := r.db.WithContext(ctx).Model(&model.ChatSession{}).Where("owner_id = ?", ownerID)
		if chatType != "" {
			q = q.Where("chat_type = ?", chatType)
		}
		return q
	}

	var total int64
	if err := scope().Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("count chat sessions failed: %w", err)
	}

	var sessions []model.ChatSession
	if err := scope().Order("updated_at DESC, id DESC").Offset(offset).Limit(limit).Find(&sessions).Error; err != nil {
		return nil, 0, fmt.Errorf("list chat sessions failed: %w", err)
	}
	return sessions, total, nil
}
