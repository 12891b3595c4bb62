package model

import "time"

// ChatType names the kind of AI workflow a session talks to.
type ChatType string

const (
	ChatTypeTextToText           ChatType = "text-to-text"
	ChatTypeFileToText           ChatType = "file-to-text"
	ChatTypeCreateImage          ChatType = "create-image"
	ChatTypeHandleImage          ChatType = "handle-image"
	ChatTypeIncreaseResolution   ChatType = "increase-resolution"
	ChatTypeBackgroundSeparation ChatType = "background-separation"
	ChatTypeImageCompression     ChatType = "image-compression"
	ChatTypeCreateGame           ChatType = "create-game"
)

var chatTypes = map[ChatType]struct{}{
	ChatTypeTextToText:           {},
	ChatTypeFileToText:           {},
	ChatTypeCreateImage:          {},
	ChatTypeHandleImage:          {},
	ChatTypeIncreaseResolution:   {},
	ChatTypeBackgroundSeparation: {},
	ChatTypeImageCompression:     {},
	ChatTypeCreateGame:           {},
}

func (t ChatType) Valid() bool {
	_, ok := chatTypes[t]
	return ok
}

// ChatSession is one conversation thread. It owns its Messages; messages are
// never shared between sessions.
type ChatSession struct {
	ID        uint          `gorm:"primaryKey" json:"-"`
	ChatID    string        `gorm:"size:96;not null;uniqueIndex" json:"chatId"`
	OwnerID   string        `gorm:"size:64;not null;index" json:"userId"`
	Title     string        `gorm:"size:512;not null" json:"title"`
	ChatType  ChatType      `gorm:"size:32;not null;index;default:text-to-text" json:"chatType"`
	Messages  []ChatMessage `gorm:"foreignKey:SessionID;constraint:OnDelete:CASCADE" json:"messages"`
	CreatedAt time.Time     `json:"createdAt"`
	UpdatedAt time.Time     `gorm:"index" json:"updatedAt"`
}

func (ChatSession) TableName() string { return "chat_sessions" }

// ChatSessionSummary is the list/rename view of a session without message bodies.
type ChatSessionSummary struct {
	ChatID    string    `json:"chatId"`
	Title     string    `json:"title"`
	ChatType  ChatType  `json:"chatType"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (s *ChatSession) Summary() ChatSessionSummary {
	return ChatSessionSummary{
		ChatID:    s.ChatID,
		Title:     s.Title,
		ChatType:  s.ChatType,
		CreatedAt: s.CreatedAt,
		UpdatedAt: s.UpdatedAt,
	}
}
