package model

import "time"

const (
	RoleChatUser      = "user"
	RoleChatAssistant = "assistant"
)

// ChatMessage is immutable once appended. Insertion order is the primary key order.
type ChatMessage struct {
	ID        uint      `gorm:"primaryKey" json:"-"`
	SessionID uint      `gorm:"not null;index" json:"-"`
	Role      string    `gorm:"size:16;not null" json:"role"`
	Content   string    `gorm:"type:text;not null" json:"content"`
	Metadata  Metadata  `gorm:"type:text" json:"metadata"`
	Timestamp time.Time `gorm:"not null" json:"timestamp"`
}

func (ChatMessage) TableName() string { return "chat_messages" }
