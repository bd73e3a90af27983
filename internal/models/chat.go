package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Conversation is a container for an ordered sequence of messages between a
// fixed member set. Created only by the resolver or the anonymous matchmaker.
type Conversation struct {
	ID        string    `gorm:"primaryKey;type:text" json:"id"`
	CreatedAt time.Time `json:"createdAt"`
	// Bumped on every send; drives inbox ordering.
	UpdatedAt time.Time `json:"updatedAt"`

	// Immutable after creation.
	IsAnonymousChat bool `gorm:"default:false" json:"isAnonymousChat"`
	IsHidden        bool `gorm:"default:false" json:"isHidden"`

	Members  []ConversationMember `gorm:"foreignKey:ConversationID" json:"members,omitempty"`
	Messages []Message            `gorm:"foreignKey:ConversationID" json:"-"`
}

func (c *Conversation) BeforeCreate(tx *gorm.DB) (err error) {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	return
}

// MemberIDs returns the user ids of the loaded member rows.
func (c *Conversation) MemberIDs() []string {
	ids := make([]string, 0, len(c.Members))
	for _, m := range c.Members {
		ids = append(ids, m.UserID)
	}
	return ids
}

// ConversationMember tracks one user's state inside one conversation.
// Invariant: UnreadMessageCount equals the number of messages in the
// conversation from other senders created strictly after LastReadMessage
// (all of them when LastReadMessage is unset).
type ConversationMember struct {
	ConversationID string    `gorm:"primaryKey;type:text" json:"conversationId"`
	UserID         string    `gorm:"primaryKey;type:text" json:"userId"`
	CreatedAt      time.Time `json:"createdAt"`

	IsAdmin           bool `gorm:"default:false" json:"isAdmin"`
	IsCurrentlyInChat bool `gorm:"default:false" json:"isCurrentlyInChat"`

	// Weak reference; the message may be gone after conversation cleanup.
	LastReadMessageID  *string `json:"lastReadMessageId"`
	UnreadMessageCount int     `gorm:"default:0" json:"unreadMessageCount"`

	User *User `gorm:"foreignKey:UserID" json:"user,omitempty"`
}

// Message is immutable after creation except for soft deletion.
type Message struct {
	ID        string         `gorm:"primaryKey;type:text" json:"id"`
	CreatedAt time.Time      `gorm:"index" json:"createdAt"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	ConversationID string `gorm:"index;type:text;not null" json:"conversationId"`
	SenderID       string `gorm:"index;type:text;not null" json:"senderId"`

	// Nullable when the message carries only attachments.
	Content *string `gorm:"type:text" json:"content"`

	// Denormalized from the owning conversation at creation, never updated.
	// The conversation flag stays the source of truth.
	IsAnonymousChat bool `gorm:"default:false" json:"isAnonymousChat"`

	Attachments []MessageAttachment `gorm:"foreignKey:MessageID" json:"attachments,omitempty"`

	Sender *User `gorm:"foreignKey:SenderID" json:"sender,omitempty"`
}

func (m *Message) BeforeCreate(tx *gorm.DB) (err error) {
	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	return
}

// MessageAttachment links a message to an uploaded file.
type MessageAttachment struct {
	MessageID string    `gorm:"primaryKey;type:text" json:"messageId"`
	FileID    string    `gorm:"primaryKey;type:text" json:"fileId"`
	CreatedAt time.Time `json:"createdAt"`

	File *File `gorm:"foreignKey:FileID" json:"file,omitempty"`
}
