package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type NotificationType string

const (
	NotificationTypeNewMessage     NotificationType = "NEW_MESSAGE"
	NotificationTypeAnonymousMatch NotificationType = "ANONYMOUS_MATCH"
	NotificationTypeSystem         NotificationType = "SYSTEM"
)

// Notification is the persisted trace of a push dispatch so clients that
// missed the push can still list it.
type Notification struct {
	ID        string    `gorm:"primaryKey;type:text" json:"id"`
	CreatedAt time.Time `json:"createdAt"`

	UserID  string           `gorm:"index;type:text;not null" json:"userId"`
	Type    NotificationType `gorm:"type:text;not null" json:"type"`
	Title   string           `json:"title"`
	Message string           `json:"message"`
	IsRead  bool             `gorm:"default:false" json:"isRead"`

	// Free-form payload forwarded to the client (conversation id etc.)
	Data string `gorm:"type:text;default:'{}'" json:"data"`
}

func (n *Notification) BeforeCreate(tx *gorm.DB) (err error) {
	if n.ID == "" {
		n.ID = uuid.New().String()
	}
	return
}
