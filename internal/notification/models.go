package notification

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Notification is stored once per event; fan-out to recipients happens via
// UserNotification link rows.
type Notification struct {
	ID        string `gorm:"primaryKey"`
	Type      string `gorm:"not null"`
	Title     string
	Message   string
	Meta      json.RawMessage `gorm:"type:jsonb"`
	CreatedAt time.Time
}

func (n *Notification) BeforeCreate(tx *gorm.DB) error {
	if n.ID == "" {
		n.ID = uuid.New().String()
	}
	return nil
}

// UserNotification links one recipient to one notification and carries the
// per-recipient read flag.
type UserNotification struct {
	ID             string `gorm:"primaryKey"`
	UserID         string `gorm:"not null;uniqueIndex:idx_user_notifications_user_notification"`
	NotificationID string `gorm:"not null;uniqueIndex:idx_user_notifications_user_notification"`
	Read           bool   `gorm:"default:false;index"`
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func (n *UserNotification) BeforeCreate(tx *gorm.DB) error {
	if n.ID == "" {
		n.ID = uuid.New().String()
	}
	return nil
}
