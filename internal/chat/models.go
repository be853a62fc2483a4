package chat

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ConversationStatus string

const (
	StatusActive   ConversationStatus = "ACTIVE"
	StatusArchived ConversationStatus = "ARCHIVED"
	StatusBlocked  ConversationStatus = "BLOCKED"
)

type MessageType string

const (
	TypeText      MessageType = "TEXT"
	TypeImage     MessageType = "IMAGE"
	TypeVideo     MessageType = "VIDEO"
	TypeAudio     MessageType = "AUDIO"
	TypeFile      MessageType = "FILE"
	TypeCallEvent MessageType = "CALL_EVENT"
)

func (t MessageType) Valid() bool {
	switch t {
	case TypeText, TypeImage, TypeVideo, TypeAudio, TypeFile, TypeCallEvent:
		return true
	}
	return false
}

type DeliveryStatus string

const (
	DeliverySent      DeliveryStatus = "SENT"
	DeliveryDelivered DeliveryStatus = "DELIVERED"
	DeliveryRead      DeliveryStatus = "READ"
)

// Conversation binds exactly two distinct users. PairKey is the
// lexicographically ordered "a:b" of the two IDs, so the unique index holds
// regardless of which side initiated.
type Conversation struct {
	ID            string `gorm:"primaryKey"`
	InitiatorID   string `gorm:"not null;index"`
	ReceiverID    string `gorm:"not null;index"`
	PairKey       string `gorm:"uniqueIndex;not null"`
	LastMessageID *string
	Status        ConversationStatus `gorm:"default:ACTIVE"`
	CreatedAt     time.Time
	UpdatedAt     time.Time `gorm:"index"`
}

func (c *Conversation) BeforeCreate(tx *gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	if c.PairKey == "" {
		c.PairKey = PairKey(c.InitiatorID, c.ReceiverID)
	}
	if c.Status == "" {
		c.Status = StatusActive
	}
	return nil
}

func (c *Conversation) HasParticipant(userID string) bool {
	return c.InitiatorID == userID || c.ReceiverID == userID
}

// OtherParticipant returns the participant that is not userID.
func (c *Conversation) OtherParticipant(userID string) string {
	if c.InitiatorID == userID {
		return c.ReceiverID
	}
	return c.InitiatorID
}

// PairKey builds the canonical unordered-pair key for two user IDs.
func PairKey(a, b string) string {
	if a < b {
		return a + ":" + b
	}
	return b + ":" + a
}

// Message is immutable once created; CreatedAt is the sole ordering key
// within a conversation.
type Message struct {
	ID             string      `gorm:"primaryKey"`
	ConversationID string      `gorm:"not null;index:idx_messages_conversation_created"`
	SenderID       string      `gorm:"not null"`
	Type           MessageType `gorm:"default:TEXT"`
	Content        string
	FileID         string
	CreatedAt      time.Time `gorm:"index:idx_messages_conversation_created"`
}

func (m *Message) BeforeCreate(tx *gorm.DB) error {
	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	if m.Type == "" {
		m.Type = TypeText
	}
	return nil
}

// MessageStatus is the per-(message, recipient) delivery record. The
// conversation ID is denormalized here so unread counting never joins
// through the messages table.
type MessageStatus struct {
	ID             string         `gorm:"primaryKey"`
	MessageID      string         `gorm:"not null;uniqueIndex:idx_message_statuses_message_user"`
	UserID         string         `gorm:"not null;uniqueIndex:idx_message_statuses_message_user;index:idx_message_statuses_user_conversation"`
	ConversationID string         `gorm:"not null;index:idx_message_statuses_user_conversation"`
	Status         DeliveryStatus `gorm:"default:SENT"`
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func (s *MessageStatus) BeforeCreate(tx *gorm.DB) error {
	if s.ID == "" {
		s.ID = uuid.New().String()
	}
	if s.Status == "" {
		s.Status = DeliverySent
	}
	return nil
}
