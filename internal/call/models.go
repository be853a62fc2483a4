package call

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type CallType string

const (
	TypeAudio CallType = "AUDIO"
	TypeVideo CallType = "VIDEO"
)

func (t CallType) Valid() bool {
	return t == TypeAudio || t == TypeVideo
}

type CallStatus string

const (
	StatusInitiated CallStatus = "INITIATED"
	StatusOngoing   CallStatus = "ONGOING"
	StatusEnded     CallStatus = "ENDED"
	StatusMissed    CallStatus = "MISSED"
)

type ParticipantStatus string

const (
	ParticipantJoined ParticipantStatus = "JOINED"
	ParticipantLeft   ParticipantStatus = "LEFT"
	ParticipantMissed ParticipantStatus = "MISSED"
)

// Call is one signaling session inside a conversation. StartedAt is set at
// initiation; EndedAt only once the call reaches ENDED or MISSED.
type Call struct {
	ID             string `gorm:"primaryKey"`
	ConversationID string `gorm:"not null;index"`
	InitiatorID    string `gorm:"not null"`
	Type           CallType
	Status         CallStatus `gorm:"default:INITIATED;index"`
	StartedAt      time.Time
	EndedAt        *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func (c *Call) BeforeCreate(tx *gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	if c.Status == "" {
		c.Status = StatusInitiated
	}
	if c.StartedAt.IsZero() {
		c.StartedAt = time.Now()
	}
	return nil
}

// CallParticipant tracks one user's presence in a call.
type CallParticipant struct {
	ID        string `gorm:"primaryKey"`
	CallID    string `gorm:"not null;uniqueIndex:idx_call_participants_call_user"`
	UserID    string `gorm:"not null;uniqueIndex:idx_call_participants_call_user"`
	Status    ParticipantStatus
	JoinedAt  *time.Time
	LeftAt    *time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (p *CallParticipant) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	return nil
}
