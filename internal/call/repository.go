package call

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"messenger/infrastructure"
)

// Repository is the call store. Find surfaces absent calls as
// ErrNotFoundOrUnauthorized so handlers never distinguish missing from
// foreign records.
type Repository interface {
	Create(ctx context.Context, call *Call) error
	Find(ctx context.Context, callID string) (*Call, error)
	UpdateStatus(ctx context.Context, callID string, status CallStatus, endedAt *time.Time) error

	CreateParticipant(ctx context.Context, p *CallParticipant) error
	UpdateParticipant(ctx context.Context, callID, userID string, status ParticipantStatus, at time.Time) error
	Participants(ctx context.Context, callID string) ([]CallParticipant, error)
}

type GormRepository struct {
	db *gorm.DB
}

func NewGormRepository(db *gorm.DB) *GormRepository {
	return &GormRepository{db: db}
}

func (r *GormRepository) Create(ctx context.Context, call *Call) error {
	if err := r.db.WithContext(ctx).Create(call).Error; err != nil {
		return fmt.Errorf("create call: %w", err)
	}
	return nil
}

func (r *GormRepository) Find(ctx context.Context, callID string) (*Call, error) {
	var call Call
	err := r.db.WithContext(ctx).First(&call, "id = ?", callID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, infrastructure.ErrNotFoundOrUnauthorized
	}
	if err != nil {
		return nil, fmt.Errorf("find call %s: %w", callID, err)
	}
	return &call, nil
}

func (r *GormRepository) UpdateStatus(ctx context.Context, callID string, status CallStatus, endedAt *time.Time) error {
	updates := map[string]any{"status": status}
	if endedAt != nil {
		updates["ended_at"] = *endedAt
	}
	err := r.db.WithContext(ctx).Model(&Call{}).
		Where("id = ?", callID).
		Updates(updates).Error
	if err != nil {
		return fmt.Errorf("update call status: %w", err)
	}
	return nil
}

func (r *GormRepository) CreateParticipant(ctx context.Context, p *CallParticipant) error {
	err := r.db.WithContext(ctx).Create(p).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return infrastructure.ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("create call participant: %w", err)
	}
	return nil
}

func (r *GormRepository) UpdateParticipant(ctx context.Context, callID, userID string, status ParticipantStatus, at time.Time) error {
	updates := map[string]any{"status": status}
	switch status {
	case ParticipantJoined:
		updates["joined_at"] = at
	case ParticipantLeft:
		updates["left_at"] = at
	}
	err := r.db.WithContext(ctx).Model(&CallParticipant{}).
		Where("call_id = ? AND user_id = ?", callID, userID).
		Updates(updates).Error
	if err != nil {
		return fmt.Errorf("update call participant: %w", err)
	}
	return nil
}

func (r *GormRepository) Participants(ctx context.Context, callID string) ([]CallParticipant, error) {
	var out []CallParticipant
	err := r.db.WithContext(ctx).Where("call_id = ?", callID).Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("load call participants: %w", err)
	}
	return out, nil
}
