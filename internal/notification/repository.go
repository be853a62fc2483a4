package notification

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"messenger/infrastructure"
)

type Repository interface {
	Create(ctx context.Context, n *Notification) error
	Link(ctx context.Context, link *UserNotification) error
	MarkRead(ctx context.Context, userID, notificationID string) (int64, error)
	UnreadForUser(ctx context.Context, userID string, limit int) ([]Notification, error)
}

type GormRepository struct {
	db *gorm.DB
}

func NewGormRepository(db *gorm.DB) *GormRepository {
	return &GormRepository{db: db}
}

func (r *GormRepository) Create(ctx context.Context, n *Notification) error {
	if err := r.db.WithContext(ctx).Create(n).Error; err != nil {
		return fmt.Errorf("create notification: %w", err)
	}
	return nil
}

func (r *GormRepository) Link(ctx context.Context, link *UserNotification) error {
	err := r.db.WithContext(ctx).Create(link).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return infrastructure.ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("link notification: %w", err)
	}
	return nil
}

func (r *GormRepository) MarkRead(ctx context.Context, userID, notificationID string) (int64, error) {
	res := r.db.WithContext(ctx).Model(&UserNotification{}).
		Where("user_id = ? AND notification_id = ?", userID, notificationID).
		Update("read", true)
	if res.Error != nil {
		return 0, fmt.Errorf("mark notification read: %w", res.Error)
	}
	return res.RowsAffected, nil
}

// UnreadForUser returns the newest unread notifications for replay after a
// reconnect.
func (r *GormRepository) UnreadForUser(ctx context.Context, userID string, limit int) ([]Notification, error) {
	var out []Notification
	err := r.db.WithContext(ctx).
		Joins("JOIN user_notifications ON user_notifications.notification_id = notifications.id").
		Where("user_notifications.user_id = ? AND user_notifications.read = ?", userID, false).
		Order("notifications.created_at DESC").
		Limit(limit).
		Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("load unread notifications: %w", err)
	}
	return out, nil
}
