package user

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"messenger/infrastructure"
)

// Directory is the narrow view of the user store this subsystem consumes:
// target validation, payload enrichment, and activity stamping.
type Directory interface {
	Exists(ctx context.Context, id string) (bool, error)
	Profile(ctx context.Context, id string) (*Profile, error)
	Profiles(ctx context.Context, ids []string) (map[string]Profile, error)
	AllIDs(ctx context.Context) ([]string, error)
	IDsByRole(ctx context.Context, roles ...string) ([]string, error)
	TouchLastActive(ctx context.Context, id string) error
}

type GormDirectory struct {
	db *gorm.DB
}

func NewGormDirectory(db *gorm.DB) *GormDirectory {
	return &GormDirectory{db: db}
}

func (d *GormDirectory) Exists(ctx context.Context, id string) (bool, error) {
	var count int64
	err := d.db.WithContext(ctx).Model(&User{}).Where("id = ?", id).Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("count user %s: %w", id, err)
	}
	return count > 0, nil
}

func (d *GormDirectory) Profile(ctx context.Context, id string) (*Profile, error) {
	var u User
	err := d.db.WithContext(ctx).First(&u, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, infrastructure.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load user %s: %w", id, err)
	}
	p := toProfile(u)
	return &p, nil
}

func (d *GormDirectory) Profiles(ctx context.Context, ids []string) (map[string]Profile, error) {
	if len(ids) == 0 {
		return map[string]Profile{}, nil
	}
	var users []User
	err := d.db.WithContext(ctx).Where("id IN ?", ids).Find(&users).Error
	if err != nil {
		return nil, fmt.Errorf("load users: %w", err)
	}
	out := make(map[string]Profile, len(users))
	for _, u := range users {
		out[u.ID] = toProfile(u)
	}
	return out, nil
}

func (d *GormDirectory) AllIDs(ctx context.Context) ([]string, error) {
	var ids []string
	err := d.db.WithContext(ctx).Model(&User{}).Pluck("id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("list user ids: %w", err)
	}
	return ids, nil
}

func (d *GormDirectory) IDsByRole(ctx context.Context, roles ...string) ([]string, error) {
	var ids []string
	err := d.db.WithContext(ctx).Model(&User{}).Where("role IN ?", roles).Pluck("id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("list user ids by role: %w", err)
	}
	return ids, nil
}

func (d *GormDirectory) TouchLastActive(ctx context.Context, id string) error {
	return d.db.WithContext(ctx).Model(&User{}).
		Where("id = ?", id).
		Update("last_active_at", time.Now()).Error
}

func toProfile(u User) Profile {
	return Profile{
		ID:           u.ID,
		Name:         u.Name,
		Email:        u.Email,
		AvatarFileID: u.AvatarFileID,
	}
}
