package chat

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"messenger/infrastructure"
	"messenger/internal/user"
)

// Repository is everything the conversation and message services need from
// the store. Absent records and non-participant callers both surface as
// ErrNotFoundOrUnauthorized from the *ForUser lookups.
type Repository interface {
	FindByPair(ctx context.Context, a, b string) (*Conversation, error)
	FindForUser(ctx context.Context, conversationID, userID string) (*Conversation, error)
	Create(ctx context.Context, conv *Conversation) error
	UpdateStatus(ctx context.Context, conversationID string, status ConversationStatus) (*Conversation, error)
	Delete(ctx context.Context, conversationID string) error
	ListForUser(ctx context.Context, userID string, offset, limit int, search string) ([]Conversation, int64, error)
	SetLastMessage(ctx context.Context, conversationID, messageID string) error

	CreateMessage(ctx context.Context, msg *Message) error
	CreateMessageStatus(ctx context.Context, status *MessageStatus) error
	MessagesByIDs(ctx context.Context, ids []string) ([]Message, error)
	PageMessages(ctx context.Context, conversationID string, offset, limit int) ([]Message, int64, error)
	UnreadCounts(ctx context.Context, userID string, conversationIDs []string) (map[string]int64, error)
	MarkRead(ctx context.Context, userID, conversationID string) (int64, error)
}

type GormRepository struct {
	db *gorm.DB
}

func NewGormRepository(db *gorm.DB) *GormRepository {
	return &GormRepository{db: db}
}

// FindByPair looks the unordered pair up; (nil, nil) when absent.
func (r *GormRepository) FindByPair(ctx context.Context, a, b string) (*Conversation, error) {
	var conv Conversation
	err := r.db.WithContext(ctx).First(&conv, "pair_key = ?", PairKey(a, b)).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find conversation by pair: %w", err)
	}
	return &conv, nil
}

func (r *GormRepository) FindForUser(ctx context.Context, conversationID, userID string) (*Conversation, error) {
	var conv Conversation
	err := r.db.WithContext(ctx).
		Where("id = ? AND (initiator_id = ? OR receiver_id = ?)", conversationID, userID, userID).
		First(&conv).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, infrastructure.ErrNotFoundOrUnauthorized
	}
	if err != nil {
		return nil, fmt.Errorf("find conversation %s: %w", conversationID, err)
	}
	return &conv, nil
}

func (r *GormRepository) Create(ctx context.Context, conv *Conversation) error {
	err := r.db.WithContext(ctx).Create(conv).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return infrastructure.ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("create conversation: %w", err)
	}
	return nil
}

func (r *GormRepository) UpdateStatus(ctx context.Context, conversationID string, status ConversationStatus) (*Conversation, error) {
	err := r.db.WithContext(ctx).Model(&Conversation{}).
		Where("id = ?", conversationID).
		Update("status", status).Error
	if err != nil {
		return nil, fmt.Errorf("update conversation status: %w", err)
	}
	var conv Conversation
	if err := r.db.WithContext(ctx).First(&conv, "id = ?", conversationID).Error; err != nil {
		return nil, fmt.Errorf("reload conversation %s: %w", conversationID, err)
	}
	return &conv, nil
}

func (r *GormRepository) Delete(ctx context.Context, conversationID string) error {
	return r.db.WithContext(ctx).Delete(&Conversation{}, "id = ?", conversationID).Error
}

func (r *GormRepository) ListForUser(ctx context.Context, userID string, offset, limit int, search string) ([]Conversation, int64, error) {
	q := r.db.WithContext(ctx).Model(&Conversation{}).
		Where("initiator_id = ? OR receiver_id = ?", userID, userID)

	if search != "" {
		// Match against the other participant only; the viewer's own name
		// would otherwise match every one of their conversations.
		sub := r.db.Model(&user.User{}).Select("id").
			Where("name ILIKE ? AND id <> ?", "%"+search+"%", userID)
		q = q.Where("initiator_id IN (?) OR receiver_id IN (?)", sub, sub)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("count conversations: %w", err)
	}

	var convs []Conversation
	err := q.Order("updated_at DESC").Offset(offset).Limit(limit).Find(&convs).Error
	if err != nil {
		return nil, 0, fmt.Errorf("list conversations: %w", err)
	}
	return convs, total, nil
}

func (r *GormRepository) SetLastMessage(ctx context.Context, conversationID, messageID string) error {
	return r.db.WithContext(ctx).Model(&Conversation{}).
		Where("id = ?", conversationID).
		Updates(map[string]any{"last_message_id": messageID, "updated_at": time.Now()}).Error
}

func (r *GormRepository) CreateMessage(ctx context.Context, msg *Message) error {
	if err := r.db.WithContext(ctx).Create(msg).Error; err != nil {
		return fmt.Errorf("create message: %w", err)
	}
	return nil
}

func (r *GormRepository) CreateMessageStatus(ctx context.Context, status *MessageStatus) error {
	err := r.db.WithContext(ctx).Create(status).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return infrastructure.ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("create message status: %w", err)
	}
	return nil
}

func (r *GormRepository) MessagesByIDs(ctx context.Context, ids []string) ([]Message, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var msgs []Message
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&msgs).Error; err != nil {
		return nil, fmt.Errorf("load messages: %w", err)
	}
	return msgs, nil
}

// PageMessages returns one page newest-first plus the total count.
func (r *GormRepository) PageMessages(ctx context.Context, conversationID string, offset, limit int) ([]Message, int64, error) {
	var total int64
	err := r.db.WithContext(ctx).Model(&Message{}).
		Where("conversation_id = ?", conversationID).
		Count(&total).Error
	if err != nil {
		return nil, 0, fmt.Errorf("count messages: %w", err)
	}

	var msgs []Message
	err = r.db.WithContext(ctx).
		Where("conversation_id = ?", conversationID).
		Order("created_at DESC").Offset(offset).Limit(limit).
		Find(&msgs).Error
	if err != nil {
		return nil, 0, fmt.Errorf("page messages: %w", err)
	}
	return msgs, total, nil
}

func (r *GormRepository) UnreadCounts(ctx context.Context, userID string, conversationIDs []string) (map[string]int64, error) {
	out := make(map[string]int64, len(conversationIDs))
	if len(conversationIDs) == 0 {
		return out, nil
	}

	type row struct {
		ConversationID string
		N              int64
	}
	var rows []row
	err := r.db.WithContext(ctx).Model(&MessageStatus{}).
		Select("conversation_id, COUNT(*) AS n").
		Where("user_id = ? AND conversation_id IN ? AND status <> ?", userID, conversationIDs, DeliveryRead).
		Group("conversation_id").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("count unread: %w", err)
	}
	for _, r := range rows {
		out[r.ConversationID] = r.N
	}
	return out, nil
}

func (r *GormRepository) MarkRead(ctx context.Context, userID, conversationID string) (int64, error) {
	res := r.db.WithContext(ctx).Model(&MessageStatus{}).
		Where("user_id = ? AND conversation_id = ? AND status <> ?", userID, conversationID, DeliveryRead).
		Update("status", DeliveryRead)
	if res.Error != nil {
		return 0, fmt.Errorf("mark read: %w", res.Error)
	}
	return res.RowsAffected, nil
}
