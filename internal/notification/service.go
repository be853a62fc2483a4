package notification

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"go.uber.org/zap"

	"messenger/infrastructure"
	"messenger/internal/events"
	"messenger/internal/user"
)

// Emitter is the gateway capability notification dispatch depends on.
type Emitter interface {
	EmitToUsers(userIDs []string, event string, payload any)
}

type MarkReadPayload struct {
	NotificationID string `json:"notificationId"`
}

// View is the payload pushed to recipients: the stored notification plus its
// ID so the client can acknowledge it later.
type View struct {
	ID        string          `json:"id"`
	Type      string          `json:"type"`
	Title     string          `json:"title,omitempty"`
	Message   string          `json:"message,omitempty"`
	Meta      json.RawMessage `json:"meta,omitempty"`
	CreatedAt time.Time       `json:"createdAt"`
}

// Draft is what callers hand to the dispatch methods.
type Draft struct {
	Type    string
	Title   string
	Message string
	Meta    json.RawMessage
}

// Service persists a notification once, links each recipient, and pushes to
// whoever is connected. Offline recipients keep their unread link rows.
type Service struct {
	repo      Repository
	directory user.Directory
	emitter   Emitter
	log       *zap.Logger
}

func NewService(repo Repository, directory user.Directory, emitter Emitter, log *zap.Logger) *Service {
	return &Service{repo: repo, directory: directory, emitter: emitter, log: log}
}

func (s *Service) NotifyUser(ctx context.Context, userID string, d Draft) (*View, error) {
	return s.NotifyUsers(ctx, []string{userID}, d)
}

func (s *Service) NotifyUsers(ctx context.Context, userIDs []string, d Draft) (*View, error) {
	if d.Type == "" || len(userIDs) == 0 {
		return nil, infrastructure.ErrInvalidInput
	}

	n := &Notification{Type: d.Type, Title: d.Title, Message: d.Message, Meta: d.Meta}
	if err := s.repo.Create(ctx, n); err != nil {
		return nil, err
	}

	linked := make([]string, 0, len(userIDs))
	for _, id := range userIDs {
		err := s.repo.Link(ctx, &UserNotification{UserID: id, NotificationID: n.ID})
		if errors.Is(err, infrastructure.ErrDuplicate) {
			// Duplicate recipient in the input; the link row already exists.
			continue
		}
		if err != nil {
			s.log.Warn("failed to link notification",
				zap.String("notification", n.ID),
				zap.String("user", id),
				zap.Error(err),
			)
			continue
		}
		linked = append(linked, id)
	}

	view := s.view(n)
	s.emitter.EmitToUsers(linked, events.EventNotification, view)
	s.log.Debug("dispatched notification",
		zap.String("notification", n.ID),
		zap.String("type", n.Type),
		zap.Int("recipients", len(linked)),
	)
	return &view, nil
}

// NotifyAll fans one notification out to every known user.
func (s *Service) NotifyAll(ctx context.Context, d Draft) (*View, error) {
	ids, err := s.directory.AllIDs(ctx)
	if err != nil {
		return nil, err
	}
	return s.NotifyUsers(ctx, ids, d)
}

// NotifyAdmins fans one notification out to every admin account.
func (s *Service) NotifyAdmins(ctx context.Context, d Draft) (*View, error) {
	ids, err := s.directory.IDsByRole(ctx, user.RoleAdmin, user.RoleSuperAdmin)
	if err != nil {
		return nil, err
	}
	return s.NotifyUsers(ctx, ids, d)
}

const replayLimit = 50

// Replay returns the caller's unread notifications so a reconnecting device
// catches up on what it missed while offline.
func (s *Service) Replay(ctx context.Context, userID string) ([]View, error) {
	rows, err := s.repo.UnreadForUser(ctx, userID, replayLimit)
	if err != nil {
		return nil, err
	}
	out := make([]View, 0, len(rows))
	for i := range rows {
		out = append(out, s.view(&rows[i]))
	}
	return out, nil
}

// MarkRead flips the caller's link row. Unknown or foreign notification IDs
// surface as not-found.
func (s *Service) MarkRead(ctx context.Context, userID, notificationID string) error {
	if notificationID == "" {
		return infrastructure.ErrInvalidInput
	}
	n, err := s.repo.MarkRead(ctx, userID, notificationID)
	if err != nil {
		return err
	}
	if n == 0 {
		return infrastructure.ErrNotFoundOrUnauthorized
	}
	return nil
}

func (s *Service) view(n *Notification) View {
	return View{
		ID:        n.ID,
		Type:      n.Type,
		Title:     n.Title,
		Message:   n.Message,
		Meta:      n.Meta,
		CreatedAt: n.CreatedAt,
	}
}
