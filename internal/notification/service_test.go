package notification

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"

	"go.uber.org/zap/zaptest"

	"messenger/infrastructure"
	"messenger/internal/events"
	"messenger/internal/user"
)

type fakeRepo struct {
	mu            sync.Mutex
	notifications map[string]*Notification
	links         map[string]*UserNotification
	seq           int
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{notifications: map[string]*Notification{}, links: map[string]*UserNotification{}}
}

func linkKey(userID, notificationID string) string {
	return userID + "/" + notificationID
}

func (f *fakeRepo) Create(_ context.Context, n *Notification) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq++
	n.ID = fmt.Sprintf("notif-%d", f.seq)
	cp := *n
	f.notifications[n.ID] = &cp
	return nil
}

func (f *fakeRepo) Link(_ context.Context, link *UserNotification) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := linkKey(link.UserID, link.NotificationID)
	if _, ok := f.links[key]; ok {
		return infrastructure.ErrDuplicate
	}
	cp := *link
	f.links[key] = &cp
	return nil
}

func (f *fakeRepo) MarkRead(_ context.Context, userID, notificationID string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	link, ok := f.links[linkKey(userID, notificationID)]
	if !ok {
		return 0, nil
	}
	link.Read = true
	return 1, nil
}

func (f *fakeRepo) UnreadForUser(_ context.Context, userID string, limit int) ([]Notification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []Notification
	for _, link := range f.links {
		if link.UserID == userID && !link.Read {
			if n, ok := f.notifications[link.NotificationID]; ok {
				out = append(out, *n)
			}
		}
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type fakeDirectory struct {
	ids   []string
	roles map[string]string
}

func (d *fakeDirectory) Exists(_ context.Context, id string) (bool, error) {
	for _, known := range d.ids {
		if known == id {
			return true, nil
		}
	}
	return false, nil
}

func (d *fakeDirectory) Profile(_ context.Context, id string) (*user.Profile, error) {
	return &user.Profile{ID: id}, nil
}

func (d *fakeDirectory) Profiles(_ context.Context, ids []string) (map[string]user.Profile, error) {
	out := map[string]user.Profile{}
	for _, id := range ids {
		out[id] = user.Profile{ID: id}
	}
	return out, nil
}

func (d *fakeDirectory) AllIDs(_ context.Context) ([]string, error) {
	return append([]string(nil), d.ids...), nil
}

func (d *fakeDirectory) IDsByRole(_ context.Context, roles ...string) ([]string, error) {
	var out []string
	for _, id := range d.ids {
		role := d.roles[id]
		if role == "" {
			role = user.RoleUser
		}
		for _, wanted := range roles {
			if role == wanted {
				out = append(out, id)
				break
			}
		}
	}
	return out, nil
}

func (d *fakeDirectory) TouchLastActive(_ context.Context, _ string) error { return nil }

type broadcast struct {
	userIDs []string
	event   string
	payload any
}

type fakeEmitter struct {
	mu         sync.Mutex
	broadcasts []broadcast
}

func (e *fakeEmitter) EmitToUsers(userIDs []string, event string, payload any) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.broadcasts = append(e.broadcasts, broadcast{
		userIDs: append([]string(nil), userIDs...),
		event:   event,
		payload: payload,
	})
}

func newTestService(t *testing.T, userIDs ...string) (*Service, *fakeRepo, *fakeEmitter) {
	t.Helper()
	repo := newFakeRepo()
	emitter := &fakeEmitter{}
	svc := NewService(repo, &fakeDirectory{ids: userIDs}, emitter, zaptest.NewLogger(t))
	return svc, repo, emitter
}

func TestNotifyUserPersistsLinksAndPushes(t *testing.T) {
	svc, repo, emitter := newTestService(t, "alice", "bob")
	ctx := context.Background()

	view, err := svc.NotifyUser(ctx, "alice", Draft{Type: "system", Title: "Welcome", Message: "hello"})
	if err != nil {
		t.Fatalf("notify: %v", err)
	}
	if view.ID == "" || view.Type != "system" {
		t.Fatalf("unexpected view: %+v", view)
	}
	if _, ok := repo.links[linkKey("alice", view.ID)]; !ok {
		t.Fatalf("link row missing")
	}
	if len(emitter.broadcasts) != 1 {
		t.Fatalf("expected 1 broadcast, got %d", len(emitter.broadcasts))
	}
	b := emitter.broadcasts[0]
	if b.event != events.EventNotification || len(b.userIDs) != 1 || b.userIDs[0] != "alice" {
		t.Fatalf("unexpected broadcast: %+v", b)
	}
}

func TestNotifyUsersDeduplicatesRecipients(t *testing.T) {
	svc, repo, emitter := newTestService(t, "alice", "bob")
	ctx := context.Background()

	view, err := svc.NotifyUsers(ctx, []string{"alice", "bob", "alice"}, Draft{Type: "system"})
	if err != nil {
		t.Fatalf("notify: %v", err)
	}
	if len(repo.links) != 2 {
		t.Fatalf("expected 2 link rows, got %d", len(repo.links))
	}
	got := append([]string(nil), emitter.broadcasts[0].userIDs...)
	sort.Strings(got)
	if len(got) != 2 || got[0] != "alice" || got[1] != "bob" {
		t.Fatalf("duplicate recipient leaked into fan-out: %v", got)
	}
	if len(repo.notifications) != 1 {
		t.Fatalf("notification stored more than once")
	}
	_ = view
}

func TestNotifyAllReachesEveryKnownUser(t *testing.T) {
	svc, repo, emitter := newTestService(t, "alice", "bob", "carol")
	ctx := context.Background()

	if _, err := svc.NotifyAll(ctx, Draft{Type: "announcement", Title: "Downtime"}); err != nil {
		t.Fatalf("notify all: %v", err)
	}
	if len(repo.links) != 3 {
		t.Fatalf("expected 3 link rows, got %d", len(repo.links))
	}
	if len(emitter.broadcasts[0].userIDs) != 3 {
		t.Fatalf("expected 3 recipients in fan-out, got %d", len(emitter.broadcasts[0].userIDs))
	}
}

func TestMarkReadFlipsLinkRow(t *testing.T) {
	svc, repo, _ := newTestService(t, "alice")
	ctx := context.Background()

	view, err := svc.NotifyUser(ctx, "alice", Draft{Type: "system"})
	if err != nil {
		t.Fatalf("notify: %v", err)
	}

	if err := svc.MarkRead(ctx, "alice", view.ID); err != nil {
		t.Fatalf("mark read: %v", err)
	}
	if !repo.links[linkKey("alice", view.ID)].Read {
		t.Fatalf("link row not flipped")
	}
	// Re-acknowledging is harmless.
	if err := svc.MarkRead(ctx, "alice", view.ID); err != nil {
		t.Fatalf("repeat mark read: %v", err)
	}

	if err := svc.MarkRead(ctx, "bob", view.ID); !errors.Is(err, infrastructure.ErrNotFoundOrUnauthorized) {
		t.Fatalf("foreign mark read: got %v", err)
	}
	if err := svc.MarkRead(ctx, "alice", ""); !errors.Is(err, infrastructure.ErrInvalidInput) {
		t.Fatalf("empty id: got %v", err)
	}
}

func TestNotifyAdminsTargetsAdminRolesOnly(t *testing.T) {
	repo := newFakeRepo()
	emitter := &fakeEmitter{}
	dir := &fakeDirectory{
		ids:   []string{"alice", "bob", "root"},
		roles: map[string]string{"bob": user.RoleAdmin, "root": user.RoleSuperAdmin},
	}
	svc := NewService(repo, dir, emitter, zaptest.NewLogger(t))
	ctx := context.Background()

	view, err := svc.NotifyAdmins(ctx, Draft{Type: "report", Title: "New abuse report"})
	if err != nil {
		t.Fatalf("notify admins: %v", err)
	}
	if _, ok := repo.links[linkKey("alice", view.ID)]; ok {
		t.Fatalf("regular user must not be linked")
	}
	if _, ok := repo.links[linkKey("bob", view.ID)]; !ok {
		t.Fatalf("admin link row missing")
	}
	if _, ok := repo.links[linkKey("root", view.ID)]; !ok {
		t.Fatalf("super-admin link row missing")
	}
	got := append([]string(nil), emitter.broadcasts[0].userIDs...)
	sort.Strings(got)
	if len(got) != 2 || got[0] != "bob" || got[1] != "root" {
		t.Fatalf("unexpected admin fan-out: %v", got)
	}
}

func TestReplayReturnsOnlyUnread(t *testing.T) {
	svc, _, _ := newTestService(t, "alice")
	ctx := context.Background()

	first, err := svc.NotifyUser(ctx, "alice", Draft{Type: "system", Title: "first"})
	if err != nil {
		t.Fatalf("notify: %v", err)
	}
	second, err := svc.NotifyUser(ctx, "alice", Draft{Type: "system", Title: "second"})
	if err != nil {
		t.Fatalf("notify: %v", err)
	}
	if err := svc.MarkRead(ctx, "alice", first.ID); err != nil {
		t.Fatalf("mark read: %v", err)
	}

	views, err := svc.Replay(ctx, "alice")
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if len(views) != 1 || views[0].ID != second.ID {
		t.Fatalf("expected only the unread notification, got %+v", views)
	}

	if err := svc.MarkRead(ctx, "alice", second.ID); err != nil {
		t.Fatalf("mark read: %v", err)
	}
	views, err = svc.Replay(ctx, "alice")
	if err != nil {
		t.Fatalf("replay after read: %v", err)
	}
	if len(views) != 0 {
		t.Fatalf("acknowledged notifications must not replay, got %+v", views)
	}
}

func TestNotifyRejectsEmptyDraftAndRecipients(t *testing.T) {
	svc, _, _ := newTestService(t, "alice")
	ctx := context.Background()

	if _, err := svc.NotifyUsers(ctx, []string{"alice"}, Draft{}); !errors.Is(err, infrastructure.ErrInvalidInput) {
		t.Fatalf("empty type: got %v", err)
	}
	if _, err := svc.NotifyUsers(ctx, nil, Draft{Type: "system"}); !errors.Is(err, infrastructure.ErrInvalidInput) {
		t.Fatalf("no recipients: got %v", err)
	}
}
