package chat

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"messenger/infrastructure"
	"messenger/internal/user"
)

// fakeRepository is an in-memory Repository good enough for service tests.
type fakeRepository struct {
	mu       sync.Mutex
	convs    map[string]*Conversation
	messages map[string]*Message
	statuses map[string]*MessageStatus
	seq      int
}

func newFakeRepository() *fakeRepository {
	return &fakeRepository{
		convs:    map[string]*Conversation{},
		messages: map[string]*Message{},
		statuses: map[string]*MessageStatus{},
	}
}

func (f *fakeRepository) nextID(prefix string) string {
	f.seq++
	return fmt.Sprintf("%s-%d", prefix, f.seq)
}

func (f *fakeRepository) FindByPair(_ context.Context, a, b string) (*Conversation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := PairKey(a, b)
	for _, c := range f.convs {
		if c.PairKey == key {
			cp := *c
			return &cp, nil
		}
	}
	return nil, nil
}

func (f *fakeRepository) FindForUser(_ context.Context, conversationID, userID string) (*Conversation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.convs[conversationID]
	if !ok || !c.HasParticipant(userID) {
		return nil, infrastructure.ErrNotFoundOrUnauthorized
	}
	cp := *c
	return &cp, nil
}

func (f *fakeRepository) Create(_ context.Context, conv *Conversation) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	conv.PairKey = PairKey(conv.InitiatorID, conv.ReceiverID)
	for _, c := range f.convs {
		if c.PairKey == conv.PairKey {
			return infrastructure.ErrDuplicate
		}
	}
	conv.ID = f.nextID("conv")
	if conv.Status == "" {
		conv.Status = StatusActive
	}
	conv.CreatedAt = time.Now()
	conv.UpdatedAt = conv.CreatedAt
	cp := *conv
	f.convs[conv.ID] = &cp
	return nil
}

func (f *fakeRepository) UpdateStatus(_ context.Context, conversationID string, status ConversationStatus) (*Conversation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.convs[conversationID]
	if !ok {
		return nil, infrastructure.ErrNotFoundOrUnauthorized
	}
	c.Status = status
	c.UpdatedAt = time.Now()
	cp := *c
	return &cp, nil
}

func (f *fakeRepository) Delete(_ context.Context, conversationID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.convs, conversationID)
	return nil
}

func (f *fakeRepository) ListForUser(_ context.Context, userID string, offset, limit int, search string) ([]Conversation, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var all []Conversation
	for _, c := range f.convs {
		if !c.HasParticipant(userID) {
			continue
		}
		// Search matches the other participant's name only, mirroring the
		// store's subquery and the fake directory's "user <id>" names.
		if search != "" {
			peerName := "user " + c.OtherParticipant(userID)
			if !strings.Contains(strings.ToLower(peerName), strings.ToLower(search)) {
				continue
			}
		}
		all = append(all, *c)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].UpdatedAt.After(all[j].UpdatedAt) })
	total := int64(len(all))
	if offset >= len(all) {
		return nil, total, nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], total, nil
}

func (f *fakeRepository) SetLastMessage(_ context.Context, conversationID, messageID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.convs[conversationID]
	if !ok {
		return infrastructure.ErrNotFoundOrUnauthorized
	}
	id := messageID
	c.LastMessageID = &id
	c.UpdatedAt = time.Now()
	return nil
}

func (f *fakeRepository) CreateMessage(_ context.Context, msg *Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	msg.ID = f.nextID("msg")
	if msg.Type == "" {
		msg.Type = TypeText
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().Add(time.Duration(f.seq) * time.Millisecond)
	}
	cp := *msg
	f.messages[msg.ID] = &cp
	return nil
}

func (f *fakeRepository) CreateMessageStatus(_ context.Context, status *MessageStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	status.ID = f.nextID("status")
	if status.Status == "" {
		status.Status = DeliverySent
	}
	cp := *status
	f.statuses[status.ID] = &cp
	return nil
}

func (f *fakeRepository) MessagesByIDs(_ context.Context, ids []string) ([]Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []Message
	for _, id := range ids {
		if m, ok := f.messages[id]; ok {
			out = append(out, *m)
		}
	}
	return out, nil
}

func (f *fakeRepository) PageMessages(_ context.Context, conversationID string, offset, limit int) ([]Message, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var all []Message
	for _, m := range f.messages {
		if m.ConversationID == conversationID {
			all = append(all, *m)
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })
	total := int64(len(all))
	if offset >= len(all) {
		return nil, total, nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], total, nil
}

func (f *fakeRepository) UnreadCounts(_ context.Context, userID string, conversationIDs []string) (map[string]int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	wanted := make(map[string]bool, len(conversationIDs))
	for _, id := range conversationIDs {
		wanted[id] = true
	}
	out := map[string]int64{}
	for _, s := range f.statuses {
		if s.UserID == userID && wanted[s.ConversationID] && s.Status != DeliveryRead {
			out[s.ConversationID]++
		}
	}
	return out, nil
}

func (f *fakeRepository) MarkRead(_ context.Context, userID, conversationID string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for _, s := range f.statuses {
		if s.UserID == userID && s.ConversationID == conversationID && s.Status != DeliveryRead {
			s.Status = DeliveryRead
			n++
		}
	}
	return n, nil
}

// fakeDirectory serves profiles from a fixed map.
type fakeDirectory struct {
	users map[string]user.Profile
}

func newFakeDirectory(ids ...string) *fakeDirectory {
	users := make(map[string]user.Profile, len(ids))
	for _, id := range ids {
		users[id] = user.Profile{ID: id, Name: "user " + id, Email: id + "@example.com"}
	}
	return &fakeDirectory{users: users}
}

func (d *fakeDirectory) Exists(_ context.Context, id string) (bool, error) {
	_, ok := d.users[id]
	return ok, nil
}

func (d *fakeDirectory) Profile(_ context.Context, id string) (*user.Profile, error) {
	p, ok := d.users[id]
	if !ok {
		return nil, infrastructure.ErrUserNotFound
	}
	return &p, nil
}

func (d *fakeDirectory) Profiles(_ context.Context, ids []string) (map[string]user.Profile, error) {
	out := make(map[string]user.Profile, len(ids))
	for _, id := range ids {
		if p, ok := d.users[id]; ok {
			out[id] = p
		}
	}
	return out, nil
}

func (d *fakeDirectory) AllIDs(_ context.Context) ([]string, error) {
	ids := make([]string, 0, len(d.users))
	for id := range d.users {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

func (d *fakeDirectory) IDsByRole(_ context.Context, _ ...string) ([]string, error) {
	return nil, nil
}

func (d *fakeDirectory) TouchLastActive(_ context.Context, _ string) error { return nil }

type emitted struct {
	userID  string
	event   string
	payload any
}

// fakeEmitter records every fan-out so tests can assert on delivery.
type fakeEmitter struct {
	mu     sync.Mutex
	events []emitted
}

func (e *fakeEmitter) EmitToUser(userID, event string, payload any) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = append(e.events, emitted{userID: userID, event: event, payload: payload})
}

func (e *fakeEmitter) EmitToUserFirst(userID, event string, payload any) {
	e.EmitToUser(userID, event, payload)
}

func (e *fakeEmitter) forUser(userID string) []emitted {
	e.mu.Lock()
	defer e.mu.Unlock()
	var out []emitted
	for _, ev := range e.events {
		if ev.userID == userID {
			out = append(out, ev)
		}
	}
	return out
}
