package gateway

import (
	"hash/fnv"
	"sync"
)

const shardCount = 32

// Registry is the process-wide map from user identity to live connections.
// It is sharded so fan-out for one user never contends with admission of
// another. It is the single source of truth for "is this user reachable".
type Registry struct {
	shards [shardCount]registryShard
}

type registryShard struct {
	mu      sync.RWMutex
	clients map[string]map[*Client]struct{}
}

func NewRegistry() *Registry {
	r := &Registry{}
	for i := range r.shards {
		r.shards[i].clients = make(map[string]map[*Client]struct{})
	}
	return r
}

func (r *Registry) shard(userID string) *registryShard {
	h := fnv.New32a()
	h.Write([]byte(userID))
	return &r.shards[h.Sum32()%shardCount]
}

// Register adds the connection to the user's set. Registering the same
// connection twice is a no-op.
func (r *Registry) Register(userID string, c *Client) {
	s := r.shard(userID)
	s.mu.Lock()
	defer s.mu.Unlock()

	set, ok := s.clients[userID]
	if !ok {
		set = make(map[*Client]struct{})
		s.clients[userID] = set
	}
	set[c] = struct{}{}
}

// Unregister removes the connection; the user's entry disappears with its
// last connection so registry memory tracks currently-connected users only.
func (r *Registry) Unregister(userID string, c *Client) {
	s := r.shard(userID)
	s.mu.Lock()
	defer s.mu.Unlock()

	set, ok := s.clients[userID]
	if !ok {
		return
	}
	delete(set, c)
	if len(set) == 0 {
		delete(s.clients, userID)
	}
}

// ConnectionsOf returns a snapshot of the user's live connections; empty
// slice when offline, never an error.
func (r *Registry) ConnectionsOf(userID string) []*Client {
	s := r.shard(userID)
	s.mu.RLock()
	defer s.mu.RUnlock()

	set := s.clients[userID]
	out := make([]*Client, 0, len(set))
	for c := range set {
		out = append(out, c)
	}
	return out
}

func (r *Registry) IsOnline(userID string) bool {
	s := r.shard(userID)
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.clients[userID]) > 0
}

// OnlineCount reports the number of distinct users with at least one
// live connection.
func (r *Registry) OnlineCount() int {
	total := 0
	for i := range r.shards {
		s := &r.shards[i]
		s.mu.RLock()
		total += len(s.clients)
		s.mu.RUnlock()
	}
	return total
}
