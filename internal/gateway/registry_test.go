package gateway

import (
	"fmt"
	"sync"
	"testing"
)

func TestRegistryTracksMultipleConnectionsPerUser(t *testing.T) {
	r := NewRegistry()
	a := newClient("alice", nil)
	b := newClient("alice", nil)

	r.Register("alice", a)
	r.Register("alice", b)
	r.Register("alice", b) // repeat registration is a no-op

	if got := len(r.ConnectionsOf("alice")); got != 2 {
		t.Fatalf("expected 2 connections, got %d", got)
	}
	if !r.IsOnline("alice") {
		t.Fatalf("alice should be online")
	}
	if r.OnlineCount() != 1 {
		t.Fatalf("one distinct user expected, got %d", r.OnlineCount())
	}

	r.Unregister("alice", a)
	if got := len(r.ConnectionsOf("alice")); got != 1 {
		t.Fatalf("expected 1 connection after unregister, got %d", got)
	}
	if !r.IsOnline("alice") {
		t.Fatalf("alice still has a live connection")
	}

	r.Unregister("alice", b)
	if r.IsOnline("alice") {
		t.Fatalf("alice should be offline after last unregister")
	}
	if got := len(r.ConnectionsOf("alice")); got != 0 {
		t.Fatalf("expected no connections, got %d", got)
	}
	if r.OnlineCount() != 0 {
		t.Fatalf("no users should remain, got %d", r.OnlineCount())
	}
}

func TestRegistryUnregisterUnknownIsHarmless(t *testing.T) {
	r := NewRegistry()
	r.Unregister("ghost", newClient("ghost", nil))
	if r.IsOnline("ghost") {
		t.Fatalf("ghost should not be online")
	}
}

func TestRegistryConcurrentChurn(t *testing.T) {
	r := NewRegistry()
	const users = 50
	const perUser = 4

	var wg sync.WaitGroup
	for u := 0; u < users; u++ {
		userID := fmt.Sprintf("user-%d", u)
		for c := 0; c < perUser; c++ {
			wg.Add(1)
			go func(id string) {
				defer wg.Done()
				client := newClient(id, nil)
				r.Register(id, client)
				r.ConnectionsOf(id)
				r.Unregister(id, client)
			}(userID)
		}
	}
	wg.Wait()

	if r.OnlineCount() != 0 {
		t.Fatalf("registry should be empty after churn, %d users remain", r.OnlineCount())
	}
}
