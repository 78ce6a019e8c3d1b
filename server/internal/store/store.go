package store

import (
	"context"
	"encoding/json"
	"log/slog"
	"sort"
	"sync"
	"time"
)

// Entry is an agent's latest inventory together with the time it was received.
type Entry struct {
	AgentID   string
	Inventory json.RawMessage
	UpdatedAt time.Time
}

// Store is a thread-safe in-memory inventory store, keyed by agent ID.
// A background goroutine (Run) periodically evicts entries that have not
// been updated within the configured TTL. A zero TTL keeps entries forever.
type Store struct {
	mu   sync.RWMutex
	data map[string]*Entry
	ttl  time.Duration
	now  func() time.Time // injectable for deterministic tests
}

// New creates a Store with the given TTL.
func New(ttl time.Duration) *Store {
	return &Store{
		data: make(map[string]*Entry),
		ttl:  ttl,
		now:  time.Now,
	}
}

// TTL returns the retention period; zero means forever.
func (s *Store) TTL() time.Duration { return s.ttl }

// Put stores or replaces the inventory for agentID. A PUT is idempotent per
// agent: the latest upload wins.
// Callers must not modify inventory after calling Put.
func (s *Store) Put(agentID string, inventory json.RawMessage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[agentID] = &Entry{
		AgentID:   agentID,
		Inventory: inventory,
		UpdatedAt: s.now(),
	}
}

// Get returns the live Entry for agentID and whether one was found. Entries
// past their TTL are reported as missing even before eviction.
func (s *Store) Get(agentID string) (*Entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.data[agentID]
	if !ok || !s.live(e, s.now()) {
		return nil, false
	}
	return e, true
}

// List returns all live entries sorted by agent ID.
func (s *Store) List() []*Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	now := s.now()
	out := make([]*Entry, 0, len(s.data))
	for _, e := range s.data {
		if s.live(e, now) {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AgentID < out[j].AgentID })
	return out
}

// Count returns the total number of entries currently held, including stale ones.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}

// Evict removes entries whose UpdatedAt is older than now minus TTL.
// It returns the number of entries removed.
func (s *Store) Evict(now time.Time) int {
	if s.ttl == 0 {
		return 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for id, e := range s.data {
		if !s.live(e, now) {
			delete(s.data, id)
			removed++
		}
	}
	return removed
}

func (s *Store) live(e *Entry, now time.Time) bool {
	return s.ttl == 0 || e.UpdatedAt.After(now.Add(-s.ttl))
}

// Run starts the background TTL eviction loop. It ticks at half the TTL
// interval, clamped to [1s, 1h]. Run blocks until ctx is cancelled and
// returns at once when the TTL is zero.
func (s *Store) Run(ctx context.Context) {
	if s.ttl == 0 {
		return
	}
	interval := s.ttl / 2
	if interval < time.Second {
		interval = time.Second
	}
	if interval > time.Hour {
		interval = time.Hour
	}
	t := time.NewTicker(interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C:
			if n := s.Evict(now); n > 0 {
				slog.Info("store: evicted stale inventories", "count", n)
			}
		}
	}
}
