package dedup

import (
	"context"
	"sync"
	"time"
)

// MemoryStore keeps the replay window in-process behind a mutex.
// Expiry is evaluated lazily at lookup; stale entries only cost memory,
// never correctness.
type MemoryStore struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[string]time.Time
	now     func() time.Time
}

// NewMemoryStore builds an in-memory store.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		ttl:     ttl,
		entries: make(map[string]time.Time),
		now:     time.Now,
	}
}

// Seen implements Store.
func (s *MemoryStore) Seen(ctx context.Context, eventID string) (bool, error) {
	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()

	if expiry, ok := s.entries[eventID]; ok && now.Before(expiry) {
		return true, nil
	}
	s.entries[eventID] = now.Add(s.ttl)
	return false, nil
}
