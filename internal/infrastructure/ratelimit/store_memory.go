package ratelimit

import (
	"context"
	"sync"
	"time"
)

type windowEntry struct {
	count     int64
	expiresAt time.Time
}

// MemoryStore is a mutex-guarded fixed-window store for single-process
// deployments and tests.
type MemoryStore struct {
	mu      sync.Mutex
	windows map[string]*windowEntry
	now     func() time.Time
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{windows: make(map[string]*windowEntry), now: time.Now}
}

// Incr implements Store. The mutex makes increment-and-read atomic, so
// concurrent requests for the same key observe strictly increasing counts.
func (s *MemoryStore) Incr(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	entry, ok := s.windows[key]
	if !ok || now.After(entry.expiresAt) {
		entry = &windowEntry{expiresAt: now.Add(window)}
		s.windows[key] = entry
	}
	entry.count++
	return entry.count, entry.expiresAt.Sub(now), nil
}

// Peek implements Store.
func (s *MemoryStore) Peek(ctx context.Context, key string) (int64, time.Duration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	entry, ok := s.windows[key]
	if !ok || now.After(entry.expiresAt) {
		return 0, 0, nil
	}
	return entry.count, entry.expiresAt.Sub(now), nil
}
