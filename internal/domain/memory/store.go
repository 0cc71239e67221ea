// Package memory holds short-lived per-conversation state for slot filling
// and pending confirmations.
package memory

import (
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru"
)

// State is what the refiner remembers between turns of one conversation.
type State struct {
	ConversationID      string
	IntentType          string
	Slots               map[string]string
	PendingConfirmation bool
	LastActivity        time.Time
}

// Store is an LRU-capped in-process conversation store. Updates for the same
// conversation are serialized through a per-conversation mutex so concurrent
// turns never lose slot writes.
type Store struct {
	cache *lru.Cache
	locks sync.Map // conversation id -> *sync.Mutex
	now   func() time.Time
}

// NewStore creates a store capped at size conversations.
func NewStore(size int) (*Store, error) {
	cache, err := lru.New(size)
	if err != nil {
		return nil, err
	}
	return &Store{cache: cache, now: time.Now}, nil
}

func (s *Store) lock(conversationID string) *sync.Mutex {
	mu, _ := s.locks.LoadOrStore(conversationID, &sync.Mutex{})
	return mu.(*sync.Mutex)
}

// Get returns a copy of the conversation state, if any.
func (s *Store) Get(conversationID string) (State, bool) {
	v, ok := s.cache.Get(conversationID)
	if !ok {
		return State{}, false
	}
	st := v.(State)
	copied := st
	copied.Slots = make(map[string]string, len(st.Slots))
	for k, val := range st.Slots {
		copied.Slots[k] = val
	}
	return copied, true
}

// Update applies fn to the conversation state under the per-conversation lock.
// A missing state is created first.
func (s *Store) Update(conversationID string, fn func(st *State)) State {
	mu := s.lock(conversationID)
	mu.Lock()
	defer mu.Unlock()

	st := State{ConversationID: conversationID, Slots: map[string]string{}}
	if v, ok := s.cache.Get(conversationID); ok {
		st = v.(State)
	}
	fn(&st)
	st.LastActivity = s.now()
	s.cache.Add(conversationID, st)
	return st
}

// Clear removes the conversation state. Called on completion, cancellation,
// or inactivity timeout.
func (s *Store) Clear(conversationID string) {
	mu := s.lock(conversationID)
	mu.Lock()
	defer mu.Unlock()
	s.cache.Remove(conversationID)
	s.locks.Delete(conversationID)
}

// Sweep removes conversations idle longer than maxIdle and returns how many
// were cleared.
func (s *Store) Sweep(maxIdle time.Duration) int {
	cutoff := s.now().Add(-maxIdle)
	cleared := 0
	for _, key := range s.cache.Keys() {
		v, ok := s.cache.Peek(key)
		if !ok {
			continue
		}
		if v.(State).LastActivity.Before(cutoff) {
			s.Clear(key.(string))
			cleared++
		}
	}
	return cleared
}

// Len returns the number of live conversations.
func (s *Store) Len() int {
	return s.cache.Len()
}
