package auditlog

import (
	"context"
	"sort"
	"sync"

	"caremesh/services/agent-guard/internal/domain/audit"
)

// MemoryRepository is an in-process audit store for tests and local runs.
type MemoryRepository struct {
	mu     sync.RWMutex
	events []audit.Event
}

// NewMemoryRepository constructs an empty in-memory repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{}
}

// Append stores a copy of the event.
func (r *MemoryRepository) Append(ctx context.Context, event *audit.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, *event)
	return nil
}

// Query filters the stored events in insertion order.
func (r *MemoryRepository) Query(ctx context.Context, filter audit.Filter) ([]audit.Event, int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var matched []audit.Event
	for _, e := range r.events {
		if filter.TenantID != "" && e.TenantID != filter.TenantID {
			continue
		}
		if filter.RequestID != "" && e.RequestID != filter.RequestID {
			continue
		}
		if filter.Type != "" && e.Type != filter.Type {
			continue
		}
		if filter.Tag != "" && e.Tag != filter.Tag {
			continue
		}
		if !filter.From.IsZero() && e.CreatedAt.Before(filter.From) {
			continue
		}
		if !filter.To.IsZero() && e.CreatedAt.After(filter.To) {
			continue
		}
		matched = append(matched, e)
	}

	sort.SliceStable(matched, func(i, j int) bool {
		if matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].Sequence < matched[j].Sequence
		}
		return matched[i].CreatedAt.Before(matched[j].CreatedAt)
	})

	total := int64(len(matched))
	if filter.Offset > 0 {
		if filter.Offset >= len(matched) {
			return nil, total, nil
		}
		matched = matched[filter.Offset:]
	}
	if filter.Limit > 0 && filter.Limit < len(matched) {
		matched = matched[:filter.Limit]
	}
	return matched, total, nil
}
