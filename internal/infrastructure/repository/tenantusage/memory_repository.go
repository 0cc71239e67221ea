package tenantusage

import (
	"context"
	"sync"
	"time"

	"caremesh/services/agent-guard/internal/domain/usage"
)

// MemoryRepository is an in-process usage store for tests and local runs.
type MemoryRepository struct {
	mu   sync.Mutex
	rows map[string]*usage.Record // keyed by tenantID + "|" + period
}

// NewMemoryRepository constructs an empty in-memory repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{rows: make(map[string]*usage.Record)}
}

// Increment applies the delta under the lock, so concurrent callers never
// lose counts.
func (r *MemoryRepository) Increment(ctx context.Context, tenantID, period string, delta usage.Delta) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := tenantID + "|" + period
	row, ok := r.rows[key]
	if !ok {
		row = &usage.Record{TenantID: tenantID, Period: period}
		r.rows[key] = row
	}
	row.Requests += delta.Requests
	row.Tokens += delta.Tokens
	row.ToolCalls += delta.ToolCalls
	row.EstimatedCostUSD = row.EstimatedCostUSD.Add(delta.CostUSD)
	row.UpdatedAt = time.Now().UTC()
	return nil
}

// Get returns the tenant's counters for a period, zero if absent.
func (r *MemoryRepository) Get(ctx context.Context, tenantID, period string) (*usage.Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	row, ok := r.rows[tenantID+"|"+period]
	if !ok {
		return &usage.Record{TenantID: tenantID, Period: period}, nil
	}
	copied := *row
	return &copied, nil
}

// ResetPeriod drops counters for the given period.
func (r *MemoryRepository) ResetPeriod(ctx context.Context, period string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for key, row := range r.rows {
		if row.Period == period {
			delete(r.rows, key)
		}
	}
	return nil
}
