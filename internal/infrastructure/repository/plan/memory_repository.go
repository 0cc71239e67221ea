package plan

import (
	"context"
	"sync"
	"time"

	domain "caremesh/services/agent-guard/internal/domain/plan"
	"caremesh/services/agent-guard/internal/domain/guarderrors"
)

// MemoryRepository is an in-process plan store for tests and local runs.
type MemoryRepository struct {
	mu        sync.RWMutex
	byID      map[string]*domain.Plan
	byRequest map[string]string
}

// NewMemoryRepository constructs an empty in-memory repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		byID:      make(map[string]*domain.Plan),
		byRequest: make(map[string]string),
	}
}

// Create stores a copy of the plan.
func (r *MemoryRepository) Create(ctx context.Context, p *domain.Plan) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.byID[p.ID]; exists {
		return guarderrors.New(ctx, guarderrors.LayerRepository, guarderrors.ErrorTypeConflict,
			"plan already exists", nil, "plan-create-mem-001")
	}
	r.byID[p.ID] = clone(p)
	r.byRequest[p.RequestID] = p.ID
	return nil
}

// Update replaces the stored plan with a copy of p.
func (r *MemoryRepository) Update(ctx context.Context, p *domain.Plan) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.byID[p.ID]; !exists {
		return guarderrors.New(ctx, guarderrors.LayerRepository, guarderrors.ErrorTypeNotFound,
			"plan not found", nil, "plan-update-mem-001")
	}
	r.byID[p.ID] = clone(p)
	return nil
}

// GetByID returns a copy of the stored plan.
func (r *MemoryRepository) GetByID(ctx context.Context, id string) (*domain.Plan, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.byID[id]
	if !ok {
		return nil, guarderrors.New(ctx, guarderrors.LayerRepository, guarderrors.ErrorTypeNotFound,
			"plan not found", nil, "plan-get-mem-001")
	}
	return clone(p), nil
}

// GetByRequestID returns the plan created for a request.
func (r *MemoryRepository) GetByRequestID(ctx context.Context, requestID string) (*domain.Plan, error) {
	r.mu.RLock()
	id, ok := r.byRequest[requestID]
	r.mu.RUnlock()
	if !ok {
		return nil, guarderrors.New(ctx, guarderrors.LayerRepository, guarderrors.ErrorTypeNotFound,
			"plan not found for request", nil, "plan-get-mem-002")
	}
	return r.GetByID(ctx, id)
}

// ListApprovalExpired returns non-terminal plans past their deadline.
func (r *MemoryRepository) ListApprovalExpired(ctx context.Context, now time.Time) ([]*domain.Plan, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*domain.Plan
	for _, p := range r.byID {
		if p.ApprovalExpired(now) {
			out = append(out, clone(p))
		}
	}
	return out, nil
}

func clone(p *domain.Plan) *domain.Plan {
	copied := *p
	copied.Operations = make([]domain.Operation, len(p.Operations))
	copy(copied.Operations, p.Operations)
	return &copied
}
