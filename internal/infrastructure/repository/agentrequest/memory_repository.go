package agentrequest

import (
	"context"
	"sync"

	"caremesh/services/agent-guard/internal/domain/guarderrors"
	"caremesh/services/agent-guard/internal/domain/request"
)

// MemoryRepository is an in-process request store for tests and local runs.
type MemoryRepository struct {
	mu   sync.RWMutex
	byID map[string]*request.Request
}

// NewMemoryRepository constructs an empty in-memory repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{byID: make(map[string]*request.Request)}
}

// Create stores a copy of the record.
func (r *MemoryRepository) Create(ctx context.Context, rec *request.Request) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.byID[rec.ID]; exists {
		return guarderrors.New(ctx, guarderrors.LayerRepository, guarderrors.ErrorTypeConflict,
			"request already exists", nil, "request-create-mem-001")
	}
	copied := *rec
	r.byID[rec.ID] = &copied
	return nil
}

// Update replaces the stored record.
func (r *MemoryRepository) Update(ctx context.Context, rec *request.Request) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.byID[rec.ID]; !exists {
		return guarderrors.New(ctx, guarderrors.LayerRepository, guarderrors.ErrorTypeNotFound,
			"request not found", nil, "request-update-mem-001")
	}
	copied := *rec
	r.byID[rec.ID] = &copied
	return nil
}

// GetByID returns a copy of the stored record.
func (r *MemoryRepository) GetByID(ctx context.Context, id string) (*request.Request, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.byID[id]
	if !ok {
		return nil, guarderrors.New(ctx, guarderrors.LayerRepository, guarderrors.ErrorTypeNotFound,
			"request not found", nil, "request-get-mem-001")
	}
	copied := *rec
	return &copied, nil
}
