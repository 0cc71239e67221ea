// Package ratelimit enforces per-tenant fixed-window request budgets.
package ratelimit

import (
	"context"
	"fmt"
	"time"
)

// Store provides the atomic increment a fixed window needs. A race between
// two concurrent requests for the same key must never let both pass when one
// unit of quota remains, so the count-and-compare happens on the store's
// returned value.
type Store interface {
	// Incr atomically increments the counter for key, creating it with the
	// window TTL on first use, and returns the new count plus time to reset.
	Incr(ctx context.Context, key string, window time.Duration) (count int64, ttl time.Duration, err error)
	// Peek returns the current count without incrementing.
	Peek(ctx context.Context, key string) (count int64, ttl time.Duration, err error)
}

// Config is one capability's budget.
type Config struct {
	Capacity int64
	Window   time.Duration
	PerUser  bool // include the user id in the window key
}

// Result is the limiter's verdict. Denial is a first-class outcome, not an
// exception.
type Result struct {
	Allowed   bool      `json:"allowed"`
	Limit     int64     `json:"limit"`
	Remaining int64     `json:"remaining"`
	ResetAt   time.Time `json:"reset_at"`
}

// Limiter applies per-capability budgets keyed by tenant and optionally user.
type Limiter struct {
	store   Store
	budgets map[string]Config
	now     func() time.Time
}

// NewLimiter creates a limiter over the given store and budgets.
func NewLimiter(store Store, budgets map[string]Config) *Limiter {
	return &Limiter{store: store, budgets: budgets, now: time.Now}
}

func key(capability, tenantID, userID string, perUser bool) string {
	if perUser && userID != "" {
		return fmt.Sprintf("ratelimit:%s:%s:%s", capability, tenantID, userID)
	}
	return fmt.Sprintf("ratelimit:%s:%s", capability, tenantID)
}

// Allow consumes one unit of the tenant's budget for the capability.
func (l *Limiter) Allow(ctx context.Context, capability, tenantID, userID string) (Result, error) {
	budget, ok := l.budgets[capability]
	if !ok {
		// Capabilities without a configured budget are unlimited.
		return Result{Allowed: true, Limit: -1, Remaining: -1}, nil
	}

	count, ttl, err := l.store.Incr(ctx, key(capability, tenantID, userID, budget.PerUser), budget.Window)
	if err != nil {
		return Result{}, fmt.Errorf("rate limit increment: %w", err)
	}

	result := Result{
		Limit:   budget.Capacity,
		ResetAt: l.now().Add(ttl),
	}
	if count > budget.Capacity {
		result.Allowed = false
		result.Remaining = 0
		return result, nil
	}
	result.Allowed = true
	result.Remaining = budget.Capacity - count
	return result, nil
}

// Inspect reports the tenant's remaining quota without consuming any.
func (l *Limiter) Inspect(ctx context.Context, capability, tenantID, userID string) (Result, error) {
	budget, ok := l.budgets[capability]
	if !ok {
		return Result{Allowed: true, Limit: -1, Remaining: -1}, nil
	}

	count, ttl, err := l.store.Peek(ctx, key(capability, tenantID, userID, budget.PerUser))
	if err != nil {
		return Result{}, fmt.Errorf("rate limit peek: %w", err)
	}

	remaining := budget.Capacity - count
	if remaining < 0 {
		remaining = 0
	}
	return Result{
		Allowed:   count < budget.Capacity,
		Limit:     budget.Capacity,
		Remaining: remaining,
		ResetAt:   l.now().Add(ttl),
	}, nil
}

// Budgets returns the configured budgets for the admin surface.
func (l *Limiter) Budgets() map[string]Config {
	out := make(map[string]Config, len(l.budgets))
	for k, v := range l.budgets {
		out[k] = v
	}
	return out
}
