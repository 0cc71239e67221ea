// Package usage tracks per-tenant, per-period pipeline consumption counters.
package usage

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Record holds one tenant's counters for one billing period.
type Record struct {
	TenantID         string          `json:"tenant_id"`
	Period           string          `json:"period"` // e.g. "2026-08"
	Requests         int64           `json:"requests"`
	Tokens           int64           `json:"tokens"`
	ToolCalls        int64           `json:"tool_calls"`
	EstimatedCostUSD decimal.Decimal `json:"estimated_cost_usd"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

// Delta is one atomic increment applied to a tenant's current period.
type Delta struct {
	Requests  int64
	Tokens    int64
	ToolCalls int64
	CostUSD   decimal.Decimal
}

// Repository persists usage counters. Increment must be atomic so concurrent
// requests from the same tenant never lose counts.
type Repository interface {
	Increment(ctx context.Context, tenantID, period string, delta Delta) error
	Get(ctx context.Context, tenantID, period string) (*Record, error)
	ResetPeriod(ctx context.Context, period string) error
}

// PeriodOf formats the billing period key for a point in time.
func PeriodOf(t time.Time) string {
	return t.UTC().Format("2006-01")
}

// Service wraps the repository with the current-period convention.
type Service struct {
	repo Repository
	now  func() time.Time
}

// NewService creates the usage service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo, now: time.Now}
}

// Increment applies a delta to the tenant's current period.
func (s *Service) Increment(ctx context.Context, tenantID string, delta Delta) error {
	return s.repo.Increment(ctx, tenantID, PeriodOf(s.now()), delta)
}

// Current returns the tenant's counters for the current period.
func (s *Service) Current(ctx context.Context, tenantID string) (*Record, error) {
	return s.repo.Get(ctx, tenantID, PeriodOf(s.now()))
}

// Rollover resets counters for the period that just started. Invoked by the
// scheduler on period boundaries.
func (s *Service) Rollover(ctx context.Context) error {
	return s.repo.ResetPeriod(ctx, PeriodOf(s.now()))
}
