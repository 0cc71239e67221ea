// Package tenantusage persists per-tenant usage counters.
package tenantusage

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"caremesh/services/agent-guard/internal/domain/guarderrors"
	"caremesh/services/agent-guard/internal/domain/usage"
	"caremesh/services/agent-guard/internal/infrastructure/database/entities"
)

// PostgresRepository provides persistence for usage counters.
type PostgresRepository struct {
	db *gorm.DB
}

// NewPostgresRepository constructs the repository.
func NewPostgresRepository(db *gorm.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Increment upserts the tenant's period row and adds the delta atomically.
func (r *PostgresRepository) Increment(ctx context.Context, tenantID, period string, delta usage.Delta) error {
	row := entities.TenantUsage{
		TenantID:         tenantID,
		Period:           period,
		Requests:         delta.Requests,
		Tokens:           delta.Tokens,
		ToolCalls:        delta.ToolCalls,
		EstimatedCostUSD: delta.CostUSD,
	}
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "tenant_id"}, {Name: "period"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"requests":           gorm.Expr("tenant_usage.requests + ?", delta.Requests),
			"tokens":             gorm.Expr("tenant_usage.tokens + ?", delta.Tokens),
			"tool_calls":         gorm.Expr("tenant_usage.tool_calls + ?", delta.ToolCalls),
			"estimated_cost_usd": gorm.Expr("tenant_usage.estimated_cost_usd + ?", delta.CostUSD),
			"updated_at":         gorm.Expr("NOW()"),
		}),
	}).Create(&row).Error
	if err != nil {
		return guarderrors.New(ctx, guarderrors.LayerRepository, guarderrors.ErrorTypeInternal,
			"failed to increment usage", err, "usage-incr-db-001")
	}
	return nil
}

// Get fetches the tenant's counters for a period. A missing row comes back as
// a zero record, not an error.
func (r *PostgresRepository) Get(ctx context.Context, tenantID, period string) (*usage.Record, error) {
	var row entities.TenantUsage
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND period = ?", tenantID, period).
		First(&row).Error
	if err == gorm.ErrRecordNotFound {
		return &usage.Record{TenantID: tenantID, Period: period}, nil
	}
	if err != nil {
		return nil, guarderrors.New(ctx, guarderrors.LayerRepository, guarderrors.ErrorTypeInternal,
			"failed to fetch usage", err, "usage-get-db-001")
	}
	return &usage.Record{
		TenantID:         row.TenantID,
		Period:           row.Period,
		Requests:         row.Requests,
		Tokens:           row.Tokens,
		ToolCalls:        row.ToolCalls,
		EstimatedCostUSD: row.EstimatedCostUSD,
		UpdatedAt:        row.UpdatedAt,
	}, nil
}

// ResetPeriod deletes counters for the given period.
func (r *PostgresRepository) ResetPeriod(ctx context.Context, period string) error {
	err := r.db.WithContext(ctx).
		Where("period = ?", period).
		Delete(&entities.TenantUsage{}).Error
	if err != nil {
		return guarderrors.New(ctx, guarderrors.LayerRepository, guarderrors.ErrorTypeInternal,
			"failed to reset usage period", err, "usage-reset-db-001")
	}
	return nil
}
