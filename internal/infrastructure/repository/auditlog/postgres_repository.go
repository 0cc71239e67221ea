// Package auditlog persists the append-only audit trail.
package auditlog

import (
	"context"
	"encoding/json"

	"gorm.io/gorm"

	"caremesh/services/agent-guard/internal/domain/audit"
	"caremesh/services/agent-guard/internal/domain/guarderrors"
	"caremesh/services/agent-guard/internal/infrastructure/database/entities"
)

// PostgresRepository appends and queries audit rows. There is no update or
// delete path here at all.
type PostgresRepository struct {
	db *gorm.DB
}

// NewPostgresRepository constructs the repository.
func NewPostgresRepository(db *gorm.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Append inserts one audit row.
func (r *PostgresRepository) Append(ctx context.Context, event *audit.Event) error {
	detail, err := json.Marshal(event.Detail)
	if err != nil {
		return guarderrors.New(ctx, guarderrors.LayerRepository, guarderrors.ErrorTypeInternal,
			"failed to marshal audit detail", err, "audit-append-map-001")
	}

	entity := &entities.AuditLog{
		PublicID:        event.ID,
		RequestPublicID: event.RequestID,
		TenantID:        event.TenantID,
		UserID:          event.UserID,
		Stage:           event.Stage,
		EventType:       string(event.Type),
		IncidentTag:     string(event.Tag),
		Detail:          detail,
		Sequence:        event.Sequence,
		CreatedAt:       event.CreatedAt,
	}
	if err := r.db.WithContext(ctx).Create(entity).Error; err != nil {
		return guarderrors.New(ctx, guarderrors.LayerRepository, guarderrors.ErrorTypeInternal,
			"failed to append audit event", err, "audit-append-db-001")
	}
	return nil
}

// Query returns matching rows ordered by creation time then sequence, plus
// the total match count for pagination.
func (r *PostgresRepository) Query(ctx context.Context, filter audit.Filter) ([]audit.Event, int64, error) {
	q := r.db.WithContext(ctx).Model(&entities.AuditLog{})
	if filter.TenantID != "" {
		q = q.Where("tenant_id = ?", filter.TenantID)
	}
	if filter.RequestID != "" {
		q = q.Where("request_public_id = ?", filter.RequestID)
	}
	if filter.Type != "" {
		q = q.Where("event_type = ?", string(filter.Type))
	}
	if filter.Tag != "" {
		q = q.Where("incident_tag = ?", string(filter.Tag))
	}
	if !filter.From.IsZero() {
		q = q.Where("created_at >= ?", filter.From)
	}
	if !filter.To.IsZero() {
		q = q.Where("created_at <= ?", filter.To)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, guarderrors.New(ctx, guarderrors.LayerRepository, guarderrors.ErrorTypeInternal,
			"failed to count audit events", err, "audit-query-db-001")
	}

	limit := filter.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}

	var rows []entities.AuditLog
	err := q.Order("created_at ASC, sequence ASC").
		Limit(limit).
		Offset(filter.Offset).
		Find(&rows).Error
	if err != nil {
		return nil, 0, guarderrors.New(ctx, guarderrors.LayerRepository, guarderrors.ErrorTypeInternal,
			"failed to query audit events", err, "audit-query-db-002")
	}

	out := make([]audit.Event, 0, len(rows))
	for _, row := range rows {
		var detail map[string]any
		if len(row.Detail) > 0 {
			if err := json.Unmarshal(row.Detail, &detail); err != nil {
				return nil, 0, guarderrors.New(ctx, guarderrors.LayerRepository, guarderrors.ErrorTypeInternal,
					"failed to unmarshal audit detail", err, "audit-query-map-001")
			}
		}
		out = append(out, audit.Event{
			ID:        row.PublicID,
			RequestID: row.RequestPublicID,
			TenantID:  row.TenantID,
			UserID:    row.UserID,
			Stage:     row.Stage,
			Type:      audit.EventType(row.EventType),
			Tag:       audit.IncidentTag(row.IncidentTag),
			Detail:    detail,
			Sequence:  row.Sequence,
			CreatedAt: row.CreatedAt,
		})
	}
	return out, total, nil
}
