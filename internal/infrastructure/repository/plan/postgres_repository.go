// Package plan persists action plans and their operations.
package plan

import (
	"context"
	"encoding/json"
	"time"

	"gorm.io/gorm"

	domain "caremesh/services/agent-guard/internal/domain/plan"
	"caremesh/services/agent-guard/internal/domain/guarderrors"
	"caremesh/services/agent-guard/internal/domain/intent"
	"caremesh/services/agent-guard/internal/domain/risk"
	"caremesh/services/agent-guard/internal/domain/status"
	"caremesh/services/agent-guard/internal/infrastructure/database/entities"
)

// PostgresRepository provides persistence for plans.
type PostgresRepository struct {
	db *gorm.DB
}

// NewPostgresRepository constructs the repository.
func NewPostgresRepository(db *gorm.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create inserts a new plan record with its operations.
func (r *PostgresRepository) Create(ctx context.Context, p *domain.Plan) error {
	entity, err := mapPlanToEntity(p)
	if err != nil {
		return guarderrors.New(ctx, guarderrors.LayerRepository, guarderrors.ErrorTypeInternal,
			"failed to map plan to entity", err, "plan-create-map-001")
	}

	if err := r.db.WithContext(ctx).Create(entity).Error; err != nil {
		return guarderrors.New(ctx, guarderrors.LayerRepository, guarderrors.ErrorTypeInternal,
			"failed to create plan", err, "plan-create-db-001")
	}
	return nil
}

// Update persists the full plan and operation state in one transaction, so a
// mid-plan failure never leaves the stored operations out of step.
func (r *PostgresRepository) Update(ctx context.Context, p *domain.Plan) error {
	entity, err := mapPlanToEntity(p)
	if err != nil {
		return guarderrors.New(ctx, guarderrors.LayerRepository, guarderrors.ErrorTypeInternal,
			"failed to map plan to entity for update", err, "plan-update-map-001")
	}

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		updates := map[string]interface{}{
			"status":        entity.Status,
			"risk":          entity.Risk,
			"summary":       entity.Summary,
			"approved_by":   entity.ApprovedBy,
			"error_message": entity.ErrorMessage,
			"updated_at":    entity.UpdatedAt,
			"completed_at":  entity.CompletedAt,
		}
		if err := tx.Model(&entities.Plan{}).
			Where("public_id = ?", p.ID).
			Updates(updates).Error; err != nil {
			return guarderrors.New(ctx, guarderrors.LayerRepository, guarderrors.ErrorTypeInternal,
				"failed to update plan", err, "plan-update-db-001")
		}

		for _, op := range entity.Operations {
			opUpdates := map[string]interface{}{
				"status":        op.Status,
				"mode":          op.Mode,
				"result":        op.Result,
				"error_message": op.ErrorMessage,
				"started_at":    op.StartedAt,
				"completed_at":  op.CompletedAt,
			}
			if err := tx.Model(&entities.PlanOperation{}).
				Where("public_id = ?", op.PublicID).
				Updates(opUpdates).Error; err != nil {
				return guarderrors.New(ctx, guarderrors.LayerRepository, guarderrors.ErrorTypeInternal,
					"failed to update plan operation", err, "plan-update-db-002")
			}
		}
		return nil
	})
}

// GetByID fetches a plan by its public id.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*domain.Plan, error) {
	return r.getOne(ctx, "public_id = ?", id)
}

// GetByRequestID fetches the plan created for a request, if any.
func (r *PostgresRepository) GetByRequestID(ctx context.Context, requestID string) (*domain.Plan, error) {
	return r.getOne(ctx, "request_public_id = ?", requestID)
}

func (r *PostgresRepository) getOne(ctx context.Context, query string, arg string) (*domain.Plan, error) {
	var entity entities.Plan
	err := r.db.WithContext(ctx).
		Preload("Operations", func(db *gorm.DB) *gorm.DB {
			return db.Order("sequence ASC")
		}).
		Where(query, arg).
		First(&entity).Error
	if err == gorm.ErrRecordNotFound {
		return nil, guarderrors.New(ctx, guarderrors.LayerRepository, guarderrors.ErrorTypeNotFound,
			"plan not found", err, "plan-get-db-001")
	}
	if err != nil {
		return nil, guarderrors.New(ctx, guarderrors.LayerRepository, guarderrors.ErrorTypeInternal,
			"failed to fetch plan", err, "plan-get-db-002")
	}
	return mapEntityToPlan(&entity)
}

// ListApprovalExpired returns non-terminal plans whose approval deadline has
// passed, for the expiry sweeper.
func (r *PostgresRepository) ListApprovalExpired(ctx context.Context, now time.Time) ([]*domain.Plan, error) {
	var rows []entities.Plan
	err := r.db.WithContext(ctx).
		Preload("Operations").
		Where("status IN ?", []string{
			status.PlanDraft.String(),
			status.PlanPolicyApproved.String(),
			status.PlanAwaitingApproval.String(),
		}).
		Where("approval_deadline < ?", now.UTC()).
		Find(&rows).Error
	if err != nil {
		return nil, guarderrors.New(ctx, guarderrors.LayerRepository, guarderrors.ErrorTypeInternal,
			"failed to list expired plans", err, "plan-list-db-001")
	}

	out := make([]*domain.Plan, 0, len(rows))
	for i := range rows {
		p, err := mapEntityToPlan(&rows[i])
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

func mapPlanToEntity(p *domain.Plan) (*entities.Plan, error) {
	entity := &entities.Plan{
		PublicID:         p.ID,
		RequestPublicID:  p.RequestID,
		TenantID:         p.TenantID,
		UserID:           p.UserID,
		IntentType:       string(p.IntentType),
		Summary:          p.Summary,
		Status:           p.Status.String(),
		Risk:             string(p.Risk),
		ApprovalDeadline: p.ApprovalDeadline,
		ApprovedBy:       p.ApprovedBy,
		ErrorMessage:     p.ErrorMessage,
		CreatedAt:        p.CreatedAt,
		UpdatedAt:        p.UpdatedAt,
		CompletedAt:      p.CompletedAt,
	}

	for _, op := range p.Operations {
		params, err := json.Marshal(op.Params)
		if err != nil {
			return nil, err
		}
		var result []byte
		if op.Result != nil {
			result, err = json.Marshal(op.Result)
			if err != nil {
				return nil, err
			}
		}
		entity.Operations = append(entity.Operations, entities.PlanOperation{
			PublicID:       op.ID,
			Sequence:       op.Sequence,
			ToolName:       op.ToolName,
			Params:         params,
			Risk:           string(op.Risk),
			Mode:           string(op.Mode),
			Independent:    op.Independent,
			IdempotencyKey: op.IdempotencyKey,
			Status:         op.Status.String(),
			Result:         result,
			ErrorMessage:   op.ErrorMessage,
			StartedAt:      op.StartedAt,
			CompletedAt:    op.CompletedAt,
		})
	}
	return entity, nil
}

func mapEntityToPlan(entity *entities.Plan) (*domain.Plan, error) {
	p := &domain.Plan{
		ID:               entity.PublicID,
		RequestID:        entity.RequestPublicID,
		TenantID:         entity.TenantID,
		UserID:           entity.UserID,
		IntentType:       intent.Type(entity.IntentType),
		Summary:          entity.Summary,
		Status:           status.PlanStatus(entity.Status),
		Risk:             risk.Level(entity.Risk),
		ApprovalDeadline: entity.ApprovalDeadline,
		ApprovedBy:       entity.ApprovedBy,
		ErrorMessage:     entity.ErrorMessage,
		CreatedAt:        entity.CreatedAt,
		UpdatedAt:        entity.UpdatedAt,
		CompletedAt:      entity.CompletedAt,
	}

	for _, op := range entity.Operations {
		var params map[string]any
		if len(op.Params) > 0 {
			if err := json.Unmarshal(op.Params, &params); err != nil {
				return nil, err
			}
		}
		var result *domain.OperationResult
		if len(op.Result) > 0 {
			result = &domain.OperationResult{}
			if err := json.Unmarshal(op.Result, result); err != nil {
				return nil, err
			}
		}
		p.Operations = append(p.Operations, domain.Operation{
			ID:             op.PublicID,
			PlanID:         entity.PublicID,
			Sequence:       op.Sequence,
			ToolName:       op.ToolName,
			Params:         params,
			Risk:           risk.Level(op.Risk),
			Mode:           domain.ExecutionMode(op.Mode),
			Independent:    op.Independent,
			IdempotencyKey: op.IdempotencyKey,
			Status:         status.OperationStatus(op.Status),
			Result:         result,
			ErrorMessage:   op.ErrorMessage,
			StartedAt:      op.StartedAt,
			CompletedAt:    op.CompletedAt,
		})
	}
	return p, nil
}
