// Package agentrequest persists guarded-request records.
package agentrequest

import (
	"context"

	"gorm.io/gorm"

	"caremesh/services/agent-guard/internal/domain/guarderrors"
	"caremesh/services/agent-guard/internal/domain/request"
	"caremesh/services/agent-guard/internal/infrastructure/database/entities"
)

// PostgresRepository provides persistence for agent requests.
type PostgresRepository struct {
	db *gorm.DB
}

// NewPostgresRepository constructs the repository.
func NewPostgresRepository(db *gorm.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create inserts a new request record.
func (r *PostgresRepository) Create(ctx context.Context, rec *request.Request) error {
	entity := mapToEntity(rec)
	if err := r.db.WithContext(ctx).Create(entity).Error; err != nil {
		return guarderrors.New(ctx, guarderrors.LayerRepository, guarderrors.ErrorTypeInternal,
			"failed to create request", err, "request-create-db-001")
	}
	return nil
}

// Update persists outcome and plan linkage changes.
func (r *PostgresRepository) Update(ctx context.Context, rec *request.Request) error {
	entity := mapToEntity(rec)
	updates := map[string]interface{}{
		"intent_type":    entity.IntentType,
		"outcome":        entity.Outcome,
		"plan_public_id": entity.PlanPublicID,
		"updated_at":     entity.UpdatedAt,
	}
	if err := r.db.WithContext(ctx).
		Model(&entities.AgentRequest{}).
		Where("public_id = ?", rec.ID).
		Updates(updates).Error; err != nil {
		return guarderrors.New(ctx, guarderrors.LayerRepository, guarderrors.ErrorTypeInternal,
			"failed to update request", err, "request-update-db-001")
	}
	return nil
}

// GetByID fetches a request by its public id.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*request.Request, error) {
	var entity entities.AgentRequest
	err := r.db.WithContext(ctx).Where("public_id = ?", id).First(&entity).Error
	if err == gorm.ErrRecordNotFound {
		return nil, guarderrors.New(ctx, guarderrors.LayerRepository, guarderrors.ErrorTypeNotFound,
			"request not found", err, "request-get-db-001")
	}
	if err != nil {
		return nil, guarderrors.New(ctx, guarderrors.LayerRepository, guarderrors.ErrorTypeInternal,
			"failed to fetch request", err, "request-get-db-002")
	}
	return mapToDomain(&entity), nil
}

func mapToEntity(rec *request.Request) *entities.AgentRequest {
	return &entities.AgentRequest{
		PublicID:       rec.ID,
		TenantID:       rec.TenantID,
		UserID:         rec.UserID,
		Role:           rec.Role,
		ConversationID: rec.ConversationID,
		EncryptedInput: rec.EncryptedInput,
		IntentType:     rec.IntentType,
		Outcome:        string(rec.Outcome),
		PlanPublicID:   rec.PlanID,
		CreatedAt:      rec.CreatedAt,
		UpdatedAt:      rec.UpdatedAt,
	}
}

func mapToDomain(entity *entities.AgentRequest) *request.Request {
	return &request.Request{
		ID:             entity.PublicID,
		TenantID:       entity.TenantID,
		UserID:         entity.UserID,
		Role:           entity.Role,
		ConversationID: entity.ConversationID,
		EncryptedInput: entity.EncryptedInput,
		IntentType:     entity.IntentType,
		Outcome:        request.Outcome(entity.Outcome),
		PlanID:         entity.PlanPublicID,
		CreatedAt:      entity.CreatedAt,
		UpdatedAt:      entity.UpdatedAt,
	}
}
