package database

import (
	"context"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"caremesh/services/agent-guard/internal/infrastructure/database/entities"
)

// AutoMigrate applies database schema changes for the guardrail domain.
func AutoMigrate(ctx context.Context, db *gorm.DB, log zerolog.Logger) error {
	if err := db.WithContext(ctx).AutoMigrate(
		&entities.AgentRequest{},
		&entities.Plan{},
		&entities.PlanOperation{},
		&entities.AuditLog{},
		&entities.TenantUsage{},
	); err != nil {
		return err
	}

	log.Info().Msg("database schema up to date")
	return nil
}
