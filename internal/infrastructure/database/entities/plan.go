package entities

import (
	"time"

	"gorm.io/datatypes"
)

// TableName specifies the table name for Plan.
func (Plan) TableName() string {
	return "plans"
}

// Plan represents the persisted plan record.
type Plan struct {
	ID               uint      `gorm:"primaryKey"`
	PublicID         string    `gorm:"uniqueIndex;size:64"`
	RequestPublicID  string    `gorm:"uniqueIndex;size:64"`
	TenantID         string    `gorm:"size:64;index:idx_plan_tenant"`
	UserID           string    `gorm:"size:64;index"`
	IntentType       string    `gorm:"size:64"`
	Summary          string    `gorm:"type:text"`
	Status           string    `gorm:"size:32;index:idx_plan_status"`
	Risk             string    `gorm:"size:16"`
	ApprovalDeadline time.Time `gorm:"index:idx_plan_deadline"`
	ApprovedBy       *string   `gorm:"size:64"`
	ErrorMessage     *string   `gorm:"type:text"`
	CreatedAt        time.Time
	UpdatedAt        time.Time
	CompletedAt      *time.Time

	// Relations
	Operations []PlanOperation `gorm:"foreignKey:PlanID"`
}

// TableName specifies the table name for PlanOperation.
func (PlanOperation) TableName() string {
	return "plan_operations"
}

// PlanOperation represents one persisted tool call inside a plan.
type PlanOperation struct {
	ID             uint           `gorm:"primaryKey"`
	PublicID       string         `gorm:"uniqueIndex;size:64"`
	PlanID         uint           `gorm:"index"`
	Plan           *Plan          `gorm:"foreignKey:PlanID"`
	Sequence       int            `gorm:"default:0"`
	ToolName       string         `gorm:"size:64;index:idx_operation_tool"`
	Params         datatypes.JSON `gorm:"type:jsonb"`
	Risk           string         `gorm:"size:16"`
	Mode           string         `gorm:"size:16"`
	Independent    bool           `gorm:"default:false"`
	IdempotencyKey string         `gorm:"uniqueIndex;size:96"`
	Status         string         `gorm:"size:32;index:idx_operation_status"`
	Result         datatypes.JSON `gorm:"type:jsonb"`
	ErrorMessage   *string        `gorm:"type:text"`
	StartedAt      *time.Time
	CompletedAt    *time.Time
}
