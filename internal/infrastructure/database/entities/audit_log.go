package entities

import (
	"time"

	"gorm.io/datatypes"
)

// TableName specifies the table name for AuditLog.
func (AuditLog) TableName() string {
	return "audit_logs"
}

// AuditLog represents one append-only audit row. Rows are inserted once and
// never updated; there is no soft-delete column on purpose.
type AuditLog struct {
	ID              uint           `gorm:"primaryKey"`
	PublicID        string         `gorm:"uniqueIndex;size:64"`
	RequestPublicID string         `gorm:"size:64;index:idx_audit_request"`
	TenantID        string         `gorm:"size:64;index:idx_audit_tenant"`
	UserID          string         `gorm:"size:64"`
	Stage           string         `gorm:"size:32"`
	EventType       string         `gorm:"size:48;index:idx_audit_type"`
	IncidentTag     string         `gorm:"size:32;index:idx_audit_tag"`
	Detail          datatypes.JSON `gorm:"type:jsonb"`
	Sequence        int            `gorm:"default:0"`
	CreatedAt       time.Time      `gorm:"index:idx_audit_created"`
}
