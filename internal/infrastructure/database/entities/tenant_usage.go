package entities

import (
	"time"

	"github.com/shopspring/decimal"
)

// TableName specifies the table name for TenantUsage.
func (TenantUsage) TableName() string {
	return "tenant_usage"
}

// TenantUsage represents per-tenant, per-period usage counters.
type TenantUsage struct {
	ID               uint            `gorm:"primaryKey"`
	TenantID         string          `gorm:"size:64;uniqueIndex:idx_usage_tenant_period"`
	Period           string          `gorm:"size:16;uniqueIndex:idx_usage_tenant_period"`
	Requests         int64           `gorm:"default:0"`
	Tokens           int64           `gorm:"default:0"`
	ToolCalls        int64           `gorm:"default:0"`
	EstimatedCostUSD decimal.Decimal `gorm:"type:numeric(12,4)"`
	UpdatedAt        time.Time
}
