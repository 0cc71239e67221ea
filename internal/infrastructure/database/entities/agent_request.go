package entities

import (
	"time"
)

// TableName specifies the table name for AgentRequest.
func (AgentRequest) TableName() string {
	return "agent_requests"
}

// AgentRequest represents the persisted guarded-request record. The raw user
// text is stored AES-GCM encrypted in EncryptedInput.
type AgentRequest struct {
	ID             uint    `gorm:"primaryKey"`
	PublicID       string  `gorm:"uniqueIndex;size:64"`
	TenantID       string  `gorm:"size:64;index:idx_request_tenant"`
	UserID         string  `gorm:"size:64;index"`
	Role           string  `gorm:"size:32"`
	ConversationID string  `gorm:"size:64;index"`
	EncryptedInput string  `gorm:"type:text"`
	IntentType     string  `gorm:"size:64"`
	Outcome        string  `gorm:"size:32;index:idx_request_outcome"`
	PlanPublicID   *string `gorm:"size:64;index"`
	CreatedAt      time.Time
	UpdatedAt      time.Time
}
