// Package request defines the persisted record of one guarded agent request.
package request

import (
	"context"
	"time"
)

// Outcome is the terminal disposition of a request, mirroring the response
// envelope kind returned to the caller.
type Outcome string

const (
	OutcomePending          Outcome = "pending"
	OutcomeClarification    Outcome = "clarification"
	OutcomeAwaitingApproval Outcome = "awaiting_approval"
	OutcomeCompleted        Outcome = "completed"
	OutcomeRejected         Outcome = "rejected"
	OutcomeCancelled        Outcome = "cancelled"
	OutcomeFailed           Outcome = "failed"
)

// Request is the durable record of one inbound request. The raw user text is
// stored encrypted at rest; everything else is metadata safe to index.
type Request struct {
	ID             string    `json:"id"`
	TenantID       string    `json:"tenant_id"`
	UserID         string    `json:"user_id"`
	Role           string    `json:"role"`
	ConversationID string    `json:"conversation_id"`
	EncryptedInput string    `json:"-"`
	IntentType     string    `json:"intent_type,omitempty"`
	Outcome        Outcome   `json:"outcome"`
	PlanID         *string   `json:"plan_id,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Repository persists request records.
type Repository interface {
	Create(ctx context.Context, r *Request) error
	Update(ctx context.Context, r *Request) error
	GetByID(ctx context.Context, id string) (*Request, error)
}
