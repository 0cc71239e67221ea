// Package plan defines action plans, their operations, and the planner that
// maps validated intents onto the tool catalog.
package plan

import (
	"context"
	"time"

	"caremesh/services/agent-guard/internal/domain/intent"
	"caremesh/services/agent-guard/internal/domain/risk"
	"caremesh/services/agent-guard/internal/domain/status"
	"caremesh/services/agent-guard/internal/domain/tool"
)

// ExecutionMode distinguishes a dry-run from a committed call.
type ExecutionMode string

const (
	ModeSimulate ExecutionMode = "simulate"
	ModeExecute  ExecutionMode = "execute"
)

// OperationResult captures the outcome of both halves of an operation.
type OperationResult struct {
	Simulation *tool.SimulationResult `json:"simulation,omitempty"`
	Execution  *tool.ExecutionResult  `json:"execution,omitempty"`
}

// Operation is one allowlisted tool call inside a plan.
type Operation struct {
	ID             string                 `json:"id"`
	PlanID         string                 `json:"plan_id"`
	Sequence       int                    `json:"sequence"`
	ToolName       string                 `json:"tool_name"`
	Params         map[string]any         `json:"params"`
	Risk           risk.Level             `json:"risk"`
	Mode           ExecutionMode          `json:"mode"`
	Independent    bool                   `json:"independent"`
	IdempotencyKey string                 `json:"idempotency_key"`
	Status         status.OperationStatus `json:"status"`
	Result         *OperationResult       `json:"result,omitempty"`
	ErrorMessage   *string                `json:"error_message,omitempty"`
	StartedAt      *time.Time             `json:"started_at,omitempty"`
	CompletedAt    *time.Time             `json:"completed_at,omitempty"`
}

// Plan is an ordered sequence of operations proposed to satisfy one intent.
// Plan risk is the max of its operations' risk.
type Plan struct {
	ID               string            `json:"id"`
	RequestID        string            `json:"request_id"`
	TenantID         string            `json:"tenant_id"`
	UserID           string            `json:"user_id"`
	IntentType       intent.Type       `json:"intent_type"`
	Summary          string            `json:"summary"`
	Status           status.PlanStatus `json:"status"`
	Risk             risk.Level        `json:"risk"`
	Operations       []Operation       `json:"operations"`
	ApprovalDeadline time.Time         `json:"approval_deadline"`
	ApprovedBy       *string           `json:"approved_by,omitempty"`
	ErrorMessage     *string           `json:"error_message,omitempty"`
	CreatedAt        time.Time         `json:"created_at"`
	UpdatedAt        time.Time         `json:"updated_at"`
	CompletedAt      *time.Time        `json:"completed_at,omitempty"`
}

// ApprovalExpired reports whether the approval window has elapsed. A plan past
// its deadline must never execute, even if approval arrives afterwards.
func (p *Plan) ApprovalExpired(now time.Time) bool {
	return !p.Status.Executable() && !p.Status.IsTerminal() && now.After(p.ApprovalDeadline)
}

// Transition moves the plan to the target status, enforcing the lifecycle.
func (p *Plan) Transition(target status.PlanStatus) error {
	next, err := p.Status.TransitionTo(target)
	if err != nil {
		return err
	}
	p.Status = next
	now := time.Now().UTC()
	p.UpdatedAt = now
	if next.IsTerminal() {
		p.CompletedAt = &now
	}
	return nil
}

// Repository persists plans. Update must persist the full operation state so
// completed results survive a mid-plan failure for compensation and audit.
type Repository interface {
	Create(ctx context.Context, p *Plan) error
	Update(ctx context.Context, p *Plan) error
	GetByID(ctx context.Context, id string) (*Plan, error)
	GetByRequestID(ctx context.Context, requestID string) (*Plan, error)
	ListApprovalExpired(ctx context.Context, now time.Time) ([]*Plan, error)
}
