// Package webhook notifies external systems about plan lifecycle events,
// most importantly that a plan is waiting on a human approver.
package webhook

import (
	"context"

	"caremesh/services/agent-guard/internal/domain/plan"
)

// Service handles webhook notifications for plan events.
type Service interface {
	// NotifyApprovalRequested fires when a plan enters awaiting_approval.
	NotifyApprovalRequested(ctx context.Context, p *plan.Plan) error

	// NotifyPlanCompleted fires when a plan finishes executing.
	NotifyPlanCompleted(ctx context.Context, p *plan.Plan) error

	// NotifyPlanFailed fires when a plan fails, expires, or is cancelled.
	NotifyPlanFailed(ctx context.Context, p *plan.Plan, errorCode, errorMessage string) error
}

// ErrorDetails contains machine readable error info.
type ErrorDetails struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Payload is the structure sent to webhook URLs.
type Payload struct {
	PlanID           string        `json:"plan_id"`
	RequestID        string        `json:"request_id"`
	TenantID         string        `json:"tenant_id"`
	Event            string        `json:"event"`
	Status           string        `json:"status"`
	Risk             string        `json:"risk"`
	Summary          string        `json:"summary"`
	ApprovalDeadline *string       `json:"approval_deadline,omitempty"`
	Error            *ErrorDetails `json:"error,omitempty"`
}

// Noop discards every notification. Used when no webhook URL is configured.
type Noop struct{}

func (Noop) NotifyApprovalRequested(context.Context, *plan.Plan) error { return nil }
func (Noop) NotifyPlanCompleted(context.Context, *plan.Plan) error     { return nil }
func (Noop) NotifyPlanFailed(context.Context, *plan.Plan, string, string) error {
	return nil
}
