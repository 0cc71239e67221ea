// Package tool defines the allowlisted operation catalog and the contract
// business-domain services implement for simulate and execute calls.
package tool

import "context"

// Request carries validated parameters to a tool backend call. Backends must
// be idempotent under retry with the same idempotency key.
type Request struct {
	IdempotencyKey string         `json:"idempotency_key"`
	TenantID       string         `json:"tenant_id"`
	Params         map[string]any `json:"params"`
}

// SimulationResult is the outcome of a dry-run. A simulation validates
// feasibility (schema, referential checks) without mutating state.
type SimulationResult struct {
	Feasible bool     `json:"feasible"`
	Summary  string   `json:"summary"`
	Warnings []string `json:"warnings,omitempty"`
}

// ExecutionResult is the outcome of a committed operation.
type ExecutionResult struct {
	Summary string         `json:"summary"`
	Output  map[string]any `json:"output,omitempty"`
}

// ValidationIssue is a structured parameter validation failure.
type ValidationIssue struct {
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

// Backend is implemented by the business platform. The registry dispatches to
// it by tool name after parameters have been validated against the tool schema.
type Backend interface {
	Simulate(ctx context.Context, toolName string, req Request) (*SimulationResult, error)
	Execute(ctx context.Context, toolName string, req Request) (*ExecutionResult, error)
}
