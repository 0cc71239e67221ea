// Package status defines shared lifecycle status types for plans and operations.
package status

import "errors"

// PlanStatus represents the lifecycle status of an action plan.
type PlanStatus string

const (
	// Non-terminal states
	PlanDraft            PlanStatus = "draft"             // Created, not yet policy checked
	PlanPolicyApproved   PlanStatus = "policy_approved"   // Passed operation-level policy checks
	PlanAwaitingApproval PlanStatus = "awaiting_approval" // Blocked on a human decision
	PlanApproved         PlanStatus = "approved"          // Cleared for execution
	PlanExecuting        PlanStatus = "executing"         // Executor is running operations

	// Terminal states (no further transitions allowed)
	PlanCompleted PlanStatus = "completed" // All operations executed
	PlanFailed    PlanStatus = "failed"    // Simulation or execution failure
	PlanCancelled PlanStatus = "cancelled" // User, policy, or admin cancelled
	PlanExpired   PlanStatus = "expired"   // Approval deadline elapsed
)

// ErrInvalidTransition is returned when a status transition is not allowed.
var ErrInvalidTransition = errors.New("invalid status transition")

// planTransitions defines the allowed forward transitions. The plan lifecycle
// is monotonic except for explicit cancellation; completed and failed are
// immutable.
var planTransitions = map[PlanStatus][]PlanStatus{
	PlanDraft:            {PlanPolicyApproved, PlanCancelled, PlanExpired},
	PlanPolicyApproved:   {PlanAwaitingApproval, PlanApproved, PlanCancelled, PlanExpired},
	PlanAwaitingApproval: {PlanApproved, PlanCancelled, PlanExpired},
	PlanApproved:         {PlanExecuting, PlanCancelled, PlanExpired},
	PlanExecuting:        {PlanCompleted, PlanFailed, PlanCancelled},
	PlanCompleted:        {},
	PlanFailed:           {},
	PlanCancelled:        {},
	PlanExpired:          {},
}

// IsTerminal returns true if the status permits no further transitions.
func (s PlanStatus) IsTerminal() bool {
	return s == PlanCompleted || s == PlanFailed || s == PlanCancelled || s == PlanExpired
}

// Executable reports whether the executor may start operations for this status.
func (s PlanStatus) Executable() bool {
	return s == PlanApproved || s == PlanExecuting
}

// CanTransitionTo checks if a transition to target is valid.
func (s PlanStatus) CanTransitionTo(target PlanStatus) bool {
	for _, t := range planTransitions[s] {
		if t == target {
			return true
		}
	}
	return false
}

// TransitionTo attempts the transition and returns an error when it is not allowed.
func (s PlanStatus) TransitionTo(target PlanStatus) (PlanStatus, error) {
	if !s.CanTransitionTo(target) {
		return s, ErrInvalidTransition
	}
	return target, nil
}

// String returns the string representation of the status.
func (s PlanStatus) String() string {
	return string(s)
}

// OperationStatus represents the lifecycle status of a single plan operation.
type OperationStatus string

const (
	OpPending          OperationStatus = "pending"
	OpSimulating       OperationStatus = "simulating"
	OpSimulated        OperationStatus = "simulated"
	OpAwaitingApproval OperationStatus = "awaiting_approval"
	OpExecuting        OperationStatus = "executing"
	OpExecuted         OperationStatus = "executed"
	OpFailed           OperationStatus = "failed"
	OpSkipped          OperationStatus = "skipped" // Halted before start by an earlier failure
)

var opTransitions = map[OperationStatus][]OperationStatus{
	OpPending:          {OpSimulating, OpFailed, OpSkipped},
	OpSimulating:       {OpSimulated, OpFailed},
	OpSimulated:        {OpAwaitingApproval, OpExecuting, OpFailed, OpSkipped},
	OpAwaitingApproval: {OpExecuting, OpSkipped},
	OpExecuting:        {OpExecuted, OpFailed},
	OpExecuted:         {},
	OpFailed:           {},
	OpSkipped:          {},
}

// IsTerminal returns true if the operation can no longer change state.
func (s OperationStatus) IsTerminal() bool {
	return s == OpExecuted || s == OpFailed || s == OpSkipped
}

// CanTransitionTo checks if a transition to target is valid.
func (s OperationStatus) CanTransitionTo(target OperationStatus) bool {
	for _, t := range opTransitions[s] {
		if t == target {
			return true
		}
	}
	return false
}

// TransitionTo attempts the transition and returns an error when it is not allowed.
func (s OperationStatus) TransitionTo(target OperationStatus) (OperationStatus, error) {
	if !s.CanTransitionTo(target) {
		return s, ErrInvalidTransition
	}
	return target, nil
}

// String returns the string representation of the status.
func (s OperationStatus) String() string {
	return string(s)
}
