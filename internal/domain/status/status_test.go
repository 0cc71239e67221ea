package status_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"caremesh/services/agent-guard/internal/domain/status"
)

func TestPlanStatus_HappyPathWithApproval(t *testing.T) {
	path := []status.PlanStatus{
		status.PlanPolicyApproved,
		status.PlanAwaitingApproval,
		status.PlanApproved,
		status.PlanExecuting,
		status.PlanCompleted,
	}

	current := status.PlanDraft
	for _, next := range path {
		var err error
		current, err = current.TransitionTo(next)
		require.NoError(t, err, "transition to %s", next)
	}
	assert.True(t, current.IsTerminal())
}

func TestPlanStatus_AutoExecutionSkipsApprovalGate(t *testing.T) {
	// Low and medium risk plans go policy_approved -> approved directly.
	current, err := status.PlanPolicyApproved.TransitionTo(status.PlanApproved)
	require.NoError(t, err)
	assert.Equal(t, status.PlanApproved, current)
}

func TestPlanStatus_TerminalStatesAreImmutable(t *testing.T) {
	terminals := []status.PlanStatus{
		status.PlanCompleted, status.PlanFailed, status.PlanCancelled, status.PlanExpired,
	}
	targets := []status.PlanStatus{
		status.PlanDraft, status.PlanApproved, status.PlanExecuting,
		status.PlanCompleted, status.PlanCancelled, status.PlanExpired,
	}

	for _, from := range terminals {
		assert.True(t, from.IsTerminal())
		for _, to := range targets {
			_, err := from.TransitionTo(to)
			assert.ErrorIs(t, err, status.ErrInvalidTransition, "%s -> %s", from, to)
		}
	}
}

func TestPlanStatus_ExpiryReachableUntilExecutionStarts(t *testing.T) {
	expirable := []status.PlanStatus{
		status.PlanDraft, status.PlanPolicyApproved, status.PlanAwaitingApproval, status.PlanApproved,
	}
	for _, from := range expirable {
		assert.True(t, from.CanTransitionTo(status.PlanExpired), "%s should expire", from)
	}

	// A plan that has started executing fails or cancels, it never expires.
	assert.False(t, status.PlanExecuting.CanTransitionTo(status.PlanExpired))
	assert.True(t, status.PlanExecuting.CanTransitionTo(status.PlanCancelled))
}

func TestPlanStatus_NoBackwardsTransitions(t *testing.T) {
	assert.False(t, status.PlanApproved.CanTransitionTo(status.PlanDraft))
	assert.False(t, status.PlanExecuting.CanTransitionTo(status.PlanAwaitingApproval))
	assert.False(t, status.PlanAwaitingApproval.CanTransitionTo(status.PlanPolicyApproved))
	assert.False(t, status.PlanDraft.CanTransitionTo(status.PlanExecuting))
}

func TestPlanStatus_Executable(t *testing.T) {
	assert.True(t, status.PlanApproved.Executable())
	assert.True(t, status.PlanExecuting.Executable())
	assert.False(t, status.PlanAwaitingApproval.Executable())
	assert.False(t, status.PlanCompleted.Executable())
	assert.False(t, status.PlanDraft.Executable())
}

func TestOperationStatus_SimulateThenExecutePath(t *testing.T) {
	path := []status.OperationStatus{
		status.OpSimulating, status.OpSimulated, status.OpExecuting, status.OpExecuted,
	}

	current := status.OpPending
	for _, next := range path {
		var err error
		current, err = current.TransitionTo(next)
		require.NoError(t, err, "transition to %s", next)
	}
	assert.True(t, current.IsTerminal())
}

func TestOperationStatus_SkipBypassesSimulation(t *testing.T) {
	// Operations after a failed one are skipped from pending or simulated.
	assert.True(t, status.OpPending.CanTransitionTo(status.OpSkipped))
	assert.True(t, status.OpSimulated.CanTransitionTo(status.OpSkipped))
	assert.False(t, status.OpExecuting.CanTransitionTo(status.OpSkipped))
}

func TestOperationStatus_ExecutionRequiresSimulation(t *testing.T) {
	assert.False(t, status.OpPending.CanTransitionTo(status.OpExecuting))
	assert.False(t, status.OpPending.CanTransitionTo(status.OpExecuted))
	assert.True(t, status.OpSimulated.CanTransitionTo(status.OpExecuting))
}

func TestOperationStatus_TerminalStatesAreImmutable(t *testing.T) {
	for _, from := range []status.OperationStatus{status.OpExecuted, status.OpFailed, status.OpSkipped} {
		assert.True(t, from.IsTerminal())
		_, err := from.TransitionTo(status.OpPending)
		assert.ErrorIs(t, err, status.ErrInvalidTransition)
	}
}
