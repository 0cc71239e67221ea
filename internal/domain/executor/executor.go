// Package executor runs approved plans against the tool catalog: every
// operation is simulated first, and only a fully feasible plan is committed.
package executor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"caremesh/services/agent-guard/internal/domain/audit"
	"caremesh/services/agent-guard/internal/domain/guarderrors"
	"caremesh/services/agent-guard/internal/domain/plan"
	"caremesh/services/agent-guard/internal/domain/retry"
	"caremesh/services/agent-guard/internal/domain/status"
	"caremesh/services/agent-guard/internal/domain/tool"
)

// Breaker guards outbound tool calls per resource.
type Breaker interface {
	Execute(ctx context.Context, resource string, fn func() (any, error)) (any, error)
}

// Executor drives a plan through simulate-then-execute. A simulation failure
// anywhere fails the whole plan before any side effect happens; an execution
// failure halts the plan in place, preserving the results of completed
// operations.
type Executor struct {
	plans    plan.Repository
	registry *tool.Registry
	breaker  Breaker
	audit    *audit.Recorder
	policy   retry.Policy
	log      zerolog.Logger
	now      func() time.Time
}

// New creates an executor. The retry policy applies to execution only;
// simulations are not retried.
func New(plans plan.Repository, registry *tool.Registry, breaker Breaker, recorder *audit.Recorder, policy retry.Policy, log zerolog.Logger) *Executor {
	return &Executor{
		plans:    plans,
		registry: registry,
		breaker:  breaker,
		audit:    recorder,
		policy:   policy,
		log:      log.With().Str("component", "executor").Logger(),
		now:      time.Now,
	}
}

// Run executes p end to end and persists every state change. The caller must
// hand in a plan in approved status.
func (e *Executor) Run(ctx context.Context, p *plan.Plan) error {
	if p.Status != status.PlanApproved {
		return guarderrors.New(ctx, guarderrors.LayerDomain, guarderrors.ErrorTypeConflict,
			fmt.Sprintf("plan %s is %s, not approved", p.ID, p.Status), nil, "executor-run-001")
	}
	if err := e.transition(ctx, p, status.PlanExecuting); err != nil {
		return err
	}

	if err := e.simulateAll(ctx, p); err != nil {
		return err
	}
	return e.executeAll(ctx, p)
}

// simulateAll dry-runs every operation in sequence. Any infeasible or failed
// simulation fails the plan with zero side effects.
func (e *Executor) simulateAll(ctx context.Context, p *plan.Plan) error {
	for i := range p.Operations {
		op := &p.Operations[i]
		desc, err := e.registry.Lookup(ctx, op.ToolName)
		if err != nil {
			return e.failPlan(ctx, p, i, audit.EventSimulationFailed, err)
		}

		e.setOpStatus(op, status.OpSimulating)
		result, err := e.callSimulate(ctx, p, desc, op)
		if err != nil {
			e.setOpStatus(op, status.OpFailed)
			msg := err.Error()
			op.ErrorMessage = &msg
			return e.failPlan(ctx, p, i+1, audit.EventSimulationFailed, err)
		}
		if !result.Feasible {
			e.setOpStatus(op, status.OpFailed)
			msg := "simulation reported infeasible: " + result.Summary
			op.ErrorMessage = &msg
			infeasible := guarderrors.New(ctx, guarderrors.LayerDomain, guarderrors.ErrorTypeToolPermanent,
				msg, nil, "executor-simulate-001")
			return e.failPlan(ctx, p, i+1, audit.EventSimulationFailed, infeasible)
		}

		if op.Result == nil {
			op.Result = &plan.OperationResult{}
		}
		op.Result.Simulation = result
		e.setOpStatus(op, status.OpSimulated)
		e.record(ctx, p, audit.EventSimulationCompleted, map[string]any{
			"operation_id": op.ID,
			"tool":         op.ToolName,
			"summary":      result.Summary,
			"warnings":     result.Warnings,
		})
		if err := e.plans.Update(ctx, p); err != nil {
			return err
		}
	}
	return nil
}

// executeAll commits the simulated operations in order. Consecutive runs of
// independent operations execute concurrently; everything else is strictly
// sequential. Before each batch the persisted plan status is re-read so an
// admin cancellation lands between operations, not after the plan finishes.
func (e *Executor) executeAll(ctx context.Context, p *plan.Plan) error {
	for start := 0; start < len(p.Operations); {
		end := start + 1
		if p.Operations[start].Independent {
			for end < len(p.Operations) && p.Operations[end].Independent {
				end++
			}
		}

		if err := e.checkStillRunnable(ctx, p); err != nil {
			return e.failPlan(ctx, p, start, audit.EventExecutionFailed, err)
		}

		if err := e.runBatch(ctx, p, start, end); err != nil {
			return e.failPlan(ctx, p, end, audit.EventExecutionFailed, err)
		}
		if err := e.plans.Update(ctx, p); err != nil {
			return err
		}
		start = end
	}

	if err := e.transition(ctx, p, status.PlanCompleted); err != nil {
		return err
	}
	e.record(ctx, p, audit.EventExecutionCompleted, map[string]any{
		"operations": len(p.Operations),
	})
	return nil
}

func (e *Executor) runBatch(ctx context.Context, p *plan.Plan, start, end int) error {
	if end-start == 1 {
		return e.executeOp(ctx, p, &p.Operations[start])
	}

	g, gctx := errgroup.WithContext(ctx)
	for i := start; i < end; i++ {
		op := &p.Operations[i]
		g.Go(func() error {
			return e.executeOp(gctx, p, op)
		})
	}
	return g.Wait()
}

func (e *Executor) executeOp(ctx context.Context, p *plan.Plan, op *plan.Operation) error {
	desc, err := e.registry.Lookup(ctx, op.ToolName)
	if err != nil {
		return err
	}

	started := e.now().UTC()
	op.StartedAt = &started
	e.setOpStatus(op, status.OpExecuting)
	e.record(ctx, p, audit.EventToolInvoked, map[string]any{
		"operation_id":    op.ID,
		"tool":            op.ToolName,
		"idempotency_key": op.IdempotencyKey,
	})

	result, err := retry.ExecuteWithResult(ctx, e.policy, func(ctx context.Context, attempt int) (*tool.ExecutionResult, error) {
		if attempt > 0 {
			e.log.Warn().Str("plan_id", p.ID).Str("tool", op.ToolName).Int("attempt", attempt).Msg("retrying tool execution")
		}
		return e.callExecute(ctx, p, desc, op)
	})
	if err != nil {
		e.setOpStatus(op, status.OpFailed)
		msg := err.Error()
		op.ErrorMessage = &msg
		return err
	}

	if op.Result == nil {
		op.Result = &plan.OperationResult{}
	}
	op.Result.Execution = result
	e.setOpStatus(op, status.OpExecuted)
	return nil
}

// callSimulate routes the dry run through the breaker for the tool's
// category, so a flapping backend trips once for the whole category.
func (e *Executor) callSimulate(ctx context.Context, p *plan.Plan, desc *tool.Descriptor, op *plan.Operation) (*tool.SimulationResult, error) {
	out, err := e.breaker.Execute(ctx, resourceFor(desc), func() (any, error) {
		return desc.Simulate(ctx, tool.Request{
			IdempotencyKey: op.IdempotencyKey,
			TenantID:       p.TenantID,
			Params:         op.Params,
		})
	})
	if err != nil {
		return nil, err
	}
	return out.(*tool.SimulationResult), nil
}

func (e *Executor) callExecute(ctx context.Context, p *plan.Plan, desc *tool.Descriptor, op *plan.Operation) (*tool.ExecutionResult, error) {
	out, err := e.breaker.Execute(ctx, resourceFor(desc), func() (any, error) {
		return desc.Execute(ctx, tool.Request{
			IdempotencyKey: op.IdempotencyKey,
			TenantID:       p.TenantID,
			Params:         op.Params,
		})
	})
	if err != nil {
		return nil, err
	}
	return out.(*tool.ExecutionResult), nil
}

// checkStillRunnable re-reads the persisted plan and refuses to continue if
// it was cancelled or expired out from under the executor.
func (e *Executor) checkStillRunnable(ctx context.Context, p *plan.Plan) error {
	stored, err := e.plans.GetByID(ctx, p.ID)
	if err != nil {
		return err
	}
	if stored.Status == status.PlanCancelled || stored.Status == status.PlanExpired {
		return guarderrors.New(ctx, guarderrors.LayerDomain, guarderrors.ErrorTypeConflict,
			fmt.Sprintf("plan %s is %s, halting execution", p.ID, stored.Status), nil, "executor-run-002")
	}
	return nil
}

// failPlan marks every not-yet-started operation skipped, fails the plan, and
// emits the failure event. Completed operation results are left untouched so
// the audit trail shows exactly what committed before the halt.
func (e *Executor) failPlan(ctx context.Context, p *plan.Plan, fromIndex int, eventType audit.EventType, cause error) error {
	for i := fromIndex; i < len(p.Operations); i++ {
		op := &p.Operations[i]
		if op.Status == status.OpPending || op.Status == status.OpSimulated {
			e.setOpStatus(op, status.OpSkipped)
		}
	}

	msg := cause.Error()
	p.ErrorMessage = &msg
	if err := p.Transition(status.PlanFailed); err != nil {
		e.log.Error().Err(err).Str("plan_id", p.ID).Msg("invalid transition while failing plan")
	}
	if err := e.plans.Update(ctx, p); err != nil {
		e.log.Error().Err(err).Str("plan_id", p.ID).Msg("persisting failed plan")
	}
	e.record(ctx, p, eventType, map[string]any{
		"error": msg,
	})
	var ge *guarderrors.GuardError
	if errors.As(cause, &ge) {
		guarderrors.LogError(e.log, ge)
	} else {
		e.log.Error().Err(cause).Str("plan_id", p.ID).Msg("plan failed")
	}
	return cause
}

func (e *Executor) transition(ctx context.Context, p *plan.Plan, target status.PlanStatus) error {
	if err := p.Transition(target); err != nil {
		return guarderrors.New(ctx, guarderrors.LayerDomain, guarderrors.ErrorTypeConflict,
			err.Error(), err, "executor-transition-001")
	}
	return e.plans.Update(ctx, p)
}

func (e *Executor) setOpStatus(op *plan.Operation, target status.OperationStatus) {
	next, err := op.Status.TransitionTo(target)
	if err != nil {
		e.log.Error().Err(err).Str("operation_id", op.ID).Msg("invalid operation transition")
		return
	}
	op.Status = next
	if next.IsTerminal() || next == status.OpSimulated {
		now := e.now().UTC()
		op.CompletedAt = &now
	}
}

func (e *Executor) record(ctx context.Context, p *plan.Plan, eventType audit.EventType, detail map[string]any) {
	detail["plan_id"] = p.ID
	e.audit.Record(ctx, audit.Event{
		RequestID: p.RequestID,
		TenantID:  p.TenantID,
		UserID:    p.UserID,
		Stage:     "executor",
		Type:      eventType,
		Detail:    detail,
	})
}

func resourceFor(desc *tool.Descriptor) string {
	return "tool:" + string(desc.Category)
}
