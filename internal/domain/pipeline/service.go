// Package pipeline chains every guardrail stage around one agent request:
// kill switch, rate limit, intent refinement, policy, planning, approval,
// and execution, with an audit event at every decision point.
package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"caremesh/services/agent-guard/internal/domain/audit"
	"caremesh/services/agent-guard/internal/domain/guarderrors"
	"caremesh/services/agent-guard/internal/domain/intent"
	"caremesh/services/agent-guard/internal/domain/plan"
	"caremesh/services/agent-guard/internal/domain/policy"
	"caremesh/services/agent-guard/internal/domain/request"
	"caremesh/services/agent-guard/internal/domain/status"
	"caremesh/services/agent-guard/internal/domain/tool"
	"caremesh/services/agent-guard/internal/domain/usage"
	"caremesh/services/agent-guard/internal/infrastructure/killswitch"
	"caremesh/services/agent-guard/internal/infrastructure/metrics"
	"caremesh/services/agent-guard/internal/infrastructure/ratelimit"
	"caremesh/services/agent-guard/internal/utils/crypto"
	"caremesh/services/agent-guard/internal/webhook"
)

// RateLimitCapability is the budget key the pipeline draws from.
const RateLimitCapability = "actions"

// EnvelopeKind tells the caller what the response body carries.
type EnvelopeKind string

const (
	KindClarification    EnvelopeKind = "clarification"
	KindAwaitingApproval EnvelopeKind = "awaiting_approval"
	KindCompleted        EnvelopeKind = "completed"
	KindRejected         EnvelopeKind = "rejected"
	KindCancelled        EnvelopeKind = "cancelled"
	KindFailed           EnvelopeKind = "failed"
)

// Envelope is the pipeline's answer for one request.
type Envelope struct {
	Kind      EnvelopeKind     `json:"kind"`
	RequestID string           `json:"request_id"`
	Message   string           `json:"message,omitempty"`
	Plan      *plan.Plan       `json:"plan,omitempty"`
	Decision  *policy.Decision `json:"decision,omitempty"`
}

// Refiner is the intent stage as seen by the pipeline.
type Refiner interface {
	Refine(ctx context.Context, req intent.Request) (*intent.Result, error)
}

// Executor runs an approved plan.
type Executor interface {
	Run(ctx context.Context, p *plan.Plan) error
}

// ComplianceResolver answers per-tenant compliance facts consumed by policy
// rules, e.g. whether consent is on file.
type ComplianceResolver func(tenantID string) map[string]bool

// DefaultCompliance assumes a fully onboarded tenant.
func DefaultCompliance(string) map[string]bool {
	return map[string]bool{
		"consent_recorded":  true,
		"data_residency_ok": true,
	}
}

// Service wires the guardrail stages together. Every stage either passes the
// request forward or stops it with a typed, audited outcome.
type Service struct {
	gate       *killswitch.Gate
	limiter    *ratelimit.Limiter
	requests   request.Repository
	refiner    Refiner
	policies   *policy.Engine
	planner    *plan.Planner
	plans      plan.Repository
	executor   Executor
	registry   *tool.Registry
	audit      *audit.Recorder
	usage      *usage.Service
	webhooks   webhook.Service
	compliance ComplianceResolver
	secret     string
	log        zerolog.Logger
	now        func() time.Time
}

// Deps collects the service's collaborators.
type Deps struct {
	Gate       *killswitch.Gate
	Limiter    *ratelimit.Limiter
	Requests   request.Repository
	Refiner    Refiner
	Policies   *policy.Engine
	Planner    *plan.Planner
	Plans      plan.Repository
	Executor   Executor
	Registry   *tool.Registry
	Audit      *audit.Recorder
	Usage      *usage.Service
	Webhooks   webhook.Service
	Compliance ComplianceResolver
	// Secret encrypts raw user input at rest.
	Secret string
}

// NewService creates the pipeline service.
func NewService(deps Deps, log zerolog.Logger) *Service {
	compliance := deps.Compliance
	if compliance == nil {
		compliance = DefaultCompliance
	}
	webhooks := deps.Webhooks
	if webhooks == nil {
		webhooks = webhook.Noop{}
	}
	return &Service{
		gate:       deps.Gate,
		limiter:    deps.Limiter,
		requests:   deps.Requests,
		refiner:    deps.Refiner,
		policies:   deps.Policies,
		planner:    deps.Planner,
		plans:      deps.Plans,
		executor:   deps.Executor,
		registry:   deps.Registry,
		audit:      deps.Audit,
		usage:      deps.Usage,
		webhooks:   webhooks,
		compliance: compliance,
		secret:     deps.Secret,
		log:        log.With().Str("component", "pipeline").Logger(),
		now:        time.Now,
	}
}

// SubmitInput is one inbound agent request.
type SubmitInput struct {
	TenantID       string
	UserID         string
	Role           string
	ConversationID string
	Text           string
}

// Submit runs one request through the full pipeline. Policy denials,
// clarifications, and approval waits come back as envelopes; only guardrail
// stops (kill switch, rate limit) and infrastructure faults are errors.
func (s *Service) Submit(ctx context.Context, in SubmitInput) (*Envelope, error) {
	requestID := uuid.New().String()
	ctx = guarderrors.WithRequestID(ctx, requestID)
	defer s.audit.CloseRequest(requestID)

	// The kill switch is checked before anything else touches the request,
	// so an engaged switch leaves exactly one audit event behind.
	if blocked, capability := s.gate.Blocked(ctx, killswitch.CapabilityActions); blocked {
		metrics.KillSwitchBlocksTotal.WithLabelValues(string(capability)).Inc()
		s.record(ctx, requestID, in.TenantID, in.UserID, "killswitch", audit.EventKillSwitchBlocked, map[string]any{
			"capability": string(capability),
		})
		return nil, guarderrors.New(ctx, guarderrors.LayerPipeline, guarderrors.ErrorTypeKillSwitchActive,
			fmt.Sprintf("the %s capability is disabled by an operator", capability), nil, "pipeline-killswitch-001")
	}

	limit, err := s.limiter.Allow(ctx, RateLimitCapability, in.TenantID, in.UserID)
	if err != nil {
		return nil, guarderrors.AsError(ctx, guarderrors.LayerPipeline, err, "rate limit check failed")
	}
	if !limit.Allowed {
		metrics.RateLimitedTotal.WithLabelValues(RateLimitCapability).Inc()
		s.record(ctx, requestID, in.TenantID, in.UserID, "ratelimit", audit.EventRateLimited, map[string]any{
			"capability": RateLimitCapability,
			"limit":      limit.Limit,
			"reset_at":   limit.ResetAt,
		})
		return nil, guarderrors.New(ctx, guarderrors.LayerPipeline, guarderrors.ErrorTypeRateLimited,
			"request budget exhausted for this window", nil, "pipeline-ratelimit-001").
			WithContext(map[string]any{"limit": limit.Limit, "reset_at": limit.ResetAt})
	}

	rec, err := s.persistRequest(ctx, requestID, in)
	if err != nil {
		return nil, err
	}
	s.record(ctx, requestID, in.TenantID, in.UserID, "intake", audit.EventRequestReceived, map[string]any{
		"conversation_id": in.ConversationID,
		"role":            in.Role,
	})

	envelope, err := s.run(ctx, requestID, in, rec)
	if err != nil {
		s.finishRequest(ctx, rec, request.OutcomeFailed)
		return nil, err
	}
	metrics.PipelineOutcomes.WithLabelValues(string(envelope.Kind)).Inc()
	return envelope, nil
}

func (s *Service) run(ctx context.Context, requestID string, in SubmitInput, rec *request.Request) (*Envelope, error) {
	refined, err := s.refineStage(ctx, requestID, in)
	if err != nil {
		return nil, err
	}
	if err := s.usage.Increment(ctx, in.TenantID, usage.Delta{Requests: 1, Tokens: int64(refined.Tokens)}); err != nil {
		s.log.Warn().Err(err).Str("tenant_id", in.TenantID).Msg("usage increment failed")
	}
	metrics.ModelTokensTotal.Add(float64(refined.Tokens))

	out := refined.Output
	rec.IntentType = string(out.Type)

	switch out.Status {
	case intent.StatusCancelled:
		s.finishRequest(ctx, rec, request.OutcomeCancelled)
		return &Envelope{Kind: KindCancelled, RequestID: requestID, Message: "request cancelled"}, nil
	case intent.StatusRejected:
		s.finishRequest(ctx, rec, request.OutcomeRejected)
		return &Envelope{Kind: KindRejected, RequestID: requestID, Message: out.RejectReason}, nil
	case intent.StatusNeedsClarification:
		s.record(ctx, requestID, in.TenantID, in.UserID, "intent", audit.EventClarificationRequested, map[string]any{
			"intent_type":   string(out.Type),
			"missing_slots": out.MissingSlots,
		})
		s.finishRequest(ctx, rec, request.OutcomeClarification)
		return &Envelope{Kind: KindClarification, RequestID: requestID, Message: out.Clarification}, nil
	}

	if out.Type == intent.TypeMetaCapabilityQuery {
		s.finishRequest(ctx, rec, request.OutcomeCompleted)
		return &Envelope{Kind: KindCompleted, RequestID: requestID, Message: s.capabilitySummary()}, nil
	}

	decision, forceApproval, err := s.intentPolicyStage(ctx, requestID, in, out)
	if err != nil {
		return nil, err
	}
	if decision != nil {
		s.finishRequest(ctx, rec, request.OutcomeRejected)
		return &Envelope{Kind: KindRejected, RequestID: requestID, Message: decision.Reason, Decision: decision}, nil
	}

	built, err := s.planner.Build(ctx, plan.BuildInput{
		RequestID: requestID,
		TenantID:  in.TenantID,
		UserID:    in.UserID,
		Intent:    out,
	})
	if err != nil {
		return nil, err
	}
	if err := s.plans.Create(ctx, built); err != nil {
		return nil, guarderrors.AsError(ctx, guarderrors.LayerRepository, err, "persisting plan")
	}
	rec.PlanID = &built.ID

	denied, opApproval, err := s.planPolicyStage(ctx, requestID, in, built)
	if err != nil {
		return nil, err
	}
	if denied != nil {
		if terr := built.Transition(status.PlanCancelled); terr != nil {
			s.log.Error().Err(terr).Str("plan_id", built.ID).Msg("cancelling denied plan")
		}
		if uerr := s.plans.Update(ctx, built); uerr != nil {
			s.log.Error().Err(uerr).Str("plan_id", built.ID).Msg("persisting denied plan")
		}
		s.finishRequest(ctx, rec, request.OutcomeRejected)
		return &Envelope{Kind: KindRejected, RequestID: requestID, Message: denied.Reason, Plan: built, Decision: denied}, nil
	}

	if err := built.Transition(status.PlanPolicyApproved); err != nil {
		return nil, guarderrors.AsError(ctx, guarderrors.LayerDomain, err, "plan transition")
	}

	if forceApproval || opApproval {
		return s.awaitApproval(ctx, rec, built)
	}
	return s.autoExecute(ctx, rec, built)
}

func (s *Service) refineStage(ctx context.Context, requestID string, in SubmitInput) (*intent.Result, error) {
	timer := s.stageTimer("intent")
	defer timer()
	return s.refiner.Refine(ctx, intent.Request{
		RequestID:      requestID,
		TenantID:       in.TenantID,
		UserID:         in.UserID,
		ConversationID: in.ConversationID,
		Text:           in.Text,
	})
}

// intentPolicyStage evaluates coarse intent-level policy before any planning
// happens. A non-nil decision means the request is denied.
func (s *Service) intentPolicyStage(ctx context.Context, requestID string, in SubmitInput, out *intent.Output) (*policy.Decision, bool, error) {
	timer := s.stageTimer("policy_intent")
	defer timer()

	preview, err := s.planner.PreviewRisk(ctx, out.Type)
	if err != nil {
		return nil, false, err
	}

	decision := s.policies.Evaluate(policy.Context{
		Stage:           policy.StageIntent,
		TenantID:        in.TenantID,
		UserID:          in.UserID,
		Role:            in.Role,
		Permissions:     policy.RolePermissions(in.Role),
		ComplianceFlags: s.compliance(in.TenantID),
		IntentType:      string(out.Type),
		Risk:            preview,
	})
	metrics.PolicyDecisionsTotal.WithLabelValues(string(policy.StageIntent), string(decision.Effect)).Inc()

	switch decision.Effect {
	case policy.EffectDeny:
		s.record(ctx, requestID, in.TenantID, in.UserID, "policy", audit.EventPolicyDeny, map[string]any{
			"stage":       string(policy.StageIntent),
			"rule_id":     decision.RuleID,
			"reason":      decision.Reason,
			"violations":  decision.Violations,
			"intent_type": string(out.Type),
		})
		return &decision, false, nil
	case policy.EffectRequireApproval:
		s.record(ctx, requestID, in.TenantID, in.UserID, "policy", audit.EventPolicyRequiresApproval, map[string]any{
			"stage":       string(policy.StageIntent),
			"rule_id":     decision.RuleID,
			"intent_type": string(out.Type),
		})
		return nil, true, nil
	}

	s.record(ctx, requestID, in.TenantID, in.UserID, "policy", audit.EventPolicyAllow, map[string]any{
		"stage":       string(policy.StageIntent),
		"rule_id":     decision.RuleID,
		"intent_type": string(out.Type),
	})
	return nil, false, nil
}

// planPolicyStage re-evaluates policy per operation with full tool context.
// The first deny wins; any require_approval flags the plan for a human.
func (s *Service) planPolicyStage(ctx context.Context, requestID string, in SubmitInput, built *plan.Plan) (*policy.Decision, bool, error) {
	timer := s.stageTimer("policy_plan")
	defer timer()

	needApproval := false
	for _, op := range built.Operations {
		descriptor, err := s.registry.Lookup(ctx, op.ToolName)
		if err != nil {
			return nil, false, err
		}

		decision := s.policies.Evaluate(policy.Context{
			Stage:           policy.StagePlan,
			TenantID:        in.TenantID,
			UserID:          in.UserID,
			Role:            in.Role,
			Permissions:     policy.RolePermissions(in.Role),
			ComplianceFlags: s.compliance(in.TenantID),
			IntentType:      string(built.IntentType),
			ToolName:        op.ToolName,
			ToolCategory:    string(descriptor.Category),
			Sensitivity:     string(descriptor.Sensitivity),
			Risk:            op.Risk,
		})
		metrics.PolicyDecisionsTotal.WithLabelValues(string(policy.StagePlan), string(decision.Effect)).Inc()

		switch decision.Effect {
		case policy.EffectDeny:
			s.record(ctx, requestID, in.TenantID, in.UserID, "policy", audit.EventPolicyDeny, map[string]any{
				"stage":      string(policy.StagePlan),
				"plan_id":    built.ID,
				"tool":       op.ToolName,
				"rule_id":    decision.RuleID,
				"reason":     decision.Reason,
				"violations": decision.Violations,
			})
			return &decision, false, nil
		case policy.EffectRequireApproval:
			needApproval = true
			s.record(ctx, requestID, in.TenantID, in.UserID, "policy", audit.EventPolicyRequiresApproval, map[string]any{
				"stage":   string(policy.StagePlan),
				"plan_id": built.ID,
				"tool":    op.ToolName,
				"rule_id": decision.RuleID,
			})
		}
	}

	if !needApproval {
		s.record(ctx, requestID, in.TenantID, in.UserID, "policy", audit.EventPolicyAllow, map[string]any{
			"stage":   string(policy.StagePlan),
			"plan_id": built.ID,
		})
	}
	return nil, needApproval, nil
}

func (s *Service) awaitApproval(ctx context.Context, rec *request.Request, built *plan.Plan) (*Envelope, error) {
	if err := built.Transition(status.PlanAwaitingApproval); err != nil {
		return nil, guarderrors.AsError(ctx, guarderrors.LayerDomain, err, "plan transition")
	}
	if err := s.plans.Update(ctx, built); err != nil {
		return nil, guarderrors.AsError(ctx, guarderrors.LayerRepository, err, "persisting plan")
	}
	if err := s.webhooks.NotifyApprovalRequested(ctx, built); err != nil {
		s.log.Warn().Err(err).Str("plan_id", built.ID).Msg("approval webhook failed")
	}
	s.finishRequest(ctx, rec, request.OutcomeAwaitingApproval)
	return &Envelope{
		Kind:      KindAwaitingApproval,
		RequestID: rec.ID,
		Message:   fmt.Sprintf("plan requires human approval before %s", built.ApprovalDeadline.UTC().Format(time.RFC3339)),
		Plan:      built,
	}, nil
}

func (s *Service) autoExecute(ctx context.Context, rec *request.Request, built *plan.Plan) (*Envelope, error) {
	if err := built.Transition(status.PlanApproved); err != nil {
		return nil, guarderrors.AsError(ctx, guarderrors.LayerDomain, err, "plan transition")
	}
	if err := s.plans.Update(ctx, built); err != nil {
		return nil, guarderrors.AsError(ctx, guarderrors.LayerRepository, err, "persisting plan")
	}
	s.record(ctx, rec.ID, built.TenantID, built.UserID, "approval", audit.EventPlanApproved, map[string]any{
		"plan_id": built.ID,
		"auto":    true,
	})
	return s.execute(ctx, rec, built)
}

func (s *Service) execute(ctx context.Context, rec *request.Request, built *plan.Plan) (*Envelope, error) {
	timer := s.stageTimer("execute")
	defer timer()

	runErr := s.executor.Run(ctx, built)
	metrics.PlansTotal.WithLabelValues(built.Status.String()).Inc()
	if err := s.usage.Increment(ctx, built.TenantID, usage.Delta{ToolCalls: int64(len(built.Operations))}); err != nil {
		s.log.Warn().Err(err).Str("tenant_id", built.TenantID).Msg("usage increment failed")
	}

	if runErr != nil {
		code := "pipeline-execute-001"
		if ge, ok := runErr.(*guarderrors.GuardError); ok && ge.Code != "" {
			code = ge.Code
		}
		if err := s.webhooks.NotifyPlanFailed(ctx, built, code, runErr.Error()); err != nil {
			s.log.Warn().Err(err).Str("plan_id", built.ID).Msg("failure webhook failed")
		}
		s.finishRequest(ctx, rec, request.OutcomeFailed)
		return &Envelope{Kind: KindFailed, RequestID: rec.ID, Message: runErr.Error(), Plan: built}, nil
	}

	if err := s.webhooks.NotifyPlanCompleted(ctx, built); err != nil {
		s.log.Warn().Err(err).Str("plan_id", built.ID).Msg("completion webhook failed")
	}
	s.finishRequest(ctx, rec, request.OutcomeCompleted)
	return &Envelope{Kind: KindCompleted, RequestID: rec.ID, Plan: built}, nil
}

// ApproveInput is a human approver's verdict on a waiting plan.
type ApproveInput struct {
	PlanID     string
	ApproverID string
	Approve    bool
	Reason     string
}

// Approve resolves a plan waiting on a human. Approval after the deadline is
// refused and expires the plan instead of executing it.
func (s *Service) Approve(ctx context.Context, in ApproveInput) (*Envelope, error) {
	built, err := s.plans.GetByID(ctx, in.PlanID)
	if err != nil {
		return nil, err
	}
	ctx = guarderrors.WithRequestID(ctx, built.RequestID)

	// An engaged switch stops pending plans too: approval is refused before
	// any state changes, no matter how long the plan has been waiting.
	if blocked, capability := s.gate.Blocked(ctx, killswitch.CapabilityActions); blocked {
		metrics.KillSwitchBlocksTotal.WithLabelValues(string(capability)).Inc()
		s.record(ctx, built.RequestID, built.TenantID, built.UserID, "killswitch", audit.EventKillSwitchBlocked, map[string]any{
			"capability": string(capability),
			"plan_id":    built.ID,
		})
		return nil, guarderrors.New(ctx, guarderrors.LayerPipeline, guarderrors.ErrorTypeKillSwitchActive,
			fmt.Sprintf("the %s capability is disabled by an operator", capability), nil, "pipeline-killswitch-001")
	}

	if built.Status != status.PlanAwaitingApproval {
		return nil, guarderrors.New(ctx, guarderrors.LayerPipeline, guarderrors.ErrorTypeConflict,
			fmt.Sprintf("plan %s is %s, not awaiting approval", built.ID, built.Status), nil, "pipeline-approve-001")
	}

	rec, err := s.requests.GetByID(ctx, built.RequestID)
	if err != nil {
		return nil, err
	}

	if built.ApprovalExpired(s.now()) {
		s.planner.Expire(ctx, built)
		if uerr := s.plans.Update(ctx, built); uerr != nil {
			s.log.Error().Err(uerr).Str("plan_id", built.ID).Msg("persisting expired plan")
		}
		s.finishRequest(ctx, rec, request.OutcomeFailed)
		return nil, guarderrors.New(ctx, guarderrors.LayerPipeline, guarderrors.ErrorTypeExpired,
			"the approval window for this plan has elapsed", nil, "pipeline-approve-002")
	}

	if !in.Approve {
		if terr := built.Transition(status.PlanCancelled); terr != nil {
			return nil, guarderrors.AsError(ctx, guarderrors.LayerDomain, terr, "plan transition")
		}
		if uerr := s.plans.Update(ctx, built); uerr != nil {
			return nil, guarderrors.AsError(ctx, guarderrors.LayerRepository, uerr, "persisting plan")
		}
		s.record(ctx, built.RequestID, built.TenantID, built.UserID, "approval", audit.EventPlanRejected, map[string]any{
			"plan_id":     built.ID,
			"approver_id": in.ApproverID,
			"reason":      in.Reason,
		})
		if err := s.webhooks.NotifyPlanFailed(ctx, built, "pipeline-approve-003", "plan rejected by approver"); err != nil {
			s.log.Warn().Err(err).Str("plan_id", built.ID).Msg("rejection webhook failed")
		}
		s.finishRequest(ctx, rec, request.OutcomeRejected)
		return &Envelope{Kind: KindRejected, RequestID: built.RequestID, Message: "plan rejected by approver", Plan: built}, nil
	}

	if terr := built.Transition(status.PlanApproved); terr != nil {
		return nil, guarderrors.AsError(ctx, guarderrors.LayerDomain, terr, "plan transition")
	}
	built.ApprovedBy = &in.ApproverID
	if uerr := s.plans.Update(ctx, built); uerr != nil {
		return nil, guarderrors.AsError(ctx, guarderrors.LayerRepository, uerr, "persisting plan")
	}
	s.record(ctx, built.RequestID, built.TenantID, built.UserID, "approval", audit.EventPlanApproved, map[string]any{
		"plan_id":     built.ID,
		"approver_id": in.ApproverID,
		"auto":        false,
	})
	defer s.audit.CloseRequest(built.RequestID)
	return s.execute(ctx, rec, built)
}

// RequestView pairs the stored request record with its plan, if any.
type RequestView struct {
	Request *request.Request `json:"request"`
	Plan    *plan.Plan       `json:"plan,omitempty"`
}

// GetRequest returns the current state of a submitted request.
func (s *Service) GetRequest(ctx context.Context, requestID string) (*RequestView, error) {
	rec, err := s.requests.GetByID(ctx, requestID)
	if err != nil {
		return nil, err
	}
	view := &RequestView{Request: rec}
	if rec.PlanID != nil {
		if p, err := s.plans.GetByID(ctx, *rec.PlanID); err == nil {
			view.Plan = p
		}
	}
	return view, nil
}

func (s *Service) persistRequest(ctx context.Context, requestID string, in SubmitInput) (*request.Request, error) {
	encrypted, err := crypto.EncryptString(s.secret, in.Text)
	if err != nil {
		return nil, guarderrors.AsError(ctx, guarderrors.LayerPipeline, err, "encrypting request input")
	}
	now := s.now().UTC()
	rec := &request.Request{
		ID:             requestID,
		TenantID:       in.TenantID,
		UserID:         in.UserID,
		Role:           in.Role,
		ConversationID: in.ConversationID,
		EncryptedInput: encrypted,
		Outcome:        request.OutcomePending,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.requests.Create(ctx, rec); err != nil {
		return nil, guarderrors.AsError(ctx, guarderrors.LayerRepository, err, "persisting request")
	}
	return rec, nil
}

func (s *Service) finishRequest(ctx context.Context, rec *request.Request, outcome request.Outcome) {
	rec.Outcome = outcome
	rec.UpdatedAt = s.now().UTC()
	if err := s.requests.Update(ctx, rec); err != nil {
		s.log.Error().Err(err).Str("request_id", rec.ID).Msg("persisting request outcome")
	}
}

func (s *Service) capabilitySummary() string {
	names := s.registry.Names()
	return "I can help with: " + strings.Join(names, ", ")
}

func (s *Service) record(ctx context.Context, requestID, tenantID, userID, stage string, eventType audit.EventType, detail map[string]any) {
	s.audit.Record(ctx, audit.Event{
		RequestID: requestID,
		TenantID:  tenantID,
		UserID:    userID,
		Stage:     stage,
		Type:      eventType,
		Detail:    detail,
	})
}

func (s *Service) stageTimer(stage string) func() {
	start := s.now()
	return func() {
		metrics.StageDuration.WithLabelValues(stage).Observe(time.Since(start).Seconds())
	}
}
