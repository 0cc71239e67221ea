package plan

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"caremesh/services/agent-guard/internal/domain/audit"
	"caremesh/services/agent-guard/internal/domain/guarderrors"
	"caremesh/services/agent-guard/internal/domain/intent"
	"caremesh/services/agent-guard/internal/domain/risk"
	"caremesh/services/agent-guard/internal/domain/status"
	"caremesh/services/agent-guard/internal/domain/tool"
)

// opTemplate maps intent slots onto one tool invocation.
type opTemplate struct {
	toolName string
	params   func(slots map[string]string) map[string]any
}

// intentMappings is the fixed intent-to-tool mapping. Slot values populate
// parameters; the tool registry validates them against the declared schema.
var intentMappings = map[intent.Type][]opTemplate{
	intent.TypeCreateAppointment: {{
		toolName: "appointment.create",
		params: func(s map[string]string) map[string]any {
			return withOptional(map[string]any{"patient": s["patient"], "date": s["date"], "time": s["time"]},
				s, "practitioner", "reason")
		},
	}},
	intent.TypeCancelAppointment: {{
		toolName: "appointment.cancel",
		params: func(s map[string]string) map[string]any {
			return withOptional(map[string]any{"patient": s["patient"], "date": s["date"]}, s, "reason")
		},
	}},
	intent.TypeRescheduleAppointment: {{
		toolName: "appointment.reschedule",
		params: func(s map[string]string) map[string]any {
			return map[string]any{
				"patient": s["patient"], "date": s["date"],
				"new_date": s["new_date"], "new_time": s["new_time"],
			}
		},
	}},
	intent.TypeQueryInventory: {{
		toolName: "inventory.query",
		params: func(s map[string]string) map[string]any {
			return withOptional(map[string]any{"item": s["item"]}, s, "location")
		},
	}},
	intent.TypePatientRecordLookup: {{
		toolName: "patient_record.read",
		params: func(s map[string]string) map[string]any {
			return withOptional(map[string]any{"patient": s["patient"]}, s, "section")
		},
	}},
	intent.TypeSupplierOrder: {{
		toolName: "supplier.order_draft",
		params: func(s map[string]string) map[string]any {
			qty, _ := strconv.Atoi(s["quantity"])
			return map[string]any{"supplier": s["supplier"], "item": s["item"], "quantity": qty}
		},
	}},
	intent.TypeBillingSummary: {{
		toolName: "billing.summary",
		params: func(s map[string]string) map[string]any {
			return map[string]any{"period": s["period"]}
		},
	}},
}

func withOptional(params map[string]any, slots map[string]string, keys ...string) map[string]any {
	for _, key := range keys {
		if v, ok := slots[key]; ok && v != "" {
			params[key] = v
		}
	}
	return params
}

// Planner maps complete intents to action plans with per-operation risk.
type Planner struct {
	registry        *tool.Registry
	audit           *audit.Recorder
	approvalTimeout time.Duration
	log             zerolog.Logger
	now             func() time.Time
}

// NewPlanner constructs the planner. approvalTimeout is the hard wall-clock
// window a plan has to reach approved before it expires.
func NewPlanner(registry *tool.Registry, recorder *audit.Recorder, approvalTimeout time.Duration, log zerolog.Logger) *Planner {
	return &Planner{
		registry:        registry,
		audit:           recorder,
		approvalTimeout: approvalTimeout,
		log:             log.With().Str("component", "action-planner").Logger(),
		now:             time.Now,
	}
}

// BuildInput carries the context a plan is created under.
type BuildInput struct {
	RequestID string
	TenantID  string
	UserID    string
	Intent    *intent.Output
}

// Build creates a draft plan from a complete intent. Every operation's
// parameters are validated against the tool schema before the plan exists.
func (p *Planner) Build(ctx context.Context, in BuildInput) (*Plan, error) {
	if in.Intent == nil || in.Intent.Status != intent.StatusComplete {
		return nil, guarderrors.New(ctx, guarderrors.LayerDomain, guarderrors.ErrorTypeValidation,
			"planner requires a complete intent", nil, "plan-build-intent-001")
	}

	templates, ok := intentMappings[in.Intent.Type]
	if !ok {
		return nil, guarderrors.New(ctx, guarderrors.LayerDomain, guarderrors.ErrorTypeValidation,
			fmt.Sprintf("intent type %q has no tool mapping", in.Intent.Type), nil, "plan-build-mapping-001")
	}

	now := p.now().UTC()
	slots := in.Intent.SlotValues()
	planID := uuid.New().String()

	created := &Plan{
		ID:               planID,
		RequestID:        in.RequestID,
		TenantID:         in.TenantID,
		UserID:           in.UserID,
		IntentType:       in.Intent.Type,
		Status:           status.PlanDraft,
		Risk:             risk.LevelLow,
		ApprovalDeadline: now.Add(p.approvalTimeout),
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	for i, tmpl := range templates {
		descriptor, err := p.registry.Lookup(ctx, tmpl.toolName)
		if err != nil {
			return nil, err
		}

		params := tmpl.params(slots)
		issues, err := p.registry.ValidateParams(ctx, tmpl.toolName, params)
		if err != nil {
			return nil, err
		}
		if len(issues) > 0 {
			return nil, guarderrors.New(ctx, guarderrors.LayerDomain, guarderrors.ErrorTypeValidation,
				fmt.Sprintf("parameters for %q do not match the tool schema", tmpl.toolName),
				nil, "plan-build-params-001").
				WithContext(map[string]any{"tool": tmpl.toolName, "issues": issues})
		}

		opRisk := descriptor.EffectiveRisk()
		created.Operations = append(created.Operations, Operation{
			ID:             uuid.New().String(),
			PlanID:         planID,
			Sequence:       i + 1,
			ToolName:       tmpl.toolName,
			Params:         params,
			Risk:           opRisk,
			Mode:           ModeSimulate,
			Independent:    descriptor.Independent,
			IdempotencyKey: fmt.Sprintf("%s-%d", planID, i+1),
			Status:         status.OpPending,
		})
		created.Risk = risk.Max(created.Risk, opRisk)
	}

	created.Summary = p.summarize(created)

	p.audit.Record(ctx, audit.Event{
		RequestID: in.RequestID,
		TenantID:  in.TenantID,
		UserID:    in.UserID,
		Stage:     "plan",
		Type:      audit.EventPlanCreated,
		Detail: map[string]any{
			"plan_id":           created.ID,
			"intent_type":       string(created.IntentType),
			"risk":              string(created.Risk),
			"operations":        len(created.Operations),
			"approval_deadline": created.ApprovalDeadline,
		},
	})

	return created, nil
}

// PreviewRisk returns the max effective risk the intent's mapped tools carry,
// for intent-level policy checks before a plan exists.
func (p *Planner) PreviewRisk(ctx context.Context, t intent.Type) (risk.Level, error) {
	templates, ok := intentMappings[t]
	if !ok {
		return risk.LevelLow, guarderrors.New(ctx, guarderrors.LayerDomain, guarderrors.ErrorTypeValidation,
			fmt.Sprintf("intent type %q has no tool mapping", t), nil, "plan-preview-001")
	}
	level := risk.LevelLow
	for _, tmpl := range templates {
		descriptor, err := p.registry.Lookup(ctx, tmpl.toolName)
		if err != nil {
			return risk.LevelLow, err
		}
		level = risk.Max(level, descriptor.EffectiveRisk())
	}
	return level, nil
}

// MappedTools returns the tool names an intent resolves to.
func (p *Planner) MappedTools(t intent.Type) []string {
	templates := intentMappings[t]
	out := make([]string, 0, len(templates))
	for _, tmpl := range templates {
		out = append(out, tmpl.toolName)
	}
	return out
}

// Expire transitions a plan that missed its approval deadline and audits it.
// Idempotent: an already-expired plan is left alone.
func (p *Planner) Expire(ctx context.Context, pl *Plan) bool {
	if pl.Status == status.PlanExpired || !pl.ApprovalExpired(p.now().UTC()) {
		return false
	}
	if err := pl.Transition(status.PlanExpired); err != nil {
		return false
	}
	p.audit.Record(ctx, audit.Event{
		RequestID: pl.RequestID,
		TenantID:  pl.TenantID,
		UserID:    pl.UserID,
		Stage:     "plan",
		Type:      audit.EventPlanExpired,
		Tag:       audit.TagReliability,
		Detail:    map[string]any{"plan_id": pl.ID, "deadline": pl.ApprovalDeadline},
	})
	return true
}

func (p *Planner) summarize(pl *Plan) string {
	if len(pl.Operations) == 1 {
		return fmt.Sprintf("1 operation (%s), overall risk %s", pl.Operations[0].ToolName, pl.Risk)
	}
	return fmt.Sprintf("%d operations, overall risk %s", len(pl.Operations), pl.Risk)
}
