package policy

import (
	"fmt"

	"caremesh/services/agent-guard/internal/domain/risk"
)

// OverridePermission allows a user to execute critical-risk operations that
// the risk-threshold rule would otherwise always deny.
const OverridePermission = "guardrail.override_critical"

// RBACRule denies when the acting user lacks the permission a target
// operation requires. One instance guards one intent type or tool name.
type RBACRule struct {
	RuleID             string
	RuleVersion        string
	RulePriority       int
	IntentType         string // matches Context.IntentType when set
	ToolName           string // matches Context.ToolName when set
	RequiredPermission string
}

func (r *RBACRule) ID() string      { return r.RuleID }
func (r *RBACRule) Version() string { return r.RuleVersion }
func (r *RBACRule) Priority() int   { return r.RulePriority }

func (r *RBACRule) Evaluate(ctx Context) Outcome {
	// A rule bound to both an intent type and a tool name applies at the
	// intent stage (tool not yet resolved) and again at the plan stage.
	matches := false
	if r.IntentType != "" && ctx.IntentType == r.IntentType {
		matches = true
	}
	if r.ToolName != "" && ctx.ToolName == r.ToolName {
		matches = true
	}
	if !matches {
		return Outcome{}
	}
	if ctx.HasPermission(r.RequiredPermission) {
		return Outcome{Applicable: true, Effect: EffectAllow,
			Reason: fmt.Sprintf("role %q holds %q", ctx.Role, r.RequiredPermission)}
	}
	return Outcome{Applicable: true, Effect: EffectDeny,
		Reason: fmt.Sprintf("role %q lacks permission %q", ctx.Role, r.RequiredPermission)}
}

// ComplianceRule checks a tenant-level compliance flag. When the flag state
// does not match the requirement, the configured effect applies.
type ComplianceRule struct {
	RuleID       string
	RuleVersion  string
	RulePriority int
	Flag         string
	RequiredTrue bool
	UnmetEffect  Effect // deny or require_approval
	Sensitivity  string // restricts the rule to one data sensitivity; empty matches all
	Reason       string
}

func (r *ComplianceRule) ID() string      { return r.RuleID }
func (r *ComplianceRule) Version() string { return r.RuleVersion }
func (r *ComplianceRule) Priority() int   { return r.RulePriority }

func (r *ComplianceRule) Evaluate(ctx Context) Outcome {
	if r.Sensitivity != "" && ctx.Sensitivity != r.Sensitivity {
		return Outcome{}
	}
	if ctx.ComplianceFlags[r.Flag] == r.RequiredTrue {
		return Outcome{Applicable: true, Effect: EffectAllow, Reason: fmt.Sprintf("compliance flag %q satisfied", r.Flag)}
	}
	reason := r.Reason
	if reason == "" {
		reason = fmt.Sprintf("tenant compliance flag %q not satisfied", r.Flag)
	}
	return Outcome{Applicable: true, Effect: r.UnmetEffect, Reason: reason}
}

// RiskThresholdRule maps the operation risk level to a required outcome:
// low auto-allows, medium allows with logging, high requires human approval,
// critical always denies unless the override permission is present.
type RiskThresholdRule struct {
	RuleID       string
	RuleVersion  string
	RulePriority int
}

func (r *RiskThresholdRule) ID() string      { return r.RuleID }
func (r *RiskThresholdRule) Version() string { return r.RuleVersion }
func (r *RiskThresholdRule) Priority() int   { return r.RulePriority }

func (r *RiskThresholdRule) Evaluate(ctx Context) Outcome {
	switch ctx.Risk {
	case risk.LevelLow, risk.LevelMedium:
		return Outcome{Applicable: true, Effect: EffectAllow,
			Reason: fmt.Sprintf("risk level %q within auto-allow threshold", ctx.Risk)}
	case risk.LevelHigh:
		return Outcome{Applicable: true, Effect: EffectRequireApproval,
			Reason: "high risk operations require human approval"}
	default:
		if ctx.HasPermission(OverridePermission) {
			return Outcome{Applicable: true, Effect: EffectRequireApproval,
				Reason: "critical risk permitted by override, human approval still required"}
		}
		return Outcome{Applicable: true, Effect: EffectDeny,
			Reason: "critical risk operations are denied without an override permission"}
	}
}
