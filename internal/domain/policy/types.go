// Package policy implements the deterministic rule engine that is the sole
// authority on allowing, denying, or gating agent actions. It never calls the
// model: identical (context, rule set) always yields the identical decision.
package policy

import "caremesh/services/agent-guard/internal/domain/risk"

// Effect is the outcome a rule or decision carries.
type Effect string

const (
	EffectAllow           Effect = "allow"
	EffectDeny            Effect = "deny"
	EffectRequireApproval Effect = "require_approval"
)

// Stage identifies where in the pipeline the engine was invoked.
type Stage string

const (
	StageIntent Stage = "intent"
	StagePlan   Stage = "plan"
)

// Context is everything a rule may consider. Rules are pure functions of it.
type Context struct {
	Stage           Stage
	TenantID        string
	UserID          string
	Role            string
	Permissions     []string
	ComplianceFlags map[string]bool
	IntentType      string
	ToolName        string // empty at intent level
	ToolCategory    string
	Sensitivity     string
	Risk            risk.Level
}

// HasPermission reports whether the acting user carries the permission.
func (c Context) HasPermission(perm string) bool {
	for _, p := range c.Permissions {
		if p == perm {
			return true
		}
	}
	return false
}

// Violation records a rule that would have denied, kept for audit completeness
// even when an earlier rule already decided.
type Violation struct {
	RuleID      string `json:"rule_id"`
	RuleVersion string `json:"rule_version"`
	Reason      string `json:"reason"`
}

// Decision is the engine's verdict. Denial is a typed result, never an error.
type Decision struct {
	Effect      Effect      `json:"effect"`
	RuleID      string      `json:"rule_id"`
	RuleVersion string      `json:"rule_version"`
	Reason      string      `json:"reason"`
	Violations  []Violation `json:"violations,omitempty"`
}

// Allowed reports whether the decision permits the action to proceed
// without a human in the loop.
func (d Decision) Allowed() bool {
	return d.Effect == EffectAllow
}

// Outcome is a single rule's verdict. A rule that does not apply to the
// context returns Applicable=false and is skipped.
type Outcome struct {
	Applicable bool
	Effect     Effect
	Reason     string
}

// Rule is a deterministic policy rule with a stable id and semantic version.
type Rule interface {
	ID() string
	Version() string
	Priority() int
	Evaluate(ctx Context) Outcome
}
