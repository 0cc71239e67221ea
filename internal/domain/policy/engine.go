package policy

import "sort"

// Engine evaluates an ordered rule set against a context. The first deny in
// priority order decides the outcome, but every rule is still evaluated so the
// violation list is complete for audit.
type Engine struct {
	rules []Rule
}

// NewEngine sorts the rules by priority, then by id for ties, once.
func NewEngine(rules []Rule) *Engine {
	sorted := make([]Rule, len(rules))
	copy(sorted, rules)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Priority() != sorted[j].Priority() {
			return sorted[i].Priority() < sorted[j].Priority()
		}
		return sorted[i].ID() < sorted[j].ID()
	})
	return &Engine{rules: sorted}
}

// Rules returns the rule set in evaluation order.
func (e *Engine) Rules() []Rule {
	return e.rules
}

// Evaluate is a pure function of the context and the rule set.
func (e *Engine) Evaluate(ctx Context) Decision {
	decision := Decision{Effect: EffectAllow, Reason: "no applicable rule objected"}
	decided := false

	for _, rule := range e.rules {
		outcome := rule.Evaluate(ctx)
		if !outcome.Applicable {
			continue
		}

		switch outcome.Effect {
		case EffectDeny:
			decision.Violations = append(decision.Violations, Violation{
				RuleID:      rule.ID(),
				RuleVersion: rule.Version(),
				Reason:      outcome.Reason,
			})
			if !decided || decision.Effect != EffectDeny {
				decision.Effect = EffectDeny
				decision.RuleID = rule.ID()
				decision.RuleVersion = rule.Version()
				decision.Reason = outcome.Reason
				decided = true
			}
		case EffectRequireApproval:
			if decision.Effect == EffectAllow {
				decision.Effect = EffectRequireApproval
				decision.RuleID = rule.ID()
				decision.RuleVersion = rule.Version()
				decision.Reason = outcome.Reason
				decided = true
			}
		case EffectAllow:
			if !decided && decision.RuleID == "" {
				decision.RuleID = rule.ID()
				decision.RuleVersion = rule.Version()
				decision.Reason = outcome.Reason
			}
		}
	}

	return decision
}
