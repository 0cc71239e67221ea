package policy_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"caremesh/services/agent-guard/internal/domain/policy"
	"caremesh/services/agent-guard/internal/domain/risk"
)

func defaultEngine() *policy.Engine {
	return policy.NewEngine(policy.DefaultRuleSet())
}

func baseContext(role string) policy.Context {
	return policy.Context{
		Stage:       policy.StageIntent,
		TenantID:    "clinic-a",
		UserID:      "u1",
		Role:        role,
		Permissions: policy.RolePermissions(role),
		ComplianceFlags: map[string]bool{
			"consent_recorded":  true,
			"data_residency_ok": true,
		},
	}
}

func TestEngine_RBACDeniesMissingPermission(t *testing.T) {
	tests := []struct {
		name   string
		role   string
		intent string
		effect policy.Effect
		ruleID string
	}{
		{"secretary cannot cancel", "secretary", "cancel_appointment", policy.EffectDeny, "rbac-appointment-cancel"},
		{"secretary can create", "secretary", "create_appointment", policy.EffectAllow, ""},
		{"secretary cannot read records", "secretary", "patient_record_lookup", policy.EffectDeny, "rbac-patient-record-read"},
		{"practitioner can cancel", "practitioner", "cancel_appointment", policy.EffectAllow, ""},
		{"practitioner cannot order", "practitioner", "supplier_order", policy.EffectDeny, "rbac-supplier-order"},
		{"admin can do billing", "admin", "billing_summary", policy.EffectAllow, ""},
		{"unknown role denied", "", "create_appointment", policy.EffectDeny, "rbac-appointment-create"},
	}

	engine := defaultEngine()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := baseContext(tt.role)
			ctx.IntentType = tt.intent
			ctx.Risk = risk.LevelMedium

			decision := engine.Evaluate(ctx)
			assert.Equal(t, tt.effect, decision.Effect)
			if tt.ruleID != "" {
				assert.Equal(t, tt.ruleID, decision.RuleID)
			}
		})
	}
}

func TestEngine_RiskThreshold(t *testing.T) {
	tests := []struct {
		name   string
		role   string
		level  risk.Level
		effect policy.Effect
	}{
		{"low auto-allows", "admin", risk.LevelLow, policy.EffectAllow},
		{"medium auto-allows", "admin", risk.LevelMedium, policy.EffectAllow},
		{"high requires approval", "admin", risk.LevelHigh, policy.EffectRequireApproval},
		{"critical with override requires approval", "admin", risk.LevelCritical, policy.EffectRequireApproval},
		{"critical without override denied", "practitioner", risk.LevelCritical, policy.EffectDeny},
	}

	engine := defaultEngine()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := baseContext(tt.role)
			ctx.IntentType = "create_appointment"
			ctx.Risk = tt.level

			decision := engine.Evaluate(ctx)
			assert.Equal(t, tt.effect, decision.Effect)
		})
	}
}

func TestEngine_ConsentRuleGuardsClinicalData(t *testing.T) {
	engine := defaultEngine()

	ctx := baseContext("practitioner")
	ctx.Stage = policy.StagePlan
	ctx.IntentType = "patient_record_lookup"
	ctx.ToolName = "patient_record.read"
	ctx.Sensitivity = "clinical"
	ctx.Risk = risk.LevelMedium
	ctx.ComplianceFlags["consent_recorded"] = false

	decision := engine.Evaluate(ctx)
	require.Equal(t, policy.EffectDeny, decision.Effect)
	assert.Equal(t, "compliance-consent-clinical", decision.RuleID)

	// The same rule does not apply outside clinical data.
	ctx.ToolName = "inventory.query"
	ctx.IntentType = "query_inventory"
	ctx.Sensitivity = "operational"
	decision = engine.Evaluate(ctx)
	assert.Equal(t, policy.EffectAllow, decision.Effect)
}

func TestEngine_DataResidencyEscalatesToApproval(t *testing.T) {
	engine := defaultEngine()

	ctx := baseContext("admin")
	ctx.IntentType = "query_inventory"
	ctx.Risk = risk.LevelLow
	ctx.ComplianceFlags["data_residency_ok"] = false

	decision := engine.Evaluate(ctx)
	assert.Equal(t, policy.EffectRequireApproval, decision.Effect)
	assert.Equal(t, "compliance-data-residency", decision.RuleID)
}

func TestEngine_DenyCollectsAllViolations(t *testing.T) {
	engine := defaultEngine()

	// Secretary on clinical data without consent: both the RBAC rule and the
	// consent rule object, and both must appear in the violation list.
	ctx := baseContext("secretary")
	ctx.Stage = policy.StagePlan
	ctx.IntentType = "patient_record_lookup"
	ctx.ToolName = "patient_record.read"
	ctx.Sensitivity = "clinical"
	ctx.Risk = risk.LevelMedium
	ctx.ComplianceFlags["consent_recorded"] = false

	decision := engine.Evaluate(ctx)
	require.Equal(t, policy.EffectDeny, decision.Effect)
	require.Len(t, decision.Violations, 2)

	ids := []string{decision.Violations[0].RuleID, decision.Violations[1].RuleID}
	assert.Contains(t, ids, "rbac-patient-record-read")
	assert.Contains(t, ids, "compliance-consent-clinical")
}

func TestEngine_DenyBeatsRequireApproval(t *testing.T) {
	engine := defaultEngine()

	ctx := baseContext("secretary")
	ctx.IntentType = "supplier_order"
	ctx.Risk = risk.LevelHigh

	decision := engine.Evaluate(ctx)
	assert.Equal(t, policy.EffectDeny, decision.Effect)
	assert.Equal(t, "rbac-supplier-order", decision.RuleID)
}

func TestEngine_DecisionCarriesRuleVersion(t *testing.T) {
	engine := defaultEngine()

	ctx := baseContext("secretary")
	ctx.IntentType = "cancel_appointment"
	ctx.Risk = risk.LevelMedium

	decision := engine.Evaluate(ctx)
	require.Equal(t, policy.EffectDeny, decision.Effect)
	assert.Equal(t, "1.0.0", decision.RuleVersion)
}
