package policy

// DefaultRuleSet returns the standard rule set for the clinic tool catalog.
// RBAC rules run first, compliance rules next, the risk threshold last.
func DefaultRuleSet() []Rule {
	rules := []Rule{
		&RiskThresholdRule{RuleID: "risk-threshold", RuleVersion: "1.2.0", RulePriority: 300},
		&ComplianceRule{
			RuleID:       "compliance-consent-clinical",
			RuleVersion:  "1.0.1",
			RulePriority: 200,
			Flag:         "consent_recorded",
			RequiredTrue: true,
			UnmetEffect:  EffectDeny,
			Sensitivity:  "clinical",
			Reason:       "clinical data access requires recorded patient consent",
		},
		&ComplianceRule{
			RuleID:       "compliance-data-residency",
			RuleVersion:  "1.1.0",
			RulePriority: 210,
			Flag:         "data_residency_ok",
			RequiredTrue: true,
			UnmetEffect:  EffectRequireApproval,
			Reason:       "tenant data residency constraints require review",
		},
	}

	rbac := []struct {
		id         string
		intentType string
		toolName   string
		permission string
	}{
		{"rbac-appointment-create", "create_appointment", "appointment.create", "appointment.create"},
		{"rbac-appointment-cancel", "cancel_appointment", "appointment.cancel", "appointment.cancel"},
		{"rbac-appointment-reschedule", "reschedule_appointment", "appointment.reschedule", "appointment.reschedule"},
		{"rbac-inventory-query", "query_inventory", "inventory.query", "inventory.read"},
		{"rbac-patient-record-read", "patient_record_lookup", "patient_record.read", "patient_record.read"},
		{"rbac-supplier-order", "supplier_order", "supplier.order_draft", "supplier.order"},
		{"rbac-billing-summary", "billing_summary", "billing.summary", "billing.read"},
	}

	for i, r := range rbac {
		rules = append(rules, &RBACRule{
			RuleID:             r.id,
			RuleVersion:        "1.0.0",
			RulePriority:       100 + i,
			IntentType:         r.intentType,
			ToolName:           r.toolName,
			RequiredPermission: r.permission,
		})
	}

	return rules
}

// RolePermissions is the built-in role grant table. The platform gateway may
// substitute its own mapping through the pipeline context.
func RolePermissions(role string) []string {
	switch role {
	case "admin":
		return []string{
			"appointment.create", "appointment.cancel", "appointment.reschedule",
			"inventory.read", "patient_record.read", "supplier.order", "billing.read",
			OverridePermission,
		}
	case "practitioner":
		return []string{
			"appointment.create", "appointment.cancel", "appointment.reschedule",
			"inventory.read", "patient_record.read",
		}
	case "secretary":
		return []string{"appointment.create", "appointment.reschedule", "inventory.read"}
	default:
		return nil
	}
}
