package tool

import (
	"context"

	"github.com/invopop/jsonschema"

	"caremesh/services/agent-guard/internal/domain/risk"
)

// Category groups tools by the business area they touch.
type Category string

const (
	CategoryAppointment   Category = "appointment"
	CategoryInventory     Category = "inventory"
	CategoryPatientRecord Category = "patient_record"
	CategorySupplier      Category = "supplier"
	CategoryBilling       Category = "billing"
)

// Sensitivity classifies the data a tool reads or writes.
type Sensitivity string

const (
	SensitivityOperational Sensitivity = "operational"
	SensitivityPersonal    Sensitivity = "personal"
	SensitivityClinical    Sensitivity = "clinical"
	SensitivityFinancial   Sensitivity = "financial"
)

// SimulateFunc is the dry-run half of the tool contract.
type SimulateFunc func(ctx context.Context, req Request) (*SimulationResult, error)

// ExecuteFunc is the committing half of the tool contract.
type ExecuteFunc func(ctx context.Context, req Request) (*ExecutionResult, error)

// Descriptor is the capability record for one allowlisted operation. The
// parameter schema is reflected from the Params prototype at registration.
type Descriptor struct {
	Name            string
	Category        Category
	Description     string
	Sensitivity     Sensitivity
	FinancialImpact bool
	Mutating        bool // read-only tools skip the financial/sensitivity risk bumps
	Independent     bool // safe to run concurrently with other independent operations
	Params          any  // prototype struct; schema is reflected from it
	Simulate        SimulateFunc
	Execute         ExecuteFunc

	schema *jsonschema.Schema
}

// Schema returns the parameter schema reflected at registration time.
func (d *Descriptor) Schema() *jsonschema.Schema {
	return d.schema
}

// EffectiveRisk derives the operation risk level from the fixed
// category x sensitivity x financial-impact mapping.
func (d *Descriptor) EffectiveRisk() risk.Level {
	if !d.Mutating {
		if d.Sensitivity == SensitivityClinical || d.Sensitivity == SensitivityPersonal {
			return risk.LevelMedium
		}
		return risk.LevelLow
	}

	level := risk.LevelMedium
	switch d.Sensitivity {
	case SensitivityClinical:
		level = risk.LevelHigh
	case SensitivityFinancial:
		level = risk.LevelHigh
	}
	if d.FinancialImpact {
		level = risk.Max(level, risk.LevelHigh)
	}
	if d.Mutating && d.Sensitivity == SensitivityClinical && d.FinancialImpact {
		level = risk.LevelCritical
	}
	return level
}
