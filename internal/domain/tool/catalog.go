package tool

import "context"

// Parameter prototypes for the built-in clinic catalog. The registry reflects
// JSON schemas from these at registration.

// AppointmentCreateParams schedules a new appointment.
type AppointmentCreateParams struct {
	Patient      string `json:"patient" jsonschema:"required"`
	Practitioner string `json:"practitioner,omitempty"`
	Date         string `json:"date" jsonschema:"required"`
	Time         string `json:"time" jsonschema:"required"`
	Reason       string `json:"reason,omitempty"`
}

// AppointmentCancelParams cancels an existing appointment.
type AppointmentCancelParams struct {
	Patient string `json:"patient" jsonschema:"required"`
	Date    string `json:"date" jsonschema:"required"`
	Reason  string `json:"reason,omitempty"`
}

// AppointmentRescheduleParams moves an appointment to a new slot.
type AppointmentRescheduleParams struct {
	Patient string `json:"patient" jsonschema:"required"`
	Date    string `json:"date" jsonschema:"required"`
	NewDate string `json:"new_date" jsonschema:"required"`
	NewTime string `json:"new_time" jsonschema:"required"`
}

// InventoryQueryParams looks up stock levels.
type InventoryQueryParams struct {
	Item     string `json:"item" jsonschema:"required"`
	Location string `json:"location,omitempty"`
}

// PatientRecordReadParams fetches a patient summary.
type PatientRecordReadParams struct {
	Patient string `json:"patient" jsonschema:"required"`
	Section string `json:"section,omitempty"`
}

// SupplierOrderDraftParams drafts a purchase order for review.
type SupplierOrderDraftParams struct {
	Supplier string `json:"supplier" jsonschema:"required"`
	Item     string `json:"item" jsonschema:"required"`
	Quantity int    `json:"quantity" jsonschema:"required"`
}

// BillingSummaryParams reports billed amounts for a period.
type BillingSummaryParams struct {
	Period string `json:"period" jsonschema:"required"`
}

// RegisterClinicCatalog registers the built-in allowlist against the given
// backend. Each descriptor closes over the backend and its own name so
// dispatch stays typed end to end.
func RegisterClinicCatalog(registry *Registry, backend Backend) error {
	descriptors := []*Descriptor{
		{
			Name:        "appointment.create",
			Category:    CategoryAppointment,
			Description: "Schedule a new appointment for a patient",
			Sensitivity: SensitivityPersonal,
			Mutating:    true,
			Params:      AppointmentCreateParams{},
		},
		{
			Name:        "appointment.cancel",
			Category:    CategoryAppointment,
			Description: "Cancel an existing appointment",
			Sensitivity: SensitivityPersonal,
			Mutating:    true,
			Params:      AppointmentCancelParams{},
		},
		{
			Name:        "appointment.reschedule",
			Category:    CategoryAppointment,
			Description: "Move an appointment to a new slot",
			Sensitivity: SensitivityPersonal,
			Mutating:    true,
			Params:      AppointmentRescheduleParams{},
		},
		{
			Name:        "inventory.query",
			Category:    CategoryInventory,
			Description: "Look up current stock levels",
			Sensitivity: SensitivityOperational,
			Independent: true,
			Params:      InventoryQueryParams{},
		},
		{
			Name:        "patient_record.read",
			Category:    CategoryPatientRecord,
			Description: "Read a patient record summary",
			Sensitivity: SensitivityClinical,
			Independent: true,
			Params:      PatientRecordReadParams{},
		},
		{
			Name:            "supplier.order_draft",
			Category:        CategorySupplier,
			Description:     "Draft a purchase order for human review",
			Sensitivity:     SensitivityFinancial,
			FinancialImpact: true,
			Mutating:        true,
			Params:          SupplierOrderDraftParams{},
		},
		{
			Name:        "billing.summary",
			Category:    CategoryBilling,
			Description: "Summarize billed amounts for a period",
			Sensitivity: SensitivityFinancial,
			Independent: true,
			Params:      BillingSummaryParams{},
		},
	}

	for _, d := range descriptors {
		name := d.Name
		d.Simulate = func(ctx context.Context, req Request) (*SimulationResult, error) {
			return backend.Simulate(ctx, name, req)
		}
		d.Execute = func(ctx context.Context, req Request) (*ExecutionResult, error) {
			return backend.Execute(ctx, name, req)
		}
		if err := registry.Register(d); err != nil {
			return err
		}
	}
	return nil
}
