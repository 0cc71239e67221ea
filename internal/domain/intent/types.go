// Package intent turns raw user text into a structured, validated intent.
// Model output is treated as untrusted input and is always re-validated
// against the intent schema before anything downstream sees it.
package intent

// Type enumerates the intents the pipeline understands.
type Type string

const (
	TypeCreateAppointment     Type = "create_appointment"
	TypeCancelAppointment     Type = "cancel_appointment"
	TypeRescheduleAppointment Type = "reschedule_appointment"
	TypeQueryInventory        Type = "query_inventory"
	TypePatientRecordLookup   Type = "patient_record_lookup"
	TypeSupplierOrder         Type = "supplier_order"
	TypeBillingSummary        Type = "billing_summary"
	TypeMetaCapabilityQuery   Type = "meta_capability_query"
	TypeCancel                Type = "cancel"
)

// Status is the outcome of a refinement attempt.
type Status string

const (
	StatusComplete           Status = "complete"
	StatusNeedsClarification Status = "needs_clarification"
	StatusCancelled          Status = "cancelled"
	StatusRejected           Status = "rejected"
)

// Slot is one extracted value with the model's confidence in it.
type Slot struct {
	Value      string  `json:"value"`
	Confidence float64 `json:"confidence"`
}

// Output is the structured result of refinement.
type Output struct {
	Type          Type            `json:"type"`
	Slots         map[string]Slot `json:"slots,omitempty"`
	MissingSlots  []string        `json:"missing_slots,omitempty"`
	Status        Status          `json:"status"`
	Clarification string          `json:"clarification,omitempty"`
	RejectReason  string          `json:"reject_reason,omitempty"`
}

// SlotValues flattens the slot map to plain values.
func (o *Output) SlotValues() map[string]string {
	out := make(map[string]string, len(o.Slots))
	for name, slot := range o.Slots {
		out[name] = slot.Value
	}
	return out
}

// requiredSlots defines the schema each intent type must satisfy before it is
// considered complete.
var requiredSlots = map[Type][]string{
	TypeCreateAppointment:     {"patient", "date", "time"},
	TypeCancelAppointment:     {"patient", "date"},
	TypeRescheduleAppointment: {"patient", "date", "new_date", "new_time"},
	TypeQueryInventory:        {"item"},
	TypePatientRecordLookup:   {"patient"},
	TypeSupplierOrder:         {"supplier", "item", "quantity"},
	TypeBillingSummary:        {"period"},
	TypeMetaCapabilityQuery:   nil,
	TypeCancel:                nil,
}

// KnownType reports whether t is an enumerated intent type.
func KnownType(t Type) bool {
	_, ok := requiredSlots[t]
	return ok
}

// RequiredSlots returns the slot names an intent type needs.
func RequiredSlots(t Type) []string {
	return requiredSlots[t]
}
