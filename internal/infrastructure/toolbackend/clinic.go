// Package toolbackend provides an in-memory clinic platform used for local
// runs and tests. Execute is idempotent: a second call with the same
// idempotency key replays the stored result instead of re-applying it.
package toolbackend

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"caremesh/services/agent-guard/internal/domain/tool"
)

// Clinic simulates and executes catalog operations against in-memory state.
type Clinic struct {
	log zerolog.Logger

	mu        sync.Mutex
	inventory map[string]int
	executed  map[string]*tool.ExecutionResult // idempotency key -> result
}

// NewClinic creates a backend with a small seeded inventory.
func NewClinic(log zerolog.Logger) *Clinic {
	return &Clinic{
		log: log.With().Str("component", "clinic-backend").Logger(),
		inventory: map[string]int{
			"gloves":   250,
			"syringes": 120,
			"gauze":    75,
		},
		executed: make(map[string]*tool.ExecutionResult),
	}
}

// Simulate validates feasibility without touching state.
func (c *Clinic) Simulate(ctx context.Context, toolName string, req tool.Request) (*tool.SimulationResult, error) {
	switch toolName {
	case "inventory.query":
		item, _ := req.Params["item"].(string)
		c.mu.Lock()
		_, known := c.inventory[item]
		c.mu.Unlock()
		if !known {
			return &tool.SimulationResult{
				Feasible: true,
				Summary:  fmt.Sprintf("item %q is not stocked, query would return zero", item),
				Warnings: []string{"unknown inventory item"},
			}, nil
		}
		return &tool.SimulationResult{Feasible: true, Summary: fmt.Sprintf("would report stock for %q", item)}, nil
	case "supplier.order_draft":
		quantity, ok := req.Params["quantity"].(int)
		if !ok {
			if f, isFloat := req.Params["quantity"].(float64); isFloat {
				quantity = int(f)
				ok = true
			}
		}
		if ok && quantity <= 0 {
			return &tool.SimulationResult{Feasible: false, Summary: "order quantity must be positive"}, nil
		}
	}
	return &tool.SimulationResult{Feasible: true, Summary: fmt.Sprintf("dry run of %s succeeded", toolName)}, nil
}

// Execute applies the operation. Replays with a known idempotency key return
// the original result without side effects.
func (c *Clinic) Execute(ctx context.Context, toolName string, req tool.Request) (*tool.ExecutionResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if prior, ok := c.executed[req.IdempotencyKey]; ok {
		c.log.Debug().Str("tool", toolName).Str("idempotency_key", req.IdempotencyKey).Msg("replaying executed operation")
		return prior, nil
	}

	result := &tool.ExecutionResult{
		Summary: fmt.Sprintf("%s executed", toolName),
		Output:  map[string]any{"tool": toolName},
	}

	switch toolName {
	case "inventory.query":
		item, _ := req.Params["item"].(string)
		result.Summary = fmt.Sprintf("stock level for %q", item)
		result.Output["item"] = item
		result.Output["quantity"] = c.inventory[item]
	case "appointment.create":
		result.Summary = fmt.Sprintf("appointment booked for %v on %v", req.Params["patient"], req.Params["date"])
	case "appointment.cancel":
		result.Summary = fmt.Sprintf("appointment cancelled for %v on %v", req.Params["patient"], req.Params["date"])
	case "appointment.reschedule":
		result.Summary = fmt.Sprintf("appointment moved to %v", req.Params["new_date"])
	case "patient_record.read":
		result.Summary = fmt.Sprintf("record retrieved for %v", req.Params["patient"])
	case "supplier.order_draft":
		result.Summary = fmt.Sprintf("draft order for %v x %v sent to %v",
			req.Params["quantity"], req.Params["item"], req.Params["supplier"])
	case "billing.summary":
		result.Summary = fmt.Sprintf("billing summary for %v", req.Params["period"])
	}

	c.executed[req.IdempotencyKey] = result
	return result, nil
}
