package intent

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/rs/zerolog"

	"caremesh/services/agent-guard/internal/domain/audit"
	"caremesh/services/agent-guard/internal/domain/guarderrors"
	"caremesh/services/agent-guard/internal/domain/memory"
	"caremesh/services/agent-guard/internal/domain/modelregistry"
	"caremesh/services/agent-guard/internal/domain/promptregistry"
)

// ModelResourceName is the circuit breaker resource guarding the model backend.
const ModelResourceName = "model-backend"

// RefineExperimentID is the A/B experiment the refiner resolves its model from.
const RefineExperimentID = "intent-refiner"

// ModelInvoker is the black-box text-to-structured-output function. Its output
// is never trusted without validation.
type ModelInvoker interface {
	StructuredCompletion(ctx context.Context, model, systemPrompt, userText string) (raw []byte, tokens int, err error)
}

// Breaker wraps external calls with circuit protection.
type Breaker interface {
	Execute(ctx context.Context, resource string, fn func() (any, error)) (any, error)
}

// Request is one refinement attempt.
type Request struct {
	RequestID      string
	TenantID       string
	UserID         string
	ConversationID string
	Text           string
}

// Result pairs the validated output with the token count the call consumed.
type Result struct {
	Output *Output
	Tokens int
}

// Refiner validates model-extracted intents against the intent schema and
// merges clarification turns with conversation memory.
type Refiner struct {
	prompts *promptregistry.Registry
	models  *modelregistry.Registry
	invoker ModelInvoker
	breaker Breaker
	memory  *memory.Store
	audit   *audit.Recorder
	log     zerolog.Logger
}

// NewRefiner constructs the refiner.
func NewRefiner(
	prompts *promptregistry.Registry,
	models *modelregistry.Registry,
	invoker ModelInvoker,
	breaker Breaker,
	mem *memory.Store,
	recorder *audit.Recorder,
	log zerolog.Logger,
) *Refiner {
	return &Refiner{
		prompts: prompts,
		models:  models,
		invoker: invoker,
		breaker: breaker,
		memory:  mem,
		audit:   recorder,
		log:     log.With().Str("component", "intent-refiner").Logger(),
	}
}

// candidate mirrors the JSON shape the model is instructed to emit.
type candidate struct {
	Intent string          `json:"intent"`
	Slots  map[string]Slot `json:"slots"`
}

// Refine runs the deterministic lexical pass, then the model call, then strict
// schema validation. One audit event is written per attempt, success or failure.
func (r *Refiner) Refine(ctx context.Context, req Request) (*Result, error) {
	// Cancellation takes precedence over everything, including in-flight
	// slot filling, and never depends on model availability.
	if IsCancellation(req.Text) {
		r.memory.Clear(req.ConversationID)
		out := &Output{Type: TypeCancel, Status: StatusCancelled}
		r.recordAttempt(ctx, req, audit.EventIntentCancelled, out, nil)
		return &Result{Output: out}, nil
	}

	if IsMetaQuery(req.Text) {
		out := &Output{Type: TypeMetaCapabilityQuery, Status: StatusComplete}
		r.recordAttempt(ctx, req, audit.EventIntentRefined, out, nil)
		return &Result{Output: out}, nil
	}

	version, err := r.models.AssignVariant(ctx, req.TenantID, RefineExperimentID)
	if err != nil {
		return nil, guarderrors.AsError(ctx, guarderrors.LayerDomain, err, "resolve refiner model")
	}

	prompt, err := r.prompts.Render(ctx, promptregistry.RefinePromptID, map[string]any{
		"IntentTypes": knownTypeNames(),
	})
	if err != nil {
		return nil, err
	}

	value, err := r.breaker.Execute(ctx, ModelResourceName, func() (any, error) {
		raw, tokens, callErr := r.invoker.StructuredCompletion(ctx, version.Name, prompt, req.Text)
		if callErr != nil {
			return nil, callErr
		}
		return &modelResponse{raw: raw, tokens: tokens}, nil
	})
	if err != nil {
		r.recordAttempt(ctx, req, audit.EventIntentRejected, nil, err)
		return nil, guarderrors.AsError(ctx, guarderrors.LayerDomain, err, "refine intent")
	}
	resp := value.(*modelResponse)

	out := r.validate(resp.raw)
	result := &Result{Output: out, Tokens: resp.tokens}

	switch out.Status {
	case StatusRejected:
		r.recordAttempt(ctx, req, audit.EventIntentRejected, out, nil)
		return result, nil
	case StatusNeedsClarification:
		r.mergeMemory(req.ConversationID, out)
		if out.Status == StatusNeedsClarification {
			r.recordAttempt(ctx, req, audit.EventClarificationRequested, out, nil)
			return result, nil
		}
	}

	r.memory.Clear(req.ConversationID)
	r.recordAttempt(ctx, req, audit.EventIntentRefined, out, nil)
	return result, nil
}

type modelResponse struct {
	raw    []byte
	tokens int
}

// validate enforces the intent schema on untrusted model output. Unknown
// intent types, malformed slots, or empty required values force rejection.
func (r *Refiner) validate(raw []byte) *Output {
	var c candidate
	if err := json.Unmarshal(raw, &c); err != nil {
		return &Output{Status: StatusRejected, RejectReason: "model output is not valid JSON"}
	}

	t := Type(c.Intent)
	if !KnownType(t) {
		return &Output{Status: StatusRejected, RejectReason: fmt.Sprintf("unknown intent type %q", c.Intent)}
	}

	slots := make(map[string]Slot, len(c.Slots))
	for name, slot := range c.Slots {
		if name == "" {
			return &Output{Status: StatusRejected, RejectReason: "slot with empty name"}
		}
		if slot.Confidence < 0 || slot.Confidence > 1 {
			return &Output{Status: StatusRejected, RejectReason: fmt.Sprintf("slot %q confidence out of range", name)}
		}
		if slot.Value == "" {
			// Empty extraction is treated as absent, not as a value.
			continue
		}
		slots[name] = slot
	}

	var missing []string
	for _, required := range RequiredSlots(t) {
		if _, ok := slots[required]; !ok {
			missing = append(missing, required)
		}
	}
	sort.Strings(missing)

	out := &Output{Type: t, Slots: slots, MissingSlots: missing, Status: StatusComplete}
	if len(missing) > 0 {
		out.Status = StatusNeedsClarification
		out.Clarification = clarificationPrompt(t, missing)
	}
	return out
}

// mergeMemory fills missing slots from earlier turns of the same conversation
// and records the still-missing ones for the next turn.
func (r *Refiner) mergeMemory(conversationID string, out *Output) {
	st := r.memory.Update(conversationID, func(st *memory.State) {
		if st.IntentType != "" && st.IntentType != string(out.Type) {
			// Intent changed mid-conversation; stale slots no longer apply.
			st.Slots = map[string]string{}
		}
		st.IntentType = string(out.Type)
		for name, slot := range out.Slots {
			st.Slots[name] = slot.Value
		}
		st.PendingConfirmation = true
	})

	for name, value := range st.Slots {
		if _, ok := out.Slots[name]; !ok {
			out.Slots[name] = Slot{Value: value, Confidence: 1.0}
		}
	}

	var missing []string
	for _, required := range RequiredSlots(out.Type) {
		if _, ok := out.Slots[required]; !ok {
			missing = append(missing, required)
		}
	}
	sort.Strings(missing)
	out.MissingSlots = missing

	if len(missing) == 0 {
		out.Status = StatusComplete
		out.Clarification = ""
	} else {
		out.Clarification = clarificationPrompt(out.Type, missing)
	}
}

func clarificationPrompt(t Type, missing []string) string {
	return fmt.Sprintf("To proceed with %s, please provide: %s",
		string(t), joinHuman(missing))
}

func joinHuman(items []string) string {
	switch len(items) {
	case 0:
		return ""
	case 1:
		return items[0]
	default:
		out := ""
		for i, item := range items {
			switch {
			case i == 0:
				out = item
			case i == len(items)-1:
				out += " and " + item
			default:
				out += ", " + item
			}
		}
		return out
	}
}

func knownTypeNames() []string {
	names := make([]string, 0, len(requiredSlots))
	for t := range requiredSlots {
		names = append(names, string(t))
	}
	sort.Strings(names)
	return names
}

func (r *Refiner) recordAttempt(ctx context.Context, req Request, eventType audit.EventType, out *Output, err error) {
	detail := map[string]any{"conversation_id": req.ConversationID}
	if out != nil {
		detail["intent_type"] = string(out.Type)
		detail["intent_status"] = string(out.Status)
		if out.RejectReason != "" {
			detail["reject_reason"] = out.RejectReason
		}
		if len(out.MissingSlots) > 0 {
			detail["missing_slots"] = out.MissingSlots
		}
	}
	if err != nil {
		detail["error"] = err.Error()
	}

	tag := audit.TagNone
	if eventType == audit.EventIntentRejected {
		tag = audit.TagSecurity
	}

	r.audit.Record(ctx, audit.Event{
		RequestID: req.RequestID,
		TenantID:  req.TenantID,
		UserID:    req.UserID,
		Stage:     "refine",
		Type:      eventType,
		Tag:       tag,
		Detail:    detail,
	})
}
