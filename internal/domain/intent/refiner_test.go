package intent_test

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"caremesh/services/agent-guard/internal/domain/audit"
	"caremesh/services/agent-guard/internal/domain/guarderrors"
	"caremesh/services/agent-guard/internal/domain/intent"
	"caremesh/services/agent-guard/internal/domain/memory"
	"caremesh/services/agent-guard/internal/domain/modelregistry"
	"caremesh/services/agent-guard/internal/domain/promptregistry"
	auditlogrepo "caremesh/services/agent-guard/internal/infrastructure/repository/auditlog"
)

type invokerStub struct {
	raw    string
	tokens int
	err    error
	prompt string
}

func (s *invokerStub) StructuredCompletion(ctx context.Context, model, systemPrompt, userText string) ([]byte, int, error) {
	s.prompt = systemPrompt
	if s.err != nil {
		return nil, 0, s.err
	}
	return []byte(s.raw), s.tokens, nil
}

type passBreaker struct{}

func (passBreaker) Execute(ctx context.Context, resource string, fn func() (any, error)) (any, error) {
	return fn()
}

func newRefiner(t *testing.T, invoker intent.ModelInvoker) *intent.Refiner {
	t.Helper()
	ctx := context.Background()

	prompts := promptregistry.NewRegistry()
	require.NoError(t, promptregistry.LoadDefaults(ctx, prompts))

	models := modelregistry.NewRegistry()
	require.NoError(t, models.RegisterVersion(modelregistry.ModelVersion{
		ID: "m1", Type: "intent-refiner", Name: "test-model", Status: modelregistry.StatusActive,
	}))
	require.NoError(t, models.RegisterExperiment(modelregistry.ABTestConfig{
		ExperimentID: intent.RefineExperimentID,
		Variants:     []modelregistry.Variant{{VersionID: "m1", Percent: 100}},
	}))

	mem, err := memory.NewStore(16)
	require.NoError(t, err)
	recorder := audit.NewRecorder(auditlogrepo.NewMemoryRepository(), zerolog.Nop())

	return intent.NewRefiner(prompts, models, invoker, passBreaker{}, mem, recorder, zerolog.Nop())
}

func refineReq(text string) intent.Request {
	return intent.Request{
		RequestID:      "req-1",
		TenantID:       "clinic-a",
		UserID:         "u1",
		ConversationID: "conv-1",
		Text:           text,
	}
}

func TestRefiner_CancellationSkipsModel(t *testing.T) {
	invoker := &invokerStub{}
	r := newRefiner(t, invoker)

	for _, text := range []string{"cancel", "Never mind.", "forget it", "STOP"} {
		result, err := r.Refine(context.Background(), refineReq(text))
		require.NoError(t, err, text)
		assert.Equal(t, intent.StatusCancelled, result.Output.Status, text)
		assert.Equal(t, intent.TypeCancel, result.Output.Type, text)
	}
	assert.Empty(t, invoker.prompt, "cancellation must not reach the model")
}

func TestRefiner_CancelInsideTaskTextIsNotCancellation(t *testing.T) {
	invoker := &invokerStub{
		raw:    `{"intent":"cancel_appointment","slots":{"patient":{"value":"Alvarez","confidence":0.9},"date":{"value":"2026-09-03","confidence":0.9}}}`,
		tokens: 30,
	}
	r := newRefiner(t, invoker)

	result, err := r.Refine(context.Background(), refineReq("cancel Ms. Alvarez's appointment on 2026-09-03"))
	require.NoError(t, err)
	assert.Equal(t, intent.StatusComplete, result.Output.Status)
	assert.Equal(t, intent.TypeCancelAppointment, result.Output.Type)
	assert.Equal(t, 30, result.Tokens)
}

func TestRefiner_MetaQuerySkipsModel(t *testing.T) {
	invoker := &invokerStub{}
	r := newRefiner(t, invoker)

	result, err := r.Refine(context.Background(), refineReq("what can you do?"))
	require.NoError(t, err)
	assert.Equal(t, intent.TypeMetaCapabilityQuery, result.Output.Type)
	assert.Equal(t, intent.StatusComplete, result.Output.Status)
	assert.Empty(t, invoker.prompt)
}

func TestRefiner_PromptListsKnownIntents(t *testing.T) {
	invoker := &invokerStub{
		raw: `{"intent":"query_inventory","slots":{"item":{"value":"gloves","confidence":0.9}}}`,
	}
	r := newRefiner(t, invoker)

	_, err := r.Refine(context.Background(), refineReq("how many gloves do we have"))
	require.NoError(t, err)
	assert.Contains(t, invoker.prompt, "query_inventory")
	assert.Contains(t, invoker.prompt, "cancel_appointment")
	assert.NotContains(t, invoker.prompt, "{{")
}

func TestRefiner_RejectsUnknownIntentType(t *testing.T) {
	invoker := &invokerStub{raw: `{"intent":"delete_all_records","slots":{}}`}
	r := newRefiner(t, invoker)

	result, err := r.Refine(context.Background(), refineReq("wipe everything"))
	require.NoError(t, err)
	assert.Equal(t, intent.StatusRejected, result.Output.Status)
	assert.Contains(t, result.Output.RejectReason, "delete_all_records")
}

func TestRefiner_RejectsMalformedModelOutput(t *testing.T) {
	invoker := &invokerStub{raw: `I think the user wants to cancel an appointment`}
	r := newRefiner(t, invoker)

	result, err := r.Refine(context.Background(), refineReq("cancel my appointment tomorrow"))
	require.NoError(t, err)
	assert.Equal(t, intent.StatusRejected, result.Output.Status)
	assert.Contains(t, result.Output.RejectReason, "not valid JSON")
}

func TestRefiner_RejectsConfidenceOutOfRange(t *testing.T) {
	invoker := &invokerStub{
		raw: `{"intent":"query_inventory","slots":{"item":{"value":"gloves","confidence":1.7}}}`,
	}
	r := newRefiner(t, invoker)

	result, err := r.Refine(context.Background(), refineReq("check gloves"))
	require.NoError(t, err)
	assert.Equal(t, intent.StatusRejected, result.Output.Status)
}

func TestRefiner_MissingSlotsAskForClarification(t *testing.T) {
	invoker := &invokerStub{
		raw: `{"intent":"create_appointment","slots":{"patient":{"value":"Alvarez","confidence":0.92}}}`,
	}
	r := newRefiner(t, invoker)

	result, err := r.Refine(context.Background(), refineReq("book Alvarez in"))
	require.NoError(t, err)
	out := result.Output
	assert.Equal(t, intent.StatusNeedsClarification, out.Status)
	assert.Equal(t, []string{"date", "time"}, out.MissingSlots)
	assert.Contains(t, out.Clarification, "date and time")
}

func TestRefiner_ClarificationTurnsMergeAcrossMemory(t *testing.T) {
	invoker := &invokerStub{
		raw: `{"intent":"create_appointment","slots":{"patient":{"value":"Alvarez","confidence":0.92}}}`,
	}
	r := newRefiner(t, invoker)
	ctx := context.Background()

	first, err := r.Refine(ctx, refineReq("book Alvarez in"))
	require.NoError(t, err)
	require.Equal(t, intent.StatusNeedsClarification, first.Output.Status)

	// Second turn supplies the rest; earlier slots come back from memory.
	invoker.raw = `{"intent":"create_appointment","slots":{"date":{"value":"2026-09-03","confidence":0.9},"time":{"value":"14:00","confidence":0.9}}}`
	second, err := r.Refine(ctx, refineReq("tomorrow at 14:00"))
	require.NoError(t, err)

	out := second.Output
	assert.Equal(t, intent.StatusComplete, out.Status)
	assert.Empty(t, out.MissingSlots)
	values := out.SlotValues()
	assert.Equal(t, "Alvarez", values["patient"])
	assert.Equal(t, "2026-09-03", values["date"])
	assert.Equal(t, "14:00", values["time"])
}

func TestRefiner_IntentChangeDropsStaleSlots(t *testing.T) {
	invoker := &invokerStub{
		raw: `{"intent":"create_appointment","slots":{"patient":{"value":"Alvarez","confidence":0.92}}}`,
	}
	r := newRefiner(t, invoker)
	ctx := context.Background()

	_, err := r.Refine(ctx, refineReq("book Alvarez in"))
	require.NoError(t, err)

	// The user switches to a different incomplete intent mid-conversation.
	invoker.raw = `{"intent":"supplier_order","slots":{"item":{"value":"gloves","confidence":0.9}}}`
	result, err := r.Refine(ctx, refineReq("actually order more gloves"))
	require.NoError(t, err)

	out := result.Output
	assert.Equal(t, intent.StatusNeedsClarification, out.Status)
	assert.NotContains(t, out.SlotValues(), "patient")
	assert.Contains(t, out.MissingSlots, "supplier")
	assert.Contains(t, out.MissingSlots, "quantity")
}

func TestRefiner_EmptySlotValuesAreAbsent(t *testing.T) {
	invoker := &invokerStub{
		raw: `{"intent":"query_inventory","slots":{"item":{"value":"","confidence":0.4}}}`,
	}
	r := newRefiner(t, invoker)

	result, err := r.Refine(context.Background(), refineReq("check stock"))
	require.NoError(t, err)
	assert.Equal(t, intent.StatusNeedsClarification, result.Output.Status)
	assert.Equal(t, []string{"item"}, result.Output.MissingSlots)
}

func TestRefiner_ModelFailurePropagates(t *testing.T) {
	invoker := &invokerStub{
		err: guarderrors.New(context.Background(), guarderrors.LayerInfrastructure,
			guarderrors.ErrorTypeToolTransient, "model backend timeout", nil, "model-completion-001"),
	}
	r := newRefiner(t, invoker)

	result, err := r.Refine(context.Background(), refineReq("book Alvarez in"))
	require.Error(t, err)
	assert.Nil(t, result)
}
