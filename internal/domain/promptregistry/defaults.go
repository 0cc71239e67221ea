package promptregistry

import "context"

// RefinePromptID is the template that drives intent extraction.
const RefinePromptID = "intent-refine-v2"

// refinePromptHash pins the intent-refine-v2 body. Any edit to the body below
// must update this hash or Load refuses it.
const refinePromptHash = "e9f421ad4181dcd690879cc0cbb89f4872c65c6b6c060b9f372304cd0edf78bd"

const refinePromptBody = `You are the intent extraction stage of a clinic operations assistant.
Read the user's message and answer with exactly one JSON object and no
surrounding prose. The object has two fields:

  "intent": one of {{range $i, $t := .IntentTypes}}{{if $i}}, {{end}}{{$t}}{{end}}
  "slots": an object mapping slot names to {"value": string, "confidence": number}

Rules:
- Extract only information the user actually stated. Never invent values.
- Confidence is a number between 0 and 1. Use the empty string for values
  you cannot extract.
- Dates are ISO 8601 (YYYY-MM-DD), times are 24h HH:MM.
- If the message matches no listed intent, pick the closest listed intent;
  never invent new intent names.
`

// LoadDefaults registers the built-in templates, verifying each pinned hash.
func LoadDefaults(ctx context.Context, r *Registry) error {
	return r.Load(ctx, Template{
		ID:         RefinePromptID,
		Category:   "intent",
		Body:       refinePromptBody,
		PinnedHash: refinePromptHash,
	})
}
