package intent

import "strings"

// Deterministic lexical rules run before any model call, so cancellation and
// capability questions never depend on model availability.

var cancellationPhrases = []string{
	"cancel",
	"cancel that",
	"cancel this",
	"cancel it",
	"never mind",
	"nevermind",
	"forget it",
	"forget that",
	"stop",
	"abort",
	"quit",
}

var metaPhrases = []string{
	"what can you do",
	"what do you do",
	"what can you help with",
	"how can you help",
	"list your capabilities",
	"what are your capabilities",
}

func normalize(text string) string {
	t := strings.ToLower(strings.TrimSpace(text))
	return strings.TrimRight(t, ".!?")
}

// IsCancellation detects a cancellation utterance. Detection is idempotent and
// matches whole phrases only, so "cancel today's appointment" is an
// appointment intent, not a conversation cancel.
func IsCancellation(text string) bool {
	t := normalize(text)
	for _, phrase := range cancellationPhrases {
		if t == phrase {
			return true
		}
	}
	return false
}

// IsMetaQuery detects questions about the agent's own capabilities. A bare
// "help" counts; "help" embedded in a task request does not.
func IsMetaQuery(text string) bool {
	t := normalize(text)
	if t == "help" {
		return true
	}
	for _, phrase := range metaPhrases {
		if strings.Contains(t, phrase) {
			return true
		}
	}
	return false
}
