// Package audit defines the append-only record of every pipeline stage
// transition, decision, and outcome.
package audit

import "time"

// EventType enumerates the pipeline events an audit row can describe.
type EventType string

const (
	EventRequestReceived        EventType = "request_received"
	EventKillSwitchBlocked      EventType = "kill_switch_blocked"
	EventRateLimited            EventType = "rate_limited"
	EventIntentRefined          EventType = "intent_refined"
	EventIntentRejected         EventType = "intent_rejected"
	EventIntentCancelled        EventType = "intent_cancelled"
	EventClarificationRequested EventType = "clarification_requested"
	EventPolicyAllow            EventType = "policy_allow"
	EventPolicyDeny             EventType = "policy_deny"
	EventPolicyRequiresApproval EventType = "policy_requires_approval"
	EventPlanCreated            EventType = "plan_created"
	EventPlanApproved           EventType = "plan_approved"
	EventPlanRejected           EventType = "plan_rejected"
	EventPlanExpired            EventType = "plan_expired"
	EventSimulationCompleted    EventType = "simulation_completed"
	EventSimulationFailed       EventType = "simulation_failed"
	EventToolInvoked            EventType = "tool_invoked"
	EventExecutionCompleted     EventType = "execution_completed"
	EventExecutionFailed        EventType = "execution_failed"
	EventBreakerOpened          EventType = "breaker_opened"
	EventAdminToggle            EventType = "admin_toggle"
)

// IncidentTag classifies events for incident filtering.
type IncidentTag string

const (
	TagNone        IncidentTag = "none"
	TagSecurity    IncidentTag = "security"
	TagCompliance  IncidentTag = "compliance"
	TagReliability IncidentTag = "reliability"
	TagAbuse       IncidentTag = "abuse"
)

// Event is one append-only audit row. Rows are never updated or deleted by
// normal code paths. Sequence orders events within one request's trail.
type Event struct {
	ID        string         `json:"id"`
	RequestID string         `json:"request_id"`
	TenantID  string         `json:"tenant_id"`
	UserID    string         `json:"user_id,omitempty"`
	Stage     string         `json:"stage"`
	Type      EventType      `json:"type"`
	Tag       IncidentTag    `json:"tag"`
	Detail    map[string]any `json:"detail,omitempty"`
	Sequence  int            `json:"sequence"`
	CreatedAt time.Time      `json:"created_at"`
}

// Filter narrows an audit query. Zero values match everything.
type Filter struct {
	TenantID  string
	RequestID string
	Type      EventType
	Tag       IncidentTag
	From      time.Time
	To        time.Time
	Limit     int
	Offset    int
}
