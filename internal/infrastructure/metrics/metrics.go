package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Agent-Guard Metrics
var (
	// Request counters
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "caremesh",
			Subsystem: "agent_guard",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	// Request duration histogram
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "caremesh",
			Subsystem: "agent_guard",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"method", "endpoint"},
	)

	// Pipeline outcome counters
	PipelineOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "caremesh",
			Subsystem: "agent_guard",
			Name:      "pipeline_outcomes_total",
			Help:      "Pipeline runs by final outcome",
		},
		[]string{"outcome"},
	)

	// Pipeline stage duration histogram
	StageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "caremesh",
			Subsystem: "agent_guard",
			Name:      "stage_duration_seconds",
			Help:      "Pipeline stage duration in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30},
		},
		[]string{"stage"},
	)

	// Policy decision counters
	PolicyDecisionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "caremesh",
			Subsystem: "agent_guard",
			Name:      "policy_decisions_total",
			Help:      "Policy engine decisions by stage and effect",
		},
		[]string{"stage", "effect"},
	)

	// Tool invocation counters
	ToolCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "caremesh",
			Subsystem: "agent_guard",
			Name:      "tool_calls_total",
			Help:      "Tool invocations by name, mode, and result",
		},
		[]string{"tool_name", "mode", "status"},
	)

	// Rate limit rejections
	RateLimitedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "caremesh",
			Subsystem: "agent_guard",
			Name:      "rate_limited_total",
			Help:      "Requests rejected by the rate limiter",
		},
		[]string{"capability"},
	)

	// Kill switch blocks
	KillSwitchBlocksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "caremesh",
			Subsystem: "agent_guard",
			Name:      "kill_switch_blocks_total",
			Help:      "Requests blocked by an engaged kill switch",
		},
		[]string{"capability"},
	)

	// Circuit breaker transitions
	BreakerTransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "caremesh",
			Subsystem: "agent_guard",
			Name:      "breaker_transitions_total",
			Help:      "Circuit breaker state transitions by resource",
		},
		[]string{"resource", "to_state"},
	)

	// Model token usage
	ModelTokensTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "caremesh",
			Subsystem: "agent_guard",
			Name:      "model_tokens_total",
			Help:      "Tokens consumed by intent refinement calls",
		},
	)

	// Plans by terminal status
	PlansTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "caremesh",
			Subsystem: "agent_guard",
			Name:      "plans_total",
			Help:      "Plans reaching a terminal status",
		},
		[]string{"status"},
	)

	// Conversation memory size gauge
	MemoryConversations = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "caremesh",
			Subsystem: "agent_guard",
			Name:      "memory_conversations",
			Help:      "Conversations currently held in short-term memory",
		},
	)
)
