package handlers

import (
	"github.com/rs/zerolog"

	"caremesh/services/agent-guard/internal/domain/audit"
	"caremesh/services/agent-guard/internal/infrastructure/breaker"
	"caremesh/services/agent-guard/internal/infrastructure/killswitch"
	"caremesh/services/agent-guard/internal/infrastructure/ratelimit"
)

// Provider wires all HTTP handlers for dependency injection.
type Provider struct {
	Agent *AgentHandler
	Audit *AuditHandler
	Admin *AdminHandler
}

// NewProvider constructs the handler provider.
func NewProvider(
	agentService AgentService,
	recorder *audit.Recorder,
	gate *killswitch.Gate,
	breakers *breaker.Manager,
	limiter *ratelimit.Limiter,
	log zerolog.Logger,
) *Provider {
	return &Provider{
		Agent: NewAgentHandler(agentService, log),
		Audit: NewAuditHandler(recorder, log),
		Admin: NewAdminHandler(gate, breakers, limiter, recorder, log),
	}
}
