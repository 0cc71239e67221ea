package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"caremesh/services/agent-guard/internal/domain/audit"
	"caremesh/services/agent-guard/internal/domain/guarderrors"
	"caremesh/services/agent-guard/internal/infrastructure/breaker"
	"caremesh/services/agent-guard/internal/infrastructure/killswitch"
	"caremesh/services/agent-guard/internal/infrastructure/ratelimit"
	"caremesh/services/agent-guard/internal/interfaces/httpserver/requests"
	"caremesh/services/agent-guard/internal/interfaces/httpserver/responses"
)

// AdminHandler exposes operator controls: kill switches, breaker state, and
// rate limit inspection. Every toggle is audited.
type AdminHandler struct {
	gate     *killswitch.Gate
	breakers *breaker.Manager
	limiter  *ratelimit.Limiter
	recorder *audit.Recorder
	log      zerolog.Logger
}

// NewAdminHandler constructs the handler.
func NewAdminHandler(gate *killswitch.Gate, breakers *breaker.Manager, limiter *ratelimit.Limiter, recorder *audit.Recorder, log zerolog.Logger) *AdminHandler {
	return &AdminHandler{
		gate:     gate,
		breakers: breakers,
		limiter:  limiter,
		recorder: recorder,
		log:      log.With().Str("handler", "admin").Logger(),
	}
}

// GetKillSwitches handles GET /v1/admin/killswitch
func (h *AdminHandler) GetKillSwitches(c *gin.Context) {
	if _, ok := actorFrom(c); !ok {
		return
	}
	state, err := h.gate.State(c.Request.Context())
	if err != nil {
		responses.HandleError(c, err, "failed to read kill switch state")
		return
	}
	c.JSON(http.StatusOK, gin.H{"capabilities": state})
}

// ToggleKillSwitch handles PUT /v1/admin/killswitch/:capability
func (h *AdminHandler) ToggleKillSwitch(c *gin.Context) {
	a, ok := actorFrom(c)
	if !ok {
		return
	}

	capability := killswitch.Capability(c.Param("capability"))
	if !capability.Valid() {
		responses.HandleNewError(c, guarderrors.ErrorTypeValidation,
			"unknown capability "+c.Param("capability"), "admin-killswitch-001")
		return
	}

	var req requests.KillSwitchToggleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		responses.HandleNewError(c, guarderrors.ErrorTypeValidation, "invalid request body: "+err.Error(), "admin-killswitch-002")
		return
	}

	if err := h.gate.Toggle(c.Request.Context(), capability, req.Engaged); err != nil {
		responses.HandleError(c, err, "failed to toggle kill switch")
		return
	}

	h.recorder.Record(c.Request.Context(), audit.Event{
		TenantID: a.TenantID,
		UserID:   a.UserID,
		Stage:    "admin",
		Type:     audit.EventAdminToggle,
		Tag:      audit.TagSecurity,
		Detail: map[string]any{
			"capability": string(capability),
			"engaged":    req.Engaged,
			"reason":     req.Reason,
		},
	})

	c.JSON(http.StatusOK, gin.H{
		"capability": string(capability),
		"engaged":    req.Engaged,
	})
}

// GetBreakers handles GET /v1/admin/breakers
func (h *AdminHandler) GetBreakers(c *gin.Context) {
	if _, ok := actorFrom(c); !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"breakers": h.breakers.States()})
}

// GetRateLimits handles GET /v1/admin/ratelimits
func (h *AdminHandler) GetRateLimits(c *gin.Context) {
	a, ok := actorFrom(c)
	if !ok {
		return
	}

	type capabilityStatus struct {
		Capacity int64            `json:"capacity"`
		Window   string           `json:"window"`
		PerUser  bool             `json:"per_user"`
		Current  ratelimit.Result `json:"current"`
	}

	out := make(map[string]capabilityStatus)
	for capability, budget := range h.limiter.Budgets() {
		current, err := h.limiter.Inspect(c.Request.Context(), capability, a.TenantID, a.UserID)
		if err != nil {
			responses.HandleError(c, err, "failed to inspect rate limits")
			return
		}
		out[capability] = capabilityStatus{
			Capacity: budget.Capacity,
			Window:   budget.Window.String(),
			PerUser:  budget.PerUser,
			Current:  current,
		}
	}
	c.JSON(http.StatusOK, gin.H{"capabilities": out})
}
