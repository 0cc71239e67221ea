package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"caremesh/services/agent-guard/internal/domain/audit"
	"caremesh/services/agent-guard/internal/domain/guarderrors"
	"caremesh/services/agent-guard/internal/interfaces/httpserver/responses"
)

// AuditHandler exposes the audit trail query endpoint.
type AuditHandler struct {
	recorder *audit.Recorder
	log      zerolog.Logger
}

// NewAuditHandler constructs the handler.
func NewAuditHandler(recorder *audit.Recorder, log zerolog.Logger) *AuditHandler {
	return &AuditHandler{
		recorder: recorder,
		log:      log.With().Str("handler", "audit").Logger(),
	}
}

// List handles GET /v1/audit/events
func (h *AuditHandler) List(c *gin.Context) {
	a, ok := actorFrom(c)
	if !ok {
		return
	}

	filter := audit.Filter{
		// Tenants only ever see their own trail.
		TenantID:  a.TenantID,
		RequestID: c.Query("request_id"),
		Type:      audit.EventType(c.Query("type")),
		Tag:       audit.IncidentTag(c.Query("tag")),
	}

	if raw := c.Query("from"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			responses.HandleNewError(c, guarderrors.ErrorTypeValidation, "from must be RFC3339", "audit-list-001")
			return
		}
		filter.From = t
	}
	if raw := c.Query("to"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			responses.HandleNewError(c, guarderrors.ErrorTypeValidation, "to must be RFC3339", "audit-list-002")
			return
		}
		filter.To = t
	}
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			responses.HandleNewError(c, guarderrors.ErrorTypeValidation, "limit must be a non-negative integer", "audit-list-003")
			return
		}
		filter.Limit = n
	}
	if raw := c.Query("offset"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			responses.HandleNewError(c, guarderrors.ErrorTypeValidation, "offset must be a non-negative integer", "audit-list-004")
			return
		}
		filter.Offset = n
	}

	events, total, err := h.recorder.Query(c.Request.Context(), filter)
	if err != nil {
		responses.HandleError(c, err, "failed to query audit events")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data":  events,
		"total": total,
	})
}
