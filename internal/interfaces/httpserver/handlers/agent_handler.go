package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"caremesh/services/agent-guard/internal/domain/guarderrors"
	"caremesh/services/agent-guard/internal/domain/pipeline"
	"caremesh/services/agent-guard/internal/interfaces/httpserver/requests"
	"caremesh/services/agent-guard/internal/interfaces/httpserver/responses"
)

// AgentService is the pipeline surface the handler depends on.
type AgentService interface {
	Submit(ctx context.Context, in pipeline.SubmitInput) (*pipeline.Envelope, error)
	Approve(ctx context.Context, in pipeline.ApproveInput) (*pipeline.Envelope, error)
	GetRequest(ctx context.Context, requestID string) (*pipeline.RequestView, error)
}

// AgentHandler exposes HTTP entrypoints for the guarded agent API.
type AgentHandler struct {
	service AgentService
	log     zerolog.Logger
}

// NewAgentHandler constructs the handler.
func NewAgentHandler(service AgentService, log zerolog.Logger) *AgentHandler {
	return &AgentHandler{
		service: service,
		log:     log.With().Str("handler", "agent").Logger(),
	}
}

type actor struct {
	TenantID string
	UserID   string
	Role     string
}

// actorFrom extracts the acting identity headers the gateway injects.
func actorFrom(c *gin.Context) (actor, bool) {
	a := actor{
		TenantID: strings.TrimSpace(c.GetHeader("X-Tenant-ID")),
		UserID:   strings.TrimSpace(c.GetHeader("X-User-ID")),
		Role:     strings.TrimSpace(c.GetHeader("X-Role")),
	}
	if a.TenantID == "" || a.UserID == "" || a.Role == "" {
		responses.HandleNewError(c, guarderrors.ErrorTypeValidation,
			"X-Tenant-ID, X-User-ID, and X-Role headers are required", "agent-identity-001")
		return actor{}, false
	}
	return a, true
}

// Submit handles POST /v1/agent/requests
func (h *AgentHandler) Submit(c *gin.Context) {
	a, ok := actorFrom(c)
	if !ok {
		return
	}

	var req requests.SubmitAgentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		responses.HandleNewError(c, guarderrors.ErrorTypeValidation, "invalid request body: "+err.Error(), "agent-submit-001")
		return
	}

	conversationID := req.ConversationID
	if conversationID == "" {
		conversationID = a.TenantID + ":" + a.UserID
	}

	envelope, err := h.service.Submit(c.Request.Context(), pipeline.SubmitInput{
		TenantID:       a.TenantID,
		UserID:         a.UserID,
		Role:           a.Role,
		ConversationID: conversationID,
		Text:           req.Text,
	})
	if err != nil {
		responses.HandleError(c, err, "failed to process request")
		return
	}

	c.JSON(responses.EnvelopeStatus(envelope), responses.MapEnvelope(envelope))
}

// Approve handles POST /v1/agent/plans/:plan_id/approval
func (h *AgentHandler) Approve(c *gin.Context) {
	a, ok := actorFrom(c)
	if !ok {
		return
	}

	var req requests.ApprovalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		responses.HandleNewError(c, guarderrors.ErrorTypeValidation, "invalid request body: "+err.Error(), "agent-approve-001")
		return
	}

	envelope, err := h.service.Approve(c.Request.Context(), pipeline.ApproveInput{
		PlanID:     c.Param("plan_id"),
		ApproverID: a.UserID,
		Approve:    req.Approve,
		Reason:     req.Reason,
	})
	if err != nil {
		responses.HandleError(c, err, "failed to resolve approval")
		return
	}

	c.JSON(responses.EnvelopeStatus(envelope), responses.MapEnvelope(envelope))
}

// Get handles GET /v1/agent/requests/:request_id
func (h *AgentHandler) Get(c *gin.Context) {
	if _, ok := actorFrom(c); !ok {
		return
	}

	view, err := h.service.GetRequest(c.Request.Context(), c.Param("request_id"))
	if err != nil {
		responses.HandleError(c, err, "failed to get request")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"request": view.Request,
		"plan":    responses.MapPlan(view.Plan),
	})
}
