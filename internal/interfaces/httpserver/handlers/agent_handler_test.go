package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"caremesh/services/agent-guard/internal/domain/guarderrors"
	"caremesh/services/agent-guard/internal/domain/pipeline"
	"caremesh/services/agent-guard/internal/domain/policy"
	"caremesh/services/agent-guard/internal/interfaces/httpserver/handlers"
)

type mockAgentService struct {
	submitFunc     func(ctx context.Context, in pipeline.SubmitInput) (*pipeline.Envelope, error)
	approveFunc    func(ctx context.Context, in pipeline.ApproveInput) (*pipeline.Envelope, error)
	getRequestFunc func(ctx context.Context, requestID string) (*pipeline.RequestView, error)
}

func (m *mockAgentService) Submit(ctx context.Context, in pipeline.SubmitInput) (*pipeline.Envelope, error) {
	return m.submitFunc(ctx, in)
}

func (m *mockAgentService) Approve(ctx context.Context, in pipeline.ApproveInput) (*pipeline.Envelope, error) {
	return m.approveFunc(ctx, in)
}

func (m *mockAgentService) GetRequest(ctx context.Context, requestID string) (*pipeline.RequestView, error) {
	return m.getRequestFunc(ctx, requestID)
}

func newRouter(service handlers.AgentService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	handler := handlers.NewAgentHandler(service, zerolog.Nop())
	router := gin.New()
	router.POST("/v1/agent/requests", handler.Submit)
	router.GET("/v1/agent/requests/:request_id", handler.Get)
	router.POST("/v1/agent/plans/:plan_id/approval", handler.Approve)
	return router
}

func doJSON(router *gin.Engine, method, path string, body any, identity bool) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if identity {
		req.Header.Set("X-Tenant-ID", "clinic-a")
		req.Header.Set("X-User-ID", "u1")
		req.Header.Set("X-Role", "admin")
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestAgentHandler_SubmitRequiresIdentityHeaders(t *testing.T) {
	router := newRouter(&mockAgentService{})

	w := doJSON(router, http.MethodPost, "/v1/agent/requests", gin.H{"text": "hello"}, false)

	require.Equal(t, http.StatusBadRequest, w.Code)
	var resp map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "agent-identity-001", resp["code"])
}

func TestAgentHandler_SubmitRequiresText(t *testing.T) {
	router := newRouter(&mockAgentService{})

	w := doJSON(router, http.MethodPost, "/v1/agent/requests", gin.H{}, true)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAgentHandler_SubmitForwardsIdentity(t *testing.T) {
	var captured pipeline.SubmitInput
	service := &mockAgentService{
		submitFunc: func(ctx context.Context, in pipeline.SubmitInput) (*pipeline.Envelope, error) {
			captured = in
			return &pipeline.Envelope{Kind: pipeline.KindCompleted, RequestID: "req-1"}, nil
		},
	}
	router := newRouter(service)

	w := doJSON(router, http.MethodPost, "/v1/agent/requests", gin.H{"text": "check gloves stock"}, true)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "clinic-a", captured.TenantID)
	assert.Equal(t, "u1", captured.UserID)
	assert.Equal(t, "admin", captured.Role)
	assert.Equal(t, "check gloves stock", captured.Text)
	// Missing conversation id defaults to a tenant-scoped one.
	assert.Equal(t, "clinic-a:u1", captured.ConversationID)
}

func TestAgentHandler_AwaitingApprovalReturns202(t *testing.T) {
	service := &mockAgentService{
		submitFunc: func(ctx context.Context, in pipeline.SubmitInput) (*pipeline.Envelope, error) {
			return &pipeline.Envelope{Kind: pipeline.KindAwaitingApproval, RequestID: "req-1"}, nil
		},
	}
	router := newRouter(service)

	w := doJSON(router, http.MethodPost, "/v1/agent/requests", gin.H{"text": "order gloves"}, true)

	require.Equal(t, http.StatusAccepted, w.Code)
	var resp map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "awaiting_approval", resp["kind"])
}

func TestAgentHandler_PolicyDenialReturns403(t *testing.T) {
	service := &mockAgentService{
		submitFunc: func(ctx context.Context, in pipeline.SubmitInput) (*pipeline.Envelope, error) {
			return &pipeline.Envelope{
				Kind:      pipeline.KindRejected,
				RequestID: "req-1",
				Message:   "role lacks permission",
				Decision:  &policy.Decision{Effect: policy.EffectDeny, RuleID: "rbac-appointment-cancel"},
			}, nil
		},
	}
	router := newRouter(service)

	w := doJSON(router, http.MethodPost, "/v1/agent/requests", gin.H{"text": "cancel it"}, true)

	require.Equal(t, http.StatusForbidden, w.Code)
	var resp map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "rejected", resp["kind"])
}

func TestAgentHandler_KillSwitchReturns423(t *testing.T) {
	service := &mockAgentService{
		submitFunc: func(ctx context.Context, in pipeline.SubmitInput) (*pipeline.Envelope, error) {
			return nil, guarderrors.New(ctx, guarderrors.LayerPipeline, guarderrors.ErrorTypeKillSwitchActive,
				"the actions capability is disabled by an operator", nil, "pipeline-killswitch-001")
		},
	}
	router := newRouter(service)

	w := doJSON(router, http.MethodPost, "/v1/agent/requests", gin.H{"text": "hello"}, true)

	require.Equal(t, http.StatusLocked, w.Code)
	var resp map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "pipeline-killswitch-001", resp["code"])
	assert.Equal(t, "KILL_SWITCH_ACTIVE", resp["error"])
}

func TestAgentHandler_RateLimitReturns429(t *testing.T) {
	service := &mockAgentService{
		submitFunc: func(ctx context.Context, in pipeline.SubmitInput) (*pipeline.Envelope, error) {
			return nil, guarderrors.New(ctx, guarderrors.LayerPipeline, guarderrors.ErrorTypeRateLimited,
				"request budget exhausted for this window", nil, "pipeline-ratelimit-001")
		},
	}
	router := newRouter(service)

	w := doJSON(router, http.MethodPost, "/v1/agent/requests", gin.H{"text": "hello"}, true)

	assert.Equal(t, http.StatusTooManyRequests, w.Code)
}

func TestAgentHandler_ApproveForwardsVerdict(t *testing.T) {
	var captured pipeline.ApproveInput
	service := &mockAgentService{
		approveFunc: func(ctx context.Context, in pipeline.ApproveInput) (*pipeline.Envelope, error) {
			captured = in
			return &pipeline.Envelope{Kind: pipeline.KindRejected, RequestID: "req-1", Message: "plan rejected by approver"}, nil
		},
	}
	router := newRouter(service)

	w := doJSON(router, http.MethodPost, "/v1/agent/plans/plan-9/approval",
		gin.H{"approve": false, "reason": "not this month"}, true)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "plan-9", captured.PlanID)
	assert.Equal(t, "u1", captured.ApproverID)
	assert.False(t, captured.Approve)
	assert.Equal(t, "not this month", captured.Reason)
}

func TestAgentHandler_LateApprovalReturns409(t *testing.T) {
	service := &mockAgentService{
		approveFunc: func(ctx context.Context, in pipeline.ApproveInput) (*pipeline.Envelope, error) {
			return nil, guarderrors.New(ctx, guarderrors.LayerPipeline, guarderrors.ErrorTypeExpired,
				"the approval window for this plan has elapsed", nil, "pipeline-approve-002")
		},
	}
	router := newRouter(service)

	w := doJSON(router, http.MethodPost, "/v1/agent/plans/plan-9/approval", gin.H{"approve": true}, true)

	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestAgentHandler_GetReturnsNotFound(t *testing.T) {
	service := &mockAgentService{
		getRequestFunc: func(ctx context.Context, requestID string) (*pipeline.RequestView, error) {
			return nil, guarderrors.New(ctx, guarderrors.LayerRepository, guarderrors.ErrorTypeNotFound,
				"request not found", nil, "request-get-db-001")
		},
	}
	router := newRouter(service)

	w := doJSON(router, http.MethodGet, "/v1/agent/requests/nope", nil, true)

	assert.Equal(t, http.StatusNotFound, w.Code)
}
