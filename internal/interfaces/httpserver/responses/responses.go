package responses

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"caremesh/services/agent-guard/internal/domain/guarderrors"
	"caremesh/services/agent-guard/internal/domain/pipeline"
	"caremesh/services/agent-guard/internal/domain/plan"
	"caremesh/services/agent-guard/internal/domain/policy"
)

// ErrorResponse represents an error response with guard error details.
type ErrorResponse struct {
	Code          string         `json:"code"`
	Error         string         `json:"error"`
	Message       string         `json:"message,omitempty"`
	Context       map[string]any `json:"context,omitempty"`
	ErrorInstance error          `json:"-"`
	RequestID     string         `json:"request_id,omitempty"`
}

// HandleError maps domain errors onto HTTP responses.
func HandleError(reqCtx *gin.Context, err error, message string) {
	var domainErr *guarderrors.GuardError
	if errors.As(err, &domainErr) {
		statusCode := guarderrors.ErrorTypeToHTTPStatus(domainErr.GetErrorType())

		errResp := ErrorResponse{
			Code:          domainErr.Code,
			Error:         string(domainErr.Type),
			Message:       domainErr.Message,
			Context:       domainErr.Context,
			ErrorInstance: domainErr,
			RequestID:     domainErr.RequestID,
		}

		reqCtx.AbortWithStatusJSON(statusCode, errResp)
		return
	}
	// Non-guard errors
	errResp := ErrorResponse{
		Error:         message,
		Message:       message,
		ErrorInstance: err,
	}
	reqCtx.AbortWithStatusJSON(http.StatusInternalServerError, errResp)
}

// HandleNewError creates a typed error at the handler layer and handles it.
func HandleNewError(reqCtx *gin.Context, errorType guarderrors.ErrorType, message string, code string) {
	ctx := reqCtx.Request.Context()
	err := guarderrors.New(ctx, guarderrors.LayerHandler, errorType, message, nil, code)
	HandleError(reqCtx, err, message)
}

// OperationPayload is one plan operation as returned to clients.
type OperationPayload struct {
	ID           string                `json:"id"`
	Sequence     int                   `json:"sequence"`
	ToolName     string                `json:"tool_name"`
	Params       map[string]any        `json:"params"`
	Risk         string                `json:"risk"`
	Status       string                `json:"status"`
	Result       *plan.OperationResult `json:"result,omitempty"`
	ErrorMessage *string               `json:"error_message,omitempty"`
	StartedAt    *time.Time            `json:"started_at,omitempty"`
	CompletedAt  *time.Time            `json:"completed_at,omitempty"`
}

// PlanPayload is the client view of a plan.
type PlanPayload struct {
	ID               string             `json:"id"`
	RequestID        string             `json:"request_id"`
	IntentType       string             `json:"intent_type"`
	Summary          string             `json:"summary"`
	Status           string             `json:"status"`
	Risk             string             `json:"risk"`
	Operations       []OperationPayload `json:"operations"`
	ApprovalDeadline time.Time          `json:"approval_deadline"`
	ApprovedBy       *string            `json:"approved_by,omitempty"`
	ErrorMessage     *string            `json:"error_message,omitempty"`
	CreatedAt        time.Time          `json:"created_at"`
	CompletedAt      *time.Time         `json:"completed_at,omitempty"`
}

// MapPlan converts the domain plan into the client payload.
func MapPlan(p *plan.Plan) *PlanPayload {
	if p == nil {
		return nil
	}
	payload := &PlanPayload{
		ID:               p.ID,
		RequestID:        p.RequestID,
		IntentType:       string(p.IntentType),
		Summary:          p.Summary,
		Status:           p.Status.String(),
		Risk:             string(p.Risk),
		ApprovalDeadline: p.ApprovalDeadline,
		ApprovedBy:       p.ApprovedBy,
		ErrorMessage:     p.ErrorMessage,
		CreatedAt:        p.CreatedAt,
		CompletedAt:      p.CompletedAt,
	}
	for _, op := range p.Operations {
		payload.Operations = append(payload.Operations, OperationPayload{
			ID:           op.ID,
			Sequence:     op.Sequence,
			ToolName:     op.ToolName,
			Params:       op.Params,
			Risk:         string(op.Risk),
			Status:       op.Status.String(),
			Result:       op.Result,
			ErrorMessage: op.ErrorMessage,
			StartedAt:    op.StartedAt,
			CompletedAt:  op.CompletedAt,
		})
	}
	return payload
}

// EnvelopePayload wraps a pipeline envelope for clients.
type EnvelopePayload struct {
	Kind      string           `json:"kind"`
	RequestID string           `json:"request_id"`
	Message   string           `json:"message,omitempty"`
	Plan      *PlanPayload     `json:"plan,omitempty"`
	Decision  *policy.Decision `json:"decision,omitempty"`
}

// MapEnvelope converts the pipeline envelope into the client payload.
func MapEnvelope(e *pipeline.Envelope) EnvelopePayload {
	return EnvelopePayload{
		Kind:      string(e.Kind),
		RequestID: e.RequestID,
		Message:   e.Message,
		Plan:      MapPlan(e.Plan),
		Decision:  e.Decision,
	}
}

// EnvelopeStatus picks the HTTP status for an envelope kind. Policy denials
// surface as 403 so callers can distinguish them without parsing the body.
func EnvelopeStatus(e *pipeline.Envelope) int {
	switch e.Kind {
	case pipeline.KindAwaitingApproval:
		return http.StatusAccepted
	case pipeline.KindRejected:
		if e.Decision != nil {
			return http.StatusForbidden
		}
		return http.StatusOK
	default:
		return http.StatusOK
	}
}
