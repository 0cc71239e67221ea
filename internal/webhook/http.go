package webhook

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"

	"caremesh/services/agent-guard/internal/domain/plan"
)

// HTTPService delivers notifications via HTTP POST to a single configured
// endpoint, retrying transient delivery failures.
type HTTPService struct {
	client *resty.Client
	url    string
	log    zerolog.Logger
}

// NewHTTPService creates an HTTP-based webhook service posting to url.
func NewHTTPService(url string, log zerolog.Logger) *HTTPService {
	client := resty.New().
		SetTimeout(10 * time.Second).
		SetRetryCount(3).
		SetRetryWaitTime(2 * time.Second).
		SetHeader("Content-Type", "application/json").
		SetHeader("User-Agent", "caremesh-agent-guard/1.0")

	return &HTTPService{
		client: client,
		url:    url,
		log:    log.With().Str("component", "webhook").Logger(),
	}
}

// NotifyApprovalRequested fires when a plan enters awaiting_approval.
func (s *HTTPService) NotifyApprovalRequested(ctx context.Context, p *plan.Plan) error {
	deadline := p.ApprovalDeadline.UTC().Format(time.RFC3339)
	return s.send(ctx, Payload{
		PlanID:           p.ID,
		RequestID:        p.RequestID,
		TenantID:         p.TenantID,
		Event:            "plan.approval_requested",
		Status:           p.Status.String(),
		Risk:             string(p.Risk),
		Summary:          p.Summary,
		ApprovalDeadline: &deadline,
	})
}

// NotifyPlanCompleted fires when a plan finishes executing.
func (s *HTTPService) NotifyPlanCompleted(ctx context.Context, p *plan.Plan) error {
	return s.send(ctx, Payload{
		PlanID:    p.ID,
		RequestID: p.RequestID,
		TenantID:  p.TenantID,
		Event:     "plan.completed",
		Status:    p.Status.String(),
		Risk:      string(p.Risk),
		Summary:   p.Summary,
	})
}

// NotifyPlanFailed fires when a plan fails, expires, or is cancelled.
func (s *HTTPService) NotifyPlanFailed(ctx context.Context, p *plan.Plan, errorCode, errorMessage string) error {
	return s.send(ctx, Payload{
		PlanID:    p.ID,
		RequestID: p.RequestID,
		TenantID:  p.TenantID,
		Event:     "plan.failed",
		Status:    p.Status.String(),
		Risk:      string(p.Risk),
		Summary:   p.Summary,
		Error:     &ErrorDetails{Code: errorCode, Message: errorMessage},
	})
}

func (s *HTTPService) send(ctx context.Context, payload Payload) error {
	resp, err := s.client.R().
		SetContext(ctx).
		SetHeader("X-Caremesh-Event", payload.Event).
		SetHeader("X-Caremesh-Plan-ID", payload.PlanID).
		SetBody(payload).
		Post(s.url)
	if err != nil {
		s.log.Warn().Err(err).Str("url", s.url).Str("event", payload.Event).Msg("webhook delivery failed")
		return fmt.Errorf("send webhook: %w", err)
	}
	if resp.IsError() {
		s.log.Warn().Int("status", resp.StatusCode()).Str("url", s.url).Str("event", payload.Event).Msg("webhook delivery rejected")
		return fmt.Errorf("webhook returned status %d", resp.StatusCode())
	}
	s.log.Info().Str("event", payload.Event).Str("plan_id", payload.PlanID).Msg("webhook delivered")
	return nil
}
