// Package worker hosts the background sweeper that expires plans whose
// approval window elapsed without a human decision.
package worker

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"caremesh/services/agent-guard/internal/domain/plan"
	"caremesh/services/agent-guard/internal/webhook"
)

// ExpirySweeper periodically expires overdue plans so an approval that
// arrives after the deadline finds the plan already closed.
type ExpirySweeper struct {
	plans    plan.Repository
	planner  *plan.Planner
	webhooks webhook.Service
	interval time.Duration
	log      zerolog.Logger
	wg       sync.WaitGroup
	stopChan chan struct{}
	now      func() time.Time
}

// NewExpirySweeper creates the sweeper.
func NewExpirySweeper(plans plan.Repository, planner *plan.Planner, webhooks webhook.Service, interval time.Duration, log zerolog.Logger) *ExpirySweeper {
	if webhooks == nil {
		webhooks = webhook.Noop{}
	}
	return &ExpirySweeper{
		plans:    plans,
		planner:  planner,
		webhooks: webhooks,
		interval: interval,
		log:      log.With().Str("component", "expiry-sweeper").Logger(),
		stopChan: make(chan struct{}),
		now:      time.Now,
	}
}

// Start launches the sweep loop.
func (s *ExpirySweeper) Start(ctx context.Context) {
	s.log.Info().Dur("interval", s.interval).Msg("starting expiry sweeper")
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-s.stopChan:
				return
			case <-ticker.C:
				s.Sweep(ctx)
			}
		}
	}()
}

// Stop shuts the sweeper down and waits for the loop to exit.
func (s *ExpirySweeper) Stop() {
	close(s.stopChan)
	s.wg.Wait()
	s.log.Info().Msg("expiry sweeper stopped")
}

// Sweep expires every overdue plan once. Exported so tests and admin tooling
// can trigger a pass directly.
func (s *ExpirySweeper) Sweep(ctx context.Context) int {
	overdue, err := s.plans.ListApprovalExpired(ctx, s.now())
	if err != nil {
		s.log.Error().Err(err).Msg("listing expired plans")
		return 0
	}

	expired := 0
	for _, p := range overdue {
		if !s.planner.Expire(ctx, p) {
			continue
		}
		if err := s.plans.Update(ctx, p); err != nil {
			s.log.Error().Err(err).Str("plan_id", p.ID).Msg("persisting expired plan")
			continue
		}
		if err := s.webhooks.NotifyPlanFailed(ctx, p, "plan-expired-001", "approval window elapsed"); err != nil {
			s.log.Warn().Err(err).Str("plan_id", p.ID).Msg("expiry webhook failed")
		}
		expired++
	}
	if expired > 0 {
		s.log.Info().Int("expired", expired).Msg("expired overdue plans")
	}
	return expired
}
