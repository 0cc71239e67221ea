// Package scheduler runs the periodic maintenance jobs: conversation memory
// sweeps and usage period rollover.
package scheduler

import (
	"context"
	"time"

	"github.com/mileusna/crontab"
	"github.com/rs/zerolog"

	"caremesh/services/agent-guard/internal/domain/memory"
	"caremesh/services/agent-guard/internal/domain/usage"
	"caremesh/services/agent-guard/internal/infrastructure/metrics"
)

// Scheduler owns the cron table for background maintenance.
type Scheduler struct {
	ctab    *crontab.Crontab
	memory  *memory.Store
	usage   *usage.Service
	maxIdle time.Duration
	log     zerolog.Logger
}

// New creates the scheduler. Jobs are registered on Start.
func New(store *memory.Store, usageSvc *usage.Service, maxIdle time.Duration, log zerolog.Logger) *Scheduler {
	return &Scheduler{
		ctab:    crontab.New(),
		memory:  store,
		usage:   usageSvc,
		maxIdle: maxIdle,
		log:     log.With().Str("component", "scheduler").Logger(),
	}
}

// Start registers the maintenance jobs.
func (s *Scheduler) Start() error {
	if err := s.ctab.AddJob("*/5 * * * *", s.sweepMemory); err != nil {
		return err
	}
	// First day of each month, right after the period boundary.
	if err := s.ctab.AddJob("0 0 1 * *", s.rolloverUsage); err != nil {
		return err
	}
	s.log.Info().Msg("maintenance jobs scheduled")
	return nil
}

// Stop clears the cron table.
func (s *Scheduler) Stop() {
	s.ctab.Clear()
	s.log.Info().Msg("scheduler stopped")
}

func (s *Scheduler) sweepMemory() {
	removed := s.memory.Sweep(s.maxIdle)
	metrics.MemoryConversations.Set(float64(s.memory.Len()))
	if removed > 0 {
		s.log.Debug().Int("removed", removed).Msg("swept idle conversations")
	}
}

func (s *Scheduler) rolloverUsage() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := s.usage.Rollover(ctx); err != nil {
		s.log.Error().Err(err).Msg("usage rollover failed")
		return
	}
	s.log.Info().Msg("usage period rolled over")
}
