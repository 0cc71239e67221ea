// Package breaker wraps calls to external model and tool backends with
// per-resource circuit breakers.
package breaker

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"

	"caremesh/services/agent-guard/internal/domain/guarderrors"
)

// Config holds the breaker thresholds. These are configuration, never
// hard-coded at call sites.
type Config struct {
	FailureThreshold  uint32        // consecutive failures that open the breaker
	Cooldown          time.Duration // open -> half-open delay
	HalfOpenSuccesses uint32        // consecutive successes that close it again
}

// DefaultConfig mirrors the documented pipeline defaults (N=5, M=2).
func DefaultConfig() Config {
	return Config{
		FailureThreshold:  5,
		Cooldown:          30 * time.Second,
		HalfOpenSuccesses: 2,
	}
}

// StateChangeFunc observes breaker transitions, e.g. for audit.
type StateChangeFunc func(resource string, from, to gobreaker.State)

// Manager maintains one breaker per protected resource, created lazily.
// Transitions are atomic inside gobreaker; two concurrent requests can never
// disagree about opening or closing the same breaker.
type Manager struct {
	cfg      Config
	log      zerolog.Logger
	onChange StateChangeFunc

	mu       sync.Mutex
	breakers map[string]*gobreaker.CircuitBreaker
}

// NewManager creates a breaker manager.
func NewManager(cfg Config, log zerolog.Logger, onChange StateChangeFunc) *Manager {
	return &Manager{
		cfg:      cfg,
		log:      log.With().Str("component", "circuit-breaker").Logger(),
		onChange: onChange,
		breakers: make(map[string]*gobreaker.CircuitBreaker),
	}
}

func (m *Manager) breaker(resource string) *gobreaker.CircuitBreaker {
	m.mu.Lock()
	defer m.mu.Unlock()

	if cb, ok := m.breakers[resource]; ok {
		return cb
	}

	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        resource,
		MaxRequests: m.cfg.HalfOpenSuccesses,
		Timeout:     m.cfg.Cooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= m.cfg.FailureThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			m.log.Warn().
				Str("resource", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("circuit breaker state change")
			if m.onChange != nil {
				m.onChange(name, from, to)
			}
		},
	})
	m.breakers[resource] = cb
	return cb
}

// Execute runs fn under the resource's breaker. While the breaker is open the
// backend is not invoked and callers fail fast with a circuit-open error.
func (m *Manager) Execute(ctx context.Context, resource string, fn func() (any, error)) (any, error) {
	result, err := m.breaker(resource).Execute(fn)
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, guarderrors.New(ctx, guarderrors.LayerInfrastructure, guarderrors.ErrorTypeCircuitOpen,
				fmt.Sprintf("circuit open for resource %q", resource), err, "breaker-open-001").
				WithContext(map[string]any{"resource": resource})
		}
		return nil, err
	}
	return result, nil
}

// ResourceState is a snapshot of one breaker for the admin surface.
type ResourceState struct {
	Resource             string `json:"resource"`
	State                string `json:"state"`
	Requests             uint32 `json:"requests"`
	TotalSuccesses       uint32 `json:"total_successes"`
	TotalFailures        uint32 `json:"total_failures"`
	ConsecutiveFailures  uint32 `json:"consecutive_failures"`
	ConsecutiveSuccesses uint32 `json:"consecutive_successes"`
}

// States returns a snapshot of every known breaker, sorted by resource.
func (m *Manager) States() []ResourceState {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]ResourceState, 0, len(m.breakers))
	for resource, cb := range m.breakers {
		counts := cb.Counts()
		out = append(out, ResourceState{
			Resource:             resource,
			State:                cb.State().String(),
			Requests:             counts.Requests,
			TotalSuccesses:       counts.TotalSuccesses,
			TotalFailures:        counts.TotalFailures,
			ConsecutiveFailures:  counts.ConsecutiveFailures,
			ConsecutiveSuccesses: counts.ConsecutiveSuccesses,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Resource < out[j].Resource })
	return out
}

// StateOf returns the current state of one resource's breaker without
// creating it.
func (m *Manager) StateOf(resource string) (gobreaker.State, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cb, ok := m.breakers[resource]
	if !ok {
		return gobreaker.StateClosed, false
	}
	return cb.State(), true
}
