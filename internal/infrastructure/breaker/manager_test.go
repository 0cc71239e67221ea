package breaker_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"caremesh/services/agent-guard/internal/domain/guarderrors"
	"caremesh/services/agent-guard/internal/infrastructure/breaker"
)

var errBackend = errors.New("backend unavailable")

func failNTimes(n int) func() (any, error) {
	calls := 0
	return func() (any, error) {
		calls++
		if calls <= n {
			return nil, errBackend
		}
		return "ok", nil
	}
}

func TestManager_OpensAfterConsecutiveFailures(t *testing.T) {
	ctx := context.Background()
	m := breaker.NewManager(breaker.Config{
		FailureThreshold:  3,
		Cooldown:          time.Minute,
		HalfOpenSuccesses: 1,
	}, zerolog.Nop(), nil)

	fail := func() (any, error) { return nil, errBackend }

	for i := 0; i < 3; i++ {
		_, err := m.Execute(ctx, "tool:appointment", fail)
		require.ErrorIs(t, err, errBackend)
	}

	state, known := m.StateOf("tool:appointment")
	require.True(t, known)
	assert.Equal(t, gobreaker.StateOpen, state)

	// Open breaker fails fast without invoking the backend.
	invoked := false
	_, err := m.Execute(ctx, "tool:appointment", func() (any, error) {
		invoked = true
		return "ok", nil
	})
	require.Error(t, err)
	assert.False(t, invoked)
	assert.True(t, guarderrors.IsType(err, guarderrors.ErrorTypeCircuitOpen))
}

func TestManager_HalfOpenClosesAfterSuccesses(t *testing.T) {
	ctx := context.Background()
	m := breaker.NewManager(breaker.Config{
		FailureThreshold:  2,
		Cooldown:          30 * time.Millisecond,
		HalfOpenSuccesses: 2,
	}, zerolog.Nop(), nil)

	fail := func() (any, error) { return nil, errBackend }
	succeed := func() (any, error) { return "ok", nil }

	for i := 0; i < 2; i++ {
		_, _ = m.Execute(ctx, "model-backend", fail)
	}
	state, _ := m.StateOf("model-backend")
	require.Equal(t, gobreaker.StateOpen, state)

	time.Sleep(50 * time.Millisecond)

	// First probe succeeds; breaker stays half-open until the second.
	_, err := m.Execute(ctx, "model-backend", succeed)
	require.NoError(t, err)
	state, _ = m.StateOf("model-backend")
	assert.Equal(t, gobreaker.StateHalfOpen, state)

	_, err = m.Execute(ctx, "model-backend", succeed)
	require.NoError(t, err)
	state, _ = m.StateOf("model-backend")
	assert.Equal(t, gobreaker.StateClosed, state)
}

func TestManager_HalfOpenFailureReopens(t *testing.T) {
	ctx := context.Background()
	m := breaker.NewManager(breaker.Config{
		FailureThreshold:  2,
		Cooldown:          30 * time.Millisecond,
		HalfOpenSuccesses: 2,
	}, zerolog.Nop(), nil)

	fail := func() (any, error) { return nil, errBackend }
	for i := 0; i < 2; i++ {
		_, _ = m.Execute(ctx, "model-backend", fail)
	}

	time.Sleep(50 * time.Millisecond)

	_, err := m.Execute(ctx, "model-backend", fail)
	require.ErrorIs(t, err, errBackend)

	state, _ := m.StateOf("model-backend")
	assert.Equal(t, gobreaker.StateOpen, state)
}

func TestManager_ResourcesAreIsolated(t *testing.T) {
	ctx := context.Background()
	m := breaker.NewManager(breaker.Config{
		FailureThreshold:  1,
		Cooldown:          time.Minute,
		HalfOpenSuccesses: 1,
	}, zerolog.Nop(), nil)

	_, _ = m.Execute(ctx, "tool:inventory", func() (any, error) { return nil, errBackend })

	state, _ := m.StateOf("tool:inventory")
	require.Equal(t, gobreaker.StateOpen, state)

	result, err := m.Execute(ctx, "tool:appointment", func() (any, error) { return "ok", nil })
	require.NoError(t, err)
	assert.Equal(t, "ok", result)
}

func TestManager_NotifiesStateChanges(t *testing.T) {
	ctx := context.Background()

	var mu sync.Mutex
	var transitions []gobreaker.State
	m := breaker.NewManager(breaker.Config{
		FailureThreshold:  1,
		Cooldown:          time.Minute,
		HalfOpenSuccesses: 1,
	}, zerolog.Nop(), func(resource string, from, to gobreaker.State) {
		mu.Lock()
		defer mu.Unlock()
		assert.Equal(t, "tool:billing", resource)
		transitions = append(transitions, to)
	})

	_, _ = m.Execute(ctx, "tool:billing", func() (any, error) { return nil, errBackend })

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, transitions, 1)
	assert.Equal(t, gobreaker.StateOpen, transitions[0])
}

func TestManager_StatesSnapshot(t *testing.T) {
	ctx := context.Background()
	m := breaker.NewManager(breaker.DefaultConfig(), zerolog.Nop(), nil)

	_, _ = m.Execute(ctx, "tool:billing", func() (any, error) { return "ok", nil })
	_, _ = m.Execute(ctx, "model-backend", func() (any, error) { return nil, errBackend })

	states := m.States()
	require.Len(t, states, 2)
	assert.Equal(t, "model-backend", states[0].Resource)
	assert.Equal(t, uint32(1), states[0].TotalFailures)
	assert.Equal(t, "tool:billing", states[1].Resource)
	assert.Equal(t, uint32(1), states[1].TotalSuccesses)
}
