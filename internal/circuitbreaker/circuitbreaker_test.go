//go:build !integration

package circuitbreaker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/guttosm/trip-planner/internal/metrics"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	errStore    = errors.New("server selection timeout")
	errNotFound = errors.New("truck not found")
)

// step is one call through the breaker and the state expected after it.
type step struct {
	wait      time.Duration
	result    error
	wantErr   error
	wantState State
}

func run(t *testing.T, cb *CircuitBreaker, steps []step) {
	t.Helper()
	for i, s := range steps {
		if s.wait > 0 {
			time.Sleep(s.wait)
		}
		err := cb.Execute(context.Background(), func() error { return s.result })
		if s.wantErr == nil {
			assert.NoError(t, err, "step %d", i)
		} else {
			assert.ErrorIs(t, err, s.wantErr, "step %d", i)
		}
		assert.Equal(t, s.wantState, cb.State(), "step %d", i)
	}
}

// TestCircuitBreaker_Transitions tests the closed, open and half-open cycle.
func TestCircuitBreaker_Transitions(t *testing.T) {
	tests := []struct {
		name   string
		config Config
		steps  []step
	}{
		{
			name:   "successes keep the circuit closed",
			config: DefaultConfig(),
			steps: []step{
				{wantState: StateClosed},
				{wantState: StateClosed},
			},
		},
		{
			name:   "consecutive failures open the circuit",
			config: Config{Name: "mongodb_trucks", FailureThreshold: 2, SuccessThreshold: 1, Timeout: time.Minute},
			steps: []step{
				{result: errStore, wantErr: errStore, wantState: StateClosed},
				{result: errStore, wantErr: errStore, wantState: StateOpen},
				{wantErr: ErrCircuitOpen, wantState: StateOpen},
			},
		},
		{
			name:   "a success resets the failure streak",
			config: Config{Name: "mongodb_trucks", FailureThreshold: 2, SuccessThreshold: 1, Timeout: time.Minute},
			steps: []step{
				{result: errStore, wantErr: errStore, wantState: StateClosed},
				{wantState: StateClosed},
				{result: errStore, wantErr: errStore, wantState: StateClosed},
			},
		},
		{
			name:   "half-open closes after enough probes succeed",
			config: Config{Name: "mongodb_addresses", FailureThreshold: 1, SuccessThreshold: 2, Timeout: 50 * time.Millisecond},
			steps: []step{
				{result: errStore, wantErr: errStore, wantState: StateOpen},
				{wait: 60 * time.Millisecond, wantState: StateHalfOpen},
				{wantState: StateClosed},
			},
		},
		{
			name:   "a failed probe reopens the circuit",
			config: Config{Name: "mongodb_events", FailureThreshold: 1, SuccessThreshold: 2, Timeout: 50 * time.Millisecond},
			steps: []step{
				{result: errStore, wantErr: errStore, wantState: StateOpen},
				{wait: 60 * time.Millisecond, result: errStore, wantErr: errStore, wantState: StateOpen},
				{wantErr: ErrCircuitOpen, wantState: StateOpen},
			},
		},
		{
			name: "business errors pass through without tripping",
			config: Config{
				Name:             "estimator_profiles",
				FailureThreshold: 1,
				SuccessThreshold: 1,
				Timeout:          time.Minute,
				IsSuccessful:     func(err error) bool { return errors.Is(err, errNotFound) },
			},
			steps: []step{
				{result: errNotFound, wantErr: errNotFound, wantState: StateClosed},
				{result: errNotFound, wantErr: errNotFound, wantState: StateClosed},
				{result: errStore, wantErr: errStore, wantState: StateOpen},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			run(t, New(tt.config), tt.steps)
		})
	}
}

// TestNew tests thresholds are clamped to at least one.
func TestNew(t *testing.T) {
	cb := New(Config{Name: "clamped"})

	err := cb.Execute(context.Background(), func() error { return errStore })

	assert.ErrorIs(t, err, errStore)
	assert.True(t, cb.IsOpen())
	assert.Equal(t, "clamped", cb.Name())
}

// TestCircuitBreaker_GetStats tests the snapshot used by the readiness probe.
func TestCircuitBreaker_GetStats(t *testing.T) {
	cb := New(Config{Name: "stats", FailureThreshold: 3, SuccessThreshold: 1, Timeout: time.Minute})

	stats := cb.GetStats()
	assert.Equal(t, Stats{State: "closed", IsHealthy: true}, stats)

	_ = cb.Execute(context.Background(), func() error { return errStore })
	_ = cb.Execute(context.Background(), func() error { return errStore })

	stats = cb.GetStats()
	assert.Equal(t, "closed", stats.State)
	assert.Equal(t, 2, stats.FailureCount)
	assert.Zero(t, stats.SuccessCount)
	assert.WithinDuration(t, time.Now(), stats.LastFailure, time.Second)

	_ = cb.Execute(context.Background(), func() error { return errStore })
	stats = cb.GetStats()
	assert.Equal(t, "open", stats.State)
	assert.False(t, stats.IsHealthy)
}

// TestCircuitBreaker_Metrics tests state changes are published as a gauge.
func TestCircuitBreaker_Metrics(t *testing.T) {
	gauge := metrics.CircuitBreakerState.WithLabelValues("metrics_probe")
	cb := New(Config{Name: "metrics_probe", FailureThreshold: 1, SuccessThreshold: 1, Timeout: 50 * time.Millisecond})
	require.Equal(t, float64(StateClosed), testutil.ToFloat64(gauge))

	_ = cb.Execute(context.Background(), func() error { return errStore })
	assert.Equal(t, float64(StateOpen), testutil.ToFloat64(gauge))

	time.Sleep(60 * time.Millisecond)
	require.NoError(t, cb.Execute(context.Background(), func() error { return nil }))
	assert.Equal(t, float64(StateClosed), testutil.ToFloat64(gauge))
}

// TestCircuitBreaker_CancelledContext tests a done context skips the call.
func TestCircuitBreaker_CancelledContext(t *testing.T) {
	cb := New(DefaultConfig())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	err := cb.Execute(ctx, func() error {
		called = true
		return nil
	})

	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, called)
	assert.Equal(t, StateClosed, cb.State())
}

// TestState_String tests state names.
func TestState_String(t *testing.T) {
	assert.Equal(t, "closed", StateClosed.String())
	assert.Equal(t, "half-open", StateHalfOpen.String())
	assert.Equal(t, "open", StateOpen.String())
	assert.Equal(t, "unknown", State(7).String())
}
