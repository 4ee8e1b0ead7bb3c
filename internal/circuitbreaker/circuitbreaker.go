// Package circuitbreaker provides circuit breaker protection for calls to
// MongoDB, Kafka and the estimator lookup tables.
//
// It wraps sony/gobreaker behind a small error-returning API and adds
// classification of expected errors: a call that fails with a business error
// (not found, conflict) proves the dependency is healthy and must not trip
// the breaker.
package circuitbreaker

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/guttosm/trip-planner/internal/metrics"
	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"
)

var (
	// ErrCircuitOpen is returned when the circuit breaker is open.
	ErrCircuitOpen = errors.New("circuit breaker is open")
)

// State represents the state of the circuit breaker.
type State int

const (
	// StateClosed means the circuit is closed and requests pass through normally.
	StateClosed State = iota
	// StateHalfOpen means the circuit is half-open, allowing a limited number of test requests.
	StateHalfOpen
	// StateOpen means the circuit is open and requests are rejected immediately.
	StateOpen
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

func fromGobreaker(s gobreaker.State) State {
	switch s {
	case gobreaker.StateOpen:
		return StateOpen
	case gobreaker.StateHalfOpen:
		return StateHalfOpen
	default:
		return StateClosed
	}
}

// Config holds circuit breaker configuration.
type Config struct {
	// FailureThreshold is the number of consecutive failures before opening the circuit.
	FailureThreshold int
	// SuccessThreshold is the number of consecutive successes needed to close the circuit.
	// It also bounds the requests let through while half-open.
	SuccessThreshold int
	// Timeout is the duration to wait before attempting to half-open the circuit.
	Timeout time.Duration
	// Name is the name of the circuit breaker (for logging and metrics).
	Name string
	// IsSuccessful classifies an error returned by the protected call. Errors it
	// accepts are returned to the caller but counted as successes. Nil means
	// every error is a failure.
	IsSuccessful func(err error) bool
}

// DefaultConfig returns a default circuit breaker configuration.
func DefaultConfig() Config {
	return Config{
		FailureThreshold: 5,
		SuccessThreshold: 2,
		Timeout:          30 * time.Second,
		Name:             "circuit-breaker",
	}
}

// CircuitBreaker implements the circuit breaker pattern.
type CircuitBreaker struct {
	config Config
	cb     *gobreaker.CircuitBreaker

	mu          sync.RWMutex
	lastFailure time.Time
}

// New creates a new circuit breaker with the given configuration.
func New(config Config) *CircuitBreaker {
	if config.FailureThreshold <= 0 {
		config.FailureThreshold = 1
	}
	if config.SuccessThreshold <= 0 {
		config.SuccessThreshold = 1
	}

	breaker := &CircuitBreaker{config: config}
	threshold := uint32(config.FailureThreshold)

	breaker.cb = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        config.Name,
		MaxRequests: uint32(config.SuccessThreshold),
		Timeout:     config.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			metrics.SetCircuitBreakerState(name, float64(fromGobreaker(to)))
			event := log.Info()
			if to == gobreaker.StateOpen {
				event = log.Warn()
			}
			event.
				Str("circuit_breaker", name).
				Str("from", fromGobreaker(from).String()).
				Str("to", fromGobreaker(to).String()).
				Msg("Circuit breaker state changed")
		},
	})
	metrics.SetCircuitBreakerState(config.Name, float64(StateClosed))

	return breaker
}

// Execute executes a function with circuit breaker protection.
// Returns ErrCircuitOpen if the circuit is open or the half-open probe quota
// is exhausted, and the context error if ctx is already done.
func (cb *CircuitBreaker) Execute(ctx context.Context, fn func() error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	var expected error
	_, err := cb.cb.Execute(func() (interface{}, error) {
		callErr := fn()
		if callErr != nil && cb.config.IsSuccessful != nil && cb.config.IsSuccessful(callErr) {
			expected = callErr
			return nil, nil
		}
		return nil, callErr
	})

	switch {
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		return ErrCircuitOpen
	case err != nil:
		cb.mu.Lock()
		cb.lastFailure = time.Now()
		cb.mu.Unlock()
		return err
	default:
		return expected
	}
}

// Name returns the breaker name.
func (cb *CircuitBreaker) Name() string {
	return cb.config.Name
}

// State returns the current state of the circuit breaker.
func (cb *CircuitBreaker) State() State {
	return fromGobreaker(cb.cb.State())
}

// IsOpen returns true if the circuit breaker is open.
func (cb *CircuitBreaker) IsOpen() bool {
	return cb.State() == StateOpen
}

// Stats returns circuit breaker statistics.
type Stats struct {
	State        string
	FailureCount int
	SuccessCount int
	LastFailure  time.Time
	IsHealthy    bool
}

// GetStats returns current circuit breaker statistics.
func (cb *CircuitBreaker) GetStats() Stats {
	state := cb.State()
	counts := cb.cb.Counts()

	cb.mu.RLock()
	lastFailure := cb.lastFailure
	cb.mu.RUnlock()

	return Stats{
		State:        state.String(),
		FailureCount: int(counts.ConsecutiveFailures),
		SuccessCount: int(counts.ConsecutiveSuccesses),
		LastFailure:  lastFailure,
		IsHealthy:    state == StateClosed,
	}
}
