package http

import (
	"context"
	"errors"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/guttosm/trip-planner/internal/circuitbreaker"
	"golang.org/x/sync/errgroup"
)

const readinessTimeout = 2 * time.Second

// Readiness status values.
const (
	StatusOK          = "ok"
	StatusDegraded    = "degraded"
	StatusUnavailable = "unavailable"
)

// HealthChecker reports whether a dependency is usable.
type HealthChecker interface {
	Check(ctx context.Context) error
}

// HealthCheckFunc adapts a function to HealthChecker.
type HealthCheckFunc func(ctx context.Context) error

// Check calls f.
func (f HealthCheckFunc) Check(ctx context.Context) error { return f(ctx) }

// CheckOption configures a registered check.
type CheckOption func(*healthCheck)

// NonCritical marks a check whose failure degrades the service without
// taking it out of rotation, e.g. the estimator profile lookup, which falls
// back to defaults.
func NonCritical() CheckOption {
	return func(h *healthCheck) { h.critical = false }
}

type healthCheck struct {
	checker  HealthChecker
	critical bool
}

// HealthResponse is the body of the readiness probe.
type HealthResponse struct {
	Status string            `json:"status" example:"ok"`
	Checks map[string]string `json:"checks"`
}

// HealthHandler serves the liveness and readiness probes.
type HealthHandler struct {
	checks map[string]healthCheck
}

// NewHealthHandler creates a HealthHandler with no checks.
func NewHealthHandler() *HealthHandler {
	return &HealthHandler{checks: make(map[string]healthCheck)}
}

// RegisterChecker adds a dependency to the readiness probe.
func (h *HealthHandler) RegisterChecker(name string, checker HealthChecker, opts ...CheckOption) {
	hc := healthCheck{checker: checker, critical: true}
	for _, opt := range opts {
		opt(&hc)
	}
	h.checks[name] = hc
}

// RegisterCircuitBreaker adds a check that fails while cb is open. It is
// reported as name + "_circuit".
func (h *HealthHandler) RegisterCircuitBreaker(name string, cb *circuitbreaker.CircuitBreaker, opts ...CheckOption) {
	h.RegisterChecker(name+"_circuit", HealthCheckFunc(func(context.Context) error {
		if stats := cb.GetStats(); !stats.IsHealthy {
			return errors.New(stats.State)
		}
		return nil
	}), opts...)
}

// CheckNames returns the registered check names in sorted order.
func (h *HealthHandler) CheckNames() []string {
	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Register registers health endpoints on the router.
func (h *HealthHandler) Register(router *gin.Engine) {
	router.GET("/healthz", h.Liveness)
	router.GET("/readyz", h.Readiness)
}

// Liveness handles the liveness probe endpoint.
// @Summary     Liveness probe
// @Description Returns OK while the process is running.
// @Tags        Health
// @Produce     json
// @Success     200 {object} map[string]string "Service is alive"
// @Router      /healthz [get]
func (h *HealthHandler) Liveness(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": StatusOK})
}

// Readiness handles the readiness probe endpoint. Checks run concurrently
// under one deadline. A failing critical check answers 503; a failing
// non-critical one answers 200 with status "degraded".
// @Summary     Readiness probe
// @Description Reports the store and circuit breakers. 503 when a critical dependency fails.
// @Tags        Health
// @Produce     json
// @Success     200 {object} HealthResponse "Service is ready, possibly degraded"
// @Failure     503 {object} HealthResponse "Service is not ready"
// @Router      /readyz [get]
func (h *HealthHandler) Readiness(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), readinessTimeout)
	defer cancel()

	resp := HealthResponse{Status: StatusOK, Checks: make(map[string]string, len(h.checks))}
	var mu sync.Mutex
	var g errgroup.Group

	for name, hc := range h.checks {
		g.Go(func() error {
			err := hc.checker.Check(ctx)

			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				resp.Checks[name] = StatusOK
				return nil
			}
			resp.Checks[name] = err.Error()
			switch {
			case hc.critical:
				resp.Status = StatusUnavailable
			case resp.Status == StatusOK:
				resp.Status = StatusDegraded
			}
			return nil
		})
	}
	_ = g.Wait()

	status := http.StatusOK
	if resp.Status == StatusUnavailable {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, resp)
}
