// Package metrics provides Prometheus metrics collection for the trip planner.
package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTPRequestDuration tracks HTTP request duration by method, path, and status code.
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status_code"},
	)

	// HTTPRequestTotal tracks total HTTP requests by method, path, and status code.
	HTTPRequestTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status_code"},
	)

	// OptimizationsTotal tracks optimizer runs by outcome.
	OptimizationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trip_optimizations_total",
			Help: "Total number of bin-packing optimizations",
		},
		[]string{"status"},
	)

	// OptimizationDuration tracks optimizer run duration.
	OptimizationDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "trip_optimization_duration_seconds",
			Help:    "Bin-packing optimization duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
		},
	)

	// OptimizationEfficiency tracks the aggregate efficiency of produced plans.
	OptimizationEfficiency = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "trip_optimization_efficiency_percent",
			Help:    "Used weight over summed capacity of optimized plans",
			Buckets: []float64{10, 20, 30, 40, 50, 60, 70, 80, 90, 100},
		},
	)

	// EstimatorFallbacksTotal tracks estimates served by the fallback formulas.
	EstimatorFallbacksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "estimator_fallbacks_total",
			Help: "Total number of estimates computed with fallback constants",
		},
		[]string{"reason"},
	)

	// AllocationOperationsTotal tracks order and trip mutations.
	AllocationOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "allocation_operations_total",
			Help: "Total number of allocation operations",
		},
		[]string{"operation", "result"},
	)

	// LockWaitDuration tracks time spent waiting for order and truck locks.
	LockWaitDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "allocation_lock_wait_seconds",
			Help:    "Time spent waiting for allocation locks",
			Buckets: []float64{0.0001, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		},
	)

	// EventsTotal tracks allocation event delivery by sink and result.
	EventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "allocation_events_total",
			Help: "Total number of allocation events handled",
		},
		[]string{"sink", "result"},
	)

	// ReconciledOrdersTotal tracks orders whose cached projections were repaired.
	ReconciledOrdersTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "reconciled_orders_total",
			Help: "Total number of orders repaired by the reconciler",
		},
	)

	// RateLimitedTotal tracks requests rejected by the rate limiter.
	RateLimitedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_rate_limited_total",
			Help: "Total number of requests rejected by the rate limiter",
		},
		[]string{"scope", "route"},
	)

	// HTTPAbortsTotal tracks requests the middleware ended on the handler's
	// behalf, by reason ("timeout", "panic") and route.
	HTTPAbortsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_aborted_requests_total",
			Help: "Total number of requests aborted by timeout or panic recovery",
		},
		[]string{"reason", "route"},
	)

	// CircuitBreakerState tracks breaker state (0 closed, 1 half-open, 2 open).
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state: 0 closed, 1 half-open, 2 open",
		},
		[]string{"name"},
	)

	// CacheOperationsTotal tracks cache operations.
	CacheOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_operations_total",
			Help: "Total number of cache operations",
		},
		[]string{"operation", "result"},
	)

)

// PrometheusMiddleware returns a Gin middleware that collects HTTP metrics.
func PrometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}

		c.Next()

		duration := time.Since(start).Seconds()
		statusCode := strconv.Itoa(c.Writer.Status())
		method := c.Request.Method

		HTTPRequestDuration.WithLabelValues(method, path, statusCode).Observe(duration)
		HTTPRequestTotal.WithLabelValues(method, path, statusCode).Inc()
	}
}

// RecordOptimization records metrics for an optimizer run. Efficiency is
// observed only for successful runs.
func RecordOptimization(duration time.Duration, status string, efficiency float64) {
	OptimizationDuration.Observe(duration.Seconds())
	OptimizationsTotal.WithLabelValues(status).Inc()
	if status == "success" {
		OptimizationEfficiency.Observe(efficiency)
	}
}

// RecordEstimatorFallback records an estimate served by the fallback formulas.
func RecordEstimatorFallback(reason string) {
	EstimatorFallbacksTotal.WithLabelValues(reason).Inc()
}

// RecordAllocation records the outcome of an order or trip mutation.
func RecordAllocation(operation, result string) {
	AllocationOperationsTotal.WithLabelValues(operation, result).Inc()
}

// RecordLockWait records how long a caller waited for allocation locks.
func RecordLockWait(d time.Duration) {
	LockWaitDuration.Observe(d.Seconds())
}

// RecordEvent records the delivery result of allocation events.
func RecordEvent(sink, result string, count int) {
	EventsTotal.WithLabelValues(sink, result).Add(float64(count))
}

// RecordReconciledOrder records an order repaired by the reconciler.
func RecordReconciledOrder() {
	ReconciledOrdersTotal.Inc()
}

// RecordRateLimited records a request rejected by the rate limiter.
func RecordRateLimited(scope, route string) {
	RateLimitedTotal.WithLabelValues(scope, route).Inc()
}

// RecordAbort records a request ended by the middleware chain.
func RecordAbort(reason, route string) {
	if route == "" {
		route = "unmatched"
	}
	HTTPAbortsTotal.WithLabelValues(reason, route).Inc()
}

// SetCircuitBreakerState publishes the numeric state of a named breaker.
func SetCircuitBreakerState(name string, state float64) {
	CircuitBreakerState.WithLabelValues(name).Set(state)
}

// RecordCacheOperation records metrics for a cache operation.
func RecordCacheOperation(operation, result string) {
	CacheOperationsTotal.WithLabelValues(operation, result).Inc()
}
