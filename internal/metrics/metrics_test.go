//go:build !integration

package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

// TestPrometheusMiddleware tests requests are counted under their route pattern.
func TestPrometheusMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)

	router := gin.New()
	router.Use(PrometheusMiddleware())
	router.GET("/api/trucks/:id", func(c *gin.Context) { c.Status(http.StatusOK) })
	router.POST("/api/planning/optimize", func(c *gin.Context) { c.Status(http.StatusUnprocessableEntity) })

	tests := []struct {
		method string
		target string
		labels []string
	}{
		{method: http.MethodGet, target: "/api/trucks/t-1", labels: []string{"GET", "/api/trucks/:id", "200"}},
		{method: http.MethodGet, target: "/api/trucks/t-2", labels: []string{"GET", "/api/trucks/:id", "200"}},
		{method: http.MethodPost, target: "/api/planning/optimize", labels: []string{"POST", "/api/planning/optimize", "422"}},
		{method: http.MethodGet, target: "/nowhere", labels: []string{"GET", "/nowhere", "404"}},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.target, func(t *testing.T) {
			counter := HTTPRequestTotal.WithLabelValues(tt.labels...)
			before := testutil.ToFloat64(counter)

			router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(tt.method, tt.target, nil))

			assert.Equal(t, before+1, testutil.ToFloat64(counter))
		})
	}
}

// TestRecorders tests each recorder moves the series it owns.
func TestRecorders(t *testing.T) {
	tests := []struct {
		name   string
		value  func() float64
		record func()
		delta  float64
	}{
		{
			name:   "successful optimization",
			value:  func() float64 { return testutil.ToFloat64(OptimizationsTotal.WithLabelValues("success")) },
			record: func() { RecordOptimization(40*time.Millisecond, "success", 82.5) },
			delta:  1,
		},
		{
			name:   "infeasible optimization",
			value:  func() float64 { return testutil.ToFloat64(OptimizationsTotal.WithLabelValues("infeasible")) },
			record: func() { RecordOptimization(5*time.Millisecond, "infeasible", 0) },
			delta:  1,
		},
		{
			name:   "estimator fallback",
			value:  func() float64 { return testutil.ToFloat64(EstimatorFallbacksTotal.WithLabelValues("profile_missing")) },
			record: func() { RecordEstimatorFallback("profile_missing") },
			delta:  1,
		},
		{
			name:   "allocation conflict",
			value:  func() float64 { return testutil.ToFloat64(AllocationOperationsTotal.WithLabelValues("create_trip", "conflict")) },
			record: func() { RecordAllocation("create_trip", "conflict") },
			delta:  1,
		},
		{
			name:   "events published in a batch",
			value:  func() float64 { return testutil.ToFloat64(EventsTotal.WithLabelValues("kafka", "success")) },
			record: func() { RecordEvent("kafka", "success", 3) },
			delta:  3,
		},
		{
			name:   "reconciled order",
			value:  func() float64 { return testutil.ToFloat64(ReconciledOrdersTotal) },
			record: RecordReconciledOrder,
			delta:  1,
		},
		{
			name:   "rate limited request",
			value:  func() float64 { return testutil.ToFloat64(RateLimitedTotal.WithLabelValues("ip", "/api/orders")) },
			record: func() { RecordRateLimited("ip", "/api/orders") },
			delta:  1,
		},
		{
			name:   "abort without a route",
			value:  func() float64 { return testutil.ToFloat64(HTTPAbortsTotal.WithLabelValues("timeout", "unmatched")) },
			record: func() { RecordAbort("timeout", "") },
			delta:  1,
		},
		{
			name:   "cache hit",
			value:  func() float64 { return testutil.ToFloat64(CacheOperationsTotal.WithLabelValues("get", "hit")) },
			record: func() { RecordCacheOperation("get", "hit") },
			delta:  1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := tt.value()
			tt.record()
			assert.Equal(t, before+tt.delta, tt.value())
		})
	}
}

// TestRecordLockWait tests lock waits land in the histogram.
func TestRecordLockWait(t *testing.T) {
	RecordLockWait(2 * time.Millisecond)

	assert.Equal(t, 1, testutil.CollectAndCount(LockWaitDuration))
}

// TestSetCircuitBreakerState tests the gauge follows the latest state.
func TestSetCircuitBreakerState(t *testing.T) {
	SetCircuitBreakerState("mongodb_trucks", 2)
	SetCircuitBreakerState("mongodb_trucks", 1)

	assert.Equal(t, 1.0, testutil.ToFloat64(CircuitBreakerState.WithLabelValues("mongodb_trucks")))
}
