//go:build !integration

package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// fakeClock is a settable time source for the limiter.
type fakeClock struct{ t time.Time }

func (f *fakeClock) now() time.Time          { return f.t }
func (f *fakeClock) advance(d time.Duration) { f.t = f.t.Add(d) }

func newTestLimiter(t *testing.T, rate int, window time.Duration, opts ...RateLimiterOption) (*ShardedRateLimiter, *fakeClock) {
	t.Helper()
	clock := &fakeClock{t: time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)}
	rl := NewRateLimiter(rate, window, opts...)
	rl.now = clock.now
	t.Cleanup(rl.Stop)
	return rl, clock
}

// TestNewRateLimiter tests limiter options.
func TestNewRateLimiter(t *testing.T) {
	tests := []struct {
		name       string
		opts       []RateLimiterOption
		wantShards int
		wantCosts  map[string]int
	}{
		{
			name:       "defaults",
			wantShards: defaultNumShards,
			wantCosts:  map[string]int{},
		},
		{
			name:       "non-positive shard count keeps default",
			opts:       []RateLimiterOption{WithShards(0), WithShards(-3)},
			wantShards: defaultNumShards,
			wantCosts:  map[string]int{},
		},
		{
			name:       "custom shards",
			opts:       []RateLimiterOption{WithShards(4)},
			wantShards: 4,
			wantCosts:  map[string]int{},
		},
		{
			name: "route costs ignore non-positive values",
			opts: []RateLimiterOption{WithRouteCost(map[string]int{
				"/api/planning/optimize": 5,
				"/api/trucks":            0,
			})},
			wantShards: defaultNumShards,
			wantCosts:  map[string]int{"/api/planning/optimize": 5},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rl, _ := newTestLimiter(t, 10, time.Minute, tt.opts...)

			assert.Len(t, rl.shards, tt.wantShards)
			assert.Equal(t, tt.wantCosts, rl.costs)
			assert.Equal(t, 1, rl.cost("/api/orders"))
		})
	}
}

// TestShardedRateLimiter_Take tests token accounting within and across windows.
func TestShardedRateLimiter_Take(t *testing.T) {
	t.Run("budget drains then refills after the window", func(t *testing.T) {
		rl, clock := newTestLimiter(t, 3, time.Minute)

		for want := 2; want >= 0; want-- {
			allowed, remaining, reset := rl.take("ip:1", 1)
			require.True(t, allowed)
			assert.Equal(t, want, remaining)
			assert.Equal(t, time.Minute, reset)
		}

		clock.advance(20 * time.Second)
		allowed, remaining, reset := rl.take("ip:1", 1)
		assert.False(t, allowed)
		assert.Zero(t, remaining)
		assert.Equal(t, 40*time.Second, reset)

		clock.advance(40 * time.Second)
		allowed, remaining, _ = rl.take("ip:1", 1)
		assert.True(t, allowed)
		assert.Equal(t, 2, remaining)
	})

	t.Run("costly request needs enough tokens", func(t *testing.T) {
		rl, _ := newTestLimiter(t, 6, time.Minute)

		allowed, remaining, _ := rl.take("ip:1", 5)
		assert.True(t, allowed)
		assert.Equal(t, 1, remaining)

		allowed, remaining, _ = rl.take("ip:1", 5)
		assert.False(t, allowed)
		assert.Equal(t, 1, remaining)

		allowed, _, _ = rl.take("ip:1", 1)
		assert.True(t, allowed)
	})

	t.Run("cost above the rate is never allowed", func(t *testing.T) {
		rl, _ := newTestLimiter(t, 2, time.Minute)

		allowed, remaining, _ := rl.take("ip:1", 3)
		assert.False(t, allowed)
		assert.Equal(t, 2, remaining)
	})

	t.Run("callers have separate budgets", func(t *testing.T) {
		rl, _ := newTestLimiter(t, 1, time.Minute)

		allowed, _, _ := rl.take("ip:1", 1)
		assert.True(t, allowed)
		allowed, _, _ = rl.take("ip:2", 1)
		assert.True(t, allowed)
		allowed, _, _ = rl.take("ip:1", 1)
		assert.False(t, allowed)
		assert.Equal(t, 2, rl.Tracked())
	})
}

// TestCallerKey tests which identity a request is limited under.
func TestCallerKey(t *testing.T) {
	tests := []struct {
		name   string
		userID string
		want   string
	}{
		{name: "token subject", userID: "alice", want: "user:alice"},
		{name: "api key caller falls back to ip", userID: apiKeyCaller, want: "ip:192.0.2.1"},
		{name: "anonymous falls back to ip", want: "ip:192.0.2.1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := gin.CreateTestContext(httptest.NewRecorder())
			c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
			c.Request.RemoteAddr = "192.0.2.1:5555"
			if tt.userID != "" {
				c.Set(ContextUserID, tt.userID)
			}

			assert.Equal(t, tt.want, callerKey(c))
		})
	}
}

// TestRateLimit tests the per-IP middleware responses and headers.
func TestRateLimit(t *testing.T) {
	rl, clock := newTestLimiter(t, 6, time.Minute,
		WithRouteCost(map[string]int{"/optimize": 5}))

	router := gin.New()
	router.Use(rl.RateLimit())
	router.GET("/trucks", func(c *gin.Context) { c.Status(http.StatusOK) })
	router.POST("/optimize", func(c *gin.Context) { c.Status(http.StatusOK) })

	do := func(method, path string) *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(method, path, nil)
		req.RemoteAddr = "198.51.100.7:1234"
		router.ServeHTTP(w, req)
		return w
	}

	w := do(http.MethodPost, "/optimize")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "6", w.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "1", w.Header().Get("X-RateLimit-Remaining"))
	assert.Equal(t, "60", w.Header().Get("X-RateLimit-Reset"))
	assert.Empty(t, w.Header().Get("Retry-After"))

	clock.advance(15500 * time.Millisecond)
	w = do(http.MethodPost, "/optimize")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "45", w.Header().Get("Retry-After"))
	assert.Contains(t, w.Body.String(), "rate_limit_exceeded")

	w = do(http.MethodGet, "/trucks")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "0", w.Header().Get("X-RateLimit-Remaining"))

	w = do(http.MethodGet, "/trucks")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
}

// TestUserRateLimit tests token subjects get their own budget.
func TestUserRateLimit(t *testing.T) {
	rl, _ := newTestLimiter(t, 1, time.Minute)

	router := gin.New()
	router.Use(func(c *gin.Context) {
		if user := c.GetHeader("X-Test-User"); user != "" {
			c.Set(ContextUserID, user)
		}
		c.Next()
	})
	router.Use(rl.UserRateLimit())
	router.GET("/orders", func(c *gin.Context) { c.Status(http.StatusOK) })

	do := func(user string) int {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/orders", nil)
		if user != "" {
			req.Header.Set("X-Test-User", user)
		}
		router.ServeHTTP(w, req)
		return w.Code
	}

	assert.Equal(t, http.StatusOK, do("alice"))
	assert.Equal(t, http.StatusTooManyRequests, do("alice"))
	assert.Equal(t, http.StatusOK, do("bob"))
	assert.Equal(t, http.StatusOK, do(""))
	assert.Equal(t, http.StatusTooManyRequests, do(apiKeyCaller))
}

// TestShardedRateLimiter_EvictExpired tests stale budgets are dropped.
func TestShardedRateLimiter_EvictExpired(t *testing.T) {
	rl, clock := newTestLimiter(t, 5, time.Minute)

	rl.take("ip:old", 1)
	clock.advance(90 * time.Second)
	rl.take("ip:new", 1)
	require.Equal(t, 2, rl.Tracked())

	rl.evictExpired()
	assert.Equal(t, 2, rl.Tracked())

	clock.advance(time.Minute)
	rl.evictExpired()
	assert.Equal(t, 1, rl.Tracked())

	_, remaining, _ := rl.take("ip:new", 1)
	assert.Equal(t, 4, remaining, "window of ip:new ended as well")
}

// TestShardedRateLimiter_Stop tests Stop can be called repeatedly.
func TestShardedRateLimiter_Stop(t *testing.T) {
	rl := NewRateLimiter(1, time.Second)

	assert.NotPanics(t, func() {
		rl.Stop()
		rl.Stop()
	})
}
