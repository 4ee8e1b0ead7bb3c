package middleware

import (
	"hash/fnv"
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/guttosm/trip-planner/internal/domain/dto"
	"github.com/guttosm/trip-planner/internal/i18n"
	"github.com/guttosm/trip-planner/internal/metrics"
)

const defaultNumShards = 16

// budget is the remaining allowance of one caller in the current window.
type budget struct {
	tokens      int
	windowStart time.Time
}

type limiterShard struct {
	mu      sync.Mutex
	budgets map[string]*budget
}

// ShardedRateLimiter grants each caller rate tokens per fixed window. Most
// requests cost one token; routes registered with WithRouteCost cost more.
// Callers are spread over shards to keep lock contention low.
type ShardedRateLimiter struct {
	shards []*limiterShard
	rate   int
	window time.Duration
	costs  map[string]int
	now    func() time.Time
	stopCh chan struct{}
	once   sync.Once
}

// RateLimiterOption configures a ShardedRateLimiter.
type RateLimiterOption func(*ShardedRateLimiter)

// WithShards sets the shard count. Non-positive values keep the default.
func WithShards(n int) RateLimiterOption {
	return func(rl *ShardedRateLimiter) {
		if n > 0 {
			rl.shards = newShards(n)
		}
	}
}

// WithRouteCost charges the given number of tokens for requests to the
// listed route patterns, as registered with gin (e.g. "/api/planning/optimize").
func WithRouteCost(costs map[string]int) RateLimiterOption {
	return func(rl *ShardedRateLimiter) {
		for route, cost := range costs {
			if cost > 0 {
				rl.costs[route] = cost
			}
		}
	}
}

// NewRateLimiter creates a limiter allowing rate tokens per window.
func NewRateLimiter(rate int, window time.Duration, opts ...RateLimiterOption) *ShardedRateLimiter {
	rl := &ShardedRateLimiter{
		shards: newShards(defaultNumShards),
		rate:   rate,
		window: window,
		costs:  make(map[string]int),
		now:    time.Now,
		stopCh: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(rl)
	}
	go rl.cleanup()
	return rl
}

func newShards(n int) []*limiterShard {
	shards := make([]*limiterShard, n)
	for i := range shards {
		shards[i] = &limiterShard{budgets: make(map[string]*budget)}
	}
	return shards
}

func (rl *ShardedRateLimiter) shard(key string) *limiterShard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return rl.shards[h.Sum32()%uint32(len(rl.shards))]
}

func (rl *ShardedRateLimiter) cost(route string) int {
	if c, ok := rl.costs[route]; ok {
		return c
	}
	return 1
}

// take draws cost tokens from key's budget. A request costing more than the
// whole rate is never allowed.
func (rl *ShardedRateLimiter) take(key string, cost int) (allowed bool, remaining int, reset time.Duration) {
	s := rl.shard(key)
	s.mu.Lock()
	defer s.mu.Unlock()

	now := rl.now()
	b, ok := s.budgets[key]
	if !ok || now.Sub(b.windowStart) >= rl.window {
		b = &budget{tokens: rl.rate, windowStart: now}
		s.budgets[key] = b
	}
	reset = b.windowStart.Add(rl.window).Sub(now)

	if b.tokens < cost {
		return false, b.tokens, reset
	}
	b.tokens -= cost
	return true, b.tokens, reset
}

// RateLimit returns a middleware that limits requests per client IP.
func (rl *ShardedRateLimiter) RateLimit() gin.HandlerFunc {
	return rl.limit("ip", func(c *gin.Context) string { return "ip:" + c.ClientIP() })
}

// UserRateLimit returns a middleware that limits requests per token subject.
// API key callers share one key and unauthenticated callers have no subject,
// so both are limited per IP.
func (rl *ShardedRateLimiter) UserRateLimit() gin.HandlerFunc {
	return rl.limit("caller", callerKey)
}

func callerKey(c *gin.Context) string {
	if id := c.GetString(ContextUserID); id != "" && id != apiKeyCaller {
		return "user:" + id
	}
	return "ip:" + c.ClientIP()
}

func (rl *ShardedRateLimiter) limit(scope string, key func(*gin.Context) string) gin.HandlerFunc {
	return func(c *gin.Context) {
		route := c.FullPath()
		allowed, remaining, reset := rl.take(key(c), rl.cost(route))

		resetSeconds := strconv.Itoa(int(math.Ceil(reset.Seconds())))
		c.Header("X-RateLimit-Limit", strconv.Itoa(rl.rate))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(remaining))
		c.Header("X-RateLimit-Reset", resetSeconds)

		if !allowed {
			metrics.RecordRateLimited(scope, route)
			c.Header("Retry-After", resetSeconds)
			abortWithError(c, http.StatusTooManyRequests, dto.ErrCodeRateLimit, i18n.ErrKeyRateLimitExceeded)
			return
		}
		c.Next()
	}
}

func (rl *ShardedRateLimiter) cleanup() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.evictExpired()
		case <-rl.stopCh:
			return
		}
	}
}

// evictExpired drops budgets whose window ended more than a window ago.
func (rl *ShardedRateLimiter) evictExpired() {
	now := rl.now()
	for _, s := range rl.shards {
		s.mu.Lock()
		for key, b := range s.budgets {
			if now.Sub(b.windowStart) > 2*rl.window {
				delete(s.budgets, key)
			}
		}
		s.mu.Unlock()
	}
}

// Stop ends the background eviction. It is safe to call more than once.
func (rl *ShardedRateLimiter) Stop() {
	rl.once.Do(func() { close(rl.stopCh) })
}

// Tracked returns how many callers currently hold a budget.
func (rl *ShardedRateLimiter) Tracked() int {
	n := 0
	for _, s := range rl.shards {
		s.mu.Lock()
		n += len(s.budgets)
		s.mu.Unlock()
	}
	return n
}
