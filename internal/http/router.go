// Package http exposes the trip planner over a gin REST API.
package http

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/guttosm/trip-planner/internal/metrics"
	"github.com/guttosm/trip-planner/internal/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// RouterConfig holds router configuration options.
type RouterConfig struct {
	RateLimit         int
	RateWindow        time.Duration
	RequestTimeout    time.Duration
	APIKeys           map[string]bool
	EnableAuth        bool
	JWT               middleware.JWTConfig
	WriteRoles        []string
	EnableIdempotency bool
	IdempotencyTTL    time.Duration
	CORSOrigins       []string
	SwaggerUser       string
	SwaggerPass       string
}

// DefaultRouterConfig returns the default router configuration.
func DefaultRouterConfig() RouterConfig {
	return RouterConfig{
		RateLimit:      100,
		RateWindow:     time.Minute,
		RequestTimeout: middleware.DefaultTimeoutConfig().Timeout,
		IdempotencyTTL: middleware.IdempotencyKeyTTL,
	}
}

// NewRouter creates the gin engine with the infrastructure routes and every
// group mounted under /api.
func NewRouter(groups []RouteGroup, healthHandler *HealthHandler, cfg RouterConfig) *gin.Engine {
	RegisterValidators()
	router := gin.New()

	configureGlobalMiddleware(router, &cfg)
	registerInfrastructureRoutes(router, healthHandler, &cfg)

	api := router.Group("/api")
	configureAPIMiddleware(api, &cfg)
	for _, g := range groups {
		g.RegisterRoutes(api, &cfg)
	}

	return router
}

// configureGlobalMiddleware sets up middleware applied to all routes.
func configureGlobalMiddleware(router *gin.Engine, cfg *RouterConfig) {
	router.Use(
		middleware.CORS(cfg.CORSOrigins),
		middleware.RequestID(),
		middleware.Recovery(),
		metrics.PrometheusMiddleware(),
		middleware.Compression(),
		middleware.RequestLogger(),
		middleware.ErrorHandler(),
	)

	// Authenticated callers are limited per user on the API group instead.
	if cfg.RateLimit > 0 && !cfg.EnableAuth {
		router.Use(newLimiter(cfg).RateLimit())
	}
}

// registerInfrastructureRoutes registers health, metrics, and documentation routes.
func registerInfrastructureRoutes(router *gin.Engine, healthHandler *HealthHandler, cfg *RouterConfig) {
	if healthHandler != nil {
		healthHandler.Register(router)
	}
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Swagger with optional basic auth
	if cfg.SwaggerUser != "" && cfg.SwaggerPass != "" {
		authorized := router.Group("/swagger", gin.BasicAuth(gin.Accounts{
			cfg.SwaggerUser: cfg.SwaggerPass,
		}))
		authorized.GET("/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	} else {
		router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}
}

// configureAPIMiddleware sets up middleware for the API group. Authentication
// runs before idempotency so a replay never bypasses it.
func configureAPIMiddleware(api *gin.RouterGroup, cfg *RouterConfig) {
	if cfg.RequestTimeout > 0 {
		api.Use(middleware.TimeoutWithDuration(cfg.RequestTimeout))
	}

	if cfg.EnableAuth {
		api.Use(middleware.Authenticate(cfg.APIKeys, cfg.JWT))
		if len(cfg.WriteRoles) > 0 {
			api.Use(middleware.WritesRequireRoles(cfg.WriteRoles...))
		}
		if cfg.RateLimit > 0 {
			api.Use(newLimiter(cfg).UserRateLimit())
		}
	}

	if cfg.EnableIdempotency {
		ttl := cfg.IdempotencyTTL
		if ttl <= 0 {
			ttl = middleware.IdempotencyKeyTTL
		}
		api.Use(middleware.Idempotency(middleware.NewIdempotencyConfig(defaultIdempotencyCapacity, ttl)))
	}
}

const (
	defaultIdempotencyCapacity = 10000
	// optimizeRequestCost is the rate limit charge of a planning run.
	optimizeRequestCost = 5
)

func newLimiter(cfg *RouterConfig) *middleware.ShardedRateLimiter {
	return middleware.NewRateLimiter(cfg.RateLimit, cfg.RateWindow,
		middleware.WithRouteCost(map[string]int{"/api/planning/optimize": optimizeRequestCost}))
}
