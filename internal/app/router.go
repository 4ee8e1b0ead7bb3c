// Package app provides router configuration.
package app

import (
	"github.com/guttosm/trip-planner/config"
	"github.com/guttosm/trip-planner/internal/circuitbreaker"
	"github.com/guttosm/trip-planner/internal/http"
	"github.com/guttosm/trip-planner/internal/middleware"
)

// RouterComponents holds router-related components.
type RouterComponents struct {
	Handlers      http.Handlers
	HealthHandler *http.HealthHandler
	Config        http.RouterConfig
}

// InitializeRouter initializes HTTP handlers and router configuration.
func InitializeRouter(services *ServiceComponents, db *DatabaseComponents, cfg config.Config) *RouterComponents {
	handlers := http.Handlers{
		Orders:    http.NewOrderHandler(services.Allocation),
		Trips:     http.NewTripHandler(services.Allocation),
		Trucks:    http.NewTruckHandler(services.Trucks),
		Addresses: http.NewAddressHandler(services.Addresses),
		Planning:  http.NewPlanningHandler(services.Planning, services.History),
		Estimates: http.NewEstimateHandler(services.Trucks, services.Estimator),
	}

	healthHandler := http.NewHealthHandler()
	if db.DB != nil {
		healthHandler.RegisterChecker("mongodb", http.HealthCheckFunc(db.DB.HealthCheck))
	}
	// Events are buffered and the estimator falls back to defaults, so their
	// breakers only degrade readiness.
	breakers := []struct {
		name     string
		cb       *circuitbreaker.CircuitBreaker
		critical bool
	}{
		{"mongodb_trucks", db.TruckCircuitBreaker, true},
		{"mongodb_addresses", db.AddressCircuitBreaker, true},
		{"mongodb_events", db.EventCircuitBreaker, false},
		{"estimator_profiles", services.EstimatorCircuitBreaker, false},
	}
	for _, b := range breakers {
		if b.cb == nil {
			continue
		}
		var opts []http.CheckOption
		if !b.critical {
			opts = append(opts, http.NonCritical())
		}
		healthHandler.RegisterCircuitBreaker(b.name, b.cb, opts...)
	}

	routerCfg := http.DefaultRouterConfig()
	if cfg.Server.RateLimit > 0 {
		routerCfg.RateLimit = cfg.Server.RateLimit
	}
	if cfg.Server.RateWindow > 0 {
		routerCfg.RateWindow = cfg.Server.RateWindow
	}
	if cfg.Server.RequestTimeout > 0 {
		routerCfg.RequestTimeout = cfg.Server.RequestTimeout
	}
	routerCfg.EnableAuth = cfg.Auth.Enabled
	routerCfg.APIKeys = cfg.Auth.APIKeys
	routerCfg.JWT = middleware.JWTConfig{Secret: []byte(cfg.Auth.JWTSecretKey), Issuer: cfg.Auth.JWTIssuer}
	routerCfg.WriteRoles = cfg.Auth.WriteRoles
	routerCfg.EnableIdempotency = true
	routerCfg.CORSOrigins = cfg.Server.CORSOrigins
	routerCfg.SwaggerUser = cfg.Server.SwaggerUser
	routerCfg.SwaggerPass = cfg.Server.SwaggerPass

	return &RouterComponents{
		Handlers:      handlers,
		HealthHandler: healthHandler,
		Config:        routerCfg,
	}
}
