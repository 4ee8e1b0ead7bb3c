// Package app provides application initialization and dependency injection.
package app

import (
	"context"
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/guttosm/trip-planner/config"
	"github.com/guttosm/trip-planner/internal/http"
	"github.com/guttosm/trip-planner/internal/tracing"
	"github.com/rs/zerolog/log"
)

// App is the wired application: the HTTP engine plus the resources that must
// be released on shutdown.
type App struct {
	Router   *gin.Engine
	Database *DatabaseComponents
	Services *ServiceComponents
	tracing  *tracing.Provider
}

// InitializeApp creates and wires all application dependencies.
// This is the main orchestration function that initializes all components.
func InitializeApp(cfg config.Config) (*App, error) {
	// Initialize logger first (needed by other components)
	InitializeLogger(cfg)

	tp, err := tracing.Init(context.Background(), tracing.Config{
		Enabled:     cfg.Tracing.Enabled,
		ServiceName: cfg.Tracing.ServiceName,
		Endpoint:    cfg.Tracing.Endpoint,
		SampleRate:  cfg.Tracing.SampleRate,
	})
	if err != nil {
		log.Warn().Err(err).Msg("Failed to initialize tracing - continuing without it")
		tp = nil
	}

	dbComponents := InitializeDatabase(cfg.Database)

	serviceComponents, err := InitializeServices(cfg, dbComponents)
	if err != nil {
		_ = dbComponents.Close(context.Background())
		_ = tp.Shutdown(context.Background())
		return nil, err
	}

	routerComponents := InitializeRouter(serviceComponents, dbComponents, cfg)

	return &App{
		Router:   http.NewRouter(routerComponents.Handlers.Groups(), routerComponents.HealthHandler, routerComponents.Config),
		Database: dbComponents,
		Services: serviceComponents,
		tracing:  tp,
	}, nil
}

// Close stops the background services, then releases the database and
// flushes traces.
func (a *App) Close(ctx context.Context) error {
	a.Services.Close(ctx)
	return errors.Join(
		a.Database.Close(ctx),
		a.tracing.Shutdown(ctx),
	)
}
