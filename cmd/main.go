// Package main is the entry point for the trip-planner application.
//
// @title           Trip Planner API
// @version         1.0.0
// @description     Plans truck trips for warehouse orders: packs pallets onto trucks,
// @description     books trips against orders and estimates fuel and duration.
//
// @termsOfService  http://swagger.io/terms/
//
// @contact.name   API Support
// @contact.email  support@example.com
// @contact.url    https://github.com/guttosm/trip-planner
//
// @license.name  MIT
// @license.url   https://opensource.org/licenses/MIT
//
// @host      localhost:8080
// @BasePath  /
//
// @securityDefinitions.apikey  ApiKeyAuth
// @in                          header
// @name                        X-API-Key
// @description                 API key for authentication. Required if authentication is enabled.
//
// @securityDefinitions.apikey  BearerAuth
// @in                          header
// @name                        Authorization
// @description                 "Bearer" followed by a token from the identity provider.
//
// @tag.name        Orders
// @tag.description Order registration and allocation state
//
// @tag.name        Trips
// @tag.description Trip booking and lifecycle
//
// @tag.name        Trucks
// @tag.description Truck registry
//
// @tag.name        Addresses
// @tag.description Delivery addresses and their distance profiles
//
// @tag.name        Planning
// @tag.description Load optimization and performance trends
//
// @tag.name        Estimates
// @tag.description Fuel and duration estimates
//
// @tag.name        Health
// @tag.description Health check endpoints
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/guttosm/trip-planner/docs" // swagger docs

	"github.com/guttosm/trip-planner/config"
	"github.com/guttosm/trip-planner/internal/app"
	"github.com/rs/zerolog/log"
)

const shutdownTimeout = 15 * time.Second

func main() {
	cfg := config.LoadWithDotEnv()

	application, err := app.InitializeApp(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize application")
	}

	server := app.NewServer(application.Router, cfg.Server.Port,
		app.WithWriteTimeout(cfg.Server.RequestTimeout+5*time.Second))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	runErr := server.Run(ctx)
	stop()

	closeCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	if err := application.Close(closeCtx); err != nil {
		log.Error().Err(err).Msg("Failed to release resources")
	}
	cancel()

	if runErr != nil {
		log.Fatal().Err(runErr).Msg("Server error")
	}
}
