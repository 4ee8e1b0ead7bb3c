// Package app provides database initialization and setup.
package app

import (
	"context"

	"github.com/guttosm/trip-planner/config"
	"github.com/guttosm/trip-planner/internal/circuitbreaker"
	"github.com/guttosm/trip-planner/internal/repository"
	"github.com/rs/zerolog/log"
)

// DatabaseComponents holds the store and the breakers guarding it.
type DatabaseComponents struct {
	Store repository.Store
	// DB is nil when the in-memory store is in use.
	DB                    *repository.MongoDB
	TruckCircuitBreaker   *circuitbreaker.CircuitBreaker
	AddressCircuitBreaker *circuitbreaker.CircuitBreaker
	EventCircuitBreaker   *circuitbreaker.CircuitBreaker
}

// InitializeDatabase connects to MongoDB and builds the store. When the
// database is disabled or unreachable the service runs on an in-memory store.
func InitializeDatabase(cfg config.DatabaseConfig) *DatabaseComponents {
	if !cfg.Enabled {
		log.Info().Msg("MongoDB disabled - using in-memory store")
		return &DatabaseComponents{Store: repository.NewMemoryStore()}
	}

	ctx := context.Background()
	db, err := repository.NewMongoDBWithConfig(ctx, cfg.URI, cfg.DatabaseName, mongoConfig(cfg))
	if err != nil {
		log.Error().Err(err).Msg("Failed to connect to MongoDB - continuing with in-memory store")
		return &DatabaseComponents{Store: repository.NewMemoryStore()}
	}

	log.Info().Str("database", cfg.DatabaseName).Msg("Connected to MongoDB")

	if cfg.EventsTTL > 0 {
		if err := db.SetEventsTTL(ctx, cfg.EventsTTL); err != nil {
			log.Warn().Err(err).Msg("Failed to set allocation events TTL index")
		}
	}

	truckCB := newRepositoryBreaker(cfg, "mongodb_trucks")
	addressCB := newRepositoryBreaker(cfg, "mongodb_addresses")
	eventCB := newRepositoryBreaker(cfg, "mongodb_events")

	// Orders and trips are written inside transactions, whose retry rules do
	// not mix with a breaker; only the lookup-heavy registries are guarded.
	store := repository.NewMongoStore(db,
		repository.WithTruckRepository(repository.NewTruckRepositoryWithCircuitBreaker(repository.NewTruckRepository(db), truckCB)),
		repository.WithAddressRepository(repository.NewAddressRepositoryWithCircuitBreaker(repository.NewAddressRepository(db), addressCB)),
		repository.WithEventRepository(repository.NewEventRepositoryWithCircuitBreaker(repository.NewEventRepository(db), eventCB)),
	)

	return &DatabaseComponents{
		Store:                 store,
		DB:                    db,
		TruckCircuitBreaker:   truckCB,
		AddressCircuitBreaker: addressCB,
		EventCircuitBreaker:   eventCB,
	}
}

func mongoConfig(cfg config.DatabaseConfig) repository.MongoConfig {
	mc := repository.DefaultMongoConfig()
	if cfg.MaxPoolSize > 0 {
		mc.MaxPoolSize = uint64(cfg.MaxPoolSize)
		mc.MinPoolSize = min(mc.MinPoolSize, mc.MaxPoolSize)
	}
	if cfg.ConnectTimeout > 0 {
		mc.ConnectTimeout = cfg.ConnectTimeout
	}
	return mc
}

func newRepositoryBreaker(cfg config.DatabaseConfig, name string) *circuitbreaker.CircuitBreaker {
	return circuitbreaker.New(circuitbreaker.Config{
		FailureThreshold: cfg.CircuitBreakerFailureThreshold,
		SuccessThreshold: cfg.CircuitBreakerSuccessThreshold,
		Timeout:          cfg.CircuitBreakerTimeout,
		Name:             name,
		IsSuccessful:     repository.IsBusinessError,
	})
}

// Close disconnects from MongoDB, if connected.
func (d *DatabaseComponents) Close(ctx context.Context) error {
	if d == nil || d.DB == nil {
		return nil
	}
	return d.DB.Close(ctx)
}
