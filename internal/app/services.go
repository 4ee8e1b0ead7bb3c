// Package app provides service initialization.
package app

import (
	"context"
	"fmt"

	"github.com/guttosm/trip-planner/config"
	"github.com/guttosm/trip-planner/internal/circuitbreaker"
	"github.com/guttosm/trip-planner/internal/service"
	"github.com/rs/zerolog/log"
)

// ServiceComponents holds the business services.
type ServiceComponents struct {
	Estimator  *service.Estimator
	Optimizer  *service.Optimizer
	Allocation *service.AllocationService
	Trucks     *service.TruckService
	Addresses  *service.AddressService
	History    *service.HistoryService
	Planning   *service.PlanningService

	// Optional parts; nil when disabled.
	Profiles   *service.CachedProfiles
	Events     *service.EventRecorder
	Kafka      *service.KafkaEventPublisher
	Reconciler *service.Reconciler

	EstimatorCircuitBreaker *circuitbreaker.CircuitBreaker
}

// InitializeServices builds the services over the given store.
func InitializeServices(cfg config.Config, db *DatabaseComponents) (*ServiceComponents, error) {
	store := db.Store
	c := &ServiceComponents{}

	profiles, err := buildProfiles(cfg, db)
	if err != nil {
		return nil, err
	}
	if cfg.Cache.Size > 0 {
		c.Profiles = service.NewCachedProfiles(profiles, cfg.Cache.Size, cfg.Cache.TTL)
		profiles = c.Profiles
	}

	var buffer service.BufferSource = service.FixedBuffer(cfg.Estimator.BufferFraction)
	if cfg.Estimator.RandomBuffer {
		buffer = service.NewRandomBuffer(cfg.Estimator.BufferSeed)
	}

	c.EstimatorCircuitBreaker = circuitbreaker.New(circuitbreaker.Config{
		FailureThreshold: cfg.Database.CircuitBreakerFailureThreshold,
		SuccessThreshold: cfg.Database.CircuitBreakerSuccessThreshold,
		Timeout:          cfg.Database.CircuitBreakerTimeout,
		Name:             "estimator_profiles",
	})

	c.Estimator = service.NewEstimator(
		service.WithProfiles(profiles),
		service.WithBuffer(buffer),
		service.WithLookupBreaker(c.EstimatorCircuitBreaker),
		service.WithEstimatorConfig(service.EstimatorConfig{
			DefaultDistanceKm:  cfg.Estimator.DefaultDistanceKm,
			DefaultTimeH:       cfg.Estimator.DefaultTimeH,
			DefaultConsumption: cfg.Estimator.DefaultConsumption,
			LookupTimeout:      cfg.Estimator.LookupTimeout,
		}),
	)

	c.Optimizer = service.NewOptimizer(c.Estimator, service.OptimizerConfig{
		MinLoadUtilization: cfg.Planner.MinLoadUtilization,
		BaseDistanceKm:     cfg.Planner.BaseDistanceKm,
	})

	locks := service.NewKeyedLocker()
	allocationOpts := []service.AllocationOption{
		service.WithLocker(locks),
		service.WithLockTimeout(cfg.Planner.LockTimeout),
	}
	if cfg.Events.Enabled {
		sinks := []service.EventSink{service.NewRepositoryEventSink(store.Events())}
		if len(cfg.Events.KafkaBrokers) > 0 {
			c.Kafka = service.NewKafkaEventPublisher(cfg.Events.KafkaBrokers, cfg.Events.KafkaTopic)
			sinks = append(sinks, c.Kafka)
			log.Info().Strs("brokers", cfg.Events.KafkaBrokers).Str("topic", cfg.Events.KafkaTopic).Msg("Publishing allocation events to Kafka")
		}
		eventsCfg := service.DefaultEventRecorderConfig()
		if cfg.Events.BufferSize > 0 {
			eventsCfg.BufferSize = cfg.Events.BufferSize
		}
		if cfg.Events.Workers > 0 {
			eventsCfg.NumWorkers = cfg.Events.Workers
		}
		c.Events = service.NewEventRecorder(eventsCfg, sinks...)
		allocationOpts = append(allocationOpts, service.WithEventEmitter(c.Events))
	}
	c.Allocation = service.NewAllocationService(store, c.Estimator, allocationOpts...)

	// A nil *CachedProfiles must not reach the services as a non-nil
	// interface.
	var invalidator service.ProfileInvalidator
	if c.Profiles != nil {
		invalidator = c.Profiles
	}
	c.Trucks = service.NewTruckService(store, locks, invalidator)
	c.Addresses = service.NewAddressService(store, invalidator)
	c.History = service.NewHistoryService(store)
	c.Planning = service.NewPlanningService(c.Allocation, c.Trucks, c.Optimizer, c.Estimator,
		service.WithHistory(c.History),
		service.WithPlanningConfig(service.PlanningConfig{
			HistoryTimeout:  cfg.Planner.HistoryTimeout,
			AnalysisTimeout: cfg.Planner.EnrichmentTimeout,
		}),
	)

	if cfg.Reconciler.Enabled {
		c.Reconciler = service.NewReconciler(c.Allocation, cfg.Reconciler.Timeout)
		if err := c.Reconciler.Start(cfg.Reconciler.Schedule); err != nil {
			c.Close(context.Background())
			return nil, err
		}
	}

	return c, nil
}

// buildProfiles chains the static catalog, when configured, in front of the
// address registry.
func buildProfiles(cfg config.Config, db *DatabaseComponents) (service.ProfileProvider, error) {
	registry := service.NewRepositoryProfiles(db.Store.Addresses(), cfg.Estimator.DefaultDistanceKm, cfg.Estimator.DefaultTimeH)
	if cfg.Estimator.ProfilesFile == "" {
		return registry, nil
	}
	catalog, err := service.LoadProfileCatalog(cfg.Estimator.ProfilesFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load estimator profiles: %w", err)
	}
	log.Info().Str("file", cfg.Estimator.ProfilesFile).Msg("Loaded estimator profile catalog")
	return service.ChainProfiles{service.NewStaticProfiles(catalog), registry}, nil
}

// Close stops the background workers. Pending events are flushed first.
func (c *ServiceComponents) Close(_ context.Context) {
	if c == nil {
		return
	}
	if c.Reconciler != nil {
		c.Reconciler.Stop()
	}
	if c.Events != nil {
		c.Events.Stop()
	}
	if c.Kafka != nil {
		if err := c.Kafka.Close(); err != nil {
			log.Warn().Err(err).Msg("Failed to close Kafka writer")
		}
	}
	if c.Profiles != nil {
		c.Profiles.Stop()
	}
}
