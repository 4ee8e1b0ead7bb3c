//go:build !integration

package app

import (
	"context"
	"testing"
	"time"

	"github.com/guttosm/trip-planner/config"
	"github.com/guttosm/trip-planner/internal/domain/model"
	"github.com/guttosm/trip-planner/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestInitializeDatabase tests the in-memory fallback.
func TestInitializeDatabase(t *testing.T) {
	components := InitializeDatabase(config.DatabaseConfig{Enabled: false})

	require.NotNil(t, components)
	assert.NotNil(t, components.Store)
	assert.Nil(t, components.DB)
	assert.Nil(t, components.TruckCircuitBreaker)
	assert.NoError(t, components.Close(context.Background()))
}

// TestInitializeServices tests the service graph for different configurations.
func TestInitializeServices(t *testing.T) {
	tests := []struct {
		name     string
		cfg      func() config.Config
		validate func(*testing.T, *ServiceComponents)
	}{
		{
			name: "default services",
			cfg:  testConfig,
			validate: func(t *testing.T, c *ServiceComponents) {
				assert.NotNil(t, c.Estimator)
				assert.NotNil(t, c.Optimizer)
				assert.NotNil(t, c.Allocation)
				assert.NotNil(t, c.Trucks)
				assert.NotNil(t, c.Addresses)
				assert.NotNil(t, c.History)
				assert.NotNil(t, c.Planning)
				assert.NotNil(t, c.Events)
				assert.NotNil(t, c.Profiles)
				assert.NotNil(t, c.EstimatorCircuitBreaker)
				assert.Nil(t, c.Kafka)
				assert.Nil(t, c.Reconciler)
			},
		},
		{
			name: "kafka sink when brokers are configured",
			cfg: func() config.Config {
				cfg := testConfig()
				cfg.Events.KafkaBrokers = []string{"127.0.0.1:1"}
				cfg.Events.KafkaTopic = "allocation-events"
				return cfg
			},
			validate: func(t *testing.T, c *ServiceComponents) {
				assert.NotNil(t, c.Kafka)
				assert.Equal(t, "kafka", c.Kafka.Name())
			},
		},
		{
			name: "random buffer",
			cfg: func() config.Config {
				cfg := testConfig()
				cfg.Estimator.RandomBuffer = true
				cfg.Estimator.BufferSeed = 7
				return cfg
			},
			validate: func(t *testing.T, c *ServiceComponents) {
				truck := model.Truck{ID: "t1", Width: 2.4, Length: 7.26, MaxWeight: 10000}
				est := c.Estimator.Estimate(context.Background(), truck, "", 5000, 6)
				assert.Positive(t, est.Duration)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := tt.cfg()
			db := InitializeDatabase(cfg.Database)
			c, err := InitializeServices(cfg, db)
			require.NoError(t, err)
			t.Cleanup(func() { c.Close(context.Background()) })

			tt.validate(t, c)
		})
	}
}

// TestServiceComponents_EventsReachStore tests committed allocations are
// recorded through the event pipeline.
func TestServiceComponents_EventsReachStore(t *testing.T) {
	cfg := testConfig()
	db := InitializeDatabase(cfg.Database)
	c, err := InitializeServices(cfg, db)
	require.NoError(t, err)
	t.Cleanup(func() { c.Close(context.Background()) })
	ctx := context.Background()

	address, err := c.Addresses.CreateAddress(ctx, service.AddressInput{
		AddressLine1: "Main 1", City: "Utrecht", Country: "NL", Postcode: "3511", RangeKm: 80, TimeH: 1,
	})
	require.NoError(t, err)

	order, err := c.Allocation.CreateOrder(ctx, service.CreateOrderInput{
		Pallets:              []model.Pallet{{ID: "PAL-1", Weight: 500, Height: 120}},
		DestinationAddressID: address.ID,
	})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		events, err := db.Store.Events().ListByOrder(ctx, order.ID, 10)
		return err == nil && len(events) > 0
	}, 2*time.Second, 10*time.Millisecond)
}
