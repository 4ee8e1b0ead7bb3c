//go:build integration

package circuitbreaker_test

import (
	"context"
	"testing"
	"time"

	"github.com/guttosm/trip-planner/internal/apperror"
	"github.com/guttosm/trip-planner/internal/circuitbreaker"
	"github.com/guttosm/trip-planner/internal/domain/model"
	"github.com/guttosm/trip-planner/internal/repository"
	"github.com/guttosm/trip-planner/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// TestCircuitBreaker_MongoOutage tests a truck registry breaker across a
// database outage: lookups of unknown trucks keep it closed, a stopped server
// opens it and later calls fail fast without reaching the driver.
func TestCircuitBreaker_MongoOutage(t *testing.T) {
	ctx := context.Background()

	mongo, err := testutil.StartMongo(ctx)
	require.NoError(t, err)
	t.Cleanup(func() { _ = mongo.Terminate(context.Background()) })

	cfg := repository.DefaultMongoConfig()
	cfg.ServerSelectionTimeout = 500 * time.Millisecond
	cfg.MinPoolSize = 0
	db, err := repository.NewMongoDBWithConfig(ctx, mongo.URI, testutil.DatabaseName(t), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close(context.Background()) })

	cb := circuitbreaker.New(circuitbreaker.Config{
		Name:             "mongodb_trucks",
		FailureThreshold: 2,
		SuccessThreshold: 1,
		Timeout:          time.Minute,
		IsSuccessful:     repository.IsBusinessError,
	})
	trucks := repository.NewTruckRepositoryWithCircuitBreaker(repository.NewTruckRepository(db), cb)

	truck := &model.Truck{PlateNumber: "WX-1001", VINCode: "VIN-CB-1", MaxWeight: 20000, IsActive: true}
	require.NoError(t, trucks.Create(ctx, truck))

	got, err := trucks.Get(ctx, truck.ID)
	require.NoError(t, err)
	assert.Equal(t, "WX-1001", got.PlateNumber)

	for i := 0; i < 3; i++ {
		_, err = trucks.Get(ctx, primitive.NewObjectID().Hex())
		assert.True(t, apperror.IsNotFound(err))
	}
	require.Equal(t, circuitbreaker.StateClosed, cb.State())

	duplicate := &model.Truck{PlateNumber: "WX-1001", VINCode: "VIN-CB-2", MaxWeight: 18000, IsActive: true}
	err = trucks.Create(ctx, duplicate)
	assert.True(t, apperror.IsConflict(err))
	require.Equal(t, circuitbreaker.StateClosed, cb.State())

	require.NoError(t, mongo.Terminate(ctx))

	for i := 0; i < 2; i++ {
		_, err = trucks.Get(ctx, truck.ID)
		require.Error(t, err)
		assert.NotErrorIs(t, err, circuitbreaker.ErrCircuitOpen)
	}
	require.Equal(t, circuitbreaker.StateOpen, cb.State())

	start := time.Now()
	_, err = trucks.Get(ctx, truck.ID)
	assert.ErrorIs(t, err, circuitbreaker.ErrCircuitOpen)
	assert.Less(t, time.Since(start), 100*time.Millisecond)

	stats := cb.GetStats()
	assert.False(t, stats.IsHealthy)
	assert.False(t, stats.LastFailure.IsZero())
}
