//go:build !integration

package service

import (
	"testing"

	"github.com/guttosm/trip-planner/internal/domain/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestReconciler_RunOnce tests a pass repairs drifted orders only.
func TestReconciler_RunOnce(t *testing.T) {
	f := newAllocationFixture(t)
	truck := f.addTruck(t, 10000)
	drifting := f.addOrder(t, pallet("P1", 1000, 150))
	f.addOrder(t, pallet("Q1", 500, 150))
	cancelled := f.addOrder(t, pallet("R1", 500, 150))
	_, err := f.svc.CancelOrder(f.ctx, cancelled.ID)
	require.NoError(t, err)

	_, err = f.svc.CreateTrip(f.ctx, CreateTripInput{OrderID: drifting.ID, TruckID: truck.ID, PalletIDs: []string{"P1"}})
	require.NoError(t, err)
	stale := f.reloadOrder(t, drifting.ID)
	stale.Status = model.OrderDraft
	stale.RemainingCargo = 1000
	require.NoError(t, f.store.Orders().Update(f.ctx, stale))

	r := NewReconciler(f.svc, 0)
	repaired, err := r.RunOnce(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, repaired)
	assert.Equal(t, model.OrderNew, f.reloadOrder(t, drifting.ID).Status)

	repaired, err = r.RunOnce(f.ctx)
	require.NoError(t, err)
	assert.Zero(t, repaired)
}

// TestReconciler_Start tests schedule validation.
func TestReconciler_Start(t *testing.T) {
	f := newAllocationFixture(t)

	r := NewReconciler(f.svc, 0)
	assert.Error(t, r.Start("not a schedule"))

	r = NewReconciler(f.svc, 0)
	require.NoError(t, r.Start("@every 1h"))
	r.Stop()
}
