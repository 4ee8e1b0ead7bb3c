//go:build !integration

package service

import (
	"errors"
	"testing"
	"time"

	"github.com/guttosm/trip-planner/internal/apperror"
	"github.com/guttosm/trip-planner/internal/domain/model"
	"github.com/guttosm/trip-planner/internal/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newPlanningService(f *allocationFixture, opts ...PlanningOption) *PlanningService {
	est := NewEstimator(WithProfiles(NewRepositoryProfiles(f.store.Addresses(), 250, 4)))
	return NewPlanningService(f.svc, f.trucks, NewOptimizer(est, DefaultOptimizerConfig()), est, opts...)
}

// TestFallbackTripAnalysis tests confidence follows utilization.
func TestFallbackTripAnalysis(t *testing.T) {
	tests := []struct {
		utilization float64
		want        int
	}{
		{90, 75},
		{70, 60},
		{51, 60},
		{50, 45},
		{0, 45},
	}
	for _, tt := range tests {
		got := FallbackTripAnalysis(model.TripDraft{Truck: model.Truck{PlateNumber: "XX-1"}, Utilization: tt.utilization})
		assert.Equal(t, tt.want, got.Confidence, "utilization %v", tt.utilization)
		assert.Equal(t, "Truck XX-1 assigned based on capacity match and availability", got.Reasoning)
		assert.Len(t, got.Risks, 3)
		assert.Len(t, got.Alternatives, 3)
	}
}

// TestFallbackPlanAnalysis tests the plan narrative and risk level.
func TestFallbackPlanAnalysis(t *testing.T) {
	high := FallbackPlanAnalysis([]model.SmartTrip{
		{TripDraft: model.TripDraft{Utilization: 80}},
		{TripDraft: model.TripDraft{Utilization: 75}},
	})
	assert.Equal(t, "Automated bin-packing optimization generated 2 trips with 77.5% average efficiency", high.OverallStrategy)
	assert.Equal(t, "Low risk - well-optimized plan", high.RiskAssessment)
	assert.Len(t, high.PotentialImprovements, 3)

	low := FallbackPlanAnalysis([]model.SmartTrip{{TripDraft: model.TripDraft{Utilization: 70}}})
	assert.Equal(t, "Moderate risk - review recommended", low.RiskAssessment)
}

// TestPlanningService_Optimize tests planning of loose pallets and orders.
func TestPlanningService_Optimize(t *testing.T) {
	t.Run("loose pallets", func(t *testing.T) {
		f := newAllocationFixture(t)
		f.addTruck(t, 10000)
		f.addTruck(t, 10000)
		svc := newPlanningService(f)

		result, err := svc.Optimize(f.ctx, OptimizeRequest{
			Pallets: []model.Pallet{
				pallet("P1", 6000, 100),
				pallet("P2", 3000, 100),
				pallet("P3", 2000, 100),
			},
			DestinationAddressID: f.address.ID,
		})
		require.NoError(t, err)

		require.Len(t, result.Trips, 2)
		assert.Equal(t, []string{"P1", "P2"}, result.Trips[0].PalletIDs())
		assert.Equal(t, []string{"P3"}, result.Trips[1].PalletIDs())
		assert.Equal(t, 75, result.Trips[0].Analysis.Confidence)
		assert.Equal(t, 45, result.Trips[1].Analysis.Confidence)
		assert.Equal(t, 90.0, result.Trips[0].Efficiency.WeightUtilization)
		assert.Equal(t, "Utrecht", result.Trips[0].Route.EndPoint)

		assert.Equal(t, 3, result.TotalPallets)
		assert.Equal(t, 11000.0, result.TotalWeight)
		assert.Equal(t, 55.0, result.Efficiency)
		assert.Equal(t, 2, result.Summary.TotalTrips)
		assert.Equal(t, 55.0, result.Summary.AverageEfficiency)
		assert.Equal(t, result.Trips[0].EstimatedFuel+result.Trips[1].EstimatedFuel, result.Summary.TotalEstimatedFuel)
		require.NotNil(t, result.Analysis)
		assert.Equal(t, "Moderate risk - review recommended", result.Analysis.RiskAssessment)
		assert.Nil(t, result.HistoricalContext)
		assert.Empty(t, result.CommittedTrips)
	})

	t.Run("commit requires an order", func(t *testing.T) {
		f := newAllocationFixture(t)
		_, err := newPlanningService(f).Optimize(f.ctx, OptimizeRequest{
			Pallets: []model.Pallet{pallet("P1", 100, 100)},
			Commit:  true,
		})
		assert.True(t, apperror.IsValidation(err))
	})

	t.Run("invalid loose pallets", func(t *testing.T) {
		f := newAllocationFixture(t)
		svc := newPlanningService(f)

		_, err := svc.Optimize(f.ctx, OptimizeRequest{})
		assert.True(t, apperror.IsValidation(err))

		_, err = svc.Optimize(f.ctx, OptimizeRequest{Pallets: []model.Pallet{pallet("P1", 60000, 100)}})
		assert.True(t, apperror.IsValidation(err))
	})

	t.Run("no trucks is infeasible", func(t *testing.T) {
		f := newAllocationFixture(t)
		_, err := newPlanningService(f).Optimize(f.ctx, OptimizeRequest{
			Pallets: []model.Pallet{pallet("P1", 100, 100)},
		})
		assert.True(t, apperror.IsInfeasible(err))
	})

	t.Run("commits the order's unassigned pallets", func(t *testing.T) {
		f := newAllocationFixture(t)
		first := f.addTruck(t, 10000)
		f.addTruck(t, 10000)
		order := f.addOrder(t, pallet("P1", 4000, 100), pallet("P2", 4000, 100), pallet("P3", 500, 100))
		_, err := f.svc.CreateTrip(f.ctx, CreateTripInput{OrderID: order.ID, TruckID: first.ID, PalletIDs: []string{"P3"}})
		require.NoError(t, err)

		start := time.Date(2026, 3, 10, 6, 0, 0, 0, time.UTC)
		result, err := newPlanningService(f).Optimize(f.ctx, OptimizeRequest{
			OrderID:   order.ID,
			Commit:    true,
			StartDate: start,
		})
		require.NoError(t, err)

		assert.Equal(t, order.ID, result.OrderID)
		assert.Equal(t, 2, result.TotalPallets)
		require.Len(t, result.CommittedTrips, 1)
		committed := result.CommittedTrips[0]
		assert.ElementsMatch(t, []string{"P1", "P2"}, committed.PalletIDs)
		assert.NotEqual(t, first.ID, committed.TruckID)
		assert.True(t, committed.StartDate.Equal(start))

		assert.Equal(t, 0.0, f.reloadOrder(t, order.ID).RemainingCargo)
	})

	t.Run("closed order", func(t *testing.T) {
		f := newAllocationFixture(t)
		f.addTruck(t, 10000)
		order := f.addOrder(t, pallet("P1", 100, 100))
		_, err := f.svc.CancelOrder(f.ctx, order.ID)
		require.NoError(t, err)

		_, err = newPlanningService(f).Optimize(f.ctx, OptimizeRequest{OrderID: order.ID})
		assert.True(t, apperror.IsConflict(err, apperror.ReasonOrderClosed))
	})
}

// TestPlanningService_Enrichment tests analyst and history failures degrade
// to the built-in texts.
func TestPlanningService_Enrichment(t *testing.T) {
	f := newAllocationFixture(t)
	f.addTruck(t, 10000)
	req := OptimizeRequest{
		Pallets:                  []model.Pallet{pallet("P1", 8000, 100)},
		DestinationAddressID:     f.address.ID,
		IncludeHistoricalContext: true,
	}

	t.Run("analyst output is used and clamped", func(t *testing.T) {
		analyst := &mocks.MockTripAnalyst{}
		analyst.On("AnalyzeTrip", mock.Anything, mock.Anything, mock.Anything).
			Return(model.TripAnalysis{Reasoning: "heavy single pallet", Confidence: 140}, nil)
		analyst.On("AnalyzePlan", mock.Anything, mock.Anything, mock.Anything).
			Return(model.PlanAnalysis{OverallStrategy: "one run", RiskAssessment: "low"}, nil)
		history := &mocks.MockHistoryProvider{}
		history.On("Context", mock.Anything, req.Pallets).
			Return(&model.HistoricalContext{SimilarOrdersCount: 4, AverageTripsNeeded: 1}, nil)

		result, err := newPlanningService(f, WithTripAnalyst(analyst), WithHistory(history)).Optimize(f.ctx, req)
		require.NoError(t, err)

		require.Len(t, result.Trips, 1)
		assert.Equal(t, "heavy single pallet", result.Trips[0].Analysis.Reasoning)
		assert.Equal(t, 100, result.Trips[0].Analysis.Confidence)
		assert.Equal(t, "one run", result.Analysis.OverallStrategy)
		require.NotNil(t, result.HistoricalContext)
		assert.Equal(t, 4, result.HistoricalContext.SimilarOrdersCount)
		analyst.AssertExpectations(t)
		history.AssertExpectations(t)
	})

	t.Run("failures fall back", func(t *testing.T) {
		analyst := &mocks.MockTripAnalyst{}
		analyst.On("AnalyzeTrip", mock.Anything, mock.Anything, mock.Anything).
			Return(model.TripAnalysis{}, errors.New("advisor unavailable"))
		analyst.On("AnalyzePlan", mock.Anything, mock.Anything, mock.Anything).
			Return(model.PlanAnalysis{}, errors.New("advisor unavailable"))
		history := &mocks.MockHistoryProvider{}
		history.On("Context", mock.Anything, mock.Anything).Return(nil, errors.New("mongo down"))

		svc := newPlanningService(f,
			WithTripAnalyst(analyst),
			WithHistory(history),
			WithPlanningConfig(PlanningConfig{HistoryTimeout: time.Second, AnalysisTimeout: time.Second}),
		)
		result, err := svc.Optimize(f.ctx, req)
		require.NoError(t, err)

		assert.Equal(t, 75, result.Trips[0].Analysis.Confidence)
		assert.Contains(t, result.Analysis.OverallStrategy, "generated 1 trips with 80.0% average efficiency")
		require.NotNil(t, result.HistoricalContext)
		assert.Equal(t, 0, result.HistoricalContext.SimilarOrdersCount)
		assert.Equal(t, "No historical data available", result.HistoricalContext.CommonIssues[0])
	})
}

// TestPlanningService_ValidatePallets tests the non-failing pallet report.
func TestPlanningService_ValidatePallets(t *testing.T) {
	tests := []struct {
		name     string
		trucks   int
		pallets  []model.Pallet
		validate func(t *testing.T, got *model.PalletValidation)
	}{
		{
			name: "empty set",
			validate: func(t *testing.T, got *model.PalletValidation) {
				assert.False(t, got.Valid)
				assert.Equal(t, []string{"At least one pallet is required"}, got.Errors)
				assert.Equal(t, 0, got.EstimatedTrips)
			},
		},
		{
			name: "every problem is reported",
			pallets: []model.Pallet{
				pallet("", 100, 100),
				pallet("A", 60000, 100),
				pallet("A", 10, 400),
				pallet("B", -1, 0),
				pallet("C", 6000, 100),
			},
			validate: func(t *testing.T, got *model.PalletValidation) {
				assert.False(t, got.Valid)
				assert.Equal(t, []string{
					"Pallet 1: ID is required",
					"Pallet 2: Weight exceeds 50,000kg limit",
					"Pallet 3: Duplicate ID 'A'",
					"Pallet 4: Weight must be a positive number",
					"Pallet 4: Height must be a positive number",
				}, got.Errors)
				assert.Equal(t, []string{
					"Pallet 3: Very light weight (10kg)",
					"Pallet 3: Very tall pallet (400cm)",
					"Pallet 5: Very heavy weight (6000kg)",
				}, got.Warnings)
				assert.Equal(t, 66110.0, got.TotalWeight)
				assert.Equal(t, 5, got.TotalPallets)
				assert.Equal(t, 4, got.EstimatedTrips)
			},
		},
		{
			name:   "large order uses the fleet's mean payload",
			trucks: 2,
			pallets: func() []model.Pallet {
				out := make([]model.Pallet, 11)
				for i := range out {
					out[i] = pallet(string(rune('a'+i)), 4000, 100)
				}
				return out
			}(),
			validate: func(t *testing.T, got *model.PalletValidation) {
				assert.True(t, got.Valid)
				assert.Empty(t, got.Errors)
				assert.Equal(t, 44000.0, got.TotalWeight)
				assert.Equal(t, 11, got.EstimatedTrips)
				assert.Equal(t, []string{"Large order may require 11 trips - consider splitting"}, got.Warnings)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newAllocationFixture(t)
			for i := 0; i < tt.trucks; i++ {
				f.addTruck(t, 4000)
			}
			got, err := newPlanningService(f).ValidatePallets(f.ctx, tt.pallets)
			require.NoError(t, err)
			tt.validate(t, got)
		})
	}
}

// TestPlanningService_TruckSource tests preferred trucks are forwarded and
// lookup failures abort planning.
func TestPlanningService_TruckSource(t *testing.T) {
	f := newAllocationFixture(t)
	est := NewEstimator()
	req := OptimizeRequest{
		Pallets:              []model.Pallet{pallet("P1", 1000, 100)},
		DestinationAddressID: f.address.ID,
		PreferredTruckIDs:    []string{"truck-a"},
	}

	t.Run("preferred trucks", func(t *testing.T) {
		trucks := &mocks.MockTruckSource{}
		trucks.On("AvailableTrucks", mock.Anything, []string{"truck-a"}).
			Return([]model.Truck{{ID: "truck-a", PlateNumber: "TA-1", MaxWeight: 5000, MaxPallets: 10, Height: 2.5, IsActive: true}}, nil).Once()

		result, err := NewPlanningService(f.svc, trucks, NewOptimizer(est, DefaultOptimizerConfig()), est).Optimize(f.ctx, req)
		require.NoError(t, err)
		require.Len(t, result.Trips, 1)
		assert.Equal(t, "truck-a", result.Trips[0].Truck.ID)
		trucks.AssertExpectations(t)
	})

	t.Run("lookup failure", func(t *testing.T) {
		trucks := &mocks.MockTruckSource{}
		trucks.On("AvailableTrucks", mock.Anything, []string{"truck-a"}).Return(nil, errors.New("registry down")).Once()

		_, err := NewPlanningService(f.svc, trucks, NewOptimizer(est, DefaultOptimizerConfig()), est).Optimize(f.ctx, req)
		require.ErrorContains(t, err, "registry down")
		assert.False(t, apperror.IsValidation(err))
		trucks.AssertExpectations(t)
	})
}
