// Package mocks holds testify mocks of the planning collaborators.
package mocks

import (
	"context"

	"github.com/guttosm/trip-planner/internal/domain/model"
	"github.com/stretchr/testify/mock"
)

type MockTripAnalyst struct {
	mock.Mock
}

func (m *MockTripAnalyst) AnalyzeTrip(ctx context.Context, trip model.TripDraft, history *model.HistoricalContext) (model.TripAnalysis, error) {
	args := m.Called(ctx, trip, history)
	return args.Get(0).(model.TripAnalysis), args.Error(1)
}

func (m *MockTripAnalyst) AnalyzePlan(ctx context.Context, trips []model.SmartTrip, history *model.HistoricalContext) (model.PlanAnalysis, error) {
	args := m.Called(ctx, trips, history)
	return args.Get(0).(model.PlanAnalysis), args.Error(1)
}

type MockHistoryProvider struct {
	mock.Mock
}

func (m *MockHistoryProvider) Context(ctx context.Context, pallets []model.Pallet) (*model.HistoricalContext, error) {
	args := m.Called(ctx, pallets)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.HistoricalContext), args.Error(1)
}

type MockTruckSource struct {
	mock.Mock
}

func (m *MockTruckSource) AvailableTrucks(ctx context.Context, ids []string) ([]model.Truck, error) {
	args := m.Called(ctx, ids)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Truck), args.Error(1)
}
