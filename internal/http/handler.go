package http

import (
	"context"

	"github.com/guttosm/trip-planner/internal/domain/model"
	"github.com/guttosm/trip-planner/internal/repository"
	"github.com/guttosm/trip-planner/internal/service"
)

const defaultPageSize = 50

// OrderService is the order side of the allocation state machine.
type OrderService interface {
	CreateOrder(ctx context.Context, in service.CreateOrderInput) (*model.Order, error)
	GetOrder(ctx context.Context, id string) (*model.Order, error)
	ListOrders(ctx context.Context, filter repository.OrderFilter) ([]model.Order, int64, error)
	UpdateOrder(ctx context.Context, id string, in service.UpdateOrderInput) (*model.Order, error)
	CancelOrder(ctx context.Context, id string) (*model.Order, error)
	DeleteOrder(ctx context.Context, id string) error
	UnassignedPallets(ctx context.Context, orderID string) ([]model.Pallet, error)
	OrderEvents(ctx context.Context, orderID string, limit int) ([]model.AllocationEvent, error)
}

// TripService is the trip side of the allocation state machine.
type TripService interface {
	CreateTrip(ctx context.Context, in service.CreateTripInput) (*model.Trip, error)
	GetTrip(ctx context.Context, id string) (*model.Trip, error)
	ListTrips(ctx context.Context, filter repository.TripFilter) ([]model.Trip, error)
	UpdateTrip(ctx context.Context, id string, in service.UpdateTripInput) (*model.Trip, error)
	StartTrip(ctx context.Context, id string) (*model.Trip, error)
	FinishTrip(ctx context.Context, id string, in service.FinishTripInput) (*model.Trip, error)
	CancelTrip(ctx context.Context, id string) (*model.Trip, error)
	DeleteTrip(ctx context.Context, id string) error
}

// TruckService manages the fleet.
type TruckService interface {
	CreateTruck(ctx context.Context, in service.TruckInput) (*model.Truck, error)
	GetTruck(ctx context.Context, id string) (*model.Truck, error)
	ListTrucks(ctx context.Context, filter repository.TruckFilter) ([]model.Truck, int64, error)
	UpdateTruck(ctx context.Context, id string, in service.TruckInput) (*model.Truck, error)
	DeleteTruck(ctx context.Context, id string) error
	AvailableTrucks(ctx context.Context, ids []string) ([]model.Truck, error)
}

// AddressService manages delivery addresses.
type AddressService interface {
	CreateAddress(ctx context.Context, in service.AddressInput) (*model.Address, error)
	GetAddress(ctx context.Context, id string) (*model.Address, error)
	ListAddresses(ctx context.Context, limit, skip int) ([]model.Address, error)
	UpdateAddress(ctx context.Context, id string, in service.AddressInput) (*model.Address, error)
	DeleteAddress(ctx context.Context, id string) error
}

// PlanningService runs smart optimization.
type PlanningService interface {
	Optimize(ctx context.Context, req service.OptimizeRequest) (*model.OptimizationResult, error)
	ValidatePallets(ctx context.Context, pallets []model.Pallet) (*model.PalletValidation, error)
}

// TrendsService reports delivery performance over a window of days.
type TrendsService interface {
	PerformanceTrends(ctx context.Context, days int) (*model.PerformanceTrends, error)
}

// EstimateService computes trip estimates.
type EstimateService interface {
	Estimate(ctx context.Context, truck model.Truck, destinationID string, weight float64, palletCount int) model.Estimate
	Distance(ctx context.Context, destinationID string) (model.DistanceProfile, bool)
	DefaultConsumption() float64
}
