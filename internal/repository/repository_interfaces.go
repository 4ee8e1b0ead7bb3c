// Package repository provides interfaces for repository operations.
package repository

import (
	"context"
	"time"

	"github.com/guttosm/trip-planner/internal/domain/model"
)

// OrderFilter restricts an order listing. Zero values match everything.
type OrderFilter struct {
	Status               model.OrderStatus
	ExcludeStatuses      []model.OrderStatus
	DestinationAddressID string
	Limit                int
	Skip                 int
}

// SimilarOrderQuery selects past orders comparable to a new one.
type SimilarOrderQuery struct {
	MinWeight  float64
	MaxWeight  float64
	MinPallets int
	MaxPallets int
	Status     model.OrderStatus
	Since      time.Time
	Limit      int
}

// TripFilter restricts a trip listing. Zero values match everything.
type TripFilter struct {
	OrderID  string
	OrderIDs []string
	TruckID  string
	Statuses []model.TripStatus
	Limit    int
}

// TruckFilter restricts a truck listing.
type TruckFilter struct {
	ActiveOnly bool
	IDs        []string
	Limit      int
	Skip       int
}

// OrderRepository persists orders. Get, Update and Delete return an
// apperror.NotFoundError for unknown ids.
type OrderRepository interface {
	Create(ctx context.Context, order *model.Order) error
	Get(ctx context.Context, id string) (*model.Order, error)
	Update(ctx context.Context, order *model.Order) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, filter OrderFilter) ([]model.Order, error)
	Count(ctx context.Context, filter OrderFilter) (int64, error)
	FindSimilar(ctx context.Context, query SimilarOrderQuery) ([]model.Order, error)
}

// TripRepository persists trips. Trips are listed oldest first.
type TripRepository interface {
	Create(ctx context.Context, trip *model.Trip) error
	Get(ctx context.Context, id string) (*model.Trip, error)
	Update(ctx context.Context, trip *model.Trip) error
	Delete(ctx context.Context, id string) error
	DeleteByOrder(ctx context.Context, orderID string) (int64, error)
	List(ctx context.Context, filter TripFilter) ([]model.Trip, error)
}

// TruckRepository persists trucks. FindByPlateOrVIN returns nil, nil when no
// truck matches.
type TruckRepository interface {
	Create(ctx context.Context, truck *model.Truck) error
	Get(ctx context.Context, id string) (*model.Truck, error)
	Update(ctx context.Context, truck *model.Truck) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, filter TruckFilter) ([]model.Truck, error)
	Count(ctx context.Context, filter TruckFilter) (int64, error)
	FindByPlateOrVIN(ctx context.Context, plate, vin string) (*model.Truck, error)
	// Touch bumps the truck's booking version. Inside a transaction it makes
	// two concurrent bookings of the same truck conflict on write.
	Touch(ctx context.Context, id string) error
}

// AddressRepository persists delivery addresses.
type AddressRepository interface {
	Create(ctx context.Context, address *model.Address) error
	Get(ctx context.Context, id string) (*model.Address, error)
	Update(ctx context.Context, address *model.Address) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, limit, skip int) ([]model.Address, error)
}

// EventRepository persists allocation events.
type EventRepository interface {
	CreateMany(ctx context.Context, events []model.AllocationEvent) error
	ListByOrder(ctx context.Context, orderID string, limit int) ([]model.AllocationEvent, error)
}

// CounterRepository hands out monotonically increasing sequence numbers.
type CounterRepository interface {
	Next(ctx context.Context, name string) (int64, error)
}

// Store groups the repositories sharing one transactional boundary.
type Store interface {
	Orders() OrderRepository
	Trips() TripRepository
	Trucks() TruckRepository
	Addresses() AddressRepository
	Events() EventRepository
	Counters() CounterRepository
	// WithinTransaction runs fn so that all of its writes apply together or
	// not at all. A call made with a ctx already inside a transaction joins it.
	WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
