package repository

import (
	"context"
	"errors"

	"github.com/guttosm/trip-planner/internal/apperror"
	"github.com/guttosm/trip-planner/internal/circuitbreaker"
	"github.com/guttosm/trip-planner/internal/domain/model"
)

// IsBusinessError reports whether err is a domain outcome rather than a
// storage failure. Breakers guarding repositories use it as their
// IsSuccessful classifier.
func IsBusinessError(err error) bool {
	return apperror.IsNotFound(err) ||
		apperror.IsConflict(err) ||
		apperror.IsValidation(err)
}

// TruckRepositoryWithCircuitBreaker wraps a TruckRepository with circuit breaker protection.
type TruckRepositoryWithCircuitBreaker struct {
	repo           TruckRepository
	circuitBreaker *circuitbreaker.CircuitBreaker
}

// NewTruckRepositoryWithCircuitBreaker creates a new repository wrapper with circuit breaker.
func NewTruckRepositoryWithCircuitBreaker(repo TruckRepository, cb *circuitbreaker.CircuitBreaker) *TruckRepositoryWithCircuitBreaker {
	return &TruckRepositoryWithCircuitBreaker{
		repo:           repo,
		circuitBreaker: cb,
	}
}

func (r *TruckRepositoryWithCircuitBreaker) Create(ctx context.Context, truck *model.Truck) error {
	return r.circuitBreaker.Execute(ctx, func() error {
		return r.repo.Create(ctx, truck)
	})
}

// Get returns the truck with circuit breaker protection.
func (r *TruckRepositoryWithCircuitBreaker) Get(ctx context.Context, id string) (*model.Truck, error) {
	var result *model.Truck
	err := r.circuitBreaker.Execute(ctx, func() error {
		var cbErr error
		result, cbErr = r.repo.Get(ctx, id)
		return cbErr
	})
	return result, err
}

func (r *TruckRepositoryWithCircuitBreaker) Update(ctx context.Context, truck *model.Truck) error {
	return r.circuitBreaker.Execute(ctx, func() error {
		return r.repo.Update(ctx, truck)
	})
}

func (r *TruckRepositoryWithCircuitBreaker) Delete(ctx context.Context, id string) error {
	return r.circuitBreaker.Execute(ctx, func() error {
		return r.repo.Delete(ctx, id)
	})
}

// List returns trucks with circuit breaker protection.
func (r *TruckRepositoryWithCircuitBreaker) List(ctx context.Context, filter TruckFilter) ([]model.Truck, error) {
	var result []model.Truck
	err := r.circuitBreaker.Execute(ctx, func() error {
		var cbErr error
		result, cbErr = r.repo.List(ctx, filter)
		return cbErr
	})
	return result, err
}

func (r *TruckRepositoryWithCircuitBreaker) Count(ctx context.Context, filter TruckFilter) (int64, error) {
	var result int64
	err := r.circuitBreaker.Execute(ctx, func() error {
		var cbErr error
		result, cbErr = r.repo.Count(ctx, filter)
		return cbErr
	})
	return result, err
}

func (r *TruckRepositoryWithCircuitBreaker) FindByPlateOrVIN(ctx context.Context, plate, vin string) (*model.Truck, error) {
	var result *model.Truck
	err := r.circuitBreaker.Execute(ctx, func() error {
		var cbErr error
		result, cbErr = r.repo.FindByPlateOrVIN(ctx, plate, vin)
		return cbErr
	})
	return result, err
}

func (r *TruckRepositoryWithCircuitBreaker) Touch(ctx context.Context, id string) error {
	return r.circuitBreaker.Execute(ctx, func() error {
		return r.repo.Touch(ctx, id)
	})
}

// GetCircuitBreaker returns the underlying circuit breaker for monitoring.
func (r *TruckRepositoryWithCircuitBreaker) GetCircuitBreaker() *circuitbreaker.CircuitBreaker {
	return r.circuitBreaker
}

// AddressRepositoryWithCircuitBreaker wraps an AddressRepository with circuit breaker protection.
type AddressRepositoryWithCircuitBreaker struct {
	repo           AddressRepository
	circuitBreaker *circuitbreaker.CircuitBreaker
}

// NewAddressRepositoryWithCircuitBreaker creates a new repository wrapper with circuit breaker.
func NewAddressRepositoryWithCircuitBreaker(repo AddressRepository, cb *circuitbreaker.CircuitBreaker) *AddressRepositoryWithCircuitBreaker {
	return &AddressRepositoryWithCircuitBreaker{
		repo:           repo,
		circuitBreaker: cb,
	}
}

func (r *AddressRepositoryWithCircuitBreaker) Create(ctx context.Context, address *model.Address) error {
	return r.circuitBreaker.Execute(ctx, func() error {
		return r.repo.Create(ctx, address)
	})
}

// Get returns the address with circuit breaker protection. The estimator
// treats ErrCircuitOpen as a reason to fall back.
func (r *AddressRepositoryWithCircuitBreaker) Get(ctx context.Context, id string) (*model.Address, error) {
	var result *model.Address
	err := r.circuitBreaker.Execute(ctx, func() error {
		var cbErr error
		result, cbErr = r.repo.Get(ctx, id)
		return cbErr
	})
	return result, err
}

func (r *AddressRepositoryWithCircuitBreaker) Update(ctx context.Context, address *model.Address) error {
	return r.circuitBreaker.Execute(ctx, func() error {
		return r.repo.Update(ctx, address)
	})
}

func (r *AddressRepositoryWithCircuitBreaker) Delete(ctx context.Context, id string) error {
	return r.circuitBreaker.Execute(ctx, func() error {
		return r.repo.Delete(ctx, id)
	})
}

func (r *AddressRepositoryWithCircuitBreaker) List(ctx context.Context, limit, skip int) ([]model.Address, error) {
	var result []model.Address
	err := r.circuitBreaker.Execute(ctx, func() error {
		var cbErr error
		result, cbErr = r.repo.List(ctx, limit, skip)
		return cbErr
	})
	return result, err
}

// GetCircuitBreaker returns the underlying circuit breaker for monitoring.
func (r *AddressRepositoryWithCircuitBreaker) GetCircuitBreaker() *circuitbreaker.CircuitBreaker {
	return r.circuitBreaker
}

// EventRepositoryWithCircuitBreaker wraps an EventRepository with circuit breaker protection.
type EventRepositoryWithCircuitBreaker struct {
	repo           EventRepository
	circuitBreaker *circuitbreaker.CircuitBreaker
}

// NewEventRepositoryWithCircuitBreaker creates a new repository wrapper with circuit breaker.
func NewEventRepositoryWithCircuitBreaker(repo EventRepository, cb *circuitbreaker.CircuitBreaker) *EventRepositoryWithCircuitBreaker {
	return &EventRepositoryWithCircuitBreaker{
		repo:           repo,
		circuitBreaker: cb,
	}
}

// CreateMany stores events with circuit breaker protection.
// If circuit is open, the batch is dropped (the event history is non-critical).
func (r *EventRepositoryWithCircuitBreaker) CreateMany(ctx context.Context, events []model.AllocationEvent) error {
	err := r.circuitBreaker.Execute(ctx, func() error {
		return r.repo.CreateMany(ctx, events)
	})
	if errors.Is(err, circuitbreaker.ErrCircuitOpen) {
		return nil
	}
	return err
}

func (r *EventRepositoryWithCircuitBreaker) ListByOrder(ctx context.Context, orderID string, limit int) ([]model.AllocationEvent, error) {
	var result []model.AllocationEvent
	err := r.circuitBreaker.Execute(ctx, func() error {
		var cbErr error
		result, cbErr = r.repo.ListByOrder(ctx, orderID, limit)
		return cbErr
	})
	return result, err
}

// GetCircuitBreaker returns the underlying circuit breaker for monitoring.
func (r *EventRepositoryWithCircuitBreaker) GetCircuitBreaker() *circuitbreaker.CircuitBreaker {
	return r.circuitBreaker
}
