package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/guttosm/trip-planner/internal/apperror"
	"github.com/guttosm/trip-planner/internal/domain/model"
	"github.com/guttosm/trip-planner/internal/logger"
	"github.com/guttosm/trip-planner/internal/repository"
)

// ProfileInvalidator drops cached estimator profiles after registry edits.
type ProfileInvalidator interface {
	InvalidateAddress(addressID string)
	InvalidateTrucks()
}

type noopInvalidator struct{}

func (noopInvalidator) InvalidateAddress(string) {}
func (noopInvalidator) InvalidateTrucks()        {}

// TruckInput describes a truck to register or replace.
type TruckInput struct {
	PlateNumber             string
	VINCode                 string
	RegistrationCertificate string
	DriverName              string
	Width                   float64
	Height                  float64
	Length                  float64
	MaxWeight               float64
	Model                   string
	ManufacturingYear       int
	FuelConsumption         float64
	Notes                   string
	IsActive                *bool
}

// TruckService manages the truck registry.
type TruckService struct {
	store       repository.Store
	locks       *KeyedLocker
	profiles    ProfileInvalidator
	lockTimeout time.Duration
	now         func() time.Time
}

// NewTruckService creates a TruckService. locks should be the locker shared
// with the AllocationService so that deletes and bookings serialize.
func NewTruckService(store repository.Store, locks *KeyedLocker, profiles ProfileInvalidator) *TruckService {
	if locks == nil {
		locks = NewKeyedLocker()
	}
	if profiles == nil {
		profiles = noopInvalidator{}
	}
	return &TruckService{
		store:       store,
		locks:       locks,
		profiles:    profiles,
		lockTimeout: 5 * time.Second,
		now:         time.Now,
	}
}

func validateTruckInput(in TruckInput) error {
	if strings.TrimSpace(in.PlateNumber) == "" {
		return apperror.NewValidation("plate_number", "is required")
	}
	if strings.TrimSpace(in.VINCode) == "" {
		return apperror.NewValidation("vin_code", "is required")
	}
	dims := []struct {
		field string
		value float64
	}{
		{"width", in.Width},
		{"height", in.Height},
		{"length", in.Length},
		{"max_weight", in.MaxWeight},
	}
	for _, d := range dims {
		if !(d.value > 0) {
			return apperror.NewValidation(d.field, "must be positive, got %v", d.value)
		}
	}
	if in.FuelConsumption < 0 {
		return apperror.NewValidation("fuel_consumption", "must not be negative")
	}
	if model.CalculateMaxPallets(in.Width, in.Length) < 1 {
		return apperror.NewValidation("width", "cargo floor %.2fm x %.2fm holds no euro pallet", in.Width, in.Length)
	}
	return nil
}

func (s *TruckService) ensureUnique(ctx context.Context, in TruckInput, selfID string) error {
	existing, err := s.store.Trucks().FindByPlateOrVIN(ctx, in.PlateNumber, in.VINCode)
	if err != nil {
		return err
	}
	if existing == nil || existing.ID == selfID {
		return nil
	}
	id := in.PlateNumber
	if existing.PlateNumber != in.PlateNumber {
		id = in.VINCode
	}
	return &apperror.ConflictError{
		Reason:  apperror.ReasonDuplicateID,
		Entity:  "truck",
		ID:      id,
		TruckID: existing.ID,
	}
}

func applyTruckInput(t *model.Truck, in TruckInput) {
	t.PlateNumber = strings.TrimSpace(in.PlateNumber)
	t.VINCode = strings.TrimSpace(in.VINCode)
	t.RegistrationCertificate = in.RegistrationCertificate
	t.DriverName = in.DriverName
	t.Width = in.Width
	t.Height = in.Height
	t.Length = in.Length
	t.MaxWeight = in.MaxWeight
	t.MaxPallets = model.CalculateMaxPallets(in.Width, in.Length)
	t.Model = in.Model
	t.ManufacturingYear = in.ManufacturingYear
	t.FuelConsumption = in.FuelConsumption
	t.Notes = in.Notes
	if in.IsActive != nil {
		t.IsActive = *in.IsActive
	}
}

// CreateTruck registers a truck. MaxPallets is derived from the cargo floor
// and new trucks are active unless stated otherwise.
func (s *TruckService) CreateTruck(ctx context.Context, in TruckInput) (*model.Truck, error) {
	if err := validateTruckInput(in); err != nil {
		return nil, err
	}
	if err := s.ensureUnique(ctx, in, ""); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	truck := &model.Truck{IsActive: true, CreatedAt: now, UpdatedAt: now}
	applyTruckInput(truck, in)
	if err := s.store.Trucks().Create(ctx, truck); err != nil {
		return nil, err
	}
	s.profiles.InvalidateTrucks()

	log := logger.FromContext(ctx, "trucks")
	log.Info().
		Str("truck_id", truck.ID).
		Str("plate_number", truck.PlateNumber).
		Int("max_pallets", truck.MaxPallets).
		Msg("Truck registered")
	return truck, nil
}

// GetTruck returns one truck.
func (s *TruckService) GetTruck(ctx context.Context, id string) (*model.Truck, error) {
	return s.store.Trucks().Get(ctx, id)
}

// ListTrucks returns one page of trucks and the total number matching filter.
func (s *TruckService) ListTrucks(ctx context.Context, filter repository.TruckFilter) ([]model.Truck, int64, error) {
	trucks, err := s.store.Trucks().List(ctx, filter)
	if err != nil {
		return nil, 0, err
	}
	count, err := s.store.Trucks().Count(ctx, filter)
	if err != nil {
		return nil, 0, err
	}
	return trucks, count, nil
}

// UpdateTruck replaces a truck's attributes, re-deriving MaxPallets.
func (s *TruckService) UpdateTruck(ctx context.Context, id string, in TruckInput) (*model.Truck, error) {
	if err := validateTruckInput(in); err != nil {
		return nil, err
	}

	var updated *model.Truck
	err := s.withTruckLock(ctx, id, func(ctx context.Context) error {
		truck, err := s.store.Trucks().Get(ctx, id)
		if err != nil {
			return err
		}
		if err := s.ensureUnique(ctx, in, truck.ID); err != nil {
			return err
		}
		applyTruckInput(truck, in)
		truck.UpdatedAt = s.now().UTC()
		if err := s.store.Trucks().Update(ctx, truck); err != nil {
			return err
		}
		updated = truck
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.profiles.InvalidateTrucks()
	return updated, nil
}

// DeleteTruck removes a truck that no PLANNED or IN_PROGRESS trip books.
func (s *TruckService) DeleteTruck(ctx context.Context, id string) error {
	err := s.withTruckLock(ctx, id, func(ctx context.Context) error {
		return s.store.WithinTransaction(ctx, func(ctx context.Context) error {
			truck, err := s.store.Trucks().Get(ctx, id)
			if err != nil {
				return err
			}
			busy, err := findBusyTrip(ctx, s.store.Trips(), truck.ID, "")
			if err != nil {
				return err
			}
			if busy != nil {
				return &apperror.ConflictError{Reason: apperror.ReasonTruckBusy, TruckID: truck.ID, TripID: busy.ID}
			}
			return s.store.Trucks().Delete(ctx, truck.ID)
		})
	})
	if err != nil {
		return err
	}
	s.profiles.InvalidateTrucks()
	return nil
}

// AvailableTrucks returns active trucks that no PLANNED or IN_PROGRESS trip
// books. When ids is not empty only those trucks are considered.
func (s *TruckService) AvailableTrucks(ctx context.Context, ids []string) ([]model.Truck, error) {
	trucks, err := s.store.Trucks().List(ctx, repository.TruckFilter{ActiveOnly: true, IDs: ids})
	if err != nil {
		return nil, err
	}
	active, err := s.store.Trips().List(ctx, repository.TripFilter{
		Statuses: []model.TripStatus{model.TripPlanned, model.TripInProgress},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list active trips: %w", err)
	}
	busy := make(map[string]struct{}, len(active))
	for _, t := range active {
		busy[t.TruckID] = struct{}{}
	}

	out := make([]model.Truck, 0, len(trucks))
	for _, t := range trucks {
		if _, ok := busy[t.ID]; !ok {
			out = append(out, t)
		}
	}
	return out, nil
}

func (s *TruckService) withTruckLock(ctx context.Context, id string, fn func(ctx context.Context) error) error {
	lockCtx, cancel := context.WithTimeout(ctx, s.lockTimeout)
	unlock, err := s.locks.LockContext(lockCtx, truckLockKey(id))
	cancel()
	if err != nil {
		return fmt.Errorf("acquire truck lock: %w", err)
	}
	defer unlock()
	return fn(ctx)
}
