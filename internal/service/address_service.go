package service

import (
	"context"
	"strings"
	"time"

	"github.com/guttosm/trip-planner/internal/apperror"
	"github.com/guttosm/trip-planner/internal/domain/model"
	"github.com/guttosm/trip-planner/internal/repository"
)

// AddressInput describes a delivery address.
type AddressInput struct {
	AddressLine1 string
	AddressLine2 string
	City         string
	Country      string
	Postcode     string
	State        string
	RangeKm      float64
	TimeH        float64
}

// AddressService manages delivery addresses.
type AddressService struct {
	store    repository.Store
	profiles ProfileInvalidator
	now      func() time.Time
}

// NewAddressService creates an AddressService.
func NewAddressService(store repository.Store, profiles ProfileInvalidator) *AddressService {
	if profiles == nil {
		profiles = noopInvalidator{}
	}
	return &AddressService{store: store, profiles: profiles, now: time.Now}
}

func validateAddressInput(in AddressInput) error {
	required := []struct {
		field string
		value string
	}{
		{"address_line1", in.AddressLine1},
		{"city", in.City},
		{"country", in.Country},
		{"postcode", in.Postcode},
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			return apperror.NewValidation(r.field, "is required")
		}
	}
	if in.RangeKm < 0 {
		return apperror.NewValidation("range_km", "must not be negative")
	}
	if in.TimeH < 0 {
		return apperror.NewValidation("time_h", "must not be negative")
	}
	return nil
}

func applyAddressInput(a *model.Address, in AddressInput) {
	a.AddressLine1 = in.AddressLine1
	a.AddressLine2 = in.AddressLine2
	a.City = in.City
	a.Country = in.Country
	a.Postcode = in.Postcode
	a.State = in.State
	a.RangeKm = in.RangeKm
	a.TimeH = in.TimeH
}

// CreateAddress registers an address.
func (s *AddressService) CreateAddress(ctx context.Context, in AddressInput) (*model.Address, error) {
	if err := validateAddressInput(in); err != nil {
		return nil, err
	}
	now := s.now().UTC()
	address := &model.Address{CreatedAt: now, UpdatedAt: now}
	applyAddressInput(address, in)
	if err := s.store.Addresses().Create(ctx, address); err != nil {
		return nil, err
	}
	return address, nil
}

// GetAddress returns one address.
func (s *AddressService) GetAddress(ctx context.Context, id string) (*model.Address, error) {
	return s.store.Addresses().Get(ctx, id)
}

// ListAddresses returns one page of addresses.
func (s *AddressService) ListAddresses(ctx context.Context, limit, skip int) ([]model.Address, error) {
	return s.store.Addresses().List(ctx, limit, skip)
}

// UpdateAddress replaces an address. Estimates already stored on trips are
// not recomputed; the new distance applies to later estimates.
func (s *AddressService) UpdateAddress(ctx context.Context, id string, in AddressInput) (*model.Address, error) {
	if err := validateAddressInput(in); err != nil {
		return nil, err
	}
	address, err := s.store.Addresses().Get(ctx, id)
	if err != nil {
		return nil, err
	}
	applyAddressInput(address, in)
	address.UpdatedAt = s.now().UTC()
	if err := s.store.Addresses().Update(ctx, address); err != nil {
		return nil, err
	}
	s.profiles.InvalidateAddress(id)
	return address, nil
}

// DeleteAddress removes an address no order points at.
func (s *AddressService) DeleteAddress(ctx context.Context, id string) error {
	err := s.store.WithinTransaction(ctx, func(ctx context.Context) error {
		if _, err := s.store.Addresses().Get(ctx, id); err != nil {
			return err
		}
		n, err := s.store.Orders().Count(ctx, repository.OrderFilter{DestinationAddressID: id})
		if err != nil {
			return err
		}
		if n > 0 {
			return &apperror.ConflictError{
				Reason:  apperror.ReasonAddressInUse,
				Entity:  "address",
				ID:      id,
				Message: "address is the destination of existing orders",
			}
		}
		return s.store.Addresses().Delete(ctx, id)
	})
	if err != nil {
		return err
	}
	s.profiles.InvalidateAddress(id)
	return nil
}
