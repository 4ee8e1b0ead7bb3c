package service

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/guttosm/trip-planner/internal/apperror"
	"github.com/guttosm/trip-planner/internal/domain/model"
	"github.com/guttosm/trip-planner/internal/repository"
	"github.com/guttosm/trip-planner/internal/service/cache"
	"gopkg.in/yaml.v3"
)

// ProfileProvider resolves the lookup tables the estimator reads from. A
// missing entry is reported with found=false and a nil error; errors are
// reserved for lookups that could not be answered.
type ProfileProvider interface {
	DistanceProfile(ctx context.Context, addressID string) (profile model.DistanceProfile, found bool, err error)
	TruckProfile(ctx context.Context, truck model.Truck) (profile model.TruckProfile, found bool, err error)
}

// ProfileCatalog is the YAML profiles file. Trucks are keyed by truck id or by
// model name, addresses by address id.
type ProfileCatalog struct {
	Trucks    map[string]model.TruckProfile    `yaml:"trucks"`
	Addresses map[string]model.DistanceProfile `yaml:"addresses"`
}

// ParseProfileCatalog decodes a profiles document.
func ParseProfileCatalog(data []byte) (*ProfileCatalog, error) {
	var catalog ProfileCatalog
	if err := yaml.Unmarshal(data, &catalog); err != nil {
		return nil, fmt.Errorf("parse profile catalog: %w", err)
	}
	for key, p := range catalog.Trucks {
		if p.ConsumptionPer100Km <= 0 {
			return nil, fmt.Errorf("parse profile catalog: truck %q: consumption must be positive", key)
		}
	}
	for key, p := range catalog.Addresses {
		if p.OneWayRangeKm <= 0 || p.OneWayTimeH <= 0 {
			return nil, fmt.Errorf("parse profile catalog: address %q: range and time must be positive", key)
		}
	}
	return &catalog, nil
}

// LoadProfileCatalog reads and decodes the profiles file at path.
func LoadProfileCatalog(path string) (*ProfileCatalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read profile catalog: %w", err)
	}
	return ParseProfileCatalog(data)
}

// StaticProfiles serves profiles from an in-memory catalog.
type StaticProfiles struct {
	catalog ProfileCatalog
}

// NewStaticProfiles creates a provider over the given catalog.
func NewStaticProfiles(catalog *ProfileCatalog) *StaticProfiles {
	s := &StaticProfiles{}
	if catalog != nil {
		s.catalog = *catalog
	}
	return s
}

func (s *StaticProfiles) DistanceProfile(_ context.Context, addressID string) (model.DistanceProfile, bool, error) {
	p, ok := s.catalog.Addresses[addressID]
	return p, ok, nil
}

func (s *StaticProfiles) TruckProfile(_ context.Context, truck model.Truck) (model.TruckProfile, bool, error) {
	if p, ok := s.catalog.Trucks[truck.ID]; ok {
		return p, true, nil
	}
	if truck.Model != "" {
		if p, ok := s.catalog.Trucks[truck.Model]; ok {
			return p, true, nil
		}
	}
	return model.TruckProfile{}, false, nil
}

// RepositoryProfiles derives profiles from stored addresses and trucks. An
// address without a range gets the default leg but keeps its city.
type RepositoryProfiles struct {
	addresses         repository.AddressRepository
	defaultDistanceKm float64
	defaultTimeH      float64
}

// NewRepositoryProfiles creates a provider backed by the address repository.
func NewRepositoryProfiles(addresses repository.AddressRepository, defaultDistanceKm, defaultTimeH float64) *RepositoryProfiles {
	return &RepositoryProfiles{
		addresses:         addresses,
		defaultDistanceKm: defaultDistanceKm,
		defaultTimeH:      defaultTimeH,
	}
}

func (p *RepositoryProfiles) DistanceProfile(ctx context.Context, addressID string) (model.DistanceProfile, bool, error) {
	addr, err := p.addresses.Get(ctx, addressID)
	if apperror.IsNotFound(err) {
		return model.DistanceProfile{}, false, nil
	}
	if err != nil {
		return model.DistanceProfile{}, false, err
	}

	profile := model.DistanceProfile{
		City:          addr.City,
		OneWayRangeKm: p.defaultDistanceKm,
		OneWayTimeH:   p.defaultTimeH,
	}
	if addr.RangeKm > 0 {
		profile.OneWayRangeKm = addr.RangeKm
		if addr.TimeH > 0 {
			profile.OneWayTimeH = addr.TimeH
		}
	}
	return profile, true, nil
}

func (p *RepositoryProfiles) TruckProfile(_ context.Context, truck model.Truck) (model.TruckProfile, bool, error) {
	if truck.FuelConsumption <= 0 {
		return model.TruckProfile{}, false, nil
	}
	return model.TruckProfile{Model: truck.Model, ConsumptionPer100Km: truck.FuelConsumption}, true, nil
}

// ChainProfiles asks each provider in turn. The first hit wins; an error
// stops the chain.
type ChainProfiles []ProfileProvider

func (c ChainProfiles) DistanceProfile(ctx context.Context, addressID string) (model.DistanceProfile, bool, error) {
	for _, p := range c {
		profile, found, err := p.DistanceProfile(ctx, addressID)
		if err != nil || found {
			return profile, found, err
		}
	}
	return model.DistanceProfile{}, false, nil
}

func (c ChainProfiles) TruckProfile(ctx context.Context, truck model.Truck) (model.TruckProfile, bool, error) {
	for _, p := range c {
		profile, found, err := p.TruckProfile(ctx, truck)
		if err != nil || found {
			return profile, found, err
		}
	}
	return model.TruckProfile{}, false, nil
}

type cachedDistance struct {
	profile model.DistanceProfile
	found   bool
}

type cachedTruck struct {
	profile model.TruckProfile
	found   bool
}

// CachedProfiles memoizes answers of another provider, including misses.
// Errors are never cached.
type CachedProfiles struct {
	next      ProfileProvider
	distances *cache.Sharded[cachedDistance]
	trucks    *cache.Sharded[cachedTruck]
}

// NewCachedProfiles wraps next with LRU caches of the given size and TTL.
func NewCachedProfiles(next ProfileProvider, size int, ttl time.Duration) *CachedProfiles {
	return &CachedProfiles{
		next:      next,
		distances: cache.NewSharded[cachedDistance](size, ttl, 8),
		trucks:    cache.NewSharded[cachedTruck](size, ttl, 8),
	}
}

func (c *CachedProfiles) DistanceProfile(ctx context.Context, addressID string) (model.DistanceProfile, bool, error) {
	if hit, ok := c.distances.Get(addressID); ok {
		return hit.profile, hit.found, nil
	}
	profile, found, err := c.next.DistanceProfile(ctx, addressID)
	if err != nil {
		return profile, false, err
	}
	c.distances.Set(addressID, cachedDistance{profile: profile, found: found})
	return profile, found, nil
}

func (c *CachedProfiles) TruckProfile(ctx context.Context, truck model.Truck) (model.TruckProfile, bool, error) {
	key := truck.ID + "|" + truck.Model
	if hit, ok := c.trucks.Get(key); ok {
		return hit.profile, hit.found, nil
	}
	profile, found, err := c.next.TruckProfile(ctx, truck)
	if err != nil {
		return profile, false, err
	}
	c.trucks.Set(key, cachedTruck{profile: profile, found: found})
	return profile, found, nil
}

// InvalidateAddress drops the cached profile of one address.
func (c *CachedProfiles) InvalidateAddress(addressID string) {
	c.distances.Invalidate(addressID)
}

// InvalidateTrucks drops every cached truck profile.
func (c *CachedProfiles) InvalidateTrucks() {
	c.trucks.Clear()
}

// Stop releases the cache cleanup goroutines.
func (c *CachedProfiles) Stop() {
	c.distances.Stop()
	c.trucks.Stop()
}
