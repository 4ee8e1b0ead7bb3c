package service

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/guttosm/trip-planner/internal/circuitbreaker"
	"github.com/guttosm/trip-planner/internal/domain/model"
	"github.com/guttosm/trip-planner/internal/logger"
	"github.com/guttosm/trip-planner/internal/metrics"
)

const (
	// loadFactorCap bounds the weight surcharge on fuel at +30%.
	loadFactorCap = 0.3
	// loadFactorWeight is the load at which the surcharge reaches +100%.
	loadFactorWeight = 5000.0
	fuelSafetyMargin = 1.1

	palletHandlingHours = 0.25
	minUnloadingHours   = 1.0
	maxShiftHours       = 9.0
	restHoursPerShift   = 9.0

	fallbackFuelBase     = 50.0
	fallbackFuelPerTon   = 5.0
	fallbackDurationBase = 8.0
)

// Fallback reasons reported to metrics.
const (
	fallbackTimeout       = "timeout"
	fallbackCircuitOpen   = "circuit_open"
	fallbackLookupError   = "lookup_error"
	fallbackInvalidResult = "invalid_result"
)

// BufferSource yields the schedule buffer added on top of a trip duration, as
// a fraction (0.1 = +10%).
type BufferSource interface {
	Fraction() float64
}

// FixedBuffer is a constant buffer.
type FixedBuffer float64

// Fraction returns the buffer unchanged.
func (b FixedBuffer) Fraction() float64 { return float64(b) }

// RandomBuffer draws a buffer uniformly from [5%, 15%) using a seeded source,
// so a given seed replays the same sequence.
type RandomBuffer struct {
	mu  sync.Mutex
	rnd *rand.Rand
}

// NewRandomBuffer creates a RandomBuffer seeded with seed.
func NewRandomBuffer(seed int64) *RandomBuffer {
	return &RandomBuffer{rnd: rand.New(rand.NewSource(seed))}
}

// Fraction returns the next buffer of the sequence. It is safe for concurrent use.
func (b *RandomBuffer) Fraction() float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return 0.05 + b.rnd.Float64()*0.1
}

// EstimatorConfig holds the defaults used when a profile is missing.
type EstimatorConfig struct {
	DefaultDistanceKm  float64
	DefaultTimeH       float64
	DefaultConsumption float64
	LookupTimeout      time.Duration
}

// DefaultEstimatorConfig returns a 250 km / 4 h leg at 25 L/100km.
func DefaultEstimatorConfig() EstimatorConfig {
	return EstimatorConfig{
		DefaultDistanceKm:  250,
		DefaultTimeH:       4,
		DefaultConsumption: 25,
		LookupTimeout:      500 * time.Millisecond,
	}
}

// EstimatorOption configures an Estimator.
type EstimatorOption func(*Estimator)

// WithProfiles sets the provider of distance and truck profiles.
func WithProfiles(p ProfileProvider) EstimatorOption {
	return func(e *Estimator) {
		if p != nil {
			e.profiles = p
		}
	}
}

// WithBuffer sets the schedule buffer source.
func WithBuffer(b BufferSource) EstimatorOption {
	return func(e *Estimator) {
		if b != nil {
			e.buffer = b
		}
	}
}

// WithEstimatorConfig overrides the defaults. Non-positive values keep the
// built-in ones.
func WithEstimatorConfig(cfg EstimatorConfig) EstimatorOption {
	return func(e *Estimator) {
		if cfg.DefaultDistanceKm > 0 {
			e.cfg.DefaultDistanceKm = cfg.DefaultDistanceKm
		}
		if cfg.DefaultTimeH > 0 {
			e.cfg.DefaultTimeH = cfg.DefaultTimeH
		}
		if cfg.DefaultConsumption > 0 {
			e.cfg.DefaultConsumption = cfg.DefaultConsumption
		}
		if cfg.LookupTimeout > 0 {
			e.cfg.LookupTimeout = cfg.LookupTimeout
		}
	}
}

// WithLookupBreaker guards profile lookups with a circuit breaker.
func WithLookupBreaker(cb *circuitbreaker.CircuitBreaker) EstimatorOption {
	return func(e *Estimator) {
		e.breaker = cb
	}
}

// Estimator computes advisory fuel and duration figures for trips. It never
// fails: when the profile lookups cannot be answered it falls back to
// constant-based formulas and flags the result.
type Estimator struct {
	profiles ProfileProvider
	buffer   BufferSource
	cfg      EstimatorConfig
	breaker  *circuitbreaker.CircuitBreaker
}

// NewEstimator creates an Estimator. Without options it uses the built-in
// defaults for every destination and a fixed 10% buffer.
func NewEstimator(opts ...EstimatorOption) *Estimator {
	e := &Estimator{
		profiles: ChainProfiles(nil),
		buffer:   FixedBuffer(0.10),
		cfg:      DefaultEstimatorConfig(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Estimate returns the fuel (liters) and duration (hours) of a round trip of
// truck to the destination carrying weight kg on palletCount pallets.
func (e *Estimator) Estimate(ctx context.Context, truck model.Truck, destinationID string, weight float64, palletCount int) model.Estimate {
	leg, consumption, err := e.lookup(ctx, truck, destinationID)
	if err != nil {
		return e.fallback(ctx, err, destinationID, weight, palletCount)
	}

	fuel := FuelLiters(consumption, leg.OneWayRangeKm, weight)
	duration := DurationHours(leg.OneWayTimeH, palletCount, e.buffer.Fraction())
	if fuel < 0 || duration < 0 {
		return e.fallback(ctx, errInvalidEstimate, destinationID, weight, palletCount)
	}
	return model.Estimate{Fuel: fuel, Duration: duration}
}

// EstimateFuel returns only the fuel part of Estimate.
func (e *Estimator) EstimateFuel(ctx context.Context, truck model.Truck, destinationID string, weight float64) int {
	return e.Estimate(ctx, truck, destinationID, weight, 1).Fuel
}

// EstimateDuration returns only the duration part of Estimate.
func (e *Estimator) EstimateDuration(ctx context.Context, truck model.Truck, destinationID string, palletCount int) int {
	return e.Estimate(ctx, truck, destinationID, 0, palletCount).Duration
}

// Distance resolves the one-way leg to a destination. The boolean is false
// when the destination has no profile or the lookup failed; the default leg
// is returned in both cases.
func (e *Estimator) Distance(ctx context.Context, destinationID string) (model.DistanceProfile, bool) {
	def := model.DistanceProfile{OneWayRangeKm: e.cfg.DefaultDistanceKm, OneWayTimeH: e.cfg.DefaultTimeH}
	if destinationID == "" {
		return def, false
	}

	var (
		leg   model.DistanceProfile
		found bool
	)
	err := e.call(ctx, func(ctx context.Context) error {
		var err error
		leg, found, err = e.profiles.DistanceProfile(ctx, destinationID)
		return err
	})
	if err != nil {
		logger.FromContext(ctx, "estimator").Warn().Err(err).
			Str("destination_id", destinationID).
			Msg("Distance lookup failed, using default leg")
		return def, false
	}
	if !found {
		return def, false
	}
	return leg, true
}

// DefaultConsumption returns the consumption assumed for trucks without a profile.
func (e *Estimator) DefaultConsumption() float64 {
	return e.cfg.DefaultConsumption
}

var errInvalidEstimate = errors.New("estimate is not a finite number")

func (e *Estimator) lookup(ctx context.Context, truck model.Truck, destinationID string) (model.DistanceProfile, float64, error) {
	leg := model.DistanceProfile{OneWayRangeKm: e.cfg.DefaultDistanceKm, OneWayTimeH: e.cfg.DefaultTimeH}
	consumption := e.cfg.DefaultConsumption

	err := e.call(ctx, func(ctx context.Context) error {
		if destinationID != "" {
			p, found, err := e.profiles.DistanceProfile(ctx, destinationID)
			if err != nil {
				return err
			}
			if found {
				leg = p
			}
		}
		p, found, err := e.profiles.TruckProfile(ctx, truck)
		if err != nil {
			return err
		}
		if found && p.ConsumptionPer100Km > 0 {
			consumption = p.ConsumptionPer100Km
		}
		return nil
	})
	if err != nil {
		return leg, consumption, err
	}

	if leg.OneWayRangeKm <= 0 {
		leg.OneWayRangeKm = e.cfg.DefaultDistanceKm
	}
	if leg.OneWayTimeH <= 0 {
		leg.OneWayTimeH = e.cfg.DefaultTimeH
	}
	return leg, consumption, nil
}

// call runs fn under the lookup timeout and, when configured, the breaker.
func (e *Estimator) call(ctx context.Context, fn func(ctx context.Context) error) error {
	lookupCtx, cancel := context.WithTimeout(ctx, e.cfg.LookupTimeout)
	defer cancel()

	run := func() error {
		err := fn(lookupCtx)
		if err == nil && lookupCtx.Err() != nil {
			return lookupCtx.Err()
		}
		return err
	}
	if e.breaker == nil {
		return run()
	}
	return e.breaker.Execute(lookupCtx, run)
}

func (e *Estimator) fallback(ctx context.Context, err error, destinationID string, weight float64, palletCount int) model.Estimate {
	reason := fallbackLookupError
	switch {
	case errors.Is(err, circuitbreaker.ErrCircuitOpen):
		reason = fallbackCircuitOpen
	case errors.Is(err, context.DeadlineExceeded):
		reason = fallbackTimeout
	case errors.Is(err, errInvalidEstimate):
		reason = fallbackInvalidResult
	}
	metrics.RecordEstimatorFallback(reason)

	logger.FromContext(ctx, "estimator").Warn().Err(err).
		Str("destination_id", destinationID).
		Str("reason", reason).
		Msg("Estimation failed, using fallback formulas")

	return model.Estimate{
		Fuel:     FallbackFuel(weight),
		Duration: FallbackDuration(palletCount),
		Fallback: true,
	}
}

// FuelLiters estimates the fuel of a round trip: consumption over twice the
// one-way distance, plus a load surcharge of weight/5000 capped at 30%, plus
// a 10% safety margin. A non-finite result is reported as -1.
func FuelLiters(consumptionPer100Km, oneWayKm, weight float64) int {
	fuel := consumptionPer100Km * (2 * oneWayKm) / 100
	if weight > 0 {
		fuel *= 1 + math.Min(weight/loadFactorWeight, loadFactorCap)
	}
	fuel *= fuelSafetyMargin
	return roundFinite(fuel)
}

// DurationHours estimates the duration of a round trip in whole hours.
// A non-finite result is reported as -1.
func DurationHours(oneWayTimeH float64, palletCount int, buffer float64) int {
	wt := WorkingTimeBreakdown(oneWayTimeH, palletCount)
	return roundFinite(wt.TotalHours * (1 + buffer))
}

// WorkingTimeBreakdown splits a round trip into driving, pallet handling and
// mandatory rest. Every started block of 9 working hours past the first adds
// a 9 hour rest. A non-positive pallet count is treated as one pallet.
func WorkingTimeBreakdown(oneWayTimeH float64, palletCount int) model.WorkingTime {
	n := float64(palletCount)
	if palletCount <= 0 {
		n = 1
	}

	travel := 2 * oneWayTimeH
	loading := palletHandlingHours*n + math.Max(minUnloadingHours, palletHandlingHours*n)
	working := travel + loading

	var rest float64
	if working > maxShiftHours {
		rest = restHoursPerShift * math.Floor(working/maxShiftHours)
	}

	return model.WorkingTime{
		TravelHours:  round2(travel),
		LoadingHours: round2(loading),
		RestHours:    round2(rest),
		TotalHours:   working + rest,
	}
}

// FallbackFuel is the fuel estimate used when profiles are unavailable.
func FallbackFuel(weight float64) int {
	if weight < 0 || math.IsNaN(weight) {
		weight = 0
	}
	return int(math.Round(fallbackFuelBase + weight/1000*fallbackFuelPerTon))
}

// FallbackDuration is the duration estimate used when profiles are unavailable.
func FallbackDuration(palletCount int) int {
	if palletCount <= 0 {
		palletCount = 1
	}
	return int(math.Round(fallbackDurationBase + palletHandlingHours*float64(palletCount)))
}

// EfficiencyMetrics scores a trip. Weight utilization is the load over the
// truck's capacity; fuel efficiency compares the expected consumption with
// the one implied by the fuel estimate; cost efficiency combines both. All
// values are whole percentages.
func EfficiencyMetrics(truck model.Truck, weight float64, fuel int, oneWayKm, defaultConsumption float64) model.EfficiencyMetrics {
	var m model.EfficiencyMetrics
	if truck.MaxWeight > 0 {
		m.WeightUtilization = math.Round(weight / truck.MaxWeight * 100)
	}

	if oneWayKm <= 0 {
		oneWayKm = DefaultEstimatorConfig().DefaultDistanceKm
	}
	expected := truck.FuelConsumption
	if expected <= 0 {
		expected = defaultConsumption
	}
	if fuel > 0 && expected > 0 {
		actual := float64(fuel) / (2 * oneWayKm) * 100
		m.FuelEfficiency = math.Round(expected / actual * 100)
	}

	m.CostEfficiency = math.Round(m.WeightUtilization * m.FuelEfficiency / 100)
	return m
}

func roundFinite(v float64) int {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return -1
	}
	return int(math.Round(v))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
