package service

import (
	"context"
	"sort"
	"time"

	"github.com/guttosm/trip-planner/internal/apperror"
	"github.com/guttosm/trip-planner/internal/domain/model"
	"github.com/guttosm/trip-planner/internal/logger"
	"github.com/guttosm/trip-planner/internal/metrics"
	"github.com/guttosm/trip-planner/internal/tracing"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const (
	warehouseName       = "Warehouse"
	unknownDestination  = "Destination"
	reasonNoTrucks      = "no trucks available"
	reasonNoTruckCarry  = "exceeds the weight or height of every available truck"
	optimizationOK      = "success"
	optimizationEmpty   = "empty"
	optimizationFailed  = "infeasible"
	optimizationAborted = "cancelled"
)

// OptimizerConfig tunes truck selection and route reporting.
type OptimizerConfig struct {
	// MinLoadUtilization is the fraction of a truck's capacity a pallet must
	// fill on its own for the truck to be scored when opening a bin.
	MinLoadUtilization float64
	// BaseDistanceKm is the one-way distance reported for routes to a
	// destination without a profile.
	BaseDistanceKm float64
}

// DefaultOptimizerConfig returns a 30% utilization bar and a 50 km base leg.
func DefaultOptimizerConfig() OptimizerConfig {
	return OptimizerConfig{MinLoadUtilization: 0.3, BaseDistanceKm: 50}
}

// Optimizer partitions pallets across trucks with a deterministic greedy
// first-fit. It has no side effects; committing a plan is the allocation
// service's job.
type Optimizer struct {
	estimator *Estimator
	cfg       OptimizerConfig
}

// NewOptimizer creates an Optimizer. A nil estimator uses the built-in defaults.
func NewOptimizer(estimator *Estimator, cfg OptimizerConfig) *Optimizer {
	if estimator == nil {
		estimator = NewEstimator()
	}
	def := DefaultOptimizerConfig()
	if cfg.MinLoadUtilization < 0 {
		cfg.MinLoadUtilization = def.MinLoadUtilization
	}
	if cfg.BaseDistanceKm <= 0 {
		cfg.BaseDistanceKm = def.BaseDistanceKm
	}
	return &Optimizer{estimator: estimator, cfg: cfg}
}

// Bin is one truck's tentative load during optimization.
type Bin struct {
	Truck   model.Truck
	Pallets []model.Pallet
	Weight  float64
}

func (b *Bin) fits(p model.Pallet) bool {
	return b.Weight+p.Weight <= b.Truck.MaxWeight &&
		len(b.Pallets) < b.Truck.MaxPallets &&
		p.HeightMeters() <= b.Truck.Height
}

func (b *Bin) add(p model.Pallet) {
	b.Pallets = append(b.Pallets, p)
	b.Weight += p.Weight
}

// PackPallets assigns every pallet to a bin. Pallets are placed heaviest
// first into the first open bin they fit; when none fits a new bin is opened
// on the truck chosen by selectTruck. The inputs are not modified.
func PackPallets(pallets []model.Pallet, trucks []model.Truck, minLoadUtilization float64) ([]*Bin, error) {
	if len(pallets) == 0 {
		return nil, nil
	}
	if len(trucks) == 0 {
		return nil, &apperror.InfeasibleAllocationError{Reason: reasonNoTrucks}
	}

	sortedPallets := make([]model.Pallet, len(pallets))
	copy(sortedPallets, pallets)
	sort.SliceStable(sortedPallets, func(i, j int) bool {
		return sortedPallets[i].Weight > sortedPallets[j].Weight
	})

	sortedTrucks := make([]model.Truck, len(trucks))
	copy(sortedTrucks, trucks)
	sort.SliceStable(sortedTrucks, func(i, j int) bool {
		return sortedTrucks[i].MaxWeight > sortedTrucks[j].MaxWeight
	})

	var bins []*Bin
	used := make(map[int]bool, len(sortedTrucks))

	for _, p := range sortedPallets {
		placed := false
		for _, b := range bins {
			if b.fits(p) {
				b.add(p)
				placed = true
				break
			}
		}
		if placed {
			continue
		}

		idx, ok := selectTruck(p, sortedTrucks, used, minLoadUtilization)
		if !ok {
			return nil, &apperror.InfeasibleAllocationError{
				PalletID: p.ID,
				Weight:   p.Weight,
				Height:   p.Height,
				Reason:   reasonNoTruckCarry,
			}
		}
		used[idx] = true
		b := &Bin{Truck: sortedTrucks[idx]}
		b.add(p)
		bins = append(bins, b)
	}

	return bins, nil
}

// selectTruck picks the truck for a new bin holding p. Unused trucks whose
// standalone utilization clears the bar are scored by utilization minus a
// size penalty; otherwise the smallest unused eligible truck is taken, and
// only when every eligible truck is already used, the smallest of those
// rather than the first (largest) one in scan order. Ties keep scan order.
func selectTruck(p model.Pallet, trucks []model.Truck, used map[int]bool, minLoadUtilization float64) (int, bool) {
	best, smallestUnused, smallest := -1, -1, -1
	var bestScore float64

	for i, t := range trucks {
		if !t.CanCarry(p) {
			continue
		}
		if smallest < 0 || t.MaxWeight < trucks[smallest].MaxWeight {
			smallest = i
		}
		if used[i] {
			continue
		}
		if smallestUnused < 0 || t.MaxWeight < trucks[smallestUnused].MaxWeight {
			smallestUnused = i
		}

		utilization := p.Weight / t.MaxWeight * 100
		if utilization < minLoadUtilization*100 {
			continue
		}
		score := utilization - t.MaxWeight/10000
		if best < 0 || score > bestScore {
			best, bestScore = i, score
		}
	}

	switch {
	case best >= 0:
		return best, true
	case smallestUnused >= 0:
		return smallestUnused, true
	case smallest >= 0:
		return smallest, true
	default:
		return -1, false
	}
}

// OptimizeTrips packs the pallets onto the trucks and turns every bin into a
// trip draft with estimates and a route to the destination. An empty pallet
// list yields an empty plan. A pallet no truck can carry fails the whole run
// with an InfeasibleAllocationError.
func (o *Optimizer) OptimizeTrips(ctx context.Context, pallets []model.Pallet, trucks []model.Truck, destinationID string) (*model.Plan, error) {
	ctx, span := tracing.Tracer("optimizer").Start(ctx, "optimizer.OptimizeTrips")
	defer span.End()
	span.SetAttributes(
		attribute.Int("pallets", len(pallets)),
		attribute.Int("trucks", len(trucks)),
	)

	start := time.Now()
	log := logger.FromContext(ctx, "optimizer")

	if err := ctx.Err(); err != nil {
		metrics.RecordOptimization(time.Since(start), optimizationAborted, 0)
		return nil, err
	}

	if len(pallets) == 0 {
		metrics.RecordOptimization(time.Since(start), optimizationEmpty, 0)
		return &model.Plan{Trips: []model.TripDraft{}}, nil
	}

	bins, err := PackPallets(pallets, trucks, o.cfg.MinLoadUtilization)
	if err != nil {
		metrics.RecordOptimization(time.Since(start), optimizationFailed, 0)
		span.RecordError(err)
		span.SetStatus(codes.Error, "infeasible allocation")
		log.Warn().Err(err).
			Int("pallets", len(pallets)).
			Int("trucks", len(trucks)).
			Msg("Optimization infeasible")
		return nil, err
	}

	route := o.route(ctx, destinationID)
	plan := &model.Plan{Trips: make([]model.TripDraft, 0, len(bins))}
	for _, b := range bins {
		est := o.estimator.Estimate(ctx, b.Truck, destinationID, b.Weight, len(b.Pallets))
		r := route
		r.EstimatedTime = est.Duration

		plan.Trips = append(plan.Trips, model.TripDraft{
			Truck:             b.Truck,
			Pallets:           b.Pallets,
			Weight:            b.Weight,
			Utilization:       round2(b.Weight / b.Truck.MaxWeight * 100),
			EstimatedFuel:     est.Fuel,
			EstimatedDuration: est.Duration,
			Route:             r,
		})
		plan.TotalWeight += b.Weight
		plan.TotalCapacity += b.Truck.MaxWeight
	}
	if plan.TotalCapacity > 0 {
		plan.Efficiency = round2(plan.TotalWeight / plan.TotalCapacity * 100)
	}

	metrics.RecordOptimization(time.Since(start), optimizationOK, plan.Efficiency)
	span.SetAttributes(
		attribute.Int("trips", len(plan.Trips)),
		attribute.Float64("efficiency", plan.Efficiency),
	)
	log.Debug().
		Int("pallets", len(pallets)).
		Int("trips", len(plan.Trips)).
		Float64("efficiency", plan.Efficiency).
		Dur("duration", time.Since(start)).
		Msg("Optimization completed")

	return plan, nil
}

func (o *Optimizer) route(ctx context.Context, destinationID string) model.Route {
	r := model.Route{
		StartPoint:        warehouseName,
		EndPoint:          unknownDestination,
		EstimatedDistance: o.cfg.BaseDistanceKm * 2,
	}
	leg, found := o.estimator.Distance(ctx, destinationID)
	if !found {
		return r
	}
	if leg.City != "" {
		r.EndPoint = leg.City
	}
	if leg.OneWayRangeKm > 0 {
		r.EstimatedDistance = leg.OneWayRangeKm * 2
	}
	return r
}
