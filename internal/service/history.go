package service

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/guttosm/trip-planner/internal/apperror"
	"github.com/guttosm/trip-planner/internal/domain/model"
	"github.com/guttosm/trip-planner/internal/logger"
	"github.com/guttosm/trip-planner/internal/repository"
)

const (
	similarWeightTolerance = 0.3
	similarPalletTolerance = 2
	similarOrdersLimit     = 30
	maxCommonIssues        = 5

	defaultFuelEfficiency  = 35.0
	defaultLoadUtilization = 75.0
	defaultOnTimeRate      = 85.0
	defaultTripsNeeded     = 2.0
)

// HistoryService derives planning context from completed orders.
type HistoryService struct {
	store repository.Store
	now   func() time.Time
}

// NewHistoryService creates a HistoryService.
func NewHistoryService(store repository.Store) *HistoryService {
	return &HistoryService{store: store, now: time.Now}
}

// DefaultHistoricalContext is returned when no comparable history exists or
// the lookup failed.
func DefaultHistoricalContext(now time.Time) *model.HistoricalContext {
	return &model.HistoricalContext{
		SimilarOrdersCount: 0,
		AverageTripsNeeded: defaultTripsNeeded,
		CommonIssues: []string{
			"No historical data available",
			"Standard delivery risks apply",
			"Weather conditions may affect schedule",
		},
		SeasonalFactors:    SeasonalFactors(now.Month()),
		PerformanceMetrics: defaultPerformance(),
	}
}

func defaultPerformance() model.PerformanceMetrics {
	return model.PerformanceMetrics{
		AverageFuelEfficiency:  defaultFuelEfficiency,
		AverageLoadUtilization: defaultLoadUtilization,
		OnTimeDeliveryRate:     defaultOnTimeRate,
	}
}

// SeasonalFactors lists the conditions that usually affect deliveries in month.
func SeasonalFactors(month time.Month) []string {
	var factors []string
	switch month {
	case time.December, time.January, time.February:
		factors = append(factors,
			"Winter weather may affect delivery times",
			"Increased fuel consumption due to cold weather")
	case time.March, time.April, time.May:
		factors = append(factors,
			"Spring weather generally favorable for logistics",
			"Potential for increased construction affecting routes")
	case time.June, time.July, time.August:
		factors = append(factors,
			"Peak logistics season - high truck demand",
			"Heat may affect driver performance and vehicle efficiency")
	default:
		factors = append(factors,
			"Harvest season may increase rural traffic",
			"Weather transition period - variable conditions")
	}
	if month == time.December {
		factors = append(factors, "Holiday season - potential shipping delays")
	}
	return factors
}

// Context describes how completed orders of similar weight and size went.
// Orders count as similar within 30% of the cargo weight and two pallets of
// the pallet count, created in the last six months.
func (h *HistoryService) Context(ctx context.Context, pallets []model.Pallet) (*model.HistoricalContext, error) {
	now := h.now()
	weight := model.TotalWeight(pallets)
	count := len(pallets)

	orders, err := h.store.Orders().FindSimilar(ctx, repository.SimilarOrderQuery{
		MinWeight:  weight * (1 - similarWeightTolerance),
		MaxWeight:  weight * (1 + similarWeightTolerance),
		MinPallets: max(1, count-similarPalletTolerance),
		MaxPallets: count + similarPalletTolerance,
		Status:     model.OrderDone,
		Since:      now.AddDate(0, -6, 0),
		Limit:      similarOrdersLimit,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to find similar orders: %w", err)
	}
	if len(orders) == 0 {
		return DefaultHistoricalContext(now), nil
	}

	trips, trucks, err := h.completedTrips(ctx, orders)
	if err != nil {
		return nil, err
	}

	log := logger.FromContext(ctx, "history")
	log.Debug().
		Int("similar_orders", len(orders)).
		Int("trips", len(trips)).
		Msg("Historical context computed")

	return &model.HistoricalContext{
		SimilarOrdersCount: len(orders),
		AverageTripsNeeded: averageTripsNeeded(trips),
		CommonIssues:       commonIssues(trips),
		SeasonalFactors:    SeasonalFactors(now.Month()),
		PerformanceMetrics: performanceMetrics(trips, trucks),
	}, nil
}

// PerformanceTrends summarizes orders completed in the last days days.
func (h *HistoryService) PerformanceTrends(ctx context.Context, days int) (*model.PerformanceTrends, error) {
	if days < 1 || days > 365 {
		return nil, apperror.NewValidation("days", "must be between 1 and 365, got %d", days)
	}

	orders, err := h.store.Orders().FindSimilar(ctx, repository.SimilarOrderQuery{
		MinWeight:  0,
		MaxWeight:  math.MaxFloat64,
		MinPallets: 0,
		MaxPallets: math.MaxInt32,
		Status:     model.OrderDone,
		Since:      h.now().AddDate(0, 0, -days),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list completed orders: %w", err)
	}

	trends := &model.PerformanceTrends{Period: days, TotalOrders: len(orders)}
	perf := defaultPerformance()
	if len(orders) > 0 {
		trips, trucks, err := h.completedTrips(ctx, orders)
		if err != nil {
			return nil, err
		}
		trends.TotalTrips = len(trips)
		trends.AverageTripsPerOrder = round2(float64(len(trips)) / float64(len(orders)))
		perf = performanceMetrics(trips, trucks)
	}
	trends.FuelEfficiencyTrend = perf.AverageFuelEfficiency
	trends.UtilizationTrend = perf.AverageLoadUtilization
	return trends, nil
}

func (h *HistoryService) completedTrips(ctx context.Context, orders []model.Order) ([]model.Trip, map[string]model.Truck, error) {
	ids := make([]string, len(orders))
	for i, o := range orders {
		ids[i] = o.ID
	}
	trips, err := h.store.Trips().List(ctx, repository.TripFilter{
		OrderIDs: ids,
		Statuses: []model.TripStatus{model.TripDone},
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to list completed trips: %w", err)
	}

	truckIDs := make([]string, 0, len(trips))
	seen := make(map[string]bool, len(trips))
	for _, t := range trips {
		if !seen[t.TruckID] {
			seen[t.TruckID] = true
			truckIDs = append(truckIDs, t.TruckID)
		}
	}
	trucks := make(map[string]model.Truck, len(truckIDs))
	if len(truckIDs) > 0 {
		list, err := h.store.Trucks().List(ctx, repository.TruckFilter{IDs: truckIDs})
		if err != nil {
			return nil, nil, fmt.Errorf("failed to load trucks of completed trips: %w", err)
		}
		for _, t := range list {
			trucks[t.ID] = t
		}
	}
	return trips, trucks, nil
}

// performanceMetrics averages actual fuel, load utilization and the share of
// trips finishing within their estimated duration.
func performanceMetrics(trips []model.Trip, trucks map[string]model.Truck) model.PerformanceMetrics {
	if len(trips) == 0 {
		return defaultPerformance()
	}
	perf := defaultPerformance()

	var fuelSum float64
	var fuelN int
	var utilSum float64
	var utilN int
	var timed, onTime int
	for _, t := range trips {
		if t.ActualFuel != nil && *t.ActualFuel > 0 {
			fuelSum += float64(*t.ActualFuel)
			fuelN++
		}
		if truck, ok := trucks[t.TruckID]; ok && truck.MaxWeight > 0 && len(t.PalletIDs) > 0 {
			if u := t.Weight / truck.MaxWeight * 100; u <= 100 {
				utilSum += u
				utilN++
			}
		}
		if t.ActualDuration != nil {
			timed++
			if *t.ActualDuration <= t.EstimatedDuration {
				onTime++
			}
		}
	}

	if fuelN > 0 {
		perf.AverageFuelEfficiency = round2(fuelSum / float64(fuelN))
	}
	if utilN > 0 {
		perf.AverageLoadUtilization = round2(utilSum / float64(utilN))
	}
	if timed > 0 {
		perf.OnTimeDeliveryRate = round2(float64(onTime) / float64(timed) * 100)
	}
	return perf
}

func averageTripsNeeded(trips []model.Trip) float64 {
	perOrder := make(map[string]int)
	for _, t := range trips {
		perOrder[t.OrderID]++
	}
	if len(perOrder) == 0 {
		return defaultTripsNeeded
	}
	return round2(float64(len(trips)) / float64(len(perOrder)))
}

var noteIssues = []struct {
	keywords []string
	issue    string
}{
	{[]string{"delay", "late"}, "Delivery delays reported in similar orders"},
	{[]string{"fuel", "consumption"}, "Fuel consumption concerns noted"},
	{[]string{"weight", "overload"}, "Weight distribution challenges"},
	{[]string{"weather", "rain", "snow"}, "Weather-related complications"},
	{[]string{"driver", "availability"}, "Driver availability issues"},
}

// commonIssues scans trip notes for known keywords and flags estimates that
// were regularly overrun.
func commonIssues(trips []model.Trip) []string {
	var issues []string

	var notes []string
	for _, t := range trips {
		if n := strings.TrimSpace(t.Notes); n != "" {
			notes = append(notes, strings.ToLower(n))
		}
	}
	if len(notes) > 0 {
		text := strings.Join(notes, " ")
		for _, ni := range noteIssues {
			for _, kw := range ni.keywords {
				if strings.Contains(text, kw) {
					issues = append(issues, ni.issue)
					break
				}
			}
		}
	}

	var fuelN, fuelOver, durN, durOver int
	for _, t := range trips {
		if t.ActualFuel != nil && *t.ActualFuel > 0 && t.EstimatedFuel > 0 {
			fuelN++
			if float64(*t.ActualFuel) > float64(t.EstimatedFuel)*1.2 {
				fuelOver++
			}
		}
		if t.ActualDuration != nil && *t.ActualDuration > 0 && t.EstimatedDuration > 0 {
			durN++
			if float64(*t.ActualDuration) > float64(t.EstimatedDuration)*1.3 {
				durOver++
			}
		}
	}
	if float64(fuelOver) > float64(fuelN)*0.3 {
		issues = append(issues, "Frequent fuel consumption overruns")
	}
	if float64(durOver) > float64(durN)*0.25 {
		issues = append(issues, "Trip duration frequently exceeds estimates")
	}

	if len(issues) == 0 {
		issues = append(issues, "Standard delivery risks apply", "Weather conditions may affect schedule")
	}
	if len(issues) > maxCommonIssues {
		issues = issues[:maxCommonIssues]
	}
	return issues
}
