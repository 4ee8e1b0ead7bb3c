package service

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/guttosm/trip-planner/internal/apperror"
	"github.com/guttosm/trip-planner/internal/domain/model"
	"github.com/guttosm/trip-planner/internal/logger"
	"golang.org/x/sync/errgroup"
)

const (
	maxPalletWeight        = 50000.0
	lightPalletWeight      = 50.0
	heavyPalletWeight      = 5000.0
	tallPalletHeight       = 300.0
	largeOrderTrips        = 10
	fallbackTruckCapacity  = 20000.0
	maxConcurrentAnalyses  = 4
	defaultHistoryTimeout  = 10 * time.Second
	defaultAnalysisTimeout = 45 * time.Second
)

// TripAnalyst produces the narrative of a plan. Implementations typically
// call an external advisor; any error falls back to the built-in texts.
type TripAnalyst interface {
	AnalyzeTrip(ctx context.Context, trip model.TripDraft, history *model.HistoricalContext) (model.TripAnalysis, error)
	AnalyzePlan(ctx context.Context, trips []model.SmartTrip, history *model.HistoricalContext) (model.PlanAnalysis, error)
}

// HistoryProvider supplies the historical context of a pallet set.
type HistoryProvider interface {
	Context(ctx context.Context, pallets []model.Pallet) (*model.HistoricalContext, error)
}

// TruckSource lists trucks that can take a new trip.
type TruckSource interface {
	AvailableTrucks(ctx context.Context, ids []string) ([]model.Truck, error)
}

// PlanningConfig bounds the optional enrichment steps of planning.
type PlanningConfig struct {
	HistoryTimeout  time.Duration
	AnalysisTimeout time.Duration
}

// PlanningOption configures a PlanningService.
type PlanningOption func(*PlanningService)

// WithTripAnalyst attaches an analyst to planning results.
func WithTripAnalyst(a TripAnalyst) PlanningOption {
	return func(s *PlanningService) { s.analyst = a }
}

// WithHistory enables historical context on request.
func WithHistory(h HistoryProvider) PlanningOption {
	return func(s *PlanningService) { s.history = h }
}

// WithPlanningConfig overrides the enrichment timeouts.
func WithPlanningConfig(cfg PlanningConfig) PlanningOption {
	return func(s *PlanningService) {
		if cfg.HistoryTimeout > 0 {
			s.cfg.HistoryTimeout = cfg.HistoryTimeout
		}
		if cfg.AnalysisTimeout > 0 {
			s.cfg.AnalysisTimeout = cfg.AnalysisTimeout
		}
	}
}

// PlanningService runs the optimizer for an order or a loose pallet set,
// enriches the plan and optionally commits it as trips.
type PlanningService struct {
	allocation *AllocationService
	trucks     TruckSource
	optimizer  *Optimizer
	estimator  *Estimator
	history    HistoryProvider
	analyst    TripAnalyst
	cfg        PlanningConfig
	now        func() time.Time
}

// NewPlanningService creates a PlanningService.
func NewPlanningService(allocation *AllocationService, trucks TruckSource, optimizer *Optimizer, estimator *Estimator, opts ...PlanningOption) *PlanningService {
	s := &PlanningService{
		allocation: allocation,
		trucks:     trucks,
		optimizer:  optimizer,
		estimator:  estimator,
		cfg: PlanningConfig{
			HistoryTimeout:  defaultHistoryTimeout,
			AnalysisTimeout: defaultAnalysisTimeout,
		},
		now: time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// OptimizeRequest selects what to plan. With an OrderID the order's
// unassigned pallets and destination are used; otherwise Pallets and
// DestinationAddressID. Commit requires an OrderID.
type OptimizeRequest struct {
	OrderID                  string
	Pallets                  []model.Pallet
	DestinationAddressID     string
	PreferredTruckIDs        []string
	IncludeHistoricalContext bool
	Commit                   bool
	StartDate                time.Time
}

// Optimize packs the pallets onto available trucks and returns the enriched
// plan. Analysis and history never fail the request; optimizer and commit
// errors do.
func (s *PlanningService) Optimize(ctx context.Context, req OptimizeRequest) (*model.OptimizationResult, error) {
	started := time.Now()
	log := logger.FromContext(ctx, "planning")

	if req.Commit && req.OrderID == "" {
		return nil, apperror.NewValidation("order_id", "is required to commit a plan")
	}

	pallets, destinationID, err := s.resolveInput(ctx, req)
	if err != nil {
		return nil, err
	}

	trucks, err := s.trucks.AvailableTrucks(ctx, req.PreferredTruckIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to list available trucks: %w", err)
	}

	plan, err := s.optimizer.OptimizeTrips(ctx, pallets, trucks, destinationID)
	if err != nil {
		return nil, err
	}

	var history *model.HistoricalContext
	if req.IncludeHistoricalContext {
		history = s.historicalContext(ctx, pallets)
	}

	trips, err := s.enrichTrips(ctx, plan, destinationID, history)
	if err != nil {
		return nil, err
	}

	result := &model.OptimizationResult{
		OrderID:           req.OrderID,
		Trips:             trips,
		TotalPallets:      len(pallets),
		TotalWeight:       model.TotalWeight(pallets),
		Efficiency:        plan.Efficiency,
		Summary:           summarize(trips),
		HistoricalContext: history,
	}
	if len(trips) > 0 {
		analysis := s.analyzePlan(ctx, trips, history)
		result.Analysis = &analysis
	}

	if req.Commit {
		committed, err := s.allocation.CommitPlan(ctx, req.OrderID, plan, req.StartDate)
		if err != nil {
			return nil, err
		}
		result.CommittedTrips = committed
	}

	result.ProcessingTime = time.Since(started)
	log.Info().
		Str("order_id", req.OrderID).
		Int("pallets", result.TotalPallets).
		Int("trips", len(trips)).
		Bool("committed", req.Commit).
		Dur("took", result.ProcessingTime).
		Msg("Planning completed")
	return result, nil
}

func (s *PlanningService) resolveInput(ctx context.Context, req OptimizeRequest) ([]model.Pallet, string, error) {
	if req.OrderID == "" {
		if len(req.Pallets) == 0 {
			return nil, "", apperror.NewValidation("pallets", "at least one pallet is required")
		}
		if err := model.ValidatePallets(req.Pallets); err != nil {
			return nil, "", err
		}
		for _, p := range req.Pallets {
			if p.Weight > maxPalletWeight {
				return nil, "", apperror.NewValidation("pallets", "pallet %s exceeds the 50,000kg limit", p.ID)
			}
		}
		return req.Pallets, req.DestinationAddressID, nil
	}

	order, err := s.allocation.GetOrder(ctx, req.OrderID)
	if err != nil {
		return nil, "", err
	}
	if order.Status.IsClosed() {
		return nil, "", closedOrder(order)
	}
	pallets, err := s.allocation.UnassignedPallets(ctx, order.ID)
	if err != nil {
		return nil, "", err
	}
	return pallets, order.DestinationAddressID, nil
}

func (s *PlanningService) historicalContext(ctx context.Context, pallets []model.Pallet) *model.HistoricalContext {
	if s.history == nil {
		return DefaultHistoricalContext(s.now())
	}
	hctx, cancel := context.WithTimeout(ctx, s.cfg.HistoryTimeout)
	defer cancel()

	history, err := s.history.Context(hctx, pallets)
	if err == nil && hctx.Err() != nil {
		err = hctx.Err()
	}
	if err != nil {
		log := logger.FromContext(ctx, "planning")
		log.Warn().Err(err).Msg("Historical context unavailable, using defaults")
		return DefaultHistoricalContext(s.now())
	}
	return history
}

// enrichTrips attaches efficiency, working time and analysis to every draft.
// Analyses run concurrently; the output keeps the plan's order.
func (s *PlanningService) enrichTrips(ctx context.Context, plan *model.Plan, destinationID string, history *model.HistoricalContext) ([]model.SmartTrip, error) {
	trips := make([]model.SmartTrip, len(plan.Trips))
	if len(plan.Trips) == 0 {
		return trips, nil
	}

	leg, _ := s.estimator.Distance(ctx, destinationID)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentAnalyses)
	for i, draft := range plan.Trips {
		g.Go(func() error {
			trips[i] = model.SmartTrip{
				TripDraft: draft,
				Analysis:  s.analyzeTrip(gctx, draft, history),
				Efficiency: EfficiencyMetrics(draft.Truck, draft.Weight, draft.EstimatedFuel,
					leg.OneWayRangeKm, s.estimator.DefaultConsumption()),
				WorkingTime: WorkingTimeBreakdown(leg.OneWayTimeH, len(draft.Pallets)),
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return trips, nil
}

func (s *PlanningService) analyzeTrip(ctx context.Context, draft model.TripDraft, history *model.HistoricalContext) model.TripAnalysis {
	if s.analyst == nil {
		return FallbackTripAnalysis(draft)
	}
	actx, cancel := context.WithTimeout(ctx, s.cfg.AnalysisTimeout)
	defer cancel()

	analysis, err := s.analyst.AnalyzeTrip(actx, draft, history)
	if err != nil {
		log := logger.FromContext(ctx, "planning")
		log.Warn().Err(err).Str("truck_id", draft.Truck.ID).Msg("Trip analysis failed, using fallback")
		return FallbackTripAnalysis(draft)
	}
	analysis.Confidence = min(100, max(0, analysis.Confidence))
	return analysis
}

func (s *PlanningService) analyzePlan(ctx context.Context, trips []model.SmartTrip, history *model.HistoricalContext) model.PlanAnalysis {
	if s.analyst == nil {
		return FallbackPlanAnalysis(trips)
	}
	actx, cancel := context.WithTimeout(ctx, s.cfg.AnalysisTimeout)
	defer cancel()

	analysis, err := s.analyst.AnalyzePlan(actx, trips, history)
	if err != nil {
		log := logger.FromContext(ctx, "planning")
		log.Warn().Err(err).Msg("Plan analysis failed, using fallback")
		return FallbackPlanAnalysis(trips)
	}
	return analysis
}

// FallbackTripAnalysis is the analysis used without an analyst. Confidence
// follows the draft's weight utilization.
func FallbackTripAnalysis(draft model.TripDraft) model.TripAnalysis {
	confidence := 45
	switch {
	case draft.Utilization > 70:
		confidence = 75
	case draft.Utilization > 50:
		confidence = 60
	}
	return model.TripAnalysis{
		Reasoning: fmt.Sprintf("Truck %s assigned based on capacity match and availability", draft.Truck.PlateNumber),
		Risks: []string{
			"Standard delivery delays possible",
			"Weather or traffic conditions may affect schedule",
			"Driver availability needs confirmation",
		},
		Alternatives: []string{
			"Reassign to alternative truck if needed",
			"Split load across multiple smaller trips",
			"Reschedule delivery window if required",
		},
		Confidence: confidence,
	}
}

// FallbackPlanAnalysis is the plan analysis used without an analyst.
func FallbackPlanAnalysis(trips []model.SmartTrip) model.PlanAnalysis {
	avg := averageUtilization(trips)
	risk := "Moderate risk - review recommended"
	if avg > 70 {
		risk = "Low risk - well-optimized plan"
	}
	return model.PlanAnalysis{
		OverallStrategy: fmt.Sprintf("Automated bin-packing optimization generated %d trips with %.1f%% average efficiency", len(trips), avg),
		PotentialImprovements: []string{
			"Review route optimization opportunities",
			"Consider trip consolidation where possible",
			"Implement real-time truck availability tracking",
		},
		RiskAssessment: risk,
	}
}

func averageUtilization(trips []model.SmartTrip) float64 {
	if len(trips) == 0 {
		return 0
	}
	var sum float64
	for _, t := range trips {
		sum += t.Utilization
	}
	return sum / float64(len(trips))
}

func summarize(trips []model.SmartTrip) model.PlanSummary {
	summary := model.PlanSummary{
		TotalTrips:        len(trips),
		AverageEfficiency: round2(averageUtilization(trips)),
	}
	for _, t := range trips {
		summary.TotalEstimatedFuel += t.EstimatedFuel
		summary.TotalEstimatedDuration += t.EstimatedDuration
	}
	return summary
}

// ValidatePallets reports every problem of a pallet set without failing.
// The trip estimate divides the total weight by the mean payload of the
// active trucks, or 20 t when none are registered.
func (s *PlanningService) ValidatePallets(ctx context.Context, pallets []model.Pallet) (*model.PalletValidation, error) {
	report := &model.PalletValidation{
		Errors:       []string{},
		Warnings:     []string{},
		TotalPallets: len(pallets),
	}
	if len(pallets) == 0 {
		report.Errors = append(report.Errors, "At least one pallet is required")
	}

	seen := make(map[string]bool, len(pallets))
	for i, p := range pallets {
		prefix := fmt.Sprintf("Pallet %d", i+1)

		switch {
		case p.ID == "":
			report.Errors = append(report.Errors, prefix+": ID is required")
		case seen[p.ID]:
			report.Errors = append(report.Errors, fmt.Sprintf("%s: Duplicate ID '%s'", prefix, p.ID))
		default:
			seen[p.ID] = true
		}

		switch {
		case !(p.Weight > 0):
			report.Errors = append(report.Errors, prefix+": Weight must be a positive number")
		case p.Weight > maxPalletWeight:
			report.TotalWeight += p.Weight
			report.Errors = append(report.Errors, prefix+": Weight exceeds 50,000kg limit")
		case p.Weight < lightPalletWeight:
			report.TotalWeight += p.Weight
			report.Warnings = append(report.Warnings, fmt.Sprintf("%s: Very light weight (%gkg)", prefix, p.Weight))
		case p.Weight > heavyPalletWeight:
			report.TotalWeight += p.Weight
			report.Warnings = append(report.Warnings, fmt.Sprintf("%s: Very heavy weight (%gkg)", prefix, p.Weight))
		default:
			report.TotalWeight += p.Weight
		}

		switch {
		case !(p.Height > 0):
			report.Errors = append(report.Errors, prefix+": Height must be a positive number")
		case p.Height > tallPalletHeight:
			report.Warnings = append(report.Warnings, fmt.Sprintf("%s: Very tall pallet (%gcm)", prefix, p.Height))
		}
	}

	capacity, err := s.meanCapacity(ctx)
	if err != nil {
		return nil, err
	}
	report.EstimatedTrips = int(math.Ceil(report.TotalWeight / capacity))
	if report.EstimatedTrips > largeOrderTrips {
		report.Warnings = append(report.Warnings,
			fmt.Sprintf("Large order may require %d trips - consider splitting", report.EstimatedTrips))
	}
	report.Valid = len(report.Errors) == 0
	return report, nil
}

func (s *PlanningService) meanCapacity(ctx context.Context) (float64, error) {
	trucks, err := s.trucks.AvailableTrucks(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to list available trucks: %w", err)
	}
	var sum float64
	for _, t := range trucks {
		sum += t.MaxWeight
	}
	if len(trucks) == 0 || sum <= 0 {
		return fallbackTruckCapacity, nil
	}
	return sum / float64(len(trucks)), nil
}
