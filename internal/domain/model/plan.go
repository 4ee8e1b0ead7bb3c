package model

import "time"

// Route is the simplified round trip attached to a trip draft.
type Route struct {
	StartPoint        string  `json:"start_point"`
	EndPoint          string  `json:"end_point"`
	EstimatedDistance float64 `json:"estimated_distance"`
	EstimatedTime     int     `json:"estimated_time"`
}

// TripDraft is one bin produced by the optimizer: a truck and the pallets
// tentatively loaded on it. Utilization is a percentage of MaxWeight.
type TripDraft struct {
	Truck             Truck    `json:"truck"`
	Pallets           []Pallet `json:"pallets"`
	Weight            float64  `json:"estimated_weight"`
	Utilization       float64  `json:"utilization"`
	EstimatedFuel     int      `json:"estimated_fuel"`
	EstimatedDuration int      `json:"estimated_duration"`
	Route             Route    `json:"route"`
}

// PalletIDs returns the ids of the draft's pallets.
func (d TripDraft) PalletIDs() []string {
	return PalletIDs(d.Pallets)
}

// Plan is the optimizer output. Efficiency is the used weight over the summed
// capacity of every bin, as a percentage.
type Plan struct {
	Trips         []TripDraft `json:"trips"`
	TotalWeight   float64     `json:"total_weight"`
	TotalCapacity float64     `json:"total_capacity"`
	Efficiency    float64     `json:"efficiency"`
}

// ReusesTrucks reports whether two drafts of the plan share a truck. Such a
// plan describes consecutive runs and cannot be committed at once.
func (p *Plan) ReusesTrucks() bool {
	seen := make(map[string]struct{}, len(p.Trips))
	for _, d := range p.Trips {
		if _, ok := seen[d.Truck.ID]; ok {
			return true
		}
		seen[d.Truck.ID] = struct{}{}
	}
	return false
}

// TripAnalysis is the narrative attached to one trip draft.
type TripAnalysis struct {
	Reasoning    string   `json:"reasoning"`
	Risks        []string `json:"risks"`
	Alternatives []string `json:"alternatives"`
	Confidence   int      `json:"confidence"`
}

// PlanAnalysis is the narrative attached to a whole plan.
type PlanAnalysis struct {
	OverallStrategy       string   `json:"overall_strategy"`
	PotentialImprovements []string `json:"potential_improvements"`
	RiskAssessment        string   `json:"risk_assessment"`
}

// PerformanceMetrics summarizes completed trips of similar orders.
type PerformanceMetrics struct {
	AverageFuelEfficiency  float64 `json:"average_fuel_efficiency"`
	AverageLoadUtilization float64 `json:"average_load_utilization"`
	OnTimeDeliveryRate     float64 `json:"on_time_delivery_rate"`
}

// HistoricalContext describes how similar past orders went.
type HistoricalContext struct {
	SimilarOrdersCount int                `json:"similar_orders_count"`
	AverageTripsNeeded float64            `json:"average_trips_needed"`
	CommonIssues       []string           `json:"common_issues"`
	SeasonalFactors    []string           `json:"seasonal_factors"`
	PerformanceMetrics PerformanceMetrics `json:"performance_metrics"`
}

// SmartTrip is a trip draft enriched with estimates breakdown and analysis.
type SmartTrip struct {
	TripDraft
	Analysis    TripAnalysis      `json:"analysis"`
	Efficiency  EfficiencyMetrics `json:"efficiency"`
	WorkingTime WorkingTime       `json:"working_time"`
}

// PlanSummary aggregates the trips of an optimization.
type PlanSummary struct {
	TotalTrips             int     `json:"total_trips"`
	AverageEfficiency      float64 `json:"average_efficiency"`
	TotalEstimatedFuel     int     `json:"total_estimated_fuel"`
	TotalEstimatedDuration int     `json:"total_estimated_duration"`
}

// OptimizationResult is the full answer of a planning request. CommittedTrips
// is set when the plan was committed as trips.
type OptimizationResult struct {
	OrderID           string             `json:"order_id,omitempty"`
	Trips             []SmartTrip        `json:"trips"`
	TotalPallets      int                `json:"total_pallets"`
	TotalWeight       float64            `json:"total_weight"`
	Efficiency        float64            `json:"efficiency"`
	Summary           PlanSummary        `json:"summary"`
	Analysis          *PlanAnalysis      `json:"analysis,omitempty"`
	HistoricalContext *HistoricalContext `json:"historical_context,omitempty"`
	CommittedTrips    []Trip             `json:"committed_trips,omitempty"`
	ProcessingTime    time.Duration      `json:"processing_time_ns"`
}

// PalletValidation is a non-failing report on a pallet set.
type PalletValidation struct {
	Valid          bool     `json:"valid"`
	Errors         []string `json:"errors"`
	Warnings       []string `json:"warnings"`
	TotalWeight    float64  `json:"total_weight"`
	TotalPallets   int      `json:"total_pallets"`
	EstimatedTrips int      `json:"estimated_trips"`
}

// PerformanceTrends summarizes orders completed over the last Period days.
type PerformanceTrends struct {
	Period               int     `json:"period"`
	TotalOrders          int     `json:"total_orders"`
	TotalTrips           int     `json:"total_trips"`
	AverageTripsPerOrder float64 `json:"average_trips_per_order"`
	FuelEfficiencyTrend  float64 `json:"fuel_efficiency_trend"`
	UtilizationTrend     float64 `json:"utilization_trend"`
}
