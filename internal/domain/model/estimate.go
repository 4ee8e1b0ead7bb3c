package model

// DistanceProfile describes the one-way leg from the warehouse to a destination.
type DistanceProfile struct {
	City          string  `json:"city,omitempty" yaml:"city"`
	OneWayRangeKm float64 `json:"one_way_range_km" yaml:"range_km"`
	OneWayTimeH   float64 `json:"one_way_time_h" yaml:"time_h"`
}

// TruckProfile holds the fuel consumption of a truck, in liters per 100 km.
type TruckProfile struct {
	Model               string  `json:"model,omitempty" yaml:"model"`
	ConsumptionPer100Km float64 `json:"consumption_per_100km" yaml:"consumption_per_100km"`
}

// Estimate is the advisory fuel (liters) and duration (hours) of a trip.
// Fallback is set when the constant-based fallback formulas were used.
type Estimate struct {
	Fuel     int  `json:"fuel"`
	Duration int  `json:"duration"`
	Fallback bool `json:"fallback,omitempty"`
}

// WorkingTime breaks a trip duration down into its components, in hours.
type WorkingTime struct {
	TravelHours  float64 `json:"travel_hours"`
	LoadingHours float64 `json:"loading_hours"`
	RestHours    float64 `json:"rest_hours"`
	TotalHours   float64 `json:"total_hours"`
}

// EfficiencyMetrics scores a trip against its truck and an expected consumption.
type EfficiencyMetrics struct {
	WeightUtilization float64 `json:"weight_utilization"`
	FuelEfficiency    float64 `json:"fuel_efficiency"`
	CostEfficiency    float64 `json:"cost_efficiency"`
}
