// Package dto defines Data Transfer Objects for HTTP request and response handling.
//
// DTOs are used to decouple the HTTP layer from the domain model,
// providing validation and serialization for API communication.
package dto

import (
	"strings"
	"time"

	"github.com/guttosm/trip-planner/internal/domain/model"
)

// PalletRequest is one pallet of an order, weight in kg and height in cm.
//
// @Description A pallet of cargo
type PalletRequest struct {
	ID     string  `json:"id" binding:"required,palletid" example:"PAL-001"`
	Weight float64 `json:"weight" binding:"required,gt=0" example:"850"`
	Height float64 `json:"height" binding:"required,gt=0" example:"140"`
} // @name PalletRequest

// ToModel converts the request into a domain pallet.
func (p PalletRequest) ToModel() model.Pallet {
	return model.Pallet{ID: strings.TrimSpace(p.ID), Weight: p.Weight, Height: p.Height}
}

func palletsToModel(in []PalletRequest) []model.Pallet {
	if in == nil {
		return nil
	}
	out := make([]model.Pallet, len(in))
	for i, p := range in {
		out[i] = p.ToModel()
	}
	return out
}

// CreateOrderRequest is the body of POST /api/orders.
//
// @Description Request to register an order
// @Example {"pallets": [{"id": "PAL-001", "weight": 850, "height": 140}], "destination_address_id": "65f0c1e2a4b5c6d7e8f90123"}
type CreateOrderRequest struct {
	Pallets              []PalletRequest `json:"pallets" binding:"required,min=1,dive"`
	DestinationAddressID string          `json:"destination_address_id" binding:"required"`
	Notes                string          `json:"notes,omitempty" binding:"max=2000"`
} // @name CreateOrderRequest

// ModelPallets returns the order's pallets as domain pallets.
func (r *CreateOrderRequest) ModelPallets() []model.Pallet {
	return palletsToModel(r.Pallets)
}

// UpdateOrderRequest is the body of PUT /api/orders/{id}. Omitted fields are
// left unchanged; a pallets array replaces the whole set.
//
// @Description Request to edit an order
type UpdateOrderRequest struct {
	Pallets              []PalletRequest `json:"pallets,omitempty" binding:"omitempty,min=1,dive"`
	DestinationAddressID *string         `json:"destination_address_id,omitempty"`
	Notes                *string         `json:"notes,omitempty" binding:"omitempty,max=2000"`
} // @name UpdateOrderRequest

// ModelPallets returns the replacement pallets, or nil when none were sent.
func (r *UpdateOrderRequest) ModelPallets() []model.Pallet {
	return palletsToModel(r.Pallets)
}

// CreateTripRequest is the body of POST /api/trips.
//
// @Description Request to book a truck for pallets of an order
type CreateTripRequest struct {
	OrderID   string     `json:"order_id" binding:"required"`
	TruckID   string     `json:"truck_id" binding:"required"`
	PalletIDs []string   `json:"pallet_ids" binding:"required,min=1,dive,palletid"`
	StartDate *time.Time `json:"start_date,omitempty"`
	Notes     string     `json:"notes,omitempty" binding:"max=2000"`
} // @name CreateTripRequest

// UpdateTripRequest is the body of PUT /api/trips/{id}.
//
// @Description Request to edit a planned trip
type UpdateTripRequest struct {
	TruckID   *string    `json:"truck_id,omitempty"`
	PalletIDs []string   `json:"pallet_ids,omitempty" binding:"omitempty,min=1,dive,palletid"`
	StartDate *time.Time `json:"start_date,omitempty"`
	Notes     *string    `json:"notes,omitempty" binding:"omitempty,max=2000"`
} // @name UpdateTripRequest

// FinishTripRequest is the body of POST /api/trips/{id}/finish.
//
// @Description Actual figures of a completed trip
type FinishTripRequest struct {
	ActualFuel     *int    `json:"actual_fuel,omitempty" binding:"omitempty,gte=0" example:"64"`
	ActualDuration *int    `json:"actual_duration,omitempty" binding:"omitempty,gte=0" example:"7"`
	Notes          *string `json:"notes,omitempty" binding:"omitempty,max=2000"`
} // @name FinishTripRequest

// TruckRequest is the body of POST and PUT /api/trucks. Dimensions are in
// meters and MaxWeight in kg.
//
// @Description Truck registration data
type TruckRequest struct {
	PlateNumber             string  `json:"plate_number" binding:"required" example:"AB-123-C"`
	VINCode                 string  `json:"vin_code" binding:"required" example:"1HGBH41JXMN109186"`
	RegistrationCertificate string  `json:"registration_certificate,omitempty"`
	DriverName              string  `json:"driver_name,omitempty"`
	Width                   float64 `json:"width" binding:"required,gt=0" example:"2.45"`
	Height                  float64 `json:"height" binding:"required,gt=0" example:"2.7"`
	Length                  float64 `json:"length" binding:"required,gt=0" example:"13.6"`
	MaxWeight               float64 `json:"max_weight" binding:"required,gt=0" example:"24000"`
	Model                   string  `json:"model,omitempty"`
	ManufacturingYear       int     `json:"manufacturing_year,omitempty" binding:"omitempty,gte=1900,lte=2100"`
	FuelConsumption         float64 `json:"fuel_consumption,omitempty" binding:"gte=0"`
	Notes                   string  `json:"notes,omitempty" binding:"max=2000"`
	IsActive                *bool   `json:"is_active,omitempty"`
} // @name TruckRequest

// AddressRequest is the body of POST and PUT /api/addresses. RangeKm and
// TimeH are the one-way distance and driving time from the warehouse.
//
// @Description Delivery address
type AddressRequest struct {
	AddressLine1 string  `json:"address_line1" binding:"required"`
	AddressLine2 string  `json:"address_line2,omitempty"`
	City         string  `json:"city" binding:"required" example:"Utrecht"`
	Country      string  `json:"country" binding:"required" example:"NL"`
	Postcode     string  `json:"postcode" binding:"required" example:"3511"`
	State        string  `json:"state,omitempty"`
	RangeKm      float64 `json:"range_km" binding:"gte=0" example:"120"`
	TimeH        float64 `json:"time_h" binding:"gte=0" example:"1.5"`
} // @name AddressRequest

// OptimizeRequest is the body of POST /api/planning/optimize. Either an
// order id or a pallet list is required; commit needs the order id.
//
// @Description Planning request
type OptimizeRequest struct {
	OrderID                  string          `json:"order_id,omitempty"`
	Pallets                  []PalletRequest `json:"pallets,omitempty" binding:"omitempty,dive"`
	DestinationAddressID     string          `json:"destination_address_id,omitempty"`
	PreferredTruckIDs        []string        `json:"preferred_truck_ids,omitempty"`
	IncludeHistoricalContext bool            `json:"include_historical_context,omitempty"`
	Commit                   bool            `json:"commit,omitempty"`
	StartDate                *time.Time      `json:"start_date,omitempty"`
} // @name OptimizeRequest

// Validate checks the cross-field rules binding tags cannot express.
func (r *OptimizeRequest) Validate() error {
	if r.OrderID == "" && len(r.Pallets) == 0 {
		return &ValidationError{Field: "order_id", Message: "order_id or pallets is required"}
	}
	if r.Commit && r.OrderID == "" {
		return &ValidationError{Field: "order_id", Message: "is required to commit a plan"}
	}
	return nil
}

// ModelPallets returns the explicit pallets as domain pallets.
func (r *OptimizeRequest) ModelPallets() []model.Pallet {
	return palletsToModel(r.Pallets)
}

// ValidatePalletsRequest is the body of POST /api/planning/validate-pallets.
// Pallets are deliberately unconstrained: every problem is reported in the
// response instead of rejecting the request.
//
// @Description Pallets to check
type ValidatePalletsRequest struct {
	Pallets []model.Pallet `json:"pallets"`
} // @name ValidatePalletsRequest

// EstimateQuery holds the query of GET /api/estimates.
type EstimateQuery struct {
	TruckID              string  `form:"truck_id" binding:"required"`
	DestinationAddressID string  `form:"destination_address_id"`
	Weight               float64 `form:"weight" binding:"gte=0"`
	PalletCount          int     `form:"pallet_count" binding:"gte=0"`
}

// OrderListQuery holds the query of GET /api/orders.
type OrderListQuery struct {
	ListQuery
	Status               string `form:"status" binding:"omitempty,oneof=DRAFT NEW IN_PROGRESS DONE CANCELLED"`
	DestinationAddressID string `form:"destination_address_id"`
}

// TripListQuery holds the query of GET /api/trips. Status may list several
// statuses separated by commas.
type TripListQuery struct {
	OrderID string `form:"order_id"`
	TruckID string `form:"truck_id"`
	Status  string `form:"status"`
	Limit   int    `form:"limit" binding:"omitempty,gte=1,lte=500"`
}

// TruckListQuery holds the query of GET /api/trucks.
type TruckListQuery struct {
	ListQuery
	ActiveOnly bool `form:"active_only"`
}

// TrendsQuery holds the query of GET /api/planning/performance-trends.
type TrendsQuery struct {
	Days int `form:"days" binding:"omitempty,gte=1,lte=365"`
}

// ListQuery holds the paging query shared by list endpoints.
type ListQuery struct {
	Limit int `form:"limit" binding:"omitempty,gte=1,lte=500"`
	Skip  int `form:"skip" binding:"omitempty,gte=0"`
}

// LimitOr returns the requested limit, or def when none was given.
func (q ListQuery) LimitOr(def int) int {
	if q.Limit <= 0 {
		return def
	}
	return q.Limit
}

// ValidationError represents a field validation error.
type ValidationError struct {
	Field   string
	Message string
}

// Error returns the error message for ValidationError.
func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Message
}
