package model

import (
	"math"
	"time"

	"github.com/guttosm/trip-planner/internal/apperror"
)

// Euro pallet footprint and the clearance lost at the cargo door, in meters.
const (
	EuroPalletWidth  = 1.2
	EuroPalletLength = 0.8
	DoorClearance    = 0.06
)

// Truck is a vehicle that can be bound to trips. Dimensions are in meters,
// MaxWeight in kilograms.
//
// MaxPallets is derived from Width and Length when the truck is registered.
// BookingVersion is bumped every time a trip books the truck.
type Truck struct {
	ID                      string    `json:"id"`
	PlateNumber             string    `json:"plate_number"`
	VINCode                 string    `json:"vin_code"`
	RegistrationCertificate string    `json:"registration_certificate"`
	DriverName              string    `json:"driver_name"`
	Width                   float64   `json:"width"`
	Height                  float64   `json:"height"`
	Length                  float64   `json:"length"`
	MaxWeight               float64   `json:"max_weight"`
	MaxPallets              int       `json:"max_pallets"`
	Model                   string    `json:"model,omitempty"`
	ManufacturingYear       int       `json:"manufacturing_year,omitempty"`
	FuelConsumption         float64   `json:"fuel_consumption,omitempty"`
	Notes                   string    `json:"notes,omitempty"`
	IsActive                bool      `json:"is_active"`
	BookingVersion          int64     `json:"booking_version"`
	CreatedAt               time.Time `json:"created_at"`
	UpdatedAt               time.Time `json:"updated_at"`
}

// CalculateMaxPallets returns how many euro pallets fit on a cargo floor of the
// given width and length, trying both pallet orientations.
func CalculateMaxPallets(width, length float64) int {
	usable := length - DoorClearance
	if width <= 0 || usable <= 0 {
		return 0
	}

	fit := func(space, side float64) int {
		// Tolerate float noise such as 2.4/1.2 = 1.9999999.
		return int(math.Floor(space/side + 1e-9))
	}

	straight := fit(width, EuroPalletWidth) * fit(usable, EuroPalletLength)
	rotated := fit(width, EuroPalletLength) * fit(usable, EuroPalletWidth)
	if rotated > straight {
		return rotated
	}
	return straight
}

// CanCarry reports whether an empty truck could take the pallet on its own.
func (t Truck) CanCarry(p Pallet) bool {
	return p.Weight <= t.MaxWeight && t.MaxPallets >= 1 && p.HeightMeters() <= t.Height
}

// CheckLoad verifies that the pallets fit the truck. Slots are checked first,
// then weight, then height. The returned error names the offending pallets and
// how far over the limit the load is.
func (t Truck) CheckLoad(pallets []Pallet) error {
	if len(pallets) > t.MaxPallets {
		return &apperror.CapacityExceededError{
			TruckID:   t.ID,
			Limit:     apperror.LimitSlots,
			PalletIDs: PalletIDs(pallets[t.MaxPallets:]),
			Max:       float64(t.MaxPallets),
			Actual:    float64(len(pallets)),
			Shortfall: float64(len(pallets) - t.MaxPallets),
		}
	}

	if total := TotalWeight(pallets); total > t.MaxWeight {
		// Report the pallets that push the cumulative load over the limit.
		var running float64
		var over []string
		for _, p := range pallets {
			running += p.Weight
			if running > t.MaxWeight {
				over = append(over, p.ID)
			}
		}
		return &apperror.CapacityExceededError{
			TruckID:   t.ID,
			Limit:     apperror.LimitWeight,
			PalletIDs: over,
			Max:       t.MaxWeight,
			Actual:    total,
			Shortfall: total - t.MaxWeight,
		}
	}

	var tooTall []string
	var tallest float64
	for _, p := range pallets {
		h := p.HeightMeters()
		if h > t.Height {
			tooTall = append(tooTall, p.ID)
		}
		if h > tallest {
			tallest = h
		}
	}
	if len(tooTall) > 0 {
		return &apperror.CapacityExceededError{
			TruckID:   t.ID,
			Limit:     apperror.LimitHeight,
			PalletIDs: tooTall,
			Max:       t.Height,
			Actual:    tallest,
			Shortfall: tallest - t.Height,
		}
	}

	return nil
}
