package model

import (
	"strings"
	"time"
)

// OrderStatus is the lifecycle state of an order. Apart from CANCELLED, it is
// always derived from the order's trips.
type OrderStatus string

const (
	OrderDraft      OrderStatus = "DRAFT"
	OrderNew        OrderStatus = "NEW"
	OrderInProgress OrderStatus = "IN_PROGRESS"
	OrderDone       OrderStatus = "DONE"
	OrderCancelled  OrderStatus = "CANCELLED"
)

// ParseOrderStatus parses a status name, case-insensitively.
func ParseOrderStatus(s string) (OrderStatus, bool) {
	switch st := OrderStatus(strings.ToUpper(strings.TrimSpace(s))); st {
	case OrderDraft, OrderNew, OrderInProgress, OrderDone, OrderCancelled:
		return st, true
	default:
		return "", false
	}
}

// IsClosed reports whether the order accepts no more trip changes.
func (s OrderStatus) IsClosed() bool {
	return s == OrderCancelled || s == OrderDone
}

// Order is the aggregate root owning pallets and, through trips, their allocation.
//
// CargoWeight, RemainingCargo, TripIDs and Status are projections recomputed by
// Recompute after every mutation. They are never used as input to new logic.
type Order struct {
	ID                   string      `json:"id"`
	OrderNumber          string      `json:"order_number"`
	Pallets              []Pallet    `json:"pallets"`
	CargoWeight          float64     `json:"cargo_weight"`
	RemainingCargo       float64     `json:"remaining_cargo"`
	DestinationAddressID string      `json:"destination_address_id"`
	Status               OrderStatus `json:"status"`
	TripIDs              []string    `json:"trip_ids"`
	Notes                string      `json:"notes,omitempty"`
	CreatedAt            time.Time   `json:"created_at"`
	UpdatedAt            time.Time   `json:"updated_at"`
}

// DeriveOrderStatus computes the order status from the unassigned cargo weight
// and the statuses of the order's trips.
func DeriveOrderStatus(remainingCargo float64, statuses []TripStatus) OrderStatus {
	if remainingCargo > 0 {
		return OrderDraft
	}
	if len(statuses) == 0 {
		return OrderNew
	}

	allTerminal := true
	anyDone := false
	for _, s := range statuses {
		switch s {
		case TripInProgress:
			return OrderInProgress
		case TripDone:
			anyDone = true
		case TripCancelled:
		default:
			allTerminal = false
		}
	}
	if allTerminal && anyDone {
		return OrderDone
	}
	return OrderNew
}

// Pallet returns the pallet with the given id.
func (o *Order) Pallet(id string) (Pallet, bool) {
	for _, p := range o.Pallets {
		if p.ID == id {
			return p, true
		}
	}
	return Pallet{}, false
}

// AssignedPallets maps every pallet id held by a non-cancelled trip to that trip's id.
func AssignedPallets(trips []Trip) map[string]string {
	assigned := make(map[string]string)
	for _, t := range trips {
		if !t.HoldsPallets() {
			continue
		}
		for _, id := range t.PalletIDs {
			assigned[id] = t.ID
		}
	}
	return assigned
}

// UnassignedPallets returns the order's pallets not held by any non-cancelled trip.
func (o *Order) UnassignedPallets(trips []Trip) []Pallet {
	assigned := AssignedPallets(trips)
	out := make([]Pallet, 0, len(o.Pallets))
	for _, p := range o.Pallets {
		if _, ok := assigned[p.ID]; !ok {
			out = append(out, p)
		}
	}
	return out
}

// Recompute refreshes every cached projection from the pallets and the given
// trips, which must be all the trips of the order. A cancelled order stays
// cancelled.
func (o *Order) Recompute(trips []Trip) {
	o.CargoWeight = TotalWeight(o.Pallets)
	o.RemainingCargo = TotalWeight(o.UnassignedPallets(trips))

	o.TripIDs = make([]string, 0, len(trips))
	for _, t := range trips {
		o.TripIDs = append(o.TripIDs, t.ID)
	}

	if o.Status == OrderCancelled {
		return
	}
	o.Status = DeriveOrderStatus(o.RemainingCargo, TripStatuses(trips))
}
