package model

import (
	"strings"
	"time"

	"github.com/guttosm/trip-planner/internal/apperror"
)

// TripStatus is the lifecycle state of a trip.
type TripStatus string

const (
	TripPlanned    TripStatus = "PLANNED"
	TripInProgress TripStatus = "IN_PROGRESS"
	TripDone       TripStatus = "DONE"
	TripCancelled  TripStatus = "CANCELLED"
)

// tripTransitions is the adjacency of the trip state machine. DONE and
// CANCELLED have no outgoing edges.
var tripTransitions = map[TripStatus][]TripStatus{
	TripPlanned:    {TripInProgress, TripCancelled},
	TripInProgress: {TripDone, TripCancelled},
}

// ParseTripStatus parses a status name. "NEW" is accepted as an alias of PLANNED.
func ParseTripStatus(s string) (TripStatus, bool) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "PLANNED", "NEW":
		return TripPlanned, true
	case "IN_PROGRESS":
		return TripInProgress, true
	case "DONE":
		return TripDone, true
	case "CANCELLED":
		return TripCancelled, true
	default:
		return "", false
	}
}

// IsTerminal reports whether no transition leaves s.
func (s TripStatus) IsTerminal() bool {
	return s == TripDone || s == TripCancelled
}

// CanTransition reports whether from -> to is an edge of the trip state machine.
func CanTransition(from, to TripStatus) bool {
	for _, next := range tripTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Trip binds one truck to a subset of one order's pallets.
type Trip struct {
	ID                string     `json:"id"`
	TripNumber        string     `json:"trip_number"`
	OrderID           string     `json:"order_id"`
	TruckID           string     `json:"truck_id"`
	PalletIDs         []string   `json:"pallet_ids"`
	Weight            float64    `json:"weight"`
	Status            TripStatus `json:"status"`
	StartDate         time.Time  `json:"start_date"`
	EstimatedFuel     int        `json:"estimated_fuel"`
	EstimatedDuration int        `json:"estimated_duration"`
	ActualFuel        *int       `json:"actual_fuel,omitempty"`
	ActualDuration    *int       `json:"actual_duration,omitempty"`
	Notes             string     `json:"notes,omitempty"`
	StartedAt         *time.Time `json:"started_at,omitempty"`
	FinishedAt        *time.Time `json:"finished_at,omitempty"`
	CancelledAt       *time.Time `json:"cancelled_at,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

// HoldsPallets reports whether the trip's pallets count as assigned. Only a
// cancelled trip releases them; a DONE trip consumes them for good.
func (t Trip) HoldsPallets() bool {
	return t.Status != TripCancelled
}

// BooksTruck reports whether the trip keeps its truck busy.
func (t Trip) BooksTruck() bool {
	return t.Status == TripPlanned || t.Status == TripInProgress
}

// TransitionTo moves the trip to the target status and stamps the matching
// timestamp. An edge outside the state machine leaves the trip untouched.
func (t *Trip) TransitionTo(to TripStatus, now time.Time) error {
	if !CanTransition(t.Status, to) {
		return &apperror.InvalidTransitionError{
			Entity: "trip",
			ID:     t.ID,
			From:   string(t.Status),
			To:     string(to),
		}
	}

	t.Status = to
	t.UpdatedAt = now
	switch to {
	case TripInProgress:
		t.StartedAt = &now
	case TripDone:
		t.FinishedAt = &now
	case TripCancelled:
		t.CancelledAt = &now
	}
	return nil
}

// TripStatuses extracts the status of every trip, in order.
func TripStatuses(trips []Trip) []TripStatus {
	out := make([]TripStatus, len(trips))
	for i, t := range trips {
		out[i] = t.Status
	}
	return out
}
