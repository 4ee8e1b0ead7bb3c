// Package apperror defines the domain error taxonomy shared by the allocation
// core, the optimizer and the HTTP layer.
//
// Every error carries enough context (entity ids, numeric limits) for a caller
// to act on it without re-reading state. Use errors.As to inspect a specific
// type, or the Is* helpers for a quick kind check.
package apperror

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Machine-readable error codes, returned by Code.
const (
	CodeValidation        = "validation_error"
	CodeNotFound          = "not_found"
	CodeConflict          = "conflict"
	CodeCapacityExceeded  = "capacity_exceeded"
	CodeInvalidTransition = "invalid_transition"
	CodeInfeasible        = "infeasible_allocation"
	CodeInternal          = "internal_error"
)

// ConflictReason narrows a ConflictError to the rule that was violated.
type ConflictReason string

const (
	// ReasonPalletAlreadyAssigned means the pallet belongs to another non-cancelled trip.
	ReasonPalletAlreadyAssigned ConflictReason = "pallet_already_assigned"
	// ReasonTruckBusy means the truck is bound to a PLANNED or IN_PROGRESS trip.
	ReasonTruckBusy ConflictReason = "truck_busy"
	// ReasonDuplicateID means an id appears twice where it must be unique.
	ReasonDuplicateID ConflictReason = "duplicate_id"
	// ReasonOrderClosed means the order is CANCELLED or DONE.
	ReasonOrderClosed ConflictReason = "order_closed"
	// ReasonOrderInProgress means the order has an IN_PROGRESS trip.
	ReasonOrderInProgress ConflictReason = "order_in_progress"
	// ReasonTruckInactive means the truck is not active.
	ReasonTruckInactive ConflictReason = "truck_inactive"
	// ReasonTripLocked means the trip left PLANNED and its load can no longer change.
	ReasonTripLocked ConflictReason = "trip_locked"
	// ReasonPalletInUse means the pallet is referenced by an active trip.
	ReasonPalletInUse ConflictReason = "pallet_in_use"
	// ReasonAddressInUse means the address is referenced by an order.
	ReasonAddressInUse ConflictReason = "address_in_use"
)

// CapacityLimit names the truck limit a load violated.
type CapacityLimit string

const (
	LimitSlots  CapacityLimit = "slots"
	LimitWeight CapacityLimit = "weight"
	LimitHeight CapacityLimit = "height"
)

// ValidationError reports malformed input.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return e.Field + ": " + e.Message
}

// NewValidation creates a ValidationError.
func NewValidation(field, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// NotFoundError reports an unknown reference. Scope is set when the lookup was
// restricted to a parent, e.g. a pallet id looked up inside one order.
type NotFoundError struct {
	Entity string
	ID     string
	Scope  string
}

func (e *NotFoundError) Error() string {
	if e.Scope != "" {
		return fmt.Sprintf("%s %q not found in %s", e.Entity, e.ID, e.Scope)
	}
	return fmt.Sprintf("%s %q not found", e.Entity, e.ID)
}

// NewNotFound creates a NotFoundError.
func NewNotFound(entity, id string) *NotFoundError {
	return &NotFoundError{Entity: entity, ID: id}
}

// ConflictError reports a request that clashes with current state.
type ConflictError struct {
	Reason    ConflictReason
	Entity    string
	ID        string
	TruckID   string
	TripID    string
	PalletIDs []string
	Message   string
}

func (e *ConflictError) Error() string {
	var b strings.Builder
	b.WriteString("conflict: ")
	b.WriteString(string(e.Reason))
	if e.Entity != "" {
		fmt.Fprintf(&b, " (%s %s)", e.Entity, e.ID)
	}
	if e.TruckID != "" {
		fmt.Fprintf(&b, " truck=%s", e.TruckID)
	}
	if e.TripID != "" {
		fmt.Fprintf(&b, " trip=%s", e.TripID)
	}
	if len(e.PalletIDs) > 0 {
		fmt.Fprintf(&b, " pallets=[%s]", strings.Join(e.PalletIDs, ","))
	}
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	return b.String()
}

// CapacityExceededError reports a load that violates one limit of a truck.
// Shortfall is how far the load is over the limit, in the limit's unit
// (slots, kg or meters).
type CapacityExceededError struct {
	TruckID   string
	Limit     CapacityLimit
	PalletIDs []string
	Max       float64
	Actual    float64
	Shortfall float64
}

func (e *CapacityExceededError) Error() string {
	return fmt.Sprintf("truck %s %s capacity exceeded: %.2f > %.2f (over by %.2f) pallets=[%s]",
		e.TruckID, e.Limit, e.Actual, e.Max, e.Shortfall, strings.Join(e.PalletIDs, ","))
}

// InvalidTransitionError reports a status change outside the allowed graph.
type InvalidTransitionError struct {
	Entity string
	ID     string
	From   string
	To     string
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid %s transition %s -> %s (id %s)", e.Entity, e.From, e.To, e.ID)
}

// InfeasibleAllocationError reports that no available truck can carry a pallet.
// The whole optimization fails; no partial result is produced.
type InfeasibleAllocationError struct {
	PalletID string
	Weight   float64
	Height   float64
	Reason   string
}

func (e *InfeasibleAllocationError) Error() string {
	if e.PalletID == "" {
		return "infeasible allocation: " + e.Reason
	}
	return fmt.Sprintf("infeasible allocation: pallet %s (weight %.2fkg, height %.2fcm): %s",
		e.PalletID, e.Weight, e.Height, e.Reason)
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var target *ValidationError
	return errors.As(err, &target)
}

// IsNotFound reports whether err is a NotFoundError.
func IsNotFound(err error) bool {
	var target *NotFoundError
	return errors.As(err, &target)
}

// IsConflict reports whether err is a ConflictError, optionally of one of the given reasons.
func IsConflict(err error, reasons ...ConflictReason) bool {
	var target *ConflictError
	if !errors.As(err, &target) {
		return false
	}
	if len(reasons) == 0 {
		return true
	}
	for _, r := range reasons {
		if target.Reason == r {
			return true
		}
	}
	return false
}

// IsCapacityExceeded reports whether err is a CapacityExceededError.
func IsCapacityExceeded(err error) bool {
	var target *CapacityExceededError
	return errors.As(err, &target)
}

// IsInvalidTransition reports whether err is an InvalidTransitionError.
func IsInvalidTransition(err error) bool {
	var target *InvalidTransitionError
	return errors.As(err, &target)
}

// IsInfeasible reports whether err is an InfeasibleAllocationError.
func IsInfeasible(err error) bool {
	var target *InfeasibleAllocationError
	return errors.As(err, &target)
}

// Code returns the machine-readable code for err.
func Code(err error) string {
	switch {
	case IsValidation(err):
		return CodeValidation
	case IsNotFound(err):
		return CodeNotFound
	case IsConflict(err):
		return CodeConflict
	case IsCapacityExceeded(err):
		return CodeCapacityExceeded
	case IsInvalidTransition(err):
		return CodeInvalidTransition
	case IsInfeasible(err):
		return CodeInfeasible
	default:
		return CodeInternal
	}
}

// HTTPStatus maps err to the HTTP status the API answers with.
func HTTPStatus(err error) int {
	switch Code(err) {
	case CodeValidation:
		return http.StatusBadRequest
	case CodeNotFound:
		return http.StatusNotFound
	case CodeConflict, CodeInvalidTransition:
		return http.StatusConflict
	case CodeCapacityExceeded, CodeInfeasible:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// Details flattens the context carried by err into string pairs for API responses.
func Details(err error) map[string]string {
	var (
		validation *ValidationError
		notFound   *NotFoundError
		conflict   *ConflictError
		capacity   *CapacityExceededError
		transition *InvalidTransitionError
		infeasible *InfeasibleAllocationError
	)

	switch {
	case errors.As(err, &validation):
		if validation.Field == "" {
			return nil
		}
		return map[string]string{"field": validation.Field}
	case errors.As(err, &notFound):
		d := map[string]string{"entity": notFound.Entity, "id": notFound.ID}
		if notFound.Scope != "" {
			d["scope"] = notFound.Scope
		}
		return d
	case errors.As(err, &conflict):
		d := map[string]string{"reason": string(conflict.Reason)}
		if conflict.Entity != "" {
			d["entity"] = conflict.Entity
			d["id"] = conflict.ID
		}
		if conflict.TruckID != "" {
			d["truck_id"] = conflict.TruckID
		}
		if conflict.TripID != "" {
			d["trip_id"] = conflict.TripID
		}
		if len(conflict.PalletIDs) > 0 {
			d["pallet_ids"] = strings.Join(conflict.PalletIDs, ",")
		}
		return d
	case errors.As(err, &capacity):
		return map[string]string{
			"truck_id":   capacity.TruckID,
			"limit":      string(capacity.Limit),
			"pallet_ids": strings.Join(capacity.PalletIDs, ","),
			"max":        formatFloat(capacity.Max),
			"actual":     formatFloat(capacity.Actual),
			"shortfall":  formatFloat(capacity.Shortfall),
		}
	case errors.As(err, &transition):
		return map[string]string{
			"entity": transition.Entity,
			"id":     transition.ID,
			"from":   transition.From,
			"to":     transition.To,
		}
	case errors.As(err, &infeasible):
		d := map[string]string{"reason": infeasible.Reason}
		if infeasible.PalletID != "" {
			d["pallet_id"] = infeasible.PalletID
			d["weight"] = formatFloat(infeasible.Weight)
			d["height"] = formatFloat(infeasible.Height)
		}
		return d
	default:
		return nil
	}
}

func formatFloat(v float64) string {
	return strings.TrimRight(strings.TrimRight(fmt.Sprintf("%.2f", v), "0"), ".")
}
