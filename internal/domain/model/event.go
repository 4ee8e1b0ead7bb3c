package model

import "time"

// EventType names an allocation change.
type EventType string

const (
	EventOrderCreated   EventType = "order.created"
	EventOrderUpdated   EventType = "order.updated"
	EventOrderCancelled EventType = "order.cancelled"
	EventOrderDeleted   EventType = "order.deleted"
	EventOrderStatus    EventType = "order.status_changed"
	EventTripCreated    EventType = "trip.created"
	EventTripUpdated    EventType = "trip.updated"
	EventTripStarted    EventType = "trip.started"
	EventTripFinished   EventType = "trip.finished"
	EventTripCancelled  EventType = "trip.cancelled"
	EventTripDeleted    EventType = "trip.deleted"
)

// AllocationEvent records one committed change to an order or its trips.
// From and To hold the status before and after, when the change moved one.
type AllocationEvent struct {
	ID         string    `json:"id"`
	Type       EventType `json:"type"`
	OrderID    string    `json:"order_id"`
	TripID     string    `json:"trip_id,omitempty"`
	TruckID    string    `json:"truck_id,omitempty"`
	PalletIDs  []string  `json:"pallet_ids,omitempty"`
	From       string    `json:"from,omitempty"`
	To         string    `json:"to,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}
