package repository

import (
	"errors"
	"time"

	"github.com/guttosm/trip-planner/internal/apperror"
	"github.com/guttosm/trip-planner/internal/domain/model"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

// objectID parses a hex id. A malformed id cannot name a stored document, so
// it is reported as not found.
func objectID(entity, id string) (primitive.ObjectID, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return primitive.NilObjectID, apperror.NewNotFound(entity, id)
	}
	return oid, nil
}

func objectIDs(entity string, ids []string) ([]primitive.ObjectID, error) {
	out := make([]primitive.ObjectID, 0, len(ids))
	for _, id := range ids {
		oid, err := objectID(entity, id)
		if err != nil {
			return nil, err
		}
		out = append(out, oid)
	}
	return out, nil
}

func hexIDs(ids []primitive.ObjectID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.Hex()
	}
	return out
}

// mapError translates driver errors into the domain taxonomy.
func mapError(err error, entity, id string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, mongo.ErrNoDocuments):
		return apperror.NewNotFound(entity, id)
	case mongo.IsDuplicateKeyError(err):
		return &apperror.ConflictError{
			Reason:  apperror.ReasonDuplicateID,
			Entity:  entity,
			ID:      id,
			Message: "a " + entity + " with the same unique key already exists",
		}
	default:
		return err
	}
}

// OrderDocument is the MongoDB shape of an order. PalletCount is stored so
// similar-order queries can filter on it.
type OrderDocument struct {
	ID                   primitive.ObjectID   `bson:"_id,omitempty"`
	OrderNumber          string               `bson:"order_number"`
	Pallets              []model.Pallet       `bson:"pallets"`
	PalletCount          int                  `bson:"pallet_count"`
	CargoWeight          float64              `bson:"cargo_weight"`
	RemainingCargo       float64              `bson:"remaining_cargo"`
	DestinationAddressID primitive.ObjectID   `bson:"destination_address_id"`
	Status               string               `bson:"status"`
	TripIDs              []primitive.ObjectID `bson:"trip_ids"`
	Notes                string               `bson:"notes,omitempty"`
	CreatedAt            time.Time            `bson:"created_at"`
	UpdatedAt            time.Time            `bson:"updated_at"`
}

func newOrderDocument(o *model.Order) (*OrderDocument, error) {
	addressID, err := objectID("address", o.DestinationAddressID)
	if err != nil {
		return nil, err
	}
	tripIDs, err := objectIDs("trip", o.TripIDs)
	if err != nil {
		return nil, err
	}
	return &OrderDocument{
		OrderNumber:          o.OrderNumber,
		Pallets:              o.Pallets,
		PalletCount:          len(o.Pallets),
		CargoWeight:          o.CargoWeight,
		RemainingCargo:       o.RemainingCargo,
		DestinationAddressID: addressID,
		Status:               string(o.Status),
		TripIDs:              tripIDs,
		Notes:                o.Notes,
		CreatedAt:            o.CreatedAt,
		UpdatedAt:            o.UpdatedAt,
	}, nil
}

func (d *OrderDocument) toModel() model.Order {
	pallets := d.Pallets
	if pallets == nil {
		pallets = []model.Pallet{}
	}
	return model.Order{
		ID:                   d.ID.Hex(),
		OrderNumber:          d.OrderNumber,
		Pallets:              pallets,
		CargoWeight:          d.CargoWeight,
		RemainingCargo:       d.RemainingCargo,
		DestinationAddressID: d.DestinationAddressID.Hex(),
		Status:               model.OrderStatus(d.Status),
		TripIDs:              hexIDs(d.TripIDs),
		Notes:                d.Notes,
		CreatedAt:            d.CreatedAt,
		UpdatedAt:            d.UpdatedAt,
	}
}

// TripDocument is the MongoDB shape of a trip.
type TripDocument struct {
	ID                primitive.ObjectID `bson:"_id,omitempty"`
	TripNumber        string             `bson:"trip_number"`
	OrderID           primitive.ObjectID `bson:"order_id"`
	TruckID           primitive.ObjectID `bson:"truck_id"`
	PalletIDs         []string           `bson:"pallet_ids"`
	Weight            float64            `bson:"weight"`
	Status            string             `bson:"status"`
	StartDate         time.Time          `bson:"start_date"`
	EstimatedFuel     int                `bson:"estimated_fuel"`
	EstimatedDuration int                `bson:"estimated_duration"`
	ActualFuel        *int               `bson:"actual_fuel,omitempty"`
	ActualDuration    *int               `bson:"actual_duration,omitempty"`
	Notes             string             `bson:"notes,omitempty"`
	StartedAt         *time.Time         `bson:"started_at,omitempty"`
	FinishedAt        *time.Time         `bson:"finished_at,omitempty"`
	CancelledAt       *time.Time         `bson:"cancelled_at,omitempty"`
	CreatedAt         time.Time          `bson:"created_at"`
	UpdatedAt         time.Time          `bson:"updated_at"`
}

func newTripDocument(t *model.Trip) (*TripDocument, error) {
	orderID, err := objectID("order", t.OrderID)
	if err != nil {
		return nil, err
	}
	truckID, err := objectID("truck", t.TruckID)
	if err != nil {
		return nil, err
	}
	return &TripDocument{
		TripNumber:        t.TripNumber,
		OrderID:           orderID,
		TruckID:           truckID,
		PalletIDs:         t.PalletIDs,
		Weight:            t.Weight,
		Status:            string(t.Status),
		StartDate:         t.StartDate,
		EstimatedFuel:     t.EstimatedFuel,
		EstimatedDuration: t.EstimatedDuration,
		ActualFuel:        t.ActualFuel,
		ActualDuration:    t.ActualDuration,
		Notes:             t.Notes,
		StartedAt:         t.StartedAt,
		FinishedAt:        t.FinishedAt,
		CancelledAt:       t.CancelledAt,
		CreatedAt:         t.CreatedAt,
		UpdatedAt:         t.UpdatedAt,
	}, nil
}

func (d *TripDocument) toModel() model.Trip {
	palletIDs := d.PalletIDs
	if palletIDs == nil {
		palletIDs = []string{}
	}
	return model.Trip{
		ID:                d.ID.Hex(),
		TripNumber:        d.TripNumber,
		OrderID:           d.OrderID.Hex(),
		TruckID:           d.TruckID.Hex(),
		PalletIDs:         palletIDs,
		Weight:            d.Weight,
		Status:            model.TripStatus(d.Status),
		StartDate:         d.StartDate,
		EstimatedFuel:     d.EstimatedFuel,
		EstimatedDuration: d.EstimatedDuration,
		ActualFuel:        d.ActualFuel,
		ActualDuration:    d.ActualDuration,
		Notes:             d.Notes,
		StartedAt:         d.StartedAt,
		FinishedAt:        d.FinishedAt,
		CancelledAt:       d.CancelledAt,
		CreatedAt:         d.CreatedAt,
		UpdatedAt:         d.UpdatedAt,
	}
}

// TruckDocument is the MongoDB shape of a truck.
type TruckDocument struct {
	ID                      primitive.ObjectID `bson:"_id,omitempty"`
	PlateNumber             string             `bson:"plate_number"`
	VINCode                 string             `bson:"vin_code"`
	RegistrationCertificate string             `bson:"registration_certificate"`
	DriverName              string             `bson:"driver_name"`
	Width                   float64            `bson:"width"`
	Height                  float64            `bson:"height"`
	Length                  float64            `bson:"length"`
	MaxWeight               float64            `bson:"max_weight"`
	MaxPallets              int                `bson:"max_pallets"`
	Model                   string             `bson:"model,omitempty"`
	ManufacturingYear       int                `bson:"manufacturing_year,omitempty"`
	FuelConsumption         float64            `bson:"fuel_consumption,omitempty"`
	Notes                   string             `bson:"notes,omitempty"`
	IsActive                bool               `bson:"is_active"`
	BookingVersion          int64              `bson:"booking_version"`
	CreatedAt               time.Time          `bson:"created_at"`
	UpdatedAt               time.Time          `bson:"updated_at"`
}

func newTruckDocument(t *model.Truck) *TruckDocument {
	return &TruckDocument{
		PlateNumber:             t.PlateNumber,
		VINCode:                 t.VINCode,
		RegistrationCertificate: t.RegistrationCertificate,
		DriverName:              t.DriverName,
		Width:                   t.Width,
		Height:                  t.Height,
		Length:                  t.Length,
		MaxWeight:               t.MaxWeight,
		MaxPallets:              t.MaxPallets,
		Model:                   t.Model,
		ManufacturingYear:       t.ManufacturingYear,
		FuelConsumption:         t.FuelConsumption,
		Notes:                   t.Notes,
		IsActive:                t.IsActive,
		BookingVersion:          t.BookingVersion,
		CreatedAt:               t.CreatedAt,
		UpdatedAt:               t.UpdatedAt,
	}
}

func (d *TruckDocument) toModel() model.Truck {
	return model.Truck{
		ID:                      d.ID.Hex(),
		PlateNumber:             d.PlateNumber,
		VINCode:                 d.VINCode,
		RegistrationCertificate: d.RegistrationCertificate,
		DriverName:              d.DriverName,
		Width:                   d.Width,
		Height:                  d.Height,
		Length:                  d.Length,
		MaxWeight:               d.MaxWeight,
		MaxPallets:              d.MaxPallets,
		Model:                   d.Model,
		ManufacturingYear:       d.ManufacturingYear,
		FuelConsumption:         d.FuelConsumption,
		Notes:                   d.Notes,
		IsActive:                d.IsActive,
		BookingVersion:          d.BookingVersion,
		CreatedAt:               d.CreatedAt,
		UpdatedAt:               d.UpdatedAt,
	}
}

// AddressDocument is the MongoDB shape of an address.
type AddressDocument struct {
	ID           primitive.ObjectID `bson:"_id,omitempty"`
	AddressLine1 string             `bson:"address_line1"`
	AddressLine2 string             `bson:"address_line2,omitempty"`
	City         string             `bson:"city"`
	Country      string             `bson:"country"`
	Postcode     string             `bson:"postcode"`
	State        string             `bson:"state,omitempty"`
	RangeKm      float64            `bson:"range_km,omitempty"`
	TimeH        float64            `bson:"time_h,omitempty"`
	CreatedAt    time.Time          `bson:"created_at"`
	UpdatedAt    time.Time          `bson:"updated_at"`
}

func newAddressDocument(a *model.Address) *AddressDocument {
	return &AddressDocument{
		AddressLine1: a.AddressLine1,
		AddressLine2: a.AddressLine2,
		City:         a.City,
		Country:      a.Country,
		Postcode:     a.Postcode,
		State:        a.State,
		RangeKm:      a.RangeKm,
		TimeH:        a.TimeH,
		CreatedAt:    a.CreatedAt,
		UpdatedAt:    a.UpdatedAt,
	}
}

func (d *AddressDocument) toModel() model.Address {
	return model.Address{
		ID:           d.ID.Hex(),
		AddressLine1: d.AddressLine1,
		AddressLine2: d.AddressLine2,
		City:         d.City,
		Country:      d.Country,
		Postcode:     d.Postcode,
		State:        d.State,
		RangeKm:      d.RangeKm,
		TimeH:        d.TimeH,
		CreatedAt:    d.CreatedAt,
		UpdatedAt:    d.UpdatedAt,
	}
}

// EventDocument is the MongoDB shape of an allocation event. Ids are kept as
// strings since events outlive the documents they reference.
type EventDocument struct {
	ID         primitive.ObjectID `bson:"_id,omitempty"`
	EventID    string             `bson:"event_id"`
	Type       string             `bson:"type"`
	OrderID    string             `bson:"order_id"`
	TripID     string             `bson:"trip_id,omitempty"`
	TruckID    string             `bson:"truck_id,omitempty"`
	PalletIDs  []string           `bson:"pallet_ids,omitempty"`
	From       string             `bson:"from,omitempty"`
	To         string             `bson:"to,omitempty"`
	OccurredAt time.Time          `bson:"occurred_at"`
}

func newEventDocument(e model.AllocationEvent) EventDocument {
	return EventDocument{
		EventID:    e.ID,
		Type:       string(e.Type),
		OrderID:    e.OrderID,
		TripID:     e.TripID,
		TruckID:    e.TruckID,
		PalletIDs:  e.PalletIDs,
		From:       e.From,
		To:         e.To,
		OccurredAt: e.OccurredAt,
	}
}

func (d *EventDocument) toModel() model.AllocationEvent {
	return model.AllocationEvent{
		ID:         d.EventID,
		Type:       model.EventType(d.Type),
		OrderID:    d.OrderID,
		TripID:     d.TripID,
		TruckID:    d.TruckID,
		PalletIDs:  d.PalletIDs,
		From:       d.From,
		To:         d.To,
		OccurredAt: d.OccurredAt,
	}
}
