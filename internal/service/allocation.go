package service

import (
	"context"
	"fmt"
	"time"

	"github.com/guttosm/trip-planner/internal/apperror"
	"github.com/guttosm/trip-planner/internal/domain/model"
	"github.com/guttosm/trip-planner/internal/logger"
	"github.com/guttosm/trip-planner/internal/metrics"
	"github.com/guttosm/trip-planner/internal/repository"
	"github.com/guttosm/trip-planner/internal/tracing"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const (
	tripCounter  = "trips"
	orderCounter = "orders"
)

// AllocationOption configures an AllocationService.
type AllocationOption func(*AllocationService)

// WithEventEmitter sets where committed changes are reported.
func WithEventEmitter(e EventEmitter) AllocationOption {
	return func(s *AllocationService) {
		if e != nil {
			s.events = e
		}
	}
}

// WithLocker shares a lock manager with other services touching trucks.
func WithLocker(l *KeyedLocker) AllocationOption {
	return func(s *AllocationService) {
		if l != nil {
			s.locks = l
		}
	}
}

// WithLockTimeout bounds how long an operation waits for its locks.
func WithLockTimeout(d time.Duration) AllocationOption {
	return func(s *AllocationService) {
		if d > 0 {
			s.lockTimeout = d
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) AllocationOption {
	return func(s *AllocationService) {
		if now != nil {
			s.now = now
		}
	}
}

// AllocationService owns every mutation of orders and trips. Each operation
// runs under the order's lock (and the locks of the trucks it books) inside
// one store transaction, and recomputes the order projections before
// committing.
type AllocationService struct {
	store       repository.Store
	estimator   *Estimator
	locks       *KeyedLocker
	events      EventEmitter
	lockTimeout time.Duration
	now         func() time.Time
}

// NewAllocationService creates an AllocationService.
func NewAllocationService(store repository.Store, estimator *Estimator, opts ...AllocationOption) *AllocationService {
	if estimator == nil {
		estimator = NewEstimator()
	}
	s := &AllocationService{
		store:       store,
		estimator:   estimator,
		locks:       NewKeyedLocker(),
		events:      noopEmitter{},
		lockTimeout: 5 * time.Second,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateTripInput describes a new trip.
type CreateTripInput struct {
	OrderID   string
	TruckID   string
	PalletIDs []string
	StartDate time.Time
	Notes     string
}

// UpdateTripInput describes a trip edit. Nil fields are left unchanged.
type UpdateTripInput struct {
	TruckID   *string
	PalletIDs []string
	StartDate *time.Time
	Notes     *string
}

// FinishTripInput carries the actual figures of a completed trip.
type FinishTripInput struct {
	ActualFuel     *int
	ActualDuration *int
	Notes          *string
}

// unit is the shared envelope of every allocation operation: lock, span,
// transaction, metrics, then the events of a successful commit.
func (s *AllocationService) unit(ctx context.Context, operation string, keys []string, fn func(ctx context.Context, events *[]model.AllocationEvent) error) error {
	ctx, span := tracing.Tracer("allocation").Start(ctx, "allocation."+operation)
	defer span.End()
	span.SetAttributes(attribute.StringSlice("allocation.locks", normalizeKeys(keys)))

	err := s.lockAndRun(ctx, keys, func(ctx context.Context) error {
		var events []model.AllocationEvent
		if err := s.store.WithinTransaction(ctx, func(ctx context.Context) error {
			events = events[:0]
			return fn(ctx, &events)
		}); err != nil {
			return err
		}
		s.events.Emit(events...)
		return nil
	})

	result := "success"
	if err != nil {
		result = apperror.Code(err)
		span.RecordError(err)
		span.SetStatus(codes.Error, result)
	}
	metrics.RecordAllocation(operation, result)
	return err
}

func (s *AllocationService) lockAndRun(ctx context.Context, keys []string, fn func(ctx context.Context) error) error {
	lockCtx, cancel := context.WithTimeout(ctx, s.lockTimeout)
	unlock, err := s.locks.LockContext(lockCtx, keys...)
	cancel()
	if err != nil {
		return fmt.Errorf("acquire allocation locks: %w", err)
	}
	defer unlock()
	return fn(ctx)
}

// refreshOrder recomputes the order projections from all of its trips and
// saves it, recording a status event when the status moved.
func (s *AllocationService) refreshOrder(ctx context.Context, order *model.Order, trips []model.Trip, events *[]model.AllocationEvent) error {
	before := order.Status
	order.Recompute(trips)
	order.UpdatedAt = s.now().UTC()
	if err := s.store.Orders().Update(ctx, order); err != nil {
		return fmt.Errorf("failed to save order %s: %w", order.ID, err)
	}
	if order.Status != before {
		*events = append(*events, model.AllocationEvent{
			Type:    model.EventOrderStatus,
			OrderID: order.ID,
			From:    string(before),
			To:      string(order.Status),
		})
	}
	return nil
}

func (s *AllocationService) orderTrips(ctx context.Context, orderID string) ([]model.Trip, error) {
	trips, err := s.store.Trips().List(ctx, repository.TripFilter{OrderID: orderID})
	if err != nil {
		return nil, fmt.Errorf("failed to list trips of order %s: %w", orderID, err)
	}
	return trips, nil
}

// busyTrip returns a trip other than excludeTripID that keeps the truck busy.
func (s *AllocationService) busyTrip(ctx context.Context, truckID, excludeTripID string) (*model.Trip, error) {
	return findBusyTrip(ctx, s.store.Trips(), truckID, excludeTripID)
}

func findBusyTrip(ctx context.Context, trips repository.TripRepository, truckID, excludeTripID string) (*model.Trip, error) {
	active, err := trips.List(ctx, repository.TripFilter{
		TruckID:  truckID,
		Statuses: []model.TripStatus{model.TripPlanned, model.TripInProgress},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list trips of truck %s: %w", truckID, err)
	}
	for i := range active {
		if active[i].ID != excludeTripID {
			return &active[i], nil
		}
	}
	return nil, nil
}

// resolvePallets maps ids to the order's pallets. Ids must be non-empty and
// unique, belong to the order, and not be held by another live trip.
func resolvePallets(order *model.Order, trips []model.Trip, palletIDs []string, excludeTripID string) ([]model.Pallet, error) {
	if len(palletIDs) == 0 {
		return nil, apperror.NewValidation("pallet_ids", "at least one pallet is required")
	}

	seen := make(map[string]struct{}, len(palletIDs))
	var dups []string
	for _, id := range palletIDs {
		if id == "" {
			return nil, apperror.NewValidation("pallet_ids", "pallet id must not be empty")
		}
		if _, ok := seen[id]; ok {
			dups = append(dups, id)
		}
		seen[id] = struct{}{}
	}
	if len(dups) > 0 {
		return nil, &apperror.ConflictError{
			Reason:    apperror.ReasonDuplicateID,
			Entity:    "pallet",
			ID:        dups[0],
			PalletIDs: dups,
		}
	}

	pallets := make([]model.Pallet, 0, len(palletIDs))
	for _, id := range palletIDs {
		p, ok := order.Pallet(id)
		if !ok {
			return nil, &apperror.NotFoundError{Entity: "pallet", ID: id, Scope: "order " + order.ID}
		}
		pallets = append(pallets, p)
	}

	others := make([]model.Trip, 0, len(trips))
	for _, t := range trips {
		if t.ID != excludeTripID {
			others = append(others, t)
		}
	}
	assigned := model.AssignedPallets(others)
	var taken []string
	var holder string
	for _, id := range palletIDs {
		if tripID, ok := assigned[id]; ok {
			taken = append(taken, id)
			if holder == "" {
				holder = tripID
			}
		}
	}
	if len(taken) > 0 {
		return nil, &apperror.ConflictError{
			Reason:    apperror.ReasonPalletAlreadyAssigned,
			TripID:    holder,
			PalletIDs: taken,
		}
	}
	return pallets, nil
}

// bookableTruck loads the truck and checks that it is active and free.
func (s *AllocationService) bookableTruck(ctx context.Context, truckID, excludeTripID string) (*model.Truck, error) {
	if truckID == "" {
		return nil, apperror.NewValidation("truck_id", "is required")
	}
	truck, err := s.store.Trucks().Get(ctx, truckID)
	if err != nil {
		return nil, err
	}
	if !truck.IsActive {
		return nil, &apperror.ConflictError{Reason: apperror.ReasonTruckInactive, TruckID: truck.ID}
	}
	busy, err := s.busyTrip(ctx, truck.ID, excludeTripID)
	if err != nil {
		return nil, err
	}
	if busy != nil {
		return nil, &apperror.ConflictError{Reason: apperror.ReasonTruckBusy, TruckID: truck.ID, TripID: busy.ID}
	}
	return truck, nil
}

func closedOrder(order *model.Order) error {
	return &apperror.ConflictError{
		Reason:  apperror.ReasonOrderClosed,
		Entity:  "order",
		ID:      order.ID,
		Message: fmt.Sprintf("order is %s", order.Status),
	}
}

// createTrip validates and persists one trip on an order whose trips are
// already loaded. trips is extended with the new trip; the order itself is
// not saved.
func (s *AllocationService) createTrip(ctx context.Context, order *model.Order, trips *[]model.Trip, in CreateTripInput, events *[]model.AllocationEvent) (*model.Trip, error) {
	pallets, err := resolvePallets(order, *trips, in.PalletIDs, "")
	if err != nil {
		return nil, err
	}
	truck, err := s.bookableTruck(ctx, in.TruckID, "")
	if err != nil {
		return nil, err
	}
	if err := truck.CheckLoad(pallets); err != nil {
		return nil, err
	}

	weight := model.TotalWeight(pallets)
	est := s.estimator.Estimate(ctx, *truck, order.DestinationAddressID, weight, len(pallets))

	seq, err := s.store.Counters().Next(ctx, tripCounter)
	if err != nil {
		return nil, fmt.Errorf("failed to allocate trip number: %w", err)
	}

	now := s.now().UTC()
	start := in.StartDate
	if start.IsZero() {
		start = now
	}
	trip := &model.Trip{
		TripNumber:        fmt.Sprintf("TRP-%05d", seq),
		OrderID:           order.ID,
		TruckID:           truck.ID,
		PalletIDs:         model.PalletIDs(pallets),
		Weight:            weight,
		Status:            model.TripPlanned,
		StartDate:         start.UTC(),
		EstimatedFuel:     est.Fuel,
		EstimatedDuration: est.Duration,
		Notes:             in.Notes,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if err := s.store.Trips().Create(ctx, trip); err != nil {
		return nil, fmt.Errorf("failed to create trip: %w", err)
	}
	if err := s.store.Trucks().Touch(ctx, truck.ID); err != nil {
		return nil, fmt.Errorf("failed to book truck %s: %w", truck.ID, err)
	}

	*trips = append(*trips, *trip)
	*events = append(*events, model.AllocationEvent{
		Type:      model.EventTripCreated,
		OrderID:   order.ID,
		TripID:    trip.ID,
		TruckID:   truck.ID,
		PalletIDs: trip.PalletIDs,
		To:        string(trip.Status),
	})
	return trip, nil
}

// CreateTrip binds a truck to some of an order's unassigned pallets.
func (s *AllocationService) CreateTrip(ctx context.Context, in CreateTripInput) (*model.Trip, error) {
	var created *model.Trip
	err := s.unit(ctx, "create_trip", []string{orderLockKey(in.OrderID), truckLockKey(in.TruckID)},
		func(ctx context.Context, events *[]model.AllocationEvent) error {
			order, err := s.store.Orders().Get(ctx, in.OrderID)
			if err != nil {
				return err
			}
			if order.Status.IsClosed() {
				return closedOrder(order)
			}
			trips, err := s.orderTrips(ctx, order.ID)
			if err != nil {
				return err
			}
			created, err = s.createTrip(ctx, order, &trips, in, events)
			if err != nil {
				return err
			}
			return s.refreshOrder(ctx, order, trips, events)
		})
	if err != nil {
		return nil, err
	}

	log := logger.FromContext(ctx, "allocation")
	log.Info().
		Str("order_id", created.OrderID).
		Str("trip_id", created.ID).
		Str("truck_id", created.TruckID).
		Int("pallets", len(created.PalletIDs)).
		Msg("Trip created")
	return created, nil
}

// CommitPlan persists every draft of an optimizer plan as a PLANNED trip of
// the order, all or nothing. A plan that books one truck twice cannot be
// committed.
func (s *AllocationService) CommitPlan(ctx context.Context, orderID string, plan *model.Plan, startDate time.Time) ([]model.Trip, error) {
	if plan == nil || len(plan.Trips) == 0 {
		return []model.Trip{}, nil
	}
	if plan.ReusesTrucks() {
		seen := make(map[string]bool, len(plan.Trips))
		for _, d := range plan.Trips {
			if seen[d.Truck.ID] {
				return nil, &apperror.ConflictError{
					Reason:  apperror.ReasonTruckBusy,
					TruckID: d.Truck.ID,
					Message: "plan books the truck for more than one trip",
				}
			}
			seen[d.Truck.ID] = true
		}
	}

	keys := []string{orderLockKey(orderID)}
	for _, d := range plan.Trips {
		keys = append(keys, truckLockKey(d.Truck.ID))
	}

	var committed []model.Trip
	err := s.unit(ctx, "commit_plan", keys, func(ctx context.Context, events *[]model.AllocationEvent) error {
		committed = committed[:0]
		order, err := s.store.Orders().Get(ctx, orderID)
		if err != nil {
			return err
		}
		if order.Status.IsClosed() {
			return closedOrder(order)
		}
		trips, err := s.orderTrips(ctx, order.ID)
		if err != nil {
			return err
		}
		for _, d := range plan.Trips {
			trip, err := s.createTrip(ctx, order, &trips, CreateTripInput{
				OrderID:   order.ID,
				TruckID:   d.Truck.ID,
				PalletIDs: d.PalletIDs(),
				StartDate: startDate,
			}, events)
			if err != nil {
				return err
			}
			committed = append(committed, *trip)
		}
		return s.refreshOrder(ctx, order, trips, events)
	})
	if err != nil {
		return nil, err
	}

	log := logger.FromContext(ctx, "allocation")
	log.Info().
		Str("order_id", orderID).
		Int("trips", len(committed)).
		Msg("Plan committed")
	return committed, nil
}

// loadTripKeys reads a trip outside any lock to learn which keys guard it.
func (s *AllocationService) loadTripKeys(ctx context.Context, tripID string) (*model.Trip, []string, error) {
	trip, err := s.store.Trips().Get(ctx, tripID)
	if err != nil {
		return nil, nil, err
	}
	return trip, []string{orderLockKey(trip.OrderID), truckLockKey(trip.TruckID)}, nil
}

// UpdateTrip edits a trip. Pallets, truck and start date can change only
// while the trip is PLANNED and the order is open; notes can always change.
func (s *AllocationService) UpdateTrip(ctx context.Context, tripID string, in UpdateTripInput) (*model.Trip, error) {
	_, keys, err := s.loadTripKeys(ctx, tripID)
	if err != nil {
		return nil, err
	}
	if in.TruckID != nil {
		keys = append(keys, truckLockKey(*in.TruckID))
	}

	var updated *model.Trip
	err = s.unit(ctx, "update_trip", keys, func(ctx context.Context, events *[]model.AllocationEvent) error {
		trip, err := s.store.Trips().Get(ctx, tripID)
		if err != nil {
			return err
		}
		order, err := s.store.Orders().Get(ctx, trip.OrderID)
		if err != nil {
			return err
		}

		loadChange := in.PalletIDs != nil || (in.TruckID != nil && *in.TruckID != trip.TruckID) || in.StartDate != nil
		if loadChange {
			if order.Status.IsClosed() {
				return closedOrder(order)
			}
			if trip.Status != model.TripPlanned {
				return &apperror.ConflictError{
					Reason:  apperror.ReasonTripLocked,
					Entity:  "trip",
					ID:      trip.ID,
					Message: fmt.Sprintf("trip is %s", trip.Status),
				}
			}
		}

		trips, err := s.orderTrips(ctx, order.ID)
		if err != nil {
			return err
		}

		palletIDs := trip.PalletIDs
		if in.PalletIDs != nil {
			palletIDs = in.PalletIDs
		}
		truckID := trip.TruckID
		if in.TruckID != nil {
			truckID = *in.TruckID
		}
		truckChanged := truckID != trip.TruckID

		if in.PalletIDs != nil || truckChanged {
			pallets, err := resolvePallets(order, trips, palletIDs, trip.ID)
			if err != nil {
				return err
			}
			truck, err := s.bookableTruck(ctx, truckID, trip.ID)
			if err != nil {
				return err
			}
			if err := truck.CheckLoad(pallets); err != nil {
				return err
			}
			trip.PalletIDs = model.PalletIDs(pallets)
			trip.TruckID = truck.ID
			trip.Weight = model.TotalWeight(pallets)
			est := s.estimator.Estimate(ctx, *truck, order.DestinationAddressID, trip.Weight, len(pallets))
			trip.EstimatedFuel = est.Fuel
			trip.EstimatedDuration = est.Duration
			if truckChanged {
				if err := s.store.Trucks().Touch(ctx, truck.ID); err != nil {
					return fmt.Errorf("failed to book truck %s: %w", truck.ID, err)
				}
			}
		}
		if in.StartDate != nil {
			trip.StartDate = in.StartDate.UTC()
		}
		if in.Notes != nil {
			trip.Notes = *in.Notes
		}
		trip.UpdatedAt = s.now().UTC()

		if err := s.store.Trips().Update(ctx, trip); err != nil {
			return fmt.Errorf("failed to save trip %s: %w", trip.ID, err)
		}
		replaceTrip(trips, *trip)

		*events = append(*events, model.AllocationEvent{
			Type:      model.EventTripUpdated,
			OrderID:   order.ID,
			TripID:    trip.ID,
			TruckID:   trip.TruckID,
			PalletIDs: trip.PalletIDs,
		})
		updated = trip
		return s.refreshOrder(ctx, order, trips, events)
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// transition moves a trip along the state machine and recomputes its order.
func (s *AllocationService) transition(ctx context.Context, operation, tripID string, to model.TripStatus, eventType model.EventType, mutate func(trip *model.Trip) error) (*model.Trip, error) {
	_, keys, err := s.loadTripKeys(ctx, tripID)
	if err != nil {
		return nil, err
	}

	var result *model.Trip
	err = s.unit(ctx, operation, keys, func(ctx context.Context, events *[]model.AllocationEvent) error {
		trip, err := s.store.Trips().Get(ctx, tripID)
		if err != nil {
			return err
		}
		order, err := s.store.Orders().Get(ctx, trip.OrderID)
		if err != nil {
			return err
		}
		// A closed order only lets its trips be cancelled.
		if order.Status.IsClosed() && to != model.TripCancelled {
			return closedOrder(order)
		}

		from := trip.Status
		if err := trip.TransitionTo(to, s.now().UTC()); err != nil {
			return err
		}
		if mutate != nil {
			if err := mutate(trip); err != nil {
				return err
			}
		}
		if err := s.store.Trips().Update(ctx, trip); err != nil {
			return fmt.Errorf("failed to save trip %s: %w", trip.ID, err)
		}

		trips, err := s.orderTrips(ctx, order.ID)
		if err != nil {
			return err
		}
		*events = append(*events, model.AllocationEvent{
			Type:      eventType,
			OrderID:   order.ID,
			TripID:    trip.ID,
			TruckID:   trip.TruckID,
			PalletIDs: trip.PalletIDs,
			From:      string(from),
			To:        string(to),
		})
		result = trip
		return s.refreshOrder(ctx, order, trips, events)
	})
	if err != nil {
		return nil, err
	}

	log := logger.FromContext(ctx, "allocation")
	log.Info().
		Str("order_id", result.OrderID).
		Str("trip_id", result.ID).
		Str("status", string(result.Status)).
		Msg("Trip status changed")
	return result, nil
}

// StartTrip moves a PLANNED trip to IN_PROGRESS.
func (s *AllocationService) StartTrip(ctx context.Context, tripID string) (*model.Trip, error) {
	return s.transition(ctx, "start_trip", tripID, model.TripInProgress, model.EventTripStarted, nil)
}

// FinishTrip moves an IN_PROGRESS trip to DONE and records its actual figures.
// The trip's pallets stay consumed.
func (s *AllocationService) FinishTrip(ctx context.Context, tripID string, in FinishTripInput) (*model.Trip, error) {
	if in.ActualFuel != nil && *in.ActualFuel < 0 {
		return nil, apperror.NewValidation("actual_fuel", "must not be negative")
	}
	if in.ActualDuration != nil && *in.ActualDuration < 0 {
		return nil, apperror.NewValidation("actual_duration", "must not be negative")
	}
	return s.transition(ctx, "finish_trip", tripID, model.TripDone, model.EventTripFinished, func(trip *model.Trip) error {
		trip.ActualFuel = in.ActualFuel
		trip.ActualDuration = in.ActualDuration
		if in.Notes != nil {
			trip.Notes = *in.Notes
		}
		return nil
	})
}

// CancelTrip cancels a PLANNED or IN_PROGRESS trip; its pallets return to
// the unassigned pool.
func (s *AllocationService) CancelTrip(ctx context.Context, tripID string) (*model.Trip, error) {
	return s.transition(ctx, "cancel_trip", tripID, model.TripCancelled, model.EventTripCancelled, nil)
}

// DeleteTrip removes a PLANNED or CANCELLED trip from an open order.
func (s *AllocationService) DeleteTrip(ctx context.Context, tripID string) error {
	_, keys, err := s.loadTripKeys(ctx, tripID)
	if err != nil {
		return err
	}

	return s.unit(ctx, "delete_trip", keys, func(ctx context.Context, events *[]model.AllocationEvent) error {
		trip, err := s.store.Trips().Get(ctx, tripID)
		if err != nil {
			return err
		}
		if trip.Status != model.TripPlanned && trip.Status != model.TripCancelled {
			return &apperror.ConflictError{
				Reason:  apperror.ReasonTripLocked,
				Entity:  "trip",
				ID:      trip.ID,
				Message: fmt.Sprintf("a %s trip cannot be deleted", trip.Status),
			}
		}
		order, err := s.store.Orders().Get(ctx, trip.OrderID)
		if err != nil {
			return err
		}
		if order.Status.IsClosed() {
			return closedOrder(order)
		}
		if err := s.store.Trips().Delete(ctx, trip.ID); err != nil {
			return fmt.Errorf("failed to delete trip %s: %w", trip.ID, err)
		}

		trips, err := s.orderTrips(ctx, order.ID)
		if err != nil {
			return err
		}
		*events = append(*events, model.AllocationEvent{
			Type:      model.EventTripDeleted,
			OrderID:   order.ID,
			TripID:    trip.ID,
			TruckID:   trip.TruckID,
			PalletIDs: trip.PalletIDs,
			From:      string(trip.Status),
		})
		return s.refreshOrder(ctx, order, trips, events)
	})
}

// GetTrip returns one trip.
func (s *AllocationService) GetTrip(ctx context.Context, tripID string) (*model.Trip, error) {
	return s.store.Trips().Get(ctx, tripID)
}

// ListTrips returns the trips matching filter, oldest first.
func (s *AllocationService) ListTrips(ctx context.Context, filter repository.TripFilter) ([]model.Trip, error) {
	return s.store.Trips().List(ctx, filter)
}

func replaceTrip(trips []model.Trip, trip model.Trip) {
	for i := range trips {
		if trips[i].ID == trip.ID {
			trips[i] = trip
			return
		}
	}
}

