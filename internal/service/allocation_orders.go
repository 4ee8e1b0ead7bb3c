package service

import (
	"context"
	"fmt"

	"github.com/guttosm/trip-planner/internal/apperror"
	"github.com/guttosm/trip-planner/internal/domain/model"
	"github.com/guttosm/trip-planner/internal/logger"
	"github.com/guttosm/trip-planner/internal/metrics"
	"github.com/guttosm/trip-planner/internal/repository"
)

// CreateOrderInput describes a new order.
type CreateOrderInput struct {
	Pallets              []model.Pallet
	DestinationAddressID string
	Notes                string
}

// UpdateOrderInput describes an order edit. Nil fields are left unchanged;
// a non-nil Pallets replaces the whole pallet set.
type UpdateOrderInput struct {
	Pallets              []model.Pallet
	DestinationAddressID *string
	Notes                *string
}

// CreateOrder registers an order in DRAFT with all of its pallets unassigned.
func (s *AllocationService) CreateOrder(ctx context.Context, in CreateOrderInput) (*model.Order, error) {
	if len(in.Pallets) == 0 {
		return nil, apperror.NewValidation("pallets", "at least one pallet is required")
	}
	if err := model.ValidatePallets(in.Pallets); err != nil {
		return nil, err
	}
	if in.DestinationAddressID == "" {
		return nil, apperror.NewValidation("destination_address_id", "is required")
	}

	var created *model.Order
	err := s.unit(ctx, "create_order", nil, func(ctx context.Context, events *[]model.AllocationEvent) error {
		if _, err := s.store.Addresses().Get(ctx, in.DestinationAddressID); err != nil {
			return err
		}
		seq, err := s.store.Counters().Next(ctx, orderCounter)
		if err != nil {
			return fmt.Errorf("failed to allocate order number: %w", err)
		}

		now := s.now().UTC()
		order := &model.Order{
			OrderNumber:          fmt.Sprintf("ORD-%05d", seq),
			Pallets:              append([]model.Pallet(nil), in.Pallets...),
			DestinationAddressID: in.DestinationAddressID,
			Status:               model.OrderDraft,
			Notes:                in.Notes,
			CreatedAt:            now,
			UpdatedAt:            now,
		}
		order.Recompute(nil)
		if err := s.store.Orders().Create(ctx, order); err != nil {
			return fmt.Errorf("failed to create order: %w", err)
		}
		*events = append(*events, model.AllocationEvent{
			Type:      model.EventOrderCreated,
			OrderID:   order.ID,
			PalletIDs: model.PalletIDs(order.Pallets),
			To:        string(order.Status),
		})
		created = order
		return nil
	})
	if err != nil {
		return nil, err
	}

	log := logger.FromContext(ctx, "allocation")
	log.Info().
		Str("order_id", created.ID).
		Str("order_number", created.OrderNumber).
		Int("pallets", len(created.Pallets)).
		Float64("cargo_weight", created.CargoWeight).
		Msg("Order created")
	return created, nil
}

// GetOrder returns one order.
func (s *AllocationService) GetOrder(ctx context.Context, id string) (*model.Order, error) {
	return s.store.Orders().Get(ctx, id)
}

// ListOrders returns one page of orders and the total number matching filter.
func (s *AllocationService) ListOrders(ctx context.Context, filter repository.OrderFilter) ([]model.Order, int64, error) {
	orders, err := s.store.Orders().List(ctx, filter)
	if err != nil {
		return nil, 0, err
	}
	count, err := s.store.Orders().Count(ctx, filter)
	if err != nil {
		return nil, 0, err
	}
	return orders, count, nil
}

// UnassignedPallets returns the order's pallets that no live trip holds.
func (s *AllocationService) UnassignedPallets(ctx context.Context, orderID string) ([]model.Pallet, error) {
	order, err := s.store.Orders().Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	trips, err := s.orderTrips(ctx, order.ID)
	if err != nil {
		return nil, err
	}
	return order.UnassignedPallets(trips), nil
}

// OrderEvents returns the latest recorded allocation events of an order,
// newest first. Events are delivered asynchronously, so the most recent
// change may not be listed yet.
func (s *AllocationService) OrderEvents(ctx context.Context, orderID string, limit int) ([]model.AllocationEvent, error) {
	if _, err := s.store.Orders().Get(ctx, orderID); err != nil {
		return nil, err
	}
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	return s.store.Events().ListByOrder(ctx, orderID, limit)
}

func inProgressTrip(trips []model.Trip) *model.Trip {
	for i := range trips {
		if trips[i].Status == model.TripInProgress {
			return &trips[i]
		}
	}
	return nil
}

// UpdateOrder edits an open order. A pallet held by a trip cannot be removed.
// Its weight or height may change only while the order is DRAFT and the trip
// PLANNED, and only if the trip's truck still carries the new load. A new
// destination re-estimates every PLANNED trip.
func (s *AllocationService) UpdateOrder(ctx context.Context, id string, in UpdateOrderInput) (*model.Order, error) {
	if in.Pallets != nil {
		if len(in.Pallets) == 0 {
			return nil, apperror.NewValidation("pallets", "at least one pallet is required")
		}
		if err := model.ValidatePallets(in.Pallets); err != nil {
			return nil, err
		}
	}
	if in.DestinationAddressID != nil && *in.DestinationAddressID == "" {
		return nil, apperror.NewValidation("destination_address_id", "must not be empty")
	}

	var updated *model.Order
	err := s.unit(ctx, "update_order", []string{orderLockKey(id)}, func(ctx context.Context, events *[]model.AllocationEvent) error {
		order, err := s.store.Orders().Get(ctx, id)
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

		structural := in.Pallets != nil || (in.DestinationAddressID != nil && *in.DestinationAddressID != order.DestinationAddressID)
		if structural {
			if t := inProgressTrip(trips); t != nil {
				return &apperror.ConflictError{
					Reason: apperror.ReasonOrderInProgress,
					Entity: "order",
					ID:     order.ID,
					TripID: t.ID,
				}
			}
		}

		// Trips whose load or destination changed and need a new estimate.
		stale := make(map[string]bool)

		if in.Pallets != nil {
			affected, err := checkPalletEdit(order, trips, in.Pallets)
			if err != nil {
				return err
			}
			for tripID := range affected {
				stale[tripID] = true
			}
			order.Pallets = append([]model.Pallet(nil), in.Pallets...)
		}

		if in.DestinationAddressID != nil && *in.DestinationAddressID != order.DestinationAddressID {
			if _, err := s.store.Addresses().Get(ctx, *in.DestinationAddressID); err != nil {
				return err
			}
			order.DestinationAddressID = *in.DestinationAddressID
			for _, t := range trips {
				if t.Status == model.TripPlanned {
					stale[t.ID] = true
				}
			}
		}
		if in.Notes != nil {
			order.Notes = *in.Notes
		}

		for i := range trips {
			if !stale[trips[i].ID] {
				continue
			}
			if err := s.reloadTrip(ctx, order, &trips[i]); err != nil {
				return err
			}
		}

		*events = append(*events, model.AllocationEvent{
			Type:      model.EventOrderUpdated,
			OrderID:   order.ID,
			PalletIDs: model.PalletIDs(order.Pallets),
		})
		updated = order
		return s.refreshOrder(ctx, order, trips, events)
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// checkPalletEdit verifies a replacement pallet set against the order's trips
// and returns the PLANNED trips whose pallets changed dimensions.
func checkPalletEdit(order *model.Order, trips []model.Trip, next []model.Pallet) (map[string]bool, error) {
	byID := make(map[string]model.Pallet, len(next))
	for _, p := range next {
		byID[p.ID] = p
	}
	tripsByID := make(map[string]model.Trip, len(trips))
	for _, t := range trips {
		tripsByID[t.ID] = t
	}

	affected := make(map[string]bool)
	for palletID, tripID := range model.AssignedPallets(trips) {
		np, kept := byID[palletID]
		if !kept {
			return nil, &apperror.ConflictError{
				Reason:    apperror.ReasonPalletInUse,
				TripID:    tripID,
				PalletIDs: []string{palletID},
				Message:   "a pallet held by a trip cannot be removed",
			}
		}
		old, _ := order.Pallet(palletID)
		if old.Weight == np.Weight && old.Height == np.Height {
			continue
		}
		trip := tripsByID[tripID]
		if order.Status != model.OrderDraft || trip.Status != model.TripPlanned {
			return nil, &apperror.ConflictError{
				Reason:    apperror.ReasonPalletInUse,
				TripID:    tripID,
				PalletIDs: []string{palletID},
				Message:   fmt.Sprintf("pallet dimensions are frozen once the order is %s and the trip %s", order.Status, trip.Status),
			}
		}
		affected[tripID] = true
	}
	return affected, nil
}

// reloadTrip re-reads a PLANNED trip's pallets from the order, checks them
// against its truck and refreshes its weight and estimates.
func (s *AllocationService) reloadTrip(ctx context.Context, order *model.Order, trip *model.Trip) error {
	pallets := make([]model.Pallet, 0, len(trip.PalletIDs))
	for _, id := range trip.PalletIDs {
		p, ok := order.Pallet(id)
		if !ok {
			return &apperror.NotFoundError{Entity: "pallet", ID: id, Scope: "order " + order.ID}
		}
		pallets = append(pallets, p)
	}
	truck, err := s.store.Trucks().Get(ctx, trip.TruckID)
	if err != nil {
		return err
	}
	if err := truck.CheckLoad(pallets); err != nil {
		return err
	}

	trip.Weight = model.TotalWeight(pallets)
	est := s.estimator.Estimate(ctx, *truck, order.DestinationAddressID, trip.Weight, len(pallets))
	trip.EstimatedFuel = est.Fuel
	trip.EstimatedDuration = est.Duration
	trip.UpdatedAt = s.now().UTC()
	if err := s.store.Trips().Update(ctx, trip); err != nil {
		return fmt.Errorf("failed to save trip %s: %w", trip.ID, err)
	}
	return nil
}

// CancelOrder cancels an order that is neither IN_PROGRESS nor DONE. Every
// PLANNED or IN_PROGRESS trip is cancelled with it, releasing its truck. A
// DRAFT order can still have a partial trip on the road. CANCELLED is final.
func (s *AllocationService) CancelOrder(ctx context.Context, id string) (*model.Order, error) {
	var cancelled *model.Order
	err := s.unit(ctx, "cancel_order", []string{orderLockKey(id)}, func(ctx context.Context, events *[]model.AllocationEvent) error {
		order, err := s.store.Orders().Get(ctx, id)
		if err != nil {
			return err
		}
		switch order.Status {
		case model.OrderInProgress, model.OrderDone, model.OrderCancelled:
			return &apperror.InvalidTransitionError{
				Entity: "order",
				ID:     order.ID,
				From:   string(order.Status),
				To:     string(model.OrderCancelled),
			}
		}

		trips, err := s.orderTrips(ctx, order.ID)
		if err != nil {
			return err
		}
		now := s.now().UTC()
		for i := range trips {
			from := trips[i].Status
			if from.IsTerminal() {
				continue
			}
			if err := trips[i].TransitionTo(model.TripCancelled, now); err != nil {
				return err
			}
			if err := s.store.Trips().Update(ctx, &trips[i]); err != nil {
				return fmt.Errorf("failed to save trip %s: %w", trips[i].ID, err)
			}
			*events = append(*events, model.AllocationEvent{
				Type:      model.EventTripCancelled,
				OrderID:   order.ID,
				TripID:    trips[i].ID,
				TruckID:   trips[i].TruckID,
				PalletIDs: trips[i].PalletIDs,
				From:      string(from),
				To:        string(model.TripCancelled),
			})
		}

		before := order.Status
		order.Status = model.OrderCancelled
		*events = append(*events, model.AllocationEvent{
			Type:    model.EventOrderCancelled,
			OrderID: order.ID,
			From:    string(before),
			To:      string(model.OrderCancelled),
		})
		cancelled = order
		order.Recompute(trips)
		order.UpdatedAt = now
		if err := s.store.Orders().Update(ctx, order); err != nil {
			return fmt.Errorf("failed to save order %s: %w", order.ID, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	log := logger.FromContext(ctx, "allocation")
	log.Info().Str("order_id", cancelled.ID).Msg("Order cancelled")
	return cancelled, nil
}

// DeleteOrder removes an order and all of its trips. An order with a trip on
// the road cannot be deleted.
func (s *AllocationService) DeleteOrder(ctx context.Context, id string) error {
	return s.unit(ctx, "delete_order", []string{orderLockKey(id)}, func(ctx context.Context, events *[]model.AllocationEvent) error {
		order, err := s.store.Orders().Get(ctx, id)
		if err != nil {
			return err
		}
		trips, err := s.orderTrips(ctx, order.ID)
		if err != nil {
			return err
		}
		if t := inProgressTrip(trips); t != nil {
			return &apperror.ConflictError{
				Reason: apperror.ReasonOrderInProgress,
				Entity: "order",
				ID:     order.ID,
				TripID: t.ID,
			}
		}
		if _, err := s.store.Trips().DeleteByOrder(ctx, order.ID); err != nil {
			return fmt.Errorf("failed to delete trips of order %s: %w", order.ID, err)
		}
		if err := s.store.Orders().Delete(ctx, order.ID); err != nil {
			return fmt.Errorf("failed to delete order %s: %w", order.ID, err)
		}
		*events = append(*events, model.AllocationEvent{
			Type:    model.EventOrderDeleted,
			OrderID: order.ID,
			From:    string(order.Status),
		})
		return nil
	})
}

// Reconcile recomputes an order's projections from its trips and saves them
// if they drifted. It reports whether anything changed.
func (s *AllocationService) Reconcile(ctx context.Context, id string) (bool, error) {
	var changed bool
	err := s.unit(ctx, "reconcile", []string{orderLockKey(id)}, func(ctx context.Context, events *[]model.AllocationEvent) error {
		changed = false
		order, err := s.store.Orders().Get(ctx, id)
		if err != nil {
			return err
		}
		trips, err := s.orderTrips(ctx, order.ID)
		if err != nil {
			return err
		}

		fresh := *order
		fresh.Recompute(trips)
		if sameProjections(order, &fresh) {
			return nil
		}
		changed = true
		return s.refreshOrder(ctx, order, trips, events)
	})
	if err != nil {
		return false, err
	}
	if changed {
		metrics.RecordReconciledOrder()
		log := logger.FromContext(ctx, "allocation")
		log.Warn().Str("order_id", id).Msg("Order projections repaired")
	}
	return changed, nil
}

func sameProjections(a, b *model.Order) bool {
	if a.Status != b.Status || a.CargoWeight != b.CargoWeight || a.RemainingCargo != b.RemainingCargo {
		return false
	}
	if len(a.TripIDs) != len(b.TripIDs) {
		return false
	}
	for i := range a.TripIDs {
		if a.TripIDs[i] != b.TripIDs[i] {
			return false
		}
	}
	return true
}
