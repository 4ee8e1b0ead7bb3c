package repository

import (
	"context"
	"sort"
	"sync"

	"github.com/guttosm/trip-planner/internal/apperror"
	"github.com/guttosm/trip-planner/internal/domain/model"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// MemoryStore is an in-process Store used when MongoDB is disabled and in
// unit tests. Transactions are serialized by txMu and rolled back through an
// undo journal carried in the context.
type MemoryStore struct {
	txMu sync.Mutex
	mu   sync.RWMutex

	orders    map[string]model.Order
	trips     map[string]model.Trip
	trucks    map[string]model.Truck
	addresses map[string]model.Address
	events    []model.AllocationEvent
	counters  map[string]int64
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		orders:    make(map[string]model.Order),
		trips:     make(map[string]model.Trip),
		trucks:    make(map[string]model.Truck),
		addresses: make(map[string]model.Address),
		counters:  make(map[string]int64),
	}
}

type journalKey struct{}

type journal struct {
	undo []func()
}

func journalFrom(ctx context.Context) *journal {
	j, _ := ctx.Value(journalKey{}).(*journal)
	return j
}

func (s *MemoryStore) Orders() OrderRepository      { return memOrders{s} }
func (s *MemoryStore) Trips() TripRepository        { return memTrips{s} }
func (s *MemoryStore) Trucks() TruckRepository      { return memTrucks{s} }
func (s *MemoryStore) Addresses() AddressRepository { return memAddresses{s} }
func (s *MemoryStore) Events() EventRepository      { return memEvents{s} }
func (s *MemoryStore) Counters() CounterRepository  { return memCounters{s} }

// WithinTransaction runs fn while holding the transaction lock. If fn fails
// every write it made is undone in reverse order.
func (s *MemoryStore) WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if journalFrom(ctx) != nil {
		return fn(ctx)
	}

	s.txMu.Lock()
	defer s.txMu.Unlock()

	j := &journal{}
	err := fn(context.WithValue(ctx, journalKey{}, j))
	if err != nil {
		s.mu.Lock()
		for i := len(j.undo) - 1; i >= 0; i-- {
			j.undo[i]()
		}
		s.mu.Unlock()
	}
	return err
}

// write applies a mutation under the data lock. Outside a transaction the
// write takes the transaction lock so it never interleaves with one.
func (s *MemoryStore) write(ctx context.Context, fn func() (undo func(), err error)) error {
	j := journalFrom(ctx)
	if j == nil {
		s.txMu.Lock()
		defer s.txMu.Unlock()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	undo, err := fn()
	if err != nil {
		return err
	}
	if j != nil && undo != nil {
		j.undo = append(j.undo, undo)
	}
	return nil
}

func newID() string {
	return primitive.NewObjectID().Hex()
}

func duplicate(entity, id string) error {
	return &apperror.ConflictError{
		Reason:  apperror.ReasonDuplicateID,
		Entity:  entity,
		ID:      id,
		Message: "a " + entity + " with the same unique key already exists",
	}
}

func cloneOrder(o model.Order) model.Order {
	o.Pallets = append([]model.Pallet(nil), o.Pallets...)
	if o.Pallets == nil {
		o.Pallets = []model.Pallet{}
	}
	o.TripIDs = append([]string(nil), o.TripIDs...)
	if o.TripIDs == nil {
		o.TripIDs = []string{}
	}
	return o
}

func cloneTrip(t model.Trip) model.Trip {
	t.PalletIDs = append([]string(nil), t.PalletIDs...)
	if t.PalletIDs == nil {
		t.PalletIDs = []string{}
	}
	if t.ActualFuel != nil {
		v := *t.ActualFuel
		t.ActualFuel = &v
	}
	if t.ActualDuration != nil {
		v := *t.ActualDuration
		t.ActualDuration = &v
	}
	if t.StartedAt != nil {
		v := *t.StartedAt
		t.StartedAt = &v
	}
	if t.FinishedAt != nil {
		v := *t.FinishedAt
		t.FinishedAt = &v
	}
	if t.CancelledAt != nil {
		v := *t.CancelledAt
		t.CancelledAt = &v
	}
	return t
}

func cloneEvent(e model.AllocationEvent) model.AllocationEvent {
	if e.PalletIDs != nil {
		e.PalletIDs = append([]string(nil), e.PalletIDs...)
	}
	return e
}

func page[T any](items []T, limit, skip int) []T {
	if skip > 0 {
		if skip >= len(items) {
			return items[:0]
		}
		items = items[skip:]
	}
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}

type memOrders struct{ s *MemoryStore }

func (r memOrders) Create(ctx context.Context, order *model.Order) error {
	return r.s.write(ctx, func() (func(), error) {
		for _, o := range r.s.orders {
			if order.OrderNumber != "" && o.OrderNumber == order.OrderNumber {
				return nil, duplicate("order", order.OrderNumber)
			}
		}
		order.ID = newID()
		r.s.orders[order.ID] = cloneOrder(*order)
		id := order.ID
		return func() { delete(r.s.orders, id) }, nil
	})
}

func (r memOrders) Get(_ context.Context, id string) (*model.Order, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	o, ok := r.s.orders[id]
	if !ok {
		return nil, apperror.NewNotFound("order", id)
	}
	o = cloneOrder(o)
	return &o, nil
}

func (r memOrders) Update(ctx context.Context, order *model.Order) error {
	return r.s.write(ctx, func() (func(), error) {
		prev, ok := r.s.orders[order.ID]
		if !ok {
			return nil, apperror.NewNotFound("order", order.ID)
		}
		r.s.orders[order.ID] = cloneOrder(*order)
		return func() { r.s.orders[prev.ID] = prev }, nil
	})
}

func (r memOrders) Delete(ctx context.Context, id string) error {
	return r.s.write(ctx, func() (func(), error) {
		prev, ok := r.s.orders[id]
		if !ok {
			return nil, apperror.NewNotFound("order", id)
		}
		delete(r.s.orders, id)
		return func() { r.s.orders[id] = prev }, nil
	})
}

func (r memOrders) matching(filter OrderFilter) []model.Order {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	out := make([]model.Order, 0, len(r.s.orders))
	for _, o := range r.s.orders {
		if filter.Status != "" && o.Status != filter.Status {
			continue
		}
		if filter.Status == "" && containsOrderStatus(filter.ExcludeStatuses, o.Status) {
			continue
		}
		if filter.DestinationAddressID != "" && o.DestinationAddressID != filter.DestinationAddressID {
			continue
		}
		out = append(out, cloneOrder(o))
	}
	sortNewestFirst(out, func(o model.Order) (int64, string) { return o.CreatedAt.UnixNano(), o.ID })
	return out
}

func (r memOrders) List(_ context.Context, filter OrderFilter) ([]model.Order, error) {
	return page(r.matching(filter), filter.Limit, filter.Skip), nil
}

func (r memOrders) Count(_ context.Context, filter OrderFilter) (int64, error) {
	return int64(len(r.matching(filter))), nil
}

func (r memOrders) FindSimilar(_ context.Context, q SimilarOrderQuery) ([]model.Order, error) {
	out := make([]model.Order, 0)
	for _, o := range r.matching(OrderFilter{Status: q.Status}) {
		if o.CargoWeight < q.MinWeight || o.CargoWeight > q.MaxWeight {
			continue
		}
		if n := len(o.Pallets); n < q.MinPallets || n > q.MaxPallets {
			continue
		}
		if !q.Since.IsZero() && o.CreatedAt.Before(q.Since) {
			continue
		}
		out = append(out, o)
	}
	return page(out, q.Limit, 0), nil
}

func containsOrderStatus(list []model.OrderStatus, s model.OrderStatus) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func sortNewestFirst[T any](items []T, key func(T) (int64, string)) {
	sort.SliceStable(items, func(i, j int) bool {
		ti, idi := key(items[i])
		tj, idj := key(items[j])
		if ti != tj {
			return ti > tj
		}
		return idi > idj
	})
}

type memTrips struct{ s *MemoryStore }

func (r memTrips) Create(ctx context.Context, trip *model.Trip) error {
	return r.s.write(ctx, func() (func(), error) {
		for _, t := range r.s.trips {
			if trip.TripNumber != "" && t.TripNumber == trip.TripNumber {
				return nil, duplicate("trip", trip.TripNumber)
			}
		}
		trip.ID = newID()
		r.s.trips[trip.ID] = cloneTrip(*trip)
		id := trip.ID
		return func() { delete(r.s.trips, id) }, nil
	})
}

func (r memTrips) Get(_ context.Context, id string) (*model.Trip, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	t, ok := r.s.trips[id]
	if !ok {
		return nil, apperror.NewNotFound("trip", id)
	}
	t = cloneTrip(t)
	return &t, nil
}

func (r memTrips) Update(ctx context.Context, trip *model.Trip) error {
	return r.s.write(ctx, func() (func(), error) {
		prev, ok := r.s.trips[trip.ID]
		if !ok {
			return nil, apperror.NewNotFound("trip", trip.ID)
		}
		r.s.trips[trip.ID] = cloneTrip(*trip)
		return func() { r.s.trips[prev.ID] = prev }, nil
	})
}

func (r memTrips) Delete(ctx context.Context, id string) error {
	return r.s.write(ctx, func() (func(), error) {
		prev, ok := r.s.trips[id]
		if !ok {
			return nil, apperror.NewNotFound("trip", id)
		}
		delete(r.s.trips, id)
		return func() { r.s.trips[id] = prev }, nil
	})
}

func (r memTrips) DeleteByOrder(ctx context.Context, orderID string) (int64, error) {
	var n int64
	err := r.s.write(ctx, func() (func(), error) {
		removed := make([]model.Trip, 0)
		for id, t := range r.s.trips {
			if t.OrderID == orderID {
				removed = append(removed, t)
				delete(r.s.trips, id)
			}
		}
		n = int64(len(removed))
		return func() {
			for _, t := range removed {
				r.s.trips[t.ID] = t
			}
		}, nil
	})
	return n, err
}

func (r memTrips) List(_ context.Context, filter TripFilter) ([]model.Trip, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var orderIDs map[string]bool
	if len(filter.OrderIDs) > 0 {
		orderIDs = make(map[string]bool, len(filter.OrderIDs))
		for _, id := range filter.OrderIDs {
			orderIDs[id] = true
		}
	}

	out := make([]model.Trip, 0)
	for _, t := range r.s.trips {
		if filter.OrderID != "" && t.OrderID != filter.OrderID {
			continue
		}
		if orderIDs != nil && !orderIDs[t.OrderID] {
			continue
		}
		if filter.TruckID != "" && t.TruckID != filter.TruckID {
			continue
		}
		if len(filter.Statuses) > 0 && !containsTripStatus(filter.Statuses, t.Status) {
			continue
		}
		out = append(out, cloneTrip(t))
	}

	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return page(out, filter.Limit, 0), nil
}

func containsTripStatus(list []model.TripStatus, s model.TripStatus) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

type memTrucks struct{ s *MemoryStore }

func (r memTrucks) conflicting(truck *model.Truck) error {
	for _, t := range r.s.trucks {
		if t.ID == truck.ID {
			continue
		}
		if truck.PlateNumber != "" && t.PlateNumber == truck.PlateNumber {
			return duplicate("truck", truck.PlateNumber)
		}
		if truck.VINCode != "" && t.VINCode == truck.VINCode {
			return duplicate("truck", truck.VINCode)
		}
	}
	return nil
}

func (r memTrucks) Create(ctx context.Context, truck *model.Truck) error {
	return r.s.write(ctx, func() (func(), error) {
		if err := r.conflicting(truck); err != nil {
			return nil, err
		}
		truck.ID = newID()
		r.s.trucks[truck.ID] = *truck
		id := truck.ID
		return func() { delete(r.s.trucks, id) }, nil
	})
}

func (r memTrucks) Get(_ context.Context, id string) (*model.Truck, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	t, ok := r.s.trucks[id]
	if !ok {
		return nil, apperror.NewNotFound("truck", id)
	}
	return &t, nil
}

func (r memTrucks) Update(ctx context.Context, truck *model.Truck) error {
	return r.s.write(ctx, func() (func(), error) {
		prev, ok := r.s.trucks[truck.ID]
		if !ok {
			return nil, apperror.NewNotFound("truck", truck.ID)
		}
		if err := r.conflicting(truck); err != nil {
			return nil, err
		}
		next := *truck
		next.BookingVersion = prev.BookingVersion
		r.s.trucks[truck.ID] = next
		return func() { r.s.trucks[prev.ID] = prev }, nil
	})
}

func (r memTrucks) Delete(ctx context.Context, id string) error {
	return r.s.write(ctx, func() (func(), error) {
		prev, ok := r.s.trucks[id]
		if !ok {
			return nil, apperror.NewNotFound("truck", id)
		}
		delete(r.s.trucks, id)
		return func() { r.s.trucks[id] = prev }, nil
	})
}

func (r memTrucks) matching(filter TruckFilter) []model.Truck {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var ids map[string]bool
	if len(filter.IDs) > 0 {
		ids = make(map[string]bool, len(filter.IDs))
		for _, id := range filter.IDs {
			ids[id] = true
		}
	}

	out := make([]model.Truck, 0, len(r.s.trucks))
	for _, t := range r.s.trucks {
		if filter.ActiveOnly && !t.IsActive {
			continue
		}
		if ids != nil && !ids[t.ID] {
			continue
		}
		out = append(out, t)
	}
	sortNewestFirst(out, func(t model.Truck) (int64, string) { return t.CreatedAt.UnixNano(), t.ID })
	return out
}

func (r memTrucks) List(_ context.Context, filter TruckFilter) ([]model.Truck, error) {
	return page(r.matching(filter), filter.Limit, filter.Skip), nil
}

func (r memTrucks) Count(_ context.Context, filter TruckFilter) (int64, error) {
	return int64(len(r.matching(filter))), nil
}

func (r memTrucks) FindByPlateOrVIN(_ context.Context, plate, vin string) (*model.Truck, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	for _, t := range r.s.trucks {
		if (plate != "" && t.PlateNumber == plate) || (vin != "" && t.VINCode == vin) {
			found := t
			return &found, nil
		}
	}
	return nil, nil
}

func (r memTrucks) Touch(ctx context.Context, id string) error {
	return r.s.write(ctx, func() (func(), error) {
		prev, ok := r.s.trucks[id]
		if !ok {
			return nil, apperror.NewNotFound("truck", id)
		}
		next := prev
		next.BookingVersion++
		r.s.trucks[id] = next
		return func() { r.s.trucks[id] = prev }, nil
	})
}

type memAddresses struct{ s *MemoryStore }

func (r memAddresses) Create(ctx context.Context, address *model.Address) error {
	return r.s.write(ctx, func() (func(), error) {
		address.ID = newID()
		r.s.addresses[address.ID] = *address
		id := address.ID
		return func() { delete(r.s.addresses, id) }, nil
	})
}

func (r memAddresses) Get(_ context.Context, id string) (*model.Address, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	a, ok := r.s.addresses[id]
	if !ok {
		return nil, apperror.NewNotFound("address", id)
	}
	return &a, nil
}

func (r memAddresses) Update(ctx context.Context, address *model.Address) error {
	return r.s.write(ctx, func() (func(), error) {
		prev, ok := r.s.addresses[address.ID]
		if !ok {
			return nil, apperror.NewNotFound("address", address.ID)
		}
		r.s.addresses[address.ID] = *address
		return func() { r.s.addresses[prev.ID] = prev }, nil
	})
}

func (r memAddresses) Delete(ctx context.Context, id string) error {
	return r.s.write(ctx, func() (func(), error) {
		prev, ok := r.s.addresses[id]
		if !ok {
			return nil, apperror.NewNotFound("address", id)
		}
		delete(r.s.addresses, id)
		return func() { r.s.addresses[id] = prev }, nil
	})
}

func (r memAddresses) List(_ context.Context, limit, skip int) ([]model.Address, error) {
	r.s.mu.RLock()
	out := make([]model.Address, 0, len(r.s.addresses))
	for _, a := range r.s.addresses {
		out = append(out, a)
	}
	r.s.mu.RUnlock()

	sortNewestFirst(out, func(a model.Address) (int64, string) { return a.CreatedAt.UnixNano(), a.ID })
	return page(out, limit, skip), nil
}

type memEvents struct{ s *MemoryStore }

func (r memEvents) CreateMany(ctx context.Context, events []model.AllocationEvent) error {
	if len(events) == 0 {
		return nil
	}
	return r.s.write(ctx, func() (func(), error) {
		n := len(r.s.events)
		for _, e := range events {
			r.s.events = append(r.s.events, cloneEvent(e))
		}
		return func() { r.s.events = r.s.events[:n] }, nil
	})
}

func (r memEvents) ListByOrder(_ context.Context, orderID string, limit int) ([]model.AllocationEvent, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	out := make([]model.AllocationEvent, 0)
	for i := len(r.s.events) - 1; i >= 0; i-- {
		if r.s.events[i].OrderID == orderID {
			out = append(out, cloneEvent(r.s.events[i]))
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].OccurredAt.After(out[j].OccurredAt) })
	return page(out, limit, 0), nil
}

type memCounters struct{ s *MemoryStore }

func (r memCounters) Next(ctx context.Context, name string) (int64, error) {
	var next int64
	err := r.s.write(ctx, func() (func(), error) {
		prev := r.s.counters[name]
		next = prev + 1
		r.s.counters[name] = next
		return func() { r.s.counters[name] = prev }, nil
	})
	return next, err
}
