package repository

import (
	"context"

	"go.mongodb.org/mongo-driver/mongo"
)

// MongoStore is the MongoDB-backed Store. Transactions need a replica set.
type MongoStore struct {
	db        *MongoDB
	orders    OrderRepository
	trips     TripRepository
	trucks    TruckRepository
	addresses AddressRepository
	events    EventRepository
	counters  CounterRepository
}

// StoreOption overrides one of the repositories of a MongoStore.
type StoreOption func(*MongoStore)

// WithTruckRepository replaces the truck repository, typically with a circuit
// breaker wrapper.
func WithTruckRepository(repo TruckRepository) StoreOption {
	return func(s *MongoStore) { s.trucks = repo }
}

// WithAddressRepository replaces the address repository.
func WithAddressRepository(repo AddressRepository) StoreOption {
	return func(s *MongoStore) { s.addresses = repo }
}

// WithEventRepository replaces the event repository.
func WithEventRepository(repo EventRepository) StoreOption {
	return func(s *MongoStore) { s.events = repo }
}

// NewMongoStore wires the MongoDB repositories into a Store.
func NewMongoStore(db *MongoDB, opts ...StoreOption) *MongoStore {
	s := &MongoStore{
		db:        db,
		orders:    NewOrderRepository(db),
		trips:     NewTripRepository(db),
		trucks:    NewTruckRepository(db),
		addresses: NewAddressRepository(db),
		events:    NewEventRepository(db),
		counters:  NewCounterRepository(db),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *MongoStore) Orders() OrderRepository      { return s.orders }
func (s *MongoStore) Trips() TripRepository        { return s.trips }
func (s *MongoStore) Trucks() TruckRepository      { return s.trucks }
func (s *MongoStore) Addresses() AddressRepository { return s.addresses }
func (s *MongoStore) Events() EventRepository      { return s.events }
func (s *MongoStore) Counters() CounterRepository  { return s.counters }

// WithinTransaction runs fn inside a multi-document transaction. The driver
// retries fn on transient transaction errors, so fn must be safe to re-run.
func (s *MongoStore) WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if mongo.SessionFromContext(ctx) != nil {
		return fn(ctx)
	}

	session, err := s.db.Client.StartSession()
	if err != nil {
		return err
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		return nil, fn(sc)
	})
	return err
}
