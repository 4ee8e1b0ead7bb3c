package repository

import (
	"context"

	"github.com/guttosm/trip-planner/internal/domain/model"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// EventMongoRepository appends allocation events to MongoDB. Old events are
// expired by the TTL index on occurred_at.
type EventMongoRepository struct {
	collection *mongo.Collection
}

// NewEventRepository creates a new event repository.
func NewEventRepository(db *MongoDB) *EventMongoRepository {
	return &EventMongoRepository{collection: db.Events}
}

// CreateMany inserts a batch of events in one round trip.
func (r *EventMongoRepository) CreateMany(ctx context.Context, events []model.AllocationEvent) error {
	if len(events) == 0 {
		return nil
	}

	docs := make([]interface{}, len(events))
	for i, e := range events {
		docs[i] = newEventDocument(e)
	}

	_, err := r.collection.InsertMany(ctx, docs, options.InsertMany().SetOrdered(false))
	return err
}

// ListByOrder returns the most recent events of an order, newest first.
func (r *EventMongoRepository) ListByOrder(ctx context.Context, orderID string, limit int) ([]model.AllocationEvent, error) {
	opts := options.Find().SetSort(bson.D{{Key: "occurred_at", Value: -1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}

	cursor, err := r.collection.Find(ctx, bson.M{"order_id": orderID}, opts)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = cursor.Close(ctx)
	}()

	var docs []EventDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}

	events := make([]model.AllocationEvent, len(docs))
	for i := range docs {
		events[i] = docs[i].toModel()
	}
	return events, nil
}
