package repository

import (
	"context"

	"github.com/guttosm/trip-planner/internal/domain/model"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// TripMongoRepository stores trips in MongoDB.
type TripMongoRepository struct {
	collection *mongo.Collection
}

// NewTripRepository creates a new trip repository.
func NewTripRepository(db *MongoDB) *TripMongoRepository {
	return &TripMongoRepository{collection: db.Trips}
}

// Create inserts the trip and sets its id.
func (r *TripMongoRepository) Create(ctx context.Context, trip *model.Trip) error {
	doc, err := newTripDocument(trip)
	if err != nil {
		return err
	}
	doc.ID = primitive.NewObjectID()

	if _, err := r.collection.InsertOne(ctx, doc); err != nil {
		return mapError(err, "trip", trip.TripNumber)
	}
	trip.ID = doc.ID.Hex()
	return nil
}

// Get returns the trip with the given id.
func (r *TripMongoRepository) Get(ctx context.Context, id string) (*model.Trip, error) {
	oid, err := objectID("trip", id)
	if err != nil {
		return nil, err
	}

	var doc TripDocument
	if err := r.collection.FindOne(ctx, bson.M{"_id": oid}).Decode(&doc); err != nil {
		return nil, mapError(err, "trip", id)
	}
	trip := doc.toModel()
	return &trip, nil
}

// Update replaces the stored trip.
func (r *TripMongoRepository) Update(ctx context.Context, trip *model.Trip) error {
	oid, err := objectID("trip", trip.ID)
	if err != nil {
		return err
	}
	doc, err := newTripDocument(trip)
	if err != nil {
		return err
	}
	doc.ID = oid

	res, err := r.collection.ReplaceOne(ctx, bson.M{"_id": oid}, doc)
	if err != nil {
		return mapError(err, "trip", trip.ID)
	}
	if res.MatchedCount == 0 {
		return mapError(mongo.ErrNoDocuments, "trip", trip.ID)
	}
	return nil
}

// Delete removes the trip.
func (r *TripMongoRepository) Delete(ctx context.Context, id string) error {
	oid, err := objectID("trip", id)
	if err != nil {
		return err
	}
	res, err := r.collection.DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return mapError(mongo.ErrNoDocuments, "trip", id)
	}
	return nil
}

// DeleteByOrder removes every trip of the order and returns how many were removed.
func (r *TripMongoRepository) DeleteByOrder(ctx context.Context, orderID string) (int64, error) {
	oid, err := objectID("order", orderID)
	if err != nil {
		return 0, nil
	}
	res, err := r.collection.DeleteMany(ctx, bson.M{"order_id": oid})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

// List returns trips matching the filter, oldest first. Malformed ids in the
// filter match nothing.
func (r *TripMongoRepository) List(ctx context.Context, filter TripFilter) ([]model.Trip, error) {
	query := bson.M{}
	if filter.OrderID != "" {
		oid, err := objectID("order", filter.OrderID)
		if err != nil {
			return []model.Trip{}, nil
		}
		query["order_id"] = oid
	}
	if len(filter.OrderIDs) > 0 {
		oids := make([]primitive.ObjectID, 0, len(filter.OrderIDs))
		for _, id := range filter.OrderIDs {
			if oid, err := primitive.ObjectIDFromHex(id); err == nil {
				oids = append(oids, oid)
			}
		}
		query["order_id"] = bson.M{"$in": oids}
	}
	if filter.TruckID != "" {
		oid, err := objectID("truck", filter.TruckID)
		if err != nil {
			return []model.Trip{}, nil
		}
		query["truck_id"] = oid
	}
	if len(filter.Statuses) > 0 {
		statuses := make([]string, len(filter.Statuses))
		for i, s := range filter.Statuses {
			statuses[i] = string(s)
		}
		query["status"] = bson.M{"$in": statuses}
	}

	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}})
	if filter.Limit > 0 {
		opts.SetLimit(int64(filter.Limit))
	}

	cursor, err := r.collection.Find(ctx, query, opts)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = cursor.Close(ctx)
	}()

	var docs []TripDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}

	trips := make([]model.Trip, len(docs))
	for i := range docs {
		trips[i] = docs[i].toModel()
	}
	return trips, nil
}
