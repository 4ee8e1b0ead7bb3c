package repository

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// CounterMongoRepository keeps named sequences in the counters collection.
type CounterMongoRepository struct {
	collection *mongo.Collection
}

// NewCounterRepository creates a new counter repository.
func NewCounterRepository(db *MongoDB) *CounterMongoRepository {
	return &CounterMongoRepository{collection: db.Counters}
}

type counterDocument struct {
	Name string `bson:"name"`
	Seq  int64  `bson:"seq"`
}

// Next atomically increments the named sequence and returns the new value.
// The first call for a name returns 1.
func (r *CounterMongoRepository) Next(ctx context.Context, name string) (int64, error) {
	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.After)

	var doc counterDocument
	err := r.collection.FindOneAndUpdate(ctx,
		bson.M{"name": name},
		bson.M{"$inc": bson.M{"seq": 1}},
		opts,
	).Decode(&doc)
	if err != nil {
		return 0, err
	}
	return doc.Seq, nil
}
