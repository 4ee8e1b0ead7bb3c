package repository

import (
	"context"

	"github.com/guttosm/trip-planner/internal/domain/model"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// AddressMongoRepository stores delivery addresses in MongoDB.
type AddressMongoRepository struct {
	collection *mongo.Collection
}

// NewAddressRepository creates a new address repository.
func NewAddressRepository(db *MongoDB) *AddressMongoRepository {
	return &AddressMongoRepository{collection: db.Addresses}
}

func (r *AddressMongoRepository) Create(ctx context.Context, address *model.Address) error {
	doc := newAddressDocument(address)
	doc.ID = primitive.NewObjectID()

	if _, err := r.collection.InsertOne(ctx, doc); err != nil {
		return mapError(err, "address", address.City)
	}
	address.ID = doc.ID.Hex()
	return nil
}

func (r *AddressMongoRepository) Get(ctx context.Context, id string) (*model.Address, error) {
	oid, err := objectID("address", id)
	if err != nil {
		return nil, err
	}

	var doc AddressDocument
	if err := r.collection.FindOne(ctx, bson.M{"_id": oid}).Decode(&doc); err != nil {
		return nil, mapError(err, "address", id)
	}
	address := doc.toModel()
	return &address, nil
}

func (r *AddressMongoRepository) Update(ctx context.Context, address *model.Address) error {
	oid, err := objectID("address", address.ID)
	if err != nil {
		return err
	}
	doc := newAddressDocument(address)
	doc.ID = oid

	res, err := r.collection.ReplaceOne(ctx, bson.M{"_id": oid}, doc)
	if err != nil {
		return mapError(err, "address", address.ID)
	}
	if res.MatchedCount == 0 {
		return mapError(mongo.ErrNoDocuments, "address", address.ID)
	}
	return nil
}

func (r *AddressMongoRepository) Delete(ctx context.Context, id string) error {
	oid, err := objectID("address", id)
	if err != nil {
		return err
	}
	res, err := r.collection.DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return mapError(mongo.ErrNoDocuments, "address", id)
	}
	return nil
}

// List returns addresses newest first.
func (r *AddressMongoRepository) List(ctx context.Context, limit, skip int) ([]model.Address, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	if skip > 0 {
		opts.SetSkip(int64(skip))
	}

	cursor, err := r.collection.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = cursor.Close(ctx)
	}()

	var docs []AddressDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}

	addresses := make([]model.Address, len(docs))
	for i := range docs {
		addresses[i] = docs[i].toModel()
	}
	return addresses, nil
}
