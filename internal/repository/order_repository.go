package repository

import (
	"context"

	"github.com/guttosm/trip-planner/internal/domain/model"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// OrderMongoRepository stores orders in MongoDB.
type OrderMongoRepository struct {
	collection *mongo.Collection
}

// NewOrderRepository creates a new order repository.
func NewOrderRepository(db *MongoDB) *OrderMongoRepository {
	return &OrderMongoRepository{collection: db.Orders}
}

// Create inserts the order and sets its id.
func (r *OrderMongoRepository) Create(ctx context.Context, order *model.Order) error {
	doc, err := newOrderDocument(order)
	if err != nil {
		return err
	}
	doc.ID = primitive.NewObjectID()

	if _, err := r.collection.InsertOne(ctx, doc); err != nil {
		return mapError(err, "order", order.OrderNumber)
	}
	order.ID = doc.ID.Hex()
	return nil
}

// Get returns the order with the given id.
func (r *OrderMongoRepository) Get(ctx context.Context, id string) (*model.Order, error) {
	oid, err := objectID("order", id)
	if err != nil {
		return nil, err
	}

	var doc OrderDocument
	if err := r.collection.FindOne(ctx, bson.M{"_id": oid}).Decode(&doc); err != nil {
		return nil, mapError(err, "order", id)
	}
	order := doc.toModel()
	return &order, nil
}

// Update replaces the stored order.
func (r *OrderMongoRepository) Update(ctx context.Context, order *model.Order) error {
	oid, err := objectID("order", order.ID)
	if err != nil {
		return err
	}
	doc, err := newOrderDocument(order)
	if err != nil {
		return err
	}
	doc.ID = oid

	res, err := r.collection.ReplaceOne(ctx, bson.M{"_id": oid}, doc)
	if err != nil {
		return mapError(err, "order", order.ID)
	}
	if res.MatchedCount == 0 {
		return mapError(mongo.ErrNoDocuments, "order", order.ID)
	}
	return nil
}

// Delete removes the order.
func (r *OrderMongoRepository) Delete(ctx context.Context, id string) error {
	oid, err := objectID("order", id)
	if err != nil {
		return err
	}
	res, err := r.collection.DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return mapError(mongo.ErrNoDocuments, "order", id)
	}
	return nil
}

func orderQuery(filter OrderFilter) (bson.M, error) {
	query := bson.M{}
	switch {
	case filter.Status != "":
		query["status"] = string(filter.Status)
	case len(filter.ExcludeStatuses) > 0:
		excluded := make([]string, len(filter.ExcludeStatuses))
		for i, s := range filter.ExcludeStatuses {
			excluded[i] = string(s)
		}
		query["status"] = bson.M{"$nin": excluded}
	}
	if filter.DestinationAddressID != "" {
		oid, err := objectID("address", filter.DestinationAddressID)
		if err != nil {
			return nil, err
		}
		query["destination_address_id"] = oid
	}
	return query, nil
}

// List returns orders matching the filter, newest first.
func (r *OrderMongoRepository) List(ctx context.Context, filter OrderFilter) ([]model.Order, error) {
	query, err := orderQuery(filter)
	if err != nil {
		return []model.Order{}, nil
	}

	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}})
	if filter.Limit > 0 {
		opts.SetLimit(int64(filter.Limit))
	}
	if filter.Skip > 0 {
		opts.SetSkip(int64(filter.Skip))
	}
	return r.find(ctx, query, opts)
}

// Count returns the number of orders matching the filter.
func (r *OrderMongoRepository) Count(ctx context.Context, filter OrderFilter) (int64, error) {
	query, err := orderQuery(filter)
	if err != nil {
		return 0, nil
	}
	return r.collection.CountDocuments(ctx, query)
}

// FindSimilar returns orders with comparable cargo weight and pallet count.
func (r *OrderMongoRepository) FindSimilar(ctx context.Context, q SimilarOrderQuery) ([]model.Order, error) {
	query := bson.M{
		"cargo_weight": bson.M{"$gte": q.MinWeight, "$lte": q.MaxWeight},
		"pallet_count": bson.M{"$gte": q.MinPallets, "$lte": q.MaxPallets},
	}
	if q.Status != "" {
		query["status"] = string(q.Status)
	}
	if !q.Since.IsZero() {
		query["created_at"] = bson.M{"$gte": q.Since}
	}

	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	if q.Limit > 0 {
		opts.SetLimit(int64(q.Limit))
	}
	return r.find(ctx, query, opts)
}

func (r *OrderMongoRepository) find(ctx context.Context, query bson.M, opts *options.FindOptions) ([]model.Order, error) {
	cursor, err := r.collection.Find(ctx, query, opts)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = cursor.Close(ctx)
	}()

	var docs []OrderDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}

	orders := make([]model.Order, len(docs))
	for i := range docs {
		orders[i] = docs[i].toModel()
	}
	return orders, nil
}
