package repository

import (
	"context"
	"errors"
	"time"

	"github.com/guttosm/trip-planner/internal/domain/model"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// TruckMongoRepository stores trucks in MongoDB.
type TruckMongoRepository struct {
	collection *mongo.Collection
}

// NewTruckRepository creates a new truck repository.
func NewTruckRepository(db *MongoDB) *TruckMongoRepository {
	return &TruckMongoRepository{collection: db.Trucks}
}

// Create inserts the truck and sets its id.
func (r *TruckMongoRepository) Create(ctx context.Context, truck *model.Truck) error {
	doc := newTruckDocument(truck)
	doc.ID = primitive.NewObjectID()

	if _, err := r.collection.InsertOne(ctx, doc); err != nil {
		return mapError(err, "truck", truck.PlateNumber)
	}
	truck.ID = doc.ID.Hex()
	return nil
}

// Get returns the truck with the given id.
func (r *TruckMongoRepository) Get(ctx context.Context, id string) (*model.Truck, error) {
	oid, err := objectID("truck", id)
	if err != nil {
		return nil, err
	}

	var doc TruckDocument
	if err := r.collection.FindOne(ctx, bson.M{"_id": oid}).Decode(&doc); err != nil {
		return nil, mapError(err, "truck", id)
	}
	truck := doc.toModel()
	return &truck, nil
}

// Update replaces the stored truck. The booking version is owned by Touch and
// is never overwritten here.
func (r *TruckMongoRepository) Update(ctx context.Context, truck *model.Truck) error {
	oid, err := objectID("truck", truck.ID)
	if err != nil {
		return err
	}
	doc := newTruckDocument(truck)

	set := bson.M{
		"plate_number":             doc.PlateNumber,
		"vin_code":                 doc.VINCode,
		"registration_certificate": doc.RegistrationCertificate,
		"driver_name":              doc.DriverName,
		"width":                    doc.Width,
		"height":                   doc.Height,
		"length":                   doc.Length,
		"max_weight":               doc.MaxWeight,
		"max_pallets":              doc.MaxPallets,
		"model":                    doc.Model,
		"manufacturing_year":       doc.ManufacturingYear,
		"fuel_consumption":         doc.FuelConsumption,
		"notes":                    doc.Notes,
		"is_active":                doc.IsActive,
		"updated_at":               doc.UpdatedAt,
	}

	res, err := r.collection.UpdateOne(ctx, bson.M{"_id": oid}, bson.M{"$set": set})
	if err != nil {
		return mapError(err, "truck", truck.ID)
	}
	if res.MatchedCount == 0 {
		return mapError(mongo.ErrNoDocuments, "truck", truck.ID)
	}
	return nil
}

// Delete removes the truck.
func (r *TruckMongoRepository) Delete(ctx context.Context, id string) error {
	oid, err := objectID("truck", id)
	if err != nil {
		return err
	}
	res, err := r.collection.DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return mapError(mongo.ErrNoDocuments, "truck", id)
	}
	return nil
}

func truckQuery(filter TruckFilter) bson.M {
	query := bson.M{}
	if filter.ActiveOnly {
		query["is_active"] = true
	}
	if len(filter.IDs) > 0 {
		oids := make([]primitive.ObjectID, 0, len(filter.IDs))
		for _, id := range filter.IDs {
			if oid, err := primitive.ObjectIDFromHex(id); err == nil {
				oids = append(oids, oid)
			}
		}
		query["_id"] = bson.M{"$in": oids}
	}
	return query
}

// List returns trucks matching the filter, newest first.
func (r *TruckMongoRepository) List(ctx context.Context, filter TruckFilter) ([]model.Truck, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}})
	if filter.Limit > 0 {
		opts.SetLimit(int64(filter.Limit))
	}
	if filter.Skip > 0 {
		opts.SetSkip(int64(filter.Skip))
	}

	cursor, err := r.collection.Find(ctx, truckQuery(filter), opts)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = cursor.Close(ctx)
	}()

	var docs []TruckDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}

	trucks := make([]model.Truck, len(docs))
	for i := range docs {
		trucks[i] = docs[i].toModel()
	}
	return trucks, nil
}

// Count returns the number of trucks matching the filter.
func (r *TruckMongoRepository) Count(ctx context.Context, filter TruckFilter) (int64, error) {
	return r.collection.CountDocuments(ctx, truckQuery(filter))
}

// FindByPlateOrVIN returns a truck using either identifier, or nil if none does.
func (r *TruckMongoRepository) FindByPlateOrVIN(ctx context.Context, plate, vin string) (*model.Truck, error) {
	var or bson.A
	if plate != "" {
		or = append(or, bson.M{"plate_number": plate})
	}
	if vin != "" {
		or = append(or, bson.M{"vin_code": vin})
	}
	if len(or) == 0 {
		return nil, nil
	}

	var doc TruckDocument
	err := r.collection.FindOne(ctx, bson.M{"$or": or}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	truck := doc.toModel()
	return &truck, nil
}

// Touch bumps the booking version of the truck.
func (r *TruckMongoRepository) Touch(ctx context.Context, id string) error {
	oid, err := objectID("truck", id)
	if err != nil {
		return err
	}
	res, err := r.collection.UpdateOne(ctx,
		bson.M{"_id": oid},
		bson.M{
			"$inc": bson.M{"booking_version": 1},
			"$set": bson.M{"updated_at": time.Now().UTC()},
		},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return mapError(mongo.ErrNoDocuments, "truck", id)
	}
	return nil
}
