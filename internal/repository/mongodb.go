// Package repository provides the order, trip, truck, address and event
// stores, backed by MongoDB or kept in memory.
package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	eventsTTLIndex     = "occurred_at_ttl"
	healthCheckTimeout = 2 * time.Second
	// codeIndexNotFound is the server error code for dropping a missing index.
	codeIndexNotFound = 27
)

// MongoConfig tunes the driver connection pool.
type MongoConfig struct {
	MaxPoolSize            uint64
	MinPoolSize            uint64
	MaxConnIdleTime        time.Duration
	ConnectTimeout         time.Duration
	ServerSelectionTimeout time.Duration
	SocketTimeout          time.Duration
	Compressors            []string
}

// DefaultMongoConfig returns the pool settings used in production.
func DefaultMongoConfig() MongoConfig {
	return MongoConfig{
		MaxPoolSize:            50,
		MinPoolSize:            5,
		MaxConnIdleTime:        10 * time.Minute,
		ConnectTimeout:         10 * time.Second,
		ServerSelectionTimeout: 5 * time.Second,
		SocketTimeout:          30 * time.Second,
		Compressors:            []string{"zstd", "snappy", "zlib"},
	}
}

func (cfg MongoConfig) clientOptions(uri string) *options.ClientOptions {
	opts := options.Client().
		ApplyURI(uri).
		SetMaxPoolSize(cfg.MaxPoolSize).
		SetMinPoolSize(cfg.MinPoolSize).
		SetMaxConnIdleTime(cfg.MaxConnIdleTime).
		SetConnectTimeout(cfg.ConnectTimeout).
		SetServerSelectionTimeout(cfg.ServerSelectionTimeout).
		SetSocketTimeout(cfg.SocketTimeout).
		SetRetryWrites(true).
		SetRetryReads(true)
	if len(cfg.Compressors) > 0 {
		opts.SetCompressors(cfg.Compressors)
	}
	return opts
}

// MongoDB holds the client and the collections of the trip planner database.
//
// Multi-document transactions need a replica set or sharded cluster; a
// standalone server accepts the connection but transactions fail.
type MongoDB struct {
	Client    *mongo.Client
	Database  *mongo.Database
	Orders    *mongo.Collection
	Trips     *mongo.Collection
	Trucks    *mongo.Collection
	Addresses *mongo.Collection
	Events    *mongo.Collection
	Counters  *mongo.Collection
}

// NewMongoDB connects with DefaultMongoConfig.
func NewMongoDB(ctx context.Context, uri, databaseName string) (*MongoDB, error) {
	return NewMongoDBWithConfig(ctx, uri, databaseName, DefaultMongoConfig())
}

// NewMongoDBWithConfig connects, pings the server and ensures the indexes the
// repositories depend on. The client is disconnected when any step fails.
func NewMongoDBWithConfig(ctx context.Context, uri, databaseName string, cfg MongoConfig) (*MongoDB, error) {
	ctx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
	defer cancel()

	client, err := mongo.Connect(ctx, cfg.clientOptions(uri))
	if err != nil {
		return nil, fmt.Errorf("connect to mongodb: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongodb: %w", err)
	}

	db := client.Database(databaseName)
	m := &MongoDB{
		Client:    client,
		Database:  db,
		Orders:    db.Collection("orders"),
		Trips:     db.Collection("trips"),
		Trucks:    db.Collection("trucks"),
		Addresses: db.Collection("addresses"),
		Events:    db.Collection("allocation_events"),
		Counters:  db.Collection("counters"),
	}
	if err := m.ensureIndexes(ctx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	return m, nil
}

type indexSpec struct {
	collection *mongo.Collection
	keys       bson.D
	unique     bool
}

func (m *MongoDB) indexes() []indexSpec {
	return []indexSpec{
		{m.Trips, bson.D{{Key: "trip_number", Value: 1}}, true},
		{m.Orders, bson.D{{Key: "order_number", Value: 1}}, true},
		{m.Trucks, bson.D{{Key: "plate_number", Value: 1}}, true},
		{m.Trucks, bson.D{{Key: "vin_code", Value: 1}}, true},
		{m.Counters, bson.D{{Key: "name", Value: 1}}, true},
		{m.Trips, bson.D{{Key: "order_id", Value: 1}}, false},
		{m.Trips, bson.D{{Key: "truck_id", Value: 1}, {Key: "status", Value: 1}}, false},
		{m.Orders, bson.D{{Key: "status", Value: 1}, {Key: "created_at", Value: -1}}, false},
		{m.Orders, bson.D{{Key: "destination_address_id", Value: 1}}, false},
		{m.Events, bson.D{{Key: "order_id", Value: 1}, {Key: "occurred_at", Value: 1}}, false},
	}
}

// ensureIndexes creates the indexes. Unique indexes back the duplicate
// checks of the repositories, so any failure is returned.
func (m *MongoDB) ensureIndexes(ctx context.Context) error {
	for _, idx := range m.indexes() {
		model := mongo.IndexModel{Keys: idx.keys}
		if idx.unique {
			model.Options = options.Index().SetUnique(true)
		}
		if _, err := idx.collection.Indexes().CreateOne(ctx, model); err != nil {
			return fmt.Errorf("create index on %s: %w", idx.collection.Name(), err)
		}
	}
	return nil
}

// SetEventsTTL replaces the expiry index of the allocation events.
func (m *MongoDB) SetEventsTTL(ctx context.Context, ttl time.Duration) error {
	if _, err := m.Events.Indexes().DropOne(ctx, eventsTTLIndex); err != nil && !isIndexNotFound(err) {
		return fmt.Errorf("drop events ttl index: %w", err)
	}

	_, err := m.Events.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "occurred_at", Value: 1}},
		Options: options.Index().
			SetName(eventsTTLIndex).
			SetExpireAfterSeconds(int32(ttl.Seconds())),
	})
	if err != nil {
		return fmt.Errorf("create events ttl index: %w", err)
	}
	return nil
}

func isIndexNotFound(err error) bool {
	var cmdErr mongo.CommandError
	if errors.As(err, &cmdErr) {
		return cmdErr.Code == codeIndexNotFound || cmdErr.Name == "NamespaceNotFound"
	}
	return false
}

// Close disconnects the client.
func (m *MongoDB) Close(ctx context.Context) error {
	return m.Client.Disconnect(ctx)
}

// HealthCheck pings the primary.
func (m *MongoDB) HealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, healthCheckTimeout)
	defer cancel()
	return m.Client.Ping(ctx, nil)
}
