//go:build integration

// Package testutil starts the MongoDB replica set used by integration tests.
package testutil

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/mongodb"
)

const (
	mongoImage     = "mongo:7.0"
	replicaSetName = "rs0"
	// MongoDB rejects database names longer than 63 bytes.
	maxDatabaseName = 63
	teardownTimeout = 30 * time.Second
)

// Mongo is a running single node replica set.
type Mongo struct {
	container *mongodb.MongoDBContainer
	URI       string
}

// StartMongo starts a MongoDB container. Trip allocation uses multi-document
// transactions, so the node is started as a replica set and addressed with a
// direct connection to skip member discovery on the container network.
func StartMongo(ctx context.Context) (*Mongo, error) {
	container, err := mongodb.Run(ctx, mongoImage, mongodb.WithReplicaSet(replicaSetName))
	if err != nil {
		return nil, fmt.Errorf("start mongodb container: %w", err)
	}

	raw, err := container.ConnectionString(ctx)
	if err != nil {
		_ = testcontainers.TerminateContainer(container)
		return nil, fmt.Errorf("mongodb connection string: %w", err)
	}
	uri, err := withDirectConnection(raw)
	if err != nil {
		_ = testcontainers.TerminateContainer(container)
		return nil, err
	}
	return &Mongo{container: container, URI: uri}, nil
}

func withDirectConnection(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("parse mongodb uri %q: %w", raw, err)
	}
	if u.Path == "" {
		u.Path = "/"
	}
	q := u.Query()
	q.Set("directConnection", "true")
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// Terminate stops the container. It is safe on a nil receiver.
func (m *Mongo) Terminate(ctx context.Context) error {
	if m == nil || m.container == nil {
		return nil
	}
	if err := testcontainers.TerminateContainer(m.container, testcontainers.StopContext(ctx)); err != nil {
		return fmt.Errorf("terminate mongodb container: %w", err)
	}
	return nil
}

var shared struct {
	once  sync.Once
	mongo *Mongo
	err   error
}

// RunWithSharedMongo starts one container for the whole test binary, runs the
// tests and removes the container. Use it from TestMain:
//
//	func TestMain(m *testing.M) {
//		os.Exit(testutil.RunWithSharedMongo(m))
//	}
func RunWithSharedMongo(m *testing.M) int {
	shared.once.Do(func() {
		shared.mongo, shared.err = StartMongo(context.Background())
	})
	if shared.err != nil {
		fmt.Fprintf(os.Stderr, "integration tests need docker: %v\n", shared.err)
		return 1
	}

	code := m.Run()

	ctx, cancel := context.WithTimeout(context.Background(), teardownTimeout)
	defer cancel()
	if err := shared.mongo.Terminate(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "warning: %v\n", err)
	}
	return code
}

// SharedMongoURI returns the URI of the container started by
// RunWithSharedMongo.
func SharedMongoURI(t testing.TB) string {
	t.Helper()
	if shared.mongo == nil {
		t.Fatal("shared mongodb not started, call RunWithSharedMongo from TestMain")
	}
	return shared.mongo.URI
}

var dbNameReplacer = strings.NewReplacer("/", "_", `\`, "_", ".", "_", " ", "_", `"`, "", "$", "")

// DatabaseName returns a database name unique to the test, so tests sharing
// a container never see each other's documents.
func DatabaseName(t testing.TB) string {
	suffix := "_" + uuid.NewString()[:8]
	name := dbNameReplacer.Replace(t.Name())
	if limit := maxDatabaseName - len(suffix); len(name) > limit {
		name = name[:limit]
	}
	return name + suffix
}
