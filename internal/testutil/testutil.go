package testutil

import (
	"context"
	"fmt"
	"net"
	"os/exec"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcmongo "github.com/testcontainers/testcontainers-go/modules/mongodb"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/nkiryanov/cropadvisor/internal/repository/mongodb"
)

// Return random free port on 127.0.0.1 address
func RandomPort() (int, error) {
	ln, err := net.Listen("tcp", "127.0.0.1:")
	if err != nil {
		return 0, err
	}
	defer ln.Close() // nolint:errcheck

	addr := ln.Addr().(*net.TCPAddr)
	return addr.Port, nil
}

type MongoContainer struct {
	Client    *mongo.Client
	URI       string
	Terminate func()
}

// Start container with mongo
// Skips the test when docker is not available
// Should be stopped when tests stopped
func StartMongoContainer(t *testing.T) MongoContainer {
	t.Helper()

	// Skip if docker not found: repository integration tests need a real mongo
	cmd := exec.Command("docker", "info", "--format", "{{.ServerVersion}}")
	out, err := cmd.CombinedOutput()
	if err != nil {
		t.Skipf("docker not available, skipping mongo container tests. Err: %s", out)
	}

	container, err := tcmongo.Run(t.Context(), "mongo:7")
	require.NoError(t, err, "Error happened when starting container with mongo, deal with it please")

	uri, err := container.ConnectionString(t.Context())
	require.NoError(t, err, "Error happened when getting connection string from container with mongo")
	t.Logf("Container with mongo started, URI=%v", uri)

	client, err := mongodb.Connect(t.Context(), uri)
	require.NoError(t, err, "Error happened when connecting to mongo")

	return MongoContainer{
		Client: client,
		URI:    uri,
		Terminate: func() {
			_ = client.Disconnect(context.Background())
			testcontainers.CleanupContainer(t, container)
		},
	}
}

var dbCounter atomic.Int64

// Fresh database with users indexes for a single test
// Databases are cheap in mongo so every test gets its own and drops it at cleanup
func FreshDatabase(t *testing.T, client *mongo.Client) *mongo.Database {
	t.Helper()

	db := client.Database(fmt.Sprintf("cropadvisor-test-%d", dbCounter.Add(1)))

	err := mongodb.EnsureIndexes(t.Context(), db)
	require.NoError(t, err, "Error happened when creating indexes")

	t.Cleanup(func() {
		_ = db.Drop(context.Background())
	})

	return db
}
