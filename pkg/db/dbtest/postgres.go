//go:build integration

package dbtest

import (
	"context"
	"database/sql"
	"testing"
	"time"

	_ "github.com/lib/pq"
	"github.com/platinummonkey/orgaccess/pkg/db"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

const cleanupTimeout = 30 * time.Second

// SetupPostgres starts PostgreSQL, applies the migrations and returns a
// connection. The container is removed when the test finishes. The test is
// skipped when no container runtime is available.
func SetupPostgres(t *testing.T) *sql.DB {
	t.Helper()
	ctx := context.Background()

	provider, err := testcontainers.ProviderDocker.GetProvider()
	if err != nil {
		t.Skip("Docker/Podman not available, skipping integration tests")
	}
	provider.Close()

	container, err := postgres.Run(ctx, "postgres:15-alpine",
		postgres.WithDatabase("orgaccess_test"),
		postgres.WithUsername("orgaccess"),
		postgres.WithPassword("orgaccess_test_password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	if err != nil {
		t.Skipf("Failed to start PostgreSQL container: %v", err)
	}

	t.Cleanup(func() {
		// the test context may already be cancelled
		cleanupCtx, cancel := context.WithTimeout(context.Background(), cleanupTimeout)
		defer cancel()
		if err := container.Terminate(cleanupCtx); err != nil {
			t.Errorf("Failed to terminate container: %v", err)
		}
	})

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	log, _ := test.NewNullLogger()
	cfg := db.DefaultConfig()
	cfg.URL = connStr
	conn, err := db.Open(ctx, cfg, log)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	require.NoError(t, db.RunMigrations(ctx, conn, log), "Failed to run migrations")
	return conn
}

// CreateOrg inserts an organization and returns its id
func CreateOrg(t *testing.T, conn *sql.DB, name string, parentID *int64) int64 {
	t.Helper()
	var id int64
	err := conn.QueryRow(`INSERT INTO organizations (name, parent_id) VALUES ($1, $2) RETURNING id`, name, parentID).Scan(&id)
	require.NoError(t, err)
	return id
}

// CreateUser inserts a user and returns its id
func CreateUser(t *testing.T, conn *sql.DB, username string) int64 {
	t.Helper()
	var id int64
	err := conn.QueryRow(`INSERT INTO users (username, email) VALUES ($1, $2) RETURNING id`, username, username+"@example.com").Scan(&id)
	require.NoError(t, err)
	return id
}
