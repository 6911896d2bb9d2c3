package identity

import (
	"context"
	"testing"
	"time"

	"github.com/layer-3/keyauth/ports"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// setupTestDatabase starts a PostgreSQL container, migrates it and returns
// its connection string.
func setupTestDatabase(t *testing.T) string {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping postgres container test in short mode")
	}
	ctx := context.Background()

	container, err := postgres.Run(ctx,
		"postgres:17-alpine",
		postgres.WithDatabase("keyauth_test"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second)),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("Failed to terminate container: %v", err)
		}
	})

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	_, err = Migrate(connStr)
	require.NoError(t, err)

	return connStr
}

func TestPostgresStore(t *testing.T) {
	connStr := setupTestDatabase(t)

	runStoreSuite(t, func(t *testing.T) ports.IdentityStore {
		s, err := NewPostgresStore(context.Background(), connStr)
		require.NoError(t, err)
		_, err = s.pool.Exec(context.Background(), "TRUNCATE identities")
		require.NoError(t, err)
		t.Cleanup(s.Close)
		return s
	})
}

func TestPostgresStore_MigrateIsIdempotent(t *testing.T) {
	connStr := setupTestDatabase(t)

	version, err := Migrate(connStr)
	require.NoError(t, err)
	require.Equal(t, uint(1), version)
}
