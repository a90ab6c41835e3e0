package database_test

import (
	"database/sql"
	"os"
	"testing"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/facegate/facegate/internal/database"
)

// TestMigratorIntegration runs migrations against a real database. It needs a
// pgvector-enabled Postgres reachable via FACEGATE_TEST_DATABASE_URL.
func TestMigratorIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	dsn := os.Getenv("FACEGATE_TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("FACEGATE_TEST_DATABASE_URL not set")
	}

	db, err := sql.Open("pgx", dsn)
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	require.NoError(t, db.Ping())

	migrator, err := database.NewMigrator(db, "facegate_test")
	require.NoError(t, err)
	defer func() { _ = migrator.Close() }()

	require.NoError(t, migrator.Up())

	version, dirty, err := migrator.Version()
	require.NoError(t, err)
	assert.False(t, dirty)
	assert.GreaterOrEqual(t, version, uint(2))

	// Up is idempotent
	require.NoError(t, migrator.Up())
}
