package db

import (
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func memoryDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestMigrationFiles_Ordered(t *testing.T) {
	files, err := MigrationFiles()
	require.NoError(t, err)
	require.NotEmpty(t, files)
	assert.Equal(t, "000_create_schema_migrations.sql", files[0])
	assert.IsIncreasing(t, files)
}

func TestMigrate_Idempotent(t *testing.T) {
	db := memoryDB(t)
	log := zaptest.NewLogger(t).Sugar()

	require.NoError(t, Migrate(db, log))
	require.NoError(t, Migrate(db, log))

	files, err := MigrationFiles()
	require.NoError(t, err)

	var applied int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&applied))
	assert.Equal(t, len(files), applied)
}

func TestMigrate_RunsConstraints(t *testing.T) {
	db := memoryDB(t)
	require.NoError(t, Migrate(db, nil))

	_, err := db.Exec(`INSERT INTO runs (id, fingerprint, n_rows, n_cols, target_dims, perplexity, theta,
		num_threads, max_iter, backend, status, duration_ns, created_at)
		VALUES ('a', 'f', 1, 1, 2, 1, 0.5, 1, 10, 'go', 'exploded', 0, CURRENT_TIMESTAMP)`)
	assert.Error(t, err, "status check constraint should reject unknown statuses")
}
