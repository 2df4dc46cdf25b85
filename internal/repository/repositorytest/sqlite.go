// Package repositorytest opens throwaway SQLite stores for tests.
package repositorytest

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/segyhp/dealer-loan-engine/internal/repository"
)

// NewSQLite creates a migrated SQLite database in the test's temp dir and
// closes it when the test ends.
func NewSQLite(t testing.TB) (*sqlx.DB, repository.Store) {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), "loans.db") + "?_busy_timeout=5000"
	require.NoError(t, repository.Migrate(repository.DriverSQLite, dsn))

	db, err := repository.Open(context.Background(), repository.DriverSQLite, dsn, repository.PoolConfig{})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	return db, repository.NewStore(db)
}
