package persistence

import (
	"context"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/meridian-grc/meridian/pkg/composables"
)

// NewTestDB returns a migrated in-memory SQLite database that is closed
// when tb finishes.
func NewTestDB(tb testing.TB) *sqlx.DB {
	tb.Helper()
	ctx := context.Background()
	db, err := Open(ctx, DriverSQLite, ":memory:")
	require.NoError(tb, err)
	tb.Cleanup(func() { _ = db.Close() })
	require.NoError(tb, Migrate(ctx, db, nil))
	return db
}

// NewTestContext returns a context carrying a fresh test database.
func NewTestContext(tb testing.TB) (context.Context, *sqlx.DB) {
	tb.Helper()
	db := NewTestDB(tb)
	return composables.WithDB(context.Background(), db), db
}
