package testutils

import (
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"relaybot/db"
)

// OpenTestDB opens a fresh in-memory sqlite database with the schema applied.
// The connection is closed when the test finishes.
func OpenTestDB(t *testing.T) *sqlx.DB {
	t.Helper()

	conn, err := db.NewConnection(":memory:")
	require.NoError(t, err)

	t.Cleanup(func() {
		require.NoError(t, conn.Close())
	})
	return conn
}
