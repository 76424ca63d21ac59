package sqlite_test

import (
	"context"
	"database/sql"
	"testing"

	"github.com/sagarc03/relaygate/database/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "modernc.org/sqlite"
)

func openMemory(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestMigrate_DropTables_RoundTrip(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	db := openMemory(t)
	tables := randomTables(t)

	require.NoError(t, sqlite.Migrate(ctx, db, tables))
	require.NoError(t, sqlite.Migrate(ctx, db, tables), "migrate should be idempotent")
	require.NoError(t, sqlite.ValidateSchema(ctx, db, tables))

	require.NoError(t, sqlite.DropTables(ctx, db, tables))
	err := sqlite.ValidateSchema(ctx, db, tables)
	assert.ErrorContains(t, err, "does not exist")

	require.NoError(t, sqlite.DropTables(ctx, db, tables), "drop should be idempotent")
}

func TestValidateSchema(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("missing columns", func(t *testing.T) {
		t.Parallel()
		db := openMemory(t)
		tables := randomTables(t)

		_, err := db.ExecContext(ctx, `CREATE TABLE "`+tables.Services+`" (id TEXT NOT NULL PRIMARY KEY)`)
		require.NoError(t, err)

		err = sqlite.ValidateSchema(ctx, db, tables)
		assert.ErrorContains(t, err, "missing columns")
		assert.ErrorContains(t, err, "gateway_prefix")
	})

	t.Run("nullable column", func(t *testing.T) {
		t.Parallel()
		db := openMemory(t)
		tables := randomTables(t)

		require.NoError(t, sqlite.Migrate(ctx, db, tables))
		_, err := db.ExecContext(ctx, `DROP TABLE "`+tables.Routes+`"`)
		require.NoError(t, err)
		_, err = db.ExecContext(ctx, `CREATE TABLE "`+tables.Routes+`" (
			service_id TEXT NOT NULL,
			position INTEGER NOT NULL,
			route TEXT,
			methods TEXT NOT NULL,
			auth_required INTEGER NOT NULL
		)`)
		require.NoError(t, err)

		err = sqlite.ValidateSchema(ctx, db, tables)
		assert.ErrorContains(t, err, "route: expected nullable=false")
	})
}
