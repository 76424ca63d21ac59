package sqlite_test

import (
	"context"
	"database/sql"
	"testing"

	"github.com/sagarc03/relaygate"
	"github.com/sagarc03/relaygate/database/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRepo_InvalidTables(t *testing.T) {
	t.Parallel()

	_, err := sqlite.NewRepo(&sql.DB{}, relaygate.Tables{Services: "same", Routes: "same"})
	assert.ErrorIs(t, err, relaygate.ErrInvalidInput)
}

func TestRepo_UpsertAndGet(t *testing.T) {
	t.Parallel()
	repo := setupTestRepo(t)
	ctx := context.Background()

	desc := sampleDescriptor("users", "/users")
	require.NoError(t, repo.Upsert(ctx, desc))

	got, err := repo.Get(ctx, "users")
	require.NoError(t, err)
	assert.Equal(t, desc, got)
}

func TestRepo_Upsert_KeepsPosition(t *testing.T) {
	t.Parallel()
	repo := setupTestRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.Upsert(ctx, sampleDescriptor("users", "/users")))
	require.NoError(t, repo.Upsert(ctx, sampleDescriptor("orders", "/orders")))

	updated := sampleDescriptor("users", "/people")
	updated.Timeouts = relaygate.Timeouts{}
	updated.Routes = []relaygate.RouteSpec{{Route: "/me", Methods: []string{"get"}, AuthRequired: true}}
	require.NoError(t, repo.Upsert(ctx, updated))

	descs, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, descs, 2)
	assert.Equal(t, updated, descs[0])
	assert.Equal(t, "orders", descs[1].ID)
}

func TestRepo_Upsert_EmptyMethods(t *testing.T) {
	t.Parallel()
	repo := setupTestRepo(t)
	ctx := context.Background()

	desc := sampleDescriptor("users", "/users")
	desc.Routes = []relaygate.RouteSpec{{Route: "/x"}}
	require.NoError(t, repo.Upsert(ctx, desc))

	got, err := repo.Get(ctx, "users")
	require.NoError(t, err)
	require.Len(t, got.Routes, 1)
	assert.Empty(t, got.Routes[0].Methods)
}

func TestRepo_List(t *testing.T) {
	t.Parallel()

	t.Run("empty", func(t *testing.T) {
		t.Parallel()
		repo := setupTestRepo(t)

		descs, err := repo.List(context.Background())
		require.NoError(t, err)
		assert.Empty(t, descs)
	})

	t.Run("insertion order", func(t *testing.T) {
		t.Parallel()
		repo := setupTestRepo(t)
		ctx := context.Background()

		for _, id := range []string{"zeta", "alpha", "mid"} {
			require.NoError(t, repo.Upsert(ctx, sampleDescriptor(id, "/"+id)))
		}

		descs, err := repo.List(ctx)
		require.NoError(t, err)
		require.Len(t, descs, 3)
		assert.Equal(t, "zeta", descs[0].ID)
		assert.Equal(t, "alpha", descs[1].ID)
		assert.Equal(t, "mid", descs[2].ID)
		for _, d := range descs {
			assert.Len(t, d.Routes, 2, d.ID)
		}
	})
}

func TestRepo_Get_NotFound(t *testing.T) {
	t.Parallel()
	repo := setupTestRepo(t)

	_, err := repo.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, relaygate.ErrNotFound)
}

func TestRepo_Delete(t *testing.T) {
	t.Parallel()
	repo := setupTestRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.Upsert(ctx, sampleDescriptor("users", "/users")))
	require.NoError(t, repo.Upsert(ctx, sampleDescriptor("orders", "/orders")))
	require.NoError(t, repo.Delete(ctx, "users"))

	_, err := repo.Get(ctx, "users")
	assert.ErrorIs(t, err, relaygate.ErrNotFound)

	descs, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, descs, 1)
	assert.Equal(t, "orders", descs[0].ID)
	assert.Len(t, descs[0].Routes, 2)

	err = repo.Delete(ctx, "users")
	assert.ErrorIs(t, err, relaygate.ErrNotFound)
}
