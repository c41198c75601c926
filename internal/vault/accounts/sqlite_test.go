package accounts

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "modernc.org/sqlite"

	"github.com/civistrom/civid/internal/common"
)

func setupDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	_, err = db.Exec(`
CREATE TABLE accounts (
  id             TEXT PRIMARY KEY,
  encrypted_seed TEXT NOT NULL,
  iv             TEXT NOT NULL,
  added_at       TEXT NOT NULL
);`)
	require.NoError(t, err)
	return db
}

func testAccount(id string, addedAt time.Time) *Account {
	return &Account{
		ID:            id,
		EncryptedSeed: "Y2lwaGVydGV4dA==",
		IV:            "bm9uY2Vub25jZQ==",
		AddedAt:       addedAt,
	}
}

func TestInsertAndGetAll(t *testing.T) {
	r := NewSQLiteRepository(setupDB(t))
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, r.Insert(ctx, testAccount("CIV-1111-2222-3", now)))

	all, err := r.GetAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "CIV-1111-2222-3", all[0].ID)
	assert.Equal(t, now, all[0].AddedAt)
}

func TestInsert_DuplicateRejectedWithoutMutation(t *testing.T) {
	r := NewSQLiteRepository(setupDB(t))
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	original := testAccount("CIV-1111-2222-3", now)
	require.NoError(t, r.Insert(ctx, original))

	dup := testAccount("CIV-1111-2222-3", now.Add(time.Hour))
	dup.EncryptedSeed = "b3RoZXI="
	require.ErrorIs(t, r.Insert(ctx, dup), common.ErrDuplicateAccount)

	all, err := r.GetAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, original.EncryptedSeed, all[0].EncryptedSeed, "stored record must be untouched")
}

func TestGetAll_OrderedByAddedAt(t *testing.T) {
	r := NewSQLiteRepository(setupDB(t))
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, r.Insert(ctx, testAccount("CIV-0000-0000-2", base.Add(time.Hour))))
	require.NoError(t, r.Insert(ctx, testAccount("CIV-0000-0000-1", base)))

	all, err := r.GetAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "CIV-0000-0000-1", all[0].ID)
	assert.Equal(t, "CIV-0000-0000-2", all[1].ID)
}

func TestDelete_RemovesAndIsIdempotent(t *testing.T) {
	r := NewSQLiteRepository(setupDB(t))
	ctx := context.Background()

	require.NoError(t, r.Insert(ctx, testAccount("CIV-1111-2222-3", time.Now().UTC())))
	require.NoError(t, r.Delete(ctx, "CIV-1111-2222-3"))

	n, err := r.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	// Deleting an absent id is a no-op.
	require.NoError(t, r.Delete(ctx, "CIV-1111-2222-3"))
	require.NoError(t, r.Delete(ctx, "CIV-9999-9999-9"))
}

func TestCountAndClear(t *testing.T) {
	r := NewSQLiteRepository(setupDB(t))
	ctx := context.Background()

	require.NoError(t, r.Insert(ctx, testAccount("CIV-0000-0000-1", time.Now().UTC())))
	require.NoError(t, r.Insert(ctx, testAccount("CIV-0000-0000-2", time.Now().UTC())))

	n, err := r.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	require.NoError(t, r.Clear(ctx))
	n, err = r.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}
