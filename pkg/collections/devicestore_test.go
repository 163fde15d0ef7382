package collections

import (
	"context"
	"database/sql"
	"testing"

	"github.com/marvinsync/marvinsync/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

func newDeviceDB(t *testing.T) *bun.DB {
	t.Helper()

	sqldb, err := sql.Open(sqliteshim.ShimName, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { sqldb.Close() })
	db := bun.NewDB(sqldb, sqlitedialect.New())

	ctx := context.Background()
	stmts := []string{
		`CREATE TABLE Books (ID INTEGER PRIMARY KEY AUTOINCREMENT, Title TEXT, FileName TEXT,
			IsRead BOOL DEFAULT 0, NewFlag BOOL DEFAULT 0, ReadingList BOOL DEFAULT 0)`,
		`CREATE TABLE Collections (ID INTEGER PRIMARY KEY AUTOINCREMENT, Name TEXT)`,
		`CREATE TABLE BookCollections (ID INTEGER PRIMARY KEY AUTOINCREMENT, BookID INTEGER, CollectionID INTEGER)`,
		`INSERT INTO Books (ID, Title, FileName, NewFlag) VALUES (1, 'Moby Dick', 'Moby Dick.epub', 1)`,
		`INSERT INTO Collections (ID, Name) VALUES (1, 'Favorites')`,
		`INSERT INTO BookCollections (BookID, CollectionID) VALUES (1, 1)`,
	}
	for _, stmt := range stmts {
		_, err := db.ExecContext(ctx, stmt)
		require.NoError(t, err)
	}
	return db
}

func TestDeviceStoreUpdateCollections(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	db := newDeviceDB(t)
	store := NewDeviceStore(db)

	merged := []string{models.FlagNameReadingList, "Sea Stories", "Favorites"}
	require.NoError(t, store.UpdateCollections(ctx, "Moby Dick.epub", merged))

	// Flag columns follow the flag names in the merged field.
	book := &models.DeviceBook{}
	require.NoError(t, db.NewSelect().
		Model(book).
		Column("b.ID", "b.IsRead", "b.NewFlag", "b.ReadingList").
		Where("b.ID = 1").
		Scan(ctx))
	assert.False(t, book.NewFlag)
	assert.True(t, book.ReadingList)
	assert.False(t, book.IsRead)

	// Memberships are replaced; the new collection row was created.
	names := []string{}
	err := db.NewRaw(
		`SELECT c.Name FROM BookCollections bc JOIN Collections c ON c.ID = bc.CollectionID
		 WHERE bc.BookID = 1 ORDER BY c.Name`).
		Scan(ctx, &names)
	require.NoError(t, err)
	assert.Equal(t, []string{"Favorites", "Sea Stories"}, names)
}

func TestDeviceStoreClearsMemberships(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	db := newDeviceDB(t)
	store := NewDeviceStore(db)

	require.NoError(t, store.UpdateCollections(ctx, "Moby Dick.epub", []string{}))

	count, err := db.NewSelect().
		Model((*models.DeviceBookCollection)(nil)).
		Where("bc.BookID = 1").
		Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestDeviceStoreUnknownPath(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := NewDeviceStore(newDeviceDB(t))

	err := store.UpdateCollections(ctx, "missing.epub", []string{"A"})
	assert.Error(t, err)
}

func TestSplitMerged(t *testing.T) {
	t.Parallel()

	flags, names := splitMerged([]string{
		models.FlagNameNew, "Favorites", models.FlagNameRead, "Sea Stories",
	})
	assert.Equal(t, models.FlagNew|models.FlagRead, flags)
	assert.Equal(t, []string{"Favorites", "Sea Stories"}, names)
}
