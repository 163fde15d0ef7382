package collections

import (
	"context"
	"testing"
	"time"

	"github.com/marvinsync/marvinsync/pkg/calibre"
	"github.com/marvinsync/marvinsync/pkg/errcodes"
	"github.com/marvinsync/marvinsync/pkg/models"
	"github.com/robinjoseph08/golib/pointerutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCatalog struct {
	written map[int][]string
	mapped  bool
}

func (f *fakeCatalog) Books(context.Context) ([]*calibre.Book, error)  { return nil, nil }
func (f *fakeCatalog) LastModified(context.Context) (time.Time, error) { return time.Time{}, nil }
func (f *fakeCatalog) Identity(context.Context) (string, error)        { return "", nil }
func (f *fakeCatalog) ActiveFilter() string                            { return "" }
func (f *fakeCatalog) EPUBPath(*calibre.Book) string                   { return "" }
func (f *fakeCatalog) CoverPath(*calibre.Book) string                  { return "" }

func (f *fakeCatalog) ReadMultiple(context.Context, string, int) ([]string, error) {
	return nil, nil
}

func (f *fakeCatalog) WriteMultiple(_ context.Context, field string, bookID int, values []string) error {
	if !f.mapped {
		return errcodes.NotConfigured(field)
	}
	f.written[bookID] = append([]string{}, values...)
	return nil
}

func (f *fakeCatalog) ReadValue(context.Context, string, int) (string, error) { return "", nil }
func (f *fakeCatalog) WriteValue(context.Context, string, int, any) error     { return nil }

type fakeCache struct {
	fields map[string][]string
}

func (f *fakeCache) UpdateCollections(_ context.Context, path string, values []string) error {
	f.fields[path] = append([]string{}, values...)
	return nil
}

func newTestReconciler() (*Reconciler, *fakeCatalog, *fakeCache) {
	catalog := &fakeCatalog{written: map[int][]string{}, mapped: true}
	cache := &fakeCache{fields: map[string][]string{}}
	return NewReconciler(catalog, cache, "#collections"), catalog, cache
}

func testRecord() *models.BookRecord {
	return &models.BookRecord{
		BookID:             1,
		Path:               "Moby Dick.epub",
		CalibreID:          pointerutil.Int(10),
		CalibreCollections: []string{"A", "B"},
		DeviceCollections:  []string{"B", "C"},
	}
}

func TestSynchronize(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	r, catalog, cache := newTestReconciler()
	record := testRecord()

	require.NoError(t, r.Apply(ctx, Synchronize, []*models.BookRecord{record}))

	want := []string{"A", "B", "C"}
	assert.Equal(t, want, record.CalibreCollections)
	assert.Equal(t, want, record.DeviceCollections)
	assert.Equal(t, want, catalog.written[10])
	assert.Equal(t, want, cache.fields["Moby Dick.epub"])
}

func TestExport(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	r, catalog, cache := newTestReconciler()
	record := testRecord()

	require.NoError(t, r.Apply(ctx, Export, []*models.BookRecord{record}))

	assert.Equal(t, []string{"A", "B"}, record.DeviceCollections)
	assert.Equal(t, []string{"A", "B"}, cache.fields["Moby Dick.epub"])
	// Export leaves the library column alone.
	assert.Empty(t, catalog.written)
}

func TestImport(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	r, catalog, _ := newTestReconciler()
	record := testRecord()

	require.NoError(t, r.Apply(ctx, Import, []*models.BookRecord{record}))

	assert.Equal(t, []string{"B", "C"}, record.CalibreCollections)
	assert.Equal(t, []string{"B", "C"}, catalog.written[10])
}

func TestClear(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	r, catalog, cache := newTestReconciler()
	record := testRecord()
	record.Flags = record.Flags.Set(models.FlagRead)

	require.NoError(t, r.Apply(ctx, Clear, []*models.BookRecord{record}))

	assert.Empty(t, record.CalibreCollections)
	assert.Empty(t, record.DeviceCollections)
	assert.Equal(t, []string{}, catalog.written[10])
	// Flags survive a collection clear: they share the device field but
	// are not collections.
	assert.Equal(t, []string{models.FlagNameRead}, cache.fields["Moby Dick.epub"])
}

func TestApplyUnmappedFieldSkipsLibraryWrite(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	r, catalog, cache := newTestReconciler()
	catalog.mapped = false
	record := testRecord()

	require.NoError(t, r.Apply(ctx, Import, []*models.BookRecord{record}))
	assert.Empty(t, catalog.written)
	// The device side is still applied.
	assert.Equal(t, []string{"B", "C"}, cache.fields["Moby Dick.epub"])
}

func TestSetAndClearFlags(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	r, _, cache := newTestReconciler()
	record := testRecord()
	record.Flags = models.FlagNew | models.FlagRead // bits 4+1=5

	// READING LIST is not set; clearing it is a no-op on the bits.
	require.NoError(t, r.ClearFlags(ctx, []*models.BookRecord{record}, models.FlagReadingList))
	assert.Equal(t, models.FlagSet(5), record.Flags)

	require.NoError(t, r.SetFlags(ctx, []*models.BookRecord{record}, models.FlagReadingList))
	assert.Equal(t, models.FlagSet(7), record.Flags)

	// Merged device field: flag names first, then collections.
	assert.Equal(t,
		[]string{models.FlagNameNew, models.FlagNameReadingList, models.FlagNameRead, "B", "C"},
		cache.fields["Moby Dick.epub"])
}

func TestRowUpdates(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	r, _, _ := newTestReconciler()
	record := testRecord()

	require.NoError(t, r.Apply(ctx, Synchronize, []*models.BookRecord{record}))

	select {
	case update := <-r.Updates():
		assert.Equal(t, 1, update.BookID)
		assert.Equal(t, "Moby Dick.epub", update.Path)
		assert.Equal(t, []string{"A", "B", "C"}, update.Collections)
	default:
		t.Fatal("expected a row update")
	}
}
