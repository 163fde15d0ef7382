package readingstate

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
	mapped  map[string]bool
	written map[string]any
}

func (f *fakeCatalog) Books(context.Context) ([]*calibre.Book, error)  { return nil, nil }
func (f *fakeCatalog) LastModified(context.Context) (time.Time, error) { return time.Time{}, nil }
func (f *fakeCatalog) Identity(context.Context) (string, error)        { return "", nil }
func (f *fakeCatalog) ActiveFilter() string                            { return "" }
func (f *fakeCatalog) EPUBPath(*calibre.Book) string                   { return "" }
func (f *fakeCatalog) CoverPath(*calibre.Book) string                  { return "" }

func (f *fakeCatalog) ReadMultiple(context.Context, string, int) ([]string, error) { return nil, nil }
func (f *fakeCatalog) WriteMultiple(context.Context, string, int, []string) error  { return nil }
func (f *fakeCatalog) ReadValue(context.Context, string, int) (string, error)      { return "", nil }

func (f *fakeCatalog) WriteValue(_ context.Context, field string, bookID int, value any) error {
	if !f.mapped[field] {
		return errcodes.NotConfigured(field)
	}
	if f.written == nil {
		f.written = map[string]any{}
	}
	f.written[field] = value
	return nil
}

func allFields() Fields {
	return Fields{
		Annotations:     "#annotations",
		DateRead:        "#date_read",
		Progress:        "#progress",
		ReadFlag:        "#read",
		ReadingListFlag: "#reading_list",
	}
}

func TestSync(t *testing.T) {
	t.Parallel()

	opened := time.Date(2026, 8, 20, 9, 0, 0, 0, time.UTC)
	catalog := &fakeCatalog{mapped: map[string]bool{
		"#annotations": true, "#date_read": true, "#progress": true,
		"#read": true, "#reading_list": true,
	}}

	records := []*models.BookRecord{
		{
			BookID:     1,
			CalibreID:  pointerutil.Int(10),
			Flags:      models.FlagRead,
			Progress:   1.0,
			DateOpened: &opened,
			Highlights: []string{"<p>first</p>", "<p>second</p>"},
		},
		{BookID: 2, Title: "Sideloaded"}, // unresolved, skipped
	}

	synced, err := NewSyncer(catalog, allFields()).Sync(context.Background(), records)
	require.NoError(t, err)

	assert.Equal(t, 1, synced)
	assert.Equal(t, opened, catalog.written["#date_read"])
	assert.Equal(t, 1.0, catalog.written["#progress"])
	assert.Equal(t, true, catalog.written["#read"])
	assert.Equal(t, false, catalog.written["#reading_list"])
	assert.Equal(t, "<p>first</p>\n<p>second</p>", catalog.written["#annotations"])
}

func TestSyncUnmappedFieldsSkipped(t *testing.T) {
	t.Parallel()

	catalog := &fakeCatalog{mapped: map[string]bool{"#progress": true}}
	records := []*models.BookRecord{
		{BookID: 1, CalibreID: pointerutil.Int(10), Progress: 0.5},
	}

	synced, err := NewSyncer(catalog, allFields()).Sync(context.Background(), records)
	require.NoError(t, err)

	assert.Equal(t, 1, synced)
	assert.Equal(t, 0.5, catalog.written["#progress"])
	assert.NotContains(t, catalog.written, "#date_read")
}

func TestSyncNothingMapped(t *testing.T) {
	t.Parallel()

	catalog := &fakeCatalog{}
	records := []*models.BookRecord{
		{BookID: 1, CalibreID: pointerutil.Int(10), Progress: 0.5},
	}

	synced, err := NewSyncer(catalog, Fields{}).Sync(context.Background(), records)
	require.NoError(t, err)
	assert.Zero(t, synced)
}

func TestSyncCancelled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewSyncer(&fakeCatalog{}, allFields()).Sync(ctx, []*models.BookRecord{{BookID: 1}})
	require.Error(t, err)
	assert.True(t, errcodes.HasCode(err, errcodes.CodeAborted))
}
