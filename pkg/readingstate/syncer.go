// Package readingstate pushes per-book reading state from the device back
// into the library's mapped custom columns: date read, progress, the read
// and reading-list flags, and collected annotations.
package readingstate

import (
	"context"
	"strings"

	"github.com/marvinsync/marvinsync/pkg/calibre"
	"github.com/marvinsync/marvinsync/pkg/errcodes"
	"github.com/marvinsync/marvinsync/pkg/models"
	"github.com/robinjoseph08/golib/logger"
)

// Fields names the custom columns each piece of state is written to. An
// empty name disables that path.
type Fields struct {
	Annotations     string
	DateRead        string
	Progress        string
	ReadFlag        string
	ReadingListFlag string
}

type Syncer struct {
	catalog calibre.Catalog
	fields  Fields
	log     logger.Logger
}

func NewSyncer(catalog calibre.Catalog, fields Fields) *Syncer {
	return &Syncer{
		catalog: catalog,
		fields:  fields,
		log:     logger.New(),
	}
}

// Sync writes each resolved record's reading state to the library. Books
// without a library match are skipped, as is every column the user has not
// mapped. Returns how many records were written.
func (s *Syncer) Sync(ctx context.Context, records []*models.BookRecord) (int, error) {
	synced := 0
	for _, record := range records {
		select {
		case <-ctx.Done():
			return synced, errcodes.Aborted("reading state sync")
		default:
		}

		if record.CalibreID == nil {
			continue
		}
		id := *record.CalibreID
		wrote := false

		if record.DateOpened != nil {
			ok, err := s.write(ctx, s.fields.DateRead, id, *record.DateOpened)
			if err != nil {
				return synced, err
			}
			wrote = wrote || ok
		}

		ok, err := s.write(ctx, s.fields.Progress, id, record.Progress)
		if err != nil {
			return synced, err
		}
		wrote = wrote || ok

		ok, err = s.write(ctx, s.fields.ReadFlag, id, record.Flags.Has(models.FlagRead))
		if err != nil {
			return synced, err
		}
		wrote = wrote || ok

		ok, err = s.write(ctx, s.fields.ReadingListFlag, id, record.Flags.Has(models.FlagReadingList))
		if err != nil {
			return synced, err
		}
		wrote = wrote || ok

		if len(record.Highlights) > 0 {
			ok, err = s.write(ctx, s.fields.Annotations, id, renderAnnotations(record))
			if err != nil {
				return synced, err
			}
			wrote = wrote || ok
		}

		if wrote {
			synced++
		}
	}

	return synced, nil
}

func (s *Syncer) write(ctx context.Context, field string, bookID int, value any) (bool, error) {
	err := s.catalog.WriteValue(ctx, field, bookID, value)
	if errcodes.HasCode(err, errcodes.CodeNotConfigured) {
		s.log.Debug("column not mapped, skipping", logger.Data{"field": field})
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// renderAnnotations joins a record's highlight fragments into one HTML
// blob suitable for a long-text comments-like column.
func renderAnnotations(record *models.BookRecord) string {
	return strings.Join(record.Highlights, "\n")
}
