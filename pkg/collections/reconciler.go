// Package collections reconciles collection assignments and flags between
// the library's mapped custom column and the device. Flags and collections
// share one field on the device; in memory they stay separate and merge
// only when written to the driver's book cache.
package collections

import (
	"context"

	"github.com/marvinsync/marvinsync/pkg/calibre"
	"github.com/marvinsync/marvinsync/pkg/errcodes"
	"github.com/marvinsync/marvinsync/pkg/models"
	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/logger"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// Operation selects how the two sides are combined.
type Operation string

const (
	// Export overwrites device collections with library collections.
	Export Operation = "export"
	// Import overwrites library collections with device collections.
	Import Operation = "import"
	// Synchronize unions both sides: library ∪ (device − library).
	Synchronize Operation = "synchronize"
	// Clear empties both sides.
	Clear Operation = "clear"
)

// RowUpdate is emitted after each record is fully applied, for any
// subscriber rendering the record set.
type RowUpdate struct {
	BookID      int
	Path        string
	Flags       models.FlagSet
	Collections []string
}

// BookCache is the device-side write surface. Values carries the merged
// flag-and-collection field.
type BookCache interface {
	UpdateCollections(ctx context.Context, path string, values []string) error
}

type Reconciler struct {
	catalog  calibre.Catalog
	cache    BookCache
	field    string
	collator *collate.Collator
	updates  chan RowUpdate
	log      logger.Logger
}

// NewReconciler wires the library catalog, the driver cache, and the
// user-mapped collections lookup name (may be empty: library-side writes
// are then skipped).
func NewReconciler(catalog calibre.Catalog, cache BookCache, field string) *Reconciler {
	return &Reconciler{
		catalog:  catalog,
		cache:    cache,
		field:    field,
		collator: collate.New(language.Und, collate.IgnoreCase),
		updates:  make(chan RowUpdate, 256),
		log:      logger.New(),
	}
}

// Updates is the reconciler's event channel. Events are dropped, not
// blocked on, when no subscriber keeps up.
func (r *Reconciler) Updates() <-chan RowUpdate {
	return r.updates
}

// Apply runs one operation over the selected records. Per record it
// updates the in-memory BookRecord, the library column when the operation
// changes the library side, and the driver's cached merged field, in that
// order, before emitting the row event.
func (r *Reconciler) Apply(ctx context.Context, op Operation, records []*models.BookRecord) error {
	for _, record := range records {
		library := append([]string{}, record.CalibreCollections...)
		device := append([]string{}, record.DeviceCollections...)

		switch op {
		case Export:
			device = append([]string{}, library...)
		case Import:
			library = append([]string{}, device...)
		case Synchronize:
			union := append([]string{}, library...)
			for _, name := range device {
				if !containsName(union, name) {
					union = append(union, name)
				}
			}
			library = union
			device = append([]string{}, union...)
		case Clear:
			library = []string{}
			device = []string{}
		default:
			return errors.Errorf("unknown collection operation %q", op)
		}

		r.collator.SortStrings(library)
		r.collator.SortStrings(device)

		record.CalibreCollections = library
		record.DeviceCollections = device

		if op != Export {
			if err := r.writeLibrary(ctx, record, library); err != nil {
				return err
			}
		}
		if err := r.writeDeviceCache(ctx, record); err != nil {
			return err
		}
		r.emit(record)
	}

	return nil
}

// SetFlags sets the masked bits on the selected records.
func (r *Reconciler) SetFlags(ctx context.Context, records []*models.BookRecord, mask models.FlagSet) error {
	return r.applyFlags(ctx, records, func(f models.FlagSet) models.FlagSet { return f.Set(mask) })
}

// ClearFlags clears the masked bits. Clearing a bit that is not set leaves
// the record untouched apart from the rewrite.
func (r *Reconciler) ClearFlags(ctx context.Context, records []*models.BookRecord, mask models.FlagSet) error {
	return r.applyFlags(ctx, records, func(f models.FlagSet) models.FlagSet { return f.Clear(mask) })
}

func (r *Reconciler) applyFlags(ctx context.Context, records []*models.BookRecord, apply func(models.FlagSet) models.FlagSet) error {
	for _, record := range records {
		record.Flags = apply(record.Flags)
		if err := r.writeDeviceCache(ctx, record); err != nil {
			return err
		}
		r.emit(record)
	}
	return nil
}

// LoadLibraryCollections fills each resolved record's library-side
// collection list from the mapped column. Unresolved records and an
// unmapped column are skipped.
func (r *Reconciler) LoadLibraryCollections(ctx context.Context, records []*models.BookRecord) error {
	for _, record := range records {
		if record.CalibreID == nil {
			continue
		}
		values, err := r.catalog.ReadMultiple(ctx, r.field, *record.CalibreID)
		if errcodes.HasCode(err, errcodes.CodeNotConfigured) {
			r.log.Debug("no collections column mapped, skipping library read")
			return nil
		}
		if err != nil {
			return err
		}
		record.CalibreCollections = values
	}
	return nil
}

func (r *Reconciler) writeLibrary(ctx context.Context, record *models.BookRecord, library []string) error {
	if record.CalibreID == nil {
		return nil
	}

	err := r.catalog.WriteMultiple(ctx, r.field, *record.CalibreID, library)
	if errcodes.HasCode(err, errcodes.CodeNotConfigured) {
		r.log.Debug("no collections column mapped, skipping library write")
		return nil
	}
	return err
}

func (r *Reconciler) writeDeviceCache(ctx context.Context, record *models.BookRecord) error {
	return r.cache.UpdateCollections(ctx, record.Path, MergedFieldValue(record.Flags, record.DeviceCollections))
}

func (r *Reconciler) emit(record *models.BookRecord) {
	update := RowUpdate{
		BookID:      record.BookID,
		Path:        record.Path,
		Flags:       record.Flags,
		Collections: append([]string{}, record.DeviceCollections...),
	}
	select {
	case r.updates <- update:
	default:
	}
}

// MergedFieldValue builds the single device field: flag names first, in
// their fixed order, then the collection names.
func MergedFieldValue(flags models.FlagSet, collections []string) []string {
	return append(flags.Names(), collections...)
}

func containsName(list []string, value string) bool {
	for _, v := range list {
		if v == value {
			return true
		}
	}
	return false
}
