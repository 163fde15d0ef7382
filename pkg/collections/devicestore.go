package collections

import (
	"context"
	"database/sql"

	"github.com/marvinsync/marvinsync/pkg/models"
	"github.com/pkg/errors"
	"github.com/uptrace/bun"
)

// DeviceStore applies the merged flag-and-collection field to the device
// database: flag names land on the boolean flag columns, the rest become
// collection memberships.
type DeviceStore struct {
	db *bun.DB
}

func NewDeviceStore(db *bun.DB) *DeviceStore {
	return &DeviceStore{db: db}
}

func (s *DeviceStore) UpdateCollections(ctx context.Context, path string, values []string) error {
	flags, names := splitMerged(values)

	return s.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		book := &models.DeviceBook{}
		err := tx.
			NewSelect().
			Model(book).
			Column("b.ID").
			Where("b.FileName = ?", path).
			Scan(ctx)
		if err != nil {
			return errors.Wrapf(err, "no device book at %s", path)
		}

		_, err = tx.
			NewUpdate().
			Model((*models.DeviceBook)(nil)).
			Set("NewFlag = ?", flags.Has(models.FlagNew)).
			Set("ReadingList = ?", flags.Has(models.FlagReadingList)).
			Set("IsRead = ?", flags.Has(models.FlagRead)).
			Where("ID = ?", book.ID).
			Exec(ctx)
		if err != nil {
			return errors.WithStack(err)
		}

		_, err = tx.
			NewDelete().
			Model((*models.DeviceBookCollection)(nil)).
			Where("BookID = ?", book.ID).
			Exec(ctx)
		if err != nil {
			return errors.WithStack(err)
		}

		for _, name := range names {
			id, err := collectionID(ctx, tx, name)
			if err != nil {
				return err
			}
			link := &models.DeviceBookCollection{BookID: book.ID, CollectionID: id}
			if _, err := tx.NewInsert().Model(link).Exec(ctx); err != nil {
				return errors.WithStack(err)
			}
		}

		return nil
	})
}

func collectionID(ctx context.Context, tx bun.Tx, name string) (int, error) {
	collection := &models.DeviceCollection{}
	err := tx.
		NewSelect().
		Model(collection).
		Where("c.Name = ?", name).
		Scan(ctx)
	if err == nil {
		return collection.ID, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, errors.WithStack(err)
	}

	collection = &models.DeviceCollection{Name: name}
	_, err = tx.NewInsert().Model(collection).Exec(ctx)
	if err != nil {
		return 0, errors.WithStack(err)
	}
	return collection.ID, nil
}

// splitMerged separates the device field back into flags and collection
// names; the flag names occupy reserved slots in the merged value.
func splitMerged(values []string) (models.FlagSet, []string) {
	var flags models.FlagSet
	names := []string{}
	for _, value := range values {
		switch value {
		case models.FlagNameNew:
			flags = flags.Set(models.FlagNew)
		case models.FlagNameReadingList:
			flags = flags.Set(models.FlagReadingList)
		case models.FlagNameRead:
			flags = flags.Set(models.FlagRead)
		default:
			names = append(names, value)
		}
	}
	return flags, names
}
