package calibre

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/marvinsync/marvinsync/pkg/errcodes"
	"github.com/pkg/errors"
	"github.com/uptrace/bun"
)

// customColumnFor resolves a user-mapped lookup name ("#collections") to
// its custom_columns row. An empty mapping or an unknown label yields
// errcodes.NotConfigured: the caller skips that reconciliation path.
func (c *DB) customColumnFor(ctx context.Context, field string) (*customColumn, error) {
	if field == "" {
		return nil, errcodes.NotConfigured(field)
	}
	label := strings.TrimPrefix(field, "#")

	col := &customColumn{}
	err := c.db.
		NewSelect().
		Model(col).
		Where("cc.label = ?", label).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errcodes.NotConfigured(field)
		}
		return nil, errors.WithStack(err)
	}
	return col, nil
}

// ReadMultiple returns the values linked to a book through a normalized
// multiple-value custom column, in link order.
func (c *DB) ReadMultiple(ctx context.Context, field string, bookID int) ([]string, error) {
	col, err := c.customColumnFor(ctx, field)
	if err != nil {
		return nil, err
	}
	if !col.Normalized {
		return nil, errors.Errorf("custom column %s is not normalized", field)
	}

	values := []string{}
	query := fmt.Sprintf(
		"SELECT c.value FROM books_custom_column_%d_link AS l JOIN custom_column_%d AS c ON c.id = l.value WHERE l.book = ? ORDER BY l.id",
		col.ID, col.ID)
	err = c.db.NewRaw(query, bookID).Scan(ctx, &values)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return values, nil
}

// WriteMultiple replaces the values linked to a book through a normalized
// multiple-value custom column.
func (c *DB) WriteMultiple(ctx context.Context, field string, bookID int, values []string) error {
	col, err := c.customColumnFor(ctx, field)
	if err != nil {
		return err
	}
	if !col.Normalized {
		return errors.Errorf("custom column %s is not normalized", field)
	}

	err = c.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		deleteLinks := fmt.Sprintf("DELETE FROM books_custom_column_%d_link WHERE book = ?", col.ID)
		if _, err := tx.NewRaw(deleteLinks, bookID).Exec(ctx); err != nil {
			return errors.WithStack(err)
		}

		for _, value := range values {
			var valueID int
			selectValue := fmt.Sprintf("SELECT id FROM custom_column_%d WHERE value = ?", col.ID)
			err := tx.NewRaw(selectValue, value).Scan(ctx, &valueID)
			if errors.Is(err, sql.ErrNoRows) {
				insertValue := fmt.Sprintf("INSERT INTO custom_column_%d (value) VALUES (?) RETURNING id", col.ID)
				err = tx.NewRaw(insertValue, value).Scan(ctx, &valueID)
			}
			if err != nil {
				return errors.WithStack(err)
			}

			insertLink := fmt.Sprintf("INSERT INTO books_custom_column_%d_link (book, value) VALUES (?, ?)", col.ID)
			if _, err := tx.NewRaw(insertLink, bookID, valueID).Exec(ctx); err != nil {
				return errors.WithStack(err)
			}
		}

		return nil
	})
	return errors.WithStack(err)
}

// ReadValue returns a book's value in a non-normalized custom column as
// text, or "" when unset.
func (c *DB) ReadValue(ctx context.Context, field string, bookID int) (string, error) {
	col, err := c.customColumnFor(ctx, field)
	if err != nil {
		return "", err
	}
	if col.Normalized {
		return "", errors.Errorf("custom column %s is normalized", field)
	}

	var value string
	query := fmt.Sprintf("SELECT value FROM custom_column_%d WHERE book = ?", col.ID)
	err = c.db.NewRaw(query, bookID).Scan(ctx, &value)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", nil
		}
		return "", errors.WithStack(err)
	}
	return value, nil
}

// WriteValue replaces a book's value in a non-normalized custom column.
// Times are written in calibre's ISO text shape; bools as 0/1.
func (c *DB) WriteValue(ctx context.Context, field string, bookID int, value any) error {
	col, err := c.customColumnFor(ctx, field)
	if err != nil {
		return err
	}
	if col.Normalized {
		return errors.Errorf("custom column %s is normalized", field)
	}

	var text string
	switch v := value.(type) {
	case time.Time:
		text = v.UTC().Format("2006-01-02 15:04:05-07:00")
	case *time.Time:
		if v == nil {
			text = ""
		} else {
			text = v.UTC().Format("2006-01-02 15:04:05-07:00")
		}
	case bool:
		if v {
			text = "1"
		} else {
			text = "0"
		}
	case int:
		text = strconv.Itoa(v)
	case float64:
		text = strconv.FormatFloat(v, 'f', -1, 64)
	case string:
		text = v
	default:
		return errors.Errorf("unsupported custom column value type %T", value)
	}

	err = c.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		deleteValue := fmt.Sprintf("DELETE FROM custom_column_%d WHERE book = ?", col.ID)
		if _, err := tx.NewRaw(deleteValue, bookID).Exec(ctx); err != nil {
			return errors.WithStack(err)
		}

		insertValue := fmt.Sprintf("INSERT INTO custom_column_%d (book, value) VALUES (?, ?)", col.ID)
		_, err := tx.NewRaw(insertValue, bookID, text).Exec(ctx)
		return errors.WithStack(err)
	})
	return errors.WithStack(err)
}
