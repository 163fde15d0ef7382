// Package calibre reads and writes a calibre library's metadata.db
// directly. The catalog exposes the EPUB-bearing books of the active view
// together with the custom columns the user mapped for reconciliation.
package calibre

import (
	"context"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	"github.com/uptrace/bun"
)

// Catalog is the library surface consumed by the indexer and the
// reconcilers.
type Catalog interface {
	Books(ctx context.Context) ([]*Book, error)
	LastModified(ctx context.Context) (time.Time, error)
	Identity(ctx context.Context) (string, error)
	ActiveFilter() string
	EPUBPath(book *Book) string
	CoverPath(book *Book) string

	ReadMultiple(ctx context.Context, field string, bookID int) ([]string, error)
	WriteMultiple(ctx context.Context, field string, bookID int, values []string) error
	ReadValue(ctx context.Context, field string, bookID int) (string, error)
	WriteValue(ctx context.Context, field string, bookID int, value any) error
}

type DB struct {
	db          *bun.DB
	libraryPath string

	filterName string
	filterIDs  map[int]bool
}

func NewDB(db *bun.DB, libraryPath string) *DB {
	return &DB{db: db, libraryPath: libraryPath}
}

// SetActiveFilter restricts the catalog to a named saved search. An empty
// name clears the restriction.
func (c *DB) SetActiveFilter(name string, ids []int) {
	c.filterName = name
	c.filterIDs = nil
	if name == "" {
		return
	}
	c.filterIDs = make(map[int]bool, len(ids))
	for _, id := range ids {
		c.filterIDs[id] = true
	}
}

func (c *DB) ActiveFilter() string {
	return c.filterName
}

type nameLink struct {
	BookID int    `bun:"book"`
	Name   string `bun:"name"`
}

type textLink struct {
	BookID int    `bun:"book"`
	Text   string `bun:"text"`
}

// Books returns the catalog entries of the active view that carry an EPUB
// format. Children are bulk-loaded and folded in per book.
func (c *DB) Books(ctx context.Context) ([]*Book, error) {
	formats := []*dataRow{}
	err := c.db.
		NewSelect().
		Model(&formats).
		Where("d.format = ?", "EPUB").
		Scan(ctx)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	epubNames := make(map[int]string, len(formats))
	for _, f := range formats {
		epubNames[f.BookID] = f.Name
	}

	rows := []*bookRow{}
	err = c.db.
		NewSelect().
		Model(&rows).
		Order("b.id ASC").
		Scan(ctx)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	authors, err := c.loadNames(ctx, "books_authors_link", "author", "authors")
	if err != nil {
		return nil, err
	}
	publishers, err := c.loadNames(ctx, "books_publishers_link", "publisher", "publishers")
	if err != nil {
		return nil, err
	}
	series, err := c.loadNames(ctx, "books_series_link", "series", "series")
	if err != nil {
		return nil, err
	}
	tags, err := c.loadNames(ctx, "books_tags_link", "tag", "tags")
	if err != nil {
		return nil, err
	}
	comments, err := c.loadComments(ctx)
	if err != nil {
		return nil, err
	}

	books := make([]*Book, 0, len(rows))
	for _, row := range rows {
		epubName, ok := epubNames[row.ID]
		if !ok {
			continue
		}
		if c.filterIDs != nil && !c.filterIDs[row.ID] {
			continue
		}

		book := &Book{
			ID:          row.ID,
			Title:       row.Title,
			TitleSort:   row.Sort,
			Authors:     authors[row.ID],
			AuthorSort:  row.AuthorSort,
			SeriesIndex: row.SeriesIndex,
			Pubdate:     parseTime(row.Pubdate),
			Comments:    comments[row.ID],
			Tags:        tags[row.ID],
			UUID:        row.UUID,
			Path:        row.Path,
			EPUBName:    epubName,
			HasCover:    row.HasCover,
		}
		if book.Authors == nil {
			book.Authors = []string{}
		}
		if book.Tags == nil {
			book.Tags = []string{}
		}
		if names := publishers[row.ID]; len(names) > 0 {
			book.Publisher = names[0]
		}
		if names := series[row.ID]; len(names) > 0 {
			book.Series = names[0]
		}
		if t := parseTime(row.LastModified); t != nil {
			book.LastModified = *t
		}
		books = append(books, book)
	}

	return books, nil
}

// LastModified returns the newest last_modified timestamp across the
// library, the staleness signal for the index.
func (c *DB) LastModified(ctx context.Context) (time.Time, error) {
	var value string
	err := c.db.
		NewSelect().
		Model((*bookRow)(nil)).
		ColumnExpr("COALESCE(MAX(b.last_modified), '')").
		Scan(ctx, &value)
	if err != nil {
		return time.Time{}, errors.WithStack(err)
	}

	if t := parseTime(value); t != nil {
		return *t, nil
	}
	return time.Time{}, nil
}

// Identity returns the library's stable UUID.
func (c *DB) Identity(ctx context.Context) (string, error) {
	row := &libraryID{}
	err := c.db.
		NewSelect().
		Model(row).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return "", errors.WithStack(err)
	}
	return row.UUID, nil
}

func (c *DB) EPUBPath(book *Book) string {
	return filepath.Join(c.libraryPath, filepath.FromSlash(book.Path), book.EPUBName+".epub")
}

func (c *DB) CoverPath(book *Book) string {
	return filepath.Join(c.libraryPath, filepath.FromSlash(book.Path), "cover.jpg")
}

func (c *DB) loadNames(ctx context.Context, linkTable, linkColumn, nameTable string) (map[int][]string, error) {
	links := []nameLink{}
	err := c.db.
		NewSelect().
		TableExpr("? AS l", bun.Ident(linkTable)).
		ColumnExpr("l.book, n.name").
		Join("JOIN ? AS n ON n.id = l.?", bun.Ident(nameTable), bun.Ident(linkColumn)).
		OrderExpr("l.book, l.id").
		Scan(ctx, &links)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	out := map[int][]string{}
	for _, link := range links {
		out[link.BookID] = append(out[link.BookID], link.Name)
	}
	return out, nil
}

func (c *DB) loadComments(ctx context.Context) (map[int]string, error) {
	links := []textLink{}
	err := c.db.
		NewSelect().
		TableExpr("comments AS c").
		ColumnExpr("c.book, c.text").
		Scan(ctx, &links)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	out := map[int]string{}
	for _, link := range links {
		out[link.BookID] = link.Text
	}
	return out, nil
}
