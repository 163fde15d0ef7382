package calibre

import (
	"strings"
	"time"

	"github.com/uptrace/bun"
)

// Book is one catalog entry assembled from metadata.db. Only books that
// carry an EPUB format reach the indexer.
type Book struct {
	ID           int
	Title        string
	TitleSort    string
	Authors      []string
	AuthorSort   string
	Publisher    string
	Series       string
	SeriesIndex  float64
	Pubdate      *time.Time
	Comments     string
	Tags         []string
	UUID         string
	Path         string
	EPUBName     string
	HasCover     bool
	LastModified time.Time
}

type bookRow struct {
	bun.BaseModel `bun:"table:books,alias:b"`

	ID           int     `bun:"id,pk"`
	Title        string  `bun:"title"`
	Sort         string  `bun:"sort"`
	SeriesIndex  float64 `bun:"series_index"`
	AuthorSort   string  `bun:"author_sort"`
	Path         string  `bun:"path"`
	Pubdate      string  `bun:"pubdate"`
	UUID         string  `bun:"uuid"`
	HasCover     bool    `bun:"has_cover"`
	LastModified string  `bun:"last_modified"`
}

type dataRow struct {
	bun.BaseModel `bun:"table:data,alias:d"`

	ID     int    `bun:"id,pk"`
	BookID int    `bun:"book"`
	Format string `bun:"format"`
	Name   string `bun:"name"`
}

type customColumn struct {
	bun.BaseModel `bun:"table:custom_columns,alias:cc"`

	ID         int    `bun:"id,pk"`
	Label      string `bun:"label"`
	Name       string `bun:"name"`
	Datatype   string `bun:"datatype"`
	IsMultiple bool   `bun:"is_multiple"`
	Normalized bool   `bun:"normalized"`
}

type libraryID struct {
	bun.BaseModel `bun:"table:library_id,alias:li"`

	ID   int    `bun:"id,pk"`
	UUID string `bun:"uuid"`
}

// Calibre writes ISO timestamps as text; the exact shape has drifted
// across versions, so try the known layouts in order.
var timeLayouts = []string{
	"2006-01-02 15:04:05-07:00",
	"2006-01-02T15:04:05-07:00",
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func parseTime(value string) *time.Time {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return &t
		}
	}
	return nil
}
