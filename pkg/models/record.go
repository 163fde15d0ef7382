package models

import "time"

// BookRecord is the working profile of one installed device book, assembled
// fresh on every inventory scan. Path is the stable join key between the
// device driver's book cache and the record; BookID is stable only within
// one device-database snapshot.
type BookRecord struct {
	BookID int
	UUID   string
	Path   string

	Title       string
	TitleSort   string
	Authors     []string
	AuthorSort  string
	Publisher   string
	Series      string
	SeriesIndex float64
	Pubdate     *time.Time
	Comments    string
	Tags        []string

	Flags             FlagSet
	CoverHash         string
	DeviceCollections []string
	Progress          float64
	DateOpened        *time.Time
	WordCount         int
	Highlights        []string
	Articles          map[string]map[string]string
	Vocabulary        []string
	DeepViewPrepared  bool

	// Derived during a scan.
	Hash               string
	Matches            []string
	CalibreID          *int
	CalibreCollections []string
	OnDevice           string
	MetadataMismatches Mismatches
}

// HasArticles reports whether any pinned or wiki articles exist.
func (r *BookRecord) HasArticles() bool {
	return len(r.Articles) > 0
}
