package inventory

import (
	"sort"
	"strings"
	"time"

	"github.com/marvinsync/marvinsync/pkg/calibre"
	"github.com/marvinsync/marvinsync/pkg/models"
)

// pubdateTolerance is how far the two sides' publication dates may drift
// before they count as a mismatch. Device epochs lose sub-day precision,
// so differences of up to one day are expected.
const pubdateTolerance = 24 * time.Hour

type compareInput struct {
	Book             *calibre.Book
	Record           *models.BookRecord
	LibraryCoverHash string
}

// comparators is the per-field mismatch table. Each entry returns nil when
// the two sides agree under that field's tolerance.
var comparators = []struct {
	field   string
	compare func(in compareInput) *models.Mismatch
}{
	{"title", func(in compareInput) *models.Mismatch {
		return compareStrings(in.Book.Title, in.Record.Title)
	}},
	{"title_sort", func(in compareInput) *models.Mismatch {
		return compareStrings(in.Book.TitleSort, in.Record.TitleSort)
	}},
	{"authors", func(in compareInput) *models.Mismatch {
		library := strings.Join(in.Book.Authors, ", ")
		device := strings.Join(in.Record.Authors, ", ")
		if library == device {
			return nil
		}
		return &models.Mismatch{Library: in.Book.Authors, Device: in.Record.Authors}
	}},
	{"author_sort", func(in compareInput) *models.Mismatch {
		return compareStrings(in.Book.AuthorSort, in.Record.AuthorSort)
	}},
	{"publisher", func(in compareInput) *models.Mismatch {
		return compareStrings(in.Book.Publisher, in.Record.Publisher)
	}},
	{"comments", func(in compareInput) *models.Mismatch {
		return compareStrings(in.Book.Comments, in.Record.Comments)
	}},
	{"series", func(in compareInput) *models.Mismatch {
		return compareStrings(in.Book.Series, in.Record.Series)
	}},
	{"series_index", func(in compareInput) *models.Mismatch {
		if in.Book.Series == "" && in.Record.Series == "" {
			return nil
		}
		if in.Book.SeriesIndex == in.Record.SeriesIndex {
			return nil
		}
		return &models.Mismatch{Library: in.Book.SeriesIndex, Device: in.Record.SeriesIndex}
	}},
	{"uuid", func(in compareInput) *models.Mismatch {
		return compareStrings(in.Book.UUID, in.Record.UUID)
	}},
	{"tags", func(in compareInput) *models.Mismatch {
		// Tag sets are order-insensitive.
		library := sortedCopy(in.Book.Tags)
		device := sortedCopy(in.Record.Tags)
		if strings.Join(library, "\x00") == strings.Join(device, "\x00") {
			return nil
		}
		return &models.Mismatch{Library: in.Book.Tags, Device: in.Record.Tags}
	}},
	{"pubdate", func(in compareInput) *models.Mismatch {
		library, device := in.Book.Pubdate, in.Record.Pubdate
		if library == nil && device == nil {
			return nil
		}
		if library != nil && device != nil {
			delta := library.Sub(*device)
			if delta < 0 {
				delta = -delta
			}
			if delta <= pubdateTolerance {
				return nil
			}
		}
		return &models.Mismatch{Library: library, Device: device}
	}},
	{"cover_hash", func(in compareInput) *models.Mismatch {
		if in.LibraryCoverHash == "" || in.LibraryCoverHash == in.Record.CoverHash {
			return nil
		}
		return &models.Mismatch{Library: in.LibraryCoverHash, Device: in.Record.CoverHash}
	}},
}

// CompareMetadata reports the fields on which the resolved library book
// and the device record disagree.
func CompareMetadata(book *calibre.Book, record *models.BookRecord, libraryCoverHash string) models.Mismatches {
	in := compareInput{Book: book, Record: record, LibraryCoverHash: libraryCoverHash}

	mismatches := models.Mismatches{}
	for _, c := range comparators {
		if m := c.compare(in); m != nil {
			mismatches[c.field] = *m
		}
	}
	return mismatches
}

func compareStrings(library, device string) *models.Mismatch {
	if strings.TrimSpace(library) == strings.TrimSpace(device) {
		return nil
	}
	return &models.Mismatch{Library: library, Device: device}
}

func sortedCopy(values []string) []string {
	out := append([]string{}, values...)
	sort.Strings(out)
	return out
}
