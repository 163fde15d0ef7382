package inventory

import (
	"testing"
	"time"

	"github.com/marvinsync/marvinsync/pkg/calibre"
	"github.com/marvinsync/marvinsync/pkg/models"
	"github.com/stretchr/testify/assert"
)

func libraryBook() *calibre.Book {
	pubdate := time.Date(1851, 10, 18, 0, 0, 0, 0, time.UTC)
	return &calibre.Book{
		ID:         1,
		Title:      "Moby Dick",
		TitleSort:  "Moby Dick",
		Authors:    []string{"Herman Melville"},
		AuthorSort: "Melville, Herman",
		Publisher:  "Harper & Brothers",
		Pubdate:    &pubdate,
		Tags:       []string{"Fiction", "Whaling"},
		UUID:       "uuid-1",
	}
}

func deviceRecord() *models.BookRecord {
	pubdate := time.Date(1851, 10, 18, 0, 0, 0, 0, time.UTC)
	return &models.BookRecord{
		Title:      "Moby Dick",
		TitleSort:  "Moby Dick",
		Authors:    []string{"Herman Melville"},
		AuthorSort: "Melville, Herman",
		Publisher:  "Harper & Brothers",
		Pubdate:    &pubdate,
		Tags:       []string{"Whaling", "Fiction"},
		UUID:       "uuid-1",
	}
}

func TestCompareMetadataAgreement(t *testing.T) {
	t.Parallel()

	// Tag order differs; everything still agrees.
	mismatches := CompareMetadata(libraryBook(), deviceRecord(), "")
	assert.Empty(t, mismatches)
}

func TestCompareMetadataPubdateTolerance(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		delta    time.Duration
		mismatch bool
	}{
		{"same instant", 0, false},
		{"twelve hours", 12 * time.Hour, false},
		{"exactly one day", 24 * time.Hour, false},
		{"two days", 48 * time.Hour, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			record := deviceRecord()
			shifted := record.Pubdate.Add(tt.delta)
			record.Pubdate = &shifted

			mismatches := CompareMetadata(libraryBook(), record, "")
			_, ok := mismatches["pubdate"]
			assert.Equal(t, tt.mismatch, ok)
		})
	}
}

func TestCompareMetadataPubdateMissingOnOneSide(t *testing.T) {
	t.Parallel()

	record := deviceRecord()
	record.Pubdate = nil
	mismatches := CompareMetadata(libraryBook(), record, "")
	assert.Contains(t, mismatches, "pubdate")

	book := libraryBook()
	book.Pubdate = nil
	mismatches = CompareMetadata(book, record, "")
	assert.NotContains(t, mismatches, "pubdate")
}

func TestCompareMetadataFieldDifferences(t *testing.T) {
	t.Parallel()

	record := deviceRecord()
	record.Title = "Moby-Dick; or, The Whale"
	record.Tags = []string{"Fiction"}
	record.UUID = "other-uuid"

	mismatches := CompareMetadata(libraryBook(), record, "")
	assert.Contains(t, mismatches, "title")
	assert.Contains(t, mismatches, "tags")
	assert.Contains(t, mismatches, "uuid")
	assert.NotContains(t, mismatches, "authors")

	m := mismatches["title"]
	assert.Equal(t, "Moby Dick", m.Library)
	assert.Equal(t, "Moby-Dick; or, The Whale", m.Device)
}

func TestCompareMetadataSeriesIndexOnlyWithSeries(t *testing.T) {
	t.Parallel()

	// Neither side has a series: the differing default indexes are noise.
	book := libraryBook()
	book.SeriesIndex = 1.0
	record := deviceRecord()
	record.SeriesIndex = 0

	mismatches := CompareMetadata(book, record, "")
	assert.NotContains(t, mismatches, "series_index")

	book.Series = "American Classics"
	mismatches = CompareMetadata(book, record, "")
	assert.Contains(t, mismatches, "series")
	assert.Contains(t, mismatches, "series_index")
}

func TestCompareMetadataCoverHash(t *testing.T) {
	t.Parallel()

	record := deviceRecord()
	record.CoverHash = "aaaa"

	// No library cover hash available: not comparable, no mismatch.
	mismatches := CompareMetadata(libraryBook(), record, "")
	assert.NotContains(t, mismatches, "cover_hash")

	mismatches = CompareMetadata(libraryBook(), record, "aaaa")
	assert.NotContains(t, mismatches, "cover_hash")

	mismatches = CompareMetadata(libraryBook(), record, "bbbb")
	assert.Contains(t, mismatches, "cover_hash")
}
