// Package library builds an in-memory index of the calibre catalog for
// matching. The index is rebuilt only when the library actually changed;
// an unchanged library returns the cached index untouched.
package library

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/marvinsync/marvinsync/pkg/calibre"
	"github.com/marvinsync/marvinsync/pkg/epubhash"
	"github.com/marvinsync/marvinsync/pkg/errcodes"
	"github.com/robinjoseph08/golib/logger"
)

// HashMap maps a content hash to the library UUIDs that share it.
// Duplicate entries in the library mean a hash can carry several UUIDs.
type HashMap map[string][]string

// Index is one snapshot of the EPUB-bearing books in the active view.
type Index struct {
	Books   []*calibre.Book
	ByUUID  map[string]*calibre.Book
	ByTitle map[string][]*calibre.Book

	// Hashes holds uuid → content hash, populated by ScanHashes.
	Hashes map[string]string

	lastModified time.Time
	identity     string
	filter       string
}

type Indexer struct {
	catalog calibre.Catalog
	log     logger.Logger

	mu     sync.Mutex
	cached *Index
}

func NewIndexer(catalog calibre.Catalog) *Indexer {
	return &Indexer{
		catalog: catalog,
		log:     logger.New(),
	}
}

// Index returns the current snapshot. When the library's last-modified
// timestamp, database identity, and active filter are all unchanged, the
// previously built *Index is returned as-is.
func (ix *Indexer) Index(ctx context.Context) (*Index, error) {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	modified, err := ix.catalog.LastModified(ctx)
	if err != nil {
		return nil, err
	}
	identity, err := ix.catalog.Identity(ctx)
	if err != nil {
		return nil, err
	}
	filter := ix.catalog.ActiveFilter()

	if ix.cached != nil &&
		ix.cached.lastModified.Equal(modified) &&
		ix.cached.identity == identity &&
		ix.cached.filter == filter {
		ix.log.Debug("library unchanged, reusing index", logger.Data{"books": len(ix.cached.Books)})
		return ix.cached, nil
	}

	books, err := ix.catalog.Books(ctx)
	if err != nil {
		return nil, err
	}

	idx := &Index{
		Books:        books,
		ByUUID:       make(map[string]*calibre.Book, len(books)),
		ByTitle:      map[string][]*calibre.Book{},
		Hashes:       map[string]string{},
		lastModified: modified,
		identity:     identity,
		filter:       filter,
	}
	for _, book := range books {
		idx.ByUUID[book.UUID] = book
		key := TitleKey(book.Title)
		idx.ByTitle[key] = append(idx.ByTitle[key], book)
	}

	ix.log.Info("library index built", logger.Data{"books": len(books), "filter": filter})
	ix.cached = idx
	return idx, nil
}

// Invalidate drops the cached snapshot.
func (ix *Indexer) Invalidate() {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.cached = nil
}

// TitleKey normalizes a title for case-insensitive lookup in ByTitle.
func TitleKey(title string) string {
	return strings.ToLower(strings.TrimSpace(title))
}

// ScanHashes computes the content hash of every indexed book. A book whose
// file can't be read degrades to the unavailable sentinel; only a cancelled
// context aborts, at the next book boundary, discarding the partial result.
// hashFn defaults to epubhash.Compute; progressFn may be nil.
func (idx *Index) ScanHashes(ctx context.Context, catalog calibre.Catalog, hashFn func(string) (string, error), progressFn func(done, total int)) error {
	if hashFn == nil {
		hashFn = epubhash.Compute
	}
	log := logger.New()

	hashes := make(map[string]string, len(idx.Books))
	for i, book := range idx.Books {
		select {
		case <-ctx.Done():
			return errcodes.Aborted("library hash scan")
		default:
		}

		hash, err := hashFn(catalog.EPUBPath(book))
		if err != nil {
			log.Err(err).Warn("can't hash library book", logger.Data{"book": book.Title})
			hash = epubhash.Unavailable
		}
		hashes[book.UUID] = hash

		if progressFn != nil {
			progressFn(i+1, len(idx.Books))
		}
	}

	idx.Hashes = hashes
	return nil
}

// BuildHashMap inverts the scanned hashes. Books whose hash is unavailable
// are left out: they can never hash-match.
func (idx *Index) BuildHashMap() HashMap {
	hm := HashMap{}
	for uuid, hash := range idx.Hashes {
		if hash == epubhash.Unavailable {
			continue
		}
		hm[hash] = append(hm[hash], uuid)
	}
	return hm
}
