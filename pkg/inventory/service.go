// Package inventory scans the device's embedded database into BookRecords:
// one per installed book, with flags, collections, annotations, the content
// hash, the resolved library entry, and the per-field mismatch report.
package inventory

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/marvinsync/marvinsync/pkg/calibre"
	"github.com/marvinsync/marvinsync/pkg/errcodes"
	"github.com/marvinsync/marvinsync/pkg/hashcache"
	"github.com/marvinsync/marvinsync/pkg/library"
	"github.com/marvinsync/marvinsync/pkg/models"
	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/logger"
	"github.com/uptrace/bun"
)

type Service struct {
	db      *bun.DB
	catalog calibre.Catalog
	hashes  *hashcache.Cache
	covers  *CoverArchive
	log     logger.Logger
}

func NewService(db *bun.DB, catalog calibre.Catalog, hashes *hashcache.Cache, covers *CoverArchive) *Service {
	return &Service{
		db:      db,
		catalog: catalog,
		hashes:  hashes,
		covers:  covers,
		log:     logger.New(),
	}
}

// InstalledBooks builds one BookRecord per device book, resolved against
// the library index. Hash and cover caches are purged of orphans and
// persisted once the walk completes. A cancelled context aborts at the
// next book boundary and discards the partial inventory.
func (svc *Service) InstalledBooks(ctx context.Context, idx *library.Index, progressFn func(done, total int)) ([]*models.BookRecord, error) {
	if err := svc.hashes.Localize(ctx); err != nil {
		return nil, err
	}

	books := []*models.DeviceBook{}
	err := svc.db.
		NewSelect().
		Model(&books).
		Order("b.ID ASC").
		Scan(ctx)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	collectionNames, err := svc.collectionNames(ctx)
	if err != nil {
		return nil, err
	}

	records := make([]*models.BookRecord, 0, len(books))
	currentPaths := make(map[string]bool, len(books))
	currentIDs := map[int]bool{}

	for i, book := range books {
		select {
		case <-ctx.Done():
			return nil, errcodes.Aborted("device inventory")
		default:
		}

		record, err := svc.buildRecord(ctx, book, collectionNames)
		if err != nil {
			return nil, err
		}
		currentPaths[record.Path] = true

		if lib := resolveLibraryBook(idx, record); lib != nil {
			id := lib.ID
			record.CalibreID = &id
			record.OnDevice = record.Path
			currentIDs[lib.ID] = true

			coverHash := ""
			if lib.HasCover {
				coverHash = svc.covers.Hash(lib.ID, svc.catalog.CoverPath(lib))
			}
			record.MetadataMismatches = CompareMetadata(lib, record, coverHash)
		}

		records = append(records, record)
		if progressFn != nil {
			progressFn(i+1, len(books))
		}
	}

	svc.hashes.PurgeOrphans(currentPaths)
	if err := svc.hashes.PushRemote(ctx); err != nil {
		return nil, err
	}

	svc.covers.Purge(currentIDs)
	if err := svc.covers.Save(); err != nil {
		svc.log.Err(err).Warn("can't save cover hash archive")
	}

	svc.log.Info("device inventory complete", logger.Data{"books": len(records)})
	return records, nil
}

func (svc *Service) collectionNames(ctx context.Context) (map[int]string, error) {
	collections := []*models.DeviceCollection{}
	err := svc.db.
		NewSelect().
		Model(&collections).
		Order("c.ID ASC").
		Scan(ctx)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	names := make(map[int]string, len(collections))
	for _, c := range collections {
		names[c.ID] = c.Name
	}
	return names, nil
}

func (svc *Service) buildRecord(ctx context.Context, book *models.DeviceBook, collectionNames map[int]string) (*models.BookRecord, error) {
	record := &models.BookRecord{
		BookID:             book.ID,
		UUID:               book.UUID,
		Path:               book.FileName,
		Title:              book.Title,
		TitleSort:          book.CalibreTitleSort,
		Authors:            splitAuthors(book.Author),
		AuthorSort:         book.AuthorSort,
		Publisher:          book.Publisher,
		Series:             book.CalibreSeries,
		Comments:           book.Description,
		Flags:              book.Flags(),
		CoverHash:          book.CalibreCoverHash,
		Progress:           book.Progress,
		WordCount:          book.WordCount,
		DeepViewPrepared:   book.DeepViewPrepared,
		Tags:               []string{},
		DeviceCollections:  []string{},
		Highlights:         []string{},
		Vocabulary:         []string{},
		MetadataMismatches: models.Mismatches{},
	}

	if index, err := strconv.ParseFloat(book.CalibreSeriesIndex, 64); err == nil {
		record.SeriesIndex = index
	}
	if book.DatePublished > 0 {
		t := time.Unix(book.DatePublished, 0).UTC()
		record.Pubdate = &t
	}
	if book.DateOpened > 0 {
		t := time.Unix(book.DateOpened, 0).UTC()
		record.DateOpened = &t
	}

	hash, err := svc.hashes.GetOrCompute(ctx, book.FileName)
	if err != nil {
		return nil, err
	}
	record.Hash = hash

	// Child records, each an independent query keyed by the device book id.
	collectionIDs := []int{}
	err = svc.db.
		NewSelect().
		Model((*models.DeviceBookCollection)(nil)).
		Column("bc.CollectionID").
		Where("bc.BookID = ?", book.ID).
		Order("bc.CollectionID ASC").
		Scan(ctx, &collectionIDs)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	for _, id := range collectionIDs {
		if name, ok := collectionNames[id]; ok {
			record.DeviceCollections = append(record.DeviceCollections, name)
		}
	}

	highlights := []*models.DeviceHighlight{}
	err = svc.db.
		NewSelect().
		Model(&highlights).
		Where("h.BookID = ?", book.ID).
		Scan(ctx)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	for _, h := range highlights {
		record.Highlights = append(record.Highlights, renderHighlight(h))
	}

	err = svc.db.
		NewSelect().
		Model((*models.DeviceVocabularyWord)(nil)).
		Column("v.Word").
		Where("v.BookID = ?", book.ID).
		Scan(ctx, &record.Vocabulary)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	err = svc.db.
		NewSelect().
		Model((*models.DeviceBookSubject)(nil)).
		Column("bs.Subject").
		Where("bs.BookID = ?", book.ID).
		Scan(ctx, &record.Tags)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	articles, err := svc.loadArticles(ctx, book.ID)
	if err != nil {
		return nil, err
	}
	record.Articles = articles

	return record, nil
}

func (svc *Service) loadArticles(ctx context.Context, bookID int) (map[string]map[string]string, error) {
	articles := map[string]map[string]string{}

	pinned := []*models.DevicePinnedArticle{}
	err := svc.db.
		NewSelect().
		Model(&pinned).
		Where("pa.BookID = ?", bookID).
		Scan(ctx)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	if len(pinned) > 0 {
		articles["Pinned"] = map[string]string{}
		for _, a := range pinned {
			articles["Pinned"][a.Title] = a.URL
		}
	}

	wiki := []*models.DeviceWikiSnippet{}
	err = svc.db.
		NewSelect().
		Model(&wiki).
		Where("w.BookID = ?", bookID).
		Scan(ctx)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	if len(wiki) > 0 {
		articles["Wiki"] = map[string]string{}
		for _, w := range wiki {
			articles["Wiki"][w.Title] = w.Snippet
		}
	}

	return articles, nil
}

// resolveLibraryBook matches a device record to a library entry: UUID
// first, then exact title + author-list match.
func resolveLibraryBook(idx *library.Index, record *models.BookRecord) *calibre.Book {
	if record.UUID != "" {
		if book, ok := idx.ByUUID[record.UUID]; ok {
			return book
		}
	}
	for _, book := range idx.ByTitle[library.TitleKey(record.Title)] {
		if strings.Join(book.Authors, ", ") == strings.Join(record.Authors, ", ") {
			return book
		}
	}
	return nil
}

// renderHighlight formats one highlight as the HTML fragment stored in the
// mapped annotations field.
func renderHighlight(h *models.DeviceHighlight) string {
	if h.Note != "" {
		return fmt.Sprintf("<p>%s<br/><em>%s</em></p>", h.Text, h.Note)
	}
	return fmt.Sprintf("<p>%s</p>", h.Text)
}

func splitAuthors(author string) []string {
	if strings.TrimSpace(author) == "" {
		return []string{}
	}
	return strings.Split(author, ", ")
}
