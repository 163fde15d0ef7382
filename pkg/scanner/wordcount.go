package scanner

import (
	"archive/zip"
	"context"
	"encoding/xml"
	"io"
	"path"

	"github.com/marvinsync/marvinsync/pkg/calibre"
	"github.com/marvinsync/marvinsync/pkg/errcodes"
	"github.com/marvinsync/marvinsync/pkg/htmlutil"
	"github.com/marvinsync/marvinsync/pkg/library"
	"github.com/marvinsync/marvinsync/pkg/models"
	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/logger"
	"github.com/uptrace/bun"
)

type wcContainer struct {
	Rootfiles []struct {
		FullPath string `xml:"full-path,attr"`
	} `xml:"rootfiles>rootfile"`
}

type wcPackage struct {
	Items []struct {
		ID   string `xml:"id,attr"`
		Href string `xml:"href,attr"`
	} `xml:"manifest>item"`
	Refs []struct {
		IDRef string `xml:"idref,attr"`
	} `xml:"spine>itemref"`
}

// CountWords counts the words in an EPUB's spine documents, stripped of
// markup.
func CountWords(epubPath string) (int, error) {
	zr, err := zip.OpenReader(epubPath)
	if err != nil {
		return 0, errors.WithStack(err)
	}
	defer zr.Close()

	files := make(map[string]*zip.File, len(zr.File))
	for _, f := range zr.File {
		files[f.Name] = f
	}

	container := &wcContainer{}
	if err := decodeEntry(files["META-INF/container.xml"], container); err != nil {
		return 0, err
	}
	if len(container.Rootfiles) == 0 {
		return 0, errors.New("no rootfile in container")
	}
	opfPath := container.Rootfiles[0].FullPath

	pkg := &wcPackage{}
	if err := decodeEntry(files[opfPath], pkg); err != nil {
		return 0, err
	}

	hrefs := make(map[string]string, len(pkg.Items))
	for _, item := range pkg.Items {
		hrefs[item.ID] = item.Href
	}

	opfDir := path.Dir(opfPath)
	count := 0
	for _, ref := range pkg.Refs {
		href, ok := hrefs[ref.IDRef]
		if !ok {
			continue
		}
		name := href
		if opfDir != "." {
			name = path.Join(opfDir, href)
		}
		file, ok := files[name]
		if !ok {
			continue
		}

		rc, err := file.Open()
		if err != nil {
			return 0, errors.WithStack(err)
		}
		data, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return 0, errors.WithStack(err)
		}

		count += htmlutil.WordCount(string(data))
	}

	return count, nil
}

func decodeEntry(file *zip.File, dest any) error {
	if file == nil {
		return errors.New("missing container entry")
	}
	rc, err := file.Open()
	if err != nil {
		return errors.WithStack(err)
	}
	defer rc.Close()
	return errors.WithStack(xml.NewDecoder(rc).Decode(dest))
}

// WordCounter supplements scan results with spine word counts, written to
// the mapped custom column and, when a device handle is present, to the
// device's book row.
type WordCounter struct {
	catalog  calibre.Catalog
	field    string
	deviceDB *bun.DB
	log      logger.Logger
}

func NewWordCounter(catalog calibre.Catalog, field string, deviceDB *bun.DB) *WordCounter {
	return &WordCounter{
		catalog:  catalog,
		field:    field,
		deviceDB: deviceDB,
		log:      logger.New(),
	}
}

// Update recounts every resolved record from its library EPUB. Unreadable
// books are skipped; returns how many records were updated.
func (w *WordCounter) Update(ctx context.Context, idx *library.Index, records []*models.BookRecord) (int, error) {
	byID := make(map[int]*calibre.Book, len(idx.Books))
	for _, book := range idx.Books {
		byID[book.ID] = book
	}

	updated := 0
	for _, record := range records {
		select {
		case <-ctx.Done():
			return updated, errcodes.Aborted("word count")
		default:
		}

		if record.CalibreID == nil {
			continue
		}
		book, ok := byID[*record.CalibreID]
		if !ok {
			continue
		}

		count, err := CountWords(w.catalog.EPUBPath(book))
		if err != nil {
			w.log.Err(err).Debug("can't count words", logger.Data{"book": book.Title})
			continue
		}
		record.WordCount = count

		err = w.catalog.WriteValue(ctx, w.field, book.ID, count)
		if errcodes.HasCode(err, errcodes.CodeNotConfigured) {
			w.log.Debug("no word count column mapped, skipping library write")
		} else if err != nil {
			return updated, err
		}

		if w.deviceDB != nil {
			_, err := w.deviceDB.
				NewUpdate().
				Model((*models.DeviceBook)(nil)).
				Set("WordCount = ?", count).
				Where("ID = ?", record.BookID).
				Exec(ctx)
			if err != nil {
				return updated, errors.WithStack(err)
			}
		}

		updated++
	}

	return updated, nil
}
