package scanner

import (
	"archive/zip"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/marvinsync/marvinsync/pkg/calibre"
	"github.com/marvinsync/marvinsync/pkg/library"
	"github.com/marvinsync/marvinsync/pkg/models"
	"github.com/robinjoseph08/golib/pointerutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const containerXML = `<?xml version="1.0"?>
<container version="1.0" xmlns="urn:oasis:names:tc:opendocument:xmlns:container">
  <rootfiles>
    <rootfile full-path="OEBPS/content.opf" media-type="application/oebps-package+xml"/>
  </rootfiles>
</container>`

const contentOPF = `<?xml version="1.0"?>
<package xmlns="http://www.idpf.org/2007/opf" version="2.0">
  <manifest>
    <item id="ch1" href="ch1.xhtml" media-type="application/xhtml+xml"/>
    <item id="ch2" href="ch2.xhtml" media-type="application/xhtml+xml"/>
    <item id="cover" href="cover.jpg" media-type="image/jpeg"/>
  </manifest>
  <spine>
    <itemref idref="ch1"/>
    <itemref idref="ch2"/>
  </spine>
</package>`

func writeEPUB(t *testing.T, path string) {
	t.Helper()

	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	zw := zip.NewWriter(f)
	entries := map[string]string{
		"META-INF/container.xml": containerXML,
		"OEBPS/content.opf":      contentOPF,
		"OEBPS/ch1.xhtml":        "<html><body><p>Call me Ishmael.</p></body></html>",
		"OEBPS/ch2.xhtml":        "<html><body><p>Some years ago &mdash; never mind how long</p></body></html>",
		"OEBPS/cover.jpg":        "not really a jpeg",
	}
	for name, body := range entries {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(body))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
}

func TestCountWords(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "book.epub")
	writeEPUB(t, path)

	count, err := CountWords(path)
	require.NoError(t, err)
	// "Call me Ishmael." (3) + "Some years ago — never mind how long" (8).
	assert.Equal(t, 11, count)
}

func TestCountWordsUnreadable(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "broken.epub")
	require.NoError(t, os.WriteFile(path, []byte("not a zip"), 0o644))

	_, err := CountWords(path)
	assert.Error(t, err)
}

func TestWordCounterUpdate(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	dir := t.TempDir()
	writeEPUB(t, filepath.Join(dir, "Moby Dick.epub"))

	catalog := &fakeCatalog{
		books: []*calibre.Book{
			{ID: 1, Title: "Moby Dick", UUID: "uuid-1"},
		},
		epubDir: dir,
	}
	idx, err := library.NewIndexer(catalog).Index(ctx)
	require.NoError(t, err)

	records := []*models.BookRecord{
		{BookID: 1, UUID: "uuid-1", CalibreID: pointerutil.Int(1)},
		{BookID: 2, UUID: "", Title: "Sideloaded"}, // unresolved, skipped
	}

	counter := NewWordCounter(catalog, "#word_count", nil)
	updated, err := counter.Update(ctx, idx, records)
	require.NoError(t, err)

	assert.Equal(t, 1, updated)
	assert.Equal(t, 11, records[0].WordCount)
	assert.Equal(t, 11, catalog.written["#word_count"])
	assert.Zero(t, records[1].WordCount)
}
