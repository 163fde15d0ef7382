package inventory

import (
	"crypto/md5"
	"encoding/hex"
	"image"
	"os"

	// Calibre covers are JPEGs; PNG shows up in converted libraries.
	_ "image/jpeg"
	_ "image/png"

	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/logger"
	"github.com/segmentio/encoding/json"
	"golang.org/x/image/draw"
)

type coverEntry struct {
	Hash         string `json:"cover_hash"`
	LastModified int64  `json:"cover_last_modified"`
}

// CoverArchive caches cover thumbnail digests keyed by library book id so
// cover mismatches can be detected without rehashing full-size images.
// Entries are recomputed only when the cover file's mtime changes.
type CoverArchive struct {
	path            string
	thumbnailHeight int
	log             logger.Logger

	entries map[int]coverEntry
	dirty   bool
}

// OpenCoverArchive loads the JSON archive at path; a missing or unreadable
// archive starts empty.
func OpenCoverArchive(path string, thumbnailHeight int) *CoverArchive {
	a := &CoverArchive{
		path:            path,
		thumbnailHeight: thumbnailHeight,
		log:             logger.New(),
		entries:         map[int]coverEntry{},
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return a
	}
	if err := json.Unmarshal(data, &a.entries); err != nil {
		a.log.Err(err).Warn("discarding unreadable cover hash archive", logger.Data{"path": path})
		a.entries = map[int]coverEntry{}
	}
	return a
}

// Hash returns the thumbnail digest for a book's cover, from cache when
// the cover is unchanged. A missing or undecodable cover yields "".
func (a *CoverArchive) Hash(bookID int, coverPath string) string {
	info, err := os.Stat(coverPath)
	if err != nil {
		return ""
	}
	mtime := info.ModTime().Unix()

	if entry, ok := a.entries[bookID]; ok && entry.LastModified == mtime {
		return entry.Hash
	}

	hash, err := a.computeThumbnailHash(coverPath)
	if err != nil {
		a.log.Err(err).Debug("can't hash cover", logger.Data{"path": coverPath})
		return ""
	}

	a.entries[bookID] = coverEntry{Hash: hash, LastModified: mtime}
	a.dirty = true
	return hash
}

func (a *CoverArchive) computeThumbnailHash(coverPath string) (string, error) {
	f, err := os.Open(coverPath)
	if err != nil {
		return "", errors.WithStack(err)
	}
	defer f.Close()

	src, _, err := image.Decode(f)
	if err != nil {
		return "", errors.WithStack(err)
	}

	bounds := src.Bounds()
	height := a.thumbnailHeight
	width := bounds.Dx() * height / bounds.Dy()
	if width < 1 {
		width = 1
	}

	thumb := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.ApproxBiLinear.Scale(thumb, thumb.Bounds(), src, bounds, draw.Over, nil)

	sum := md5.Sum(thumb.Pix)
	return hex.EncodeToString(sum[:]), nil
}

// Purge drops entries for library ids no longer present.
func (a *CoverArchive) Purge(current map[int]bool) {
	for id := range a.entries {
		if !current[id] {
			delete(a.entries, id)
			a.dirty = true
		}
	}
}

// Save writes the archive back when anything changed.
func (a *CoverArchive) Save() error {
	if !a.dirty {
		return nil
	}

	data, err := json.Marshal(a.entries)
	if err != nil {
		return errors.WithStack(err)
	}
	if err := os.WriteFile(a.path, data, 0o644); err != nil {
		return errors.WithStack(err)
	}
	a.dirty = false
	return nil
}

// Len reports the number of cached cover digests.
func (a *CoverArchive) Len() int {
	return len(a.entries)
}
