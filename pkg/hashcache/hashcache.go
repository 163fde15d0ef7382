// Package hashcache persists computed content fingerprints keyed by device
// path so unchanged books are not rehashed across sessions. The archive
// lives locally for the duration of a scan and is mirrored onto the device
// when the scan completes.
package hashcache

import (
	"archive/zip"
	"context"
	"io"
	"os"
	"path"
	"path/filepath"

	"github.com/marvinsync/marvinsync/pkg/deviceio"
	"github.com/marvinsync/marvinsync/pkg/epubhash"
	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/logger"
)

// ArchiveName is the cache archive's filename, both locally and on the
// device.
const ArchiveName = "content_hashes.zip"

// sentinelEntry marks a freshly created archive that has no real entries
// yet.
const sentinelEntry = "Marvin hash cache"

type Options struct {
	LocalDir        string
	RemoteFolder    string
	DocumentsFolder string
	Disabled        bool

	// Verbose logs every computed digest; meant for development mode.
	Verbose bool

	// Hasher is swappable for tests; defaults to epubhash.Compute.
	Hasher func(path string) (string, error)
}

type Cache struct {
	io   deviceio.IO
	opts Options
	log  logger.Logger

	entries map[string]string
	dirty   bool
}

func New(deviceIO deviceio.IO, opts Options) *Cache {
	if opts.Hasher == nil {
		opts.Hasher = epubhash.Compute
	}
	return &Cache{
		io:      deviceIO,
		opts:    opts,
		log:     logger.New(),
		entries: map[string]string{},
	}
}

func (c *Cache) localPath() string {
	return filepath.Join(c.opts.LocalDir, ArchiveName)
}

func (c *Cache) remotePath() string {
	return path.Join(c.opts.RemoteFolder, ArchiveName)
}

// Localize copies the remote cache archive to local storage, or creates an
// empty archive when none exists (or caching is disabled). It must be
// called once per session before GetOrCompute.
func (c *Cache) Localize(ctx context.Context) error {
	if err := os.MkdirAll(c.opts.LocalDir, 0755); err != nil {
		return errors.WithStack(err)
	}

	remoteExists, err := c.io.Exists(ctx, c.remotePath())
	if err != nil {
		return err
	}

	if remoteExists && !c.opts.Disabled {
		c.log.Debug("copying remote hash cache")
		if err := c.io.CopyFromDevice(ctx, c.remotePath(), c.localPath()); err != nil {
			return err
		}
		return c.loadEntries()
	}

	// Confirm the remote folder is a valid store point for the later push.
	folderExists, err := c.io.Exists(ctx, c.opts.RemoteFolder)
	if err != nil {
		return err
	}
	if !folderExists {
		c.log.Debug("creating remote cache folder", logger.Data{"folder": c.opts.RemoteFolder})
		if err := c.io.Mkdir(ctx, c.opts.RemoteFolder); err != nil {
			return err
		}
	}

	c.log.Debug("creating new local hash cache", logger.Data{"path": c.localPath()})
	c.entries = map[string]string{}
	return c.writeArchive()
}

// GetOrCompute returns the cached hash for a device path, fetching the book
// from the device and hashing it on a miss. Repeated calls for the same
// path within a session never re-copy from the device.
func (c *Cache) GetOrCompute(ctx context.Context, devicePath string) (string, error) {
	if hash, ok := c.entries[devicePath]; ok {
		return hash, nil
	}

	remote := path.Join(c.opts.DocumentsFolder, devicePath)
	local := filepath.Join(c.opts.LocalDir, path.Base(devicePath))

	if err := c.io.CopyFromDevice(ctx, remote, local); err != nil {
		return epubhash.Unavailable, err
	}
	defer os.Remove(local)

	hash, err := c.opts.Hasher(local)
	if err != nil {
		return epubhash.Unavailable, err
	}
	if c.opts.Verbose {
		c.log.Info("computed content hash", logger.Data{"path": devicePath, "hash": hash})
	}

	c.entries[devicePath] = hash
	c.dirty = true
	return hash, nil
}

// PurgeOrphans drops entries whose path is no longer in the current device
// book set.
func (c *Cache) PurgeOrphans(currentPaths map[string]bool) {
	for p := range c.entries {
		if !currentPaths[p] {
			c.log.Debug("removing orphan from hash cache", logger.Data{"path": p})
			delete(c.entries, p)
			c.dirty = true
		}
	}
}

// PushRemote mirrors the local archive back onto the device. When caching
// is disabled by configuration, the remote archive is deleted instead.
func (c *Cache) PushRemote(ctx context.Context) error {
	if c.opts.Disabled {
		c.log.Debug("hash caching disabled, deleting remote hash cache")
		exists, err := c.io.Exists(ctx, c.remotePath())
		if err != nil {
			return err
		}
		if exists {
			return c.io.Remove(ctx, c.remotePath())
		}
		return nil
	}

	if c.dirty {
		if err := c.writeArchive(); err != nil {
			return err
		}
		c.dirty = false
	}

	return c.io.CopyToDevice(ctx, c.localPath(), c.remotePath())
}

// Len returns the number of cached entries.
func (c *Cache) Len() int {
	return len(c.entries)
}

func (c *Cache) loadEntries() error {
	c.entries = map[string]string{}

	zr, err := zip.OpenReader(c.localPath())
	if err != nil {
		return errors.WithStack(err)
	}
	defer zr.Close()

	for _, file := range zr.File {
		if file.Name == sentinelEntry {
			continue
		}
		r, err := file.Open()
		if err != nil {
			return errors.WithStack(err)
		}
		digest, err := io.ReadAll(r)
		r.Close()
		if err != nil {
			return errors.WithStack(err)
		}
		c.entries[file.Name] = string(digest)
	}
	return nil
}

func (c *Cache) writeArchive() error {
	f, err := os.Create(c.localPath())
	if err != nil {
		return errors.WithStack(err)
	}

	zw := zip.NewWriter(f)
	if len(c.entries) == 0 {
		w, err := zw.Create(sentinelEntry)
		if err != nil {
			f.Close()
			return errors.WithStack(err)
		}
		_, _ = w.Write([]byte{})
	}
	for entryPath, digest := range c.entries {
		w, err := zw.Create(entryPath)
		if err != nil {
			f.Close()
			return errors.WithStack(err)
		}
		if _, err := w.Write([]byte(digest)); err != nil {
			f.Close()
			return errors.WithStack(err)
		}
	}

	if err := zw.Close(); err != nil {
		f.Close()
		return errors.WithStack(err)
	}
	return errors.WithStack(f.Close())
}
