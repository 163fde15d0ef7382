package main

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/marvinsync/marvinsync/pkg/calibre"
	"github.com/marvinsync/marvinsync/pkg/collections"
	"github.com/marvinsync/marvinsync/pkg/command"
	"github.com/marvinsync/marvinsync/pkg/config"
	"github.com/marvinsync/marvinsync/pkg/database"
	"github.com/marvinsync/marvinsync/pkg/deviceio"
	"github.com/marvinsync/marvinsync/pkg/hashcache"
	"github.com/marvinsync/marvinsync/pkg/inventory"
	"github.com/marvinsync/marvinsync/pkg/library"
	"github.com/marvinsync/marvinsync/pkg/models"
	"github.com/marvinsync/marvinsync/pkg/scanner"
	"github.com/robinjoseph08/golib/logger"
	"github.com/schollz/progressbar/v3"
	"github.com/uptrace/bun"
)

// deviceDatabasePath is where the reading app keeps its database on the
// mount.
const deviceDatabasePath = "Library/mainDb.sql"

type app struct {
	ctx context.Context
	cfg *config.Config
	log logger.Logger

	calibreDB  *bun.DB
	deviceDB   *bun.DB
	catalog    *calibre.DB
	scanner    *scanner.Scanner
	reconciler *collections.Reconciler
	runner     *command.Runner
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	dbOpts := database.Options{
		Debug:             cfg.DatabaseDebug,
		MaxRetries:        cfg.DatabaseMaxRetries,
		ConnectRetryCount: cfg.DatabaseConnectRetryCount,
		ConnectRetryDelay: cfg.DatabaseConnectRetryDelay,
	}

	calibreDB, err := database.Open(filepath.Join(cfg.CalibreLibraryPath, "metadata.db"), dbOpts)
	if err != nil {
		return nil, err
	}
	deviceDB, err := database.Open(filepath.Join(cfg.DeviceMount, deviceDatabasePath), dbOpts)
	if err != nil {
		return nil, err
	}

	catalog := calibre.NewDB(calibreDB, cfg.CalibreLibraryPath)
	dev := deviceio.NewLocal(cfg.DeviceMount)

	hashes := hashcache.New(dev, hashcache.Options{
		LocalDir:        cfg.CacheDir,
		RemoteFolder:    cfg.RemoteCacheFolder,
		DocumentsFolder: cfg.RemoteDocumentsFolder,
		Disabled:        cfg.User.HashCachingDisabled,
		Verbose:         cfg.User.DevelopmentMode,
	})
	covers := inventory.OpenCoverArchive(
		filepath.Join(cfg.CacheDir, "cover_hashes.json"),
		cfg.User.ThumbnailHeight,
	)

	indexer := library.NewIndexer(catalog)
	inventorySvc := inventory.NewService(deviceDB, catalog, hashes, covers)

	return &app{
		ctx:        ctx,
		cfg:        cfg,
		log:        logger.New(),
		calibreDB:  calibreDB,
		deviceDB:   deviceDB,
		catalog:    catalog,
		scanner:    scanner.New(catalog, indexer, inventorySvc),
		reconciler: collections.NewReconciler(catalog, collections.NewDeviceStore(deviceDB), cfg.User.CollectionsField),
		runner:     command.NewRunner(dev, cfg.StagingFolder, cfg.StatusPath),
	}, nil
}

func (a *app) Close() {
	if err := a.deviceDB.Close(); err != nil {
		a.log.Err(err).Error("device database close error")
	}
	if err := a.calibreDB.Close(); err != nil {
		a.log.Err(err).Error("calibre database close error")
	}
}

// runScan executes the pipeline with a per-phase progress bar.
func (a *app) runScan() (*scanner.Result, error) {
	var bar *progressbar.ProgressBar
	var phase scanner.Phase

	result, err := a.scanner.Run(a.ctx, func(p scanner.Progress) {
		if bar == nil || p.Phase != phase {
			phase = p.Phase
			bar = a.newBar(p.Total, string(p.Phase))
		}
		_ = bar.Set(p.Done)
	})
	if bar != nil {
		_ = bar.Finish()
	}
	return result, err
}

func (a *app) newBar(total int, description string) *progressbar.ProgressBar {
	opts := []progressbar.Option{
		progressbar.OptionSetDescription(description),
		progressbar.OptionClearOnFinish(),
	}
	if !a.cfg.User.ShowProgressAsPercentage {
		opts = append(opts, progressbar.OptionShowCount())
	}
	return progressbar.NewOptions(total, opts...)
}

func joinAuthors(authors []string) string {
	return strings.Join(authors, ", ")
}

// selectRecords filters the inventory by path, UUID, or title. No
// selectors selects everything.
func selectRecords(records []*models.BookRecord, selectors []string) []*models.BookRecord {
	if len(selectors) == 0 {
		return records
	}

	wanted := make(map[string]bool, len(selectors))
	for _, s := range selectors {
		wanted[strings.ToLower(s)] = true
	}

	out := []*models.BookRecord{}
	for _, record := range records {
		if wanted[strings.ToLower(record.Path)] ||
			wanted[strings.ToLower(record.UUID)] ||
			wanted[strings.ToLower(record.Title)] {
			out = append(out, record)
		}
	}
	return out
}
