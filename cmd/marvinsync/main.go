package main

import (
	"context"
	"fmt"
	"os"
	"sort"

	"github.com/jessevdk/go-flags"
	"github.com/marvinsync/marvinsync/pkg/collections"
	"github.com/marvinsync/marvinsync/pkg/command"
	"github.com/marvinsync/marvinsync/pkg/config"
	"github.com/marvinsync/marvinsync/pkg/models"
	"github.com/marvinsync/marvinsync/pkg/readingstate"
	"github.com/marvinsync/marvinsync/pkg/scanner"
	"github.com/marvinsync/marvinsync/pkg/version"
	"github.com/robinjoseph08/golib/logger"
	"github.com/robinjoseph08/golib/signals"
)

type options struct {
	Scan        scanCommand        `command:"scan" description:"Scan the device and report how each book matches the library"`
	Collections collectionsCommand `command:"collections" description:"Export, import, synchronize, or clear collections"`
	Flags       flagsCommand       `command:"flags" description:"Set or clear the NEW, READING LIST, and READ flags"`
	Delete      deleteCommand      `command:"delete" description:"Delete books from the device"`
	Sync        syncCommand        `command:"sync" description:"Push device reading state into the mapped library columns"`
	WordCount   wordCountCommand   `command:"wordcount" description:"Recount words from the library EPUBs"`
}

func main() {
	log := logger.New()
	log.Info("starting marvinsync", logger.Data{"version": version.Version})

	cfg, err := config.New()
	if err != nil {
		log.Err(err).Fatal("config error")
	}

	ctx, cancel := context.WithCancel(context.Background())
	graceful := signals.Setup()
	go func() {
		<-graceful
		log.Info("cancelling on signal")
		cancel()
	}()

	application, err := newApp(ctx, cfg)
	if err != nil {
		log.Err(err).Fatal("startup error")
	}
	defer application.Close()

	opts := &options{
		Scan:        scanCommand{app: application},
		Collections: collectionsCommand{app: application},
		Flags:       flagsCommand{app: application},
		Delete:      deleteCommand{app: application},
		Sync:        syncCommand{app: application},
		WordCount:   wordCountCommand{app: application},
	}
	parser := flags.NewParser(opts, flags.Default)
	if _, err := parser.Parse(); err != nil {
		if flags.WroteHelp(err) {
			return
		}
		os.Exit(1)
	}
}

type scanCommand struct {
	app *app
}

func (c *scanCommand) Execute([]string) error {
	result, err := c.app.runScan()
	if err != nil {
		return err
	}

	counts := map[models.MatchQuality]int{}
	for _, quality := range result.Qualities {
		counts[quality]++
	}
	for _, quality := range []models.MatchQuality{
		models.HardMatch, models.SoftMatch, models.DuplicateOfLibrary,
		models.DeviceOnlyDuplicate, models.NoMatch,
	} {
		fmt.Printf("%-22s %d\n", quality, counts[quality])
	}

	for _, record := range result.Records {
		quality := result.Qualities[record.BookID]
		if quality == models.HardMatch {
			continue
		}
		fmt.Printf("  [%s] %s\n", quality, record.Path)
		fields := make([]string, 0, len(record.MetadataMismatches))
		for field := range record.MetadataMismatches {
			fields = append(fields, field)
		}
		sort.Strings(fields)
		for _, field := range fields {
			m := record.MetadataMismatches[field]
			fmt.Printf("    %s: library=%v device=%v\n", field, m.Library, m.Device)
		}
	}
	return nil
}

type collectionsCommand struct {
	app  *app
	Args struct {
		Operation string   `positional-arg-name:"operation" required:"yes" choice:"export" choice:"import" choice:"synchronize" choice:"clear"`
		Books     []string `positional-arg-name:"book"`
	} `positional-args:"yes"`
}

func (c *collectionsCommand) Execute([]string) error {
	result, err := c.app.runScan()
	if err != nil {
		return err
	}

	records := selectRecords(result.Records, c.Args.Books)
	if err := c.app.reconciler.LoadLibraryCollections(c.app.ctx, records); err != nil {
		return err
	}
	if err := c.app.reconciler.Apply(c.app.ctx, collections.Operation(c.Args.Operation), records); err != nil {
		return err
	}

	fmt.Printf("%s applied to %d book(s)\n", c.Args.Operation, len(records))
	return nil
}

type flagsCommand struct {
	app   *app
	Flags []string `short:"f" long:"flag" required:"yes" description:"Flag name: NEW, READING LIST, or READ (repeatable)"`
	Args  struct {
		Action string   `positional-arg-name:"action" required:"yes" choice:"set" choice:"clear"`
		Books  []string `positional-arg-name:"book"`
	} `positional-args:"yes"`
}

func (c *flagsCommand) Execute([]string) error {
	mask := models.ParseFlags(c.Flags)

	result, err := c.app.runScan()
	if err != nil {
		return err
	}
	records := selectRecords(result.Records, c.Args.Books)

	if c.Args.Action == "set" {
		err = c.app.reconciler.SetFlags(c.app.ctx, records, mask)
	} else {
		err = c.app.reconciler.ClearFlags(c.app.ctx, records, mask)
	}
	if err != nil {
		return err
	}

	fmt.Printf("%s %s on %d book(s)\n", c.Args.Action, mask, len(records))
	return nil
}

type deleteCommand struct {
	app  *app
	Args struct {
		Books []string `positional-arg-name:"book" required:"yes"`
	} `positional-args:"yes"`
}

func (c *deleteCommand) Execute([]string) error {
	result, err := c.app.runScan()
	if err != nil {
		return err
	}

	records := selectRecords(result.Records, c.Args.Books)
	if len(records) == 0 {
		return fmt.Errorf("no device books match %v", c.Args.Books)
	}

	manifest := make([]command.ManifestBook, 0, len(records))
	for _, record := range records {
		manifest = append(manifest, command.ManifestBook{
			Author:   joinAuthors(record.Authors),
			Title:    record.Title,
			UUID:     record.UUID,
			Filename: record.Path,
		})
	}
	cmd := command.New(command.DeleteBooks, manifest)

	if !c.app.cfg.User.ExecuteDeviceCommands {
		c.app.log.Info("device commands disabled, staging only")
		return c.app.runner.Stage(c.app.ctx, cmd)
	}
	if err := c.app.runner.Run(c.app.ctx, cmd); err != nil {
		return err
	}

	fmt.Printf("deleted %d book(s)\n", len(records))
	return nil
}

type syncCommand struct {
	app  *app
	Args struct {
		Books []string `positional-arg-name:"book"`
	} `positional-args:"yes"`
}

func (c *syncCommand) Execute([]string) error {
	result, err := c.app.runScan()
	if err != nil {
		return err
	}

	syncer := readingstate.NewSyncer(c.app.catalog, readingstate.Fields{
		Annotations:     c.app.cfg.User.AnnotationsField,
		DateRead:        c.app.cfg.User.DateReadField,
		Progress:        c.app.cfg.User.ProgressField,
		ReadFlag:        c.app.cfg.User.ReadFlagField,
		ReadingListFlag: c.app.cfg.User.ReadingListFlagField,
	})
	synced, err := syncer.Sync(c.app.ctx, selectRecords(result.Records, c.Args.Books))
	if err != nil {
		return err
	}

	fmt.Printf("synced reading state for %d book(s)\n", synced)
	return nil
}

type wordCountCommand struct {
	app  *app
	Args struct {
		Books []string `positional-arg-name:"book"`
	} `positional-args:"yes"`
}

func (c *wordCountCommand) Execute([]string) error {
	result, err := c.app.runScan()
	if err != nil {
		return err
	}

	counter := scanner.NewWordCounter(c.app.catalog, c.app.cfg.User.WordCountField, c.app.deviceDB)
	updated, err := counter.Update(c.app.ctx, result.Index, selectRecords(result.Records, c.Args.Books))
	if err != nil {
		return err
	}

	fmt.Printf("recounted %d book(s)\n", updated)
	return nil
}
