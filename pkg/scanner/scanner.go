// Package scanner orchestrates a full reconciliation scan: library index,
// library hash scan, device inventory, then classification. Scans are
// serialized; the phases are inherently sequential.
package scanner

import (
	"context"
	"sync"

	"github.com/marvinsync/marvinsync/pkg/calibre"
	"github.com/marvinsync/marvinsync/pkg/inventory"
	"github.com/marvinsync/marvinsync/pkg/library"
	"github.com/marvinsync/marvinsync/pkg/match"
	"github.com/marvinsync/marvinsync/pkg/models"
	"github.com/robinjoseph08/golib/logger"
)

type Phase string

const (
	PhaseIndex         Phase = "library index"
	PhaseLibraryHashes Phase = "library hashes"
	PhaseInventory     Phase = "device inventory"
	PhaseClassify      Phase = "classification"
)

// Progress reports per-phase completion for whatever is driving the scan.
type Progress struct {
	Phase Phase
	Done  int
	Total int
}

// Result is one completed scan.
type Result struct {
	Index     *library.Index
	Records   []*models.BookRecord
	Qualities map[int]models.MatchQuality
}

type Scanner struct {
	catalog   calibre.Catalog
	indexer   *library.Indexer
	inventory *inventory.Service
	log       logger.Logger

	// HashFn overrides the library content hasher; nil uses the default.
	HashFn func(string) (string, error)

	mu   sync.Mutex
	done chan *Result
}

func New(catalog calibre.Catalog, indexer *library.Indexer, inventorySvc *inventory.Service) *Scanner {
	return &Scanner{
		catalog:   catalog,
		indexer:   indexer,
		inventory: inventorySvc,
		log:       logger.New(),
		done:      make(chan *Result, 1),
	}
}

// Done signals scan completions to any subscriber.
func (s *Scanner) Done() <-chan *Result {
	return s.done
}

// Run executes the pipeline. Cancellation unwinds from whichever phase is
// active with errcodes.Aborted; partial results are discarded with it.
func (s *Scanner) Run(ctx context.Context, progressFn func(Progress)) (*Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	report := func(phase Phase, done, total int) {
		if progressFn != nil {
			progressFn(Progress{Phase: phase, Done: done, Total: total})
		}
	}

	report(PhaseIndex, 0, 1)
	idx, err := s.indexer.Index(ctx)
	if err != nil {
		return nil, err
	}
	report(PhaseIndex, 1, 1)

	err = idx.ScanHashes(ctx, s.catalog, s.HashFn, func(done, total int) {
		report(PhaseLibraryHashes, done, total)
	})
	if err != nil {
		return nil, err
	}

	records, err := s.inventory.InstalledBooks(ctx, idx, func(done, total int) {
		report(PhaseInventory, done, total)
	})
	if err != nil {
		return nil, err
	}

	report(PhaseClassify, 0, 1)
	qualities := match.ClassifyAll(records, idx.BuildHashMap())
	report(PhaseClassify, 1, 1)

	result := &Result{Index: idx, Records: records, Qualities: qualities}
	s.log.Info("scan complete", logger.Data{
		"library_books": len(idx.Books),
		"device_books":  len(records),
	})

	select {
	case s.done <- result:
	default:
	}
	return result, nil
}
