package probeql

import (
	"context"
	"fmt"
	"runtime"
	"sync"

	"github.com/jward/probeql/internal/indexer"
	"github.com/jward/probeql/internal/store"
)

// IndexFilesParallel indexes files using a three-phase pipeline:
//
//	Phase A (serial):   Hash check, delete old data, prepare file records.
//	Phase B (parallel): Parse and extract via worker pool.
//	Phase C (serial):   Commit each file index to SQLite.
func (e *Engine) IndexFilesParallel(ctx context.Context, paths []string) (IndexStats, error) {
	var stats IndexStats
	var errs []error

	// ---- Phase A: Serial file preparation ----
	var items []workItem
	for _, path := range paths {
		item, skip, err := e.prepareFile(path, &stats)
		if err != nil {
			stats.Failed++
			errs = append(errs, fmt.Errorf("prepare %s: %w", path, err))
			continue
		}
		if skip {
			continue
		}
		items = append(items, item)
	}

	if len(items) == 0 {
		if len(errs) > 0 {
			return stats, fmt.Errorf("parallel indexing had %d error(s): %w", len(errs), errs[0])
		}
		return stats, nil
	}

	// ---- Phase B: Parallel extraction ----
	numWorkers := e.workers
	if numWorkers <= 0 {
		numWorkers = runtime.NumCPU()
	}
	numWorkers = max(1, min(numWorkers, len(items)))

	workCh := make(chan workItem, len(items))
	for _, item := range items {
		workCh <- item
	}
	close(workCh)

	type extracted struct {
		item workItem
		fi   *store.FileIndex
		err  error
	}
	resultCh := make(chan extracted, len(items))

	var wg sync.WaitGroup
	for range numWorkers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			// Each ExtractJava call owns its parser, so workers share nothing.
			for item := range workCh {
				fi, err := indexer.ExtractJava(ctx, item.path, item.content)
				resultCh <- extracted{item: item, fi: fi, err: err}
			}
		}()
	}

	go func() {
		wg.Wait()
		close(resultCh)
	}()

	// ---- Phase C: Serial commit ----
	for res := range resultCh {
		if err := e.commitFile(res.item, res.fi, res.err, &stats); err != nil {
			errs = append(errs, err)
		}
	}

	if len(errs) > 0 {
		return stats, fmt.Errorf("parallel indexing had %d error(s): %w", len(errs), errs[0])
	}
	return stats, nil
}
