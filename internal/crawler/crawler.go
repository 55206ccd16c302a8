// Package crawler walks a directory tree in parallel, applies ignore
// filters, and streams entry records into the Store in batches.
package crawler

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog"

	"github.com/anthropics/fileindexd/internal/store"
)

// Options configures a Crawler. Defaults (per spec §4.2): Workers=4,
// BatchSize=1000.
type Options struct {
	Workers    int
	BatchSize  int
	IgnoreFunc func(path string) bool
	Log        zerolog.Logger
}

// Crawler performs the parallel recursive directory walk.
type Crawler struct {
	workers    int
	batchSize  int
	ignoreFunc func(path string) bool
	log        zerolog.Logger
}

// New builds a Crawler, applying the spec's default worker/batch sizes
// when unset.
func New(opts Options) *Crawler {
	if opts.Workers <= 0 {
		opts.Workers = 4
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 1000
	}
	if opts.IgnoreFunc == nil {
		opts.IgnoreFunc = func(string) bool { return false }
	}

	return &Crawler{
		workers:    opts.Workers,
		batchSize:  opts.BatchSize,
		ignoreFunc: opts.IgnoreFunc,
		log:        opts.Log,
	}
}

// Result summarizes one Walk.
type Result struct {
	Scanned int64
	Skipped int64
}

// AddFunc streams one completed batch of entries into the Store.
type AddFunc func(ctx context.Context, batch []store.Entry) error

// Walk crawls root: it enumerates the root's direct children
// synchronously, dispatches subdirectories across c.workers goroutines
// that each walk their assigned subtree depth-first, and coalesces
// completed entries into batches of c.batchSize handed to add. An
// error opening the root itself aborts the walk; per-entry I/O errors
// below the root are skipped and counted in Result.Skipped, never
// surfaced (spec §4.2 failure handling).
func (c *Crawler) Walk(ctx context.Context, root string, add AddFunc, onProgress func(done int64)) (Result, error) {
	rootEntries, err := os.ReadDir(root)
	if err != nil {
		return Result{}, fmt.Errorf("open root %q: %w", root, err)
	}

	result := Result{}
	var resultMu sync.Mutex

	var subdirs []string
	var pending []store.Entry

	for _, de := range rootEntries {
		path := filepath.Join(root, de.Name())
		if c.ignoreFunc(path) {
			continue
		}

		info, err := de.Info()
		if err != nil {
			result.Skipped++
			continue
		}

		pending = append(pending, store.DeriveEntry(path, info))
		result.Scanned++
		if de.IsDir() {
			subdirs = append(subdirs, path)
		}
	}

	batches := make(chan []store.Entry, c.workers*2)
	var batchErr error
	var batchErrMu sync.Mutex
	var flushWG sync.WaitGroup
	flushWG.Add(1)
	go func() {
		defer flushWG.Done()
		for batch := range batches {
			if err := add(ctx, batch); err != nil {
				batchErrMu.Lock()
				if batchErr == nil {
					batchErr = err
				}
				batchErrMu.Unlock()
			}
		}
	}()

	if len(pending) > 0 {
		batches <- pending
	}

	work := make(chan string, len(subdirs))
	for _, d := range subdirs {
		work <- d
	}
	close(work)

	var wg sync.WaitGroup
	for i := 0; i < c.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for dir := range work {
				scanned, skipped := c.walkSubtree(ctx, dir, batches)
				resultMu.Lock()
				result.Scanned += scanned
				result.Skipped += skipped
				resultMu.Unlock()
				if onProgress != nil {
					onProgress(scanned)
				}
			}
		}()
	}

	wg.Wait()
	close(batches)
	flushWG.Wait()

	return result, batchErr
}

// walkSubtree walks dir recursively and depth-first, coalescing
// entries into batches of c.batchSize sent to batches. The final
// partial batch is always flushed.
func (c *Crawler) walkSubtree(ctx context.Context, dir string, batches chan<- []store.Entry) (scanned, skipped int64) {
	var buf []store.Entry

	flush := func() {
		if len(buf) == 0 {
			return
		}
		batches <- buf
		buf = nil
	}

	err := filepath.WalkDir(dir, func(path string, de os.DirEntry, err error) error {
		if err != nil {
			skipped++
			c.log.Debug().Err(err).Str("path", path).Msg("crawl: skipping entry")
			if de != nil && de.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		if path == dir {
			// dir itself was already recorded by the caller while
			// enumerating its parent's direct children.
			return nil
		}

		if c.ignoreFunc(path) {
			if de.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		info, err := de.Info()
		if err != nil {
			skipped++
			return nil
		}

		buf = append(buf, store.DeriveEntry(path, info))
		scanned++
		if len(buf) >= c.batchSize {
			flush()
		}
		return nil
	})
	if err != nil {
		skipped++
	}

	flush()
	return scanned, skipped
}
