// Package coordinator sequences Store/Crawler/Watcher lifecycle: the
// startup sweep across configured watch roots, and the admin
// add-path/remove-path/rebuild operations, per spec §4.5.
package coordinator

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/rs/zerolog"

	"github.com/anthropics/fileindexd/internal/config"
	"github.com/anthropics/fileindexd/internal/crawler"
	"github.com/anthropics/fileindexd/internal/store"
	"github.com/anthropics/fileindexd/internal/watcher"
)

// AddResult reports whether AddPath registered a new root or found one
// already present.
type AddResult struct {
	AlreadyIndexed bool
	Root           *store.WatchRoot
}

// Status summarizes readiness for the admin /status endpoint.
type Status struct {
	Ready bool
	Roots []store.WatchRoot
}

// Coordinator owns the Store/Crawler/Watcher trio and drives every
// root through register -> scan -> n-gram rebuild -> watch.
type Coordinator struct {
	st  *store.Store
	cr  *crawler.Crawler
	wt  *watcher.Watcher
	cfg config.Config
	log zerolog.Logger

	// jobs serializes background crawl/rebuild work onto a small pool so
	// admin requests return immediately (spec §5 "submitting to a
	// worker executor") without unbounded goroutine fan-out.
	jobs   chan func()
	jobsWG sync.WaitGroup
}

const jobWorkers = 2

// New builds a Coordinator. Start must be called before it does
// anything.
func New(st *store.Store, cr *crawler.Crawler, wt *watcher.Watcher, cfg config.Config, log zerolog.Logger) *Coordinator {
	c := &Coordinator{
		st:   st,
		cr:   cr,
		wt:   wt,
		cfg:  cfg,
		log:  log,
		jobs: make(chan func(), 64),
	}

	for i := 0; i < jobWorkers; i++ {
		c.jobsWG.Add(1)
		go c.jobLoop()
	}

	return c
}

func (c *Coordinator) jobLoop() {
	defer c.jobsWG.Done()
	for job := range c.jobs {
		job()
	}
}

func (c *Coordinator) submit(job func()) {
	c.jobs <- job
}

// Start runs the full startup sequence (spec §4.5): bootstrap the
// schema, seed default ignore patterns if none are registered, then
// for every configured watch root — register it, scan it, rebuild the
// n-gram indexes, and begin watching it. Readiness itself
// is not tracked here; Status computes it fresh from WatchRoot state
// on every call.
func (c *Coordinator) Start(ctx context.Context) error {
	if err := c.st.Init(ctx); err != nil {
		return fmt.Errorf("init store: %w", err)
	}

	existing, err := c.st.ListIgnorePatterns(ctx)
	if err != nil {
		return fmt.Errorf("list ignore patterns: %w", err)
	}
	if len(existing) == 0 {
		for _, p := range c.cfg.IgnorePatterns {
			if err := c.st.UpsertIgnorePattern(ctx, p); err != nil {
				return fmt.Errorf("seed ignore pattern %q: %w", p, err)
			}
		}
	}

	var wg sync.WaitGroup
	for _, path := range c.cfg.EffectiveWatchPaths() {
		path := path
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := c.addAndScan(ctx, path); err != nil {
				c.log.Error().Err(err).Str("path", path).Msg("coordinator: startup scan failed")
			}
		}()
	}
	wg.Wait()

	return nil
}

// Shutdown flushes pending watcher events, closes the notifier, drains
// the job queue, and checkpoints the database.
func (c *Coordinator) Shutdown(ctx context.Context) error {
	c.wt.Flush(ctx)
	if err := c.wt.Close(); err != nil {
		c.log.Warn().Err(err).Msg("coordinator: watcher close")
	}

	close(c.jobs)
	c.jobsWG.Wait()

	return c.st.Close()
}

// AddPath registers path as a new watch root (if not already present)
// and dispatches its scan/rebuild/watch sequence in the background,
// returning immediately with the (possibly pre-existing) WatchRoot.
// path must exist and be a directory (spec.md §4.5 admin add-path).
// Only a registered root with exactly this path counts as already
// indexed; a path that lies under a registered root is registered as a
// root of its own.
func (c *Coordinator) AddPath(ctx context.Context, path string) (AddResult, error) {
	existing, err := c.st.GetWatchRoot(ctx, path)
	if err == nil {
		return AddResult{AlreadyIndexed: true, Root: existing}, nil
	}
	if err != store.ErrNotFound {
		return AddResult{}, fmt.Errorf("check existing watch root %q: %w", path, err)
	}

	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return AddResult{}, store.ErrNotFound
		}
		return AddResult{}, fmt.Errorf("stat %q: %w", path, err)
	}
	if !info.IsDir() {
		return AddResult{}, store.ErrInvalidArgument
	}

	root, err := c.st.RegisterWatchRoot(ctx, path)
	if err != nil {
		return AddResult{}, fmt.Errorf("register watch root %q: %w", path, err)
	}

	c.submit(func() {
		bg := context.Background()
		if _, err := c.scanAndWatch(bg, root); err != nil {
			c.log.Error().Err(err).Str("path", path).Msg("coordinator: add-path scan failed")
		}
	})

	return AddResult{AlreadyIndexed: false, Root: root}, nil
}

// addAndScan registers path if needed and performs its scan/watch
// sequence inline (used at startup, where the caller already wants to
// wait for every root before reporting readiness).
func (c *Coordinator) addAndScan(ctx context.Context, path string) (*store.WatchRoot, error) {
	root, err := c.st.RegisterWatchRoot(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("register watch root %q: %w", path, err)
	}
	return c.scanAndWatch(ctx, root)
}

// scanAndWatch drives one WatchRoot through scanning -> n-gram rebuild
// -> watching, recording status/counters/errors at each step.
func (c *Coordinator) scanAndWatch(ctx context.Context, root *store.WatchRoot) (*store.WatchRoot, error) {
	if err := c.st.SetWatchRootStatus(ctx, root.ID, store.StatusScanning, ""); err != nil {
		return root, err
	}

	result, err := c.cr.Walk(ctx, root.Path, c.st.BatchAdd, nil)
	if err != nil {
		_ = c.st.SetWatchRootStatus(ctx, root.ID, store.StatusError, err.Error())
		return root, fmt.Errorf("crawl %q: %w", root.Path, err)
	}

	if err := c.st.UpdateWatchRootCounters(ctx, root.ID, result.Scanned, result.Scanned-result.Skipped); err != nil {
		c.log.Warn().Err(err).Str("path", root.Path).Msg("coordinator: update counters failed")
	}

	if err := c.st.RebuildBigramIndex(ctx); err != nil {
		c.log.Warn().Err(err).Msg("coordinator: bigram rebuild failed")
	}
	if err := c.st.RebuildTrigramIndex(ctx); err != nil {
		c.log.Warn().Err(err).Msg("coordinator: trigram rebuild failed")
	}

	if err := c.wt.AddRoot(root.Path); err != nil {
		_ = c.st.SetWatchRootStatus(ctx, root.ID, store.StatusError, err.Error())
		return root, fmt.Errorf("watch %q: %w", root.Path, err)
	}

	if err := c.st.SetWatchRootStatus(ctx, root.ID, store.StatusWatching, ""); err != nil {
		return root, err
	}

	return c.st.GetWatchRoot(ctx, root.Path)
}

// RemovePath stops watching path and deletes its entries and WatchRoot
// row (spec §4.5 admin remove-path).
func (c *Coordinator) RemovePath(ctx context.Context, path string) error {
	if err := c.wt.RemoveRoot(path); err != nil {
		c.log.Warn().Err(err).Str("path", path).Msg("coordinator: remove watch failed")
	}

	if _, err := c.st.RemovePath(ctx, path); err != nil {
		return fmt.Errorf("remove path %q: %w", path, err)
	}
	return nil
}

// Rebuild re-scans one root (or, when path is "", every registered
// root), clearing its entries first, then rebuilding both n-gram
// indexes. extraIgnores are applied only for the duration of this
// rebuild's crawl pass.
func (c *Coordinator) Rebuild(ctx context.Context, path string, extraIgnores []string) error {
	roots, err := c.rebuildTargets(ctx, path)
	if err != nil {
		return err
	}

	base, err := c.st.ListIgnorePatterns(ctx)
	if err != nil {
		return fmt.Errorf("list ignore patterns: %w", err)
	}
	allPatterns := append(append([]string{}, base...), extraIgnores...)
	ignoreFunc := func(p string) bool { return store.MatchesIgnore(p, allPatterns) }

	rebuildCrawler := crawler.New(crawler.Options{IgnoreFunc: ignoreFunc, Log: c.log})

	for _, root := range roots {
		root := root
		c.submit(func() {
			bg := context.Background()
			if err := c.rebuildOne(bg, rebuildCrawler, root); err != nil {
				c.log.Error().Err(err).Str("path", root.Path).Msg("coordinator: rebuild failed")
			}
		})
	}

	if len(roots) == 0 {
		return c.st.RebuildBigramIndex(ctx)
	}
	return nil
}

func (c *Coordinator) rebuildTargets(ctx context.Context, path string) ([]store.WatchRoot, error) {
	if path != "" {
		root, err := c.st.GetWatchRoot(ctx, path)
		if err != nil {
			return nil, fmt.Errorf("get watch root %q: %w", path, err)
		}
		return []store.WatchRoot{*root}, nil
	}
	return c.st.ListWatchRoots(ctx)
}

func (c *Coordinator) rebuildOne(ctx context.Context, cr *crawler.Crawler, root store.WatchRoot) error {
	if err := c.st.SetWatchRootStatus(ctx, root.ID, store.StatusScanning, ""); err != nil {
		return err
	}

	if _, err := c.st.RemoveEntriesUnderRoot(ctx, root.Path); err != nil {
		_ = c.st.SetWatchRootStatus(ctx, root.ID, store.StatusError, err.Error())
		return err
	}

	result, err := cr.Walk(ctx, root.Path, c.st.BatchAdd, nil)
	if err != nil {
		_ = c.st.SetWatchRootStatus(ctx, root.ID, store.StatusError, err.Error())
		return err
	}

	if err := c.st.UpdateWatchRootCounters(ctx, root.ID, result.Scanned, result.Scanned-result.Skipped); err != nil {
		c.log.Warn().Err(err).Str("path", root.Path).Msg("coordinator: update counters failed")
	}

	if err := c.st.RebuildBigramIndex(ctx); err != nil {
		c.log.Warn().Err(err).Msg("coordinator: bigram rebuild failed")
	}
	if err := c.st.RebuildTrigramIndex(ctx); err != nil {
		c.log.Warn().Err(err).Msg("coordinator: trigram rebuild failed")
	}

	return c.st.SetWatchRootStatus(ctx, root.ID, store.StatusWatching, "")
}

// Status reports readiness and every registered WatchRoot. Ready is
// computed fresh on every call: true iff at least one root is watching
// and none is mid-scan (spec.md §4.5/§6 readiness definition).
func (c *Coordinator) Status(ctx context.Context) (Status, error) {
	roots, err := c.st.ListWatchRoots(ctx)
	if err != nil {
		return Status{}, err
	}

	ready := false
	for _, r := range roots {
		switch r.Status {
		case store.StatusWatching:
			ready = true
		case store.StatusScanning:
			return Status{Ready: false, Roots: roots}, nil
		}
	}

	return Status{Ready: ready, Roots: roots}, nil
}
