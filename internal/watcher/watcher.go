// Package watcher keeps the index coherent with the live filesystem
// between (or after) full crawls, using one recursive fsnotify watch
// per WatchRoot and a debounced pending-events map.
package watcher

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"

	"github.com/anthropics/fileindexd/internal/store"
)

// eventKind is a pending event's kind. Of the four kinds named in spec
// §4.3, "moved" has no constant of its own: a rename is enqueued as a
// deletion of the old path, and the new path arrives as a creation.
type eventKind int

const (
	kindCreated eventKind = iota
	kindDeleted
	kindModified
)

type pendingEvent struct {
	kind     eventKind
	isDir    bool
	observed time.Time
}

// IgnoreFunc reports whether path should be dropped before debouncing.
type IgnoreFunc func(path string) bool

// Watcher subscribes to recursive filesystem change notifications on
// each watch root.
type Watcher struct {
	st       *store.Store
	fs       *fsnotify.Watcher
	ignore   IgnoreFunc
	debounce time.Duration
	log      zerolog.Logger

	pendingMu sync.Mutex
	pending   map[string]pendingEvent
	timer     *time.Timer

	roots map[string]bool
}

// New creates a Watcher bound to st, applying debounce as the
// quiescence window before a batch of pending events is applied
// (default 500ms per spec §4.3).
func New(st *store.Store, debounce time.Duration, ignore IgnoreFunc, log zerolog.Logger) (*Watcher, error) {
	if debounce <= 0 {
		debounce = 500 * time.Millisecond
	}
	if ignore == nil {
		ignore = func(string) bool { return false }
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	return &Watcher{
		st:       st,
		fs:       fsw,
		ignore:   ignore,
		debounce: debounce,
		log:      log,
		pending:  make(map[string]pendingEvent),
		roots:    make(map[string]bool),
	}, nil
}

// AddRoot walks root once, adding every directory under it (including
// root itself) to the underlying fsnotify watch so that later
// directory-create events can extend the watch to new subtrees.
func (w *Watcher) AddRoot(root string) error {
	w.pendingMu.Lock()
	w.roots[root] = true
	w.pendingMu.Unlock()

	return filepath.WalkDir(root, func(path string, de os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !de.IsDir() {
			return nil
		}
		if w.ignore(path) {
			return filepath.SkipDir
		}
		if err := w.fs.Add(path); err != nil {
			w.log.Debug().Err(err).Str("path", path).Msg("watcher: add failed")
		}
		return nil
	})
}

// RemoveRoot stops tracking root as an owned watch root. It does not
// remove already-registered fsnotify watches below root; those expire
// naturally once the paths are deleted.
func (w *Watcher) RemoveRoot(root string) error {
	w.pendingMu.Lock()
	defer w.pendingMu.Unlock()
	delete(w.roots, root)
	return nil
}

// Run consumes fsnotify events until ctx is canceled, filtering
// ignored paths, decomposing renames into delete+create, and
// coalescing repeats in the pending-events map.
func (w *Watcher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			w.Flush(context.Background())
			return ctx.Err()

		case ev, ok := <-w.fs.Events:
			if !ok {
				return nil
			}
			w.handleEvent(ev)

		case err, ok := <-w.fs.Errors:
			if !ok {
				return nil
			}
			w.log.Warn().Err(err).Msg("watcher: notifier error")
		}
	}
}

func (w *Watcher) handleEvent(ev fsnotify.Event) {
	if w.ignore(ev.Name) {
		return
	}

	switch {
	case ev.Has(fsnotify.Create):
		w.enqueue(ev.Name, kindCreated)
		// A directory create may itself contain children already on
		// disk (e.g. a moved-in subtree); extend the watch so their
		// own events are observed too.
		if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
			_ = w.AddRoot(ev.Name)
		}

	case ev.Has(fsnotify.Remove):
		w.enqueue(ev.Name, kindDeleted)

	case ev.Has(fsnotify.Rename):
		// fsnotify reports a rename as a Rename event on the old path;
		// the creation of the new path arrives as its own Create event
		// from the watched parent directory, so the source side is
		// just a deletion here (spec §4.3 "moved" decomposition).
		w.enqueue(ev.Name, kindDeleted)

	case ev.Has(fsnotify.Write):
		w.enqueue(ev.Name, kindModified)
	}
}

func (w *Watcher) enqueue(path string, kind eventKind) {
	isDir := false
	if kind != kindDeleted {
		if info, err := os.Stat(path); err == nil {
			isDir = info.IsDir()
		}
	}

	// Directory-modified events are dropped: child events cover
	// content changes (spec §4.3).
	if kind == kindModified && isDir {
		return
	}

	w.pendingMu.Lock()
	w.pending[path] = pendingEvent{kind: kind, isDir: isDir, observed: time.Now()}
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, func() {
		w.Flush(context.Background())
	})
	w.pendingMu.Unlock()
}

// Flush cancels the debounce timer and drains pending events
// immediately, applying them to the Store in one batch.
func (w *Watcher) Flush(ctx context.Context) {
	w.pendingMu.Lock()
	if w.timer != nil {
		w.timer.Stop()
	}
	batch := w.pending
	w.pending = make(map[string]pendingEvent)
	w.pendingMu.Unlock()

	for path, ev := range batch {
		w.apply(ctx, path, ev)
	}
}

func (w *Watcher) apply(ctx context.Context, path string, ev pendingEvent) {
	switch ev.kind {
	case kindDeleted:
		if err := w.st.RemoveByPath(ctx, path); err != nil {
			w.log.Debug().Err(err).Str("path", path).Msg("watcher: remove failed")
		}

	case kindCreated, kindModified:
		info, err := os.Stat(path)
		if err != nil {
			// Race lost: the path is already gone by the time we got
			// to it. Skip, per spec §4.3.
			return
		}
		entry := store.DeriveEntry(path, info)
		if _, err := w.st.Upsert(ctx, entry); err != nil {
			w.log.Debug().Err(err).Str("path", path).Msg("watcher: upsert failed")
		}
	}
}

// Close joins the notifier with a bounded wait (spec §5: 5 second
// bound, then abandon) and releases its resources.
func (w *Watcher) Close() error {
	done := make(chan error, 1)
	go func() { done <- w.fs.Close() }()

	select {
	case err := <-done:
		return err
	case <-time.After(5 * time.Second):
		return nil
	}
}
