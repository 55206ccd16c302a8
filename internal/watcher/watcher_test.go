package watcher

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/anthropics/fileindexd/internal/store"
)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	st, err := store.New(filepath.Join(t.TempDir(), "index.db"))
	require.NoError(t, err)
	require.NoError(t, st.Init(context.Background()))
	t.Cleanup(func() { st.Close() })
	return st
}

func TestWatcherDetectsCreateAndDelete(t *testing.T) {
	st := newTestStore(t)
	root := t.TempDir()

	w, err := New(st, 50*time.Millisecond, nil, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { w.Close() })

	require.NoError(t, w.AddRoot(root))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	file := filepath.Join(root, "new.txt")
	require.NoError(t, os.WriteFile(file, []byte("hi"), 0o644))

	require.Eventually(t, func() bool {
		_, err := st.GetByPath(context.Background(), file)
		return err == nil
	}, 2*time.Second, 20*time.Millisecond, "watcher should index the new file")

	require.NoError(t, os.Remove(file))

	require.Eventually(t, func() bool {
		_, err := st.GetByPath(context.Background(), file)
		return err == store.ErrNotFound
	}, 2*time.Second, 20*time.Millisecond, "watcher should remove the deleted file")
}

func TestWatcherIgnoresFilteredPaths(t *testing.T) {
	st := newTestStore(t)
	root := t.TempDir()

	ignore := func(path string) bool { return filepath.Ext(path) == ".tmp" }
	w, err := New(st, 50*time.Millisecond, ignore, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { w.Close() })

	require.NoError(t, w.AddRoot(root))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	file := filepath.Join(root, "scratch.tmp")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o644))

	time.Sleep(200 * time.Millisecond)
	_, err = st.GetByPath(context.Background(), file)
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestEnqueueDropsDirectoryModifiedEvents(t *testing.T) {
	st := newTestStore(t)
	w, err := New(st, time.Hour, nil, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { w.Close() })

	dir := t.TempDir()
	w.enqueue(dir, kindModified)

	w.pendingMu.Lock()
	_, tracked := w.pending[dir]
	w.pendingMu.Unlock()

	if tracked {
		t.Error("directory-modified events must be dropped, per spec")
	}
}
