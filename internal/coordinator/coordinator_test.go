package coordinator

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/anthropics/fileindexd/internal/config"
	"github.com/anthropics/fileindexd/internal/crawler"
	"github.com/anthropics/fileindexd/internal/store"
	"github.com/anthropics/fileindexd/internal/watcher"
)

func newTestCoordinator(t *testing.T, watchPaths []string) (*Coordinator, *store.Store) {
	t.Helper()

	st, err := store.New(filepath.Join(t.TempDir(), "index.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	ignoreFunc := func(path string) bool {
		patterns, _ := st.ListIgnorePatterns(context.Background())
		return store.MatchesIgnore(path, patterns)
	}

	cr := crawler.New(crawler.Options{Workers: 2, IgnoreFunc: ignoreFunc, Log: zerolog.Nop()})
	wt, err := watcher.New(st, 50*time.Millisecond, ignoreFunc, zerolog.Nop())
	require.NoError(t, err)

	cfg := config.Config{WatchPaths: watchPaths, IgnorePatterns: []string{".git"}}
	co := New(st, cr, wt, cfg, zerolog.Nop())
	return co, st
}

func TestStartScansConfiguredRootsAndBecomesReady(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "a.txt"), []byte("x"), 0o644))

	co, st := newTestCoordinator(t, []string{root})
	require.NoError(t, co.Start(context.Background()))
	t.Cleanup(func() { co.Shutdown(context.Background()) })

	status, err := co.Status(context.Background())
	require.NoError(t, err)
	require.True(t, status.Ready)
	require.Len(t, status.Roots, 1)
	require.Equal(t, store.StatusWatching, status.Roots[0].Status)

	_, err = st.GetByPath(context.Background(), filepath.Join(root, "a.txt"))
	require.NoError(t, err)
}

func TestStatusReportsNotReadyWhileRootScanning(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "a.txt"), []byte("x"), 0o644))

	co, st := newTestCoordinator(t, []string{root})
	require.NoError(t, co.Start(context.Background()))
	t.Cleanup(func() { co.Shutdown(context.Background()) })

	status, err := co.Status(context.Background())
	require.NoError(t, err)
	require.True(t, status.Ready)

	watching, err := st.GetWatchRoot(context.Background(), root)
	require.NoError(t, err)
	require.NoError(t, st.SetWatchRootStatus(context.Background(), watching.ID, store.StatusScanning, ""))

	status, err = co.Status(context.Background())
	require.NoError(t, err)
	require.False(t, status.Ready, "a root mid-scan must make Status report not-ready, not a stale cached flag")
}

func TestAddPathRejectsMissingPath(t *testing.T) {
	co, _ := newTestCoordinator(t, nil)
	require.NoError(t, co.Start(context.Background()))
	t.Cleanup(func() { co.Shutdown(context.Background()) })

	_, err := co.AddPath(context.Background(), filepath.Join(t.TempDir(), "does-not-exist"))
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestAddPathRejectsNonDirectory(t *testing.T) {
	co, _ := newTestCoordinator(t, nil)
	require.NoError(t, co.Start(context.Background()))
	t.Cleanup(func() { co.Shutdown(context.Background()) })

	file := filepath.Join(t.TempDir(), "a.txt")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o644))

	_, err := co.AddPath(context.Background(), file)
	require.ErrorIs(t, err, store.ErrInvalidArgument)
}

func TestAddPathReportsAlreadyIndexed(t *testing.T) {
	root := t.TempDir()
	co, _ := newTestCoordinator(t, nil)
	require.NoError(t, co.Start(context.Background()))
	t.Cleanup(func() { co.Shutdown(context.Background()) })

	first, err := co.AddPath(context.Background(), root)
	require.NoError(t, err)
	require.False(t, first.AlreadyIndexed)

	second, err := co.AddPath(context.Background(), root)
	require.NoError(t, err)
	require.True(t, second.AlreadyIndexed)
}

func TestRemovePathDeletesEntriesAndWatchRoot(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "a.txt"), []byte("x"), 0o644))

	co, st := newTestCoordinator(t, []string{root})
	require.NoError(t, co.Start(context.Background()))
	t.Cleanup(func() { co.Shutdown(context.Background()) })

	require.NoError(t, co.RemovePath(context.Background(), root))

	_, err := st.GetWatchRoot(context.Background(), root)
	require.ErrorIs(t, err, store.ErrNotFound)

	_, err = st.GetByPath(context.Background(), filepath.Join(root, "a.txt"))
	require.ErrorIs(t, err, store.ErrNotFound)
}
