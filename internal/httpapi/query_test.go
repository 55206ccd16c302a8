package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/anthropics/fileindexd/internal/config"
	"github.com/anthropics/fileindexd/internal/coordinator"
	"github.com/anthropics/fileindexd/internal/crawler"
	"github.com/anthropics/fileindexd/internal/store"
	"github.com/anthropics/fileindexd/internal/watcher"
)

func newTestServer(t *testing.T) (*Server, *store.Store) {
	t.Helper()

	st, err := store.New(filepath.Join(t.TempDir(), "index.db"))
	require.NoError(t, err)
	require.NoError(t, st.Init(context.Background()))
	t.Cleanup(func() { st.Close() })

	require.NoError(t, st.BatchAdd(context.Background(), []store.Entry{
		{Path: "/docs/report.txt", Name: "report.txt", ParentPath: "/docs", Kind: store.KindFile, Size: 10, MTime: 1},
		{Path: "/docs/notes.md", Name: "notes.md", ParentPath: "/docs", Kind: store.KindFile, Size: 20, MTime: 2},
	}))

	cr := crawler.New(crawler.Options{Log: zerolog.Nop()})
	wt, err := watcher.New(st, 50*time.Millisecond, nil, zerolog.Nop())
	require.NoError(t, err)
	cfg := config.Config{}
	co := coordinator.New(st, cr, wt, cfg, zerolog.Nop())

	return New(st, co, cfg, zerolog.Nop()), st
}

func TestHandleQueryJSON(t *testing.T) {
	srv, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/?search=report&json=1", nil)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var body queryResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Equal(t, 1, body.TotalResults)
	require.Equal(t, "report.txt", body.Results[0].Name)
}

func TestHandleQueryHTML(t *testing.T) {
	srv, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/?search=notes", nil)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), "notes.md")
}

func TestHandlePathsPost(t *testing.T) {
	srv, st := newTestServer(t)
	root := t.TempDir()

	body := `{"path":"` + root + `"}`
	req := httptest.NewRequest(http.MethodPost, "/paths", strings.NewReader(body))
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	_, err := st.GetWatchRoot(context.Background(), root)
	require.NoError(t, err)
}

func TestHandlePathsPostMissingPathIs404(t *testing.T) {
	srv, _ := newTestServer(t)

	body := `{"path":"` + filepath.Join(t.TempDir(), "does-not-exist") + `"}`
	req := httptest.NewRequest(http.MethodPost, "/paths", strings.NewReader(body))
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestHandlePathsPostNonDirectoryIs400(t *testing.T) {
	srv, _ := newTestServer(t)

	file := filepath.Join(t.TempDir(), "a.txt")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o644))

	body := `{"path":"` + file + `"}`
	req := httptest.NewRequest(http.MethodPost, "/paths", strings.NewReader(body))
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	require.Equal(t, http.StatusBadRequest, w.Code)
}
