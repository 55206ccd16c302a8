package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/anthropics/fileindexd/internal/store"
)

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	status, err := s.co.Status(r.Context())
	if err != nil {
		http.Error(w, "status failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

func (s *Server) handlePaths(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		roots, err := s.st.ListWatchRoots(r.Context())
		if err != nil {
			http.Error(w, "list paths failed", http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, roots)

	case http.MethodPost:
		var body struct {
			Path string `json:"path"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Path == "" {
			http.Error(w, "missing path", http.StatusBadRequest)
			return
		}
		result, err := s.co.AddPath(r.Context(), body.Path)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				http.Error(w, "path does not exist", http.StatusNotFound)
				return
			}
			if errors.Is(err, store.ErrInvalidArgument) {
				http.Error(w, "path is not a directory", http.StatusBadRequest)
				return
			}
			http.Error(w, "add path failed", http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, result)

	case http.MethodDelete:
		path := r.URL.Query().Get("path")
		if path == "" {
			http.Error(w, "missing path", http.StatusBadRequest)
			return
		}
		if err := s.co.RemovePath(r.Context(), path); err != nil {
			http.Error(w, "remove path failed", http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusNoContent)

	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleIgnores(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		patterns, err := s.st.ListIgnorePatterns(r.Context())
		if err != nil {
			http.Error(w, "list ignores failed", http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, patterns)

	case http.MethodPost:
		var body struct {
			Pattern string `json:"pattern"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Pattern == "" {
			http.Error(w, "missing pattern", http.StatusBadRequest)
			return
		}
		if err := s.st.UpsertIgnorePattern(r.Context(), body.Pattern); err != nil {
			http.Error(w, "add ignore pattern failed", http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusNoContent)

	case http.MethodDelete:
		pattern := r.URL.Query().Get("pattern")
		if pattern == "" {
			http.Error(w, "missing pattern", http.StatusBadRequest)
			return
		}
		if err := s.st.RemoveIgnorePattern(r.Context(), pattern); err != nil {
			http.Error(w, "remove ignore pattern failed", http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusNoContent)

	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// defaultIgnorePatterns mirrors the FILE_INDEX_IGNORE_PATTERNS default
// (spec §6), offered here so a client can restore them without
// restarting the daemon.
var defaultIgnorePatterns = []string{".git", "node_modules", ".venv", "__pycache__", ".DS_Store"}

func (s *Server) handleIgnoreDefaults(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	for _, p := range defaultIgnorePatterns {
		if err := s.st.UpsertIgnorePattern(r.Context(), p); err != nil {
			http.Error(w, "restore defaults failed", http.StatusInternalServerError)
			return
		}
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleRebuild(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	q := r.URL.Query()
	path := q.Get("path")
	var extra []string
	if raw := q.Get("ignore_patterns"); raw != "" {
		for _, p := range strings.Split(raw, ",") {
			if p = strings.TrimSpace(p); p != "" {
				extra = append(extra, p)
			}
		}
	}

	if err := s.co.Rebuild(r.Context(), path, extra); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			http.Error(w, "unknown path", http.StatusNotFound)
			return
		}
		http.Error(w, "rebuild failed", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
