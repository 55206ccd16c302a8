package httpapi

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/anthropics/fileindexd/internal/store"
)

// queryResult is one row of the JSON response, per spec §6's shape.
type queryResult struct {
	Name         string `json:"name"`
	Path         string `json:"path,omitempty"`
	Type         string `json:"type"`
	Size         int64  `json:"size,omitempty"`
	DateModified string `json:"date_modified,omitempty"`
}

type queryResponse struct {
	TotalResults int           `json:"totalResults"`
	Results      []queryResult `json:"results"`
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	q := r.URL.Query()

	query := store.Query{
		Text:       firstNonEmpty(q.Get("search"), q.Get("s"), q.Get("q")),
		PathFilter: q.Get("path"),
		MaxResults: clampInt(parseIntDefault(firstNonEmpty(q.Get("count"), q.Get("c")), s.defaultCount), 0, s.maxCount),
		Offset:     parseIntDefault(firstNonEmpty(q.Get("offset"), q.Get("o")), 0),
		Sort:       parseSort(q.Get("sort")),
		Ascending:  parseBoolDefault(q.Get("ascending"), true),
		Depth:      parseIntDefault(q.Get("depth"), 0),
	}

	switch q.Get("file_type") {
	case "file":
		query.KindFilter = store.KindFile
	case "directory":
		query.KindFilter = store.KindDirectory
	}

	results, err := s.st.Search(r.Context(), query)
	if err != nil {
		s.log.Error().Err(err).Msg("httpapi: search failed")
		http.Error(w, "search failed", http.StatusInternalServerError)
		return
	}

	includePath := parseBoolDefault(q.Get("path_column"), true)
	includeSize := parseBoolDefault(q.Get("size_column"), true)
	includeDate := parseBoolDefault(q.Get("date_modified_column"), true)

	rows := make([]queryResult, 0, len(results.Entries))
	for _, e := range results.Entries {
		row := queryResult{Name: e.Name, Type: string(e.Kind)}
		if includePath {
			row.Path = e.Path
		}
		if includeSize && e.Kind == store.KindFile {
			row.Size = e.Size
		}
		if includeDate {
			row.DateModified = formatMTime(e.MTime)
		}
		rows = append(rows, row)
	}

	if wantsJSON(q) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(queryResponse{TotalResults: len(rows), Results: rows})
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.tmpl.Render(w, query.Text, rows); err != nil {
		s.log.Error().Err(err).Msg("httpapi: render results template failed")
	}
}

func wantsJSON(q map[string][]string) bool {
	v := firstNonEmptyValues(q, "json", "j")
	return v == "1" || v == "true"
}

func firstNonEmptyValues(q map[string][]string, keys ...string) string {
	for _, k := range keys {
		if vs, ok := q[k]; ok && len(vs) > 0 && vs[0] != "" {
			return vs[0]
		}
	}
	return ""
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

func parseIntDefault(s string, fallback int) int {
	if s == "" {
		return fallback
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return fallback
	}
	return n
}

func clampInt(v, min, max int) int {
	if v < min {
		return min
	}
	if max > 0 && v > max {
		return max
	}
	return v
}

func parseBoolDefault(s string, fallback bool) bool {
	if s == "" {
		return fallback
	}
	return s == "1" || s == "true"
}

func parseSort(s string) store.SortKey {
	switch s {
	case "path":
		return store.SortPath
	case "size":
		return store.SortSize
	case "date_modified":
		return store.SortMTime
	default:
		return store.SortName
	}
}
