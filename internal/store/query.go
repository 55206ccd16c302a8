package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// SortKey is a Query Engine sort column.
type SortKey string

const (
	SortName  SortKey = "name"
	SortPath  SortKey = "path"
	SortSize  SortKey = "size"
	SortMTime SortKey = "mtime"
)

// Query carries the inputs named in spec §4.4.
type Query struct {
	Text       string
	PathFilter string
	KindFilter Kind // "" = no filter
	MaxResults int
	Offset     int
	Sort       SortKey
	Ascending  bool
	Depth      int
}

// SearchResults is the Query Engine's output.
type SearchResults struct {
	Entries  []Entry
	Strategy string // "all", "scan", "bigram", "trigram" — for observability and tests
}

// depthOverfetchCap bounds the over-fetch performed when a depth
// filter is active (spec §4.4: "effectively unbounded, capped at
// 100 000").
const depthOverfetchCap = 100_000

// Search chooses a lookup strategy purely by query length and
// trigram availability, applies filters, sorts, and paginates.
func (s *Store) Search(ctx context.Context, q Query) (*SearchResults, error) {
	if q.MaxResults <= 0 {
		q.MaxResults = 100
	}
	if q.Sort == "" {
		q.Sort = SortName
	}

	strategy, candidateSQL, candidateArgs := s.selectStrategy(q.Text)

	limit, offset := q.MaxResults, q.Offset
	depthActive := q.Depth > 0 && q.PathFilter != ""
	if depthActive {
		// Post-filtering by depth happens after the SQL LIMIT, so
		// over-fetch to still return up to MaxResults rows.
		limit = depthOverfetchCap
		offset = 0
	}

	sqlStr, args := buildQuery(candidateSQL, candidateArgs, q, limit, offset)

	rows, err := s.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var kind string
		var ext sql.NullString
		if err := rows.Scan(&e.ID, &e.Path, &e.Name, &e.ParentPath, &kind, &ext, &e.Size, &e.MTime, &e.IndexedAt); err != nil {
			return nil, err
		}
		e.Kind = Kind(kind)
		e.Extension = ext.String
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if depthActive {
		entries = filterByDepth(entries, q.PathFilter, q.Depth)
		entries = paginate(entries, q.Offset, q.MaxResults)
	}

	return &SearchResults{Entries: entries, Strategy: strategy}, nil
}

// selectStrategy implements the table in spec §4.4.
func (s *Store) selectStrategy(query string) (name, fromClause string, args []any) {
	runeLen := len([]rune(query))

	switch {
	case runeLen == 0:
		return "all", "entries e", nil
	case runeLen == 1:
		return "scan", "entries e", nil
	case runeLen == 2:
		return "bigram", "entries e JOIN bigram_index b ON b.entry_id = e.id AND b.bigram = ?", []any{query}
	case s.trigramAvailable:
		return "trigram", "entries e JOIN trigram_index t ON t.rowid = e.id AND trigram_index MATCH ?", []any{quoteFTSPhrase(query)}
	default:
		return "scan", "entries e", nil
	}
}

// quoteFTSPhrase wraps query as a quoted FTS5 phrase so the trigram
// tokenizer's overlapping windows must match in sequence (i.e. a true
// substring match), escaping embedded quotes per FTS5 syntax.
func quoteFTSPhrase(query string) string {
	return `"` + strings.ReplaceAll(query, `"`, `""`) + `"`
}

func buildQuery(fromClause string, fromArgs []any, q Query, limit, offset int) (string, []any) {
	var b strings.Builder
	args := append([]any{}, fromArgs...)

	b.WriteString(`SELECT e.id, e.path, e.name, e.parent_path, e.kind, e.extension, e.size, e.mtime, e.indexed_at FROM `)
	b.WriteString(fromClause)

	// runeLen == 1 ("scan") and runeLen >= 3 without trigram both fall
	// back to a LIKE scan; the join clause alone doesn't filter by
	// text in that case, so add the predicate here.
	needsLikeFilter := !strings.Contains(fromClause, "bigram_index") && !strings.Contains(fromClause, "trigram_index") && q.Text != ""

	var where []string
	if needsLikeFilter {
		where = append(where, "e.name LIKE ? ESCAPE '\\'")
		args = append(args, "%"+escapeLike(q.Text)+"%")
	}
	if q.PathFilter != "" {
		where = append(where, "e.path LIKE ? ESCAPE '\\'")
		args = append(args, escapeLike(q.PathFilter)+"%")
	}
	if q.KindFilter != "" {
		where = append(where, "e.kind = ?")
		args = append(args, string(q.KindFilter))
	}

	if len(where) > 0 {
		b.WriteString(" WHERE ")
		b.WriteString(strings.Join(where, " AND "))
	}

	b.WriteString(" ORDER BY ")
	b.WriteString(sortColumn(q.Sort))
	if q.Ascending {
		b.WriteString(" ASC")
	} else {
		b.WriteString(" DESC")
	}
	b.WriteString(", e.id ASC")

	b.WriteString(" LIMIT ? OFFSET ?")
	args = append(args, limit, offset)

	return b.String(), args
}

func sortColumn(k SortKey) string {
	switch k {
	case SortPath:
		return "e.path"
	case SortSize:
		return "e.size"
	case SortMTime:
		return "e.mtime"
	default:
		return "e.name"
	}
}

// filterByDepth keeps only entries whose path, made relative to
// pathFilter, has at most depth path components (spec §4.4).
func filterByDepth(entries []Entry, pathFilter string, depth int) []Entry {
	prefix := strings.TrimRight(pathFilter, string(pathSeparator)) + string(pathSeparator)

	out := make([]Entry, 0, len(entries))
	for _, e := range entries {
		if !strings.HasPrefix(e.Path, prefix) {
			continue
		}
		rel := strings.TrimPrefix(e.Path, prefix)
		components := strings.Count(rel, string(pathSeparator)) + 1
		if components <= depth {
			out = append(out, e)
		}
	}
	return out
}

func paginate(entries []Entry, offset, max int) []Entry {
	if offset >= len(entries) {
		return nil
	}
	entries = entries[offset:]
	if max > 0 && len(entries) > max {
		entries = entries[:max]
	}
	return entries
}
