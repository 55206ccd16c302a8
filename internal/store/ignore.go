package store

import (
	"context"
	"path/filepath"
	"strings"
)

// UpsertIgnorePattern registers pattern, a no-op if already present.
func (s *Store) UpsertIgnorePattern(ctx context.Context, pattern string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `INSERT OR IGNORE INTO ignore_patterns (pattern) VALUES (?)`, pattern)
	return err
}

// RemoveIgnorePattern unregisters pattern.
func (s *Store) RemoveIgnorePattern(ctx context.Context, pattern string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `DELETE FROM ignore_patterns WHERE pattern = ?`, pattern)
	return err
}

// ListIgnorePatterns returns every registered pattern.
func (s *Store) ListIgnorePatterns(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT pattern FROM ignore_patterns ORDER BY pattern`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// IsIgnored applies every registered pattern to path using the rule in
// spec §4.2: a pattern matches if the final name matches it as a
// filename glob, the final name equals it literally, or it occurs as a
// substring of the full path. Patterns containing a path separator
// disable the "substring of any path component" shortcut; patterns
// without one additionally match any individual path component equal
// (as a glob) to the pattern. Crawler and Watcher apply the same rule
// through MatchesIgnore, via the IgnoreFunc they are built with.
func (s *Store) IsIgnored(ctx context.Context, path string) bool {
	patterns, err := s.ListIgnorePatterns(ctx)
	if err != nil {
		return false
	}
	return MatchesIgnore(path, patterns)
}

// MatchesIgnore is the pure predicate behind IsIgnored, exported so a
// caller can apply it to a pattern list it already holds, without a
// context-bearing Store call.
func MatchesIgnore(path string, patterns []string) bool {
	name := filepath.Base(path)

	for _, pattern := range patterns {
		if pattern == "" {
			continue
		}

		if ok, _ := filepath.Match(pattern, name); ok {
			return true
		}
		if name == pattern {
			return true
		}
		if strings.Contains(path, pattern) {
			return true
		}

		hasSeparator := strings.ContainsRune(pattern, pathSeparator) || strings.ContainsRune(pattern, '/')
		if !hasSeparator && matchesAnyComponent(path, pattern) {
			return true
		}
	}

	return false
}

func matchesAnyComponent(path, pattern string) bool {
	for _, component := range strings.FieldsFunc(path, func(r rune) bool {
		return r == pathSeparator || r == '/'
	}) {
		if ok, _ := filepath.Match(pattern, component); ok {
			return true
		}
	}
	return false
}
