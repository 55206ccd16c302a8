package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

func now() float64 {
	return float64(time.Now().UnixNano()) / 1e9
}

// BatchAdd applies entries under a single transaction using INSERT OR
// REPLACE semantics keyed on path, per spec §4.1. indexed_at is
// stamped at transaction time for every row. A per-row error fails the
// whole batch; callers decide whether to retry.
func (s *Store) BatchAdd(ctx context.Context, entries []Entry) error {
	if len(entries) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin batch add: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR REPLACE INTO entries (path, name, parent_path, kind, extension, size, mtime, indexed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch add: %w", err)
	}
	defer stmt.Close()

	stamp := now()
	for _, e := range entries {
		if _, err := stmt.ExecContext(ctx, e.Path, e.Name, e.ParentPath, string(e.Kind), nullableString(e.Extension), e.Size, e.MTime, stamp); err != nil {
			return fmt.Errorf("insert %q: %w", e.Path, err)
		}
	}

	return tx.Commit()
}

// Upsert inserts or replaces a single entry, returning its id. Used by
// the watcher for created/modified events using the same
// INSERT OR REPLACE semantics as BatchAdd.
func (s *Store) Upsert(ctx context.Context, e Entry) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO entries (path, name, parent_path, kind, extension, size, mtime, indexed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, e.Path, e.Name, e.ParentPath, string(e.Kind), nullableString(e.Extension), e.Size, e.MTime, now())
	if err != nil {
		return 0, fmt.Errorf("upsert %q: %w", e.Path, err)
	}

	return res.LastInsertId()
}

// Update applies a partial update to the entry at path. Only the
// fields set in u are changed; indexed_at is always refreshed.
func (s *Store) Update(ctx context.Context, path string, u EntryUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	set := []string{"indexed_at = ?"}
	args := []any{now()}

	if u.Size != nil {
		set = append(set, "size = ?")
		args = append(args, *u.Size)
	}
	if u.MTime != nil {
		set = append(set, "mtime = ?")
		args = append(args, *u.MTime)
	}
	if u.Kind != nil {
		set = append(set, "kind = ?")
		args = append(args, string(*u.Kind))
	}
	if u.Extension != nil {
		set = append(set, "extension = ?")
		args = append(args, nullableString(*u.Extension))
	}

	args = append(args, path)

	query := "UPDATE entries SET " + join(set, ", ") + " WHERE path = ?"
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update %q: %w", path, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// GetByPath returns the entry at path, or ErrNotFound.
func (s *Store) GetByPath(ctx context.Context, path string) (*Entry, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, path, name, parent_path, kind, COALESCE(extension, ''), size, mtime, indexed_at
		FROM entries WHERE path = ?
	`, path)

	var e Entry
	var kind string
	if err := row.Scan(&e.ID, &e.Path, &e.Name, &e.ParentPath, &kind, &e.Extension, &e.Size, &e.MTime, &e.IndexedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, err
	}
	e.Kind = Kind(kind)
	return &e, nil
}

// RemoveByPath deletes the entry at path. Trigram rows are removed by
// the AFTER DELETE trigger; bigram rows are removed by the entries(id)
// foreign key's ON DELETE CASCADE.
func (s *Store) RemoveByPath(ctx context.Context, path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `DELETE FROM entries WHERE path = ?`, path)
	return err
}

// RemoveEntriesUnderRoot deletes every entry whose path or parent_path
// is root or lies under it, leaving the WatchRoot row itself intact —
// used by the Coordinator before a (re)scan. Resolves the open
// question in spec §9: comparison is by path-component boundary (root
// or root + separator prefix), never a raw string prefix, so a sibling
// whose name merely starts with root's name is untouched.
func (s *Store) RemoveEntriesUnderRoot(ctx context.Context, root string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	prefix := escapeLike(root) + string(pathSeparator) + "%"
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM entries
		WHERE path = ? OR path LIKE ? ESCAPE '\'
		   OR parent_path = ? OR parent_path LIKE ? ESCAPE '\'
	`, root, prefix, root, prefix)
	if err != nil {
		return 0, fmt.Errorf("remove entries under %q: %w", root, err)
	}

	return res.RowsAffected()
}

// RemovePath deletes every entry under root and the WatchRoot row
// itself in a single transaction — used by the admin remove-path
// operation (spec §4.5). A crash between the two deletes must never
// leave entries gone with the watch_roots row still present.
func (s *Store) RemovePath(ctx context.Context, root string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("remove path %q: begin tx: %w", root, err)
	}
	defer tx.Rollback()

	prefix := escapeLike(root) + string(pathSeparator) + "%"
	res, err := tx.ExecContext(ctx, `
		DELETE FROM entries
		WHERE path = ? OR path LIKE ? ESCAPE '\'
		   OR parent_path = ? OR parent_path LIKE ? ESCAPE '\'
	`, root, prefix, root, prefix)
	if err != nil {
		return 0, fmt.Errorf("remove entries under %q: %w", root, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("remove entries under %q: %w", root, err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM watch_roots WHERE path = ?`, root); err != nil {
		return 0, fmt.Errorf("remove watch root %q: %w", root, err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("remove path %q: commit: %w", root, err)
	}
	return n, nil
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func join(parts []string, sep string) string {
	out := ""
	for i, p := range parts {
		if i > 0 {
			out += sep
		}
		out += p
	}
	return out
}
