package store

import (
	"context"
	"database/sql"
	"fmt"
)

// RegisterWatchRoot creates (or returns the existing) WatchRoot for path.
func (s *Store) RegisterWatchRoot(ctx context.Context, path string) (*WatchRoot, error) {
	s.mu.Lock()
	_, err := s.db.ExecContext(ctx, `INSERT OR IGNORE INTO watch_roots (path) VALUES (?)`, path)
	s.mu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("register watch root %q: %w", path, err)
	}

	return s.GetWatchRoot(ctx, path)
}

// GetWatchRoot returns the WatchRoot for path, or ErrNotFound.
func (s *Store) GetWatchRoot(ctx context.Context, path string) (*WatchRoot, error) {
	return s.scanWatchRoot(s.db.QueryRowContext(ctx, watchRootSelect+` WHERE path = ?`, path))
}

// ListWatchRoots returns every registered WatchRoot.
func (s *Store) ListWatchRoots(ctx context.Context) ([]WatchRoot, error) {
	rows, err := s.db.QueryContext(ctx, watchRootSelect+` ORDER BY path`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []WatchRoot
	for rows.Next() {
		wr, err := s.scanWatchRootRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *wr)
	}
	return out, rows.Err()
}

// SetWatchRootStatus transitions the WatchRoot's status and records a
// truncated error message (spec §7 "truncated"). Only the transitions
// named in spec §3 are meaningful; this method does not itself enforce
// them — callers (Coordinator) drive the state machine.
func (s *Store) SetWatchRootStatus(ctx context.Context, id int64, status WatchRootStatus, errMsg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	const maxErrLen = 500
	if len(errMsg) > maxErrLen {
		errMsg = errMsg[:maxErrLen]
	}

	_, err := s.db.ExecContext(ctx, `
		UPDATE watch_roots SET status = ?, error_message = ?, last_updated = ? WHERE id = ?
	`, string(status), nullableString(errMsg), now(), id)
	return err
}

// UpdateWatchRootCounters sets total/indexed file counters and stamps
// last_full_scan and last_updated.
func (s *Store) UpdateWatchRootCounters(ctx context.Context, id int64, total, indexed int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ts := now()
	_, err := s.db.ExecContext(ctx, `
		UPDATE watch_roots SET total_files = ?, indexed_files = ?, last_full_scan = ?, last_updated = ? WHERE id = ?
	`, total, indexed, ts, ts, id)
	return err
}

const watchRootSelect = `
	SELECT id, path, enabled, status, total_files, indexed_files, last_full_scan, last_updated, COALESCE(error_message, '')
	FROM watch_roots`

func (s *Store) scanWatchRoot(row *sql.Row) (*WatchRoot, error) {
	wr, err := s.scanWatchRootRow(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	return wr, err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (s *Store) scanWatchRootRow(row rowScanner) (*WatchRoot, error) {
	var wr WatchRoot
	var enabled int
	var status string
	var lastFullScan, lastUpdated sql.NullFloat64

	if err := row.Scan(&wr.ID, &wr.Path, &enabled, &status, &wr.TotalFiles, &wr.IndexedFiles, &lastFullScan, &lastUpdated, &wr.ErrorMessage); err != nil {
		return nil, err
	}

	wr.Enabled = enabled != 0
	wr.Status = WatchRootStatus(status)
	if lastFullScan.Valid {
		wr.LastFullScan = &lastFullScan.Float64
	}
	if lastUpdated.Valid {
		wr.LastUpdated = &lastUpdated.Float64
	}
	return &wr, nil
}
