package store

import (
	"context"
	"database/sql"
	"fmt"
)

// extractBigrams returns every contiguous 2-rune window of name,
// operating on runes rather than bytes so multi-byte characters (e.g.
// Japanese filenames) still produce meaningful windows.
func extractBigrams(name string) []string {
	runes := []rune(name)
	if len(runes) < 2 {
		return nil
	}

	seen := make(map[string]bool, len(runes))
	out := make([]string, 0, len(runes)-1)
	for i := 0; i < len(runes)-1; i++ {
		bg := string(runes[i : i+2])
		if !seen[bg] {
			seen[bg] = true
			out = append(out, bg)
		}
	}
	return out
}

// RebuildBigramIndex truncates and reinserts BigramIndex from Entry.
// Idempotent.
func (s *Store) RebuildBigramIndex(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM bigram_index`); err != nil {
		return fmt.Errorf("truncate bigram index: %w", err)
	}

	rows, err := tx.QueryContext(ctx, `SELECT id, name FROM entries`)
	if err != nil {
		return fmt.Errorf("scan entries for bigram rebuild: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT OR IGNORE INTO bigram_index (entry_id, bigram) VALUES (?, ?)`)
	if err != nil {
		rows.Close()
		return err
	}
	defer stmt.Close()

	var id int64
	var name string
	for rows.Next() {
		if err := rows.Scan(&id, &name); err != nil {
			rows.Close()
			return err
		}
		for _, bg := range extractBigrams(name) {
			if _, err := stmt.ExecContext(ctx, id, bg); err != nil {
				rows.Close()
				return fmt.Errorf("insert bigram for entry %d: %w", id, err)
			}
		}
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return err
	}
	rows.Close()

	return tx.Commit()
}

// EnsureBigramIndexPopulated rebuilds the bigram table if Entry is
// non-empty but BigramIndex is empty — recovery from a crash mid-scan.
func (s *Store) EnsureBigramIndexPopulated(ctx context.Context) error {
	entryCount, bigramCount, err := s.ngramCounts(ctx, "bigram_index")
	if err != nil {
		return err
	}
	if entryCount > 0 && bigramCount == 0 {
		return s.RebuildBigramIndex(ctx)
	}
	return nil
}

// RebuildTrigramIndex drops and recreates the FTS5 trigram virtual
// table, then reinserts from Entry in one statement. No-op if
// unavailable.
func (s *Store) RebuildTrigramIndex(ctx context.Context) error {
	if !s.trigramAvailable {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	// Contentless FTS5 tables don't support the 'rebuild' special
	// command (there is no external content table to read from), so
	// the table is dropped and recreated instead.
	if _, err := tx.ExecContext(ctx, `DROP TABLE IF EXISTS trigram_index`); err != nil {
		return fmt.Errorf("drop trigram index: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `CREATE VIRTUAL TABLE trigram_index USING fts5(name, content='', tokenize='trigram')`); err != nil {
		return fmt.Errorf("recreate trigram index: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO trigram_index(rowid, name) SELECT id, name FROM entries`); err != nil {
		return fmt.Errorf("reinsert trigram index: %w", err)
	}

	return tx.Commit()
}

// EnsureTrigramIndexPopulated rebuilds the trigram table if Entry is
// non-empty but TrigramIndex is empty. No-op if unavailable.
func (s *Store) EnsureTrigramIndexPopulated(ctx context.Context) error {
	if !s.trigramAvailable {
		return nil
	}

	entryCount, trigramCount, err := s.ngramCounts(ctx, "trigram_index")
	if err != nil {
		return err
	}
	if entryCount > 0 && trigramCount == 0 {
		return s.RebuildTrigramIndex(ctx)
	}
	return nil
}

func (s *Store) ngramCounts(ctx context.Context, table string) (entryCount, ngramCount int64, err error) {
	if err = s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM entries`).Scan(&entryCount); err != nil {
		return 0, 0, err
	}

	row := s.db.QueryRowContext(ctx, fmt.Sprintf(`SELECT COUNT(*) FROM %s`, table))
	if err = row.Scan(&ngramCount); err != nil {
		if err == sql.ErrNoRows {
			return entryCount, 0, nil
		}
		return 0, 0, err
	}
	return entryCount, ngramCount, nil
}
