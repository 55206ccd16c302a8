// Package store is the exclusive owner of the persistent index file.
// It exposes entry CRUD, batch insert, n-gram rebuild, watch-root and
// ignore-pattern administration, and the search primitive the query
// engine uses. All writes are serialized through a process-wide mutex;
// reads go through the same *sql.DB and rely on WAL-mode MVCC.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	_ "modernc.org/sqlite"
)

// Kind distinguishes files from directories.
type Kind string

const (
	KindFile      Kind = "file"
	KindDirectory Kind = "directory"
)

// WatchRootStatus is the WatchRoot state machine named in spec §3.
type WatchRootStatus string

const (
	StatusIdle     WatchRootStatus = "idle"
	StatusScanning WatchRootStatus = "scanning"
	StatusWatching WatchRootStatus = "watching"
	StatusError    WatchRootStatus = "error"
)

// Entry is one indexed filesystem object.
type Entry struct {
	ID         int64
	Path       string
	Name       string
	ParentPath string
	Kind       Kind
	Extension  string
	Size       int64
	MTime      float64
	IndexedAt  float64
}

// EntryUpdate carries optional fields for a partial Entry update —
// a typed struct rather than a map of column names (spec §9 design note).
type EntryUpdate struct {
	Size      *int64
	MTime     *float64
	Kind      *Kind
	Extension *string
}

// WatchRoot is one configured top-level directory under indexing.
type WatchRoot struct {
	ID           int64
	Path         string
	Enabled      bool
	Status       WatchRootStatus
	TotalFiles   int64
	IndexedFiles int64
	LastFullScan *float64
	LastUpdated  *float64
	ErrorMessage string
}

// Store owns the SQLite-backed index.
type Store struct {
	db     *sql.DB
	mu     sync.Mutex
	dbPath string

	trigramAvailable bool
}

// New opens (creating if absent) the database file at dbPath in WAL
// mode with a 30 second busy timeout, per spec §5. It does not bootstrap
// the schema; call Init for that.
func New(dbPath string) (*Store, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create index directory: %w", err)
		}
	}

	dsn := dbPath + "?_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=foreign_keys(ON)&_pragma=busy_timeout(30000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open index database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping index database: %w", err)
	}

	return &Store{db: db, dbPath: dbPath}, nil
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.dbPath
}

// TrigramAvailable reports whether the trigram strategy can be used.
// Cached at Init time per spec §4.1.
func (s *Store) TrigramAvailable() bool {
	return s.trigramAvailable
}

const baseSchema = `
CREATE TABLE IF NOT EXISTS entries (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	path        TEXT NOT NULL UNIQUE,
	name        TEXT NOT NULL,
	parent_path TEXT NOT NULL,
	kind        TEXT NOT NULL CHECK (kind IN ('file', 'directory')),
	extension   TEXT,
	size        INTEGER NOT NULL DEFAULT 0,
	mtime       REAL NOT NULL DEFAULT 0,
	indexed_at  REAL NOT NULL DEFAULT 0,
	CHECK (kind <> 'directory' OR (size = 0 AND extension IS NULL))
);

CREATE INDEX IF NOT EXISTS idx_entries_parent_path ON entries(parent_path);
CREATE INDEX IF NOT EXISTS idx_entries_name ON entries(name);

CREATE TABLE IF NOT EXISTS bigram_index (
	entry_id INTEGER NOT NULL REFERENCES entries(id) ON DELETE CASCADE,
	bigram   TEXT NOT NULL,
	UNIQUE(entry_id, bigram)
);

CREATE INDEX IF NOT EXISTS idx_bigram_bigram ON bigram_index(bigram);
CREATE INDEX IF NOT EXISTS idx_bigram_entry ON bigram_index(entry_id);

CREATE TABLE IF NOT EXISTS watch_roots (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	path          TEXT NOT NULL UNIQUE,
	enabled       INTEGER NOT NULL DEFAULT 1,
	status        TEXT NOT NULL DEFAULT 'idle' CHECK (status IN ('idle', 'scanning', 'watching', 'error')),
	total_files   INTEGER NOT NULL DEFAULT 0,
	indexed_files INTEGER NOT NULL DEFAULT 0,
	last_full_scan REAL,
	last_updated   REAL,
	error_message  TEXT
);

CREATE TABLE IF NOT EXISTS ignore_patterns (
	pattern TEXT PRIMARY KEY
);
`

// trigram tokenizer availability is probed separately from baseSchema
// because older SQLite builds lack it; failure here must degrade, not
// abort initialization.
const trigramSchema = `
CREATE VIRTUAL TABLE IF NOT EXISTS trigram_index USING fts5(name, content='', tokenize='trigram');

CREATE TRIGGER IF NOT EXISTS entries_ai_trigram AFTER INSERT ON entries BEGIN
	INSERT INTO trigram_index(rowid, name) VALUES (new.id, new.name);
END;

CREATE TRIGGER IF NOT EXISTS entries_ad_trigram AFTER DELETE ON entries BEGIN
	INSERT INTO trigram_index(trigram_index, rowid, name) VALUES ('delete', old.id, old.name);
END;

CREATE TRIGGER IF NOT EXISTS entries_au_trigram AFTER UPDATE ON entries BEGIN
	INSERT INTO trigram_index(trigram_index, rowid, name) VALUES ('delete', old.id, old.name);
	INSERT INTO trigram_index(rowid, name) VALUES (new.id, new.name);
END;
`

// Init bootstraps the schema and probes trigram availability. Schema
// creation failure is fatal (spec §7 Fatal); a missing trigram
// tokenizer is not — it degrades trigramAvailable to false.
func (s *Store) Init(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.db.ExecContext(ctx, baseSchema); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, trigramSchema); err != nil {
		s.trigramAvailable = false
		// Drop any partially created virtual table so a later retry
		// starts clean rather than tripping over half-applied DDL.
		_, _ = s.db.ExecContext(ctx, `DROP TABLE IF EXISTS trigram_index`)
		return nil
	}

	s.trigramAvailable = true
	return nil
}

// Close checkpoints the WAL and closes the database.
func (s *Store) Close() error {
	_, _ = s.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)")
	return s.db.Close()
}

// DeriveEntry builds an Entry from a filesystem path and its FileInfo,
// the same derivation Crawler and Watcher both use (spec §4.3 "same
// derivation as the Crawler").
func DeriveEntry(path string, info os.FileInfo) Entry {
	e := Entry{
		Path:       path,
		Name:       info.Name(),
		ParentPath: filepath.Dir(path),
		MTime:      float64(info.ModTime().UnixNano()) / 1e9,
	}

	if info.IsDir() {
		e.Kind = KindDirectory
	} else {
		e.Kind = KindFile
		e.Size = info.Size()
		e.Extension = filepath.Ext(info.Name())
	}

	return e
}
