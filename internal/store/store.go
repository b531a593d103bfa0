// Package store is the SQLite cross-reference index: classes, methods,
// fields, string constants and the references between members.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/jward/probeql/internal/staticfilter"
)

// Store is the SQLite data access layer.
type Store struct {
	db *sql.DB
}

// Compile-time check: *Store answers static filter lookups.
var _ staticfilter.Index = (*Store)(nil)

// NewStore opens a SQLite database at dbPath with WAL mode enabled.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=30000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB returns the underlying *sql.DB for use in transactions.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Migrate creates all tables and indexes. Idempotent.
func (s *Store) Migrate() error {
	if _, err := s.db.Exec(schemaDDL); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

const schemaDDL = `
CREATE TABLE IF NOT EXISTS files (
  id              INTEGER PRIMARY KEY,
  path            TEXT NOT NULL UNIQUE,
  hash            TEXT,
  last_indexed    TIMESTAMP
);

CREATE TABLE IF NOT EXISTS classes (
  id              INTEGER PRIMARY KEY,
  file_id         INTEGER NOT NULL REFERENCES files(id),
  name            TEXT NOT NULL,
  super_name      TEXT
);

CREATE TABLE IF NOT EXISTS methods (
  id              INTEGER PRIMARY KEY,
  class_id        INTEGER NOT NULL REFERENCES classes(id),
  name            TEXT NOT NULL,
  descriptor      TEXT NOT NULL,
  start_line      INTEGER,
  end_line        INTEGER
);

CREATE TABLE IF NOT EXISTS fields (
  id              INTEGER PRIMARY KEY,
  class_id        INTEGER NOT NULL REFERENCES classes(id),
  name            TEXT NOT NULL,
  descriptor      TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS xrefs (
  id              INTEGER PRIMARY KEY,
  file_id         INTEGER NOT NULL REFERENCES files(id),
  source_class    TEXT NOT NULL,
  source_method   TEXT NOT NULL,
  source_desc     TEXT NOT NULL,
  kind            TEXT NOT NULL,
  target_owner    TEXT NOT NULL,
  target_name     TEXT NOT NULL,
  target_desc     TEXT NOT NULL,
  line            INTEGER,
  pc              INTEGER,
  arg_kinds       TEXT
);

CREATE TABLE IF NOT EXISTS class_strings (
  id              INTEGER PRIMARY KEY,
  class_id        INTEGER NOT NULL REFERENCES classes(id),
  value           TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS metadata (
  key             TEXT PRIMARY KEY,
  value           TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_classes_file ON classes(file_id);
CREATE INDEX IF NOT EXISTS idx_classes_name ON classes(name);
CREATE INDEX IF NOT EXISTS idx_methods_class ON methods(class_id);
CREATE INDEX IF NOT EXISTS idx_fields_class ON fields(class_id);
CREATE INDEX IF NOT EXISTS idx_xrefs_file ON xrefs(file_id);
CREATE INDEX IF NOT EXISTS idx_xrefs_target ON xrefs(target_name, kind);
CREATE INDEX IF NOT EXISTS idx_xrefs_source ON xrefs(source_class, source_method);
CREATE INDEX IF NOT EXISTS idx_class_strings_class ON class_strings(class_id);
`

// GetMetadata returns the value stored under key, or "" when absent.
func (s *Store) GetMetadata(key string) (string, error) {
	var value string
	err := s.db.QueryRow("SELECT value FROM metadata WHERE key = ?", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("get metadata %q: %w", key, err)
	}
	return value, nil
}

// SetMetadata stores value under key, replacing any previous value.
func (s *Store) SetMetadata(key, value string) error {
	_, err := s.db.Exec(
		"INSERT INTO metadata (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value",
		key, value,
	)
	if err != nil {
		return fmt.Errorf("set metadata %q: %w", key, err)
	}
	return nil
}

// XrefCount returns the number of stored references.
func (s *Store) XrefCount(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM xrefs").Scan(&n); err != nil {
		return 0, fmt.Errorf("xref count: %w", err)
	}
	return n, nil
}
