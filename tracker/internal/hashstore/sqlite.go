package hashstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // register "sqlite" driver

	"github.com/hazyhaar/pagewatch/tracker/snapshot"
)

// Schema holds the single-row state table. The CHECK keeps it to one row.
const Schema = `
CREATE TABLE IF NOT EXISTS tracker_state (
	id          INTEGER PRIMARY KEY CHECK (id = 1),
	fingerprint TEXT NOT NULL,
	updated_at  INTEGER NOT NULL
);
`

// SQLite stores the fingerprint in a single-row table.
type SQLite struct {
	db    *sql.DB
	owned bool
}

// OpenSQLite opens (or creates) the database at path with WAL and a busy
// timeout, and applies Schema.
func OpenSQLite(path string) (*SQLite, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("hashstore: mkdir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("hashstore: open: %w", err)
	}
	if path == ":memory:" {
		// Each connection to :memory: is a separate database.
		db.SetMaxOpenConns(1)
	}
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 10000",
		"PRAGMA synchronous = NORMAL",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("hashstore: %s: %w", p, err)
		}
	}
	s, err := NewSQLite(db)
	if err != nil {
		db.Close()
		return nil, err
	}
	s.owned = true
	return s, nil
}

// NewSQLite wraps an already-opened database and applies Schema. Close
// does not close db.
func NewSQLite(db *sql.DB) (*SQLite, error) {
	if _, err := db.Exec(Schema); err != nil {
		return nil, fmt.Errorf("hashstore: apply schema: %w", err)
	}
	return &SQLite{db: db}, nil
}

// Load returns the stored fingerprint, or "" when the table is empty.
func (s *SQLite) Load(ctx context.Context) (snapshot.Fingerprint, error) {
	var fp string
	err := s.db.QueryRowContext(ctx,
		`SELECT fingerprint FROM tracker_state WHERE id = 1`).Scan(&fp)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("hashstore: load: %w", err)
	}
	return snapshot.Fingerprint(fp), nil
}

// Save upserts the single state row.
func (s *SQLite) Save(ctx context.Context, fp snapshot.Fingerprint) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO tracker_state (id, fingerprint, updated_at) VALUES (1, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			fingerprint = excluded.fingerprint,
			updated_at  = excluded.updated_at`,
		string(fp), time.Now().UnixMilli())
	if err != nil {
		return fmt.Errorf("hashstore: save: %w", err)
	}
	return nil
}

// Close closes the database if OpenSQLite opened it.
func (s *SQLite) Close() error {
	if s.owned {
		return s.db.Close()
	}
	return nil
}
