// Package history persists the rolling window of recently used technique
// identifiers. Selection reads it to avoid repeats; the orchestrator appends
// to it after each successful run.
package history

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"os"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaSQL string

// DefaultMaxEntries bounds the retained history.
const DefaultMaxEntries = 20

// Store provides durable storage for the technique history.
// Uses SQLite with WAL mode for concurrent read access.
type Store struct {
	db *sql.DB
}

// Open creates or opens the history database at the given path.
//
// History is a rolling exclusion window, never an audit log, so corruption is
// not fatal: if the file exists but cannot be opened as a database, it is
// removed and recreated empty.
func Open(path string) (*Store, error) {
	db, err := open(path)
	if err != nil {
		// Corrupt or unreadable history starts over empty.
		_ = os.Remove(path)
		db, err = open(path)
		if err != nil {
			return nil, err
		}
	}
	return &Store{db: db}, nil
}

func open(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("opening history database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("connecting to history database: %w", err)
	}

	// SQLite supports one writer at a time; a single connection avoids
	// SQLITE_BUSY surprises.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("applying pragmas: %w", err)
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("applying schema: %w", err)
	}
	return db, nil
}

// applyPragmas sets required SQLite configuration.
func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("executing %q: %w", pragma, err)
		}
	}
	return nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Load returns the persisted technique IDs, oldest first. Read failures
// yield an empty history along with the error; callers treat any failure as
// "no history".
func (s *Store) Load(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT technique_id FROM technique_history ORDER BY seq ASC")
	if err != nil {
		return nil, fmt.Errorf("reading history: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning history row: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading history: %w", err)
	}
	return ids, nil
}

// Save replaces the persisted history with the most recent maxEntries of
// entries, preserving order. maxEntries <= 0 means DefaultMaxEntries.
func (s *Store) Save(ctx context.Context, entries []string, maxEntries int) error {
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	if len(entries) > maxEntries {
		entries = entries[len(entries)-maxEntries:]
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning history transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM technique_history"); err != nil {
		return fmt.Errorf("clearing history: %w", err)
	}
	now := time.Now().UTC().Format(time.RFC3339)
	for _, id := range entries {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO technique_history (technique_id, used_at) VALUES (?, ?)", id, now); err != nil {
			return fmt.Errorf("inserting history entry: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing history: %w", err)
	}
	return nil
}

// Append adds one technique ID to the history, re-bounding it to maxEntries.
// A failed Load counts as empty history, matching Load's contract.
func (s *Store) Append(ctx context.Context, techniqueID string, maxEntries int) error {
	entries, err := s.Load(ctx)
	if err != nil {
		entries = nil
	}
	return s.Save(ctx, append(entries, techniqueID), maxEntries)
}
