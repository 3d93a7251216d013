// Package store implements the Store (C4): a transactional SQLite-backed
// persistence layer over Services and Snapshots, with a unique index on
// service name and a foreign-key cascade from snapshot to service.
//
// Grounded on spec.md §4.4/§6's operation table directly; the
// deep-copy-on-read/write discipline is carried over from
// internal/adapter/outbound/memory/upstream_store.go, adapted from an
// in-memory map to rows scanned out of database/sql.
package store

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// Store is a SQLite-backed implementation of the Services + Snapshots +
// audit log persistence layer. Safe for concurrent use; the pool holds a
// single connection, so every query and transaction, reads included, is
// serialized, in line with spec.md §5's single-writer assumption.
type Store struct {
	db *sql.DB
}

// Open opens (creating if absent) the SQLite database at path, applies
// pragmas, and ensures the schema exists.
func Open(ctx context.Context, path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database %s: %w", path, err)
	}

	// A single connection avoids SQLITE_BUSY; it also means reads wait
	// for any in-flight query or transaction on that connection.
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply %q: %w", pragma, err)
		}
	}

	s := &Store{db: db}
	if err := s.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

const schema = `
CREATE TABLE IF NOT EXISTS services (
	id                      TEXT PRIMARY KEY,
	name                    TEXT NOT NULL UNIQUE,
	upstream_url            TEXT NOT NULL,
	enabled                 INTEGER NOT NULL,
	check_frequency_minutes INTEGER NOT NULL,
	created_at              TEXT NOT NULL,
	updated_at              TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS snapshots (
	id              INTEGER PRIMARY KEY AUTOINCREMENT,
	service_id      TEXT NOT NULL REFERENCES services(id) ON DELETE CASCADE,
	canonical_json  TEXT NOT NULL,
	hash            TEXT NOT NULL,
	approved_status TEXT NOT NULL,
	created_at      TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_snapshots_service_id_created_at
	ON snapshots(service_id, created_at);

CREATE TABLE IF NOT EXISTS audit_log (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	service_id TEXT,
	actor      TEXT NOT NULL,
	action     TEXT NOT NULL,
	detail     TEXT NOT NULL,
	created_at TEXT NOT NULL
);
`

func (s *Store) migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// timeLayout is the RFC 3339 layout used for every stored timestamp, chosen
// for its lexicographic-equals-chronological ordering property (load-
// bearing for the created_at index ordering LatestSnapshot relies on).
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"
