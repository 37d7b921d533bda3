// Package repository is the durable order/trade store (spec.md §6): a
// database/sql-backed SQLite repository, the teacher's (pkg/db) approach,
// generalised from the teacher's single orders/trades tables to the
// lifecycle engine's full Trade/Order/SymbolRules data model, with
// monotonic id generation via SQLite's AUTOINCREMENT rowids.
package repository

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// DB wraps the SQL handle, mirroring the teacher's pkg/db.Database.
type DB struct {
	conn *sql.DB
}

// Open creates (if needed) and opens the SQLite database at path, applying
// the schema. path == ":memory:" is valid, used throughout this package's
// tests (the teacher's pkg/db/queries_test.go convention).
func Open(path string) (*DB, error) {
	if path == "" {
		return nil, errors.New("repository: database path is empty")
	}

	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("repository: create db directory: %w", err)
		}
	}

	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("repository: open sqlite: %w", err)
	}
	conn.SetMaxOpenConns(1) // SQLite prefers a single writer.
	conn.SetConnMaxLifetime(time.Hour)

	if _, err := conn.Exec(schema); err != nil {
		conn.Close()
		return nil, fmt.Errorf("repository: apply schema: %w", err)
	}

	return &DB{conn: conn}, nil
}

// Close releases the underlying connection.
func (d *DB) Close() error {
	if d == nil || d.conn == nil {
		return nil
	}
	return d.conn.Close()
}
