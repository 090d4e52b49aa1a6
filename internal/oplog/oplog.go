// Package oplog keeps a peer-local audit trail of mutating operations
// (push/pull/restore/gc). Unlike internal/catalog, this database is
// never copied to or from the shared mount — it is purely local
// bookkeeping surfaced through `netsync history`.
package oplog

import (
	"database/sql"
	"fmt"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Operation is one row of the audit trail.
type Operation struct {
	ID         int64
	Operation  string
	Parameters string
	StartedAt  time.Time
	FinishedAt *time.Time
	Status     string // "running", "success", "conflicts", or "error"
}

const schema = `
CREATE TABLE IF NOT EXISTS operations (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    operation   TEXT NOT NULL,
    parameters  TEXT NOT NULL,
    started_at  TIMESTAMP NOT NULL,
    finished_at TIMESTAMP,
    status      TEXT NOT NULL DEFAULT 'running'
);`

// Log is a handle on the local operations database.
type Log struct {
	db *sql.DB
}

// Open creates or opens the local operations database inside
// scratchDir (a per-peer directory, never the shared mount).
func Open(scratchDir string) (*Log, error) {
	path := filepath.Join(scratchDir, "operations.db")
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("oplog: open %s: %w", path, err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("oplog: apply schema: %w", err)
	}
	return &Log{db: db}, nil
}

// Start records a new in-progress operation and returns its row ID.
func (l *Log) Start(operation, parameters string, now time.Time) (int64, error) {
	res, err := l.db.Exec(
		`INSERT INTO operations (operation, parameters, started_at, status) VALUES (?, ?, ?, 'running')`,
		operation, parameters, now,
	)
	if err != nil {
		return 0, fmt.Errorf("oplog: start: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("oplog: start: %w", err)
	}
	return id, nil
}

// Finish marks an operation as complete with the given terminal status.
func (l *Log) Finish(id int64, status string, now time.Time) error {
	_, err := l.db.Exec(
		`UPDATE operations SET status = ?, finished_at = ? WHERE id = ?`,
		status, now, id,
	)
	if err != nil {
		return fmt.Errorf("oplog: finish: %w", err)
	}
	return nil
}

// List returns the most recent operations, newest first, capped at limit.
func (l *Log) List(limit int) ([]*Operation, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := l.db.Query(
		`SELECT id, operation, parameters, started_at, finished_at, status
		 FROM operations ORDER BY id DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("oplog: list: %w", err)
	}
	defer rows.Close()

	var ops []*Operation
	for rows.Next() {
		op := &Operation{}
		var finishedAt sql.NullTime
		if err := rows.Scan(&op.ID, &op.Operation, &op.Parameters, &op.StartedAt, &finishedAt, &op.Status); err != nil {
			return nil, fmt.Errorf("oplog: scan: %w", err)
		}
		if finishedAt.Valid {
			t := finishedAt.Time
			op.FinishedAt = &t
		}
		ops = append(ops, op)
	}
	return ops, rows.Err()
}

// Close releases the underlying database handle.
func (l *Log) Close() error {
	return l.db.Close()
}
