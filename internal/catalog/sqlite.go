// Package catalog is the durable registry of projects, branches,
// snapshots, file entries, and advisory file locks. It is the only
// component permitted to touch the shared mount's sync.db file.
package catalog

import (
	"database/sql"
	"fmt"
	"io"
	"math/rand"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"

	"netsync/internal/catalog/migrations"
)

const dbFileName = "sync.db"

// DB is a syncengine.Catalog backed by a SQLite file living on the
// shared mount. Every call opens a local scratch working copy, runs
// against it with normal transactions, and — for mutations — flushes
// the result back to the mount via VACUUM INTO a temp file followed
// by an atomic rename, since the mount itself offers no transactional
// primitives. Reads never mutate the mount and retry once on a torn
// copy, tolerating a concurrent writer's in-flight rename.
type DB struct {
	mountRoot  string
	scratchDir string
}

// Open roots a DB at mountRoot (the shared mount's top-level
// directory) using scratchDir for local working copies. If the mount
// has no sync.db yet, one is created and migrated.
func Open(mountRoot, scratchDir string) (*DB, error) {
	if err := os.MkdirAll(scratchDir, 0o755); err != nil {
		return nil, fmt.Errorf("catalog: create scratch dir: %w", err)
	}
	d := &DB{mountRoot: mountRoot, scratchDir: scratchDir}
	if err := d.ensureMountFile(); err != nil {
		return nil, err
	}
	return d, nil
}

func (d *DB) mountFile() string {
	return filepath.Join(d.mountRoot, dbFileName)
}

func (d *DB) ensureMountFile() error {
	if _, err := os.Stat(d.mountFile()); err == nil {
		return nil
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("catalog: stat mount file: %w", err)
	}
	return d.run(true, func(*sql.DB) error { return nil })
}

// run executes fn against a freshly copied local working copy of the
// mount database. When write is true, fn's effects are flushed back
// to the mount atomically after it returns without error; reads are
// retried once on failure to open or copy a usable working copy.
func (d *DB) run(write bool, fn func(*sql.DB) error) error {
	attempts := 1
	if !write {
		attempts = 2
	}

	var lastErr error
	for i := 0; i < attempts; i++ {
		if err := d.runOnce(write, fn); err != nil {
			lastErr = err
			continue
		}
		return nil
	}
	return lastErr
}

func (d *DB) runOnce(write bool, fn func(*sql.DB) error) error {
	localFile := filepath.Join(d.scratchDir, fmt.Sprintf("work-%d.db", rand.Int63()))
	defer os.Remove(localFile)

	if err := copyIfExists(d.mountFile(), localFile); err != nil {
		return fmt.Errorf("catalog: copy mount file: %w", err)
	}

	db, err := sql.Open("sqlite3", localFile)
	if err != nil {
		return fmt.Errorf("catalog: open working copy: %w", err)
	}
	defer db.Close()

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		return fmt.Errorf("catalog: enable foreign keys: %w", err)
	}
	if err := migrations.MigrateUp(db); err != nil {
		return fmt.Errorf("catalog: migrate: %w", err)
	}

	if err := fn(db); err != nil {
		return err
	}

	if !write {
		return nil
	}
	return d.flush(db)
}

// flush serializes db to the mount via VACUUM INTO a temp file in the
// mount's own directory, then an atomic rename — the same discipline
// the object store uses for blobs.
func (d *DB) flush(db *sql.DB) error {
	tmpPath := filepath.Join(d.mountRoot, fmt.Sprintf(".sync.db.%d.tmp", rand.Int63()))
	success := false
	defer func() {
		if !success {
			os.Remove(tmpPath)
		}
	}()

	if _, err := db.Exec("VACUUM INTO ?", tmpPath); err != nil {
		return fmt.Errorf("catalog: vacuum into: %w", err)
	}
	if err := os.Rename(tmpPath, d.mountFile()); err != nil {
		return fmt.Errorf("catalog: rename: %w", err)
	}
	success = true
	return nil
}

func copyIfExists(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	_, err = io.Copy(out, in)
	return err
}

// Close is a no-op: DB holds no long-lived connection. It exists to
// satisfy syncengine.Catalog's lifecycle method.
func (d *DB) Close() error { return nil }
