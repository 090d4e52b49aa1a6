package catalog

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mattn/go-sqlite3"

	"netsync/internal/syncerrs"
)

// CreateProject inserts a new project row with a freshly generated id.
func (d *DB) CreateProject(name string, now time.Time) (*Project, error) {
	p := &Project{ID: uuid.New().String(), Name: name, CreatedAt: now, LastSyncAt: now}
	err := d.run(true, func(db *sql.DB) error {
		_, err := db.Exec(`INSERT INTO projects (id, name, created_at, last_sync_at) VALUES (?, ?, ?, ?)`,
			p.ID, p.Name, p.CreatedAt, p.LastSyncAt)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("catalog: create project: %w", err)
	}
	return p, nil
}

// FindProject looks up a project by id.
func (d *DB) FindProject(id string) (*Project, error) {
	var p Project
	err := d.run(false, func(db *sql.DB) error {
		row := db.QueryRow(`SELECT id, name, created_at, last_sync_at FROM projects WHERE id = ?`, id)
		return row.Scan(&p.ID, &p.Name, &p.CreatedAt, &p.LastSyncAt)
	})
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("catalog: project %s: %w", id, syncerrs.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("catalog: find project: %w", err)
	}
	return &p, nil
}

// ListProjects returns every project, newest-created first.
func (d *DB) ListProjects() ([]*Project, error) {
	var out []*Project
	err := d.run(false, func(db *sql.DB) error {
		rows, err := db.Query(`SELECT id, name, created_at, last_sync_at FROM projects ORDER BY created_at DESC`)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			p := &Project{}
			if err := rows.Scan(&p.ID, &p.Name, &p.CreatedAt, &p.LastSyncAt); err != nil {
				return err
			}
			out = append(out, p)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("catalog: list projects: %w", err)
	}
	return out, nil
}

// DeleteProject removes a project and, via foreign-key cascade, its
// branches, snapshots, and file entries. File locks carry no FK
// constraint and are deleted explicitly.
func (d *DB) DeleteProject(id string) error {
	err := d.run(true, func(db *sql.DB) error {
		if _, err := db.Exec(`DELETE FROM file_locks WHERE project_id = ?`, id); err != nil {
			return err
		}
		_, err := db.Exec(`DELETE FROM projects WHERE id = ?`, id)
		return err
	})
	if err != nil {
		return fmt.Errorf("catalog: delete project: %w", err)
	}
	return nil
}

// TouchProjectSync updates a project's last-sync timestamp.
func (d *DB) TouchProjectSync(id string, now time.Time) error {
	err := d.run(true, func(db *sql.DB) error {
		_, err := db.Exec(`UPDATE projects SET last_sync_at = ? WHERE id = ?`, now, id)
		return err
	})
	if err != nil {
		return fmt.Errorf("catalog: touch project sync: %w", err)
	}
	return nil
}

// EnsureBranch upserts a branch row. Branches with no row still
// behave as if they existed (see DefaultBranch); this is only called
// when a snapshot is actually about to be written on that branch.
func (d *DB) EnsureBranch(projectID, name string, now time.Time) error {
	err := d.run(true, func(db *sql.DB) error { return ensureBranchTx(db, projectID, name, now) })
	if err != nil {
		return fmt.Errorf("catalog: ensure branch: %w", err)
	}
	return nil
}

func ensureBranchTx(exec interface {
	Exec(query string, args ...any) (sql.Result, error)
}, projectID, name string, now time.Time) error {
	_, err := exec.Exec(`INSERT INTO branches (project_id, name, created_at) VALUES (?, ?, ?)
		ON CONFLICT(project_id, name) DO NOTHING`, projectID, name, now)
	return err
}

// CreateSnapshot writes a snapshot row, all of its file entries, and
// upserts the owning branch, as a single atomic transaction.
func (d *DB) CreateSnapshot(snap *Snapshot, entries []*FileEntry) error {
	err := d.run(true, func(db *sql.DB) error {
		tx, err := db.Begin()
		if err != nil {
			return err
		}
		defer tx.Rollback()

		if err := ensureBranchTx(tx, snap.ProjectID, snap.Branch, snap.CreatedAt); err != nil {
			return fmt.Errorf("ensure branch: %w", err)
		}

		_, err = tx.Exec(`INSERT INTO snapshots (id, project_id, branch, message, created_at, created_by, manifest_hash, file_count, total_size)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			snap.ID, snap.ProjectID, snap.Branch, snap.Message, snap.CreatedAt, snap.CreatedBy, snap.ManifestHash, snap.FileCount, snap.TotalSize)
		if err != nil {
			return fmt.Errorf("insert snapshot: %w", err)
		}

		stmt, err := tx.Prepare(`INSERT INTO file_entries (snapshot_id, path, hash, size, modified_at) VALUES (?, ?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("prepare file entry insert: %w", err)
		}
		defer stmt.Close()

		for _, fe := range entries {
			if _, err := stmt.Exec(fe.SnapshotID, fe.Path, fe.Hash, fe.Size, fe.ModifiedAt); err != nil {
				return fmt.Errorf("insert file entry %s: %w", fe.Path, err)
			}
		}

		return tx.Commit()
	})
	if err != nil {
		return fmt.Errorf("catalog: create snapshot: %w", err)
	}
	return nil
}

// DeleteSnapshot removes a snapshot and, via cascade, its file
// entries.
func (d *DB) DeleteSnapshot(id string) error {
	err := d.run(true, func(db *sql.DB) error {
		_, err := db.Exec(`DELETE FROM snapshots WHERE id = ?`, id)
		return err
	})
	if err != nil {
		return fmt.Errorf("catalog: delete snapshot: %w", err)
	}
	return nil
}

// LatestSnapshot returns the newest snapshot on (projectID, branch),
// or ErrNotFound if the branch has never been pushed to.
func (d *DB) LatestSnapshot(projectID, branch string) (*Snapshot, error) {
	var s Snapshot
	err := d.run(false, func(db *sql.DB) error {
		row := db.QueryRow(`SELECT id, project_id, branch, message, created_at, created_by, manifest_hash, file_count, total_size
			FROM snapshots WHERE project_id = ? AND branch = ? ORDER BY created_at DESC LIMIT 1`, projectID, branch)
		return scanSnapshot(row, &s)
	})
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("catalog: no snapshot on branch %s: %w", branch, syncerrs.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("catalog: latest snapshot: %w", err)
	}
	return &s, nil
}

// FindSnapshot looks up a snapshot by id regardless of branch.
func (d *DB) FindSnapshot(id string) (*Snapshot, error) {
	var s Snapshot
	err := d.run(false, func(db *sql.DB) error {
		row := db.QueryRow(`SELECT id, project_id, branch, message, created_at, created_by, manifest_hash, file_count, total_size
			FROM snapshots WHERE id = ?`, id)
		return scanSnapshot(row, &s)
	})
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("catalog: snapshot %s: %w", id, syncerrs.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("catalog: find snapshot: %w", err)
	}
	return &s, nil
}

// ListSnapshots returns snapshots for a project, optionally restricted
// to one branch, newest first, optionally capped at limit (<= 0 means
// unlimited).
func (d *DB) ListSnapshots(projectID, branch string, limit int) ([]*Snapshot, error) {
	query := `SELECT id, project_id, branch, message, created_at, created_by, manifest_hash, file_count, total_size
		FROM snapshots WHERE project_id = ?`
	args := []any{projectID}
	if branch != "" {
		query += ` AND branch = ?`
		args = append(args, branch)
	}
	query += ` ORDER BY created_at DESC`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	var out []*Snapshot
	err := d.run(false, func(db *sql.DB) error {
		rows, err := db.Query(query, args...)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			s := &Snapshot{}
			if err := scanSnapshotRows(rows, s); err != nil {
				return err
			}
			out = append(out, s)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("catalog: list snapshots: %w", err)
	}
	return out, nil
}

// SnapshotEntries returns every FileEntry row belonging to one
// snapshot.
func (d *DB) SnapshotEntries(snapshotID string) ([]*FileEntry, error) {
	var out []*FileEntry
	err := d.run(false, func(db *sql.DB) error {
		rows, err := db.Query(`SELECT snapshot_id, path, hash, size, modified_at FROM file_entries WHERE snapshot_id = ?`, snapshotID)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			fe := &FileEntry{}
			if err := rows.Scan(&fe.SnapshotID, &fe.Path, &fe.Hash, &fe.Size, &fe.ModifiedAt); err != nil {
				return err
			}
			out = append(out, fe)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("catalog: snapshot entries: %w", err)
	}
	return out, nil
}

// AllReferencedHashes returns the set of content-hashes referenced by
// any FileEntry row across every project and snapshot, plus the
// blob_keys storage hash of each such content-hash that was stored
// encrypted, used by gc.
func (d *DB) AllReferencedHashes() (map[string]bool, error) {
	out := map[string]bool{}
	err := d.run(false, func(db *sql.DB) error {
		rows, err := db.Query(`SELECT hash FROM file_entries
			UNION SELECT storage_hash FROM blob_keys WHERE plaintext_hash IN (SELECT hash FROM file_entries)`)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var hash string
			if err := rows.Scan(&hash); err != nil {
				return err
			}
			out[hash] = true
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("catalog: referenced hashes: %w", err)
	}
	return out, nil
}

// AcquireFileLock succeeds iff no row exists for (project, path).
func (d *DB) AcquireFileLock(projectID, path, machine string, now time.Time) (bool, error) {
	var ok bool
	err := d.run(true, func(db *sql.DB) error {
		_, err := db.Exec(`INSERT INTO file_locks (project_id, path, machine_name, locked_at) VALUES (?, ?, ?, ?)`,
			projectID, path, machine, now)
		if err != nil {
			var sqliteErr sqlite3.Error
			if errors.As(err, &sqliteErr) && sqliteErr.Code == sqlite3.ErrConstraint {
				ok = false
				return nil
			}
			return err
		}
		ok = true
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("catalog: acquire file lock: %w", err)
	}
	return ok, nil
}

// ReleaseFileLock succeeds iff either no row exists or the row's
// machine equals the caller; it never deletes someone else's lock.
func (d *DB) ReleaseFileLock(projectID, path, machine string) (bool, error) {
	var ok bool
	err := d.run(true, func(db *sql.DB) error {
		res, err := db.Exec(`DELETE FROM file_locks WHERE project_id = ? AND path = ? AND machine_name = ?`, projectID, path, machine)
		if err != nil {
			return err
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if affected > 0 {
			ok = true
			return nil
		}
		var exists int
		row := db.QueryRow(`SELECT 1 FROM file_locks WHERE project_id = ? AND path = ?`, projectID, path)
		if err := row.Scan(&exists); errors.Is(err, sql.ErrNoRows) {
			ok = true // no row existed — release on nothing is a success
			return nil
		} else if err != nil {
			return err
		}
		ok = false
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("catalog: release file lock: %w", err)
	}
	return ok, nil
}

// ListFileLocks returns every advisory file lock held on a project.
func (d *DB) ListFileLocks(projectID string) ([]*FileLock, error) {
	var out []*FileLock
	err := d.run(false, func(db *sql.DB) error {
		rows, err := db.Query(`SELECT project_id, path, machine_name, locked_at FROM file_locks WHERE project_id = ?`, projectID)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			fl := &FileLock{}
			if err := rows.Scan(&fl.ProjectID, &fl.Path, &fl.Machine, &fl.LockedAt); err != nil {
				return err
			}
			out = append(out, fl)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("catalog: list file locks: %w", err)
	}
	return out, nil
}

// RecordBlobKey remembers that plaintextHash is currently stored
// under storageHash (its ciphertext's own hash, when encryption is
// active for the pushing peer).
func (d *DB) RecordBlobKey(plaintextHash, storageHash string) error {
	err := d.run(true, func(db *sql.DB) error {
		_, err := db.Exec(`INSERT INTO blob_keys (plaintext_hash, storage_hash) VALUES (?, ?)
			ON CONFLICT(plaintext_hash) DO UPDATE SET storage_hash = excluded.storage_hash`,
			plaintextHash, storageHash)
		return err
	})
	if err != nil {
		return fmt.Errorf("catalog: record blob key: %w", err)
	}
	return nil
}

// ResolveBlobKey returns the object-store key for a plaintext content
// hash, falling back to the hash itself when no mapping was recorded
// (the unencrypted case).
func (d *DB) ResolveBlobKey(plaintextHash string) (string, error) {
	storageHash := plaintextHash
	err := d.run(false, func(db *sql.DB) error {
		row := db.QueryRow(`SELECT storage_hash FROM blob_keys WHERE plaintext_hash = ?`, plaintextHash)
		err := row.Scan(&storageHash)
		if errors.Is(err, sql.ErrNoRows) {
			storageHash = plaintextHash
			return nil
		}
		return err
	})
	if err != nil {
		return "", fmt.Errorf("catalog: resolve blob key: %w", err)
	}
	return storageHash, nil
}

func scanSnapshot(row *sql.Row, s *Snapshot) error {
	return row.Scan(&s.ID, &s.ProjectID, &s.Branch, &s.Message, &s.CreatedAt, &s.CreatedBy, &s.ManifestHash, &s.FileCount, &s.TotalSize)
}

func scanSnapshotRows(rows *sql.Rows, s *Snapshot) error {
	return rows.Scan(&s.ID, &s.ProjectID, &s.Branch, &s.Message, &s.CreatedAt, &s.CreatedBy, &s.ManifestHash, &s.FileCount, &s.TotalSize)
}
