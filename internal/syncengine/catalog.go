package syncengine

import (
	"time"

	"netsync/internal/catalog"
)

// Catalog provides the durable registry of projects, branches,
// snapshots, manifest entries, and advisory file locks. All mutating
// methods must only be called while the exclusion lock is held; the
// implementation guarantees each logical write is atomically durable
// as a unit (spec §3 "Catalog writes ... are atomically durable").
type Catalog interface {
	// Projects

	CreateProject(name string, now time.Time) (*catalog.Project, error)
	FindProject(id string) (*catalog.Project, error)
	ListProjects() ([]*catalog.Project, error)
	DeleteProject(id string) error
	TouchProjectSync(id string, now time.Time) error

	// Branches

	EnsureBranch(projectID, name string, now time.Time) error

	// Snapshots

	// CreateSnapshot writes a snapshot row and all of its file entries,
	// and upserts the owning branch, as a single atomic unit.
	CreateSnapshot(snap *catalog.Snapshot, entries []*catalog.FileEntry) error
	DeleteSnapshot(id string) error
	LatestSnapshot(projectID, branch string) (*catalog.Snapshot, error)
	FindSnapshot(id string) (*catalog.Snapshot, error)
	ListSnapshots(projectID string, branch string, limit int) ([]*catalog.Snapshot, error)

	// Manifest entries

	SnapshotEntries(snapshotID string) ([]*catalog.FileEntry, error)

	// Garbage collection support

	// AllReferencedHashes returns the set of content-hashes referenced
	// by any FileEntry row across every project and snapshot, plus the
	// storage key each of them maps to when stored encrypted.
	AllReferencedHashes() (map[string]bool, error)

	// Advisory file locks

	AcquireFileLock(projectID, path, machine string, now time.Time) (bool, error)
	ReleaseFileLock(projectID, path, machine string) (bool, error)
	ListFileLocks(projectID string) ([]*catalog.FileLock, error)

	// Blob key mapping, used when at-rest encryption is active.

	// RecordBlobKey remembers that the plaintext content hash
	// plaintextHash is currently stored under storageHash (its
	// ciphertext's own hash, when encryption is active).
	RecordBlobKey(plaintextHash, storageHash string) error

	// ResolveBlobKey returns the object-store key to fetch for a
	// plaintext content hash: storageHash if a mapping was recorded,
	// otherwise plaintextHash itself (the unencrypted case).
	ResolveBlobKey(plaintextHash string) (string, error)

	// Lifecycle

	Close() error
}
