package syncengine

import (
	"errors"
	"fmt"
	"time"

	"netsync/internal/catalog"
	"netsync/internal/hashing"
	"netsync/internal/ignoremask"
	"netsync/internal/syncdiff"
)

// Resolution is the caller's choice for one conflicting path during a
// pull.
type Resolution string

const (
	KeepLocal  Resolution = "keep_local"
	KeepRemote Resolution = "keep_remote"
	KeepBoth   Resolution = "keep_both"
)

// ConflictInfo names one path pull refused to resolve silently.
type ConflictInfo struct {
	Path          string
	LocalModTime  int64
	RemoteModTime int64
}

// PushResult reports the outcome of Push.
type PushResult struct {
	Success          bool
	Error            string
	SnapshotID       string
	FilesAdded       int
	FilesModified    int
	FilesDeleted     int
	BytesTransferred int64
}

// PullResult reports the outcome of Pull. When Conflicts is non-empty
// and Success is false, no filesystem I/O was performed — the caller
// must resupply resolutions for every listed path and call again.
type PullResult struct {
	Success          bool
	Error            string
	FilesDownloaded  int
	FilesDeleted     int
	BytesTransferred int64
	Conflicts        []ConflictInfo
}

// RestoreResult reports the outcome of Restore.
type RestoreResult struct {
	Success          bool
	Error            string
	FilesDownloaded  int
	FilesDeleted     int
	BytesTransferred int64
}

// StatusResult is a pure, lock-free read: the diff between the local
// tree and the latest snapshot on a branch.
type StatusResult struct {
	Added     []string
	Modified  []string
	Deleted   []string
	Unchanged []string
}

// GcResult reports the outcome of Gc.
type GcResult struct {
	Success      bool
	Error        string
	BlobsRemoved int
	BytesFreed   int64
}

// Engine is the top-level orchestrator: it owns no resources itself
// beyond what its collaborators hold, and is safe to construct fresh
// per process. All mutating operations serialize through the
// exclusion lock, never through an in-process mutex — cross-peer
// exclusion is the whole point.
type Engine struct {
	Catalog  Catalog
	Objects  ObjectStore
	Lock     ExclusionLock
	Scanner  Scanner
	Transfer Transferer
	Clock    Clock
	IDs      IDGenerator
	Log      Logger
}

// NewEngine wires an Engine from its collaborators. Clock/IDs/Log
// default to RealClock/UUIDGenerator/NopLogger when nil, matching the
// teacher's permissive constructor style for optional dependencies.
func NewEngine(cat Catalog, objects ObjectStore, lock ExclusionLock, scanner Scanner, transfer Transferer, clock Clock, ids IDGenerator, log Logger) *Engine {
	if clock == nil {
		clock = RealClock{}
	}
	if ids == nil {
		ids = UUIDGenerator{}
	}
	if log == nil {
		log = NewNopLogger()
	}
	return &Engine{Catalog: cat, Objects: objects, Lock: lock, Scanner: scanner, Transfer: transfer, Clock: clock, IDs: ids, Log: log}
}

func branchOrDefault(branch string) string {
	if branch == "" {
		return catalog.DefaultBranch
	}
	return branch
}

// remoteManifest loads the entries of a snapshot (or an empty
// manifest if snap is nil, meaning the branch has never been pushed)
// into the map Diff operates over.
func (e *Engine) remoteManifest(snap *catalog.Snapshot) (Manifest, error) {
	m := Manifest{}
	if snap == nil {
		return m, nil
	}
	entries, err := e.Catalog.SnapshotEntries(snap.ID)
	if err != nil {
		return nil, fmt.Errorf("load snapshot entries: %w", err)
	}
	for _, fe := range entries {
		m[fe.Path] = ManifestEntry{Path: fe.Path, Hash: fe.Hash, Size: fe.Size, ModTime: fe.ModifiedAt.UnixNano()}
	}
	return m, nil
}

func entriesForPaths(m Manifest, paths []string) []ManifestEntry {
	out := make([]ManifestEntry, 0, len(paths))
	for _, p := range paths {
		out = append(out, m[p])
	}
	return out
}

// Push scans localPath, diffs it against the latest snapshot on
// branch, uploads new and changed blobs, then writes a new snapshot
// whose manifest is exactly the local tree's, per spec §4.8.
func (e *Engine) Push(projectID, localPath, machine, message, branch string, progress TransferProgressFunc) PushResult {
	branch = branchOrDefault(branch)

	unlock, err := e.Lock.Acquire("push")
	if err != nil {
		return PushResult{Error: err.Error()}
	}
	defer unlock.Release()

	proj, err := e.Catalog.FindProject(projectID)
	if err != nil {
		return PushResult{Error: fmt.Errorf("find project: %w", err).Error()}
	}

	local, stats, err := e.Scanner.Scan(localPath, nil)
	if err != nil {
		return PushResult{Error: fmt.Errorf("scan: %w", err).Error()}
	}

	latest, err := e.Catalog.LatestSnapshot(proj.ID, branch)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return PushResult{Error: fmt.Errorf("load latest snapshot: %w", err).Error()}
	}
	remote, err := e.remoteManifest(latest)
	if err != nil {
		return PushResult{Error: err.Error()}
	}

	d := syncdiff.Diff(local, remote)

	toUpload := entriesForPaths(local, append(append([]string{}, d.Added...), d.Modified...))
	bytesWritten, err := e.Transfer.Upload(localPath, toUpload, progress)
	if err != nil {
		return PushResult{Error: fmt.Errorf("upload: %w", err).Error()}
	}

	now := e.Clock.Now()
	allEntries := make([]ManifestEntry, 0, len(local))
	fileEntries := make([]*catalog.FileEntry, 0, len(local))
	snapID := e.IDs.New()
	for _, me := range local {
		allEntries = append(allEntries, me)
		fileEntries = append(fileEntries, &catalog.FileEntry{
			SnapshotID: snapID,
			Path:       me.Path,
			Hash:       me.Hash,
			Size:       me.Size,
			ModifiedAt: time.Unix(0, me.ModTime).UTC(),
		})
	}

	snap := &catalog.Snapshot{
		ID:           snapID,
		ProjectID:    proj.ID,
		Branch:       branch,
		Message:      message,
		CreatedAt:    now,
		CreatedBy:    machine,
		ManifestHash: hashing.ManifestDigest(allEntries),
		FileCount:    stats.FileCount,
		TotalSize:    stats.TotalSize,
	}
	if err := e.Catalog.CreateSnapshot(snap, fileEntries); err != nil {
		return PushResult{Error: fmt.Errorf("create snapshot: %w", err).Error()}
	}
	if err := e.Catalog.TouchProjectSync(proj.ID, now); err != nil {
		e.Log.Warn("touch project sync failed", "project", proj.ID, "err", err)
	}

	return PushResult{
		Success:          true,
		SnapshotID:       snap.ID,
		FilesAdded:       len(d.Added),
		FilesModified:    len(d.Modified),
		FilesDeleted:     len(d.Deleted),
		BytesTransferred: bytesWritten,
	}
}

// Pull reconciles localPath with the latest snapshot on branch,
// downloading missing/changed files and deleting local files absent
// remotely, subject to conflict resolution and selective sync.
func (e *Engine) Pull(projectID, localPath, machine, branch string, resolutions map[string]Resolution, progress TransferProgressFunc, includePatterns []string) PullResult {
	branch = branchOrDefault(branch)

	unlock, err := e.Lock.Acquire("pull")
	if err != nil {
		return PullResult{Error: err.Error()}
	}
	defer unlock.Release()

	proj, err := e.Catalog.FindProject(projectID)
	if err != nil {
		return PullResult{Error: fmt.Errorf("find project: %w", err).Error()}
	}

	local, _, err := e.Scanner.Scan(localPath, nil)
	if err != nil {
		return PullResult{Error: fmt.Errorf("scan: %w", err).Error()}
	}

	latest, err := e.Catalog.LatestSnapshot(proj.ID, branch)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return PullResult{Error: fmt.Errorf("load latest snapshot: %w", err).Error()}
	}
	remote, err := e.remoteManifest(latest)
	if err != nil {
		return PullResult{Error: err.Error()}
	}

	// Diff(local, remote): Added = local-only (extraneous, candidates
	// for local deletion), Deleted = remote-only (missing, candidates
	// for download), Modified = present in both but differing.
	d := syncdiff.Diff(local, remote)

	missing := d.Deleted
	extraneous := d.Added
	modified := d.Modified

	var matcher func(string) bool
	if len(includePatterns) > 0 {
		m := ignoremask.New(includePatterns)
		matcher = m.Match
		missing = syncdiff.FilterByInclude(missing, matcher)
		extraneous = syncdiff.FilterByInclude(extraneous, matcher)
		modified = syncdiff.FilterByInclude(modified, matcher)
	}

	conflicts := syncdiff.Conflicts(modified, local, remote)
	if len(conflicts) > 0 && resolutions == nil {
		out := make([]ConflictInfo, len(conflicts))
		for i, c := range conflicts {
			out[i] = ConflictInfo{Path: c.Path, LocalModTime: c.LocalModTime, RemoteModTime: c.RemoteModTime}
		}
		return PullResult{Conflicts: out}
	}

	keepLocal := map[string]bool{}
	for _, c := range conflicts {
		res, ok := resolutions[c.Path]
		if !ok {
			return PullResult{Error: fmt.Sprintf("missing resolution for conflicting path %q", c.Path)}
		}
		switch res {
		case KeepRemote:
			// proceed as a normal download below
		case KeepLocal:
			keepLocal[c.Path] = true
		case KeepBoth:
			if _, err := e.Transfer.RenameLocal(localPath, c.Path); err != nil {
				return PullResult{Error: fmt.Errorf("rename local for keep_both %q: %w", c.Path, err).Error()}
			}
		default:
			return PullResult{Error: fmt.Sprintf("unknown resolution %q for path %q", res, c.Path)}
		}
	}

	toDownload := make([]string, 0, len(missing)+len(modified))
	toDownload = append(toDownload, missing...)
	for _, p := range modified {
		if !keepLocal[p] {
			toDownload = append(toDownload, p)
		}
	}

	bytesWritten, err := e.Transfer.Download(localPath, entriesForPaths(remote, toDownload), progress)
	if err != nil {
		return PullResult{Error: fmt.Errorf("download: %w", err).Error()}
	}
	if err := e.Transfer.Delete(localPath, extraneous); err != nil {
		return PullResult{Error: fmt.Errorf("delete: %w", err).Error()}
	}

	return PullResult{
		Success:          true,
		FilesDownloaded:  len(toDownload),
		FilesDeleted:     len(extraneous),
		BytesTransferred: bytesWritten,
	}
}

// Restore reconciles localPath with a named snapshot. Unlike Pull, it
// performs no conflict check — the caller has already opted into
// overwriting local state.
func (e *Engine) Restore(projectID, localPath, snapshotID, machine string, progress TransferProgressFunc, includePatterns []string) RestoreResult {
	unlock, err := e.Lock.Acquire("restore")
	if err != nil {
		return RestoreResult{Error: err.Error()}
	}
	defer unlock.Release()

	snap, err := e.Catalog.FindSnapshot(snapshotID)
	if err != nil {
		return RestoreResult{Error: fmt.Errorf("find snapshot: %w", err).Error()}
	}
	if snap.ProjectID != projectID {
		return RestoreResult{Error: fmt.Errorf("snapshot %s does not belong to project %s: %w", snapshotID, projectID, ErrNotFound).Error()}
	}

	local, _, err := e.Scanner.Scan(localPath, nil)
	if err != nil {
		return RestoreResult{Error: fmt.Errorf("scan: %w", err).Error()}
	}

	remote, err := e.remoteManifest(snap)
	if err != nil {
		return RestoreResult{Error: err.Error()}
	}

	d := syncdiff.Diff(local, remote)
	missing := d.Deleted
	extraneous := d.Added
	modified := d.Modified

	if len(includePatterns) > 0 {
		m := ignoremask.New(includePatterns)
		missing = syncdiff.FilterByInclude(missing, m.Match)
		extraneous = syncdiff.FilterByInclude(extraneous, m.Match)
		modified = syncdiff.FilterByInclude(modified, m.Match)
	}

	toDownload := append(append([]string{}, missing...), modified...)

	bytesWritten, err := e.Transfer.Download(localPath, entriesForPaths(remote, toDownload), progress)
	if err != nil {
		return RestoreResult{Error: fmt.Errorf("download: %w", err).Error()}
	}
	if err := e.Transfer.Delete(localPath, extraneous); err != nil {
		return RestoreResult{Error: fmt.Errorf("delete: %w", err).Error()}
	}

	return RestoreResult{
		Success:          true,
		FilesDownloaded:  len(toDownload),
		FilesDeleted:     len(extraneous),
		BytesTransferred: bytesWritten,
	}
}

// Status computes the diff between localPath and the latest snapshot
// on branch without taking the exclusion lock. It tolerates a torn
// read of the catalog (the implementation retries once internally);
// it never mutates anything.
func (e *Engine) Status(projectID, localPath, branch string) (StatusResult, error) {
	branch = branchOrDefault(branch)

	proj, err := e.Catalog.FindProject(projectID)
	if err != nil {
		return StatusResult{}, fmt.Errorf("find project: %w", err)
	}

	local, _, err := e.Scanner.Scan(localPath, nil)
	if err != nil {
		return StatusResult{}, fmt.Errorf("scan: %w", err)
	}

	latest, err := e.Catalog.LatestSnapshot(proj.ID, branch)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return StatusResult{}, fmt.Errorf("load latest snapshot: %w", err)
	}
	remote, err := e.remoteManifest(latest)
	if err != nil {
		return StatusResult{}, err
	}

	d := syncdiff.Diff(local, remote)
	return StatusResult{Added: d.Added, Modified: d.Modified, Deleted: d.Deleted, Unchanged: d.Unchanged}, nil
}

// Gc computes the set of hashes still referenced by any catalog row
// and prunes every other blob from the object store. It holds the
// exclusion lock for its entire duration, since a concurrent push
// could otherwise write a snapshot referencing a blob being pruned.
func (e *Engine) Gc(machine string) GcResult {
	unlock, err := e.Lock.Acquire("gc")
	if err != nil {
		return GcResult{Error: err.Error()}
	}
	defer unlock.Release()

	live, err := e.Catalog.AllReferencedHashes()
	if err != nil {
		return GcResult{Error: fmt.Errorf("load referenced hashes: %w", err).Error()}
	}

	count, freed, err := e.Objects.Prune(live)
	if err != nil {
		return GcResult{Error: fmt.Errorf("prune: %w", err).Error()}
	}

	return GcResult{Success: true, BlobsRemoved: count, BytesFreed: freed}
}
