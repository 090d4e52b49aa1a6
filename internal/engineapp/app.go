// Package engineapp is the wiring layer between the CLI and
// syncengine.Engine: it builds a fully-configured Engine from a
// config.Config, resolves project ids to local paths, and persists
// the peer-local operation log.
package engineapp

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"netsync/internal/applog"
	"netsync/internal/blobcrypt"
	"netsync/internal/catalog"
	"netsync/internal/config"
	"netsync/internal/exclusionlock"
	"netsync/internal/objectstore"
	"netsync/internal/oplog"
	"netsync/internal/scan"
	"netsync/internal/syncengine"
	"netsync/internal/transfer"
)

// App is a fully wired netsync peer for one CLI invocation.
type App struct {
	cfg        *config.Config
	configPath string

	Engine    *syncengine.Engine
	Encryptor syncengine.Encryptor
	xfer      *transfer.Transfer

	oplog   *oplog.Log
	op      *operation
	logFile *os.File
}

// operation tracks whether the current CLI invocation has been
// persisted to the operation log; only mutating commands persist.
type operation struct {
	id         int64
	name       string
	parameters string
	persisted  bool
}

// New builds a fully wired App from cfg. baseDir is netsync's own
// per-peer data directory (see Defaults), distinct from cfg.NASPath
// (the shared mount). operationName identifies the CLI command being
// run, e.g. "push" or "project create".
func New(cfg *config.Config, configPath, baseDir, operationName, parameters string) (*App, error) {
	if cfg.NASPath == "" {
		return nil, fmt.Errorf("config: nas_path is not set: %w", syncengine.ErrNotConfigured)
	}

	scratchDir := filepath.Join(baseDir, "scratch")
	if err := os.MkdirAll(scratchDir, 0700); err != nil {
		return nil, fmt.Errorf("creating scratch directory: %w", err)
	}

	cat, err := catalog.Open(cfg.NASPath, scratchDir)
	if err != nil {
		return nil, fmt.Errorf("opening catalog: %w", err)
	}

	objs, err := objectstore.New(cfg.NASPath)
	if err != nil {
		cat.Close()
		return nil, fmt.Errorf("opening object store: %w", err)
	}

	machine := cfg.MachineName
	if machine == "" {
		machine, _ = os.Hostname()
	}
	lock := exclusionlock.New(cfg.NASPath, machine)

	scanConcurrency := cfg.Concurrency.Scan
	scanner := scan.New(scanConcurrency)

	xfer := transfer.New(objs, cat, cfg.Concurrency.Transfer)

	enc, err := blobcrypt.NewEncryptorFromConfig(cfg.Encryption)
	if err != nil {
		cat.Close()
		return nil, fmt.Errorf("creating encryptor: %w", err)
	}
	xfer.Encryptor = enc

	opID := time.Now().UTC().Format("20060102T150405Z")
	logDir := cfg.LogDir
	if logDir == "" {
		logDir = filepath.Join(baseDir, "log")
	}
	logger, logFile, err := applog.New(logDir, machine, opID)
	if err != nil {
		cat.Close()
		return nil, fmt.Errorf("creating logger: %w", err)
	}

	engine := syncengine.NewEngine(cat, objs, lock, scanner, xfer, syncengine.RealClock{}, syncengine.UUIDGenerator{}, applog.NewAdapter(logger))

	ops, err := oplog.Open(scratchDir)
	if err != nil {
		logFile.Close()
		cat.Close()
		return nil, fmt.Errorf("opening operation log: %w", err)
	}

	return &App{
		cfg:        cfg,
		configPath: configPath,
		Engine:     engine,
		Encryptor:  enc,
		xfer:       xfer,
		oplog:      ops,
		op:         &operation{name: operationName, parameters: parameters},
		logFile:    logFile,
	}, nil
}

// persistOperation records the in-progress operation the first time
// it is called; a no-op on subsequent calls.
func (a *App) persistOperation() {
	if a.op.persisted {
		return
	}
	id, err := a.oplog.Start(a.op.name, a.op.parameters, time.Now().UTC())
	if err != nil {
		return // operation log is best-effort bookkeeping, never fatal
	}
	a.op.id = id
	a.op.persisted = true
}

// finishOperation marks the persisted operation, if any, complete.
func (a *App) finishOperation(status string) {
	if !a.op.persisted {
		return
	}
	a.oplog.Finish(a.op.id, status, time.Now().UTC())
}

// resolveProject returns the local filesystem path configured for a
// project id.
func (a *App) resolveProject(projectID string) (string, error) {
	pc, ok := a.cfg.Projects[projectID]
	if !ok {
		return "", fmt.Errorf("project %q is not configured on this machine: %w", projectID, syncengine.ErrNotConfigured)
	}
	return pc.LocalPath, nil
}

// CreateProject registers a new project in the catalog and records
// its local path in this peer's config.
func (a *App) CreateProject(name, localPath string) (*catalog.Project, error) {
	a.persistOperation()
	proj, err := a.Engine.Catalog.CreateProject(name, a.Engine.Clock.Now())
	if err != nil {
		return nil, err
	}
	a.cfg.Projects[proj.ID] = config.ProjectConfig{LocalPath: localPath}
	if err := config.Save(a.configPath, a.cfg); err != nil {
		return nil, fmt.Errorf("saving config: %w", err)
	}
	return proj, nil
}

// ListProjects returns every catalog project paired with this peer's
// configured local path, if any.
type ProjectView struct {
	*catalog.Project
	LocalPath string
	Tracked   bool
}

func (a *App) ListProjects() ([]ProjectView, error) {
	projects, err := a.Engine.Catalog.ListProjects()
	if err != nil {
		return nil, err
	}
	views := make([]ProjectView, 0, len(projects))
	for _, p := range projects {
		pc, tracked := a.cfg.Projects[p.ID]
		views = append(views, ProjectView{Project: p, LocalPath: pc.LocalPath, Tracked: tracked})
	}
	return views, nil
}

// RemoveProject deletes a project from the catalog and forgets its
// local path in this peer's config.
func (a *App) RemoveProject(projectID string) error {
	a.persistOperation()
	if err := a.Engine.Catalog.DeleteProject(projectID); err != nil {
		return err
	}
	delete(a.cfg.Projects, projectID)
	return config.Save(a.configPath, a.cfg)
}

// Push resolves the project's local path and runs a push.
func (a *App) Push(projectID, message, branch string, progress syncengine.TransferProgressFunc) syncengine.PushResult {
	a.persistOperation()
	localPath, err := a.resolveProject(projectID)
	if err != nil {
		return syncengine.PushResult{Error: err.Error()}
	}
	machine := a.cfg.MachineName
	if machine == "" {
		machine, _ = os.Hostname()
	}
	res := a.Engine.Push(projectID, localPath, machine, message, branch, progress)
	if res.Success {
		a.finishOperation("success")
	} else {
		a.finishOperation("error")
	}
	return res
}

// Pull resolves the project's local path and runs a pull.
func (a *App) Pull(projectID, branch string, resolutions map[string]syncengine.Resolution, progress syncengine.TransferProgressFunc) syncengine.PullResult {
	a.persistOperation()
	localPath, err := a.resolveProject(projectID)
	if err != nil {
		return syncengine.PullResult{Error: err.Error()}
	}
	machine := a.cfg.MachineName
	if machine == "" {
		machine, _ = os.Hostname()
	}
	include := a.cfg.Projects[projectID].Include
	res := a.Engine.Pull(projectID, localPath, machine, branch, resolutions, progress, include)
	if res.Success {
		a.finishOperation("success")
	} else if len(res.Conflicts) > 0 {
		a.finishOperation("conflicts")
	} else {
		a.finishOperation("error")
	}
	return res
}

// Restore resolves the project's local path and restores it to a
// specific snapshot.
func (a *App) Restore(projectID, snapshotID string, progress syncengine.TransferProgressFunc) syncengine.RestoreResult {
	a.persistOperation()
	localPath, err := a.resolveProject(projectID)
	if err != nil {
		return syncengine.RestoreResult{Error: err.Error()}
	}
	machine := a.cfg.MachineName
	if machine == "" {
		machine, _ = os.Hostname()
	}
	include := a.cfg.Projects[projectID].Include
	res := a.Engine.Restore(projectID, localPath, snapshotID, machine, progress, include)
	if res.Success {
		a.finishOperation("success")
	} else {
		a.finishOperation("error")
	}
	return res
}

// Status is a read-only reconciliation preview; it never touches the
// operation log or the exclusion lock.
func (a *App) Status(projectID, branch string) (syncengine.StatusResult, error) {
	localPath, err := a.resolveProject(projectID)
	if err != nil {
		return syncengine.StatusResult{}, err
	}
	return a.Engine.Status(projectID, localPath, branch)
}

// Gc reclaims unreferenced blobs from the shared object store.
func (a *App) Gc() syncengine.GcResult {
	a.persistOperation()
	machine := a.cfg.MachineName
	if machine == "" {
		machine, _ = os.Hostname()
	}
	res := a.Engine.Gc(machine)
	if res.Success {
		a.finishOperation("success")
	} else {
		a.finishOperation("error")
	}
	return res
}

// LockStatus reports the current exclusion lock holder, if any.
func (a *App) LockStatus() (syncengine.LockInfo, error) {
	return a.Engine.Lock.Info()
}

// ForceReleaseLock clears the exclusion lock regardless of holder.
// Intended for operator recovery after a crashed peer.
func (a *App) ForceReleaseLock() error {
	return a.Engine.Lock.ForceRelease()
}

// EncryptSetup generates a new key pair protected by passphrase.
func (a *App) EncryptSetup(passphrase string) error {
	return a.Encryptor.Setup(passphrase)
}

// Unlock decrypts the private key with passphrase and arms the
// transfer layer to decrypt encrypted blobs for the rest of this
// process's lifetime.
func (a *App) Unlock(passphrase string) error {
	ctx, err := a.Encryptor.Unlock(passphrase)
	if err != nil {
		return err
	}
	a.xfer.Decrypt = ctx
	return nil
}

// History returns the most recent local operations, newest first.
func (a *App) History(limit int) ([]*oplog.Operation, error) {
	return a.oplog.List(limit)
}

// FileHistoryEntry is one snapshot's record of a single path.
type FileHistoryEntry struct {
	SnapshotID string
	Branch     string
	CreatedAt  time.Time
	CreatedBy  string
	Hash       string
	Size       int64
	Present    bool // false when the path was absent (deleted) in this snapshot
}

// FileHistory walks every snapshot of a project, newest first, and
// reports what that snapshot's manifest says about path (present with
// a hash, or absent). It composes entirely out of the catalog's
// existing query surface rather than a dedicated indexed lookup, since
// this is a low-traffic diagnostic command.
func (a *App) FileHistory(projectID, path string) ([]FileHistoryEntry, error) {
	snaps, err := a.Engine.Catalog.ListSnapshots(projectID, "", 0)
	if err != nil {
		return nil, err
	}

	var out []FileHistoryEntry
	for _, snap := range snaps {
		entries, err := a.Engine.Catalog.SnapshotEntries(snap.ID)
		if err != nil {
			return nil, err
		}
		hist := FileHistoryEntry{
			SnapshotID: snap.ID,
			Branch:     snap.Branch,
			CreatedAt:  snap.CreatedAt,
			CreatedBy:  snap.CreatedBy,
		}
		for _, e := range entries {
			if e.Path == path {
				hist.Hash = e.Hash
				hist.Size = e.Size
				hist.Present = true
				break
			}
		}
		out = append(out, hist)
	}
	return out, nil
}

// Close closes the operation log, the catalog, and the log file. It
// does not change the status of a persisted operation log entry.
func (a *App) Close() error {
	var firstErr error

	if err := a.oplog.Close(); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("closing operation log: %w", err)
	}
	if err := a.Engine.Catalog.Close(); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("closing catalog: %w", err)
	}
	if a.logFile != nil {
		a.logFile.Close()
	}
	return firstErr
}
