// Package exclusionlock enforces the coarse single-writer mutex over
// the shared mount via an OS-level advisory lock on a sentinel file,
// plus a sibling JSON info file recording the holder's identity.
package exclusionlock

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"

	"netsync/internal/syncengine"
)

const (
	sentinelName = "sync.lock"
	infoName     = "sync.lock.info"
	maxAttempts  = 3
	staleAfter   = 5 * time.Minute
)

// Lock implements syncengine.ExclusionLock over a sentinel+info file
// pair on the shared mount.
type Lock struct {
	root    string
	machine string
}

// New roots a Lock at the shared mount's root directory.
func New(root, machine string) *Lock {
	return &Lock{root: root, machine: machine}
}

func (l *Lock) sentinelPath() string { return filepath.Join(l.root, sentinelName) }
func (l *Lock) infoPath() string     { return filepath.Join(l.root, infoName) }

func (l *Lock) writeInfo(operation string) error {
	info := syncengine.LockInfo{Machine: l.machine, Operation: operation, LockedAt: time.Now().UTC(), PID: os.Getpid()}
	data, err := json.Marshal(info)
	if err != nil {
		return fmt.Errorf("exclusionlock: marshal info: %w", err)
	}
	return os.WriteFile(l.infoPath(), data, 0o644)
}

func (l *Lock) readInfo() (syncengine.LockInfo, error) {
	data, err := os.ReadFile(l.infoPath())
	if err != nil {
		if os.IsNotExist(err) {
			return syncengine.LockInfo{}, syncengine.ErrNotFound
		}
		return syncengine.LockInfo{}, fmt.Errorf("exclusionlock: read info: %w", err)
	}
	var info syncengine.LockInfo
	if err := json.Unmarshal(data, &info); err != nil {
		return syncengine.LockInfo{}, fmt.Errorf("exclusionlock: decode info: %w", err)
	}
	return info, nil
}

// handle releases the held flock once, deleting the info file first
// (deletion failures are swallowed, per spec).
type handle struct {
	fl       *flock.Flock
	infoPath string
}

func (h *handle) Release() error {
	os.Remove(h.infoPath)
	if err := h.fl.Unlock(); err != nil {
		return fmt.Errorf("exclusionlock: unlock: %w", err)
	}
	return nil
}

// Acquire retries with jitter, seizing a lock whose info file shows
// it as stale (abandoned by a crashed peer). On exhaustion it returns
// a LockBusyError naming the current holder.
func (l *Lock) Acquire(operation string) (syncengine.Unlocker, error) {
	if err := ensureSentinel(l.sentinelPath()); err != nil {
		return nil, err
	}

	var lastHolder syncengine.LockInfo
	for attempt := 0; attempt < maxAttempts; attempt++ {
		fl := flock.New(l.sentinelPath())
		locked, err := fl.TryLock()
		if err != nil {
			return nil, fmt.Errorf("exclusionlock: %w: %w", syncengine.ErrIO, err)
		}
		if locked {
			if err := l.writeInfo(operation); err != nil {
				fl.Unlock()
				return nil, err
			}
			return &handle{fl: fl, infoPath: l.infoPath()}, nil
		}

		info, ierr := l.readInfo()
		if ierr == nil {
			lastHolder = info
			if info.Stale(time.Now().UTC(), staleAfter) {
				os.Remove(l.infoPath())
				os.Remove(l.sentinelPath())
				if err := ensureSentinel(l.sentinelPath()); err != nil {
					return nil, err
				}
				continue
			}
		}
		if attempt < maxAttempts-1 {
			time.Sleep(jitter())
		}
	}
	return nil, &syncengine.LockBusyError{Holder: lastHolder}
}

// TryAcquire makes a single attempt with no retry.
func (l *Lock) TryAcquire(operation string) (syncengine.Unlocker, error) {
	if err := ensureSentinel(l.sentinelPath()); err != nil {
		return nil, err
	}
	fl := flock.New(l.sentinelPath())
	locked, err := fl.TryLock()
	if err != nil {
		return nil, fmt.Errorf("exclusionlock: %w: %w", syncengine.ErrIO, err)
	}
	if !locked {
		info, _ := l.readInfo()
		return nil, &syncengine.LockBusyError{Holder: info}
	}
	if err := l.writeInfo(operation); err != nil {
		fl.Unlock()
		return nil, err
	}
	return &handle{fl: fl, infoPath: l.infoPath()}, nil
}

// Info reads the current holder's sidecar file.
func (l *Lock) Info() (syncengine.LockInfo, error) {
	return l.readInfo()
}

// ForceRelease removes both the info file and the sentinel
// unconditionally, for operator recovery after a confirmed crash.
func (l *Lock) ForceRelease() error {
	os.Remove(l.infoPath())
	os.Remove(l.sentinelPath())
	return nil
}

func ensureSentinel(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("exclusionlock: mkdir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE, 0o644)
	if err != nil {
		return fmt.Errorf("exclusionlock: create sentinel: %w", err)
	}
	return f.Close()
}

func jitter() time.Duration {
	return time.Second + time.Duration(rand.Int63n(int64(2*time.Second)))
}

var _ syncengine.ExclusionLock = (*Lock)(nil)
