package syncengine

import "time"

// LockInfo describes the holder of an exclusion lock, written as the
// sidecar JSON file alongside the advisory flock sentinel.
type LockInfo struct {
	Machine   string    `json:"machine"`
	Operation string    `json:"operation"`
	LockedAt  time.Time `json:"locked_at"`
	PID       int       `json:"pid"`
}

// Stale reports whether the lock was taken longer ago than max and
// should be treated as abandoned (e.g. the holder crashed without
// releasing).
func (li LockInfo) Stale(now time.Time, max time.Duration) bool {
	return now.Sub(li.LockedAt) > max
}

// ExclusionLock enforces single-writer access to the whole shared
// mount, across all projects and all peers.
type ExclusionLock interface {
	// Acquire blocks, retrying with jitter, until the lock is obtained
	// or attempts are exhausted. operation is recorded in the sidecar
	// info file for diagnostics (e.g. "push", "gc").
	Acquire(operation string) (Unlocker, error)

	// TryAcquire makes a single attempt and returns a LockBusyError
	// immediately if another peer holds the lock.
	TryAcquire(operation string) (Unlocker, error)

	// Info reads the current holder's sidecar file without attempting
	// to acquire. Returns ErrNotFound if no lock is held.
	Info() (LockInfo, error)

	// ForceRelease removes a lock unconditionally, for operator
	// recovery after a confirmed crash. Callers should verify Info()
	// reports a Stale lock before calling this.
	ForceRelease() error
}

// Unlocker releases a previously acquired ExclusionLock.
type Unlocker interface {
	Release() error
}

// LockBusyError is returned when a lock is held by another peer.
type LockBusyError struct {
	Holder LockInfo
}

func (e *LockBusyError) Error() string {
	return "lock held by " + e.Holder.Machine + " (" + e.Holder.Operation + ")"
}

func (e *LockBusyError) Is(target error) bool { return target == ErrLockBusy }
