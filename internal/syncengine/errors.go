package syncengine

import "netsync/internal/syncerrs"

// Sentinel error kinds. Concrete packages wrap these with fmt.Errorf's
// %w so callers can errors.Is against a stable taxonomy regardless of
// which component raised the failure.
//
// These alias netsync/internal/syncerrs so that catalog (which
// syncengine depends on) can wrap the same sentinel values without
// importing syncengine and creating an import cycle.
var (
	// ErrNotConfigured is returned when an operation requires setup
	// that hasn't happened yet (e.g. encryption keys, a project entry).
	ErrNotConfigured = syncerrs.ErrNotConfigured

	// ErrNotFound is returned when a referenced project, snapshot,
	// branch, blob, or lock does not exist.
	ErrNotFound = syncerrs.ErrNotFound

	// ErrIntegrity is returned when stored or transferred bytes don't
	// hash back to their claimed content hash.
	ErrIntegrity = syncerrs.ErrIntegrity

	// ErrIO wraps a lower-level filesystem or mount failure that the
	// caller cannot itself resolve (permissions, disconnected mount).
	ErrIO = syncerrs.ErrIO

	// ErrConflictsPending names the unresolved-conflicts outcome. The
	// engine does not return it: Pull reports conflicts found without
	// resolutions through PullResult.Conflicts, with Success false.
	ErrConflictsPending = syncerrs.ErrConflictsPending

	// ErrLockBusy is the errors.Is target for LockBusyError.
	ErrLockBusy = syncerrs.ErrLockBusy
)
