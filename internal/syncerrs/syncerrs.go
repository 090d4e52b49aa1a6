// Package syncerrs holds the sentinel error kinds shared across the
// catalog and syncengine packages. It exists to avoid an import cycle:
// catalog wraps these errors, and syncengine depends on catalog.
package syncerrs

import "errors"

// Sentinel error kinds. Concrete packages wrap these with fmt.Errorf's
// %w so callers can errors.Is against a stable taxonomy regardless of
// which component raised the failure.
var (
	// ErrNotConfigured is returned when an operation requires setup
	// that hasn't happened yet (e.g. encryption keys, a project entry).
	ErrNotConfigured = errors.New("not configured")

	// ErrNotFound is returned when a referenced project, snapshot,
	// branch, blob, or lock does not exist.
	ErrNotFound = errors.New("not found")

	// ErrIntegrity is returned when stored or transferred bytes don't
	// hash back to their claimed content hash.
	ErrIntegrity = errors.New("integrity check failed")

	// ErrIO wraps a lower-level filesystem or mount failure that the
	// caller cannot itself resolve (permissions, disconnected mount).
	ErrIO = errors.New("i/o failure")

	// ErrConflictsPending names the unresolved-conflicts outcome. The
	// engine does not return it: Pull reports conflicts found without
	// resolutions through PullResult.Conflicts, with Success false.
	ErrConflictsPending = errors.New("unresolved conflicts")

	// ErrLockBusy is the errors.Is target for LockBusyError.
	ErrLockBusy = errors.New("lock busy")
)
