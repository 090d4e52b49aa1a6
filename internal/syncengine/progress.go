package syncengine

// ScanProgressFunc reports scanner advancement. filesSeen and
// bytesSeen are cumulative. Called from worker goroutines; callers
// that need ordering or thread-safety must provide it themselves.
type ScanProgressFunc func(filesSeen int, bytesSeen int64, currentPath string)

// TransferProgressFunc reports per-operation transfer advancement
// during Push/Pull. filesDone/totalFiles and bytesDone/totalBytes are
// cumulative across the whole operation, not per-file.
type TransferProgressFunc func(filesDone, totalFiles int, bytesDone, totalBytes int64, currentPath string)

// safeScan wraps a possibly-nil ScanProgressFunc so callers never need
// a nil check, and a panicking callback can't take down a scan.
func safeScan(fn ScanProgressFunc) ScanProgressFunc {
	if fn == nil {
		return func(int, int64, string) {}
	}
	return func(filesSeen int, bytesSeen int64, path string) {
		defer func() { recover() }()
		fn(filesSeen, bytesSeen, path)
	}
}

// safeTransfer wraps a possibly-nil TransferProgressFunc the same way.
func safeTransfer(fn TransferProgressFunc) TransferProgressFunc {
	if fn == nil {
		return func(int, int, int64, int64, string) {}
	}
	return func(filesDone, totalFiles int, bytesDone, totalBytes int64, path string) {
		defer func() { recover() }()
		fn(filesDone, totalFiles, bytesDone, totalBytes, path)
	}
}
