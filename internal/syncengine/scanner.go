package syncengine

import "time"

// ScanStats summarizes one completed scan.
type ScanStats struct {
	TotalSize int64
	FileCount int
	DirCount  int
	ScannedAt time.Time
}

// Scanner walks a local project tree, applying ignore rules and a
// persistent hash cache, and produces the manifest diff operates over.
type Scanner interface {
	Scan(localPath string, progress ScanProgressFunc) (Manifest, ScanStats, error)
}
