package syncengine

// Transferer moves blob content between a local project tree and the
// object store, on behalf of push (upload) and pull/restore
// (download, delete). It owns encryption, if configured, as an
// implementation detail invisible to the Engine.
type Transferer interface {
	// Upload stores the blob for each entry (deduping against existing
	// blobs) and returns the summed logical size of the entries stored
	// successfully, dedup hits included.
	Upload(localPath string, entries []ManifestEntry, progress TransferProgressFunc) (bytesWritten int64, err error)

	// Download fetches the blob for each entry into localPath,
	// creating parent directories as needed, and returns total bytes
	// written to disk.
	Download(localPath string, entries []ManifestEntry, progress TransferProgressFunc) (bytesWritten int64, err error)

	// Delete removes each path (relative to localPath) from disk.
	// Missing files are not an error.
	Delete(localPath string, paths []string) error

	// RenameLocal moves the file at path to its keep_both sibling
	// (<stem>.local<ext>) before a conflicting remote copy is fetched.
	RenameLocal(localPath, path string) (newPath string, err error)
}
