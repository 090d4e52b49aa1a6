package syncengine

import "io"

// PutProgressFunc reports bytes written for one blob as it streams
// into the store. Implementations must swallow callback panics —
// callers should never let a progress callback abort a transfer.
type PutProgressFunc func(bytesWritten int64)

// ObjectStore is the content-addressable blob repository living on
// the shared mount, under <root>/objects/<aa>/<hash>.
type ObjectStore interface {
	// Put stores the content read from r under its content hash. If a
	// blob with that hash already exists, no further I/O is performed
	// and the existing hash is returned. size is the expected number of
	// bytes readable from r; it is only used for verification and MAY
	// be 0 (unknown) in which case no check is performed.
	Put(r io.Reader, size int64, progress PutProgressFunc) (hash string, err error)

	// PutKeyed stores content already known to hash to the given key
	// (used when storing pre-computed content, e.g. ciphertext, where
	// the caller has already hashed the bytes once).
	PutKeyed(hash string, r io.Reader, progress PutProgressFunc) error

	// Get retrieves the blob for hash and writes its bytes to w. If the
	// stored bytes, once decompressed, don't hash back to key, the
	// destination write is considered corrupt and an error wrapping
	// ErrIntegrity is returned.
	Get(hash string, w io.Writer) error

	// Exists reports whether a blob for hash is present.
	Exists(hash string) (bool, error)

	// Size returns the on-disk (compressed) size of a blob. Per
	// spec.md §9's open question, this is deliberately the physical
	// size, not the logical size recorded in the manifest.
	Size(hash string) (int64, error)

	// Delete unlinks one blob. Returns false (not an error) if the
	// blob did not exist or could not be removed.
	Delete(hash string) bool

	// Prune removes every blob whose hash is not in live, and empties
	// the temp staging directory. Returns the count and total bytes
	// freed.
	Prune(live map[string]bool) (count int, bytesFreed int64, err error)
}
