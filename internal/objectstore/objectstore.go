// Package objectstore is the content-addressed blob repository living
// on the shared mount, under objects/<aa>/<hash>.
package objectstore

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/gzip"

	"netsync/internal/hashing"
	"netsync/internal/syncengine"
)

const (
	objectsDir = "objects"
	tempDir    = "temp"
	gzipMagic0 = 0x1f
	gzipMagic1 = 0x8b
)

// Store is a filesystem-backed ObjectStore rooted at the shared
// mount's data directory.
type Store struct {
	root string
}

// New roots a Store at root, creating objects/ and temp/ if missing.
func New(root string) (*Store, error) {
	for _, sub := range []string{objectsDir, tempDir} {
		if err := os.MkdirAll(filepath.Join(root, sub), 0o755); err != nil {
			return nil, fmt.Errorf("objectstore: create %s: %w", sub, err)
		}
	}
	return &Store{root: root}, nil
}

func (s *Store) blobPath(hash string) string {
	if len(hash) < 2 {
		return filepath.Join(s.root, objectsDir, hash, hash)
	}
	return filepath.Join(s.root, objectsDir, hash[:2], hash)
}

// Put hashes r into an uncompressed temp file in a single pass, then
// only gzip-compresses that temp file into its final blob location if
// no blob under the computed hash exists yet. A dedup hit therefore
// never pays for gzip work, matching spec §4.4's no-further-I/O-on-dedup
// rationale: the plain-file pass is the one read r can only give up
// once, but the expensive compression pass is skipped entirely.
func (s *Store) Put(r io.Reader, size int64, progress syncengine.PutProgressFunc) (string, error) {
	plainTmp, err := os.CreateTemp(filepath.Join(s.root, tempDir), "*.plain.tmp")
	if err != nil {
		return "", fmt.Errorf("objectstore: create temp: %w", err)
	}
	plainPath := plainTmp.Name()
	defer os.Remove(plainPath)

	hw := &hashingProgressWriter{w: plainTmp, progress: progress}
	hashVal, err := hashing.ContentHash(io.TeeReader(r, hw))
	closeErr := plainTmp.Close()
	if err != nil {
		return "", fmt.Errorf("objectstore: hash: %w", err)
	}
	if closeErr != nil {
		return "", fmt.Errorf("objectstore: close temp: %w", closeErr)
	}
	if size > 0 && hw.written != size {
		return "", fmt.Errorf("objectstore: %w: read %d bytes, expected %d", syncengine.ErrIntegrity, hw.written, size)
	}

	destPath := s.blobPath(hashVal)
	if _, err := os.Stat(destPath); err == nil {
		return hashVal, nil
	}

	plainFile, err := os.Open(plainPath)
	if err != nil {
		return "", fmt.Errorf("objectstore: reopen temp: %w", err)
	}
	defer plainFile.Close()

	gzTmp, err := os.CreateTemp(filepath.Join(s.root, tempDir), "*.tmp")
	if err != nil {
		return "", fmt.Errorf("objectstore: create temp: %w", err)
	}
	gzPath := gzTmp.Name()
	success := false
	defer func() {
		if !success {
			os.Remove(gzPath)
		}
	}()

	gw := gzip.NewWriter(gzTmp)
	if _, err := io.Copy(gw, plainFile); err != nil {
		gzTmp.Close()
		return "", fmt.Errorf("objectstore: gzip: %w", err)
	}
	if err := gw.Close(); err != nil {
		gzTmp.Close()
		return "", fmt.Errorf("objectstore: gzip close: %w", err)
	}
	if err := gzTmp.Close(); err != nil {
		return "", fmt.Errorf("objectstore: close temp: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		return "", fmt.Errorf("objectstore: mkdir: %w", err)
	}
	if err := os.Rename(gzPath, destPath); err != nil {
		return "", fmt.Errorf("objectstore: rename: %w", err)
	}
	success = true
	return hashVal, nil
}

// PutKeyed stores content whose hash the caller has already computed
// (used for encrypted blobs, whose store key is the ciphertext hash,
// not the plaintext hash the caller already knows from elsewhere).
func (s *Store) PutKeyed(hash string, r io.Reader, progress syncengine.PutProgressFunc) error {
	destPath := s.blobPath(hash)
	if _, err := os.Stat(destPath); err == nil {
		io.Copy(io.Discard, r)
		return nil
	}

	tmp, err := os.CreateTemp(filepath.Join(s.root, tempDir), "*.tmp")
	if err != nil {
		return fmt.Errorf("objectstore: create temp: %w", err)
	}
	tmpPath := tmp.Name()
	success := false
	defer func() {
		if !success {
			os.Remove(tmpPath)
		}
	}()

	gw := gzip.NewWriter(tmp)
	hw := &hashingProgressWriter{w: gw, progress: progress}
	if _, err := io.Copy(hw, r); err != nil {
		tmp.Close()
		return fmt.Errorf("objectstore: write: %w", err)
	}
	if err := gw.Close(); err != nil {
		tmp.Close()
		return fmt.Errorf("objectstore: gzip close: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("objectstore: close temp: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		return fmt.Errorf("objectstore: mkdir: %w", err)
	}
	if err := os.Rename(tmpPath, destPath); err != nil {
		return fmt.Errorf("objectstore: rename: %w", err)
	}
	success = true
	return nil
}

// Get opens the blob for hash, auto-detects gzip framing by peeking
// two magic bytes, streams the decoded bytes to w, then verifies the
// written bytes hash back to hash. On mismatch the destination is the
// caller's concern to discard; Get itself only reports the failure.
func (s *Store) Get(hash string, w io.Writer) error {
	srcPath := s.blobPath(hash)
	f, err := os.Open(srcPath)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("objectstore: blob %s: %w", hash, syncengine.ErrNotFound)
		}
		return fmt.Errorf("objectstore: open: %w", err)
	}
	defer f.Close()

	magic := make([]byte, 2)
	n, _ := io.ReadFull(f, magic)
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("objectstore: seek: %w", err)
	}

	var src io.Reader = f
	if n == 2 && magic[0] == gzipMagic0 && magic[1] == gzipMagic1 {
		gr, err := gzip.NewReader(f)
		if err != nil {
			return fmt.Errorf("objectstore: gzip reader: %w", err)
		}
		defer gr.Close()
		src = gr
	}

	verify := &hashAccumulator{}
	tee := io.TeeReader(src, verify)
	if _, err := io.Copy(w, tee); err != nil {
		return fmt.Errorf("objectstore: read: %w", err)
	}
	if verify.Sum() != hash {
		return fmt.Errorf("objectstore: blob %s: %w", hash, syncengine.ErrIntegrity)
	}
	return nil
}

// Exists reports whether a blob for hash is present via a single stat.
func (s *Store) Exists(hash string) (bool, error) {
	_, err := os.Stat(s.blobPath(hash))
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, fmt.Errorf("objectstore: stat: %w", err)
}

// Size returns the on-disk (compressed, if gzip-framed) size of a
// blob, distinct from the logical size recorded in the manifest.
func (s *Store) Size(hash string) (int64, error) {
	info, err := os.Stat(s.blobPath(hash))
	if err != nil {
		if os.IsNotExist(err) {
			return 0, fmt.Errorf("objectstore: blob %s: %w", hash, syncengine.ErrNotFound)
		}
		return 0, fmt.Errorf("objectstore: stat: %w", err)
	}
	return info.Size(), nil
}

// Delete unlinks one blob. Any failure (including not-exists) is
// reported as false, per spec.
func (s *Store) Delete(hash string) bool {
	return os.Remove(s.blobPath(hash)) == nil
}

// Prune removes every blob not present in live, then removes
// now-empty prefix directories and empties the temp staging area.
func (s *Store) Prune(live map[string]bool) (int, int64, error) {
	objectsRoot := filepath.Join(s.root, objectsDir)
	var count int
	var freed int64

	prefixes, err := os.ReadDir(objectsRoot)
	if err != nil {
		return 0, 0, fmt.Errorf("objectstore: read objects dir: %w", err)
	}
	for _, prefix := range prefixes {
		if !prefix.IsDir() {
			continue
		}
		prefixPath := filepath.Join(objectsRoot, prefix.Name())
		blobs, err := os.ReadDir(prefixPath)
		if err != nil {
			return count, freed, fmt.Errorf("objectstore: read prefix dir: %w", err)
		}
		for _, blob := range blobs {
			if live[blob.Name()] {
				continue
			}
			info, err := blob.Info()
			if err == nil {
				freed += info.Size()
			}
			if os.Remove(filepath.Join(prefixPath, blob.Name())) == nil {
				count++
			}
		}
		if entries, err := os.ReadDir(prefixPath); err == nil && len(entries) == 0 {
			os.Remove(prefixPath)
		}
	}

	tempRoot := filepath.Join(s.root, tempDir)
	if entries, err := os.ReadDir(tempRoot); err == nil {
		for _, e := range entries {
			os.RemoveAll(filepath.Join(tempRoot, e.Name()))
		}
	}

	return count, freed, nil
}

var _ syncengine.ObjectStore = (*Store)(nil)
