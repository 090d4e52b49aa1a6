// Package transfer moves blob content between a local project tree
// and the object store on behalf of push (upload) and pull/restore
// (download, delete).
package transfer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/semaphore"

	"netsync/internal/syncengine"
)

// Transfer is the default syncengine.Transferer. Encryptor/Decrypt
// may be nil, in which case every blob is handled as plaintext.
type Transfer struct {
	Objects     syncengine.ObjectStore
	Catalog     syncengine.Catalog
	Encryptor   syncengine.Encryptor
	Decrypt     syncengine.DecryptionContext
	Concurrency int64
}

// New wires a Transfer with the given concurrency bound. concurrency
// <= 0 defaults to 20, matching spec.
func New(objects syncengine.ObjectStore, cat syncengine.Catalog, concurrency int64) *Transfer {
	if concurrency <= 0 {
		concurrency = 20
	}
	return &Transfer{Objects: objects, Catalog: cat, Concurrency: concurrency}
}

// Upload stores the blob for each entry, deduping against existing
// blobs inside the object store, and records a plaintext→storage hash
// mapping whenever encryption is active. Per-file failures are
// collected and reported together; they do not prevent the remaining
// files from transferring (spec §7: per-file transfer errors are
// aggregated, not fatal to the whole operation).
func (t *Transfer) Upload(localPath string, entries []syncengine.ManifestEntry, progress syncengine.TransferProgressFunc) (int64, error) {
	var totalBytes int64
	for _, e := range entries {
		totalBytes += e.Size
	}
	totalFiles := len(entries)

	sem := semaphore.NewWeighted(t.Concurrency)
	ctx := context.Background()
	var wg sync.WaitGroup
	var mu sync.Mutex
	var errs []error
	var bytesDone, filesDone int64

	for _, entry := range entries {
		entry := entry
		if err := sem.Acquire(ctx, 1); err != nil {
			mu.Lock()
			errs = append(errs, err)
			mu.Unlock()
			continue
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer sem.Release(1)

			if err := t.uploadOne(localPath, entry); err != nil {
				mu.Lock()
				errs = append(errs, fmt.Errorf("%s: %w", entry.Path, err))
				mu.Unlock()
				return
			}

			done := atomic.AddInt64(&filesDone, 1)
			bd := atomic.AddInt64(&bytesDone, entry.Size)
			if progress != nil {
				func() {
					defer func() { recover() }()
					progress(int(done), totalFiles, bd, totalBytes, entry.Path)
				}()
			}
		}()
	}
	wg.Wait()

	return atomic.LoadInt64(&bytesDone), errors.Join(errs...)
}

func (t *Transfer) uploadOne(localPath string, entry syncengine.ManifestEntry) error {
	f, err := os.Open(filepath.Join(localPath, filepath.FromSlash(entry.Path)))
	if err != nil {
		return fmt.Errorf("open: %w", err)
	}
	defer f.Close()

	if t.Encryptor != nil && t.Encryptor.IsConfigured() {
		return t.uploadEncrypted(f, entry)
	}

	if _, err := t.Objects.Put(f, entry.Size, nil); err != nil {
		return fmt.Errorf("put blob: %w", err)
	}
	return nil
}

// uploadEncrypted encrypts f to a local scratch file, learns the
// resulting storage key from Encrypt itself, and only then stores it
// via PutKeyed. Unlike the plaintext path, the storage key can't be
// known until encryption finishes, so there is no way to ask the
// object store to hash-as-it-writes the way Put does; a scratch file
// in between is what lets Encrypt finish before the object store ever
// opens its own destination file.
func (t *Transfer) uploadEncrypted(f *os.File, entry syncengine.ManifestEntry) error {
	scratch, err := os.CreateTemp("", "netsync-upload-*.age")
	if err != nil {
		return fmt.Errorf("create scratch file: %w", err)
	}
	scratchPath := scratch.Name()
	defer os.Remove(scratchPath)

	storageHash, encErr := t.Encryptor.Encrypt(f, scratch)
	closeErr := scratch.Close()
	if encErr != nil {
		return fmt.Errorf("encrypt: %w", encErr)
	}
	if closeErr != nil {
		return fmt.Errorf("close scratch file: %w", closeErr)
	}

	ciphertext, err := os.Open(scratchPath)
	if err != nil {
		return fmt.Errorf("reopen scratch file: %w", err)
	}
	defer ciphertext.Close()

	if err := t.Objects.PutKeyed(storageHash, ciphertext, nil); err != nil {
		return fmt.Errorf("put encrypted blob: %w", err)
	}
	if err := t.Catalog.RecordBlobKey(entry.Hash, storageHash); err != nil {
		return fmt.Errorf("record blob key: %w", err)
	}
	return nil
}

// Download fetches the blob for each entry into localPath, decrypting
// when the resolved storage key differs from the plaintext hash.
func (t *Transfer) Download(localPath string, entries []syncengine.ManifestEntry, progress syncengine.TransferProgressFunc) (int64, error) {
	var totalBytes int64
	for _, e := range entries {
		totalBytes += e.Size
	}
	totalFiles := len(entries)

	sem := semaphore.NewWeighted(t.Concurrency)
	ctx := context.Background()
	var wg sync.WaitGroup
	var mu sync.Mutex
	var errs []error
	var bytesDone, filesDone int64

	for _, entry := range entries {
		entry := entry
		if err := sem.Acquire(ctx, 1); err != nil {
			mu.Lock()
			errs = append(errs, err)
			mu.Unlock()
			continue
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer sem.Release(1)

			if err := t.downloadOne(localPath, entry); err != nil {
				mu.Lock()
				errs = append(errs, fmt.Errorf("%s: %w", entry.Path, err))
				mu.Unlock()
				return
			}

			done := atomic.AddInt64(&filesDone, 1)
			bd := atomic.AddInt64(&bytesDone, entry.Size)
			if progress != nil {
				func() {
					defer func() { recover() }()
					progress(int(done), totalFiles, bd, totalBytes, entry.Path)
				}()
			}
		}()
	}
	wg.Wait()

	return atomic.LoadInt64(&bytesDone), errors.Join(errs...)
}

func (t *Transfer) downloadOne(localPath string, entry syncengine.ManifestEntry) error {
	destPath := filepath.Join(localPath, filepath.FromSlash(entry.Path))
	if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		return fmt.Errorf("mkdir: %w", err)
	}

	storageKey, err := t.Catalog.ResolveBlobKey(entry.Hash)
	if err != nil {
		return fmt.Errorf("resolve blob key: %w", err)
	}

	f, err := os.Create(destPath)
	if err != nil {
		return fmt.Errorf("create: %w", err)
	}
	defer f.Close()

	if storageKey != entry.Hash {
		if t.Decrypt == nil {
			return fmt.Errorf("content is encrypted but no passphrase was unlocked: %w", syncengine.ErrNotConfigured)
		}
		pr, pw := io.Pipe()
		getErrCh := make(chan error, 1)
		go func() {
			err := t.Objects.Get(storageKey, pw)
			pw.CloseWithError(err)
			getErrCh <- err
		}()

		decErr := t.Decrypt.Decrypt(pr, f)
		pr.CloseWithError(decErr)
		<-getErrCh

		if decErr != nil {
			return fmt.Errorf("decrypt: %w", decErr)
		}
		return nil
	}

	if err := t.Objects.Get(storageKey, f); err != nil {
		return fmt.Errorf("get: %w", err)
	}
	return nil
}

// Delete removes each path from disk. Missing files are not an error.
func (t *Transfer) Delete(localPath string, paths []string) error {
	var errs []error
	for _, p := range paths {
		full := filepath.Join(localPath, filepath.FromSlash(p))
		if err := os.Remove(full); err != nil && !os.IsNotExist(err) {
			errs = append(errs, fmt.Errorf("%s: %w", p, err))
		}
	}
	return errors.Join(errs...)
}

// RenameLocal moves the file at path to its keep_both sibling,
// <stem>.local<ext>, ahead of the conflicting remote copy being
// fetched into the original name.
func (t *Transfer) RenameLocal(localPath, path string) (string, error) {
	full := filepath.Join(localPath, filepath.FromSlash(path))
	dir := filepath.Dir(full)
	base := filepath.Base(full)
	ext := filepath.Ext(base)
	stem := strings.TrimSuffix(base, ext)
	newFull := filepath.Join(dir, stem+".local"+ext)

	if err := os.Rename(full, newFull); err != nil {
		return "", fmt.Errorf("transfer: rename local: %w", err)
	}
	newRel := strings.TrimSuffix(path, filepath.ToSlash(ext)) + ".local" + filepath.ToSlash(ext)
	return newRel, nil
}

var _ syncengine.Transferer = (*Transfer)(nil)
