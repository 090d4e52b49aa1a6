package blobcrypt

import (
	"bytes"
	"fmt"
	"io"

	"netsync/internal/hashing"
	"netsync/internal/syncengine"
)

// testHeader makes TestEncryptor's output clearly different from
// plaintext while remaining deterministic and reversible.
var testHeader = []byte("NSENC\x00\x00\x00")

// TestEncryptor is a deterministic, crypto-free stand-in for
// AgeEncryptor, used by test doubles that need encrypted-at-rest
// behavior without real key material.
type TestEncryptor struct{}

var _ syncengine.Encryptor = (*TestEncryptor)(nil)

func NewTestEncryptor() *TestEncryptor {
	return &TestEncryptor{}
}

func (e *TestEncryptor) Setup(passphrase string) error {
	return nil
}

// Encrypt mirrors AgeEncryptor's contract without real cryptography: it
// still returns the content hash of what it wrote to w, so code paths
// that key blobs by ciphertext hash (see transfer.Transfer.uploadOne)
// exercise the same storage-key indirection under test.
func (e *TestEncryptor) Encrypt(r io.Reader, w io.Writer) (string, error) {
	hasher := hashing.NewContentHasher()
	mw := io.MultiWriter(w, hasher)
	if _, err := mw.Write(testHeader); err != nil {
		return "", fmt.Errorf("writing test header: %w", err)
	}
	if _, err := io.Copy(mw, r); err != nil {
		return "", fmt.Errorf("copying data: %w", err)
	}
	return hashing.FormatContentHash(hasher.Sum64()), nil
}

func (e *TestEncryptor) Unlock(passphrase string) (syncengine.DecryptionContext, error) {
	return &TestDecryptionContext{}, nil
}

func (e *TestEncryptor) IsConfigured() bool {
	return true
}

// TestDecryptionContext strips the header added by TestEncryptor.
type TestDecryptionContext struct{}

var _ syncengine.DecryptionContext = (*TestDecryptionContext)(nil)

func (c *TestDecryptionContext) Decrypt(r io.Reader, w io.Writer) error {
	header := make([]byte, len(testHeader))
	if _, err := io.ReadFull(r, header); err != nil {
		return fmt.Errorf("reading test header: %w", err)
	}
	if !bytes.Equal(header, testHeader) {
		return fmt.Errorf("invalid test encryption header")
	}
	if _, err := io.Copy(w, r); err != nil {
		return fmt.Errorf("copying data: %w", err)
	}
	return nil
}
