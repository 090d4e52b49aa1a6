package syncengine

import "io"

// Encryptor optionally wraps blob content at rest. A nil Encryptor
// means the peer stores plaintext, which is the default.
type Encryptor interface {
	// Setup performs one-time key generation, called by `netsync encrypt setup`.
	Setup(passphrase string) error

	// Encrypt reads plaintext from r and writes ciphertext to w using
	// the public key only — no passphrase required. It returns the
	// content hash of the ciphertext it wrote, which the transfer layer
	// uses as the blob's storage key (distinct from the plaintext hash
	// recorded in the manifest) without a second pass over the data.
	Encrypt(r io.Reader, w io.Writer) (hash string, err error)

	// Unlock decrypts the private key using the passphrase and returns
	// a DecryptionContext valid for the session.
	Unlock(passphrase string) (DecryptionContext, error)

	// IsConfigured reports whether key material exists on disk.
	IsConfigured() bool
}

// DecryptionContext holds an unlocked private key in memory for the
// duration of a pull/restore. Never written to disk.
type DecryptionContext interface {
	Decrypt(r io.Reader, w io.Writer) error
}
