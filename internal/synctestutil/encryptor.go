package synctestutil

import (
	"netsync/internal/blobcrypt"
	"netsync/internal/syncengine"
)

// NewTestEncryptor returns a deterministic, non-cryptographic
// Encryptor for tests that need to exercise the encrypted code path
// without real key material.
func NewTestEncryptor() syncengine.Encryptor {
	return blobcrypt.NewTestEncryptor()
}
