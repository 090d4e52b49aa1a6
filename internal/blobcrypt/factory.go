package blobcrypt

import (
	"fmt"

	"netsync/internal/config"
	"netsync/internal/syncengine"
)

// NewEncryptorFromConfig builds the Encryptor named by cfg.Type. An
// empty type is treated as "age": the returned *AgeEncryptor reports
// IsConfigured()==false, and transfers store plaintext, until its key
// files exist.
func NewEncryptorFromConfig(cfg config.EncryptionConfig) (syncengine.Encryptor, error) {
	switch cfg.Type {
	case "age", "":
		return NewAgeEncryptor(KeyPaths{
			PublicKeyPath:  cfg.PublicKeyPath,
			PrivateKeyPath: cfg.PrivateKeyPath,
		}), nil
	case "test":
		return NewTestEncryptor(), nil
	default:
		return nil, fmt.Errorf("unknown encryption type: %q", cfg.Type)
	}
}
