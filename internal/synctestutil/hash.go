package synctestutil

import (
	"bytes"

	"netsync/internal/hashing"
)

// ContentHash returns the xxhash-based content hash netsync uses for
// blob keys, matching the one the scanner and object store compute.
func ContentHash(data []byte) string {
	h, err := hashing.ContentHash(bytes.NewReader(data))
	if err != nil {
		panic(err) // in-memory reader never fails
	}
	return h
}
