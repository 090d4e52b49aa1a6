// Package hashing implements the engine's two distinct hash
// algorithms: a fast non-cryptographic content hash for blob keys, and
// a cryptographic manifest digest for snapshot identity.
package hashing

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/cespare/xxhash/v2"

	"netsync/internal/manifest"
)

// ContentHash streams r through XXH64 and returns a zero-padded,
// 16-character lowercase hex string. Collisions are accepted at the
// scale of one project tree; keys are user-scoped, not adversarial.
func ContentHash(r io.Reader) (string, error) {
	h := NewContentHasher()
	if _, err := io.Copy(h, r); err != nil {
		return "", fmt.Errorf("hashing: content hash: %w", err)
	}
	return FormatContentHash(h.Sum64()), nil
}

// NewContentHasher returns a fresh XXH64 hasher for callers that need
// to hash a stream as they write it elsewhere (e.g. blobcrypt tees
// ciphertext through one of these while encrypting, so the storage key
// is known the moment encryption finishes rather than requiring a
// second pass over the ciphertext).
func NewContentHasher() *xxhash.Digest {
	return xxhash.New()
}

// FormatContentHash renders a XXH64 sum the same way ContentHash does,
// for callers hashing with NewContentHasher directly.
func FormatContentHash(sum uint64) string {
	return fmt.Sprintf("%016x", sum)
}

// ManifestDigest computes the canonical SHA-256 digest of a set of
// manifest entries: the hash of the bytewise-path-sorted concatenation
// of "path\tcontent-hash\n" records. It is deterministic regardless of
// input order, which is the property push's idempotence check relies
// on.
func ManifestDigest(entries []manifest.Entry) string {
	paths := make([]string, len(entries))
	byPath := make(map[string]string, len(entries))
	for i, e := range entries {
		paths[i] = e.Path
		byPath[e.Path] = e.Hash
	}
	sort.Strings(paths)

	var buf strings.Builder
	for _, p := range paths {
		buf.WriteString(p)
		buf.WriteByte('\t')
		buf.WriteString(byPath[p])
		buf.WriteByte('\n')
	}
	sum := sha256.Sum256([]byte(buf.String()))
	return hex.EncodeToString(sum[:])
}
