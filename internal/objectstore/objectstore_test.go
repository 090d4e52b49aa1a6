package objectstore

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"netsync/internal/syncengine"
)

func newStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return s
}

func TestPutGet_RoundTrip(t *testing.T) {
	s := newStore(t)
	content := "hello, object store"

	hash, err := s.Put(strings.NewReader(content), int64(len(content)), nil)
	if err != nil {
		t.Fatalf("Put: %v", err)
	}

	var buf bytes.Buffer
	if err := s.Get(hash, &buf); err != nil {
		t.Fatalf("Get: %v", err)
	}
	if buf.String() != content {
		t.Errorf("Get() = %q, want %q", buf.String(), content)
	}
}

func TestPut_Deduplicates(t *testing.T) {
	s := newStore(t)
	content := "duplicate content"

	h1, err := s.Put(strings.NewReader(content), 0, nil)
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	h2, err := s.Put(strings.NewReader(content), 0, nil)
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	if h1 != h2 {
		t.Errorf("expected identical hashes, got %q and %q", h1, h2)
	}
}

func TestPut_DedupLeavesNoTempArtifacts(t *testing.T) {
	s := newStore(t)
	content := "duplicate content"

	if _, err := s.Put(strings.NewReader(content), 0, nil); err != nil {
		t.Fatalf("first Put: %v", err)
	}
	if _, err := s.Put(strings.NewReader(content), 0, nil); err != nil {
		t.Fatalf("second Put: %v", err)
	}

	entries, err := os.ReadDir(filepath.Join(s.root, tempDir))
	if err != nil {
		t.Fatalf("reading temp dir: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("temp dir = %v, want empty: a dedup hit should never leave a gzip scratch file behind", entries)
	}
}

func TestExists(t *testing.T) {
	s := newStore(t)
	hash, _ := s.Put(strings.NewReader("present"), 0, nil)

	ok, err := s.Exists(hash)
	if err != nil || !ok {
		t.Errorf("Exists(%q) = %v, %v, want true, nil", hash, ok, err)
	}

	ok, err = s.Exists("0000000000000000")
	if err != nil || ok {
		t.Errorf("Exists(missing) = %v, %v, want false, nil", ok, err)
	}
}

func TestGet_MissingBlob(t *testing.T) {
	s := newStore(t)
	var buf bytes.Buffer
	err := s.Get("0000000000000000", &buf)
	if err == nil {
		t.Fatal("expected an error for a missing blob")
	}
}

func TestPutKeyed_StoresUnderGivenHash(t *testing.T) {
	s := newStore(t)
	const key = "abcdef0123456789"
	if err := s.PutKeyed(key, strings.NewReader("ciphertext"), nil); err != nil {
		t.Fatalf("PutKeyed: %v", err)
	}

	ok, err := s.Exists(key)
	if err != nil || !ok {
		t.Fatalf("Exists(%q) = %v, %v, want true, nil", key, ok, err)
	}

	var buf bytes.Buffer
	if err := s.Get(key, &buf); err != nil {
		t.Fatalf("Get: %v", err)
	}
	if buf.String() != "ciphertext" {
		t.Errorf("Get() = %q, want %q", buf.String(), "ciphertext")
	}
}

func TestDelete(t *testing.T) {
	s := newStore(t)
	hash, _ := s.Put(strings.NewReader("to be deleted"), 0, nil)

	if !s.Delete(hash) {
		t.Fatal("Delete() = false, want true")
	}
	ok, _ := s.Exists(hash)
	if ok {
		t.Error("blob should no longer exist")
	}
	if s.Delete(hash) {
		t.Error("deleting an already-deleted blob should return false")
	}
}

func TestPrune_RemovesUnreferenced(t *testing.T) {
	s := newStore(t)
	keep, _ := s.Put(strings.NewReader("keep me"), 0, nil)
	drop, _ := s.Put(strings.NewReader("drop me"), 0, nil)

	count, freed, err := s.Prune(map[string]bool{keep: true})
	if err != nil {
		t.Fatalf("Prune: %v", err)
	}
	if count != 1 {
		t.Errorf("Prune() removed %d blobs, want 1", count)
	}
	if freed <= 0 {
		t.Errorf("Prune() freed %d bytes, want > 0", freed)
	}

	keepOK, _ := s.Exists(keep)
	dropOK, _ := s.Exists(drop)
	if !keepOK {
		t.Error("kept blob should still exist")
	}
	if dropOK {
		t.Error("unreferenced blob should have been removed")
	}
}

func TestSize_ReportsOnDiskSize(t *testing.T) {
	s := newStore(t)
	hash, _ := s.Put(strings.NewReader("some content to measure"), 0, nil)

	size, err := s.Size(hash)
	if err != nil {
		t.Fatalf("Size: %v", err)
	}
	if size <= 0 {
		t.Errorf("Size() = %d, want > 0", size)
	}
}

var _ syncengine.ObjectStore = (*Store)(nil)
