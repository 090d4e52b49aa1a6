package synctestutil

import (
	"testing"

	"netsync/internal/objectstore"
)

// NewTestObjectStore opens an objectstore.Store rooted at a fresh temp
// directory standing in for the shared mount.
func NewTestObjectStore(t *testing.T) *objectstore.Store {
	t.Helper()

	store, err := objectstore.New(t.TempDir())
	if err != nil {
		t.Fatalf("opening test object store: %v", err)
	}
	return store
}
