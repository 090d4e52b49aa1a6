package syncengine_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"netsync/internal/catalog"
	"netsync/internal/objectstore"
)

// catalogAt opens a catalog.DB rooted at mountRoot, using a sibling
// temp directory for its local scratch copies.
func catalogAt(t *testing.T, mountRoot string) (*catalog.DB, error) {
	t.Helper()
	return catalog.Open(mountRoot, t.TempDir())
}

// objectStoreAt opens an objectstore.Store rooted at mountRoot.
func objectStoreAt(t *testing.T, mountRoot string) *objectstore.Store {
	t.Helper()
	store, err := objectstore.New(mountRoot)
	if err != nil {
		t.Fatalf("opening object store: %v", err)
	}
	return store
}

// bumpMTime sets relPath's modification time strictly after now, so
// it reads as a local edit newer than whatever the catalog already
// recorded for that path.
func bumpMTime(t *testing.T, root, relPath string) {
	t.Helper()
	full := filepath.Join(root, relPath)
	future := time.Now().UTC().Add(time.Hour)
	if err := os.Chtimes(full, future, future); err != nil {
		t.Fatalf("chtimes: %v", err)
	}
}
