package synctestutil

import (
	"testing"

	"netsync/internal/catalog"
)

// NewTestCatalog opens a catalog.DB rooted at two fresh temp
// directories (standing in for the shared mount and the peer's local
// scratch directory) and registers cleanup.
func NewTestCatalog(t *testing.T) *catalog.DB {
	t.Helper()

	mountRoot := t.TempDir()
	scratchDir := t.TempDir()

	db, err := catalog.Open(mountRoot, scratchDir)
	if err != nil {
		t.Fatalf("opening test catalog: %v", err)
	}
	t.Cleanup(func() {
		db.Close()
	})
	return db
}
