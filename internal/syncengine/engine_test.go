package syncengine_test

import (
	"os"
	"path/filepath"
	"testing"

	"netsync/internal/exclusionlock"
	"netsync/internal/scan"
	"netsync/internal/syncengine"
	"netsync/internal/synctestutil"
	"netsync/internal/transfer"
)

// newTestEngine wires a fresh Engine around a fresh catalog + object
// store, both rooted at mountRoot, which is shared by every peer in a
// test (mirroring how real peers share one network mount).
func newTestEngine(t *testing.T, mountRoot string) *syncengine.Engine {
	t.Helper()

	cat, err := catalogAt(t, mountRoot)
	if err != nil {
		t.Fatalf("opening catalog: %v", err)
	}
	objs := objectStoreAt(t, mountRoot)
	lock := exclusionlock.New(mountRoot, "test-machine")
	scanner := scan.New(4)
	xfer := transfer.New(objs, cat, 4)

	return syncengine.NewEngine(cat, objs, lock, scanner, xfer, synctestutil.FixedClock(), synctestutil.NewStubIDGenerator(), nil)
}

func writeFile(t *testing.T, root, relPath, content string) {
	t.Helper()
	full := filepath.Join(root, relPath)
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(full, []byte(content), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}
}

func readFile(t *testing.T, root, relPath string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(root, relPath))
	if err != nil {
		t.Fatalf("read file: %v", err)
	}
	return string(data)
}

func TestEngine_Push_InitialPush(t *testing.T) {
	mountRoot := t.TempDir()
	engine := newTestEngine(t, mountRoot)

	proj, err := engine.Catalog.CreateProject("demo", engine.Clock.Now())
	if err != nil {
		t.Fatalf("CreateProject: %v", err)
	}

	localPath := t.TempDir()
	writeFile(t, localPath, "a.txt", "hello")
	writeFile(t, localPath, "sub/b.txt", "world")

	res := engine.Push(proj.ID, localPath, "peer-a", "initial", "", nil)
	if !res.Success {
		t.Fatalf("Push failed: %s", res.Error)
	}
	if res.FilesAdded != 2 {
		t.Errorf("FilesAdded = %d, want 2", res.FilesAdded)
	}
	if res.SnapshotID == "" {
		t.Error("expected a snapshot id")
	}

	snap, err := engine.Catalog.FindSnapshot(res.SnapshotID)
	if err != nil {
		t.Fatalf("FindSnapshot: %v", err)
	}
	if snap.FileCount != 2 {
		t.Errorf("snapshot FileCount = %d, want 2", snap.FileCount)
	}
}

func TestEngine_Push_Idempotent(t *testing.T) {
	mountRoot := t.TempDir()
	engine := newTestEngine(t, mountRoot)

	proj, _ := engine.Catalog.CreateProject("demo", engine.Clock.Now())
	localPath := t.TempDir()
	writeFile(t, localPath, "a.txt", "hello")

	first := engine.Push(proj.ID, localPath, "peer-a", "v1", "", nil)
	if !first.Success {
		t.Fatalf("first push failed: %s", first.Error)
	}

	second := engine.Push(proj.ID, localPath, "peer-a", "v2 no changes", "", nil)
	if !second.Success {
		t.Fatalf("second push failed: %s", second.Error)
	}
	if second.FilesAdded != 0 || second.FilesModified != 0 || second.FilesDeleted != 0 {
		t.Errorf("second push should see no changes, got added=%d modified=%d deleted=%d",
			second.FilesAdded, second.FilesModified, second.FilesDeleted)
	}
}

func TestEngine_Pull_ToEmptyPeer(t *testing.T) {
	mountRoot := t.TempDir()
	engine := newTestEngine(t, mountRoot)

	proj, _ := engine.Catalog.CreateProject("demo", engine.Clock.Now())

	peerA := t.TempDir()
	writeFile(t, peerA, "a.txt", "hello")
	writeFile(t, peerA, "sub/b.txt", "world")
	if res := engine.Push(proj.ID, peerA, "peer-a", "initial", "", nil); !res.Success {
		t.Fatalf("push failed: %s", res.Error)
	}

	peerB := t.TempDir()
	res := engine.Pull(proj.ID, peerB, "peer-b", "", nil, nil, nil)
	if !res.Success {
		t.Fatalf("pull failed: %s", res.Error)
	}
	if res.FilesDownloaded != 2 {
		t.Errorf("FilesDownloaded = %d, want 2", res.FilesDownloaded)
	}
	if got := readFile(t, peerB, "a.txt"); got != "hello" {
		t.Errorf("a.txt = %q, want %q", got, "hello")
	}
	if got := readFile(t, peerB, "sub/b.txt"); got != "world" {
		t.Errorf("sub/b.txt = %q, want %q", got, "world")
	}
}

func TestEngine_Pull_ConflictRequiresResolution(t *testing.T) {
	mountRoot := t.TempDir()
	engine := newTestEngine(t, mountRoot)

	proj, _ := engine.Catalog.CreateProject("demo", engine.Clock.Now())

	peerA := t.TempDir()
	writeFile(t, peerA, "shared.txt", "from peer a")
	engine.Push(proj.ID, peerA, "peer-a", "v1", "", nil)

	peerB := t.TempDir()
	engine.Pull(proj.ID, peerB, "peer-b", "", nil, nil, nil)

	// Peer A updates the file and pushes again.
	writeFile(t, peerA, "shared.txt", "from peer a, v2")
	engine.Push(proj.ID, peerA, "peer-a", "v2", "", nil)

	// Peer B independently modifies its local copy with a newer mtime,
	// producing an unresolved conflict when it tries to pull.
	writeFile(t, peerB, "shared.txt", "from peer b, local edit")
	bumpMTime(t, peerB, "shared.txt")

	res := engine.Pull(proj.ID, peerB, "peer-b", "", nil, nil, nil)
	if res.Success {
		t.Fatal("expected pull to report conflicts, not succeed")
	}
	if len(res.Conflicts) != 1 || res.Conflicts[0].Path != "shared.txt" {
		t.Fatalf("Conflicts = %+v, want one conflict on shared.txt", res.Conflicts)
	}

	// Resolve with keep_both: the remote version lands alongside a
	// renamed local copy, and a second pull with no unresolved paths
	// left succeeds.
	res = engine.Pull(proj.ID, peerB, "peer-b", "",
		map[string]syncengine.Resolution{"shared.txt": syncengine.KeepBoth}, nil, nil)
	if !res.Success {
		t.Fatalf("resolved pull failed: %s", res.Error)
	}
	if got := readFile(t, peerB, "shared.txt"); got != "from peer a, v2" {
		t.Errorf("shared.txt = %q, want remote content", got)
	}
	if got := readFile(t, peerB, "shared.local.txt"); got != "from peer b, local edit" {
		t.Errorf("shared.local.txt = %q, want the preserved local edit", got)
	}
}

func TestEngine_Pull_SelectiveInclude(t *testing.T) {
	mountRoot := t.TempDir()
	engine := newTestEngine(t, mountRoot)

	proj, _ := engine.Catalog.CreateProject("demo", engine.Clock.Now())

	peerA := t.TempDir()
	writeFile(t, peerA, "keep/a.txt", "a")
	writeFile(t, peerA, "skip/b.txt", "b")
	engine.Push(proj.ID, peerA, "peer-a", "v1", "", nil)

	peerB := t.TempDir()
	res := engine.Pull(proj.ID, peerB, "peer-b", "", nil, nil, []string{"keep/**"})
	if !res.Success {
		t.Fatalf("pull failed: %s", res.Error)
	}
	if res.FilesDownloaded != 1 {
		t.Errorf("FilesDownloaded = %d, want 1", res.FilesDownloaded)
	}
	if _, err := os.Stat(filepath.Join(peerB, "keep/a.txt")); err != nil {
		t.Errorf("keep/a.txt should have been downloaded: %v", err)
	}
	if _, err := os.Stat(filepath.Join(peerB, "skip/b.txt")); err == nil {
		t.Error("skip/b.txt should not have been downloaded")
	}
}

func TestEngine_Gc_RemovesUnreferencedBlobs(t *testing.T) {
	mountRoot := t.TempDir()
	engine := newTestEngine(t, mountRoot)

	proj, _ := engine.Catalog.CreateProject("demo", engine.Clock.Now())

	peerA := t.TempDir()
	writeFile(t, peerA, "keepme.txt", "keep")
	writeFile(t, peerA, "dropme.txt", "drop")
	first := engine.Push(proj.ID, peerA, "peer-a", "v1", "", nil)
	if !first.Success {
		t.Fatalf("push failed: %s", first.Error)
	}

	os.Remove(filepath.Join(peerA, "dropme.txt"))
	second := engine.Push(proj.ID, peerA, "peer-a", "v2", "", nil)
	if !second.Success {
		t.Fatalf("second push failed: %s", second.Error)
	}

	// Push never deletes history on its own; dropme.txt's blob is
	// still referenced by the first snapshot until that snapshot
	// itself is removed.
	if err := engine.Catalog.DeleteSnapshot(first.SnapshotID); err != nil {
		t.Fatalf("DeleteSnapshot: %v", err)
	}

	gcRes := engine.Gc("peer-a")
	if !gcRes.Success {
		t.Fatalf("Gc failed: %s", gcRes.Error)
	}
	if gcRes.BlobsRemoved != 1 {
		t.Errorf("BlobsRemoved = %d, want 1", gcRes.BlobsRemoved)
	}
}

func TestEngine_Status_IsReadOnly(t *testing.T) {
	mountRoot := t.TempDir()
	engine := newTestEngine(t, mountRoot)

	proj, _ := engine.Catalog.CreateProject("demo", engine.Clock.Now())
	localPath := t.TempDir()
	writeFile(t, localPath, "a.txt", "hello")
	engine.Push(proj.ID, localPath, "peer-a", "v1", "", nil)

	writeFile(t, localPath, "a.txt", "hello, changed")
	writeFile(t, localPath, "new.txt", "brand new")

	status, err := engine.Status(proj.ID, localPath, "")
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if len(status.Modified) != 1 || status.Modified[0] != "a.txt" {
		t.Errorf("Modified = %v, want [a.txt]", status.Modified)
	}
	if len(status.Added) != 1 || status.Added[0] != "new.txt" {
		t.Errorf("Added = %v, want [new.txt]", status.Added)
	}

	// Status must not have written anything to the catalog: a second
	// identical call reports the same thing.
	status2, err := engine.Status(proj.ID, localPath, "")
	if err != nil {
		t.Fatalf("Status (again): %v", err)
	}
	if len(status2.Modified) != len(status.Modified) {
		t.Error("Status is not idempotent")
	}
}
