package engineapp

import (
	"os"
	"path/filepath"
	"testing"

	"netsync/internal/config"
)

func newTestApp(t *testing.T, operation string) *App {
	t.Helper()
	baseDir := t.TempDir()
	nasPath := t.TempDir()
	cfg := config.NewConfig("peer-a", nasPath, baseDir)
	configPath := filepath.Join(baseDir, "config.toml")
	if err := config.Init(configPath, cfg); err != nil {
		t.Fatalf("config.Init: %v", err)
	}

	a, err := New(cfg, configPath, baseDir, operation, "")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { a.Close() })
	return a
}

func TestNew_RequiresNASPath(t *testing.T) {
	baseDir := t.TempDir()
	cfg := config.NewConfig("peer-a", "", baseDir)
	if _, err := New(cfg, filepath.Join(baseDir, "config.toml"), baseDir, "push", ""); err == nil {
		t.Fatal("expected New to fail when nas_path is unset")
	}
}

func TestCreateProject_PersistsLocalPathInConfig(t *testing.T) {
	a := newTestApp(t, "project create")
	localPath := t.TempDir()

	proj, err := a.CreateProject("demo", localPath)
	if err != nil {
		t.Fatalf("CreateProject: %v", err)
	}

	reloaded, err := config.ReadFromFile(a.configPath)
	if err != nil {
		t.Fatalf("ReadFromFile: %v", err)
	}
	pc, ok := reloaded.Projects[proj.ID]
	if !ok {
		t.Fatalf("expected project %s to be persisted in config", proj.ID)
	}
	if pc.LocalPath != localPath {
		t.Errorf("LocalPath = %q, want %q", pc.LocalPath, localPath)
	}
}

func TestListProjects_MarksTrackedVsUntracked(t *testing.T) {
	a := newTestApp(t, "project list")

	tracked, err := a.CreateProject("tracked", t.TempDir())
	if err != nil {
		t.Fatalf("CreateProject: %v", err)
	}
	// A project created directly in the catalog, bypassing this peer's
	// config, simulates one created by another peer.
	untracked, err := a.Engine.Catalog.CreateProject("untracked", a.Engine.Clock.Now())
	if err != nil {
		t.Fatalf("CreateProject (direct): %v", err)
	}

	views, err := a.ListProjects()
	if err != nil {
		t.Fatalf("ListProjects: %v", err)
	}

	var sawTracked, sawUntracked bool
	for _, v := range views {
		switch v.ID {
		case tracked.ID:
			sawTracked = true
			if !v.Tracked {
				t.Error("expected the locally-created project to be marked tracked")
			}
		case untracked.ID:
			sawUntracked = true
			if v.Tracked {
				t.Error("expected the other peer's project to be marked untracked")
			}
		}
	}
	if !sawTracked || !sawUntracked {
		t.Fatalf("ListProjects() missing expected entries: %+v", views)
	}
}

func TestRemoveProject_ForgetsLocalPath(t *testing.T) {
	a := newTestApp(t, "project rm")
	proj, err := a.CreateProject("demo", t.TempDir())
	if err != nil {
		t.Fatalf("CreateProject: %v", err)
	}

	if err := a.RemoveProject(proj.ID); err != nil {
		t.Fatalf("RemoveProject: %v", err)
	}

	reloaded, err := config.ReadFromFile(a.configPath)
	if err != nil {
		t.Fatalf("ReadFromFile: %v", err)
	}
	if _, ok := reloaded.Projects[proj.ID]; ok {
		t.Error("expected the project's local path to be forgotten after removal")
	}
}

func TestPush_UnconfiguredProjectReturnsErrorResult(t *testing.T) {
	a := newTestApp(t, "push")
	res := a.Push("not-configured", "msg", "", nil)
	if res.Success {
		t.Fatal("expected Push to fail for an unconfigured project")
	}
	if res.Error == "" {
		t.Error("expected a populated error message")
	}
}

func TestPush_RecordsOperationInHistory(t *testing.T) {
	a := newTestApp(t, "push")
	localPath := t.TempDir()
	if err := writeFile(localPath, "a.txt", "hello"); err != nil {
		t.Fatalf("writeFile: %v", err)
	}

	proj, err := a.CreateProject("demo", localPath)
	if err != nil {
		t.Fatalf("CreateProject: %v", err)
	}

	res := a.Push(proj.ID, "first push", "", nil)
	if !res.Success {
		t.Fatalf("Push failed: %+v", res)
	}

	ops, err := a.History(10)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(ops) != 1 {
		t.Fatalf("History() = %d ops, want 1", len(ops))
	}
	if ops[0].Status != "success" {
		t.Errorf("Status = %q, want success", ops[0].Status)
	}
}

func TestFileHistory_TracksPresenceAcrossSnapshots(t *testing.T) {
	a := newTestApp(t, "push")
	localPath := t.TempDir()
	if err := writeFile(localPath, "a.txt", "v1"); err != nil {
		t.Fatalf("writeFile: %v", err)
	}

	proj, err := a.CreateProject("demo", localPath)
	if err != nil {
		t.Fatalf("CreateProject: %v", err)
	}
	if res := a.Push(proj.ID, "v1", "", nil); !res.Success {
		t.Fatalf("first Push failed: %+v", res)
	}

	hist, err := a.FileHistory(proj.ID, "a.txt")
	if err != nil {
		t.Fatalf("FileHistory: %v", err)
	}
	if len(hist) != 1 || !hist[0].Present {
		t.Fatalf("FileHistory() = %+v, want one present entry", hist)
	}
}

func TestLockStatus_ReportsNotFoundWhenUnlocked(t *testing.T) {
	a := newTestApp(t, "lock status")
	if _, err := a.LockStatus(); err == nil {
		t.Fatal("expected LockStatus to report an error when no lock is held")
	}
}

func writeFile(root, relPath, content string) error {
	return os.WriteFile(filepath.Join(root, relPath), []byte(content), 0o644)
}
