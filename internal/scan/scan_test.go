package scan

import (
	"os"
	"path/filepath"
	"testing"
)

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

func TestScan_ProducesManifestEntries(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.txt", "hello")
	writeFile(t, root, "sub/b.txt", "world")

	s := New(4)
	manifest, stats, err := s.Scan(root, nil)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(manifest) != 2 {
		t.Fatalf("manifest has %d entries, want 2: %+v", len(manifest), manifest)
	}
	if stats.FileCount != 2 {
		t.Errorf("FileCount = %d, want 2", stats.FileCount)
	}
	if _, ok := manifest["a.txt"]; !ok {
		t.Error("expected a.txt in manifest")
	}
	if _, ok := manifest["sub/b.txt"]; !ok {
		t.Error("expected sub/b.txt in manifest (slash-separated, not OS-separated)")
	}
}

func TestScan_SkipsDefaultIgnoredPaths(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "keep.txt", "keep")
	writeFile(t, root, "node_modules/dep/pkg.js", "ignored")
	writeFile(t, root, ".DS_Store", "ignored")

	s := New(4)
	manifest, _, err := s.Scan(root, nil)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(manifest) != 1 {
		t.Fatalf("manifest = %+v, want only keep.txt", manifest)
	}
	if _, ok := manifest["keep.txt"]; !ok {
		t.Error("expected keep.txt in manifest")
	}
}

func TestScan_RespectsSyncIgnoreFile(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, ".syncignore", "*.secret\n")
	writeFile(t, root, "public.txt", "public")
	writeFile(t, root, "private.secret", "private")

	s := New(4)
	manifest, _, err := s.Scan(root, nil)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if _, ok := manifest["private.secret"]; ok {
		t.Error("expected private.secret to be ignored")
	}
	if _, ok := manifest["public.txt"]; !ok {
		t.Error("expected public.txt to be present")
	}
}

func TestScan_HashCacheIsReusedWhenUnchanged(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.txt", "hello")

	s := New(4)
	first, _, err := s.Scan(root, nil)
	if err != nil {
		t.Fatalf("first Scan: %v", err)
	}

	// Replace the cached hash: a second scan that reuses the cache
	// reports this value instead of rehashing the unchanged file.
	cache := loadCache(root)
	entry, ok := cache["a.txt"]
	if !ok {
		t.Fatal("expected a cache entry for a.txt after the first scan")
	}
	entry.Hash = "cachedhash000000"
	cache["a.txt"] = entry
	saveCache(root, cache)

	second, _, err := s.Scan(root, nil)
	if err != nil {
		t.Fatalf("second Scan: %v", err)
	}
	if second["a.txt"].Hash != "cachedhash000000" {
		t.Errorf("second scan hash = %q, want the cached value (first scan computed %q)", second["a.txt"].Hash, first["a.txt"].Hash)
	}
}

func TestScan_DetectsUnrealEngineProject(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "MyGame.uproject", "{}")
	writeFile(t, root, "Saved/log.txt", "noise")
	writeFile(t, root, "Source/Game.cpp", "// code")

	s := New(4)
	manifest, _, err := s.Scan(root, nil)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if _, ok := manifest["Saved/log.txt"]; ok {
		t.Error("expected Saved/ to be ignored once a .uproject marker is present")
	}
	if _, ok := manifest["Source/Game.cpp"]; !ok {
		t.Error("expected Source/Game.cpp to be present")
	}
}
