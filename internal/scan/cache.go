package scan

import (
	"encoding/json"
	"os"
	"path/filepath"
)

// cacheEntry is one row of the persistent hash cache. Reused only
// when both mtime and size still match the current stat.
type cacheEntry struct {
	MTime int64  `json:"mtime"`
	Size  int64  `json:"size"`
	Hash  string `json:"hash"`
}

func cachePath(localPath string) string {
	return filepath.Join(localPath, ".sync", "cache.json")
}

// loadCache reads the persistent hash cache. Any I/O or decode error
// is non-fatal — the scan simply proceeds without acceleration.
func loadCache(localPath string) map[string]cacheEntry {
	data, err := os.ReadFile(cachePath(localPath))
	if err != nil {
		return map[string]cacheEntry{}
	}
	var m map[string]cacheEntry
	if err := json.Unmarshal(data, &m); err != nil {
		return map[string]cacheEntry{}
	}
	return m
}

// saveCache replaces the cache file with exactly the entries observed
// in this scan, implicitly pruning paths that no longer exist.
func saveCache(localPath string, entries map[string]cacheEntry) {
	dir := filepath.Join(localPath, ".sync")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return
	}
	data, err := json.Marshal(entries)
	if err != nil {
		return
	}
	tmp, err := os.CreateTemp(dir, "cache-*.json.tmp")
	if err != nil {
		return
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return
	}
	if err := os.Rename(tmpPath, cachePath(localPath)); err != nil {
		os.Remove(tmpPath)
	}
}
