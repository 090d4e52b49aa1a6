// Package scan walks a local project tree, applying ignore rules and
// a persistent hash cache, to produce the manifest diff operates over.
package scan

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"netsync/internal/hashing"
	"netsync/internal/ignoremask"
	"netsync/internal/manifest"
	"netsync/internal/syncengine"
)

// Scanner is the default filesystem-backed syncengine.Scanner.
type Scanner struct {
	Concurrency int64
}

// New constructs a Scanner with the given hashing concurrency bound.
// concurrency <= 0 defaults to 10, matching spec.
func New(concurrency int64) *Scanner {
	if concurrency <= 0 {
		concurrency = 10
	}
	return &Scanner{Concurrency: concurrency}
}

func hasUprojectMarker(root string) bool {
	entries, err := os.ReadDir(root)
	if err != nil {
		return false
	}
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".uproject") {
			return true
		}
	}
	return false
}

func readSyncIgnore(root string) []string {
	data, err := os.ReadFile(filepath.Join(root, ".syncignore"))
	if err != nil {
		return nil
	}
	return strings.Split(string(data), "\n")
}

func buildMatcher(root string) *ignoremask.Matcher {
	patterns := append([]string{}, ignoremask.DefaultPatterns()...)
	if hasUprojectMarker(root) {
		patterns = append(patterns, ignoremask.UnrealEnginePatterns()...)
	}
	patterns = append(patterns, readSyncIgnore(root)...)
	return ignoremask.New(patterns)
}

// Scan implements syncengine.Scanner.
func (s *Scanner) Scan(localPath string, progress syncengine.ScanProgressFunc) (syncengine.Manifest, syncengine.ScanStats, error) {
	matcher := buildMatcher(localPath)
	oldCache := loadCache(localPath)
	newCache := make(map[string]cacheEntry)

	result := syncengine.Manifest{}
	var mu sync.Mutex
	var totalSize int64
	var fileCount, dirCount int
	var seen int

	sem := semaphore.NewWeighted(s.Concurrency)
	g, ctx := errgroup.WithContext(context.Background())

	walkErr := filepath.WalkDir(localPath, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return fmt.Errorf("scan: walk %s: %w", path, err)
		}
		rel, err := filepath.Rel(localPath, path)
		if err != nil {
			return fmt.Errorf("scan: relpath: %w", err)
		}
		if rel == "." {
			return nil
		}
		rel = filepath.ToSlash(rel)
		isDir := d.IsDir()

		if matcher.MatchDir(rel, isDir) {
			if isDir {
				return fs.SkipDir
			}
			return nil
		}
		if isDir {
			dirCount++
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return fmt.Errorf("scan: stat %s: %w", path, err)
		}
		if !info.Mode().IsRegular() {
			return nil
		}

		fileCount++
		mtime := info.ModTime().UnixNano()
		size := info.Size()
		pathCopy, relCopy := path, rel
		cached, hit := oldCache[relCopy]

		if err := sem.Acquire(ctx, 1); err != nil {
			return err
		}
		g.Go(func() error {
			defer sem.Release(1)

			var hash string
			if hit && cached.MTime == mtime && cached.Size == size {
				hash = cached.Hash
			} else {
				h, err := hashFile(pathCopy)
				if err != nil {
					return fmt.Errorf("scan: hash %s: %w", relCopy, err)
				}
				hash = h
			}

			mu.Lock()
			result[relCopy] = manifest.Entry{Path: relCopy, Hash: hash, Size: size, ModTime: mtime}
			newCache[relCopy] = cacheEntry{MTime: mtime, Size: size, Hash: hash}
			totalSize += size
			seen++
			n, b := seen, totalSize
			mu.Unlock()

			if progress != nil {
				func() {
					defer func() { recover() }()
					progress(n, b, relCopy)
				}()
			}
			return nil
		})
		return nil
	})

	groupErr := g.Wait()
	if walkErr != nil {
		return nil, syncengine.ScanStats{}, walkErr
	}
	if groupErr != nil {
		return nil, syncengine.ScanStats{}, groupErr
	}

	saveCache(localPath, newCache)

	return result, syncengine.ScanStats{
		TotalSize: totalSize,
		FileCount: fileCount,
		DirCount:  dirCount,
		ScannedAt: time.Now().UTC(),
	}, nil
}

func hashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	return hashing.ContentHash(f)
}

var _ syncengine.Scanner = (*Scanner)(nil)
