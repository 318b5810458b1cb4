package tle

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"
)

// ErrCacheMiss is returned by Cache.Latest when nothing is stored for a source.
var ErrCacheMiss = errors.New("tle: cache miss")

// Cache keeps the most recent raw download per source.
type Cache interface {
	Put(ctx context.Context, source string, data []byte, ts time.Time) error
	Latest(ctx context.Context, source string) ([]byte, time.Time, error)
}

// sourceKey maps a source URL to a short filesystem/key-safe token.
func sourceKey(source string) string {
	sum := sha256.Sum256([]byte(source))
	return hex.EncodeToString(sum[:8])
}

// DiskCache stores downloads as timestamped files, one directory per source.
type DiskCache struct {
	dir      string
	maxFiles int
}

// NewDiskCache creates a DiskCache rooted at dir that keeps at most maxFiles
// per source.
func NewDiskCache(dir string, maxFiles int) *DiskCache {
	if maxFiles <= 0 {
		maxFiles = 5
	}
	return &DiskCache{
		dir:      dir,
		maxFiles: maxFiles,
	}
}

// Put saves data to a timestamped file and prunes old files beyond maxFiles.
func (c *DiskCache) Put(_ context.Context, source string, data []byte, ts time.Time) error {
	dir := filepath.Join(c.dir, sourceKey(source))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating cache dir: %w", err)
	}

	path := filepath.Join(dir, fmt.Sprintf("tle_%d.txt", ts.Unix()))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing cache file: %w", err)
	}

	return c.prune(dir)
}

// Latest reads the newest file for source.
func (c *DiskCache) Latest(_ context.Context, source string) ([]byte, time.Time, error) {
	dir := filepath.Join(c.dir, sourceKey(source))
	files, err := listFiles(dir)
	if err != nil {
		return nil, time.Time{}, err
	}
	if len(files) == 0 {
		return nil, time.Time{}, ErrCacheMiss
	}

	// Sorted oldest first.
	latest := files[len(files)-1]
	data, err := os.ReadFile(filepath.Join(dir, latest.name))
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("reading cache file: %w", err)
	}
	return data, latest.ts, nil
}

type cacheFile struct {
	name string
	ts   time.Time
}

func listFiles(dir string) ([]cacheFile, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("listing cache dir: %w", err)
	}

	var files []cacheFile
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, "tle_") || !strings.HasSuffix(name, ".txt") {
			continue
		}
		unix, err := strconv.ParseInt(strings.TrimSuffix(strings.TrimPrefix(name, "tle_"), ".txt"), 10, 64)
		if err != nil {
			continue
		}
		files = append(files, cacheFile{name: name, ts: time.Unix(unix, 0)})
	}

	sort.Slice(files, func(i, j int) bool {
		return files[i].ts.Before(files[j].ts)
	})
	return files, nil
}

func (c *DiskCache) prune(dir string) error {
	files, err := listFiles(dir)
	if err != nil {
		return err
	}
	if len(files) <= c.maxFiles {
		return nil
	}

	for _, f := range files[:len(files)-c.maxFiles] {
		if err := os.Remove(filepath.Join(dir, f.name)); err != nil {
			return fmt.Errorf("pruning cache file %s: %w", f.name, err)
		}
	}
	return nil
}
