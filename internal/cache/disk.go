package cache

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

const diskExt = ".html"

// DiskCache stores one file per key under a directory. The entry age is the
// file modification time.
type DiskCache struct {
	dir string
	now func() time.Time
}

// NewDiskCache returns a cache rooted at dir, creating it if needed.
func NewDiskCache(dir string) (*DiskCache, error) {
	if dir == "" {
		return nil, fmt.Errorf("cache directory is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create cache directory: %w", err)
	}
	return &DiskCache{dir: dir, now: time.Now}, nil
}

// SetClock replaces the clock used for entry ages.
func (dc *DiskCache) SetClock(now func() time.Time) {
	dc.now = now
}

// Dir returns the cache directory.
func (dc *DiskCache) Dir() string { return dc.dir }

func (dc *DiskCache) path(key string) string {
	return filepath.Join(dc.dir, key+diskExt)
}

func (dc *DiskCache) Get(key string, maxAge time.Duration) ([]byte, bool, error) {
	p := dc.path(key)
	info, err := os.Stat(p)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("stat cache entry: %w", err)
	}

	age := dc.now().Sub(info.ModTime())
	if age > maxAge {
		log.Debug().Str("key", key).Dur("age", age).Msg("Cache entry stale")
		return nil, false, nil
	}

	body, err := os.ReadFile(p)
	if err != nil {
		return nil, false, fmt.Errorf("read cache entry: %w", err)
	}
	log.Debug().Str("key", key).Dur("age", age).Msg("Disk cache hit")
	return body, true, nil
}

func (dc *DiskCache) Set(key string, body []byte) error {
	if err := os.MkdirAll(dc.dir, 0o755); err != nil {
		return fmt.Errorf("create cache directory: %w", err)
	}
	if err := os.WriteFile(dc.path(key), body, 0o644); err != nil {
		return fmt.Errorf("write cache entry: %w", err)
	}
	return nil
}

func (dc *DiskCache) Delete(key string) error {
	err := os.Remove(dc.path(key))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

// Clear removes every cached page file, leaving other files alone.
func (dc *DiskCache) Clear() error {
	entries, err := os.ReadDir(dc.dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	removed := 0
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), diskExt) {
			continue
		}
		if err := os.Remove(filepath.Join(dc.dir, e.Name())); err != nil {
			return err
		}
		removed++
	}
	log.Debug().Int("removed", removed).Str("dir", dc.dir).Msg("Disk cache cleared")
	return nil
}

func (dc *DiskCache) Close() {}
