// SPDX-License-Identifier: MPL-2.0

package deps

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/bmatcuk/doublestar/v4"
)

// CacheEntry describes one directory of the cache root.
type CacheEntry struct {
	Name   string
	Path   string
	Status EntryStatus
}

// ListEntries returns the cache entries of cacheDir whose name matches the
// glob pattern (doublestar syntax; empty matches all), sorted by name. A
// missing cache root has no entries.
func ListEntries(ctx context.Context, vcs VCS, cacheDir, pattern string) ([]CacheEntry, error) {
	if pattern == "" {
		pattern = "*"
	}
	if !doublestar.ValidatePattern(pattern) {
		return nil, fmt.Errorf("invalid pattern %q: %w", pattern, doublestar.ErrBadPattern)
	}

	dirEntries, err := os.ReadDir(cacheDir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read cache directory: %w", err)
	}

	var entries []CacheEntry
	for _, de := range dirEntries {
		if !de.IsDir() {
			continue
		}
		if ok, _ := doublestar.Match(pattern, de.Name()); !ok {
			continue
		}
		place := filepath.Join(cacheDir, de.Name())
		status, err := readEntryStatus(ctx, vcs, place, func(string, ...any) {})
		if err != nil {
			return nil, err
		}
		entries = append(entries, CacheEntry{Name: de.Name(), Path: place, Status: status})
	}
	return entries, nil
}
