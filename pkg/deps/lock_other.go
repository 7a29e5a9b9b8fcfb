// SPDX-License-Identifier: MPL-2.0

//go:build !unix

package deps

import (
	"fmt"
	"os"
)

// LockFileName is the lock file created in the cache root.
const LockFileName = ".epics-ci.lock"

// CacheLock is a no-op on platforms without flock; a single writer per
// cache root remains a precondition there.
type CacheLock struct{}

// AcquireCacheLock only makes sure cacheDir exists.
func AcquireCacheLock(cacheDir string) (*CacheLock, error) {
	if err := os.MkdirAll(cacheDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}
	return &CacheLock{}, nil
}

// Release is a no-op.
func (l *CacheLock) Release() error { return nil }
