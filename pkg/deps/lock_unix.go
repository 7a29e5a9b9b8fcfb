// SPDX-License-Identifier: MPL-2.0

//go:build unix

package deps

import (
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/sys/unix"
)

// LockFileName is the lock file created in the cache root.
const LockFileName = ".epics-ci.lock"

// CacheLock holds an exclusive advisory flock on the cache root. The kernel
// releases it when the descriptor closes, including on a crash.
type CacheLock struct {
	file *os.File
}

// AcquireCacheLock blocks until it holds the exclusive lock of cacheDir.
func AcquireCacheLock(cacheDir string) (*CacheLock, error) {
	if err := os.MkdirAll(cacheDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}
	lockPath := filepath.Join(cacheDir, LockFileName)

	f, err := os.OpenFile(lockPath, os.O_CREATE|os.O_RDWR, 0o600)
	if err != nil {
		return nil, fmt.Errorf("open lock file %s: %w", lockPath, err)
	}

	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("flock %s: %w", lockPath, err)
	}

	return &CacheLock{file: f}, nil
}

// Release unlocks and closes the lock file. Further calls are no-ops.
func (l *CacheLock) Release() error {
	if l == nil || l.file == nil {
		return nil
	}
	unlockErr := unix.Flock(int(l.file.Fd()), unix.LOCK_UN)
	closeErr := l.file.Close()
	l.file = nil
	if unlockErr != nil {
		return fmt.Errorf("flock unlock: %w", unlockErr)
	}
	return closeErr
}
