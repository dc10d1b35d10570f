//go:build windows

package index

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
)

const lockFile = "index.lock"

// Lock represents an exclusive lock on the index.
// Note: Windows locking is not yet implemented. This uses a simple PID-based check.
type Lock struct {
	path string
	file *os.File
}

// AcquireLock attempts to acquire an exclusive lock on the index.
// On Windows, this uses a simple file-based check (not truly atomic).
func AcquireLock(cixDir string) (*Lock, error) {
	if err := os.MkdirAll(cixDir, 0755); err != nil {
		return nil, fmt.Errorf("creating .cix directory: %w", err)
	}

	path := filepath.Join(cixDir, lockFile)

	// Windows has no flock equivalent here; overwrite the PID file and
	// proceed (best effort).
	file, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR|os.O_TRUNC, 0644)
	if err != nil {
		return nil, fmt.Errorf("opening lock file: %w", err)
	}

	if _, err := file.WriteString(strconv.Itoa(os.Getpid())); err != nil {
		file.Close()
		return nil, fmt.Errorf("writing PID to lock file: %w", err)
	}

	return &Lock{path: path, file: file}, nil
}

// Release releases the lock and removes the lock file.
func (l *Lock) Release() {
	if l == nil || l.file == nil {
		return
	}

	l.file.Close()
	os.Remove(l.path)
}
