//go:build !windows
// +build !windows

package singleton

import (
	"fmt"
	"os"
	"path/filepath"
	"syscall"
)

// Handle holds the lock file backing the single-instance guard.
type Handle struct {
	file *os.File
}

// Close releases the lock and removes the file.
func (h *Handle) Close() error {
	if h.file == nil {
		return nil
	}
	path := h.file.Name()
	err := h.file.Close()
	os.Remove(path)
	return err
}

// EnsureSingleInstance takes an exclusive flock on a lock file and fails
// when another process already holds it. The returned handle must be
// closed on exit.
func EnsureSingleInstance(appName string) (*Handle, error) {
	path := filepath.Join(os.TempDir(), appName+".lock")

	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open lock file: %w", err)
	}

	if err := syscall.Flock(int(f.Fd()), syscall.LOCK_EX|syscall.LOCK_NB); err != nil {
		f.Close()
		return nil, fmt.Errorf("%s is already running", appName)
	}

	return &Handle{file: f}, nil
}
