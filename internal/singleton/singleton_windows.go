package singleton

import (
	"fmt"
	"syscall"
	"unsafe"
)

var (
	kernel32        = syscall.NewLazyDLL("kernel32.dll")
	procCreateMutex = kernel32.NewProc("CreateMutexW")
)

// Handle holds the named mutex backing the single-instance guard.
type Handle struct {
	handle syscall.Handle
}

// Close releases the mutex.
func (h *Handle) Close() error {
	if h.handle != 0 {
		return syscall.CloseHandle(h.handle)
	}
	return nil
}

// EnsureSingleInstance creates a global named mutex and fails when another
// process already holds it. The returned handle must be closed on exit.
func EnsureSingleInstance(appName string) (*Handle, error) {
	mutexName := fmt.Sprintf("Global\\%s_SingleInstance", appName)
	namePtr, err := syscall.UTF16PtrFromString(mutexName)
	if err != nil {
		return nil, err
	}

	ret, _, callErr := procCreateMutex.Call(
		0,
		0,
		uintptr(unsafe.Pointer(namePtr)),
	)
	if ret == 0 {
		return nil, fmt.Errorf("failed to create mutex: %w", callErr)
	}

	if callErr == syscall.ERROR_ALREADY_EXISTS {
		syscall.CloseHandle(syscall.Handle(ret))
		return nil, fmt.Errorf("%s is already running", appName)
	}

	return &Handle{handle: syscall.Handle(ret)}, nil
}
