//go:build windows
// +build windows

package capture

import (
	"fmt"
	"path/filepath"
	"syscall"
	"unsafe"

	"menagent/internal/activity"
)

var (
	user32                        = syscall.NewLazyDLL("user32.dll")
	kernel32                      = syscall.NewLazyDLL("kernel32.dll")
	procGetForegroundWindow       = user32.NewProc("GetForegroundWindow")
	procGetWindowTextW            = user32.NewProc("GetWindowTextW")
	procGetWindowThreadProcessId  = user32.NewProc("GetWindowThreadProcessId")
	procQueryFullProcessImageName = kernel32.NewProc("QueryFullProcessImageNameW")
)

const processQueryLimitedInformation = 0x1000

// WindowWatcher reports the current foreground window via the Win32 API.
type WindowWatcher struct{}

// NewWindowWatcher creates the platform active-window provider.
func NewWindowWatcher() *WindowWatcher {
	return &WindowWatcher{}
}

// ActiveWindow returns the foreground application name and window title.
func (w *WindowWatcher) ActiveWindow() (activity.WindowInfo, error) {
	hwnd, _, _ := procGetForegroundWindow.Call()
	if hwnd == 0 {
		// No foreground window, likely a locked screen.
		return activity.WindowInfo{}, fmt.Errorf("no foreground window")
	}

	title := make([]uint16, 512)
	procGetWindowTextW.Call(hwnd, uintptr(unsafe.Pointer(&title[0])), uintptr(len(title)))

	var pid uint32
	procGetWindowThreadProcessId.Call(hwnd, uintptr(unsafe.Pointer(&pid)))

	appName := "Unknown"
	if pid != 0 {
		if name, err := processImageName(pid); err == nil {
			appName = name
		}
	}

	return activity.WindowInfo{
		App:   appName,
		Title: syscall.UTF16ToString(title),
	}, nil
}

// processImageName resolves the executable base name for a process id.
func processImageName(pid uint32) (string, error) {
	handle, err := syscall.OpenProcess(processQueryLimitedInformation, false, pid)
	if err != nil {
		return "", fmt.Errorf("failed to open process %d: %w", pid, err)
	}
	defer syscall.CloseHandle(handle)

	buf := make([]uint16, syscall.MAX_PATH)
	size := uint32(len(buf))
	ret, _, err := procQueryFullProcessImageName.Call(
		uintptr(handle),
		0,
		uintptr(unsafe.Pointer(&buf[0])),
		uintptr(unsafe.Pointer(&size)),
	)
	if ret == 0 {
		return "", fmt.Errorf("failed to query process image name: %w", err)
	}

	return filepath.Base(syscall.UTF16ToString(buf[:size])), nil
}

var _ activity.WindowProvider = (*WindowWatcher)(nil)
