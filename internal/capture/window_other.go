//go:build !windows
// +build !windows

package capture

import (
	"fmt"

	"menagent/internal/activity"
)

// WindowWatcher is a stub on non-Windows platforms; foreground window
// tracking is not supported there yet.
type WindowWatcher struct{}

// NewWindowWatcher creates the platform active-window provider.
func NewWindowWatcher() *WindowWatcher {
	return &WindowWatcher{}
}

// ActiveWindow always reports that tracking is unavailable.
func (w *WindowWatcher) ActiveWindow() (activity.WindowInfo, error) {
	return activity.WindowInfo{}, fmt.Errorf("active window tracking not supported on this platform")
}

var _ activity.WindowProvider = (*WindowWatcher)(nil)
