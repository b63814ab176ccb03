package activity

import (
	"context"
	"sync"
	"time"

	"menagent/pkg/logger"
	"menagent/pkg/models"
)

// WindowInfo describes the current foreground window.
type WindowInfo struct {
	App   string
	Title string
}

// WindowProvider reports the current foreground window. Platform shims in
// internal/capture implement it; tests substitute fakes.
type WindowProvider interface {
	ActiveWindow() (WindowInfo, error)
}

// AppLogSender delivers one app-usage entry to the server.
type AppLogSender interface {
	SendAppLog(ctx context.Context, entry models.AppUsageLogEntry) error
}

type currentApp struct {
	name  string
	title string
	since time.Time
}

// Tracker observes foreground application changes and buffers usage entries
// until the next flush. When the foreground app changes, the finished
// stretch is appended to the buffer; title changes within the same app only
// update the tracked title.
type Tracker struct {
	provider WindowProvider
	sender   AppLogSender

	mu      sync.Mutex
	current *currentApp
	buffer  []models.AppUsageLogEntry

	now func() time.Time
}

// NewTracker creates a tracker polling provider and flushing to sender.
func NewTracker(provider WindowProvider, sender AppLogSender) *Tracker {
	return &Tracker{
		provider: provider,
		sender:   sender,
		now:      time.Now,
	}
}

// Track samples the foreground window once. Called on every window-tracking
// tick by the scheduler.
func (t *Tracker) Track() {
	window, err := t.provider.ActiveWindow()
	if err != nil {
		logger.Debug("active window lookup failed: %v", err)
		return
	}
	if window.App == "" {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	switch {
	case t.current == nil:
		t.current = &currentApp{name: window.App, title: window.Title, since: t.now()}
	case t.current.name != window.App:
		// App changed: close out the previous stretch.
		now := t.now()
		t.buffer = append(t.buffer, models.AppUsageLogEntry{
			AppName:         t.current.name,
			WindowTitle:     t.current.title,
			StartedAt:       t.current.since,
			DurationSeconds: int(now.Sub(t.current.since).Seconds()),
		})
		t.current = &currentApp{name: window.App, title: window.Title, since: now}
	default:
		t.current.title = window.Title
	}
}

// Flush drains the buffered entries and sends them one by one. The drain is
// all-or-nothing: entries queued after Flush takes the batch belong to the
// next cycle. A failed send is logged and the entry is dropped, not retried.
func (t *Tracker) Flush(ctx context.Context) {
	t.mu.Lock()
	entries := t.buffer
	t.buffer = nil
	t.mu.Unlock()

	for _, entry := range entries {
		if err := t.sender.SendAppLog(ctx, entry); err != nil {
			logger.Error("app log flush failed for %s: %v", entry.AppName, err)
		}
	}
}

// Pending returns the number of buffered entries. Used by the status server.
func (t *Tracker) Pending() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.buffer)
}
