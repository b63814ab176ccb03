package activity

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"menagent/pkg/models"
)

type fakeWindowProvider struct {
	mu     sync.Mutex
	window WindowInfo
	err    error
}

func (f *fakeWindowProvider) ActiveWindow() (WindowInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.window, f.err
}

func (f *fakeWindowProvider) set(app, title string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.window = WindowInfo{App: app, Title: title}
}

type fakeAppLogSender struct {
	mu      sync.Mutex
	entries []models.AppUsageLogEntry
	err     error
}

func (f *fakeAppLogSender) SendAppLog(_ context.Context, entry models.AppUsageLogEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.entries = append(f.entries, entry)
	return nil
}

func (f *fakeAppLogSender) sent() []models.AppUsageLogEntry {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.entries
}

func newTestTracker(provider WindowProvider, sender AppLogSender, clock *time.Time) *Tracker {
	tr := NewTracker(provider, sender)
	tr.now = func() time.Time { return *clock }
	return tr
}

func TestTrackerBuffersEntryOnAppChange(t *testing.T) {
	clock := time.Unix(1_700_000_000, 0)
	provider := &fakeWindowProvider{}
	sender := &fakeAppLogSender{}
	tr := newTestTracker(provider, sender, &clock)

	provider.set("editor.exe", "main.go")
	tr.Track()

	clock = clock.Add(45 * time.Second)
	provider.set("browser.exe", "docs")
	tr.Track()

	if tr.Pending() != 1 {
		t.Fatalf("Pending() = %d, want 1", tr.Pending())
	}

	tr.Flush(context.Background())
	entries := sender.sent()
	if len(entries) != 1 {
		t.Fatalf("flushed %d entries, want 1", len(entries))
	}
	entry := entries[0]
	if entry.AppName != "editor.exe" || entry.WindowTitle != "main.go" {
		t.Fatalf("entry = %+v, want editor.exe/main.go", entry)
	}
	if entry.DurationSeconds != 45 {
		t.Fatalf("duration = %d, want 45", entry.DurationSeconds)
	}
}

func TestTrackerTitleChangeStaysInSameStretch(t *testing.T) {
	clock := time.Unix(1_700_000_000, 0)
	provider := &fakeWindowProvider{}
	sender := &fakeAppLogSender{}
	tr := newTestTracker(provider, sender, &clock)

	provider.set("editor.exe", "main.go")
	tr.Track()

	clock = clock.Add(10 * time.Second)
	provider.set("editor.exe", "main_test.go")
	tr.Track()

	if tr.Pending() != 0 {
		t.Fatalf("title change closed the stretch: Pending() = %d", tr.Pending())
	}

	// The updated title is what gets reported when the app finally changes.
	clock = clock.Add(10 * time.Second)
	provider.set("browser.exe", "docs")
	tr.Track()

	tr.Flush(context.Background())
	entries := sender.sent()
	if len(entries) != 1 {
		t.Fatalf("flushed %d entries, want 1", len(entries))
	}
	if entries[0].WindowTitle != "main_test.go" {
		t.Fatalf("title = %q, want the latest title", entries[0].WindowTitle)
	}
	if entries[0].DurationSeconds != 20 {
		t.Fatalf("duration = %d, want 20", entries[0].DurationSeconds)
	}
}

func TestTrackerIgnoresProviderFailures(t *testing.T) {
	clock := time.Unix(1_700_000_000, 0)
	provider := &fakeWindowProvider{err: errors.New("no window")}
	sender := &fakeAppLogSender{}
	tr := newTestTracker(provider, sender, &clock)

	tr.Track()
	tr.Track()

	if tr.Pending() != 0 {
		t.Fatalf("failed samples buffered entries: %d", tr.Pending())
	}
}

func TestTrackerFlushDropsFailedEntries(t *testing.T) {
	clock := time.Unix(1_700_000_000, 0)
	provider := &fakeWindowProvider{}
	sender := &fakeAppLogSender{err: errors.New("server down")}
	tr := newTestTracker(provider, sender, &clock)

	provider.set("editor.exe", "main.go")
	tr.Track()
	clock = clock.Add(5 * time.Second)
	provider.set("browser.exe", "docs")
	tr.Track()

	tr.Flush(context.Background())

	// Entry is gone; recovery does not resend it.
	sender.mu.Lock()
	sender.err = nil
	sender.mu.Unlock()
	tr.Flush(context.Background())
	if len(sender.sent()) != 0 {
		t.Fatalf("dropped entry was retried: %+v", sender.sent())
	}
}
