package activity

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"pgregory.net/rapid"

	"menagent/pkg/models"
)

func TestCountersDrainResetsCounts(t *testing.T) {
	c := NewCounters()
	c.AddKeyboard(12)
	c.AddMouse(7)

	keyboard, mouse := c.drain()
	if keyboard != 12 || mouse != 7 {
		t.Fatalf("drain returned (%d, %d), want (12, 7)", keyboard, mouse)
	}

	keyboard, mouse = c.drain()
	if keyboard != 0 || mouse != 0 {
		t.Fatalf("second drain returned (%d, %d), want (0, 0)", keyboard, mouse)
	}
}

func TestCountersDrainTakesExactlyTheBatch(t *testing.T) {
	// Increments racing with a drain must land in exactly one batch.
	c := NewCounters()

	const writers = 8
	const perWriter = 500

	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perWriter; j++ {
				c.AddKeyboard(1)
				c.AddMouse(1)
			}
		}()
	}

	totalKeyboard, totalMouse := 0, 0
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	for {
		k, m := c.drain()
		totalKeyboard += k
		totalMouse += m
		select {
		case <-done:
			k, m = c.drain()
			totalKeyboard += k
			totalMouse += m
			want := writers * perWriter
			if totalKeyboard != want || totalMouse != want {
				t.Fatalf("drained (%d, %d) events, want (%d, %d)", totalKeyboard, totalMouse, want, want)
			}
			return
		default:
		}
	}
}

func TestIdleSecondsTracksLastInput(t *testing.T) {
	current := time.Unix(1_700_000_000, 0)
	c := NewCounters()
	c.now = func() time.Time { return current }
	c.AddMouse(1)

	current = current.Add(90 * time.Second)
	if got := c.IdleSeconds(); got != 90 {
		t.Fatalf("IdleSeconds() = %v, want 90", got)
	}

	c.AddKeyboard(1)
	if got := c.IdleSeconds(); got != 0 {
		t.Fatalf("IdleSeconds() after input = %v, want 0", got)
	}
}

func TestProductivityScoreBounds(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		total := rapid.IntRange(0, 100_000).Draw(t, "total")
		score := productivityScore(total)

		if score < 0 || score > 100 {
			t.Fatalf("productivityScore(%d) = %d, out of [0, 100]", total, score)
		}
		if total == 0 && score != 0 {
			t.Fatalf("productivityScore(0) = %d, want 0", score)
		}
		if total >= 350 && score != 100 {
			t.Fatalf("productivityScore(%d) = %d, want 100", total, score)
		}
	})
}

type fakeActivitySender struct {
	mu      sync.Mutex
	entries []models.ActivityLog
	err     error
}

func (f *fakeActivitySender) SendActivityLog(_ context.Context, entry models.ActivityLog) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.entries = append(f.entries, entry)
	return nil
}

func (f *fakeActivitySender) sent() []models.ActivityLog {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.entries
}

func TestReporterSkipsEmptyBatch(t *testing.T) {
	sender := &fakeActivitySender{}
	r := NewReporter(NewCounters(), sender)

	r.Flush(context.Background())

	if len(sender.sent()) != 0 {
		t.Fatalf("empty batch was sent: %+v", sender.sent())
	}
}

func TestReporterFlushSendsDrainedCounts(t *testing.T) {
	sender := &fakeActivitySender{}
	counters := NewCounters()
	counters.AddKeyboard(200)
	counters.AddMouse(150)
	r := NewReporter(counters, sender)

	r.Flush(context.Background())

	entries := sender.sent()
	if len(entries) != 1 {
		t.Fatalf("got %d entries, want 1", len(entries))
	}
	entry := entries[0]
	if entry.KeyboardCount != 200 || entry.MouseCount != 150 {
		t.Fatalf("entry counts (%d, %d), want (200, 150)", entry.KeyboardCount, entry.MouseCount)
	}
	if entry.ProductivityScore != 100 {
		t.Fatalf("entry score %d, want 100 for 350 events", entry.ProductivityScore)
	}

	// A second flush has nothing to send.
	r.Flush(context.Background())
	if len(sender.sent()) != 1 {
		t.Fatalf("counters not reset after flush")
	}
}

func TestReporterDropsBatchOnSendFailure(t *testing.T) {
	sender := &fakeActivitySender{err: errors.New("server down")}
	counters := NewCounters()
	counters.AddKeyboard(10)
	r := NewReporter(counters, sender)

	r.Flush(context.Background())

	// The failed batch is gone; a later flush does not resend it.
	sender.mu.Lock()
	sender.err = nil
	sender.mu.Unlock()
	r.Flush(context.Background())
	if len(sender.sent()) != 0 {
		t.Fatalf("dropped batch was retried: %+v", sender.sent())
	}
}
