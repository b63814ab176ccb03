package activity

import (
	"context"
	"sync"
	"time"

	"menagent/pkg/logger"
	"menagent/pkg/models"
)

// Counters accumulates input activity between flushes. Input observers
// (keyboard/mouse hooks, out of scope here) call the Add methods; the flush
// job drains the counts. The last-input timestamp doubles as the idle
// signal for the capture jobs.
type Counters struct {
	mu        sync.Mutex
	keyboard  int
	mouse     int
	lastInput time.Time

	now func() time.Time
}

// NewCounters creates an empty accumulator. The agent starts out non-idle.
func NewCounters() *Counters {
	c := &Counters{now: time.Now}
	c.lastInput = c.now()
	return c
}

// AddKeyboard records n keyboard events.
func (c *Counters) AddKeyboard(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.keyboard += n
	c.lastInput = c.now()
}

// AddMouse records n mouse events.
func (c *Counters) AddMouse(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.mouse += n
	c.lastInput = c.now()
}

// IdleSeconds returns the elapsed seconds since the last observed input.
func (c *Counters) IdleSeconds() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now().Sub(c.lastInput).Seconds()
}

// drain atomically takes the current counts and resets them to zero.
// Increments arriving after drain returns belong to the next batch.
func (c *Counters) drain() (keyboard, mouse int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	keyboard, mouse = c.keyboard, c.mouse
	c.keyboard, c.mouse = 0, 0
	return keyboard, mouse
}

// productivityScore maps combined input volume to a 0-100 score.
// 350+ combined events per reporting interval counts as fully productive.
func productivityScore(total int) int {
	if total == 0 {
		return 0
	}
	score := (total*100 + 175) / 350
	if score > 100 {
		return 100
	}
	return score
}

// ActivitySender delivers one activity-log batch to the server.
type ActivitySender interface {
	SendActivityLog(ctx context.Context, entry models.ActivityLog) error
}

// Reporter flushes the counters to the server on each activity-flush tick.
type Reporter struct {
	counters *Counters
	sender   ActivitySender
}

// NewReporter creates a reporter draining counters into sender.
func NewReporter(counters *Counters, sender ActivitySender) *Reporter {
	return &Reporter{counters: counters, sender: sender}
}

// Flush drains the counters and sends them. A zero batch is skipped. A
// failed send is logged and the batch is dropped; the next tick starts a
// fresh batch (at-most-once delivery).
func (r *Reporter) Flush(ctx context.Context) {
	keyboard, mouse := r.counters.drain()
	if keyboard == 0 && mouse == 0 {
		return
	}

	entry := models.ActivityLog{
		KeyboardCount:     keyboard,
		MouseCount:        mouse,
		ProductivityScore: productivityScore(keyboard + mouse),
		RecordedAt:        time.Now().UTC(),
	}
	if err := r.sender.SendActivityLog(ctx, entry); err != nil {
		logger.Error("activity log flush failed: %v", err)
	}
}
