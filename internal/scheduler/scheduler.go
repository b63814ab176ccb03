package scheduler

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"menagent/pkg/logger"
	"menagent/pkg/models"

	"github.com/robfig/cron/v3"
)

// Fixed job periods. The heartbeat is short so server-side settings changes
// and stream requests apply quickly; the capture periods match the server's
// reporting expectations.
const (
	heartbeatPeriod = 5 * time.Second
	windowPeriod    = 5 * time.Second
	activityPeriod  = 60 * time.Second
	appLogPeriod    = 30 * time.Second
)

// Transport is the slice of the API client the scheduler drives directly.
type Transport interface {
	Heartbeat(ctx context.Context) (*models.HeartbeatData, error)
	Reconnect(ctx context.Context) error
}

// Shooter captures and uploads one screenshot.
type Shooter interface {
	Capture(ctx context.Context, blurred bool) error
}

// WindowTracker samples the foreground window and flushes the app-usage
// buffer.
type WindowTracker interface {
	Track()
	Flush(ctx context.Context)
}

// ActivityFlusher drains the input counters to the server.
type ActivityFlusher interface {
	Flush(ctx context.Context)
}

// IdleMeter reports seconds since the last observed input.
type IdleMeter interface {
	IdleSeconds() float64
}

// RecordingController is the recording session controller.
type RecordingController interface {
	Start(quality string) error
	Stop(ctx context.Context)
	Cycle(ctx context.Context, quality string)
	IsRecording() bool
}

// Streamer receives pending stream requests delivered by heartbeats.
type Streamer interface {
	HandlePendingRequest(requestID string, iceServers []models.ICEServer)
}

// SettingsStore persists the settings snapshot between runs. May be nil.
type SettingsStore interface {
	Settings() models.Settings
	SetSettings(settings models.Settings) error
}

// Deps are the collaborators injected at construction. Everything the jobs
// touch comes through here; the scheduler holds no hidden globals.
type Deps struct {
	Transport Transport
	Shooter   Shooter
	Windows   WindowTracker
	Activity  ActivityFlusher
	Idle      IdleMeter
	Recorder  RecordingController
	Streamer  Streamer
	Settings  SettingsStore
}

// Scheduler owns the periodic jobs (heartbeat, screenshot, window tracking,
// activity and app-log flushes, recording cycle) and their pause/resume/stop
// semantics. Settings are owned exclusively by the scheduler and replaced
// wholesale on every heartbeat response.
type Scheduler struct {
	deps Deps
	cron *cron.Cron

	mu       sync.Mutex
	running  bool
	paused   bool
	settings models.Settings

	heartbeatID  cron.EntryID
	screenshotID cron.EntryID
	windowID     cron.EntryID
	activityID   cron.EntryID
	appLogID     cron.EntryID
	recordingID  cron.EntryID

	heartbeatInFlight atomic.Bool
}

// New creates a scheduler. Call Start to begin.
func New(deps Deps) *Scheduler {
	s := &Scheduler{
		deps: deps,
		cron: cron.New(),
	}
	if deps.Settings != nil {
		s.settings = deps.Settings.Settings()
	} else {
		s.settings = models.DefaultSettings()
	}
	return s
}

// Start begins the heartbeat job, runs one heartbeat synchronously so the
// first settings snapshot is in place, then schedules the capture jobs.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("scheduler already running")
	}
	s.running = true
	s.paused = false
	s.heartbeatID = s.addEvery(heartbeatPeriod, s.runHeartbeat)
	s.mu.Unlock()

	s.cron.Start()

	// Immediate first heartbeat; failure is logged, not fatal - the next
	// tick retries. An unauthorized response stops the scheduler from
	// inside this call, so re-check before scheduling capture.
	s.runHeartbeat()

	s.mu.Lock()
	if s.running {
		s.startCaptureJobsLocked()
	}
	s.mu.Unlock()

	logger.Info("scheduler started")
	return nil
}

// Stop cancels every scheduled job, including the heartbeat, and finalizes
// any active recording chunk. Used on logout/unauthorized and on shutdown.
// An upload already in flight still completes.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.removeCaptureJobsLocked()
	s.removeJobLocked(&s.heartbeatID)
	s.mu.Unlock()

	s.cron.Stop()
	s.deps.Recorder.Stop(context.Background())

	logger.Info("scheduler stopped")
}

// PauseAll cancels the capture jobs but leaves the heartbeat running: the
// agent keeps reporting liveness while suppressing telemetry collection.
// The active recording chunk is finalized and uploaded.
func (s *Scheduler) PauseAll() {
	s.mu.Lock()
	if !s.running || s.paused {
		s.mu.Unlock()
		return
	}
	s.paused = true
	s.removeCaptureJobsLocked()
	s.mu.Unlock()

	s.deps.Recorder.Stop(context.Background())

	logger.Info("monitoring paused")
}

// ResumeAll re-derives and restarts the capture jobs from the last known
// settings.
func (s *Scheduler) ResumeAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running || !s.paused {
		return
	}
	s.paused = false
	s.startCaptureJobsLocked()

	logger.Info("monitoring resumed")
}

// Reconnect tells the server the agent is back, then starts scheduling.
func (s *Scheduler) Reconnect(ctx context.Context) error {
	if err := s.deps.Transport.Reconnect(ctx); err != nil {
		return fmt.Errorf("reconnect failed: %w", err)
	}
	return s.Start()
}

// IsRunning reports whether the scheduler has been started.
func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// IsPaused reports whether capture is suspended.
func (s *Scheduler) IsPaused() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.paused
}

// Settings returns the current settings snapshot.
func (s *Scheduler) Settings() models.Settings {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.settings
}

// Jobs returns the number of scheduled cron entries. Exposed for the
// status surface.
func (s *Scheduler) Jobs() int {
	return len(s.cron.Entries())
}

// addEvery schedules fn at a fixed period and returns its entry id.
func (s *Scheduler) addEvery(period time.Duration, fn func()) cron.EntryID {
	id, err := s.cron.AddFunc(fmt.Sprintf("@every %s", period), fn)
	if err != nil {
		logger.Error("failed to schedule job: %v", err)
		return 0
	}
	return id
}

// removeJobLocked cancels one entry and zeroes its id.
func (s *Scheduler) removeJobLocked(id *cron.EntryID) {
	if *id != 0 {
		s.cron.Remove(*id)
		*id = 0
	}
}

// startCaptureJobsLocked schedules the capture jobs from the current
// settings. The caller holds s.mu.
func (s *Scheduler) startCaptureJobsLocked() {
	s.scheduleScreenshotLocked()
	s.windowID = s.addEvery(windowPeriod, s.runWindowTrack)
	s.activityID = s.addEvery(activityPeriod, s.runActivityFlush)
	s.appLogID = s.addEvery(appLogPeriod, s.runAppLogFlush)
	if s.settings.EnableRecording {
		s.startRecordingLocked()
	}
}

// removeCaptureJobsLocked cancels all capture jobs, heartbeat excluded.
func (s *Scheduler) removeCaptureJobsLocked() {
	s.removeJobLocked(&s.screenshotID)
	s.removeJobLocked(&s.windowID)
	s.removeJobLocked(&s.activityID)
	s.removeJobLocked(&s.appLogID)
	s.removeJobLocked(&s.recordingID)
}

// scheduleScreenshotLocked cancels and recreates the screenshot job so a
// changed interval applies without waiting out the old one.
func (s *Scheduler) scheduleScreenshotLocked() {
	s.removeJobLocked(&s.screenshotID)
	if !s.settings.TrackScreenshots || s.settings.ScreenshotIntervalSeconds <= 0 {
		return
	}
	period := time.Duration(s.settings.ScreenshotIntervalSeconds) * time.Second
	s.screenshotID = s.addEvery(period, s.runScreenshot)
}

// startRecordingLocked schedules the recording cycle job and starts the
// first chunk. No-op when already scheduled. The caller holds s.mu, so the
// idle predicate is computed inline; while idle no chunk starts, but the
// cycle job stays armed and capture begins on the first non-idle tick.
func (s *Scheduler) startRecordingLocked() {
	if s.recordingID != 0 {
		return
	}
	period := time.Duration(s.settings.MaxRecordingDurationMinutes) * time.Minute
	if period <= 0 {
		period = 30 * time.Minute
	}
	s.recordingID = s.addEvery(period, s.runRecordingCycle)

	threshold := float64(s.settings.IdleThresholdMinutes) * 60
	if threshold > 0 && s.deps.Idle.IdleSeconds() >= threshold {
		logger.Info("recording enabled while idle, waiting for input activity")
		return
	}

	if err := s.deps.Recorder.Start(s.settings.RecordingQuality); err != nil {
		logger.Error("failed to start recording session: %v", err)
	}
}

// isIdle checks the idle predicate against the current threshold. Called
// at fire-time, not schedule-time, so a state change mid-interval is
// observed promptly.
func (s *Scheduler) isIdle() bool {
	s.mu.Lock()
	threshold := float64(s.settings.IdleThresholdMinutes) * 60
	s.mu.Unlock()
	if threshold <= 0 {
		return false
	}
	return s.deps.Idle.IdleSeconds() >= threshold
}

// runScreenshot fires on each screenshot tick. Paused and idle are
// re-checked immediately before capturing.
func (s *Scheduler) runScreenshot() {
	s.mu.Lock()
	paused := s.paused
	track := s.settings.TrackScreenshots
	blurred := s.settings.BlurScreenshots
	s.mu.Unlock()

	if paused || !track || s.isIdle() {
		return
	}
	if err := s.deps.Shooter.Capture(context.Background(), blurred); err != nil {
		logger.Error("screenshot capture failed: %v", err)
	}
}

// runWindowTrack samples the foreground window.
func (s *Scheduler) runWindowTrack() {
	s.mu.Lock()
	paused := s.paused
	trackApps := s.settings.TrackApps
	s.mu.Unlock()

	if paused || !trackApps {
		return
	}
	s.deps.Windows.Track()
}

// runActivityFlush sends the accumulated input counters.
func (s *Scheduler) runActivityFlush() {
	if s.isPausedNow() {
		return
	}
	s.deps.Activity.Flush(context.Background())
}

// runAppLogFlush drains the app-usage buffer.
func (s *Scheduler) runAppLogFlush() {
	if s.isPausedNow() {
		return
	}
	s.deps.Windows.Flush(context.Background())
}

// runRecordingCycle fires once per maximum chunk duration. While idle the
// in-flight chunk is finalized and no new one starts; the job stays armed
// so capture resumes on the first non-idle tick.
func (s *Scheduler) runRecordingCycle() {
	s.mu.Lock()
	paused := s.paused
	enabled := s.settings.EnableRecording
	quality := s.settings.RecordingQuality
	s.mu.Unlock()

	if !enabled || paused {
		return
	}

	if s.isIdle() {
		if s.deps.Recorder.IsRecording() {
			s.deps.Recorder.Stop(context.Background())
		}
		return
	}

	if s.deps.Recorder.IsRecording() {
		s.deps.Recorder.Cycle(context.Background(), quality)
	} else {
		if err := s.deps.Recorder.Start(quality); err != nil {
			logger.Error("failed to restart recording session: %v", err)
		}
	}
}

func (s *Scheduler) isPausedNow() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.paused
}
