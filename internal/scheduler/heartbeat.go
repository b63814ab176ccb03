package scheduler

import (
	"context"

	"menagent/pkg/logger"
	"menagent/pkg/models"
)

// runHeartbeat performs one liveness call and reconciles the response.
// Heartbeats are serialized: a tick that finds one still in flight is
// skipped, so settings diffs are always computed against a settled state.
// Failures are logged and never stop the job; the next tick retries.
func (s *Scheduler) runHeartbeat() {
	if !s.heartbeatInFlight.CompareAndSwap(false, true) {
		logger.Debug("heartbeat still in flight, skipping tick")
		return
	}
	defer s.heartbeatInFlight.Store(false)

	data, err := s.deps.Transport.Heartbeat(context.Background())
	if err != nil {
		logger.Error("heartbeat failed: %v", err)
		return
	}
	s.reconcile(data)
}

// reconcile interprets one heartbeat response: apply the new settings
// snapshot, then forward any pending stream request. Settings are applied
// first so the stream handler observes the fresh state.
func (s *Scheduler) reconcile(data *models.HeartbeatData) {
	if data.Settings != nil {
		s.applySettings(*data.Settings)
	}

	if req := data.PendingStreamRequest; req != nil && req.Status == models.StreamRequestPending {
		s.deps.Streamer.HandlePendingRequest(req.ID, data.ICEServers)
	}
}

// applySettings overwrites the in-memory settings with the payload (full
// replacement, no merge) and applies the minimal set of job changes:
//
//  1. screenshot interval or toggle changed and not paused: restart the
//     screenshot job with the new period
//  2. enable_recording false->true and not paused: start a recording session
//  3. enable_recording true->false: stop the session and upload the final
//     chunk, paused or not
func (s *Scheduler) applySettings(newSettings models.Settings) {
	s.mu.Lock()
	prev := s.settings
	s.settings = newSettings

	screenshotChanged := newSettings.ScreenshotIntervalSeconds != prev.ScreenshotIntervalSeconds ||
		newSettings.TrackScreenshots != prev.TrackScreenshots
	if screenshotChanged && !s.paused {
		s.scheduleScreenshotLocked()
	}

	startRecording := newSettings.EnableRecording && !prev.EnableRecording && !s.paused
	stopRecording := !newSettings.EnableRecording && prev.EnableRecording
	if startRecording {
		s.startRecordingLocked()
	}
	if stopRecording {
		s.removeJobLocked(&s.recordingID)
	}
	s.mu.Unlock()

	if stopRecording {
		s.deps.Recorder.Stop(context.Background())
	}

	if s.deps.Settings != nil {
		if err := s.deps.Settings.SetSettings(newSettings); err != nil {
			logger.Warn("failed to persist settings: %v", err)
		}
	}
}
