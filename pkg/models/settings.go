package models

// Settings is the monitoring configuration pushed by the server on every
// heartbeat. It is replaced wholesale on each heartbeat response; the
// scheduler diffs individual fields against the previous snapshot to decide
// which jobs need restarting.
type Settings struct {
	ScreenshotIntervalSeconds   int    `json:"screenshot_interval_seconds"`
	TrackScreenshots            bool   `json:"track_screenshots"`
	TrackApps                   bool   `json:"track_apps"`
	TrackWebsites               bool   `json:"track_websites"`
	BlurScreenshots             bool   `json:"blur_screenshots"`
	IdleThresholdMinutes        int    `json:"idle_threshold_minutes"`
	EnableRecording             bool   `json:"enable_recording"`
	RecordingQuality            string `json:"recording_quality"`
	MaxRecordingDurationMinutes int    `json:"max_recording_duration_minutes"`
}

// DefaultSettings returns the settings used before the first heartbeat
// response arrives.
func DefaultSettings() Settings {
	return Settings{
		ScreenshotIntervalSeconds:   300,
		TrackScreenshots:            true,
		TrackApps:                   true,
		TrackWebsites:               true,
		BlurScreenshots:             false,
		IdleThresholdMinutes:        5,
		EnableRecording:             false,
		RecordingQuality:            "medium",
		MaxRecordingDurationMinutes: 30,
	}
}
