package models

import "time"

// ActivityLog is the payload flushed to the activity-log endpoint once per
// reporting interval. Counters are reset after a successful flush.
type ActivityLog struct {
	KeyboardCount     int       `json:"keyboard_count"`
	MouseCount        int       `json:"mouse_count"`
	ProductivityScore int       `json:"productivity_score"`
	RecordedAt        time.Time `json:"recorded_at"`
}

// AppUsageLogEntry records one stretch of foreground time in a single
// application. Entries are appended when the foreground app changes and
// drained all-at-once on each flush cycle.
type AppUsageLogEntry struct {
	AppName         string    `json:"app_name"`
	WindowTitle     string    `json:"window_title"`
	StartedAt       time.Time `json:"started_at"`
	DurationSeconds int       `json:"duration_seconds"`
}

// ScreenshotUpload is the payload for the screenshot endpoint. The image is
// a base64 data URI; blurring is applied server-side based on IsBlurred.
type ScreenshotUpload struct {
	ScreenshotBase64 string `json:"screenshot_base64"`
	ActiveWindow     string `json:"active_window"`
	IsBlurred        bool   `json:"is_blurred"`
}

// RecordingChunk is one finalized segment of screen recording plus the
// metadata sent alongside it in the multipart upload.
type RecordingChunk struct {
	ID              string
	Media           []byte
	StartedAt       time.Time
	EndedAt         time.Time
	DurationSeconds int
}

// Employee identifies the logged-in user as reported by the server.
type Employee struct {
	ID           int64  `json:"id"`
	EmployeeName string `json:"employee_name"`
}
