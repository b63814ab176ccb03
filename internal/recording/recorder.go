package recording

import (
	"context"
	"sync"
	"time"

	"menagent/internal/capture"
	"menagent/pkg/logger"
	"menagent/pkg/models"

	"github.com/google/uuid"
)

// Uploader delivers one finalized recording chunk to the server.
type Uploader interface {
	UploadRecording(ctx context.Context, chunk models.RecordingChunk) error
}

// Recorder manages chunked screen recording. At most one chunk records at a
// time; Cycle finalizes the current chunk (triggering its upload) and
// immediately starts the next one. Frames flow from the capture source
// through a bounded channel into the collector goroutine; Stop closes the
// channel and the collector performs the final flush before the upload.
type Recorder struct {
	source   capture.FrameSource
	uploader Uploader

	mu        sync.Mutex
	recording bool
	startedAt time.Time
	chunkID   string
	collected [][]byte
	collectWG sync.WaitGroup

	now func() time.Time
}

// NewRecorder creates a recorder draining source into uploader.
func NewRecorder(source capture.FrameSource, uploader Uploader) *Recorder {
	return &Recorder{
		source:   source,
		uploader: uploader,
		now:      time.Now,
	}
}

// IsRecording reports whether a chunk is currently being captured.
func (r *Recorder) IsRecording() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.recording
}

// Start begins capturing a new chunk. A no-op when already recording.
func (r *Recorder) Start(quality string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.recording {
		return nil
	}

	frames, err := r.source.Start(quality)
	if err != nil {
		return err
	}

	r.recording = true
	r.startedAt = r.now()
	r.chunkID = uuid.NewString()
	r.collected = nil

	r.collectWG.Add(1)
	go r.collect(frames)

	logger.Info("recording chunk %s started (quality=%s)", r.chunkID, quality)
	return nil
}

// collect buffers frames until the source closes the channel on Stop.
func (r *Recorder) collect(frames <-chan []byte) {
	defer r.collectWG.Done()
	for frame := range frames {
		r.mu.Lock()
		r.collected = append(r.collected, frame)
		r.mu.Unlock()
	}
}

// Stop finalizes the current chunk and uploads it with its metadata. An
// upload failure is logged and the chunk is dropped; nothing is persisted
// to disk. A no-op when not recording.
func (r *Recorder) Stop(ctx context.Context) {
	r.mu.Lock()
	if !r.recording {
		r.mu.Unlock()
		return
	}
	r.recording = false
	startedAt := r.startedAt
	chunkID := r.chunkID
	r.mu.Unlock()

	// Closing the source closes the frame channel; wait for the collector
	// to drain the last frames before assembling the chunk.
	r.source.Stop()
	r.collectWG.Wait()

	r.mu.Lock()
	frames := r.collected
	r.collected = nil
	r.mu.Unlock()

	endedAt := r.now()
	chunk := models.RecordingChunk{
		ID:              chunkID,
		Media:           flatten(frames),
		StartedAt:       startedAt,
		EndedAt:         endedAt,
		DurationSeconds: int(endedAt.Sub(startedAt).Seconds()),
	}

	logger.Info("recording chunk %s finalized: %ds, %d bytes",
		chunk.ID, chunk.DurationSeconds, len(chunk.Media))

	if err := r.uploader.UploadRecording(ctx, chunk); err != nil {
		logger.Error("recording upload failed for chunk %s: %v", chunk.ID, err)
	}
}

// Cycle finalizes the current chunk and immediately begins the next one.
// The stop completes fully (final flush and upload handoff) before the new
// chunk starts capturing.
func (r *Recorder) Cycle(ctx context.Context, quality string) {
	r.Stop(ctx)
	if err := r.Start(quality); err != nil {
		logger.Error("failed to start next recording chunk: %v", err)
	}
}

func flatten(frames [][]byte) []byte {
	size := 0
	for _, f := range frames {
		size += len(f)
	}
	media := make([]byte, 0, size)
	for _, f := range frames {
		media = append(media, f...)
	}
	return media
}
