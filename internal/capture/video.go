package capture

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"sync"
	"time"

	"menagent/pkg/logger"

	"github.com/nfnt/resize"
)

// FrameSource produces encoded video frames from the display. The channel
// returned by Start closes after Stop, once the final frame has been
// emitted. Implementations are the platform capture shim; the recording and
// streaming controllers only consume the channel.
type FrameSource interface {
	Start(quality string) (<-chan []byte, error)
	Stop()
}

// qualityPreset maps a server-side quality name to capture parameters.
type qualityPreset struct {
	fps            int
	maxWidth       uint
	jpegQuality    int
	bytesPerSecond int // outbound budget; frames over budget are skipped
}

var qualityPresets = map[string]qualityPreset{
	"low":    {fps: 5, maxWidth: 854, jpegQuality: 40, bytesPerSecond: 250_000},
	"medium": {fps: 10, maxWidth: 1280, jpegQuality: 60, bytesPerSecond: 1_000_000},
	"high":   {fps: 15, maxWidth: 1920, jpegQuality: 80, bytesPerSecond: 2_500_000},
}

// presetFor returns the preset for a quality name, falling back to medium.
func presetFor(quality string) qualityPreset {
	if p, ok := qualityPresets[quality]; ok {
		return p
	}
	return qualityPresets["medium"]
}

// frameBuffer bounds the producer/consumer channel between capture and the
// collector; when the consumer stalls (e.g. an upload in flight), frames
// are dropped rather than buffered without bound.
const frameBuffer = 32

// ScreenSource captures the primary display at a fixed rate and emits
// JPEG-encoded frames. A byte budget derived from the quality preset caps
// the outbound rate: frames that would exceed the budget for the current
// one-second window are skipped.
type ScreenSource struct {
	mu      sync.Mutex
	running bool
	stop    chan struct{}
	done    chan struct{}
}

// NewScreenSource creates a screen frame source.
func NewScreenSource() *ScreenSource {
	return &ScreenSource{}
}

// Start begins capturing at the preset rate. Returns the frame channel.
func (s *ScreenSource) Start(quality string) (<-chan []byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return nil, fmt.Errorf("screen source already running")
	}

	preset := presetFor(quality)
	frames := make(chan []byte, frameBuffer)
	s.stop = make(chan struct{})
	s.done = make(chan struct{})
	s.running = true

	go s.captureLoop(preset, frames, s.stop, s.done)

	logger.Info("screen source started: quality=%s fps=%d", quality, preset.fps)
	return frames, nil
}

// Stop ends capturing; the frame channel closes once the loop exits.
func (s *ScreenSource) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	close(s.stop)
	done := s.done
	s.mu.Unlock()

	<-done
}

func (s *ScreenSource) captureLoop(preset qualityPreset, frames chan<- []byte, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	defer close(frames)

	ticker := time.NewTicker(time.Second / time.Duration(preset.fps))
	defer ticker.Stop()

	windowStart := time.Now()
	windowBytes := 0

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			now := time.Now()
			if now.Sub(windowStart) >= time.Second {
				windowStart = now
				windowBytes = 0
			}
			if windowBytes >= preset.bytesPerSecond {
				continue // over budget for this window
			}

			frame, err := s.encodeFrame(preset)
			if err != nil {
				logger.Debug("frame capture failed: %v", err)
				continue
			}
			windowBytes += len(frame)

			select {
			case frames <- frame:
			default:
				// Consumer is behind; drop the frame.
			}
		}
	}
}

func (s *ScreenSource) encodeFrame(preset qualityPreset) ([]byte, error) {
	img, err := grabPrimaryDisplay()
	if err != nil {
		return nil, err
	}

	if uint(img.Bounds().Dx()) > preset.maxWidth {
		img = resize.Resize(preset.maxWidth, 0, img, resize.Bilinear)
	}

	return encodeJPEG(img, preset.jpegQuality)
}

func encodeJPEG(img image.Image, quality int) ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, fmt.Errorf("failed to encode frame: %w", err)
	}
	return buf.Bytes(), nil
}
