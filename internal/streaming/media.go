package streaming

import (
	"sync"
	"time"

	"menagent/internal/capture"
	"menagent/pkg/logger"

	"github.com/pion/webrtc/v4"
	"github.com/pion/webrtc/v4/pkg/media"
)

// streamQuality is the capture preset for live streams. The preset's byte
// budget is what caps the outbound bitrate of the session.
const streamQuality = "medium"

// sampleDuration matches the medium preset's frame rate.
const sampleDuration = 100 * time.Millisecond

// MediaSource provides the local media track for a streaming session and
// releases the underlying capture when the session ends.
type MediaSource interface {
	Open() (webrtc.TrackLocal, error)
	Close()
}

// ScreenMedia adapts the capture frame source into a WebRTC sample track.
// Frame encoding is delegated to the capture shim; the session only moves
// samples onto the track.
type ScreenMedia struct {
	source capture.FrameSource

	mu   sync.Mutex
	open bool
}

// NewScreenMedia creates the production media source.
func NewScreenMedia(source capture.FrameSource) *ScreenMedia {
	return &ScreenMedia{source: source}
}

// Open starts capturing and returns the local video track. The pump
// goroutine exits when Close stops the source and the frame channel drains.
func (m *ScreenMedia) Open() (webrtc.TrackLocal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	// The samples carry the capture shim's JPEG frames, not VP8 bitstream;
	// there is no on-device encoder. The capability tag only selects the
	// negotiated RTP payload type, and the admin viewer decodes the frames
	// as JPEG. Swap in a real encoder here to make the tag truthful.
	track, err := webrtc.NewTrackLocalStaticSample(
		webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeVP8},
		"screen", "menagent",
	)
	if err != nil {
		return nil, err
	}

	frames, err := m.source.Start(streamQuality)
	if err != nil {
		return nil, err
	}
	m.open = true

	go func() {
		for frame := range frames {
			if err := track.WriteSample(media.Sample{Data: frame, Duration: sampleDuration}); err != nil {
				logger.Debug("dropping stream sample: %v", err)
			}
		}
	}()

	return track, nil
}

// Close releases the capture. Safe to call more than once.
func (m *ScreenMedia) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.open {
		return
	}
	m.open = false
	m.source.Stop()
}
