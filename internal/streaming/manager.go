package streaming

import (
	"sync"
	"time"

	"menagent/pkg/logger"
	"menagent/pkg/models"
)

// Default negotiation parameters.
const (
	defaultPollInterval   = time.Second
	defaultConnectTimeout = 30 * time.Second
)

// Manager owns the at-most-one active streaming session and translates
// heartbeat-delivered stream requests into session lifecycles.
type Manager struct {
	signaler Signaler
	media    MediaSource
	newPeer  PeerFactory
	onStatus func(requestID, status string)

	pollInterval   time.Duration
	connectTimeout time.Duration

	mu      sync.Mutex
	current *Session
}

// NewManager creates a streaming manager. onStatus may be nil; it receives
// the user-visible status transitions (connecting/connected/ended/failed).
func NewManager(signaler Signaler, media MediaSource, onStatus func(requestID, status string)) *Manager {
	return &Manager{
		signaler:       signaler,
		media:          media,
		newPeer:        NewPeerConnection,
		onStatus:       onStatus,
		pollInterval:   defaultPollInterval,
		connectTimeout: defaultConnectTimeout,
	}
}

// HandlePendingRequest accepts a pending stream request from a heartbeat.
// Re-delivery of the id already being served is a no-op. A different id
// while a session is active tears the old session down first; replacing
// the reference alone would leak its peer connection and capture.
func (m *Manager) HandlePendingRequest(requestID string, iceServers []models.ICEServer) {
	m.mu.Lock()
	if cur := m.current; cur != nil && !cur.State().Terminal() {
		if cur.requestID == requestID {
			m.mu.Unlock()
			return
		}
		logger.Warn("stream request %s received while %s active, replacing", requestID, cur.requestID)
		m.mu.Unlock()
		cur.end("ended")
		m.mu.Lock()
	}

	sess := newSession(
		requestID,
		m.signaler,
		m.media,
		m.newPeer,
		iceServers,
		m.onStatus,
		m.pollInterval,
		m.connectTimeout,
	)
	m.current = sess
	m.mu.Unlock()

	logger.Info("accepting stream request %s", requestID)
	go sess.run()
}

// StopCurrent ends the active session, if any, with the same cleanup
// sequence as a failure transition.
func (m *Manager) StopCurrent() {
	m.mu.Lock()
	cur := m.current
	m.mu.Unlock()

	if cur != nil && !cur.State().Terminal() {
		cur.end("ended")
	}
}

// Active returns the request id of the non-terminal session, if one exists.
func (m *Manager) Active() (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current != nil && !m.current.State().Terminal() {
		return m.current.requestID, true
	}
	return "", false
}
