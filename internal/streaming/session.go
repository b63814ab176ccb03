package streaming

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"menagent/pkg/logger"
	"menagent/pkg/models"

	"github.com/pion/webrtc/v4"
)

// State is the lifecycle position of a streaming session.
type State int

const (
	StateRequested State = iota
	StateNegotiating
	StateConnected
	StateEnded
	StateFailed
)

// String returns the lowercase state name.
func (s State) String() string {
	switch s {
	case StateRequested:
		return "requested"
	case StateNegotiating:
		return "negotiating"
	case StateConnected:
		return "connected"
	case StateEnded:
		return "ended"
	case StateFailed:
		return "failed"
	}
	return "unknown"
}

// Terminal reports whether the session can never leave this state.
func (s State) Terminal() bool {
	return s == StateEnded || s == StateFailed
}

// Signaler is the store-and-forward relay between agent and remote viewer.
// There is no persistent connection; answers and candidates arrive by
// polling.
type Signaler interface {
	SendSignal(ctx context.Context, streamRequestID, signalType string, data interface{}) error
	PollSignals(ctx context.Context) ([]models.AdminSignal, error)
	EndStream(ctx context.Context, streamRequestID string) error
}

// Session negotiates and tears down one live streaming connection. Created
// per pending stream request; once terminal it is never reused.
type Session struct {
	requestID  string
	signaler   Signaler
	media      MediaSource
	newPeer    PeerFactory
	iceServers []models.ICEServer
	onStatus   func(requestID, status string)

	pollInterval   time.Duration
	connectTimeout time.Duration

	ctx    context.Context
	cancel context.CancelFunc

	mu        sync.Mutex
	state     State
	pc        PeerConnection
	processed map[string]struct{}
	answered  bool
	cleaning  bool

	stopPoll     chan struct{}
	stopPollOnce sync.Once
	timeout      *time.Timer
}

func newSession(
	requestID string,
	signaler Signaler,
	media MediaSource,
	newPeer PeerFactory,
	iceServers []models.ICEServer,
	onStatus func(requestID, status string),
	pollInterval, connectTimeout time.Duration,
) *Session {
	ctx, cancel := context.WithCancel(context.Background())
	return &Session{
		requestID:      requestID,
		signaler:       signaler,
		media:          media,
		newPeer:        newPeer,
		iceServers:     iceServers,
		onStatus:       onStatus,
		pollInterval:   pollInterval,
		connectTimeout: connectTimeout,
		ctx:            ctx,
		cancel:         cancel,
		state:          StateRequested,
		processed:      make(map[string]struct{}),
		stopPoll:       make(chan struct{}),
	}
}

// State returns the current session state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// RequestID returns the stream request this session serves.
func (s *Session) RequestID() string {
	return s.requestID
}

func (s *Session) setState(state State) {
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
}

func (s *Session) report(status string) {
	if s.onStatus != nil {
		s.onStatus(s.requestID, status)
	}
}

// run drives Requested → Negotiating: capture local media, build the peer
// connection, send the offer and start polling for the answer. Any failure
// before polling begins terminates the session as failed.
func (s *Session) run() {
	s.setState(StateNegotiating)
	s.report("connecting")

	track, err := s.media.Open()
	if err != nil {
		logger.Error("stream %s: media capture failed: %v", s.requestID, err)
		s.end("failed")
		return
	}

	pc, err := s.newPeer(s.iceServers)
	if err != nil {
		logger.Error("stream %s: peer connection failed: %v", s.requestID, err)
		s.end("failed")
		return
	}
	s.mu.Lock()
	s.pc = pc
	s.mu.Unlock()

	if err := pc.AddTrack(track); err != nil {
		logger.Error("stream %s: adding track failed: %v", s.requestID, err)
		s.end("failed")
		return
	}

	pc.OnICECandidate(func(candidate *webrtc.ICECandidate) {
		if candidate == nil {
			return
		}
		if err := s.signaler.SendSignal(s.ctx, s.requestID, models.SignalTypeICECandidate, candidate.ToJSON()); err != nil {
			logger.Warn("stream %s: sending ICE candidate failed: %v", s.requestID, err)
		}
	})
	pc.OnConnectionStateChange(s.handleConnectionState)

	offer, err := pc.CreateOffer()
	if err != nil {
		logger.Error("stream %s: creating offer failed: %v", s.requestID, err)
		s.end("failed")
		return
	}
	if err := pc.SetLocalDescription(offer); err != nil {
		logger.Error("stream %s: setting local description failed: %v", s.requestID, err)
		s.end("failed")
		return
	}
	if err := s.signaler.SendSignal(s.ctx, s.requestID, models.SignalTypeOffer, offer); err != nil {
		logger.Error("stream %s: sending offer failed: %v", s.requestID, err)
		s.end("failed")
		return
	}

	s.mu.Lock()
	s.timeout = time.AfterFunc(s.connectTimeout, s.onConnectTimeout)
	s.mu.Unlock()

	go s.pollLoop()
}

// pollLoop fetches admin signals until the session connects or ends.
func (s *Session) pollLoop() {
	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopPoll:
			return
		case <-ticker.C:
			signals, err := s.signaler.PollSignals(s.ctx)
			if err != nil {
				logger.Warn("stream %s: signal poll failed: %v", s.requestID, err)
				continue
			}
			for _, sig := range signals {
				s.applySignal(sig)
			}
		}
	}
}

// applySignal applies one admin signal at most once. A re-delivered signal
// id is skipped; an ICE candidate that fails to apply is logged and does
// not abort the session; only the first answer is applied.
func (s *Session) applySignal(sig models.AdminSignal) {
	s.mu.Lock()
	if _, seen := s.processed[sig.ID]; seen {
		s.mu.Unlock()
		return
	}
	s.processed[sig.ID] = struct{}{}
	pc := s.pc
	alreadyAnswered := s.answered
	s.mu.Unlock()

	if pc == nil {
		return
	}

	switch sig.Type {
	case models.SignalTypeAnswer:
		if alreadyAnswered {
			return
		}
		var desc webrtc.SessionDescription
		if err := json.Unmarshal(sig.Data, &desc); err != nil {
			logger.Warn("stream %s: malformed answer: %v", s.requestID, err)
			return
		}
		if err := pc.SetRemoteDescription(desc); err != nil {
			logger.Warn("stream %s: applying answer failed: %v", s.requestID, err)
			return
		}
		s.mu.Lock()
		s.answered = true
		s.mu.Unlock()

	case models.SignalTypeICECandidate:
		var candidate webrtc.ICECandidateInit
		if err := json.Unmarshal(sig.Data, &candidate); err != nil {
			logger.Warn("stream %s: malformed ICE candidate: %v", s.requestID, err)
			return
		}
		if err := pc.AddICECandidate(candidate); err != nil {
			logger.Warn("stream %s: adding ICE candidate failed: %v", s.requestID, err)
		}

	default:
		logger.Debug("stream %s: ignoring signal type %q", s.requestID, sig.Type)
	}
}

// handleConnectionState reacts to the underlying connection's own state
// reporting. Connected stops the polling (no further signaling needed);
// any terminal connection state triggers the full cleanup sequence.
func (s *Session) handleConnectionState(state webrtc.PeerConnectionState) {
	logger.Info("stream %s: connection state %s", s.requestID, state)

	switch state {
	case webrtc.PeerConnectionStateConnected:
		s.stopPolling()
		s.mu.Lock()
		transitioned := s.state == StateNegotiating
		if transitioned {
			s.state = StateConnected
		}
		if s.timeout != nil {
			s.timeout.Stop()
		}
		s.mu.Unlock()
		if transitioned {
			s.report("connected")
		}

	case webrtc.PeerConnectionStateFailed:
		s.end("failed")

	case webrtc.PeerConnectionStateDisconnected, webrtc.PeerConnectionStateClosed:
		s.end("ended")
	}
}

// onConnectTimeout fires when the connection has not been established
// within the negotiation bound.
func (s *Session) onConnectTimeout() {
	state := s.State()
	if state == StateConnected || state.Terminal() {
		return
	}
	logger.Warn("stream %s: negotiation timed out", s.requestID)
	s.end("failed")
}

func (s *Session) stopPolling() {
	s.stopPollOnce.Do(func() { close(s.stopPoll) })
}

// end performs the cleanup sequence exactly once: stop polling, release
// local media, close the peer connection, notify the server (best effort)
// and report the final status. Safe to call from connection callbacks.
func (s *Session) end(status string) {
	s.mu.Lock()
	if s.cleaning || s.state.Terminal() {
		s.mu.Unlock()
		return
	}
	s.cleaning = true
	pc := s.pc
	if s.timeout != nil {
		s.timeout.Stop()
	}
	s.mu.Unlock()

	s.stopPolling()
	s.media.Close()
	if pc != nil {
		pc.Close()
	}

	endCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.signaler.EndStream(endCtx, s.requestID); err != nil {
		logger.Debug("stream %s: end signal failed (ignored): %v", s.requestID, err)
	}

	s.mu.Lock()
	if status == "failed" {
		s.state = StateFailed
	} else {
		s.state = StateEnded
	}
	s.mu.Unlock()

	s.cancel()
	s.report(status)
	logger.Info("stream %s: session %s", s.requestID, status)
}
