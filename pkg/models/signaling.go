package models

import "encoding/json"

// Stream request status values reported by the heartbeat.
const (
	StreamRequestPending = "pending"
)

// Signal actions accepted by the signaling relay endpoint.
const (
	SignalActionSignal = "signal"
	SignalActionPoll   = "poll"
	SignalActionEnd    = "end"
)

// Signal types exchanged through the relay.
const (
	SignalTypeOffer        = "offer"
	SignalTypeAnswer       = "answer"
	SignalTypeICECandidate = "ice-candidate"
)

// StreamRequest is a pending remote-viewing request delivered with a
// heartbeat response.
type StreamRequest struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

// ICEServer describes one STUN/TURN server offered by the control server
// for peer connection establishment.
type ICEServer struct {
	URLs       []string `json:"urls"`
	Username   string   `json:"username,omitempty"`
	Credential string   `json:"credential,omitempty"`
}

// AdminSignal is one admin-originated signaling message returned by a poll.
// The ID is opaque and used only for de-duplication; Data carries the SDP
// answer or ICE candidate depending on Type.
type AdminSignal struct {
	ID   string          `json:"id"`
	Type string          `json:"signal_type"`
	Data json.RawMessage `json:"signal_data"`
}

// SignalEnvelope is the request body for the signaling relay endpoint.
// Action selects between pushing a signal, polling for admin signals and
// ending the session.
type SignalEnvelope struct {
	Action          string      `json:"action"`
	StreamRequestID string      `json:"stream_request_id,omitempty"`
	SignalType      string      `json:"signal_type,omitempty"`
	SignalData      interface{} `json:"signal_data,omitempty"`
}

// HeartbeatData is the data section of a heartbeat response.
type HeartbeatData struct {
	Settings             *Settings      `json:"settings"`
	PendingStreamRequest *StreamRequest `json:"pending_stream_request"`
	ICEServers           []ICEServer    `json:"ice_servers"`
}
