package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"menagent/pkg/models"
)

type fakeCreds struct {
	mu        sync.Mutex
	token     string
	serverURL string
	cleared   bool
}

func (f *fakeCreds) Token() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.token
}

func (f *fakeCreds) ServerURL() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.serverURL
}

func (f *fakeCreds) ClearToken() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.token = ""
	f.cleared = true
	return nil
}

func okResponse(data interface{}) []byte {
	raw, _ := json.Marshal(data)
	body, _ := json.Marshal(Response{Success: true, Data: raw})
	return body
}

func TestHeartbeatParsesSettingsAndStreamRequest(t *testing.T) {
	var gotToken string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != endpointHeartbeat {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		gotToken = r.Header.Get(tokenHeader)
		w.Write(okResponse(models.HeartbeatData{
			Settings: &models.Settings{ScreenshotIntervalSeconds: 120, TrackScreenshots: true},
			PendingStreamRequest: &models.StreamRequest{
				ID:     "req-1",
				Status: models.StreamRequestPending,
			},
			ICEServers: []models.ICEServer{{URLs: []string{"stun:stun.example.com:3478"}}},
		}))
	}))
	defer srv.Close()

	client := NewClient(&fakeCreds{token: "tok-123", serverURL: srv.URL}, nil)
	data, err := client.Heartbeat(context.Background())
	if err != nil {
		t.Fatalf("Heartbeat() error: %v", err)
	}

	if gotToken != "tok-123" {
		t.Fatalf("token header = %q, want tok-123", gotToken)
	}
	if data.Settings == nil || data.Settings.ScreenshotIntervalSeconds != 120 {
		t.Fatalf("settings not parsed: %+v", data.Settings)
	}
	if data.PendingStreamRequest == nil || data.PendingStreamRequest.ID != "req-1" {
		t.Fatalf("stream request not parsed: %+v", data.PendingStreamRequest)
	}
	if len(data.ICEServers) != 1 {
		t.Fatalf("ICE servers not parsed: %+v", data.ICEServers)
	}
}

func TestUnauthorizedClearsTokenAndFiresCallback(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	creds := &fakeCreds{token: "stale", serverURL: srv.URL}
	callbackFired := false
	client := NewClient(creds, func() { callbackFired = true })

	err := client.SendActivityLog(context.Background(), models.ActivityLog{KeyboardCount: 1})
	if !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("error = %v, want ErrUnauthorized", err)
	}
	if creds.Token() != "" || !creds.cleared {
		t.Fatalf("token not cleared after 401")
	}
	if !callbackFired {
		t.Fatalf("unauthorized callback did not fire")
	}
}

func TestPollSignalsParsesAdminSignals(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var envelope models.SignalEnvelope
		if err := json.NewDecoder(r.Body).Decode(&envelope); err != nil {
			t.Errorf("bad envelope: %v", err)
		}
		if envelope.Action != models.SignalActionPoll {
			t.Errorf("action = %q, want poll", envelope.Action)
		}
		w.Write(okResponse(map[string]interface{}{
			"admin_signals": []models.AdminSignal{
				{ID: "sig-1", Type: models.SignalTypeAnswer, Data: json.RawMessage(`{"type":"answer","sdp":"v=0"}`)},
			},
		}))
	}))
	defer srv.Close()

	client := NewClient(&fakeCreds{token: "tok", serverURL: srv.URL}, nil)
	signals, err := client.PollSignals(context.Background())
	if err != nil {
		t.Fatalf("PollSignals() error: %v", err)
	}
	if len(signals) != 1 || signals[0].ID != "sig-1" || signals[0].Type != models.SignalTypeAnswer {
		t.Fatalf("signals = %+v", signals)
	}
}

func TestUploadRecordingSendsMultipartChunk(t *testing.T) {
	var (
		gotMedia    []byte
		gotFields   map[string]string
		gotFileName string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(16 << 20); err != nil {
			t.Errorf("not a multipart request: %v", err)
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		file, header, err := r.FormFile("video")
		if err != nil {
			t.Errorf("missing video part: %v", err)
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		defer file.Close()
		gotFileName = header.Filename
		gotMedia, _ = io.ReadAll(file)

		gotFields = map[string]string{
			"duration_seconds": r.FormValue("duration_seconds"),
			"started_at":       r.FormValue("started_at"),
			"ended_at":         r.FormValue("ended_at"),
		}
		w.Write(okResponse(nil))
	}))
	defer srv.Close()

	started := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	chunk := models.RecordingChunk{
		ID:              "abc",
		Media:           []byte("frame-bytes"),
		StartedAt:       started,
		EndedAt:         started.Add(90 * time.Second),
		DurationSeconds: 90,
	}

	client := NewClient(&fakeCreds{token: "tok", serverURL: srv.URL}, nil)
	if err := client.UploadRecording(context.Background(), chunk); err != nil {
		t.Fatalf("UploadRecording() error: %v", err)
	}

	if string(gotMedia) != "frame-bytes" {
		t.Fatalf("media = %q", gotMedia)
	}
	if gotFileName != "chunk-abc.bin" {
		t.Fatalf("filename = %q", gotFileName)
	}
	if gotFields["duration_seconds"] != "90" {
		t.Fatalf("duration field = %q, want 90", gotFields["duration_seconds"])
	}
	if gotFields["started_at"] != "2026-08-01T10:00:00Z" {
		t.Fatalf("started_at field = %q", gotFields["started_at"])
	}
	if gotFields["ended_at"] != "2026-08-01T10:01:30Z" {
		t.Fatalf("ended_at field = %q", gotFields["ended_at"])
	}
}

func TestServerErrorIsReturnedToCaller(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	creds := &fakeCreds{token: "tok", serverURL: srv.URL}
	client := NewClient(creds, nil)

	err := client.Reconnect(context.Background())
	if err == nil {
		t.Fatalf("Reconnect() returned nil for a 500")
	}
	if errors.Is(err, ErrUnauthorized) {
		t.Fatalf("a 500 must not be treated as unauthorized")
	}
	if creds.cleared {
		t.Fatalf("a 500 must not clear the token")
	}
}
