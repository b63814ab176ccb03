package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"time"

	"menagent/pkg/logger"
	"menagent/pkg/models"
)

// ErrUnauthorized is returned when the server rejects the session token.
// Receiving it means the stored token has already been cleared and the
// unauthorized callback has fired.
var ErrUnauthorized = errors.New("unauthorized")

// tokenHeader carries the session token on every authenticated call.
const tokenHeader = "X-Agent-Token"

// Endpoints consumed by the agent core.
const (
	endpointHeartbeat  = "/agent-heartbeat"
	endpointActivity   = "/agent-activity"
	endpointAppLog     = "/agent-app-log"
	endpointScreenshot = "/agent-screenshot"
	endpointRecording  = "/agent-recording"
	endpointReconnect  = "/agent-reconnect"
	endpointDisconnect = "/agent-disconnect"
	endpointSignal     = "/agent-signal"
)

// CredentialStore provides the token and server URL for outgoing calls and
// accepts the token invalidation triggered by an unauthorized response.
type CredentialStore interface {
	Token() string
	ServerURL() string
	ClearToken() error
}

// Response is the common envelope returned by the control server.
type Response struct {
	Success bool            `json:"success"`
	Message string          `json:"message,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// Client issues authenticated request/response calls to the control server.
// Any endpoint answering 401 clears the stored token and fires the
// unauthorized callback exactly once per occurrence; callers receive
// ErrUnauthorized and must stop scheduling.
type Client struct {
	creds          CredentialStore
	httpClient     *http.Client
	onUnauthorized func()
}

// NewClient creates a transport client. onUnauthorized may be nil; when set
// it is invoked from the calling goroutine before ErrUnauthorized is
// returned.
func NewClient(creds CredentialStore, onUnauthorized func()) *Client {
	return &Client{
		creds:          creds,
		httpClient:     &http.Client{Timeout: 30 * time.Second},
		onUnauthorized: onUnauthorized,
	}
}

// post sends a JSON body to endpoint and decodes the common envelope.
func (c *Client) post(ctx context.Context, endpoint string, body interface{}) (*Response, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.creds.ServerURL()+endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token := c.creds.Token(); token != "" {
		req.Header.Set(tokenHeader, token)
	}

	return c.do(req)
}

// do executes a prepared request and applies the shared response handling,
// including the unauthorized contract.
func (c *Client) do(req *http.Request) (*Response, error) {
	res, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request to %s failed: %w", req.URL.Path, err)
	}
	defer res.Body.Close()

	if res.StatusCode == http.StatusUnauthorized {
		c.handleUnauthorized()
		return nil, ErrUnauthorized
	}
	if res.StatusCode < 200 || res.StatusCode > 299 {
		return nil, fmt.Errorf("request to %s failed with status %d", req.URL.Path, res.StatusCode)
	}

	data, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	var parsed Response
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse response from %s: %w", req.URL.Path, err)
	}
	return &parsed, nil
}

func (c *Client) handleUnauthorized() {
	logger.Warn("server rejected session token, clearing credentials")
	if err := c.creds.ClearToken(); err != nil {
		logger.Error("failed to clear token: %v", err)
	}
	if c.onUnauthorized != nil {
		c.onUnauthorized()
	}
}

// Heartbeat reports liveness and returns the authoritative settings plus any
// pending stream request.
func (c *Client) Heartbeat(ctx context.Context) (*models.HeartbeatData, error) {
	res, err := c.post(ctx, endpointHeartbeat, struct{}{})
	if err != nil {
		return nil, err
	}
	if !res.Success || len(res.Data) == 0 {
		return nil, fmt.Errorf("heartbeat rejected: %s", res.Message)
	}

	var data models.HeartbeatData
	if err := json.Unmarshal(res.Data, &data); err != nil {
		return nil, fmt.Errorf("failed to parse heartbeat data: %w", err)
	}
	return &data, nil
}

// SendActivityLog flushes one batch of input counters.
func (c *Client) SendActivityLog(ctx context.Context, entry models.ActivityLog) error {
	_, err := c.post(ctx, endpointActivity, entry)
	return err
}

// SendAppLog flushes one app-usage entry.
func (c *Client) SendAppLog(ctx context.Context, entry models.AppUsageLogEntry) error {
	_, err := c.post(ctx, endpointAppLog, entry)
	return err
}

// SendScreenshot uploads one captured image.
func (c *Client) SendScreenshot(ctx context.Context, shot models.ScreenshotUpload) error {
	_, err := c.post(ctx, endpointScreenshot, shot)
	return err
}

// Reconnect tells the server the agent is back after a restart.
func (c *Client) Reconnect(ctx context.Context) error {
	_, err := c.post(ctx, endpointReconnect, struct{}{})
	return err
}

// Disconnect tells the server the agent is going away (explicit logout).
func (c *Client) Disconnect(ctx context.Context) error {
	_, err := c.post(ctx, endpointDisconnect, struct{}{})
	return err
}

// SendSignal relays one outbound signaling message (offer or ICE candidate)
// for the given stream request.
func (c *Client) SendSignal(ctx context.Context, streamRequestID, signalType string, signalData interface{}) error {
	_, err := c.post(ctx, endpointSignal, models.SignalEnvelope{
		Action:          models.SignalActionSignal,
		StreamRequestID: streamRequestID,
		SignalType:      signalType,
		SignalData:      signalData,
	})
	return err
}

// PollSignals fetches admin-originated signals waiting on the relay.
func (c *Client) PollSignals(ctx context.Context) ([]models.AdminSignal, error) {
	res, err := c.post(ctx, endpointSignal, models.SignalEnvelope{Action: models.SignalActionPoll})
	if err != nil {
		return nil, err
	}
	if len(res.Data) == 0 {
		return nil, nil
	}

	var data struct {
		AdminSignals []models.AdminSignal `json:"admin_signals"`
	}
	if err := json.Unmarshal(res.Data, &data); err != nil {
		return nil, fmt.Errorf("failed to parse poll response: %w", err)
	}
	return data.AdminSignals, nil
}

// EndStream notifies the server that the streaming session for the given
// request is over.
func (c *Client) EndStream(ctx context.Context, streamRequestID string) error {
	_, err := c.post(ctx, endpointSignal, models.SignalEnvelope{
		Action:          models.SignalActionEnd,
		StreamRequestID: streamRequestID,
	})
	return err
}

// UploadRecording sends a finalized recording chunk as a single multipart
// upload: the media under the "video" field plus its metadata.
func (c *Client) UploadRecording(ctx context.Context, chunk models.RecordingChunk) error {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	part, err := writer.CreateFormFile("video", fmt.Sprintf("chunk-%s.bin", chunk.ID))
	if err != nil {
		return fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := part.Write(chunk.Media); err != nil {
		return fmt.Errorf("failed to write media: %w", err)
	}

	fields := map[string]string{
		"duration_seconds": strconv.Itoa(chunk.DurationSeconds),
		"started_at":       chunk.StartedAt.UTC().Format(time.RFC3339),
		"ended_at":         chunk.EndedAt.UTC().Format(time.RFC3339),
	}
	for name, value := range fields {
		if err := writer.WriteField(name, value); err != nil {
			return fmt.Errorf("failed to write field %s: %w", name, err)
		}
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("failed to finalize multipart body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.creds.ServerURL()+endpointRecording, &buf)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	if token := c.creds.Token(); token != "" {
		req.Header.Set(tokenHeader, token)
	}

	_, err = c.do(req)
	return err
}
