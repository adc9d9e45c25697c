// Package api is the REST client for the phototherapy backend. It covers
// session and patient management, measurement history, and the serial
// device control endpoints. Failures carry the backend's message when the
// response body has one; nothing here retries automatically.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/mkurniadi/biliwatch/internal/models"
)

const defaultTimeout = 10 * time.Second

// Client talks to the backend REST API.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a client for the given base URL.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: defaultTimeout},
	}
}

// Error is a failed API call: the HTTP status plus the backend's own
// message when one was present in the body.
type Error struct {
	StatusCode int
	Message    string
}

func (e *Error) Error() string {
	return e.Message
}

// --- Sessions ---

// CreateSessionRequest is the body for starting a new session.
type CreateSessionRequest struct {
	PatientID string  `json:"patientId"`
	TSB       float64 `json:"tsb"`
	Duration  int     `json:"duration"`
	Mode      string  `json:"mode"`
}

// ListSessions fetches the full session collection.
func (c *Client) ListSessions(ctx context.Context) ([]*models.Session, error) {
	var out []*models.Session
	if err := c.do(ctx, http.MethodGet, "/sessions", nil, &out); err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	return out, nil
}

// GetSession fetches one session.
func (c *Client) GetSession(ctx context.Context, id string) (*models.Session, error) {
	var out models.Session
	if err := c.do(ctx, http.MethodGet, "/sessions/"+id, nil, &out); err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	return &out, nil
}

// CreateSession starts a new treatment session.
func (c *Client) CreateSession(ctx context.Context, req CreateSessionRequest) (*models.Session, error) {
	var out models.Session
	if err := c.do(ctx, http.MethodPost, "/sessions", req, &out); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	return &out, nil
}

// StopSession asks the backend to stop a running session and returns the
// updated record. Some backend builds wrap it as {"session": {...}}.
func (c *Client) StopSession(ctx context.Context, id string) (*models.Session, error) {
	var raw json.RawMessage
	if err := c.do(ctx, http.MethodPatch, "/sessions/"+id+"/stop", nil, &raw); err != nil {
		return nil, fmt.Errorf("stop session: %w", err)
	}

	var wrapped struct {
		Session *models.Session `json:"session"`
	}
	if err := json.Unmarshal(raw, &wrapped); err == nil && wrapped.Session != nil && wrapped.Session.ID != "" {
		return wrapped.Session, nil
	}
	var out models.Session
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("stop session: decode response: %w", err)
	}
	return &out, nil
}

// --- Measurements ---

// ListMeasurements fetches every retained measurement.
func (c *Client) ListMeasurements(ctx context.Context) ([]models.Measurement, error) {
	var out []models.Measurement
	if err := c.do(ctx, http.MethodGet, "/measurements", nil, &out); err != nil {
		return nil, fmt.Errorf("list measurements: %w", err)
	}
	return out, nil
}

// SessionMeasurements fetches the full series for one session.
func (c *Client) SessionMeasurements(ctx context.Context, sessionID string) ([]models.Measurement, error) {
	var out []models.Measurement
	if err := c.do(ctx, http.MethodGet, "/measurements/session/"+sessionID, nil, &out); err != nil {
		return nil, fmt.Errorf("session measurements: %w", err)
	}
	return out, nil
}

// LatestMeasurement fetches the newest measurement for one session.
func (c *Client) LatestMeasurement(ctx context.Context, sessionID string) (*models.Measurement, error) {
	var out models.Measurement
	if err := c.do(ctx, http.MethodGet, "/measurements/session/"+sessionID+"/latest", nil, &out); err != nil {
		return nil, fmt.Errorf("latest measurement: %w", err)
	}
	return &out, nil
}

// --- Patients ---

// PatientRequest is the body for creating or updating a patient.
type PatientRequest struct {
	Name           string  `json:"name"`
	DateOfBirth    string  `json:"dateOfBirth"`
	Weight         float64 `json:"weight"`
	GestationalAge int     `json:"gestationalAge"`
}

// ListPatients fetches all patients.
func (c *Client) ListPatients(ctx context.Context) ([]*models.Patient, error) {
	var out []*models.Patient
	if err := c.do(ctx, http.MethodGet, "/patients", nil, &out); err != nil {
		return nil, fmt.Errorf("list patients: %w", err)
	}
	return out, nil
}

// CreatePatient registers a new patient.
func (c *Client) CreatePatient(ctx context.Context, req PatientRequest) (*models.Patient, error) {
	var out models.Patient
	if err := c.do(ctx, http.MethodPost, "/patients", req, &out); err != nil {
		return nil, fmt.Errorf("create patient: %w", err)
	}
	return &out, nil
}

// UpdatePatient updates an existing patient.
func (c *Client) UpdatePatient(ctx context.Context, id string, req PatientRequest) (*models.Patient, error) {
	var out models.Patient
	if err := c.do(ctx, http.MethodPut, "/patients/"+id, req, &out); err != nil {
		return nil, fmt.Errorf("update patient: %w", err)
	}
	return &out, nil
}

// DeletePatient removes a patient.
func (c *Client) DeletePatient(ctx context.Context, id string) error {
	if err := c.do(ctx, http.MethodDelete, "/patients/"+id, nil, nil); err != nil {
		return fmt.Errorf("delete patient: %w", err)
	}
	return nil
}

// --- Device control ---

// CommandResult is the backend's acknowledgment of a device command.
type CommandResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// DeviceStatus fetches the controller connection state.
func (c *Client) DeviceStatus(ctx context.Context) (*models.DeviceStatus, error) {
	var out models.DeviceStatus
	if err := c.do(ctx, http.MethodGet, "/arduino/status", nil, &out); err != nil {
		return nil, fmt.Errorf("device status: %w", err)
	}
	return &out, nil
}

// DevicePorts lists serial ports the backend can see.
func (c *Client) DevicePorts(ctx context.Context) ([]models.DevicePort, error) {
	var out struct {
		Success bool                `json:"success"`
		Ports   []models.DevicePort `json:"ports"`
	}
	if err := c.do(ctx, http.MethodGet, "/arduino/ports", nil, &out); err != nil {
		return nil, fmt.Errorf("device ports: %w", err)
	}
	return out.Ports, nil
}

// ConnectDevice opens the serial connection to the controller.
func (c *Client) ConnectDevice(ctx context.Context, port string, baudRate int) (*models.DevicePortInfo, error) {
	body := map[string]any{"port": port, "baudRate": baudRate}
	var out struct {
		Success  bool                   `json:"success"`
		Message  string                 `json:"message"`
		PortInfo *models.DevicePortInfo `json:"portInfo"`
	}
	if err := c.do(ctx, http.MethodPost, "/arduino/connect", body, &out); err != nil {
		return nil, fmt.Errorf("connect device: %w", err)
	}
	return out.PortInfo, nil
}

// DisconnectDevice closes the serial connection.
func (c *Client) DisconnectDevice(ctx context.Context) error {
	if err := c.do(ctx, http.MethodPost, "/arduino/disconnect", nil, nil); err != nil {
		return fmt.Errorf("disconnect device: %w", err)
	}
	return nil
}

// SetDeviceMode switches the phototherapy light mode.
func (c *Client) SetDeviceMode(ctx context.Context, mode models.LightMode) (*CommandResult, error) {
	var out CommandResult
	if err := c.do(ctx, http.MethodPost, "/arduino/setMode", map[string]any{"mode": mode}, &out); err != nil {
		return nil, fmt.Errorf("set mode: %w", err)
	}
	return &out, nil
}

// SetDeviceFan toggles the cooling fan.
func (c *Client) SetDeviceFan(ctx context.Context, on bool) (*CommandResult, error) {
	var out CommandResult
	if err := c.do(ctx, http.MethodPost, "/arduino/setFan", map[string]any{"status": on}, &out); err != nil {
		return nil, fmt.Errorf("set fan: %w", err)
	}
	return &out, nil
}

// EmergencyStop cuts lights and fan immediately.
func (c *Client) EmergencyStop(ctx context.Context) (*CommandResult, error) {
	var out CommandResult
	if err := c.do(ctx, http.MethodPost, "/arduino/emergencyStop", nil, &out); err != nil {
		return nil, fmt.Errorf("emergency stop: %w", err)
	}
	return &out, nil
}

// PingDevice checks controller responsiveness.
func (c *Client) PingDevice(ctx context.Context) (*CommandResult, error) {
	var out CommandResult
	if err := c.do(ctx, http.MethodPost, "/arduino/ping", nil, &out); err != nil {
		return nil, fmt.Errorf("ping device: %w", err)
	}
	return &out, nil
}

// do runs one request and decodes the response into out (skipped if nil).
// Bodies wrapped in a {"data": ...} envelope are unwrapped first.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode body: %w", err)
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", ulid.Make().String())

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &Error{StatusCode: resp.StatusCode, Message: errorMessage(raw, resp.StatusCode)}
	}
	if out == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(unwrap(raw), out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// unwrap peels a {"data": ...} envelope if present. Some backend builds
// wrap collection responses, some return them bare.
func unwrap(raw []byte) []byte {
	var envelope struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(raw, &envelope); err == nil && len(envelope.Data) > 0 {
		return envelope.Data
	}
	return raw
}

// errorMessage pulls a human-readable message out of an error body,
// falling back to generic text keyed by status.
func errorMessage(raw []byte, status int) string {
	var body struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(raw, &body); err == nil {
		if body.Message != "" {
			return body.Message
		}
		if body.Error != "" {
			return body.Error
		}
	}
	return fmt.Sprintf("request failed with status %d", status)
}
