package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mkurniadi/biliwatch/internal/models"
)

func newTestServer(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL)
}

func TestListSessions_BareArray(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/sessions", r.URL.Path)
		assert.NotEmpty(t, r.Header.Get("X-Request-ID"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[{"id":"s1","patientId":"p1","status":"running","duration":60}]`))
	})

	sessions, err := c.ListSessions(context.Background())
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, "s1", sessions[0].ID)
	assert.Equal(t, models.SessionStatusRunning, sessions[0].Status)
}

func TestListSessions_DataEnvelope(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":[{"id":"s1","status":"completed"}],"status":"success","message":"ok"}`))
	})

	sessions, err := c.ListSessions(context.Background())
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, models.SessionStatusCompleted, sessions[0].Status)
}

func TestCreateSession(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/sessions", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var req CreateSessionRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "p1", req.PatientID)
		assert.Equal(t, 13.5, req.TSB)
		assert.Equal(t, 120, req.Duration)
		assert.Equal(t, "both", req.Mode)

		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"id":"s-new","patientId":"p1","status":"running","duration":120}`))
	})

	s, err := c.CreateSession(context.Background(), CreateSessionRequest{
		PatientID: "p1", TSB: 13.5, Duration: 120, Mode: "both",
	})
	require.NoError(t, err)
	assert.Equal(t, "s-new", s.ID)
}

func TestStopSession_WrappedResponse(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPatch, r.Method)
		assert.Equal(t, "/sessions/s1/stop", r.URL.Path)
		w.Write([]byte(`{"success":true,"message":"stopped","session":{"id":"s1","status":"stopped"}}`))
	})

	s, err := c.StopSession(context.Background(), "s1")
	require.NoError(t, err)
	assert.Equal(t, "s1", s.ID)
	assert.Equal(t, models.SessionStatusStopped, s.Status)
}

func TestStopSession_BareResponse(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"id":"s1","status":"stopped"}`))
	})

	s, err := c.StopSession(context.Background(), "s1")
	require.NoError(t, err)
	assert.Equal(t, models.SessionStatusStopped, s.Status)
}

func TestErrorMessage_FromBody(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		w.Write([]byte(`{"message":"patient already has a running session"}`))
	})

	_, err := c.CreateSession(context.Background(), CreateSessionRequest{PatientID: "p1"})
	require.Error(t, err)
	assert.ErrorContains(t, err, "patient already has a running session")

	var apiErr *Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusConflict, apiErr.StatusCode)
}

func TestErrorMessage_Fallback(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`<html>boom</html>`))
	})

	_, err := c.ListSessions(context.Background())
	require.Error(t, err)
	assert.ErrorContains(t, err, "request failed with status 500")
}

func TestSessionMeasurements(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/measurements/session/s1", r.URL.Path)
		w.Write([]byte(`[
			{"id":"m1","sessionId":"s1","temperature":36.1,"humidity":50,"fan":false},
			{"id":"m2","sessionId":"s1","temperature":36.4,"humidity":52,"fan":true}
		]`))
	})

	ms, err := c.SessionMeasurements(context.Background(), "s1")
	require.NoError(t, err)
	require.Len(t, ms, 2)
	assert.Equal(t, 36.4, ms[1].Temperature)
}

func TestLatestMeasurement(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/measurements/session/s1/latest", r.URL.Path)
		w.Write([]byte(`{"id":"m9","sessionId":"s1","temperature":37.2}`))
	})

	m, err := c.LatestMeasurement(context.Background(), "s1")
	require.NoError(t, err)
	assert.Equal(t, 37.2, m.Temperature)
}

func TestPatientCRUD(t *testing.T) {
	var deleted bool
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/patients":
			w.Write([]byte(`[{"id":"p1","name":"Baby A"}]`))
		case r.Method == http.MethodPost && r.URL.Path == "/patients":
			w.WriteHeader(http.StatusCreated)
			w.Write([]byte(`{"id":"p2","name":"Baby B"}`))
		case r.Method == http.MethodPut && r.URL.Path == "/patients/p1":
			w.Write([]byte(`{"id":"p1","name":"Baby A2"}`))
		case r.Method == http.MethodDelete && r.URL.Path == "/patients/p1":
			deleted = true
			w.WriteHeader(http.StatusNoContent)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})
	ctx := context.Background()

	patients, err := c.ListPatients(ctx)
	require.NoError(t, err)
	require.Len(t, patients, 1)

	created, err := c.CreatePatient(ctx, PatientRequest{Name: "Baby B"})
	require.NoError(t, err)
	assert.Equal(t, "p2", created.ID)

	updated, err := c.UpdatePatient(ctx, "p1", PatientRequest{Name: "Baby A2"})
	require.NoError(t, err)
	assert.Equal(t, "Baby A2", updated.Name)

	require.NoError(t, c.DeletePatient(ctx, "p1"))
	assert.True(t, deleted)
}

func TestDeviceEndpoints(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/arduino/status":
			w.Write([]byte(`{"isConnected":true,"portInfo":{"port":"/dev/ttyUSB0","baudRate":9600,"isOpen":true}}`))
		case "/arduino/ports":
			w.Write([]byte(`{"success":true,"ports":[{"path":"/dev/ttyUSB0","manufacturer":"Arduino"}]}`))
		case "/arduino/setMode":
			var body map[string]string
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, "high", body["mode"])
			w.Write([]byte(`{"success":true,"message":"mode set"}`))
		case "/arduino/emergencyStop":
			w.Write([]byte(`{"success":true,"message":"all off"}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})
	ctx := context.Background()

	status, err := c.DeviceStatus(ctx)
	require.NoError(t, err)
	assert.True(t, status.IsConnected)
	require.NotNil(t, status.PortInfo)
	assert.Equal(t, "/dev/ttyUSB0", status.PortInfo.Port)

	ports, err := c.DevicePorts(ctx)
	require.NoError(t, err)
	require.Len(t, ports, 1)

	res, err := c.SetDeviceMode(ctx, models.LightModeHigh)
	require.NoError(t, err)
	assert.True(t, res.Success)

	stop, err := c.EmergencyStop(ctx)
	require.NoError(t, err)
	assert.Equal(t, "all off", stop.Message)
}
