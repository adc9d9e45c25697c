package realtime

import "encoding/json"

// Event names carried on the real-time channel. Inbound events arrive as
// JSON envelopes; outbound commands are emitted the same way.
const (
	// Inbound
	EventSessionStarted       = "session_started"
	EventSessionDataUpdate    = "session_data_update"
	EventSessionFinished      = "session_finished"
	EventSessionStoppedManual = "session_stopped_manual"
	EventSessionStopRequested = "session_stop_requested"

	// Outbound
	EventJoinSession  = "join_session"
	EventLeaveSession = "leave_session"
	EventStopSession  = "stop_session"
)

// Envelope is the wire frame for every message on the channel.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// sessionDataUpdate is the payload of a session_data_update event.
type sessionDataUpdate struct {
	ID          string  `json:"id"`
	SessionID   string  `json:"sessionId"`
	Mode        string  `json:"mode"`
	Temperature float64 `json:"temperature"`
	Humidity    float64 `json:"humidity"`
	Fan         bool    `json:"fan"`
	Timestamp   string  `json:"timestamp"`
}

// sessionStatusUpdate is the payload of session_finished and
// session_stopped_manual events. EndedAt may be absent.
type sessionStatusUpdate struct {
	SessionID string `json:"sessionId"`
	Status    string `json:"status"`
	EndedAt   string `json:"endedAt"`
}

// sessionStarted is the payload of a session_started event.
type sessionStarted struct {
	SessionID string `json:"sessionId"`
	PatientID string `json:"patientId"`
}

// roomRef is the payload of outbound room and stop commands.
type roomRef struct {
	SessionID string `json:"sessionId"`
}
