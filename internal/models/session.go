package models

import "time"

// SessionStatus represents the lifecycle state of a treatment session.
type SessionStatus string

const (
	SessionStatusRunning   SessionStatus = "running"
	SessionStatusCompleted SessionStatus = "completed"
	SessionStatusStopped   SessionStatus = "stopped"
)

// Terminal reports whether the status is one of the end states.
// A session never transitions out of a terminal status.
func (s SessionStatus) Terminal() bool {
	return s == SessionStatusCompleted || s == SessionStatusStopped
}

// LightMode is the phototherapy light configuration.
type LightMode string

const (
	LightModeLow  LightMode = "low"
	LightModeHigh LightMode = "high"
	LightModeBoth LightMode = "both"
	LightModeOff  LightMode = "off"
)

// ValidLightMode reports whether s names a known light mode.
func ValidLightMode(s string) bool {
	switch LightMode(s) {
	case LightModeLow, LightModeHigh, LightModeBoth, LightModeOff:
		return true
	}
	return false
}

// Session represents one timed phototherapy treatment run for a patient.
// The backend owns the canonical record; the client mutates its copy in
// place from status events and never deletes it.
type Session struct {
	ID        string        `json:"id"`
	PatientID string        `json:"patientId"`
	TSB       float64       `json:"tsb"` // target serum bilirubin, mg/dL
	Duration  int           `json:"duration"` // planned duration, minutes
	Mode      LightMode     `json:"mode"`
	Status    SessionStatus `json:"status"`
	CreatedAt time.Time     `json:"createdAt"`
	EndedAt   *time.Time    `json:"endedAt,omitempty"`
}

// Active reports whether the session is still running.
func (s *Session) Active() bool {
	return s.Status == SessionStatusRunning
}

// SessionPatch is a partial session update, typically built from a
// real-time status event. Nil fields are left untouched on apply.
type SessionPatch struct {
	Status  *SessionStatus
	EndedAt *time.Time
}

// Apply merges the patch into the session.
func (p SessionPatch) Apply(s *Session) {
	if p.Status != nil {
		s.Status = *p.Status
	}
	if p.EndedAt != nil {
		s.EndedAt = p.EndedAt
	}
}
