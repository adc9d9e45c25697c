package models

import (
	"fmt"
	"time"
)

// Measurement is one timestamped environmental sample reported by the
// device while a session runs. Measurements are append-only and never
// mutated after creation.
type Measurement struct {
	ID          string    `json:"id"`
	SessionID   string    `json:"sessionId"`
	Mode        LightMode `json:"mode"`
	Temperature float64   `json:"temperature"` // degrees C
	Humidity    float64   `json:"humidity"`    // percent
	Fan         bool      `json:"fan"`
	Timestamp   string    `json:"timestamp"` // ISO-8601, as delivered
}

// SynthesizeMeasurementID builds a client-side id for measurements the
// backend delivers without one: the owning session id plus the arrival
// time in unix milliseconds.
func SynthesizeMeasurementID(sessionID string, now time.Time) string {
	return fmt.Sprintf("%s-%d", sessionID, now.UnixMilli())
}

// MeasurementStats are simple aggregates over one session's full series.
type MeasurementStats struct {
	AvgTemperature float64 `json:"avgTemperature"`
	AvgHumidity    float64 `json:"avgHumidity"`
	FanOnPct       float64 `json:"fanOnPct"`
	Count          int     `json:"count"`
}
