package cache

import (
	"math"
	"sync"

	"github.com/mkurniadi/biliwatch/internal/models"
)

// MeasurementLog accumulates append-only measurement series per session
// and keeps an O(1) latest-by-session pointer. Series reflect arrival
// order; no deduplication or timestamp re-sort is attempted, so a backend
// that redelivers or reorders shows up as-is in Stats and Latest.
type MeasurementLog struct {
	mu        sync.RWMutex
	all       []models.Measurement
	bySession map[string][]models.Measurement
	latest    map[string]models.Measurement
}

// NewMeasurementLog returns an empty log.
func NewMeasurementLog() *MeasurementLog {
	return &MeasurementLog{
		bySession: make(map[string][]models.Measurement),
		latest:    make(map[string]models.Measurement),
	}
}

// Append records one measurement: the flat list, the per-session series,
// and the latest pointer all change under one lock acquisition.
func (l *MeasurementLog) Append(m models.Measurement) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.all = append(l.all, m)
	l.bySession[m.SessionID] = append(l.bySession[m.SessionID], m)
	l.latest[m.SessionID] = m
}

// ReplaceSessionSeries bulk-loads one session's series, e.g. from a
// history fetch, replacing whatever was accumulated for it. The latest
// pointer moves to the last element, or is cleared if the series is empty.
func (l *MeasurementLog) ReplaceSessionSeries(sessionID string, ms []models.Measurement) {
	l.mu.Lock()
	defer l.mu.Unlock()

	series := make([]models.Measurement, len(ms))
	copy(series, ms)
	l.bySession[sessionID] = series

	if len(series) > 0 {
		l.latest[sessionID] = series[len(series)-1]
	} else {
		delete(l.latest, sessionID)
	}
}

// Latest returns the most recently appended measurement for the session.
func (l *MeasurementLog) Latest(sessionID string) (models.Measurement, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	m, ok := l.latest[sessionID]
	return m, ok
}

// Series returns a copy of the session's series in arrival order.
func (l *MeasurementLog) Series(sessionID string) []models.Measurement {
	l.mu.RLock()
	defer l.mu.RUnlock()

	src := l.bySession[sessionID]
	out := make([]models.Measurement, len(src))
	copy(out, src)
	return out
}

// Count returns the number of measurements retained for the session.
func (l *MeasurementLog) Count(sessionID string) int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.bySession[sessionID])
}

// Stats computes aggregates over the session's full retained series.
// Averages and the fan-on percentage are rounded to one decimal place.
// Returns false if no measurements are retained for the session.
func (l *MeasurementLog) Stats(sessionID string) (models.MeasurementStats, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	series := l.bySession[sessionID]
	if len(series) == 0 {
		return models.MeasurementStats{}, false
	}

	var sumTemp, sumHum float64
	fanOn := 0
	for _, m := range series {
		sumTemp += m.Temperature
		sumHum += m.Humidity
		if m.Fan {
			fanOn++
		}
	}

	n := float64(len(series))
	return models.MeasurementStats{
		AvgTemperature: round1(sumTemp / n),
		AvgHumidity:    round1(sumHum / n),
		FanOnPct:       round1(float64(fanOn) / n * 100),
		Count:          len(series),
	}, true
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
