package models

import "time"

// Progress returns the percent of the session's planned duration elapsed
// at the given time, clamped to [0, 100]. A session that is no longer
// running always reports 100 regardless of the clock.
//
// This is wall-clock arithmetic over CreatedAt, not device-reported
// elapsed time, so a skewed client clock skews the displayed value.
func Progress(s *Session, now time.Time) float64 {
	if s.Status != SessionStatusRunning {
		return 100
	}
	totalMs := float64(s.Duration) * 60_000
	if totalMs <= 0 {
		return 100
	}
	elapsedMs := float64(now.Sub(s.CreatedAt).Milliseconds())
	pct := elapsedMs / totalMs * 100
	if pct < 0 {
		return 0
	}
	if pct > 100 {
		return 100
	}
	return pct
}

// RemainingMinutes returns the whole minutes left before the session's
// planned duration elapses, rounded up. Zero once elapsed time meets or
// exceeds the duration, and zero for any non-running session.
func RemainingMinutes(s *Session, now time.Time) int {
	if s.Status != SessionStatusRunning {
		return 0
	}
	totalMs := int64(s.Duration) * 60_000
	elapsedMs := now.Sub(s.CreatedAt).Milliseconds()
	leftMs := totalMs - elapsedMs
	if leftMs <= 0 {
		return 0
	}
	// Ceiling division
	return int((leftMs + 59_999) / 60_000)
}
