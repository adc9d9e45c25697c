// Package cache holds the client's in-memory view of backend state: the
// session collection and the per-session measurement series. Both are fed
// by REST loads and real-time events and read by the CLI rendering loop.
package cache

import (
	"sync"

	"github.com/mkurniadi/biliwatch/internal/models"
)

// SessionCache is the canonical client-side session collection plus the
// derived set of active (running) sessions. The active subset is
// recomputed in full after every mutation rather than patched
// incrementally, so a bad partial update cannot make the two views drift.
type SessionCache struct {
	mu       sync.RWMutex
	sessions []*models.Session
	byID     map[string]*models.Session
	active   []*models.Session
}

// NewSessionCache returns an empty cache.
func NewSessionCache() *SessionCache {
	return &SessionCache{byID: make(map[string]*models.Session)}
}

// ReplaceAll swaps in a fresh collection, e.g. from a full REST reload.
// Sessions are copied so later mutations stay private to the cache.
func (c *SessionCache) ReplaceAll(sessions []*models.Session) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.sessions = make([]*models.Session, 0, len(sessions))
	c.byID = make(map[string]*models.Session, len(sessions))
	for _, s := range sessions {
		cp := *s
		c.sessions = append(c.sessions, &cp)
		c.byID[cp.ID] = &cp
	}
	c.recomputeActive()
}

// Add appends a newly created session.
func (c *SessionCache) Add(s *models.Session) {
	c.mu.Lock()
	defer c.mu.Unlock()

	cp := *s
	c.sessions = append(c.sessions, &cp)
	c.byID[cp.ID] = &cp
	c.recomputeActive()
}

// UpsertPartial merges a patch into the session with the given id.
// An unknown id is a silent no-op: status events can race ahead of the
// initial session load and must not error. A patch that would move a
// terminal session back to running is ignored.
func (c *SessionCache) UpsertPartial(id string, patch models.SessionPatch) {
	c.mu.Lock()
	defer c.mu.Unlock()

	s, ok := c.byID[id]
	if !ok {
		return
	}
	if s.Status.Terminal() && patch.Status != nil && *patch.Status == models.SessionStatusRunning {
		return
	}
	patch.Apply(s)
	c.recomputeActive()
}

// Get returns a copy of the session with the given id.
func (c *SessionCache) Get(id string) (models.Session, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	s, ok := c.byID[id]
	if !ok {
		return models.Session{}, false
	}
	return *s, true
}

// All returns a copy of the full collection in insertion order.
func (c *SessionCache) All() []models.Session {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return copySessions(c.sessions)
}

// Active returns a copy of the running sessions in insertion order.
func (c *SessionCache) Active() []models.Session {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return copySessions(c.active)
}

// ActiveCount returns the number of running sessions.
func (c *SessionCache) ActiveCount() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.active)
}

// ByPatient returns the sessions for one patient, preserving order.
func (c *SessionCache) ByPatient(patientID string) []models.Session {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var out []models.Session
	for _, s := range c.sessions {
		if s.PatientID == patientID {
			out = append(out, *s)
		}
	}
	return out
}

// recomputeActive rebuilds the active subset. Callers hold the write lock.
func (c *SessionCache) recomputeActive() {
	c.active = c.active[:0]
	for _, s := range c.sessions {
		if s.Status == models.SessionStatusRunning {
			c.active = append(c.active, s)
		}
	}
}

func copySessions(in []*models.Session) []models.Session {
	out := make([]models.Session, len(in))
	for i, s := range in {
		out[i] = *s
	}
	return out
}
