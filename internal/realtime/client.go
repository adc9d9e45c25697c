// Package realtime maintains the client's single connection to the
// backend's push channel: it owns the reconnect policy, decodes inbound
// events, and applies each one as a single atomic update to the session
// cache or the measurement log.
package realtime

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/mkurniadi/biliwatch/internal/cache"
	"github.com/mkurniadi/biliwatch/internal/models"
)

// State is the connection lifecycle state.
type State string

const (
	StateDisconnected State = "disconnected"
	StateConnecting   State = "connecting"
	StateConnected    State = "connected"
	StateReconnecting State = "reconnecting"
	// StateFailed means the automatic retry budget is spent. Only an
	// explicit Connect leaves this state.
	StateFailed State = "failed"
)

const (
	DefaultMaxAttempts = 5
	DefaultBaseDelay   = time.Second
)

// Notifier surfaces user-visible connection and session events.
// *output.UI satisfies it.
type Notifier interface {
	Info(format string, a ...any)
	Success(format string, a ...any)
	Error(format string, a ...any)
}

// Config configures a Client.
type Config struct {
	// URL of the real-time channel, as supplied by configuration.
	URL string
	// MaxAttempts caps automatic reconnects before giving up.
	// Defaults to DefaultMaxAttempts.
	MaxAttempts int
	// BaseDelay is the first reconnect delay; each further attempt
	// doubles it. Defaults to DefaultBaseDelay.
	BaseDelay time.Duration
	// Dial establishes the transport. Defaults to DialWebSocket.
	Dial DialFunc
	// Notifier receives user-visible events. Required.
	Notifier Notifier
	// Logger receives per-attempt and decode diagnostics.
	// Defaults to slog.Default().
	Logger *slog.Logger
}

// Client owns the process's one real-time transport and dispatches
// decoded events into the caches. All methods are safe for concurrent
// use; transport errors never escape as errors or panics, they only
// drive state transitions.
type Client struct {
	url         string
	clientID    string
	dial        DialFunc
	maxAttempts int
	baseDelay   time.Duration

	sessions     *cache.SessionCache
	measurements *cache.MeasurementLog
	notifier     Notifier
	log          *slog.Logger

	// Injected in tests.
	now   func() time.Time
	after func(time.Duration, func())

	mu           sync.Mutex
	state        State
	transport    Transport
	attempts     int
	lostNotified bool
	// gen is bumped by every explicit Connect/Disconnect; stale read
	// loops and scheduled retries compare it and bow out.
	gen int
}

// NewClient builds a Client wired to the given caches.
func NewClient(cfg Config, sessions *cache.SessionCache, measurements *cache.MeasurementLog) *Client {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = DefaultBaseDelay
	}
	if cfg.Dial == nil {
		cfg.Dial = DialWebSocket
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Client{
		url:          cfg.URL,
		clientID:     ulid.Make().String(),
		dial:         cfg.Dial,
		maxAttempts:  cfg.MaxAttempts,
		baseDelay:    cfg.BaseDelay,
		sessions:     sessions,
		measurements: measurements,
		notifier:     cfg.Notifier,
		log:          cfg.Logger,
		now:          time.Now,
		after:        func(d time.Duration, f func()) { time.AfterFunc(d, f) },
		state:        StateDisconnected,
	}
}

// State returns the current connection state.
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// IsConnected reports whether the transport is live.
func (c *Client) IsConnected() bool {
	return c.State() == StateConnected
}

// Connect establishes the transport. A no-op while a connect is in
// flight or the transport is live, so repeated calls cannot double the
// event stream. From Failed (or Reconnecting) it resets the attempt
// counter and tries again immediately.
func (c *Client) Connect() {
	c.mu.Lock()
	if c.state == StateConnected || c.state == StateConnecting {
		c.mu.Unlock()
		return
	}
	c.gen++
	gen := c.gen
	c.attempts = 0
	c.state = StateConnecting
	c.mu.Unlock()

	c.attempt(gen)
}

// Disconnect tears the transport down and cancels any pending retry.
// No further events are dispatched after it returns.
func (c *Client) Disconnect() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.gen++
	c.state = StateDisconnected
	c.attempts = 0
	c.lostNotified = false
	if c.transport != nil {
		_ = c.transport.Close()
		c.transport = nil
	}
}

// JoinSession subscribes to a session's room. Fire-and-forget: dropped,
// not queued, while the channel is down.
func (c *Client) JoinSession(sessionID string) {
	c.emit(EventJoinSession, roomRef{SessionID: sessionID})
}

// LeaveSession unsubscribes from a session's room.
func (c *Client) LeaveSession(sessionID string) {
	c.emit(EventLeaveSession, roomRef{SessionID: sessionID})
}

// RequestStop emits a stop intent for the session. The authoritative
// confirmation arrives later as a session_stopped_manual event.
func (c *Client) RequestStop(sessionID string) {
	c.emit(EventStopSession, roomRef{SessionID: sessionID})
}

// attempt dials once and transitions on the outcome.
func (c *Client) attempt(gen int) {
	c.mu.Lock()
	if gen != c.gen {
		c.mu.Unlock()
		return
	}
	c.state = StateConnecting
	url, id := c.url, c.clientID
	c.mu.Unlock()

	t, err := c.dial(url, id)

	c.mu.Lock()
	if gen != c.gen {
		c.mu.Unlock()
		if err == nil {
			_ = t.Close()
		}
		return
	}
	if err != nil {
		c.log.Warn("channel connect failed", "url", url, "error", err)
		c.degradeLocked()
		c.mu.Unlock()
		return
	}

	c.transport = t
	c.state = StateConnected
	c.attempts = 0
	c.lostNotified = false
	c.mu.Unlock()

	c.notifier.Success("Connected to real-time updates")
	go c.readLoop(gen, t)
}

// readLoop pumps frames from one transport until it dies.
func (c *Client) readLoop(gen int, t Transport) {
	for {
		env, err := t.Read()
		if err != nil {
			c.connectionLost(gen)
			return
		}
		c.mu.Lock()
		stale := gen != c.gen
		c.mu.Unlock()
		if stale {
			return
		}
		c.dispatch(env)
	}
}

// connectionLost handles a mid-session transport failure.
func (c *Client) connectionLost(gen int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if gen != c.gen {
		return
	}
	c.transport = nil
	if c.state == StateConnected && !c.lostNotified {
		c.lostNotified = true
		c.notifier.Error("Lost connection to real-time updates")
	}
	c.degradeLocked()
}

// degradeLocked schedules the next reconnect attempt or, once the retry
// budget is spent, enters Failed. Retries themselves are logged, not
// surfaced; only the first loss and the final failure notify the user.
// Callers hold c.mu.
func (c *Client) degradeLocked() {
	if c.attempts >= c.maxAttempts {
		c.state = StateFailed
		c.log.Error("reconnect attempts exhausted", "attempts", c.attempts)
		c.notifier.Error("Failed to reconnect to real-time updates")
		return
	}

	c.state = StateReconnecting
	c.attempts++
	delay := c.baseDelay << (c.attempts - 1)
	c.log.Info("scheduling reconnect",
		"attempt", c.attempts, "max", c.maxAttempts, "delay", delay)

	gen := c.gen
	c.after(delay, func() { c.attempt(gen) })
}

// emit sends an outbound command if the channel is up.
func (c *Client) emit(event string, data any) {
	c.mu.Lock()
	t := c.transport
	up := c.state == StateConnected
	c.mu.Unlock()

	if !up || t == nil {
		c.log.Debug("dropping command, channel not connected", "event", event)
		return
	}
	if err := t.Emit(event, data); err != nil {
		c.log.Warn("emit failed", "event", event, "error", err)
	}
}

// dispatch routes one inbound envelope. Malformed payloads are logged
// and dropped; nothing here may panic or the transport pump dies.
func (c *Client) dispatch(env Envelope) {
	switch env.Event {
	case EventSessionDataUpdate:
		c.handleDataUpdate(env.Data)
	case EventSessionFinished:
		if c.handleStatusUpdate(env.Data, models.SessionStatusCompleted) {
			c.notifier.Success("Session completed successfully")
		}
	case EventSessionStoppedManual:
		if c.handleStatusUpdate(env.Data, models.SessionStatusStopped) {
			c.notifier.Info("Session stopped manually")
		}
	case EventSessionStarted:
		var p sessionStarted
		if err := json.Unmarshal(env.Data, &p); err != nil {
			c.log.Warn("bad session_started payload", "error", err)
			return
		}
		c.notifier.Success("Session started for patient %s", p.PatientID)
	case EventSessionStopRequested:
		c.notifier.Info("Session stop requested")
	default:
		c.log.Debug("unhandled event", "event", env.Event)
	}
}

func (c *Client) handleDataUpdate(data json.RawMessage) {
	var p sessionDataUpdate
	if err := json.Unmarshal(data, &p); err != nil {
		c.log.Warn("bad session_data_update payload", "error", err)
		return
	}
	if p.SessionID == "" {
		c.log.Warn("session_data_update without sessionId, dropping")
		return
	}

	id := p.ID
	if id == "" {
		id = models.SynthesizeMeasurementID(p.SessionID, c.now())
	}
	c.measurements.Append(models.Measurement{
		ID:          id,
		SessionID:   p.SessionID,
		Mode:        models.LightMode(p.Mode),
		Temperature: p.Temperature,
		Humidity:    p.Humidity,
		Fan:         p.Fan,
		Timestamp:   p.Timestamp,
	})
}

// handleStatusUpdate applies a terminal status event. The status from
// the payload wins when present; endedAt defaults to now when the
// backend omits it or sends something unparseable.
func (c *Client) handleStatusUpdate(data json.RawMessage, fallback models.SessionStatus) bool {
	var p sessionStatusUpdate
	if err := json.Unmarshal(data, &p); err != nil {
		c.log.Warn("bad session status payload", "error", err)
		return false
	}
	if p.SessionID == "" {
		c.log.Warn("session status event without sessionId, dropping")
		return false
	}

	status := models.SessionStatus(p.Status)
	if p.Status == "" {
		status = fallback
	}

	endedAt := c.now()
	if p.EndedAt != "" {
		if t, err := time.Parse(time.RFC3339, p.EndedAt); err == nil {
			endedAt = t
		}
	}

	c.sessions.UpsertPartial(p.SessionID, models.SessionPatch{
		Status:  &status,
		EndedAt: &endedAt,
	})
	return true
}
