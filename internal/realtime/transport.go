package realtime

import (
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/gorilla/websocket"
)

// Transport is one live connection to the backend's real-time channel.
// Read blocks until a frame arrives or the connection dies.
type Transport interface {
	Read() (Envelope, error)
	Emit(event string, data any) error
	Close() error
}

// DialFunc establishes a Transport. The client calls it for the initial
// connect and for every reconnect attempt.
type DialFunc func(rawURL, clientID string) (Transport, error)

const dialTimeout = 5 * time.Second

// DialWebSocket connects a gorilla/websocket transport. The client id is
// passed as a query parameter so the backend can correlate reconnects.
func DialWebSocket(rawURL, clientID string) (Transport, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse channel url: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	}
	q := u.Query()
	q.Set("clientId", clientID)
	u.RawQuery = q.Encode()

	dialer := websocket.Dialer{HandshakeTimeout: dialTimeout}
	conn, resp, err := dialer.Dial(u.String(), http.Header{})
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", u.Host, err)
	}
	return &wsTransport{conn: conn}, nil
}

type wsTransport struct {
	conn *websocket.Conn
}

func (t *wsTransport) Read() (Envelope, error) {
	var env Envelope
	if err := t.conn.ReadJSON(&env); err != nil {
		return Envelope{}, err
	}
	return env, nil
}

func (t *wsTransport) Emit(event string, data any) error {
	return t.conn.WriteJSON(struct {
		Event string `json:"event"`
		Data  any    `json:"data"`
	}{Event: event, Data: data})
}

func (t *wsTransport) Close() error {
	// Best-effort close frame so the server sees a clean shutdown.
	_ = t.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	return t.conn.Close()
}
