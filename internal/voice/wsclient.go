package voice

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"

	"github.com/gorilla/websocket"

	"chessroam/internal/signal"
)

// WSSignaling is the production Signaling implementation: a gorilla
// WebSocket connection to the server's voice namespace.
type WSSignaling struct {
	baseURL string

	writeMu sync.Mutex
	conn    *websocket.Conn
	events  chan signal.Message
	closed  sync.Once
}

// NewWSSignaling builds a client for a server base URL such as
// "http://localhost:8099"; the scheme is rewritten for WebSocket.
func NewWSSignaling(baseURL string) *WSSignaling {
	return &WSSignaling{
		baseURL: baseURL,
		events:  make(chan signal.Message, 32),
	}
}

// WSFactory adapts NewWSSignaling to the SignalingFactory shape.
func WSFactory(baseURL string) SignalingFactory {
	return func() Signaling { return NewWSSignaling(baseURL) }
}

// Connect dials the room namespace. The caller bounds it with a context.
func (w *WSSignaling) Connect(ctx context.Context, roomID string) error {
	u, err := url.Parse(w.baseURL)
	if err != nil {
		return fmt.Errorf("signaling url: %w", err)
	}
	switch {
	case u.Scheme == "https":
		u.Scheme = "wss"
	case u.Scheme == "http" || u.Scheme == "":
		u.Scheme = "ws"
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + "/ws/voice"
	q := u.Query()
	q.Set("roomId", roomID)
	u.RawQuery = q.Encode()

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return fmt.Errorf("signaling dial: %w", err)
	}
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	w.conn = conn
	go w.readLoop()
	return nil
}

func (w *WSSignaling) readLoop() {
	defer close(w.events)
	for {
		var msg signal.Message
		if err := w.conn.ReadJSON(&msg); err != nil {
			return
		}
		select {
		case w.events <- msg:
		default:
			// A consumer that stopped draining loses oldest-first rather
			// than wedging the read loop.
			select {
			case <-w.events:
			default:
			}
			w.events <- msg
		}
	}
}

// Send writes one message. Safe for concurrent use.
func (w *WSSignaling) Send(msg signal.Message) error {
	w.writeMu.Lock()
	defer w.writeMu.Unlock()
	if w.conn == nil {
		return fmt.Errorf("signaling: not connected")
	}
	return w.conn.WriteJSON(msg)
}

// Events returns the inbound message stream; closed when the connection
// drops.
func (w *WSSignaling) Events() <-chan signal.Message {
	return w.events
}

// Close shuts the connection down.
func (w *WSSignaling) Close() error {
	var err error
	w.closed.Do(func() {
		if w.conn != nil {
			w.writeMu.Lock()
			_ = w.conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			w.writeMu.Unlock()
			err = w.conn.Close()
		}
	})
	return err
}
