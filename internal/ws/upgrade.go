package ws

import (
	"context"
	"net/http"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"chessroam/internal/signal"
	"chessroam/pkg/logger"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Conn wraps one WebSocket connection with a write lock; gorilla
// connections do not allow concurrent writers.
type Conn struct {
	writeMu sync.Mutex
	conn    *websocket.Conn
}

// Send writes one message to the client.
func (c *Conn) Send(msg signal.Message) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteJSON(msg)
}

// UpgradeVoiceWS upgrades the connection for the voice signaling namespace
// and runs the message loop until the client disconnects.
func UpgradeVoiceWS(hub *Hub) gin.HandlerFunc {
	return func(gc *gin.Context) {
		roomID := strings.TrimSpace(gc.Query("roomId"))
		if roomID == "" {
			gc.JSON(http.StatusBadRequest, gin.H{"error": "roomId required"})
			return
		}
		conn, err := upgrader.Upgrade(gc.Writer, gc.Request, nil)
		if err != nil {
			return
		}
		c := &Conn{conn: conn}
		defer func() {
			// Auto-leave on disconnect, unconditional so a dropped client
			// never leaks membership.
			hub.Disconnect(context.Background(), roomID, c)
			conn.Close()
		}()

		for {
			var msg signal.Message
			if err := conn.ReadJSON(&msg); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
					logger.Warn("websocket read failed", "roomId", roomID, "error", err)
				}
				return
			}
			// The query-string room is authoritative for this connection.
			if msg.RoomID != "" && msg.RoomID != roomID {
				continue
			}
			handleMessage(hub, roomID, c, msg)
		}
	}
}

func handleMessage(hub *Hub, roomID string, c *Conn, msg signal.Message) {
	ctx := context.Background()
	switch msg.Type {
	case signal.TypeJoin:
		var p signal.JoinPayload
		if err := signal.DecodePayload(msg.Payload, &p); err != nil || p.UserID == "" || p.PeerID == "" {
			_ = c.Send(signal.Message{Type: signal.TypeError, RoomID: roomID,
				Payload: signal.ErrorPayload{Message: "invalid join payload"}})
			return
		}
		existing := hub.Join(ctx, roomID, c, signal.PeerInfo(p))
		_ = c.Send(signal.Message{
			Type:    signal.TypePeerList,
			RoomID:  roomID,
			Payload: signal.PeerListPayload{Peers: existing},
		})
	case signal.TypeLeave:
		hub.Leave(ctx, roomID, c)
	case signal.TypeSubscribe:
		users := hub.Subscribe(ctx, roomID, c)
		_ = c.Send(signal.Message{
			Type:    signal.TypeRoomInfo,
			RoomID:  roomID,
			Payload: signal.RoomInfoPayload{Users: users},
		})
	case signal.TypeUnsubscribe:
		hub.Unsubscribe(roomID, c)
	case signal.TypePing:
		_ = c.Send(signal.Message{Type: signal.TypePong, RoomID: roomID})
	}
}
