// Package ws is the signaling service for the live community grid: a
// room-scoped WebSocket channel over which voice clients announce
// themselves, discover existing peers, and presence watchers preview room
// occupancy without joining.
package ws

import (
	"context"
	"sync"

	"chessroam/internal/signal"
	"chessroam/pkg/logger"
)

// Registry mirrors room occupancy into durable storage (Redis in
// production) so room snapshots survive instance restarts. Optional; a nil
// registry keeps everything in memory.
type Registry interface {
	AddUser(ctx context.Context, roomID string, user signal.RoomUser) error
	RemoveUser(ctx context.Context, roomID, userID string) error
	ListUsers(ctx context.Context, roomID string) ([]signal.RoomUser, error)
}

// Hub maintains every active room.
type Hub struct {
	mu       sync.RWMutex
	rooms    map[string]*Room
	registry Registry
}

// NewHub builds a hub. registry may be nil.
func NewHub(registry Registry) *Hub {
	return &Hub{rooms: make(map[string]*Room), registry: registry}
}

// Room tracks one voice room's joined members and presence-only
// subscribers.
type Room struct {
	roomID      string
	mu          sync.RWMutex
	members     map[*Conn]signal.PeerInfo
	subscribers map[*Conn]struct{}
}

func (h *Hub) getOrCreateRoom(roomID string) *Room {
	h.mu.Lock()
	defer h.mu.Unlock()
	if r, ok := h.rooms[roomID]; ok {
		return r
	}
	r := &Room{
		roomID:      roomID,
		members:     make(map[*Conn]signal.PeerInfo),
		subscribers: make(map[*Conn]struct{}),
	}
	h.rooms[roomID] = r
	return r
}

func (h *Hub) room(roomID string) *Room {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.rooms[roomID]
}

func (h *Hub) dropRoomIfEmpty(r *Room) {
	r.mu.RLock()
	empty := len(r.members) == 0 && len(r.subscribers) == 0
	r.mu.RUnlock()
	if !empty {
		return
	}
	h.mu.Lock()
	delete(h.rooms, r.roomID)
	h.mu.Unlock()
}

// Join registers c as a member and returns the peers that were already
// present, which the hub sends back as the peer-list. Existing members are
// notified via user-joined; the joiner never gets called by them (the
// joiner initiates, which keeps call setup one-directional per pair).
func (h *Hub) Join(ctx context.Context, roomID string, c *Conn, p signal.PeerInfo) []signal.PeerInfo {
	r := h.getOrCreateRoom(roomID)

	r.mu.Lock()
	existing := make([]signal.PeerInfo, 0, len(r.members))
	for _, info := range r.members {
		existing = append(existing, info)
	}
	r.members[c] = p
	r.mu.Unlock()

	if h.registry != nil {
		if err := h.registry.AddUser(ctx, roomID, signal.RoomUser{
			UserID: p.UserID, UserName: p.UserName, UserAvatar: p.UserAvatar,
		}); err != nil {
			logger.Warn("registry add failed", "roomId", roomID, "error", err)
		}
	}

	r.broadcastMembers(c, signal.Message{
		Type:    signal.TypeUserJoined,
		RoomID:  roomID,
		Payload: p,
	})
	h.pushRoomInfo(ctx, r)
	logger.Info("peer joined", "roomId", roomID, "userId", p.UserID, "peerId", p.PeerID)
	return existing
}

// Leave removes c from the room's membership and notifies the others.
// Safe to call for a connection that never joined.
func (h *Hub) Leave(ctx context.Context, roomID string, c *Conn) {
	r := h.room(roomID)
	if r == nil {
		return
	}
	r.mu.Lock()
	info, wasMember := r.members[c]
	delete(r.members, c)
	r.mu.Unlock()
	if !wasMember {
		return
	}

	if h.registry != nil {
		if err := h.registry.RemoveUser(ctx, roomID, info.UserID); err != nil {
			logger.Warn("registry remove failed", "roomId", roomID, "error", err)
		}
	}

	r.broadcastMembers(c, signal.Message{
		Type:    signal.TypeUserLeft,
		RoomID:  roomID,
		Payload: signal.LeavePayload{UserID: info.UserID, PeerID: info.PeerID},
	})
	h.pushRoomInfo(ctx, r)
	h.dropRoomIfEmpty(r)
	logger.Info("peer left", "roomId", roomID, "userId", info.UserID)
}

// Subscribe registers a presence-only watcher and returns the current
// occupancy snapshot.
func (h *Hub) Subscribe(ctx context.Context, roomID string, c *Conn) []signal.RoomUser {
	r := h.getOrCreateRoom(roomID)
	r.mu.Lock()
	r.subscribers[c] = struct{}{}
	r.mu.Unlock()
	return h.snapshot(ctx, r)
}

// Unsubscribe drops a watcher.
func (h *Hub) Unsubscribe(roomID string, c *Conn) {
	r := h.room(roomID)
	if r == nil {
		return
	}
	r.mu.Lock()
	delete(r.subscribers, c)
	r.mu.Unlock()
	h.dropRoomIfEmpty(r)
}

// Disconnect handles an abrupt connection close: auto-leave plus
// unsubscribe, mirroring an explicit leave.
func (h *Hub) Disconnect(ctx context.Context, roomID string, c *Conn) {
	h.Leave(ctx, roomID, c)
	h.Unsubscribe(roomID, c)
}

// snapshot prefers the durable registry, falling back to in-memory
// membership.
func (h *Hub) snapshot(ctx context.Context, r *Room) []signal.RoomUser {
	if h.registry != nil {
		if users, err := h.registry.ListUsers(ctx, r.roomID); err == nil {
			return users
		}
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	users := make([]signal.RoomUser, 0, len(r.members))
	for _, info := range r.members {
		users = append(users, signal.RoomUser{
			UserID: info.UserID, UserName: info.UserName, UserAvatar: info.UserAvatar,
		})
	}
	return users
}

// pushRoomInfo refreshes every presence subscriber after a membership
// change.
func (h *Hub) pushRoomInfo(ctx context.Context, r *Room) {
	users := h.snapshot(ctx, r)
	msg := signal.Message{
		Type:    signal.TypeRoomInfo,
		RoomID:  r.roomID,
		Payload: signal.RoomInfoPayload{Users: users},
	}
	r.mu.RLock()
	subs := make([]*Conn, 0, len(r.subscribers))
	for c := range r.subscribers {
		subs = append(subs, c)
	}
	r.mu.RUnlock()
	for _, c := range subs {
		_ = c.Send(msg)
	}
}

// broadcastMembers sends msg to every joined member except the sender.
func (r *Room) broadcastMembers(exclude *Conn, msg signal.Message) {
	r.mu.RLock()
	targets := make([]*Conn, 0, len(r.members))
	for c := range r.members {
		if c != exclude {
			targets = append(targets, c)
		}
	}
	r.mu.RUnlock()
	for _, c := range targets {
		if err := c.Send(msg); err != nil {
			logger.Warn("broadcast failed", "roomId", r.roomID, "error", err)
		}
	}
}
