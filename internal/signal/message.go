// Package signal defines the wire schema shared by the signaling server and
// the live-core clients. The channel is room-scoped but potentially
// multiplexed, so every message carries the room id it belongs to.
package signal

import "encoding/json"

// Type enumerates signaling message types.
type Type string

const (
	TypeJoin        Type = "join"
	TypeLeave       Type = "leave"
	TypeSubscribe   Type = "subscribe"
	TypeUnsubscribe Type = "unsubscribe"
	TypePeerList    Type = "peer-list"
	TypeUserJoined  Type = "user-joined"
	TypeUserLeft    Type = "user-left"
	TypeRoomInfo    Type = "room-info"
	TypePing        Type = "ping"
	TypePong        Type = "pong"
	TypeError       Type = "error"
)

// Message is the envelope for every signaling exchange.
type Message struct {
	Type    Type        `json:"type"`
	RoomID  string      `json:"roomId,omitempty"`
	Payload interface{} `json:"payload,omitempty"`
}

// PeerInfo identifies one participant's routable peer handle.
type PeerInfo struct {
	UserID     string `json:"userId"`
	PeerID     string `json:"peerId"`
	UserName   string `json:"userName"`
	UserAvatar string `json:"userAvatar,omitempty"`
}

// JoinPayload announces presence in a room after the peer handle is routable.
type JoinPayload struct {
	UserID     string `json:"userId"`
	PeerID     string `json:"peerId"`
	UserName   string `json:"userName"`
	UserAvatar string `json:"userAvatar,omitempty"`
}

// LeavePayload notifies that a participant is gone.
type LeavePayload struct {
	UserID string `json:"userId"`
	PeerID string `json:"peerId,omitempty"`
}

// PeerListPayload answers a join with the peers already present.
type PeerListPayload struct {
	Peers []PeerInfo `json:"peers"`
}

// RoomUser is a presence-only view of a room member.
type RoomUser struct {
	UserID     string `json:"userId"`
	UserName   string `json:"userName"`
	UserAvatar string `json:"userAvatar,omitempty"`
}

// RoomInfoPayload answers a subscribe with the room occupancy snapshot.
type RoomInfoPayload struct {
	Users []RoomUser `json:"users"`
}

// ErrorPayload carries a terminal error message.
type ErrorPayload struct {
	Message string `json:"message"`
}

// DecodePayload converts the dynamically-typed payload of a decoded Message
// into the concrete payload struct.
func DecodePayload(payload interface{}, out interface{}) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, out)
}
