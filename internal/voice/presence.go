package voice

import (
	"context"
	"errors"
	"sync"

	"chessroam/internal/signal"
)

// PresenceState is the tracker lifecycle.
type PresenceState int

const (
	PresenceDisconnected PresenceState = iota
	PresenceSubscribing
	PresenceSubscribed
)

// PresenceTracker keeps a read-only view of a voice room's occupancy
// without joining it. It opens its own signaling connection, subscribes to
// the room, and consumes room-info snapshots scoped to that exact room id;
// snapshots for other rooms on the shared channel are ignored.
//
// Connection failure surfaces a single error and stops loading; there is no
// automatic retry, the consumer calls Refresh.
type PresenceTracker struct {
	roomID  string
	factory SignalingFactory

	mu      sync.Mutex
	state   PresenceState
	sig     Signaling
	users   []signal.RoomUser
	loading bool
	errMsg  string
	done    chan struct{}
}

// NewPresenceTracker builds a tracker for roomID.
func NewPresenceTracker(roomID string, factory SignalingFactory) *PresenceTracker {
	return &PresenceTracker{roomID: roomID, factory: factory}
}

// Start connects, subscribes, and begins consuming snapshots. It returns
// once the connection is up; the first snapshot arrives asynchronously.
func (t *PresenceTracker) Start(ctx context.Context) error {
	t.mu.Lock()
	if t.state != PresenceDisconnected {
		t.mu.Unlock()
		return errors.New("presence: already started")
	}
	t.state = PresenceSubscribing
	t.loading = true
	t.errMsg = ""
	t.done = make(chan struct{})
	t.mu.Unlock()

	sig := t.factory()
	dialCtx, cancel := context.WithTimeout(ctx, signalConnectTimeout)
	err := sig.Connect(dialCtx, t.roomID)
	cancel()
	if err != nil {
		t.fail("could not connect to room", sig)
		return err
	}
	if err := sig.Send(signal.Message{Type: signal.TypeSubscribe, RoomID: t.roomID}); err != nil {
		t.fail("could not subscribe to room", sig)
		return err
	}

	t.mu.Lock()
	t.sig = sig
	done := t.done
	t.mu.Unlock()

	go t.consume(sig, done)
	return nil
}

func (t *PresenceTracker) consume(sig Signaling, done chan struct{}) {
	for {
		select {
		case <-done:
			return
		case msg, ok := <-sig.Events():
			if !ok {
				t.mu.Lock()
				if t.state != PresenceDisconnected {
					t.errMsg = "room connection lost"
					t.loading = false
				}
				t.mu.Unlock()
				return
			}
			if msg.Type != signal.TypeRoomInfo || msg.RoomID != t.roomID {
				continue
			}
			var info signal.RoomInfoPayload
			if err := signal.DecodePayload(msg.Payload, &info); err != nil {
				continue
			}
			t.mu.Lock()
			t.users = info.Users
			t.loading = false
			t.state = PresenceSubscribed
			t.mu.Unlock()
		}
	}
}

// Refresh re-requests a snapshot on demand.
func (t *PresenceTracker) Refresh() {
	t.mu.Lock()
	sig := t.sig
	if sig != nil {
		t.loading = true
	}
	t.mu.Unlock()
	if sig != nil {
		_ = sig.Send(signal.Message{Type: signal.TypeSubscribe, RoomID: t.roomID})
	}
}

// Stop unsubscribes and closes the connection. It runs unconditionally so a
// half-finished subscribe does not leak a server-side subscription.
func (t *PresenceTracker) Stop() {
	t.mu.Lock()
	sig := t.sig
	done := t.done
	t.sig = nil
	t.done = nil
	t.state = PresenceDisconnected
	t.users = nil
	t.loading = false
	t.mu.Unlock()

	if done != nil {
		close(done)
	}
	if sig != nil {
		_ = sig.Send(signal.Message{Type: signal.TypeUnsubscribe, RoomID: t.roomID})
		_ = sig.Close()
	}
}

func (t *PresenceTracker) fail(msg string, sig Signaling) {
	t.mu.Lock()
	t.errMsg = msg
	t.loading = false
	t.state = PresenceDisconnected
	if t.done != nil {
		close(t.done)
		t.done = nil
	}
	t.mu.Unlock()
	_ = sig.Close()
}

// Users returns the latest occupancy snapshot.
func (t *PresenceTracker) Users() []signal.RoomUser {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]signal.RoomUser, len(t.users))
	copy(out, t.users)
	return out
}

// Loading reports whether a snapshot is pending.
func (t *PresenceTracker) Loading() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.loading
}

// Err returns the current error message, empty when none.
func (t *PresenceTracker) Err() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.errMsg
}

// State returns the tracker state.
func (t *PresenceTracker) State() PresenceState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}
