package voice

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chessroam/internal/signal"
)

func TestPresenceSnapshot(t *testing.T) {
	board := newFakeSwitchboard()
	net := newFakePeerNetwork()
	s, _ := newRig(board, net, "ua", "Anna")
	require.NoError(t, s.Join(context.Background(), "athens"))
	defer s.Leave()

	tr := NewPresenceTracker("athens", board.factory())
	require.NoError(t, tr.Start(context.Background()))
	defer tr.Stop()

	waitFor(t, 2*time.Second, func() bool { return !tr.Loading() })
	users := tr.Users()
	require.Len(t, users, 1)
	assert.Equal(t, "ua", users[0].UserID)
	assert.Equal(t, "Anna", users[0].UserName)
	assert.Equal(t, PresenceSubscribed, tr.State())
}

func TestPresenceRefreshSeesNewcomers(t *testing.T) {
	board := newFakeSwitchboard()
	net := newFakePeerNetwork()

	tr := NewPresenceTracker("athens", board.factory())
	require.NoError(t, tr.Start(context.Background()))
	defer tr.Stop()
	waitFor(t, 2*time.Second, func() bool { return !tr.Loading() })
	assert.Empty(t, tr.Users())

	s, _ := newRig(board, net, "ub", "Boris")
	require.NoError(t, s.Join(context.Background(), "athens"))
	defer s.Leave()

	tr.Refresh()
	waitFor(t, 2*time.Second, func() bool { return len(tr.Users()) == 1 })
}

func TestPresenceIgnoresOtherRooms(t *testing.T) {
	board := newFakeSwitchboard()
	var conn *fakeSignaling
	factory := func() Signaling {
		conn = board.factory()().(*fakeSignaling)
		return conn
	}

	tr := NewPresenceTracker("athens", factory)
	require.NoError(t, tr.Start(context.Background()))
	defer tr.Stop()
	waitFor(t, 2*time.Second, func() bool { return !tr.Loading() })

	// Snapshots for other rooms on the shared channel must not clobber ours.
	conn.deliver(signal.Message{
		Type:    signal.TypeRoomInfo,
		RoomID:  "patras",
		Payload: signal.RoomInfoPayload{Users: []signal.RoomUser{{UserID: "ux"}}},
	})
	time.Sleep(100 * time.Millisecond)
	assert.Empty(t, tr.Users())
}

type failingSignaling struct {
	events chan signal.Message
}

func (f *failingSignaling) Connect(ctx context.Context, roomID string) error {
	return errors.New("dial refused")
}
func (f *failingSignaling) Send(msg signal.Message) error { return errors.New("not connected") }

func (f *failingSignaling) Events() <-chan signal.Message { return f.events }

func (f *failingSignaling) Close() error { return nil }

func TestPresenceConnectFailure(t *testing.T) {
	tr := NewPresenceTracker("athens", func() Signaling {
		return &failingSignaling{events: make(chan signal.Message)}
	})
	err := tr.Start(context.Background())
	require.Error(t, err)
	assert.Equal(t, PresenceDisconnected, tr.State())
	assert.False(t, tr.Loading())
	assert.Equal(t, "could not connect to room", tr.Err())

	// A failed tracker can be started again.
	board := newFakeSwitchboard()
	tr2 := NewPresenceTracker("athens", board.factory())
	require.NoError(t, tr2.Start(context.Background()))
	tr2.Stop()
}

func TestPresenceStopClearsState(t *testing.T) {
	board := newFakeSwitchboard()
	tr := NewPresenceTracker("athens", board.factory())
	require.NoError(t, tr.Start(context.Background()))
	waitFor(t, 2*time.Second, func() bool { return tr.State() == PresenceSubscribed })

	tr.Stop()
	assert.Equal(t, PresenceDisconnected, tr.State())
	assert.Empty(t, tr.Users())
	assert.False(t, tr.Loading())
	tr.Stop() // safe twice
}
