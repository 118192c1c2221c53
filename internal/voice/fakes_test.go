package voice

import (
	"context"
	"errors"
	"sync"

	"chessroam/internal/signal"
)

// fakeSwitchboard emulates the signaling service in memory: join answers
// with the peers already present and broadcasts user-joined/user-left.
type fakeSwitchboard struct {
	mu      sync.Mutex
	conns   map[string][]*fakeSignaling
	members map[string]map[*fakeSignaling]signal.PeerInfo
}

func newFakeSwitchboard() *fakeSwitchboard {
	return &fakeSwitchboard{
		conns:   make(map[string][]*fakeSignaling),
		members: make(map[string]map[*fakeSignaling]signal.PeerInfo),
	}
}

func (b *fakeSwitchboard) factory() SignalingFactory {
	return func() Signaling {
		return &fakeSignaling{board: b, events: make(chan signal.Message, 64)}
	}
}

func (b *fakeSwitchboard) snapshot(roomID string) []signal.RoomUser {
	users := []signal.RoomUser{}
	for _, info := range b.members[roomID] {
		users = append(users, signal.RoomUser{
			UserID: info.UserID, UserName: info.UserName, UserAvatar: info.UserAvatar,
		})
	}
	return users
}

func (b *fakeSwitchboard) broadcast(roomID string, exclude *fakeSignaling, msg signal.Message) {
	for c := range b.members[roomID] {
		if c != exclude {
			c.deliver(msg)
		}
	}
}

type fakeSignaling struct {
	board  *fakeSwitchboard
	roomID string

	mu     sync.Mutex
	closed bool
	events chan signal.Message
}

func (f *fakeSignaling) Connect(ctx context.Context, roomID string) error {
	f.roomID = roomID
	f.board.mu.Lock()
	f.board.conns[roomID] = append(f.board.conns[roomID], f)
	f.board.mu.Unlock()
	return nil
}

func (f *fakeSignaling) deliver(msg signal.Message) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return
	}
	select {
	case f.events <- msg:
	default:
	}
}

func (f *fakeSignaling) Send(msg signal.Message) error {
	b := f.board
	b.mu.Lock()
	defer b.mu.Unlock()
	switch msg.Type {
	case signal.TypeJoin:
		var p signal.JoinPayload
		if err := signal.DecodePayload(msg.Payload, &p); err != nil {
			return err
		}
		if b.members[f.roomID] == nil {
			b.members[f.roomID] = make(map[*fakeSignaling]signal.PeerInfo)
		}
		existing := make([]signal.PeerInfo, 0, len(b.members[f.roomID]))
		for _, info := range b.members[f.roomID] {
			existing = append(existing, info)
		}
		b.members[f.roomID][f] = signal.PeerInfo(p)
		f.deliver(signal.Message{
			Type:    signal.TypePeerList,
			RoomID:  f.roomID,
			Payload: signal.PeerListPayload{Peers: existing},
		})
		b.broadcast(f.roomID, f, signal.Message{
			Type:    signal.TypeUserJoined,
			RoomID:  f.roomID,
			Payload: signal.PeerInfo(p),
		})
	case signal.TypeLeave:
		info, ok := b.members[f.roomID][f]
		if ok {
			delete(b.members[f.roomID], f)
			b.broadcast(f.roomID, f, signal.Message{
				Type:    signal.TypeUserLeft,
				RoomID:  f.roomID,
				Payload: signal.LeavePayload{UserID: info.UserID, PeerID: info.PeerID},
			})
		}
	case signal.TypeSubscribe:
		f.deliver(signal.Message{
			Type:    signal.TypeRoomInfo,
			RoomID:  f.roomID,
			Payload: signal.RoomInfoPayload{Users: b.snapshot(f.roomID)},
		})
	case signal.TypeUnsubscribe:
	}
	return nil
}

func (f *fakeSignaling) Events() <-chan signal.Message { return f.events }

func (f *fakeSignaling) Close() error {
	f.mu.Lock()
	if !f.closed {
		f.closed = true
		close(f.events)
	}
	f.mu.Unlock()
	f.board.mu.Lock()
	delete(f.board.members[f.roomID], f)
	f.board.mu.Unlock()
	return nil
}

// fakePeerNetwork routes fake calls between handles and counts call
// attempts per unordered peer pair.
type fakePeerNetwork struct {
	mu        sync.Mutex
	handles   map[string]*fakeHandle
	pairCalls map[string]int
}

func newFakePeerNetwork() *fakePeerNetwork {
	return &fakePeerNetwork{
		handles:   make(map[string]*fakeHandle),
		pairCalls: make(map[string]int),
	}
}

func (n *fakePeerNetwork) Open(ctx context.Context, id string) (PeerHandle, error) {
	h := &fakeHandle{net: n, id: id, incoming: make(chan Call, 8)}
	n.mu.Lock()
	n.handles[id] = h
	n.mu.Unlock()
	return h, nil
}

func pairKey(a, b string) string {
	if a < b {
		return a + "|" + b
	}
	return b + "|" + a
}

type fakeHandle struct {
	net      *fakePeerNetwork
	id       string
	mu       sync.Mutex
	closed   bool
	incoming chan Call
}

func (h *fakeHandle) ID() string { return h.id }

func (h *fakeHandle) Incoming() <-chan Call { return h.incoming }

func (h *fakeHandle) Call(ctx context.Context, peerID string, local MediaStream, meta CallMeta) (Call, error) {
	h.net.mu.Lock()
	target := h.net.handles[peerID]
	if target == nil {
		h.net.mu.Unlock()
		return nil, errors.New("no such peer")
	}
	h.net.pairCalls[pairKey(h.id, peerID)]++
	h.net.mu.Unlock()

	done := make(chan struct{})
	// Both halves share the done channel, so they must also share the
	// closer; each side may hang up independently.
	hangup := &sync.Once{}
	caller := &fakeCall{peerID: peerID, meta: meta, remote: make(chan MediaStream, 1), done: done, hangup: hangup}
	callee := &fakeCall{peerID: h.id, meta: meta, remote: make(chan MediaStream, 1), done: done, hangup: hangup}
	caller.other = callee
	callee.other = caller
	// The callee hears the caller as soon as the call lands; the caller
	// hears back once the callee answers.
	callee.remote <- local

	target.mu.Lock()
	if target.closed {
		target.mu.Unlock()
		return nil, errors.New("peer gone")
	}
	target.incoming <- callee
	target.mu.Unlock()
	return caller, nil
}

func (h *fakeHandle) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil
	}
	h.closed = true
	close(h.incoming)
	h.net.mu.Lock()
	delete(h.net.handles, h.id)
	h.net.mu.Unlock()
	return nil
}

type fakeCall struct {
	peerID string
	meta   CallMeta
	remote chan MediaStream
	done   chan struct{}
	hangup *sync.Once
	other  *fakeCall
}

func (c *fakeCall) PeerID() string { return c.peerID }

func (c *fakeCall) Meta() CallMeta { return c.meta }

func (c *fakeCall) RemoteStream() <-chan MediaStream { return c.remote }

func (c *fakeCall) Done() <-chan struct{} { return c.done }

func (c *fakeCall) Answer(local MediaStream) error {
	select {
	case c.other.remote <- local:
	default:
	}
	return nil
}

func (c *fakeCall) Close() error {
	c.hangup.Do(func() { close(c.done) })
	return nil
}

// fakeMedia produces fakeStreams and can be told to fail capture.
type fakeMedia struct {
	mu          sync.Mutex
	failCapture bool
	streams     []*fakeStream
}

func (m *fakeMedia) CaptureAudio(ctx context.Context, opts CaptureOptions) (MediaStream, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failCapture {
		return nil, errors.New("permission denied")
	}
	s := &fakeStream{enabled: true}
	m.streams = append(m.streams, s)
	return s, nil
}

type fakeStream struct {
	mu      sync.Mutex
	enabled bool
	closed  bool
}

func (s *fakeStream) SetEnabled(enabled bool) {
	s.mu.Lock()
	s.enabled = enabled
	s.mu.Unlock()
}

func (s *fakeStream) Enabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.enabled
}

func (s *fakeStream) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}

func (s *fakeStream) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

type fakeMeter struct {
	mu     sync.Mutex
	level  uint8
	closed bool
}

func (m *fakeMeter) Level() uint8 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.level
}

func (m *fakeMeter) setLevel(l uint8) {
	m.mu.Lock()
	m.level = l
	m.mu.Unlock()
}

func (m *fakeMeter) Close() error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	return nil
}

func (m *fakeMeter) isClosed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

type fakeSink struct {
	mu     sync.Mutex
	peerID string
	stream MediaStream
	muted  bool
	closed bool
}

func (s *fakeSink) Play(stream MediaStream) error {
	s.mu.Lock()
	s.stream = stream
	s.mu.Unlock()
	return nil
}

func (s *fakeSink) SetMuted(muted bool) {
	s.mu.Lock()
	s.muted = muted
	s.mu.Unlock()
}

func (s *fakeSink) isMuted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.muted
}

func (s *fakeSink) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}

// rig bundles one session's fakes and tracks every resource it created so
// teardown tests can assert nothing leaks.
type rig struct {
	media  *fakeMedia
	meters []*fakeMeter
	sinks  []*fakeSink
	mu     sync.Mutex
}

func newRig(board *fakeSwitchboard, net *fakePeerNetwork, userID, userName string) (*Session, *rig) {
	r := &rig{media: &fakeMedia{}}
	cfg := Config{
		UserID:    userID,
		UserName:  userName,
		Signaling: board.factory(),
		Peers:     net,
		Media:     r.media,
		NewMeter: func(stream MediaStream) (LevelMeter, error) {
			m := &fakeMeter{}
			r.mu.Lock()
			r.meters = append(r.meters, m)
			r.mu.Unlock()
			return m, nil
		},
		NewSink: func(peerID string) AudioSink {
			s := &fakeSink{peerID: peerID}
			r.mu.Lock()
			r.sinks = append(r.sinks, s)
			r.mu.Unlock()
			return s
		},
	}
	return NewSession(cfg), r
}

func (r *rig) allClosed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.media.streams {
		if !s.isClosed() {
			return false
		}
	}
	for _, m := range r.meters {
		if !m.isClosed() {
			return false
		}
	}
	for _, s := range r.sinks {
		s.mu.Lock()
		closed := s.closed
		s.mu.Unlock()
		if !closed {
			return false
		}
	}
	return true
}

// gatedMedia holds CaptureAudio until released; used to exercise a leave
// that lands while the device is still opening.
type gatedMedia struct {
	inner   *fakeMedia
	entered chan struct{}
	release chan struct{}
}

func newGatedMedia(inner *fakeMedia) *gatedMedia {
	return &gatedMedia{
		inner:   inner,
		entered: make(chan struct{}),
		release: make(chan struct{}),
	}
}

func (g *gatedMedia) CaptureAudio(ctx context.Context, opts CaptureOptions) (MediaStream, error) {
	close(g.entered)
	<-g.release
	return g.inner.CaptureAudio(ctx, opts)
}

// blockingProvider blocks Open until the context is cancelled; used to
// exercise leave-during-connecting.
type blockingProvider struct{}

func (blockingProvider) Open(ctx context.Context, id string) (PeerHandle, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}
