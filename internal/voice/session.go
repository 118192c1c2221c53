package voice

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"chessroam/internal/signal"
	"chessroam/pkg/logger"
)

// State is the session lifecycle. Leave always returns to StateIdle; a
// failure during join cleans up and returns to StateIdle as well.
type State int

const (
	StateIdle State = iota
	StateConnecting
	StateConnected
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	default:
		return "idle"
	}
}

const (
	// peerOpenTimeout bounds peer-handle registration with the broker.
	peerOpenTimeout = 15 * time.Second
	// signalConnectTimeout bounds the signaling connection.
	signalConnectTimeout = 10 * time.Second

	// CallJitterMin/Max spread outbound calls to existing peers across a
	// random delay so a well-populated room does not see a burst of
	// simultaneous connection attempts from each newcomer.
	CallJitterMin = 500 * time.Millisecond
	CallJitterMax = 1500 * time.Millisecond

	// levelPollInterval drives the audio-level meters.
	levelPollInterval = 50 * time.Millisecond
	// speakingThreshold is the meter level above which a participant is
	// shown as speaking.
	speakingThreshold = 30
)

// ErrSessionClosed is returned when a join is interrupted by Leave.
var ErrSessionClosed = errors.New("voice: session closed")

// Participant is the visible state of one remote peer. Entries appear
// provisionally as soon as the peer is known and carry live audio levels
// once its stream arrives.
type Participant struct {
	PeerID     string
	UserID     string
	Name       string
	Avatar     string
	IsMuted    bool
	IsSpeaking bool
	AudioLevel uint8
}

// activeCall associates a call with its playback sink and meter.
type activeCall struct {
	call  Call
	sink  AudioSink
	meter LevelMeter
}

// Config wires a Session to its platform capabilities and identity.
type Config struct {
	UserID     string
	UserName   string
	UserAvatar string

	Signaling SignalingFactory
	Peers     PeerProvider
	Media     MediaDevice
	NewMeter  MeterFactory
	NewSink   SinkFactory
}

// Session orchestrates one user's membership in a voice room: microphone
// capture, the peer audio mesh, per-participant level metering, mute/deafen,
// and teardown. Only one join may be active at a time per instance.
type Session struct {
	cfg Config

	mu            sync.Mutex
	state         State
	roomID        string
	sig           Signaling
	handle        PeerHandle
	local         MediaStream
	localMeter    LevelMeter
	localLevel    uint8
	localSpeaking bool
	muted         bool
	deafened      bool
	errMsg        string
	participants  map[string]*Participant // by peer id
	calls         map[string]*activeCall  // by peer id
	pending       map[string]bool         // outbound call attempts in flight
	token         *Token
}

// NewSession returns an idle session.
func NewSession(cfg Config) *Session {
	return &Session{
		cfg:          cfg,
		participants: make(map[string]*Participant),
		calls:        make(map[string]*activeCall),
		pending:      make(map[string]bool),
	}
}

// Join runs the full join sequence against roomID. Each step's failure
// unwinds everything built by the prior steps and leaves the session idle
// and retryable.
func (s *Session) Join(ctx context.Context, roomID string) error {
	s.mu.Lock()
	if s.state != StateIdle {
		s.mu.Unlock()
		return fmt.Errorf("voice: already %s", s.state)
	}
	s.state = StateConnecting
	s.roomID = roomID
	s.errMsg = ""
	tok := NewToken()
	s.token = tok
	s.mu.Unlock()

	// 1. Microphone capture. A Leave that landed while the step was in
	// flight already ran teardown, so the fresh resource must be closed
	// here; storing it would leak it past the session reset.
	local, err := s.cfg.Media.CaptureAudio(ctx, CaptureOptions{
		EchoCancellation: true,
		NoiseSuppression: true,
		AutoGainControl:  true,
	})
	if err != nil {
		return s.abortJoin(tok, fmt.Errorf("microphone access failed: %w", err))
	}
	if !s.own(tok, func() { s.local = local }) {
		_ = local.Close()
		return ErrSessionClosed
	}

	// 2. Local audio-level analysis graph.
	meter, err := s.cfg.NewMeter(local)
	if err != nil {
		return s.abortJoin(tok, fmt.Errorf("audio analysis failed: %w", err))
	}
	if !s.own(tok, func() { s.localMeter = meter }) {
		_ = meter.Close()
		return ErrSessionClosed
	}

	// 3. Routable peer handle, bounded by the broker timeout.
	openCtx, cancelOpen := tok.Context(ctx)
	openCtx, cancelTimeout := context.WithTimeout(openCtx, peerOpenTimeout)
	handle, err := s.cfg.Peers.Open(openCtx, uuid.NewString())
	cancelTimeout()
	cancelOpen()
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			err = errors.New("peer registration timed out")
		}
		return s.abortJoin(tok, fmt.Errorf("peer setup failed: %w", err))
	}
	if !s.own(tok, func() { s.handle = handle }) {
		_ = handle.Close()
		return ErrSessionClosed
	}

	// 5. Signaling connection to the room namespace, bounded independently.
	// (The inbound-call handler in run() starts before the join
	// announcement below, satisfying the step-4-before-step-6 ordering.)
	sig := s.cfg.Signaling()
	dialCtx, cancelDial := tok.Context(ctx)
	dialCtx, cancelDialTimeout := context.WithTimeout(dialCtx, signalConnectTimeout)
	err = sig.Connect(dialCtx, roomID)
	cancelDialTimeout()
	cancelDial()
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			err = errors.New("signaling connection timed out")
		}
		return s.abortJoin(tok, fmt.Errorf("signaling failed: %w", err))
	}
	if !s.own(tok, func() { s.sig = sig }) {
		_ = sig.Close()
		return ErrSessionClosed
	}

	if tok.Cancelled() {
		return s.abortJoin(tok, ErrSessionClosed)
	}

	// 4 & 9. Event loop: inbound calls, signaling events, level polling.
	go s.run(tok, sig, handle)

	// 6. Announce presence.
	err = sig.Send(signal.Message{
		Type:   signal.TypeJoin,
		RoomID: roomID,
		Payload: signal.JoinPayload{
			UserID:     s.cfg.UserID,
			PeerID:     handle.ID(),
			UserName:   s.cfg.UserName,
			UserAvatar: s.cfg.UserAvatar,
		},
	})
	if err != nil {
		return s.abortJoin(tok, fmt.Errorf("join announcement failed: %w", err))
	}

	if !s.own(tok, func() { s.state = StateConnected }) {
		return ErrSessionClosed
	}
	logger.Info("voice joined", "roomId", roomID, "peerId", handle.ID())
	return nil
}

// own stores a join-step result only while tok still owns the session.
// It reports false when a concurrent Leave already tore the session down,
// in which case the caller must release the resource itself.
func (s *Session) own(tok *Token, assign func()) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.token != tok {
		return false
	}
	assign()
	return true
}

// abortJoin records the terminal error, unwinds partial state and leaves the
// session idle.
func (s *Session) abortJoin(tok *Token, err error) error {
	s.mu.Lock()
	s.errMsg = err.Error()
	s.mu.Unlock()
	s.teardown(tok)
	logger.Warn("voice join aborted", "error", err)
	return err
}

// run consumes signaling events and inbound calls, and drives the local
// level meter, until the token is cancelled.
func (s *Session) run(tok *Token, sig Signaling, handle PeerHandle) {
	ticker := time.NewTicker(levelPollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-tok.Done():
			return
		case msg, ok := <-sig.Events():
			if !ok {
				return
			}
			s.handleSignal(tok, msg)
		case call, ok := <-handle.Incoming():
			if ok {
				s.handleIncoming(tok, call)
			}
		case <-ticker.C:
			s.pollLocalLevel()
		}
	}
}

func (s *Session) handleSignal(tok *Token, msg signal.Message) {
	// The channel may be multiplexed; messages for other rooms are not
	// errors, just not ours.
	if msg.RoomID != "" && msg.RoomID != s.roomID {
		return
	}
	switch msg.Type {
	case signal.TypePeerList:
		// 7. Existing members: show them immediately, then call each one
		// after a spread-out delay. The newcomer always initiates.
		var pl signal.PeerListPayload
		if err := signal.DecodePayload(msg.Payload, &pl); err != nil {
			return
		}
		for _, peer := range pl.Peers {
			s.onExistingPeer(tok, peer)
		}
	case signal.TypeUserJoined:
		// 8. The new peer calls us; initiating here too would race their
		// attempt and produce duplicate calls.
		var p signal.PeerInfo
		if err := signal.DecodePayload(msg.Payload, &p); err != nil {
			return
		}
		s.addProvisional(p)
	case signal.TypeUserLeft:
		var lp signal.LeavePayload
		if err := signal.DecodePayload(msg.Payload, &lp); err != nil {
			return
		}
		s.dropByUser(lp.UserID, lp.PeerID)
	}
}

func (s *Session) onExistingPeer(tok *Token, peer signal.PeerInfo) {
	s.mu.Lock()
	self := s.handle != nil && peer.PeerID == s.handle.ID()
	if self || peer.PeerID == "" {
		s.mu.Unlock()
		return
	}
	s.addProvisionalLocked(peer)
	if s.calls[peer.PeerID] != nil || s.pending[peer.PeerID] {
		s.mu.Unlock()
		return
	}
	s.pending[peer.PeerID] = true
	s.mu.Unlock()

	delay := CallJitterMin + time.Duration(rand.Int63n(int64(CallJitterMax-CallJitterMin)))
	go s.placeCall(tok, peer, delay)
}

func (s *Session) placeCall(tok *Token, peer signal.PeerInfo, delay time.Duration) {
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-tok.Done():
		return
	case <-timer.C:
	}

	s.mu.Lock()
	if s.calls[peer.PeerID] != nil || s.local == nil || s.handle == nil {
		delete(s.pending, peer.PeerID)
		s.mu.Unlock()
		return
	}
	local := s.local
	handle := s.handle
	s.mu.Unlock()

	ctx, cancel := tok.Context(context.Background())
	defer cancel()
	call, err := handle.Call(ctx, peer.PeerID, local, CallMeta{
		UserID:     s.cfg.UserID,
		UserName:   s.cfg.UserName,
		UserAvatar: s.cfg.UserAvatar,
	})
	if err != nil {
		s.mu.Lock()
		delete(s.pending, peer.PeerID)
		s.mu.Unlock()
		logger.Warn("outbound call failed", "peerId", peer.PeerID, "error", err)
		return
	}
	s.registerCall(tok, call)
}

func (s *Session) handleIncoming(tok *Token, call Call) {
	s.mu.Lock()
	local := s.local
	s.mu.Unlock()
	// A call arriving before capture completed cannot be answered with
	// anything; drop it and let the caller retry-free flow handle it.
	if local == nil {
		_ = call.Close()
		return
	}
	if err := call.Answer(local); err != nil {
		_ = call.Close()
		return
	}
	meta := call.Meta()
	s.addProvisional(signal.PeerInfo{
		UserID:     meta.UserID,
		PeerID:     call.PeerID(),
		UserName:   meta.UserName,
		UserAvatar: meta.UserAvatar,
	})
	s.registerCall(tok, call)
}

// registerCall records the call and watches it for its remote stream and
// close, from either the outbound or inbound path.
func (s *Session) registerCall(tok *Token, call Call) {
	s.mu.Lock()
	if old := s.calls[call.PeerID()]; old != nil {
		// Keep the oldest call per peer.
		s.mu.Unlock()
		_ = call.Close()
		return
	}
	s.calls[call.PeerID()] = &activeCall{call: call}
	delete(s.pending, call.PeerID())
	s.mu.Unlock()

	go s.watchCall(tok, call)
}

func (s *Session) watchCall(tok *Token, call Call) {
	select {
	case <-tok.Done():
		_ = call.Close()
		return
	case <-call.Done():
		s.dropCall(call.PeerID())
		return
	case stream, ok := <-call.RemoteStream():
		if ok {
			s.attachRemote(tok, call, stream)
		}
	}
	select {
	case <-tok.Done():
		_ = call.Close()
	case <-call.Done():
		s.dropCall(call.PeerID())
	}
}

// attachRemote plays the remote stream through a per-peer sink and starts
// the level loop that drives the participant's speaking indicator.
func (s *Session) attachRemote(tok *Token, call Call, stream MediaStream) {
	sink := s.cfg.NewSink(call.PeerID())
	if err := sink.Play(stream); err != nil {
		logger.Warn("audio sink failed", "peerId", call.PeerID(), "error", err)
	}
	meter, err := s.cfg.NewMeter(stream)

	s.mu.Lock()
	ac := s.calls[call.PeerID()]
	if ac == nil || tok.Cancelled() {
		s.mu.Unlock()
		sink.Close()
		if meter != nil {
			meter.Close()
		}
		return
	}
	ac.sink = sink
	sink.SetMuted(s.deafened)
	if err == nil {
		ac.meter = meter
	}
	s.mu.Unlock()

	if err == nil {
		go s.pollPeerLevel(tok, call.PeerID(), meter)
	}
}

// pollPeerLevel mirrors the local meter loop for one remote participant.
func (s *Session) pollPeerLevel(tok *Token, peerID string, meter LevelMeter) {
	ticker := time.NewTicker(levelPollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-tok.Done():
			return
		case <-ticker.C:
			level := meter.Level()
			s.mu.Lock()
			p := s.participants[peerID]
			if p == nil {
				s.mu.Unlock()
				return
			}
			p.AudioLevel = level
			p.IsSpeaking = level > speakingThreshold
			s.mu.Unlock()
		}
	}
}

func (s *Session) pollLocalLevel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.localMeter == nil {
		return
	}
	s.localLevel = s.localMeter.Level()
	s.localSpeaking = !s.muted && s.localLevel > speakingThreshold
}

func (s *Session) addProvisional(p signal.PeerInfo) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.addProvisionalLocked(p)
}

func (s *Session) addProvisionalLocked(p signal.PeerInfo) {
	if p.PeerID == "" || (s.handle != nil && p.PeerID == s.handle.ID()) {
		return
	}
	if _, ok := s.participants[p.PeerID]; ok {
		return
	}
	s.participants[p.PeerID] = &Participant{
		PeerID: p.PeerID,
		UserID: p.UserID,
		Name:   p.UserName,
		Avatar: p.UserAvatar,
	}
}

// dropCall removes the call record, its sink and meter, the participant
// entry, and any pending marker for the peer.
func (s *Session) dropCall(peerID string) {
	s.mu.Lock()
	ac := s.calls[peerID]
	delete(s.calls, peerID)
	delete(s.pending, peerID)
	delete(s.participants, peerID)
	s.mu.Unlock()
	if ac != nil {
		if ac.sink != nil {
			ac.sink.Close()
		}
		if ac.meter != nil {
			ac.meter.Close()
		}
		_ = ac.call.Close()
	}
}

func (s *Session) dropByUser(userID, peerID string) {
	s.mu.Lock()
	if peerID == "" {
		for id, p := range s.participants {
			if p.UserID == userID {
				peerID = id
				break
			}
		}
	}
	s.mu.Unlock()
	if peerID != "" {
		s.dropCall(peerID)
	}
}

// ToggleMute flips the local capture track's enabled flag. The stream stays
// open so unmuting is instant.
func (s *Session) ToggleMute() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.local == nil {
		return
	}
	s.muted = !s.muted
	s.local.SetEnabled(!s.muted)
}

// ToggleDeafen mutes every remote sink without touching local capture, so a
// deafened user still transmits.
func (s *Session) ToggleDeafen() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deafened = !s.deafened
	for _, ac := range s.calls {
		if ac.sink != nil {
			ac.sink.SetMuted(s.deafened)
		}
	}
}

// Leave is the idempotent full teardown: notify the signaling service, close
// every call and sink, stop local tracks, close the analysis graph and peer
// handle, and reset to idle. Safe to call in any state, any number of times.
func (s *Session) Leave() {
	s.mu.Lock()
	tok := s.token
	s.mu.Unlock()
	if tok == nil {
		return
	}
	s.teardown(tok)
}

func (s *Session) teardown(tok *Token) {
	tok.Cancel()

	s.mu.Lock()
	if s.token != tok {
		// A later join owns the session now; this teardown already ran.
		s.mu.Unlock()
		return
	}
	sig := s.sig
	handle := s.handle
	local := s.local
	meter := s.localMeter
	calls := s.calls
	roomID := s.roomID

	s.sig = nil
	s.handle = nil
	s.local = nil
	s.localMeter = nil
	s.localLevel = 0
	s.localSpeaking = false
	s.muted = false
	s.deafened = false
	s.participants = make(map[string]*Participant)
	s.calls = make(map[string]*activeCall)
	s.pending = make(map[string]bool)
	s.state = StateIdle
	s.token = nil
	s.mu.Unlock()

	if sig != nil {
		_ = sig.Send(signal.Message{
			Type:    signal.TypeLeave,
			RoomID:  roomID,
			Payload: signal.LeavePayload{UserID: s.cfg.UserID},
		})
	}
	for _, ac := range calls {
		if ac.sink != nil {
			ac.sink.Close()
		}
		if ac.meter != nil {
			ac.meter.Close()
		}
		_ = ac.call.Close()
	}
	if local != nil {
		_ = local.Close()
	}
	if meter != nil {
		_ = meter.Close()
	}
	if handle != nil {
		_ = handle.Close()
	}
	if sig != nil {
		_ = sig.Close()
	}
	logger.Info("voice left", "roomId", roomID)
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Err returns the most recent terminal error message, empty when none.
func (s *Session) Err() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.errMsg
}

// Muted reports the local mute state.
func (s *Session) Muted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.muted
}

// Deafened reports the deafen state.
func (s *Session) Deafened() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.deafened
}

// LocalLevel returns the local meter reading and speaking flag.
func (s *Session) LocalLevel() (uint8, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.localLevel, s.localSpeaking
}

// Participants returns a stable-ordered snapshot of visible participants.
func (s *Session) Participants() []Participant {
	s.mu.Lock()
	out := make([]Participant, 0, len(s.participants))
	for _, p := range s.participants {
		out = append(out, *p)
	}
	s.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].PeerID < out[j].PeerID })
	return out
}
