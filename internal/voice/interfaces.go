// Package voice implements the live community voice layer: the peer voice
// session (mesh audio via a signaling service and a peer transport) and the
// presence tracker (room occupancy preview before joining).
//
// Platform capabilities (microphone capture, peer connections, audio
// playback, level analysis) sit behind interfaces so the session logic runs
// unchanged against real devices or test fakes.
package voice

import (
	"context"

	"chessroam/internal/signal"
)

// Signaling is one bidirectional event channel to the signaling service,
// scoped to a room namespace. Events is closed when the connection drops.
type Signaling interface {
	Connect(ctx context.Context, roomID string) error
	Send(msg signal.Message) error
	Events() <-chan signal.Message
	Close() error
}

// SignalingFactory builds a fresh connection per join or subscription.
type SignalingFactory func() Signaling

// CaptureOptions are the audio processing flags requested from the device.
type CaptureOptions struct {
	EchoCancellation bool
	NoiseSuppression bool
	AutoGainControl  bool
}

// MediaStream is a live audio stream. SetEnabled flips the capture track's
// enabled flag without closing the stream; Close stops all tracks.
type MediaStream interface {
	SetEnabled(enabled bool)
	Enabled() bool
	Close() error
}

// MediaDevice acquires microphone capture.
type MediaDevice interface {
	CaptureAudio(ctx context.Context, opts CaptureOptions) (MediaStream, error)
}

// LevelMeter is an audio-level analysis graph over a stream. Level reads the
// instantaneous amplitude, 0..255.
type LevelMeter interface {
	Level() uint8
	Close() error
}

// MeterFactory builds an analysis graph for a stream.
type MeterFactory func(stream MediaStream) (LevelMeter, error)

// CallMeta is the small metadata payload carried alongside a call.
type CallMeta struct {
	UserID     string
	UserName   string
	UserAvatar string
}

// Call is one peer-to-peer audio call. RemoteStream delivers at most one
// stream; Done is closed when either side hangs up.
type Call interface {
	PeerID() string
	Meta() CallMeta
	Answer(local MediaStream) error
	RemoteStream() <-chan MediaStream
	Done() <-chan struct{}
	Close() error
}

// PeerHandle is a registered, routable peer identity. Incoming delivers
// calls placed to this handle.
type PeerHandle interface {
	ID() string
	Call(ctx context.Context, peerID string, local MediaStream, meta CallMeta) (Call, error)
	Incoming() <-chan Call
	Close() error
}

// PeerProvider registers peer handles with the broker. Open returns once the
// handle is routable or the context expires.
type PeerProvider interface {
	Open(ctx context.Context, id string) (PeerHandle, error)
}

// AudioSink plays a remote stream. Implementations attach the stream to a
// hidden output and, where autoplay is blocked, arm a one-shot resume on the
// next user gesture.
type AudioSink interface {
	Play(stream MediaStream) error
	SetMuted(muted bool)
	Close() error
}

// SinkFactory builds an output sink for one remote peer.
type SinkFactory func(peerID string) AudioSink
