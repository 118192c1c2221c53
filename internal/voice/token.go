package voice

import (
	"context"
	"sync"
)

// Token is an explicit cancellation handle. The session owns one per join
// and hands it to every polling loop and deferred callback it starts, so a
// leave invalidates all of them at once and late async results are ignored.
type Token struct {
	once sync.Once
	ch   chan struct{}
}

// NewToken returns a live token.
func NewToken() *Token {
	return &Token{ch: make(chan struct{})}
}

// Cancel invalidates the token. Safe to call multiple times.
func (t *Token) Cancel() {
	t.once.Do(func() { close(t.ch) })
}

// Cancelled reports whether the token has been invalidated.
func (t *Token) Cancelled() bool {
	select {
	case <-t.ch:
		return true
	default:
		return false
	}
}

// Done returns a channel closed on cancellation.
func (t *Token) Done() <-chan struct{} {
	return t.ch
}

// Context derives a context cancelled when either the parent or the token
// is cancelled.
func (t *Token) Context(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)
	go func() {
		select {
		case <-t.ch:
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, cancel
}
