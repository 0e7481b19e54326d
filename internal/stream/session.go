package stream

import (
	"context"
	"sync"
)

// Session is the handle of one open stream.
// A nil *Session is valid: Cancel is a no-op and Done is already closed.
type Session struct {
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

// NewSession runs fn in a goroutine with a context derived from parent.
// Cancel cancels that context; Done closes when fn returns.
func NewSession(parent context.Context, fn func(ctx context.Context)) *Session {
	ctx, cancel := context.WithCancel(parent)
	s := &Session{cancel: cancel, done: make(chan struct{})}
	go func() {
		defer close(s.done)
		defer cancel()
		fn(ctx)
	}()
	return s
}

// Cancel stops the stream. It is safe to call any number of times, before or
// after the stream finished.
func (s *Session) Cancel() {
	if s == nil {
		return
	}
	s.once.Do(s.cancel)
}

var closed = func() chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}()

// Done returns a channel that is closed once the stream goroutine has returned.
func (s *Session) Done() <-chan struct{} {
	if s == nil {
		return closed
	}
	return s.done
}

// Wait blocks until the stream goroutine has returned or ctx is done.
func (s *Session) Wait(ctx context.Context) error {
	select {
	case <-s.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
