package session

import "context"

// Call is one decoder callback waiting to run on the actor goroutine.
type Call struct {
	fn   func()
	done chan struct{}
}

// Run executes the callback and releases the decoder goroutine waiting on it.
func (c Call) Run() {
	defer close(c.done)
	c.fn()
}

// Mailbox hands decoder callbacks to the actor goroutine one at a time.
// The sender blocks until the actor has run the callback, so a slow actor
// slows the decoder instead of queueing events.
type Mailbox struct {
	ch chan Call
}

// NewMailbox creates an unbuffered mailbox.
func NewMailbox() *Mailbox {
	return &Mailbox{ch: make(chan Call)}
}

// C is read by the actor; every received Call must be Run.
func (m *Mailbox) C() <-chan Call {
	return m.ch
}

// deliver sends fn to the actor and waits for it to run. It gives up when
// ctx is done and reports whether fn ran.
func (m *Mailbox) deliver(ctx context.Context, fn func()) bool {
	call := Call{fn: fn, done: make(chan struct{})}
	select {
	case m.ch <- call:
	case <-ctx.Done():
		return false
	}
	select {
	case <-call.done:
		return true
	case <-ctx.Done():
		return false
	}
}
