// Package session wires the stream decoder, the chat reducer and the graph
// projector into a single-flight request runner.
package session

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/aristath/agentgraph/internal/chat"
	"github.com/aristath/agentgraph/internal/events"
	"github.com/aristath/agentgraph/internal/graph"
	"github.com/aristath/agentgraph/internal/logging"
	"github.com/aristath/agentgraph/internal/stream"
)

// ErrBusy is returned by Run when a request is already in flight or the
// text is empty.
var ErrBusy = errors.New("request rejected: another request is in flight or the message is empty")

// Publisher receives every new graph projection.
type Publisher interface {
	Publish(graph.Model)
}

// Options configures a Runner.
type Options struct {
	Opener    stream.Opener
	Mailbox   *Mailbox
	Publisher Publisher       // optional
	Directory graph.Directory // optional
	Logger    *slog.Logger    // optional
	SessionID string
	UserID    string
	Now       func() time.Time // optional, defaults to time.Now
}

// Runner owns the chat state of one client session. All methods, and every
// Call read from its Mailbox, must run on the same goroutine.
type Runner struct {
	opener    stream.Opener
	mailbox   *Mailbox
	publisher Publisher
	directory graph.Directory
	logger    *slog.Logger
	sessionID string
	userID    string
	now       func() time.Time

	state  chat.State
	model  graph.Model
	err    error
	flight *stream.Session
	cancel context.CancelFunc
	gen    uint64
}

// New creates a Runner in the Idle phase.
func New(opts Options) *Runner {
	r := &Runner{
		opener:    opts.Opener,
		mailbox:   opts.Mailbox,
		publisher: opts.Publisher,
		directory: opts.Directory,
		logger:    opts.Logger,
		sessionID: opts.SessionID,
		userID:    opts.UserID,
		now:       opts.Now,
	}
	if r.mailbox == nil {
		r.mailbox = NewMailbox()
	}
	if r.logger == nil {
		r.logger = logging.Discard()
	}
	if r.now == nil {
		r.now = time.Now
	}
	r.model = graph.FromState(r.state, r.directory)
	return r
}

// Mailbox returns the mailbox the actor must drain while a flight is live.
func (r *Runner) Mailbox() *Mailbox { return r.mailbox }

// State returns the current chat state.
func (r *Runner) State() chat.State { return r.state }

// Graph returns the latest projection.
func (r *Runner) Graph() graph.Model { return r.model }

// Err returns the transport error of the last flight, if any.
func (r *Runner) Err() error { return r.err }

// Busy reports whether a flight is live.
func (r *Runner) Busy() bool { return r.flight != nil }

// Reproject rebuilds and publishes the graph from the current state. Call it
// after the directory's display hints change.
func (r *Runner) Reproject() {
	r.apply(r.state)
}

// Send submits text and opens a stream for it. It returns false, and does
// nothing, while another flight is live or when text is empty.
func (r *Runner) Send(ctx context.Context, text string) bool {
	if r.flight != nil {
		return false
	}
	next, eff := chat.Submit(r.state, text, r.now())
	if !eff.Has(chat.EffectOpenStream) {
		return false
	}

	r.gen++
	gen := r.gen
	r.err = nil
	r.apply(next)

	fctx, cancel := context.WithCancel(logging.WithSessionID(ctx, r.sessionID))
	r.cancel = cancel
	logging.LogWith(fctx, r.logger).Info("request submitted", "chars", len(next.Request))

	req := stream.Request{Message: next.Request, SessionID: r.sessionID, UserID: r.userID}
	r.flight = r.opener.Open(fctx, req, stream.Handlers{
		OnEvent: func(ev events.Event) {
			r.mailbox.deliver(fctx, func() { r.onEvent(gen, ev) })
		},
		OnComplete: func(res stream.Result) {
			r.mailbox.deliver(fctx, func() { r.onComplete(gen, res) })
		},
		OnError: func(err error) {
			r.mailbox.deliver(fctx, func() { r.onError(gen, err) })
		},
	})
	return true
}

// Stop cancels the live flight. Task state is kept as it was.
// It returns false when there was nothing to stop.
func (r *Runner) Stop() bool {
	if r.flight == nil && r.state.Phase == chat.Idle {
		return false
	}
	next, _ := chat.Stop(r.state)
	r.endFlight()
	r.apply(next)
	r.logger.Info("request cancelled", "session_id", r.sessionID)
	return true
}

// Run submits text and drives the flight on the calling goroutine until it
// ends or ctx is done. It returns the final state and the transport error.
func (r *Runner) Run(ctx context.Context, text string) (chat.State, error) {
	if !r.Send(ctx, text) {
		return r.state, ErrBusy
	}
	for r.flight != nil {
		select {
		case call := <-r.mailbox.C():
			call.Run()
		case <-ctx.Done():
			r.Stop()
			return r.state, ctx.Err()
		}
	}
	return r.state, r.err
}

func (r *Runner) stale(gen uint64) bool {
	return gen != r.gen || r.flight == nil
}

func (r *Runner) onEvent(gen uint64, ev events.Event) {
	if r.stale(gen) {
		return
	}
	if unknown, ok := ev.(events.UnknownEvent); ok {
		r.logger.Debug("unknown event ignored", "type", unknown.Type)
		return
	}
	logger := r.logger
	if id := ev.TaskID(); id != "" {
		logger = logger.With("task_id", id)
	}
	logger.Debug("event", "type", ev.EventType())

	next, _ := chat.Reduce(r.state, ev, r.now())
	r.apply(next)
}

func (r *Runner) onComplete(gen uint64, res stream.Result) {
	if r.stale(gen) {
		return
	}
	next, _ := chat.Finish(r.state, res.Text, res.Agent)
	r.endFlight()
	r.apply(next)
	r.logger.Info("request completed", "session_id", r.sessionID, "agent", res.Agent, "tasks", len(next.Tasks))
}

func (r *Runner) onError(gen uint64, err error) {
	if r.stale(gen) {
		return
	}
	next, _ := chat.Fail(r.state, err, r.now())
	r.err = err
	r.endFlight()
	r.apply(next)
	r.logger.Error("request failed", "session_id", r.sessionID, "error", err)
}

func (r *Runner) endFlight() {
	if r.flight != nil {
		r.flight.Cancel()
	}
	if r.cancel != nil {
		r.cancel()
	}
	r.flight = nil
	r.cancel = nil
}

func (r *Runner) apply(next chat.State) {
	r.state = next
	r.model = graph.FromState(next, r.directory)
	if r.publisher != nil {
		r.publisher.Publish(r.model)
	}
}
