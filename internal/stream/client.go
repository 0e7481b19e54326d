// Package stream opens the progress stream for one chat request and decodes
// its Server-Sent Events into typed progress events.
package stream

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/aristath/agentgraph/internal/events"
	"github.com/aristath/agentgraph/internal/logging"
	"github.com/aristath/agentgraph/internal/observability"
)

// maxFrame bounds a single SSE line. Longer lines are dropped, not fatal.
const maxFrame = 4 * 1024 * 1024

// Request is the body of the chat call.
type Request struct {
	Message   string `json:"message"`
	SessionID string `json:"session_id"`
	UserID    string `json:"user_id"`
}

// Result summarizes a stream that ended normally.
type Result struct {
	Text  string // concatenated content fragments
	Agent string // responding agent from response_start or complete
}

// Handlers receive the stream's callbacks. Any of them may be nil.
// OnEvent runs once per decoded event, in wire order. After that exactly one
// of OnComplete or OnError runs, unless the stream was cancelled, in which
// case neither does.
type Handlers struct {
	OnEvent    func(events.Event)
	OnComplete func(Result)
	OnError    func(error)
}

// Opener starts streams. *Client implements it.
type Opener interface {
	Open(ctx context.Context, req Request, h Handlers) *Session
}

// StatusError is returned for a non-2xx response.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("chat endpoint returned status %d: %s", e.Code, e.Body)
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets the HTTP client. It must not have a total timeout
// shorter than the longest expected stream.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithLogger sets the logger for dropped frames and transport errors.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// WithMetrics records stream metrics.
func WithMetrics(m *observability.Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

// Client posts chat requests and decodes the streamed response.
type Client struct {
	url     string
	http    *http.Client
	logger  *slog.Logger
	metrics *observability.Metrics
}

// NewClient creates a client for the chat endpoint at url.
func NewClient(url string, opts ...Option) *Client {
	c := &Client{
		url:    strings.TrimSpace(url),
		http:   &http.Client{},
		logger: logging.Discard(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Open runs Stream in its own goroutine and returns its handle.
func (c *Client) Open(ctx context.Context, req Request, h Handlers) *Session {
	return NewSession(ctx, func(ctx context.Context) {
		_ = c.Stream(ctx, req, h)
	})
}

// Stream performs the request and blocks until the stream ends. It returns
// nil on normal completion, the context error on cancellation, and otherwise
// the transport error that was also passed to OnError.
func (c *Client) Stream(ctx context.Context, req Request, h Handlers) error {
	logger := logging.LogWith(ctx, c.logger)
	finish := c.metrics.StreamStarted()

	res, err := c.consume(ctx, req, h, logger)
	switch {
	case ctx.Err() != nil:
		finish(observability.OutcomeCancelled)
		logger.Debug("stream cancelled")
		return ctx.Err()
	case err != nil:
		finish(observability.OutcomeFailed)
		c.metrics.ObserveStreamError(errorKind(err))
		logger.Error("stream failed", "error", err)
		if h.OnError != nil {
			h.OnError(err)
		}
		return err
	default:
		finish(observability.OutcomeCompleted)
		logger.Debug("stream completed", "agent", res.Agent, "chars", len(res.Text))
		if h.OnComplete != nil {
			h.OnComplete(res)
		}
		return nil
	}
}

func (c *Client) consume(ctx context.Context, req Request, h Handlers, logger *slog.Logger) (Result, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return Result{}, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(payload))
	if err != nil {
		return Result{}, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")

	res, err := c.http.Do(httpReq)
	if err != nil {
		return Result{}, &opError{op: "connect", err: err}
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(res.Body, 4<<10))
		return Result{}, &StatusError{Code: res.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	return c.decode(ctx, res.Body, h, logger)
}

// decode reads SSE lines from body until EOF, [DONE], or cancellation.
// Frames that do not decode, or exceed maxFrame, are logged and skipped.
func (c *Client) decode(ctx context.Context, body io.Reader, h Handlers, logger *slog.Logger) (Result, error) {
	reader := bufio.NewReaderSize(body, 64*1024)

	var (
		res  Result
		text strings.Builder
		buf  []byte
	)
	for {
		if ctx.Err() != nil {
			return res, ctx.Err()
		}
		line, oversized, err := readLine(reader, buf)
		buf = line
		if err != nil && !errors.Is(err, io.EOF) {
			return res, &opError{op: "read", err: err}
		}

		if oversized {
			c.metrics.ObserveDropped()
			logger.Warn("dropping oversized frame", "limit", maxFrame)
		} else if done := c.frame(line, &res, &text, h, logger); done {
			break
		}
		if err != nil {
			break
		}
	}
	if ctx.Err() != nil {
		return res, ctx.Err()
	}

	res.Text = text.String()
	return res, nil
}

// frame handles one SSE line and reports whether it was the [DONE] marker.
func (c *Client) frame(raw []byte, res *Result, text *strings.Builder, h Handlers, logger *slog.Logger) bool {
	line := strings.TrimSpace(string(raw))
	// Blank separators, ": keepalive" comments, and event:/id:/retry: fields carry nothing we use.
	if !strings.HasPrefix(line, "data:") {
		return false
	}
	data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
	if data == "" {
		return false
	}
	if data == "[DONE]" {
		return true
	}

	ev, err := events.Decode([]byte(data))
	if err != nil {
		c.metrics.ObserveDropped()
		logger.Warn("dropping malformed frame", "error", err, "frame", truncate(data, 200))
		return false
	}
	c.metrics.ObserveEvent(ev.EventType())

	switch ev := ev.(type) {
	case events.ContentEvent:
		text.WriteString(ev.Content)
	case events.ResponseStartEvent:
		if ev.Agent != "" {
			res.Agent = ev.Agent
		}
	case events.CompleteEvent:
		if ev.Agent != "" {
			res.Agent = ev.Agent
		}
	case events.UnknownEvent:
		logger.Debug("ignoring unknown event", "type", ev.Type)
	}

	if h.OnEvent != nil {
		h.OnEvent(ev)
	}
	return false
}

// readLine reads up to and including the next newline into buf. A line longer
// than maxFrame is consumed to its end and reported as oversized. At the end
// of the body it returns the unterminated remainder with io.EOF.
func readLine(r *bufio.Reader, buf []byte) ([]byte, bool, error) {
	buf = buf[:0]
	oversized := false
	for {
		chunk, err := r.ReadSlice('\n')
		if !oversized {
			if len(buf)+len(chunk) > maxFrame {
				oversized = true
				buf = buf[:0]
			} else {
				buf = append(buf, chunk...)
			}
		}
		if errors.Is(err, bufio.ErrBufferFull) {
			continue
		}
		return buf, oversized, err
	}
}

// opError tags a transport error with the step that failed.
type opError struct {
	op  string
	err error
}

func (e *opError) Error() string { return e.op + ": " + e.err.Error() }
func (e *opError) Unwrap() error { return e.err }

func errorKind(err error) string {
	var (
		statusErr *StatusError
		op        *opError
	)
	switch {
	case errors.As(err, &statusErr):
		return "status"
	case errors.As(err, &op):
		return op.op
	default:
		return "request"
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
