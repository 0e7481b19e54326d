package stream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"testing/iotest"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/aristath/agentgraph/internal/events"
	"github.com/aristath/agentgraph/internal/logging"
	"github.com/aristath/agentgraph/internal/observability"
)

// recorder collects callbacks; it is safe for use from the stream goroutine.
type recorder struct {
	mu        sync.Mutex
	events    []events.Event
	results   []Result
	errs      []error
	firstSeen chan struct{}
	once      sync.Once
}

func newRecorder() *recorder {
	return &recorder{firstSeen: make(chan struct{})}
}

func (r *recorder) handlers() Handlers {
	return Handlers{
		OnEvent: func(ev events.Event) {
			r.mu.Lock()
			r.events = append(r.events, ev)
			r.mu.Unlock()
			r.once.Do(func() { close(r.firstSeen) })
		},
		OnComplete: func(res Result) {
			r.mu.Lock()
			r.results = append(r.results, res)
			r.mu.Unlock()
		},
		OnError: func(err error) {
			r.mu.Lock()
			r.errs = append(r.errs, err)
			r.mu.Unlock()
		},
	}
}

func (r *recorder) counts() (int, int, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events), len(r.results), len(r.errs)
}

func sseServer(t *testing.T, lines ...string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		for _, l := range lines {
			fmt.Fprintln(w, l)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestStreamDecodesEvents(t *testing.T) {
	srv := sseServer(t,
		": keepalive",
		"",
		`data: {"type":"thinking","message":"Starting"}`,
		"",
		"event: progress",
		`data: {"type":"response_start","agent":"Coder"}`,
		"",
		`data: {"type":"content","content":"Hel"}`,
		"",
		`data: {"type":"content","content":"lo"}`,
		"",
		`data: {"type":"complete","agent":"Coder"}`,
		"",
		"data: [DONE]",
		"",
		`data: {"type":"content","content":"after done"}`,
	)

	rec := newRecorder()
	err := NewClient(srv.URL).Stream(context.Background(), Request{Message: "hi"}, rec.handlers())
	if err != nil {
		t.Fatalf("Stream() error = %v", err)
	}

	var types []string
	for _, ev := range rec.events {
		types = append(types, ev.EventType())
	}
	want := []string{"thinking", "response_start", "content", "content", "complete"}
	if strings.Join(types, ",") != strings.Join(want, ",") {
		t.Errorf("event types = %v, want %v", types, want)
	}
	if len(rec.results) != 1 || len(rec.errs) != 0 {
		t.Fatalf("results = %d, errs = %d", len(rec.results), len(rec.errs))
	}
	if got := rec.results[0]; got.Text != "Hello" || got.Agent != "Coder" {
		t.Errorf("Result = %+v", got)
	}
}

func TestStreamRequest(t *testing.T) {
	var got Request
	var contentType, accept string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		contentType = r.Header.Get("Content-Type")
		accept = r.Header.Get("Accept")
		if r.Method != http.MethodPost {
			t.Errorf("method = %s", r.Method)
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
	}))
	defer srv.Close()

	req := Request{Message: "build a function", SessionID: "s-1", UserID: "u-1"}
	if err := NewClient(srv.URL).Stream(context.Background(), req, Handlers{}); err != nil {
		t.Fatalf("Stream() error = %v", err)
	}
	if got != req {
		t.Errorf("request body = %+v, want %+v", got, req)
	}
	if contentType != "application/json" || accept != "text/event-stream" {
		t.Errorf("headers = %q, %q", contentType, accept)
	}
}

func TestMalformedFramesDropped(t *testing.T) {
	srv := sseServer(t,
		`data: {"type":"thinking","message":"one"}`,
		`data: {not json`,
		`data: {"message":"no type"}`,
		`data: {"type":"content","content":"two"}`,
	)
	metrics := observability.NewMetrics("test")
	rec := newRecorder()
	client := NewClient(srv.URL, WithMetrics(metrics), WithLogger(logging.Discard()))
	if err := client.Stream(context.Background(), Request{}, rec.handlers()); err != nil {
		t.Fatalf("Stream() error = %v", err)
	}

	evs, results, errs := rec.counts()
	if evs != 2 {
		t.Errorf("events = %d, want 2", evs)
	}
	if results != 1 || errs != 0 {
		t.Errorf("results = %d, errs = %d, want 1, 0", results, errs)
	}
	if got := testutil.ToFloat64(metrics.DroppedFrames); got != 2 {
		t.Errorf("dropped frames = %v, want 2", got)
	}
	if got := testutil.ToFloat64(metrics.Streams.WithLabelValues(observability.OutcomeCompleted)); got != 1 {
		t.Errorf("completed streams = %v, want 1", got)
	}
}

func TestEOFWithoutDone(t *testing.T) {
	srv := sseServer(t, `data: {"type":"content","content":"partial"}`)
	rec := newRecorder()
	if err := NewClient(srv.URL).Stream(context.Background(), Request{}, rec.handlers()); err != nil {
		t.Fatalf("Stream() error = %v", err)
	}
	if len(rec.results) != 1 || rec.results[0].Text != "partial" {
		t.Errorf("results = %+v", rec.results)
	}
}

func TestNon2xxStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "orchestrator down", http.StatusInternalServerError)
	}))
	defer srv.Close()

	metrics := observability.NewMetrics("test")
	rec := newRecorder()
	err := NewClient(srv.URL, WithMetrics(metrics)).Stream(context.Background(), Request{}, rec.handlers())

	var statusErr *StatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("Stream() error = %v, want *StatusError", err)
	}
	if statusErr.Code != http.StatusInternalServerError || statusErr.Body != "orchestrator down" {
		t.Errorf("StatusError = %+v", statusErr)
	}
	evs, results, errs := rec.counts()
	if evs != 0 || results != 0 || errs != 1 {
		t.Errorf("events = %d, results = %d, errs = %d, want 0, 0, 1", evs, results, errs)
	}
	if got := testutil.ToFloat64(metrics.StreamErrors.WithLabelValues("status")); got != 1 {
		t.Errorf("status errors = %v, want 1", got)
	}
}

func TestConnectError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	rec := newRecorder()
	err := NewClient(url).Stream(context.Background(), Request{}, rec.handlers())
	if err == nil {
		t.Fatal("Stream() error = nil, want connect error")
	}
	if errorKind(err) != "connect" {
		t.Errorf("errorKind() = %q, want connect", errorKind(err))
	}
	if _, results, errs := rec.counts(); results != 0 || errs != 1 {
		t.Errorf("results = %d, errs = %d, want 0, 1", results, errs)
	}
}

func TestDecodeSplitReads(t *testing.T) {
	body := strings.Join([]string{
		`data: {"type":"task_started","task_id":"t1","progress":"1/1"}`,
		"",
		`data: {"type":"task_completed","task_id":"t1","output":{"ok":true}}`,
		"",
	}, "\n")

	rec := newRecorder()
	c := NewClient("http://unused")
	res, err := c.decode(context.Background(), iotest.OneByteReader(strings.NewReader(body)), rec.handlers(), logging.Discard())
	if err != nil {
		t.Fatalf("decode() error = %v", err)
	}
	if res.Text != "" {
		t.Errorf("Text = %q", res.Text)
	}
	if len(rec.events) != 2 {
		t.Fatalf("events = %d, want 2", len(rec.events))
	}
	done, ok := rec.events[1].(events.TaskCompletedEvent)
	if !ok || done.OutputText() != `{"ok":true}` {
		t.Errorf("events[1] = %#v", rec.events[1])
	}
}

func TestDecodeReadError(t *testing.T) {
	c := NewClient("http://unused")
	_, err := c.decode(context.Background(), iotest.ErrReader(errors.New("connection reset")), Handlers{}, logging.Discard())
	if err == nil || errorKind(err) != "read" {
		t.Errorf("decode() error = %v, want read error", err)
	}
}

func TestDecodeLargeFrame(t *testing.T) {
	big := strings.Repeat("x", 256*1024)
	body := `data: {"type":"content","content":"` + big + `"}` + "\n"
	rec := newRecorder()
	res, err := NewClient("http://unused").decode(context.Background(), strings.NewReader(body), rec.handlers(), logging.Discard())
	if err != nil {
		t.Fatalf("decode() error = %v", err)
	}
	if len(res.Text) != len(big) {
		t.Errorf("len(Text) = %d, want %d", len(res.Text), len(big))
	}
}

func TestOversizedFrameDropped(t *testing.T) {
	huge := strings.Repeat("y", maxFrame+1024)
	body := strings.Join([]string{
		`data: {"type":"content","content":"A"}`,
		`data: {"type":"content","content":"` + huge + `"}`,
		`data: {"type":"content","content":"B"}`,
		"",
	}, "\n")

	metrics := observability.NewMetrics("test")
	rec := newRecorder()
	c := NewClient("http://unused", WithMetrics(metrics))
	res, err := c.decode(context.Background(), strings.NewReader(body), rec.handlers(), logging.Discard())
	if err != nil {
		t.Fatalf("decode() error = %v", err)
	}
	if res.Text != "AB" {
		t.Errorf("Text = %q, want AB", truncate(res.Text, 20))
	}
	if evs, _, _ := rec.counts(); evs != 2 {
		t.Errorf("events = %d, want 2", evs)
	}
	if got := testutil.ToFloat64(metrics.DroppedFrames); got != 1 {
		t.Errorf("dropped frames = %v, want 1", got)
	}
}

func TestOversizedFrameKeepsStreamAlive(t *testing.T) {
	srv := sseServer(t,
		`data: {"type":"content","content":"A"}`,
		`data: {"type":"content","content":"`+strings.Repeat("z", 5<<20)+`"}`,
		`data: {"type":"content","content":"B"}`,
		`data: {"type":"complete","agent":"Coder"}`,
	)
	rec := newRecorder()
	if err := NewClient(srv.URL).Stream(context.Background(), Request{}, rec.handlers()); err != nil {
		t.Fatalf("Stream() error = %v", err)
	}
	evs, results, errs := rec.counts()
	if evs != 3 || results != 1 || errs != 0 {
		t.Fatalf("events = %d, results = %d, errs = %d, want 3, 1, 0", evs, results, errs)
	}
	if rec.results[0].Text != "AB" {
		t.Errorf("Text = %q, want AB", truncate(rec.results[0].Text, 20))
	}
}

func TestCancelDuringStream(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprintln(w, `data: {"type":"thinking","message":"working"}`)
		fmt.Fprintln(w)
		w.(http.Flusher).Flush()
		<-r.Context().Done()
	}))
	defer srv.Close()

	metrics := observability.NewMetrics("test")
	rec := newRecorder()
	sess := NewClient(srv.URL, WithMetrics(metrics)).Open(context.Background(), Request{}, rec.handlers())

	select {
	case <-rec.firstSeen:
	case <-time.After(5 * time.Second):
		t.Fatal("no event received")
	}
	sess.Cancel()
	sess.Cancel()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := sess.Wait(ctx); err != nil {
		t.Fatalf("Wait() error = %v", err)
	}

	evs, results, errs := rec.counts()
	if evs != 1 || results != 0 || errs != 0 {
		t.Errorf("events = %d, results = %d, errs = %d, want 1, 0, 0", evs, results, errs)
	}
	if got := testutil.ToFloat64(metrics.Streams.WithLabelValues(observability.OutcomeCancelled)); got != 1 {
		t.Errorf("cancelled streams = %v, want 1", got)
	}
}

func TestCancelBeforeStart(t *testing.T) {
	srv := sseServer(t, `data: {"type":"content","content":"x"}`)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	rec := newRecorder()
	sess := NewClient(srv.URL).Open(ctx, Request{}, rec.handlers())
	<-sess.Done()

	evs, results, errs := rec.counts()
	if evs != 0 || results != 0 || errs != 0 {
		t.Errorf("events = %d, results = %d, errs = %d, want none", evs, results, errs)
	}
}

func TestCancelAfterComplete(t *testing.T) {
	srv := sseServer(t, `data: {"type":"complete"}`)
	rec := newRecorder()
	sess := NewClient(srv.URL).Open(context.Background(), Request{}, rec.handlers())
	<-sess.Done()
	sess.Cancel()
	sess.Cancel()

	if _, results, errs := rec.counts(); results != 1 || errs != 0 {
		t.Errorf("results = %d, errs = %d, want 1, 0", results, errs)
	}
}

func TestNilSession(t *testing.T) {
	var s *Session
	s.Cancel()
	select {
	case <-s.Done():
	default:
		t.Error("nil session Done() not closed")
	}
	if err := s.Wait(context.Background()); err != nil {
		t.Errorf("Wait() error = %v", err)
	}
}
