package render

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/aristath/agentgraph/internal/chat"
	"github.com/aristath/agentgraph/internal/graph"
	"github.com/aristath/agentgraph/internal/observability"
	"github.com/aristath/agentgraph/internal/task"
)

func sampleModel() graph.Model {
	return graph.Project(graph.Input{
		Phase:   chat.Responding,
		Request: "build a function",
		Tasks: []task.Task{
			{ID: "t1", Description: "write code", AssignedAgent: "Coder", Status: task.Running},
		},
	})
}

func newTestServer(t *testing.T) (*Hub, *observability.Metrics, *httptest.Server) {
	t.Helper()
	metrics := observability.NewMetrics("test")
	hub := NewHub(metrics)
	srv := httptest.NewServer(NewServer(hub, metrics, nil).Router())
	t.Cleanup(func() {
		hub.Close()
		srv.Close()
	})
	return hub, metrics, srv
}

func get(t *testing.T, url string) (string, string) {
	t.Helper()
	res, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		t.Fatalf("GET %s: status %d", url, res.StatusCode)
	}
	body, _ := io.ReadAll(res.Body)
	return string(body), res.Header.Get("Content-Type")
}

func TestGraphEndpoints(t *testing.T) {
	hub, _, srv := newTestServer(t)
	hub.Publish(sampleModel())

	body, ct := get(t, srv.URL+"/graph")
	if ct != "application/json" {
		t.Errorf("Content-Type = %q", ct)
	}
	var snap Snapshot
	if err := json.Unmarshal([]byte(body), &snap); err != nil {
		t.Fatalf("decode /graph: %v", err)
	}
	if snap.Version != 1 || len(snap.Graph.Agents) != 1 || snap.Graph.Agents[0].Agent != "Coder" {
		t.Errorf("/graph = %+v", snap)
	}

	mmd, _ := get(t, srv.URL+"/graph.mmd")
	if !strings.HasPrefix(mmd, "graph TD") || !strings.Contains(mmd, "Coder") {
		t.Errorf("/graph.mmd = %q", mmd)
	}

	txt, _ := get(t, srv.URL+"/graph.txt")
	if !strings.Contains(txt, "Supervisor") {
		t.Errorf("/graph.txt = %q", txt)
	}
}

func TestHealthAndMetrics(t *testing.T) {
	hub, _, srv := newTestServer(t)
	hub.Publish(sampleModel())

	body, _ := get(t, srv.URL+"/healthz")
	if !strings.Contains(body, `"status":"ok"`) {
		t.Errorf("/healthz = %q", body)
	}

	metrics, _ := get(t, srv.URL+"/metrics")
	if !strings.Contains(metrics, "test_graph_snapshots_total 1") {
		t.Errorf("/metrics missing snapshot counter:\n%s", metrics)
	}
}

func dialFeed(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/graph/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial feed: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readSnapshot(t *testing.T, conn *websocket.Conn) Snapshot {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var snap Snapshot
	if err := conn.ReadJSON(&snap); err != nil {
		t.Fatalf("read snapshot: %v", err)
	}
	return snap
}

func TestFeedStreamsSnapshots(t *testing.T) {
	hub, _, srv := newTestServer(t)
	conn := dialFeed(t, srv)

	if first := readSnapshot(t, conn); first.Version != 0 {
		t.Errorf("first snapshot version = %d, want 0", first.Version)
	}

	hub.Publish(sampleModel())
	next := readSnapshot(t, conn)
	if next.Version != 1 || len(next.Graph.Agents) != 1 {
		t.Errorf("next snapshot = %+v", next)
	}
	if len(next.Graph.Edges) != 1 || !next.Graph.Edges[0].Active {
		t.Errorf("edges = %+v", next.Graph.Edges)
	}
}

func TestFeedClosesOnHubClose(t *testing.T) {
	hub, _, srv := newTestServer(t)
	conn := dialFeed(t, srv)
	readSnapshot(t, conn)

	hub.Close()

	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, _, err := conn.ReadMessage()
	if !websocket.IsCloseError(err, websocket.CloseGoingAway) {
		t.Errorf("ReadMessage() error = %v, want going-away close", err)
	}
}

func TestFeedRejectsForeignOrigin(t *testing.T) {
	_, metrics, srv := newTestServer(t)
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/graph/ws"

	header := http.Header{"Origin": []string{"http://evil.example"}}
	_, res, err := websocket.DefaultDialer.Dial(url, header)
	if err == nil {
		t.Fatal("dial with foreign origin succeeded")
	}
	if res == nil || res.StatusCode != http.StatusForbidden {
		t.Errorf("response = %v", res)
	}
	if got := testutil.ToFloat64(metrics.FeedErrors.WithLabelValues("upgrade")); got != 1 {
		t.Errorf("upgrade errors = %v, want 1", got)
	}
}

func TestServeShutsDownOnCancel(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	hub := NewHub(nil)
	ctx, cancel := context.WithCancel(context.Background())

	errc := make(chan error, 1)
	go func() { errc <- NewServer(hub, nil, nil).Serve(ctx, ln) }()

	body, _ := get(t, "http://"+ln.Addr().String()+"/healthz")
	if !strings.Contains(body, "ok") {
		t.Errorf("/healthz = %q", body)
	}

	cancel()
	select {
	case err := <-errc:
		if err != nil {
			t.Errorf("Serve() error = %v", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}
}
