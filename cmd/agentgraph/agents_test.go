package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/aristath/agentgraph/internal/agents"
)

// agentBackend serves the agent endpoints and records writes.
type agentBackend struct {
	mu      sync.Mutex
	added   []agents.MarketplaceAgent
	removed []string
}

func (b *agentBackend) server(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("GET /agents", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[{"id":"a1","name":"Coder","type":"code","status":"active","requestCount":7}]`)
	})
	mux.HandleFunc("GET /marketplace", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[
			{"id":"m-web","name":"WebScraper","category":"research","rating":4.5},
			{"id":"m-gh","name":"GitHub","category":"development","rating":4.8,"requires_api_key":true,"api_key_placeholder":"ghp_..."}
		]`)
	})
	mux.HandleFunc("POST /agents", func(w http.ResponseWriter, r *http.Request) {
		var a agents.MarketplaceAgent
		if err := json.NewDecoder(r.Body).Decode(&a); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		b.mu.Lock()
		b.added = append(b.added, a)
		b.mu.Unlock()
		fmt.Fprintf(w, `{"message":"Agent %s added","agent_id":"new-1"}`, a.Name)
	})
	mux.HandleFunc("DELETE /agents/{id}", func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		b.removed = append(b.removed, r.PathValue("id"))
		b.mu.Unlock()
		fmt.Fprint(w, `{"message":"Agent removed"}`)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestAgentsListing(t *testing.T) {
	backend := &agentBackend{}
	project := isolate(t, backend.server(t).URL)

	var stdout, stderr bytes.Buffer
	if code := run(context.Background(), func() {}, []string{"-config", project, "-agents"}, &stdout, &stderr); code != 0 {
		t.Fatalf("exit code = %d, stderr = %s", code, stderr.String())
	}
	out := stdout.String()
	for _, want := range []string{"Installed agents", "a1", "Coder", "Marketplace", "m-web", "WebScraper", "4.5"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "Refreshed: never") {
		t.Errorf("refresh time not recorded:\n%s", out)
	}
}

func TestInstallAgent(t *testing.T) {
	backend := &agentBackend{}
	project := isolate(t, backend.server(t).URL)

	var stdout, stderr bytes.Buffer
	if code := run(context.Background(), func() {}, []string{"-config", project, "-install", "webscraper"}, &stdout, &stderr); code != 0 {
		t.Fatalf("exit code = %d, stderr = %s", code, stderr.String())
	}
	if len(backend.added) != 1 || backend.added[0].ID != "m-web" {
		t.Fatalf("added = %+v", backend.added)
	}
	if !strings.Contains(stdout.String(), "Agent WebScraper added (id new-1)") {
		t.Errorf("stdout = %q", stdout.String())
	}
}

func TestInstallRequiresAPIKey(t *testing.T) {
	backend := &agentBackend{}
	project := isolate(t, backend.server(t).URL)

	var stdout, stderr bytes.Buffer
	if code := run(context.Background(), func() {}, []string{"-config", project, "-install", "m-gh"}, &stdout, &stderr); code != 1 {
		t.Errorf("exit code = %d, want 1", code)
	}
	if len(backend.added) != 0 {
		t.Errorf("installed without a key: %+v", backend.added)
	}

	stdout.Reset()
	stderr.Reset()
	if code := run(context.Background(), func() {}, []string{"-config", project, "-install", "m-gh", "-api-key", "ghp_secret"}, &stdout, &stderr); code != 0 {
		t.Fatalf("exit code = %d, stderr = %s", code, stderr.String())
	}
	if len(backend.added) != 1 || backend.added[0].APIKey != "ghp_secret" {
		t.Errorf("added = %+v", backend.added)
	}
}

func TestRemoveAgent(t *testing.T) {
	backend := &agentBackend{}
	project := isolate(t, backend.server(t).URL)

	var stdout, stderr bytes.Buffer
	if code := run(context.Background(), func() {}, []string{"-config", project, "-remove", "Coder"}, &stdout, &stderr); code != 0 {
		t.Fatalf("exit code = %d, stderr = %s", code, stderr.String())
	}
	if len(backend.removed) != 1 || backend.removed[0] != "a1" {
		t.Errorf("removed = %v, want [a1]", backend.removed)
	}

	stdout.Reset()
	if code := run(context.Background(), func() {}, []string{"-config", project, "-remove", "Nobody"}, &stdout, &stderr); code != 1 {
		t.Errorf("unknown agent exit code = %d, want 1", code)
	}
}

func TestAgentCommandsExclusive(t *testing.T) {
	var stderr bytes.Buffer
	if _, err := parseFlags([]string{"-agents", "-prompt", "hi"}, &stderr); err == nil {
		t.Error("parseFlags() accepted -agents with -prompt")
	}
	if _, err := parseFlags([]string{"-install", "x", "-remove", "y"}, &stderr); err == nil {
		t.Error("parseFlags() accepted -install with -remove")
	}
}
