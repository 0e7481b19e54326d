package agents

import (
	"context"
	"errors"
	"testing"

	"github.com/aristath/agentgraph/internal/graph"
	"github.com/aristath/agentgraph/internal/persistence"
)

type stubSource struct {
	installed []AgentInfo
	market    []MarketplaceAgent
	err       error
}

func (s *stubSource) List(context.Context) ([]AgentInfo, error) {
	return s.installed, s.err
}

func (s *stubSource) Marketplace(context.Context) ([]MarketplaceAgent, error) {
	return s.market, s.err
}

func newStore(t *testing.T) persistence.Store {
	t.Helper()
	store, err := persistence.NewMemoryStore(context.Background())
	if err != nil {
		t.Fatalf("NewMemoryStore() error = %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestDirectoryDefaults(t *testing.T) {
	d := NewDirectory(nil, nil, nil, nil)

	got, ok := d.Lookup("coder")
	if !ok || got.Icon != "💻" || got.Color != "#3b82f6" {
		t.Errorf("Lookup(coder) = %+v, %v", got, ok)
	}
	if _, ok := d.Lookup("Nobody"); ok {
		t.Error("Lookup(Nobody) found an entry")
	}
}

func TestDirectoryLayering(t *testing.T) {
	src := &stubSource{
		installed: []AgentInfo{{ID: "a1", Name: "Coder", Description: "Installed coder", Type: "code"}},
		market: []MarketplaceAgent{
			{ID: "m1", Name: "Coder", Icon: "🧑‍💻", Category: "dev", Description: "Market coder"},
			{ID: "m2", Name: "Translator", Icon: "🌐", Category: "language"},
		},
	}
	overrides := map[string]graph.Display{"translator": {Color: "#ff00ff"}}
	d := NewDirectory(src, nil, overrides, nil)

	if err := d.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}

	coder, _ := d.Lookup("Coder")
	want := graph.Display{Icon: "🧑‍💻", Category: "code", Description: "Installed coder", Color: "#3b82f6"}
	if coder != want {
		t.Errorf("Lookup(Coder) = %+v, want %+v", coder, want)
	}
	tr, ok := d.Lookup("Translator")
	if !ok || tr.Icon != "🌐" || tr.Color != "#ff00ff" {
		t.Errorf("Lookup(Translator) = %+v, %v", tr, ok)
	}
	if len(d.Installed()) != 1 || len(d.Marketplace()) != 2 {
		t.Errorf("listings = %d installed, %d marketplace", len(d.Installed()), len(d.Marketplace()))
	}
	if d.RefreshedAt().IsZero() {
		t.Error("RefreshedAt() is zero after refresh")
	}
}

func TestDirectoryRefreshWritesThrough(t *testing.T) {
	store := newStore(t)
	src := &stubSource{
		installed: []AgentInfo{{ID: "a1", Name: "Coder", Capabilities: []string{"go"}}},
		market:    []MarketplaceAgent{{ID: "m2", Name: "Translator", Icon: "🌐", Rating: 4.5}},
	}
	if err := NewDirectory(src, store, nil, nil).Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}

	cached := NewDirectory(nil, store, nil, nil)
	if err := cached.Load(context.Background()); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got := cached.Installed(); len(got) != 1 || got[0].Capabilities[0] != "go" {
		t.Errorf("cached installed = %+v", got)
	}
	if got := cached.Marketplace(); len(got) != 1 || got[0].Rating != 4.5 {
		t.Errorf("cached marketplace = %+v", got)
	}
	if tr, ok := cached.Lookup("translator"); !ok || tr.Icon != "🌐" {
		t.Errorf("Lookup(translator) = %+v, %v", tr, ok)
	}
}

func TestDirectoryRefreshFallsBackToCache(t *testing.T) {
	store := newStore(t)
	err := store.ReplaceAgents(context.Background(), persistence.SourceMarketplace, []persistence.AgentRecord{
		{ID: "m2", Name: "Translator", Icon: "🌐"},
	})
	if err != nil {
		t.Fatalf("ReplaceAgents() error = %v", err)
	}

	down := errors.New("connection refused")
	d := NewDirectory(&stubSource{err: down}, store, nil, nil)
	if err := d.Refresh(context.Background()); !errors.Is(err, down) {
		t.Fatalf("Refresh() error = %v, want %v", err, down)
	}
	if tr, ok := d.Lookup("Translator"); !ok || tr.Icon != "🌐" {
		t.Errorf("Lookup(Translator) = %+v, %v", tr, ok)
	}
	if _, ok := d.Lookup("Researcher"); !ok {
		t.Error("defaults lost on fallback")
	}
}

func TestDirectoryIsGraphDirectory(t *testing.T) {
	var _ graph.Directory = NewDirectory(nil, nil, nil, nil)
}
