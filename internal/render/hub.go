// Package render serves graph projections to external renderers.
package render

import (
	"sync"
	"time"

	"github.com/aristath/agentgraph/internal/graph"
	"github.com/aristath/agentgraph/internal/observability"
)

// Snapshot is one published projection.
type Snapshot struct {
	Version     uint64      `json:"version"`
	PublishedAt time.Time   `json:"published_at"`
	Graph       graph.Model `json:"graph"`
}

// Hub fans projections out to subscribers. It keeps the latest snapshot so
// late subscribers start from the current graph. Each subscriber holds at
// most one pending snapshot; a newer one replaces it.
type Hub struct {
	mu      sync.Mutex
	latest  Snapshot
	subs    map[chan Snapshot]struct{}
	closed  bool
	metrics *observability.Metrics
	now     func() time.Time
}

// NewHub creates a hub holding an empty graph. metrics may be nil.
func NewHub(metrics *observability.Metrics) *Hub {
	return &Hub{
		latest:  Snapshot{Graph: graph.Project(graph.Input{})},
		subs:    make(map[chan Snapshot]struct{}),
		metrics: metrics,
		now:     time.Now,
	}
}

// Publish implements session.Publisher. It never blocks.
func (h *Hub) Publish(m graph.Model) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return
	}

	h.latest = Snapshot{Version: h.latest.Version + 1, PublishedAt: h.now(), Graph: m}
	h.metrics.ObserveSnapshot()

	for ch := range h.subs {
		// Replace a stale pending snapshot rather than block.
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- h.latest:
		default:
		}
	}
}

// Latest returns the most recent snapshot.
func (h *Hub) Latest() Snapshot {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.latest
}

// Subscribe returns a channel primed with the latest snapshot and a function
// that ends the subscription. The channel is closed on unsubscribe or Close.
func (h *Hub) Subscribe() (<-chan Snapshot, func()) {
	ch := make(chan Snapshot, 1)

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		close(ch)
		return ch, func() {}
	}

	ch <- h.latest
	h.subs[ch] = struct{}{}

	return ch, func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		if _, ok := h.subs[ch]; ok {
			delete(h.subs, ch)
			close(ch)
		}
	}
}

// Subscribers returns the number of live subscriptions.
func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// Close closes every subscriber channel. Safe to call multiple times.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return
	}
	h.closed = true

	for ch := range h.subs {
		close(ch)
	}
	clear(h.subs)
}
