// Package agents talks to the backend's agent management endpoints and keeps
// the agent directory used to decorate graph nodes.
package agents

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/aristath/agentgraph/internal/logging"
	"github.com/aristath/agentgraph/internal/observability"
)

// Endpoints names the collaborator routes relative to the base URL.
type Endpoints struct {
	Agents      string
	Marketplace string
	Health      string
}

// DefaultEndpoints returns the backend's standard routes.
func DefaultEndpoints() Endpoints {
	return Endpoints{Agents: "/agents", Marketplace: "/marketplace", Health: "/health"}
}

// ClientOptions configures a Client. Zero values take defaults.
type ClientOptions struct {
	Endpoints Endpoints
	Timeout   time.Duration
	Retry     RetryConfig
	Logger    *slog.Logger
	Metrics   *observability.Metrics
}

// Client calls the agents API. Reads are retried with backoff; writes are
// attempted once. Every call goes through a per-endpoint circuit breaker.
type Client struct {
	baseURL   string
	endpoints Endpoints
	http      *http.Client
	retry     RetryConfig
	breakers  *BreakerRegistry
	logger    *slog.Logger
	metrics   *observability.Metrics
}

// NewClient creates a client for the backend at baseURL.
func NewClient(baseURL string, opts ClientOptions) *Client {
	if opts.Endpoints == (Endpoints{}) {
		opts.Endpoints = DefaultEndpoints()
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.Retry == (RetryConfig{}) {
		opts.Retry = DefaultRetryConfig()
	}
	if opts.Logger == nil {
		opts.Logger = logging.Discard()
	}
	return &Client{
		baseURL:   strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		endpoints: opts.Endpoints,
		http:      &http.Client{Timeout: opts.Timeout},
		retry:     opts.Retry,
		breakers:  NewBreakerRegistry(opts.Logger),
		logger:    opts.Logger,
		metrics:   opts.Metrics,
	}
}

// List returns the agents installed in the orchestrator.
func (c *Client) List(ctx context.Context) ([]AgentInfo, error) {
	out, err := callWithRetry(ctx, c.breakers.Get("list"), c.retry, func(ctx context.Context) ([]AgentInfo, error) {
		var out []AgentInfo
		err := c.do(ctx, "list", http.MethodGet, c.endpoints.Agents, nil, &out)
		return out, err
	})
	c.metrics.ObserveAgentRequest("list", err)
	return out, err
}

// Marketplace returns the agents available to add.
func (c *Client) Marketplace(ctx context.Context) ([]MarketplaceAgent, error) {
	out, err := callWithRetry(ctx, c.breakers.Get("marketplace"), c.retry, func(ctx context.Context) ([]MarketplaceAgent, error) {
		var out []MarketplaceAgent
		err := c.do(ctx, "marketplace", http.MethodGet, c.endpoints.Marketplace, nil, &out)
		return out, err
	})
	c.metrics.ObserveAgentRequest("marketplace", err)
	return out, err
}

// Health returns the backend health report.
func (c *Client) Health(ctx context.Context) (Health, error) {
	out, err := callWithRetry(ctx, c.breakers.Get("health"), c.retry, func(ctx context.Context) (Health, error) {
		var out Health
		err := c.do(ctx, "health", http.MethodGet, c.endpoints.Health, nil, &out)
		return out, err
	})
	c.metrics.ObserveAgentRequest("health", err)
	return out, err
}

// Add installs a marketplace agent.
func (c *Client) Add(ctx context.Context, agent MarketplaceAgent) (AddResult, error) {
	out, err := callOnce(ctx, c.breakers.Get("add"), func(ctx context.Context) (AddResult, error) {
		var out AddResult
		err := c.do(ctx, "add", http.MethodPost, c.endpoints.Agents, agent, &out)
		return out, err
	})
	c.metrics.ObserveAgentRequest("add", err)
	if err == nil {
		c.logger.Info("agent added", "name", agent.Name, "agent_id", out.AgentID)
	}
	return out, err
}

// Remove uninstalls an agent by ID.
func (c *Client) Remove(ctx context.Context, id string) (RemoveResult, error) {
	out, err := callOnce(ctx, c.breakers.Get("remove"), func(ctx context.Context) (RemoveResult, error) {
		var out RemoveResult
		err := c.do(ctx, "remove", http.MethodDelete, c.endpoints.Agents+"/"+url.PathEscape(id), nil, &out)
		return out, err
	})
	c.metrics.ObserveAgentRequest("remove", err)
	if err == nil {
		c.logger.Info("agent removed", "agent_id", id)
	}
	return out, err
}

func (c *Client) do(ctx context.Context, endpoint, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal %s request: %w", endpoint, err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("create %s request: %w", endpoint, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	res, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("send %s request: %w", endpoint, err)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		data, _ := io.ReadAll(io.LimitReader(res.Body, 4<<10))
		return &APIError{Endpoint: endpoint, Status: res.StatusCode, Detail: errorDetail(data)}
	}

	if err := json.NewDecoder(res.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", endpoint, err)
	}
	return nil
}

// errorDetail extracts FastAPI's {"detail": ...} message, or returns the raw body.
func errorDetail(body []byte) string {
	var payload struct {
		Detail any `json:"detail"`
	}
	if err := json.Unmarshal(body, &payload); err == nil && payload.Detail != nil {
		if s, ok := payload.Detail.(string); ok {
			return s
		}
		if b, err := json.Marshal(payload.Detail); err == nil {
			return string(b)
		}
	}
	return strings.TrimSpace(string(body))
}
