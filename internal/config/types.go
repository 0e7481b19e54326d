package config

import (
	"net/url"
	"strings"
	"time"
)

// BackendConfig locates the orchestrator backend.
type BackendConfig struct {
	BaseURL               string `json:"base_url"`
	ChatPath              string `json:"chat_path,omitempty"`
	AgentsPath            string `json:"agents_path,omitempty"`
	MarketplacePath       string `json:"marketplace_path,omitempty"`
	HealthPath            string `json:"health_path,omitempty"`
	RequestTimeoutSeconds int    `json:"request_timeout_seconds,omitempty"` // Non-streaming calls only
}

// ChatURL is the full URL of the streaming chat endpoint.
func (b BackendConfig) ChatURL() string {
	return b.endpoint(b.ChatPath)
}

// RequestTimeout is the timeout for agent management calls.
func (b BackendConfig) RequestTimeout() time.Duration {
	return time.Duration(b.RequestTimeoutSeconds) * time.Second
}

func (b BackendConfig) endpoint(path string) string {
	base := strings.TrimRight(b.BaseURL, "/")
	if path == "" {
		return base
	}
	joined, err := url.JoinPath(base, path)
	if err != nil {
		return base + "/" + strings.TrimLeft(path, "/")
	}
	return joined
}

// ClientConfig identifies this client to the backend. Empty IDs are
// generated at startup.
type ClientConfig struct {
	UserID    string `json:"user_id,omitempty"`
	SessionID string `json:"session_id,omitempty"`
}

// RendererConfig controls the local graph feed server.
type RendererConfig struct {
	Enabled *bool  `json:"enabled,omitempty"`
	Addr    string `json:"addr,omitempty"`
}

// On reports whether the renderer feed should run. Unset means on.
func (r RendererConfig) On() bool {
	return r.Enabled == nil || *r.Enabled
}

// LogConfig controls the log file.
type LogConfig struct {
	Path  string `json:"path,omitempty"`
	Level string `json:"level,omitempty"` // debug, info, warn, error
}

// CacheConfig locates the agent directory cache.
type CacheConfig struct {
	Path string `json:"path,omitempty"`
}

// AgentDisplayConfig overrides how an agent is drawn.
type AgentDisplayConfig struct {
	Icon     string `json:"icon,omitempty"`
	Color    string `json:"color,omitempty"`
	Category string `json:"category,omitempty"`
}

// Config is the top-level configuration.
type Config struct {
	Backend  BackendConfig                 `json:"backend"`
	Client   ClientConfig                  `json:"client"`
	Renderer RendererConfig                `json:"renderer"`
	Log      LogConfig                     `json:"log"`
	Cache    CacheConfig                   `json:"cache"`
	Agents   map[string]AgentDisplayConfig `json:"agents"`
}
