package config

import (
	"os"
	"path/filepath"
)

// DefaultConfig returns the default configuration for a backend on localhost.
func DefaultConfig() *Config {
	return &Config{
		Backend: BackendConfig{
			BaseURL:               "http://localhost:8000",
			ChatPath:              "/chat",
			AgentsPath:            "/agents",
			MarketplacePath:       "/marketplace",
			HealthPath:            "/health",
			RequestTimeoutSeconds: 10,
		},
		Renderer: RendererConfig{
			Addr: "127.0.0.1:7420",
		},
		Log: LogConfig{
			Path:  filepath.Join(stateDir(), "agentgraph.log"),
			Level: "info",
		},
		Cache: CacheConfig{
			Path: filepath.Join(stateDir(), "cache.db"),
		},
		Agents: map[string]AgentDisplayConfig{},
	}
}

// stateDir is ~/.agentgraph, or .agentgraph when there is no home directory.
func stateDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".agentgraph"
	}
	return filepath.Join(home, ".agentgraph")
}
