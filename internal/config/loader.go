package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Load reads and merges configuration from global and project paths.
// Order of precedence (highest to lowest): project config, global config, defaults.
// Missing files are not errors; malformed JSON returns an error.
func Load(globalPath, projectPath string) (*Config, error) {
	cfg := DefaultConfig()

	if globalPath != "" {
		if err := mergeConfigFile(cfg, globalPath); err != nil {
			return nil, fmt.Errorf("loading global config: %w", err)
		}
	}

	if projectPath != "" {
		if err := mergeConfigFile(cfg, projectPath); err != nil {
			return nil, fmt.Errorf("loading project config: %w", err)
		}
	}

	return cfg, nil
}

// LoadDefault loads configuration from conventional paths.
// Global: ~/.agentgraph/config.json
// Project: .agentgraph/config.json (relative to cwd)
func LoadDefault() (*Config, error) {
	return Load(GlobalPath(), ProjectPath())
}

// GlobalPath is the per-user config file.
func GlobalPath() string {
	return filepath.Join(stateDir(), "config.json")
}

// ProjectPath is the per-project config file, relative to the working directory.
func ProjectPath() string {
	return filepath.Join(".agentgraph", "config.json")
}

// mergeConfigFile reads a JSON config file and merges it into the base config.
// Missing files are silently skipped. Malformed JSON returns an error.
func mergeConfigFile(base *Config, path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}

	var loaded Config
	if err := json.Unmarshal(data, &loaded); err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}

	mergeBackend(&base.Backend, loaded.Backend)

	setString(&base.Client.UserID, loaded.Client.UserID)
	setString(&base.Client.SessionID, loaded.Client.SessionID)

	if loaded.Renderer.Enabled != nil {
		enabled := *loaded.Renderer.Enabled
		base.Renderer.Enabled = &enabled
	}
	setString(&base.Renderer.Addr, loaded.Renderer.Addr)

	setString(&base.Log.Path, loaded.Log.Path)
	setString(&base.Log.Level, loaded.Log.Level)
	setString(&base.Cache.Path, loaded.Cache.Path)

	if base.Agents == nil {
		base.Agents = make(map[string]AgentDisplayConfig, len(loaded.Agents))
	}
	for name, agent := range loaded.Agents {
		base.Agents[name] = agent
	}

	return nil
}

func mergeBackend(base *BackendConfig, loaded BackendConfig) {
	setString(&base.BaseURL, loaded.BaseURL)
	setString(&base.ChatPath, loaded.ChatPath)
	setString(&base.AgentsPath, loaded.AgentsPath)
	setString(&base.MarketplacePath, loaded.MarketplacePath)
	setString(&base.HealthPath, loaded.HealthPath)
	if loaded.RequestTimeoutSeconds > 0 {
		base.RequestTimeoutSeconds = loaded.RequestTimeoutSeconds
	}
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}
