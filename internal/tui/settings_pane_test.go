package tui

import (
	"path/filepath"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/aristath/agentgraph/internal/config"
)

func TestSettingsFieldsApply(t *testing.T) {
	cfg := config.DefaultConfig()
	f := fieldsFrom(cfg)
	if f.target != targetGlobal || f.baseURL != cfg.Backend.BaseURL || !f.rendererOn {
		t.Fatalf("fieldsFrom() = %+v", f)
	}

	f.baseURL = " http://backend:9000 "
	f.userID = "u-7"
	f.rendererOn = false
	f.logLevel = "debug"
	f.applyTo(cfg)

	if cfg.Backend.BaseURL != "http://backend:9000" || cfg.Client.UserID != "u-7" || cfg.Log.Level != "debug" {
		t.Errorf("config = %+v", cfg)
	}
	if cfg.Renderer.On() {
		t.Error("renderer still on")
	}
}

func TestSettingsSaveTarget(t *testing.T) {
	dir := t.TempDir()
	global := filepath.Join(dir, "global.json")
	project := filepath.Join(dir, "project", "config.json")

	m := NewSettingsPaneModel(config.DefaultConfig(), global, project)
	m.SetVisible(true)
	m.fields.target = targetProject
	m.fields.chatPath = "/v2/chat"
	if err := m.save(); err != nil {
		t.Fatalf("save() error = %v", err)
	}

	got, err := config.Load(filepath.Join(dir, "missing.json"), project)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got.Backend.ChatPath != "/v2/chat" {
		t.Errorf("ChatPath = %q, want /v2/chat", got.Backend.ChatPath)
	}
}

func TestSettingsEscClosesWithoutSaving(t *testing.T) {
	dir := t.TempDir()
	cfg := config.DefaultConfig()
	m := NewSettingsPaneModel(cfg, filepath.Join(dir, "g.json"), filepath.Join(dir, "p.json"))
	m.SetSize(100, 40)
	m.SetVisible(true)
	m.fields.baseURL = "http://changed:1"

	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyEsc})
	if m.IsVisible() {
		t.Error("pane still visible after esc")
	}
	if cfg.Backend.BaseURL == "http://changed:1" {
		t.Error("config changed without saving")
	}
}
