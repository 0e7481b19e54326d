package tui

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/aristath/agentgraph/internal/config"
)

var (
	styleSettingsFrame = lipgloss.NewStyle().
				Border(lipgloss.RoundedBorder()).
				BorderForeground(lipgloss.Color("62")).
				Padding(1, 2)
	styleSettingsTitle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("62"))
	styleSaved         = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("10"))
)

// Save targets offered by the form.
const (
	targetGlobal  = "global"
	targetProject = "project"
)

// settingsFields are the editable config values, bound to the form inputs.
type settingsFields struct {
	target       string
	baseURL      string
	chatPath     string
	userID       string
	rendererOn   bool
	rendererAddr string
	logLevel     string
}

func fieldsFrom(cfg *config.Config) settingsFields {
	return settingsFields{
		target:       targetGlobal,
		baseURL:      cfg.Backend.BaseURL,
		chatPath:     cfg.Backend.ChatPath,
		userID:       cfg.Client.UserID,
		rendererOn:   cfg.Renderer.On(),
		rendererAddr: cfg.Renderer.Addr,
		logLevel:     cfg.Log.Level,
	}
}

// applyTo writes the fields into cfg. Changes take effect on the next start.
func (f settingsFields) applyTo(cfg *config.Config) {
	cfg.Backend.BaseURL = strings.TrimSpace(f.baseURL)
	cfg.Backend.ChatPath = strings.TrimSpace(f.chatPath)
	cfg.Client.UserID = strings.TrimSpace(f.userID)
	on := f.rendererOn
	cfg.Renderer.Enabled = &on
	cfg.Renderer.Addr = strings.TrimSpace(f.rendererAddr)
	cfg.Log.Level = f.logLevel
}

// SettingsPaneModel is the modal config editor.
type SettingsPaneModel struct {
	config      *config.Config
	globalPath  string
	projectPath string
	fields      *settingsFields
	form        *huh.Form
	width       int
	height      int
	visible     bool
	saved       bool
	err         error
}

// NewSettingsPaneModel creates a hidden settings pane editing cfg.
func NewSettingsPaneModel(cfg *config.Config, globalPath, projectPath string) SettingsPaneModel {
	fields := fieldsFrom(cfg)
	return SettingsPaneModel{
		config:      cfg,
		globalPath:  globalPath,
		projectPath: projectPath,
		fields:      &fields,
		form:        newSettingsForm(&fields),
	}
}

func newSettingsForm(f *settingsFields) *huh.Form {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Save To").
				Options(
					huh.NewOption("Global (~/.agentgraph/config.json)", targetGlobal),
					huh.NewOption("Project (.agentgraph/config.json)", targetProject),
				).
				Value(&f.target),
		).Title("Save Target"),

		huh.NewGroup(
			huh.NewInput().
				Title("Backend URL").
				Placeholder("http://localhost:8000").
				Validate(validateURL).
				Value(&f.baseURL),
			huh.NewInput().
				Title("Chat Path").
				Placeholder("/chat").
				Value(&f.chatPath),
			huh.NewInput().
				Title("User ID").
				Description("Leave empty to generate one per run").
				Value(&f.userID),
		).Title("Backend"),

		huh.NewGroup(
			huh.NewConfirm().
				Title("Serve graph feed").
				Value(&f.rendererOn),
			huh.NewInput().
				Title("Feed Address").
				Placeholder("127.0.0.1:7420").
				Value(&f.rendererAddr),
			huh.NewSelect[string]().
				Title("Log Level").
				Options(huh.NewOptions("debug", "info", "warn", "error")...).
				Value(&f.logLevel),
		).Title("Renderer & Logging"),
	)
}

func validateURL(s string) error {
	u, err := url.Parse(strings.TrimSpace(s))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return errors.New("enter an absolute URL such as http://localhost:8000")
	}
	return nil
}

// Init starts the form.
func (m SettingsPaneModel) Init() tea.Cmd {
	return m.form.Init()
}

// Update forwards input to the form and saves once it completes. Esc closes
// the pane without saving.
func (m SettingsPaneModel) Update(msg tea.Msg) (SettingsPaneModel, tea.Cmd) {
	if !m.visible {
		return m, nil
	}
	if key, ok := msg.(tea.KeyMsg); ok && key.String() == KeyEsc {
		m.visible = false
		return m, nil
	}

	form, cmd := m.form.Update(msg)
	if f, ok := form.(*huh.Form); ok {
		m.form = f
	}
	if m.form.State != huh.StateCompleted {
		return m, cmd
	}

	m.err = m.save()
	m.saved = m.err == nil
	if m.saved {
		m.visible = false
	}
	return m, cmd
}

// save applies the form to the config and writes it to the chosen file.
func (m *SettingsPaneModel) save() error {
	m.fields.applyTo(m.config)
	path := m.globalPath
	if m.fields.target == targetProject {
		path = m.projectPath
	}
	return config.Save(m.config, path)
}

// View renders the form, or the outcome of the last save.
func (m SettingsPaneModel) View() string {
	if !m.visible {
		return ""
	}

	content := m.form.View()
	switch {
	case m.err != nil:
		content = StyleError.Render(fmt.Sprintf("✗ Error saving: %v", m.err))
	case m.saved:
		content = styleSaved.Render("✓ Settings saved")
	}

	frame := styleSettingsFrame.Width(m.width - 4).Height(m.height - 4)
	return lipgloss.JoinVertical(lipgloss.Left, styleSettingsTitle.Render("⚙ Settings"), frame.Render(content))
}

// SetSize updates the pane dimensions.
func (m *SettingsPaneModel) SetSize(w, h int) {
	m.width = w
	m.height = h
	m.form.WithWidth(w - 8).WithHeight(h - 8)
}

// SetVisible shows or hides the pane. Showing it reloads the fields from the
// config and starts a fresh form.
func (m *SettingsPaneModel) SetVisible(v bool) {
	m.visible = v
	m.saved = false
	m.err = nil
	if v {
		fields := fieldsFrom(m.config)
		m.fields = &fields
		m.form = newSettingsForm(m.fields)
		if m.width > 0 {
			m.form.WithWidth(m.width - 8).WithHeight(m.height - 8)
		}
	}
}

// IsVisible reports whether the pane is shown.
func (m SettingsPaneModel) IsVisible() bool {
	return m.visible
}
