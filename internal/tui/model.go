// Package tui is the terminal front-end: a chat pane, the live agent graph,
// and a per-agent transcript.
package tui

import (
	"context"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/aristath/agentgraph/internal/config"
	"github.com/aristath/agentgraph/internal/session"
)

// PaneID identifies which pane is focused.
type PaneID int

const (
	PaneChat PaneID = iota
	PaneGraph
	PaneAgents
)

const paneCount = 3

// Model is the root Bubble Tea model for the TUI. Update is the single
// goroutine that owns the runner.
type Model struct {
	ctx          context.Context
	runner       *session.Runner
	chatPane     ChatPaneModel
	graphPane    GraphPaneModel
	agentPane    AgentPaneModel
	settingsPane SettingsPaneModel
	focusedPane  PaneID
	width        int
	height       int
	quitting     bool
	showSettings bool
	ready        <-chan struct{}
}

// New creates a new TUI model driving runner.
func New(ctx context.Context, runner *session.Runner, cfg *config.Config, globalPath, projectPath string) Model {
	m := Model{
		ctx:          ctx,
		runner:       runner,
		chatPane:     NewChatPaneModel(),
		graphPane:    NewGraphPaneModel(),
		agentPane:    NewAgentPaneModel(),
		settingsPane: NewSettingsPaneModel(cfg, globalPath, projectPath),
		focusedPane:  PaneChat,
	}
	m.chatPane.SetState(runner.State())
	m.graphPane.SetModel(runner.Graph())
	return m
}

// WithReady makes the model re-project the graph once ready is closed, so
// display hints loaded in the background show up without waiting for a stream.
func (m Model) WithReady(ready <-chan struct{}) Model {
	m.ready = ready
	return m
}

// readyMsg signals that background startup work has finished.
type readyMsg struct{}

func waitForReady(ready <-chan struct{}) tea.Cmd {
	return func() tea.Msg {
		<-ready
		return readyMsg{}
	}
}

// callMsg carries one stream callback to Update.
type callMsg struct {
	call session.Call
}

// Init initializes the model and returns the initial command.
func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{textinput.Blink, waitForCall(m.runner.Mailbox())}
	if m.ready != nil {
		cmds = append(cmds, waitForReady(m.ready))
	}
	return tea.Batch(cmds...)
}

// waitForCall returns a command that waits for the next stream callback.
func waitForCall(mb *session.Mailbox) tea.Cmd {
	return func() tea.Msg {
		return callMsg{call: <-mb.C()}
	}
}

// Update handles messages and updates the model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		// If settings panel is open, route all keys to it (modal behavior)
		if m.showSettings {
			switch msg.String() {
			case KeySettings, KeyEsc:
				m.showSettings = false
				m.settingsPane.SetVisible(false)
			default:
				var cmd tea.Cmd
				m.settingsPane, cmd = m.settingsPane.Update(msg)
				cmds = append(cmds, cmd)

				// Check if settings pane closed itself (after save)
				if !m.settingsPane.IsVisible() {
					m.showSettings = false
				}
			}
			return m, tea.Batch(cmds...)
		}

		typing := m.focusedPane == PaneChat

		switch msg.String() {
		case KeyCtrlC:
			m.runner.Stop()
			m.quitting = true
			return m, tea.Quit

		case KeyQuit:
			if typing {
				cmds = append(cmds, m.forward(msg))
				break
			}
			m.runner.Stop()
			m.quitting = true
			return m, tea.Quit

		case KeyEsc:
			if m.runner.Stop() {
				cmds = append(cmds, m.refresh())
			}

		case KeyEnter:
			if !typing {
				break
			}
			if m.runner.Send(m.ctx, m.chatPane.Value()) {
				m.chatPane.Reset()
				cmds = append(cmds, m.refresh(), m.chatPane.Tick())
			}

		case KeySettings:
			m.showSettings = true
			m.settingsPane.SetVisible(true)
			cmds = append(cmds, m.settingsPane.Init())

		case KeyTab:
			m.focusedPane = (m.focusedPane + 1) % paneCount
			m.updateFocusStates()

		case KeyShiftTab:
			m.focusedPane = (m.focusedPane + paneCount - 1) % paneCount
			m.updateFocusStates()

		case KeyPane1, KeyPane2, KeyPane3:
			if typing {
				cmds = append(cmds, m.forward(msg))
				break
			}
			m.focusedPane = PaneID(msg.String()[0] - '1')
			m.updateFocusStates()

		default:
			cmds = append(cmds, m.forward(msg))
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.computeLayout()
		m.settingsPane.SetSize(msg.Width, msg.Height)

	case callMsg:
		wasBusy := m.runner.Busy()
		msg.call.Run()
		cmds = append(cmds, m.refresh(), waitForCall(m.runner.Mailbox()))
		if wasBusy && !m.runner.Busy() {
			m.focusedPane = PaneChat
			m.updateFocusStates()
		}

	case readyMsg:
		m.runner.Reproject()
		cmds = append(cmds, m.refresh())

	case tickMsg:
		var cmd tea.Cmd
		m.agentPane, cmd = m.agentPane.Update(msg)
		cmds = append(cmds, cmd)

	default:
		// Spinner ticks, cursor blinks
		var cmd tea.Cmd
		m.chatPane, cmd = m.chatPane.Update(msg)
		cmds = append(cmds, cmd)
		if m.showSettings {
			m.settingsPane, cmd = m.settingsPane.Update(msg)
			cmds = append(cmds, cmd)
		}
	}

	return m, tea.Batch(cmds...)
}

// forward delegates a key to the focused pane.
func (m *Model) forward(msg tea.KeyMsg) tea.Cmd {
	var cmd tea.Cmd
	switch m.focusedPane {
	case PaneChat:
		m.chatPane, cmd = m.chatPane.Update(msg)
	case PaneGraph:
		m.graphPane, cmd = m.graphPane.Update(msg)
	case PaneAgents:
		m.agentPane, cmd = m.agentPane.Update(msg)
	}
	return cmd
}

// refresh pushes the runner's state into every pane.
func (m *Model) refresh() tea.Cmd {
	m.chatPane.SetState(m.runner.State())
	g := m.runner.Graph()
	m.graphPane.SetModel(g)
	return m.agentPane.SetNodes(g.Agents)
}

// View renders the TUI.
func (m Model) View() string {
	if m.quitting {
		return "Goodbye!\n"
	}

	if m.width == 0 || m.height == 0 {
		return "Initializing..."
	}

	if m.showSettings {
		return m.settingsPane.View()
	}

	rightPane := lipgloss.JoinVertical(lipgloss.Left, m.graphPane.View(), m.agentPane.View())
	mainContent := lipgloss.JoinHorizontal(lipgloss.Top, m.chatPane.View(), rightPane)

	footer := HelpView(m.runner.Busy())
	if err := m.runner.Err(); err != nil {
		footer = StyleError.Render("Stream error: "+err.Error()) + "  " + footer
	}

	return lipgloss.JoinVertical(lipgloss.Left, mainContent, footer)
}

// computeLayout calculates pane dimensions and updates all child models.
func (m *Model) computeLayout() {
	leftWidth := (m.width * 40) / 100
	rightWidth := m.width - leftWidth
	availableHeight := m.height - 1 // help bar
	graphHeight := (availableHeight * 40) / 100
	agentHeight := availableHeight - graphHeight

	m.chatPane.SetSize(leftWidth, availableHeight)
	m.graphPane.SetSize(rightWidth, graphHeight)
	m.agentPane.SetSize(rightWidth, agentHeight)

	m.updateFocusStates()
}

// updateFocusStates updates the focus state of all panes.
func (m *Model) updateFocusStates() {
	m.chatPane.SetFocused(m.focusedPane == PaneChat)
	m.graphPane.SetFocused(m.focusedPane == PaneGraph)
	m.agentPane.SetFocused(m.focusedPane == PaneAgents)
}
