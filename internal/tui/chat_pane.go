package tui

import (
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/wordwrap"

	"github.com/aristath/agentgraph/internal/chat"
)

// ChatPaneModel shows the conversation and the message input.
type ChatPaneModel struct {
	viewport viewport.Model
	input    textinput.Model
	spinner  spinner.Model
	state    chat.State
	width    int
	height   int
	focused  bool
}

// NewChatPaneModel creates a chat pane with a focused input.
func NewChatPaneModel() ChatPaneModel {
	in := textinput.New()
	in.Placeholder = "Ask the orchestrator..."
	in.Prompt = "› "
	in.CharLimit = 4000
	in.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = StyleStatusRunning

	return ChatPaneModel{
		viewport: viewport.New(0, 0),
		input:    in,
		spinner:  sp,
		focused:  true,
	}
}

// Update handles messages for the chat pane.
func (m ChatPaneModel) Update(msg tea.Msg) (ChatPaneModel, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case spinner.TickMsg:
		if m.busy() {
			m.spinner, cmd = m.spinner.Update(msg)
		}

	case tea.KeyMsg:
		if !m.focused {
			break
		}
		switch msg.String() {
		case "pgup", "pgdown":
			m.viewport, cmd = m.viewport.Update(msg)
		default:
			if !m.busy() {
				m.input, cmd = m.input.Update(msg)
			}
		}
	}

	return m, cmd
}

// View renders the chat pane.
func (m ChatPaneModel) View() string {
	if m.width == 0 || m.height == 0 {
		return ""
	}

	status := ""
	if m.busy() {
		line := m.state.StatusLine
		if line == "" {
			line = "Working..."
		}
		status = m.spinner.View() + " " + line
	}

	content := lipgloss.JoinVertical(lipgloss.Left,
		m.viewport.View(),
		StyleHelp.Render(status),
		m.input.View(),
	)

	style := StyleUnfocusedBorder
	if m.focused {
		style = StyleFocusedBorder
	}

	return style.
		Width(m.width - 2).
		Height(m.height - 2).
		Render(content)
}

// SetState replaces the conversation and keeps the view pinned to the end.
func (m *ChatPaneModel) SetState(s chat.State) {
	m.state = s
	m.viewport.SetContent(m.render())
	m.viewport.GotoBottom()
}

// Value returns the current input text.
func (m ChatPaneModel) Value() string {
	return m.input.Value()
}

// Reset clears the input.
func (m *ChatPaneModel) Reset() {
	m.input.Reset()
}

// Tick starts the spinner.
func (m ChatPaneModel) Tick() tea.Cmd {
	return m.spinner.Tick
}

func (m ChatPaneModel) busy() bool {
	return m.state.Phase != chat.Idle
}

func (m ChatPaneModel) render() string {
	if len(m.state.Messages) == 0 {
		return StyleStatusPending.Render("Describe a task and press Enter.")
	}

	width := max(m.viewport.Width-2, 10)
	var b strings.Builder
	for i, msg := range m.state.Messages {
		if i > 0 {
			b.WriteString("\n")
		}
		label := "You"
		if msg.Role == chat.RoleAssistant {
			label = "Assistant"
			if msg.AgentName != "" {
				label = msg.AgentName
			}
		}
		b.WriteString(RoleStyle(msg.Role).Render(label))
		b.WriteString("\n")

		body := msg.Content
		if body == "" && msg.IsStreaming {
			body = "…"
		}
		wrapped := strings.TrimSuffix(wordwrap.String(body, width), "\n")
		if body == chat.ErrorContent {
			wrapped = StyleError.Render(wrapped)
		}
		b.WriteString(wrapped)
		b.WriteString("\n")
	}
	return b.String()
}

// SetSize updates the pane dimensions.
func (m *ChatPaneModel) SetSize(w, h int) {
	m.width = w
	m.height = h
	m.viewport.Width = max(w-4, 10)
	m.viewport.Height = max(h-4-2, 3) // status and input lines
	m.input.Width = max(w-8, 10)
	m.viewport.SetContent(m.render())
	m.viewport.GotoBottom()
}

// SetFocused updates the focus state.
func (m *ChatPaneModel) SetFocused(focused bool) {
	m.focused = focused
	if focused {
		m.input.Focus()
	} else {
		m.input.Blur()
	}
}
