package tui

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/truncate"
	"github.com/muesli/reflow/wordwrap"

	"github.com/aristath/agentgraph/internal/graph"
	"github.com/aristath/agentgraph/internal/task"
)

const listWidth = 25

// AgentPaneModel represents the agent node list and transcript viewport pane.
type AgentPaneModel struct {
	nodes       []graph.AgentNode
	selectedID  string // task ID of the selected node
	selectedIdx int
	viewport    viewport.Model
	width       int
	height      int
	focused     bool
	updateTag   int // for debouncing
}

// NewAgentPaneModel creates a new agent pane model.
func NewAgentPaneModel() AgentPaneModel {
	return AgentPaneModel{viewport: viewport.New(0, 0)}
}

// tickMsg is used for debouncing viewport updates.
type tickMsg struct {
	tag int
}

// Update handles messages for the agent pane.
func (m AgentPaneModel) Update(msg tea.Msg) (AgentPaneModel, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		if !m.focused {
			break
		}

		switch msg.String() {
		case KeyJ, KeyDown:
			if m.selectedIdx < len(m.nodes)-1 {
				m.selectedIdx++
				m.selectedID = m.nodes[m.selectedIdx].TaskID
				m.updateViewportContent()
			}
		case KeyK, KeyUp:
			if m.selectedIdx > 0 {
				m.selectedIdx--
				m.selectedID = m.nodes[m.selectedIdx].TaskID
				m.updateViewportContent()
			}
		default:
			m.viewport, cmd = m.viewport.Update(msg)
		}

	case tickMsg:
		// Only update if this tick matches the current tag (debouncing)
		if msg.tag == m.updateTag {
			m.updateViewportContent()
		}
	}

	return m, cmd
}

// SetNodes replaces the node list. The selection follows its task across
// reorders; the first node is selected when nothing was. The returned
// command refreshes the transcript after a short debounce.
func (m *AgentPaneModel) SetNodes(nodes []graph.AgentNode) tea.Cmd {
	m.nodes = nodes
	m.selectedIdx = 0
	for i, n := range nodes {
		if n.TaskID == m.selectedID {
			m.selectedIdx = i
			break
		}
	}
	if len(nodes) == 0 {
		m.selectedID = ""
		m.updateViewportContent()
		return nil
	}
	m.selectedID = nodes[m.selectedIdx].TaskID

	m.updateTag++
	tag := m.updateTag
	return tea.Tick(50*time.Millisecond, func(time.Time) tea.Msg {
		return tickMsg{tag: tag}
	})
}

// Selected returns the selected node.
func (m AgentPaneModel) Selected() (graph.AgentNode, bool) {
	if m.selectedIdx >= 0 && m.selectedIdx < len(m.nodes) {
		return m.nodes[m.selectedIdx], true
	}
	return graph.AgentNode{}, false
}

// View renders the agent pane.
func (m AgentPaneModel) View() string {
	if m.width == 0 || m.height == 0 {
		return ""
	}

	viewportWidth := m.width - listWidth - 4

	content := lipgloss.JoinHorizontal(
		lipgloss.Top,
		m.renderAgentList(listWidth),
		lipgloss.NewStyle().
			Width(viewportWidth).
			Height(m.height-2).
			Render(m.viewport.View()),
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

// renderAgentList renders the agent list column.
func (m AgentPaneModel) renderAgentList(width int) string {
	var b strings.Builder

	title := StyleTitle.Render("Agents")
	b.WriteString(title)
	b.WriteString("\n")
	b.WriteString(strings.Repeat("=", min(width, lipgloss.Width(title))))
	b.WriteString("\n\n")

	if len(m.nodes) == 0 {
		b.WriteString(StyleStatusPending.Render("Waiting..."))
	} else {
		for i, n := range m.nodes {
			name := truncate.StringWithTail(n.Agent, uint(width-3), "…")
			line := fmt.Sprintf("%s %s", StatusIcon(n.Status), name)
			if i == m.selectedIdx {
				line = StyleSelected.Render(line)
			}
			b.WriteString(line)
			b.WriteString("\n")
		}
	}

	return lipgloss.NewStyle().
		Width(width).
		Height(m.height - 2).
		Render(b.String())
}

// updateViewportContent shows the selected node's details and transcript.
func (m *AgentPaneModel) updateViewportContent() {
	n, ok := m.Selected()
	if !ok {
		m.viewport.SetContent("Waiting for tasks...")
		return
	}

	width := max(m.viewport.Width, 10)
	var b strings.Builder
	b.WriteString(StyleTitle.UnsetPadding().Render(n.Agent))
	if n.Display.Category != "" {
		b.WriteString(StyleHelp.Render(" · " + n.Display.Category))
	}
	b.WriteString("\n")
	b.WriteString(wordwrap.String(n.Description, width))
	b.WriteString("\n\n")

	for _, line := range n.Transcript {
		b.WriteString(wordwrap.String(line, width))
		b.WriteString("\n")
	}

	switch n.Status {
	case task.Completed:
		b.WriteString("\n")
		b.WriteString(StyleStatusComplete.Render("[Completed]"))
		b.WriteString("\n")
		b.WriteString(m.output(n, width))
	case task.Failed:
		b.WriteString("\n")
		b.WriteString(StyleStatusFailed.Render("[Failed] " + n.Preview))
		b.WriteString("\n")
	}

	m.viewport.SetContent(b.String())
	m.viewport.GotoBottom()
}

func (m AgentPaneModel) output(n graph.AgentNode, width int) string {
	if n.StructuredOutput != nil {
		if data, err := json.MarshalIndent(n.StructuredOutput, "", "  "); err == nil {
			return string(data)
		}
	}
	return wordwrap.String(n.Preview, width)
}

// resizeViewport resizes the viewport based on pane dimensions.
func (m *AgentPaneModel) resizeViewport() {
	m.viewport.Width = max(m.width-listWidth-4, 10)
	m.viewport.Height = max(m.height-4, 5)
}

// SetSize updates the pane dimensions.
func (m *AgentPaneModel) SetSize(w, h int) {
	m.width = w
	m.height = h
	m.resizeViewport()
	m.updateViewportContent()
}

// SetFocused updates the focus state.
func (m *AgentPaneModel) SetFocused(focused bool) {
	m.focused = focused
}
