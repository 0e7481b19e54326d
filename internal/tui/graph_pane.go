package tui

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/truncate"

	"github.com/aristath/agentgraph/internal/graph"
	"github.com/aristath/agentgraph/internal/task"
)

// GraphPaneModel draws the supervisor and its agent nodes.
type GraphPaneModel struct {
	model   graph.Model
	width   int
	height  int
	focused bool
}

// NewGraphPaneModel creates a new graph pane model.
func NewGraphPaneModel() GraphPaneModel {
	return GraphPaneModel{model: graph.Project(graph.Input{})}
}

// Update handles messages for the graph pane.
func (m GraphPaneModel) Update(msg tea.Msg) (GraphPaneModel, tea.Cmd) {
	if msg, ok := msg.(tea.WindowSizeMsg); ok {
		m.width = msg.Width
		m.height = msg.Height
	}
	return m, nil
}

// SetModel replaces the projection being drawn.
func (m *GraphPaneModel) SetModel(g graph.Model) {
	m.model = g
}

// View renders the graph pane.
func (m GraphPaneModel) View() string {
	if m.width == 0 || m.height == 0 {
		return ""
	}

	inner := max(m.width-4, 10)
	var b strings.Builder

	title := StyleTitle.Render("Agent Graph")
	b.WriteString(title)
	b.WriteString("\n")
	b.WriteString(strings.Repeat("=", lipgloss.Width(title)))
	b.WriteString("\n\n")

	sup := m.model.Supervisor
	supLine := fmt.Sprintf("◆ Supervisor [%s]", sup.Phase)
	if sup.StatusLine != "" {
		supLine += " " + sup.StatusLine
	}
	supStyle := StyleStatusPending
	if sup.Active {
		supStyle = StyleStatusRunning
	}
	b.WriteString(supStyle.Render(truncate.StringWithTail(supLine, uint(inner), "…")))
	b.WriteString("\n")

	for i, node := range m.model.Agents {
		connector := "├"
		if i == len(m.model.Agents)-1 {
			connector = "└"
		}
		arrow := "──▶"
		if e, ok := m.edgeTo(node.ID); ok {
			if e.Style.Dashed {
				arrow = "┄┄▶"
			}
			arrow = EdgeStyle(e.Style).Render(arrow)
		}

		label := node.Agent
		if node.Display.Icon != "" {
			label = node.Display.Icon + " " + label
		}
		if node.Progress != "" {
			label += " (" + node.Progress + ")"
		}
		line := fmt.Sprintf("%s%s %s %s", connector, arrow, StatusIcon(node.Status), label)
		b.WriteString(truncate.StringWithTail(line, uint(inner), "…"))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(m.progressBar(inner))

	content := b.String()

	style := StyleUnfocusedBorder
	if m.focused {
		style = StyleFocusedBorder
	}

	return style.
		Width(m.width - 2).
		Height(m.height - 2).
		Render(content)
}

func (m GraphPaneModel) edgeTo(id string) (graph.Edge, bool) {
	for _, e := range m.model.Edges {
		if e.Target == id {
			return e, true
		}
	}
	return graph.Edge{}, false
}

// progressBar summarizes task statuses across all nodes.
func (m GraphPaneModel) progressBar(width int) string {
	var completed, running, failed, pending int
	for _, n := range m.model.Agents {
		switch n.Status {
		case task.Completed:
			completed++
		case task.Running:
			running++
		case task.Failed:
			failed++
		default:
			pending++
		}
	}
	total := len(m.model.Agents)
	if total == 0 {
		return StyleStatusPending.Render("No tasks yet.")
	}

	barWidth := min(width-12, 40)
	completedWidth := (completed * barWidth) / total
	failedWidth := (failed * barWidth) / total
	runningWidth := (running * barWidth) / total
	pendingWidth := barWidth - completedWidth - failedWidth - runningWidth

	bar := StyleStatusComplete.Render(strings.Repeat("=", max(0, completedWidth)))
	bar += StyleStatusFailed.Render(strings.Repeat("!", max(0, failedWidth)))
	bar += StyleStatusRunning.Render(strings.Repeat("-", max(0, runningWidth)))
	bar += StyleStatusPending.Render(strings.Repeat(".", max(0, pendingWidth)))

	return fmt.Sprintf("[%s]  %d/%d\n", bar, completed, total)
}

// SetSize updates the pane dimensions.
func (m *GraphPaneModel) SetSize(w, h int) {
	m.width = w
	m.height = h
}

// SetFocused updates the focus state.
func (m *GraphPaneModel) SetFocused(focused bool) {
	m.focused = focused
}
