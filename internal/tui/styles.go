package tui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/aristath/agentgraph/internal/chat"
	"github.com/aristath/agentgraph/internal/graph"
	"github.com/aristath/agentgraph/internal/task"
)

// Border styles
var (
	StyleFocusedBorder = lipgloss.NewStyle().
				Border(lipgloss.RoundedBorder()).
				BorderForeground(lipgloss.Color("62"))

	StyleUnfocusedBorder = lipgloss.NewStyle().
				Border(lipgloss.RoundedBorder()).
				BorderForeground(lipgloss.Color("240"))
)

// Status styles
var (
	StyleStatusRunning = lipgloss.NewStyle().
				Foreground(lipgloss.Color("yellow")).
				Bold(true)

	StyleStatusComplete = lipgloss.NewStyle().
				Foreground(lipgloss.Color("green")).
				Bold(true)

	StyleStatusFailed = lipgloss.NewStyle().
				Foreground(lipgloss.Color("red")).
				Bold(true)

	StyleStatusPending = lipgloss.NewStyle().
				Foreground(lipgloss.Color("240"))
)

// Chat styles
var (
	StyleUser = lipgloss.NewStyle().
			Foreground(lipgloss.Color("39")).
			Bold(true)

	StyleAssistant = lipgloss.NewStyle().
			Foreground(lipgloss.Color("170")).
			Bold(true)

	StyleError = lipgloss.NewStyle().
			Foreground(lipgloss.Color("9"))
)

// UI element styles
var (
	StyleTitle = lipgloss.NewStyle().
			Bold(true).
			Padding(0, 1)

	StyleHelp = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241"))

	StyleSelected = lipgloss.NewStyle().
			Background(lipgloss.Color("62")).
			Foreground(lipgloss.Color("0"))
)

// StatusIcon returns a styled status indicator.
func StatusIcon(s task.Status) string {
	switch s {
	case task.Running:
		return StyleStatusRunning.Render("●")
	case task.Completed:
		return StyleStatusComplete.Render("✓")
	case task.Failed:
		return StyleStatusFailed.Render("✗")
	default:
		return StyleStatusPending.Render("○")
	}
}

// EdgeStyle renders an edge in its projected color.
func EdgeStyle(e graph.EdgeStyle) lipgloss.Style {
	s := lipgloss.NewStyle().Foreground(lipgloss.Color(e.Color))
	if e.Animated {
		s = s.Bold(true)
	}
	return s
}

// RoleStyle returns the label style for a chat role.
func RoleStyle(r chat.Role) lipgloss.Style {
	if r == chat.RoleUser {
		return StyleUser
	}
	return StyleAssistant
}
