// Package graph projects the chat state onto a supervisor/agent node graph.
package graph

import (
	"fmt"

	"github.com/mitchellh/hashstructure/v2"

	"github.com/aristath/agentgraph/internal/chat"
	"github.com/aristath/agentgraph/internal/task"
)

// SupervisorID is the ID of the root node.
const SupervisorID = "supervisor"

// Display carries rendering hints for an agent.
type Display struct {
	Icon        string `json:"icon,omitempty"`
	Category    string `json:"category,omitempty"`
	Description string `json:"description,omitempty"`
	Color       string `json:"color,omitempty"`
}

// Directory resolves agent names to display hints.
type Directory interface {
	Lookup(name string) (Display, bool)
}

// Supervisor is the root node. It is present even when there are no tasks.
type Supervisor struct {
	ID         string     `json:"id"`
	Phase      chat.Phase `json:"phase"`
	StatusLine string     `json:"status_line,omitempty"`
	Request    string     `json:"request,omitempty"`
	Active     bool       `json:"active"`
}

// AgentNode is one (agent, task) pair.
type AgentNode struct {
	ID               string      `json:"id"`
	TaskID           string      `json:"task_id"`
	Agent            string      `json:"agent"`
	Description      string      `json:"description"`
	Status           task.Status `json:"status"`
	Progress         string      `json:"progress,omitempty"`
	Preview          string      `json:"preview"`
	Transcript       []string    `json:"transcript,omitempty"`
	StructuredOutput any         `json:"structured_output,omitempty"`
	Slot             int         `json:"slot"`
	Display          Display     `json:"display"`
}

// EdgeStyle names the visual treatment of an edge.
type EdgeStyle struct {
	Name     string `json:"name"`
	Color    string `json:"color"`
	Dashed   bool   `json:"dashed"`
	Animated bool   `json:"animated"`
}

// Edge connects the supervisor to an agent node.
type Edge struct {
	ID     string    `json:"id"`
	Source string    `json:"source"`
	Target string    `json:"target"`
	Active bool      `json:"active"`
	Style  EdgeStyle `json:"style"`
}

// Model is one projection of the state. It shares nothing mutable with the
// state it was built from.
type Model struct {
	Supervisor Supervisor  `json:"supervisor"`
	Agents     []AgentNode `json:"agents"`
	Edges      []Edge      `json:"edges"`
}

// Node returns the agent node for a task.
func (m Model) Node(taskID string) (AgentNode, bool) {
	for _, n := range m.Agents {
		if n.TaskID == taskID {
			return n, true
		}
	}
	return AgentNode{}, false
}

var (
	stylePending   = EdgeStyle{Name: "pending", Color: "#6b6b6b", Dashed: true}
	styleRunning   = EdgeStyle{Name: "running", Color: "#3b82f6", Animated: true}
	styleCompleted = EdgeStyle{Name: "completed", Color: "#10b981"}
	styleFailed    = EdgeStyle{Name: "failed", Color: "#ef4444"}
)

// StyleFor returns the edge style for a task status.
func StyleFor(s task.Status) EdgeStyle {
	switch s {
	case task.Running:
		return styleRunning
	case task.Completed:
		return styleCompleted
	case task.Failed:
		return styleFailed
	default:
		return stylePending
	}
}

type nodeKey struct {
	Agent  string
	TaskID string
}

// NodeID derives a deterministic node ID from the agent and task.
// The same agent working two tasks yields two distinct IDs.
func NodeID(agent, taskID string) string {
	h, err := hashstructure.Hash(nodeKey{Agent: agent, TaskID: taskID}, hashstructure.FormatV2, nil)
	if err != nil {
		return "agent-" + taskID
	}
	return fmt.Sprintf("agent-%016x", h)
}
