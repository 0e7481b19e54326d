package graph

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/aristath/agentgraph/internal/chat"
	"github.com/aristath/agentgraph/internal/task"
)

func TestRenderMermaid(t *testing.T) {
	m := Project(sampleInput())
	output := RenderMermaid(m)

	assert.True(t, strings.HasPrefix(output, "graph TD\n"))
	assert.Contains(t, output, "%% build it")
	assert.Contains(t, output, `supervisor(("Supervisor: Working"))`)

	t2, ok := m.Node("t2")
	assert.True(t, ok)
	id := mermaidSafeID(t2.ID)
	assert.Contains(t, output, id+`["💻 Coder: write code"]`)

	// Running edges are thick, completed edges solid.
	assert.Contains(t, output, "supervisor ==> "+id)
	t1, _ := m.Node("t1")
	assert.Contains(t, output, "supervisor --> "+mermaidSafeID(t1.ID))

	assert.Contains(t, output, "classDef running")
	assert.Contains(t, output, "class "+id+" running")
}

func TestRenderMermaidPendingEdgeDashed(t *testing.T) {
	m := Project(Input{Tasks: []task.Task{{ID: "p", AssignedAgent: "Coder", Description: `say "hi"`}}})
	output := RenderMermaid(m)

	id := mermaidSafeID(m.Agents[0].ID)
	assert.Contains(t, output, "supervisor -.-> "+id)
	assert.Contains(t, output, "#quot;hi#quot;")
	assert.NotContains(t, output, "%%")
}

func TestRenderText(t *testing.T) {
	m := Project(sampleInput())
	output := RenderText(m)

	lines := strings.Split(strings.TrimRight(output, "\n"), "\n")
	assert.Equal(t, "Supervisor [responding] Working", lines[0])
	assert.Contains(t, output, "├─ Researcher (t1) completed")
	assert.Contains(t, output, "└─ Coder (t4) failed")
	assert.Contains(t, output, "   exit 1")

	idle := RenderText(Project(Input{Phase: chat.Idle}))
	assert.Equal(t, "Supervisor [idle]\n", idle)
}
