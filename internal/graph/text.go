package graph

import (
	"fmt"
	"strings"
)

// RenderText renders the model as an indented plain-text tree.
func RenderText(m Model) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Supervisor [%s]", m.Supervisor.Phase)
	if m.Supervisor.StatusLine != "" {
		fmt.Fprintf(&b, " %s", firstLine(m.Supervisor.StatusLine))
	}
	b.WriteString("\n")

	for i, n := range m.Agents {
		branch := "├─"
		if i == len(m.Agents)-1 {
			branch = "└─"
		}
		fmt.Fprintf(&b, "%s %s (%s) %s", branch, n.Agent, n.TaskID, n.Status)
		if n.Progress != "" {
			fmt.Fprintf(&b, " %s", n.Progress)
		}
		b.WriteString("\n")
		if n.Preview != "" {
			indent := "│  "
			if i == len(m.Agents)-1 {
				indent = "   "
			}
			fmt.Fprintf(&b, "%s%s\n", indent, firstLine(n.Preview))
		}
	}
	return b.String()
}
