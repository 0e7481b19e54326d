package graph

import (
	"fmt"
	"strings"
)

// RenderMermaid renders the model as a Mermaid flowchart.
func RenderMermaid(m Model) string {
	var b strings.Builder

	b.WriteString("graph TD\n")
	if m.Supervisor.Request != "" {
		b.WriteString(fmt.Sprintf("    %%%% %s\n", firstLine(m.Supervisor.Request)))
	}

	label := "Supervisor"
	if m.Supervisor.StatusLine != "" {
		label += ": " + firstLine(m.Supervisor.StatusLine)
	}
	b.WriteString(fmt.Sprintf("    %s((\"%s\"))\n", mermaidSafeID(SupervisorID), mermaidEscapeLabel(label)))

	for _, n := range m.Agents {
		text := n.Agent
		if n.Description != "" {
			text += ": " + firstLine(n.Description)
		}
		if n.Display.Icon != "" {
			text = n.Display.Icon + " " + text
		}
		b.WriteString(fmt.Sprintf("    %s[\"%s\"]\n", mermaidSafeID(n.ID), mermaidEscapeLabel(text)))
	}

	for _, e := range m.Edges {
		b.WriteString(fmt.Sprintf("    %s %s %s\n", mermaidSafeID(e.Source), mermaidArrow(e), mermaidSafeID(e.Target)))
	}

	b.WriteString("\n")
	b.WriteString("    classDef pending fill:#6b6b6b,stroke:#4a4a4a,color:#fff\n")
	b.WriteString("    classDef running fill:#1a5276,stroke:#0e3a52,color:#fff\n")
	b.WriteString("    classDef completed fill:#2d6a2d,stroke:#1a4a1a,color:#fff\n")
	b.WriteString("    classDef failed fill:#8b1a1a,stroke:#5c0e0e,color:#fff\n")
	for _, n := range m.Agents {
		b.WriteString(fmt.Sprintf("    class %s %s\n", mermaidSafeID(n.ID), n.Status))
	}

	return b.String()
}

func mermaidArrow(e Edge) string {
	switch {
	case e.Active:
		return "==>"
	case e.Style.Dashed:
		return "-.->"
	default:
		return "-->"
	}
}

// mermaidSafeID converts a node ID to a Mermaid-safe identifier.
func mermaidSafeID(id string) string {
	r := strings.NewReplacer(".", "_", "-", "_", " ", "_")
	return r.Replace(id)
}

func mermaidEscapeLabel(s string) string {
	return strings.ReplaceAll(s, `"`, "#quot;")
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
