package graph

import (
	"bytes"
	"cmp"
	"encoding/json"
	"slices"

	"github.com/aristath/agentgraph/internal/chat"
	"github.com/aristath/agentgraph/internal/layout"
	"github.com/aristath/agentgraph/internal/task"
)

// Input is everything the projector reads.
type Input struct {
	Tasks      []task.Task
	Slots      layout.Arena
	Phase      chat.Phase
	StatusLine string
	Request    string
	Log        []chat.Entry
	Directory  Directory
}

// FromState projects a chat state.
func FromState(s chat.State, dir Directory) Model {
	return Project(Input{
		Tasks:      s.Tasks,
		Slots:      s.Slots,
		Phase:      s.Phase,
		StatusLine: s.StatusLine,
		Request:    s.Request,
		Log:        s.Log,
		Directory:  dir,
	})
}

// Project builds the graph model. It is a pure function of its input: equal
// inputs give equal models, and the input is never modified.
func Project(in Input) Model {
	m := Model{
		Supervisor: Supervisor{
			ID:         SupervisorID,
			Phase:      in.Phase,
			StatusLine: in.StatusLine,
			Request:    in.Request,
			Active:     in.Phase != chat.Idle,
		},
		Agents: []AgentNode{},
		Edges:  []Edge{},
	}

	slots := backfill(in.Slots, in.Tasks)
	logs := make(map[string][]chat.Entry)
	for _, e := range in.Log {
		if e.TaskID != "" {
			logs[e.TaskID] = append(logs[e.TaskID], e)
		}
	}

	for _, t := range in.Tasks {
		if t.AssignedAgent == "" {
			continue
		}
		slot, _ := slots.Slot(t.ID)
		lines := logs[t.ID]
		node := AgentNode{
			ID:               NodeID(t.AssignedAgent, t.ID),
			TaskID:           t.ID,
			Agent:            t.AssignedAgent,
			Description:      t.Description,
			Status:           t.Status,
			Progress:         t.Progress,
			Preview:          preview(t, lines),
			Transcript:       transcript(lines),
			StructuredOutput: structured(t.Output),
			Slot:             slot,
		}
		if in.Directory != nil {
			if d, ok := in.Directory.Lookup(t.AssignedAgent); ok {
				node.Display = d
			}
		}
		m.Agents = append(m.Agents, node)
	}

	slices.SortFunc(m.Agents, func(a, b AgentNode) int { return cmp.Compare(a.Slot, b.Slot) })
	for _, n := range m.Agents {
		m.Edges = append(m.Edges, Edge{
			ID:     "edge-" + n.ID,
			Source: SupervisorID,
			Target: n.ID,
			Active: n.Status == task.Running,
			Style:  StyleFor(n.Status),
		})
	}
	return m
}

// backfill slots tasks that have an agent but no slot yet, lowest priority
// first. Extend copies, so the caller's arena is untouched.
func backfill(slots layout.Arena, tasks []task.Task) layout.Arena {
	var missing []task.Task
	for _, t := range tasks {
		if t.AssignedAgent == "" {
			continue
		}
		if _, ok := slots.Slot(t.ID); !ok {
			missing = append(missing, t)
		}
	}
	if len(missing) == 0 {
		return slots
	}
	slices.SortStableFunc(missing, func(a, b task.Task) int { return cmp.Compare(a.Priority, b.Priority) })
	ids := make([]string, len(missing))
	for i, t := range missing {
		ids[i] = t.ID
	}
	return slots.Extend(ids...)
}

func preview(t task.Task, lines []chat.Entry) string {
	switch t.Status {
	case task.Running:
		for i := len(lines) - 1; i >= 0; i-- {
			if lines[i].Kind == chat.EntryProcessing {
				return lines[i].Text
			}
		}
		return t.Description
	case task.Completed:
		if t.Output != "" {
			return t.Output
		}
		return t.Description
	case task.Failed:
		if t.Error != "" {
			return t.Error
		}
		return t.Description
	default:
		return t.Description
	}
}

func transcript(lines []chat.Entry) []string {
	if len(lines) == 0 {
		return nil
	}
	out := make([]string, len(lines))
	for i, e := range lines {
		out[i] = e.Text
	}
	return out
}

// structured parses output that is a JSON object or array.
func structured(output string) any {
	trimmed := bytes.TrimSpace([]byte(output))
	if len(trimmed) == 0 || (trimmed[0] != '{' && trimmed[0] != '[') {
		return nil
	}
	var v any
	if err := json.Unmarshal(trimmed, &v); err != nil {
		return nil
	}
	return v
}
