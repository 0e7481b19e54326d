package graph

import (
	"reflect"
	"testing"
	"time"

	"github.com/aristath/agentgraph/internal/chat"
	"github.com/aristath/agentgraph/internal/events"
	"github.com/aristath/agentgraph/internal/layout"
	"github.com/aristath/agentgraph/internal/task"
)

var sampleTime = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

type stubDirectory map[string]Display

func (d stubDirectory) Lookup(name string) (Display, bool) {
	v, ok := d[name]
	return v, ok
}

func sampleInput() Input {
	tasks := []task.Task{
		{ID: "t1", Description: "research", AssignedAgent: "Researcher", Status: task.Completed, Priority: 0, Output: `{"files":["a.go"]}`},
		{ID: "t2", Description: "write code", AssignedAgent: "Coder", Status: task.Running, Priority: 1},
		{ID: "t3", Description: "unassigned", Priority: 2},
		{ID: "t4", Description: "test", AssignedAgent: "Coder", Status: task.Failed, Priority: 3, Error: "exit 1"},
	}
	return Input{
		Tasks:      tasks,
		Slots:      layout.Arena{}.Extend("t1", "t2", "t4"),
		Phase:      chat.Responding,
		StatusLine: "Working",
		Request:    "build it",
		Log: []chat.Entry{
			{TaskID: "t2", Kind: chat.EntryStart, Text: "started"},
			{TaskID: "t2", Kind: chat.EntryProcessing, Text: "reading files"},
			{TaskID: "t2", Kind: chat.EntryProcessing, Text: "writing main.go"},
			{Kind: chat.EntryStatus, Text: "session line"},
		},
		Directory: stubDirectory{"Coder": {Icon: "💻", Category: "Development"}},
	}
}

func TestProjectIdempotent(t *testing.T) {
	in := sampleInput()
	a := Project(in)
	b := Project(in)
	if !reflect.DeepEqual(a, b) {
		t.Errorf("Project() not idempotent:\n%+v\n%+v", a, b)
	}
}

func TestProjectNodes(t *testing.T) {
	m := Project(sampleInput())

	if m.Supervisor.ID != SupervisorID || !m.Supervisor.Active || m.Supervisor.StatusLine != "Working" {
		t.Errorf("Supervisor = %+v", m.Supervisor)
	}
	if len(m.Agents) != 3 {
		t.Fatalf("len(Agents) = %d, want 3", len(m.Agents))
	}

	wantTasks := []string{"t1", "t2", "t4"}
	for i, n := range m.Agents {
		if n.TaskID != wantTasks[i] || n.Slot != i {
			t.Errorf("Agents[%d] = %s slot %d, want %s slot %d", i, n.TaskID, n.Slot, wantTasks[i], i)
		}
	}

	tests := []struct {
		taskID  string
		preview string
	}{
		{"t1", `{"files":["a.go"]}`},
		{"t2", "writing main.go"},
		{"t4", "exit 1"},
	}
	for _, tt := range tests {
		n, ok := m.Node(tt.taskID)
		if !ok {
			t.Fatalf("Node(%s) missing", tt.taskID)
		}
		if n.Preview != tt.preview {
			t.Errorf("Node(%s).Preview = %q, want %q", tt.taskID, n.Preview, tt.preview)
		}
	}

	t1, _ := m.Node("t1")
	out, ok := t1.StructuredOutput.(map[string]any)
	if !ok {
		t.Fatalf("StructuredOutput = %T, want map", t1.StructuredOutput)
	}
	if _, ok := out["files"]; !ok {
		t.Errorf("StructuredOutput = %v", out)
	}

	t2, _ := m.Node("t2")
	if len(t2.Transcript) != 3 {
		t.Errorf("Transcript = %v", t2.Transcript)
	}
	if t2.Display.Icon != "💻" {
		t.Errorf("Display = %+v", t2.Display)
	}
	if t2.StructuredOutput != nil {
		t.Errorf("StructuredOutput = %v, want nil", t2.StructuredOutput)
	}
}

func TestProjectEdges(t *testing.T) {
	m := Project(sampleInput())
	if len(m.Edges) != len(m.Agents) {
		t.Fatalf("len(Edges) = %d, want %d", len(m.Edges), len(m.Agents))
	}

	want := []struct {
		active bool
		style  string
	}{
		{false, "completed"},
		{true, "running"},
		{false, "failed"},
	}
	for i, e := range m.Edges {
		if e.Source != SupervisorID || e.Target != m.Agents[i].ID {
			t.Errorf("Edges[%d] = %s -> %s", i, e.Source, e.Target)
		}
		if e.Active != want[i].active || e.Style.Name != want[i].style {
			t.Errorf("Edges[%d] active=%v style=%s, want %v %s", i, e.Active, e.Style.Name, want[i].active, want[i].style)
		}
	}
}

func TestEdgeStyles(t *testing.T) {
	if s := StyleFor(task.Pending); !s.Dashed || s.Animated {
		t.Errorf("pending style = %+v", s)
	}
	if s := StyleFor(task.Running); !s.Animated || s.Dashed {
		t.Errorf("running style = %+v", s)
	}
	if StyleFor(task.Completed).Color == StyleFor(task.Failed).Color {
		t.Error("completed and failed share a color")
	}
}

func TestProjectEmpty(t *testing.T) {
	m := Project(Input{})
	if m.Supervisor.ID != SupervisorID {
		t.Errorf("Supervisor.ID = %q", m.Supervisor.ID)
	}
	if m.Supervisor.Active {
		t.Error("idle supervisor is active")
	}
	if len(m.Agents) != 0 || len(m.Edges) != 0 {
		t.Errorf("expected no agents or edges, got %d/%d", len(m.Agents), len(m.Edges))
	}
}

func TestSameAgentTwoTasks(t *testing.T) {
	m := Project(Input{
		Tasks: []task.Task{
			{ID: "a", AssignedAgent: "Coder"},
			{ID: "b", AssignedAgent: "Coder", Priority: 1},
		},
	})
	if len(m.Agents) != 2 {
		t.Fatalf("len(Agents) = %d, want 2", len(m.Agents))
	}
	if m.Agents[0].ID == m.Agents[1].ID {
		t.Errorf("node IDs collide: %s", m.Agents[0].ID)
	}
	if NodeID("Coder", "a") != m.Agents[0].ID {
		t.Error("NodeID not deterministic")
	}
}

func TestProjectBackfillsMissingSlots(t *testing.T) {
	slots := layout.Arena{}.Extend("t1")
	in := Input{
		Tasks: []task.Task{
			{ID: "t1", AssignedAgent: "Coder", Priority: 0},
			{ID: "t2", AssignedAgent: "Coder", Priority: 5},
			{ID: "t3", AssignedAgent: "Coder", Priority: 2},
		},
		Slots: slots,
	}
	m := Project(in)

	want := map[string]int{"t1": 0, "t3": 1, "t2": 2}
	for id, slot := range want {
		n, _ := m.Node(id)
		if n.Slot != slot {
			t.Errorf("Node(%s).Slot = %d, want %d", id, n.Slot, slot)
		}
	}
	if in.Slots.Len() != 1 {
		t.Errorf("input arena grew to %d", in.Slots.Len())
	}
}

func TestProjectDoesNotAliasInput(t *testing.T) {
	in := sampleInput()
	m := Project(in)
	m.Agents[1].Transcript[0] = "changed"
	if in.Log[0].Text != "started" {
		t.Errorf("input log mutated: %q", in.Log[0].Text)
	}
}

func TestFromState(t *testing.T) {
	s, _ := chat.Submit(chat.State{}, "hello", sampleTime)
	m := FromState(s, nil)
	if m.Supervisor.Request != "hello" || m.Supervisor.Phase != chat.Selecting {
		t.Errorf("Supervisor = %+v", m.Supervisor)
	}
}

func TestLaterBatchNodesAppend(t *testing.T) {
	p := func(i int) *int { return &i }
	s, _ := chat.Submit(chat.State{}, "go", sampleTime)
	for _, ev := range []events.Event{
		events.TasksCreatedEvent{Tasks: []events.TaskSpec{
			{ID: "T1", AssignedAgent: "Coder", Priority: p(0)},
			{ID: "T2", AssignedAgent: "Coder", Priority: p(1)},
		}},
		events.TasksCreatedEvent{Tasks: []events.TaskSpec{
			{ID: "T3", AssignedAgent: "Researcher", Priority: p(0)},
		}},
	} {
		s, _ = chat.Reduce(s, ev, sampleTime)
	}

	m := FromState(s, nil)
	want := []string{"T1", "T2", "T3"}
	if len(m.Agents) != len(want) {
		t.Fatalf("len(Agents) = %d, want %d", len(m.Agents), len(want))
	}
	for i, id := range want {
		n := m.Agents[i]
		if n.TaskID != id || n.Slot != i {
			t.Errorf("Agents[%d] = %s slot %d, want %s slot %d", i, n.TaskID, n.Slot, id, i)
		}
	}
}
