package chat

import (
	"slices"
	"time"

	"github.com/aristath/agentgraph/internal/layout"
	"github.com/aristath/agentgraph/internal/task"
)

// Phase is the coarse-grained chat state.
type Phase int

const (
	Idle       Phase = iota // No request in flight
	Selecting               // Supervisor is planning and assigning
	Responding              // Tasks are executing or the response is streaming
)

func (p Phase) String() string {
	switch p {
	case Selecting:
		return "selecting"
	case Responding:
		return "responding"
	default:
		return "idle"
	}
}

// MarshalText encodes the phase by name.
func (p Phase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalText decodes a phase name. Unknown names decode as Idle.
func (p *Phase) UnmarshalText(text []byte) error {
	switch string(text) {
	case "selecting":
		*p = Selecting
	case "responding":
		*p = Responding
	default:
		*p = Idle
	}
	return nil
}

// Role identifies the author of a chat message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ErrorContent replaces the assistant message when the stream fails.
const ErrorContent = "Sorry, I encountered an error processing your request. Please try again."

// Message is one chat bubble.
type Message struct {
	ID          string    `json:"id"`
	Role        Role      `json:"role"`
	Content     string    `json:"content"`
	Timestamp   time.Time `json:"timestamp"`
	AgentName   string    `json:"agent_name,omitempty"`
	IsStreaming bool      `json:"is_streaming"`
	TaskIDs     []string  `json:"task_ids,omitempty"`
}

// EntryKind classifies a transcript line.
type EntryKind string

const (
	EntryStatus     EntryKind = "status"
	EntryAssignment EntryKind = "assignment"
	EntryStart      EntryKind = "start"
	EntryProcessing EntryKind = "processing"
	EntryCompletion EntryKind = "completion"
	EntryFailure    EntryKind = "failure"
	EntryCommand    EntryKind = "command"
	EntryTerminal   EntryKind = "terminal"
)

// Entry is one transcript line. TaskID is empty for session-wide lines.
type Entry struct {
	TaskID string    `json:"task_id,omitempty"`
	Kind   EntryKind `json:"kind"`
	Level  string    `json:"level,omitempty"`
	Text   string    `json:"text"`
	At     time.Time `json:"at"`
}

// Effect is a set of side effects the caller should perform after a step.
type Effect uint8

const (
	EffectOpenStream Effect = 1 << iota
	EffectCancelStream
	EffectFocusInput
)

// Has reports whether all flags in f are set.
func (e Effect) Has(f Effect) bool {
	return e&f == f
}

// State is the canonical application state. Treat it as immutable: every
// transition returns a new State and leaves its input untouched.
type State struct {
	Phase         Phase
	Messages      []Message
	Tasks         []task.Task
	Slots         layout.Arena
	Log           []Entry
	Request       string
	StatusLine    string
	CurrentAgent  string
	CurrentTaskID string

	// responseStarted is set once the final response begins streaming.
	// Status lines stop overwriting the assistant message after that.
	responseStarted bool
}

// Assistant returns the open or most recent assistant message.
func (s State) Assistant() (Message, bool) {
	if i := s.assistantIndex(); i >= 0 {
		return s.Messages[i], true
	}
	return Message{}, false
}

// Task returns the task with the given ID.
func (s State) Task(id string) (task.Task, bool) {
	if i := task.Find(s.Tasks, id); i >= 0 {
		return s.Tasks[i], true
	}
	return task.Task{}, false
}

// TaskLog returns the transcript lines attributed to a task.
func (s State) TaskLog(id string) []Entry {
	var out []Entry
	for _, e := range s.Log {
		if e.TaskID == id {
			out = append(out, e)
		}
	}
	return out
}

func (s State) assistantIndex() int {
	for i := len(s.Messages) - 1; i >= 0; i-- {
		if s.Messages[i].Role == RoleAssistant {
			return i
		}
	}
	return -1
}

// updateAssistant returns a copy of s whose latest assistant message was passed through fn.
func (s State) updateAssistant(fn func(*Message)) State {
	i := s.assistantIndex()
	if i < 0 {
		return s
	}
	s.Messages = slices.Clone(s.Messages)
	fn(&s.Messages[i])
	return s
}

// updateTask returns a copy of s with the task passed through fn.
// Unknown task IDs leave s unchanged.
func (s State) updateTask(id string, fn func(*task.Task)) (State, bool) {
	i := task.Find(s.Tasks, id)
	if i < 0 {
		return s, false
	}
	s.Tasks = slices.Clone(s.Tasks)
	fn(&s.Tasks[i])
	return s, true
}

func (s State) appendLog(e Entry) State {
	s.Log = append(slices.Clip(s.Log), e)
	return s
}
