package events

import (
	"bytes"
	"encoding/json"
)

// Event is the base interface for all progress events decoded from the stream.
type Event interface {
	EventType() string
	TaskID() string
}

// Event type constants, as sent in the "type" field of each frame.
const (
	TypeThinking             = "thinking"
	TypeTaskSplitting        = "task_splitting"
	TypeTaskSplittingError   = "task_splitting_error"
	TypeTasksCreated         = "tasks_created"
	TypeTaskAssigned         = "task_assigned"
	TypeTaskReassigned       = "task_reassigned"
	TypeTaskAssignmentFailed = "task_assignment_failed"
	TypeTaskStarted          = "task_started"
	TypeAgentProcessing      = "agent_processing"
	TypeCommandExecution     = "command_execution"
	TypeCommandError         = "command_error"
	TypeTerminalOutput       = "terminal_output"
	TypeContent              = "content"
	TypeResponseStart        = "response_start"
	TypeTaskCompleted        = "task_completed"
	TypeTaskFailed           = "task_failed"
	TypeComplete             = "complete"
)

// Terminal output levels.
const (
	LevelCommand = "command"
	LevelStdout  = "stdout"
	LevelStderr  = "stderr"
	LevelResult  = "result"
	LevelError   = "error"
)

// ThinkingEvent carries a supervisor status line before tasks exist.
type ThinkingEvent struct {
	Message string `json:"message"`
}

func (e ThinkingEvent) EventType() string { return TypeThinking }
func (e ThinkingEvent) TaskID() string    { return "" }

// TaskSplittingEvent is published while the supervisor breaks the request into tasks.
type TaskSplittingEvent struct {
	Message string `json:"message"`
}

func (e TaskSplittingEvent) EventType() string { return TypeTaskSplitting }
func (e TaskSplittingEvent) TaskID() string    { return "" }

// TaskSplittingErrorEvent reports that the backend fell back to simple splitting.
type TaskSplittingErrorEvent struct {
	Message string `json:"message"`
}

func (e TaskSplittingErrorEvent) EventType() string { return TypeTaskSplittingError }
func (e TaskSplittingErrorEvent) TaskID() string    { return "" }

// TaskSpec is one task as announced by tasks_created.
type TaskSpec struct {
	ID            string `json:"id"`
	Description   string `json:"description"`
	AssignedAgent string `json:"assigned_agent"`
	Status        string `json:"status"`
	Priority      *int   `json:"priority,omitempty"`
}

// TasksCreatedEvent announces the task list for the current request.
type TasksCreatedEvent struct {
	Tasks []TaskSpec `json:"tasks"`
}

func (e TasksCreatedEvent) EventType() string { return TypeTasksCreated }
func (e TasksCreatedEvent) TaskID() string    { return "" }

// TaskAssignedEvent is published when an agent is chosen for a task.
type TaskAssignedEvent struct {
	ID      string `json:"task_id"`
	Agent   string `json:"agent"`
	Message string `json:"message"`
}

func (e TaskAssignedEvent) EventType() string { return TypeTaskAssigned }
func (e TaskAssignedEvent) TaskID() string    { return e.ID }

// TaskReassignedEvent is published when the backend moves a task to another agent.
type TaskReassignedEvent struct {
	ID            string `json:"task_id"`
	Agent         string `json:"agent,omitempty"`
	OriginalAgent string `json:"original_agent,omitempty"`
	NewAgent      string `json:"new_agent,omitempty"`
	Message       string `json:"message"`
}

func (e TaskReassignedEvent) EventType() string { return TypeTaskReassigned }
func (e TaskReassignedEvent) TaskID() string    { return e.ID }

// Target returns the agent the task now belongs to.
func (e TaskReassignedEvent) Target() string {
	if e.Agent != "" {
		return e.Agent
	}
	return e.NewAgent
}

// TaskAssignmentFailedEvent reports that no agent could take a task.
type TaskAssignmentFailedEvent struct {
	ID      string `json:"task_id"`
	Message string `json:"message"`
}

func (e TaskAssignmentFailedEvent) EventType() string { return TypeTaskAssignmentFailed }
func (e TaskAssignmentFailedEvent) TaskID() string    { return e.ID }

// TaskStartedEvent is published when a task begins execution.
type TaskStartedEvent struct {
	ID       string `json:"task_id"`
	Message  string `json:"message"`
	Progress string `json:"progress,omitempty"`
}

func (e TaskStartedEvent) EventType() string { return TypeTaskStarted }
func (e TaskStartedEvent) TaskID() string    { return e.ID }

// AgentProcessingEvent carries live activity for the agent working a task.
type AgentProcessingEvent struct {
	ID      string `json:"task_id"`
	Agent   string `json:"agent"`
	Message string `json:"message"`
}

func (e AgentProcessingEvent) EventType() string { return TypeAgentProcessing }
func (e AgentProcessingEvent) TaskID() string    { return e.ID }

// CommandExecutionEvent is published when a task runs a shell command.
type CommandExecutionEvent struct {
	ID      string `json:"task_id"`
	Command string `json:"command"`
	Message string `json:"message"`
}

func (e CommandExecutionEvent) EventType() string { return TypeCommandExecution }
func (e CommandExecutionEvent) TaskID() string    { return e.ID }

// CommandErrorEvent is published when a command task has nothing to run.
type CommandErrorEvent struct {
	ID      string `json:"task_id"`
	Message string `json:"message"`
}

func (e CommandErrorEvent) EventType() string { return TypeCommandError }
func (e CommandErrorEvent) TaskID() string    { return e.ID }

// TerminalOutputEvent is one classified line of command output.
type TerminalOutputEvent struct {
	Level   string `json:"level"`
	Message string `json:"message"`
}

func (e TerminalOutputEvent) EventType() string { return TypeTerminalOutput }
func (e TerminalOutputEvent) TaskID() string    { return "" }

// ContentEvent is one streamed fragment of the final response.
type ContentEvent struct {
	Content string `json:"content"`
}

func (e ContentEvent) EventType() string { return TypeContent }
func (e ContentEvent) TaskID() string    { return "" }

// ResponseStartEvent marks the start of the final response stream.
type ResponseStartEvent struct {
	Agent string `json:"agent"`
}

func (e ResponseStartEvent) EventType() string { return TypeResponseStart }
func (e ResponseStartEvent) TaskID() string    { return "" }

// TaskCompletedEvent is published when a task completes successfully.
type TaskCompletedEvent struct {
	ID       string          `json:"task_id"`
	Message  string          `json:"message"`
	Progress string          `json:"progress,omitempty"`
	Output   json.RawMessage `json:"output,omitempty"`
}

func (e TaskCompletedEvent) EventType() string { return TypeTaskCompleted }
func (e TaskCompletedEvent) TaskID() string    { return e.ID }

// OutputText returns the output as display text.
func (e TaskCompletedEvent) OutputText() string { return rawText(e.Output) }

// TaskFailedEvent is published when a task fails.
type TaskFailedEvent struct {
	ID       string          `json:"task_id"`
	Message  string          `json:"message"`
	Progress string          `json:"progress,omitempty"`
	Error    string          `json:"error,omitempty"`
	Output   json.RawMessage `json:"output,omitempty"`
}

func (e TaskFailedEvent) EventType() string { return TypeTaskFailed }
func (e TaskFailedEvent) TaskID() string    { return e.ID }

// OutputText returns the output as display text.
func (e TaskFailedEvent) OutputText() string { return rawText(e.Output) }

// CompleteEvent closes the request.
type CompleteEvent struct {
	Agent string `json:"agent,omitempty"`
}

func (e CompleteEvent) EventType() string { return TypeComplete }
func (e CompleteEvent) TaskID() string    { return "" }

// UnknownEvent holds a well-formed frame whose type this client does not know.
type UnknownEvent struct {
	Type string
	Raw  json.RawMessage
}

func (e UnknownEvent) EventType() string { return e.Type }
func (e UnknownEvent) TaskID() string    { return "" }

// rawText renders an arbitrary JSON value for display: strings are unquoted,
// null yields "", everything else is compacted.
func rawText(raw json.RawMessage) string {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return ""
	}
	var s string
	if err := json.Unmarshal(trimmed, &s); err == nil {
		return s
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, trimmed); err != nil {
		return string(trimmed)
	}
	return buf.String()
}
