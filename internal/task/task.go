package task

import (
	"strings"
	"time"
)

// Status represents the current state of a task.
type Status int

const (
	Pending   Status = iota // Announced, not started
	Running                 // Currently executing
	Completed               // Finished successfully
	Failed                  // Finished with error
)

// String returns the wire name of the status.
func (s Status) String() string {
	switch s {
	case Running:
		return "running"
	case Completed:
		return "completed"
	case Failed:
		return "failed"
	default:
		return "pending"
	}
}

// MarshalText encodes the status by name.
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText decodes a status name.
func (s *Status) UnmarshalText(text []byte) error {
	*s = ParseStatus(string(text))
	return nil
}

// ParseStatus maps a backend status string to a Status.
// Unknown values, including "waiting", are treated as Pending.
func ParseStatus(s string) Status {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "running", "in_progress":
		return Running
	case "completed", "done":
		return Completed
	case "failed", "error":
		return Failed
	default:
		return Pending
	}
}

// Terminal reports whether the status is final.
func (s Status) Terminal() bool {
	return s == Completed || s == Failed
}

// Task is a unit of work announced by the backend for the current session.
type Task struct {
	ID            string        `json:"id"`
	Description   string        `json:"description"`
	AssignedAgent string        `json:"assigned_agent"`
	Status        Status        `json:"status"`
	Priority      int           `json:"priority"`
	Output        string        `json:"output,omitempty"`
	Error         string        `json:"error,omitempty"`
	Progress      string        `json:"progress,omitempty"` // "i/n" as reported by the backend
	StartedAt     time.Time     `json:"started_at,omitzero"`
	EndedAt       time.Time     `json:"ended_at,omitzero"`
	Duration      time.Duration `json:"duration,omitempty"`
}

// Find returns the index of the task with the given ID, or -1.
func Find(tasks []Task, id string) int {
	for i := range tasks {
		if tasks[i].ID == id {
			return i
		}
	}
	return -1
}
