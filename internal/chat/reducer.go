package chat

import (
	"cmp"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/aristath/agentgraph/internal/events"
	"github.com/aristath/agentgraph/internal/layout"
	"github.com/aristath/agentgraph/internal/task"
)

// Submit starts a new request and clears the previous request's tasks. It is
// a no-op unless the phase is Idle and text is non-empty; callers gate sends
// on the returned effect.
func Submit(s State, text string, now time.Time) (State, Effect) {
	text = strings.TrimSpace(text)
	if s.Phase != Idle || text == "" {
		return s, 0
	}

	s.Messages = append(slices.Clip(s.Messages),
		Message{
			ID:        messageID(len(s.Messages) + 1),
			Role:      RoleUser,
			Content:   text,
			Timestamp: now,
		},
		Message{
			ID:          messageID(len(s.Messages) + 2),
			Role:        RoleAssistant,
			Timestamp:   now,
			IsStreaming: true,
		},
	)
	s.Phase = Selecting
	s.Request = text
	// Tasks, slots and transcript belong to one request.
	s.Tasks = nil
	s.Slots = layout.Arena{}
	s.Log = nil
	s.StatusLine = ""
	s.CurrentAgent = ""
	s.CurrentTaskID = ""
	return s, EffectOpenStream
}

// Reduce folds one decoded event into the state.
// Events that arrive while Idle are stale and ignored, except complete.
func Reduce(s State, ev events.Event, now time.Time) (State, Effect) {
	if s.Phase == Idle {
		if _, ok := ev.(events.CompleteEvent); !ok {
			return s, 0
		}
	}

	switch ev := ev.(type) {
	case events.ThinkingEvent:
		return statusLine(s, ev.Message, now), 0
	case events.TaskSplittingEvent:
		return statusLine(s, ev.Message, now), 0
	case events.TaskSplittingErrorEvent:
		return statusLine(s, ev.Message, now), 0

	case events.TasksCreatedEvent:
		return tasksCreated(s, ev, now), 0

	case events.TaskAssignedEvent:
		return assign(s, ev.ID, ev.Agent, ev.Message, now), 0
	case events.TaskReassignedEvent:
		return assign(s, ev.ID, ev.Target(), ev.Message, now), 0

	case events.TaskAssignmentFailedEvent:
		if _, ok := s.Task(ev.ID); !ok {
			return s, 0
		}
		s = withStatus(s, ev.Message)
		return s.appendLog(Entry{TaskID: ev.ID, Kind: EntryFailure, Level: events.LevelError, Text: ev.Message, At: now}), 0

	case events.TaskStartedEvent:
		next, ok := s.updateTask(ev.ID, func(t *task.Task) {
			t.Status = task.Running
			t.StartedAt = now
			if ev.Progress != "" {
				t.Progress = ev.Progress
			}
		})
		if !ok {
			return s, 0
		}
		next = withStatus(next, ev.Message)
		next.CurrentTaskID = ev.ID
		next.Phase = Responding
		return next.appendLog(Entry{TaskID: ev.ID, Kind: EntryStart, Text: orDefault(ev.Message, "started"), At: now}), 0

	case events.AgentProcessingEvent:
		next, ok := s.updateTask(ev.ID, func(t *task.Task) {
			if t.AssignedAgent == "" {
				t.AssignedAgent = ev.Agent
			}
		})
		if !ok {
			return s, 0
		}
		next = slotTasks(next, ev.ID)
		next.CurrentAgent = ev.Agent
		next.CurrentTaskID = ev.ID
		next = withStatus(next, ev.Message)
		return next.appendLog(Entry{TaskID: ev.ID, Kind: EntryProcessing, Text: orDefault(ev.Message, ev.Agent+" processing task..."), At: now}), 0

	case events.CommandExecutionEvent:
		if _, ok := s.Task(ev.ID); !ok {
			return s, 0
		}
		text := ev.Message
		if text == "" {
			text = "$ " + ev.Command
		}
		return s.appendLog(Entry{TaskID: ev.ID, Kind: EntryCommand, Level: events.LevelCommand, Text: text, At: now}), 0

	case events.CommandErrorEvent:
		if _, ok := s.Task(ev.ID); !ok {
			return s, 0
		}
		return s.appendLog(Entry{TaskID: ev.ID, Kind: EntryCommand, Level: events.LevelError, Text: ev.Message, At: now}), 0

	case events.TerminalOutputEvent:
		return s.appendLog(Entry{
			TaskID: s.CurrentTaskID,
			Kind:   EntryTerminal,
			Level:  terminalLevel(ev.Level),
			Text:   ev.Message,
			At:     now,
		}), 0

	case events.ResponseStartEvent:
		s = s.updateAssistant(func(m *Message) {
			m.Content = ""
			if ev.Agent != "" {
				m.AgentName = ev.Agent
			}
		})
		s.responseStarted = true
		s.Phase = Responding
		return s, 0

	case events.ContentEvent:
		started := s.responseStarted
		s = s.updateAssistant(func(m *Message) {
			if !started {
				m.Content = ""
			}
			m.Content += ev.Content
		})
		s.responseStarted = true
		s.Phase = Responding
		return s, 0

	case events.TaskCompletedEvent:
		next, ok := s.updateTask(ev.ID, func(t *task.Task) {
			finish(t, task.Completed, now, ev.Progress)
			if out := ev.OutputText(); out != "" {
				t.Output = out
			}
		})
		if !ok {
			return s, 0
		}
		next = withStatus(next, ev.Message)
		return next.appendLog(Entry{TaskID: ev.ID, Kind: EntryCompletion, Text: orDefault(ev.Message, "completed"), At: now}), 0

	case events.TaskFailedEvent:
		next, ok := s.updateTask(ev.ID, func(t *task.Task) {
			finish(t, task.Failed, now, ev.Progress)
			t.Error = orDefault(ev.Error, ev.Message)
			if out := ev.OutputText(); out != "" {
				t.Output = out
			}
		})
		if !ok {
			return s, 0
		}
		next = withStatus(next, ev.Message)
		return next.appendLog(Entry{TaskID: ev.ID, Kind: EntryFailure, Level: events.LevelError, Text: orDefault(ev.Error, ev.Message), At: now}), 0

	case events.CompleteEvent:
		s = closeRequest(s, ev.Agent)
		return s, EffectFocusInput

	default:
		return s, 0
	}
}

// Finish handles the natural end of the stream. A stream that ends without a
// complete event is closed the same way, using the decoder's final text.
func Finish(s State, text, agent string) (State, Effect) {
	if s.Phase == Idle {
		return s, 0
	}
	if !s.responseStarted && text != "" {
		s = s.updateAssistant(func(m *Message) { m.Content = text })
	}
	return closeRequest(s, agent), EffectFocusInput
}

// Stop cancels the in-flight request. Tasks keep whatever status they had.
func Stop(s State) (State, Effect) {
	if s.Phase == Idle {
		return s, 0
	}
	s = s.updateAssistant(func(m *Message) { m.IsStreaming = false })
	s.Phase = Idle
	s.CurrentAgent = ""
	s.CurrentTaskID = ""
	s.responseStarted = false
	return s, EffectCancelStream | EffectFocusInput
}

// Fail records a transport error. The assistant message shows ErrorContent;
// partial task progress is kept.
func Fail(s State, err error, now time.Time) (State, Effect) {
	s = s.updateAssistant(func(m *Message) {
		if m.IsStreaming {
			m.Content = ErrorContent
			m.IsStreaming = false
		}
	})
	if err != nil {
		s = s.appendLog(Entry{Kind: EntryStatus, Level: events.LevelError, Text: err.Error(), At: now})
	}
	s.Phase = Idle
	s.CurrentAgent = ""
	s.CurrentTaskID = ""
	s.responseStarted = false
	return s, EffectFocusInput
}

func closeRequest(s State, agent string) State {
	s = s.updateAssistant(func(m *Message) {
		m.IsStreaming = false
		if m.AgentName == "" {
			m.AgentName = agent
		}
	})
	s.Phase = Idle
	s.CurrentAgent = ""
	s.CurrentTaskID = ""
	s.responseStarted = false
	return s
}

// statusLine shows a supervisor status line. Until the response starts it is
// also the assistant message content.
func statusLine(s State, msg string, now time.Time) State {
	s = withStatus(s, msg)
	if !s.responseStarted {
		s = s.updateAssistant(func(m *Message) { m.Content = msg })
	}
	return s.appendLog(Entry{Kind: EntryStatus, Text: msg, At: now})
}

func withStatus(s State, msg string) State {
	if msg != "" {
		s.StatusLine = msg
	}
	return s
}

func tasksCreated(s State, ev events.TasksCreatedEvent, now time.Time) State {
	s.Tasks = slices.Clone(s.Tasks)
	ids := make([]string, 0, len(ev.Tasks))
	var fresh []string
	for i, spec := range ev.Tasks {
		if spec.ID == "" {
			continue
		}
		ids = append(ids, spec.ID)
		if j := task.Find(s.Tasks, spec.ID); j >= 0 {
			if spec.Description != "" {
				s.Tasks[j].Description = spec.Description
			}
			if spec.AssignedAgent != "" {
				s.Tasks[j].AssignedAgent = spec.AssignedAgent
			}
			continue
		}
		priority := i
		if spec.Priority != nil {
			priority = *spec.Priority
		}
		s.Tasks = append(s.Tasks, task.Task{
			ID:            spec.ID,
			Description:   spec.Description,
			AssignedAgent: spec.AssignedAgent,
			Status:        task.ParseStatus(spec.Status),
			Priority:      priority,
		})
		fresh = append(fresh, spec.ID)
	}

	s = slotTasks(s, ids...)
	if len(fresh) > 0 {
		s = s.updateAssistant(func(m *Message) {
			m.TaskIDs = append(slices.Clip(m.TaskIDs), fresh...)
		})
	}
	return s.appendLog(Entry{Kind: EntryStatus, Text: fmt.Sprintf("%d task(s) created", len(ids)), At: now})
}

func assign(s State, id, agent, msg string, now time.Time) State {
	if agent == "" {
		return s
	}
	next, ok := s.updateTask(id, func(t *task.Task) { t.AssignedAgent = agent })
	if !ok {
		return s
	}
	next = slotTasks(next, id)
	next = withStatus(next, msg)
	return next.appendLog(Entry{TaskID: id, Kind: EntryAssignment, Text: orDefault(msg, agent+" assigned"), At: now})
}

// slotTasks gives a slot to every listed task that has an agent and no slot
// yet, lowest priority first. Existing slots never move.
func slotTasks(s State, ids ...string) State {
	var pending []task.Task
	for _, id := range ids {
		t, ok := s.Task(id)
		if !ok || t.AssignedAgent == "" {
			continue
		}
		if _, slotted := s.Slots.Slot(id); slotted {
			continue
		}
		pending = append(pending, t)
	}
	if len(pending) == 0 {
		return s
	}
	slices.SortStableFunc(pending, func(a, b task.Task) int {
		return cmp.Compare(a.Priority, b.Priority)
	})
	order := make([]string, len(pending))
	for i, t := range pending {
		order[i] = t.ID
	}
	s.Slots = s.Slots.Extend(order...)
	return s
}

func finish(t *task.Task, status task.Status, now time.Time, progress string) {
	t.Status = status
	t.EndedAt = now
	if !t.StartedAt.IsZero() {
		t.Duration = now.Sub(t.StartedAt)
	}
	if progress != "" {
		t.Progress = progress
	}
}

func terminalLevel(level string) string {
	switch level {
	case events.LevelCommand, events.LevelStdout, events.LevelStderr, events.LevelResult, events.LevelError:
		return level
	default:
		return events.LevelStdout
	}
}

func orDefault(s, fallback string) string {
	if s != "" {
		return s
	}
	return fallback
}

func messageID(n int) string {
	return fmt.Sprintf("msg-%d", n)
}
