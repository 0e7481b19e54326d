package events

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrMissingType is returned for a JSON frame without a "type" field.
var ErrMissingType = errors.New("event has no type")

type envelope struct {
	Type string `json:"type"`
}

// Decode parses one JSON frame into a typed event.
// Frames with an unrecognized type decode to UnknownEvent without error so
// newer backends stay compatible with this client.
func Decode(data []byte) (Event, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("decoding envelope: %w", err)
	}
	if env.Type == "" {
		return nil, ErrMissingType
	}

	switch env.Type {
	case TypeThinking:
		return decodeAs[ThinkingEvent](data)
	case TypeTaskSplitting:
		return decodeAs[TaskSplittingEvent](data)
	case TypeTaskSplittingError:
		return decodeAs[TaskSplittingErrorEvent](data)
	case TypeTasksCreated:
		return decodeAs[TasksCreatedEvent](data)
	case TypeTaskAssigned:
		return decodeAs[TaskAssignedEvent](data)
	case TypeTaskReassigned:
		return decodeAs[TaskReassignedEvent](data)
	case TypeTaskAssignmentFailed:
		return decodeAs[TaskAssignmentFailedEvent](data)
	case TypeTaskStarted:
		return decodeAs[TaskStartedEvent](data)
	case TypeAgentProcessing:
		return decodeAs[AgentProcessingEvent](data)
	case TypeCommandExecution:
		return decodeAs[CommandExecutionEvent](data)
	case TypeCommandError:
		return decodeAs[CommandErrorEvent](data)
	case TypeTerminalOutput:
		return decodeAs[TerminalOutputEvent](data)
	case TypeContent:
		return decodeAs[ContentEvent](data)
	case TypeResponseStart:
		return decodeAs[ResponseStartEvent](data)
	case TypeTaskCompleted:
		return decodeAs[TaskCompletedEvent](data)
	case TypeTaskFailed:
		return decodeAs[TaskFailedEvent](data)
	case TypeComplete:
		return decodeAs[CompleteEvent](data)
	default:
		raw := make(json.RawMessage, len(data))
		copy(raw, data)
		return UnknownEvent{Type: env.Type, Raw: raw}, nil
	}
}

func decodeAs[T Event](data []byte) (Event, error) {
	var ev T
	if err := json.Unmarshal(data, &ev); err != nil {
		return nil, fmt.Errorf("decoding %s: %w", ev.EventType(), err)
	}
	return ev, nil
}
