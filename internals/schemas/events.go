package schemas

import "time"

type EventType string

const (
	EventStarted   EventType = "started"
	EventProgress  EventType = "progress"
	EventCompleted EventType = "completed"
	EventFailed    EventType = "failed"
)

// ProgressEvent is the broadcast shape consumed by external subscribers,
// e.g. the SSE endpoint. TaskID 0 means a connection-level event.
type ProgressEvent struct {
	TaskID    int64          `json:"task_id"`
	TaskType  TaskType       `json:"task_type,omitempty"`
	Event     EventType      `json:"event_type"`
	Message   string         `json:"message,omitempty"`
	Data      map[string]any `json:"data,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}
