package schemas

import (
	"encoding/json"
	"time"
)

type TaskType string

const (
	TaskScreenshot TaskType = "screenshot"
	TaskClick      TaskType = "click"
	TaskSwipe      TaskType = "swipe"
	TaskFight      TaskType = "fight"
	TaskRecruit    TaskType = "recruit"
	TaskInfrast    TaskType = "infrast"
	TaskCopilot    TaskType = "copilot"
	TaskStartUp    TaskType = "startup"
	TaskCloseDown  TaskType = "closedown"
	TaskCustom     TaskType = "custom"
)

type TaskStatus string

const (
	TaskStatusPending    TaskStatus = "pending"
	TaskStatusConnecting TaskStatus = "connecting"
	TaskStatusRunning    TaskStatus = "running"
	TaskStatusCompleted  TaskStatus = "completed"
	TaskStatusFailed     TaskStatus = "failed"
)

// Terminal reports whether a status can never change again. Completed and
// failed tasks stay that way; the store rejects any later transition.
func (s TaskStatus) Terminal() bool {
	return s == TaskStatusCompleted || s == TaskStatusFailed
}

type EngineState string

const (
	EngineIdle         EngineState = "idle"
	EngineConnecting   EngineState = "connecting"
	EngineConnected    EngineState = "connected"
	EngineDisconnected EngineState = "disconnected"
)

type Task struct {
	ID               int64           `json:"id"`
	Type             TaskType        `json:"type"`
	Params           json.RawMessage `json:"params,omitempty"`
	Priority         int             `json:"priority"`
	Status           TaskStatus      `json:"status"`
	Progress         float64         `json:"progress"`
	CurrentOperation string          `json:"current_operation,omitempty"`
	Result           json.RawMessage `json:"result,omitempty"`
	Error            string          `json:"error,omitempty"`
	CreatedAt        time.Time       `json:"created_at"`
	StartedAt        *time.Time      `json:"started_at,omitempty"`
	FinishedAt       *time.Time      `json:"finished_at,omitempty"`
}

// TaskResult is delivered exactly once on a submission's private result
// channel, whether the task ran, failed, or was drained at shutdown.
type TaskResult struct {
	Success         bool            `json:"success"`
	TaskID          int64           `json:"task_id"`
	Result          json.RawMessage `json:"result,omitempty"`
	Error           string          `json:"error,omitempty"`
	CompletedAt     time.Time       `json:"completed_at"`
	DurationSeconds float64         `json:"duration_seconds"`
}

type DeviceInfo struct {
	ConnectionID string    `json:"connection_id"`
	UUID         string    `json:"uuid"`
	Address      string    `json:"address"`
	Width        int       `json:"width,omitempty"`
	Height       int       `json:"height,omitempty"`
	ConnectedAt  time.Time `json:"connected_at"`
}
