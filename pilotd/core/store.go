package core

import (
	"encoding/json"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gamepilot/gamepilot/internals/schemas"
)

// Store is the in-memory task state store. Task ids are monotonic and never
// reused. Mutations after creation come only from the worker; every other
// component reads copies. Terminal statuses are immutable: a completed or
// failed task ignores all later transitions, which keeps the per-task state
// machine monotonic even when engine callbacks arrive out of order.
type Store struct {
	mu     sync.RWMutex
	nextID atomic.Int64
	tasks  map[int64]*schemas.Task

	engineState  schemas.EngineState
	engineReason string
	device       *schemas.DeviceInfo
}

func NewStore() *Store {
	return &Store{
		tasks:       make(map[int64]*schemas.Task),
		engineState: schemas.EngineIdle,
	}
}

// Create registers a new pending task and assigns its id.
func (s *Store) Create(taskType schemas.TaskType, params json.RawMessage, priority int) schemas.Task {
	task := schemas.Task{
		ID:        s.nextID.Add(1),
		Type:      taskType,
		Params:    params,
		Priority:  priority,
		Status:    schemas.TaskStatusPending,
		CreatedAt: time.Now(),
	}

	s.mu.Lock()
	copied := task
	s.tasks[task.ID] = &copied
	s.mu.Unlock()
	return task
}

func (s *Store) MarkConnecting(id int64) {
	s.transition(id, schemas.TaskStatusConnecting, func(task *schemas.Task) {
		task.CurrentOperation = "connecting to device"
	})
}

func (s *Store) MarkRunning(id int64) {
	s.transition(id, schemas.TaskStatusRunning, func(task *schemas.Task) {
		now := time.Now()
		task.StartedAt = &now
		task.CurrentOperation = "dispatched to engine"
	})
}

// SetProgress refines a running task. No-op on terminal or unknown tasks.
func (s *Store) SetProgress(id int64, progress float64, operation string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	task, ok := s.tasks[id]
	if !ok || task.Status.Terminal() {
		return
	}
	if progress > task.Progress {
		task.Progress = progress
	}
	if operation != "" {
		task.CurrentOperation = operation
	}
}

func (s *Store) Complete(id int64, result json.RawMessage) {
	s.transition(id, schemas.TaskStatusCompleted, func(task *schemas.Task) {
		now := time.Now()
		task.FinishedAt = &now
		task.Progress = 1.0
		task.CurrentOperation = ""
		task.Result = result
	})
}

func (s *Store) Fail(id int64, reason string) {
	s.transition(id, schemas.TaskStatusFailed, func(task *schemas.Task) {
		now := time.Now()
		task.FinishedAt = &now
		task.CurrentOperation = ""
		task.Error = reason
	})
}

func (s *Store) transition(id int64, status schemas.TaskStatus, mutate func(*schemas.Task)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	task, ok := s.tasks[id]
	if !ok || task.Status.Terminal() {
		return
	}
	task.Status = status
	mutate(task)
}

func (s *Store) Get(id int64) (schemas.Task, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	task, ok := s.tasks[id]
	if !ok {
		return schemas.Task{}, false
	}
	return *task, true
}

// List returns a snapshot of all retained tasks in creation order.
func (s *Store) List() []schemas.Task {
	s.mu.RLock()
	tasks := make([]schemas.Task, 0, len(s.tasks))
	for _, task := range s.tasks {
		tasks = append(tasks, *task)
	}
	s.mu.RUnlock()

	sort.Slice(tasks, func(i, j int) bool { return tasks[i].ID < tasks[j].ID })
	return tasks
}

// Prune drops terminal tasks whose finish time is older than the retention
// window. Returns how many were removed.
func (s *Store) Prune(retention time.Duration) int {
	cutoff := time.Now().Add(-retention)
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, task := range s.tasks {
		if task.Status.Terminal() && task.FinishedAt != nil && task.FinishedAt.Before(cutoff) {
			delete(s.tasks, id)
			removed++
		}
	}
	return removed
}

func (s *Store) SetEngineState(state schemas.EngineState, reason string) {
	s.mu.Lock()
	s.engineState = state
	s.engineReason = reason
	s.mu.Unlock()
}

func (s *Store) EngineState() (schemas.EngineState, string) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.engineState, s.engineReason
}

func (s *Store) SetDevice(info schemas.DeviceInfo) {
	s.mu.Lock()
	copied := info
	s.device = &copied
	s.engineState = schemas.EngineConnected
	s.engineReason = ""
	s.mu.Unlock()
}

// SetDeviceResolution fills in resolution metadata once the engine reports
// it. No-op while no device is connected.
func (s *Store) SetDeviceResolution(width int, height int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.device == nil {
		return
	}
	s.device.Width = width
	s.device.Height = height
}

// ClearDevice records a disconnect, independent of any task.
func (s *Store) ClearDevice(reason string) {
	s.mu.Lock()
	s.device = nil
	s.engineState = schemas.EngineDisconnected
	s.engineReason = reason
	s.mu.Unlock()
}

func (s *Store) Device() *schemas.DeviceInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.device == nil {
		return nil
	}
	copied := *s.device
	return &copied
}
