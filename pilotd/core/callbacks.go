package core

import (
	"log/slog"
	"sync"
	"time"

	"github.com/gamepilot/gamepilot/internals/engine"
	"github.com/gamepilot/gamepilot/internals/schemas"
)

type activeTask struct {
	Type         schemas.TaskType
	RegisteredAt time.Time
	MessageCount int
}

// CallbackStats is a snapshot of aggregate callback counters.
type CallbackStats struct {
	TotalMessages  uint64            `json:"total_messages"`
	ErrorCount     uint64            `json:"error_count"`
	MessagesByType map[string]uint64 `json:"messages_by_type"`
	LastMessageAt  time.Time         `json:"last_message_at"`
	ActiveTasks    int               `json:"active_tasks"`
}

// CallbackHandler consumes bridged engine messages: it tracks which engine
// task ids are live, counts traffic, then hands the message to a forward
// func installed by the worker. Connection-level callbacks can race with
// task-level ones, so everything is guarded by one mutex.
type CallbackHandler struct {
	mu      sync.Mutex
	logger  *slog.Logger
	active  map[int64]*activeTask
	total   uint64
	errs    uint64
	byType  map[string]uint64
	last    time.Time
	forward func(engine.CallbackMessage)
}

func NewCallbackHandler(logger *slog.Logger) *CallbackHandler {
	return &CallbackHandler{
		logger: logger,
		active: make(map[int64]*activeTask),
		byType: make(map[string]uint64),
	}
}

// SetForward installs the downstream consumer. Call before messages flow.
func (h *CallbackHandler) SetForward(forward func(engine.CallbackMessage)) {
	h.mu.Lock()
	h.forward = forward
	h.mu.Unlock()
}

func (h *CallbackHandler) Register(engineTaskID int64, taskType schemas.TaskType) {
	h.mu.Lock()
	h.active[engineTaskID] = &activeTask{Type: taskType, RegisteredAt: time.Now()}
	h.mu.Unlock()
}

func (h *CallbackHandler) Unregister(engineTaskID int64) {
	h.mu.Lock()
	delete(h.active, engineTaskID)
	h.mu.Unlock()
}

// HandleMessage updates the registries and forwards the message. Counter
// updates and forwarding happen under the lock so concurrent callback
// threads observe a consistent order.
func (h *CallbackHandler) HandleMessage(msg engine.CallbackMessage) {
	h.mu.Lock()
	h.total++
	h.byType[string(msg.Type)]++
	h.last = msg.Timestamp
	if msg.Type.IsError() {
		h.errs++
		h.logger.Warn("engine reported an error callback",
			"type", msg.Type,
			"task_id", msg.TaskID,
			"content", msg.Content,
		)
	}
	if entry, ok := h.active[msg.TaskID]; ok {
		entry.MessageCount++
	}
	forward := h.forward
	h.mu.Unlock()

	if forward != nil {
		forward(msg)
	}
}

func (h *CallbackHandler) Stats() CallbackStats {
	h.mu.Lock()
	defer h.mu.Unlock()

	byType := make(map[string]uint64, len(h.byType))
	for k, v := range h.byType {
		byType[k] = v
	}
	return CallbackStats{
		TotalMessages:  h.total,
		ErrorCount:     h.errs,
		MessagesByType: byType,
		LastMessageAt:  h.last,
		ActiveTasks:    len(h.active),
	}
}

// MessageCount reports how many messages a live engine task has produced.
func (h *CallbackHandler) MessageCount(engineTaskID int64) (int, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	entry, ok := h.active[engineTaskID]
	if !ok {
		return 0, false
	}
	return entry.MessageCount, true
}
