package core

import (
	"testing"
	"time"

	"github.com/gamepilot/gamepilot/internals/engine"
	"github.com/gamepilot/gamepilot/internals/schemas"
	"github.com/gamepilot/gamepilot/internals/testutil"
)

func message(taskID int64, code int32, content string) engine.CallbackMessage {
	return engine.CallbackMessage{
		TaskID:    taskID,
		Code:      code,
		Type:      engine.MessageTypeFromCode(code),
		Content:   content,
		Timestamp: time.Now(),
	}
}

func TestCallbackHandlerCountsMessages(t *testing.T) {
	h := NewCallbackHandler(testutil.SilentLogger())

	h.HandleMessage(message(0, 2, `{"what":"Connected"}`))
	h.HandleMessage(message(7, 10001, `{"taskid":7}`))
	h.HandleMessage(message(7, 10000, `{"taskid":7}`))

	stats := h.Stats()
	if stats.TotalMessages != 3 {
		t.Fatalf("expected 3 messages, got %d", stats.TotalMessages)
	}
	if stats.ErrorCount != 1 {
		t.Fatalf("expected 1 error, got %d", stats.ErrorCount)
	}
	if stats.MessagesByType["task_chain_start"] != 1 {
		t.Fatalf("expected per-type count, got %v", stats.MessagesByType)
	}
	if stats.LastMessageAt.IsZero() {
		t.Fatalf("expected last message timestamp")
	}
}

func TestCallbackHandlerTracksActiveTasks(t *testing.T) {
	h := NewCallbackHandler(testutil.SilentLogger())

	h.Register(42, schemas.TaskFight)
	if stats := h.Stats(); stats.ActiveTasks != 1 {
		t.Fatalf("expected 1 active task, got %d", stats.ActiveTasks)
	}

	h.HandleMessage(message(42, 20001, `{"taskid":42}`))
	h.HandleMessage(message(42, 20002, `{"taskid":42}`))
	if count, ok := h.MessageCount(42); !ok || count != 2 {
		t.Fatalf("expected 2 messages for task, got %d (%v)", count, ok)
	}

	h.Unregister(42)
	if stats := h.Stats(); stats.ActiveTasks != 0 {
		t.Fatalf("expected 0 active tasks, got %d", stats.ActiveTasks)
	}
	if _, ok := h.MessageCount(42); ok {
		t.Fatalf("expected unknown task after unregister")
	}
}

func TestCallbackHandlerForwardsMessages(t *testing.T) {
	h := NewCallbackHandler(testutil.SilentLogger())

	forwarded := make([]engine.CallbackMessage, 0, 2)
	h.SetForward(func(msg engine.CallbackMessage) {
		forwarded = append(forwarded, msg)
	})

	h.HandleMessage(message(1, 10001, `{"taskid":1}`))
	h.HandleMessage(message(1, 10002, `{"taskid":1}`))

	if len(forwarded) != 2 {
		t.Fatalf("expected 2 forwarded messages, got %d", len(forwarded))
	}
	if forwarded[0].Type != engine.MsgTaskChainStart {
		t.Fatalf("unexpected first message: %s", forwarded[0].Type)
	}
}

func TestCallbackHandlerUnknownTaskStillCounted(t *testing.T) {
	h := NewCallbackHandler(testutil.SilentLogger())

	// A callback for a task nobody registered must not be dropped.
	h.HandleMessage(message(999, 10002, `{"taskid":999}`))

	if stats := h.Stats(); stats.TotalMessages != 1 {
		t.Fatalf("expected message counted, got %d", stats.TotalMessages)
	}
}
