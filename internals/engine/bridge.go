package engine

import (
	"log/slog"
	"time"

	"github.com/tidwall/gjson"
)

// The bridge is the only code that runs on engine-owned threads. It must
// never panic across the FFI boundary and never block the engine: faults are
// logged and swallowed, and a full channel drops the message.

// bridgeMessage decodes one raw callback invocation and forwards it. Invalid
// or empty detail payloads degrade to "{}" rather than dropping the message.
func bridgeMessage(code int32, detail string, ch chan<- CallbackMessage, logger *slog.Logger) {
	defer func() {
		if recovered := recover(); recovered != nil {
			if logger != nil {
				logger.Error("engine callback fault swallowed",
					"code", code,
					"panic", recovered,
				)
			}
		}
	}()

	if detail == "" || !gjson.Valid(detail) {
		detail = "{}"
	}

	msg := CallbackMessage{
		TaskID:    taskIDFromDetail(detail),
		Code:      code,
		Type:      MessageTypeFromCode(code),
		Content:   detail,
		Timestamp: time.Now(),
	}

	select {
	case ch <- msg:
	default:
		if logger != nil {
			logger.Warn("engine callback dropped, channel full", "code", code, "task_id", msg.TaskID)
		}
	}
}

// taskIDFromDetail probes the detail JSON for the task id under the key
// spellings the engine uses. Missing or malformed ids default to 0; the
// message is still delivered.
func taskIDFromDetail(detail string) int64 {
	for _, key := range []string{"taskid", "task_id", "id"} {
		if v := gjson.Get(detail, key); v.Exists() && v.Type == gjson.Number {
			return v.Int()
		}
	}
	return 0
}
