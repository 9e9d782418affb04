package engine

import "fmt"

// MessageType is the symbolic name of an engine callback code.
type MessageType string

const (
	MsgInternalError     MessageType = "internal_error"
	MsgInitFailed        MessageType = "init_failed"
	MsgConnectionInfo    MessageType = "connection_info"
	MsgAllTasksCompleted MessageType = "all_tasks_completed"
	MsgAsyncCallInfo     MessageType = "async_call_info"

	MsgTaskChainError     MessageType = "task_chain_error"
	MsgTaskChainStart     MessageType = "task_chain_start"
	MsgTaskChainCompleted MessageType = "task_chain_completed"
	MsgTaskChainExtraInfo MessageType = "task_chain_extra_info"
	MsgTaskChainStopped   MessageType = "task_chain_stopped"

	MsgSubTaskError     MessageType = "sub_task_error"
	MsgSubTaskStart     MessageType = "sub_task_start"
	MsgSubTaskCompleted MessageType = "sub_task_completed"
	MsgSubTaskExtraInfo MessageType = "sub_task_extra_info"
	MsgSubTaskStopped   MessageType = "sub_task_stopped"
)

var messageCodes = map[int32]MessageType{
	0: MsgInternalError,
	1: MsgInitFailed,
	2: MsgConnectionInfo,
	3: MsgAllTasksCompleted,
	4: MsgAsyncCallInfo,

	10000: MsgTaskChainError,
	10001: MsgTaskChainStart,
	10002: MsgTaskChainCompleted,
	10003: MsgTaskChainExtraInfo,
	10004: MsgTaskChainStopped,

	20000: MsgSubTaskError,
	20001: MsgSubTaskStart,
	20002: MsgSubTaskCompleted,
	20003: MsgSubTaskExtraInfo,
	20004: MsgSubTaskStopped,
}

// MessageTypeFromCode maps an engine integer code to its symbolic type.
// Unmapped codes are preserved, not dropped.
func MessageTypeFromCode(code int32) MessageType {
	if t, ok := messageCodes[code]; ok {
		return t
	}
	return MessageType(fmt.Sprintf("unknown(%d)", code))
}

// IsErrorType reports whether a message type represents an engine failure.
func (t MessageType) IsError() bool {
	switch t {
	case MsgInternalError, MsgInitFailed, MsgTaskChainError, MsgSubTaskError:
		return true
	}
	return false
}
