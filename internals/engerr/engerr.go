// Package engerr is the error taxonomy shared by the engine backends, the
// worker and the HTTP surface. Every error carries a kind; severity,
// recoverability and retry-eligibility are derived from the kind so policy
// lives in one place.
package engerr

import (
	"errors"
	"fmt"
)

type Kind string

const (
	KindConnection       Kind = "connection"
	KindTaskExecution    Kind = "task_execution"
	KindFFI              Kind = "ffi"
	KindConfiguration    Kind = "configuration"
	KindResource         Kind = "resource"
	KindTimeout          Kind = "timeout"
	KindSerialization    Kind = "serialization"
	KindInvalidState     Kind = "invalid_state"
	KindInvalidParameter Kind = "invalid_parameter"
	KindCallback         Kind = "callback"
	KindSynchronization  Kind = "synchronization"
	KindDevice           Kind = "device"
	KindImageProcessing  Kind = "image_processing"
	KindTaskQueue        Kind = "task_queue"
	KindInternal         Kind = "internal"
)

type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
)

type Error struct {
	Kind   Kind
	Op     string
	Msg    string
	TaskID int64
	// Code is the native return code for FFI errors. Negative codes are
	// transient engine conditions and retry-eligible.
	Code      int64
	TimeoutMS int64
	Err       error
}

func (e *Error) Error() string {
	msg := e.Msg
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.Op != "" {
		return fmt.Sprintf("%s: %s: %s", e.Kind, e.Op, msg)
	}
	return fmt.Sprintf("%s: %s", e.Kind, msg)
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Severity() Severity {
	switch e.Kind {
	case KindConfiguration, KindInvalidParameter:
		return SeverityCritical
	case KindFFI, KindResource, KindInternal, KindInvalidState:
		return SeverityHigh
	case KindConnection, KindTaskExecution, KindDevice, KindSerialization,
		KindCallback, KindImageProcessing, KindTaskQueue:
		return SeverityMedium
	case KindTimeout, KindSynchronization:
		return SeverityLow
	default:
		return SeverityMedium
	}
}

func (e *Error) Recoverable() bool {
	switch e.Kind {
	case KindConfiguration, KindInvalidParameter, KindInternal:
		return false
	default:
		return true
	}
}

// Retryable reports whether a caller may retry the failed operation.
// Retries are a caller concern; nothing in the core retries on its own.
func (e *Error) Retryable() bool {
	switch e.Kind {
	case KindConnection, KindTimeout, KindDevice, KindSynchronization:
		return true
	case KindFFI:
		return e.Code < 0
	default:
		return false
	}
}

func New(kind Kind, op string, msg string) *Error {
	return &Error{Kind: kind, Op: op, Msg: msg}
}

func Newf(kind Kind, op string, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Msg: fmt.Sprintf(format, args...)}
}

func Wrap(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

func TaskFailure(taskID int64, reason string) *Error {
	return &Error{Kind: KindTaskExecution, Msg: reason, TaskID: taskID}
}

func FFI(op string, msg string, code int64) *Error {
	return &Error{Kind: KindFFI, Op: op, Msg: msg, Code: code}
}

func Timeout(op string, ms int64) *Error {
	return &Error{Kind: KindTimeout, Op: op, Msg: fmt.Sprintf("timed out after %dms", ms), TimeoutMS: ms}
}

// KindOf extracts the taxonomy kind from any error in the chain, defaulting
// to internal for plain errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

func IsRetryable(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Retryable()
	}
	return false
}
