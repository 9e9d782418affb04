// Package engine owns the handle to the game-automation engine. The engine
// is an opaque, single-owner, non-reentrant C library; this package wraps it
// behind the Handle contract with two implementations, a real one bound over
// the FFI and a stub that simulates behavior. Selection falls back to the
// stub whenever the real backend cannot be constructed.
package engine

import (
	"log/slog"
	"time"
)

type BackendID string

func (b BackendID) String() string {
	return string(b)
}

const (
	BackendReal BackendID = "real"
	BackendStub BackendID = "stub"
)

// CallbackMessage is the typed form of one engine callback invocation.
// TaskID 0 means the message is global or could not be attributed.
type CallbackMessage struct {
	TaskID    int64
	Code      int32
	Type      MessageType
	Content   string
	Timestamp time.Time
}

// Handle is the contract both backends implement. All calls are synchronous
// and block until the engine returns. None of them may be invoked
// concurrently on the same handle, with one exception: Stop is safe to call
// while another call is in flight, because it is the only way to interrupt
// whatever the engine is currently running.
type Handle interface {
	ID() BackendID
	// Connect attaches the engine to a device. Returns a connection id.
	Connect(transport string, address string, config string) (string, error)
	IsRunning() bool
	IsConnected() bool
	Screenshot() ([]byte, error)
	Click(x int, y int) (int64, error)
	Swipe(x1, y1, x2, y2 int, durationMS int) (int64, error)
	// CreateTask registers a structured task with the engine and returns the
	// engine-side task id. Execution begins on Start.
	CreateTask(taskType string, paramsJSON string) (int64, error)
	SetTaskParams(taskID int64, paramsJSON string) error
	Start() error
	Stop() error
	UUID() (string, error)
	Tasks() []int64
	BackToHome() error
	// Close tears the handle down and releases the callback sender slot.
	Close() error
}

// Options configures backend selection. Messages receives every decoded
// callback; the channel sender is the only thing shared with engine threads.
type Options struct {
	PreferReal   bool
	ForceStub    bool
	LibPath      string
	ResourcePath string
	Messages     chan<- CallbackMessage
	Logger       *slog.Logger
}

// New constructs a Handle. ForceStub always yields the stub. Otherwise, when
// PreferReal is set, the real backend is attempted once and any construction
// failure logs and falls back to the stub. As long as the stub path is
// reachable, New does not fail.
func New(opts Options) (Handle, error) {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.ForceStub {
		opts.Logger.Info("engine backend forced to stub")
		return newStub(opts), nil
	}
	if opts.PreferReal {
		handle, err := newReal(opts)
		if err == nil {
			opts.Logger.Info("engine backend initialized", "backend", BackendReal, "lib", opts.LibPath)
			return handle, nil
		}
		opts.Logger.Warn("real engine backend unavailable, falling back to stub",
			"error", err,
			"lib", opts.LibPath,
			"resource", opts.ResourcePath,
		)
	}
	return newStub(opts), nil
}
