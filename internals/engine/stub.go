package engine

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/gamepilot/gamepilot/internals/engerr"
)

// stubScreenshot is a valid 1x1 transparent PNG so screenshot consumers get
// a decodable payload without a device.
var stubScreenshot = []byte{
	0x89, 0x50, 0x4e, 0x47, 0x0d, 0x0a, 0x1a, 0x0a,
	0x00, 0x00, 0x00, 0x0d, 0x49, 0x48, 0x44, 0x52,
	0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00, 0x01,
	0x08, 0x06, 0x00, 0x00, 0x00, 0x1f, 0x15, 0xc4,
	0x89, 0x00, 0x00, 0x00, 0x0d, 0x49, 0x44, 0x41,
	0x54, 0x78, 0x9c, 0x62, 0x00, 0x01, 0x00, 0x00,
	0x05, 0x00, 0x01, 0x0d, 0x0a, 0x2d, 0xb4, 0x00,
	0x00, 0x00, 0x00, 0x49, 0x45, 0x4e, 0x44, 0xae,
	0x42, 0x60, 0x82,
}

type stubTask struct {
	id     int64
	typ    string
	params string
}

// stubHandle simulates the engine: synchronous primitives with millisecond
// latencies and a synthetic callback sequence for structured tasks. It
// deliberately routes its callbacks through the same bridge as the real
// backend so consumers cannot tell them apart.
type stubHandle struct {
	mu        sync.Mutex
	logger    *slog.Logger
	ch        chan<- CallbackMessage
	delay     time.Duration
	connected bool
	running   bool
	closed    bool
	connID    string
	uuid      string
	address   string
	nextTask  int64
	nextCall  int64
	pending   []stubTask
}

func newStub(opts Options) *stubHandle {
	return &stubHandle{
		logger: opts.Logger.With(slog.String("backend", BackendStub.String())),
		ch:     opts.Messages,
		delay:  10 * time.Millisecond,
	}
}

func (s *stubHandle) ID() BackendID {
	return BackendStub
}

func (s *stubHandle) Connect(transport string, address string, config string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return "", engerr.New(engerr.KindInvalidState, "stub.connect", "handle closed")
	}
	time.Sleep(s.delay)
	s.connected = true
	s.connID = uuid.NewString()
	s.uuid = uuid.NewString()
	s.address = address

	detail := fmt.Sprintf(`{"what":"Connected","why":"","details":{"address":%q,"transport":%q}}`, address, transport)
	s.emit(2, detail)
	s.emit(2, `{"what":"ResolutionGot","why":"","details":{"width":1280,"height":720}}`)
	s.logger.Debug("stub connected", "address", address)
	return s.connID, nil
}

func (s *stubHandle) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

func (s *stubHandle) IsConnected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connected
}

func (s *stubHandle) Screenshot() ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.connected {
		return nil, engerr.New(engerr.KindConnection, "stub.screenshot", "not connected")
	}
	time.Sleep(s.delay)
	shot := make([]byte, len(stubScreenshot))
	copy(shot, stubScreenshot)
	return shot, nil
}

func (s *stubHandle) Click(x int, y int) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.connected {
		return 0, engerr.New(engerr.KindConnection, "stub.click", "not connected")
	}
	time.Sleep(s.delay)
	s.nextCall++
	s.emit(4, fmt.Sprintf(`{"uuid":%q,"what":"Click","async_call_id":%d,"details":{"x":%d,"y":%d}}`, s.uuid, s.nextCall, x, y))
	return s.nextCall, nil
}

func (s *stubHandle) Swipe(x1, y1, x2, y2 int, durationMS int) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.connected {
		return 0, engerr.New(engerr.KindConnection, "stub.swipe", "not connected")
	}
	time.Sleep(s.delay)
	s.nextCall++
	s.emit(4, fmt.Sprintf(`{"uuid":%q,"what":"Swipe","async_call_id":%d,"details":{"x1":%d,"y1":%d,"x2":%d,"y2":%d,"duration":%d}}`,
		s.uuid, s.nextCall, x1, y1, x2, y2, durationMS))
	return s.nextCall, nil
}

func (s *stubHandle) CreateTask(taskType string, paramsJSON string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.connected {
		return 0, engerr.New(engerr.KindConnection, "stub.create_task", "not connected")
	}
	if taskType == "" {
		return 0, engerr.New(engerr.KindInvalidParameter, "stub.create_task", "empty task type")
	}
	s.nextTask++
	s.pending = append(s.pending, stubTask{id: s.nextTask, typ: taskType, params: paramsJSON})
	return s.nextTask, nil
}

func (s *stubHandle) SetTaskParams(taskID int64, paramsJSON string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.pending {
		if s.pending[i].id == taskID {
			s.pending[i].params = paramsJSON
			return nil
		}
	}
	return engerr.Newf(engerr.KindInvalidParameter, "stub.set_task_params", "no such task %d", taskID)
}

// Start drains the pending tasks, emitting the callback sequence the real
// engine produces: chain start, one subtask, chain completed, then a single
// all-tasks-completed once the queue is empty.
func (s *stubHandle) Start() error {
	s.mu.Lock()
	if !s.connected {
		s.mu.Unlock()
		return engerr.New(engerr.KindConnection, "stub.start", "not connected")
	}
	if s.running {
		s.mu.Unlock()
		return engerr.New(engerr.KindInvalidState, "stub.start", "already running")
	}
	tasks := s.pending
	s.pending = nil
	s.running = true
	s.mu.Unlock()

	go s.simulate(tasks)
	return nil
}

func (s *stubHandle) simulate(tasks []stubTask) {
	for _, task := range tasks {
		s.mu.Lock()
		running := s.running
		s.mu.Unlock()
		if !running {
			s.emitLocked(10004, fmt.Sprintf(`{"taskchain":%q,"taskid":%d}`, task.typ, task.id))
			return
		}

		s.emitLocked(10001, fmt.Sprintf(`{"taskchain":%q,"taskid":%d}`, task.typ, task.id))
		time.Sleep(s.delay)
		s.emitLocked(20001, fmt.Sprintf(`{"subtask":"ProcessTask","taskchain":%q,"taskid":%d}`, task.typ, task.id))
		time.Sleep(s.delay)
		s.emitLocked(20002, fmt.Sprintf(`{"subtask":"ProcessTask","taskchain":%q,"taskid":%d}`, task.typ, task.id))
		s.emitLocked(10002, fmt.Sprintf(`{"taskchain":%q,"taskid":%d}`, task.typ, task.id))
	}

	s.mu.Lock()
	s.running = false
	s.mu.Unlock()
	s.emitLocked(3, `{"finished_tasks":[]}`)
}

func (s *stubHandle) Stop() error {
	// The one call allowed while another is in flight, so it only touches
	// state under the lock and never sleeps.
	s.mu.Lock()
	defer s.mu.Unlock()
	s.running = false
	s.pending = nil
	return nil
}

func (s *stubHandle) UUID() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.connected {
		return "", engerr.New(engerr.KindConnection, "stub.uuid", "not connected")
	}
	return s.uuid, nil
}

func (s *stubHandle) Tasks() []int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]int64, 0, len(s.pending))
	for _, task := range s.pending {
		ids = append(ids, task.id)
	}
	return ids
}

func (s *stubHandle) BackToHome() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.connected {
		return engerr.New(engerr.KindConnection, "stub.back_to_home", "not connected")
	}
	time.Sleep(s.delay)
	return nil
}

func (s *stubHandle) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.connected = false
	s.running = false
	s.pending = nil
	return nil
}

// emit must be called with s.mu held.
func (s *stubHandle) emit(code int32, detail string) {
	if s.ch != nil {
		bridgeMessage(code, detail, s.ch, s.logger)
	}
}

// emitLocked takes the lock itself; for use from the simulation goroutine.
func (s *stubHandle) emitLocked(code int32, detail string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.emit(code, detail)
}
