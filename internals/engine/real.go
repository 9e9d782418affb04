//go:build darwin || linux

package engine

import (
	"fmt"
	"log/slog"
	"sync"
	"unsafe"

	"github.com/ebitengine/purego"

	"github.com/gamepilot/gamepilot/internals/engerr"
)

// realHandle binds the engine's C API through dlopen. The library is opened
// once per handle; symbols are resolved eagerly so a broken install fails
// construction (and triggers the stub fallback) instead of failing mid-task.
type realHandle struct {
	mu     sync.Mutex
	logger *slog.Logger
	lib    uintptr
	inst   uintptr
	token  uintptr
	connID string

	loadResource func(string) bool
	createEx     func(uintptr, uintptr) uintptr
	destroy      func(uintptr)
	connect      func(uintptr, string, string, string) bool
	running      func(uintptr) bool
	connected    func(uintptr) bool
	appendTask   func(uintptr, string, string) int32
	setParams    func(uintptr, int32, string) bool
	start        func(uintptr) bool
	stop         func(uintptr) bool
	click        func(uintptr, int32, int32) int64
	swipe        func(uintptr, int32, int32, int32, int32, int32) int64
	getUUID      func(uintptr, uintptr, uint64) uint64
	getImage     func(uintptr, uintptr, uint64) uint64
	getTasks     func(uintptr, uintptr, uint64) uint64
	backToHome   func(uintptr) bool
}

// engineCallback is the single C callback registered with the engine. It is
// created once; the engine invokes it from its own threads with the token we
// passed as user_data. Everything it does is delegated to the bridge, which
// cannot panic or block.
var engineCallback = purego.NewCallback(func(code int32, detail uintptr, custom uintptr) uintptr {
	box := lookupSender(custom)
	if box == nil {
		// Handle already torn down; late message, drop it.
		return 0
	}
	bridgeMessage(code, goString(detail), box.ch, box.logger)
	return 0
})

func newReal(opts Options) (Handle, error) {
	if opts.LibPath == "" {
		return nil, engerr.New(engerr.KindConfiguration, "engine.load", "engine lib_path not configured")
	}
	if opts.Messages == nil {
		return nil, engerr.New(engerr.KindConfiguration, "engine.load", "callback channel is required")
	}

	lib, err := purego.Dlopen(opts.LibPath, purego.RTLD_NOW|purego.RTLD_GLOBAL)
	if err != nil {
		return nil, engerr.Wrap(engerr.KindResource, "engine.dlopen", err)
	}

	h := &realHandle{
		logger: opts.Logger.With(slog.String("backend", BackendReal.String())),
		lib:    lib,
	}
	if err := h.bind(); err != nil {
		return nil, err
	}

	if opts.ResourcePath != "" {
		if !h.loadResource(opts.ResourcePath) {
			return nil, engerr.Newf(engerr.KindResource, "engine.load_resource", "failed to load resource bundle at %s", opts.ResourcePath)
		}
	}

	h.token = registerSender(opts.Messages, h.logger)
	h.inst = h.createEx(engineCallback, h.token)
	if h.inst == 0 {
		releaseSender(h.token)
		return nil, engerr.New(engerr.KindFFI, "engine.create", "engine returned a null instance")
	}
	return h, nil
}

func (h *realHandle) bind() (err error) {
	// RegisterLibFunc panics on a missing symbol; convert to a construction
	// error so selection can fall back to the stub.
	defer func() {
		if recovered := recover(); recovered != nil {
			err = engerr.Newf(engerr.KindResource, "engine.dlsym", "%v", recovered)
		}
	}()

	purego.RegisterLibFunc(&h.loadResource, h.lib, "EngineLoadResource")
	purego.RegisterLibFunc(&h.createEx, h.lib, "EngineCreateEx")
	purego.RegisterLibFunc(&h.destroy, h.lib, "EngineDestroy")
	purego.RegisterLibFunc(&h.connect, h.lib, "EngineConnect")
	purego.RegisterLibFunc(&h.running, h.lib, "EngineRunning")
	purego.RegisterLibFunc(&h.connected, h.lib, "EngineConnected")
	purego.RegisterLibFunc(&h.appendTask, h.lib, "EngineAppendTask")
	purego.RegisterLibFunc(&h.setParams, h.lib, "EngineSetTaskParams")
	purego.RegisterLibFunc(&h.start, h.lib, "EngineStart")
	purego.RegisterLibFunc(&h.stop, h.lib, "EngineStop")
	purego.RegisterLibFunc(&h.click, h.lib, "EngineClick")
	purego.RegisterLibFunc(&h.swipe, h.lib, "EngineSwipe")
	purego.RegisterLibFunc(&h.getUUID, h.lib, "EngineGetUUID")
	purego.RegisterLibFunc(&h.getImage, h.lib, "EngineGetImage")
	purego.RegisterLibFunc(&h.getTasks, h.lib, "EngineGetTasksList")
	purego.RegisterLibFunc(&h.backToHome, h.lib, "EngineBackToHome")
	return nil
}

func (h *realHandle) ID() BackendID {
	return BackendReal
}

func (h *realHandle) Connect(transport string, address string, config string) (string, error) {
	if config == "" {
		config = "{}"
	}
	if !h.connect(h.inst, transport, address, config) {
		return "", engerr.Newf(engerr.KindConnection, "engine.connect", "connect to %s failed", address)
	}
	uuid, err := h.UUID()
	if err != nil {
		return "", err
	}
	h.mu.Lock()
	h.connID = uuid
	h.mu.Unlock()
	return uuid, nil
}

func (h *realHandle) IsRunning() bool {
	return h.running(h.inst)
}

func (h *realHandle) IsConnected() bool {
	return h.connected(h.inst)
}

func (h *realHandle) Screenshot() ([]byte, error) {
	buf := make([]byte, 8<<20)
	n := h.getImage(h.inst, uintptr(unsafe.Pointer(&buf[0])), uint64(len(buf)))
	if n == 0 || n > uint64(len(buf)) {
		return nil, engerr.FFI("engine.get_image", "screenshot buffer call failed", int64(int(n)))
	}
	return buf[:n:n], nil
}

func (h *realHandle) Click(x int, y int) (int64, error) {
	id := h.click(h.inst, int32(x), int32(y))
	if id < 0 {
		return 0, engerr.FFI("engine.click", fmt.Sprintf("click at (%d,%d) rejected", x, y), id)
	}
	return id, nil
}

func (h *realHandle) Swipe(x1, y1, x2, y2 int, durationMS int) (int64, error) {
	id := h.swipe(h.inst, int32(x1), int32(y1), int32(x2), int32(y2), int32(durationMS))
	if id < 0 {
		return 0, engerr.FFI("engine.swipe", "swipe rejected", id)
	}
	return id, nil
}

func (h *realHandle) CreateTask(taskType string, paramsJSON string) (int64, error) {
	if paramsJSON == "" {
		paramsJSON = "{}"
	}
	id := h.appendTask(h.inst, taskType, paramsJSON)
	if id <= 0 {
		return 0, engerr.FFI("engine.append_task", fmt.Sprintf("engine rejected task type %q", taskType), int64(id))
	}
	return int64(id), nil
}

func (h *realHandle) SetTaskParams(taskID int64, paramsJSON string) error {
	if !h.setParams(h.inst, int32(taskID), paramsJSON) {
		return engerr.FFI("engine.set_task_params", fmt.Sprintf("set params on task %d rejected", taskID), 0)
	}
	return nil
}

func (h *realHandle) Start() error {
	if !h.start(h.inst) {
		return engerr.FFI("engine.start", "start rejected", 0)
	}
	return nil
}

func (h *realHandle) Stop() error {
	if !h.stop(h.inst) {
		return engerr.FFI("engine.stop", "stop rejected", 0)
	}
	return nil
}

func (h *realHandle) UUID() (string, error) {
	buf := make([]byte, 128)
	n := h.getUUID(h.inst, uintptr(unsafe.Pointer(&buf[0])), uint64(len(buf)))
	if n == 0 || n > uint64(len(buf)) {
		return "", engerr.FFI("engine.get_uuid", "uuid buffer call failed", int64(int(n)))
	}
	return string(buf[:n]), nil
}

func (h *realHandle) Tasks() []int64 {
	buf := make([]int32, 256)
	n := h.getTasks(h.inst, uintptr(unsafe.Pointer(&buf[0])), uint64(len(buf)))
	if n > uint64(len(buf)) {
		return nil
	}
	ids := make([]int64, 0, n)
	for _, id := range buf[:n] {
		ids = append(ids, int64(id))
	}
	return ids
}

func (h *realHandle) BackToHome() error {
	if !h.backToHome(h.inst) {
		return engerr.FFI("engine.back_to_home", "back_to_home rejected", 0)
	}
	return nil
}

// Close destroys the engine instance, then releases the callback sender
// slot. Order matters: the slot must outlive the last moment the engine can
// still fire the callback.
func (h *realHandle) Close() error {
	if h.inst != 0 {
		h.destroy(h.inst)
		h.inst = 0
	}
	if h.token != 0 {
		releaseSender(h.token)
		h.token = 0
	}
	return nil
}

// goString copies a NUL-terminated C string. A zero pointer yields "".
//
// ptr addresses engine-owned C memory handed across purego; it never refers
// to Go-managed memory, so the uintptr round trip cannot outlive a GC move.
func goString(ptr uintptr) string {
	if ptr == 0 {
		return ""
	}
	var length int
	for {
		if *(*byte)(unsafe.Pointer(ptr + uintptr(length))) == 0 {
			break
		}
		length++
	}
	if length == 0 {
		return ""
	}
	return string(unsafe.Slice((*byte)(unsafe.Pointer(ptr)), length))
}
