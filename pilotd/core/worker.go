package core

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"time"

	"github.com/gamepilot/gamepilot/internals/broadcast"
	"github.com/gamepilot/gamepilot/internals/conf"
	"github.com/gamepilot/gamepilot/internals/engerr"
	"github.com/gamepilot/gamepilot/internals/engine"
	"github.com/gamepilot/gamepilot/internals/history"
	"github.com/gamepilot/gamepilot/internals/schemas"
)

// nativeTaskTypes maps structured task types onto the engine's task type
// strings. Anything not listed falls through as a generic passthrough using
// the submitted type verbatim.
var nativeTaskTypes = map[schemas.TaskType]string{
	schemas.TaskFight:     "Fight",
	schemas.TaskRecruit:   "Recruit",
	schemas.TaskInfrast:   "Infrast",
	schemas.TaskCopilot:   "Copilot",
	schemas.TaskStartUp:   "StartUp",
	schemas.TaskCloseDown: "CloseDown",
}

type engineTaskRef struct {
	appTaskID int64
	taskType  schemas.TaskType
}

// Worker is the single logical owner of the engine handle. Its loop runs on
// a dedicated goroutine pinned to one OS thread, because the handle is
// neither shareable nor reentrant. Everything reaches the worker through the
// queue; everything leaves through the broadcaster, the store, and the
// per-submission result channels.
type Worker struct {
	logger   *slog.Logger
	device   conf.DeviceConfig
	store    *Store
	queue    *Queue
	handler  *CallbackHandler
	events   *broadcast.Broadcaster
	archive  *history.Store
	engine   engine.Handle
	messages <-chan engine.CallbackMessage

	// engToApp translates engine-side task ids in callbacks back to our
	// task ids. Written by the worker goroutine, read by the relay.
	mu       sync.Mutex
	engToApp map[int64]engineTaskRef

	startOnce sync.Once
	loopDone  chan struct{}
	relayDone chan struct{}
}

type WorkerDeps struct {
	Logger   *slog.Logger
	Device   conf.DeviceConfig
	Store    *Store
	Queue    *Queue
	Handler  *CallbackHandler
	Events   *broadcast.Broadcaster
	Archive  *history.Store // optional
	Engine   engine.Handle
	Messages <-chan engine.CallbackMessage
}

func NewWorker(deps WorkerDeps) *Worker {
	w := &Worker{
		logger:    deps.Logger,
		device:    deps.Device,
		store:     deps.Store,
		queue:     deps.Queue,
		handler:   deps.Handler,
		events:    deps.Events,
		archive:   deps.Archive,
		engine:    deps.Engine,
		messages:  deps.Messages,
		engToApp:  make(map[int64]engineTaskRef),
		loopDone:  make(chan struct{}),
		relayDone: make(chan struct{}),
	}
	w.handler.SetForward(w.applyMessage)
	return w
}

// Submit validates nothing; callers validate. It creates the task, enqueues
// it, and hands back the submission whose Result channel delivers exactly
// one TaskResult. A closed queue fails the task immediately.
func (w *Worker) Submit(req schemas.SubmitRequest) (*Submission, error) {
	var params json.RawMessage
	if req.Params != nil {
		data, err := json.Marshal(req.Params)
		if err != nil {
			return nil, engerr.Wrap(engerr.KindSerialization, "worker.submit", err)
		}
		params = data
	}

	task := w.store.Create(schemas.TaskType(req.Type), params, req.Priority)
	sub := NewSubmission(task, req.Mode)
	if err := w.queue.Push(sub); err != nil {
		w.store.Fail(task.ID, err.Error())
		return nil, err
	}
	w.logger.Debug("task enqueued", "task_id", task.ID, "type", task.Type, "priority", task.Priority)
	return sub, nil
}

// Run starts the relay and the execution loop. It returns immediately;
// Wait blocks until both have exited after ctx is cancelled.
func (w *Worker) Run(ctx context.Context) {
	w.startOnce.Do(func() {
		go w.relay(ctx)
		go w.loop(ctx)
	})
}

// Wait joins the background loops and then tears the engine handle down.
// The handle is closed only after the last goroutine that could touch it
// has exited.
func (w *Worker) Wait() {
	<-w.loopDone
	<-w.relayDone
	if err := w.engine.Close(); err != nil {
		w.logger.Error("failed to close engine handle", "error", err)
	}
}

// StopCurrent interrupts whatever the engine is currently running. There is
// no finer per-task granularity; Stop is the one handle call that is safe
// while the worker is mid-dispatch.
func (w *Worker) StopCurrent() error {
	return w.engine.Stop()
}

func (w *Worker) loop(ctx context.Context) {
	defer close(w.loopDone)

	// The engine handle must only ever be touched from this goroutine, and
	// the underlying library assumes a stable thread.
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	for {
		sub, err := w.queue.Pop(ctx)
		if err != nil {
			w.drain()
			return
		}
		w.execute(sub)
	}
}

// drain fails every submission still queued at shutdown so each one still
// receives its result.
func (w *Worker) drain() {
	pending := w.queue.Close()
	for _, sub := range pending {
		reason := "worker shut down before execution"
		w.store.Fail(sub.Task.ID, reason)
		w.publishTerminal(sub.Task, schemas.EventFailed, reason)
		sub.Result <- schemas.TaskResult{
			Success:     false,
			TaskID:      sub.Task.ID,
			Error:       reason,
			CompletedAt: time.Now(),
		}
	}
	if len(pending) > 0 {
		w.logger.Info("drained pending tasks at shutdown", "count", len(pending))
	}
}

func (w *Worker) execute(sub *Submission) {
	task := sub.Task
	start := time.Now()

	if !w.engine.IsConnected() {
		w.store.MarkConnecting(task.ID)
		w.store.SetEngineState(schemas.EngineConnecting, "")
		if err := w.connect(); err != nil {
			// A failed lazy connect fails this task, never the worker.
			w.finish(sub, nil, err, start)
			return
		}
	}

	w.store.MarkRunning(task.ID)
	w.events.Publish(schemas.ProgressEvent{
		TaskID:    task.ID,
		TaskType:  task.Type,
		Event:     schemas.EventStarted,
		Message:   fmt.Sprintf("task %d started", task.ID),
		Timestamp: time.Now(),
	})

	result, err := w.dispatch(task)
	w.finish(sub, result, err, start)
}

func (w *Worker) connect() error {
	connID, err := w.engine.Connect(w.device.Transport, w.device.Address, w.device.Extra)
	if err != nil {
		w.store.SetEngineState(schemas.EngineDisconnected, err.Error())
		return engerr.Wrap(engerr.KindConnection, "worker.connect", err)
	}
	uuid, err := w.engine.UUID()
	if err != nil {
		w.logger.Warn("connected but uuid lookup failed", "error", err)
	}
	w.store.SetDevice(schemas.DeviceInfo{
		ConnectionID: connID,
		UUID:         uuid,
		Address:      w.device.Address,
		ConnectedAt:  time.Now(),
	})
	w.logger.Info("device connected", "address", w.device.Address, "connection_id", connID, "backend", w.engine.ID())
	w.events.Publish(schemas.ProgressEvent{
		Event:     schemas.EventProgress,
		Message:   "device connected",
		Data:      map[string]any{"address": w.device.Address, "backend": w.engine.ID().String()},
		Timestamp: time.Now(),
	})
	return nil
}

// dispatch executes one task against the engine handle. Primitive tasks map
// onto handle primitives; structured tasks become an engine task that is
// created and started, which is this system's definition of done for them —
// later callbacks refine progress but cannot reopen the task.
func (w *Worker) dispatch(task schemas.Task) (json.RawMessage, error) {
	switch task.Type {
	case schemas.TaskScreenshot:
		shot, err := w.engine.Screenshot()
		if err != nil {
			return nil, err
		}
		if len(shot) == 0 {
			return nil, engerr.New(engerr.KindImageProcessing, "worker.screenshot", "engine returned an empty image")
		}
		return marshalResult(map[string]any{
			"image_base64": base64.StdEncoding.EncodeToString(shot),
			"size_bytes":   len(shot),
		})

	case schemas.TaskClick:
		var params struct {
			X int `json:"x"`
			Y int `json:"y"`
		}
		if err := decodeParams(task.Params, &params); err != nil {
			return nil, err
		}
		opID, err := w.engine.Click(params.X, params.Y)
		if err != nil {
			return nil, err
		}
		return marshalResult(map[string]any{"operation_id": opID, "x": params.X, "y": params.Y})

	case schemas.TaskSwipe:
		var params struct {
			X1       int `json:"x1"`
			Y1       int `json:"y1"`
			X2       int `json:"x2"`
			Y2       int `json:"y2"`
			Duration int `json:"duration_ms"`
		}
		if err := decodeParams(task.Params, &params); err != nil {
			return nil, err
		}
		if params.Duration <= 0 {
			params.Duration = 300
		}
		opID, err := w.engine.Swipe(params.X1, params.Y1, params.X2, params.Y2, params.Duration)
		if err != nil {
			return nil, err
		}
		return marshalResult(map[string]any{"operation_id": opID})

	default:
		return w.dispatchStructured(task)
	}
}

func (w *Worker) dispatchStructured(task schemas.Task) (json.RawMessage, error) {
	native, paramsJSON, err := nativeTask(task)
	if err != nil {
		return nil, err
	}

	engID, err := w.engine.CreateTask(native, paramsJSON)
	if err != nil {
		return nil, err
	}
	w.handler.Register(engID, task.Type)
	w.trackEngineTask(engID, task.ID, task.Type)

	if err := w.engine.Start(); err != nil {
		w.handler.Unregister(engID)
		w.untrackEngineTask(engID)
		return nil, err
	}
	return marshalResult(map[string]any{"engine_task_id": engID, "engine_task_type": native})
}

// nativeTask translates a task into the engine's (type string, params JSON)
// pair. Custom tasks carry their engine type in the "name" parameter.
func nativeTask(task schemas.Task) (string, string, error) {
	paramsJSON := "{}"
	if len(task.Params) > 0 {
		paramsJSON = string(task.Params)
	}

	if task.Type == schemas.TaskCustom {
		var params struct {
			Name   string          `json:"name"`
			Params json.RawMessage `json:"params"`
		}
		if err := decodeParams(task.Params, &params); err != nil {
			return "", "", err
		}
		if params.Name == "" {
			return "", "", engerr.New(engerr.KindInvalidParameter, "worker.dispatch", "custom task requires a name parameter")
		}
		inner := "{}"
		if len(params.Params) > 0 {
			inner = string(params.Params)
		}
		return params.Name, inner, nil
	}

	if native, ok := nativeTaskTypes[task.Type]; ok {
		return native, paramsJSON, nil
	}
	// Generic passthrough for task types the engine may know and we don't.
	return string(task.Type), paramsJSON, nil
}

func (w *Worker) finish(sub *Submission, result json.RawMessage, err error, start time.Time) {
	task := sub.Task
	completedAt := time.Now()
	res := schemas.TaskResult{
		TaskID:          task.ID,
		CompletedAt:     completedAt,
		DurationSeconds: completedAt.Sub(start).Seconds(),
	}

	if err != nil {
		reason := err.Error()
		w.store.Fail(task.ID, reason)
		w.publishTerminal(task, schemas.EventFailed, reason)
		res.Error = reason
		w.logger.Error("task failed",
			"task_id", task.ID,
			"type", task.Type,
			"kind", engerr.KindOf(err),
			"error", err,
		)
	} else {
		w.store.Complete(task.ID, result)
		w.publishTerminal(task, schemas.EventCompleted, "")
		res.Success = true
		res.Result = result
		w.logger.Info("task completed", "task_id", task.ID, "type", task.Type, "duration", completedAt.Sub(start))
	}

	w.archiveTask(task.ID)
	sub.Result <- res
}

func (w *Worker) archiveTask(id int64) {
	if w.archive == nil {
		return
	}
	task, ok := w.store.Get(id)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := w.archive.Record(ctx, task); err != nil {
		w.logger.Warn("failed to archive task", "task_id", id, "error", err)
	}
}

func (w *Worker) publishTerminal(task schemas.Task, event schemas.EventType, reason string) {
	msg := fmt.Sprintf("task %d %s", task.ID, event)
	data := map[string]any{}
	if reason != "" {
		data["error"] = reason
	}
	w.events.Publish(schemas.ProgressEvent{
		TaskID:    task.ID,
		TaskType:  task.Type,
		Event:     event,
		Message:   msg,
		Data:      data,
		Timestamp: time.Now(),
	})
}

// relay funnels bridged callback messages into the handler. It is the only
// reader of the message channel, so shared state downstream sees callbacks
// in the order the engine raised them.
func (w *Worker) relay(ctx context.Context) {
	defer close(w.relayDone)
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-w.messages:
			w.handler.HandleMessage(msg)
		}
	}
}

// applyMessage is installed as the handler's forward func. Updates are keyed
// by task id, never arrival order: a late callback for a finished task is a
// harmless no-op because terminal states are immutable in the store.
func (w *Worker) applyMessage(msg engine.CallbackMessage) {
	switch msg.Type {
	case engine.MsgConnectionInfo:
		w.applyConnectionInfo(msg)
		return
	case engine.MsgAllTasksCompleted:
		w.events.Publish(schemas.ProgressEvent{
			Event:     schemas.EventProgress,
			Message:   string(msg.Type),
			Data:      decodeDetail(msg.Content),
			Timestamp: msg.Timestamp,
		})
		return
	}

	ref, tracked := w.lookupEngineTask(msg.TaskID)
	appTaskID := int64(0)
	taskType := schemas.TaskType("")
	if tracked {
		appTaskID = ref.appTaskID
		taskType = ref.taskType
	}

	switch msg.Type {
	case engine.MsgTaskChainStart:
		w.store.SetProgress(appTaskID, 0.1, "task chain started")
	case engine.MsgSubTaskStart:
		w.store.SetProgress(appTaskID, 0.3, "sub task running")
	case engine.MsgSubTaskCompleted:
		w.store.SetProgress(appTaskID, 0.7, "sub task completed")
	case engine.MsgTaskChainCompleted, engine.MsgTaskChainStopped, engine.MsgTaskChainError:
		if tracked {
			w.handler.Unregister(msg.TaskID)
			w.untrackEngineTask(msg.TaskID)
		}
	}

	w.events.Publish(schemas.ProgressEvent{
		TaskID:    appTaskID,
		TaskType:  taskType,
		Event:     schemas.EventProgress,
		Message:   string(msg.Type),
		Data:      decodeDetail(msg.Content),
		Timestamp: msg.Timestamp,
	})
}

func (w *Worker) applyConnectionInfo(msg engine.CallbackMessage) {
	detail := decodeDetail(msg.Content)
	what, _ := detail["what"].(string)
	switch what {
	case "Disconnect", "ConnectFailed":
		why, _ := detail["why"].(string)
		w.store.ClearDevice(why)
		w.logger.Warn("device disconnected", "why", why)
	case "ResolutionGot":
		if details, ok := detail["details"].(map[string]any); ok {
			width, _ := details["width"].(float64)
			height, _ := details["height"].(float64)
			w.store.SetDeviceResolution(int(width), int(height))
		}
	}
	w.events.Publish(schemas.ProgressEvent{
		Event:     schemas.EventProgress,
		Message:   string(msg.Type),
		Data:      detail,
		Timestamp: msg.Timestamp,
	})
}

func (w *Worker) trackEngineTask(engID int64, appTaskID int64, taskType schemas.TaskType) {
	w.mu.Lock()
	w.engToApp[engID] = engineTaskRef{appTaskID: appTaskID, taskType: taskType}
	w.mu.Unlock()
}

func (w *Worker) untrackEngineTask(engID int64) {
	w.mu.Lock()
	delete(w.engToApp, engID)
	w.mu.Unlock()
}

func (w *Worker) lookupEngineTask(engID int64) (engineTaskRef, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	ref, ok := w.engToApp[engID]
	return ref, ok
}

func decodeParams(raw json.RawMessage, target any) error {
	if len(raw) == 0 {
		return engerr.New(engerr.KindInvalidParameter, "worker.dispatch", "missing task parameters")
	}
	if err := json.Unmarshal(raw, target); err != nil {
		return engerr.Wrap(engerr.KindInvalidParameter, "worker.dispatch", err)
	}
	return nil
}

func decodeDetail(content string) map[string]any {
	detail := map[string]any{}
	_ = json.Unmarshal([]byte(content), &detail)
	return detail
}

func marshalResult(result map[string]any) (json.RawMessage, error) {
	data, err := json.Marshal(result)
	if err != nil {
		return nil, engerr.Wrap(engerr.KindSerialization, "worker.result", err)
	}
	return data, nil
}
