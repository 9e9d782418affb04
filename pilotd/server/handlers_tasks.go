package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	z "github.com/Oudwins/zog"

	"github.com/gamepilot/gamepilot/internals/engerr"
	"github.com/gamepilot/gamepilot/internals/history"
	"github.com/gamepilot/gamepilot/internals/schemas"
)

// HandlerSubmitTask accepts a task, enqueues it, and either returns
// immediately (async, the default) or blocks until the task finishes or the
// sync timeout elapses.
func (s *Server) HandlerSubmitTask(w http.ResponseWriter, r *http.Request) {
	var request schemas.SubmitRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		RenderJSON(w, r, JsonResponseError(JsonResponseErrorCodeInvalidJson, "Invalid JSON", nil), Render.Status(http.StatusBadRequest))
		return
	}

	if issues := schemas.SubmitSchema.Validate(&request); len(issues) > 0 {
		payload := JsonResponseError(JsonResponseErrorCodeValidationFailed, "Schema validation failed", z.Issues.Flatten(issues))
		RenderJSON(w, r, payload, Render.Status(http.StatusBadRequest))
		return
	}

	sub, err := s.worker.Submit(request)
	if err != nil {
		switch engerr.KindOf(err) {
		case engerr.KindTaskQueue:
			RenderJSON(w, r, JsonResponseError(JsonResponseErrorCodeUnavailable, "Daemon is shutting down", nil), Render.Status(http.StatusServiceUnavailable))
		case engerr.KindSerialization, engerr.KindInvalidParameter:
			RenderJSON(w, r, JsonResponseError(JsonResponseErrorCodeValidationFailed, err.Error(), nil), Render.Status(http.StatusBadRequest))
		default:
			RenderJSON(w, r, JsonResponseError(JsonResponseErroCodeInternal, err.Error(), nil), Render.Status(http.StatusInternalServerError))
		}
		return
	}

	if request.Mode == schemas.ModeSync {
		s.respondSync(w, r, sub.Task.ID, sub.Result)
		return
	}

	RenderJSON(w, r, schemas.SubmitResponse{Task: sub.Task}, Render.Status(http.StatusAccepted))
}

func (s *Server) respondSync(w http.ResponseWriter, r *http.Request, taskID int64, result <-chan schemas.TaskResult) {
	timeout := time.Duration(s.Base.Config.Tasks.SyncTimeoutSeconds) * time.Second
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case res := <-result:
		task, _ := s.store.Get(taskID)
		RenderJSON(w, r, schemas.SubmitResponse{Task: task, Result: &res})
	case <-timer.C:
		// Timed out waiting; the task keeps running and the caller can poll.
		task, _ := s.store.Get(taskID)
		RenderJSON(w, r, schemas.SubmitResponse{Task: task}, Render.Status(http.StatusAccepted))
	case <-r.Context().Done():
		// Caller went away. The worker still delivers into the buffered
		// result channel, so nothing blocks.
	}
}

func (s *Server) HandlerTaskStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := parseTaskID(w, r)
	if !ok {
		return
	}

	task, found := s.store.Get(id)
	if !found {
		// Pruned from memory maybe, check the archive.
		archived, err := s.archive.Get(r.Context(), id)
		if err != nil {
			if errors.Is(err, history.ErrNotFound) {
				RenderJSON(w, r, JsonResponseError(JsonResponseErrorCodeNotFound, "task not found", nil), Render.Status(http.StatusNotFound))
				return
			}
			RenderJSON(w, r, JsonResponseError(JsonResponseErroCodeInternal, "Failed to read task status", nil), Render.Status(http.StatusInternalServerError))
			return
		}
		RenderJSON(w, r, archived)
		return
	}

	RenderJSON(w, r, task)
}

func (s *Server) HandlerListTasks(w http.ResponseWriter, r *http.Request) {
	tasks := s.store.List()
	if status := r.URL.Query().Get("status"); status != "" {
		filtered := tasks[:0]
		for _, task := range tasks {
			if string(task.Status) == status {
				filtered = append(filtered, task)
			}
		}
		tasks = filtered
	}
	RenderJSON(w, r, map[string]any{"tasks": tasks, "count": len(tasks)})
}

// HandlerStopTask interrupts the engine's current activity. The engine has
// no per-task cancellation, so stop applies to whatever is running now.
func (s *Server) HandlerStopTask(w http.ResponseWriter, r *http.Request) {
	id, ok := parseTaskID(w, r)
	if !ok {
		return
	}

	task, found := s.store.Get(id)
	if !found {
		RenderJSON(w, r, JsonResponseError(JsonResponseErrorCodeNotFound, "task not found", nil), Render.Status(http.StatusNotFound))
		return
	}
	if task.Status.Terminal() {
		RenderJSON(w, r, map[string]any{"task": task, "stopped": false, "message": "task already finished"})
		return
	}

	if err := s.worker.StopCurrent(); err != nil {
		RenderJSON(w, r, JsonResponseError(JsonResponseErroCodeInternal, err.Error(), nil), Render.Status(http.StatusInternalServerError))
		return
	}
	RenderJSON(w, r, map[string]any{"task": task, "stopped": true}, Render.Status(http.StatusAccepted))
}

func (s *Server) HandlerHistory(w http.ResponseWriter, r *http.Request) {
	limit := 100
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			RenderJSON(w, r, JsonResponseError(JsonResponseErrorCodeValidationFailed, "limit must be a positive integer", nil), Render.Status(http.StatusBadRequest))
			return
		}
		limit = parsed
	}

	tasks, err := s.archive.List(r.Context(), limit)
	if err != nil {
		RenderJSON(w, r, JsonResponseError(JsonResponseErroCodeInternal, "Failed to read history", nil), Render.Status(http.StatusInternalServerError))
		return
	}
	RenderJSON(w, r, map[string]any{"tasks": tasks, "count": len(tasks)})
}

func parseTaskID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		RenderJSON(w, r, JsonResponseError(JsonResponseErrorCodeValidationFailed, "task id must be a positive integer", nil), Render.Status(http.StatusBadRequest))
		return 0, false
	}
	return id, true
}
