package server

import (
	"context"
	"errors"
	"net/http"
	"time"
)

func (s *Server) HandlerVersion(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte(s.Base.Config.Version))
}

func (s *Server) HandlerShutdown(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("shutting down"))

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if s.httpServer == nil {
			s.Base.Logger.Error("shutdown failed", "error", errors.New("server not initialized"))
			return
		}
		s.Shutdown(ctx)
	}()
}

type deviceResponse struct {
	Backend     string `json:"backend"`
	EngineState string `json:"engine_state"`
	Reason      string `json:"reason,omitempty"`
	Device      any    `json:"device,omitempty"`
}

func (s *Server) HandlerDevice(w http.ResponseWriter, r *http.Request) {
	state, reason := s.store.EngineState()
	response := deviceResponse{
		Backend:     s.engine.ID().String(),
		EngineState: string(state),
		Reason:      reason,
	}
	if device := s.store.Device(); device != nil {
		response.Device = device
	}
	RenderJSON(w, r, response)
}

type statsResponse struct {
	Backend       string  `json:"backend"`
	UptimeSeconds float64 `json:"uptime_seconds"`
	QueueDepth    int     `json:"queue_depth"`
	TasksRetained int     `json:"tasks_retained"`
	Subscribers   int     `json:"subscribers"`
	Callbacks     any     `json:"callbacks"`
}

func (s *Server) HandlerStats(w http.ResponseWriter, r *http.Request) {
	RenderJSON(w, r, statsResponse{
		Backend:       s.engine.ID().String(),
		UptimeSeconds: time.Since(s.startedAt).Seconds(),
		QueueDepth:    s.queue.Len(),
		TasksRetained: len(s.store.List()),
		Subscribers:   s.events.Count(),
		Callbacks:     s.handler.Stats(),
	})
}
