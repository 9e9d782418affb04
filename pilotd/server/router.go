package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(s.MiddlewareLogger)
	r.Get("/version", s.HandlerVersion)
	r.Post("/shutdown", s.HandlerShutdown)
	r.Post("/tasks", s.HandlerSubmitTask)
	r.Get("/tasks", s.HandlerListTasks)
	r.Get("/tasks/{id}", s.HandlerTaskStatus)
	r.Post("/tasks/{id}/stop", s.HandlerStopTask)
	r.Get("/history", s.HandlerHistory)
	r.Get("/device", s.HandlerDevice)
	r.Get("/stats", s.HandlerStats)
	r.Get("/events", s.HandlerEvents)
	return r
}
