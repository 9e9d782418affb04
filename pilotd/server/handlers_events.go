package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// HandlerEvents streams progress events over SSE. Slow consumers lose events
// instead of slowing the worker; the broadcaster drops for them.
func (s *Server) HandlerEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		RenderJSON(w, r, JsonResponseError(JsonResponseErroCodeInternal, "streaming unsupported", nil), Render.Status(http.StatusInternalServerError))
		return
	}

	events, cancel := s.events.Subscribe()
	defer cancel()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	heartbeat := time.NewTicker(15 * time.Second)
	defer heartbeat.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-heartbeat.C:
			_, _ = fmt.Fprint(w, ": ping\n\n")
			flusher.Flush()
		case event, open := <-events:
			if !open {
				return
			}
			data, err := json.Marshal(event)
			if err != nil {
				s.Base.Logger.Error("failed to encode progress event", "error", err)
				continue
			}
			_, _ = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event.Event, data)
			flusher.Flush()
		}
	}
}
