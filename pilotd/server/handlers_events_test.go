package server

import (
	"bufio"
	"context"
	"net/http"
	"strings"
	"testing"
	"time"
)

func TestHandlerEventsStreamsTaskLifecycle(t *testing.T) {
	_, ts := newTestServer(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"/events", nil)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer resp.Body.Close()

	if got := resp.Header.Get("Content-Type"); got != "text/event-stream" {
		t.Fatalf("expected event stream, got %q", got)
	}

	go func() {
		// Give the subscription a moment to attach before generating events.
		time.Sleep(50 * time.Millisecond)
		r, err := http.Post(ts.URL+"/tasks", "application/json", strings.NewReader(`{"type":"screenshot","mode":"sync"}`))
		if err == nil {
			r.Body.Close()
		}
	}()

	scanner := bufio.NewScanner(resp.Body)
	seen := map[string]bool{}
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(line, "event: ") {
			seen[strings.TrimPrefix(line, "event: ")] = true
		}
		if seen["started"] && seen["completed"] {
			return
		}
	}
	t.Fatalf("stream ended early, saw %v", seen)
}
