// Package broadcast fans progress events out to any number of subscribers.
// Publish never blocks the worker: a subscriber that falls behind loses
// events rather than stalling task execution.
package broadcast

import (
	"log/slog"
	"sync"

	"github.com/gamepilot/gamepilot/internals/schemas"
)

type Broadcaster struct {
	mu     sync.RWMutex
	logger *slog.Logger
	subs   map[int]chan schemas.ProgressEvent
	next   int
	buffer int
	closed bool
}

func New(buffer int, logger *slog.Logger) *Broadcaster {
	if buffer <= 0 {
		buffer = 16
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Broadcaster{
		logger: logger,
		subs:   make(map[int]chan schemas.ProgressEvent),
		buffer: buffer,
	}
}

// Subscribe returns a receive channel and a cancel func. Cancel is
// idempotent and closes the channel.
func (b *Broadcaster) Subscribe() (<-chan schemas.ProgressEvent, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan schemas.ProgressEvent, b.buffer)
	if b.closed {
		close(ch)
		return ch, func() {}
	}

	b.next++
	id := b.next
	b.subs[id] = ch

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			if sub, ok := b.subs[id]; ok {
				delete(b.subs, id)
				close(sub)
			}
		})
	}
	return ch, cancel
}

func (b *Broadcaster) Publish(event schemas.ProgressEvent) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return
	}
	for id, sub := range b.subs {
		select {
		case sub <- event:
		default:
			b.logger.Debug("progress subscriber lagging, event dropped",
				"subscriber", id,
				"task_id", event.TaskID,
				"event", event.Event,
			)
		}
	}
}

func (b *Broadcaster) Count() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

func (b *Broadcaster) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for id, sub := range b.subs {
		delete(b.subs, id)
		close(sub)
	}
}
