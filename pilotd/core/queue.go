package core

import (
	"container/heap"
	"context"
	"sync"

	"github.com/gamepilot/gamepilot/internals/engerr"
	"github.com/gamepilot/gamepilot/internals/schemas"
)

// Submission is one enqueued task plus its private result channel. Exactly
// one TaskResult is ever sent on Result, by the worker or by the shutdown
// drain. The channel is buffered so delivery never blocks the worker even
// when an async producer walked away without reading it.
type Submission struct {
	Task   schemas.Task
	Mode   schemas.ExecMode
	Result chan schemas.TaskResult

	seq uint64
}

func NewSubmission(task schemas.Task, mode schemas.ExecMode) *Submission {
	return &Submission{
		Task:   task,
		Mode:   mode,
		Result: make(chan schemas.TaskResult, 1),
	}
}

// Queue is the ordered hand-off between producers and the single engine
// worker. Higher priority first, FIFO within a tier.
type Queue struct {
	mu      sync.Mutex
	pending submissionHeap
	signal  chan struct{}
	seq     uint64
	closed  bool
}

func NewQueue() *Queue {
	q := &Queue{signal: make(chan struct{}, 1)}
	heap.Init(&q.pending)
	return q
}

func (q *Queue) Push(sub *Submission) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return engerr.New(engerr.KindTaskQueue, "queue.push", "queue is closed")
	}
	q.seq++
	sub.seq = q.seq
	heap.Push(&q.pending, sub)
	q.signalLocked()
	return nil
}

// Pop blocks until a submission is available or ctx is done.
func (q *Queue) Pop(ctx context.Context) (*Submission, error) {
	for {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		q.mu.Lock()
		if q.pending.Len() > 0 {
			sub := heap.Pop(&q.pending).(*Submission)
			if q.pending.Len() > 0 {
				q.signalLocked()
			}
			q.mu.Unlock()
			return sub, nil
		}
		q.mu.Unlock()

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-q.signal:
		}
	}
}

// Close rejects further pushes and returns everything still pending so the
// caller can fail each submission; no task is silently dropped.
func (q *Queue) Close() []*Submission {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true

	drained := make([]*Submission, 0, q.pending.Len())
	for q.pending.Len() > 0 {
		drained = append(drained, heap.Pop(&q.pending).(*Submission))
	}
	return drained
}

func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.pending.Len()
}

func (q *Queue) signalLocked() {
	select {
	case q.signal <- struct{}{}:
	default:
	}
}

type submissionHeap []*Submission

func (h submissionHeap) Len() int { return len(h) }

func (h submissionHeap) Less(i, j int) bool {
	if h[i].Task.Priority == h[j].Task.Priority {
		return h[i].seq < h[j].seq
	}
	return h[i].Task.Priority > h[j].Task.Priority
}

func (h submissionHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
}

func (h *submissionHeap) Push(x any) {
	*h = append(*h, x.(*Submission))
}

func (h *submissionHeap) Pop() any {
	old := *h
	n := len(old)
	sub := old[n-1]
	*h = old[:n-1]
	return sub
}
