package orchestrator

import (
	"container/heap"
	"context"
	"sync"
	"time"

	"github.com/yourusername/gridiron-edge/internal/metrics"
)

// task is one queued fetch awaiting a worker.
type task struct {
	collectorKey string
	requestHash  string
	run          func()

	priority   Priority
	enqueuedAt time.Time
	seq        uint64
	index      int
}

// taskHeap orders by priority descending, then FIFO within a level.
type taskHeap []*task

func (h taskHeap) Len() int { return len(h) }

func (h taskHeap) Less(i, j int) bool {
	if h[i].priority != h[j].priority {
		return h[i].priority > h[j].priority
	}
	return h[i].seq < h[j].seq
}

func (h taskHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *taskHeap) Push(x interface{}) {
	t := x.(*task)
	t.index = len(*h)
	*h = append(*h, t)
}

func (h *taskHeap) Pop() interface{} {
	old := *h
	n := len(old)
	t := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return t
}

// priorityQueue is a bounded four-level scheduler queue. Requests that
// wait past their level's threshold are promoted one level, so LOW work
// is starved for at most the sum of the thresholds above it.
type priorityQueue struct {
	mu         sync.Mutex
	items      taskHeap
	capacity   int
	seq        uint64
	thresholds map[Priority]time.Duration
	signal     chan struct{}
	closed     bool
}

func newPriorityQueue(capacity int, thresholds map[Priority]time.Duration) *priorityQueue {
	q := &priorityQueue{
		capacity:   capacity,
		thresholds: thresholds,
		signal:     make(chan struct{}, 1),
	}
	heap.Init(&q.items)
	return q
}

// Enqueue adds a task. It fails when the queue is at capacity so a
// backed-up source sheds load instead of growing without bound.
func (q *priorityQueue) Enqueue(t *task) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed || len(q.items) >= q.capacity {
		return false
	}
	q.seq++
	t.seq = q.seq
	t.enqueuedAt = time.Now()
	heap.Push(&q.items, t)
	q.updateDepthGauges()

	// The wake-up send stays under q.mu: Close sets closed and closes
	// the channel under the same lock, so the send can never race it.
	select {
	case q.signal <- struct{}{}:
	default:
	}
	return true
}

// Dequeue blocks until a task is available or ctx is done.
func (q *priorityQueue) Dequeue(ctx context.Context) (*task, error) {
	for {
		q.mu.Lock()
		if q.closed {
			q.mu.Unlock()
			return nil, context.Canceled
		}
		if len(q.items) > 0 {
			t := heap.Pop(&q.items).(*task)
			q.updateDepthGauges()
			q.mu.Unlock()
			return t, nil
		}
		q.mu.Unlock()

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-q.signal:
		}
	}
}

// Escalate promotes every task that has waited past its level's
// threshold by one level. Called periodically by the owning worker pool.
func (q *priorityQueue) Escalate(now time.Time) int {
	q.mu.Lock()
	defer q.mu.Unlock()

	promoted := 0
	for _, t := range q.items {
		if t.priority >= PriorityCritical {
			continue
		}
		threshold, ok := q.thresholds[t.priority]
		if !ok {
			continue
		}
		if now.Sub(t.enqueuedAt) >= threshold {
			metrics.QueueEscalationsTotal.WithLabelValues(t.priority.String()).Inc()
			t.priority++
			t.enqueuedAt = now
			promoted++
		}
	}
	if promoted > 0 {
		heap.Init(&q.items)
		q.updateDepthGauges()
	}
	return promoted
}

// updateDepthGauges publishes the per-level depth. Caller holds q.mu.
func (q *priorityQueue) updateDepthGauges() {
	depths := map[Priority]int{}
	for _, t := range q.items {
		depths[t.priority]++
	}
	for _, p := range []Priority{PriorityLow, PriorityNormal, PriorityHigh, PriorityCritical} {
		metrics.QueueDepth.WithLabelValues(p.String()).Set(float64(depths[p]))
	}
}

// Len returns the number of waiting tasks.
func (q *priorityQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Close wakes any blocked Dequeue callers and rejects further work.
// Idempotent.
func (q *priorityQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.closed = true
	close(q.signal)
}
