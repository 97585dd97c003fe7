package notify

import (
	"container/heap"
	"context"
	"errors"
	"sync"
	"time"
)

var (
	ErrQueueFull   = errors.New("notification queue is full")
	ErrQueueClosed = errors.New("notification queue is closed")
)

// Queue holds tasks until their NotBefore time has passed.
type Queue interface {
	// Push schedules task. It never blocks waiting for capacity.
	Push(ctx context.Context, task Task) error

	// Pop blocks until a task is due, ctx is done or the queue is closed.
	Pop(ctx context.Context) (Task, error)

	// Len returns the number of scheduled tasks.
	Len(ctx context.Context) (int, error)

	Close() error
}

// MemoryQueue is an in-process Queue ordered by NotBefore. Tasks do not survive a restart.
type MemoryQueue struct {
	mu       sync.Mutex
	tasks    taskHeap
	capacity int
	wake     chan struct{}
	done     chan struct{}
	closed   bool
}

// NewMemoryQueue creates a queue holding at most capacity tasks. Zero means unbounded.
func NewMemoryQueue(capacity int) *MemoryQueue {
	return &MemoryQueue{
		capacity: capacity,
		wake:     make(chan struct{}, 1),
		done:     make(chan struct{}),
	}
}

func (q *MemoryQueue) Push(_ context.Context, task Task) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return ErrQueueClosed
	}
	if q.capacity > 0 && len(q.tasks) >= q.capacity {
		q.mu.Unlock()
		return ErrQueueFull
	}
	heap.Push(&q.tasks, task)
	q.mu.Unlock()

	q.signal()
	return nil
}

func (q *MemoryQueue) Pop(ctx context.Context) (Task, error) {
	for {
		q.mu.Lock()
		if q.closed {
			q.mu.Unlock()
			return Task{}, ErrQueueClosed
		}

		wait := time.Duration(-1)
		if len(q.tasks) > 0 {
			if wait = time.Until(q.tasks[0].NotBefore); wait <= 0 {
				task := heap.Pop(&q.tasks).(Task)
				more := len(q.tasks) > 0
				q.mu.Unlock()
				if more {
					q.signal()
				}
				return task, nil
			}
		}
		q.mu.Unlock()

		var (
			timer  *time.Timer
			timerC <-chan time.Time
		)
		if wait > 0 {
			timer = time.NewTimer(wait)
			timerC = timer.C
		}

		select {
		case <-ctx.Done():
			stopTimer(timer)
			return Task{}, ctx.Err()
		case <-q.done:
			stopTimer(timer)
			return Task{}, ErrQueueClosed
		case <-q.wake:
		case <-timerC:
		}
		stopTimer(timer)
	}
}

func (q *MemoryQueue) Len(context.Context) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.tasks), nil
}

// Close wakes every waiting Pop. Scheduled tasks are discarded.
func (q *MemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if !q.closed {
		q.closed = true
		close(q.done)
	}
	return nil
}

func (q *MemoryQueue) signal() {
	select {
	case q.wake <- struct{}{}:
	default:
	}
}

func stopTimer(t *time.Timer) {
	if t != nil {
		t.Stop()
	}
}

type taskHeap []Task

func (h taskHeap) Len() int { return len(h) }

func (h taskHeap) Less(i, j int) bool {
	if h[i].NotBefore.Equal(h[j].NotBefore) {
		return h[i].ID < h[j].ID
	}
	return h[i].NotBefore.Before(h[j].NotBefore)
}

func (h taskHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *taskHeap) Push(x any) { *h = append(*h, x.(Task)) }

func (h *taskHeap) Pop() any {
	old := *h
	n := len(old)
	task := old[n-1]
	*h = old[:n-1]
	return task
}
