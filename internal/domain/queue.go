package domain

import (
	"context"
	"sync"
)

// job is one unit of work on a domain. done is nil for fire-and-forget
// submissions.
type job struct {
	ctx  context.Context
	task Task
	done chan error
}

// taskQueue is an unbounded, thread-safe FIFO of jobs.
//
// Unbounded so that a cascade can enqueue the next level from inside a
// running task without ever blocking its own domain.
//
// The signal channel has a buffer of one and coalesces wakeups; the consumer
// must drain with TryDequeue after every signal.
type taskQueue struct {
	mu     sync.Mutex
	jobs   []job
	closed bool
	signal chan struct{}
}

func newTaskQueue() *taskQueue {
	return &taskQueue{
		jobs:   make([]job, 0, 16),
		signal: make(chan struct{}, 1),
	}
}

// Enqueue adds a job to the back of the queue.
// Returns false if the queue is closed.
func (q *taskQueue) Enqueue(j job) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}

	q.jobs = append(q.jobs, j)

	select {
	case q.signal <- struct{}{}:
	default:
	}

	return true
}

// TryDequeue removes the front job without blocking.
func (q *taskQueue) TryDequeue() (job, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.jobs) == 0 {
		return job{}, false
	}

	j := q.jobs[0]

	// Clear the slot so the backing array does not pin finished closures.
	q.jobs[0] = job{}

	if len(q.jobs) == 1 {
		q.jobs = q.jobs[:0]
	} else {
		q.jobs = q.jobs[1:]
	}

	return j, true
}

// Wait returns a channel that signals when jobs may be available.
// It is closed once the queue is closed.
func (q *taskQueue) Wait() <-chan struct{} {
	return q.signal
}

// Len returns the current queue length.
func (q *taskQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.jobs)
}

// Drained reports whether the queue is closed and empty.
func (q *taskQueue) Drained() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed && len(q.jobs) == 0
}

// Close stops accepting jobs. Queued jobs remain dequeueable.
func (q *taskQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}

	q.closed = true
	close(q.signal)
}
