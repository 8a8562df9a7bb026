// Package queue defines the contract for enqueuing and consuming
// recalculation jobs. A job asks for one event's cohort to be recomputed,
// typically after a configuration or threshold change.
package queue

import (
	"context"
	"sync"
	"time"

	"github.com/hematin/donoreval/pkg/metrics"
)

// Default queue configuration constants.
const (
	defaultCapacity = 1024
)

// Job is one pending cohort recomputation request.
type Job struct {
	EventID    string
	Reason     string
	EnqueuedAt time.Time
}

// Queue provides non-blocking enqueue and channel-based dequeue semantics.
type Queue interface {
	// Enqueue adds a job to the queue. A request for an event that already
	// has a pending job coalesces into it. Returns false if the queue is
	// full or closed and the job was not accepted.
	Enqueue(ctx context.Context, j Job) bool

	// Dequeue returns a channel that receives jobs as they become
	// available. The channel is closed when the queue is closed.
	Dequeue(ctx context.Context) <-chan Job

	// Len returns the current number of queued jobs.
	Len(ctx context.Context) int

	// Close gracefully shuts down the queue.
	Close() error
}

// InMemoryQueue implements Queue using a buffered channel plus a pending set
// for per-event coalescing.
type InMemoryQueue struct {
	jobs     chan Job
	capacity int

	mu      sync.Mutex
	pending map[string]bool // event id -> queued but not yet dequeued
	closed  bool
}

// NewInMemoryQueue creates a new in-memory queue with configuration options.
func NewInMemoryQueue(opts ...Option) *InMemoryQueue {
	q := &InMemoryQueue{
		capacity: defaultCapacity,
		pending:  make(map[string]bool),
	}

	// Apply all options
	for _, opt := range opts {
		opt(q)
	}

	q.jobs = make(chan Job, q.capacity)

	metrics.UpdateRecalcQueueCapacity(q.capacity)
	metrics.UpdateRecalcQueueSize(0)

	return q
}

// Enqueue adds a job unless one is already pending for the same event.
func (q *InMemoryQueue) Enqueue(ctx context.Context, j Job) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		metrics.RecordRecalcEnqueueError()
		return false
	}
	if q.pending[j.EventID] {
		// A pending job already covers this event's recomputation.
		metrics.RecordRecalcCoalesced()
		return true
	}

	select {
	case q.jobs <- j:
		q.pending[j.EventID] = true
		metrics.RecordRecalcEnqueued()
		metrics.UpdateRecalcQueueSize(len(q.jobs))
		return true
	case <-ctx.Done():
		metrics.RecordRecalcEnqueueError()
		return false
	default:
		metrics.RecordRecalcEnqueueError()
		return false // queue is full
	}
}

// Dequeue returns a channel that receives jobs as they become available.
func (q *InMemoryQueue) Dequeue(ctx context.Context) <-chan Job {
	out := make(chan Job)
	go func() {
		defer close(out)
		for job := range q.jobs {
			q.mu.Lock()
			delete(q.pending, job.EventID)
			q.mu.Unlock()
			metrics.UpdateRecalcQueueSize(len(q.jobs))

			select {
			case out <- job:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

// Len returns the current number of queued jobs.
func (q *InMemoryQueue) Len(ctx context.Context) int {
	size := len(q.jobs)
	metrics.UpdateRecalcQueueSize(size)
	return size
}

// Close gracefully shuts down the queue.
func (q *InMemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil // already closed
	}
	close(q.jobs)
	q.closed = true
	return nil
}

// IsClosed returns true if the queue has been closed.
func (q *InMemoryQueue) IsClosed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}
