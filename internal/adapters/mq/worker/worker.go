// Package worker runs the asynchronous cohort recalculation jobs produced by
// configuration changes.
package worker

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/hematin/donoreval/internal/adapters/mq/queue"
	"github.com/hematin/donoreval/pkg/logger"
	"github.com/hematin/donoreval/pkg/metrics"
)

// Default worker configuration constants.
const (
	defaultWorkerCount    = 2
	workerShutdownTimeout = 5 * time.Second
)

// Evaluator recomputes a whole event cohort.
type Evaluator interface {
	RecalculateEvent(ctx context.Context, eventID string) error
}

// Queue defines how workers receive jobs.
type Queue interface {
	Dequeue(ctx context.Context) <-chan queue.Job
}

// Worker consumes recalculation jobs until stopped.
type Worker struct {
	queue     Queue
	evaluator Evaluator
	name      string

	// Shutdown control
	shutdown chan struct{}
	done     chan struct{}

	// Logging
	logger logger.Logger
}

// NewWorker creates a worker with configuration options.
func NewWorker(q Queue, evaluator Evaluator, opts ...Option) *Worker {
	w := &Worker{
		queue:     q,
		evaluator: evaluator,
		name:      "recalc-worker",
		shutdown:  make(chan struct{}),
		done:      make(chan struct{}),
		logger:    logger.Get().Named("recalc-worker"),
	}

	// Apply all options
	for _, opt := range opts {
		opt(w)
	}

	return w
}

// Run starts the worker loop until ctx is canceled or the queue closes.
func (w *Worker) Run(ctx context.Context) {
	defer close(w.done)

	jobs := w.queue.Dequeue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.shutdown:
			return
		case job, ok := <-jobs:
			if !ok {
				return
			}
			if err := w.process(ctx, job); err != nil {
				w.logger.Error(ctx, "recalculation job failed",
					logger.String("eventID", job.EventID),
					logger.String("reason", job.Reason),
					logger.Error(err),
				)
			}
		}
	}
}

// Shutdown gracefully stops the worker.
func (w *Worker) Shutdown(ctx context.Context) error {
	close(w.shutdown)

	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

// process runs a single recalculation job.
func (w *Worker) process(ctx context.Context, job queue.Job) error {
	start := time.Now()
	defer func() {
		metrics.RecordRecalcJobDuration(float64(time.Since(start).Milliseconds()))
	}()

	w.logger.Debug(ctx, "recalculating event cohort",
		logger.String("eventID", job.EventID),
		logger.String("reason", job.Reason),
	)

	if err := w.evaluator.RecalculateEvent(ctx, job.EventID); err != nil {
		metrics.RecordRecalcWorkerError()
		return fmt.Errorf("recalculate event %s: %w", job.EventID, err)
	}
	return nil
}

// Pool manages multiple recalculation workers.
type Pool struct {
	workers []*Worker

	// Shutdown control
	shutdown chan struct{}

	// Logging
	logger logger.Logger
}

// NewPool creates a pool of workerCount workers sharing one queue.
func NewPool(workerCount int, q Queue, evaluator Evaluator) *Pool {
	if workerCount < 1 {
		workerCount = defaultWorkerCount
	}

	pool := &Pool{
		workers:  make([]*Worker, workerCount),
		shutdown: make(chan struct{}),
		logger:   logger.Get().Named("recalc-pool"),
	}

	for i := 0; i < workerCount; i++ {
		pool.workers[i] = NewWorker(q, evaluator, WithName("recalc-worker-"+strconv.Itoa(i)))
	}

	metrics.UpdateRecalcWorkerCount(workerCount)

	return pool
}

// Start starts all workers in the pool.
func (p *Pool) Start(ctx context.Context) {
	for _, w := range p.workers {
		go w.Run(ctx)
	}
}

// Stop gracefully stops all workers.
func (p *Pool) Stop() {
	close(p.shutdown)

	for _, w := range p.workers {
		select {
		case <-w.done:
			// Worker finished
		case <-time.After(workerShutdownTimeout):
			// Worker timeout
		}
	}
}

// Shutdown stops all workers, waiting up to the context deadline.
func (p *Pool) Shutdown(ctx context.Context) error {
	for i, w := range p.workers {
		if err := w.Shutdown(ctx); err != nil {
			p.logger.Warn(ctx, "worker shutdown timed out", logger.Int("worker_id", i))
		}
	}
	return nil
}
