// Package worker drains the remote job queue. A single worker per queue keeps
// remote operations in submission order.
package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/okian/scoutnotes/internal/adapters/mq/queue"
	"github.com/okian/scoutnotes/pkg/logger"
	"github.com/okian/scoutnotes/pkg/metrics"
)

// Handler performs the remote work for one job.
type Handler interface {
	Handle(ctx context.Context, j queue.Job) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, j queue.Job) error

// Handle implements Handler.
func (f HandlerFunc) Handle(ctx context.Context, j queue.Job) error { return f(ctx, j) }

// Queue defines how the worker receives jobs.
type Queue interface {
	Dequeue(ctx context.Context) <-chan queue.Job
}

// Worker handles jobs one at a time.
type Worker struct {
	queue   Queue
	handler Handler
	name    string

	// Shutdown control
	shutdown     chan struct{}
	shutdownOnce sync.Once
	done         chan struct{}

	logger logger.Logger
}

// New creates a worker with configuration options.
func New(q Queue, h Handler, opts ...Option) *Worker {
	w := &Worker{
		queue:    q,
		handler:  h,
		name:     "worker",
		shutdown: make(chan struct{}),
		done:     make(chan struct{}),
		logger:   logger.Get().Named("worker"),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.name != "worker" {
		w.logger = w.logger.Named(w.name)
	}
	return w
}

// Run processes jobs until the queue is closed and drained, ctx is done, or
// Shutdown is called.
func (w *Worker) Run(ctx context.Context) {
	defer close(w.done)

	jobs := w.queue.Dequeue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.shutdown:
			return
		case j, ok := <-jobs:
			if !ok {
				return
			}
			if err := w.process(ctx, j); err != nil {
				w.logger.Warn(ctx, "remote job failed",
					logger.String("kind", j.Kind.String()),
					logger.String("key", j.Key),
					logger.Error(err))
			}
		}
	}
}

// Done is closed when Run has returned.
func (w *Worker) Done() <-chan struct{} {
	return w.done
}

// Shutdown stops the worker without draining the queue.
func (w *Worker) Shutdown(ctx context.Context) error {
	w.shutdownOnce.Do(func() { close(w.shutdown) })

	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

func (w *Worker) process(ctx context.Context, j queue.Job) error {
	start := time.Now()
	defer func() {
		metrics.RecordWorkerProcessingLatency(float64(time.Since(start).Milliseconds()))
	}()

	if j.Kind == queue.KindBarrier {
		if j.Done != nil {
			close(j.Done)
		}
		return nil
	}

	if err := w.handler.Handle(ctx, j); err != nil {
		metrics.RecordWorkerError()
		metrics.RecordErrorByComponent("worker", j.Kind.String())
		return fmt.Errorf("%s %s: %w", j.Kind, j.Key, err)
	}
	return nil
}
