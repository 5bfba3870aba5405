package worker

import (
	"context"
	"fmt"

	"github.com/okian/mmr/pkg/logger"
	"github.com/okian/mmr/pkg/metrics"
)

// Queue defines how workers receive values.
type Queue[T any] interface {
	Dequeue(ctx context.Context) <-chan T
}

// Handler processes one value. A returned error is logged and counted; the
// worker keeps going.
type Handler[T any] func(ctx context.Context, v T) error

// Runner is the part of a worker a Group needs.
type Runner interface {
	Name() string
	Run(ctx context.Context)
	Done() <-chan struct{}
}

// InMemoryWorker drains one queue with one goroutine.
type InMemoryWorker[T any] struct {
	queue   Queue[T]
	handler Handler[T]
	name    string
	done    chan struct{}
	logger  logger.Logger
}

// NewInMemoryWorker creates a worker for queue q.
func NewInMemoryWorker[T any](q Queue[T], h Handler[T], opts ...Option) *InMemoryWorker[T] {
	s := settings{name: "worker"}
	for _, opt := range opts {
		opt(&s)
	}
	if s.logger == nil {
		s.logger = logger.Get().Named(s.name)
	}
	return &InMemoryWorker[T]{
		queue:   q,
		handler: h,
		name:    s.name,
		done:    make(chan struct{}),
		logger:  s.logger,
	}
}

// Name returns the worker name.
func (w *InMemoryWorker[T]) Name() string { return w.name }

// Done is closed when Run returns.
func (w *InMemoryWorker[T]) Done() <-chan struct{} { return w.done }

// Run consumes values until the queue's channel is closed. It must be
// called once.
func (w *InMemoryWorker[T]) Run(ctx context.Context) {
	defer close(w.done)

	processed := 0
	for v := range w.queue.Dequeue(ctx) {
		processed++
		metrics.RecordWorkerMessage(w.name)
		if err := w.handler(ctx, v); err != nil {
			metrics.RecordWorkerError(w.name)
			w.logger.Error(ctx, "error processing message", logger.Error(err))
		}
	}
	w.logger.Debug(ctx, "worker drained", logger.Int("processed", processed))
}

// Wait blocks until the worker finishes or ctx ends.
func (w *InMemoryWorker[T]) Wait(ctx context.Context) error {
	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.logger.Warn(ctx, "wait timed out")
		return fmt.Errorf("worker %s: %w", w.name, ctx.Err())
	}
}
