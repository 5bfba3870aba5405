// Package aggregate holds the background workers that consume per-session
// output of the engine. Each worker owns one unbounded queue and one output.
package aggregate

import (
	"context"
	"fmt"
	"os"

	"github.com/okian/mmr/internal/adapters/mq/queue"
	"github.com/okian/mmr/internal/adapters/mq/worker"
)

// Aggregator is the lifecycle every worker in this package shares: the
// engine sends values, closes the mailbox, joins the runner and then calls
// Finish to persist the result.
type Aggregator interface {
	Runner() worker.Runner
	Close() error
	Finish() error
}

type mailbox[T any] struct {
	queue  *queue.InMemoryQueue[T]
	runner *worker.InMemoryWorker[T]
}

func newMailbox[T any](name string, h worker.Handler[T]) mailbox[T] {
	q := queue.NewInMemoryQueue[T](queue.WithName(name))
	return mailbox[T]{
		queue:  q,
		runner: worker.NewInMemoryWorker[T](q, h, worker.WithName(name)),
	}
}

// Send enqueues v. It never blocks.
func (m *mailbox[T]) Send(ctx context.Context, v T) error {
	return m.queue.Enqueue(ctx, v)
}

// Close stops accepting values; the runner exits once the backlog is drained.
func (m *mailbox[T]) Close() error { return m.queue.Close() }

// Runner returns the worker draining the mailbox.
func (m *mailbox[T]) Runner() worker.Runner { return m.runner }

// createOutput opens path for a result written at Finish. An empty path
// yields a nil file.
func createOutput(path string) (*os.File, error) {
	if path == "" {
		return nil, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrOpenOutput, err)
	}
	return f, nil
}

// writeOutput writes content to f and closes it. A nil f is a no-op.
func writeOutput(f *os.File, content string) error {
	if f == nil {
		return nil
	}
	_, err := f.WriteString(content)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrWriteOutput, f.Name(), err)
	}
	return nil
}
