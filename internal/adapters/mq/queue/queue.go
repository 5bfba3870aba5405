package queue

import (
	"context"
	"sync"

	"github.com/okian/mmr/pkg/metrics"
)

const (
	defaultInitialCapacity = 1024
	compactThreshold       = 4096
)

// Queue provides non-blocking enqueue and channel-based dequeue semantics.
type Queue[T any] interface {
	// Enqueue appends a value. It never blocks; it fails only after Close.
	Enqueue(ctx context.Context, v T) error

	// Dequeue returns a channel that yields values in FIFO order and is
	// closed once the queue is closed and drained.
	Dequeue(ctx context.Context) <-chan T

	// Len returns the number of values not yet handed to the consumer.
	Len(ctx context.Context) int

	// Close stops accepting values. Values already enqueued are still
	// delivered.
	Close() error

	// IsClosed returns true if the queue has been closed.
	IsClosed() bool
}

// InMemoryQueue is an unbounded Queue backed by a slice. A producer is
// never slowed down by a slow consumer.
type InMemoryQueue[T any] struct {
	name string

	mu     sync.Mutex
	items  []T
	head   int
	closed bool
	notify chan struct{}

	once sync.Once
	out  chan T
}

// NewInMemoryQueue creates an empty queue.
func NewInMemoryQueue[T any](opts ...Option) *InMemoryQueue[T] {
	o := options{name: "queue", initialCapacity: defaultInitialCapacity}
	for _, opt := range opts {
		opt(&o)
	}
	q := &InMemoryQueue[T]{
		name:   o.name,
		items:  make([]T, 0, o.initialCapacity),
		notify: make(chan struct{}, 1),
	}
	metrics.UpdateQueueDepth(q.name, 0)
	return q
}

// Enqueue adds a value to the tail.
func (q *InMemoryQueue[T]) Enqueue(_ context.Context, v T) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return ErrQueueClosed
	}
	q.items = append(q.items, v)
	depth := len(q.items) - q.head
	q.mu.Unlock()

	q.signal()
	metrics.UpdateQueueDepth(q.name, depth)
	return nil
}

// Dequeue starts the delivery goroutine on first use and returns its
// channel. Later calls return the same channel. Cancelling ctx stops
// delivery and closes the channel early.
func (q *InMemoryQueue[T]) Dequeue(ctx context.Context) <-chan T {
	q.once.Do(func() {
		q.out = make(chan T)
		go q.pump(ctx)
	})
	return q.out
}

func (q *InMemoryQueue[T]) pump(ctx context.Context) {
	defer close(q.out)
	for {
		q.mu.Lock()
		if q.head == len(q.items) {
			closed := q.closed
			q.mu.Unlock()
			if closed {
				return
			}
			select {
			case <-q.notify:
				continue
			case <-ctx.Done():
				return
			}
		}
		v := q.items[q.head]
		var zero T
		q.items[q.head] = zero
		q.head++
		switch {
		case q.head == len(q.items):
			q.items, q.head = q.items[:0], 0
		case q.head > compactThreshold && q.head*2 > len(q.items):
			n := copy(q.items, q.items[q.head:])
			clear(q.items[n:])
			q.items, q.head = q.items[:n], 0
		}
		depth := len(q.items) - q.head
		q.mu.Unlock()

		select {
		case q.out <- v:
			metrics.UpdateQueueDepth(q.name, depth)
		case <-ctx.Done():
			return
		}
	}
}

// Len returns the current number of queued values.
func (q *InMemoryQueue[T]) Len(_ context.Context) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items) - q.head
}

// Close stops accepting values; it is safe to call more than once.
func (q *InMemoryQueue[T]) Close() error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil
	}
	q.closed = true
	q.mu.Unlock()
	q.signal()
	return nil
}

// IsClosed returns true if the queue has been closed.
func (q *InMemoryQueue[T]) IsClosed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}

func (q *InMemoryQueue[T]) signal() {
	select {
	case q.notify <- struct{}{}:
	default:
	}
}
