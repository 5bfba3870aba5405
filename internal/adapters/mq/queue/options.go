// Package queue provides an unbounded FIFO mailbox between the engine and
// its background workers.
package queue

// Option applies a configuration option to an InMemoryQueue.
type Option func(*options)

type options struct {
	name            string
	initialCapacity int
}

// WithName sets the queue name used for depth metrics.
func WithName(name string) Option {
	return func(o *options) {
		if name != "" {
			o.name = name
		}
	}
}

// WithInitialCapacity preallocates the backing buffer.
func WithInitialCapacity(capacity int) Option {
	return func(o *options) {
		if capacity > 0 {
			o.initialCapacity = capacity
		}
	}
}
