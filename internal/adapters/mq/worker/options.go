// Package worker runs single-consumer loops over queues.
package worker

import (
	"github.com/okian/mmr/pkg/logger"
)

// Option applies a configuration option to an InMemoryWorker.
type Option func(*settings)

type settings struct {
	name   string
	logger logger.Logger
}

// WithName sets the worker name for identification, logging and metrics.
func WithName(name string) Option {
	return func(s *settings) {
		if name != "" {
			s.name = name
		}
	}
}

// WithLogger sets a custom logger for the worker.
func WithLogger(l logger.Logger) Option {
	return func(s *settings) {
		if l != nil {
			s.logger = l
		}
	}
}
