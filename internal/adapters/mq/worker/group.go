package worker

import (
	"context"
	"fmt"

	"github.com/okian/mmr/pkg/logger"
)

// Group starts a fixed set of workers and joins them.
type Group struct {
	runners []Runner
	logger  logger.Logger
}

// NewGroup creates a group of runners.
func NewGroup(runners ...Runner) *Group {
	return &Group{runners: runners, logger: logger.Get().Named("worker-group")}
}

// Start launches every runner in its own goroutine.
func (g *Group) Start(ctx context.Context) {
	for _, r := range g.runners {
		go r.Run(ctx)
	}
	g.logger.Debug(ctx, "workers started", logger.Int("count", len(g.runners)))
}

// Wait blocks until all runners finish or ctx ends. The queues feeding the
// runners must be closed first.
func (g *Group) Wait(ctx context.Context) error {
	for _, r := range g.runners {
		select {
		case <-r.Done():
		case <-ctx.Done():
			g.logger.Warn(ctx, "worker join timed out", logger.String("worker", r.Name()))
			return fmt.Errorf("join %s: %w", r.Name(), ctx.Err())
		}
	}
	return nil
}
