package service

import (
	"github.com/okian/mmr/internal/adapters/repository"
	"github.com/okian/mmr/internal/aggregate"
	"github.com/okian/mmr/internal/dataset"
	"github.com/okian/mmr/pkg/logger"
)

// Option applies a configuration option to the Engine.
type Option func(*Engine)

// WithLogger sets a custom logger for the engine.
func WithLogger(l logger.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithAlgorithm selects the rating algorithm by name.
func WithAlgorithm(name string) Option {
	return func(e *Engine) {
		if name != "" {
			e.algorithm = name
		}
	}
}

// WithInputs sets the record streams. A stream's position is its classifier
// id.
func WithInputs(paths ...string) Option {
	return func(e *Engine) {
		e.inputs = append([]string(nil), paths...)
	}
}

// WithSideTables sets the side-table files.
func WithSideTables(p dataset.Paths) Option {
	return func(e *Engine) {
		e.tables = p
	}
}

// WithLeaderboard sets the snapshot files read at start and written at end.
func WithLeaderboard(base, faction string) Option {
	return func(e *Engine) {
		e.leaderboardBase = base
		e.leaderboardFaction = faction
	}
}

// WithStoreOptions passes options to the leaderboard store.
func WithStoreOptions(opts ...repository.Option) Option {
	return func(e *Engine) {
		e.storeOpts = append(e.storeOpts, opts...)
	}
}

// WithMemory sets the carry-over file. With carry set, the unfinished tail
// session is saved there instead of being rated.
func WithMemory(path string, carry bool) Option {
	return func(e *Engine) {
		e.memoryPath = path
		e.carryTail = carry
	}
}

// WithChangeLog configures the change-log shards.
func WithChangeLog(cfg aggregate.ChangeLogConfig) Option {
	return func(e *Engine) {
		e.changeLog = cfg
	}
}

// WithOutputs sets the aggregation output files. An empty roster path
// disables the roster.
func WithOutputs(statistic, sanity, classification, roster string) Option {
	return func(e *Engine) {
		e.statisticPath = statistic
		e.sanityPath = sanity
		e.classificationPath = classification
		e.rosterPath = roster
	}
}

// WithSpread enables the rating distribution report.
func WithSpread(path string, mmrDist, battleDist uint32, f repository.SpreadFilter) Option {
	return func(e *Engine) {
		if mmrDist == 0 || battleDist == 0 {
			return
		}
		e.spreadPath = path
		e.spreadMMRDist = mmrDist
		e.spreadBattleDist = battleDist
		e.spreadFilter = f
	}
}

// WithSessionFilter sets a CEL expression sessions must satisfy.
func WithSessionFilter(expr string) Option {
	return func(e *Engine) {
		e.filterExpr = expr
	}
}

// WithMetricsPath writes a Prometheus textfile at the end of the run.
func WithMetricsPath(path string) Option {
	return func(e *Engine) {
		e.metricsPath = path
	}
}
