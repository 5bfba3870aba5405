package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"

	"github.com/okian/mmr/internal/adapters/repository"
	"github.com/okian/mmr/internal/aggregate"
	service "github.com/okian/mmr/internal/app"
	"github.com/okian/mmr/internal/config"
	"github.com/okian/mmr/internal/dataset"
	"github.com/okian/mmr/pkg/logger"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Load configuration (defaults -> optional file -> env), then flags.
	cfg, err := config.Load(ctx)
	if err != nil {
		// Use stderr since logger isn't configured yet
		os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		return 2
	}
	if err := applyFlags(cfg, args); err != nil {
		os.Stderr.WriteString(err.Error() + "\n")
		return 2
	}

	if err := logger.InitWithWriter(os.Stderr, cfg.LogFormat); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		return 1
	}
	log := logger.Get().With(logger.String("run_id", uuid.NewString()))

	// Apply configured log level (fallback to info on invalid input)
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		log.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	log.Info(ctx, "starting replay",
		logger.String("algorithm", cfg.Algorithm),
		logger.Int("inputs", len(cfg.InputPaths())),
		logger.Bool("carry_tail", cfg.CarryTail))

	report, err := service.New(engineOptions(cfg, log)...).Run(ctx)
	if err != nil {
		log.Error(ctx, "replay failed", logger.Error(err))
		return 1
	}
	if report.Interrupted {
		log.Warn(ctx, "replay interrupted; outputs cover the consumed input")
		return 130
	}
	return 0
}

// applyFlags overrides configuration with explicitly set flags.
func applyFlags(cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("mmr", flag.ContinueOnError)
	algorithm := fs.String("algorithm", cfg.Algorithm, "rating algorithm: v1 or v2")
	inputs := fs.String("inputs", cfg.Inputs, "comma separated input streams; position is the classifier id")
	carry := fs.Bool("carry-tail", cfg.CarryTail, "save the unfinished tail session instead of rating it")
	filter := fs.String("filter", cfg.SessionFilter, "CEL expression sessions must satisfy")
	logLevel := fs.String("log-level", cfg.LogLevel, "debug, info, warn or error")
	metricsPath := fs.String("metrics", cfg.MetricsPath, "Prometheus textfile written at the end of the run")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("parse flags: %w", err)
	}

	cfg.Algorithm = *algorithm
	cfg.Inputs = *inputs
	cfg.CarryTail = *carry
	cfg.SessionFilter = *filter
	cfg.LogLevel = *logLevel
	cfg.MetricsPath = *metricsPath
	return cfg.Validate()
}

// engineOptions maps configuration onto engine options.
func engineOptions(cfg *config.Config, log logger.Logger) []service.Option {
	return []service.Option{
		service.WithLogger(log.Named("engine")),
		service.WithAlgorithm(cfg.Algorithm),
		service.WithInputs(cfg.InputPaths()...),
		service.WithSideTables(dataset.Paths{
			UserTeam:      cfg.UserTable,
			SessionMode:   cfg.SessionModes,
			UserFaction:   cfg.UserFactions,
			Registrations: cfg.Registrations,
		}),
		service.WithLeaderboard(cfg.LeaderboardBase, cfg.LeaderboardFaction),
		service.WithStoreOptions(
			repository.WithBootstrapWindow(cfg.BootstrapWindow),
			repository.WithBootstrapMinMatches(cfg.BootstrapMinMatches),
			repository.WithBootstrapMinPopulation(cfg.BootstrapMinPopulation),
		),
		service.WithMemory(cfg.MemoryPath, cfg.CarryTail),
		service.WithChangeLog(aggregate.ChangeLogConfig{
			Dir:        cfg.ChangesDir,
			Shards:     cfg.ChangeShards,
			MaxSizeMB:  cfg.ChangeMaxSizeMB,
			MaxBackups: cfg.ChangeMaxBackups,
		}),
		service.WithOutputs(cfg.StatisticPath, cfg.SanityPath, cfg.ClassificationPath, cfg.RosterPath),
		service.WithSpread(cfg.SpreadPath, cfg.SpreadMMRDist, cfg.SpreadBattleDist, repository.SpreadFilter{
			MinBattles:     cfg.SpreadMinBattles,
			MinLastSession: cfg.SpreadMinLastSession,
		}),
		service.WithSessionFilter(cfg.SessionFilter),
		service.WithMetricsPath(cfg.MetricsPath),
	}
}
