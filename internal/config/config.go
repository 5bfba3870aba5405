// Package config defines engine configuration structures and loading hooks.
//
// Conventions:
// - New() returns a Config populated with defaults.
// - Load(ctx) layers a YAML file and MMR_* environment variables on top.
// - Validation errors wrap ErrInvalidConfig.
package config

import (
	"fmt"
	"strings"
)

// Supported rating algorithms.
const (
	AlgorithmV1 = "v1"
	AlgorithmV2 = "v2"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects text or json log lines.
	LogFormat string `koanf:"log_format"`

	// Algorithm selects the rating strategy: v1 (diff-based) or v2 (pool redistribution).
	Algorithm string `koanf:"algorithm"`

	// Inputs is a comma separated list of record streams. The position of a
	// stream in the list is its classifier id.
	Inputs string `koanf:"inputs"`

	// Side tables.
	UserTable     string `koanf:"user_team"`
	SessionModes  string `koanf:"session_mode"`
	UserFactions  string `koanf:"user_faction"`
	Registrations string `koanf:"registrations"`

	// Leaderboard snapshot files.
	LeaderboardBase    string `koanf:"leaderboard_base"`
	LeaderboardFaction string `koanf:"leaderboard_faction"`

	// MemoryPath holds the unfinished tail session between runs.
	MemoryPath string `koanf:"memory_path"`
	// CarryTail saves the tail session to MemoryPath instead of processing it.
	CarryTail bool `koanf:"carry_tail"`

	// Change log shards.
	ChangesDir       string `koanf:"changes_dir"`
	ChangeShards     int    `koanf:"change_shards"`
	ChangeMaxSizeMB  int    `koanf:"change_max_size_mb"`
	ChangeMaxBackups int    `koanf:"change_max_backups"`

	// Aggregation outputs.
	StatisticPath      string `koanf:"statistic_path"`
	SanityPath         string `koanf:"sanity_path"`
	ClassificationPath string `koanf:"classification_path"`
	RosterPath         string `koanf:"roster_path"`

	// Rating distribution report, written at shutdown when SpreadPath is set.
	SpreadPath           string `koanf:"spread_path"`
	SpreadMMRDist        uint32 `koanf:"spread_mmr_dist"`
	SpreadBattleDist     uint32 `koanf:"spread_battle_dist"`
	SpreadMinBattles     uint32 `koanf:"spread_min_battles"`
	SpreadMinLastSession uint64 `koanf:"spread_min_last_session"`

	// Bootstrap tuning for the sixth-battle calibration lookup.
	BootstrapWindow        uint32 `koanf:"bootstrap_window"`
	BootstrapMinMatches    int    `koanf:"bootstrap_min_matches"`
	BootstrapMinPopulation int    `koanf:"bootstrap_min_population"`

	// SessionFilter is an optional CEL expression; sessions it rejects are skipped.
	SessionFilter string `koanf:"session_filter"`

	// MetricsPath receives a Prometheus textfile at shutdown when set.
	MetricsPath string `koanf:"metrics_path"`
}

// New creates a Config with defaults.
func New() *Config {
	return &Config{
		LogLevel:               "info",
		LogFormat:              "text",
		Algorithm:              AlgorithmV2,
		UserTable:              "data/user_team.json",
		SessionModes:           "data/session_mode.json",
		UserFactions:           "data/user_faction.json",
		Registrations:          "data/regs.json",
		LeaderboardBase:        "data/leaderboard/base",
		LeaderboardFaction:     "data/leaderboard/battle_faction",
		MemoryPath:             "data/memory",
		ChangesDir:             "data/changes",
		ChangeShards:           2,
		ChangeMaxSizeMB:        512,
		ChangeMaxBackups:       3,
		StatisticPath:          "data/statistic",
		SanityPath:             "data/statistic_check",
		ClassificationPath:     "data/session_classification",
		SpreadMMRDist:          100,
		SpreadBattleDist:       10,
		SpreadMinBattles:       6,
		SpreadMinLastSession:   0,
		BootstrapWindow:        50,
		BootstrapMinMatches:    10,
		BootstrapMinPopulation: 1000,
	}
}

// InputPaths splits Inputs into trimmed, non-empty paths.
func (c *Config) InputPaths() []string {
	var out []string
	for _, p := range strings.Split(c.Inputs, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Validate checks field ranges and required paths.
func (c *Config) Validate() error {
	switch c.Algorithm {
	case AlgorithmV1, AlgorithmV2:
	default:
		return fmt.Errorf("%w: unknown algorithm %q", ErrInvalidConfig, c.Algorithm)
	}
	if c.LeaderboardBase == "" || c.LeaderboardFaction == "" {
		return fmt.Errorf("%w: leaderboard paths must not be empty", ErrInvalidConfig)
	}
	if c.ChangesDir == "" {
		return fmt.Errorf("%w: changes_dir must not be empty", ErrInvalidConfig)
	}
	if c.ChangeShards < 1 {
		return fmt.Errorf("%w: change_shards must be at least 1", ErrInvalidConfig)
	}
	if n := len(c.InputPaths()); n > c.ChangeShards {
		return fmt.Errorf("%w: %d inputs but only %d change shards", ErrInvalidConfig, n, c.ChangeShards)
	}
	if c.StatisticPath == "" || c.SanityPath == "" || c.ClassificationPath == "" {
		return fmt.Errorf("%w: statistic, sanity and classification paths must not be empty", ErrInvalidConfig)
	}
	if c.SpreadMMRDist == 0 || c.SpreadBattleDist == 0 {
		return fmt.Errorf("%w: spread bucket widths must be positive", ErrInvalidConfig)
	}
	if c.BootstrapWindow == 0 || c.BootstrapMinMatches < 1 || c.BootstrapMinPopulation < 0 {
		return fmt.Errorf("%w: bootstrap window and min matches must be positive", ErrInvalidConfig)
	}
	if c.CarryTail && c.MemoryPath == "" {
		return fmt.Errorf("%w: carry_tail requires memory_path", ErrInvalidConfig)
	}
	return nil
}
