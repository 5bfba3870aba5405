// Package generate writes synthetic replay datasets: an input stream and the
// side tables the engine reads next to it.
package generate

import (
	"bufio"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/google/uuid"

	"github.com/okian/mmr/pkg/logger"
)

// File permission constants.
const (
	directoryPermission = 0o750
	filePermission      = 0o644
)

// ErrInvalidConfig is returned for unusable generator settings.
var ErrInvalidConfig = errors.New("invalid generator config")

// Default returns a config that produces a small realistic dataset.
func Default() Config {
	return Config{
		OutputDir:   "data",
		Sessions:    1000,
		Users:       200,
		TeamSize:    5,
		Seed:        1,
		StartMillis: 1_700_000_000_000,
		NewbieShare: 0.05,
		SkillSpread: 300,
	}
}

// Validate checks the config.
func (c Config) Validate() error {
	switch {
	case c.OutputDir == "":
		return fmt.Errorf("%w: empty output dir", ErrInvalidConfig)
	case c.TeamSize < 1:
		return fmt.Errorf("%w: team size %d", ErrInvalidConfig, c.TeamSize)
	case c.Users < 2*c.TeamSize:
		return fmt.Errorf("%w: %d users cannot fill two teams of %d", ErrInvalidConfig, c.Users, c.TeamSize)
	case c.Sessions < 0:
		return fmt.Errorf("%w: negative session count", ErrInvalidConfig)
	case c.StartMillis < 32*dayMillis:
		return fmt.Errorf("%w: start time must leave room for registrations", ErrInvalidConfig)
	case c.NewbieShare < 0 || c.NewbieShare > 1:
		return fmt.Errorf("%w: newbie share %v", ErrInvalidConfig, c.NewbieShare)
	}
	return nil
}

// PathsIn returns the dataset file names under dir.
func PathsIn(dir string) Paths {
	return Paths{
		Stream:        filepath.Join(dir, "stream.json"),
		UserTeam:      filepath.Join(dir, "user_team.json"),
		SessionMode:   filepath.Join(dir, "session_mode.json"),
		Registrations: filepath.Join(dir, "regs.json"),
	}
}

type output struct {
	file *os.File
	w    *bufio.Writer
}

func create(path string) (*output, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, filePermission)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", path, err)
	}
	return &output{file: f, w: bufio.NewWriter(f)}, nil
}

func (o *output) close() error {
	if err := o.w.Flush(); err != nil {
		_ = o.file.Close()
		return err
	}
	return o.file.Close()
}

// Run generates a dataset into cfg.OutputDir.
func Run(ctx context.Context, cfg Config) (Stats, error) {
	if err := cfg.Validate(); err != nil {
		return Stats{}, err
	}
	runID := uuid.New()
	if cfg.SessionBase == 0 {
		// Distinct runs get distinct session id ranges.
		cfg.SessionBase = uint64(binary.BigEndian.Uint32(runID[:4])) << 16
	}
	stats := Stats{RunID: runID.String(), FirstID: cfg.SessionBase}

	log := logger.Get().Named("generate")
	log.Info(ctx, "generating dataset",
		logger.String("run_id", stats.RunID),
		logger.String("dir", cfg.OutputDir),
		logger.Int("sessions", cfg.Sessions),
		logger.Int("users", cfg.Users),
		logger.Uint64("seed", cfg.Seed))

	if err := os.MkdirAll(cfg.OutputDir, directoryPermission); err != nil {
		return Stats{}, fmt.Errorf("failed to create output dir: %w", err)
	}
	paths := PathsIn(cfg.OutputDir)
	var outs []*output
	for _, p := range []string{paths.Stream, paths.UserTeam, paths.SessionMode, paths.Registrations} {
		o, err := create(p)
		if err != nil {
			for _, done := range outs {
				_ = done.close()
			}
			return Stats{}, err
		}
		outs = append(outs, o)
	}
	stream, teams, sessionModes, regs := outs[0].w, outs[1].w, outs[2].w, outs[3].w

	g := newGenerator(cfg)
	var genErr error
	for i := 0; i < cfg.Sessions; i++ {
		if err := ctx.Err(); err != nil {
			genErr = fmt.Errorf("context cancelled during generation: %w", err)
			break
		}
		s := g.session()
		writeSession(stream, teams, sessionModes, s)
		stats.Sessions++
		stats.Rows += len(s.players)
		stats.LastID = s.id
		if len(s.players) > 0 && s.players[0].victory {
			stats.Victories1++
		}
	}
	for _, p := range g.pool {
		regs.WriteString(`{"user_id":` + strconv.FormatUint(p.id, 10) +
			`,"registered_time":` + strconv.FormatUint(p.registeredAt, 10) + "}\n")
	}

	var errs []error
	for _, o := range outs {
		if err := o.close(); err != nil {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(append(errs, genErr)...); err != nil {
		return stats, err
	}

	log.Info(ctx, "dataset written",
		logger.String("run_id", stats.RunID),
		logger.Int("sessions", stats.Sessions),
		logger.Int("rows", stats.Rows),
		logger.Int("team_1_victories", stats.Victories1))
	return stats, nil
}

// writeSession writes the stream rows with hexadecimal session ids and the
// side-table rows with decimal ones.
func writeSession(stream, teams, sessionModes *bufio.Writer, s generatedSession) {
	hexID := strconv.FormatUint(s.id, 16)
	decID := strconv.FormatUint(s.id, 10)
	for _, p := range s.players {
		faction := "faction_1"
		if p.team == 2 {
			faction = "faction_2"
		}
		stream.WriteString(`{"user_id":` + strconv.FormatUint(p.userID, 10) +
			`,"session_id":"` + hexID +
			`","commit_time":` + strconv.FormatUint(s.commitTime, 10) +
			`,"battle_score":` + strconv.FormatUint(uint64(p.score), 10) +
			`,"faction":"` + faction + `"` +
			`,"early_quit":` + bit(p.quit) +
			`,"team_score_top_20_percent":` + bit(p.top20) + "}\n")

		teams.WriteString(`{"user_id":` + strconv.FormatUint(p.userID, 10) +
			`,"session_id":` + decID +
			`,"team":` + strconv.Itoa(p.team))
		if p.victory {
			teams.WriteString(`,"victory":true`)
		}
		teams.WriteString("}\n")
	}
	sessionModes.WriteString(`{"session_id":` + decID + `,"mode":"` + s.mode + `"}` + "\n")
}

func bit(b bool) string {
	if b {
		return "1"
	}
	return "0"
}
