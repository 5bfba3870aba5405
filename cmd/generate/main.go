package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/okian/mmr/internal/generate"
	"github.com/okian/mmr/pkg/logger"
)

func main() {
	def := generate.Default()
	var (
		out      = flag.String("out", def.OutputDir, "Output directory")
		sessions = flag.Int("sessions", def.Sessions, "Number of sessions")
		users    = flag.Int("users", def.Users, "Player pool size")
		team     = flag.Int("team", def.TeamSize, "Players per team")
		seed     = flag.Uint64("seed", def.Seed, "Random seed")
		newbie   = flag.Float64("newbie", def.NewbieShare, "Share of newbie-mode sessions")
		spread   = flag.Float64("spread", def.SkillSpread, "Standard deviation of hidden skill")
		help     = flag.Bool("help", false, "Show help")
	)
	flag.Parse()

	if *help {
		generate.ShowHelp()
		return
	}

	if err := logger.Init(); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := def
	cfg.OutputDir = *out
	cfg.Sessions = *sessions
	cfg.Users = *users
	cfg.TeamSize = *team
	cfg.Seed = *seed
	cfg.NewbieShare = *newbie
	cfg.SkillSpread = *spread

	if _, err := generate.Run(ctx, cfg); err != nil {
		logger.Get().Error(ctx, "generation failed", logger.Error(err))
		stop()
		os.Exit(1)
	}
}
