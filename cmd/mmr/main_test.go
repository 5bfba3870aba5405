package main

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/okian/mmr/internal/config"
	"github.com/okian/mmr/internal/generate"
	"github.com/okian/mmr/pkg/logger"
	"github.com/smartystreets/goconvey/convey"
)

func TestApplyFlags(t *testing.T) {
	convey.Convey("Given the default configuration", t, func() {
		cfg := config.New()

		convey.Convey("When flags override some fields", func() {
			err := applyFlags(cfg, []string{"-algorithm", "v1", "-inputs", "a.json,b.json", "-carry-tail", "-filter", "team_1_size == 5"})

			convey.Convey("Then only those fields change", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Algorithm, convey.ShouldEqual, "v1")
				convey.So(cfg.InputPaths(), convey.ShouldResemble, []string{"a.json", "b.json"})
				convey.So(cfg.CarryTail, convey.ShouldBeTrue)
				convey.So(cfg.SessionFilter, convey.ShouldEqual, "team_1_size == 5")
				convey.So(cfg.LogLevel, convey.ShouldEqual, "info")
			})
		})

		convey.Convey("When a flag sets an unknown algorithm", func() {
			err := applyFlags(cfg, []string{"-algorithm", "v9"})

			convey.Convey("Then validation fails", func() {
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When an unknown flag is passed", func() {
			err := applyFlags(cfg, []string{"-nope"})

			convey.Convey("Then parsing fails", func() {
				convey.So(err, convey.ShouldNotBeNil)
			})
		})
	})
}

func TestRun(t *testing.T) {
	convey.Convey("Given a generated dataset and configuration in the environment", t, func() {
		dir := t.TempDir()
		gen := generate.Default()
		gen.OutputDir = filepath.Join(dir, "data")
		gen.Sessions = 50
		gen.Users = 40
		gen.SessionBase = 1 << 20
		_, err := generate.Run(context.Background(), gen)
		convey.So(err, convey.ShouldBeNil)
		paths := generate.PathsIn(gen.OutputDir)

		out := filepath.Join(dir, "out")
		env := map[string]string{
			"MMR_INPUTS":              paths.Stream,
			"MMR_USER_TEAM":           paths.UserTeam,
			"MMR_SESSION_MODE":        paths.SessionMode,
			"MMR_REGISTRATIONS":       paths.Registrations,
			"MMR_USER_FACTION":        filepath.Join(dir, "none.json"),
			"MMR_LEADERBOARD_BASE":    filepath.Join(out, "base"),
			"MMR_LEADERBOARD_FACTION": filepath.Join(out, "faction"),
			"MMR_MEMORY_PATH":         filepath.Join(out, "memory"),
			"MMR_CHANGES_DIR":         filepath.Join(out, "changes"),
			"MMR_STATISTIC_PATH":      filepath.Join(out, "statistic"),
			"MMR_SANITY_PATH":         filepath.Join(out, "sanity"),
			"MMR_CLASSIFICATION_PATH": filepath.Join(out, "classes"),
			"MMR_SPREAD_PATH":         filepath.Join(out, "spread"),
		}
		for k, v := range env {
			t.Setenv(k, v)
		}

		convey.Convey("When the binary runs with the v1 algorithm", func() {
			code := run([]string{"-algorithm", "v1"})

			convey.Convey("Then it succeeds and writes the leaderboard", func() {
				convey.So(code, convey.ShouldEqual, 0)
				data, err := os.ReadFile(filepath.Join(out, "base"))
				convey.So(err, convey.ShouldBeNil)
				convey.So(len(data), convey.ShouldBeGreaterThan, 0)
			})
		})

		convey.Convey("When the flags are invalid", func() {
			code := run([]string{"-algorithm", "v9"})

			convey.Convey("Then it exits with a usage error", func() {
				convey.So(code, convey.ShouldEqual, 2)
			})
		})
	})

	// run re-initializes the global logger; restore the default for other tests.
	_ = logger.Init()
}
