package config_test

import (
	"errors"
	"testing"

	"github.com/okian/mmr/internal/config"
	"github.com/smartystreets/goconvey/convey"
)

func TestConfig_New(t *testing.T) {
	convey.Convey("Given a new config with default options", t, func() {
		cfg := config.New()

		convey.Convey("Then it should have sensible defaults", func() {
			convey.So(cfg.Algorithm, convey.ShouldEqual, config.AlgorithmV2)
			convey.So(cfg.ChangeShards, convey.ShouldEqual, 2)
			convey.So(cfg.LeaderboardBase, convey.ShouldEqual, "data/leaderboard/base")
			convey.So(cfg.SpreadMMRDist, convey.ShouldEqual, 100)
			convey.So(cfg.CarryTail, convey.ShouldBeFalse)
			convey.So(cfg.BootstrapMinPopulation, convey.ShouldEqual, 1000)
			convey.So(cfg.Validate(), convey.ShouldBeNil)
		})
	})
}

func TestConfig_InputPaths(t *testing.T) {
	convey.Convey("Given a comma separated input list", t, func() {
		cfg := config.New()
		cfg.Inputs = " data/clusters/0.json, ,data/clusters/1.json "

		convey.Convey("Then blanks are dropped and paths trimmed", func() {
			convey.So(cfg.InputPaths(), convey.ShouldResemble, []string{"data/clusters/0.json", "data/clusters/1.json"})
		})
	})
}

func TestConfig_Validate(t *testing.T) {
	convey.Convey("Given a default config", t, func() {
		cfg := config.New()

		convey.Convey("When the algorithm is unknown", func() {
			cfg.Algorithm = "v3"
			err := cfg.Validate()

			convey.Convey("Then validation fails with ErrInvalidConfig", func() {
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
				convey.So(err.Error(), convey.ShouldContainSubstring, "unknown algorithm")
			})
		})

		convey.Convey("When there are more inputs than change shards", func() {
			cfg.Inputs = "a,b,c"
			err := cfg.Validate()

			convey.Convey("Then validation fails", func() {
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When carry_tail is set without a memory path", func() {
			cfg.CarryTail = true
			cfg.MemoryPath = ""

			convey.Convey("Then validation fails", func() {
				convey.So(cfg.Validate(), convey.ShouldNotBeNil)
			})
		})

		convey.Convey("When a spread width is zero", func() {
			cfg.SpreadBattleDist = 0

			convey.Convey("Then validation fails", func() {
				convey.So(cfg.Validate(), convey.ShouldNotBeNil)
			})
		})

		convey.Convey("When the bootstrap needs no neighbours", func() {
			cfg.BootstrapMinMatches = 0

			convey.Convey("Then validation fails", func() {
				convey.So(errors.Is(cfg.Validate(), config.ErrInvalidConfig), convey.ShouldBeTrue)
			})
		})
	})
}
