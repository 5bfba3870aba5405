package generate

import (
	"bufio"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/okian/mmr/internal/domain/record"
	. "github.com/smartystreets/goconvey/convey"
)

func smallConfig(dir string) Config {
	cfg := Default()
	cfg.OutputDir = dir
	cfg.Sessions = 20
	cfg.Users = 30
	cfg.Seed = 7
	cfg.SessionBase = 4096
	cfg.NewbieShare = 0
	return cfg
}

func readLines(path string) []string {
	f, err := os.Open(path)
	So(err, ShouldBeNil)
	defer f.Close()
	var out []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		out = append(out, sc.Text())
	}
	So(sc.Err(), ShouldBeNil)
	return out
}

func TestRun(t *testing.T) {
	Convey("Given a small generator config", t, func() {
		dir := t.TempDir()
		cfg := smallConfig(dir)

		Convey("When a dataset is generated", func() {
			stats, err := Run(context.Background(), cfg)
			So(err, ShouldBeNil)
			paths := PathsIn(dir)

			Convey("Then the counts match the config", func() {
				So(stats.Sessions, ShouldEqual, 20)
				So(stats.Rows, ShouldEqual, 200)
				So(stats.FirstID, ShouldEqual, 4096)
				So(stats.LastID, ShouldEqual, 4115)
				So(stats.RunID, ShouldNotBeEmpty)
				So(len(readLines(paths.UserTeam)), ShouldEqual, 200)
				So(len(readLines(paths.SessionMode)), ShouldEqual, 20)
				So(len(readLines(paths.Registrations)), ShouldEqual, 30)
			})

			Convey("Then the stream parses and sessions are contiguous", func() {
				p := record.NewParser(nil)
				var (
					prev    uint64
					changes int
				)
				for i, line := range readLines(paths.Stream) {
					row, err := p.Parse(line)
					So(err, ShouldBeNil)
					So(row.SessionID, ShouldBeBetweenOrEqual, 4096, 4115)
					if i > 0 && row.SessionID != prev {
						changes++
						So(row.SessionID, ShouldEqual, prev+1)
					}
					prev = row.SessionID
				}
				So(changes, ShouldEqual, 19)
			})
		})

		Convey("When the same config is generated twice", func() {
			other := cfg
			other.OutputDir = filepath.Join(dir, "again")
			_, err := Run(context.Background(), cfg)
			So(err, ShouldBeNil)
			_, err = Run(context.Background(), other)
			So(err, ShouldBeNil)

			Convey("Then the streams are identical", func() {
				a, err := os.ReadFile(PathsIn(dir).Stream)
				So(err, ShouldBeNil)
				b, err := os.ReadFile(PathsIn(other.OutputDir).Stream)
				So(err, ShouldBeNil)
				So(string(a), ShouldEqual, string(b))
			})
		})

		Convey("When the pool cannot fill two teams", func() {
			cfg.Users = 9
			_, err := Run(context.Background(), cfg)

			Convey("Then the config is rejected", func() {
				So(errors.Is(err, ErrInvalidConfig), ShouldBeTrue)
			})
		})

		Convey("When the context is cancelled", func() {
			ctx, cancel := context.WithCancel(context.Background())
			cancel()
			stats, err := Run(ctx, cfg)

			Convey("Then nothing is generated", func() {
				So(errors.Is(err, context.Canceled), ShouldBeTrue)
				So(stats.Sessions, ShouldEqual, 0)
			})
		})
	})
}

func TestWinProbability(t *testing.T) {
	Convey("Given team skills", t, func() {
		So(WinProbability(1500, 1500), ShouldEqual, 0.5)
		So(WinProbability(1900, 1500), ShouldAlmostEqual, 0.909, 0.001)
		So(WinProbability(1500, 1900), ShouldAlmostEqual, 0.091, 0.001)
	})
}

func TestGenerator_StrongerTeamWinsMoreOften(t *testing.T) {
	Convey("Given many generated sessions", t, func() {
		cfg := smallConfig(t.TempDir())
		cfg.Users = 200
		g := newGenerator(cfg)
		skill := make(map[uint64]float64, len(g.pool))
		for _, p := range g.pool {
			skill[p.id] = p.skill
		}

		stronger := 0
		const n = 2000
		for i := 0; i < n; i++ {
			s := g.session()
			var sum1, sum2 float64
			win1 := false
			for _, p := range s.players {
				if p.team == 1 {
					sum1 += skill[p.userID]
					win1 = p.victory
				} else {
					sum2 += skill[p.userID]
				}
			}
			if (sum1 > sum2) == win1 {
				stronger++
			}
		}

		Convey("Then the stronger side wins clearly more than half", func() {
			So(float64(stronger)/n, ShouldBeGreaterThan, 0.55)
		})
	})
}
