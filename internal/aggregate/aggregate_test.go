package aggregate_test

import (
	"context"
	"errors"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/okian/mmr/internal/aggregate"
	"github.com/okian/mmr/internal/domain/model"
	"github.com/okian/mmr/internal/domain/rating"
	"github.com/okian/mmr/internal/domain/statistic"
	. "github.com/smartystreets/goconvey/convey"
	"github.com/stretchr/testify/assert"
)

func drain(a aggregate.Aggregator) {
	r := a.Runner()
	go r.Run(context.Background())
	So(a.Close(), ShouldBeNil)
	<-r.Done()
}

func calibrated(v uint32) model.RatingLevel {
	return model.RatingLevel{Kind: model.Calibrated, Value: v}
}

func team(victory bool, first uint64, ratings ...uint32) rating.Team {
	t := rating.Team{Victory: victory}
	for i, r := range ratings {
		t.Members = append(t.Members, rating.Member{
			Row:   model.BattleRow{UserID: first + uint64(i)},
			Level: calibrated(r),
		})
	}
	return t
}

func TestStatisticMerger(t *testing.T) {
	Convey("Given a statistic merger", t, func() {
		path := filepath.Join(t.TempDir(), "stats.txt")
		m, err := aggregate.NewStatisticMerger(path)
		So(err, ShouldBeNil)
		ctx := context.Background()

		Convey("When statistics for two boards are sent and the worker drains", func() {
			So(m.Send(ctx, aggregate.BoardStatistic{Board: statistic.BoardCommon, Statistic: statistic.Statistic{Battles: 1}}), ShouldBeNil)
			So(m.Send(ctx, aggregate.BoardStatistic{Board: statistic.BoardCommon, Statistic: statistic.Statistic{Battles: 1, DisbalanceTeam1: 1}}), ShouldBeNil)
			So(m.Send(ctx, aggregate.BoardStatistic{Board: "lobbie", Statistic: statistic.Statistic{Battles: 1}}), ShouldBeNil)
			drain(m)

			Convey("Then each board holds the sum of its statistics", func() {
				So(m.Result()[statistic.BoardCommon].Battles, ShouldEqual, 2)
				So(m.Result()[statistic.BoardCommon].DisbalanceTeam1, ShouldEqual, 1)
				So(m.Result()["lobbie"].Battles, ShouldEqual, 1)
			})

			Convey("Then Finish writes the encoded boards", func() {
				So(m.Finish(), ShouldBeNil)
				data, err := os.ReadFile(path)
				So(err, ShouldBeNil)
				So(string(data), ShouldContainSubstring, "common__battles:2;\n")
				So(string(data), ShouldContainSubstring, "lobbie__battles:1;\n")
			})
		})

		Convey("When sending after close", func() {
			drain(m)
			err := m.Send(ctx, aggregate.BoardStatistic{Board: "x"})

			Convey("Then the send is refused", func() {
				So(err, ShouldNotBeNil)
			})
		})
	})
}

func TestSanityBucketer(t *testing.T) {
	Convey("Given a sanity bucketer", t, func() {
		path := filepath.Join(t.TempDir(), "sanity.txt")
		b, err := aggregate.NewSanityBucketer(path)
		So(err, ShouldBeNil)
		ctx := context.Background()

		Convey("When the stronger team wins once and loses once", func() {
			So(b.Send(ctx, aggregate.SanityPair{Winner: 1700, Loser: 1000}), ShouldBeNil)
			So(b.Send(ctx, aggregate.SanityPair{Winner: 1000, Loser: 1700}), ShouldBeNil)
			drain(b)

			Convey("Then both mirrored buckets hold one win out of two games", func() {
				So(b.Finish(), ShouldBeNil)
				data, err := os.ReadFile(path)
				So(err, ShouldBeNil)
				So(string(data), ShouldEqual, "-600:0.5,1,2\n600:0.5,1,2\n")
			})
		})
	})
}

func TestSanityBucketerConvergence(t *testing.T) {
	Convey("Given 1000 sessions where the side 200 points stronger wins 70% of the time", t, func() {
		b, err := aggregate.NewSanityBucketer("")
		So(err, ShouldBeNil)
		ctx := context.Background()
		rnd := rand.New(rand.NewPCG(7, 11))
		const strong, weak = 1700, 1500
		for i := 0; i < 1000; i++ {
			pair := aggregate.SanityPair{Winner: weak, Loser: strong}
			if rnd.Float64() < 0.7 {
				pair = aggregate.SanityPair{Winner: strong, Loser: weak}
			}
			So(b.Send(ctx, pair), ShouldBeNil)
		}
		drain(b)

		Convey("Then bucket 200 converges to the win rate and its mirror to the rest", func() {
			up, down := b.Result()[200], b.Result()[-200]
			So(up.Games, ShouldEqual, 1000)
			So(down.Games, ShouldEqual, 1000)
			So(up.Wins+down.Wins, ShouldEqual, 1000)
			assert.InDelta(t, 0.7, up.Ratio(), 0.05)
			assert.InDelta(t, 0.3, down.Ratio(), 0.05)
		})
	})
}

func TestAggregatorOutputs(t *testing.T) {
	Convey("Given an output path that is a directory", t, func() {
		dir := t.TempDir()

		Convey("Then the statistic merger refuses to start", func() {
			_, err := aggregate.NewStatisticMerger(dir)
			So(errors.Is(err, aggregate.ErrOpenOutput), ShouldBeTrue)
		})

		Convey("Then the sanity bucketer refuses to start", func() {
			_, err := aggregate.NewSanityBucketer(dir)
			So(errors.Is(err, aggregate.ErrOpenOutput), ShouldBeTrue)
		})
	})

	Convey("Given a statistic path", t, func() {
		path := filepath.Join(t.TempDir(), "stats.txt")
		m, err := aggregate.NewStatisticMerger(path)
		So(err, ShouldBeNil)

		Convey("Then the file exists before any session is merged", func() {
			_, statErr := os.Stat(path)
			So(statErr, ShouldBeNil)
			drain(m)
			So(m.Finish(), ShouldBeNil)
		})
	})
}

func TestFormatChange(t *testing.T) {
	Convey("Given a V1 change", t, func() {
		ch := model.Change{
			Algorithm: rating.NameV1,
			Pending: model.PendingChange{
				UserID: 5, Victory: true, Delta: 33, BattleScore: 1600, NormalizedScore: 1600,
				Opponents: []model.Opponent{
					{Level: calibrated(1500), Weight: 1},
					{Level: model.RatingLevel{Kind: model.Provisional, Value: 900}, Weight: 1},
				},
				Debug: []float64{33, 0, 0, 0, 0, 33},
			},
			Row: model.LeaderboardRow{Rating: 1533, Top20: 2, EarlyQuits: 1},
		}

		Convey("Then the line carries counters and all debug terms", func() {
			line, err := aggregate.FormatChange(ch)
			So(err, ShouldBeNil)
			So(line, ShouldEqual, "{u:5,v:true,dm:33,m:1533,o:1500,900,t:2,e:1,bs:1600,bsm:1600,de:[33,0,0,0,0,33]}\n")
		})
	})

	Convey("Given a V2 change", t, func() {
		ch := model.Change{
			Algorithm: rating.NameV2,
			Pending: model.PendingChange{
				UserID: 9, Delta: -7, Top20: true, BattleScore: 1000, NormalizedScore: 1250,
				Opponents: []model.Opponent{
					{Level: calibrated(1500), Weight: 1},
					{Level: model.RatingLevel{Kind: model.Provisional, Value: 800}, Weight: 0.5},
				},
				Debug: []float64{12.345, 3.456, 100.9, 0.123, 0.0999, 0.25, 8000.7, 0.5, 0.049, 1, 1500.55},
			},
			Row: model.LeaderboardRow{Rating: 1493},
		}

		Convey("Then weighted opponents are joined and debug terms are truncated", func() {
			line, err := aggregate.FormatChange(ch)
			So(err, ShouldBeNil)
			So(line, ShouldEqual, "{u:9,v:false,dm:-7,m:1493,o:1500+400,t:1,bs:1000,bsm:1250,"+
				"de:[im:12.34,dm:3.4,po:100,ip:0.12,ik:0.09,dk:0.25,sk:8000,bi:0.5,bd:0.04,k:1,a:1500.5]}\n")
		})
	})

	Convey("Given a change without algorithm", t, func() {
		_, err := aggregate.FormatChange(model.Change{})

		Convey("Then formatting fails", func() {
			So(errors.Is(err, aggregate.ErrUnknownAlgorithm), ShouldBeTrue)
		})
	})

	Convey("Given values to truncate", t, func() {
		So(aggregate.Truncate(1.239, 100), ShouldEqual, 1.23)
		So(aggregate.Truncate(-4, 10), ShouldEqual, 0)
		So(aggregate.Truncate(7.9, 1), ShouldEqual, 7)
	})
}

func TestChangeLogger(t *testing.T) {
	Convey("Given a change logger with two shards", t, func() {
		dir := t.TempDir()
		l, err := aggregate.NewChangeLogger(aggregate.ChangeLogConfig{Dir: dir, Shards: 2, MaxSizeMB: 1, MaxBackups: 1})
		So(err, ShouldBeNil)
		ctx := context.Background()

		ch := model.Change{
			Algorithm:    rating.NameV1,
			ClassifierID: 1,
			Pending:      model.PendingChange{UserID: 1, Delta: 10, Debug: []float64{1, 2, 3, 4, 5, 6}},
			Row:          model.LeaderboardRow{Rating: 10},
		}

		Convey("When changes for a valid and an invalid classifier are sent", func() {
			So(l.Send(ctx, ch), ShouldBeNil)
			bad := ch
			bad.ClassifierID = 5
			So(l.Send(ctx, bad), ShouldBeNil)
			drain(l)
			So(l.Finish(), ShouldBeNil)

			Convey("Then only the valid change reaches its shard", func() {
				want, _ := aggregate.FormatChange(ch)
				data, err := os.ReadFile(filepath.Join(dir, "changes_1.log"))
				So(err, ShouldBeNil)
				So(string(data), ShouldEqual, want)

				other, err := os.ReadFile(filepath.Join(dir, "changes_0.log"))
				So(err, ShouldBeNil)
				So(len(other), ShouldEqual, 0)
			})
		})
	})

	Convey("Given a shard directory that is a regular file", t, func() {
		file := filepath.Join(t.TempDir(), "file")
		So(os.WriteFile(file, nil, 0o644), ShouldBeNil)

		_, err := aggregate.NewChangeLogger(aggregate.ChangeLogConfig{Dir: file, Shards: 1})

		Convey("Then opening fails", func() {
			So(errors.Is(err, aggregate.ErrOpenOutput), ShouldBeTrue)
		})
	})
}

func TestSessionClassifier(t *testing.T) {
	Convey("Given a lopsided session won by the stronger team", t, func() {
		s := rating.Session{
			ID:    12,
			Team1: team(true, 1, 2500, 2500, 2500),
			Team2: team(false, 10, 1500, 1500, 1500),
		}

		Convey("Then only team 1 is flagged", func() {
			So(aggregate.FormatClassification(s), ShouldEqual,
				"session_id:12,team_1:true,team_2:false,team_1_v:true,team_2_v:false")
		})

		Convey("When the classifier writes it with a roster", func() {
			dir := t.TempDir()
			path := filepath.Join(dir, "classes.txt")
			roster := filepath.Join(dir, "roster.csv")
			c, err := aggregate.NewSessionClassifier(path, roster)
			So(err, ShouldBeNil)
			So(c.Send(context.Background(), s), ShouldBeNil)
			drain(c)
			So(c.Finish(), ShouldBeNil)

			Convey("Then both files are written", func() {
				data, err := os.ReadFile(path)
				So(err, ShouldBeNil)
				So(string(data), ShouldEqual, aggregate.FormatClassification(s)+"\n")

				rows, err := os.ReadFile(roster)
				So(err, ShouldBeNil)
				lines := strings.Split(strings.TrimSpace(string(rows)), "\n")
				So(lines[0], ShouldEqual, "session_id;user_id;team;victory;mmr_type;mmr")
				So(len(lines), ShouldEqual, 7)
				So(lines[1], ShouldEqual, "12;1;1;true;mmr;2500")
				So(lines[4], ShouldEqual, "12;10;2;false;mmr;1500")
			})
		})
	})

	Convey("Given a session where a team lacks calibrated members", t, func() {
		s := rating.Session{ID: 1, Team1: team(false, 1, 2500), Team2: rating.Team{Victory: true}}

		Convey("Then no team is flagged", func() {
			t1, t2 := aggregate.Classify(s)
			So(t1, ShouldBeFalse)
			So(t2, ShouldBeFalse)
		})
	})
}
