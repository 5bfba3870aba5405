package statistic

import (
	"testing"

	"github.com/okian/mmr/internal/domain/model"
	"github.com/okian/mmr/internal/domain/rating"
	. "github.com/smartystreets/goconvey/convey"
)

type regs map[uint64]uint64

func (r regs) RegisteredAt(id uint64) (uint64, bool) {
	v, ok := r[id]
	return v, ok
}

const commit = uint64(10 * NewbieWindowMillis)

func team(teamNo uint8, victory bool, firstID uint64, ratings ...uint32) rating.Team {
	t := rating.Team{Victory: victory}
	for i, r := range ratings {
		lvl := model.RatingLevel{Kind: model.Calibrated, Value: r}
		if r == 0 {
			lvl = model.RatingLevel{Kind: model.Unrated}
		}
		t.Members = append(t.Members, rating.Member{
			Row:   model.BattleRow{UserID: firstID + uint64(i), Team: teamNo, CommitTime: commit, Victory: victory},
			Level: lvl,
		})
	}
	return t
}

func TestBuild(t *testing.T) {
	Convey("Given a session with a gap below the threshold", t, func() {
		t1 := team(model.TeamOne, true, 1, 1800, 1700, 1600, 0, 0)
		t2 := team(model.TeamTwo, false, 6, 1100, 1000, 900, 0, 0)
		st := Build(t1, t2, regs{})

		Convey("Then only the battle and the spread entry are counted", func() {
			So(st.Battles, ShouldEqual, 1)
			So(st.DisbalanceTeam1, ShouldEqual, 0)
			So(st.DisbalanceTeam2, ShouldEqual, 0)
			So(st.NewUserBattles, ShouldEqual, 0)
			So(st.Spread, ShouldResemble, map[SpreadKey]Tally{{Team1: 1700, Team2: 1000}: {Wins: 1, Games: 1}})
		})
	})

	Convey("Given a session with a gap above the threshold", t, func() {
		t1 := team(model.TeamOne, true, 1, 2500, 2400, 2300, 0, 0)
		t2 := team(model.TeamTwo, false, 6, 1100, 1000, 900, 0, 0)
		r := regs{
			1: commit - 3600*1000,
			2: commit - 3600*1000,
			6: commit - 2*NewbieWindowMillis,
			7: commit - 1000,
		}
		st := Build(t1, t2, r)

		Convey("Then team 1 is marked strong and victorious", func() {
			So(st.DisbalanceTeam1, ShouldEqual, 1)
			So(st.DisbalanceTeam1Victory, ShouldEqual, 1)
			So(st.DisbalanceTeam2, ShouldEqual, 0)
		})

		Convey("Then newbies are counted on both teams", func() {
			So(st.NewUserBattles, ShouldEqual, 3)
			So(st.NewUsersSession, ShouldEqual, 1)
			So(st.NewUserDisbalanceSession, ShouldEqual, 1)
			So(st.NewUserDisbalanceBattles, ShouldEqual, 3)
			So(st.NewUserAllieBattles, ShouldEqual, 2)
			So(st.NewUserBattlesVictory, ShouldEqual, 2)
		})

		Convey("Then the newbie ratio is not skewed", func() {
			So(st.NewbieCountDisbalanceTeam1, ShouldEqual, 0)
			So(st.NewbieCountDisbalanceTeam2, ShouldEqual, 0)
		})

		Convey("Then the sanity pair is winner first", func() {
			w, l, ok := SanityPair(t1, t2)
			So(ok, ShouldBeTrue)
			So(w, ShouldEqual, 2400)
			So(l, ShouldEqual, 1000)
		})
	})

	Convey("Given a team made mostly of newbies", t, func() {
		t1 := team(model.TeamOne, false, 1, 0, 0, 0, 0, 0)
		t2 := team(model.TeamTwo, true, 6, 0, 0, 0, 0, 0)
		r := regs{1: commit - 1, 2: commit - 1, 3: commit - 1, 4: commit - 1}
		st := Build(t1, t2, r)

		Convey("Then the skew counter of that team fires", func() {
			So(st.NewbieCountDisbalanceTeam1, ShouldEqual, 1)
			So(st.NewbieCountDisbalanceTeam2, ShouldEqual, 0)
			So(st.Spread, ShouldBeNil)
			_, _, ok := SanityPair(t1, t2)
			So(ok, ShouldBeFalse)
		})
	})

	Convey("Given a registration after the commit", t, func() {
		row := model.BattleRow{UserID: 1, CommitTime: 100}
		So(IsNewbie(row, regs{1: 100}), ShouldBeFalse)
		So(IsNewbie(row, regs{1: 99}), ShouldBeTrue)
		So(IsNewbie(row, nil), ShouldBeFalse)
	})
}

func TestMergeAndEncode(t *testing.T) {
	Convey("Given two statistics", t, func() {
		a := Statistic{Battles: 1, DisbalanceTeam1: 1, Spread: map[SpreadKey]Tally{{2000, 1000}: {1, 1}}}
		b := Statistic{Battles: 2, NewUserBattles: 4, Spread: map[SpreadKey]Tally{{2000, 1000}: {0, 1}, {1000, 1150}: {1, 1}}}

		Convey("When they are merged", func() {
			var m Statistic
			m.Merge(a)
			m.Merge(b)

			Convey("Then counters add element-wise", func() {
				So(m.Battles, ShouldEqual, 3)
				So(m.DisbalanceTeam1, ShouldEqual, 1)
				So(m.NewUserBattles, ShouldEqual, 4)
				So(m.Spread[SpreadKey{2000, 1000}], ShouldResemble, Tally{Wins: 1, Games: 2})
			})

			Convey("Then the encoded block buckets the gap by 200", func() {
				out := m.Encode("common")
				So(out, ShouldStartWith, `common__top_3_disbalance_spread:{"0":[1,1,1],"1000":[0.5,1,2],};`+"\n")
				So(out, ShouldContainSubstring, "common__battles:3;\n")
				So(out, ShouldContainSubstring, "common__new_user_battles:4;\n")
				So(out, ShouldEndWith, "common__new_user_disbalance_session:0;\n")
			})
		})

		Convey("When added to boards", func() {
			boards := Boards{}
			boards.Add("pvp", a)
			boards.Add(BoardCommon, a)
			boards.Add(BoardCommon, b)
			out := boards.Encode()

			Convey("Then boards are written in name order", func() {
				So(out, ShouldStartWith, "common__top_3")
				So(out, ShouldContainSubstring, "pvp__battles:1;\n")
				So(boards[BoardCommon].Battles, ShouldEqual, 3)
			})
		})
	})
}

func TestBuckets(t *testing.T) {
	Convey("Given sessions won by the stronger side", t, func() {
		b := Buckets{}
		b.Add(1500, 1100)
		b.Add(1450, 1200)
		b.Add(1000, 1450)

		Convey("Then the winner bucket gains a win and the mirror a game", func() {
			So(b[400], ShouldResemble, Tally{Wins: 1, Games: 2})
			So(b[-400], ShouldResemble, Tally{Wins: 1, Games: 2})
			So(b[200], ShouldResemble, Tally{Wins: 1, Games: 1})
			So(b[-200], ShouldResemble, Tally{Wins: 0, Games: 1})
		})

		Convey("Then the encoding is ordered by bucket", func() {
			So(b.Encode(), ShouldEqual, "-400:0.5,1,2\n-200:0,0,1\n200:1,1,1\n400:0.5,1,2\n")
		})
	})

	Convey("Given an even match", t, func() {
		b := Buckets{}
		b.Add(1000, 1000)
		So(b[0], ShouldResemble, Tally{Wins: 1, Games: 2})
	})
}
