package model

import (
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestSessionBatch(t *testing.T) {
	Convey("Given a session batch with rows on both teams", t, func() {
		b := SessionBatch{SessionID: 7, Rows: []BattleRow{
			{UserID: 1, Team: TeamOne, BattleScore: 100},
			{UserID: 2, Team: TeamTwo, BattleScore: 250},
			{UserID: 3, Team: TeamOne, BattleScore: 50},
		}}

		Convey("Then teams keep input order", func() {
			t1 := b.Team(TeamOne)
			So(len(t1), ShouldEqual, 2)
			So(t1[0].UserID, ShouldEqual, 1)
			So(t1[1].UserID, ShouldEqual, 3)
			So(len(b.Team(TeamTwo)), ShouldEqual, 1)
		})

		Convey("Then the total score sums every row", func() {
			So(b.TotalScore(), ShouldEqual, 400)
			So(b.Len(), ShouldEqual, 3)
		})
	})
}

func TestTeamFromFaction(t *testing.T) {
	Convey("Given faction labels", t, func() {
		So(TeamFromFaction(FactionTwo), ShouldEqual, TeamTwo)
		So(TeamFromFaction(FactionOne), ShouldEqual, TeamOne)
		So(TeamFromFaction(FactionMixed), ShouldEqual, TeamOne)
	})
}

func TestRatingLevel(t *testing.T) {
	Convey("Given leaderboard rows around the calibration boundary", t, func() {
		provisional := LevelFor(LeaderboardRow{Battles: 5, Rating: 900})
		calibrated := LevelFor(LeaderboardRow{Battles: 6, Rating: 1100})

		Convey("Then five battles is provisional and six is calibrated", func() {
			So(provisional.Kind, ShouldEqual, Provisional)
			So(provisional.IsCalibrated(), ShouldBeFalse)
			So(calibrated.Kind, ShouldEqual, Calibrated)
			So(calibrated.Rating(), ShouldEqual, 1100)
		})

		Convey("Then unrated levels report zero rating", func() {
			So(RatingLevel{Kind: Unrated, Value: 5}.Rating(), ShouldEqual, 0)
			So(Unrated.String(), ShouldEqual, "new")
			So(Provisional.String(), ShouldEqual, "not_enought")
			So(Calibrated.String(), ShouldEqual, "mmr")
		})
	})
}

func TestAvgScore(t *testing.T) {
	Convey("Given a leaderboard row", t, func() {
		So(LeaderboardRow{Battles: 4, CumulativeScore: 1003}.AvgScore(), ShouldEqual, 250)
		So(LeaderboardRow{}.AvgScore(), ShouldEqual, 0)
	})
}
