package rating

import (
	"sort"

	"github.com/okian/mmr/internal/domain/model"
	"github.com/okian/mmr/pkg/metrics"
)

// MinTeamSize is the smallest team a rated session may have.
const MinTeamSize = 5

// LevelSource is the read side of the leaderboard the algorithms need.
type LevelSource interface {
	Level(userID uint64) model.RatingLevel
	Battles(userID uint64) uint32
}

// Member is one participant with the leaderboard state it entered with.
type Member struct {
	Row     model.BattleRow
	Level   model.RatingLevel
	Battles uint32
}

// Team is a ranked team: calibrated members by rating descending (ties by
// user id), then everyone else in input order.
type Team struct {
	Members []Member
	Victory bool
}

// Levels returns the members' levels in rank order.
func (t Team) Levels() []model.RatingLevel {
	out := make([]model.RatingLevel, len(t.Members))
	for i, m := range t.Members {
		out[i] = m.Level
	}
	return out
}

// Top3 is the integer mean of the calibrated ratings among the first three
// ranked members.
func (t Team) Top3() (uint32, bool) {
	var sum, n uint64
	for i, m := range t.Members {
		if i >= 3 {
			break
		}
		if m.Level.IsCalibrated() {
			sum += uint64(m.Level.Value)
			n++
		}
	}
	if n == 0 {
		return 0, false
	}
	return uint32(sum / n), true
}

// Session is a completed batch prepared for rating.
type Session struct {
	ID         uint64
	Team1      Team
	Team2      Team
	Mode       Mode
	HasMode    bool
	TotalScore uint64
}

// Size returns the number of participants.
func (s Session) Size() int { return len(s.Team1.Members) + len(s.Team2.Members) }

// Prepare splits a batch into ranked teams and resolves its mode.
func Prepare(batch model.SessionBatch, levels LevelSource, modes ModeTable) Session {
	s := Session{
		ID:         batch.SessionID,
		Team1:      buildTeam(batch.Team(model.TeamOne), levels),
		Team2:      buildTeam(batch.Team(model.TeamTwo), levels),
		TotalScore: batch.TotalScore(),
	}
	if modes != nil {
		s.Mode, s.HasMode = modes.ModeOf(batch.SessionID)
	}
	return s
}

// Gate decides whether the session is rated. The outcome is a metrics label.
// A session without a known mode is treated as a newbie session.
func (s Session) Gate() (string, bool) {
	if len(s.Team1.Members) < MinTeamSize || len(s.Team2.Members) < MinTeamSize {
		return metrics.OutcomeSmallTeam, false
	}
	if !s.HasMode || s.Mode.Common == CommonNewbie {
		return metrics.OutcomeNewbie, false
	}
	return metrics.OutcomeAccepted, true
}

func buildTeam(rows []model.BattleRow, levels LevelSource) Team {
	t := Team{Members: make([]Member, len(rows))}
	for i, r := range rows {
		t.Members[i] = Member{Row: r, Level: levels.Level(r.UserID), Battles: levels.Battles(r.UserID)}
		if r.Victory {
			t.Victory = true
		}
	}
	rank(t.Members)
	return t
}

// rank orders members in place: calibrated by rating descending with ties
// by user id, then everyone else keeping their relative order.
func rank(members []Member) {
	sort.SliceStable(members, func(i, j int) bool {
		a, b := members[i].Level, members[j].Level
		if a.IsCalibrated() != b.IsCalibrated() {
			return a.IsCalibrated()
		}
		if !a.IsCalibrated() {
			return false
		}
		if a.Value != b.Value {
			return a.Value > b.Value
		}
		return members[i].Row.UserID < members[j].Row.UserID
	})
}
