package rating

import (
	"context"
	"sort"

	"github.com/okian/mmr/internal/domain/model"
)

// normalizedBase is the score an average participant normalizes to.
const normalizedBase = 1600.0

// V1 is the diff-based algorithm: each participant is rated against the
// attenuated top of the opposing team.
type V1 struct{}

// Name implements Algorithm.
func (V1) Name() string { return NameV1 }

// Compute implements Algorithm.
func (V1) Compute(_ context.Context, s Session) []model.PendingChange {
	out := make([]model.PendingChange, 0, s.Size())
	out = appendV1(out, s, s.Team1, s.Team2)
	out = appendV1(out, s, s.Team2, s.Team1)
	return out
}

// Apply implements Algorithm.
func (V1) Apply(l Ledger, p model.PendingChange) model.LeaderboardRow { return l.ApplyV1(p) }

func appendV1(out []model.PendingChange, s Session, own, opp Team) []model.PendingChange {
	ctxLevels := opponentContext(opp)
	opponents := make([]model.Opponent, len(ctxLevels))
	for i, l := range ctxLevels {
		opponents[i] = model.Opponent{Level: l, Weight: 1}
	}

	for _, m := range own.Members {
		p := pending(s, m)
		p.Victory = own.Victory
		p.NormalizedScore = NormalizedScore(m.Row.BattleScore, s.Size(), s.TotalScore)
		p.Opponents = opponents
		p.Delta, p.Debug = Diff(own.Victory, int32(p.NormalizedScore), ctxLevels, m.Level, m.Row.EarlyQuit, m.Row.Top20)
		out = append(out, p)
	}
	return out
}

// opponentContext orders the opposing team by calibrated rating, counting
// non-calibrated members as zero.
func opponentContext(t Team) []model.RatingLevel {
	levels := t.Levels()
	sort.SliceStable(levels, func(i, j int) bool {
		return calibratedValue(levels[i]) > calibratedValue(levels[j])
	})
	return levels
}

func calibratedValue(l model.RatingLevel) uint32 {
	if l.IsCalibrated() {
		return l.Value
	}
	return 0
}

// NormalizedScore rescales a score so that a session's average participant
// scores 1600.
func NormalizedScore(score uint32, participants int, total uint64) uint32 {
	if total == 0 {
		return 0
	}
	return uint32(normalizedBase * float64(participants) / float64(total) * float64(score))
}
