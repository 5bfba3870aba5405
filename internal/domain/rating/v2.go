package rating

import (
	"context"
	"math"

	"github.com/okian/mmr/internal/domain/model"
	"github.com/okian/mmr/pkg/logger"
)

// V2 is the pool-redistribution algorithm. Every participant pays into a
// session-wide pool in proportion to its rating and confidence, and the pool
// is paid back in proportion to bonus-adjusted scores.
type V2 struct{}

// Name implements Algorithm.
func (V2) Name() string { return NameV2 }

// Apply implements Algorithm.
func (V2) Apply(l Ledger, p model.PendingChange) model.LeaderboardRow { return l.ApplyV2(p) }

type poolTerms struct {
	rating       float64
	contribution uint32
	k            float64
	decK         float64
	incK         float64
	bankGet      float64
	bankGive     float64
}

// Confidence is k = √2^min(0, battles-6).
func Confidence(battles uint32) float64 {
	return math.Pow(math.Sqrt2, math.Min(0, float64(battles)-model.CalibrationBattles))
}

// Contribution is the bonus-adjusted score: +1/4 for a victory, +1/4 for
// top20 and -1/2 for an early quit, floored at zero.
func Contribution(row model.BattleRow) uint32 {
	bs := int64(row.BattleScore)
	v := bs
	if row.Victory {
		v += bs / 4
	}
	if row.Top20 {
		v += bs / 4
	}
	if row.EarlyQuit {
		v -= bs / 2
	}
	if v < 0 {
		return 0
	}
	return uint32(v)
}

// Compute implements Algorithm.
func (V2) Compute(ctx context.Context, s Session) []model.PendingChange {
	members := make([]Member, 0, s.Size())
	members = append(members, s.Team1.Members...)
	members = append(members, s.Team2.Members...)
	if len(members) == 0 {
		return nil
	}
	// Changes and the o: context follow the session-wide ranking.
	rank(members)

	var weighted, weights, sumScore float64
	terms := make([]poolTerms, len(members))
	for i, m := range members {
		k := Confidence(m.Battles)
		r := float64(m.Level.Rating())
		c := Contribution(m.Row)
		terms[i] = poolTerms{rating: r, contribution: c, k: k}
		weighted += r * k
		weights += k
		sumScore += float64(c)
	}
	avg := weighted / weights

	var pool, mmrInc, norm float64
	for i := range terms {
		t := &terms[i]
		t.bankGive = Sigmoid(t.rating, 0.01, 500, -1, 1) + 0.2*(1-t.k)
		t.bankGet = Sigmoid(t.rating, 0.01, 9500, 1, 0) * 0.05
		t.decK = 0.5 / (8*math.Pow(DivideOr0(avg, t.rating), 0.35) + 1)
		t.incK = 0.5 / (4*DivideOr0(t.rating, avg) + 1)

		pool += (t.decK+t.bankGet)*t.rating*t.k + t.bankGive*math.Max(avg, 500) - t.bankGet*t.rating
		mmrInc += t.incK / t.k
		norm += t.incK / t.k * float64(t.contribution)
	}

	opponents := make([]model.Opponent, len(members))
	for i, m := range members {
		opponents[i] = model.Opponent{Level: m.Level, Weight: terms[i].k}
	}

	out := make([]model.PendingChange, len(members))
	for i, m := range members {
		t := terms[i]
		var inc float64
		dec := t.rating * (t.decK + t.bankGet) / t.k

		p := pending(s, m)
		p.NormalizedScore = t.contribution
		p.Opponents = opponents
		// With nothing scored there is nothing to pay the pool back by, so
		// nobody pays into it either.
		if sumScore > 0 {
			inc = pool * (float64(t.contribution) / sumScore) * (t.incK / mmrInc) / (norm / (sumScore * mmrInc)) / t.k
			p.Delta = truncInt32(inc - dec)
		}
		p.Debug = []float64{inc, dec, pool, mmrInc, t.incK, t.decK, sumScore, t.bankGive, t.bankGet, t.k, avg}
		out[i] = p
	}

	logger.Get().Named("rating").Debug(ctx, "pool redistributed",
		logger.Uint64("session_id", s.ID),
		logger.Float64("pool", pool),
		logger.Float64("avg", avg))
	return out
}
