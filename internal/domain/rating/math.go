package rating

import (
	"math"

	"github.com/okian/mmr/internal/domain/model"
)

const (
	pressureThreshold = 250
	pressureScale     = 35.0
	lossOffset        = 66
	earlyQuitPenalty  = -20
	top20Bonus        = 20
)

// Sigmoid is c/(1+e^(-a(x-b))) + d.
func Sigmoid(x, a, b, c, d float64) float64 {
	return c/(1+math.Exp(-a*(x-b))) + d
}

// SigmoidLowPlace weights a rating x against the strongest rating maxValue of
// the same list.
func SigmoidLowPlace(x, maxValue float64) float64 {
	n := 0.99 * maxValue / x
	if maxValue < 1e-6 {
		n = maxValue
	}
	if x < 1e-8 {
		return 1
	}
	return -n/(1+math.Exp(-1.5*n*(x/maxValue-0.5))) + n + 1
}

// DivideOr0 returns top/down, or 1 when down is (near) zero or equals top.
func DivideOr0(top, down float64) float64 {
	if down == top || down < 1e-8 {
		return 1
	}
	return top / down
}

// Avg3 is the attenuated average of the calibrated values of a ranked list.
// It reports false when fewer than three calibrated values are present.
func Avg3(levels []model.RatingLevel) (uint32, bool) {
	var (
		top   uint32
		found bool
	)
	for _, l := range levels {
		if l.IsCalibrated() && (!found || l.Value > top) {
			top, found = l.Value, true
		}
	}
	if !found {
		return 0, false
	}

	maxValue := float64(top)
	type pair struct{ d, k float64 }
	pairs := make([]pair, 0, len(levels))
	maxX := 0.0
	for _, l := range levels {
		if !l.IsCalibrated() {
			continue
		}
		d := float64(l.Value)
		k := SigmoidLowPlace(d, maxValue)
		if d*k > maxX {
			maxX = d * k
		}
		pairs = append(pairs, pair{d: d, k: k})
	}

	sum := 0.0
	for _, p := range pairs {
		if maxX < 1e-7 {
			sum++
			continue
		}
		sum += maxValue / maxX * p.d * p.k
	}
	if len(pairs) <= 2 {
		return 0, false
	}
	return uint32(sum / float64(len(pairs))), true
}

// ScoreTerm is the saturating score curve: 50/e^(1e6/score²), truncated.
func ScoreTerm(score int32) int32 {
	return int32(50 / math.Exp(1_000_000/math.Pow(float64(score), 2)))
}

// Pressure maps a rating gap to (-1, 1); gaps under 250 produce no pressure.
func Pressure(gap int32) float64 {
	if gap < pressureThreshold && gap > -pressureThreshold {
		return 0
	}
	return 2/(1+math.Exp(-0.001*float64(gap))) - 1
}

// Diff computes the V1 delta of one participant. opponents is the opposing
// team ranked by calibrated rating. The debug terms are, in order: score
// term, gap, early quit bonus, top20 bonus, pressure multiplier, base.
func Diff(victory bool, score int32, opponents []model.RatingLevel, own model.RatingLevel, earlyQuit, top20 bool) (int32, []float64) {
	scoreTerm := ScoreTerm(score)
	if !victory {
		scoreTerm -= lossOffset
	}

	var gap int32
	if own.IsCalibrated() {
		avgOpp := int32(own.Value)
		if v, ok := Avg3(opponents); ok {
			avgOpp = int32(v)
		}
		if victory {
			gap = avgOpp - int32(own.Value)
		} else {
			gap = int32(own.Value) - avgOpp
		}
	}

	var eq, t20 int32
	if earlyQuit {
		eq = earlyQuitPenalty
	}
	if top20 {
		t20 = top20Bonus
	}
	mul := Pressure(gap)
	base := float64(scoreTerm + eq + t20)

	var delta int32
	if victory {
		v := base + mul*pressureScale
		if v > 0 {
			delta = int32(v)
		}
	} else {
		delta = int32(base - mul*pressureScale)
	}
	return delta, []float64{float64(scoreTerm), float64(gap), float64(eq), float64(t20), mul, base}
}

// truncInt32 converts with saturation, the way a float-to-int cast clamps.
func truncInt32(v float64) int32 {
	switch {
	case math.IsNaN(v):
		return 0
	case v >= math.MaxInt32:
		return math.MaxInt32
	case v <= math.MinInt32:
		return math.MinInt32
	default:
		return int32(v)
	}
}
