package statistic

import (
	"sort"
	"strconv"
	"strings"
)

// Buckets tracks how often the stronger side wins, by top-3 rating gap. Each
// session adds a win to the winner's bucket and a game to both mirrored
// buckets, so a bucket's ratio converges to the win rate of that gap.
type Buckets map[int64]Tally

// Add records a session won by a team with top-3 average winner against one
// with loser.
func (b Buckets) Add(winner, loser uint32) {
	w := Bucket(int64(winner) - int64(loser))
	t := b[w]
	t.Wins++
	t.Games++
	b[w] = t

	l := Bucket(int64(loser) - int64(winner))
	t = b[l]
	t.Games++
	b[l] = t
}

// Encode renders bucket:ratio,wins,games lines in bucket order.
func (b Buckets) Encode() string {
	keys := make([]int64, 0, len(b))
	for k := range b {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })

	var sb strings.Builder
	for _, k := range keys {
		t := b[k]
		sb.WriteString(strconv.FormatInt(k, 10))
		sb.WriteString(":")
		sb.WriteString(strconv.FormatFloat(t.Ratio(), 'f', -1, 64))
		sb.WriteString(",")
		sb.WriteString(strconv.FormatUint(t.Wins, 10))
		sb.WriteString(",")
		sb.WriteString(strconv.FormatUint(t.Games, 10))
		sb.WriteString("\n")
	}
	return sb.String()
}
