// Package statistic aggregates per-session balance counters by board.
package statistic

import (
	"sort"
	"strconv"
	"strings"

	"github.com/okian/mmr/internal/domain/model"
	"github.com/okian/mmr/internal/domain/rating"
)

const (
	// DisbalanceThreshold is the top-3 rating gap that marks a lopsided session.
	DisbalanceThreshold = 800
	// NewbieWindowMillis is how long after registration a user counts as a newbie.
	NewbieWindowMillis = 24 * 60 * 60 * 1000
	// BucketWidth is the rating-gap width of spread and sanity buckets.
	BucketWidth = 200

	newbieHighRatio = 0.69
	newbieLowRatio  = 0.31
)

// Board names that do not come from the mode table.
const BoardCommon = "common"

// Registrations resolves a user's registration time in unix milliseconds.
type Registrations interface {
	RegisteredAt(userID uint64) (uint64, bool)
}

// SpreadKey is a (team 1 top-3 average, team 2 top-3 average) pair.
type SpreadKey struct {
	Team1 uint32
	Team2 uint32
}

// Tally counts wins out of games.
type Tally struct {
	Wins  uint64
	Games uint64
}

// Ratio is wins/games as a float; an empty tally has ratio NaN.
func (t Tally) Ratio() float64 { return float64(t.Wins) / float64(t.Games) }

// Statistic is a set of counters that merge by addition.
type Statistic struct {
	Spread map[SpreadKey]Tally

	Battles                    uint64
	DisbalanceTeam1            uint64
	DisbalanceTeam1Victory     uint64
	DisbalanceTeam2            uint64
	DisbalanceTeam2Victory     uint64
	NewUserDisbalanceBattles   uint64
	NewUserAllieBattles        uint64
	NewUserBattlesVictory      uint64
	NewUserBattles             uint64
	NewUsersSession            uint64
	NewbieCountDisbalanceTeam1 uint64
	NewbieCountDisbalanceTeam2 uint64
	NewUserDisbalanceSession   uint64
}

// Merge adds other into s.
func (s *Statistic) Merge(other Statistic) {
	s.Battles += other.Battles
	s.DisbalanceTeam1 += other.DisbalanceTeam1
	s.DisbalanceTeam1Victory += other.DisbalanceTeam1Victory
	s.DisbalanceTeam2 += other.DisbalanceTeam2
	s.DisbalanceTeam2Victory += other.DisbalanceTeam2Victory
	s.NewUserDisbalanceBattles += other.NewUserDisbalanceBattles
	s.NewUserAllieBattles += other.NewUserAllieBattles
	s.NewUserBattlesVictory += other.NewUserBattlesVictory
	s.NewUserBattles += other.NewUserBattles
	s.NewUsersSession += other.NewUsersSession
	s.NewbieCountDisbalanceTeam1 += other.NewbieCountDisbalanceTeam1
	s.NewbieCountDisbalanceTeam2 += other.NewbieCountDisbalanceTeam2
	s.NewUserDisbalanceSession += other.NewUserDisbalanceSession

	if len(other.Spread) > 0 && s.Spread == nil {
		s.Spread = make(map[SpreadKey]Tally, len(other.Spread))
	}
	for k, v := range other.Spread {
		t := s.Spread[k]
		t.Wins += v.Wins
		t.Games += v.Games
		s.Spread[k] = t
	}
}

// Build computes the statistic of one session.
func Build(team1, team2 rating.Team, regs Registrations) Statistic {
	st := Statistic{Battles: 1}
	t1, ok1 := team1.Top3()
	t2, ok2 := team2.Top3()
	both := ok1 && ok2
	diff := int64(t1) - int64(t2)

	team1Strong := both && diff > DisbalanceThreshold
	team2Strong := both && -diff > DisbalanceThreshold

	if both {
		var win uint64
		if team1.Victory {
			win = 1
		}
		st.Spread = map[SpreadKey]Tally{{Team1: t1, Team2: t2}: {Wins: win, Games: 1}}
	}
	if team1Strong {
		st.DisbalanceTeam1++
		if team1.Victory {
			st.DisbalanceTeam1Victory++
		}
	}
	if team2Strong {
		st.DisbalanceTeam2++
		if team2.Victory {
			st.DisbalanceTeam2Victory++
		}
	}

	newbies1 := countNewbies(&st, team1, team1Strong, team2Strong, regs)
	newbies2 := countNewbies(&st, team2, team1Strong, team2Strong, regs)
	if newbies1+newbies2 > 0 {
		st.NewUsersSession++
		if team1Strong || team2Strong {
			st.NewUserDisbalanceSession++
		}
	}

	r1 := ratio(newbies1, len(team1.Members))
	r2 := ratio(newbies2, len(team2.Members))
	if r1 >= newbieHighRatio && r2 < newbieLowRatio {
		st.NewbieCountDisbalanceTeam1++
	}
	if r2 >= newbieHighRatio && r1 < newbieLowRatio {
		st.NewbieCountDisbalanceTeam2++
	}
	return st
}

// SanityPair returns (winner top-3, loser top-3) when both teams have one.
func SanityPair(team1, team2 rating.Team) (uint32, uint32, bool) {
	t1, ok1 := team1.Top3()
	t2, ok2 := team2.Top3()
	if !ok1 || !ok2 {
		return 0, 0, false
	}
	if team1.Victory {
		return t1, t2, true
	}
	return t2, t1, true
}

// IsNewbie reports whether the row was played within the newbie window after
// the user's registration.
func IsNewbie(row model.BattleRow, regs Registrations) bool {
	if regs == nil {
		return false
	}
	at, ok := regs.RegisteredAt(row.UserID)
	if !ok {
		return false
	}
	return row.CommitTime > at && row.CommitTime-at < NewbieWindowMillis
}

func countNewbies(st *Statistic, team rating.Team, team1Strong, team2Strong bool, regs Registrations) int {
	n := 0
	for _, m := range team.Members {
		if !IsNewbie(m.Row, regs) {
			continue
		}
		n++
		st.NewUserBattles++
		if team1Strong || team2Strong {
			st.NewUserDisbalanceBattles++
		}
		allie := (team1Strong && m.Row.Team == model.TeamOne) || (team2Strong && m.Row.Team == model.TeamTwo)
		if allie {
			st.NewUserAllieBattles++
			if m.Row.Victory {
				st.NewUserBattlesVictory++
			}
		}
	}
	return n
}

func ratio(n, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(n) / float64(total)
}

// Bucket snaps a rating gap to the lower magnitude multiple of BucketWidth.
func Bucket(gap int64) int64 { return gap / BucketWidth * BucketWidth }

// Encode renders the statistic as the text block of one board.
func (s Statistic) Encode(board string) string {
	spread := make(map[int64]Tally)
	for k, v := range s.Spread {
		b := Bucket(int64(k.Team1) - int64(k.Team2))
		t := spread[b]
		t.Wins += v.Wins
		t.Games += v.Games
		spread[b] = t
	}
	buckets := make([]int64, 0, len(spread))
	for b := range spread {
		buckets = append(buckets, b)
	}
	sort.Slice(buckets, func(i, j int) bool { return buckets[i] < buckets[j] })

	var sb strings.Builder
	sb.WriteString(board)
	sb.WriteString("__top_3_disbalance_spread:{")
	for _, b := range buckets {
		t := spread[b]
		sb.WriteString(`"`)
		sb.WriteString(strconv.FormatInt(b, 10))
		sb.WriteString(`":[`)
		sb.WriteString(strconv.FormatFloat(t.Ratio(), 'f', -1, 64))
		sb.WriteString(",")
		sb.WriteString(strconv.FormatUint(t.Wins, 10))
		sb.WriteString(",")
		sb.WriteString(strconv.FormatUint(t.Games, 10))
		sb.WriteString("],")
	}
	sb.WriteString("};\n")

	for _, c := range []struct {
		name  string
		value uint64
	}{
		{"battles", s.Battles},
		{"disbalance_team_1", s.DisbalanceTeam1},
		{"disbalance_team_1_victory", s.DisbalanceTeam1Victory},
		{"disbalance_team_2", s.DisbalanceTeam2},
		{"disbalance_team_2_victory", s.DisbalanceTeam2Victory},
		{"new_user_disbalance_battles", s.NewUserDisbalanceBattles},
		{"new_user_disbalance_allie_battles", s.NewUserAllieBattles},
		{"new_user_disbalance_battles_victory", s.NewUserBattlesVictory},
		{"new_user_battles", s.NewUserBattles},
		{"new_users_session", s.NewUsersSession},
		{"newbie_count_disbalance_team_1", s.NewbieCountDisbalanceTeam1},
		{"newbie_count_disbalance_team_2", s.NewbieCountDisbalanceTeam2},
		{"new_user_disbalance_session", s.NewUserDisbalanceSession},
	} {
		sb.WriteString(board)
		sb.WriteString("__")
		sb.WriteString(c.name)
		sb.WriteString(":")
		sb.WriteString(strconv.FormatUint(c.value, 10))
		sb.WriteString(";\n")
	}
	return sb.String()
}

// Boards is the process-wide statistic per board name.
type Boards map[string]Statistic

// Add merges st into the named board.
func (b Boards) Add(board string, st Statistic) {
	cur := b[board]
	cur.Merge(st)
	b[board] = cur
}

// Encode renders every board in name order.
func (b Boards) Encode() string {
	names := make([]string, 0, len(b))
	for n := range b {
		names = append(names, n)
	}
	sort.Strings(names)
	var sb strings.Builder
	for _, n := range names {
		sb.WriteString(b[n].Encode(n))
	}
	return sb.String()
}
