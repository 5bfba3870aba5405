// Package model contains domain models passed between layers.
package model

// Faction labels that decide team membership when no side table entry exists.
const (
	FactionOne   = "faction_1"
	FactionTwo   = "faction_2"
	FactionMixed = "mixed"
)

// Team numbers.
const (
	TeamOne uint8 = 1
	TeamTwo uint8 = 2
)

// BattleRow is one player's result in one session.
type BattleRow struct {
	UserID      uint64
	SessionID   uint64
	CommitTime  uint64 // unix milliseconds
	Team        uint8  // 1 or 2
	BattleScore uint32
	Victory     bool
	EarlyQuit   bool
	Top20       bool // team_score_top_20_percent
	Faction     string
}

// TeamFromFaction derives the team number from a faction label.
func TeamFromFaction(faction string) uint8 {
	if faction == FactionTwo {
		return TeamTwo
	}
	return TeamOne
}

// SessionBatch is the contiguous run of rows sharing one session id.
type SessionBatch struct {
	SessionID uint64
	Rows      []BattleRow
}

// Len returns the number of rows in the batch.
func (b SessionBatch) Len() int { return len(b.Rows) }

// Team returns the rows that belong to the given team, in input order.
func (b SessionBatch) Team(team uint8) []BattleRow {
	out := make([]BattleRow, 0, len(b.Rows)/2+1)
	for _, r := range b.Rows {
		if r.Team == team {
			out = append(out, r)
		}
	}
	return out
}

// TotalScore sums the raw battle scores of every row.
func (b SessionBatch) TotalScore() uint64 {
	var sum uint64
	for _, r := range b.Rows {
		sum += uint64(r.BattleScore)
	}
	return sum
}
