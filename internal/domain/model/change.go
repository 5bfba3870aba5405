package model

// Opponent is one entry of the context a delta was computed against.
// Weight is the confidence weight k for pool redistribution and 1 otherwise.
type Opponent struct {
	Level  RatingLevel
	Weight float64
}

// PendingChange is one participant's rating update, computed from a session
// and waiting to be applied to the leaderboard.
type PendingChange struct {
	UserID     uint64
	SessionID  uint64
	CommitTime uint64
	Faction    string

	Victory   bool
	EarlyQuit bool
	Top20     bool

	BattleScore uint32
	// NormalizedScore is the score the delta formula consumed: the
	// session-normalized score for V1, the bonus-adjusted contribution for V2.
	NormalizedScore uint32

	Level     RatingLevel
	Opponents []Opponent

	Delta int32
	Debug []float64
}

// Change is an applied PendingChange together with the resulting row.
type Change struct {
	Algorithm    string
	Pending      PendingChange
	Row          LeaderboardRow
	ClassifierID int
}
