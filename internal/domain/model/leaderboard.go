package model

// CalibrationBattles is the battle count at which a rating becomes calibrated.
const CalibrationBattles = 6

// LevelKind tells which formulas apply to a player.
type LevelKind uint8

const (
	// Unrated players have never been seen.
	Unrated LevelKind = iota
	// Provisional players have 1..5 battles; their rating is a score average.
	Provisional
	// Calibrated players have 6 or more battles.
	Calibrated
)

// String returns the label used in roster output.
func (k LevelKind) String() string {
	switch k {
	case Calibrated:
		return "mmr"
	case Provisional:
		return "not_enought"
	default:
		return "new"
	}
}

// RatingLevel is a player's rating tagged with its confidence.
type RatingLevel struct {
	Kind  LevelKind
	Value uint32
}

// IsCalibrated reports whether the level is Calibrated.
func (l RatingLevel) IsCalibrated() bool { return l.Kind == Calibrated }

// Rating returns the value for Provisional and Calibrated levels and 0 otherwise.
func (l RatingLevel) Rating() uint32 {
	if l.Kind == Unrated {
		return 0
	}
	return l.Value
}

// LevelFor classifies a row by its battle count.
func LevelFor(row LeaderboardRow) RatingLevel {
	if row.Battles >= CalibrationBattles {
		return RatingLevel{Kind: Calibrated, Value: row.Rating}
	}
	return RatingLevel{Kind: Provisional, Value: row.Rating}
}

// LeaderboardRow is the persistent aggregate kept per user.
type LeaderboardRow struct {
	UserID          uint64
	Rating          uint32
	Battles         uint32
	Victories       uint32
	EarlyQuits      uint32
	Top20           uint32
	CumulativeScore uint32
	LastSession     uint64
}

// AvgScore is the per-battle average score, the calibration index key.
func (r LeaderboardRow) AvgScore() uint32 {
	if r.Battles == 0 {
		return 0
	}
	return r.CumulativeScore / r.Battles
}

// FactionKey identifies a FactionCounters entry.
type FactionKey struct {
	UserID  uint64
	Faction string
}
