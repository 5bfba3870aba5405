package repository

import (
	"sync"

	"github.com/okian/mmr/internal/domain/model"
	"github.com/okian/mmr/internal/domain/record"
	"github.com/okian/mmr/pkg/metrics"
)

const (
	defaultBootstrapWindow        = 50
	defaultBootstrapMinMatches    = 10
	defaultBootstrapMinPopulation = 1000
	nearestScale                  = 0.8
)

// Store is the in-memory leaderboard: one row per user, per-faction battle
// counters and the calibration index over calibrated users.
type Store struct {
	mu       sync.RWMutex
	users    map[uint64]model.LeaderboardRow
	factions map[model.FactionKey]uint64
	index    CalibrationIndex

	bootstrapWindow        uint32
	bootstrapMinMatches    int
	bootstrapMinPopulation int
}

// NewStore constructs an empty store.
func NewStore(opts ...Option) *Store {
	s := &Store{
		users:                  make(map[uint64]model.LeaderboardRow),
		factions:               make(map[model.FactionKey]uint64),
		bootstrapWindow:        defaultBootstrapWindow,
		bootstrapMinMatches:    defaultBootstrapMinMatches,
		bootstrapMinPopulation: defaultBootstrapMinPopulation,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Level returns Unrated for unknown users, otherwise the level implied by the
// battle count.
func (s *Store) Level(userID uint64) model.RatingLevel {
	s.mu.RLock()
	defer s.mu.RUnlock()
	row, ok := s.users[userID]
	if !ok {
		return model.RatingLevel{Kind: model.Unrated}
	}
	return model.LevelFor(row)
}

// Get returns the leaderboard row of a user.
func (s *Store) Get(userID uint64) (model.LeaderboardRow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	row, ok := s.users[userID]
	if !ok {
		return model.LeaderboardRow{}, ErrNotFound
	}
	return row, nil
}

// Battles returns how many battles a user has played, 0 for unknown users.
func (s *Store) Battles(userID uint64) uint32 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.users[userID].Battles
}

// FactionBattles returns the battle counter of (user, faction).
func (s *Store) FactionBattles(userID uint64, faction string) uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.factions[model.FactionKey{UserID: userID, Faction: faction}]
}

// Len returns the number of known users.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.users)
}

// CalibratedLen returns the number of indexed users.
func (s *Store) CalibratedLen() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.index.Len()
}

// Bootstrap estimates a first calibrated rating from veterans with a similar
// average score.
func (s *Store) Bootstrap(avgScore uint32) (uint32, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.bootstrapLocked(avgScore)
}

func (s *Store) bootstrapLocked(avgScore uint32) (uint32, bool) {
	from := uint32(0)
	if avgScore > s.bootstrapWindow {
		from = avgScore - s.bootstrapWindow
	}
	to := avgScore + s.bootstrapWindow
	if to < avgScore {
		to = ^uint32(0)
	}

	var (
		sum      uint64
		count    int
		nearest  uint32
		bestDist uint32
		found    bool
	)
	s.index.Ascend(from, to, func(avg uint32, _ uint64, rating uint32) bool {
		dist := absDiff(avg, avgScore)
		if !found || dist < bestDist {
			nearest, bestDist, found = rating, dist, true
		}
		sum += uint64(rating)
		count++
		return true
	})

	if count >= s.bootstrapMinMatches {
		metrics.RecordBootstrap(metrics.BootstrapMean)
		return uint32(sum / uint64(count)), true
	}
	if found && s.index.Len() >= s.bootstrapMinPopulation {
		metrics.RecordBootstrap(metrics.BootstrapNearest)
		return uint32(float64(nearest) * nearestScale), true
	}
	metrics.RecordBootstrap(metrics.BootstrapMiss)
	return 0, false
}

// ApplyV1 applies a change with the three-tier calibration transition:
// running mean for battles 1..5, bootstrap at battle 6 and delta addition
// afterwards.
func (s *Store) ApplyV1(p model.PendingChange) model.LeaderboardRow {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.countFaction(p)
	old, ok := s.users[p.UserID]
	if !ok {
		row := model.LeaderboardRow{UserID: p.UserID, Rating: p.BattleScore, Battles: 1}
		accumulate(&row, p)
		s.users[p.UserID] = row
		return row
	}

	row := old
	battles := old.Battles + 1
	mean := (old.CumulativeScore + p.BattleScore) / battles
	switch {
	case battles == model.CalibrationBattles:
		if boot, hit := s.bootstrapLocked(mean); hit {
			row.Rating = boot
		} else {
			row.Rating = mean
		}
	case battles > model.CalibrationBattles:
		row.Rating = clampAdd(old.Rating, p.Delta)
	default:
		row.Rating = mean
	}
	row.Battles = battles
	accumulate(&row, p)
	s.reindex(old, row)
	s.users[p.UserID] = row
	return row
}

// ApplyV2 adds the delta with a clamp at zero. New users start at the
// clamped delta.
func (s *Store) ApplyV2(p model.PendingChange) model.LeaderboardRow {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.countFaction(p)
	old, ok := s.users[p.UserID]
	if !ok {
		row := model.LeaderboardRow{UserID: p.UserID, Rating: clampAdd(0, p.Delta), Battles: 1}
		accumulate(&row, p)
		s.users[p.UserID] = row
		return row
	}

	row := old
	row.Rating = clampAdd(old.Rating, p.Delta)
	row.Battles = old.Battles + 1
	accumulate(&row, p)
	s.reindex(old, row)
	s.users[p.UserID] = row
	return row
}

// Rows returns a copy of every leaderboard row.
func (s *Store) Rows() []model.LeaderboardRow {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.LeaderboardRow, 0, len(s.users))
	for _, r := range s.users {
		out = append(out, r)
	}
	return out
}

// reindex moves a user's index entry from its old key to the new one. Only
// rows with at least CalibrationBattles battles are indexed.
func (s *Store) reindex(old, updated model.LeaderboardRow) {
	if old.Battles >= model.CalibrationBattles {
		s.index.Delete(old.AvgScore(), old.UserID)
	}
	if updated.Battles >= model.CalibrationBattles {
		s.index.Insert(updated.AvgScore(), updated.UserID, updated.Rating)
	}
}

func (s *Store) countFaction(p model.PendingChange) {
	s.factions[model.FactionKey{UserID: p.UserID, Faction: record.CleanFaction(p.Faction)}]++
}

func (s *Store) putLocked(row model.LeaderboardRow) {
	if old, ok := s.users[row.UserID]; ok && old.Battles >= model.CalibrationBattles {
		s.index.Delete(old.AvgScore(), old.UserID)
	}
	s.users[row.UserID] = row
	if row.Battles >= model.CalibrationBattles {
		s.index.Insert(row.AvgScore(), row.UserID, row.Rating)
	}
}

func accumulate(row *model.LeaderboardRow, p model.PendingChange) {
	if p.Victory {
		row.Victories++
	}
	if p.EarlyQuit {
		row.EarlyQuits++
	}
	if p.Top20 {
		row.Top20++
	}
	row.CumulativeScore += p.BattleScore
	row.LastSession = p.CommitTime
}

func clampAdd(rating uint32, delta int32) uint32 {
	v := int64(rating) + int64(delta)
	if v < 0 {
		return 0
	}
	if v > int64(^uint32(0)) {
		return ^uint32(0)
	}
	return uint32(v)
}

func absDiff(a, b uint32) uint32 {
	if a > b {
		return a - b
	}
	return b - a
}
