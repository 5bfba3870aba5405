package repository

import (
	"bufio"
	"fmt"
	"os"
	"sort"

	"github.com/okian/mmr/internal/domain/model"
)

// dominantShare is the battle share that makes a faction a user's main one.
const dominantShare = 0.65

// SpreadKey identifies a spread bucket.
type SpreadKey struct {
	Faction string
	Bucket  uint32
}

// SpreadCell is the number of users in a bucket and the sum of their ratings.
type SpreadCell struct {
	Users     uint64
	RatingSum uint64
}

// Spread is a distribution of users by dominant faction and bucket.
type Spread map[SpreadKey]SpreadCell

// SpreadFilter selects which users enter a spread report.
type SpreadFilter struct {
	MinBattles     uint32
	MinLastSession uint64
}

// MMRSpread buckets users by rating with the given width.
func (s *Store) MMRSpread(dist uint32, f SpreadFilter) Spread {
	return s.spread(f, func(r model.LeaderboardRow) uint32 { return (r.Rating / dist) * dist })
}

// BattleSpread buckets users by battle count with the given width.
func (s *Store) BattleSpread(dist uint32, f SpreadFilter) Spread {
	return s.spread(f, func(r model.LeaderboardRow) uint32 { return (r.Battles / dist) * dist })
}

func (s *Store) spread(f SpreadFilter, bucket func(model.LeaderboardRow) uint32) Spread {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(Spread)
	for id, r := range s.users {
		if r.Battles < f.MinBattles || r.LastSession < f.MinLastSession || r.Battles == 0 {
			continue
		}
		k := SpreadKey{Faction: s.dominantFaction(id, r.Battles), Bucket: bucket(r)}
		c := out[k]
		c.Users++
		c.RatingSum += uint64(r.Rating)
		out[k] = c
	}
	return out
}

func (s *Store) dominantFaction(userID uint64, battles uint32) string {
	f1 := s.factions[model.FactionKey{UserID: userID, Faction: model.FactionOne}]
	f2 := s.factions[model.FactionKey{UserID: userID, Faction: model.FactionTwo}]
	switch {
	case float64(f1)/float64(battles) >= dominantShare:
		return model.FactionOne
	case float64(f2)/float64(battles) >= dominantShare:
		return model.FactionTwo
	default:
		return model.FactionMixed
	}
}

// Keys returns the bucket keys ordered by faction and bucket.
func (sp Spread) Keys() []SpreadKey {
	keys := make([]SpreadKey, 0, len(sp))
	for k := range sp {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Faction != keys[j].Faction {
			return keys[i].Faction < keys[j].Faction
		}
		return keys[i].Bucket < keys[j].Bucket
	})
	return keys
}

// WriteSpread writes both reports as
// kind:<mmr|battles>,faction:<f>,bucket:<b>,users:<n>,mmr_sum:<s> lines.
func WriteSpread(path string, mmr, battles Spread) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrWriteSpread, err)
	}
	w := bufio.NewWriter(f)
	for _, part := range []struct {
		kind string
		sp   Spread
	}{{"mmr", mmr}, {"battles", battles}} {
		for _, k := range part.sp.Keys() {
			c := part.sp[k]
			fmt.Fprintf(w, "kind:%s,faction:%s,bucket:%d,users:%d,mmr_sum:%d\n", part.kind, k.Faction, k.Bucket, c.Users, c.RatingSum)
		}
	}
	if err := w.Flush(); err != nil {
		_ = f.Close()
		return fmt.Errorf("%w: %w", ErrWriteSpread, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("%w: %w", ErrWriteSpread, err)
	}
	return nil
}
