// Package rating computes per-session rating deltas.
package rating

import (
	"context"
	"fmt"

	"github.com/okian/mmr/internal/domain/model"
)

// Algorithm names.
const (
	NameV1 = "v1"
	NameV2 = "v2"
)

// Ledger is the write side of the leaderboard.
type Ledger interface {
	ApplyV1(p model.PendingChange) model.LeaderboardRow
	ApplyV2(p model.PendingChange) model.LeaderboardRow
}

// Algorithm turns a prepared session into pending changes and applies them.
// Compute must not mutate the leaderboard, so every change of a session is
// computed against the same pre-session state.
type Algorithm interface {
	Name() string
	Compute(ctx context.Context, s Session) []model.PendingChange
	Apply(l Ledger, p model.PendingChange) model.LeaderboardRow
}

// New returns the algorithm registered under name.
func New(name string) (Algorithm, error) {
	switch name {
	case NameV1:
		return V1{}, nil
	case NameV2:
		return V2{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownAlgorithm, name)
	}
}

func pending(s Session, m Member) model.PendingChange {
	return model.PendingChange{
		UserID:      m.Row.UserID,
		SessionID:   s.ID,
		CommitTime:  m.Row.CommitTime,
		Faction:     m.Row.Faction,
		Victory:     m.Row.Victory,
		EarlyQuit:   m.Row.EarlyQuit,
		Top20:       m.Row.Top20,
		BattleScore: m.Row.BattleScore,
		Level:       m.Level,
	}
}
