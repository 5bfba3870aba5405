// Package session groups the ordered row stream into completed sessions.
package session

import (
	"github.com/okian/mmr/internal/domain/model"
	"github.com/okian/mmr/pkg/metrics"
)

// Accumulator collects rows until the session id changes. Only the current
// session id is compared, so a session id seen earlier in the stream starts a
// new batch when it reappears.
type Accumulator struct {
	current model.SessionBatch
	seen    map[uint64]struct{}
	started bool
}

// NewAccumulator returns an empty accumulator.
func NewAccumulator() *Accumulator {
	return &Accumulator{seen: make(map[uint64]struct{})}
}

// Restore seeds the accumulator with a batch saved by a previous run.
func (a *Accumulator) Restore(batch model.SessionBatch) {
	a.current = model.SessionBatch{SessionID: batch.SessionID}
	a.seen = make(map[uint64]struct{}, len(batch.Rows))
	a.started = true
	for _, r := range batch.Rows {
		a.add(r)
	}
}

// Push adds a row. When the row opens a new session the previous one is
// returned as complete.
func (a *Accumulator) Push(row model.BattleRow) (model.SessionBatch, bool) {
	if !a.started {
		a.started = true
		a.current = model.SessionBatch{SessionID: row.SessionID}
		a.add(row)
		return model.SessionBatch{}, false
	}
	if row.SessionID == a.current.SessionID {
		a.add(row)
		return model.SessionBatch{}, false
	}

	done := a.current
	a.current = model.SessionBatch{SessionID: row.SessionID}
	a.seen = make(map[uint64]struct{}, len(done.Rows))
	a.add(row)
	return done, true
}

// Flush returns the pending tail and resets the accumulator.
func (a *Accumulator) Flush() (model.SessionBatch, bool) {
	if !a.started || len(a.current.Rows) == 0 {
		return model.SessionBatch{}, false
	}
	done := a.current
	a.current = model.SessionBatch{}
	a.seen = make(map[uint64]struct{})
	a.started = false
	return done, true
}

// Pending reports the number of rows in the open batch.
func (a *Accumulator) Pending() int { return len(a.current.Rows) }

// add appends a row unless the user already has one in this batch.
func (a *Accumulator) add(row model.BattleRow) {
	if _, dup := a.seen[row.UserID]; dup {
		metrics.RecordDuplicateRow()
		return
	}
	a.seen[row.UserID] = struct{}{}
	a.current.Rows = append(a.current.Rows, row)
}
