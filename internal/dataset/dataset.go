// Package dataset loads the side tables that enrich input records: team and
// victory per (user, session), session modes, faction overrides and user
// registration times. A missing file is an empty table.
package dataset

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"

	"github.com/okian/mmr/internal/domain/model"
	"github.com/okian/mmr/internal/domain/rating"
	"github.com/okian/mmr/internal/domain/record"
	"github.com/okian/mmr/pkg/logger"
)

// Side-table field names.
const (
	FieldTeam           = "team"
	FieldVictory        = "victory"
	FieldMode           = "mode"
	FieldRegisteredTime = "registered_time"
)

type userSession struct {
	user    uint64
	session uint64
}

// Paths names the side-table files. Empty paths are skipped.
type Paths struct {
	UserTeam      string
	SessionMode   string
	UserFaction   string
	Registrations string
}

// Tables holds every side table. The zero value is a set of empty tables.
type Tables struct {
	teams    map[userSession]record.TeamEntry
	modes    map[uint64]rating.Mode
	factions map[userSession]string
	regs     map[uint64]uint64
}

// Load reads all side tables named in p.
func Load(ctx context.Context, p Paths) (*Tables, error) {
	log := logger.Get().Named("dataset")
	t := &Tables{}
	var err error

	if t.teams, err = loadUserTeam(p.UserTeam); err != nil {
		return nil, err
	}
	if t.modes, err = loadSessionModes(p.SessionMode); err != nil {
		return nil, err
	}
	if t.factions, err = loadUserFactions(p.UserFaction); err != nil {
		return nil, err
	}
	if t.regs, err = loadRegistrations(p.Registrations); err != nil {
		return nil, err
	}

	log.Info(ctx, "side tables loaded",
		logger.Int("user_team", len(t.teams)),
		logger.Int("session_mode", len(t.modes)),
		logger.Int("user_faction", len(t.factions)),
		logger.Int("registrations", len(t.regs)))
	return t, nil
}

// TeamOf implements record.SideTables.
func (t *Tables) TeamOf(userID, sessionID uint64) (record.TeamEntry, bool) {
	e, ok := t.teams[userSession{userID, sessionID}]
	return e, ok
}

// FactionOf implements record.SideTables.
func (t *Tables) FactionOf(userID, sessionID uint64) (string, bool) {
	f, ok := t.factions[userSession{userID, sessionID}]
	return f, ok
}

// ModeOf implements rating.ModeTable.
func (t *Tables) ModeOf(sessionID uint64) (rating.Mode, bool) {
	m, ok := t.modes[sessionID]
	return m, ok
}

// RegisteredAt implements statistic.Registrations.
func (t *Tables) RegisteredAt(userID uint64) (uint64, bool) {
	at, ok := t.regs[userID]
	return at, ok
}

// loadUserTeam reads {user_id, session_id, team, victory} lines. Session ids
// are decimal, team must be 1 or 2, and the presence of a victory key marks
// a win whatever its value.
func loadUserTeam(path string) (map[userSession]record.TeamEntry, error) {
	out := map[userSession]record.TeamEntry{}
	err := scan(path, func(f map[string]string) bool {
		key, ok := parseKey(f, 10)
		if !ok {
			return false
		}
		var team uint8
		switch f[FieldTeam] {
		case "1":
			team = model.TeamOne
		case "2":
			team = model.TeamTwo
		default:
			return false
		}
		_, victory := f[FieldVictory]
		out[key] = record.TeamEntry{Team: team, Victory: victory}
		return true
	})
	return out, err
}

// loadSessionModes reads {session_id, mode} lines with decimal session ids.
func loadSessionModes(path string) (map[uint64]rating.Mode, error) {
	out := map[uint64]rating.Mode{}
	err := scan(path, func(f map[string]string) bool {
		sid, err := strconv.ParseUint(f[record.FieldSessionID], 10, 64)
		if err != nil {
			return false
		}
		out[sid] = rating.ClassifyMode(f[FieldMode])
		return true
	})
	return out, err
}

// loadUserFactions reads {user_id, session_id, mode} lines. Session ids are
// hexadecimal like the input stream; a missing mode means mixed.
func loadUserFactions(path string) (map[userSession]string, error) {
	out := map[userSession]string{}
	err := scan(path, func(f map[string]string) bool {
		key, ok := parseKey(f, 16)
		if !ok {
			return false
		}
		mode, ok := f[FieldMode]
		if !ok || mode == "" {
			mode = model.FactionMixed
		}
		out[key] = mode
		return true
	})
	return out, err
}

// loadRegistrations reads {user_id, registered_time} lines.
func loadRegistrations(path string) (map[uint64]uint64, error) {
	out := map[uint64]uint64{}
	err := scan(path, func(f map[string]string) bool {
		uid, err := strconv.ParseUint(f[record.FieldUserID], 10, 64)
		if err != nil {
			return false
		}
		var at uint64
		if raw, ok := f[FieldRegisteredTime]; ok {
			if at, err = strconv.ParseUint(raw, 10, 64); err != nil {
				return false
			}
		}
		out[uid] = at
		return true
	})
	return out, err
}

func parseKey(f map[string]string, sessionBase int) (userSession, bool) {
	uid, err := strconv.ParseUint(f[record.FieldUserID], 10, 64)
	if err != nil {
		return userSession{}, false
	}
	sid, err := strconv.ParseUint(f[record.FieldSessionID], sessionBase, 64)
	if err != nil {
		return userSession{}, false
	}
	return userSession{uid, sid}, true
}

// scan feeds every line of path to fn as flat fields. fn reports whether
// the line was usable; unusable lines are counted and skipped.
func scan(path string, fn func(map[string]string) bool) error {
	if path == "" {
		return nil
	}
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		logger.Get().Named("dataset").Warn(context.Background(), "side table missing, using empty table",
			logger.String("path", path))
		return nil
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrReadTable, path, err)
	}
	defer f.Close()

	skipped := 0
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		if !fn(record.Fields(sc.Text())) {
			skipped++
		}
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrReadTable, path, err)
	}
	if skipped > 0 {
		logger.Get().Named("dataset").Warn(context.Background(), "skipped side table lines",
			logger.String("path", path), logger.Int("skipped", skipped))
	}
	return nil
}
