package repository

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/okian/mmr/internal/domain/model"
	"github.com/okian/mmr/internal/domain/record"
	"github.com/okian/mmr/pkg/logger"
)

// Snapshot line keys.
const (
	keyUserID      = "user_id"
	keyBattles     = "battles"
	keyBattleScore = "battle_score"
	keyMMR         = "mmr"
	keyVictories   = "victories"
	keyEarlyQuits  = "early_quites"
	keyTop20       = "top_20"
	keyLastSession = "last_session"
	keyFaction     = "faction"
)

// Load restores rows and faction counters. Missing files are treated as an
// empty leaderboard; unparsable lines are skipped and logged.
func (s *Store) Load(ctx context.Context, basePath, factionPath string) error {
	log := logger.Get().Named("repository")

	rows, skipped, err := readLines(basePath, parseBaseLine)
	if err != nil {
		return err
	}
	factions, fskipped, err := readLines(factionPath, parseFactionLine)
	if err != nil {
		return err
	}

	s.mu.Lock()
	for _, r := range rows {
		s.putLocked(r)
	}
	for _, f := range factions {
		s.factions[f.key] = f.battles
	}
	users, calibrated := len(s.users), s.index.Len()
	s.mu.Unlock()

	log.Info(ctx, "leaderboard loaded",
		logger.Int("users", users),
		logger.Int("calibrated", calibrated),
		logger.Int("faction_counters", len(factions)),
		logger.Int("skipped", skipped+fskipped))
	return nil
}

// Save writes rows sorted by user id and faction counters sorted by
// (user id, faction), so a load followed by a save reproduces the files.
func (s *Store) Save(ctx context.Context, basePath, factionPath string) error {
	s.mu.RLock()
	rows := make([]model.LeaderboardRow, 0, len(s.users))
	for _, r := range s.users {
		rows = append(rows, r)
	}
	keys := make([]model.FactionKey, 0, len(s.factions))
	for k := range s.factions {
		keys = append(keys, k)
	}
	counts := make(map[model.FactionKey]uint64, len(s.factions))
	for k, v := range s.factions {
		counts[k] = v
	}
	s.mu.RUnlock()

	sort.Slice(rows, func(i, j int) bool { return rows[i].UserID < rows[j].UserID })
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].UserID != keys[j].UserID {
			return keys[i].UserID < keys[j].UserID
		}
		return keys[i].Faction < keys[j].Faction
	})

	if err := writeLines(basePath, len(rows), func(i int) string { return FormatRow(rows[i]) }); err != nil {
		return err
	}
	if err := writeLines(factionPath, len(keys), func(i int) string {
		k := keys[i]
		return fmt.Sprintf("user_id:%d,faction:%s,battles:%d", k.UserID, k.Faction, counts[k])
	}); err != nil {
		return err
	}

	logger.Get().Named("repository").Info(ctx, "leaderboard saved",
		logger.Int("users", len(rows)),
		logger.Int("faction_counters", len(keys)))
	return nil
}

// FormatRow renders one snapshot line.
func FormatRow(r model.LeaderboardRow) string {
	return fmt.Sprintf("user_id:%d,battles:%d,battle_score:%d,mmr:%d,victories:%d,early_quites:%d,top_20:%d,last_session:%d",
		r.UserID, r.Battles, r.CumulativeScore, r.Rating, r.Victories, r.EarlyQuits, r.Top20, r.LastSession)
}

type factionCount struct {
	key     model.FactionKey
	battles uint64
}

func parseBaseLine(line string) (model.LeaderboardRow, error) {
	f := record.Fields(line)
	var (
		r   model.LeaderboardRow
		err error
	)
	if r.UserID, err = uintField(f, keyUserID, 64); err != nil {
		return r, err
	}
	u32 := func(key string) uint32 {
		if err != nil {
			return 0
		}
		var v uint64
		v, err = uintField(f, key, 32)
		return uint32(v)
	}
	r.Battles = u32(keyBattles)
	r.CumulativeScore = u32(keyBattleScore)
	r.Rating = u32(keyMMR)
	r.Victories = u32(keyVictories)
	r.EarlyQuits = u32(keyEarlyQuits)
	r.Top20 = u32(keyTop20)
	if err != nil {
		return r, err
	}
	r.LastSession, err = uintField(f, keyLastSession, 64)
	return r, err
}

func parseFactionLine(line string) (factionCount, error) {
	f := record.Fields(line)
	uid, err := uintField(f, keyUserID, 64)
	if err != nil {
		return factionCount{}, err
	}
	faction, ok := f[keyFaction]
	if !ok {
		return factionCount{}, fmt.Errorf("%w: %s", record.ErrMissingField, keyFaction)
	}
	battles, err := uintField(f, keyBattles, 64)
	if err != nil {
		return factionCount{}, err
	}
	return factionCount{key: model.FactionKey{UserID: uid, Faction: faction}, battles: battles}, nil
}

func uintField(f map[string]string, key string, bits int) (uint64, error) {
	raw, ok := f[key]
	if !ok {
		return 0, fmt.Errorf("%w: %s", record.ErrMissingField, key)
	}
	v, err := strconv.ParseUint(raw, 10, bits)
	if err != nil {
		return 0, fmt.Errorf("%w: %s=%q", record.ErrInvalidField, key, raw)
	}
	return v, nil
}

func readLines[T any](path string, parse func(string) (T, error)) ([]T, int, error) {
	if path == "" {
		return nil, 0, nil
	}
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, 0, nil
	}
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %w", ErrReadSnapshot, err)
	}
	defer f.Close()

	var (
		out     []T
		skipped int
	)
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		v, err := parse(line)
		if err != nil {
			skipped++
			continue
		}
		out = append(out, v)
	}
	if err := sc.Err(); err != nil {
		return nil, skipped, fmt.Errorf("%w: %w", ErrReadSnapshot, err)
	}
	return out, skipped, nil
}

func writeLines(path string, n int, line func(int) string) error {
	if path == "" {
		return nil
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrWriteSnapshot, err)
	}
	w := bufio.NewWriter(f)
	for i := 0; i < n; i++ {
		w.WriteString(line(i))
		w.WriteByte('\n')
	}
	if err := w.Flush(); err != nil {
		_ = f.Close()
		return fmt.Errorf("%w: %w", ErrWriteSnapshot, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("%w: %w", ErrWriteSnapshot, err)
	}
	return nil
}
