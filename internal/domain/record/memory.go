package record

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/okian/mmr/internal/domain/model"
)

// EncodeRow writes a row in the carry-over format: decimal session id, explicit
// team and faction, flags present only when set.
func EncodeRow(row model.BattleRow) string {
	var b strings.Builder
	b.WriteString("user_id:")
	b.WriteString(strconv.FormatUint(row.UserID, 10))
	b.WriteString(",session_id:")
	b.WriteString(strconv.FormatUint(row.SessionID, 10))
	b.WriteString(",commit_time:")
	b.WriteString(strconv.FormatUint(row.CommitTime, 10))
	b.WriteString(",battle_score:")
	b.WriteString(strconv.FormatUint(uint64(row.BattleScore), 10))
	b.WriteString(",team:")
	b.WriteString(strconv.FormatUint(uint64(row.Team), 10))
	b.WriteString(",faction:")
	b.WriteString(CleanFaction(row.Faction))
	if row.Victory {
		b.WriteString(",victories:1")
	}
	if row.EarlyQuit {
		b.WriteString(",early_quit:1")
	}
	if row.Top20 {
		b.WriteString(",team_score_top_20_percent:1")
	}
	return b.String()
}

// DecodeRow reads a line produced by EncodeRow.
func DecodeRow(line string) (model.BattleRow, error) {
	fields := Fields(line)

	userID, err := requireUint(fields, FieldUserID, 10)
	if err != nil {
		return model.BattleRow{}, err
	}
	sessionID, err := requireUint(fields, FieldSessionID, 10)
	if err != nil {
		return model.BattleRow{}, err
	}
	commitTime, err := requireUint(fields, FieldCommitTime, 10)
	if err != nil {
		return model.BattleRow{}, err
	}
	faction, ok := fields[FieldFaction]
	if !ok {
		return model.BattleRow{}, fmt.Errorf("%w: %w: %s", ErrMalformedRecord, ErrMissingField, FieldFaction)
	}
	score, err := optionalUint32(fields, FieldScore)
	if err != nil {
		return model.BattleRow{}, err
	}
	team, err := optionalUint32(fields, "team")
	if err != nil {
		return model.BattleRow{}, err
	}
	if team != uint32(model.TeamOne) && team != uint32(model.TeamTwo) {
		team = uint32(model.TeamFromFaction(faction))
	}
	victory, err := optionalFlag(fields, "victories")
	if err != nil {
		return model.BattleRow{}, err
	}
	earlyQuit, err := optionalFlag(fields, FieldEarlyQuit)
	if err != nil {
		return model.BattleRow{}, err
	}
	top20, err := optionalFlag(fields, FieldTop20)
	if err != nil {
		return model.BattleRow{}, err
	}

	return model.BattleRow{
		UserID:      userID,
		SessionID:   sessionID,
		CommitTime:  commitTime,
		Team:        uint8(team),
		BattleScore: score,
		Victory:     victory,
		EarlyQuit:   earlyQuit,
		Top20:       top20,
		Faction:     faction,
	}, nil
}
