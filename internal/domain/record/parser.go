// Package record turns raw input lines into battle rows.
package record

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/jmoiron/jsonq"

	"github.com/okian/mmr/internal/domain/model"
)

// Input field names.
const (
	FieldUserID     = "user_id"
	FieldSessionID  = "session_id"
	FieldCommitTime = "commit_time"
	FieldScore      = "battle_score"
	FieldFaction    = "faction"
	FieldEarlyQuit  = "early_quit"
	FieldTop20      = "team_score_top_20_percent"
)

var numericFields = []string{FieldUserID, FieldSessionID, FieldCommitTime, FieldScore, FieldEarlyQuit, FieldTop20}

// reserved are the characters the flat line formats use as delimiters.
const reserved = `:,{}"`

// TeamEntry is the team and victory flag of a user in a session.
type TeamEntry struct {
	Team    uint8
	Victory bool
}

// SideTables resolves per-(user, session) facts that are not carried by the
// record itself.
type SideTables interface {
	TeamOf(userID, sessionID uint64) (TeamEntry, bool)
	FactionOf(userID, sessionID uint64) (string, bool)
}

// Parser converts input lines to model.BattleRow values.
type Parser struct {
	tables SideTables
}

// NewParser creates a parser. A nil tables value means no side tables.
func NewParser(tables SideTables) *Parser {
	return &Parser{tables: tables}
}

// Parse parses one input line. Session ids in the stream are hexadecimal.
func (p *Parser) Parse(line string) (model.BattleRow, error) {
	fields, err := lineFields(line)
	if err != nil {
		return model.BattleRow{}, err
	}

	userID, err := requireUint(fields, FieldUserID, 10)
	if err != nil {
		return model.BattleRow{}, err
	}
	sessionID, err := requireUint(fields, FieldSessionID, 16)
	if err != nil {
		return model.BattleRow{}, err
	}
	commitTime, err := requireUint(fields, FieldCommitTime, 10)
	if err != nil {
		return model.BattleRow{}, err
	}
	score, err := optionalUint32(fields, FieldScore)
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

	row := model.BattleRow{
		UserID:      userID,
		SessionID:   sessionID,
		CommitTime:  commitTime,
		BattleScore: score,
		EarlyQuit:   earlyQuit,
		Top20:       top20,
		Faction:     model.FactionMixed,
	}
	if f, ok := fields[FieldFaction]; ok && f != "" {
		row.Faction = CleanFaction(f)
	}

	if p.tables != nil {
		if f, ok := p.tables.FactionOf(userID, sessionID); ok {
			row.Faction = CleanFaction(f)
		}
	}
	row.Team = model.TeamFromFaction(row.Faction)
	if p.tables != nil {
		if te, ok := p.tables.TeamOf(userID, sessionID); ok {
			row.Team = te.Team
			row.Victory = te.Victory
		}
	}
	return row, nil
}

// lineFields picks the JSON path for valid JSON objects and the flat
// key:value reader for everything else.
func lineFields(line string) (map[string]string, error) {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return nil, fmt.Errorf("%w: empty line", ErrMalformedRecord)
	}
	if strings.HasPrefix(trimmed, "{") && json.Valid([]byte(trimmed)) {
		return jsonFieldsOf(trimmed)
	}
	return Fields(trimmed), nil
}

func jsonFieldsOf(line string) (map[string]string, error) {
	data := map[string]interface{}{}
	dec := json.NewDecoder(bytes.NewReader([]byte(line)))
	dec.UseNumber()
	if err := dec.Decode(&data); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedRecord, err)
	}
	// Numeric fields keep their literal text so 64-bit ids survive; jsonq's
	// String reads them and its Int parses them. Other fields stay typed.
	for _, k := range numericFields {
		if n, ok := data[k].(json.Number); ok {
			data[k] = n.String()
		}
	}
	jq := jsonq.NewQuery(data)

	out := make(map[string]string, 7)
	text := func(key string) error {
		if data[key] == nil {
			return nil
		}
		v, err := jq.String(key)
		if err != nil {
			return fmt.Errorf("%w: %w: %s", ErrMalformedRecord, ErrInvalidField, key)
		}
		out[key] = v
		return nil
	}
	flag := func(key string) error {
		if data[key] == nil {
			return nil
		}
		if b, err := jq.Bool(key); err == nil {
			out[key] = boolText(b)
			return nil
		}
		n, err := jq.Int(key)
		if err != nil {
			return fmt.Errorf("%w: %w: %s", ErrMalformedRecord, ErrInvalidField, key)
		}
		out[key] = strconv.Itoa(n)
		return nil
	}

	for _, key := range []string{FieldUserID, FieldSessionID, FieldCommitTime, FieldScore, FieldFaction} {
		if err := text(key); err != nil {
			return nil, err
		}
	}
	for _, key := range []string{FieldEarlyQuit, FieldTop20} {
		if err := flag(key); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func boolText(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

// CleanFaction maps labels that cannot round-trip through the flat formats
// to model.FactionMixed.
func CleanFaction(f string) string {
	if f == "" || strings.ContainsAny(f, reserved) || strings.TrimSpace(f) != f {
		return model.FactionMixed
	}
	return f
}

func requireUint(fields map[string]string, key string, base int) (uint64, error) {
	raw, ok := fields[key]
	if !ok || raw == "" {
		return 0, fmt.Errorf("%w: %w: %s", ErrMalformedRecord, ErrMissingField, key)
	}
	v, err := strconv.ParseUint(raw, base, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %w: %s=%q", ErrMalformedRecord, ErrInvalidField, key, raw)
	}
	return v, nil
}

func optionalUint32(fields map[string]string, key string) (uint32, error) {
	raw, ok := fields[key]
	if !ok || raw == "" {
		return 0, nil
	}
	v, err := strconv.ParseUint(raw, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("%w: %w: %s=%q", ErrMalformedRecord, ErrInvalidField, key, raw)
	}
	return uint32(v), nil
}

// optionalFlag reads a 0/1 style flag; only 1 means true.
func optionalFlag(fields map[string]string, key string) (bool, error) {
	raw, ok := fields[key]
	if !ok || raw == "" {
		return false, nil
	}
	v, err := strconv.ParseUint(raw, 10, 16)
	if err != nil {
		return false, fmt.Errorf("%w: %w: %s=%q", ErrMalformedRecord, ErrInvalidField, key, raw)
	}
	return v == 1, nil
}
