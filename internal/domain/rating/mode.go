package rating

import "strings"

// Grouped mode labels.
const (
	CommonNewbie   = "newbie_common"
	CommonLowTier  = "low_teir_common"
	CommonHighTier = "high_teir_common"
	CommonLobby    = "lobbie_common"

	SpecificNewbie = "newbie"
	SpecificLobby  = "lobbie"
)

// Mode is a session's game mode under its three board names.
type Mode struct {
	Raw      string
	Common   string
	Specific string
}

// ModeTable resolves the mode of a session.
type ModeTable interface {
	ModeOf(sessionID uint64) (Mode, bool)
}

// ClassifyMode derives the grouped and specific labels of a raw mode name.
func ClassifyMode(raw string) Mode {
	m := Mode{Raw: raw}
	if strings.Contains(raw, "newbie") {
		m.Common, m.Specific = CommonNewbie, SpecificNewbie
		return m
	}
	if pos := strings.Index(raw, "low_teir"); pos >= 0 {
		m.Common, m.Specific = CommonLowTier, raw[pos:]
		return m
	}
	if pos := strings.Index(raw, "high_teir"); pos >= 0 {
		m.Common, m.Specific = CommonHighTier, raw[pos:]
		return m
	}
	m.Common, m.Specific = CommonLobby, SpecificLobby
	return m
}
