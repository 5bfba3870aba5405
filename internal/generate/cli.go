package generate

import "os"

// ShowHelp prints usage information for the generator.
func ShowHelp() {
	os.Stdout.WriteString(`MMR Dataset Generator
=====================

Writes a synthetic input stream with matching user_team, session_mode and
registration tables. Hidden player skill decides who wins, so the win-rate
sanity buckets of a replay have something to converge to.

Usage:
  go run ./cmd/generate [options]

Options:
  -out string       Output directory (default "data")
  -sessions int     Number of sessions (default 1000)
  -users int        Player pool size (default 200)
  -team int         Players per team (default 5)
  -seed uint        Random seed (default 1)
  -newbie float     Share of newbie-mode sessions (default 0.05)
  -spread float     Standard deviation of hidden skill (default 300)
  -help             Show this help message

Examples:
  # Generate the default dataset and replay it
  go run ./cmd/generate -out data
  MMR_INPUTS=data/stream.json go run ./cmd/mmr
`)
}
