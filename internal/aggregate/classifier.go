package aggregate

import (
	"bufio"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/okian/mmr/internal/domain/rating"
	"github.com/okian/mmr/internal/domain/statistic"
)

var rosterHeader = []string{"session_id", "user_id", "team", "victory", "mmr_type", "mmr"}

// SessionClassifier records balance and outcome flags per session and,
// optionally, the roster every session was rated with.
type SessionClassifier struct {
	mailbox[rating.Session]

	file *os.File
	out  *bufio.Writer

	rosterFile *os.File
	roster     *csv.Writer
}

// NewSessionClassifier opens the classification file and, when rosterPath
// is set, the roster CSV.
func NewSessionClassifier(path, rosterPath string) (*SessionClassifier, error) {
	c := &SessionClassifier{}
	if path != "" {
		f, err := os.Create(path)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrOpenOutput, err)
		}
		c.file, c.out = f, bufio.NewWriter(f)
	}
	if rosterPath != "" {
		f, err := os.Create(rosterPath)
		if err != nil {
			if c.file != nil {
				_ = c.file.Close()
			}
			return nil, fmt.Errorf("%w: %w", ErrOpenOutput, err)
		}
		c.rosterFile, c.roster = f, csv.NewWriter(f)
		c.roster.Comma = ';'
		if err := c.roster.Write(rosterHeader); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrWriteOutput, err)
		}
	}
	c.mailbox = newMailbox[rating.Session]("classifier", c.handle)
	return c, nil
}

// Classify returns the disbalance flags of both teams. A team is flagged
// when its top-3 average exceeds the other's by more than the threshold.
func Classify(s rating.Session) (team1, team2 bool) {
	t1, ok1 := s.Team1.Top3()
	t2, ok2 := s.Team2.Top3()
	if !ok1 || !ok2 {
		return false, false
	}
	diff := int64(t1) - int64(t2)
	return diff > statistic.DisbalanceThreshold, -diff > statistic.DisbalanceThreshold
}

// FormatClassification renders one classification line without newline.
func FormatClassification(s rating.Session) string {
	t1, t2 := Classify(s)
	return "session_id:" + strconv.FormatUint(s.ID, 10) +
		",team_1:" + strconv.FormatBool(t1) +
		",team_2:" + strconv.FormatBool(t2) +
		",team_1_v:" + strconv.FormatBool(s.Team1.Victory) +
		",team_2_v:" + strconv.FormatBool(s.Team2.Victory)
}

func (c *SessionClassifier) handle(_ context.Context, s rating.Session) error {
	if c.out != nil {
		if _, err := c.out.WriteString(FormatClassification(s) + "\n"); err != nil {
			return fmt.Errorf("%w: %w", ErrWriteOutput, err)
		}
	}
	if c.roster != nil {
		c.writeRoster(s.ID, "1", s.Team1)
		c.writeRoster(s.ID, "2", s.Team2)
		if err := c.roster.Error(); err != nil {
			return fmt.Errorf("%w: %w", ErrWriteOutput, err)
		}
	}
	return nil
}

func (c *SessionClassifier) writeRoster(sessionID uint64, team string, t rating.Team) {
	sid := strconv.FormatUint(sessionID, 10)
	victory := strconv.FormatBool(t.Victory)
	for _, m := range t.Members {
		var mmr uint32
		if m.Level.IsCalibrated() {
			mmr = m.Level.Value
		}
		_ = c.roster.Write([]string{
			sid,
			strconv.FormatUint(m.Row.UserID, 10),
			team,
			victory,
			m.Level.Kind.String(),
			strconv.FormatUint(uint64(mmr), 10),
		})
	}
}

// Finish flushes and closes the outputs.
func (c *SessionClassifier) Finish() error {
	var errs []error
	if c.out != nil {
		errs = append(errs, c.out.Flush(), c.file.Close())
	}
	if c.roster != nil {
		c.roster.Flush()
		errs = append(errs, c.roster.Error(), c.rosterFile.Close())
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("%w: %w", ErrWriteOutput, err)
	}
	return nil
}
