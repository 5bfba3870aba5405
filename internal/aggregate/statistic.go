package aggregate

import (
	"context"
	"os"

	"github.com/okian/mmr/internal/domain/statistic"
)

// BoardStatistic is one session's statistic addressed to a board.
type BoardStatistic struct {
	Board     string
	Statistic statistic.Statistic
}

// StatisticMerger folds statistics into one value per board.
type StatisticMerger struct {
	mailbox[BoardStatistic]
	file   *os.File
	boards statistic.Boards
}

// NewStatisticMerger creates the statistic file at path and a merger that
// fills it on Finish. An empty path keeps the result in memory only.
func NewStatisticMerger(path string) (*StatisticMerger, error) {
	f, err := createOutput(path)
	if err != nil {
		return nil, err
	}
	m := &StatisticMerger{file: f, boards: statistic.Boards{}}
	m.mailbox = newMailbox[BoardStatistic]("statistic", m.handle)
	return m, nil
}

func (m *StatisticMerger) handle(_ context.Context, v BoardStatistic) error {
	m.boards.Add(v.Board, v.Statistic)
	return nil
}

// Result returns the merged boards. Only valid after the runner finished.
func (m *StatisticMerger) Result() statistic.Boards { return m.boards }

// Finish writes every board to the statistic file.
func (m *StatisticMerger) Finish() error { return writeOutput(m.file, m.boards.Encode()) }
