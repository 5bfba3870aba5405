package aggregate

import (
	"context"
	"os"

	"github.com/okian/mmr/internal/domain/statistic"
)

// SanityPair is the top-3 averages of the winning and the losing team.
type SanityPair struct {
	Winner uint32
	Loser  uint32
}

// SanityBucketer measures win rate by rating gap.
type SanityBucketer struct {
	mailbox[SanityPair]
	file    *os.File
	buckets statistic.Buckets
}

// NewSanityBucketer creates the sanity file at path and a bucketer that
// fills it on Finish.
func NewSanityBucketer(path string) (*SanityBucketer, error) {
	f, err := createOutput(path)
	if err != nil {
		return nil, err
	}
	b := &SanityBucketer{file: f, buckets: statistic.Buckets{}}
	b.mailbox = newMailbox[SanityPair]("sanity", b.handle)
	return b, nil
}

func (b *SanityBucketer) handle(_ context.Context, p SanityPair) error {
	b.buckets.Add(p.Winner, p.Loser)
	return nil
}

// Result returns the buckets. Only valid after the runner finished.
func (b *SanityBucketer) Result() statistic.Buckets { return b.buckets }

// Finish writes the buckets to the sanity file.
func (b *SanityBucketer) Finish() error { return writeOutput(b.file, b.buckets.Encode()) }
