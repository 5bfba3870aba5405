package aggregate

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/okian/mmr/internal/domain/model"
	"github.com/okian/mmr/internal/domain/rating"
)

// ChangeLogConfig describes the change-log shards.
type ChangeLogConfig struct {
	Dir        string
	Shards     int
	MaxSizeMB  int
	MaxBackups int
}

type shard struct {
	file *lumberjack.Logger
	buf  *bufio.Writer
}

// ChangeLogger writes one line per applied change into the shard selected by
// the change's classifier id.
type ChangeLogger struct {
	mailbox[model.Change]
	shards []shard
}

// NewChangeLogger opens the shards. Failing to create any of them is an
// error.
func NewChangeLogger(cfg ChangeLogConfig) (*ChangeLogger, error) {
	if cfg.Shards <= 0 {
		return nil, fmt.Errorf("%w: %d shards", ErrOpenOutput, cfg.Shards)
	}
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrOpenOutput, err)
	}

	c := &ChangeLogger{shards: make([]shard, cfg.Shards)}
	for i := range c.shards {
		name := filepath.Join(cfg.Dir, "changes_"+strconv.Itoa(i)+".log")
		// lumberjack opens lazily; probe so a bad path fails now.
		f, err := os.OpenFile(name, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrOpenOutput, err)
		}
		_ = f.Close()

		lj := &lumberjack.Logger{
			Filename:   name,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			Compress:   true,
		}
		c.shards[i] = shard{file: lj, buf: bufio.NewWriterSize(lj, 64*1024)}
	}
	c.mailbox = newMailbox[model.Change]("changes", c.handle)
	return c, nil
}

func (c *ChangeLogger) handle(_ context.Context, ch model.Change) error {
	if ch.ClassifierID < 0 || ch.ClassifierID >= len(c.shards) {
		return fmt.Errorf("%w: %d", ErrClassifierOutOfRange, ch.ClassifierID)
	}
	line, err := FormatChange(ch)
	if err != nil {
		return err
	}
	if _, err := c.shards[ch.ClassifierID].buf.WriteString(line); err != nil {
		return fmt.Errorf("%w: %w", ErrWriteOutput, err)
	}
	return nil
}

// Finish flushes and closes every shard.
func (c *ChangeLogger) Finish() error {
	var errs []error
	for _, s := range c.shards {
		if err := s.buf.Flush(); err != nil {
			errs = append(errs, err)
		}
		if err := s.file.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("%w: %w", ErrWriteOutput, err)
	}
	return nil
}

// FormatChange renders a change as one change-log line, newline included.
func FormatChange(ch model.Change) (string, error) {
	switch ch.Algorithm {
	case rating.NameV1:
		return formatV1(ch), nil
	case rating.NameV2:
		return formatV2(ch), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownAlgorithm, ch.Algorithm)
	}
}

func formatV1(ch model.Change) string {
	p := ch.Pending
	var b strings.Builder
	writeHead(&b, ch)

	b.WriteString(",o:")
	for i, o := range p.Opponents {
		if i > 0 {
			b.WriteString(",")
		}
		b.WriteString(strconv.FormatUint(uint64(o.Level.Rating()), 10))
	}
	b.WriteString(",t:")
	b.WriteString(strconv.FormatUint(uint64(ch.Row.Top20), 10))
	b.WriteString(",e:")
	b.WriteString(strconv.FormatUint(uint64(ch.Row.EarlyQuits), 10))
	writeScores(&b, p)

	b.WriteString(",de:[")
	for i, d := range p.Debug {
		if i > 0 {
			b.WriteString(",")
		}
		b.WriteString(formatFloat(d))
	}
	b.WriteString("]}\n")
	return b.String()
}

// v2Debug names the V2 debug terms with the decimals each is truncated to.
var v2Debug = []struct {
	label string
	scale float64
}{
	{"im", 100}, {"dm", 10}, {"po", 1}, {"ip", 100}, {"ik", 100}, {"dk", 100},
	{"sk", 1}, {"bi", 100}, {"bd", 100}, {"k", 100}, {"a", 10},
}

func formatV2(ch model.Change) string {
	p := ch.Pending
	var b strings.Builder
	writeHead(&b, ch)

	b.WriteString(",o:")
	for i, o := range p.Opponents {
		if i > 0 {
			b.WriteString("+")
		}
		b.WriteString(strconv.FormatUint(uint64(float64(o.Level.Rating())*o.Weight), 10))
	}
	if p.Top20 {
		b.WriteString(",t:1")
	}
	if p.EarlyQuit {
		b.WriteString(",e:1")
	}
	writeScores(&b, p)

	b.WriteString(",de:[")
	for i, d := range p.Debug {
		if i >= len(v2Debug) {
			break
		}
		if i > 0 {
			b.WriteString(",")
		}
		b.WriteString(v2Debug[i].label)
		b.WriteString(":")
		b.WriteString(formatFloat(Truncate(d, v2Debug[i].scale)))
	}
	b.WriteString("]}\n")
	return b.String()
}

func writeHead(b *strings.Builder, ch model.Change) {
	b.WriteString("{u:")
	b.WriteString(strconv.FormatUint(ch.Pending.UserID, 10))
	b.WriteString(",v:")
	b.WriteString(strconv.FormatBool(ch.Pending.Victory))
	b.WriteString(",dm:")
	b.WriteString(strconv.FormatInt(int64(ch.Pending.Delta), 10))
	b.WriteString(",m:")
	b.WriteString(strconv.FormatUint(uint64(ch.Row.Rating), 10))
}

func writeScores(b *strings.Builder, p model.PendingChange) {
	b.WriteString(",bs:")
	b.WriteString(strconv.FormatUint(uint64(p.BattleScore), 10))
	b.WriteString(",bsm:")
	b.WriteString(strconv.FormatUint(uint64(p.NormalizedScore), 10))
}

// Truncate keeps log10(scale) decimals of a non-negative value, rounding
// toward zero. Negative values become 0 and huge ones saturate.
func Truncate(v, scale float64) float64 {
	x := v * scale
	switch {
	case math.IsNaN(x) || x <= 0:
		return 0
	case x >= math.MaxUint32:
		return math.MaxUint32 / scale
	}
	return float64(uint32(x)) / scale
}

func formatFloat(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }
