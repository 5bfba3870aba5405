package session

import (
	"bufio"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/okian/mmr/internal/domain/model"
	"github.com/okian/mmr/internal/domain/record"
)

// LoadMemory reads a carried-over batch. A missing file yields ok=false and no
// error.
func LoadMemory(path string) (model.SessionBatch, bool, error) {
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return model.SessionBatch{}, false, nil
	}
	if err != nil {
		return model.SessionBatch{}, false, fmt.Errorf("%w: %w", ErrReadMemory, err)
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	if !sc.Scan() {
		if err := sc.Err(); err != nil {
			return model.SessionBatch{}, false, fmt.Errorf("%w: %w", ErrReadMemory, err)
		}
		return model.SessionBatch{}, false, nil
	}
	sid, err := strconv.ParseUint(strings.TrimSpace(sc.Text()), 10, 64)
	if err != nil {
		return model.SessionBatch{}, false, fmt.Errorf("%w: session id: %w", ErrReadMemory, err)
	}

	batch := model.SessionBatch{SessionID: sid}
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		row, err := record.DecodeRow(line)
		if err != nil {
			return model.SessionBatch{}, false, fmt.Errorf("%w: %w", ErrReadMemory, err)
		}
		row.SessionID = sid
		batch.Rows = append(batch.Rows, row)
	}
	if err := sc.Err(); err != nil {
		return model.SessionBatch{}, false, fmt.Errorf("%w: %w", ErrReadMemory, err)
	}
	return batch, len(batch.Rows) > 0, nil
}

// SaveMemory writes the batch so the next run can continue it.
func SaveMemory(path string, batch model.SessionBatch) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrWriteMemory, err)
	}
	w := bufio.NewWriter(f)
	fmt.Fprintln(w, batch.SessionID)
	for _, r := range batch.Rows {
		fmt.Fprintln(w, record.EncodeRow(r))
	}
	if err := w.Flush(); err != nil {
		_ = f.Close()
		return fmt.Errorf("%w: %w", ErrWriteMemory, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("%w: %w", ErrWriteMemory, err)
	}
	return nil
}
