package dataset

import "errors"

// ErrReadTable is returned when an existing side-table file cannot be read.
var ErrReadTable = errors.New("read side table")
