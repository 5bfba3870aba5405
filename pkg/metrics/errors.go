package metrics

import "errors"

// ErrWriteTextfile is returned when the end-of-run textfile cannot be written.
var ErrWriteTextfile = errors.New("metrics textfile write failed")
