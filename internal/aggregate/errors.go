package aggregate

import "errors"

// Sentinel errors for aggregation workers.
var (
	ErrClassifierOutOfRange = errors.New("classifier id out of range")
	ErrUnknownAlgorithm     = errors.New("change has unknown algorithm")
	ErrOpenOutput           = errors.New("open aggregate output")
	ErrWriteOutput          = errors.New("write aggregate output")
)
