package session

import "errors"

// Errors returned by the carry-over memory.
var (
	ErrReadMemory  = errors.New("read session memory")
	ErrWriteMemory = errors.New("write session memory")
)
