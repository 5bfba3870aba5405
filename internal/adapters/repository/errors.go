package repository

import "errors"

// Sentinel kinds for leaderboard errors.
var (
	ErrNotFound      = errors.New("user not found")
	ErrReadSnapshot  = errors.New("read leaderboard snapshot")
	ErrWriteSnapshot = errors.New("write leaderboard snapshot")
	ErrWriteSpread   = errors.New("write spread report")
)
