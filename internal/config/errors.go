package config

import "errors"

var (
	// ErrInvalidConfig wraps every Validate failure.
	ErrInvalidConfig = errors.New("invalid config")
	// ErrLoadConfig wraps file, env and unmarshal failures in Load.
	ErrLoadConfig = errors.New("load config failed")
)
