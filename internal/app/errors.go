package service

import "errors"

// Sentinel errors for the engine.
var (
	ErrOpenInput    = errors.New("open input stream")
	ErrReadInput    = errors.New("read input stream")
	ErrEmitSession  = errors.New("emit session output")
	ErrPersistState = errors.New("persist engine state")
)
