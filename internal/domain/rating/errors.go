package rating

import "errors"

// ErrUnknownAlgorithm is returned by New for unsupported algorithm names.
var ErrUnknownAlgorithm = errors.New("unknown rating algorithm")
