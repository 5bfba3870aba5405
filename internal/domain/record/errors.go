package record

import (
	"errors"
)

// Sentinel kinds for record parsing errors.
var (
	ErrMalformedRecord = errors.New("malformed record")
	ErrMissingField    = errors.New("missing field")
	ErrInvalidField    = errors.New("invalid field")
)

// Reason maps a parse error to a short label for metrics.
func Reason(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrMissingField):
		return "missing_field"
	case errors.Is(err, ErrInvalidField):
		return "invalid_field"
	default:
		return "malformed"
	}
}
