package criteria

import "errors"

// Sentinel kinds for mapping errors.
var (
	ErrInvalidInput     = errors.New("invalid raw input")
	ErrMalformedBands   = errors.New("malformed criterion bands")
	ErrUnknownCriterion = errors.New("unknown criterion code")
)
