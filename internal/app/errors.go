package app

import "errors"

// Sentinel kinds for orchestration errors.
var (
	ErrBadConfiguration = errors.New("bad scoring configuration")
)
