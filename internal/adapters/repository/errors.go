package repository

import "errors"

// Sentinel kinds for store errors.
var (
	ErrExaminationNotFound = errors.New("examination not found")
	ErrEventNotFound       = errors.New("event not found")
	ErrResultNotFound      = errors.New("evaluation result not found")
	ErrMissingCriteria     = errors.New("criteria configuration missing")
)
