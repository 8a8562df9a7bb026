package normalize

import "errors"

// Sentinel kinds for normalization errors.
var (
	ErrZeroDominator = errors.New("dominator missing or not positive")
	ErrCohortScoped  = errors.New("strategy requires the full cohort")
	ErrRaggedMatrix  = errors.New("decision matrix rows have unequal width")
)
