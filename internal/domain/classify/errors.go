package classify

import "errors"

// Sentinel kinds for classifier configuration errors.
var (
	ErrMinVisibilityRange = errors.New("min visibility must be in [0, 1]")
	ErrPassThresholdRange = errors.New("pass threshold must be in [0, 100]")
	ErrMaxViolationsRange = errors.New("max violations must not be negative")
)
