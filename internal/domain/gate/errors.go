package gate

import "errors"

var (
	// ErrStabilityFrames indicates a stability threshold below one frame.
	ErrStabilityFrames = errors.New("stability frames must be at least 1")

	// ErrGracePeriodFrames indicates a grace period below one frame.
	ErrGracePeriodFrames = errors.New("grace period frames must be at least 1")
)
