package testframes

import "time"

// HTTP status code constants.
const (
	StatusOK              = 200
	StatusAccepted        = 202
	StatusTooManyRequests = 429
)

// Worker configuration constants.
const (
	WorkerChannelMultiplier = 2
)

// Frame script constants. The expectation math assumes the service runs
// with its default gate settings; point the tool at a tuned deployment and
// the expected hold durations will be off.
const (
	// FrameInterval is the synthetic capture cadence encoded in frame
	// timestamps. The hold clock reads timestamps, not arrival time.
	FrameInterval = 100 * time.Millisecond

	stabilityFrames   = 5
	gracePeriodFrames = 30

	// CollapseFrames is the empty-frame tail appended to a hold so the
	// grace period expires and the hold is cut and recorded.
	CollapseFrames = gracePeriodFrames + 5

	holdVariantCount = 8
	holdVariantStep  = 3

	// MinFramesPerSession keeps the shortest hold variant comfortably
	// above the stability window.
	MinFramesPerSession = 70
)

// Runner configuration constants.
const (
	DrainDelay           = 5 * time.Second
	PercentageMultiplier = 100

	// SecondsTolerance absorbs the occasional cross-worker reordering of
	// one session's frames inside the service.
	SecondsTolerance = 0.5
)
