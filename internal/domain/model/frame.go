// Package model contains domain models passed between layers.
package model

import (
	"time"

	"github.com/okian/plank/internal/domain/pose"
)

// Frame represents a pose sample submitted by clients.
// Fields mirror the OpenAPI schema for /frames.
type Frame struct {
	FrameID   string     // unique id for idempotency
	SessionID string     // tracking session the sample belongs to
	SubjectID string     // person being tracked
	TS        time.Time  // capture timestamp at the source
	Landmarks pose.Frame // landmark tuples in estimator order
}

// Hold captures one completed plank hold, cut when a confirmed position
// ends. Seconds is derived from the capture timestamps, not arrival time.
type Hold struct {
	ID            string
	SubjectID     string
	SessionID     string
	StartedAt     time.Time
	EndedAt       time.Time
	Seconds       float64
	Frames        int // passing frames inside the hold
	AvgConfidence float64
	View          string
}
