package testframes

import (
	"time"

	"github.com/okian/plank/internal/domain/pose"
)

// Config holds configuration for the frame test
type Config struct {
	BaseURL          string        // Base URL of the service
	NumSessions      int           // Number of sessions to generate
	FramesPerSession int           // Frames per session including the collapse tail
	TopN             int           // Number of top entries to fetch
	Workers          int           // Number of concurrent workers
	Timeout          time.Duration // HTTP request timeout
	Pace             time.Duration // Optional delay between frames of one session
	OutputFile       string        // Output file for the session report
	LogFile          string        // Log file for test output
	Verbose          bool          // Enable verbose logging
}

// FramePayload is the wire shape submitted to POST /frames
type FramePayload struct {
	FrameID   string     `json:"frame_id"`
	SessionID string     `json:"session_id"`
	SubjectID string     `json:"subject_id"`
	TS        string     `json:"ts"`
	Landmarks pose.Frame `json:"landmarks"`
}

// Session is one scripted landmark stream plus its expected outcome
type Session struct {
	SessionID       string         `json:"session_id"`
	SubjectID       string         `json:"subject_id"`
	Scenario        string         `json:"scenario"`
	Frames          []FramePayload `json:"-"`
	ExpectedHolds   int            `json:"expected_holds"`
	ExpectedSeconds float64        `json:"expected_seconds"`
}

// SessionState is the client view of GET /sessions/{id}
type SessionState struct {
	SessionID      string  `json:"session_id"`
	SubjectID      string  `json:"subject_id"`
	Active         bool    `json:"active"`
	CurrentSeconds float64 `json:"current_seconds"`
	BestSeconds    float64 `json:"best_seconds"`
	Holds          int     `json:"holds"`
	Frames         int64   `json:"frames"`
}

// Entry represents a leaderboard entry
type Entry struct {
	Rank        int     `json:"rank"`
	SubjectID   string  `json:"subject_id"`
	BestSeconds float64 `json:"best_seconds"`
}

// AckResponse represents the response from frame submission
type AckResponse struct {
	Status    string `json:"status"`
	Duplicate bool   `json:"duplicate"`
}

// HoldSummary is the client view of the aggregate block in GET /holds/{subject}
type HoldSummary struct {
	Holds        int     `json:"holds"`
	TotalSeconds float64 `json:"total_seconds"`
	BestSeconds  float64 `json:"best_seconds"`
	AvgSeconds   float64 `json:"avg_seconds"`
}

type holdsReport struct {
	SubjectID string      `json:"subject_id"`
	Summary   HoldSummary `json:"summary"`
}

// Stats holds test statistics
type Stats struct {
	SessionsGenerated  int
	FramesGenerated    int
	FramesSubmitted    int
	FramesAccepted     int
	FramesDuplicate    int
	FramesRejected     int
	FramesFailed       int
	SessionsPolled     int
	SessionsVerified   int
	SessionsMismatched int
	LeaderboardEntries int
	StartTime          time.Time
	EndTime            time.Time
	Duration           time.Duration
}
