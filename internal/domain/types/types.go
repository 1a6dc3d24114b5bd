// Package types contains common types used across the application
package types

import "time"

// Entry represents a leaderboard entry
type Entry struct {
	Rank        int     `json:"rank"`
	SubjectID   string  `json:"subject_id"`
	BestSeconds float64 `json:"best_seconds"`
}

// HoldRecord is the read shape of one completed hold.
type HoldRecord struct {
	ID            string    `json:"id"`
	SessionID     string    `json:"session_id"`
	StartedAt     time.Time `json:"started_at"`
	EndedAt       time.Time `json:"ended_at"`
	Seconds       float64   `json:"seconds"`
	Frames        int       `json:"frames"`
	AvgConfidence float64   `json:"avg_confidence"`
	View          string    `json:"view"`
}

// HoldSummary aggregates a subject's recorded holds.
type HoldSummary struct {
	Holds        int       `json:"holds"`
	TotalSeconds float64   `json:"total_seconds"`
	BestSeconds  float64   `json:"best_seconds"`
	AvgSeconds   float64   `json:"avg_seconds"`
	LastHoldAt   time.Time `json:"last_hold_at"`
}
