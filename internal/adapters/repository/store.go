// Package repository defines the ranking store interface and errors.
package repository

import "context"

// Entry represents a leaderboard row. Hold metadata beyond the best
// duration lives in the history store, not here.
type Entry struct {
	Rank      int
	SubjectID string
	Seconds   float64
}

// Store provides read/write access to the ranking state.
type Store interface {
	// UpdateBest sets a new best hold for subject if longer than the existing one.
	// Returns true if the store updated the duration, false otherwise.
	UpdateBest(ctx context.Context, subjectID string, seconds float64) (bool, error)

	// Rank returns the current rank and best hold for a subject.
	// Returns ErrNotFound if the subject is unknown.
	Rank(ctx context.Context, subjectID string) (Entry, error)

	// TopN returns the top-N entries ordered by best hold desc.
	TopN(ctx context.Context, n int) ([]Entry, error)

	// Count returns the number of subjects tracked in the leaderboard.
	Count(ctx context.Context) int
}
