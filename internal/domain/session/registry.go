package session

import (
	"fmt"
	"sync"
	"time"

	"github.com/okian/plank/internal/domain/gate"
)

// Registry hands out one tracker per session ID. Trackers are created on
// first use and removed by idle pruning; independent sessions never share
// state.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Tracker

	stabilityFrames int
	graceFrames     int
}

// NewRegistry creates a session registry. The gate thresholds apply to every
// tracker the registry creates and are validated here, fail-fast.
func NewRegistry(opts ...Option) (*Registry, error) {
	r := &Registry{
		sessions:        make(map[string]*Tracker),
		stabilityFrames: gate.DefaultStabilityFrames,
		graceFrames:     gate.DefaultGracePeriodFrames,
	}

	for _, opt := range opts {
		opt(r)
	}

	// Probe construction surfaces bad thresholds before any session exists.
	if _, err := r.newGate(); err != nil {
		return nil, fmt.Errorf("session registry: %w", err)
	}
	return r, nil
}

func (r *Registry) newGate() (*gate.Gate, error) {
	return gate.New(
		gate.WithStabilityFrames(r.stabilityFrames),
		gate.WithGracePeriodFrames(r.graceFrames),
	)
}

// GetOrCreate returns the tracker for a session, creating it on first use.
// The subject ID binds at creation; later frames for the same session keep
// the original subject.
func (r *Registry) GetOrCreate(sessionID, subjectID string) (*Tracker, error) {
	r.mu.RLock()
	t, ok := r.sessions[sessionID]
	r.mu.RUnlock()
	if ok {
		return t, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if t, ok := r.sessions[sessionID]; ok {
		return t, nil
	}

	g, err := r.newGate()
	if err != nil {
		return nil, fmt.Errorf("create session %q: %w", sessionID, err)
	}
	t = &Tracker{
		id:        sessionID,
		subjectID: subjectID,
		gate:      g,
		lastSeen:  time.Now(),
	}
	r.sessions[sessionID] = t
	return t, nil
}

// Get returns the tracker for a session, if it exists.
func (r *Registry) Get(sessionID string) (*Tracker, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.sessions[sessionID]
	return t, ok
}

// Reset restarts a session attempt. Returns false when the session is
// unknown.
func (r *Registry) Reset(sessionID string) bool {
	t, ok := r.Get(sessionID)
	if !ok {
		return false
	}
	t.Reset()
	return true
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// PruneIdle removes sessions that have not seen a frame for longer than
// maxIdle and returns how many were removed. A pruned mid-hold session is
// dropped without a hold record; at real sampling cadences the grace window
// closes any genuine hold long before the idle timeout fires.
func (r *Registry) PruneIdle(maxIdle time.Duration) int {
	cutoff := time.Now().Add(-maxIdle)

	r.mu.Lock()
	defer r.mu.Unlock()

	pruned := 0
	for id, t := range r.sessions {
		if t.idleSince().Before(cutoff) {
			delete(r.sessions, id)
			pruned++
		}
	}
	return pruned
}
