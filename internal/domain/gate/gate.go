// Package gate debounces the per-frame classifier verdicts into stable
// position-acquired and position-lost transitions, so a single-frame
// misclassification never starts or stops anything downstream.
//
// Both thresholds are frame counts, not durations: they are tied to whatever
// sampling cadence the caller drives the gate at. The defaults assume
// roughly 10 Hz, making acquisition confirm in about half a second and loss
// forgive about three seconds of wobble or occlusion.
package gate

// Calibrated defaults. Acquisition is deliberately fast and loss deliberately
// forgiving; a brief occlusion should never end a long hold.
const (
	DefaultStabilityFrames   = 5
	DefaultGracePeriodFrames = 30
)

// Event signals a gate transition. Events fire on the transition edge only,
// at most once per edge.
type Event int

const (
	EventNone Event = iota
	EventAcquired
	EventLost
)

func (e Event) String() string {
	switch e {
	case EventAcquired:
		return "acquired"
	case EventLost:
		return "lost"
	default:
		return "none"
	}
}

// State is a snapshot of the debounce counters. The streaks are mutually
// exclusive: advancing one zeroes the other.
type State struct {
	PassStreak int
	FailStreak int
	Active     bool
}

// Gate is the debounce state machine. One writer at a time per gate; each
// session owns its own instance.
type Gate struct {
	stabilityFrames int
	graceFrames     int
	state           State
}

// New creates a gate, validating the frame thresholds. Thresholds below one
// are programming errors and fail here.
func New(opts ...Option) (*Gate, error) {
	g := &Gate{
		stabilityFrames: DefaultStabilityFrames,
		graceFrames:     DefaultGracePeriodFrames,
	}

	for _, opt := range opts {
		opt(g)
	}

	if g.stabilityFrames < 1 {
		return nil, ErrStabilityFrames
	}
	if g.graceFrames < 1 {
		return nil, ErrGracePeriodFrames
	}
	return g, nil
}

// Update advances the gate by one sampled frame and returns the transition
// event, if any. It never blocks and never fails; degraded input (the
// no-person outcome) is just a failing frame.
func (g *Gate) Update(pass bool) Event {
	next, event := step(g.state, pass, g.stabilityFrames, g.graceFrames)
	g.state = next
	return event
}

// Reset hard-resets the gate for a session restart: both counters to zero,
// inactive, and deliberately no lost event.
func (g *Gate) Reset() {
	g.state = State{}
}

// State returns a snapshot of the counters.
func (g *Gate) State() State { return g.state }

// Active reports whether the gate currently considers the position held.
func (g *Gate) Active() bool { return g.state.Active }

// step is the pure transition function Update wraps around the stored state.
func step(s State, pass bool, stability, grace int) (State, Event) {
	if pass {
		s.PassStreak++
		s.FailStreak = 0
		if !s.Active && s.PassStreak >= stability {
			s.Active = true
			return s, EventAcquired
		}
		return s, EventNone
	}

	s.FailStreak++
	s.PassStreak = 0
	if s.Active && s.FailStreak >= grace {
		s.Active = false
		return s, EventLost
	}
	return s, EventNone
}
