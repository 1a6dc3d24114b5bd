// Package session tracks live plank-hold state per tracking session: the
// latest classifier result, the debounce gate, and the timing of the
// current, completed, and best holds.
package session

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/okian/plank/internal/domain/classify"
	"github.com/okian/plank/internal/domain/gate"
	"github.com/okian/plank/internal/domain/model"
)

// State is a point-in-time snapshot of a tracker, shaped for the
// session endpoint.
type State struct {
	SessionID      string    `json:"session_id"`
	SubjectID      string    `json:"subject_id"`
	IsPlank        bool      `json:"is_plank"`
	Confidence     float64   `json:"confidence"`
	Feedback       []string  `json:"feedback"`
	Active         bool      `json:"active"`
	PassStreak     int       `json:"pass_streak"`
	FailStreak     int       `json:"fail_streak"`
	CurrentSeconds float64   `json:"current_seconds"`
	BestSeconds    float64   `json:"best_seconds"`
	Holds          int       `json:"holds"`
	Frames         int64     `json:"frames"`
	LastSeenAt     time.Time `json:"last_seen_at"`
}

// Tracker owns the hold state of one session. All methods are safe for
// concurrent use; internally a single mutex serializes updates so the gate
// only ever sees one writer.
type Tracker struct {
	mu        sync.Mutex
	id        string
	subjectID string
	gate      *gate.Gate
	last      classify.Result
	lastSeen  time.Time

	// Current hold accumulators. The hold clock starts at the capture
	// timestamp of the frame that confirmed the position and stops at the
	// last passing frame, so a grace window full of failures never
	// inflates the recorded duration.
	holdStart  time.Time
	lastPass   time.Time
	holdFrames int
	confSum    float64

	best   float64
	holds  int
	frames int64
}

// Apply feeds one classified frame through the tracker. It returns the gate
// transition, if any, and the completed hold record when this frame ended
// one. The caller owns all side effects for the returned hold.
func (t *Tracker) Apply(f model.Frame, res classify.Result) (gate.Event, *model.Hold) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.frames++
	t.lastSeen = time.Now()
	t.last = res

	event := t.gate.Update(res.IsPlank)

	if res.IsPlank && t.gate.Active() {
		if event == gate.EventAcquired {
			t.holdStart = f.TS
			t.holdFrames = 0
			t.confSum = 0
		}
		t.holdFrames++
		t.confSum += res.Confidence
		t.lastPass = f.TS
	}

	if event != gate.EventLost {
		return event, nil
	}
	return event, t.cutHold()
}

// cutHold finalizes the current accumulators into a hold record and resets
// them. Must be called with t.mu held.
func (t *Tracker) cutHold() *model.Hold {
	seconds := t.lastPass.Sub(t.holdStart).Seconds()
	if seconds < 0 {
		// Client capture timestamps went backwards mid-hold.
		seconds = 0
	}

	h := &model.Hold{
		ID:        uuid.NewString(),
		SubjectID: t.subjectID,
		SessionID: t.id,
		StartedAt: t.holdStart,
		EndedAt:   t.lastPass,
		Seconds:   seconds,
		Frames:    t.holdFrames,
	}
	if t.holdFrames > 0 {
		h.AvgConfidence = t.confSum / float64(t.holdFrames)
	}

	if seconds > t.best {
		t.best = seconds
	}
	t.holds++
	t.clearHold()
	return h
}

// clearHold zeroes the current-hold accumulators. Must be called with t.mu held.
func (t *Tracker) clearHold() {
	t.holdStart = time.Time{}
	t.lastPass = time.Time{}
	t.holdFrames = 0
	t.confSum = 0
}

// Reset restarts the session attempt: gate hard reset, current hold
// discarded without a record. Best hold and lifetime counters survive.
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.gate.Reset()
	t.clearHold()
	t.last = classify.Result{}
}

// State returns a snapshot of the tracker.
func (t *Tracker) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()

	gs := t.gate.State()
	st := State{
		SessionID:   t.id,
		SubjectID:   t.subjectID,
		IsPlank:     t.last.IsPlank,
		Confidence:  t.last.Confidence,
		Feedback:    append([]string(nil), t.last.Feedback...),
		Active:      gs.Active,
		PassStreak:  gs.PassStreak,
		FailStreak:  gs.FailStreak,
		BestSeconds: t.best,
		Holds:       t.holds,
		Frames:      t.frames,
		LastSeenAt:  t.lastSeen,
	}
	if gs.Active && !t.holdStart.IsZero() {
		if cur := t.lastPass.Sub(t.holdStart).Seconds(); cur > 0 {
			st.CurrentSeconds = cur
		}
	}
	return st
}

// idleSince reports the last time the tracker saw a frame.
func (t *Tracker) idleSince() time.Time {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.lastSeen
}
