package testframes

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/okian/plank/internal/domain/pose"
	"github.com/okian/plank/pkg/logger"
)

// Scenario names cycled across generated sessions.
const (
	// ScenarioSteady holds perfect form, then collapses so the hold is cut.
	ScenarioSteady = "steady"
	// ScenarioWobble holds form with short sag blips shorter than the grace period.
	ScenarioWobble = "wobble"
	// ScenarioSag never passes: the hips stay dropped for the whole stream.
	ScenarioSag = "sag"
	// ScenarioGhost submits frames with no person in view.
	ScenarioGhost = "ghost"
)

var scenarioCycle = []string{ScenarioSteady, ScenarioWobble, ScenarioSag, ScenarioGhost}

func scenarioFor(index int) string {
	return scenarioCycle[index%len(scenarioCycle)]
}

const fullVisibility = 1.0

func landmarkAt(x, y float64) pose.Landmark {
	return pose.Landmark{X: x, Y: y, Visibility: fullVisibility}
}

// steadyFrame is a left-facing side plank on the normalized image plane.
// Only the slots the side-view checks read are populated; the rest stay at
// zero visibility, which the classifier ignores.
func steadyFrame() pose.Frame {
	f := make(pose.Frame, pose.LandmarkCount)
	f[pose.Nose] = landmarkAt(0.25, 0.52)
	f[pose.LeftShoulder] = landmarkAt(0.30, 0.55)
	f[pose.LeftElbow] = landmarkAt(0.30, 0.70)
	f[pose.LeftWrist] = landmarkAt(0.40, 0.70)
	f[pose.LeftHip] = landmarkAt(0.50, 0.56)
	f[pose.LeftKnee] = landmarkAt(0.65, 0.585)
	f[pose.LeftAnkle] = landmarkAt(0.80, 0.61)
	return f
}

// sagFrame drops the hips well below the shoulder-ankle line, which fails
// the body-line check outright.
func sagFrame() pose.Frame {
	f := steadyFrame()
	f[pose.LeftHip] = landmarkAt(0.50, 0.70)
	return f
}

// ghostFrame carries no landmarks at all.
func ghostFrame() pose.Frame {
	return pose.Frame{}
}

// isWobbleBlip marks two-frame sag bursts inside the hold phase. Blips are
// kept away from the opening stability window and the final frames so the
// acquire point and the last passing timestamp stay where the expectation
// math puts them.
func isWobbleBlip(i, holdPhase int) bool {
	if i < stabilityFrames+3 || i >= holdPhase-3 {
		return false
	}
	return i%9 == 7 || i%9 == 8
}

// generateSessions creates the scripted sessions with unique subject IDs.
func generateSessions(ctx context.Context, config *Config, stats *Stats) ([]Session, error) {
	logger.Get().Info(ctx, "generating scripted sessions",
		logger.Int("sessions", config.NumSessions),
		logger.Int("framesPerSession", config.FramesPerSession))

	sessions := make([]Session, config.NumSessions)
	base := time.Now().UTC()

	// Generate sessions concurrently
	type sessionResult struct {
		index   int
		session Session
		err     error
	}

	resultChan := make(chan sessionResult, config.NumSessions)

	// Use worker pool for session generation
	workerCount := minInt(config.Workers, config.NumSessions)
	sessionsPerWorker := config.NumSessions / workerCount

	for worker := 0; worker < workerCount; worker++ {
		start := worker * sessionsPerWorker
		end := start + sessionsPerWorker
		if worker == workerCount-1 {
			end = config.NumSessions // Last worker gets remaining sessions
		}

		go func(start, end int) {
			for i := start; i < end; i++ {
				select {
				case <-ctx.Done():
					resultChan <- sessionResult{index: i, err: ctx.Err()}
					return
				default:
					resultChan <- sessionResult{index: i, session: buildSession(i, base, config)}
				}
			}
		}(start, end)
	}

	// Collect results
	for i := 0; i < config.NumSessions; i++ {
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("context cancelled during session generation: %w", ctx.Err())
		case result := <-resultChan:
			if result.err != nil {
				return nil, fmt.Errorf("failed to generate session %d: %w", result.index, result.err)
			}
			sessions[result.index] = result.session
		}
	}

	frames := 0
	for i := range sessions {
		frames += len(sessions[i].Frames)
	}
	stats.SessionsGenerated = len(sessions)
	stats.FramesGenerated = frames
	logger.Get().Info(ctx, "generated sessions successfully",
		logger.Int("sessions", len(sessions)),
		logger.Int("frames", frames))

	return sessions, nil
}

// buildSession scripts one session's landmark stream for its scenario.
func buildSession(index int, base time.Time, config *Config) Session {
	subjectID := uuid.New().String()
	sessionID := fmt.Sprintf("sess_%d_%s", index, subjectID[:8])
	scenario := scenarioFor(index)

	sess := Session{
		SessionID: sessionID,
		SubjectID: subjectID,
		Scenario:  scenario,
	}

	switch scenario {
	case ScenarioSteady, ScenarioWobble:
		// Vary hold lengths by index so the leaderboard has an order to verify.
		holdPhase := config.FramesPerSession - CollapseFrames - (index%holdVariantCount)*holdVariantStep

		frames := make([]FramePayload, 0, holdPhase+CollapseFrames)
		for i := 0; i < holdPhase; i++ {
			landmarks := steadyFrame()
			if scenario == ScenarioWobble && isWobbleBlip(i, holdPhase) {
				landmarks = sagFrame()
			}
			frames = append(frames, newFramePayload(sessionID, subjectID, len(frames), base, landmarks))
		}
		for i := 0; i < CollapseFrames; i++ {
			frames = append(frames, newFramePayload(sessionID, subjectID, len(frames), base, ghostFrame()))
		}

		sess.Frames = frames
		sess.ExpectedHolds = 1
		// The gate confirms on the last frame of the stability window, so the
		// hold clock starts there and stops at the final passing frame.
		sess.ExpectedSeconds = float64(holdPhase-stabilityFrames) * FrameInterval.Seconds()
	case ScenarioSag:
		frames := make([]FramePayload, 0, config.FramesPerSession)
		for i := 0; i < config.FramesPerSession; i++ {
			frames = append(frames, newFramePayload(sessionID, subjectID, i, base, sagFrame()))
		}
		sess.Frames = frames
	case ScenarioGhost:
		frames := make([]FramePayload, 0, config.FramesPerSession)
		for i := 0; i < config.FramesPerSession; i++ {
			frames = append(frames, newFramePayload(sessionID, subjectID, i, base, ghostFrame()))
		}
		sess.Frames = frames
	}

	return sess
}

// newFramePayload stamps one frame of a session's stream.
func newFramePayload(sessionID, subjectID string, seq int, base time.Time, landmarks pose.Frame) FramePayload {
	return FramePayload{
		FrameID:   fmt.Sprintf("%s_f%d", sessionID, seq),
		SessionID: sessionID,
		SubjectID: subjectID,
		// Sub-second spacing drives the hold clock; RFC3339Nano keeps it.
		TS:        base.Add(time.Duration(seq) * FrameInterval).Format(time.RFC3339Nano),
		Landmarks: landmarks,
	}
}

// minInt returns the minimum of two integers.
func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
