package testframes

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/okian/plank/pkg/logger"
)

// File permission constants.
const (
	directoryPermission = 0750
)

// Run executes the complete frame test.
func Run(ctx context.Context, config *Config) error {
	if err := validateConfig(config); err != nil {
		return err
	}

	stats := &Stats{
		StartTime: time.Now(),
	}

	logger.Get().Info(ctx, "starting plank frame test",
		logger.String("baseURL", config.BaseURL),
		logger.Int("sessions", config.NumSessions),
		logger.Int("framesPerSession", config.FramesPerSession),
		logger.Int("workers", config.Workers),
		logger.String("timeout", config.Timeout.String()),
		logger.Int("topN", config.TopN),
		logger.String("logFile", config.LogFile),
		logger.Any("verbose", config.Verbose))

	// Step 1: Check service health
	if err := checkServiceHealth(ctx, config); err != nil {
		return fmt.Errorf("service health check failed: %w", err)
	}

	// Step 2: Generate scripted sessions
	sessions, err := generateSessions(ctx, config, stats)
	if err != nil {
		return fmt.Errorf("session generation failed: %w", err)
	}

	// Step 3: Submit frames concurrently, in order within each session
	if err := submitSessions(ctx, config, sessions, stats); err != nil {
		return fmt.Errorf("frame submission failed: %w", err)
	}

	// Step 4: Wait for the queue to drain
	logger.Get().Info(ctx, "waiting for frames to be processed")
	time.Sleep(DrainDelay)

	// Step 5: Poll final session states
	states, err := retrieveSessionStates(ctx, config, sessions, stats)
	if err != nil {
		return fmt.Errorf("session polling failed: %w", err)
	}

	// Step 6: Get leaderboard
	leaderboard, err := getLeaderboard(ctx, config, stats)
	if err != nil {
		return fmt.Errorf("leaderboard retrieval failed: %w", err)
	}

	// Step 7: Spot-check recorded hold history for the leader
	checkTopHoldHistory(ctx, config, leaderboard)

	// Step 8: Verify results
	if err := verifyResults(ctx, config, sessions, states, leaderboard, stats); err != nil {
		return fmt.Errorf("result verification failed: %w", err)
	}

	// Step 9: Save the session report
	if err := saveSessionReport(ctx, config, sessions, states); err != nil {
		logger.Get().Warn(ctx, "failed to save session report", logger.Error(err))
	}

	// Final statistics
	stats.EndTime = time.Now()
	stats.Duration = stats.EndTime.Sub(stats.StartTime)

	displayFinalStats(stats)

	logger.Get().Info(ctx, "test completed successfully")
	return nil
}

// validateConfig rejects configurations the expectation math cannot serve.
func validateConfig(config *Config) error {
	switch {
	case config.NumSessions < 1:
		return fmt.Errorf("sessions must be at least 1")
	case config.FramesPerSession < MinFramesPerSession:
		return fmt.Errorf("frames per session must be at least %d", MinFramesPerSession)
	case config.Workers < 1:
		return fmt.Errorf("workers must be at least 1")
	case config.TopN < 1:
		return fmt.Errorf("top must be at least 1")
	}
	return nil
}

// checkServiceHealth verifies the service is running.
func checkServiceHealth(ctx context.Context, config *Config) error {
	logger.Get().Info(ctx, "checking service health")

	client := newHTTPClient(config.Timeout)
	url := config.BaseURL + "/healthz"

	resp, err := client.Get(ctx, url)
	if err != nil {
		return fmt.Errorf("failed to connect to service: %w", err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			logger.Get().Error(context.Background(), "failed to close response body", logger.Error(err))
		}
	}()

	if resp.StatusCode != StatusOK {
		return fmt.Errorf("service health check failed with status: %d", resp.StatusCode)
	}

	logger.Get().Info(ctx, "service is healthy")
	return nil
}

// sessionReport is one row of the saved report: the script next to what the
// service actually tracked.
type sessionReport struct {
	SessionID       string  `json:"session_id"`
	SubjectID       string  `json:"subject_id"`
	Scenario        string  `json:"scenario"`
	Frames          int     `json:"frames"`
	ExpectedHolds   int     `json:"expected_holds"`
	ExpectedSeconds float64 `json:"expected_seconds"`
	ActualHolds     int     `json:"actual_holds"`
	ActualSeconds   float64 `json:"actual_best_seconds"`
}

// saveSessionReport saves one report row per session to a JSON file.
func saveSessionReport(ctx context.Context, config *Config, sessions []Session, states []SessionState) error {
	if len(sessions) == 0 {
		return fmt.Errorf("no sessions to save")
	}

	// Determine output filename
	filename := config.OutputFile
	if filename == "" {
		timestamp := time.Now().Format("20060102_150405")
		filename = "session_report_" + timestamp + ".json"
	}

	// Ensure the directory exists
	dir := filepath.Dir(filename)
	if dir != "." {
		if err := os.MkdirAll(dir, directoryPermission); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}

	file, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer func() {
		if err := file.Close(); err != nil {
			logger.Get().Error(context.Background(), "failed to close file", logger.Error(err))
		}
	}()

	// Write JSON array
	if _, err := file.WriteString("[\n"); err != nil {
		return fmt.Errorf("failed to write opening bracket: %w", err)
	}

	for i := range sessions {
		row := sessionReport{
			SessionID:       sessions[i].SessionID,
			SubjectID:       sessions[i].SubjectID,
			Scenario:        sessions[i].Scenario,
			Frames:          len(sessions[i].Frames),
			ExpectedHolds:   sessions[i].ExpectedHolds,
			ExpectedSeconds: sessions[i].ExpectedSeconds,
		}
		if i < len(states) && states[i].SessionID != "" {
			row.ActualHolds = states[i].Holds
			row.ActualSeconds = states[i].BestSeconds
		}

		jsonData, err := marshalJSON(row)
		if err != nil {
			return fmt.Errorf("failed to marshal report row %d: %w", i, err)
		}

		if _, err := file.Write(jsonData); err != nil {
			return fmt.Errorf("failed to write report row %d: %w", i, err)
		}

		// Add comma except for last row
		if i < len(sessions)-1 {
			if _, err := file.WriteString(","); err != nil {
				return fmt.Errorf("failed to write comma: %w", err)
			}
		}
		_, _ = file.WriteString("\n")
	}

	if _, err := file.WriteString("]\n"); err != nil {
		return fmt.Errorf("failed to write closing bracket: %w", err)
	}

	logger.Get().Info(ctx, "session report saved", logger.String("filename", filename))
	return nil
}

// displayFinalStats prints the final test statistics.
func displayFinalStats(stats *Stats) {
	var acceptRate, framesPerSecond float64

	if stats.FramesSubmitted > 0 {
		acceptRate = float64(stats.FramesAccepted) / float64(stats.FramesSubmitted) * PercentageMultiplier
	}

	if stats.Duration > 0 {
		framesPerSecond = float64(stats.FramesSubmitted) / stats.Duration.Seconds()
	}

	logger.Get().Info(context.Background(), "final statistics",
		logger.Int("sessionsGenerated", stats.SessionsGenerated),
		logger.Int("framesGenerated", stats.FramesGenerated),
		logger.Int("framesSubmitted", stats.FramesSubmitted),
		logger.Int("framesAccepted", stats.FramesAccepted),
		logger.Int("framesDuplicate", stats.FramesDuplicate),
		logger.Int("framesRejected", stats.FramesRejected),
		logger.Int("framesFailed", stats.FramesFailed),
		logger.Int("sessionsPolled", stats.SessionsPolled),
		logger.Int("sessionsVerified", stats.SessionsVerified),
		logger.Int("sessionsMismatched", stats.SessionsMismatched),
		logger.Int("leaderboardEntries", stats.LeaderboardEntries),
		logger.String("duration", stats.Duration.String()),
		logger.Float64("acceptRate", acceptRate),
		logger.Float64("framesPerSecond", framesPerSecond))
}
