package testframes

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/okian/plank/pkg/logger"
)

// File permission constants.
const (
	logFilePermission = 0600
)

// SetupLogging configures logging to both console and file.
// If logFile is empty, a timestamped filename is generated.
func SetupLogging(logFile string) error {
	// Initialize the logger first
	if err := logger.Init(); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	if logFile == "" {
		timestamp := time.Now().Format("20060102_150405")
		logFile = "test_log_" + timestamp + ".log"
	}

	file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, logFilePermission)
	if err != nil {
		return fmt.Errorf("failed to create log file: %w", err)
	}

	multiWriter := io.MultiWriter(os.Stdout, file)
	log.SetOutput(multiWriter)
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)
	logger.Get().Info(context.Background(), "logging to file", logger.String("logFile", logFile))
	return nil
}

// ShowHelp prints usage information for the test frames tool.
func ShowHelp() {
	os.Stdout.WriteString(`Plank Frame Test Tool
=====================

A concurrent tool for exercising the plank tracker's frame pipeline with
scripted pose-landmark sessions.

Usage:
  go run cmd/test-frames/main.go [options]

Options:
  -url string
        Base URL of the service (default "http://localhost:8080")
  -sessions int
        Number of sessions to generate and submit (default 200)
  -frames int
        Frames per session including the collapse tail (default 100, minimum 70)
  -top int
        Number of top entries to fetch from leaderboard (default 50)
  -workers int
        Number of concurrent workers (default CPU cores * 2)
  -timeout duration
        HTTP request timeout (default 30s)
  -pace duration
        Delay between frames of one session (default 0, submit as fast as possible)
  -output string
        Output file for the session report (default: session_report_TIMESTAMP.json)
  -log string
        Log file for test output (default: test_log_TIMESTAMP.log)
  -verbose
        Enable verbose logging
  -help
        Show this help message

Scenarios:
  Sessions cycle through four scripts: a steady hold that later collapses,
  a wobbly hold with short form breaks, sagging hips that never pass, and
  empty frames with no person in view. Hold lengths vary by session so the
  leaderboard has an order to verify. The expected durations assume the
  service runs with its default gate settings.

Examples:
  # Test with default settings
  go run cmd/test-frames/main.go

  # Longer holds, more concurrency
  go run cmd/test-frames/main.go -sessions 500 -frames 150 -workers 16

  # Paced submission approximating live capture
  go run cmd/test-frames/main.go -sessions 20 -pace 10ms -verbose
`)
}
