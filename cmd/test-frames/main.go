package main

import (
	"context"
	"flag"
	"os"
	"runtime"
	"time"

	"github.com/okian/plank/internal/testframes"
)

// Default configuration constants.
const (
	defaultNumSessions      = 200
	defaultFramesPerSession = 100
	defaultTopN             = 50
	defaultWorkers          = 2 // multiplier for runtime.NumCPU()
	defaultTimeout          = 30 * time.Second
	defaultTestTimeout      = 10 * time.Minute
)

func main() {
	var (
		baseURL    = flag.String("url", "http://localhost:8080", "Base URL of the service")
		sessions   = flag.Int("sessions", defaultNumSessions, "Number of sessions to generate and submit")
		frames     = flag.Int("frames", defaultFramesPerSession, "Frames per session including the collapse tail")
		topN       = flag.Int("top", defaultTopN, "Number of top entries to fetch from leaderboard")
		workers    = flag.Int("workers", runtime.NumCPU()*defaultWorkers, "Number of concurrent workers")
		timeout    = flag.Duration("timeout", defaultTimeout, "HTTP request timeout")
		pace       = flag.Duration("pace", 0, "Delay between frames of one session (0 submits as fast as possible)")
		outputFile = flag.String("output", "", "Output file for the session report (default: session_report_TIMESTAMP.json)")
		logFile    = flag.String("log", "", "Log file for test output (default: test_log_TIMESTAMP.log)")
		verbose    = flag.Bool("verbose", false, "Enable verbose logging")
		help       = flag.Bool("help", false, "Show help")
	)
	flag.Parse()

	if *help {
		testframes.ShowHelp()
		return
	}

	// Setup logging
	if err := testframes.SetupLogging(*logFile); err != nil {
		os.Stderr.WriteString("Failed to setup logging: " + err.Error() + "\n")
		return
	}

	// Create context with timeout
	ctx, cancel := context.WithTimeout(context.Background(), defaultTestTimeout)
	defer cancel()

	// Create test configuration
	config := &testframes.Config{
		BaseURL:          *baseURL,
		NumSessions:      *sessions,
		FramesPerSession: *frames,
		TopN:             *topN,
		Workers:          *workers,
		Timeout:          *timeout,
		Pace:             *pace,
		OutputFile:       *outputFile,
		LogFile:          *logFile,
		Verbose:          *verbose,
	}

	// Run the test
	if err := testframes.Run(ctx, config); err != nil {
		os.Stderr.WriteString("Test failed: " + err.Error() + "\n")
		return
	}
}
