package testframes

import (
	"context"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"
)

// retrieveSessionStates polls the final state of every session concurrently.
// The returned slice is parallel to sessions; a zero SessionID marks a
// session whose poll failed.
func retrieveSessionStates(ctx context.Context, config *Config, sessions []Session, stats *Stats) ([]SessionState, error) {
	log.Printf("🔎 Polling %d session states with %d workers...", len(sessions), config.Workers)

	client := newHTTPClient(config.Timeout)

	states := make([]SessionState, len(sessions))
	var (
		retrieved int64
		failed    int64
	)

	// Progress reporting
	var lastReportNs atomic.Int64
	reportInterval := 1 * time.Second

	// Create worker pool over session indices
	sessionChan := make(chan int, config.Workers*WorkerChannelMultiplier)
	var wg sync.WaitGroup

	// Start workers
	for i := 0; i < config.Workers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()

			for index := range sessionChan {
				select {
				case <-ctx.Done():
					return
				default:
					sessionID := sessions[index].SessionID
					state, err := retrieveSingleState(ctx, client, config.BaseURL, sessionID)

					if err != nil {
						atomic.AddInt64(&failed, 1)
						if config.Verbose {
							log.Printf("⚠️  Failed to get state for %s: %v", sessionID, err)
						}
					} else {
						states[index] = state
						atomic.AddInt64(&retrieved, 1)
					}

					// Progress reporting
					now := time.Now().UnixNano()
					last := lastReportNs.Load()
					if now-last >= int64(reportInterval) && lastReportNs.CompareAndSwap(last, now) {
						ret := atomic.LoadInt64(&retrieved)
						fail := atomic.LoadInt64(&failed)
						total := ret + fail

						if config.Verbose {
							log.Printf("📊 Polling progress: %d/%d retrieved (success: %d, failed: %d)",
								total, len(sessions), ret, fail)
						} else {
							fmt.Printf("\r🔎 Session states: %d/%d retrieved (success: %d, failed: %d)",
								total, len(sessions), ret, fail)
						}
					}
				}
			}
		}(i)
	}

	// Send session indices to workers
	go func() {
		defer close(sessionChan)
		for i := range sessions {
			select {
			case <-ctx.Done():
				return
			case sessionChan <- i:
			}
		}
	}()

	// Wait for all workers to complete
	wg.Wait()

	// Final progress report
	if !config.Verbose {
		fmt.Println() // New line after progress indicator
	}

	// Update stats
	stats.SessionsPolled = int(atomic.LoadInt64(&retrieved))

	log.Printf(`✅ Session polling completed:
   Retrieved: %d
   Failed: %d
`, stats.SessionsPolled, int(atomic.LoadInt64(&failed)))

	return states, nil
}

// retrieveSingleState retrieves the state of a single session.
func retrieveSingleState(ctx context.Context, client *HTTPClient, baseURL, sessionID string) (SessionState, error) {
	url := fmt.Sprintf("%s/sessions/%s", baseURL, sessionID)

	resp, err := client.Get(ctx, url)
	if err != nil {
		return SessionState{}, fmt.Errorf("request failed: %w", err)
	}

	if resp.StatusCode != StatusOK {
		body, _ := readResponseBody(resp)
		return SessionState{}, fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(body))
	}

	body, err := readResponseBody(resp)
	if err != nil {
		return SessionState{}, fmt.Errorf("failed to read response: %w", err)
	}

	var state SessionState
	if err := unmarshalJSON(body, &state); err != nil {
		return SessionState{}, fmt.Errorf("failed to parse response: %w", err)
	}

	return state, nil
}

// getLeaderboard retrieves the top N leaderboard entries.
func getLeaderboard(ctx context.Context, config *Config, stats *Stats) ([]Entry, error) {
	log.Printf("🥇 Getting top %d leaderboard entries...", config.TopN)

	client := newHTTPClient(config.Timeout)
	url := fmt.Sprintf("%s/leaderboard?limit=%d", config.BaseURL, config.TopN)

	resp, err := client.Get(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}

	if resp.StatusCode != StatusOK {
		body, _ := readResponseBody(resp)
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(body))
	}

	body, err := readResponseBody(resp)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	var leaderboard []Entry
	if err := unmarshalJSON(body, &leaderboard); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	stats.LeaderboardEntries = len(leaderboard)
	log.Printf("✅ Retrieved %d leaderboard entries", len(leaderboard))

	return leaderboard, nil
}

// checkTopHoldHistory logs the recorded hold summary for the leaderboard
// leader. History may be disabled server-side; that is reported, not failed.
func checkTopHoldHistory(ctx context.Context, config *Config, leaderboard []Entry) {
	if len(leaderboard) == 0 {
		return
	}
	top := leaderboard[0]

	client := newHTTPClient(config.Timeout)
	url := fmt.Sprintf("%s/holds/%s?limit=1", config.BaseURL, top.SubjectID)

	resp, err := client.Get(ctx, url)
	if err != nil {
		log.Printf("⚠️  Hold history check failed for %s: %v", top.SubjectID, err)
		return
	}

	body, err := readResponseBody(resp)
	if err != nil {
		log.Printf("⚠️  Hold history check failed for %s: %v", top.SubjectID, err)
		return
	}

	if resp.StatusCode != StatusOK {
		log.Printf("ℹ️  Hold history unavailable (HTTP %d): %s", resp.StatusCode, string(body))
		return
	}

	var report holdsReport
	if err := unmarshalJSON(body, &report); err != nil {
		log.Printf("⚠️  Failed to parse hold history for %s: %v", top.SubjectID, err)
		return
	}

	log.Printf("📜 Hold history for leader %s: %d hold(s), best %.2fs, total %.2fs",
		top.SubjectID, report.Summary.Holds, report.Summary.BestSeconds, report.Summary.TotalSeconds)
}
