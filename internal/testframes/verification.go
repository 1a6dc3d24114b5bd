package testframes

import (
	"context"
	"fmt"
	"log"
	"math"
)

// verifyResults compares every polled session state against its script's
// expected outcome and checks the leaderboard for order and consistency.
func verifyResults(ctx context.Context, config *Config, sessions []Session, states []SessionState, leaderboard []Entry, stats *Stats) error {
	log.Println("🔍 Verifying results...")

	if len(states) != len(sessions) {
		return fmt.Errorf("state count %d does not match session count %d", len(states), len(sessions))
	}

	// Expected best seconds per subject, for the leaderboard check
	expected := make(map[string]float64)

	verified := 0
	mismatched := 0
	for i := range sessions {
		sess := &sessions[i]
		state := &states[i]

		if state.SessionID == "" {
			continue // polling failed for this session
		}
		if sess.ExpectedHolds > 0 {
			expected[sess.SubjectID] = sess.ExpectedSeconds
		}

		if reason := checkSession(sess, state); reason == "" {
			verified++
		} else {
			mismatched++
			if config.Verbose {
				log.Printf("⚠️  Session %s (%s): %s", sess.SessionID, sess.Scenario, reason)
			}
		}
	}

	if verified == 0 {
		return fmt.Errorf("no sessions verified")
	}

	// Verify leaderboard consistency if we have leaderboard data
	if len(leaderboard) > 0 {
		if err := verifyLeaderboardConsistency(leaderboard, expected); err != nil {
			log.Printf("⚠️  Leaderboard consistency warning: %v", err)
		} else {
			log.Println("✅ Leaderboard consistency verified")
		}
	}

	displayTopPerformers(leaderboard, expected, config.Verbose)

	stats.SessionsVerified = verified
	stats.SessionsMismatched = mismatched

	log.Printf(`✅ Result verification completed:
   Verified: %d
   Mismatched: %d
`, verified, mismatched)

	return nil
}

// checkSession reports why a session state deviates from its script, or ""
// when it matches.
func checkSession(sess *Session, state *SessionState) string {
	if sess.ExpectedHolds == 0 {
		if state.Holds != 0 {
			return fmt.Sprintf("expected no holds, got %d", state.Holds)
		}
		return ""
	}

	if state.Holds < sess.ExpectedHolds {
		return fmt.Sprintf("expected %d hold(s), got %d", sess.ExpectedHolds, state.Holds)
	}
	if diff := math.Abs(state.BestSeconds - sess.ExpectedSeconds); diff > SecondsTolerance {
		return fmt.Sprintf("best %.2fs deviates from expected %.2fs", state.BestSeconds, sess.ExpectedSeconds)
	}
	return ""
}

// verifyLeaderboardConsistency checks ordering and that every entry's best
// matches the script that produced it.
func verifyLeaderboardConsistency(leaderboard []Entry, expected map[string]float64) error {
	if len(leaderboard) == 0 {
		return fmt.Errorf("empty leaderboard")
	}

	// The leaderboard must be sorted best-first
	for i := 1; i < len(leaderboard); i++ {
		if leaderboard[i].BestSeconds > leaderboard[i-1].BestSeconds {
			return fmt.Errorf("leaderboard not properly sorted: entry %d has a longer hold than entry %d", i, i-1)
		}
	}

	// Every entry should correspond to a scripted hold. Subjects from an
	// earlier run against the same service show up here too; report them.
	for _, entry := range leaderboard {
		want, ok := expected[entry.SubjectID]
		if !ok {
			return fmt.Errorf("subject %s on the leaderboard was not scripted in this run", entry.SubjectID)
		}
		if math.Abs(entry.BestSeconds-want) > SecondsTolerance {
			return fmt.Errorf("subject %s: leaderboard best %.2fs deviates from expected %.2fs",
				entry.SubjectID, entry.BestSeconds, want)
		}
	}

	return nil
}

// displayTopPerformers shows the top leaderboard entries next to their
// scripted expectations.
func displayTopPerformers(leaderboard []Entry, expected map[string]float64, verbose bool) {
	topN := 10
	if len(leaderboard) < topN {
		topN = len(leaderboard)
	}
	if topN == 0 {
		return
	}

	log.Printf("🏆 Top %d holds on the leaderboard:", topN)
	for i := 0; i < topN; i++ {
		entry := leaderboard[i]
		if want, ok := expected[entry.SubjectID]; ok {
			log.Printf("   %d. %s - %.2fs (expected %.2fs)", entry.Rank, entry.SubjectID, entry.BestSeconds, want)
		} else {
			log.Printf("   %d. %s - %.2fs", entry.Rank, entry.SubjectID, entry.BestSeconds)
		}
	}

	if verbose && len(leaderboard) > 0 {
		avg := calculateAverageSeconds(leaderboard)
		maxSeconds := leaderboard[0].BestSeconds
		minSeconds := leaderboard[len(leaderboard)-1].BestSeconds

		log.Printf(`📊 Hold statistics:
   Average: %.2fs
   Maximum: %.2fs
   Minimum: %.2fs
`, avg, maxSeconds, minSeconds)
	}
}

// calculateAverageSeconds calculates the average best hold from the entries.
func calculateAverageSeconds(leaderboard []Entry) float64 {
	if len(leaderboard) == 0 {
		return 0
	}

	sum := 0.0
	for _, entry := range leaderboard {
		sum += entry.BestSeconds
	}

	return sum / float64(len(leaderboard))
}
