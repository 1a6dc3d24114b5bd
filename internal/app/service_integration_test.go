package service_test

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	repository "github.com/okian/plank/internal/adapters/repository"
	service "github.com/okian/plank/internal/app"
	"github.com/okian/plank/internal/domain/model"
	"github.com/okian/plank/internal/domain/pose"
	. "github.com/smartystreets/goconvey/convey"
)

// at builds a fully visible landmark at the given normalized position.
func at(x, y float64) pose.Landmark {
	return pose.Landmark{X: x, Y: y, Visibility: 1.0}
}

// plankFrame is a clean forearm plank seen from the side: body line near
// straight, elbow under the shoulder, head neutral. It classifies as a
// plank with the default calibration.
func plankFrame() pose.Frame {
	f := make(pose.Frame, pose.LandmarkCount)
	f[pose.Nose] = at(0.25, 0.52)
	f[pose.LeftShoulder] = at(0.30, 0.55)
	f[pose.LeftElbow] = at(0.30, 0.70)
	f[pose.LeftWrist] = at(0.40, 0.70)
	f[pose.LeftHip] = at(0.50, 0.56)
	f[pose.LeftKnee] = at(0.65, 0.585)
	f[pose.LeftAnkle] = at(0.80, 0.61)
	return f
}

// holdFrame wraps a landmark frame in the submission envelope.
func holdFrame(id, sessionID, subjectID string, ts time.Time, landmarks pose.Frame) model.Frame {
	return model.Frame{
		FrameID:   id,
		SessionID: sessionID,
		SubjectID: subjectID,
		TS:        ts,
		Landmarks: landmarks,
	}
}

func TestServiceIntegration(t *testing.T) {
	Convey("Given a service with full integration", t, func() {
		// One worker keeps frames of a session in submission order.
		svc := service.New(
			service.WithWorkerCount(1),
			service.WithQueueSize(1000),
			service.WithDedupeSize(500),
			service.WithHistoryPath(filepath.Join(t.TempDir(), "holds.db")),
		)
		defer svc.Stop()

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		Convey("When starting the service", func() {
			err := svc.Start(ctx)

			Convey("Then it should start successfully", func() {
				So(err, ShouldBeNil)
			})

			Convey("And the service should be running", func() {
				stats := svc.GetStats()
				So(stats["started"], ShouldEqual, true)
			})
		})

		Convey("When a subject holds a plank", func() {
			err := svc.Start(ctx)
			So(err, ShouldBeNil)

			// 20 passing frames at 10 Hz. The gate confirms on the 5th,
			// so the hold clock runs from 0.4s to 1.9s.
			base := time.Now()
			for i := 0; i < 20; i++ {
				f := holdFrame(
					fmt.Sprintf("hold-pass-%d", i),
					"session-hold", "subject-hold",
					base.Add(time.Duration(i)*100*time.Millisecond),
					plankFrame(),
				)
				So(svc.EnqueueFrame(ctx, f), ShouldBeTrue)
			}

			// Give the worker time to process
			time.Sleep(500 * time.Millisecond)

			Convey("Then the session should show a live hold", func() {
				st, ok := svc.SessionState(ctx, "session-hold")
				So(ok, ShouldBeTrue)
				So(st.SubjectID, ShouldEqual, "subject-hold")
				So(st.IsPlank, ShouldBeTrue)
				So(st.Active, ShouldBeTrue)
				So(st.CurrentSeconds, ShouldAlmostEqual, 1.5, 0.001)
				So(st.Holds, ShouldEqual, 0)
				So(st.Frames, ShouldEqual, 20)
			})

			Convey("And when the subject collapses for the whole grace window", func() {
				for i := 0; i < 30; i++ {
					f := holdFrame(
						fmt.Sprintf("hold-fail-%d", i),
						"session-hold", "subject-hold",
						base.Add(2*time.Second+time.Duration(i)*100*time.Millisecond),
						pose.Frame{},
					)
					So(svc.EnqueueFrame(ctx, f), ShouldBeTrue)
				}

				// Give the worker time to process
				time.Sleep(500 * time.Millisecond)

				Convey("Then the session should have one completed hold", func() {
					st, ok := svc.SessionState(ctx, "session-hold")
					So(ok, ShouldBeTrue)
					So(st.Active, ShouldBeFalse)
					So(st.Holds, ShouldEqual, 1)
					So(st.BestSeconds, ShouldAlmostEqual, 1.5, 0.001)
					So(st.Frames, ShouldEqual, 50)
				})

				Convey("And the leaderboard should record the best hold", func() {
					entries, err := svc.TopN(ctx, 10)
					So(err, ShouldBeNil)
					So(len(entries), ShouldEqual, 1)
					So(entries[0].Rank, ShouldEqual, 1)
					So(entries[0].SubjectID, ShouldEqual, "subject-hold")
					So(entries[0].BestSeconds, ShouldAlmostEqual, 1.5, 0.001)

					entry, err := svc.Rank(ctx, "subject-hold")
					So(err, ShouldBeNil)
					So(entry.Rank, ShouldEqual, 1)
					So(entry.BestSeconds, ShouldAlmostEqual, 1.5, 0.001)
				})

				Convey("And hold history should keep the record", func() {
					holds, err := svc.RecentHolds(ctx, "subject-hold", 10)
					So(err, ShouldBeNil)
					So(len(holds), ShouldEqual, 1)
					So(holds[0].SessionID, ShouldEqual, "session-hold")
					So(holds[0].Seconds, ShouldAlmostEqual, 1.5, 0.001)
					So(holds[0].Frames, ShouldEqual, 16)
					So(holds[0].View, ShouldEqual, "side")
					So(holds[0].AvgConfidence, ShouldBeGreaterThan, 0)

					sum, err := svc.HoldSummary(ctx, "subject-hold")
					So(err, ShouldBeNil)
					So(sum.Holds, ShouldEqual, 1)
					So(sum.BestSeconds, ShouldAlmostEqual, 1.5, 0.001)
					So(sum.TotalSeconds, ShouldAlmostEqual, 1.5, 0.001)
				})

				Convey("And resetting the session should clear gate progress", func() {
					So(svc.ResetSession(ctx, "session-hold"), ShouldBeTrue)

					st, ok := svc.SessionState(ctx, "session-hold")
					So(ok, ShouldBeTrue)
					So(st.Active, ShouldBeFalse)
					So(st.PassStreak, ShouldEqual, 0)
					So(st.FailStreak, ShouldEqual, 0)
					// Best hold and counters survive a reset
					So(st.BestSeconds, ShouldAlmostEqual, 1.5, 0.001)
					So(st.Holds, ShouldEqual, 1)
				})
			})
		})

		Convey("When handling high-volume traffic", func() {
			err := svc.Start(ctx)
			So(err, ShouldBeNil)

			Convey("And enqueueing many frames across sessions", func() {
				numFrames := 100
				successCount := 0
				for i := 0; i < numFrames; i++ {
					f := holdFrame(
						fmt.Sprintf("bulk-frame-%d", i),
						fmt.Sprintf("bulk-session-%d", i%10),
						fmt.Sprintf("bulk-subject-%d", i%10),
						time.Now(),
						pose.Frame{},
					)
					if svc.EnqueueFrame(ctx, f) {
						successCount++
					}
				}

				Convey("Then all frames should fit the queue", func() {
					So(successCount, ShouldEqual, numFrames)
				})

				// Give the worker time to process
				time.Sleep(500 * time.Millisecond)

				Convey("And every session should be tracked", func() {
					stats := svc.GetStats()
					So(stats["total_sessions"], ShouldEqual, 10)
					// Frames without holds never reach the leaderboard
					So(stats["total_subjects"], ShouldEqual, 0)
				})
			})
		})

		Convey("When handling service lifecycle", func() {
			Convey("And starting and stopping multiple times", func() {
				// Start service
				err := svc.Start(ctx)
				So(err, ShouldBeNil)

				// Give it time to start
				time.Sleep(100 * time.Millisecond)

				// Stop service
				svc.Stop()

				// Give it time to stop
				time.Sleep(100 * time.Millisecond)

				// Check it's stopped
				stats := svc.GetStats()
				So(stats["started"], ShouldEqual, false)

				// Start again
				err = svc.Start(ctx)
				So(err, ShouldBeNil)

				// Give it time to start
				time.Sleep(100 * time.Millisecond)

				// Check it's started again
				stats = svc.GetStats()
				So(stats["started"], ShouldEqual, true)
			})
		})

		Convey("When handling edge cases", func() {
			err := svc.Start(ctx)
			So(err, ShouldBeNil)

			Convey("And enqueueing frames with odd payloads", func() {
				oddFrames := []model.Frame{
					holdFrame("odd-1", "odd-session", "odd-subject", time.Time{}, plankFrame()),
					holdFrame("odd-2", "odd-session", "odd-subject", time.Now(), nil),
					holdFrame("odd-3", "odd-session", "odd-subject", time.Now(), plankFrame()[:7]),
					holdFrame("odd-4-"+string(make([]byte, 1000)), "odd-session", "odd-subject", time.Now(), pose.Frame{}),
				}

				for _, f := range oddFrames {
					So(svc.EnqueueFrame(ctx, f), ShouldBeTrue)
				}

				// Give the worker time to process
				time.Sleep(500 * time.Millisecond)

				Convey("Then odd payloads should be handled", func() {
					// Service should still be running
					stats := svc.GetStats()
					So(stats["started"], ShouldEqual, true)
				})
			})
		})
	})
}

func TestServiceConcurrency(t *testing.T) {
	Convey("Given a service with concurrent operations", t, func() {
		svc := service.New(
			service.WithWorkerCount(4),
			service.WithQueueSize(2000),
			service.WithDedupeSize(1000),
			service.WithHistoryPath(""),
		)
		defer svc.Stop()

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		err := svc.Start(ctx)
		So(err, ShouldBeNil)

		// Give service time to start
		time.Sleep(100 * time.Millisecond)

		Convey("When multiple goroutines enqueue frames concurrently", func() {
			numGoroutines := 10
			framesPerGoroutine := 50
			done := make(chan bool, numGoroutines)

			// Start multiple goroutines
			for i := 0; i < numGoroutines; i++ {
				go func(goroutineID int) {
					for j := 0; j < framesPerGoroutine; j++ {
						f := holdFrame(
							fmt.Sprintf("concurrent-%d-%d", goroutineID, j),
							fmt.Sprintf("concurrent-session-%d", goroutineID),
							fmt.Sprintf("concurrent-subject-%d", goroutineID),
							time.Now(),
							pose.Frame{},
						)
						svc.EnqueueFrame(ctx, f)
					}
					done <- true
				}(i)
			}

			// Wait for all goroutines to complete
			for i := 0; i < numGoroutines; i++ {
				<-done
			}

			// Give workers time to process
			time.Sleep(1 * time.Second)

			Convey("Then the service should stay healthy", func() {
				stats := svc.GetStats()
				So(stats["started"], ShouldEqual, true)
				So(stats["total_sessions"], ShouldEqual, numGoroutines)
			})
		})

		Convey("When multiple goroutines query the leaderboard concurrently", func() {
			numGoroutines := 20
			done := make(chan bool, numGoroutines)
			queryErrors := make(chan error, numGoroutines*20) // Buffer for potential errors

			// Start multiple goroutines querying
			for i := 0; i < numGoroutines; i++ {
				go func(goroutineID int) {
					for j := 0; j < 10; j++ {
						// Query TopN
						entries, err := svc.TopN(ctx, 10)
						if err != nil {
							queryErrors <- err
							continue
						}
						if entries == nil {
							queryErrors <- fmt.Errorf("entries is nil")
							continue
						}

						// Query individual rank
						if len(entries) > 0 {
							entry, err := svc.Rank(ctx, entries[0].SubjectID)
							if err != nil {
								queryErrors <- err
								continue
							}
							if entry.SubjectID == "" {
								queryErrors <- fmt.Errorf("subject ID is empty")
								continue
							}
						}

						// Sessions are safe to poll alongside
						svc.SessionState(ctx, fmt.Sprintf("concurrent-session-%d", goroutineID))
					}
					done <- true
				}(i)
			}

			// Wait for all goroutines to complete
			for i := 0; i < numGoroutines; i++ {
				<-done
			}

			Convey("Then all queries should succeed", func() {
				// Check if any errors occurred
				select {
				case err := <-queryErrors:
					So(err, ShouldBeNil)
				default:
					// No errors, test passed
					So(true, ShouldBeTrue)
				}
			})
		})
	})
}

func TestServiceErrorHandling(t *testing.T) {
	Convey("Given a service with error conditions", t, func() {
		svc := service.New(
			service.WithWorkerCount(1),
			service.WithQueueSize(10), // Small queue to test backpressure
			service.WithDedupeSize(5),
			service.WithHistoryPath(""),
		)
		defer svc.Stop()

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		err := svc.Start(ctx)
		So(err, ShouldBeNil)

		// Give service time to start
		time.Sleep(100 * time.Millisecond)

		Convey("When enqueueing frames beyond queue capacity", func() {
			// A tight producer loop outruns the single worker
			numFrames := 5000
			successCount := 0
			for i := 0; i < numFrames; i++ {
				f := holdFrame(
					fmt.Sprintf("backpressure-%d", i),
					"backpressure-session", "backpressure-subject",
					time.Now(),
					pose.Frame{},
				)
				if svc.EnqueueFrame(ctx, f) {
					successCount++
				}
			}

			Convey("Then some frames should be rejected due to backpressure", func() {
				So(successCount, ShouldBeLessThan, numFrames)
				So(successCount, ShouldBeGreaterThan, 0)
			})
		})

		Convey("When querying non-existent subjects", func() {
			entry, err := svc.Rank(ctx, "non-existent-subject")

			Convey("Then it should return a not-found error", func() {
				So(err, ShouldNotBeNil)
				So(errors.Is(err, repository.ErrNotFound), ShouldBeTrue)
				So(entry.SubjectID, ShouldEqual, "")
			})
		})

		Convey("When querying with invalid limits", func() {
			entries, err := svc.TopN(ctx, 0)

			Convey("Then it should return an error", func() {
				So(err, ShouldNotBeNil)
				So(entries, ShouldBeNil)
			})
		})

		Convey("When querying with negative limits", func() {
			entries, err := svc.TopN(ctx, -1)

			Convey("Then it should return an error", func() {
				So(err, ShouldNotBeNil)
				So(errors.Is(err, repository.ErrInvalidLimit), ShouldBeTrue)
				So(entries, ShouldBeNil)
			})
		})
	})
}

func TestServicePerformance(t *testing.T) {
	Convey("Given a service for performance testing", t, func() {
		svc := service.New(
			service.WithWorkerCount(8),
			service.WithQueueSize(10000),
			service.WithDedupeSize(5000),
			service.WithHistoryPath(""),
		)
		defer svc.Stop()

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		err := svc.Start(ctx)
		So(err, ShouldBeNil)

		// Give service time to start
		time.Sleep(100 * time.Millisecond)

		Convey("When processing a large number of frames", func() {
			numFrames := 1000
			start := time.Now()

			// Enqueue frames
			for i := 0; i < numFrames; i++ {
				f := holdFrame(
					fmt.Sprintf("perf-frame-%d", i),
					fmt.Sprintf("perf-session-%d", i%100),
					fmt.Sprintf("perf-subject-%d", i%100),
					time.Now(),
					plankFrame(),
				)
				svc.EnqueueFrame(ctx, f)
			}

			enqueueTime := time.Since(start)

			// Give workers time to process
			time.Sleep(2 * time.Second)

			Convey("Then enqueueing should be fast", func() {
				// Should be able to enqueue 1000 frames in reasonable time
				So(enqueueTime, ShouldBeLessThan, 5*time.Second)
			})

			Convey("And leaderboard queries should be fast", func() {
				start := time.Now()
				entries, err := svc.TopN(ctx, 100)
				queryTime := time.Since(start)

				So(err, ShouldBeNil)
				So(entries, ShouldNotBeNil)
				So(queryTime, ShouldBeLessThan, 100*time.Millisecond)
			})

			Convey("And session polling should be fast", func() {
				start := time.Now()
				_, ok := svc.SessionState(ctx, "perf-session-0")
				queryTime := time.Since(start)

				So(ok, ShouldBeTrue)
				So(queryTime, ShouldBeLessThan, 100*time.Millisecond)
			})
		})
	})
}
