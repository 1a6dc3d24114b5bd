package dedupe_test

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"

	dedupe "github.com/okian/plank/internal/domain/dedupe"
	. "github.com/smartystreets/goconvey/convey"
)

func TestInMemoryDeduper(t *testing.T) {
	Convey("Given a new InMemoryDeduper", t, func() {
		Convey("When creating a deduper with default options", func() {
			d := dedupe.NewInMemoryDeduper()

			Convey("Then it should have default configuration", func() {
				So(d, ShouldNotBeNil)
				So(d.Size(), ShouldEqual, 0)
			})
		})

		Convey("When creating a deduper with custom options", func() {
			d := dedupe.NewInMemoryDeduper(
				dedupe.WithMaxSize(100),
			)

			Convey("Then it should have custom configuration", func() {
				So(d, ShouldNotBeNil)
				So(d.Size(), ShouldEqual, 0)
			})
		})

		Convey("When recording frames", func() {
			d := dedupe.NewInMemoryDeduper()

			Convey("And the frame is new", func() {
				seen := d.SeenAndRecord(context.Background(), "frame-1")

				Convey("Then it should return false and record the frame", func() {
					So(seen, ShouldBeFalse)
					So(d.Size(), ShouldEqual, 1)
				})
			})

			Convey("And the frame was already seen", func() {
				// First time
				d.SeenAndRecord(context.Background(), "frame-1")

				// Second time
				seen := d.SeenAndRecord(context.Background(), "frame-1")

				Convey("Then it should return true", func() {
					So(seen, ShouldBeTrue)
					So(d.Size(), ShouldEqual, 1)
				})
			})

			Convey("And multiple frames are recorded", func() {
				frames := []string{"frame-1", "frame-2", "frame-3", "frame-4", "frame-5"}

				for _, frame := range frames {
					seen := d.SeenAndRecord(context.Background(), frame)
					So(seen, ShouldBeFalse)
				}

				Convey("Then all frames should be recorded", func() {
					So(d.Size(), ShouldEqual, int64(len(frames)))

					// Check that all frames are seen
					for _, frame := range frames {
						seen := d.SeenAndRecord(context.Background(), frame)
						So(seen, ShouldBeTrue)
					}
				})
			})
		})

		Convey("When unrecording frames", func() {
			d := dedupe.NewInMemoryDeduper()

			Convey("And the frame exists", func() {
				// Record the frame
				d.SeenAndRecord(context.Background(), "frame-1")
				So(d.Size(), ShouldEqual, 1)

				// Unrecord the frame
				d.Unrecord(context.Background(), "frame-1")

				Convey("Then it should be removed", func() {
					So(d.Size(), ShouldEqual, 0)

					// Should not be seen anymore
					seen := d.SeenAndRecord(context.Background(), "frame-1")
					So(seen, ShouldBeFalse)
				})
			})

			Convey("And the frame doesn't exist", func() {
				// Try to unrecord non-existent frame
				d.Unrecord(context.Background(), "nonexistent")

				Convey("Then it should not affect the size", func() {
					So(d.Size(), ShouldEqual, 0)
				})
			})

			Convey("And multiple frames are unrecorded", func() {
				frames := []string{"frame-1", "frame-2", "frame-3"}

				// Record all frames
				for _, frame := range frames {
					d.SeenAndRecord(context.Background(), frame)
				}
				So(d.Size(), ShouldEqual, int64(len(frames)))

				// Unrecord all frames
				for _, frame := range frames {
					d.Unrecord(context.Background(), frame)
				}

				Convey("Then all frames should be removed", func() {
					So(d.Size(), ShouldEqual, 0)

					// Check that none are seen
					for _, frame := range frames {
						seen := d.SeenAndRecord(context.Background(), frame)
						So(seen, ShouldBeFalse)
					}
				})
			})

			Convey("And the newest frame is unrecorded at capacity", func() {
				bounded := dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(3))
				for _, frame := range []string{"frame-1", "frame-2", "frame-3"} {
					bounded.SeenAndRecord(context.Background(), frame)
				}

				// Removes the tail; later inserts must still evict head-first
				bounded.Unrecord(context.Background(), "frame-3")
				So(bounded.Size(), ShouldEqual, 2)

				bounded.SeenAndRecord(context.Background(), "frame-4")
				bounded.SeenAndRecord(context.Background(), "frame-5")

				Convey("Then frame-1 is the next eviction victim", func() {
					So(bounded.Size(), ShouldEqual, 3)
					seen := bounded.SeenAndRecord(context.Background(), "frame-1")
					So(seen, ShouldBeFalse)
				})
			})
		})

		Convey("When using bounded mode with eviction", func() {
			d := dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(3))

			Convey("And the deduper is at capacity", func() {
				// Fill to capacity
				frames := []string{"frame-1", "frame-2", "frame-3"}
				for _, frame := range frames {
					seen := d.SeenAndRecord(context.Background(), frame)
					So(seen, ShouldBeFalse)
				}
				So(d.Size(), ShouldEqual, 3)

				// Add one more frame
				seen := d.SeenAndRecord(context.Background(), "frame-4")

				Convey("Then it should evict the oldest and add the new one", func() {
					So(seen, ShouldBeFalse)
					So(d.Size(), ShouldEqual, 3)

					// frame-1 was the oldest, so it is gone and gets
					// recorded afresh without growing the window
					originalSize := d.Size()
					seen1 := d.SeenAndRecord(context.Background(), "frame-1")
					So(seen1, ShouldBeFalse)
					So(d.Size(), ShouldEqual, originalSize)

					// Recording frame-1 evicted frame-2, and so on; the
					// window slides but never grows
					seen2 := d.SeenAndRecord(context.Background(), "frame-2")
					So(seen2, ShouldBeFalse)
					So(d.Size(), ShouldEqual, originalSize)

					seen3 := d.SeenAndRecord(context.Background(), "frame-3")
					So(seen3, ShouldBeFalse)
					So(d.Size(), ShouldEqual, originalSize)
				})
			})
		})

		Convey("When using unbounded mode", func() {
			d := dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(0))

			Convey("And many frames are recorded", func() {
				const numFrames = 1000
				for i := 0; i < numFrames; i++ {
					frameID := fmt.Sprintf("frame-%d", i)
					seen := d.SeenAndRecord(context.Background(), frameID)
					So(seen, ShouldBeFalse)
				}

				Convey("Then all frames should be recorded without eviction", func() {
					So(d.Size(), ShouldEqual, int64(numFrames))

					// Check that all frames are seen
					for i := 0; i < numFrames; i++ {
						frameID := fmt.Sprintf("frame-%d", i)
						seen := d.SeenAndRecord(context.Background(), frameID)
						So(seen, ShouldBeTrue)
					}
				})
			})
		})
	})
}

func TestDedupeConcurrency(t *testing.T) {
	Convey("Given a deduper with concurrent access", t, func() {
		d := dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(1000))
		const numGoroutines = 10
		const framesPerGoroutine = 100

		Convey("When multiple goroutines record frames concurrently", func() {
			var wg sync.WaitGroup

			for i := 0; i < numGoroutines; i++ {
				wg.Add(1)
				go func(goroutineID int) {
					defer wg.Done()
					for j := 0; j < framesPerGoroutine; j++ {
						frameID := fmt.Sprintf("frame-%d-%d", goroutineID, j)
						d.SeenAndRecord(context.Background(), frameID)
					}
				}(i)
			}

			wg.Wait()

			Convey("Then all frames should be recorded successfully", func() {
				So(d.Size(), ShouldEqual, int64(numGoroutines*framesPerGoroutine))
			})
		})

		Convey("When multiple goroutines unrecord frames concurrently", func() {
			// First, record some frames
			const numFrames = 500
			for i := 0; i < numFrames; i++ {
				frameID := fmt.Sprintf("frame-%d", i)
				d.SeenAndRecord(context.Background(), frameID)
			}

			So(d.Size(), ShouldEqual, int64(numFrames))

			// Now unrecord them concurrently
			var wg sync.WaitGroup
			for i := 0; i < numGoroutines; i++ {
				wg.Add(1)
				go func(goroutineID int) {
					defer wg.Done()
					for j := 0; j < numFrames/numGoroutines; j++ {
						frameID := fmt.Sprintf("frame-%d", goroutineID*(numFrames/numGoroutines)+j)
						d.Unrecord(context.Background(), frameID)
					}
				}(i)
			}

			wg.Wait()

			Convey("Then all frames should be unrecorded successfully", func() {
				So(d.Size(), ShouldEqual, 0)
			})
		})
	})
}

func TestDedupeEdgeCases(t *testing.T) {
	Convey("Given a deduper with edge cases", t, func() {
		Convey("When recording empty string", func() {
			d := dedupe.NewInMemoryDeduper()

			seen := d.SeenAndRecord(context.Background(), "")

			Convey("Then it should handle empty string", func() {
				So(seen, ShouldBeFalse)
				So(d.Size(), ShouldEqual, 1)

				// Should be seen on second call
				seen2 := d.SeenAndRecord(context.Background(), "")
				So(seen2, ShouldBeTrue)
			})
		})

		Convey("When recording very long strings", func() {
			d := dedupe.NewInMemoryDeduper()

			longString := strings.Repeat("a", 10000)
			seen := d.SeenAndRecord(context.Background(), longString)

			Convey("Then it should handle long strings", func() {
				So(seen, ShouldBeFalse)
				So(d.Size(), ShouldEqual, 1)

				// Should be seen on second call
				seen2 := d.SeenAndRecord(context.Background(), longString)
				So(seen2, ShouldBeTrue)
			})
		})

		Convey("When using nil context", func() {
			d := dedupe.NewInMemoryDeduper()

			Convey("Then it should not panic", func() {
				So(func() { d.SeenAndRecord(nil, "frame-1") }, ShouldNotPanic)
				So(func() { d.Unrecord(nil, "frame-1") }, ShouldNotPanic)
			})
		})

		Convey("When using very small max size", func() {
			d := dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(1))

			Convey("And adding multiple frames", func() {
				// First frame
				seen1 := d.SeenAndRecord(context.Background(), "frame-1")
				So(seen1, ShouldBeFalse)
				So(d.Size(), ShouldEqual, 1)

				// Second frame should evict the first
				seen2 := d.SeenAndRecord(context.Background(), "frame-2")
				So(seen2, ShouldBeFalse)
				So(d.Size(), ShouldEqual, 1)

				// First frame was evicted, so it records afresh and in
				// turn evicts the second
				seen1Again := d.SeenAndRecord(context.Background(), "frame-1")
				So(seen1Again, ShouldBeFalse)
				So(d.Size(), ShouldEqual, 1)

				seen2Again := d.SeenAndRecord(context.Background(), "frame-2")
				So(seen2Again, ShouldBeFalse)
				So(d.Size(), ShouldEqual, 1)
			})
		})

		Convey("When using negative max size", func() {
			d := dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(-1))

			Convey("Then it should be unbounded", func() {
				const numFrames = 1000
				for i := 0; i < numFrames; i++ {
					frameID := fmt.Sprintf("frame-%d", i)
					seen := d.SeenAndRecord(context.Background(), frameID)
					So(seen, ShouldBeFalse)
				}

				So(d.Size(), ShouldEqual, int64(numFrames))
			})
		})
	})
}

func TestDedupeOptions(t *testing.T) {
	Convey("Given dedupe options", t, func() {
		Convey("When using WithMaxSize", func() {
			Convey("Then it should set the max size", func() {
				d := dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(500))
				So(d, ShouldNotBeNil)
			})

			Convey("And when max size is zero", func() {
				d := dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(0))
				So(d, ShouldNotBeNil)
			})

			Convey("And when max size is negative", func() {
				d := dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(-100))
				So(d, ShouldNotBeNil)
			})
		})
	})
}
