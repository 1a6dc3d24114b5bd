package pose

import (
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

// dimSlots returns a copy of f with the given slots dropped below any
// reasonable threshold.
func dimSlots(f Frame, slots ...Index) Frame {
	out := make(Frame, len(f))
	copy(out, f)
	for _, idx := range slots {
		out[idx].Visibility = 0.05
	}
	return out
}

func TestParseView(t *testing.T) {
	Convey("Given capture view configuration strings", t, func() {
		Convey("Then known names parse", func() {
			v, err := ParseView("side")
			So(err, ShouldBeNil)
			So(v, ShouldEqual, ViewSide)
			So(v.String(), ShouldEqual, "side")

			v, err = ParseView("front")
			So(err, ShouldBeNil)
			So(v, ShouldEqual, ViewFront)
			So(v.String(), ShouldEqual, "front")

			v, err = ParseView("frontal")
			So(err, ShouldBeNil)
			So(v, ShouldEqual, ViewFront)
		})

		Convey("Then the empty string defaults to side", func() {
			v, err := ParseView("")
			So(err, ShouldBeNil)
			So(v, ShouldEqual, ViewSide)
		})

		Convey("Then unknown names error", func() {
			_, err := ParseView("overhead")
			So(err, ShouldNotBeNil)
		})
	})
}

func TestSufficientlyVisibleSide(t *testing.T) {
	Convey("Given the strict side-profile policy", t, func() {
		full := uniformFrame(0.9)

		Convey("When every slot is well visible", func() {
			So(SufficientlyVisible(full, 0.3, ViewSide), ShouldBeTrue)
		})

		Convey("When the nose is occluded", func() {
			f := dimSlots(full, Nose)
			So(SufficientlyVisible(f, 0.3, ViewSide), ShouldBeFalse)
		})

		Convey("When one side chain is occluded but the other is complete", func() {
			f := dimSlots(full, LeftShoulder, LeftHip, LeftKnee, LeftAnkle)
			So(SufficientlyVisible(f, 0.3, ViewSide), ShouldBeTrue)
		})

		Convey("When both chains each miss a single slot", func() {
			f := dimSlots(full, LeftKnee, RightAnkle)
			So(SufficientlyVisible(f, 0.3, ViewSide), ShouldBeFalse)
		})

		Convey("When the frame is empty", func() {
			So(SufficientlyVisible(Frame{}, 0.3, ViewSide), ShouldBeFalse)
		})

		Convey("When the frame is truncated before the hips", func() {
			So(SufficientlyVisible(full[:20], 0.3, ViewSide), ShouldBeFalse)
		})
	})
}

func TestSufficientlyVisibleFront(t *testing.T) {
	Convey("Given the lenient frontal policy", t, func() {
		full := uniformFrame(0.9)

		Convey("When everything is visible", func() {
			So(SufficientlyVisible(full, 0.3, ViewFront), ShouldBeTrue)
		})

		Convey("When a critical slot is occluded", func() {
			f := dimSlots(full, RightHip)
			So(SufficientlyVisible(f, 0.3, ViewFront), ShouldBeFalse)
		})

		Convey("When exactly two optional slots are occluded", func() {
			f := dimSlots(full, LeftElbow, RightAnkle)
			So(SufficientlyVisible(f, 0.3, ViewFront), ShouldBeTrue)
		})

		Convey("When three optional slots are occluded the quorum fails", func() {
			f := dimSlots(full, LeftElbow, RightElbow, LeftKnee)
			So(SufficientlyVisible(f, 0.3, ViewFront), ShouldBeFalse)
		})
	})
}

func TestVisibilityThresholdMonotonicity(t *testing.T) {
	Convey("Given frames with mixed visibility", t, func() {
		frames := []Frame{
			uniformFrame(0.9),
			uniformFrame(0.5),
			uniformFrame(0.2),
			dimSlots(uniformFrame(0.7), Nose),
			dimSlots(uniformFrame(0.7), LeftKnee, RightKnee),
		}
		thresholds := []float64{0.1, 0.3, 0.5, 0.7, 0.95}

		Convey("Then raising the threshold can only turn true into false", func() {
			for _, view := range []View{ViewSide, ViewFront} {
				for _, f := range frames {
					prev := SufficientlyVisible(f, thresholds[0], view)
					for _, thr := range thresholds[1:] {
						cur := SufficientlyVisible(f, thr, view)
						if cur {
							So(prev, ShouldBeTrue)
						}
						prev = cur
					}
				}
			}
		})
	})
}

func TestDominantSide(t *testing.T) {
	Convey("Given a frame with the right side better tracked", t, func() {
		f := dimSlots(uniformFrame(0.9), LeftShoulder, LeftHip)

		Convey("Then the right chain is dominant", func() {
			So(Dominant(f, 0.3), ShouldResemble, Right)
		})
	})

	Convey("Given a perfectly symmetric frame", t, func() {
		f := uniformFrame(0.9)

		Convey("Then ties go to the left chain", func() {
			So(Dominant(f, 0.3), ShouldResemble, Left)
		})
	})

	Convey("Given a right chain with more total visibility but an occluded slot", t, func() {
		f := uniformFrame(0.6)
		for _, idx := range []Index{RightShoulder, RightHip, RightKnee} {
			f[idx].Visibility = 0.95
		}
		f[RightAnkle].Visibility = 0.05

		Convey("Then the complete left chain wins regardless of the sums", func() {
			So(Dominant(f, 0.3), ShouldResemble, Left)
		})
	})

	Convey("Given an empty frame", t, func() {
		Convey("Then the left chain is returned by default", func() {
			So(Dominant(Frame{}, 0.3), ShouldResemble, Left)
		})
	})
}
