package classify

import (
	"math"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/plank/internal/domain/pose"
)

// at builds a fully visible landmark.
func at(x, y float64) pose.Landmark {
	return pose.Landmark{X: x, Y: y, Visibility: 1.0}
}

// sideFrame builds a frame with the left-side chain populated and the right
// side left invisible, the way a side camera sees a plank.
func sideFrame(nose, shoulder, elbow, wrist, hip, knee, ankle pose.Landmark) pose.Frame {
	f := make(pose.Frame, pose.LandmarkCount)
	f[pose.Nose] = nose
	f[pose.LeftShoulder] = shoulder
	f[pose.LeftElbow] = elbow
	f[pose.LeftWrist] = wrist
	f[pose.LeftHip] = hip
	f[pose.LeftKnee] = knee
	f[pose.LeftAnkle] = ankle
	return f
}

// perfectSideFrame is a clean forearm plank: body line ~173 degrees, legs
// straight, elbow under the shoulder, head neutral, centered.
func perfectSideFrame() pose.Frame {
	return sideFrame(
		at(0.25, 0.52),
		at(0.30, 0.55),
		at(0.30, 0.70),
		at(0.40, 0.70),
		at(0.50, 0.56),
		at(0.65, 0.585),
		at(0.80, 0.61),
	)
}

// frontFrame builds a frame with both sides populated, the way a frontal
// camera sees a plank.
func frontFrame(mut func(f pose.Frame)) pose.Frame {
	f := make(pose.Frame, pose.LandmarkCount)
	f[pose.Nose] = at(0.5, 0.58)
	f[pose.LeftShoulder] = at(0.38, 0.55)
	f[pose.RightShoulder] = at(0.62, 0.55)
	f[pose.LeftElbow] = at(0.36, 0.68)
	f[pose.RightElbow] = at(0.64, 0.68)
	f[pose.LeftWrist] = at(0.36, 0.78)
	f[pose.RightWrist] = at(0.64, 0.78)
	f[pose.LeftHip] = at(0.44, 0.50)
	f[pose.RightHip] = at(0.56, 0.50)
	f[pose.LeftKnee] = at(0.45, 0.45)
	f[pose.RightKnee] = at(0.55, 0.45)
	f[pose.LeftAnkle] = at(0.46, 0.40)
	f[pose.RightAnkle] = at(0.54, 0.40)
	if mut != nil {
		mut(f)
	}
	return f
}

func mustNew(t *testing.T, opts ...Option) *RuleClassifier {
	t.Helper()
	c, err := New(opts...)
	if err != nil {
		t.Fatalf("failed to build classifier: %v", err)
	}
	return c
}

func TestNewValidation(t *testing.T) {
	Convey("Given classifier construction", t, func() {
		Convey("When using defaults", func() {
			c, err := New()
			So(err, ShouldBeNil)
			So(c, ShouldNotBeNil)
			So(c.View(), ShouldEqual, pose.ViewSide)
		})

		Convey("When the visibility threshold is out of range", func() {
			_, err := New(WithMinVisibility(-0.1))
			So(err, ShouldEqual, ErrMinVisibilityRange)
			_, err = New(WithMinVisibility(1.5))
			So(err, ShouldEqual, ErrMinVisibilityRange)
			_, err = New(WithMinVisibility(math.NaN()))
			So(err, ShouldEqual, ErrMinVisibilityRange)
		})

		Convey("When the pass threshold is out of range", func() {
			_, err := New(WithPassThreshold(-5))
			So(err, ShouldEqual, ErrPassThresholdRange)
			_, err = New(WithPassThreshold(150))
			So(err, ShouldEqual, ErrPassThresholdRange)
		})

		Convey("When the violation cap is negative", func() {
			_, err := New(WithMaxViolations(-1))
			So(err, ShouldEqual, ErrMaxViolationsRange)
		})

		Convey("When options select the frontal battery", func() {
			c, err := New(WithView(pose.ViewFront))
			So(err, ShouldBeNil)
			So(c.View(), ShouldEqual, pose.ViewFront)
		})
	})
}

func TestClassifyPerfectForm(t *testing.T) {
	Convey("Given a clean forearm plank in side view", t, func() {
		c := mustNew(t)
		res := c.Classify(perfectSideFrame())

		Convey("Then it passes with full confidence", func() {
			So(res.IsPlank, ShouldBeTrue)
			So(res.Confidence, ShouldBeGreaterThanOrEqualTo, 85)
		})

		Convey("Then the first message is the top-tier affirmation", func() {
			So(len(res.Feedback), ShouldBeGreaterThanOrEqualTo, 1)
			So(res.Feedback[0], ShouldEqual, MsgPerfectForm)
		})
	})

	Convey("Given a straight-arm plank in side view", t, func() {
		c := mustNew(t)
		f := perfectSideFrame()
		f[pose.LeftElbow] = at(0.30, 0.63)
		f[pose.LeftWrist] = at(0.30, 0.71)
		res := c.Classify(f)

		Convey("Then the extended-arm band also passes", func() {
			So(res.IsPlank, ShouldBeTrue)
			So(res.Feedback[0], ShouldEqual, MsgPerfectForm)
		})
	})
}

func TestClassifySaggingHips(t *testing.T) {
	Convey("Given a plank with the hips dropped well below the body line", t, func() {
		c := mustNew(t)
		f := perfectSideFrame()
		f[pose.LeftHip] = at(0.50, 0.70)
		res := c.Classify(f)

		Convey("Then confidence drops and the hips message appears", func() {
			So(res.Confidence, ShouldBeLessThan, 85)
			So(res.Feedback, ShouldContain, MsgHipsSagging)
		})

		Convey("Then the verdict fails", func() {
			So(res.IsPlank, ShouldBeFalse)
		})
	})
}

func TestClassifyPikingHips(t *testing.T) {
	Convey("Given a plank with the hips piked high above the body line", t, func() {
		c := mustNew(t)
		f := perfectSideFrame()
		f[pose.LeftHip] = at(0.50, 0.40)
		res := c.Classify(f)

		Convey("Then the direction-specific message appears", func() {
			So(res.Feedback, ShouldContain, MsgHipsTooHigh)
			So(res.Feedback, ShouldNotContain, MsgHipsSagging)
			So(res.IsPlank, ShouldBeFalse)
		})
	})
}

func TestClassifyBentKnees(t *testing.T) {
	Convey("Given a plank with clearly bent knees", t, func() {
		c := mustNew(t)
		f := perfectSideFrame()
		f[pose.LeftKnee] = at(0.65, 0.70)
		res := c.Classify(f)

		Convey("Then only the leg check fires and the frame still passes", func() {
			So(res.IsPlank, ShouldBeTrue)
			So(res.Confidence, ShouldAlmostEqual, 75, 0.01)
			So(res.Feedback, ShouldResemble, []string{MsgGoodForm, MsgStraightenLegs})
		})
	})
}

func TestClassifyArmChecks(t *testing.T) {
	Convey("Given elbows flung out in front of the shoulders", t, func() {
		c := mustNew(t)
		f := perfectSideFrame()
		f[pose.LeftElbow] = at(0.44, 0.62)
		f[pose.LeftWrist] = at(0.30, 0.70)
		res := c.Classify(f)

		Convey("Then both arm violations fire", func() {
			So(res.Feedback, ShouldContain, MsgArmSupport)
			So(res.Feedback, ShouldContain, MsgElbowsUnder)
		})
	})

	Convey("Given an occluded arm in side view", t, func() {
		c := mustNew(t)
		f := perfectSideFrame()
		f[pose.LeftElbow] = pose.Landmark{X: 0.3, Y: 0.7, Visibility: 0.1}
		res := c.Classify(f)

		Convey("Then the arm check skips instead of punishing", func() {
			So(res.IsPlank, ShouldBeTrue)
			So(res.Feedback, ShouldNotContain, MsgArmSupport)
			So(res.Feedback, ShouldNotContain, MsgElbowsUnder)
		})
	})

	Convey("Given an arm landmark with NaN coordinates", t, func() {
		c := mustNew(t)
		f := perfectSideFrame()
		f[pose.LeftWrist] = pose.Landmark{X: math.NaN(), Y: math.NaN(), Visibility: 1.0}

		Convey("Then classification degrades instead of panicking", func() {
			So(func() { c.Classify(f) }, ShouldNotPanic)
			res := c.Classify(f)
			So(res.Confidence, ShouldBeGreaterThanOrEqualTo, 0)
			So(res.Confidence, ShouldBeLessThanOrEqualTo, 100)
		})
	})
}

func TestClassifyMinorViolations(t *testing.T) {
	Convey("Given a drooping head on an otherwise clean plank", t, func() {
		c := mustNew(t)
		f := perfectSideFrame()
		f[pose.Nose] = at(0.25, 0.75)
		res := c.Classify(f)

		Convey("Then the frame passes with the head hint attached", func() {
			So(res.IsPlank, ShouldBeTrue)
			So(res.Confidence, ShouldAlmostEqual, 90, 0.01)
			So(res.Feedback, ShouldResemble, []string{MsgPerfectForm, MsgHeadNeutral})
		})
	})

	Convey("Given a body framed too close to the top edge", t, func() {
		c := mustNew(t)
		f := perfectSideFrame()
		for i := range f {
			if f[i].Visibility > 0 {
				f[i].Y -= 0.40
			}
		}
		res := c.Classify(f)

		Convey("Then the centering hint appears and form checks stay quiet", func() {
			So(res.Feedback, ShouldContain, MsgCenterBody)
			So(res.Feedback, ShouldNotContain, MsgHipsSagging)
			So(res.Feedback, ShouldNotContain, MsgHipsTooHigh)
		})
	})
}

func TestClassifyNoPerson(t *testing.T) {
	Convey("Given frames the visibility gate rejects", t, func() {
		c := mustNew(t)

		cases := map[string]pose.Frame{
			"empty":           {},
			"truncated":       perfectSideFrame()[:20],
			"zero visibility": make(pose.Frame, pose.LandmarkCount),
		}

		for name, f := range cases {
			Convey("Then the "+name+" frame maps to the no-person outcome", func() {
				res := c.Classify(f)
				So(res.IsPlank, ShouldBeFalse)
				So(res.Confidence, ShouldEqual, 0)
				So(res.Feedback, ShouldResemble, []string{MsgNoPerson})
			})
		}

		Convey("Then the no-person text differs from every form correction", func() {
			res := c.Classify(pose.Frame{})
			bad := c.Classify(func() pose.Frame {
				f := perfectSideFrame()
				f[pose.LeftHip] = at(0.50, 0.70)
				return f
			}())
			So(bad.Feedback, ShouldNotContain, res.Feedback[0])
		})
	})
}

func TestClassifyViolationCap(t *testing.T) {
	Convey("Given a frame with many small violations but passable confidence", t, func() {
		c := mustNew(t)
		// Body shifted to the top band (centering), head drooped, elbow
		// offset with a supported angle, knee barely bent. Four violations
		// totalling well under 45 points.
		f := sideFrame(
			at(0.25, 0.33),
			at(0.30, 0.15),
			at(0.44, 0.26),
			at(0.56, 0.28),
			at(0.50, 0.16),
			at(0.65, 0.225),
			at(0.80, 0.21),
		)
		res := c.Classify(f)

		Convey("Then confidence clears the threshold", func() {
			So(res.Confidence, ShouldBeGreaterThanOrEqualTo, DefaultPassThreshold)
		})

		Convey("Then the violation cap still fails the frame", func() {
			So(len(res.Feedback), ShouldEqual, 4)
			So(res.IsPlank, ShouldBeFalse)
		})
	})
}

func TestClassifyConfidenceBounds(t *testing.T) {
	Convey("Given a battery of degraded frames", t, func() {
		c := mustNew(t)
		front := mustNew(t, WithView(pose.ViewFront))

		frames := []pose.Frame{
			perfectSideFrame(),
			func() pose.Frame { f := perfectSideFrame(); f[pose.LeftHip] = at(0.5, 0.9); return f }(),
			// Crumpled: everything wrong at once, cumulative penalties past 100.
			sideFrame(
				at(0.25, 0.95),
				at(0.30, 0.10),
				at(0.44, 0.30),
				at(0.30, 0.05),
				at(0.50, 0.90),
				at(0.60, 0.30),
				at(0.80, 0.88),
			),
			frontFrame(nil),
			frontFrame(func(f pose.Frame) { f[pose.LeftHip] = at(0.44, 0.95); f[pose.RightHip] = at(0.56, 0.95) }),
		}

		Convey("Then confidence always stays within [0, 100]", func() {
			for _, f := range frames {
				for _, cl := range []*RuleClassifier{c, front} {
					res := cl.Classify(f)
					So(res.Confidence, ShouldBeGreaterThanOrEqualTo, 0)
					So(res.Confidence, ShouldBeLessThanOrEqualTo, 100)
				}
			}
		})

		Convey("Then the verdict is consistent with threshold and cap", func() {
			for _, f := range frames {
				for _, cl := range []*RuleClassifier{c, front} {
					res := cl.Classify(f)
					violations := len(res.Feedback)
					if res.IsPlank {
						violations-- // the prepended affirmation is not a violation
						So(res.Confidence, ShouldBeGreaterThanOrEqualTo, DefaultPassThreshold)
						So(violations, ShouldBeLessThanOrEqualTo, DefaultMaxViolations)
					}
				}
			}
		})
	})
}

func TestClassifyFrontView(t *testing.T) {
	Convey("Given a clean plank seen from the front", t, func() {
		c := mustNew(t, WithView(pose.ViewFront))
		res := c.Classify(frontFrame(nil))

		Convey("Then it passes with full confidence", func() {
			So(res.IsPlank, ShouldBeTrue)
			So(res.Confidence, ShouldAlmostEqual, 100, 0.01)
			So(res.Feedback, ShouldResemble, []string{MsgPerfectForm})
		})
	})

	Convey("Given lopsided shoulders from the front", t, func() {
		c := mustNew(t, WithView(pose.ViewFront))
		f := frontFrame(func(f pose.Frame) {
			f[pose.LeftShoulder] = at(0.38, 0.49)
			f[pose.RightShoulder] = at(0.62, 0.61)
		})
		res := c.Classify(f)

		Convey("Then the symmetry check fires", func() {
			So(res.Feedback, ShouldContain, MsgBalanceWeight)
		})
	})

	Convey("Given a frontal frame with cropped ankles", t, func() {
		c := mustNew(t, WithView(pose.ViewFront))
		f := frontFrame(func(f pose.Frame) {
			f[pose.LeftAnkle].Visibility = 0.05
			f[pose.RightAnkle].Visibility = 0.05
		})
		res := c.Classify(f)

		Convey("Then classification proceeds on the knee anchor", func() {
			So(res.Confidence, ShouldBeGreaterThan, 0)
		})
	})

	Convey("Given the side battery never emits the symmetry message", t, func() {
		c := mustNew(t)
		frames := []pose.Frame{
			perfectSideFrame(),
			func() pose.Frame { f := perfectSideFrame(); f[pose.LeftHip] = at(0.5, 0.75); return f }(),
		}
		for _, f := range frames {
			So(c.Classify(f).Feedback, ShouldNotContain, MsgBalanceWeight)
		}
	})
}

func TestClassifyCustomKnobs(t *testing.T) {
	Convey("Given a stricter pass threshold", t, func() {
		c := mustNew(t, WithPassThreshold(95))
		f := perfectSideFrame()
		f[pose.Nose] = at(0.25, 0.75) // one minor violation, confidence 90

		Convey("Then a frame passing the default knobs now fails", func() {
			res := c.Classify(f)
			So(res.Confidence, ShouldAlmostEqual, 90, 0.01)
			So(res.IsPlank, ShouldBeFalse)
		})
	})

	Convey("Given a zero violation cap", t, func() {
		c := mustNew(t, WithMaxViolations(0))
		f := perfectSideFrame()
		f[pose.Nose] = at(0.25, 0.75)

		Convey("Then any single violation fails the frame", func() {
			res := c.Classify(f)
			So(res.IsPlank, ShouldBeFalse)
		})

		Convey("Then a flawless frame still passes", func() {
			res := c.Classify(perfectSideFrame())
			So(res.IsPlank, ShouldBeTrue)
		})
	})
}
