// Package classify turns one landmark frame into a plank verdict: a pass/fail
// decision, a 0-100 confidence score, and ordered correction feedback.
//
// The classifier is a fixed battery of geometric checks. Every check measures
// angles or offsets between named landmarks, subtracts a penalty when
// violated, and contributes exactly one feedback message. It is stateless and
// re-entrant; temporal smoothing lives in the gate package.
package classify

import (
	"math"

	"github.com/okian/plank/internal/domain/pose"
)

// Calibrated defaults for the tunable knobs. Hand-tuned against a ~10 Hz
// webcam feed; treat as configuration, not biomechanical truth.
const (
	DefaultMinVisibility = 0.3
	DefaultPassThreshold = 55.0
	DefaultMaxViolations = 3
)

const maxConfidence = 100.0

// Acceptable bands and offsets, in degrees for angles and normalized image
// units for offsets. The angle primitive never exceeds 180, so upper bounds
// past that only matter if a band is retuned onto a signed measure.
const (
	bodyLineMinDeg    = 150.0
	bodyLineMaxDeg    = 195.0
	legMinDeg         = 155.0
	legMaxDeg         = 180.0
	forearmMinDeg     = 70.0
	forearmMaxDeg     = 130.0
	straightArmMinDeg = 145.0
	straightArmMaxDeg = 200.0
	headOffsetMax     = 0.15
	torsoTiltMax      = 0.12
	elbowOffsetMax    = 0.12
	centerBandMin     = 0.2
	centerBandMax     = 0.8
	symmetryOffsetMax = 0.1
	frontSagMax       = 0.1
)

// Penalty per violated check. Independent and additive; several checks can
// fail on the same frame.
const (
	penaltySag         = 35.0
	penaltyPike        = 30.0
	penaltyLegsMin     = 10.0
	penaltyLegsMax     = 25.0
	penaltyLegsScale   = 0.5
	penaltyArmBand     = 20.0
	penaltyElbowOffset = 10.0
	penaltyHead        = 10.0
	penaltyTorso       = 15.0
	penaltyCentering   = 10.0
	penaltySymmetry    = 15.0
)

// Affirmation tiers for passing frames.
const (
	tierPerfect = 85.0
	tierGood    = 70.0
)

// Result is the classifier output for one frame.
//
// Feedback is ordered most-important-first. On a failing frame it holds one
// message per violated check in battery order; on a passing frame a single
// graded affirmation is prepended, so the head of the list is always the one
// message a UI should surface.
type Result struct {
	IsPlank    bool     `json:"is_plank"`
	Confidence float64  `json:"confidence"`
	Feedback   []string `json:"feedback"`
}

// Classifier produces a Result for a single frame. Implementations must be
// safe for concurrent use.
type Classifier interface {
	Classify(f pose.Frame) Result
}

// RuleClassifier implements Classifier with the geometric check battery.
type RuleClassifier struct {
	view          pose.View
	minVisibility float64
	passThreshold float64
	maxViolations int
}

// New creates a classifier, validating the calibration knobs. Out-of-range
// values are programming errors and fail here rather than surfacing as odd
// verdicts mid-stream.
func New(opts ...Option) (*RuleClassifier, error) {
	c := &RuleClassifier{
		view:          pose.ViewSide,
		minVisibility: DefaultMinVisibility,
		passThreshold: DefaultPassThreshold,
		maxViolations: DefaultMaxViolations,
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.minVisibility < 0 || c.minVisibility > 1 || math.IsNaN(c.minVisibility) {
		return nil, ErrMinVisibilityRange
	}
	if c.passThreshold < 0 || c.passThreshold > maxConfidence || math.IsNaN(c.passThreshold) {
		return nil, ErrPassThresholdRange
	}
	if c.maxViolations < 0 {
		return nil, ErrMaxViolationsRange
	}
	return c, nil
}

// View reports which capture framing the battery is tuned for.
func (c *RuleClassifier) View() pose.View { return c.view }

// Classify evaluates one frame.
func (c *RuleClassifier) Classify(f pose.Frame) Result {
	if !pose.SufficientlyVisible(f, c.minVisibility, c.view) {
		return Result{Confidence: 0, Feedback: []string{MsgNoPerson}}
	}

	ev := &evaluation{confidence: maxConfidence}
	switch c.view {
	case pose.ViewFront:
		c.evaluateFront(f, ev)
	default:
		c.evaluateSide(f, ev)
	}

	confidence := math.Max(0, ev.confidence)
	pass := confidence >= c.passThreshold && len(ev.feedback) <= c.maxViolations

	feedback := ev.feedback
	if pass {
		feedback = append([]string{affirmation(confidence)}, feedback...)
	}
	return Result{IsPlank: pass, Confidence: confidence, Feedback: feedback}
}

// evaluation accumulates the battery outcome for one frame.
type evaluation struct {
	confidence float64
	feedback   []string
}

func (e *evaluation) violate(penalty float64, msg string) {
	e.confidence -= penalty
	e.feedback = append(e.feedback, msg)
}

func affirmation(confidence float64) string {
	switch {
	case confidence >= tierPerfect:
		return MsgPerfectForm
	case confidence >= tierGood:
		return MsgGoodForm
	default:
		return MsgHoldForm
	}
}

// evaluateSide runs the battery on the dominant side chain. The visibility
// gate has already guaranteed the nose and one full chain, so the core
// landmarks resolve; the arm slots are guarded per check.
func (c *RuleClassifier) evaluateSide(f pose.Frame, ev *evaluation) {
	side := pose.Dominant(f, c.minVisibility)
	shoulder, _ := f.At(side.Shoulder)
	hip, _ := f.At(side.Hip)
	knee, _ := f.At(side.Knee)
	ankle, _ := f.At(side.Ankle)
	nose, _ := f.At(pose.Nose)

	c.checkBodyLine(shoulder, hip, ankle, ev)
	c.checkLegs(hip, knee, ankle, ev)
	c.checkArms(f, side, ev)
	c.checkHead(nose, shoulder, ev)
	c.checkTorso(shoulder, hip, ev)
	c.checkCentering(shoulder, hip, ankle, ev)
}

// evaluateFront runs the battery on left/right midpoints, then the
// frontal-only symmetry check. Slots the lenient gate allowed to be missing
// are skipped, never punished.
func (c *RuleClassifier) evaluateFront(f pose.Frame, ev *evaluation) {
	shoulderMid, _ := c.midpoint(f, pose.LeftShoulder, pose.RightShoulder)
	hipMid, _ := c.midpoint(f, pose.LeftHip, pose.RightHip)
	kneeMid, kneeOK := c.midpoint(f, pose.LeftKnee, pose.RightKnee)
	ankleMid, ankleOK := c.midpoint(f, pose.LeftAnkle, pose.RightAnkle)
	nose, _ := f.At(pose.Nose)

	// The levelness variant of the body-line check: anchor the far end of
	// the body at the ankles, or the knees when the ankles are cropped.
	anchor, anchorOK := ankleMid, ankleOK
	if !anchorOK {
		anchor, anchorOK = kneeMid, kneeOK
	}

	if anchorOK {
		c.checkBodyLevel(shoulderMid, hipMid, anchor, ev)
	}
	if kneeOK && ankleOK {
		c.checkLegs(hipMid, kneeMid, ankleMid, ev)
	}
	c.checkArmsFront(f, ev)
	c.checkHead(nose, shoulderMid, ev)
	c.checkTorso(shoulderMid, hipMid, ev)
	if anchorOK {
		c.checkCentering(shoulderMid, hipMid, anchor, ev)
	}
	c.checkSymmetry(f, ev)
}

// checkBodyLine is the dominant check: the shoulder-hip-ankle angle must sit
// near a straight line. The unsigned angle cannot tell sag from pike, so the
// hip's height against the shoulder-ankle segment disambiguates. Image y
// grows downward: below the line is the larger y.
func (c *RuleClassifier) checkBodyLine(shoulder, hip, ankle pose.Landmark, ev *evaluation) {
	angle := pose.AngleBetween(shoulder, hip, ankle)
	if angle >= bodyLineMinDeg && angle <= bodyLineMaxDeg {
		return
	}
	if hip.Y > pose.LineYAt(shoulder, ankle, hip.X) {
		ev.violate(penaltySag, MsgHipsSagging)
	} else {
		ev.violate(penaltyPike, MsgHipsTooHigh)
	}
}

// checkBodyLevel is the frontal equivalent of checkBodyLine, comparing the
// hip midpoint's height against the shoulder-to-anchor segment.
func (c *RuleClassifier) checkBodyLevel(shoulder, hip, anchor pose.Landmark, ev *evaluation) {
	drop := hip.Y - pose.LineYAt(shoulder, anchor, hip.X)
	switch {
	case drop > frontSagMax:
		ev.violate(penaltySag, MsgHipsSagging)
	case drop < -frontSagMax:
		ev.violate(penaltyPike, MsgHipsTooHigh)
	}
}

// checkLegs penalizes bent knees, scaling with how far the hip-knee-ankle
// angle falls below the band.
func (c *RuleClassifier) checkLegs(hip, knee, ankle pose.Landmark, ev *evaluation) {
	angle := pose.AngleBetween(hip, knee, ankle)
	if angle >= legMinDeg && angle <= legMaxDeg {
		return
	}
	deviation := legMinDeg - angle
	penalty := math.Min(penaltyLegsMax, penaltyLegsMin+deviation*penaltyLegsScale)
	ev.violate(penalty, MsgStraightenLegs)
}

// checkArms verifies the shoulder-elbow-wrist angle sits in the forearm band
// or the straight-arm band, and that the elbow stays under the shoulder. A
// side camera routinely hides the far arm, so missing arm slots skip the
// check rather than fail it.
func (c *RuleClassifier) checkArms(f pose.Frame, side pose.SideIndices, ev *evaluation) {
	if !f.Visible(side.Elbow, c.minVisibility) || !f.Visible(side.Wrist, c.minVisibility) {
		return
	}
	shoulder, _ := f.At(side.Shoulder)
	elbow, _ := f.At(side.Elbow)
	wrist, _ := f.At(side.Wrist)

	if !armAngleSupported(pose.AngleBetween(shoulder, elbow, wrist)) {
		ev.violate(penaltyArmBand, MsgArmSupport)
	}
	if math.Abs(elbow.X-shoulder.X) > elbowOffsetMax {
		ev.violate(penaltyElbowOffset, MsgElbowsUnder)
	}
}

// checkArmsFront evaluates whichever arms are visible. The violation fires
// once when no evaluated arm is in a supported position.
func (c *RuleClassifier) checkArmsFront(f pose.Frame, ev *evaluation) {
	evaluated := 0
	supported := 0
	offset := 0.0

	for _, side := range []pose.SideIndices{pose.Left, pose.Right} {
		if !f.Visible(side.Elbow, c.minVisibility) || !f.Visible(side.Wrist, c.minVisibility) {
			continue
		}
		shoulder, _ := f.At(side.Shoulder)
		elbow, _ := f.At(side.Elbow)
		wrist, _ := f.At(side.Wrist)

		evaluated++
		if armAngleSupported(pose.AngleBetween(shoulder, elbow, wrist)) {
			supported++
		}
		offset = math.Max(offset, math.Abs(elbow.X-shoulder.X))
	}

	if evaluated == 0 {
		return
	}
	if supported == 0 {
		ev.violate(penaltyArmBand, MsgArmSupport)
	}
	if offset > elbowOffsetMax {
		ev.violate(penaltyElbowOffset, MsgElbowsUnder)
	}
}

func armAngleSupported(angle float64) bool {
	forearm := angle >= forearmMinDeg && angle <= forearmMaxDeg
	straight := angle >= straightArmMinDeg && angle <= straightArmMaxDeg
	return forearm || straight
}

// checkHead penalizes a drooping or craning head via the nose-to-shoulder
// vertical offset.
func (c *RuleClassifier) checkHead(nose, shoulder pose.Landmark, ev *evaluation) {
	if math.Abs(nose.Y-shoulder.Y) > headOffsetMax {
		ev.violate(penaltyHead, MsgHeadNeutral)
	}
}

// checkTorso penalizes a tilted torso: shoulders and hips should read at
// similar heights when the body is parallel to the ground.
func (c *RuleClassifier) checkTorso(shoulder, hip pose.Landmark, ev *evaluation) {
	if math.Abs(shoulder.Y-hip.Y) > torsoTiltMax {
		ev.violate(penaltyTorso, MsgTorsoLevel)
	}
}

// checkCentering is a framing hint, not a form correction: the body's mean
// height must sit inside the central band of the image.
func (c *RuleClassifier) checkCentering(shoulder, hip, ankle pose.Landmark, ev *evaluation) {
	mean := (shoulder.Y + hip.Y + ankle.Y) / 3
	if mean < centerBandMin || mean > centerBandMax {
		ev.violate(penaltyCentering, MsgCenterBody)
	}
}

// checkSymmetry (frontal only) compares the heights of left/right landmark
// pairs; a large spread suggests uneven weight distribution.
func (c *RuleClassifier) checkSymmetry(f pose.Frame, ev *evaluation) {
	pairs := [][2]pose.Index{
		{pose.LeftShoulder, pose.RightShoulder},
		{pose.LeftHip, pose.RightHip},
		{pose.LeftKnee, pose.RightKnee},
	}
	for _, pair := range pairs {
		if !f.Visible(pair[0], c.minVisibility) || !f.Visible(pair[1], c.minVisibility) {
			continue
		}
		l, _ := f.At(pair[0])
		r, _ := f.At(pair[1])
		if math.Abs(l.Y-r.Y) > symmetryOffsetMax {
			ev.violate(penaltySymmetry, MsgBalanceWeight)
			return
		}
	}
}

// midpoint resolves the left/right pair into a single point: the true
// midpoint when both sides are visible, the visible side alone otherwise.
func (c *RuleClassifier) midpoint(f pose.Frame, l, r pose.Index) (pose.Landmark, bool) {
	lv := f.Visible(l, c.minVisibility)
	rv := f.Visible(r, c.minVisibility)
	ll, _ := f.At(l)
	rl, _ := f.At(r)
	switch {
	case lv && rv:
		return pose.Midpoint(ll, rl), true
	case lv:
		return ll, true
	case rv:
		return rl, true
	default:
		return pose.Landmark{}, false
	}
}
