package pose

import "fmt"

// View selects the capture framing the visibility policy and check battery
// are tuned for.
type View int

const (
	// ViewSide expects the camera perpendicular to the body, one full side
	// chain visible. The strict visibility policy applies.
	ViewSide View = iota
	// ViewFront expects the camera facing the user head-on. The lenient
	// visibility policy applies and left/right symmetry becomes checkable.
	ViewFront
)

func (v View) String() string {
	switch v {
	case ViewSide:
		return "side"
	case ViewFront:
		return "front"
	default:
		return "unknown"
	}
}

// ParseView maps a configuration string to a View.
func ParseView(s string) (View, error) {
	switch s {
	case "side", "":
		return ViewSide, nil
	case "front", "frontal":
		return ViewFront, nil
	default:
		return ViewSide, fmt.Errorf("unknown capture view: %q", s)
	}
}

// SideIndices names the slots of one body side so checks never touch raw
// slot numbers.
type SideIndices struct {
	Shoulder Index
	Elbow    Index
	Wrist    Index
	Hip      Index
	Knee     Index
	Ankle    Index
}

// Left and Right are the two side chains.
var (
	Left  = SideIndices{LeftShoulder, LeftElbow, LeftWrist, LeftHip, LeftKnee, LeftAnkle}
	Right = SideIndices{RightShoulder, RightElbow, RightWrist, RightHip, RightKnee, RightAnkle}
)

// chain is the shoulder-hip-knee-ankle subset the side-view gate requires.
func (s SideIndices) chain() [4]Index {
	return [4]Index{s.Shoulder, s.Hip, s.Knee, s.Ankle}
}

// frontCritical must all be visible in the frontal policy; frontOptional
// needs a quorum. Elbows, knees and ankles are routinely cropped or occluded
// when the camera faces the user, hence the partial-credit rule.
var (
	frontCritical = []Index{Nose, LeftShoulder, RightShoulder, LeftHip, RightHip}
	frontOptional = []Index{LeftElbow, RightElbow, LeftKnee, RightKnee, LeftAnkle, RightAnkle}
)

const frontOptionalQuorum = 4

// Dominant returns the side chain the side-view checks should measure. A
// chain that fully clears minVisibility always beats one that does not;
// otherwise the higher summed visibility wins, ties going to the left chain.
func Dominant(f Frame, minVisibility float64) SideIndices {
	leftOK := sideChainVisible(f, Left, minVisibility)
	rightOK := sideChainVisible(f, Right, minVisibility)
	switch {
	case leftOK && !rightOK:
		return Left
	case rightOK && !leftOK:
		return Right
	}
	if chainVisibilitySum(f, Right) > chainVisibilitySum(f, Left) {
		return Right
	}
	return Left
}

func chainVisibilitySum(f Frame, s SideIndices) float64 {
	var sum float64
	for _, idx := range s.chain() {
		if l, ok := f.At(idx); ok && l.Finite() {
			sum += l.Visibility
		}
	}
	return sum
}

// SufficientlyVisible is the gate that must pass before any classification.
//
// Side view: the nose and every slot of one complete shoulder-hip-knee-ankle
// chain must each clear minVisibility. No averaging, no partial credit.
//
// Front view: the critical subset (nose, both shoulders, both hips) must all
// clear minVisibility, and at least 4 of the 6 optional slots (elbows,
// knees, ankles) must clear it too.
//
// A false return means "no person detected", a first-class outcome distinct
// from "person present with bad form".
func SufficientlyVisible(f Frame, minVisibility float64, view View) bool {
	switch view {
	case ViewFront:
		for _, idx := range frontCritical {
			if !f.Visible(idx, minVisibility) {
				return false
			}
		}
		visible := 0
		for _, idx := range frontOptional {
			if f.Visible(idx, minVisibility) {
				visible++
			}
		}
		return visible >= frontOptionalQuorum
	default:
		if !f.Visible(Nose, minVisibility) {
			return false
		}
		return sideChainVisible(f, Left, minVisibility) || sideChainVisible(f, Right, minVisibility)
	}
}

func sideChainVisible(f Frame, s SideIndices, minVisibility float64) bool {
	for _, idx := range s.chain() {
		if !f.Visible(idx, minVisibility) {
			return false
		}
	}
	return true
}
