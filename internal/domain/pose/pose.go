// Package pose contains the landmark model produced by the external pose
// estimator and the geometric primitives the classifier is built on.
package pose

import "math"

// LandmarkCount is the number of slots in a full estimator frame.
const LandmarkCount = 33

// Index identifies one of the 33 fixed body-part slots. The numbering is a
// global contract with the pose estimator: slot 0 is always the nose, slot 11
// the left shoulder, and so on.
type Index int

// Body-part slots in estimator order.
const (
	Nose Index = iota
	LeftEyeInner
	LeftEye
	LeftEyeOuter
	RightEyeInner
	RightEye
	RightEyeOuter
	LeftEar
	RightEar
	MouthLeft
	MouthRight
	LeftShoulder
	RightShoulder
	LeftElbow
	RightElbow
	LeftWrist
	RightWrist
	LeftPinky
	RightPinky
	LeftIndex
	RightIndex
	LeftThumb
	RightThumb
	LeftHip
	RightHip
	LeftKnee
	RightKnee
	LeftAnkle
	RightAnkle
	LeftHeel
	RightHeel
	LeftFootIndex
	RightFootIndex
)

var indexNames = [LandmarkCount]string{
	"nose",
	"left_eye_inner", "left_eye", "left_eye_outer",
	"right_eye_inner", "right_eye", "right_eye_outer",
	"left_ear", "right_ear",
	"mouth_left", "mouth_right",
	"left_shoulder", "right_shoulder",
	"left_elbow", "right_elbow",
	"left_wrist", "right_wrist",
	"left_pinky", "right_pinky",
	"left_index", "right_index",
	"left_thumb", "right_thumb",
	"left_hip", "right_hip",
	"left_knee", "right_knee",
	"left_ankle", "right_ankle",
	"left_heel", "right_heel",
	"left_foot_index", "right_foot_index",
}

func (i Index) String() string {
	if i < 0 || int(i) >= LandmarkCount {
		return "unknown"
	}
	return indexNames[i]
}

// Landmark is a single tracked body point for one video frame. X and Y are
// normalized image-plane coordinates (conceptually [0,1], not clamped), Z is
// relative depth and unused by the classifier, Visibility is the estimator's
// confidence in [0,1] that the point is correctly located.
type Landmark struct {
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	Z          float64 `json:"z"`
	Visibility float64 `json:"visibility"`
}

// Finite reports whether the landmark carries usable numeric coordinates.
// Estimators occasionally emit NaN/Inf for points they lost mid-frame.
func (l Landmark) Finite() bool {
	for _, v := range []float64{l.X, l.Y, l.Visibility} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// Frame is one estimator result: up to 33 landmarks in slot order. A frame
// with fewer slots than a check needs is treated as "no person detected",
// never as an error.
type Frame []Landmark

// At returns the landmark in the given slot, reporting whether it exists.
func (f Frame) At(i Index) (Landmark, bool) {
	if i < 0 || int(i) >= len(f) {
		return Landmark{}, false
	}
	return f[i], true
}

// Visible reports whether the slot exists, carries finite values, and meets
// the minimum visibility threshold.
func (f Frame) Visible(i Index, minVisibility float64) bool {
	l, ok := f.At(i)
	return ok && l.Finite() && l.Visibility >= minVisibility
}
