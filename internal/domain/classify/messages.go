package classify

// Feedback messages. Correction messages appear in battery order on failing
// frames; the three affirmations are graded by confidence tier and prepended
// only on passing frames. MsgNoPerson is the short-circuit outcome when the
// visibility gate fails and is deliberately distinct from every form
// correction.
const (
	MsgNoPerson = "No person detected. Move into the frame."

	MsgPerfectForm = "Perfect form! Keep holding!"
	MsgGoodForm    = "Good plank! Keep it up!"
	MsgHoldForm    = "Plank detected. Maintain your form."

	MsgHipsSagging    = "Your hips are sagging. Lift them up."
	MsgHipsTooHigh    = "Your hips are too high. Lower them into a straight line."
	MsgStraightenLegs = "Straighten your legs."
	MsgArmSupport     = "Support yourself on your forearms or straight arms."
	MsgElbowsUnder    = "Place your elbows under your shoulders."
	MsgHeadNeutral    = "Keep your head in line with your spine."
	MsgTorsoLevel     = "Keep your shoulders and hips level."
	MsgCenterBody     = "Center your whole body in the frame."
	MsgBalanceWeight  = "Balance your weight evenly on both sides."
)
