package pose

import "math"

const (
	degreesPerRadian = 180 / math.Pi
	fullTurnDegrees  = 360
	halfTurnDegrees  = 180
)

// AngleBetween returns the interior angle at vertex b, in degrees, formed by
// the rays b->a and b->c. Only the image-plane x/y coordinates participate;
// depth is ignored. The result is always the non-reflex angle in [0, 180] and
// is symmetric under swapping a and c.
func AngleBetween(a, b, c Landmark) float64 {
	ra := math.Atan2(a.Y-b.Y, a.X-b.X)
	rc := math.Atan2(c.Y-b.Y, c.X-b.X)

	deg := math.Abs((ra - rc) * degreesPerRadian)
	if deg > halfTurnDegrees {
		deg = fullTurnDegrees - deg
	}
	return deg
}

// Midpoint returns the point halfway between a and b. Visibility is the
// lower of the two so a midpoint is never more trusted than its worse half.
func Midpoint(a, b Landmark) Landmark {
	return Landmark{
		X:          (a.X + b.X) / 2,
		Y:          (a.Y + b.Y) / 2,
		Z:          (a.Z + b.Z) / 2,
		Visibility: math.Min(a.Visibility, b.Visibility),
	}
}

// LineYAt returns the y coordinate of the line through a and b evaluated at
// x. For a vertical segment it returns the midpoint height, which is the
// only sensible answer the callers (above/below tests) can use.
func LineYAt(a, b Landmark, x float64) float64 {
	dx := b.X - a.X
	if math.Abs(dx) < 1e-9 {
		return (a.Y + b.Y) / 2
	}
	t := (x - a.X) / dx
	return a.Y + t*(b.Y-a.Y)
}
