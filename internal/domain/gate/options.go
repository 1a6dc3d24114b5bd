package gate

// Option configures a Gate during construction.
type Option func(*Gate)

// WithStabilityFrames sets how many consecutive passing frames confirm the
// position. New validates the value.
func WithStabilityFrames(n int) Option {
	return func(g *Gate) {
		g.stabilityFrames = n
	}
}

// WithGracePeriodFrames sets how many consecutive failing frames end a
// confirmed hold. New validates the value.
func WithGracePeriodFrames(n int) Option {
	return func(g *Gate) {
		g.graceFrames = n
	}
}
