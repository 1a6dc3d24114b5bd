package session

// Option configures a Registry during construction.
type Option func(*Registry)

// WithStabilityFrames sets the gate confirmation threshold for every tracker
// the registry creates. NewRegistry validates the value.
func WithStabilityFrames(n int) Option {
	return func(r *Registry) {
		r.stabilityFrames = n
	}
}

// WithGracePeriodFrames sets the gate grace period for every tracker the
// registry creates. NewRegistry validates the value.
func WithGracePeriodFrames(n int) Option {
	return func(r *Registry) {
		r.graceFrames = n
	}
}
