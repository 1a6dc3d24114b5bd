package classify

import "github.com/okian/plank/internal/domain/pose"

// Option applies a configuration option to the RuleClassifier.
type Option func(*RuleClassifier)

// WithView selects the capture framing the check battery targets.
func WithView(view pose.View) Option {
	return func(c *RuleClassifier) {
		c.view = view
	}
}

// WithMinVisibility sets the per-landmark visibility threshold used by the
// gate and the per-check guards. Validated by New.
func WithMinVisibility(min float64) Option {
	return func(c *RuleClassifier) {
		c.minVisibility = min
	}
}

// WithPassThreshold sets the minimum confidence a frame needs to pass.
// Validated by New.
func WithPassThreshold(threshold float64) Option {
	return func(c *RuleClassifier) {
		c.passThreshold = threshold
	}
}

// WithMaxViolations caps how many violated checks a passing frame may carry.
// Confidence alone never decides the verdict. Validated by New.
func WithMaxViolations(max int) Option {
	return func(c *RuleClassifier) {
		c.maxViolations = max
	}
}
