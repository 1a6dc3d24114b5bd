// Package worker defines worker contracts for asynchronous frame
// classification and hold bookkeeping.
package worker

import (
	"github.com/okian/plank/pkg/logger"
)

// Option applies a configuration option to the InMemoryWorker.
type Option func(*InMemoryWorker)

// WithName sets the worker name for identification and logging.
func WithName(name string) Option {
	return func(w *InMemoryWorker) {
		if name != "" {
			w.name = name
		}
	}
}

// WithView overrides the camera view label attached to hold records.
func WithView(view string) Option {
	return func(w *InMemoryWorker) {
		if view != "" {
			w.view = view
		}
	}
}

// WithProcessedCallback registers a callback invoked after each fully
// processed frame.
func WithProcessedCallback(fn func()) Option {
	return func(w *InMemoryWorker) {
		if fn != nil {
			w.onProcessed = fn
		}
	}
}

// WithLogger sets a custom logger for the worker.
func WithLogger(logger logger.Logger) Option {
	return func(w *InMemoryWorker) {
		if logger != nil {
			w.logger = logger
		}
	}
}
