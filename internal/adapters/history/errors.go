package history

import "errors"

// Sentinel kinds for hold history errors.
var (
	ErrEmptyPath    = errors.New("history path must not be empty")
	ErrInvalidLimit = errors.New("invalid history limit")
)
