package service

import (
	"errors"
)

// Sentinel error kinds for this package. These allow errors.Is/As from callers.
var (
	// ErrStart wraps component construction failures during Start.
	ErrStart = errors.New("service start failed")

	// ErrHistoryDisabled is returned by hold history reads when the
	// service runs without a history path. The HTTP layer translates it
	// to a 404.
	ErrHistoryDisabled = errors.New("hold history disabled")
)
