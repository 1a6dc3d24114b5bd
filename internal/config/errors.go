package config

import (
	"errors"
)

// Sentinel error kinds for this package. Load wraps with ErrLoadConfig,
// Validate with ErrInvalidConfig, so callers can errors.Is either.
var (
	ErrInvalidConfig = errors.New("invalid config")
	ErrLoadConfig    = errors.New("load config failed")
)
