// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Keys are grouped into sections; env overrides use PLANK_<SECTION>_<KEY>.
// - Provide New(ctx) to build a Config with defaults; Load layers file and env.
// - All future functions must accept context.Context as the first parameter.
// - External errors must be wrapped via this package's error helpers.
package config

import (
	"context"
	"fmt"
	"time"
)

// Config contains process configuration. Extend as needed.
type Config struct {
	Server      ServerConfig      `koanf:"server"`
	Log         LogConfig         `koanf:"log"`
	Queue       QueueConfig       `koanf:"queue"`
	Workers     WorkersConfig     `koanf:"workers"`
	Dedupe      DedupeConfig      `koanf:"dedupe"`
	Classifier  ClassifierConfig  `koanf:"classifier"`
	Gate        GateConfig        `koanf:"gate"`
	Session     SessionConfig     `koanf:"session"`
	History     HistoryConfig     `koanf:"history"`
	Leaderboard LeaderboardConfig `koanf:"leaderboard"`
}

// ServerConfig covers the HTTP listener.
type ServerConfig struct {
	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// Timeouts applied to the http.Server verbatim.
	ReadTimeout       time.Duration `koanf:"read_timeout"`
	WriteTimeout      time.Duration `koanf:"write_timeout"`
	IdleTimeout       time.Duration `koanf:"idle_timeout"`
	ReadHeaderTimeout time.Duration `koanf:"read_header_timeout"`
}

// LogConfig controls the process logger.
type LogConfig struct {
	// Level controls verbosity: debug, info, warn, error.
	Level string `koanf:"level"`
}

// QueueConfig bounds the in-memory frame queue.
type QueueConfig struct {
	Size int `koanf:"size"`
}

// WorkersConfig sets the classification worker pool size.
type WorkersConfig struct {
	Count int `koanf:"count"`
}

// DedupeConfig sets the size of the frame-id deduplication cache.
type DedupeConfig struct {
	Size int `koanf:"size"`
}

// ClassifierConfig carries the pose classifier calibration knobs.
type ClassifierConfig struct {
	// View selects the expected camera angle: side or front.
	View string `koanf:"view"`

	// MinVisibility is the landmark visibility floor in [0,1].
	MinVisibility float64 `koanf:"min_visibility"`

	// PassThreshold is the minimum confidence, in [0,100], for a
	// frame to count as a plank.
	PassThreshold float64 `koanf:"pass_threshold"`

	// MaxViolations caps how many simultaneous form violations a
	// passing frame may carry.
	MaxViolations int `koanf:"max_violations"`
}

// GateConfig carries the stability gate streak lengths.
type GateConfig struct {
	// StabilityFrames is the consecutive-pass streak required to
	// acquire a stable hold.
	StabilityFrames int `koanf:"stability_frames"`

	// GracePeriodFrames is the consecutive-fail streak tolerated
	// before a hold is lost.
	GracePeriodFrames int `koanf:"grace_period_frames"`
}

// SessionConfig controls the session registry.
type SessionConfig struct {
	// IdleTimeout is how long a session may go without frames before
	// the pruner drops it.
	IdleTimeout time.Duration `koanf:"idle_timeout"`
}

// HistoryConfig controls hold persistence.
type HistoryConfig struct {
	// Path names the SQLite file. Empty disables hold history.
	Path string `koanf:"path"`
}

// LeaderboardConfig controls the best-hold store.
type LeaderboardConfig struct {
	// SnapshotInterval is the cadence of ranked snapshot rebuilds.
	SnapshotInterval time.Duration `koanf:"snapshot_interval"`

	// TopCacheSize bounds the snapshot's cached prefix.
	TopCacheSize int `koanf:"top_cache_size"`

	// MaxLimit caps GET /leaderboard?limit.
	MaxLimit int `koanf:"max_limit"`
}

// New creates a Config using defaults. Context is accepted first to satisfy
// the project-wide convention; it is reserved for future use and is currently
// unused.
func New(_ context.Context) *Config {
	c := &Config{
		Server: ServerConfig{
			Addr:              ":8080",
			ReadTimeout:       15 * time.Second,
			WriteTimeout:      15 * time.Second,
			IdleTimeout:       60 * time.Second,
			ReadHeaderTimeout: 5 * time.Second,
		},
		Log: LogConfig{
			Level: "info",
		},
		Queue: QueueConfig{
			Size: 4096,
		},
		Workers: WorkersConfig{
			Count: 4,
		},
		Dedupe: DedupeConfig{
			Size: 100_000,
		},
		Classifier: ClassifierConfig{
			View:          "side",
			MinVisibility: 0.3,
			PassThreshold: 55,
			MaxViolations: 3,
		},
		Gate: GateConfig{
			StabilityFrames:   5,
			GracePeriodFrames: 30,
		},
		Session: SessionConfig{
			IdleTimeout: 5 * time.Minute,
		},
		History: HistoryConfig{
			Path: "plank.db",
		},
		Leaderboard: LeaderboardConfig{
			SnapshotInterval: 2 * time.Second,
			TopCacheSize:     1000,
			MaxLimit:         100,
		},
	}
	return c
}

// Validate rejects configurations the service cannot run with. It reports the
// first problem found so operators get a single actionable message.
func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return fmt.Errorf("%w: server.addr must not be empty", ErrInvalidConfig)
	}
	for _, d := range []struct {
		name string
		val  time.Duration
	}{
		{"server.read_timeout", c.Server.ReadTimeout},
		{"server.write_timeout", c.Server.WriteTimeout},
		{"server.idle_timeout", c.Server.IdleTimeout},
		{"server.read_header_timeout", c.Server.ReadHeaderTimeout},
		{"session.idle_timeout", c.Session.IdleTimeout},
		{"leaderboard.snapshot_interval", c.Leaderboard.SnapshotInterval},
	} {
		if d.val <= 0 {
			return fmt.Errorf("%w: %s must be positive", ErrInvalidConfig, d.name)
		}
	}
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("%w: log.level %q is not one of debug, info, warn, error", ErrInvalidConfig, c.Log.Level)
	}
	if c.Queue.Size < 1 {
		return fmt.Errorf("%w: queue.size must be at least 1", ErrInvalidConfig)
	}
	if c.Workers.Count < 1 {
		return fmt.Errorf("%w: workers.count must be at least 1", ErrInvalidConfig)
	}
	if c.Dedupe.Size < 1 {
		return fmt.Errorf("%w: dedupe.size must be at least 1", ErrInvalidConfig)
	}
	switch c.Classifier.View {
	case "side", "front":
	default:
		return fmt.Errorf("%w: classifier.view %q is not one of side, front", ErrInvalidConfig, c.Classifier.View)
	}
	if c.Classifier.MinVisibility < 0 || c.Classifier.MinVisibility > 1 {
		return fmt.Errorf("%w: classifier.min_visibility must be within [0,1]", ErrInvalidConfig)
	}
	if c.Classifier.PassThreshold < 0 || c.Classifier.PassThreshold > 100 {
		return fmt.Errorf("%w: classifier.pass_threshold must be within [0,100]", ErrInvalidConfig)
	}
	if c.Classifier.MaxViolations < 0 {
		return fmt.Errorf("%w: classifier.max_violations must not be negative", ErrInvalidConfig)
	}
	if c.Gate.StabilityFrames < 1 {
		return fmt.Errorf("%w: gate.stability_frames must be at least 1", ErrInvalidConfig)
	}
	if c.Gate.GracePeriodFrames < 1 {
		return fmt.Errorf("%w: gate.grace_period_frames must be at least 1", ErrInvalidConfig)
	}
	if c.Leaderboard.TopCacheSize < 1 {
		return fmt.Errorf("%w: leaderboard.top_cache_size must be at least 1", ErrInvalidConfig)
	}
	if c.Leaderboard.MaxLimit < 1 {
		return fmt.Errorf("%w: leaderboard.max_limit must be at least 1", ErrInvalidConfig)
	}
	return nil
}
