// Package config defines process configuration structures and loading hooks.
//
// Conventions:
// - Provide New(ctx) to build a Config with defaults.
// - Loading layers defaults, an optional YAML file and ARENA_ env vars.
// - Errors wrap this package's sentinels so callers can use errors.Is.
package config

import (
	"context"
	"fmt"
	"runtime"
	"time"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects text, json or auto.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address of the read API, e.g. ":9080".
	Addr string `koanf:"addr"`

	// WorkerCount sets the number of resolution workers.
	WorkerCount int `koanf:"worker_count"`

	// QueueSize bounds the in-memory recording queue.
	QueueSize int `koanf:"queue_size"`

	// DBPath is the SQLite file results are written to.
	DBPath string `koanf:"db_path"`

	// LogsDir holds WoWCombatLog-*.txt partitions.
	LogsDir string `koanf:"logs_dir"`

	// RecordingsDir holds the video files and their recorder JSON metadata.
	RecordingsDir string `koanf:"recordings_dir"`

	// TablesPath optionally overrides the embedded location/match-type tables (TOML).
	TablesPath string `koanf:"tables_path"`

	// PetIndexPath optionally points at a player pet index JSON file.
	PetIndexPath string `koanf:"pet_index_path"`

	// Search radii per trust tier, in seconds.
	RadiusHighSeconds   int `koanf:"radius_high_s"`
	RadiusMediumSeconds int `koanf:"radius_medium_s"`
	RadiusLowSeconds    int `koanf:"radius_low_s"`

	// SessionHorizonSeconds is how far past the window end the extractor
	// scans for closing markers.
	SessionHorizonSeconds int `koanf:"session_horizon_s"`

	// DurationToleranceSeconds bounds the duration corroboration signal.
	DurationToleranceSeconds int `koanf:"duration_tolerance_s"`

	// DispelAbility names the companion's dispel ability.
	DispelAbility string `koanf:"dispel_ability"`

	// TrackedBuff names the buff whose gains are counted.
	TrackedBuff string `koanf:"tracked_buff"`

	// ProgressEvery logs batch progress every N outcomes.
	ProgressEvery int `koanf:"progress_every"`

	// Timezone is the IANA zone log and filename timestamps are written in.
	// Empty means the local zone.
	Timezone string `koanf:"timezone"`
}

// New creates a Config populated with defaults. Context is accepted first to
// follow the project-wide convention.
func New(_ context.Context) *Config {
	return &Config{
		LogLevel:                 "info",
		LogFormat:                "auto",
		Addr:                     ":9080",
		WorkerCount:              runtime.NumCPU(),
		QueueSize:                10_000,
		DBPath:                   "arena_matches.db",
		LogsDir:                  "Logs",
		RecordingsDir:            "Recordings",
		RadiusHighSeconds:        30,
		RadiusMediumSeconds:      120,
		RadiusLowSeconds:         300,
		SessionHorizonSeconds:    45 * 60,
		DurationToleranceSeconds: 60,
		DispelAbility:            "Devour Magic",
		TrackedBuff:              "Precognition",
		ProgressEvery:            50,
	}
}

// Validate checks the values that would otherwise fail deep inside the pipeline.
func (c *Config) Validate() error {
	if c.Addr == "" {
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	}
	if c.DBPath == "" {
		return fmt.Errorf("%w: db_path must not be empty", ErrInvalidConfig)
	}
	if c.RadiusHighSeconds <= 0 || c.RadiusMediumSeconds <= 0 || c.RadiusLowSeconds <= 0 {
		return fmt.Errorf("%w: search radii must be positive", ErrInvalidConfig)
	}
	if c.SessionHorizonSeconds < 0 || c.DurationToleranceSeconds < 0 {
		return fmt.Errorf("%w: session_horizon_s and duration_tolerance_s must not be negative", ErrInvalidConfig)
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	return nil
}

// Location resolves Timezone.
func (c *Config) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("%w: %w %q: %v", ErrInvalidConfig, ErrUnknownTimezone, c.Timezone, err)
	}
	return loc, nil
}

// Radii returns the per-tier search radii as durations (high, medium, low).
func (c *Config) Radii() (high, medium, low time.Duration) {
	return time.Duration(c.RadiusHighSeconds) * time.Second,
		time.Duration(c.RadiusMediumSeconds) * time.Second,
		time.Duration(c.RadiusLowSeconds) * time.Second
}

// SessionHorizon returns SessionHorizonSeconds as a duration.
func (c *Config) SessionHorizon() time.Duration {
	return time.Duration(c.SessionHorizonSeconds) * time.Second
}

// DurationTolerance returns DurationToleranceSeconds as a duration.
func (c *Config) DurationTolerance() time.Duration {
	return time.Duration(c.DurationToleranceSeconds) * time.Second
}
