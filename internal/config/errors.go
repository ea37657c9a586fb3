package config

import "errors"

// Sentinels for errors.Is.
var (
	// ErrInvalidConfig marks a setting Validate rejects.
	ErrInvalidConfig = errors.New("invalid arena sync settings")
	// ErrLoadConfig marks a settings file or ARENA_* variable that could not be read.
	ErrLoadConfig = errors.New("cannot read arena sync settings")
	// ErrUnknownTimezone marks a timezone name the tz database does not know.
	ErrUnknownTimezone = errors.New("unknown timezone")
)
