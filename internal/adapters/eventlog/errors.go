package eventlog

import "errors"

var (
	// ErrNoPartition is returned when no log file covers an instant.
	ErrNoPartition = errors.New("eventlog: no partition covers instant")
	// ErrNoMarker is returned when no session start line matches.
	ErrNoMarker = errors.New("eventlog: no matching session start line")
)
