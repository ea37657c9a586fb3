package repository

import "errors"

// Sentinel kinds for store errors.
var (
	ErrNotFound       = errors.New("match record not found")
	ErrInvalidLimit   = errors.New("invalid match limit")
	ErrSchemaMismatch = errors.New("schema version mismatch")
)

// MaxLimit caps Latest.
const MaxLimit = 1000
