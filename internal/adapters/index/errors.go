package index

import "errors"

var (
	// ErrInvalidMetadata is returned for metadata files that fail to decode
	// or validate.
	ErrInvalidMetadata = errors.New("index: invalid recording metadata")
	// ErrBadFilename is returned when a video filename carries no timestamp.
	ErrBadFilename = errors.New("index: filename has no timestamp prefix")
)
