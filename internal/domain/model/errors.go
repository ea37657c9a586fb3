package model

import "errors"

// Sentinel errors. Per-recording failures wrap one of these so they can be
// counted by kind.
var (
	ErrEstimateUnavailable  = errors.New("no timestamp evidence could be parsed")
	ErrNoMatchFound         = errors.New("no candidate session survived filtering")
	ErrAmbiguousMatch       = errors.New("candidate sessions tied after tie-breaks")
	ErrMalformedEventRecord = errors.New("malformed event record")
	ErrUnknownLocationID    = errors.New("unknown location id")
	ErrStorageUnavailable   = errors.New("event storage unavailable")
	ErrSessionClaimed       = errors.New("session already claimed by another recording")
)

var kinds = []struct {
	err  error
	kind string
}{
	{ErrStorageUnavailable, "storage_unavailable"},
	{ErrEstimateUnavailable, "estimate_unavailable"},
	{ErrNoMatchFound, "no_match_found"},
	{ErrSessionClaimed, "session_claimed"},
	{ErrAmbiguousMatch, "ambiguous_match"},
	{ErrMalformedEventRecord, "malformed_event_record"},
	{ErrUnknownLocationID, "unknown_location_id"},
}

// KindOf maps err onto its taxonomy label. Nil maps to "ok" and anything
// unrecognised to "internal".
func KindOf(err error) string {
	if err == nil {
		return "ok"
	}
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.kind
		}
	}
	return "internal"
}

// IsFatal reports whether err must stop the whole batch.
func IsFatal(err error) bool {
	return errors.Is(err, ErrStorageUnavailable)
}
