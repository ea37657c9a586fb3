package model

import (
	"strconv"
	"time"
)

// MarkerKind distinguishes session start from session end markers.
type MarkerKind int

// Marker kinds.
const (
	MarkerStart MarkerKind = iota + 1
	MarkerEnd
)

func (k MarkerKind) String() string {
	switch k {
	case MarkerStart:
		return "start"
	case MarkerEnd:
		return "end"
	default:
		return "unknown"
	}
}

// SessionMarker is a session boundary read from the event stream.
type SessionMarker struct {
	Instant    time.Time
	Kind       MarkerKind
	LocationID string // start markers only
	MatchType  string // start markers only

	// End markers only.
	WinningTeam      int
	DeclaredDuration time.Duration
}

// CandidateSession is a session the extractor found near a recording's
// estimated start.
type CandidateSession struct {
	Start SessionMarker
	End   *SessionMarker // nil while open

	// Bound is the exclusive end of the event slice: the end marker, the
	// start marker that cut an open session short, or the scan limit.
	Bound time.Time

	LocationID    string
	LocationName  string
	LocationKnown bool
	MatchType     string

	// Rounds holds every start marker in order. Length 1 for standard
	// sessions.
	Rounds []SessionMarker
}

// Open reports whether no end marker closed the session.
func (c CandidateSession) Open() bool {
	return c.End == nil
}

// Span is the session's event slice [Start, Bound).
func (c CandidateSession) Span() TimeRange {
	return TimeRange{Start: c.Start.Instant, End: c.Bound}
}

// Key identifies the session independently of which recording found it.
func (c CandidateSession) Key() string {
	return strconv.FormatInt(c.Start.Instant.UnixNano(), 10) + "@" + c.LocationID
}
