package model

import "time"

// TrustTier classifies how much a timestamp estimate can be trusted.
type TrustTier int

// Trust tiers, weakest first.
const (
	TierUnknown TrustTier = iota
	TierLow
	TierMedium
	TierHigh
)

func (t TrustTier) String() string {
	switch t {
	case TierHigh:
		return "high"
	case TierMedium:
		return "medium"
	case TierLow:
		return "low"
	default:
		return "unknown"
	}
}

// ParseTrustTier is the inverse of String.
func ParseTrustTier(s string) TrustTier {
	switch s {
	case "high":
		return TierHigh
	case "medium":
		return TierMedium
	case "low":
		return TierLow
	default:
		return TierUnknown
	}
}

// TimeRange is the half-open interval [Start, End).
type TimeRange struct {
	Start time.Time
	End   time.Time
}

// Contains reports whether t lies in [Start, End).
func (r TimeRange) Contains(t time.Time) bool {
	return !t.Before(r.Start) && t.Before(r.End)
}

// Covers reports whether t lies in the closed interval [Start, End].
func (r TimeRange) Covers(t time.Time) bool {
	return !t.Before(r.Start) && !t.After(r.End)
}

// Overlaps reports whether the two ranges share any instant.
func (r TimeRange) Overlaps(o TimeRange) bool {
	return r.Start.Before(o.End) && o.Start.Before(r.End)
}

// Duration is End - Start.
func (r TimeRange) Duration() time.Duration {
	return r.End.Sub(r.Start)
}

// TimestampEstimate is a best guess of when a recording's match started.
type TimestampEstimate struct {
	Instant time.Time
	Tier    TrustTier
	Radius  time.Duration
	Source  string // which evidence field produced it
}

// Window returns the search window [Instant-Radius, Instant+Radius]. Both
// edges belong to it; test membership with Covers.
func (e TimestampEstimate) Window() TimeRange {
	return TimeRange{Start: e.Instant.Add(-e.Radius), End: e.Instant.Add(e.Radius)}
}
