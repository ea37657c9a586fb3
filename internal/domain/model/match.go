package model

import "time"

// ResolvedMatch pairs a recording with the session it was matched to.
type ResolvedMatch struct {
	RecordingID string
	SessionKey  string
	Start       time.Time
	End         time.Time // exclusive
	Open        bool

	Confidence float64
	Tier       TrustTier
	Ambiguous  bool

	LocationID   string
	LocationName string
	MatchType    string
	Rounds       int
}

// Span returns [Start, End).
func (m ResolvedMatch) Span() TimeRange {
	return TimeRange{Start: m.Start, End: m.End}
}

// MatchMetrics are the per-recording aggregates computed from a match slice.
type MatchMetrics struct {
	RecordingID string

	CastSuccessOwn      int
	InterruptsPerformed int
	TimesInterrupted    int
	BuffGainedOwn       int
	BuffGainedEnemy     int
	PurgesOwn           int
	TimesDied           int

	// SpellsCast lists the subject's casts in order, repeats included.
	SpellsCast []string
	// SpellsPurged lists auras the companion removed, in order.
	SpellsPurged []string

	MalformedSkipped int
}

// DistinctSpellsCast returns SpellsCast with repeats removed, keeping first
// occurrence order.
func (m MatchMetrics) DistinctSpellsCast() []string {
	return distinct(m.SpellsCast)
}

// DistinctSpellsPurged returns SpellsPurged with repeats removed.
func (m MatchMetrics) DistinctSpellsPurged() []string {
	return distinct(m.SpellsPurged)
}

func distinct(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
