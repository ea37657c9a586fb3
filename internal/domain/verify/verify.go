// Package verify cross-checks a candidate session against signals the
// recording declared independently of the event stream.
//
// Three signals are checked, each yielding unknown, match or mismatch:
// participant death count, session duration and round count. They are
// never averaged. Verdicts compare lexicographically in that order, so a
// death count agreement outranks any duration evidence, which in turn
// outranks the round count.
package verify

import (
	"time"

	"github.com/Phlares/wow-arena-analysis/internal/domain/model"
)

// DefaultDurationTolerance is how far the session span may drift from the
// declared duration and still count as a match.
const DefaultDurationTolerance = 60 * time.Second

// Signal is one tri-state corroboration result.
type Signal int

// Signal values order mismatch < unknown < match.
const (
	Mismatch Signal = -1
	Unknown  Signal = 0
	Match    Signal = 1
)

func (s Signal) String() string {
	switch s {
	case Match:
		return "match"
	case Mismatch:
		return "mismatch"
	default:
		return "unknown"
	}
}

// Verdict is the verifier's output for one candidate.
type Verdict struct {
	Deaths   Signal
	Duration Signal
	Rounds   Signal
}

// Compare returns 1 when v is better corroborated than o, -1 when worse
// and 0 when equal.
func (v Verdict) Compare(o Verdict) int {
	for _, p := range [][2]Signal{{v.Deaths, o.Deaths}, {v.Duration, o.Duration}, {v.Rounds, o.Rounds}} {
		switch {
		case p[0] > p[1]:
			return 1
		case p[0] < p[1]:
			return -1
		}
	}
	return 0
}

// Matches counts matching signals.
func (v Verdict) Matches() int { return v.count(Match) }

// Mismatches counts mismatching signals.
func (v Verdict) Mismatches() int { return v.count(Mismatch) }

func (v Verdict) count(s Signal) int {
	n := 0
	for _, x := range []Signal{v.Deaths, v.Duration, v.Rounds} {
		if x == s {
			n++
		}
	}
	return n
}

// RoundTable tells the verifier which formats have a fixed round count.
type RoundTable interface {
	MultiRound(label string) bool
	Rounds(label string) int
}

// Input is everything the verifier looks at for one candidate.
type Input struct {
	Candidate model.CandidateSession
	// Events must be sorted by instant; only those inside the candidate's
	// span are considered.
	Events           []model.RawEvent
	DeclaredDuration time.Duration
	DeathCount       *int
	Participants     model.GUIDSet
}

// Verifier is safe for concurrent use.
type Verifier struct {
	tolerance time.Duration
	rounds    RoundTable
}

// New creates a Verifier.
func New(rounds RoundTable, opts ...Option) *Verifier {
	v := &Verifier{tolerance: DefaultDurationTolerance, rounds: rounds}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Verify computes the verdict for one candidate.
func (v *Verifier) Verify(in Input) Verdict {
	return Verdict{
		Deaths:   v.deaths(in),
		Duration: v.duration(in),
		Rounds:   v.roundCount(in.Candidate),
	}
}

func (v *Verifier) deaths(in Input) Signal {
	if in.DeathCount == nil || len(in.Participants) == 0 {
		return Unknown
	}
	n := 0
	for _, ev := range model.SliceEvents(in.Events, in.Candidate.Span()) {
		if ev.Kind == model.KindUnitDied && ev.Err == nil && in.Participants.Has(ev.Dest.GUID) {
			n++
		}
	}
	if n == *in.DeathCount {
		return Match
	}
	return Mismatch
}

func (v *Verifier) duration(in Input) Signal {
	if in.Candidate.Open() || in.DeclaredDuration <= 0 {
		return Unknown
	}
	diff := in.Candidate.Span().Duration() - in.DeclaredDuration
	if diff < 0 {
		diff = -diff
	}
	if diff <= v.tolerance {
		return Match
	}
	return Mismatch
}

func (v *Verifier) roundCount(c model.CandidateSession) Signal {
	if v.rounds == nil || !v.rounds.MultiRound(c.MatchType) {
		return Unknown
	}
	if len(c.Rounds) == v.rounds.Rounds(c.MatchType) {
		return Match
	}
	return Mismatch
}

// Confidence scoring constants.
const (
	baseHigh       = 0.9
	baseMedium     = 0.7
	baseLow        = 0.5
	signalStep     = 0.1
	openPenalty    = 0.1
	ambiguousLimit = 0.25
)

// Confidence scores a pick from the estimate tier and the verdict.
func Confidence(tier model.TrustTier, v Verdict, open, ambiguous bool) float64 {
	var c float64
	switch tier {
	case model.TierHigh:
		c = baseHigh
	case model.TierMedium:
		c = baseMedium
	default:
		c = baseLow
	}
	c += signalStep * float64(v.Matches()-v.Mismatches())
	if open {
		c -= openPenalty
	}
	if ambiguous && c > ambiguousLimit {
		c = ambiguousLimit
	}
	switch {
	case c < 0:
		return 0
	case c > 1:
		return 1
	}
	return c
}
