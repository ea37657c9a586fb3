// Package disambiguate picks the one candidate session that belongs to a
// recording.
//
// Candidates must agree with the recording on both match type and
// location. Among the survivors the verifier's verdict decides first; when
// verdicts tie, the nearest session starting at or before the estimate
// wins, then the nearest one starting after it.
package disambiguate

import (
	"fmt"
	"sort"
	"time"

	"github.com/Phlares/wow-arena-analysis/internal/domain/model"
	"github.com/Phlares/wow-arena-analysis/internal/domain/verify"
)

// Tables is the attribute lookup used for filtering.
type Tables interface {
	Accepts(expected, observed string) bool
	LocationMatches(id, name string) bool
}

// Verifier scores a candidate against independent signals.
type Verifier interface {
	Verify(in verify.Input) verify.Verdict
}

// Request carries one recording's candidates and expectations.
type Request struct {
	RecordingID string
	Candidates  []model.CandidateSession
	Estimate    model.TimestampEstimate
	MatchType   string
	Location    string

	// Corroboration inputs, passed through to the verifier.
	Events           []model.RawEvent
	DeclaredDuration time.Duration
	DeathCount       *int
	Participants     model.GUIDSet
}

// Pick is the selected candidate.
type Pick struct {
	Candidate model.CandidateSession
	Verdict   verify.Verdict
	// Ambiguous is set when another survivor had the same verdict and the
	// same distance from the estimate.
	Ambiguous bool
	Survivors int
	Rejected  int
}

// Disambiguator is safe for concurrent use.
type Disambiguator struct {
	tables   Tables
	verifier Verifier
}

// New creates a Disambiguator. A nil verifier treats every signal as
// unknown, leaving the temporal rule to decide.
func New(tables Tables, verifier Verifier) *Disambiguator {
	return &Disambiguator{tables: tables, verifier: verifier}
}

type ranked struct {
	c       model.CandidateSession
	verdict verify.Verdict
	dist    time.Duration
}

// Pick selects at most one candidate. It returns model.ErrNoMatchFound when
// no candidate passes the attribute filter.
func (d *Disambiguator) Pick(req Request) (Pick, error) {
	survivors := d.filter(req)
	if len(survivors) == 0 {
		return Pick{Rejected: len(req.Candidates)}, fmt.Errorf("recording %s: %d candidates, none at %q as %q: %w",
			req.RecordingID, len(req.Candidates), req.Location, req.MatchType, model.ErrNoMatchFound)
	}

	order := temporalOrder(survivors, req.Estimate.Instant)

	rs := make([]ranked, len(order))
	for i, idx := range order {
		c := survivors[idx]
		rs[i] = ranked{c: c, dist: absDuration(c.Start.Instant.Sub(req.Estimate.Instant))}
		if d.verifier != nil {
			rs[i].verdict = d.verifier.Verify(verify.Input{
				Candidate:        c,
				Events:           req.Events,
				DeclaredDuration: req.DeclaredDuration,
				DeathCount:       req.DeathCount,
				Participants:     req.Participants,
			})
		}
	}

	// rs is in temporal preference order; a later entry only displaces the
	// best so far with a strictly better verdict.
	best := 0
	for i := 1; i < len(rs); i++ {
		if rs[i].verdict.Compare(rs[best].verdict) > 0 {
			best = i
		}
	}

	ambiguous := false
	for i := range rs {
		if i == best || rs[i].verdict.Compare(rs[best].verdict) != 0 || rs[i].dist != rs[best].dist {
			continue
		}
		ambiguous = true
		// Earliest start settles a residual tie.
		if rs[i].c.Start.Instant.Before(rs[best].c.Start.Instant) {
			best = i
		}
	}

	return Pick{
		Candidate: rs[best].c,
		Verdict:   rs[best].verdict,
		Ambiguous: ambiguous,
		Survivors: len(survivors),
		Rejected:  len(req.Candidates) - len(survivors),
	}, nil
}

func (d *Disambiguator) filter(req Request) []model.CandidateSession {
	out := make([]model.CandidateSession, 0, len(req.Candidates))
	for _, c := range req.Candidates {
		if !c.LocationKnown {
			continue
		}
		if !d.tables.Accepts(req.MatchType, c.MatchType) {
			continue
		}
		if !d.tables.LocationMatches(c.LocationID, req.Location) {
			continue
		}
		out = append(out, c)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Start.Instant.Before(out[j].Start.Instant)
	})
	return out
}

// temporalOrder returns indexes into sorted candidates: those starting at
// or before at from nearest to farthest, then those after it from nearest
// to farthest.
func temporalOrder(sorted []model.CandidateSession, at time.Time) []int {
	split := sort.Search(len(sorted), func(i int) bool {
		return sorted[i].Start.Instant.After(at)
	})
	order := make([]int, 0, len(sorted))
	for i := split - 1; i >= 0; i-- {
		order = append(order, i)
	}
	for i := split; i < len(sorted); i++ {
		order = append(order, i)
	}
	return order
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}
