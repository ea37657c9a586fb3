// Package session groups session markers from the event stream into
// candidate sessions.
//
// Grouping is a fold over markers in instant order driven by a three state
// machine: Idle, InSession and InMultiRound. Standard sessions pair one
// start with the next end. Multi-round formats keep absorbing start markers
// with the same location and an equivalent label until an end marker closes
// the whole group.
package session

import (
	"sort"
	"time"

	"github.com/Phlares/wow-arena-analysis/internal/domain/model"
)

// Tables is the read-only lookup the extractor needs.
type Tables interface {
	LocationName(id string) (string, bool)
	Equivalent(a, b string) bool
	MultiRound(label string) bool
}

// Scan describes which part of the stream to fold.
type Scan struct {
	// Window is the search window, closed at both ends. Only sessions
	// starting inside it become candidates.
	Window model.TimeRange
	// Lookback is folded before Window.Start so a session already in
	// progress is not mistaken for a new one.
	Lookback time.Duration
	// Horizon is folded after Window.End so sessions starting inside the
	// window can still find their end marker. Zero closes them at the
	// window boundary.
	Horizon time.Duration
}

// Range is the full span of events Scan needs.
func (s Scan) Range() model.TimeRange {
	return model.TimeRange{Start: s.Window.Start.Add(-s.Lookback), End: s.Window.End.Add(s.Horizon)}
}

// Result is the outcome of one extraction.
type Result struct {
	Candidates []model.CandidateSession
	// UnknownLocations lists location ids, sorted, that were not in the
	// table. Their sessions are still extracted.
	UnknownLocations []string
	// Orphans counts end markers that arrived with no session open.
	Orphans int
}

type state int

const (
	idle state = iota
	inSession
	inMultiRound
)

// Extractor folds markers into candidates. It is stateless between calls
// and safe for concurrent use.
type Extractor struct {
	tables Tables
}

// New creates an Extractor over the given tables.
func New(tables Tables) *Extractor {
	return &Extractor{tables: tables}
}

// fold carries the state machine through one extraction.
type fold struct {
	tables  Tables
	scan    Scan
	limit   time.Time
	state   state
	current model.CandidateSession
	out     []model.CandidateSession
	unknown map[string]struct{}
	orphans int
}

// Extract never fails: an empty result is a valid answer. Markers outside
// the closed scan.Range() are ignored, so callers may pass a wider slice.
func (e *Extractor) Extract(events []model.RawEvent, scan Scan) Result {
	rng := scan.Range()
	f := &fold{
		tables:  e.tables,
		scan:    scan,
		limit:   rng.End,
		unknown: make(map[string]struct{}),
	}

	markers := make([]model.SessionMarker, 0, 16)
	for i := range events {
		ev := &events[i]
		if ev.Marker == nil || ev.Err != nil || !rng.Covers(ev.Instant) {
			continue
		}
		markers = append(markers, *ev.Marker)
	}
	sort.SliceStable(markers, func(i, j int) bool {
		return markers[i].Instant.Before(markers[j].Instant)
	})

	for _, m := range markers {
		switch m.Kind {
		case model.MarkerStart:
			f.onStart(m)
		case model.MarkerEnd:
			f.onEnd(m)
		}
	}
	if f.state != idle {
		f.close(nil, f.limit)
	}

	res := Result{Candidates: f.out, Orphans: f.orphans}
	for id := range f.unknown {
		res.UnknownLocations = append(res.UnknownLocations, id)
	}
	sort.Strings(res.UnknownLocations)
	return res
}

func (f *fold) onStart(m model.SessionMarker) {
	switch f.state {
	case inMultiRound:
		if m.LocationID == f.current.LocationID && f.tables.Equivalent(m.MatchType, f.current.MatchType) {
			f.current.Rounds = append(f.current.Rounds, m)
			return
		}
		f.close(nil, m.Instant)
	case inSession:
		// No end marker arrived; the new start cuts the old session short.
		f.close(nil, m.Instant)
	}
	f.open(m)
}

func (f *fold) onEnd(m model.SessionMarker) {
	if f.state == idle {
		f.orphans++
		return
	}
	end := m
	f.close(&end, m.Instant)
}

func (f *fold) open(m model.SessionMarker) {
	name, known := f.tables.LocationName(m.LocationID)
	f.current = model.CandidateSession{
		Start:         m,
		LocationID:    m.LocationID,
		LocationName:  name,
		LocationKnown: known,
		MatchType:     m.MatchType,
		Rounds:        []model.SessionMarker{m},
	}
	f.state = inSession
	if f.tables.MultiRound(m.MatchType) {
		f.state = inMultiRound
	}
}

func (f *fold) close(end *model.SessionMarker, bound time.Time) {
	c := f.current
	c.End = end
	c.Bound = bound
	if bound.After(f.limit) {
		c.Bound = f.limit
	}
	f.current = model.CandidateSession{}
	f.state = idle
	if f.scan.Window.Covers(c.Start.Instant) {
		if !c.LocationKnown {
			f.unknown[c.LocationID] = struct{}{}
		}
		f.out = append(f.out, c)
	}
}
