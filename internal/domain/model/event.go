package model

import (
	"sort"
	"time"
)

// EventKind is the combat log subevent name.
type EventKind string

// Event kinds the pipeline interprets. Everything else is carried through
// untouched.
const (
	KindSpellCastSuccess EventKind = "SPELL_CAST_SUCCESS"
	KindSpellAuraApplied EventKind = "SPELL_AURA_APPLIED"
	KindSpellDispel      EventKind = "SPELL_DISPEL"
	KindSpellInterrupt   EventKind = "SPELL_INTERRUPT"
	KindSpellSummon      EventKind = "SPELL_SUMMON"
	KindUnitDied         EventKind = "UNIT_DIED"
	KindArenaMatchStart  EventKind = "ARENA_MATCH_START"
	KindArenaMatchEnd    EventKind = "ARENA_MATCH_END"
)

// ReactionHostile is the unit flag bit marking a hostile unit.
const ReactionHostile uint32 = 0x00000040

// Unit is one side of an event.
type Unit struct {
	GUID  string
	Name  string
	Flags uint32
}

// Hostile reports whether the hostile reaction bit is set.
func (u Unit) Hostile() bool {
	return u.Flags&ReactionHostile != 0
}

// RawEvent is one decoded event record.
type RawEvent struct {
	Instant time.Time
	Kind    EventKind
	Source  Unit
	Dest    Unit

	SpellID        int
	SpellName      string
	ExtraSpellID   int    // interrupted or dispelled spell
	ExtraSpellName string // interrupted or dispelled spell

	// Marker is set for ARENA_MATCH_START and ARENA_MATCH_END.
	Marker *SessionMarker

	// Err is non-nil when the record was placed in time but its fields
	// could not be decoded. Consumers skip such records.
	Err error
}

// SliceEvents returns the sub-slice of events, which must be sorted by
// instant, that falls in r. The result shares the backing array.
func SliceEvents(events []RawEvent, r TimeRange) []RawEvent {
	lo := sort.Search(len(events), func(i int) bool { return !events[i].Instant.Before(r.Start) })
	hi := sort.Search(len(events), func(i int) bool { return !events[i].Instant.Before(r.End) })
	if hi < lo {
		return nil
	}
	return events[lo:hi]
}
