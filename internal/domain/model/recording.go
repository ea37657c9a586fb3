// Package model contains domain models passed between layers.
package model

import (
	"sort"
	"strings"
	"time"
)

// Evidence holds the raw timestamp sources a recording may carry, one per
// trust tier. Empty fields are absent evidence.
type Evidence struct {
	StartField    string // authoritative start: epoch milliseconds or RFC 3339
	LogMarkerLine string // a session-start line lifted from a combat log
	Filename      string // base filename, usually prefixed YYYY-MM-DD_HH-MM-SS
}

// Identity names an actor in the event stream.
type Identity struct {
	GUID string
	Name string
}

// IsZero reports whether neither GUID nor name is known.
func (i Identity) IsZero() bool {
	return i.GUID == "" && i.Name == ""
}

// Matches reports whether u is the same actor. GUIDs win when both sides
// have one; otherwise base names (realm suffix stripped) are compared.
func (i Identity) Matches(u Unit) bool {
	if i.GUID != "" && u.GUID != "" {
		return i.GUID == u.GUID
	}
	if i.Name == "" || u.Name == "" {
		return false
	}
	return BaseName(i.Name) == BaseName(u.Name)
}

// BaseName strips a "-Realm" suffix and surrounding quotes from a unit name.
func BaseName(name string) string {
	name = strings.Trim(name, `"`)
	if i := strings.IndexByte(name, '-'); i > 0 {
		return name[:i]
	}
	return name
}

// GUIDSet is an unordered set of unit GUIDs.
type GUIDSet map[string]struct{}

// NewGUIDSet builds a set from guids, ignoring empty strings.
func NewGUIDSet(guids ...string) GUIDSet {
	s := make(GUIDSet, len(guids))
	for _, g := range guids {
		if g != "" {
			s[g] = struct{}{}
		}
	}
	return s
}

// Has reports membership.
func (s GUIDSet) Has(guid string) bool {
	_, ok := s[guid]
	return ok
}

// Sorted returns the members in lexical order.
func (s GUIDSet) Sorted() []string {
	out := make([]string, 0, len(s))
	for g := range s {
		out = append(out, g)
	}
	sort.Strings(out)
	return out
}

// Recording is one video recording and everything the indexer declared
// about it. It is never mutated once built.
type Recording struct {
	ID       string // filename stem
	Path     string
	Subject  Identity
	Evidence Evidence

	MatchType string // declared bracket label, e.g. "3v3" or "Solo Shuffle"
	Location  string // declared arena name
	Outcome   string // "win", "loss" or empty
	Duration  time.Duration

	// DeathCount is an independently observed count of participant deaths,
	// nil when the indexer had none.
	DeathCount *int

	Participants GUIDSet // every combatant, subject included
	Opponents    GUIDSet // the opposing roster
}
