// Package tables loads the static location and match type tables.
//
// Tables are read once at startup and shared read-only between workers.
package tables

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"unicode"

	"github.com/pelletier/go-toml/v2"
	"golang.org/x/text/cases"
)

//go:embed default.toml
var defaultTOML []byte

// ErrInvalidTables is returned for a table file that decodes but is unusable.
var ErrInvalidTables = errors.New("invalid tables")

// Location is one arena.
type Location struct {
	ID      string   `toml:"id"`
	Name    string   `toml:"name"`
	Aliases []string `toml:"aliases"`
}

// MatchType is one bracket and the labels that spell it.
type MatchType struct {
	Name       string   `toml:"name"`
	Labels     []string `toml:"labels"`
	Accepts    []string `toml:"accepts"`
	MultiRound bool     `toml:"multi_round"`
	Rounds     int      `toml:"rounds"`
}

type file struct {
	Locations  []Location  `toml:"location"`
	MatchTypes []MatchType `toml:"match_type"`
}

// Tables answers location and label questions. Safe for concurrent use
// because it is never written after construction.
type Tables struct {
	locations  map[string]Location
	locKeys    map[string]map[string]struct{} // id -> normalized names
	types      []MatchType
	labelIndex map[string]int // normalized label -> index into types
}

// Default returns the embedded tables.
func Default() (*Tables, error) {
	return Decode(bytes.NewReader(defaultTOML))
}

// Load reads tables from path, or the embedded defaults when path is empty.
func Load(path string) (*Tables, error) {
	if path == "" {
		return Default()
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open tables: %w", err)
	}
	defer f.Close()
	return Decode(f)
}

// Decode parses a TOML table document.
func Decode(r io.Reader) (*Tables, error) {
	var doc file
	if err := toml.NewDecoder(r).DisallowUnknownFields().Decode(&doc); err != nil {
		return nil, fmt.Errorf("parse tables: %w", err)
	}
	return build(doc)
}

func build(doc file) (*Tables, error) {
	t := &Tables{
		locations:  make(map[string]Location, len(doc.Locations)),
		locKeys:    make(map[string]map[string]struct{}, len(doc.Locations)),
		labelIndex: make(map[string]int),
	}
	for _, loc := range doc.Locations {
		if loc.ID == "" || loc.Name == "" {
			return nil, fmt.Errorf("%w: location needs id and name", ErrInvalidTables)
		}
		if _, dup := t.locations[loc.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate location id %s", ErrInvalidTables, loc.ID)
		}
		t.locations[loc.ID] = loc
		keys := map[string]struct{}{Normalize(loc.Name): {}}
		for _, a := range loc.Aliases {
			keys[Normalize(a)] = struct{}{}
		}
		t.locKeys[loc.ID] = keys
	}
	for i, mt := range doc.MatchTypes {
		if mt.Name == "" {
			return nil, fmt.Errorf("%w: match type needs a name", ErrInvalidTables)
		}
		if mt.MultiRound && mt.Rounds <= 0 {
			return nil, fmt.Errorf("%w: multi-round type %s needs rounds", ErrInvalidTables, mt.Name)
		}
		for _, l := range append([]string{mt.Name}, mt.Labels...) {
			key := Normalize(l)
			if j, dup := t.labelIndex[key]; dup && j != i {
				return nil, fmt.Errorf("%w: label %q in both %s and %s", ErrInvalidTables, l, doc.MatchTypes[j].Name, mt.Name)
			}
			t.labelIndex[key] = i
		}
		t.types = append(t.types, mt)
	}
	return t, nil
}

// Normalize folds case and drops everything but letters and digits, so
// "Tol'viron", "tol viron" and "Tol_Viron" compare equal.
func Normalize(s string) string {
	s = cases.Fold().String(s)
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// LocationName resolves an id. ok is false for ids outside the table.
func (t *Tables) LocationName(id string) (string, bool) {
	loc, ok := t.locations[id]
	return loc.Name, ok
}

// LocationMatches reports whether the arena behind id is called name,
// by its table name or an alias.
func (t *Tables) LocationMatches(id, name string) bool {
	keys, ok := t.locKeys[id]
	if !ok {
		return false
	}
	_, hit := keys[Normalize(name)]
	return hit
}

func (t *Tables) lookup(label string) (MatchType, bool) {
	i, ok := t.labelIndex[Normalize(label)]
	if !ok {
		return MatchType{}, false
	}
	return t.types[i], true
}

// Canonical returns the bracket name for a label, or the label itself when
// it is not in the table.
func (t *Tables) Canonical(label string) string {
	if mt, ok := t.lookup(label); ok {
		return mt.Name
	}
	return label
}

// Accepts reports whether a session labelled observed satisfies a
// recording that declared expected.
func (t *Tables) Accepts(expected, observed string) bool {
	if Normalize(expected) == Normalize(observed) {
		return true
	}
	exp, ok := t.lookup(expected)
	if !ok {
		return false
	}
	if obs, ok := t.lookup(observed); ok && obs.Name == exp.Name {
		return true
	}
	for _, a := range exp.Accepts {
		if Normalize(a) == Normalize(observed) || Normalize(t.Canonical(a)) == Normalize(t.Canonical(observed)) {
			return true
		}
	}
	return false
}

// Equivalent is the symmetric form of Accepts: both labels name the same
// bracket.
func (t *Tables) Equivalent(a, b string) bool {
	return Normalize(t.Canonical(a)) == Normalize(t.Canonical(b))
}

// MultiRound reports whether the label names a multi-round format.
func (t *Tables) MultiRound(label string) bool {
	mt, ok := t.lookup(label)
	return ok && mt.MultiRound
}

// Rounds returns the fixed round count of a multi-round format, 1 otherwise.
func (t *Tables) Rounds(label string) int {
	if mt, ok := t.lookup(label); ok && mt.MultiRound {
		return mt.Rounds
	}
	return 1
}

// Locations lists every arena ordered by numeric id.
func (t *Tables) Locations() []Location {
	out := make([]Location, 0, len(t.locations))
	for _, l := range t.locations {
		out = append(out, l)
	}
	sort.Slice(out, func(i, j int) bool {
		if len(out[i].ID) != len(out[j].ID) {
			return len(out[i].ID) < len(out[j].ID)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// MatchTypes lists the match type groups in file order.
func (t *Tables) MatchTypes() []MatchType {
	out := make([]MatchType, len(t.types))
	copy(out, t.types)
	return out
}
