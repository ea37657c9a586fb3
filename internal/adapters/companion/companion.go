// Package companion resolves the pet or summon a subject controlled during
// a match.
package companion

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"time"

	"github.com/Phlares/wow-arena-analysis/internal/domain/model"
)

// DefaultLookback is how long before a match ends a summon still counts.
const DefaultLookback = 30 * time.Minute

// Query describes one match.
type Query struct {
	Subject model.Identity
	Span    model.TimeRange
	// Events must be sorted by instant and may extend before Span.
	Events []model.RawEvent
}

// Resolver returns at most one companion for a match.
type Resolver interface {
	Companion(ctx context.Context, q Query) (model.Identity, bool)
}

// SummonResolver takes the last unit the subject summoned.
type SummonResolver struct {
	lookback time.Duration
}

// NewSummonResolver creates a SummonResolver. A non-positive lookback uses
// DefaultLookback.
func NewSummonResolver(lookback time.Duration) *SummonResolver {
	if lookback <= 0 {
		lookback = DefaultLookback
	}
	return &SummonResolver{lookback: lookback}
}

// Companion implements Resolver.
func (r *SummonResolver) Companion(ctx context.Context, q Query) (model.Identity, bool) {
	window := model.TimeRange{Start: q.Span.End.Add(-r.lookback), End: q.Span.End}
	evs := model.SliceEvents(q.Events, window)
	for i := len(evs) - 1; i >= 0; i-- {
		ev := evs[i]
		if ev.Kind != model.KindSpellSummon || ev.Err != nil {
			continue
		}
		if q.Subject.Matches(ev.Source) && ev.Dest.GUID != "" {
			return model.Identity{GUID: ev.Dest.GUID, Name: ev.Dest.Name}, true
		}
	}
	return model.Identity{}, false
}

type petIndexFile struct {
	PlayerPets map[string]struct {
		PetNames []string `json:"pet_names"`
	} `json:"player_pets"`
}

// IndexResolver uses a prebuilt player to pet name index. Of the subject's
// known pets, the first one seen acting in the match wins.
type IndexResolver struct {
	pets map[string][]string // base player name -> pet names
}

// LoadIndex reads a pet index file.
func LoadIndex(path string) (*IndexResolver, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open pet index: %w", err)
	}
	defer f.Close()
	return DecodeIndex(f)
}

// DecodeIndex reads a pet index from r.
func DecodeIndex(r io.Reader) (*IndexResolver, error) {
	var doc petIndexFile
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode pet index: %w", err)
	}
	pets := make(map[string][]string, len(doc.PlayerPets))
	for player, entry := range doc.PlayerPets {
		names := append([]string(nil), entry.PetNames...)
		sort.Strings(names)
		key := model.BaseName(player)
		pets[key] = append(pets[key], names...)
	}
	return &IndexResolver{pets: pets}, nil
}

// Players returns how many players the index knows.
func (r *IndexResolver) Players() int {
	return len(r.pets)
}

// Companion implements Resolver.
func (r *IndexResolver) Companion(ctx context.Context, q Query) (model.Identity, bool) {
	names := r.pets[model.BaseName(q.Subject.Name)]
	if len(names) == 0 {
		return model.Identity{}, false
	}
	known := make(map[string]struct{}, len(names))
	for _, n := range names {
		known[model.BaseName(n)] = struct{}{}
	}
	for _, ev := range model.SliceEvents(q.Events, q.Span) {
		if ev.Err != nil || ev.Source.Name == "" {
			continue
		}
		if _, ok := known[model.BaseName(ev.Source.Name)]; ok {
			return model.Identity{GUID: ev.Source.GUID, Name: ev.Source.Name}, true
		}
	}
	return model.Identity{}, false
}

// Chain tries resolvers in order.
type Chain []Resolver

// Companion implements Resolver.
func (c Chain) Companion(ctx context.Context, q Query) (model.Identity, bool) {
	for _, r := range c {
		if r == nil {
			continue
		}
		if id, ok := r.Companion(ctx, q); ok {
			return id, true
		}
	}
	return model.Identity{}, false
}
