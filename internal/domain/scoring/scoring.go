// Package scoring computes per-recording metrics from a resolved match's
// event slice.
package scoring

import (
	"context"
	"fmt"

	"github.com/Phlares/wow-arena-analysis/internal/domain/model"
)

// Default classification constants.
const (
	DefaultDispelAbility = "Devour Magic"
	DefaultTrackedBuff   = "Precognition"

	ctxCheckEvery = 4096
)

// Option applies a configuration option to the Extractor.
type Option func(*Extractor)

// WithDispelAbility sets the companion ability whose aura removals count as
// purges.
func WithDispelAbility(name string) Option {
	return func(e *Extractor) {
		if name != "" {
			e.dispel = name
		}
	}
}

// WithTrackedBuff sets the buff whose gains are counted.
func WithTrackedBuff(name string) Option {
	return func(e *Extractor) {
		if name != "" {
			e.buff = name
		}
	}
}

// Input is one match to score.
type Input struct {
	Match     model.ResolvedMatch
	Subject   model.Identity
	Companion model.Identity // zero when the subject had none
	Opponents model.GUIDSet
	// Events must be sorted by instant. Only those in Match.Span() count.
	Events []model.RawEvent
}

// Scorer computes metrics for a match.
type Scorer interface {
	// Score computes metrics, honoring ctx for cancellation.
	Score(ctx context.Context, in Input) (model.MatchMetrics, error)
}

// Extractor implements Scorer over an in-memory event slice.
type Extractor struct {
	dispel string
	buff   string
}

// NewExtractor creates an Extractor.
func NewExtractor(opts ...Option) *Extractor {
	e := &Extractor{
		dispel: DefaultDispelAbility,
		buff:   DefaultTrackedBuff,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Score classifies every event in [start, end). Malformed records are
// counted and skipped.
func (e *Extractor) Score(ctx context.Context, in Input) (model.MatchMetrics, error) {
	m := model.MatchMetrics{
		RecordingID:  in.Match.RecordingID,
		SpellsCast:   []string{},
		SpellsPurged: []string{},
	}

	for i, ev := range model.SliceEvents(in.Events, in.Match.Span()) {
		if i%ctxCheckEvery == 0 {
			if err := ctx.Err(); err != nil {
				return model.MatchMetrics{}, fmt.Errorf("context cancelled: %w", err)
			}
		}
		if ev.Err != nil {
			m.MalformedSkipped++
			continue
		}
		e.classify(&m, in, ev)
	}
	return m, nil
}

func (e *Extractor) classify(m *model.MatchMetrics, in Input, ev model.RawEvent) {
	fromSubject := in.Subject.Matches(ev.Source)
	toSubject := in.Subject.Matches(ev.Dest)

	switch ev.Kind {
	case model.KindSpellCastSuccess:
		if fromSubject {
			m.CastSuccessOwn++
			m.SpellsCast = append(m.SpellsCast, ev.SpellName)
		}

	case model.KindSpellDispel:
		if in.Companion.IsZero() || !in.Companion.Matches(ev.Source) || ev.SpellName != e.dispel {
			return
		}
		m.PurgesOwn++
		m.SpellsPurged = append(m.SpellsPurged, ev.ExtraSpellName)

	case model.KindSpellInterrupt:
		if fromSubject {
			m.InterruptsPerformed++
		}
		if toSubject {
			m.TimesInterrupted++
		}

	case model.KindSpellAuraApplied:
		if ev.SpellName != e.buff {
			return
		}
		switch {
		case toSubject:
			m.BuffGainedOwn++
		case e.opponent(in.Opponents, ev.Dest):
			m.BuffGainedEnemy++
		}

	case model.KindUnitDied:
		if toSubject {
			m.TimesDied++
		}
	}
}

// opponent checks the roster, falling back to the unit's reaction flag
// when no roster is known.
func (e *Extractor) opponent(roster model.GUIDSet, u model.Unit) bool {
	if len(roster) > 0 {
		return roster.Has(u.GUID)
	}
	return u.Hostile()
}
