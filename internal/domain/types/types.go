// Package types contains the flat record shape shared by the output sink
// and the HTTP API.
package types

import (
	"time"

	"github.com/Phlares/wow-arena-analysis/internal/domain/model"
)

// Record statuses.
const (
	StatusResolved   = "resolved"
	StatusUnresolved = "unresolved"
)

// MatchRecord is one recording's outcome, keyed by RecordingID.
type MatchRecord struct {
	RecordingID string `json:"recording_id"`
	RunID       string `json:"run_id"`
	Status      string `json:"status"`
	ErrorKind   string `json:"error_kind,omitempty"`
	Error       string `json:"error,omitempty"`

	Filename  string `json:"filename"`
	MatchType string `json:"match_type"`
	Location  string `json:"location"`

	SessionKey string     `json:"session_key,omitempty"`
	Start      *time.Time `json:"start,omitempty"`
	End        *time.Time `json:"end,omitempty"`
	Open       bool       `json:"open"`
	Tier       string     `json:"tier,omitempty"`
	Confidence float64    `json:"confidence"`
	Ambiguous  bool       `json:"ambiguous"`
	LocationID string     `json:"location_id,omitempty"`
	Rounds     int        `json:"rounds"`

	CastSuccessOwn      int      `json:"cast_success_own"`
	InterruptsPerformed int      `json:"interrupts_performed"`
	TimesInterrupted    int      `json:"times_interrupted"`
	BuffGainedOwn       int      `json:"buff_gained_own"`
	BuffGainedEnemy     int      `json:"buff_gained_enemy"`
	PurgesOwn           int      `json:"purges_own"`
	TimesDied           int      `json:"times_died"`
	SpellsCast          []string `json:"spells_cast"`
	SpellsPurged        []string `json:"spells_purged"`
	MalformedSkipped    int      `json:"malformed_skipped"`

	ProcessedAt time.Time `json:"processed_at"`
}

// NewMatchRecord flattens a recording's outcome. match and metrics are nil
// when err is set.
func NewMatchRecord(rec model.Recording, match *model.ResolvedMatch, metrics *model.MatchMetrics, err error) MatchRecord {
	r := MatchRecord{
		RecordingID:  rec.ID,
		Status:       StatusUnresolved,
		Filename:     rec.Evidence.Filename,
		MatchType:    rec.MatchType,
		Location:     rec.Location,
		SpellsCast:   []string{},
		SpellsPurged: []string{},
	}
	if err != nil {
		r.ErrorKind = model.KindOf(err)
		r.Error = err.Error()
		return r
	}
	if match != nil {
		start, end := match.Start, match.End
		r.Status = StatusResolved
		r.SessionKey = match.SessionKey
		r.Start = &start
		r.End = &end
		r.Open = match.Open
		r.Tier = match.Tier.String()
		r.Confidence = match.Confidence
		r.Ambiguous = match.Ambiguous
		r.LocationID = match.LocationID
		r.Rounds = match.Rounds
	}
	if metrics != nil {
		r.CastSuccessOwn = metrics.CastSuccessOwn
		r.InterruptsPerformed = metrics.InterruptsPerformed
		r.TimesInterrupted = metrics.TimesInterrupted
		r.BuffGainedOwn = metrics.BuffGainedOwn
		r.BuffGainedEnemy = metrics.BuffGainedEnemy
		r.PurgesOwn = metrics.PurgesOwn
		r.TimesDied = metrics.TimesDied
		r.MalformedSkipped = metrics.MalformedSkipped
		if metrics.SpellsCast != nil {
			r.SpellsCast = metrics.SpellsCast
		}
		if metrics.SpellsPurged != nil {
			r.SpellsPurged = metrics.SpellsPurged
		}
	}
	return r
}

// Resolved reports whether the record carries a match.
func (r MatchRecord) Resolved() bool {
	return r.Status == StatusResolved
}
