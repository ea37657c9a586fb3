package model_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	model "github.com/Phlares/wow-arena-analysis/internal/domain/model"
	"github.com/smartystreets/goconvey/convey"
)

func TestTimeRange(t *testing.T) {
	convey.Convey("Given a half-open range", t, func() {
		base := time.Date(2025, 1, 5, 20, 0, 0, 0, time.UTC)
		r := model.TimeRange{Start: base, End: base.Add(time.Minute)}

		convey.Convey("Then the start is included and the end excluded", func() {
			convey.So(r.Contains(base), convey.ShouldBeTrue)
			convey.So(r.Contains(base.Add(59*time.Second)), convey.ShouldBeTrue)
			convey.So(r.Contains(base.Add(time.Minute)), convey.ShouldBeFalse)
			convey.So(r.Contains(base.Add(-time.Nanosecond)), convey.ShouldBeFalse)
		})

		convey.Convey("Then Covers treats both edges as inside", func() {
			convey.So(r.Covers(base), convey.ShouldBeTrue)
			convey.So(r.Covers(base.Add(time.Minute)), convey.ShouldBeTrue)
			convey.So(r.Covers(base.Add(time.Minute+time.Nanosecond)), convey.ShouldBeFalse)
		})

		convey.Convey("Then adjacent ranges do not overlap", func() {
			next := model.TimeRange{Start: r.End, End: r.End.Add(time.Minute)}
			convey.So(r.Overlaps(next), convey.ShouldBeFalse)
			convey.So(r.Overlaps(model.TimeRange{Start: base.Add(30 * time.Second), End: r.End.Add(time.Hour)}), convey.ShouldBeTrue)
		})
	})
}

func TestEstimateWindow(t *testing.T) {
	convey.Convey("Given a low tier estimate", t, func() {
		at := time.Date(2025, 1, 5, 20, 0, 0, 0, time.UTC)
		e := model.TimestampEstimate{Instant: at, Tier: model.TierLow, Radius: 5 * time.Minute}

		convey.Convey("Then the window is centered on the instant", func() {
			w := e.Window()
			convey.So(w.Start, convey.ShouldEqual, at.Add(-5*time.Minute))
			convey.So(w.End, convey.ShouldEqual, at.Add(5*time.Minute))
			convey.So(w.Covers(at.Add(5*time.Minute)), convey.ShouldBeTrue)
			convey.So(e.Tier.String(), convey.ShouldEqual, "low")
			convey.So(model.ParseTrustTier("high"), convey.ShouldEqual, model.TierHigh)
		})
	})
}

func TestIdentity(t *testing.T) {
	convey.Convey("Given a subject identity", t, func() {
		id := model.Identity{GUID: "Player-1-AAA", Name: "Phlurbotomy-Stormrage"}

		convey.Convey("GUID equality decides when both sides have one", func() {
			convey.So(id.Matches(model.Unit{GUID: "Player-1-AAA", Name: "Other"}), convey.ShouldBeTrue)
			convey.So(id.Matches(model.Unit{GUID: "Player-1-BBB", Name: "Phlurbotomy"}), convey.ShouldBeFalse)
		})

		convey.Convey("Base names are compared without the realm", func() {
			byName := model.Identity{Name: "Phlurbotomy"}
			convey.So(byName.Matches(model.Unit{GUID: "Player-1-AAA", Name: "Phlurbotomy-Stormrage"}), convey.ShouldBeTrue)
			convey.So(byName.Matches(model.Unit{Name: "Phlurbot"}), convey.ShouldBeFalse)
			convey.So(model.Identity{}.IsZero(), convey.ShouldBeTrue)
		})
	})
}

func TestDistinctLists(t *testing.T) {
	convey.Convey("Given metrics with repeated casts", t, func() {
		m := model.MatchMetrics{
			SpellsCast:   []string{"Chaos Bolt", "Fear", "Chaos Bolt"},
			SpellsPurged: []string{"Shield", "Shield"},
		}

		convey.Convey("Then the distinct views keep first occurrence order", func() {
			convey.So(m.DistinctSpellsCast(), convey.ShouldResemble, []string{"Chaos Bolt", "Fear"})
			convey.So(m.DistinctSpellsPurged(), convey.ShouldResemble, []string{"Shield"})
			convey.So(len(m.SpellsCast), convey.ShouldEqual, 3)
		})
	})
}

func TestKindOf(t *testing.T) {
	convey.Convey("Given wrapped errors", t, func() {
		convey.So(model.KindOf(nil), convey.ShouldEqual, "ok")
		convey.So(model.KindOf(fmt.Errorf("rec a: %w", model.ErrNoMatchFound)), convey.ShouldEqual, "no_match_found")
		convey.So(model.KindOf(fmt.Errorf("x: %w", model.ErrEstimateUnavailable)), convey.ShouldEqual, "estimate_unavailable")
		convey.So(model.KindOf(context.Canceled), convey.ShouldEqual, "internal")
		convey.So(model.IsFatal(fmt.Errorf("open: %w", model.ErrStorageUnavailable)), convey.ShouldBeTrue)
		convey.So(model.IsFatal(errors.New("other")), convey.ShouldBeFalse)
	})
}

func TestCandidateSession(t *testing.T) {
	convey.Convey("Given an open candidate", t, func() {
		start := time.Date(2025, 1, 5, 20, 0, 0, 0, time.UTC)
		c := model.CandidateSession{
			Start:      model.SessionMarker{Instant: start, Kind: model.MarkerStart, LocationID: "980"},
			Bound:      start.Add(3 * time.Minute),
			LocationID: "980",
		}

		convey.So(c.Open(), convey.ShouldBeTrue)
		convey.So(c.Span().Duration(), convey.ShouldEqual, 3*time.Minute)
		convey.So(c.Key(), convey.ShouldEndWith, "@980")
	})
}
