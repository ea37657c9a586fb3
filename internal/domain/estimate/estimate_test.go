package estimate

import (
	"errors"
	"testing"
	"time"

	"github.com/Phlares/wow-arena-analysis/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func TestResolve(t *testing.T) {
	Convey("Given a resolver in UTC", t, func() {
		r := New(WithLocation(time.UTC))
		name := "2025-01-05_20-00-10_-_Phlurbotomy_-_3v3_Nagrand_(Win).mp4"

		Convey("A start field wins with the tightest radius", func() {
			est, err := r.Resolve(model.Recording{ID: "a", Evidence: model.Evidence{
				StartField:    "1736107200000",
				LogMarkerLine: "1/5/2025 20:00:05.000  ARENA_MATCH_START,1505,33,3v3,1",
				Filename:      name,
			}})
			So(err, ShouldBeNil)
			So(est.Tier, ShouldEqual, model.TierHigh)
			So(est.Radius, ShouldEqual, 30*time.Second)
			So(est.Instant.UTC(), ShouldEqual, time.Date(2025, 1, 5, 20, 0, 0, 0, time.UTC))
			So(est.Source, ShouldEqual, SourceStartField)
		})

		Convey("RFC 3339 start fields are accepted", func() {
			est, err := r.Resolve(model.Recording{Evidence: model.Evidence{StartField: "2025-01-05T20:00:00Z"}})
			So(err, ShouldBeNil)
			So(est.Tier, ShouldEqual, model.TierHigh)
		})

		Convey("A log marker is the medium tier", func() {
			est, err := r.Resolve(model.Recording{Evidence: model.Evidence{
				StartField:    "not a time",
				LogMarkerLine: "1/5 20:00:05.000  ARENA_MATCH_START,1505,33,3v3,1",
				Filename:      name,
			}})
			So(err, ShouldBeNil)
			So(est.Tier, ShouldEqual, model.TierMedium)
			So(est.Radius, ShouldEqual, 2*time.Minute)
			So(est.Instant, ShouldEqual, time.Date(2025, 1, 5, 20, 0, 5, 0, time.UTC))
		})

		Convey("A yearless marker without a filename date falls through", func() {
			_, err := r.Resolve(model.Recording{Evidence: model.Evidence{
				LogMarkerLine: "1/5 20:00:05.000  ARENA_MATCH_START,1505,33,3v3,1",
			}})
			So(errors.Is(err, model.ErrEstimateUnavailable), ShouldBeTrue)
		})

		Convey("A non-start log line is not marker evidence", func() {
			est, err := r.Resolve(model.Recording{Evidence: model.Evidence{
				LogMarkerLine: "1/5/2025 20:03:00.000  ARENA_MATCH_END,1,180,1650,1712",
				Filename:      name,
			}})
			So(err, ShouldBeNil)
			So(est.Tier, ShouldEqual, model.TierLow)
		})

		Convey("The filename is the low tier", func() {
			est, err := r.Resolve(model.Recording{Evidence: model.Evidence{Filename: name}})
			So(err, ShouldBeNil)
			So(est.Tier, ShouldEqual, model.TierLow)
			So(est.Radius, ShouldEqual, 5*time.Minute)
			So(est.Instant, ShouldEqual, time.Date(2025, 1, 5, 20, 0, 10, 0, time.UTC))
			So(est.Window().Start, ShouldEqual, est.Instant.Add(-5*time.Minute))
		})

		Convey("No parsable evidence is EstimateUnavailable", func() {
			_, err := r.Resolve(model.Recording{ID: "x", Evidence: model.Evidence{Filename: "clip.mp4", StartField: "-5"}})
			So(errors.Is(err, model.ErrEstimateUnavailable), ShouldBeTrue)
		})
	})

	Convey("Radii are configurable", t, func() {
		r := New(WithRadii(10*time.Second, 0, time.Hour))
		So(r.Radius(model.TierHigh), ShouldEqual, 10*time.Second)
		So(r.Radius(model.TierMedium), ShouldEqual, DefaultMediumRadius)
		So(r.Radius(model.TierLow), ShouldEqual, time.Hour)
	})
}
