package config_test

import (
	"context"
	"errors"
	"runtime"
	"testing"
	"time"

	"github.com/Phlares/wow-arena-analysis/internal/config"
	"github.com/smartystreets/goconvey/convey"
)

func TestConfig_New(t *testing.T) {
	convey.Convey("Given a new config with default options", t, func() {
		cfg := config.New(context.Background())

		convey.Convey("Then it should have sensible defaults", func() {
			convey.So(cfg.Addr, convey.ShouldEqual, ":9080")
			convey.So(cfg.QueueSize, convey.ShouldEqual, 10_000)
			convey.So(cfg.WorkerCount, convey.ShouldEqual, runtime.NumCPU())
			convey.So(cfg.DispelAbility, convey.ShouldEqual, "Devour Magic")
			convey.So(cfg.TrackedBuff, convey.ShouldEqual, "Precognition")
			convey.So(cfg.Validate(), convey.ShouldBeNil)
		})

		convey.Convey("Then radii follow the trust tiers", func() {
			high, medium, low := cfg.Radii()
			convey.So(high, convey.ShouldEqual, 30*time.Second)
			convey.So(medium, convey.ShouldEqual, 2*time.Minute)
			convey.So(low, convey.ShouldEqual, 5*time.Minute)
			convey.So(cfg.DurationTolerance(), convey.ShouldEqual, time.Minute)
			convey.So(cfg.SessionHorizon(), convey.ShouldEqual, 45*time.Minute)
		})
	})
}

func TestConfig_Validate(t *testing.T) {
	convey.Convey("Given configs with bad values", t, func() {
		ctx := context.Background()

		convey.Convey("A zero radius is rejected", func() {
			cfg := config.New(ctx)
			cfg.RadiusMediumSeconds = 0
			err := cfg.Validate()
			convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
		})

		convey.Convey("An unknown timezone is rejected", func() {
			cfg := config.New(ctx)
			cfg.Timezone = "Mars/Olympus_Mons"
			_, err := cfg.Location()
			convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
			convey.So(errors.Is(err, config.ErrUnknownTimezone), convey.ShouldBeTrue)
		})

		convey.Convey("UTC resolves", func() {
			cfg := config.New(ctx)
			cfg.Timezone = "UTC"
			loc, err := cfg.Location()
			convey.So(err, convey.ShouldBeNil)
			convey.So(loc, convey.ShouldEqual, time.UTC)
		})
	})
}
