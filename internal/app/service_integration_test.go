package service_test

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/Phlares/wow-arena-analysis/internal/adapters/companion"
	"github.com/Phlares/wow-arena-analysis/internal/adapters/eventlog"
	"github.com/Phlares/wow-arena-analysis/internal/adapters/index"
	"github.com/Phlares/wow-arena-analysis/internal/adapters/repository"
	"github.com/Phlares/wow-arena-analysis/internal/adapters/tables"
	service "github.com/Phlares/wow-arena-analysis/internal/app"
	"github.com/Phlares/wow-arena-analysis/internal/domain/estimate"
	"github.com/Phlares/wow-arena-analysis/internal/domain/types"
	"github.com/Phlares/wow-arena-analysis/internal/testevents"
	. "github.com/smartystreets/goconvey/convey"
)

func scenarioConfig(dir string) testevents.Config {
	return testevents.Config{
		OutputDir:         dir,
		Sessions:          8,
		ShuffleEvery:      4,
		FilenameOnlyEvery: 5,
		Seed:              42,
		Location:          time.UTC,
	}
}

func TestService_Integration_InMemory(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	ctx := context.Background()

	Convey("Given a generated evening of arena sessions", t, func() {
		sc := testevents.Generate(scenarioConfig(""))
		stream, err := eventlog.ReadStream(strings.NewReader(strings.Join(sc.Lines(), "\n")), 2025, time.UTC)
		So(err, ShouldBeNil)

		tbl, err := tables.Default()
		So(err, ShouldBeNil)

		pipeline := service.NewPipeline(stream, tbl,
			service.WithEstimator(estimate.New(estimate.WithLocation(time.UTC))),
			service.WithCompanions(companion.Chain{companion.NewSummonResolver(0)}),
		)
		store := repository.NewMemoryStore()
		svc := service.New(pipeline, store, service.WithWorkerCount(4))

		Convey("When every recording is processed", func() {
			sum, err := svc.Run(ctx, sc.Recordings())
			So(err, ShouldBeNil)

			Convey("Then each recording finds its own session", func() {
				So(sum.Total, ShouldEqual, len(sc.Sessions))
				So(sum.Resolved, ShouldEqual, len(sc.Sessions))
				for i := range sc.Sessions {
					rec, err := store.Get(ctx, sc.RecordingID(i))
					So(err, ShouldBeNil)
					So(sc.Check(i, rec), ShouldBeNil)
				}
			})

			Convey("Then recordings with a roster get full metrics", func() {
				for i, s := range sc.Sessions {
					if s.FilenameOnly {
						continue
					}
					rec, err := store.Get(ctx, sc.RecordingID(i))
					So(err, ShouldBeNil)
					So(rec.Tier, ShouldEqual, "high")
					So(rec.InterruptsPerformed, ShouldEqual, s.Expected.InterruptsPerformed)
					So(rec.TimesInterrupted, ShouldEqual, s.Expected.TimesInterrupted)
					So(rec.PurgesOwn, ShouldEqual, s.Expected.PurgesOwn)
					So(rec.SpellsPurged, ShouldResemble, s.Expected.SpellsPurged)
					So(rec.BuffGainedOwn, ShouldEqual, s.Expected.BuffGainedOwn)
					So(rec.BuffGainedEnemy, ShouldEqual, s.Expected.BuffGainedEnemy)
				}
			})

			Convey("Then filename-only recordings fall back to the low tier", func() {
				for i, s := range sc.Sessions {
					if !s.FilenameOnly {
						continue
					}
					rec, err := store.Get(ctx, sc.RecordingID(i))
					So(err, ShouldBeNil)
					So(rec.Tier, ShouldEqual, "low")
				}
			})
		})
	})
}

func TestService_Integration_Files(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	ctx := context.Background()

	Convey("Given a scenario written to disk", t, func() {
		dir := t.TempDir()
		sc := testevents.Generate(scenarioConfig(dir))
		So(sc.WriteFiles(ctx, nil), ShouldBeNil)

		tbl, err := tables.Default()
		So(err, ShouldBeNil)

		logs, err := eventlog.Open(filepath.Join(dir, testevents.LogsDir), eventlog.WithLocation(time.UTC))
		So(err, ShouldBeNil)
		So(logs.Partitions(), ShouldHaveLength, 1)

		idx, err := index.New(
			index.WithLocation(time.UTC),
			index.WithMarkers(logs, tbl, 5*time.Minute),
		)
		So(err, ShouldBeNil)
		walked, err := idx.Walk(ctx, filepath.Join(dir, testevents.RecordingsDir))
		So(err, ShouldBeNil)
		So(walked.Skipped, ShouldBeEmpty)
		So(walked.Recordings, ShouldHaveLength, len(sc.Sessions))

		store, err := repository.OpenSQLite(ctx, filepath.Join(dir, "matches.db"))
		So(err, ShouldBeNil)
		defer store.Close()

		pipeline := service.NewPipeline(logs, tbl,
			service.WithEstimator(estimate.New(estimate.WithLocation(time.UTC))),
			service.WithCompanions(companion.Chain{companion.NewSummonResolver(0)}),
		)
		svc := service.New(pipeline, store, service.WithWorkerCount(2))

		Convey("When the indexed recordings are processed", func() {
			sum, err := svc.Run(ctx, walked.Recordings)
			So(err, ShouldBeNil)

			Convey("Then every stored record matches its session", func() {
				So(sum.Resolved, ShouldEqual, len(sc.Sessions))
				for i := range sc.Sessions {
					rec, err := store.Get(ctx, sc.RecordingID(i))
					So(err, ShouldBeNil)
					So(sc.Check(i, rec), ShouldBeNil)
				}
			})

			Convey("Then filename-only recordings are anchored on a marker line", func() {
				for i, s := range sc.Sessions {
					if !s.FilenameOnly {
						continue
					}
					rec, err := store.Get(ctx, sc.RecordingID(i))
					So(err, ShouldBeNil)
					So(rec.Tier, ShouldEqual, "medium")
				}
			})

			Convey("Then the read side lists the newest session first", func() {
				latest, err := svc.Latest(ctx, 3)
				So(err, ShouldBeNil)
				So(latest, ShouldHaveLength, 3)
				last := len(sc.Sessions) - 1
				So(latest[0].RecordingID, ShouldEqual, sc.RecordingID(last))
			})
		})
	})
}

func memoryPipeline(sc *testevents.Scenario) *service.Pipeline {
	stream, err := eventlog.ReadStream(strings.NewReader(strings.Join(sc.Lines(), "\n")), 2025, time.UTC)
	So(err, ShouldBeNil)
	tbl, err := tables.Default()
	So(err, ShouldBeNil)
	return service.NewPipeline(stream, tbl,
		service.WithEstimator(estimate.New(estimate.WithLocation(time.UTC))),
		service.WithCompanions(companion.Chain{companion.NewSummonResolver(0)}),
	)
}

// stable drops the fields that change between runs.
func stable(recs []types.MatchRecord) map[string]types.MatchRecord {
	out := make(map[string]types.MatchRecord, len(recs))
	for _, r := range recs {
		r.RunID = ""
		r.ProcessedAt = time.Time{}
		out[r.RecordingID] = r
	}
	return out
}

func TestService_Integration_Rerun(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	ctx := context.Background()

	Convey("Given the same evening processed twice", t, func() {
		sc := testevents.Generate(scenarioConfig(""))
		first := repository.NewMemoryStore()
		second := repository.NewMemoryStore()

		_, err := service.New(memoryPipeline(sc), first, service.WithWorkerCount(1)).Run(ctx, sc.Recordings())
		So(err, ShouldBeNil)
		_, err = service.New(memoryPipeline(sc), second, service.WithWorkerCount(6)).Run(ctx, sc.Recordings())
		So(err, ShouldBeNil)

		Convey("Then every stored record is identical field by field", func() {
			a, b := stable(first.All()), stable(second.All())
			So(len(a), ShouldEqual, len(sc.Sessions))
			for id, rec := range a {
				So(b[id], ShouldResemble, rec)
			}
		})
	})
}

func TestService_Integration_Exclusivity(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	ctx := context.Background()

	Convey("Given two recordings of the same session", t, func() {
		sc := testevents.Generate(scenarioConfig(""))
		recs := sc.Recordings()
		dup := recs[0]
		dup.ID = recs[0].ID + "-copy"
		recs = append(recs, dup)

		store := repository.NewMemoryStore()
		sum, err := service.New(memoryPipeline(sc), store, service.WithWorkerCount(4)).Run(ctx, recs)
		So(err, ShouldBeNil)

		Convey("Then only one of them keeps the session", func() {
			So(sum.Resolved, ShouldEqual, len(sc.Sessions))
			So(sum.ByKind["session_claimed"], ShouldEqual, 1)

			orig, err := store.Get(ctx, recs[0].ID)
			So(err, ShouldBeNil)
			So(sc.Check(0, orig), ShouldBeNil)

			copied, err := store.Get(ctx, dup.ID)
			So(err, ShouldBeNil)
			So(copied.Resolved(), ShouldBeFalse)
			So(copied.ErrorKind, ShouldEqual, "session_claimed")
		})

		Convey("Then no two resolved records share a session or overlap", func() {
			var resolved []types.MatchRecord
			for _, r := range store.All() {
				if r.Resolved() {
					resolved = append(resolved, r)
				}
			}
			keys := map[string]bool{}
			for i, r := range resolved {
				So(keys[r.SessionKey], ShouldBeFalse)
				keys[r.SessionKey] = true
				for _, o := range resolved[i+1:] {
					overlap := r.Start.Before(*o.End) && o.Start.Before(*r.End)
					So(overlap, ShouldBeFalse)
				}
			}
		})
	})
}
