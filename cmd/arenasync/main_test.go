package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gofrs/flock"
	"github.com/smartystreets/goconvey/convey"

	"github.com/Phlares/wow-arena-analysis/internal/adapters/repository"
	service "github.com/Phlares/wow-arena-analysis/internal/app"
	"github.com/Phlares/wow-arena-analysis/internal/domain/types"
	"github.com/Phlares/wow-arena-analysis/internal/testevents"
)

func execute(ctx context.Context, args ...string) (string, error) {
	var out bytes.Buffer
	root := newRootCommand()
	root.SetArgs(args)
	root.SetOut(&out)
	root.SetErr(io.Discard)
	err := root.ExecuteContext(ctx)
	return out.String(), err
}

func TestTablesCommand(t *testing.T) {
	convey.Convey("Given the tables command", t, func() {
		t.Setenv("ARENA_LOG_LEVEL", "error")

		out, err := execute(context.Background(), "tables")

		convey.Convey("Then it prints both tables", func() {
			convey.So(err, convey.ShouldBeNil)
			convey.So(out, convey.ShouldContainSubstring, "Nagrand Arena")
			convey.So(out, convey.ShouldContainSubstring, "1505")
			convey.So(out, convey.ShouldContainSubstring, "Solo Shuffle")
			convey.So(out, convey.ShouldContainSubstring, "MATCH TYPE")
		})
	})
}

func TestRenderSummary(t *testing.T) {
	convey.Convey("Given a finished batch", t, func() {
		sum := service.Summary{
			RunID:    "run-1",
			Total:    4,
			Resolved: 3,
			ByKind:   map[string]int{"no_match_found": 1, "ok": 3},
			Elapsed:  1500 * time.Millisecond,
		}

		convey.Convey("Then resolved outcomes are listed first with their share", func() {
			out := renderSummary(sum)
			convey.So(out, convey.ShouldContainSubstring, "75.0%")
			convey.So(out, convey.ShouldContainSubstring, "25.0%")
			convey.So(bytes.Index([]byte(out), []byte("ok")), convey.ShouldBeLessThan,
				bytes.Index([]byte(out), []byte("no_match_found")))
		})

		convey.Convey("Then the header reads naturally", func() {
			line := summaryHeader(sum, 2, "")
			convey.So(line, convey.ShouldEqual, "Run run-1: 4 recordings, 3 resolved in 1.5s, 2 files skipped")
		})

		convey.Convey("Then a cancelled batch shows what was left", func() {
			cut := sum
			cut.Pending = 5
			convey.So(summaryHeader(cut, 0, ""), convey.ShouldEqual, "Run run-1: 4 recordings, 3 resolved in 1.5s, 5 left pending")
		})
	})
}

func TestRunCommand(t *testing.T) {
	ctx := context.Background()

	convey.Convey("Given recordings and combat logs on disk", t, func() {
		dir := t.TempDir()
		sc := testevents.Generate(testevents.Config{
			OutputDir:         dir,
			Sessions:          6,
			ShuffleEvery:      3,
			FilenameOnlyEvery: 4,
			Seed:              7,
			Location:          time.UTC,
		})
		convey.So(sc.WriteFiles(ctx, nil), convey.ShouldBeNil)

		dbPath := filepath.Join(dir, "matches.db")
		t.Setenv("ARENA_LOG_LEVEL", "error")
		t.Setenv("ARENA_TIMEZONE", "UTC")
		t.Setenv("ARENA_WORKER_COUNT", "3")
		t.Setenv("ARENA_LOGS_DIR", filepath.Join(dir, testevents.LogsDir))
		t.Setenv("ARENA_RECORDINGS_DIR", filepath.Join(dir, testevents.RecordingsDir))
		t.Setenv("ARENA_DB_PATH", dbPath)

		convey.Convey("When the batch runs", func() {
			out, err := execute(ctx, "run")
			convey.So(err, convey.ShouldBeNil)

			convey.Convey("Then every recording is resolved", func() {
				convey.So(out, convey.ShouldContainSubstring, "6 recordings, 6 resolved")
				convey.So(out, convey.ShouldContainSubstring, "100.0%")
			})

			convey.Convey("Then the read API serves the stored matches", func() {
				store, err := repository.OpenSQLite(ctx, dbPath)
				convey.So(err, convey.ShouldBeNil)
				defer store.Close()

				mux := newMux(ctx, service.New(nil, store))
				req := httptest.NewRequest("GET", "/matches?limit=10", http.NoBody)
				w := httptest.NewRecorder()
				mux.ServeHTTP(w, req)
				convey.So(w.Code, convey.ShouldEqual, http.StatusOK)

				var records []types.MatchRecord
				convey.So(json.NewDecoder(w.Body).Decode(&records), convey.ShouldBeNil)
				convey.So(records, convey.ShouldHaveLength, 6)
				for i := range sc.Sessions {
					rec, err := store.Get(ctx, sc.RecordingID(i))
					convey.So(err, convey.ShouldBeNil)
					convey.So(sc.Check(i, rec), convey.ShouldBeNil)
				}
			})

			convey.Convey("Then running again converges on the same rows", func() {
				out, err := execute(ctx, "run")
				convey.So(err, convey.ShouldBeNil)
				convey.So(out, convey.ShouldContainSubstring, "6 recordings, 6 resolved")
			})
		})

		convey.Convey("When another batch holds the database lock", func() {
			lock := flock.New(dbPath + ".lock")
			ok, err := lock.TryLock()
			convey.So(err, convey.ShouldBeNil)
			convey.So(ok, convey.ShouldBeTrue)
			defer func() { _ = lock.Unlock() }()

			_, err = execute(ctx, "run")

			convey.Convey("Then the run refuses to start", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(err.Error(), convey.ShouldContainSubstring, "already writing")
			})
		})

		convey.Convey("When the dry run flag is set", func() {
			out, err := execute(ctx, "run", "--dry-run")
			convey.So(err, convey.ShouldBeNil)
			convey.So(out, convey.ShouldContainSubstring, "6 resolved")
			convey.So(out, convey.ShouldNotContainSubstring, "database")
		})

		convey.Convey("When the log directory holds no combat logs", func() {
			t.Setenv("ARENA_LOGS_DIR", t.TempDir())
			_, err := execute(ctx, "run", "--dry-run")

			convey.Convey("Then the run stops before touching any recording", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(err.Error(), convey.ShouldContainSubstring, "no combat log files")
			})
		})
	})
}
