package index_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Phlares/wow-arena-analysis/internal/adapters/index"
	"github.com/Phlares/wow-arena-analysis/internal/domain/model"
	"github.com/smartystreets/goconvey/convey"
)

const (
	ruins   = "2025-01-01_20-31-43_-_Felbane_-_3v3_Ruins_of_Lordaeron_(Win)"
	shuffle = "2025-01-01_21-00-00_-_Felbane_-_Solo_Shuffle_Tol_viron_(Loss)"

	ruinsJSON = `{
  "category": "3v3",
  "zoneID": 572,
  "zoneName": "Ruins of Lordaeron",
  "result": true,
  "duration": 182,
  "start": 1735763503123,
  "player": {"_name": "Felbane", "_GUID": "Player-1-A", "_teamID": 0},
  "combatants": [
    {"_name": "Felbane", "_GUID": "Player-1-A", "_teamID": 0, "_specID": 265},
    {"_name": "Healz", "_GUID": "Player-1-B", "_teamID": 0, "_specID": 65},
    {"_name": "Stabby", "_GUID": "Player-2-C", "_teamID": 1, "_specID": 259},
    {"_name": "Zappy", "_GUID": "Player-2-D", "_teamID": 1, "_specID": 262}
  ],
  "deaths": [{"name": "Stabby", "friendly": false}, {"name": "Zappy", "friendly": false}]
}`
)

type fakeMarkers struct {
	line string
	got  []model.SessionMarker
}

func (f *fakeMarkers) MarkerLine(_ context.Context, _ time.Time, _ time.Duration, accept func(model.SessionMarker) bool) (string, error) {
	m := model.SessionMarker{LocationID: "980"}
	if !accept(m) {
		return "", errors.New("no marker")
	}
	f.got = append(f.got, m)
	return f.line, nil
}

type tolvironOnly struct{}

func (tolvironOnly) LocationMatches(id, name string) bool { return id == "980" && name == "Tol'viron" }

func writeFile(t *testing.T, path, body string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
}

func TestParseFilename(t *testing.T) {
	convey.Convey("Given recorder filenames", t, func() {
		convey.Convey("A full name yields every part", func() {
			info, err := index.ParseFilename(ruins+".mp4", time.UTC)
			convey.So(err, convey.ShouldBeNil)
			convey.So(info.Time, convey.ShouldEqual, time.Date(2025, 1, 1, 20, 31, 43, 0, time.UTC))
			convey.So(info.Player, convey.ShouldEqual, "Felbane")
			convey.So(info.MatchType, convey.ShouldEqual, "3v3")
			convey.So(info.Location, convey.ShouldEqual, "Ruins of Lordaeron")
			convey.So(info.Outcome, convey.ShouldEqual, "win")
		})

		convey.Convey("Shuffle names and the Tol'viron apostrophe are restored", func() {
			info, err := index.ParseFilename(shuffle+".mp4", time.UTC)
			convey.So(err, convey.ShouldBeNil)
			convey.So(info.MatchType, convey.ShouldEqual, "Solo Shuffle")
			convey.So(info.Location, convey.ShouldEqual, "Tol'viron")
			convey.So(info.Outcome, convey.ShouldEqual, "loss")
		})

		convey.Convey("Skirmish names are recognised", func() {
			info, err := index.ParseFilename("2025-02-02_10-00-00_-_Felbane_-_Skirmish_Nagrand_(Win).mkv", time.UTC)
			convey.So(err, convey.ShouldBeNil)
			convey.So(info.MatchType, convey.ShouldEqual, "Skirmish")
			convey.So(info.Location, convey.ShouldEqual, "Nagrand")
		})

		convey.Convey("A name without a timestamp is rejected", func() {
			_, err := index.ParseFilename("clip.mp4", time.UTC)
			convey.So(errors.Is(err, index.ErrBadFilename), convey.ShouldBeTrue)
		})
	})
}

func TestIndexer_Walk(t *testing.T) {
	convey.Convey("Given a recordings tree", t, func() {
		root := t.TempDir()
		writeFile(t, filepath.Join(root, "2025-01", ruins+".mp4"), "")
		writeFile(t, filepath.Join(root, "2025-01", ruins+".json"), ruinsJSON)
		writeFile(t, filepath.Join(root, "2025-01", shuffle+".mp4"), "")
		writeFile(t, filepath.Join(root, "2025-01", "2025-01-01_22-00-00_-_Felbane_-_2v2_Nagrand_(Win).json"), `{"category": "2v2"}`)
		writeFile(t, filepath.Join(root, "notes.txt"), "ignored")

		markers := &fakeMarkers{line: "1/1/2025 21:00:05.000  ARENA_MATCH_START,980,33,Solo Shuffle,1"}
		x, err := index.New(index.WithLocation(time.UTC), index.WithMarkers(markers, tolvironOnly{}, time.Minute))
		convey.So(err, convey.ShouldBeNil)

		res, err := x.Walk(context.Background(), root)
		convey.So(err, convey.ShouldBeNil)

		convey.Convey("Then usable recordings are returned in ID order", func() {
			convey.So(res.Recordings, convey.ShouldHaveLength, 2)
			convey.So(res.Recordings[0].ID, convey.ShouldEqual, ruins)
			convey.So(res.Recordings[1].ID, convey.ShouldEqual, shuffle)
		})

		convey.Convey("Then metadata fills the evidence and roster", func() {
			rec := res.Recordings[0]
			convey.So(rec.Evidence.StartField, convey.ShouldEqual, "1735763503123")
			convey.So(rec.Evidence.Filename, convey.ShouldEqual, ruins+".mp4")
			convey.So(rec.Evidence.LogMarkerLine, convey.ShouldBeEmpty)
			convey.So(rec.Subject, convey.ShouldResemble, model.Identity{GUID: "Player-1-A", Name: "Felbane"})
			convey.So(rec.Duration, convey.ShouldEqual, 182*time.Second)
			convey.So(rec.Outcome, convey.ShouldEqual, "win")
			convey.So(*rec.DeathCount, convey.ShouldEqual, 2)
			convey.So(rec.Participants.Sorted(), convey.ShouldResemble, []string{"Player-1-A", "Player-1-B", "Player-2-C", "Player-2-D"})
			convey.So(rec.Opponents.Sorted(), convey.ShouldResemble, []string{"Player-2-C", "Player-2-D"})
		})

		convey.Convey("Then a bare video falls back to its filename and log marker", func() {
			rec := res.Recordings[1]
			convey.So(rec.MatchType, convey.ShouldEqual, "Solo Shuffle")
			convey.So(rec.Location, convey.ShouldEqual, "Tol'viron")
			convey.So(rec.DeathCount, convey.ShouldBeNil)
			convey.So(rec.Evidence.LogMarkerLine, convey.ShouldEqual, markers.line)
			convey.So(markers.got, convey.ShouldHaveLength, 1)
		})

		convey.Convey("Then metadata failing validation is skipped", func() {
			convey.So(res.Skipped, convey.ShouldHaveLength, 1)
			convey.So(errors.Is(res.Skipped[0].Err, index.ErrInvalidMetadata), convey.ShouldBeTrue)
		})
	})

	convey.Convey("Given a missing root", t, func() {
		x, err := index.New()
		convey.So(err, convey.ShouldBeNil)
		_, err = x.Walk(context.Background(), filepath.Join(t.TempDir(), "nope"))
		convey.So(err, convey.ShouldNotBeNil)
	})
}
