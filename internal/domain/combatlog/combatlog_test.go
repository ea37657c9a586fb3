package combatlog

import (
	"errors"
	"testing"
	"time"

	"github.com/Phlares/wow-arena-analysis/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func TestParseTimestamp(t *testing.T) {
	Convey("Given a parser for 2025 in UTC", t, func() {
		p := NewParser(2025, time.UTC)

		Convey("A full stamp with offset is absolute", func() {
			ts, err := p.ParseTimestamp("1/2/2025 18:04:33.345-5")
			So(err, ShouldBeNil)
			So(ts.UTC(), ShouldEqual, time.Date(2025, 1, 2, 23, 4, 33, 345_000_000, time.UTC))
		})

		Convey("A yearless stamp borrows the parser year", func() {
			ts, err := p.ParseTimestamp("3/14 09:26:53.589")
			So(err, ShouldBeNil)
			So(ts, ShouldEqual, time.Date(2025, 3, 14, 9, 26, 53, 589_000_000, time.UTC))
		})

		Convey("Whole seconds are accepted", func() {
			ts, err := p.ParseTimestamp("12/31/2024 23:59:59")
			So(err, ShouldBeNil)
			So(ts.Year(), ShouldEqual, 2024)
		})

		Convey("Garbage is rejected", func() {
			for _, s := range []string{"", "hello", "13/1/2025 10:00:00", "2/30/2025 10:00:00", "1/2/2025 25:00:00", "1/2/2025 10:00"} {
				_, err := p.ParseTimestamp(s)
				So(errors.Is(err, ErrBadTimestamp), ShouldBeTrue)
			}
		})
	})
}

func TestSplitFields(t *testing.T) {
	Convey("Commas inside quotes do not split", t, func() {
		f := SplitFields(`SPELL_AURA_APPLIED,"a,b",0x1`)
		So(f, ShouldResemble, []string{"SPELL_AURA_APPLIED", `"a,b"`, "0x1"})
		So(Unquote(f[1]), ShouldEqual, "a,b")
	})
}

func TestParseLine(t *testing.T) {
	Convey("Given a parser", t, func() {
		p := NewParser(2025, time.UTC)

		Convey("A cast line decodes units and spell", func() {
			ev, err := p.ParseLine(`1/5/2025 20:01:02.500  SPELL_CAST_SUCCESS,Player-1-AAA,"Phlurbotomy-Stormrage",0x511,0x0,Player-2-BBB,"Foe-Realm",0x548,0x0,116858,"Chaos Bolt",0x24,Player-1-AAA,0000000000000000,100,100`)
			So(err, ShouldBeNil)
			So(ev.Err, ShouldBeNil)
			So(ev.Kind, ShouldEqual, model.KindSpellCastSuccess)
			So(ev.Source.GUID, ShouldEqual, "Player-1-AAA")
			So(ev.Source.Name, ShouldEqual, "Phlurbotomy-Stormrage")
			So(ev.Dest.Hostile(), ShouldBeTrue)
			So(ev.SpellID, ShouldEqual, 116858)
			So(ev.SpellName, ShouldEqual, "Chaos Bolt")
		})

		Convey("A dispel line carries the removed aura", func() {
			ev, err := p.ParseLine(`1/5/2025 20:01:03.000  SPELL_DISPEL,Creature-0-1-2-3-417-0001,"Vilefiend",0x1111,0x0,Player-2-BBB,"Foe-Realm",0x548,0x0,19505,"Devour Magic",0x20,17,"Power Word: Shield",2,BUFF`)
			So(err, ShouldBeNil)
			So(ev.Err, ShouldBeNil)
			So(ev.SpellName, ShouldEqual, "Devour Magic")
			So(ev.ExtraSpellName, ShouldEqual, "Power Word: Shield")
			So(ev.ExtraSpellID, ShouldEqual, 17)
		})

		Convey("Arena markers become session markers", func() {
			start, err := p.ParseLine(`1/5/2025 20:00:00.000  ARENA_MATCH_START,980,33,3v3,1`)
			So(err, ShouldBeNil)
			So(start.Marker, ShouldNotBeNil)
			So(start.Marker.Kind, ShouldEqual, model.MarkerStart)
			So(start.Marker.LocationID, ShouldEqual, "980")
			So(start.Marker.MatchType, ShouldEqual, "3v3")

			end, err := p.ParseLine(`1/5/2025 20:03:00.000  ARENA_MATCH_END,1,180,1650,1712`)
			So(err, ShouldBeNil)
			So(end.Marker.Kind, ShouldEqual, model.MarkerEnd)
			So(end.Marker.DeclaredDuration, ShouldEqual, 3*time.Minute)
		})

		Convey("A truncated unit event is placed in time but marked malformed", func() {
			ev, err := p.ParseLine(`1/5/2025 20:01:04.000  SPELL_INTERRUPT,Player-1-AAA,"Me"`)
			So(err, ShouldBeNil)
			So(errors.Is(ev.Err, model.ErrMalformedEventRecord), ShouldBeTrue)
		})

		Convey("Bad flags are malformed", func() {
			ev, err := p.ParseLine(`1/5/2025 20:01:04.000  UNIT_DIED,0000000000000000,nil,0x80000000,0x80000000,Player-2-BBB,"Foe-Realm",zz,0x0,0`)
			So(err, ShouldBeNil)
			So(errors.Is(ev.Err, model.ErrMalformedEventRecord), ShouldBeTrue)
		})

		Convey("A line without a timestamp is rejected", func() {
			_, err := p.ParseLine(`SPELL_CAST_SUCCESS,Player-1-AAA`)
			So(errors.Is(err, ErrBadTimestamp), ShouldBeTrue)
		})

		Convey("Unrelated subevents pass through", func() {
			ev, err := p.ParseLine(`1/5/2025 19:59:00.000  COMBAT_LOG_VERSION,20,ADVANCED_LOG_ENABLED,1`)
			So(err, ShouldBeNil)
			So(ev.Err, ShouldBeNil)
			So(string(ev.Kind), ShouldEqual, "COMBAT_LOG_VERSION")
		})
	})
}
