// Package combatlog decodes combat log lines into typed events.
//
// A line is "<timestamp>  <SUBEVENT>,<comma separated fields>". Timestamps
// come in two shapes: "1/2/2025 18:04:33.345-5" (year and UTC offset in
// hours) and the older "1/2 18:04:33.345" with neither.
package combatlog

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/Phlares/wow-arena-analysis/internal/domain/model"
)

// ErrBadTimestamp is returned when a line cannot be placed in time.
var ErrBadTimestamp = errors.New("combatlog: unparseable timestamp")

// Field positions shared by every subevent with the standard unit prefix.
const (
	fieldSourceGUID  = 1
	fieldSourceName  = 2
	fieldSourceFlags = 3
	fieldDestGUID    = 5
	fieldDestName    = 6
	fieldDestFlags   = 7
	fieldSpellID     = 9
	fieldSpellName   = 10
	fieldExtraID     = 12
	fieldExtraName   = 13
)

// Parser decodes lines. Its zero value parses yearless stamps into year 1
// in UTC; use NewParser for real logs.
type Parser struct {
	year int
	loc  *time.Location
}

// NewParser returns a parser that uses year for yearless timestamps and loc
// for timestamps without an offset.
func NewParser(year int, loc *time.Location) *Parser {
	if loc == nil {
		loc = time.Local
	}
	return &Parser{year: year, loc: loc}
}

func (p *Parser) location() *time.Location {
	if p.loc == nil {
		return time.UTC
	}
	return p.loc
}

// ParseTimestamp reads the leading timestamp of a line, or a bare timestamp.
func (p *Parser) ParseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	date, rest, ok := strings.Cut(s, " ")
	if !ok {
		return time.Time{}, fmt.Errorf("%w: %q", ErrBadTimestamp, s)
	}
	clock, _, _ := strings.Cut(strings.TrimLeft(rest, " "), " ")

	dparts := strings.Split(date, "/")
	if len(dparts) != 2 && len(dparts) != 3 {
		return time.Time{}, fmt.Errorf("%w: date %q", ErrBadTimestamp, date)
	}
	month, err1 := strconv.Atoi(dparts[0])
	day, err2 := strconv.Atoi(dparts[1])
	year := p.year
	var err3 error
	if len(dparts) == 3 {
		year, err3 = strconv.Atoi(dparts[2])
	}
	if err := errors.Join(err1, err2, err3); err != nil || month < 1 || month > 12 || day < 1 || day > 31 {
		return time.Time{}, fmt.Errorf("%w: date %q", ErrBadTimestamp, date)
	}

	loc := p.location()
	// Split off a trailing "+H" / "-H" UTC offset.
	if i := strings.LastIndexAny(clock, "+-"); i > 0 {
		hours, err := strconv.ParseFloat(clock[i:], 64)
		if err != nil {
			return time.Time{}, fmt.Errorf("%w: offset %q", ErrBadTimestamp, clock[i:])
		}
		loc = time.FixedZone("", int(hours*3600))
		clock = clock[:i]
	}

	tod, err := parseClock(clock)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %v", ErrBadTimestamp, err)
	}
	t := time.Date(year, time.Month(month), day, 0, 0, 0, int(tod), loc)
	if t.Day() != day {
		return time.Time{}, fmt.Errorf("%w: date %q", ErrBadTimestamp, date)
	}
	return t, nil
}

// parseClock reads HH:MM:SS[.fff] into a duration since midnight.
func parseClock(s string) (time.Duration, error) {
	hms, frac, _ := strings.Cut(s, ".")
	parts := strings.Split(hms, ":")
	if len(parts) != 3 {
		return 0, fmt.Errorf("clock %q", s)
	}
	var vals [3]int
	for i, p := range parts {
		v, err := strconv.Atoi(p)
		if err != nil {
			return 0, fmt.Errorf("clock %q", s)
		}
		vals[i] = v
	}
	if vals[0] > 23 || vals[1] > 59 || vals[2] > 60 {
		return 0, fmt.Errorf("clock %q", s)
	}
	d := time.Duration(vals[0])*time.Hour + time.Duration(vals[1])*time.Minute + time.Duration(vals[2])*time.Second
	if frac != "" {
		if len(frac) > 9 {
			frac = frac[:9]
		}
		ns, err := strconv.Atoi(frac + strings.Repeat("0", 9-len(frac)))
		if err != nil {
			return 0, fmt.Errorf("clock %q", s)
		}
		d += time.Duration(ns)
	}
	return d, nil
}

// SplitFields splits the payload on commas that are not inside quotes.
// Quotes are kept; use Unquote on individual fields.
func SplitFields(s string) []string {
	fields := make([]string, 0, 24)
	inQuote := false
	start := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '"':
			inQuote = !inQuote
		case ',':
			if !inQuote {
				fields = append(fields, s[start:i])
				start = i + 1
			}
		}
	}
	return append(fields, s[start:])
}

// Unquote trims whitespace and surrounding double quotes.
func Unquote(s string) string {
	return strings.Trim(strings.TrimSpace(s), `"`)
}

// ParseLine decodes one line. A nil error with a non-nil event.Err means
// the line was placed in time but its fields are malformed.
func (p *Parser) ParseLine(line string) (model.RawEvent, error) {
	line = strings.TrimRight(line, "\r\n")
	head, payload, ok := strings.Cut(line, ",")
	if !ok {
		payload = ""
	}
	// head is "<date> <clock>  <SUBEVENT>".
	idx := strings.LastIndexByte(head, ' ')
	if idx < 0 {
		return model.RawEvent{}, fmt.Errorf("%w: %q", ErrBadTimestamp, head)
	}
	instant, err := p.ParseTimestamp(head[:idx])
	if err != nil {
		return model.RawEvent{}, err
	}

	ev := model.RawEvent{Instant: instant, Kind: model.EventKind(head[idx+1:])}
	fields := SplitFields(head[idx+1:] + "," + payload)
	if !ok {
		fields = fields[:1]
	}
	ev.Err = decode(&ev, fields)
	return ev, nil
}

func decode(ev *model.RawEvent, f []string) error {
	switch ev.Kind {
	case model.KindArenaMatchStart:
		if len(f) < 5 {
			return malformed(ev.Kind, len(f))
		}
		ev.Marker = &model.SessionMarker{
			Instant:    ev.Instant,
			Kind:       model.MarkerStart,
			LocationID: Unquote(f[1]),
			MatchType:  Unquote(f[3]),
		}
		return nil
	case model.KindArenaMatchEnd:
		if len(f) < 3 {
			return malformed(ev.Kind, len(f))
		}
		team, err1 := strconv.Atoi(Unquote(f[1]))
		secs, err2 := strconv.Atoi(Unquote(f[2]))
		if err := errors.Join(err1, err2); err != nil {
			return fmt.Errorf("%w: %s: %v", model.ErrMalformedEventRecord, ev.Kind, err)
		}
		ev.Marker = &model.SessionMarker{
			Instant:          ev.Instant,
			Kind:             model.MarkerEnd,
			WinningTeam:      team,
			DeclaredDuration: time.Duration(secs) * time.Second,
		}
		return nil
	}

	if len(f) < fieldDestFlags+2 {
		// Not a unit-prefixed subevent (COMBAT_LOG_VERSION, ZONE_CHANGE...).
		if isUnitEvent(ev.Kind) {
			return malformed(ev.Kind, len(f))
		}
		return nil
	}
	src, err := unit(f, fieldSourceGUID, fieldSourceName, fieldSourceFlags)
	if err != nil {
		return fmt.Errorf("%w: %s source: %v", model.ErrMalformedEventRecord, ev.Kind, err)
	}
	dst, err := unit(f, fieldDestGUID, fieldDestName, fieldDestFlags)
	if err != nil {
		return fmt.Errorf("%w: %s dest: %v", model.ErrMalformedEventRecord, ev.Kind, err)
	}
	ev.Source, ev.Dest = src, dst

	switch ev.Kind {
	case model.KindUnitDied:
		return nil
	case model.KindSpellDispel, model.KindSpellInterrupt:
		if len(f) <= fieldExtraName {
			return malformed(ev.Kind, len(f))
		}
		ev.ExtraSpellID, _ = strconv.Atoi(Unquote(f[fieldExtraID]))
		ev.ExtraSpellName = Unquote(f[fieldExtraName])
	}
	if strings.HasPrefix(string(ev.Kind), "SPELL_") || strings.HasPrefix(string(ev.Kind), "RANGE_") {
		if len(f) <= fieldSpellName {
			return malformed(ev.Kind, len(f))
		}
		id, err := strconv.Atoi(Unquote(f[fieldSpellID]))
		if err != nil {
			return fmt.Errorf("%w: %s spell id: %v", model.ErrMalformedEventRecord, ev.Kind, err)
		}
		ev.SpellID = id
		ev.SpellName = Unquote(f[fieldSpellName])
	}
	return nil
}

func unit(f []string, guidIdx, nameIdx, flagsIdx int) (model.Unit, error) {
	name := Unquote(f[nameIdx])
	if name == "nil" {
		name = ""
	}
	flags, err := ParseFlags(f[flagsIdx])
	if err != nil {
		return model.Unit{}, err
	}
	return model.Unit{GUID: Unquote(f[guidIdx]), Name: name, Flags: flags}, nil
}

// ParseFlags reads a hex unit flag field such as "0x548".
func ParseFlags(s string) (uint32, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return 0, fmt.Errorf("flags %q", s)
	}
	return uint32(v), nil
}

func isUnitEvent(k model.EventKind) bool {
	switch k {
	case model.KindSpellCastSuccess, model.KindSpellAuraApplied, model.KindSpellDispel,
		model.KindSpellInterrupt, model.KindSpellSummon, model.KindUnitDied:
		return true
	}
	return false
}

func malformed(k model.EventKind, n int) error {
	return fmt.Errorf("%w: %s with %d fields", model.ErrMalformedEventRecord, k, n)
}
