// Package estimate turns a recording's timestamp evidence into a start
// estimate with a trust tier and search radius.
package estimate

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/Phlares/wow-arena-analysis/internal/domain/combatlog"
	"github.com/Phlares/wow-arena-analysis/internal/domain/model"
)

// Default search radii per tier.
const (
	DefaultHighRadius   = 30 * time.Second
	DefaultMediumRadius = 120 * time.Second
	DefaultLowRadius    = 300 * time.Second
)

// Evidence source names recorded on the estimate.
const (
	SourceStartField = "start_field"
	SourceLogMarker  = "log_marker"
	SourceFilename   = "filename"
)

const filenameLayout = "2006-01-02_15-04-05"

var filenamePrefix = regexp.MustCompile(`^(\d{4}-\d{2}-\d{2}_\d{2}-\d{2}-\d{2})`)

// Resolver picks the most trusted evidence that parses. It holds no state
// beyond its configuration and is safe for concurrent use.
type Resolver struct {
	high, medium, low time.Duration
	loc               *time.Location
}

// New creates a Resolver.
func New(opts ...Option) *Resolver {
	r := &Resolver{
		high:   DefaultHighRadius,
		medium: DefaultMediumRadius,
		low:    DefaultLowRadius,
		loc:    time.Local,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve returns the estimate from the highest tier whose evidence parses,
// or model.ErrEstimateUnavailable.
func (r *Resolver) Resolve(rec model.Recording) (model.TimestampEstimate, error) {
	if t, ok := parseStartField(rec.Evidence.StartField); ok {
		return model.TimestampEstimate{Instant: t, Tier: model.TierHigh, Radius: r.high, Source: SourceStartField}, nil
	}

	fileTime, fileOK := r.parseFilename(rec.Evidence.Filename)

	if line := rec.Evidence.LogMarkerLine; line != "" {
		year := 0
		if fileOK {
			year = fileTime.Year()
		}
		if t, ok := r.parseMarker(line, year); ok {
			return model.TimestampEstimate{Instant: t, Tier: model.TierMedium, Radius: r.medium, Source: SourceLogMarker}, nil
		}
	}

	if fileOK {
		return model.TimestampEstimate{Instant: fileTime, Tier: model.TierLow, Radius: r.low, Source: SourceFilename}, nil
	}

	return model.TimestampEstimate{}, fmt.Errorf("recording %s: %w", rec.ID, model.ErrEstimateUnavailable)
}

// parseStartField accepts epoch milliseconds or RFC 3339.
func parseStartField(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
		if ms <= 0 {
			return time.Time{}, false
		}
		return time.UnixMilli(ms), true
	}
	if ms, err := strconv.ParseFloat(s, 64); err == nil && ms > 0 {
		return time.UnixMilli(int64(ms)), true
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, true
	}
	return time.Time{}, false
}

// parseMarker accepts a session start line. A yearless stamp needs year.
func (r *Resolver) parseMarker(line string, year int) (time.Time, bool) {
	ev, err := combatlog.NewParser(year, r.loc).ParseLine(line)
	if err != nil || ev.Err != nil || ev.Marker == nil || ev.Marker.Kind != model.MarkerStart {
		return time.Time{}, false
	}
	if ev.Instant.Year() == 0 {
		return time.Time{}, false
	}
	return ev.Instant, true
}

func (r *Resolver) parseFilename(name string) (time.Time, bool) {
	m := filenamePrefix.FindStringSubmatch(name)
	if m == nil {
		return time.Time{}, false
	}
	t, err := time.ParseInLocation(filenameLayout, m[1], r.loc)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// Radius returns the configured radius for a tier.
func (r *Resolver) Radius(tier model.TrustTier) time.Duration {
	switch tier {
	case model.TierHigh:
		return r.high
	case model.TierMedium:
		return r.medium
	default:
		return r.low
	}
}
