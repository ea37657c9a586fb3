// Package eventlog serves combat log events from a directory of log files.
//
// The client writes one file per play session, named
// WoWCombatLog-MMDDYY_HHMMSS.txt after the instant it was opened. Files are
// ordered by that instant and parsed lazily; parsed files are cached and
// concurrent requests for the same file share a single parse.
package eventlog

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/Phlares/wow-arena-analysis/internal/domain/combatlog"
	"github.com/Phlares/wow-arena-analysis/internal/domain/model"
	"github.com/Phlares/wow-arena-analysis/pkg/logger"
	"github.com/Phlares/wow-arena-analysis/pkg/metrics"
)

// Defaults.
const (
	DefaultLookahead = 10 * time.Minute
	DefaultCacheSize = 4

	partitionLayout = "010206_150405"
	maxLineBytes    = 1 << 20
)

var partitionName = regexp.MustCompile(`^WoWCombatLog-(\d{6}_\d{6})\.txt$`)

// retainedKinds are the subevents kept in memory after parsing.
var retainedKinds = map[model.EventKind]struct{}{
	model.KindSpellCastSuccess: {},
	model.KindSpellAuraApplied: {},
	model.KindSpellDispel:      {},
	model.KindSpellInterrupt:   {},
	model.KindSpellSummon:      {},
	model.KindUnitDied:         {},
	model.KindArenaMatchStart:  {},
	model.KindArenaMatchEnd:    {},
}

// Partition is one log file.
type Partition struct {
	Path  string
	Start time.Time
}

type markerLine struct {
	marker model.SessionMarker
	text   string
}

type parsed struct {
	events  []model.RawEvent
	markers []markerLine
	// malformed counts lines that failed to decode, including ones that
	// could not be placed in time and were dropped.
	malformed int
}

// Directory is an event stream over a log directory. It is safe for
// concurrent use.
type Directory struct {
	dir       string
	loc       *time.Location
	cacheSize int
	lookahead time.Duration
	log       logger.Logger

	partitions []Partition

	group singleflight.Group
	mu    sync.Mutex
	cache map[string]*parsed
	order []string // least recently used first
}

// Open scans dir for log files. A missing or unreadable directory is a
// storage failure.
func Open(dir string, opts ...Option) (*Directory, error) {
	d := &Directory{
		dir:       dir,
		loc:       time.Local,
		cacheSize: DefaultCacheSize,
		lookahead: DefaultLookahead,
		log:       logger.Get().Named("eventlog"),
		cache:     make(map[string]*parsed),
	}
	for _, opt := range opts {
		opt(d)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", model.ErrStorageUnavailable, dir, err)
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		m := partitionName.FindStringSubmatch(e.Name())
		if m == nil {
			continue
		}
		start, err := time.ParseInLocation(partitionLayout, m[1], d.loc)
		if err != nil {
			continue
		}
		d.partitions = append(d.partitions, Partition{Path: filepath.Join(dir, e.Name()), Start: start})
	}
	sort.Slice(d.partitions, func(i, j int) bool {
		if d.partitions[i].Start.Equal(d.partitions[j].Start) {
			return d.partitions[i].Path < d.partitions[j].Path
		}
		return d.partitions[i].Start.Before(d.partitions[j].Start)
	})

	d.log.Info(context.Background(), "log directory opened",
		logger.String("dir", dir),
		logger.Int("partitions", len(d.partitions)))
	return d, nil
}

// Partitions returns the log files in start order.
func (d *Directory) Partitions() []Partition {
	out := make([]Partition, len(d.partitions))
	copy(out, d.partitions)
	return out
}

// PartitionFor picks the log file for an instant: the latest one opened at
// or before it, else the first one opened within the lookahead after it.
func (d *Directory) PartitionFor(t time.Time) (Partition, error) {
	i := sort.Search(len(d.partitions), func(i int) bool {
		return d.partitions[i].Start.After(t)
	})
	if i > 0 {
		return d.partitions[i-1], nil
	}
	if i < len(d.partitions) && d.partitions[i].Start.Sub(t) <= d.lookahead {
		return d.partitions[i], nil
	}
	return Partition{}, fmt.Errorf("%w: %s", ErrNoPartition, t.Format(time.RFC3339))
}

// covering returns the partitions whose events may fall in r.
func (d *Directory) covering(r model.TimeRange) []Partition {
	i := sort.Search(len(d.partitions), func(i int) bool {
		return d.partitions[i].Start.After(r.Start)
	})
	if i > 0 {
		i--
	}
	var out []Partition
	for ; i < len(d.partitions) && d.partitions[i].Start.Before(r.End); i++ {
		out = append(out, d.partitions[i])
	}
	return out
}

// EventsIn returns the events in r ordered by instant. A window crossing a
// file boundary is served from every file it touches.
func (d *Directory) EventsIn(ctx context.Context, r model.TimeRange) ([]model.RawEvent, error) {
	parts := d.covering(r)
	var out []model.RawEvent
	for _, p := range parts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		pr, err := d.load(ctx, p)
		if err != nil {
			return nil, err
		}
		out = append(out, model.SliceEvents(pr.events, r)...)
	}
	if len(parts) > 1 {
		sort.SliceStable(out, func(i, j int) bool {
			return out[i].Instant.Before(out[j].Instant)
		})
	}
	metrics.RecordEventsScanned(len(out))
	return out, nil
}

// MarkerLine returns the raw session start line nearest to near, at most
// within away, for which accept returns true. A nil accept takes any
// start line.
func (d *Directory) MarkerLine(ctx context.Context, near time.Time, within time.Duration, accept func(model.SessionMarker) bool) (string, error) {
	p, err := d.PartitionFor(near)
	if err != nil {
		return "", err
	}
	pr, err := d.load(ctx, p)
	if err != nil {
		return "", err
	}

	best, bestDist := -1, time.Duration(0)
	for i, m := range pr.markers {
		dist := m.marker.Instant.Sub(near)
		if dist < 0 {
			dist = -dist
		}
		if dist > within || (accept != nil && !accept(m.marker)) {
			continue
		}
		if best < 0 || dist < bestDist {
			best, bestDist = i, dist
		}
	}
	if best < 0 {
		return "", fmt.Errorf("%w: within %s of %s in %s", ErrNoMarker, within, near.Format(time.RFC3339), filepath.Base(p.Path))
	}
	return pr.markers[best].text, nil
}

func (d *Directory) load(ctx context.Context, p Partition) (*parsed, error) {
	if pr, ok := d.cached(p.Path); ok {
		return pr, nil
	}
	v, err, _ := d.group.Do(p.Path, func() (interface{}, error) {
		if pr, ok := d.cached(p.Path); ok {
			return pr, nil
		}
		pr, err := d.parseFile(ctx, p)
		if err != nil {
			return nil, err
		}
		d.store(p.Path, pr)
		return pr, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*parsed), nil
}

func (d *Directory) parseFile(ctx context.Context, p Partition) (*parsed, error) {
	started := time.Now()
	f, err := os.Open(p.Path)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", model.ErrStorageUnavailable, p.Path, err)
	}
	defer f.Close()

	pr, err := readEvents(f, combatlog.NewParser(p.Start.Year(), d.loc))
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", model.ErrStorageUnavailable, p.Path, err)
	}
	metrics.RecordMalformedEvents(pr.malformed)

	d.log.Info(ctx, "partition loaded",
		logger.String("file", filepath.Base(p.Path)),
		logger.Int("events", len(pr.events)),
		logger.Int("sessions", len(pr.markers)),
		logger.Int("malformed", pr.malformed),
		logger.Duration("elapsed", time.Since(started)))
	return pr, nil
}

func (d *Directory) cached(path string) (*parsed, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	pr, ok := d.cache[path]
	if ok {
		d.touch(path)
	}
	return pr, ok
}

func (d *Directory) store(path string, pr *parsed) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.cache[path]; !ok && len(d.cache) >= d.cacheSize && len(d.order) > 0 {
		evict := d.order[0]
		d.order = d.order[1:]
		delete(d.cache, evict)
	}
	d.cache[path] = pr
	d.touch(path)
}

// touch moves path to the most recently used end.
// Must be called with d.mu held.
func (d *Directory) touch(path string) {
	for i, p := range d.order {
		if p == path {
			d.order = append(d.order[:i], d.order[i+1:]...)
			break
		}
	}
	d.order = append(d.order, path)
}

// readEvents decodes every line of r, keeping retained kinds and malformed
// records, sorted by instant.
func readEvents(r io.Reader, parser *combatlog.Parser) (*parsed, error) {
	pr := &parsed{}
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	for sc.Scan() {
		line := sc.Text()
		if line == "" {
			continue
		}
		ev, err := parser.ParseLine(line)
		if err != nil {
			pr.malformed++
			continue
		}
		if ev.Err != nil {
			pr.malformed++
			pr.events = append(pr.events, ev)
			continue
		}
		if ev.Marker != nil && ev.Marker.Kind == model.MarkerStart {
			pr.markers = append(pr.markers, markerLine{marker: *ev.Marker, text: line})
		}
		if _, ok := retainedKinds[ev.Kind]; ok {
			pr.events = append(pr.events, ev)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	sort.SliceStable(pr.events, func(i, j int) bool {
		return pr.events[i].Instant.Before(pr.events[j].Instant)
	})
	return pr, nil
}
