// Package index discovers recordings on disk and builds their metadata.
//
// A recording is a video file with an optional recorder JSON file of the
// same stem beside it. The JSON carries the authoritative start time, the
// roster and the death list; without it only the filename is used.
package index

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/Phlares/wow-arena-analysis/internal/domain/model"
	"github.com/Phlares/wow-arena-analysis/pkg/logger"
)

//go:embed schema.json
var schemaJSON string

const (
	schemaURL = "mem://recorder-metadata.json"

	// DefaultMarkerWithin bounds how far a log marker may be from the
	// filename time.
	DefaultMarkerWithin = 5 * time.Minute
)

var videoExts = map[string]struct{}{".mp4": {}, ".mkv": {}, ".webm": {}}

// MarkerSource finds raw session start lines in the combat logs.
type MarkerSource interface {
	MarkerLine(ctx context.Context, near time.Time, within time.Duration, accept func(model.SessionMarker) bool) (string, error)
}

// LocationTable matches log location ids to declared arena names.
type LocationTable interface {
	LocationMatches(id, name string) bool
}

// Skip is a file the indexer could not use.
type Skip struct {
	Path string
	Err  error
}

// Result is the outcome of a directory walk.
type Result struct {
	Recordings []model.Recording // sorted by ID
	Skipped    []Skip
}

type combatant struct {
	Name   string `json:"_name"`
	Realm  string `json:"_realm"`
	GUID   string `json:"_GUID"`
	TeamID *int   `json:"_teamID"`
	SpecID int    `json:"_specID"`
}

type death struct {
	Name     string `json:"name"`
	Friendly bool   `json:"friendly"`
}

type metadata struct {
	Category   string      `json:"category"`
	ZoneName   string      `json:"zoneName"`
	Result     *bool       `json:"result"`
	Duration   float64     `json:"duration"`
	Start      json.Number `json:"start"`
	UniqueHash string      `json:"uniqueHash"`
	Player     combatant   `json:"player"`
	Combatants []combatant `json:"combatants"`
	Deaths     *[]death    `json:"deaths"`
}

// Indexer is safe for concurrent use.
type Indexer struct {
	schema       *jsonschema.Schema
	loc          *time.Location
	markers      MarkerSource
	locations    LocationTable
	markerWithin time.Duration
	log          logger.Logger
}

// New compiles the metadata schema and applies options.
func New(opts ...Option) (*Indexer, error) {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(schemaURL, strings.NewReader(schemaJSON)); err != nil {
		return nil, fmt.Errorf("add schema resource: %w", err)
	}
	schema, err := compiler.Compile(schemaURL)
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}

	x := &Indexer{
		schema:       schema,
		loc:          time.Local,
		markerWithin: DefaultMarkerWithin,
		log:          logger.Get().Named("index"),
	}
	for _, opt := range opts {
		opt(x)
	}
	return x, nil
}

// Walk indexes every recording under root. Files that cannot be used are
// reported in Skipped; only an unreadable root is an error.
func (x *Indexer) Walk(ctx context.Context, root string) (Result, error) {
	type pair struct{ video, meta string }
	byStem := make(map[string]*pair)

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return err
			}
			x.log.Warn(ctx, "skipping unreadable path", logger.String("path", path), logger.Error(err))
			return nil
		}
		if d.IsDir() {
			return ctx.Err()
		}
		ext := strings.ToLower(filepath.Ext(path))
		stem := strings.TrimSuffix(path, filepath.Ext(path))
		p := byStem[stem]
		if p == nil {
			p = &pair{}
		}
		switch {
		case ext == ".json":
			p.meta = path
		default:
			if _, ok := videoExts[ext]; !ok {
				return nil
			}
			p.video = path
		}
		byStem[stem] = p
		return nil
	})
	if err != nil {
		return Result{}, fmt.Errorf("walk %s: %w", root, err)
	}

	stems := make([]string, 0, len(byStem))
	for stem := range byStem {
		stems = append(stems, stem)
	}
	sort.Strings(stems)

	var res Result
	for _, stem := range stems {
		p := byStem[stem]
		var (
			rec model.Recording
			err error
		)
		if p.meta != "" {
			rec, err = x.FromMetadata(ctx, p.meta, p.video)
		} else {
			rec, err = x.FromFilename(ctx, p.video)
		}
		if err != nil {
			path := p.meta
			if path == "" {
				path = p.video
			}
			res.Skipped = append(res.Skipped, Skip{Path: path, Err: err})
			x.log.Warn(ctx, "recording skipped", logger.String("path", path), logger.Error(err))
			continue
		}
		res.Recordings = append(res.Recordings, rec)
	}
	sort.SliceStable(res.Recordings, func(i, j int) bool {
		return res.Recordings[i].ID < res.Recordings[j].ID
	})

	x.log.Info(ctx, "recordings indexed",
		logger.String("root", root),
		logger.Int("recordings", len(res.Recordings)),
		logger.Int("skipped", len(res.Skipped)))
	return res, nil
}

// FromFilename builds a recording from its video filename alone.
func (x *Indexer) FromFilename(ctx context.Context, video string) (model.Recording, error) {
	info, err := ParseFilename(video, x.loc)
	if err != nil {
		return model.Recording{}, err
	}
	base := filepath.Base(video)
	rec := model.Recording{
		ID:        strings.TrimSuffix(base, filepath.Ext(base)),
		Path:      video,
		Subject:   model.Identity{Name: info.Player},
		Evidence:  model.Evidence{Filename: base},
		MatchType: info.MatchType,
		Location:  info.Location,
		Outcome:   info.Outcome,
	}
	rec.Evidence.LogMarkerLine = x.markerLine(ctx, info.Time, rec.Location)
	return rec, nil
}

// FromMetadata builds a recording from a recorder JSON file. video may be
// empty, in which case the metadata's own name stands in for it.
func (x *Indexer) FromMetadata(ctx context.Context, metaPath, video string) (model.Recording, error) {
	raw, err := os.ReadFile(metaPath)
	if err != nil {
		return model.Recording{}, fmt.Errorf("%w: %v", ErrInvalidMetadata, err)
	}
	md, err := x.decode(raw)
	if err != nil {
		return model.Recording{}, fmt.Errorf("%s: %w", filepath.Base(metaPath), err)
	}

	base := filepath.Base(video)
	if video == "" {
		base = strings.TrimSuffix(filepath.Base(metaPath), filepath.Ext(metaPath)) + ".mp4"
	}
	rec := model.Recording{
		ID:        strings.TrimSuffix(base, filepath.Ext(base)),
		Path:      video,
		Evidence:  model.Evidence{Filename: base},
		MatchType: md.Category,
		Location:  CleanLocation(md.ZoneName),
		Duration:  time.Duration(md.Duration * float64(time.Second)),
	}
	if md.Start != "" {
		rec.Evidence.StartField = md.Start.String()
	}
	if md.Result != nil {
		rec.Outcome = "loss"
		if *md.Result {
			rec.Outcome = "win"
		}
	}
	if md.Deaths != nil {
		n := len(*md.Deaths)
		rec.DeathCount = &n
	}

	info, ferr := ParseFilename(base, x.loc)
	if ferr == nil {
		if rec.MatchType == "" {
			rec.MatchType = info.MatchType
		}
		if rec.Location == "" {
			rec.Location = info.Location
		}
		if rec.Outcome == "" {
			rec.Outcome = info.Outcome
		}
	}

	x.roster(&rec, md)

	if rec.Evidence.StartField == "" && ferr == nil {
		rec.Evidence.LogMarkerLine = x.markerLine(ctx, info.Time, rec.Location)
	}
	return rec, nil
}

func (x *Indexer) decode(raw []byte) (metadata, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var doc any
	if err := dec.Decode(&doc); err != nil {
		return metadata{}, fmt.Errorf("%w: %v", ErrInvalidMetadata, err)
	}
	if err := x.schema.Validate(doc); err != nil {
		return metadata{}, fmt.Errorf("%w: %v", ErrInvalidMetadata, err)
	}
	var md metadata
	if err := json.Unmarshal(raw, &md); err != nil {
		return metadata{}, fmt.Errorf("%w: %v", ErrInvalidMetadata, err)
	}
	return md, nil
}

// roster fills the subject, participants and opponents. The subject's team
// comes from the player block, or from the combatant of the same name.
func (x *Indexer) roster(rec *model.Recording, md metadata) {
	subject := md.Player
	for _, c := range md.Combatants {
		if strings.EqualFold(c.Name, subject.Name) {
			if subject.GUID == "" {
				subject.GUID = c.GUID
			}
			if subject.TeamID == nil {
				subject.TeamID = c.TeamID
			}
			break
		}
	}
	rec.Subject = model.Identity{GUID: subject.GUID, Name: subject.Name}

	rec.Participants = model.NewGUIDSet()
	rec.Opponents = model.NewGUIDSet()
	if subject.GUID != "" {
		rec.Participants[subject.GUID] = struct{}{}
	}
	for _, c := range md.Combatants {
		if c.GUID == "" {
			continue
		}
		rec.Participants[c.GUID] = struct{}{}
		if subject.TeamID != nil && c.TeamID != nil && *c.TeamID != *subject.TeamID {
			rec.Opponents[c.GUID] = struct{}{}
		}
	}
}

// markerLine looks up the session start line for a recording without an
// authoritative start. Failures leave the evidence absent.
func (x *Indexer) markerLine(ctx context.Context, near time.Time, location string) string {
	if x.markers == nil || location == "" {
		return ""
	}
	line, err := x.markers.MarkerLine(ctx, near, x.markerWithin, func(m model.SessionMarker) bool {
		return x.locations == nil || x.locations.LocationMatches(m.LocationID, location)
	})
	if err != nil {
		x.log.Debug(ctx, "no log marker", logger.String("location", location), logger.Error(err))
		return ""
	}
	return line
}

// EpochMillis renders t as a start field value.
func EpochMillis(t time.Time) string {
	return strconv.FormatInt(t.UnixMilli(), 10)
}
