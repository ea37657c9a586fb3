package testevents

import (
	"encoding/json"
	"fmt"
	"math/rand/v2"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/Phlares/wow-arena-analysis/internal/adapters/index"
	"github.com/Phlares/wow-arena-analysis/internal/domain/model"
)

// Generator defaults.
const (
	defaultSessions = 10
	defaultGap      = 60 * time.Second
	defaultTimeout  = 10 * time.Second

	shuffleRounds   = 6
	roundGap        = 10 * time.Second
	summonLead      = 5 * time.Second
	logLead         = time.Minute
	subjectDiesEach = 3
)

// Spell and aura names the generator writes.
const (
	DispelAbility = "Devour Magic"
	TrackedBuff   = "Precognition"
	shuffleLabel  = "Rated Solo Shuffle"
)

type arena struct {
	id   string
	name string
}

var arenas = []arena{
	{"1505", "Nagrand Arena"},
	{"572", "Ruins of Lordaeron"},
	{"980", "Tol'viron Arena"},
	{"1504", "Black Rook Hold Arena"},
	{"617", "Dalaran Sewers"},
	{"2373", "Empyrean Domain"},
}

var spellIDs = map[string]int{
	"Shadow Bolt":        686,
	"Fear":               5782,
	"Chaos Bolt":         116858,
	"Immolate":           348,
	"Conflagrate":        17962,
	"Spell Lock":         19647,
	"Kick":               1766,
	"Flash Heal":         2061,
	"Power Word: Shield": 17,
	"Summon Felhunter":   691,
	DispelAbility:        19505,
	TrackedBuff:          377362,
}

var casts = []string{"Shadow Bolt", "Fear", "Chaos Bolt", "Immolate", "Conflagrate"}

const (
	friendlyFlags = 0x511
	partyFlags    = 0x512
	hostileFlags  = 0x548
	petFlags      = 0x1111
)

// Session is one generated arena session and the metrics it should score to.
type Session struct {
	Index      int
	Start      time.Time
	End        time.Time
	Rounds     []time.Time
	LocationID string
	Location   string
	MatchType  string // as the recorder declares it
	Win        bool

	Team    []model.Unit // subject's teammates
	Enemies []model.Unit
	Deaths  []model.Unit

	// RecordingStart is when the recorder began, slightly after Start.
	RecordingStart time.Time
	FilenameOnly   bool

	Expected model.MatchMetrics
}

// Duration is End - Start.
func (s *Session) Duration() time.Duration { return s.End.Sub(s.Start) }

type line struct {
	at   time.Time
	text string
}

// Scenario is a deterministic set of sessions plus the combat log that
// records them.
type Scenario struct {
	Config   Config
	Subject  model.Unit
	Pet      model.Unit
	Sessions []Session
	lines    []line
}

// Generate builds a scenario. The same Config always yields the same log.
func Generate(cfg Config) *Scenario {
	cfg = cfg.withDefaults()
	rng := rand.New(rand.NewPCG(cfg.Seed, 0x5eed))

	sc := &Scenario{
		Config:  cfg,
		Subject: model.Unit{GUID: "Player-1-00000001", Name: cfg.Player + "-" + cfg.Realm, Flags: friendlyFlags},
		Pet:     model.Unit{GUID: "Creature-0-1-2-3-417-00000001", Name: "Zhaadum", Flags: petFlags},
	}
	sc.add(cfg.Start.Add(-logLead), "COMBAT_LOG_VERSION,20,ADVANCED_LOG_ENABLED,1,BUILD_VERSION,11.0.7,PROJECT_ID,1")

	t := cfg.Start
	for i := 0; i < cfg.Sessions; i++ {
		s := sc.session(rng, i, t)
		sc.Sessions = append(sc.Sessions, s)
		t = s.End.Add(cfg.Gap)
	}

	sort.SliceStable(sc.lines, func(i, j int) bool { return sc.lines[i].at.Before(sc.lines[j].at) })
	return sc
}

func (sc *Scenario) session(rng *rand.Rand, i int, start time.Time) Session {
	cfg := sc.Config
	a := arenas[i%len(arenas)]
	shuffle := cfg.ShuffleEvery > 0 && (i+1)%cfg.ShuffleEvery == 0

	s := Session{
		Index:        i,
		Start:        start,
		LocationID:   a.id,
		Location:     a.name,
		Win:          rng.IntN(2) == 0,
		FilenameOnly: cfg.FilenameOnlyEvery > 0 && (i+1)%cfg.FilenameOnlyEvery == 0,
		Expected:     model.MatchMetrics{SpellsCast: []string{}, SpellsPurged: []string{}},
	}
	s.RecordingStart = start.Add(time.Duration(rng.IntN(3000)) * time.Millisecond)

	teamSize := 3
	logLabel := "3v3"
	switch {
	case shuffle:
		s.MatchType = "Solo Shuffle"
		logLabel = shuffleLabel
	case i%2 == 1:
		s.MatchType = "2v2"
		logLabel = "2v2"
		teamSize = 2
	default:
		s.MatchType = "3v3"
	}
	for k := 1; k < teamSize; k++ {
		s.Team = append(s.Team, model.Unit{
			GUID: fmt.Sprintf("Player-3-%04d%04d", i, k), Name: fmt.Sprintf("Mate%d%c-Ravencrest", i, 'a'+k), Flags: partyFlags,
		})
	}
	for k := 0; k < teamSize; k++ {
		s.Enemies = append(s.Enemies, model.Unit{
			GUID: fmt.Sprintf("Player-2-%04d%04d", i, k), Name: fmt.Sprintf("Foe%d%c-Sylvanas", i, 'a'+k), Flags: hostileFlags,
		})
	}

	sc.add(start.Add(-summonLead), "SPELL_SUMMON,"+units(sc.Subject, sc.Pet)+spell("Summon Felhunter"))

	rounds := 1
	if shuffle {
		rounds = shuffleRounds
	}
	at := start
	for r := 0; r < rounds; r++ {
		if r > 0 {
			at = at.Add(roundGap)
		}
		s.Rounds = append(s.Rounds, at)
		sc.add(at, fmt.Sprintf("ARENA_MATCH_START,%s,33,%s,1", a.id, logLabel))
		length := time.Duration(60+rng.IntN(40)) * time.Second
		if !shuffle {
			length = time.Duration(150+rng.IntN(120)) * time.Second
		}
		sc.round(rng, &s, r, at, at.Add(length))
		at = at.Add(length)
	}
	s.End = at

	winner := 1
	if s.Win {
		winner = 0
	}
	sc.add(s.End, fmt.Sprintf("ARENA_MATCH_END,%d,%d,1650,1700", winner, int(s.Duration()/time.Second)))
	return s
}

// round writes one round's events strictly inside (from, to).
func (sc *Scenario) round(rng *rand.Rand, s *Session, r int, from, to time.Time) {
	span := to.Sub(from)
	tick := func(frac float64) time.Time {
		return from.Add(time.Second + time.Duration(frac*float64(span-2*time.Second)))
	}
	foe := s.Enemies[r%len(s.Enemies)]

	n := 3 + rng.IntN(5)
	for k := 0; k < n; k++ {
		name := casts[rng.IntN(len(casts))]
		sc.add(tick(float64(k)/float64(n)*0.8), "SPELL_CAST_SUCCESS,"+units(sc.Subject, foe)+spell(name))
		s.Expected.CastSuccessOwn++
		s.Expected.SpellsCast = append(s.Expected.SpellsCast, name)
	}
	if len(s.Team) > 0 {
		sc.add(tick(0.15), "SPELL_CAST_SUCCESS,"+units(s.Team[0], foe)+spell("Flash Heal"))
	}

	sc.add(tick(0.3), "SPELL_INTERRUPT,"+units(sc.Subject, foe)+spell("Spell Lock")+extra("Flash Heal"))
	s.Expected.InterruptsPerformed++
	sc.add(tick(0.35), "SPELL_INTERRUPT,"+units(foe, sc.Subject)+spell("Kick")+extra("Chaos Bolt"))
	s.Expected.TimesInterrupted++

	sc.add(tick(0.4), "SPELL_DISPEL,"+units(sc.Pet, foe)+spell(DispelAbility)+extra("Power Word: Shield")+",BUFF")
	s.Expected.PurgesOwn++
	s.Expected.SpellsPurged = append(s.Expected.SpellsPurged, "Power Word: Shield")

	sc.add(tick(0.5), "SPELL_AURA_APPLIED,"+units(sc.Subject, sc.Subject)+spell(TrackedBuff)+",BUFF")
	s.Expected.BuffGainedOwn++
	sc.add(tick(0.55), "SPELL_AURA_APPLIED,"+units(foe, foe)+spell(TrackedBuff)+",BUFF")
	s.Expected.BuffGainedEnemy++

	victim := foe
	if (s.Index+r)%subjectDiesEach == subjectDiesEach-1 {
		victim = sc.Subject
		s.Expected.TimesDied++
	}
	sc.add(tick(0.95), "UNIT_DIED,0000000000000000,nil,0x80000000,0x80000000,"+unitFields(victim))
	s.Deaths = append(s.Deaths, victim)
}

func (sc *Scenario) add(at time.Time, text string) {
	sc.lines = append(sc.lines, line{at: at, text: text})
}

// Lines renders the combat log in instant order.
func (sc *Scenario) Lines() []string {
	out := make([]string, len(sc.lines))
	for i, l := range sc.lines {
		out[i] = Stamp(l.at) + "  " + l.text
	}
	return out
}

// LogName is the partition filename the log is written under.
func (sc *Scenario) LogName() string {
	return "WoWCombatLog-" + sc.Config.Start.Add(-logLead).Format("010206_150405") + ".txt"
}

// Stamp renders t the way combat log lines begin.
func Stamp(t time.Time) string {
	return fmt.Sprintf("%d/%d/%d %02d:%02d:%02d.%03d",
		int(t.Month()), t.Day(), t.Year(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond()/int(time.Millisecond))
}

func unitFields(u model.Unit) string {
	return fmt.Sprintf(`%s,"%s",0x%x,0x0`, u.GUID, u.Name, u.Flags)
}

func units(src, dst model.Unit) string {
	return unitFields(src) + "," + unitFields(dst)
}

func spell(name string) string {
	return fmt.Sprintf(`,%d,"%s",0x20`, spellIDs[name], name)
}

func extra(name string) string {
	return fmt.Sprintf(`,%d,"%s",0x2`, spellIDs[name], name)
}

// VideoName is the recorder filename for session i.
func (sc *Scenario) VideoName(i int) string {
	s := &sc.Sessions[i]
	bracket := strings.ReplaceAll(s.MatchType, " ", "_")
	loc := strings.ReplaceAll(strings.ReplaceAll(s.Location, "'", " "), " ", "_")
	outcome := "Loss"
	if s.Win {
		outcome = "Win"
	}
	return fmt.Sprintf("%s_-_%s_-_%s_%s_(%s).mp4",
		s.RecordingStart.Format("2006-01-02_15-04-05"), sc.Config.Player, bracket, loc, outcome)
}

// RecordingID is the filename stem of session i's recording.
func (sc *Scenario) RecordingID(i int) string {
	return strings.TrimSuffix(sc.VideoName(i), ".mp4")
}

// Combatant is a roster entry in recorder metadata.
type Combatant struct {
	Name   string `json:"_name"`
	Realm  string `json:"_realm,omitempty"`
	GUID   string `json:"_GUID"`
	TeamID int    `json:"_teamID"`
	SpecID int    `json:"_specID,omitempty"`
}

// Death is one entry of the recorder's death list.
type Death struct {
	Name     string `json:"name"`
	Friendly bool   `json:"friendly"`
}

// Metadata is the recorder JSON written beside a video.
type Metadata struct {
	Category   string      `json:"category"`
	ZoneID     int         `json:"zoneID"`
	ZoneName   string      `json:"zoneName"`
	Result     bool        `json:"result"`
	Duration   float64     `json:"duration"`
	Start      json.Number `json:"start"`
	UniqueHash string      `json:"uniqueHash"`
	Player     Combatant   `json:"player"`
	Combatants []Combatant `json:"combatants"`
	Deaths     []Death     `json:"deaths"`
}

// Metadata builds the recorder JSON for session i.
func (sc *Scenario) Metadata(i int) Metadata {
	s := &sc.Sessions[i]
	zone, _ := strconv.Atoi(s.LocationID)
	player := combatant(sc.Subject, 0)

	md := Metadata{
		Category:   s.MatchType,
		ZoneID:     zone,
		ZoneName:   s.Location,
		Result:     s.Win,
		Duration:   s.Duration().Seconds(),
		Start:      json.Number(index.EpochMillis(s.RecordingStart)),
		UniqueHash: fmt.Sprintf("%016x", uint64(s.Start.UnixNano())),
		Player:     player,
		Combatants: []Combatant{player},
		Deaths:     make([]Death, 0, len(s.Deaths)),
	}
	for _, u := range s.Team {
		md.Combatants = append(md.Combatants, combatant(u, 0))
	}
	for _, u := range s.Enemies {
		md.Combatants = append(md.Combatants, combatant(u, 1))
	}
	for _, u := range s.Deaths {
		md.Deaths = append(md.Deaths, Death{Name: model.BaseName(u.Name), Friendly: u.Flags != hostileFlags})
	}
	return md
}

func combatant(u model.Unit, team int) Combatant {
	name, realm, _ := strings.Cut(u.Name, "-")
	return Combatant{Name: name, Realm: realm, GUID: u.GUID, TeamID: team}
}

// Recordings returns the recordings the indexer would build from the
// written files, without touching disk.
func (sc *Scenario) Recordings() []model.Recording {
	out := make([]model.Recording, 0, len(sc.Sessions))
	for i := range sc.Sessions {
		s := &sc.Sessions[i]
		video := sc.VideoName(i)
		info, _ := index.ParseFilename(video, sc.Config.Location)
		rec := model.Recording{
			ID:        sc.RecordingID(i),
			Path:      video,
			Subject:   model.Identity{Name: sc.Config.Player},
			Evidence:  model.Evidence{Filename: video},
			MatchType: info.MatchType,
			Location:  info.Location,
			Outcome:   info.Outcome,
		}
		if !s.FilenameOnly {
			deaths := len(s.Deaths)
			rec.Subject = model.Identity{GUID: sc.Subject.GUID, Name: sc.Config.Player}
			rec.Evidence.StartField = index.EpochMillis(s.RecordingStart)
			rec.MatchType = s.MatchType
			rec.Location = index.CleanLocation(s.Location)
			rec.Duration = s.Duration()
			rec.DeathCount = &deaths
			rec.Participants = model.NewGUIDSet(sc.Subject.GUID)
			rec.Opponents = model.NewGUIDSet()
			for _, u := range s.Team {
				rec.Participants[u.GUID] = struct{}{}
			}
			for _, u := range s.Enemies {
				rec.Participants[u.GUID] = struct{}{}
				rec.Opponents[u.GUID] = struct{}{}
			}
		}
		out = append(out, rec)
	}
	return out
}
