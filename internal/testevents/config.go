package testevents

import "time"

// Config holds configuration for a synthetic scenario.
type Config struct {
	OutputDir string    // root for logs/ and recordings/
	Sessions  int       // number of back-to-back sessions
	Start     time.Time // first session start
	Gap       time.Duration
	// ShuffleEvery makes every Nth session a six-round shuffle. Zero
	// disables shuffles.
	ShuffleEvery int
	// FilenameOnlyEvery writes every Nth recording without metadata, so it
	// resolves from its filename. Zero disables.
	FilenameOnlyEvery int
	Player            string // subject name without realm
	Realm             string
	Seed              uint64
	Location          *time.Location

	BaseURL string        // read API to verify against; empty skips verification
	Timeout time.Duration // HTTP request timeout
	LogFile string        // log file for tool output
	Verbose bool
}

// withDefaults fills unset fields.
func (c Config) withDefaults() Config {
	if c.Sessions <= 0 {
		c.Sessions = defaultSessions
	}
	if c.Location == nil {
		c.Location = time.Local
	}
	if c.Start.IsZero() {
		c.Start = time.Date(2025, time.January, 5, 20, 0, 0, 0, c.Location)
	}
	if c.Gap <= 0 {
		c.Gap = defaultGap
	}
	if c.Player == "" {
		c.Player = "Felbane"
	}
	if c.Realm == "" {
		c.Realm = "Ravencrest"
	}
	if c.Timeout <= 0 {
		c.Timeout = defaultTimeout
	}
	return c
}

// Stats holds run statistics.
type Stats struct {
	SessionsGenerated int
	LinesWritten      int
	VideosWritten     int
	MetadataWritten   int
	Verified          int
	Mismatched        int
	Missing           int
	StartTime         time.Time
	EndTime           time.Time
	Duration          time.Duration
}
