package index

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

const filenameLayout = "2006-01-02_15-04-05"

var filenameStamp = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}_\d{2}-\d{2}-\d{2}`)

// FilenameInfo is what a recorder filename declares, e.g.
// "2025-01-01_20-31-43_-_Felbane_-_3v3_Ruins_of_Lordaeron_(Win).mp4".
type FilenameInfo struct {
	Time      time.Time
	Player    string
	MatchType string
	Location  string
	Outcome   string
}

// ParseFilename reads a recorder filename. Missing parts are left empty;
// only the timestamp prefix is required.
func ParseFilename(name string, loc *time.Location) (FilenameInfo, error) {
	base := strings.TrimSuffix(filepath.Base(name), filepath.Ext(name))
	stamp := filenameStamp.FindString(base)
	if stamp == "" {
		return FilenameInfo{}, fmt.Errorf("%w: %s", ErrBadFilename, name)
	}
	t, err := time.ParseInLocation(filenameLayout, stamp, loc)
	if err != nil {
		return FilenameInfo{}, fmt.Errorf("%w: %s: %v", ErrBadFilename, name, err)
	}
	info := FilenameInfo{Time: t}

	parts := strings.Split(base, "_-_")
	if len(parts) >= 2 {
		info.Player = parts[1]
	}
	if len(parts) >= 3 {
		info.MatchType, info.Location, info.Outcome = splitBracket(parts[2])
	}
	return info, nil
}

func splitBracket(s string) (matchType, location, outcome string) {
	rest := s
	switch {
	case strings.HasPrefix(s, "3v3_"), strings.HasPrefix(s, "2v2_"):
		matchType, rest = s[:3], s[4:]
	case strings.HasPrefix(s, "Solo_Shuffle_"):
		matchType, rest = "Solo Shuffle", strings.TrimPrefix(s, "Solo_Shuffle_")
	case strings.HasPrefix(s, "Skirmish_"):
		matchType, rest = "Skirmish", strings.TrimPrefix(s, "Skirmish_")
	}

	if i := strings.Index(rest, "_("); i >= 0 {
		outcome = strings.ToLower(strings.TrimSuffix(rest[i+2:], ")"))
		rest = rest[:i]
	}
	return matchType, CleanLocation(strings.ReplaceAll(rest, "_", " ")), outcome
}

// CleanLocation restores the apostrophe filenames cannot carry.
func CleanLocation(name string) string {
	return strings.ReplaceAll(name, "Tol viron", "Tol'viron")
}
