package testevents

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Phlares/wow-arena-analysis/internal/domain/types"
	"github.com/Phlares/wow-arena-analysis/pkg/logger"
)

// Mismatch describes one stored record that disagrees with the scenario.
type Mismatch struct {
	RecordingID string
	Reason      string
}

// Check compares a stored record with the session it should have matched.
// It returns nil when they agree.
func (sc *Scenario) Check(i int, rec types.MatchRecord) *Mismatch { //nolint:gocritic // hugeParam
	s := &sc.Sessions[i]
	id := sc.RecordingID(i)
	fail := func(format string, args ...any) *Mismatch {
		return &Mismatch{RecordingID: id, Reason: fmt.Sprintf(format, args...)}
	}

	if !rec.Resolved() {
		return fail("unresolved: %s", rec.ErrorKind)
	}
	if rec.Start == nil || !rec.Start.Equal(s.Start) {
		return fail("start %v, want %v", rec.Start, s.Start)
	}
	if rec.End == nil || !rec.End.Equal(s.End) {
		return fail("end %v, want %v", rec.End, s.End)
	}
	if rec.Rounds != len(s.Rounds) {
		return fail("rounds %d, want %d", rec.Rounds, len(s.Rounds))
	}
	if rec.CastSuccessOwn != s.Expected.CastSuccessOwn {
		return fail("casts %d, want %d", rec.CastSuccessOwn, s.Expected.CastSuccessOwn)
	}
	if rec.TimesDied != s.Expected.TimesDied {
		return fail("deaths %d, want %d", rec.TimesDied, s.Expected.TimesDied)
	}
	return nil
}

// verifyMatches fetches every recording from the read API and checks it.
func verifyMatches(ctx context.Context, sc *Scenario, stats *Stats) error {
	logger.Get().Info(ctx, "verifying stored matches")

	client := newHTTPClient(sc.Config.Timeout)
	for i := range sc.Sessions {
		rec, err := fetchMatch(ctx, client, sc.Config.BaseURL, sc.RecordingID(i))
		if errors.Is(err, errNotFound) {
			stats.Missing++
			continue
		}
		if err != nil {
			return err
		}
		if m := sc.Check(i, rec); m != nil {
			stats.Mismatched++
			logger.Get().Warn(ctx, "stored match disagrees",
				logger.String("recording", m.RecordingID),
				logger.String("reason", m.Reason),
			)
			continue
		}
		stats.Verified++
	}

	if stats.Mismatched > 0 || stats.Missing > 0 {
		return fmt.Errorf("%d mismatched, %d missing of %d", stats.Mismatched, stats.Missing, len(sc.Sessions))
	}
	logger.Get().Info(ctx, "all matches verified",
		logger.Int("verified", stats.Verified),
		logger.Duration("span", sc.Sessions[len(sc.Sessions)-1].End.Sub(sc.Sessions[0].Start).Round(time.Second)),
	)
	return nil
}
