package eventlog

import (
	"context"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/Phlares/wow-arena-analysis/internal/domain/combatlog"
	"github.com/Phlares/wow-arena-analysis/internal/domain/model"
)

// MemoryStream is an event stream over an in-memory slice.
type MemoryStream struct {
	events []model.RawEvent
}

// NewMemoryStream copies and sorts events.
func NewMemoryStream(events ...model.RawEvent) *MemoryStream {
	s := &MemoryStream{events: append([]model.RawEvent(nil), events...)}
	sort.SliceStable(s.events, func(i, j int) bool {
		return s.events[i].Instant.Before(s.events[j].Instant)
	})
	return s
}

// ReadStream decodes a combat log into a MemoryStream. year and loc apply to
// timestamps that lack them.
func ReadStream(r io.Reader, year int, loc *time.Location) (*MemoryStream, error) {
	pr, err := readEvents(r, combatlog.NewParser(year, loc))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrStorageUnavailable, err)
	}
	return &MemoryStream{events: pr.events}, nil
}

// EventsIn returns a copy of the events in r.
func (s *MemoryStream) EventsIn(ctx context.Context, r model.TimeRange) ([]model.RawEvent, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return append([]model.RawEvent(nil), model.SliceEvents(s.events, r)...), nil
}
