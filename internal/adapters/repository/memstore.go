package repository

import (
	"context"
	"sort"
	"sync"

	"github.com/Phlares/wow-arena-analysis/internal/domain/types"
)

// MemoryStore implements Store in memory. It backs dry runs and tests.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]types.MatchRecord
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]types.MatchRecord)}
}

// Put implements Store.
func (s *MemoryStore) Put(ctx context.Context, rec types.MatchRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	rec.SpellsCast = append([]string{}, rec.SpellsCast...)
	rec.SpellsPurged = append([]string{}, rec.SpellsPurged...)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[rec.RecordingID] = rec
	return nil
}

// Get implements Store.
func (s *MemoryStore) Get(ctx context.Context, recordingID string) (types.MatchRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[recordingID]
	if !ok {
		return types.MatchRecord{}, ErrNotFound
	}
	return rec, nil
}

// Latest implements Store.
func (s *MemoryStore) Latest(ctx context.Context, n int) ([]types.MatchRecord, error) {
	if n <= 0 || n > MaxLimit {
		return nil, ErrInvalidLimit
	}
	s.mu.RLock()
	out := make([]types.MatchRecord, 0, len(s.records))
	for _, rec := range s.records {
		if rec.Resolved() {
			out = append(out, rec)
		}
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Start != nil && b.Start != nil && !a.Start.Equal(*b.Start) {
			return a.Start.After(*b.Start)
		}
		return a.RecordingID < b.RecordingID
	})
	if len(out) > n {
		out = out[:n]
	}
	return out, nil
}

// CountByStatus implements Store.
func (s *MemoryStore) CountByStatus(ctx context.Context) (map[string]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	counts := map[string]int{types.StatusResolved: 0, types.StatusUnresolved: 0}
	for _, rec := range s.records {
		counts[rec.Status]++
	}
	return counts, nil
}

// All returns every record ordered by recording ID.
func (s *MemoryStore) All() []types.MatchRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]types.MatchRecord, 0, len(s.records))
	for _, rec := range s.records {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RecordingID < out[j].RecordingID })
	return out
}

// Close implements Store.
func (s *MemoryStore) Close() error { return nil }
