// Package repository persists one MatchRecord per recording.
package repository

import (
	"context"

	"github.com/Phlares/wow-arena-analysis/internal/domain/types"
)

// Store is the output sink. Records are keyed by recording ID; writing a
// record again replaces it, so reruns over the same inputs converge.
type Store interface {
	// Put inserts or replaces the record for rec.RecordingID.
	Put(ctx context.Context, rec types.MatchRecord) error

	// Get returns the record for a recording.
	// Returns ErrNotFound if the recording is unknown.
	Get(ctx context.Context, recordingID string) (types.MatchRecord, error)

	// Latest returns up to n resolved records, most recent session first.
	Latest(ctx context.Context, n int) ([]types.MatchRecord, error)

	// CountByStatus returns the number of records per status.
	CountByStatus(ctx context.Context) (map[string]int, error)

	Close() error
}
