// Package dedupe keeps the ledger that makes every session belong to at
// most one recording.
package dedupe

import (
	"context"
	"sync"
	"sync/atomic"
)

// Ledger records which owner claimed each session key.
type Ledger interface {
	// Claim atomically records owner as the holder of key unless another
	// owner already holds it. It returns the holder after the call and
	// whether owner is that holder. Claiming a key twice with the same
	// owner succeeds.
	Claim(ctx context.Context, key, owner string) (holder string, won bool)

	Size() int64
}

// inMemoryLedger implements Ledger with a map. A claim lives as long as
// the ledger.
type inMemoryLedger struct {
	mu     sync.Mutex
	claims map[string]string
	size   atomic.Int64
}

// NewInMemoryLedger creates an empty ledger.
func NewInMemoryLedger() Ledger {
	return &inMemoryLedger{claims: make(map[string]string)}
}

// Claim implements Ledger.
func (l *inMemoryLedger) Claim(ctx context.Context, key, owner string) (string, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if holder, exists := l.claims[key]; exists {
		return holder, holder == owner
	}
	l.claims[key] = owner
	l.size.Add(1)
	return owner, true
}

// Size returns the current number of claims.
func (l *inMemoryLedger) Size() int64 {
	return l.size.Load()
}
