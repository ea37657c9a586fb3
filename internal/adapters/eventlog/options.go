package eventlog

import (
	"time"

	"github.com/Phlares/wow-arena-analysis/pkg/logger"
)

// Option configures a Directory.
type Option func(*Directory)

// WithLocation sets the zone for timestamps that carry no offset.
func WithLocation(loc *time.Location) Option {
	return func(d *Directory) {
		if loc != nil {
			d.loc = loc
		}
	}
}

// WithCacheSize bounds how many parsed partitions stay in memory.
func WithCacheSize(n int) Option {
	return func(d *Directory) {
		if n > 0 {
			d.cacheSize = n
		}
	}
}

// WithLookahead sets how far after an instant a partition may start and
// still be chosen for it.
func WithLookahead(tolerance time.Duration) Option {
	return func(d *Directory) {
		if tolerance >= 0 {
			d.lookahead = tolerance
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(d *Directory) {
		if l != nil {
			d.log = l
		}
	}
}
