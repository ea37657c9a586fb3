package index

import (
	"time"

	"github.com/Phlares/wow-arena-analysis/pkg/logger"
)

// Option configures an Indexer.
type Option func(*Indexer)

// WithLocation sets the zone filename timestamps are read in.
func WithLocation(loc *time.Location) Option {
	return func(x *Indexer) {
		if loc != nil {
			x.loc = loc
		}
	}
}

// WithMarkers enables the log marker lookup for recordings without a start
// field. Lines are accepted within the given distance of the filename time.
func WithMarkers(src MarkerSource, locations LocationTable, within time.Duration) Option {
	return func(x *Indexer) {
		x.markers = src
		x.locations = locations
		if within > 0 {
			x.markerWithin = within
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(x *Indexer) {
		if l != nil {
			x.log = l
		}
	}
}
