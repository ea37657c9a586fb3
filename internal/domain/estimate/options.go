package estimate

import "time"

// Option applies a configuration option to the Resolver.
type Option func(*Resolver)

// WithRadii overrides the per-tier search radii. Non-positive values keep
// the default.
func WithRadii(high, medium, low time.Duration) Option {
	return func(r *Resolver) {
		if high > 0 {
			r.high = high
		}
		if medium > 0 {
			r.medium = medium
		}
		if low > 0 {
			r.low = low
		}
	}
}

// WithLocation sets the zone filename and offsetless log stamps are read in.
func WithLocation(loc *time.Location) Option {
	return func(r *Resolver) {
		if loc != nil {
			r.loc = loc
		}
	}
}
