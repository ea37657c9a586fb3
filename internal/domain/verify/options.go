package verify

import "time"

// Option applies a configuration option to the Verifier.
type Option func(*Verifier)

// WithDurationTolerance sets the duration match tolerance.
func WithDurationTolerance(d time.Duration) Option {
	return func(v *Verifier) {
		if d >= 0 {
			v.tolerance = d
		}
	}
}
