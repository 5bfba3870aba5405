// Package repository holds the leaderboard store and its calibration index.
package repository

// Option applies a configuration option to the Store.
type Option func(*Store)

// WithBootstrapWindow sets the ±avg-score window scanned by Bootstrap.
func WithBootstrapWindow(window uint32) Option {
	return func(s *Store) {
		if window > 0 {
			s.bootstrapWindow = window
		}
	}
}

// WithBootstrapMinMatches sets how many neighbours Bootstrap needs to
// return their mean.
func WithBootstrapMinMatches(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.bootstrapMinMatches = n
		}
	}
}

// WithBootstrapMinPopulation sets the calibrated population required before
// the nearest-neighbour fallback is used.
func WithBootstrapMinPopulation(n int) Option {
	return func(s *Store) {
		if n >= 0 {
			s.bootstrapMinPopulation = n
		}
	}
}
