package repository

import "time"

// Option applies a configuration option to the TreapStore.
type Option func(*TreapStore)

// WithMetricsUpdateInterval sets the interval for background metrics updates.
func WithMetricsUpdateInterval(interval time.Duration) Option {
	return func(s *TreapStore) {
		if interval > 0 {
			s.metricsUpdateInterval = interval
		}
	}
}

// WithScheme labels the store's metrics with the scheme it ranks.
func WithScheme(scheme string) Option {
	return func(s *TreapStore) {
		if scheme != "" {
			s.scheme = scheme
		}
	}
}
