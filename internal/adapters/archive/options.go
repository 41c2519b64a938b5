package archive

import (
	"time"

	"github.com/xplor/crewscore/pkg/logger"
)

// Option configures a SQLStore.
type Option func(*SQLStore)

// WithLogger sets the store logger.
func WithLogger(l logger.Logger) Option {
	return func(s *SQLStore) {
		if l != nil {
			s.log = l
		}
	}
}

// WithMaxOpenConns caps open connections. sqlite is always limited to one.
func WithMaxOpenConns(n int) Option {
	return func(s *SQLStore) {
		if n > 0 {
			s.maxOpen = n
		}
	}
}

// WithDefaultLimit sets the history size used when callers pass a limit below 1.
func WithDefaultLimit(n int) Option {
	return func(s *SQLStore) {
		if n > 0 {
			s.defaultLimit = n
		}
	}
}

// WithConnMaxLifetime sets how long a pooled connection may be reused.
func WithConnMaxLifetime(d time.Duration) Option {
	return func(s *SQLStore) {
		if d > 0 {
			s.connMaxLifetime = d
		}
	}
}
