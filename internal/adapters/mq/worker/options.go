package worker

import (
	"time"

	"github.com/xplor/crewscore/pkg/logger"
)

// Option applies a configuration option to the InMemoryWorker.
type Option func(*InMemoryWorker)

// WithName sets the worker name for identification and logging.
func WithName(name string) Option {
	return func(w *InMemoryWorker) {
		if name != "" {
			w.name = name
		}
	}
}

// WithLogger sets a custom logger for the worker.
func WithLogger(l logger.Logger) Option {
	return func(w *InMemoryWorker) {
		if l != nil {
			w.logger = l
		}
	}
}

// WithArchiver makes the worker persist a score card per submission.
func WithArchiver(a Archiver) Option {
	return func(w *InMemoryWorker) {
		if a != nil {
			w.archiver = a
		}
	}
}

// WithClock overrides the time source used for entry and card timestamps.
func WithClock(now func() time.Time) Option {
	return func(w *InMemoryWorker) {
		if now != nil {
			w.now = now
		}
	}
}

func withOnDone(fn func()) Option {
	return func(w *InMemoryWorker) { w.onDone = fn }
}
