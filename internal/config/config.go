// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - New() returns a Config populated with defaults.
// - Load(ctx) layers .env, an optional YAML file and XPLOR_ env vars on top.
// - Validation failures wrap ErrInvalidConfig; load failures wrap ErrLoadConfig.
package config

import (
	"errors"
	"fmt"
	"runtime"
	"strings"
)

var (
	// ErrInvalidConfig wraps every Validate failure.
	ErrInvalidConfig = errors.New("invalid config")
	// ErrLoadConfig wraps failures reading .env, YAML or the environment.
	ErrLoadConfig = errors.New("load config failed")
)

// Dedupe backends.
const (
	DedupeMemory = "memory"
	DedupeRedis  = "redis"
)

// Archive drivers. An empty driver disables the archive.
const (
	ArchiveNone     = ""
	ArchiveSQLite   = "sqlite"
	ArchivePostgres = "postgres"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// Addr configures the HTTP listen address, e.g. ":9080".
	Addr string `koanf:"addr"`

	// QueueSize bounds the in-memory submission queue.
	QueueSize int `koanf:"queue_size"`

	// WorkerCount sets the number of scoring workers.
	WorkerCount int `koanf:"worker_count"`

	// DedupeSize bounds the in-memory deduplication cache.
	DedupeSize int `koanf:"dedupe_size"`

	// DedupeBackend selects memory or redis.
	DedupeBackend string `koanf:"dedupe_backend"`

	// DedupeTTLSeconds is the lifetime of a redis dedupe key.
	DedupeTTLSeconds int `koanf:"dedupe_ttl_seconds"`

	RedisAddr     string `koanf:"redis_addr"`
	RedisPassword string `koanf:"redis_password"`
	RedisDB       int    `koanf:"redis_db"`

	// MaxLeaderboardLimit caps GET /leaderboard?limit.
	MaxLeaderboardLimit int `koanf:"max_leaderboard_limit"`

	// MaxBatchSize caps the number of profiles in POST /score/batch.
	MaxBatchSize int `koanf:"max_batch_size"`

	// BatchConcurrency bounds parallel scoring inside one batch.
	BatchConcurrency int `koanf:"batch_concurrency"`

	// DefaultScheme is used when a request names no scheme.
	DefaultScheme string `koanf:"default_scheme"`

	// SchemeDir is an optional directory of scheme YAML files that override
	// the built-in tables by name.
	SchemeDir string `koanf:"scheme_dir"`

	// ArchiveDriver is "", "sqlite" or "postgres".
	ArchiveDriver string `koanf:"archive_driver"`
	ArchiveDSN    string `koanf:"archive_dsn"`

	// MetricsEnabled turns Prometheus recording on or off.
	MetricsEnabled bool `koanf:"metrics_enabled"`

	// MetricsScoreBuckets overrides the composite total histogram buckets,
	// e.g. "25,50,75,100,150" for schemes with a wider scale.
	MetricsScoreBuckets []float64 `koanf:"metrics_score_buckets"`

	// MetricsLatencyBuckets overrides the millisecond latency buckets.
	MetricsLatencyBuckets []float64 `koanf:"metrics_latency_buckets"`

	// MetricsLabels are constant labels added to every metric (YAML only).
	MetricsLabels map[string]string `koanf:"metrics_labels"`
}

// New returns a Config with defaults.
func New() *Config {
	return &Config{
		LogLevel:            "info",
		Addr:                ":9080",
		QueueSize:           100_000,
		WorkerCount:         runtime.NumCPU() * 4,
		DedupeSize:          500_000,
		DedupeBackend:       DedupeMemory,
		DedupeTTLSeconds:    86_400,
		RedisAddr:           "localhost:6379",
		MaxLeaderboardLimit: 1000,
		MaxBatchSize:        500,
		BatchConcurrency:    runtime.NumCPU(),
		DefaultScheme:       "cri",
		MetricsEnabled:      true,
	}
}

// Validate reports the first invalid field.
func (c *Config) Validate() error {
	switch {
	case c.Addr == "":
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	case c.QueueSize <= 0:
		return fmt.Errorf("%w: queue_size must be positive, got %d", ErrInvalidConfig, c.QueueSize)
	case c.WorkerCount <= 0:
		return fmt.Errorf("%w: worker_count must be positive, got %d", ErrInvalidConfig, c.WorkerCount)
	case c.DedupeSize <= 0:
		return fmt.Errorf("%w: dedupe_size must be positive, got %d", ErrInvalidConfig, c.DedupeSize)
	case c.MaxLeaderboardLimit <= 0:
		return fmt.Errorf("%w: max_leaderboard_limit must be positive, got %d", ErrInvalidConfig, c.MaxLeaderboardLimit)
	case c.MaxBatchSize <= 0:
		return fmt.Errorf("%w: max_batch_size must be positive, got %d", ErrInvalidConfig, c.MaxBatchSize)
	case c.BatchConcurrency <= 0:
		return fmt.Errorf("%w: batch_concurrency must be positive, got %d", ErrInvalidConfig, c.BatchConcurrency)
	case strings.TrimSpace(c.DefaultScheme) == "":
		return fmt.Errorf("%w: default_scheme must not be empty", ErrInvalidConfig)
	}

	switch c.DedupeBackend {
	case DedupeMemory:
	case DedupeRedis:
		if c.RedisAddr == "" {
			return fmt.Errorf("%w: redis_addr is required for the redis dedupe backend", ErrInvalidConfig)
		}
		if c.DedupeTTLSeconds <= 0 {
			return fmt.Errorf("%w: dedupe_ttl_seconds must be positive, got %d", ErrInvalidConfig, c.DedupeTTLSeconds)
		}
	default:
		return fmt.Errorf("%w: unknown dedupe_backend %q", ErrInvalidConfig, c.DedupeBackend)
	}

	if err := validBuckets("metrics_score_buckets", c.MetricsScoreBuckets); err != nil {
		return err
	}
	if err := validBuckets("metrics_latency_buckets", c.MetricsLatencyBuckets); err != nil {
		return err
	}

	switch c.ArchiveDriver {
	case ArchiveNone:
	case ArchiveSQLite, ArchivePostgres:
		if c.ArchiveDSN == "" {
			return fmt.Errorf("%w: archive_dsn is required for archive_driver %q", ErrInvalidConfig, c.ArchiveDriver)
		}
	default:
		return fmt.Errorf("%w: unknown archive_driver %q", ErrInvalidConfig, c.ArchiveDriver)
	}
	return nil
}

// validBuckets accepts an empty list or strictly increasing bounds.
func validBuckets(name string, b []float64) error {
	for i := 1; i < len(b); i++ {
		if b[i] <= b[i-1] {
			return fmt.Errorf("%w: %s must be strictly increasing, got %v", ErrInvalidConfig, name, b)
		}
	}
	return nil
}
