package dedupe

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/xplor/crewscore/pkg/logger"
	"github.com/xplor/crewscore/pkg/metrics"
)

const (
	defaultKeyPrefix = "crewscore:submission:"
	defaultTTL       = 24 * time.Hour
)

// RedisDeduper shares submission ids across replicas through Redis keys
// with a TTL. Backend failures fail open: the submission is treated as new.
type RedisDeduper struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
	size   atomic.Int64
	logger logger.Logger
}

// NewRedisDeduper creates a deduper on an existing client.
func NewRedisDeduper(client redis.UniversalClient, opts ...RedisOption) *RedisDeduper {
	d := &RedisDeduper{
		client: client,
		prefix: defaultKeyPrefix,
		ttl:    defaultTTL,
		logger: logger.Get().Named("dedupe"),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// SeenAndRecord sets the id key only if absent.
func (d *RedisDeduper) SeenAndRecord(ctx context.Context, id string) bool {
	ok, err := d.client.SetNX(ctx, d.prefix+id, 1, d.ttl).Result()
	if err != nil {
		metrics.RecordDedupeBackendError()
		d.logger.Warn(ctx, "redis dedupe failed, accepting submission",
			logger.String("submission_id", id), logger.Error(err))
		return false
	}
	if !ok {
		return true
	}
	d.size.Add(1)
	return false
}

// Unrecord deletes the id key.
func (d *RedisDeduper) Unrecord(ctx context.Context, id string) {
	n, err := d.client.Del(ctx, d.prefix+id).Result()
	if err != nil {
		metrics.RecordDedupeBackendError()
		d.logger.Warn(ctx, "redis unrecord failed",
			logger.String("submission_id", id), logger.Error(err))
		return
	}
	if n > 0 {
		d.size.Add(-1)
	}
}

// Size returns the ids recorded by this process. Keys written by other
// replicas or expired by TTL are not reflected.
func (d *RedisDeduper) Size() int64 {
	return d.size.Load()
}

// Ping checks the backend connection.
func (d *RedisDeduper) Ping(ctx context.Context) error {
	return d.client.Ping(ctx).Err()
}

// Close closes the underlying client.
func (d *RedisDeduper) Close() error {
	if err := d.client.Close(); err != nil && !errors.Is(err, redis.ErrClosed) {
		return err
	}
	return nil
}
