// Package service provides the core business service that implements
// the dependencies required by the HTTP API.
package service

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	subqueue "github.com/xplor/crewscore/internal/adapters/mq/queue"
	workerpool "github.com/xplor/crewscore/internal/adapters/mq/worker"
	"github.com/xplor/crewscore/internal/adapters/repository"
	"github.com/xplor/crewscore/internal/domain/dedupe"
	"github.com/xplor/crewscore/internal/domain/model"
	"github.com/xplor/crewscore/internal/domain/scoring"
	"github.com/xplor/crewscore/internal/domain/types"
	"github.com/xplor/crewscore/pkg/logger"
	"github.com/xplor/crewscore/pkg/metrics"
)

const tracerName = "github.com/xplor/crewscore/internal/app"

// Archive stores score cards and serves a crew member's history.
type Archive interface {
	Save(ctx context.Context, card model.ScoreCard) error
	History(ctx context.Context, crewID string, limit int) ([]model.ScoreCard, error)
	Close() error
}

// Service implements the API dependencies for the crew scoring system.
type Service struct {
	mu sync.RWMutex

	// Core components
	boards   *repository.Boards
	deduper  dedupe.Deduper
	queue    *subqueue.InMemoryQueue
	registry *scoring.Registry
	scorer   *scoring.TableScorer
	pool     *workerpool.Pool
	archive  Archive
	tracer   trace.Tracer

	// Configuration
	workerCount      int
	queueSize        int
	dedupeSize       int
	batchConcurrency int
	defaultScheme    string

	// State
	started   bool
	startedAt time.Time
	cancel    context.CancelFunc

	logger logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithWorkerCount sets the number of worker goroutines.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithQueueSize sets the capacity of the submission queue.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithDedupeSize sets the size of the in-memory deduplication cache.
func WithDedupeSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.dedupeSize = size
		}
	}
}

// WithDeduper replaces the in-memory deduper, e.g. with a redis one.
func WithDeduper(d dedupe.Deduper) Option {
	return func(s *Service) {
		if d != nil {
			s.deduper = d
		}
	}
}

// WithRegistry sets the scheme registry. Defaults to the built-in schemes.
func WithRegistry(reg *scoring.Registry) Option {
	return func(s *Service) {
		if reg != nil {
			s.registry = reg
		}
	}
}

// WithArchive enables score card archiving and history queries.
func WithArchive(a Archive) Option {
	return func(s *Service) {
		if a != nil {
			s.archive = a
		}
	}
}

// WithBatchConcurrency bounds parallel scoring in ScoreBatch.
func WithBatchConcurrency(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.batchConcurrency = n
		}
	}
}

// WithDefaultScheme sets the scheme used when a request names none.
func WithDefaultScheme(name string) Option {
	return func(s *Service) {
		if name != "" {
			s.defaultScheme = name
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// New constructs a new Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		workerCount:      runtime.NumCPU() * 2,
		queueSize:        100000,
		dedupeSize:       50000,
		batchConcurrency: runtime.NumCPU(),
		defaultScheme:    scoring.DefaultScheme,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("service")
	}
	s.tracer = otel.Tracer(tracerName)
	return s
}

// Start initializes and starts the service components.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	s.logger.Info(ctx, "starting crew scoring service...")

	if s.registry == nil {
		reg, err := scoring.DefaultRegistry()
		if err != nil {
			return fmt.Errorf("load built-in schemes: %w", err)
		}
		s.registry = reg
	}
	if _, err := s.registry.Get(s.defaultScheme); err != nil {
		return fmt.Errorf("default scheme: %w", err)
	}
	s.scorer = scoring.NewTableScorer(s.registry, scoring.WithDefaultScheme(s.defaultScheme))

	// Workers run detached from ctx and stop through Stop.
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.cancel = cancel

	s.boards = repository.NewBoards(runCtx)
	if s.deduper == nil {
		s.deduper = dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(s.dedupeSize))
	}
	qlog := s.logger.Named("queue")
	s.queue = subqueue.NewInMemoryQueue(
		subqueue.WithCapacity(s.queueSize),
		subqueue.WithRejectHook(func(sub subqueue.Submission, reason string) {
			qlog.Debug(context.Background(), "submission refused",
				logger.String("submission_id", sub.SubmissionID),
				logger.String("crew_id", sub.CrewID),
				logger.String("reason", reason))
		}),
	)

	wopts := []workerpool.Option{workerpool.WithLogger(s.logger.Named("worker"))}
	if s.archive != nil {
		wopts = append(wopts, workerpool.WithArchiver(s.archive))
	}
	s.pool = workerpool.NewPool(s.workerCount, s.queue, s.scorer, s.boards, wopts...)
	s.pool.Start(runCtx)

	s.started = true
	s.startedAt = time.Now()
	s.logger.Info(ctx, "crew scoring service started",
		logger.Int("workers", s.pool.Size()),
		logger.Int("queue_size", s.queueSize),
		logger.Int("dedupe_size", s.dedupeSize),
		logger.String("default_scheme", s.defaultScheme),
		logger.Any("schemes", s.registry.Names()),
		logger.Bool("archive", s.archive != nil),
	)
	return nil
}

// Stop drains the queue and shuts down every component.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}
	ctx := context.Background()
	s.logger.Info(ctx, "stopping crew scoring service...")

	if err := s.pool.Shutdown(ctx); err != nil {
		s.logger.Warn(ctx, "worker pool did not drain", logger.Error(err))
	}
	s.cancel()
	if err := s.boards.Close(); err != nil {
		s.logger.Warn(ctx, "error closing leaderboards", logger.Error(err))
	}
	if closer, ok := s.deduper.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			s.logger.Warn(ctx, "error closing deduper", logger.Error(err))
		}
	}
	if s.archive != nil {
		if err := s.archive.Close(); err != nil {
			s.logger.Warn(ctx, "error closing archive", logger.Error(err))
		}
	}

	s.started = false
	s.logger.Info(ctx, "crew scoring service stopped", logger.Int64("processed", s.pool.Processed()))
}

func (s *Service) isStarted() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.started
}

// resolve maps an empty scheme name to the default one.
func (s *Service) resolve(scheme string) string {
	if scheme == "" {
		return s.defaultScheme
	}
	return scheme
}

// Score evaluates a profile synchronously.
func (s *Service) Score(ctx context.Context, scheme string, profile scoring.Profile) (scoring.Result, error) {
	if !s.isStarted() {
		return scoring.Result{}, ErrNotStarted
	}
	scheme = s.resolve(scheme)

	ctx, span := s.tracer.Start(ctx, "crewscore.Score", trace.WithAttributes(attribute.String("scheme", scheme)))
	defer span.End()

	start := time.Now()
	res, err := s.scorer.Score(ctx, scoring.Input{Scheme: scheme, Profile: profile})
	metrics.RecordScoringLatency(float64(time.Since(start).Microseconds()) / 1000)
	if err != nil {
		metrics.RecordScoringError()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return scoring.Result{}, err
	}
	metrics.RecordScore(res.Scheme, res.Tier.Label, res.Total, res.TierMatched)
	span.SetAttributes(
		attribute.Int("total", res.Total),
		attribute.String("tier", res.Tier.Label),
		attribute.Bool("tier_matched", res.TierMatched),
	)
	return res, nil
}

// ScoreBatch scores profiles in parallel. Results keep the input order.
func (s *Service) ScoreBatch(ctx context.Context, scheme string, profiles []scoring.Profile) ([]scoring.Result, error) {
	if !s.isStarted() {
		return nil, ErrNotStarted
	}
	scheme = s.resolve(scheme)
	if _, err := s.registry.Get(scheme); err != nil {
		return nil, err
	}

	ctx, span := s.tracer.Start(ctx, "crewscore.ScoreBatch", trace.WithAttributes(
		attribute.String("scheme", scheme),
		attribute.Int("size", len(profiles)),
	))
	defer span.End()
	metrics.RecordBatchSize(len(profiles))

	results := make([]scoring.Result, len(profiles))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.batchConcurrency)
	for i := range profiles {
		g.Go(func() error {
			res, err := s.Score(gctx, scheme, profiles[i])
			if err != nil {
				return fmt.Errorf("profile %d: %w", i, err)
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	return results, nil
}

// SeenAndRecord atomically checks whether a submission id was seen and
// records it if not. Returns true for duplicates.
func (s *Service) SeenAndRecord(ctx context.Context, id string) bool {
	seen := s.deduper.SeenAndRecord(ctx, id)
	if seen {
		metrics.RecordSubmissionDuplicate()
	}
	return seen
}

// Unrecord forgets a submission id so it can be retried.
func (s *Service) Unrecord(ctx context.Context, id string) {
	s.deduper.Unrecord(ctx, id)
}

// Size returns the number of remembered submission ids.
func (s *Service) Size() int64 {
	if s.deduper == nil {
		return 0
	}
	return s.deduper.Size()
}

// Submit queues a submission for asynchronous scoring. Returns false on
// backpressure or when the service is not running.
func (s *Service) Submit(ctx context.Context, sub model.Submission) bool { //nolint:gocritic // hugeParam: copied into the queue anyway
	if !s.isStarted() {
		return false
	}
	sub.Scheme = s.resolve(sub.Scheme)
	if sub.SubmissionID == "" {
		sub.SubmissionID = sub.DeriveID()
	}
	if sub.TS.IsZero() {
		sub.TS = time.Now().UTC()
	}

	ok := s.queue.Enqueue(ctx, sub)
	if ok {
		metrics.RecordSubmissionAccepted()
		s.logger.Debug(ctx, "submission queued",
			logger.String("submission_id", sub.SubmissionID),
			logger.String("crew_id", sub.CrewID),
			logger.String("scheme", sub.Scheme),
		)
	} else {
		metrics.RecordSubmissionRejected("backpressure")
	}
	return ok
}

// TopN returns the top n entries of a scheme's leaderboard.
func (s *Service) TopN(ctx context.Context, scheme string, n int) ([]types.Entry, error) {
	if !s.isStarted() {
		return nil, ErrNotStarted
	}
	return s.boards.TopN(ctx, s.resolve(scheme), n)
}

// Rank returns a crew member's entry on a scheme's leaderboard.
func (s *Service) Rank(ctx context.Context, scheme, crewID string) (types.Entry, error) {
	if !s.isStarted() {
		return types.Entry{}, ErrNotStarted
	}
	e, err := s.boards.Rank(ctx, s.resolve(scheme), crewID)
	if errors.Is(err, repository.ErrNotFound) {
		return types.Entry{}, fmt.Errorf("%w: %s", ErrCrewNotFound, crewID)
	}
	return e, err
}

// History returns archived score cards for a crew member, newest first.
func (s *Service) History(ctx context.Context, crewID string, limit int) ([]model.ScoreCard, error) {
	if s.archive == nil {
		return nil, ErrArchiveDisabled
	}
	return s.archive.History(ctx, crewID, limit)
}

func (s *Service) schemeRegistry() *scoring.Registry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.registry
}

// Schemes lists the registered schemes sorted by name.
func (s *Service) Schemes() []scoring.Scheme {
	reg := s.schemeRegistry()
	if reg == nil {
		return nil
	}
	return reg.List()
}

// Scheme returns a registered scheme by name.
func (s *Service) Scheme(name string) (scoring.Scheme, error) {
	reg := s.schemeRegistry()
	if reg == nil {
		return scoring.Scheme{}, ErrNotStarted
	}
	return reg.Get(s.resolve(name))
}

// DefaultScheme returns the scheme used when a request names none.
func (s *Service) DefaultScheme() string { return s.defaultScheme }

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx := context.Background()
	stats := map[string]any{
		"started":       s.started,
		"workerCount":   s.workerCount,
		"queueSize":     s.queueSize,
		"dedupeSize":    s.dedupeSize,
		"defaultScheme": s.defaultScheme,
		"archive":       s.archive != nil,
	}

	if s.started {
		queueLen := s.queue.Len(ctx)
		counts := s.boards.Counts(ctx)
		total := 0
		for scheme, n := range counts {
			total += n
			metrics.UpdateCrewsTotal(scheme, n)
		}

		stats["queueLength"] = queueLen
		stats["crewsByScheme"] = counts
		stats["totalCrews"] = total
		stats["processed"] = s.pool.Processed()
		stats["seenSubmissions"] = s.deduper.Size()
		stats["schemes"] = s.registry.Names()
		stats["uptimeSeconds"] = int64(time.Since(s.startedAt).Seconds())

		metrics.UpdateQueueSize(queueLen, s.queueSize)
		metrics.UpdateDedupeSize(s.deduper.Size())
	}
	return stats
}
