package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/xplor/crewscore/internal/adapters/archive"
	"github.com/xplor/crewscore/internal/adapters/http/api"
	"github.com/xplor/crewscore/internal/adapters/http/site"
	"github.com/xplor/crewscore/internal/adapters/http/swagger"
	app "github.com/xplor/crewscore/internal/app"
	"github.com/xplor/crewscore/internal/config"
	"github.com/xplor/crewscore/internal/domain/dedupe"
	"github.com/xplor/crewscore/internal/domain/scoring"
	"github.com/xplor/crewscore/pkg/logger"
	"github.com/xplor/crewscore/pkg/metrics"
)

// HTTP server timeout constants.
const (
	readTimeout               = 10 * time.Second
	writeTimeout              = 10 * time.Second
	idleTimeout               = 60 * time.Second
	readHeaderTimeout         = 5 * time.Second
	shutdownTimeout           = 30 * time.Second
	startupTimeout            = 10 * time.Second
	systemMetricsInterval     = 10 * time.Second
	serviceMetricsInterval    = 5 * time.Second
	nanosecondsPerMillisecond = 1e6
)

func main() {
	if err := logger.Init(); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer func() {
		if err := logger.Sync(); err != nil {
			os.Stderr.WriteString("failed to sync logger: " + err.Error() + "\n")
		}
	}()

	log := logger.Get()

	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// defaults -> optional file -> env
	cfg, err := config.Load(ctx)
	if err != nil {
		log.Error(ctx, "failed to load config", logger.Error(err))
		return
	}

	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		log.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	metrics.Configure(metricsOptions(cfg)...)

	svc, err := buildService(ctx, cfg, log)
	if err != nil {
		log.Error(ctx, "failed to build service", logger.Error(err))
		return
	}
	if err := svc.Start(ctx); err != nil {
		log.Error(ctx, "failed to start service", logger.Error(err))
		return
	}
	defer svc.Stop()

	mux, err := newMux(ctx, cfg, svc)
	if err != nil {
		log.Error(ctx, "failed to register routes", logger.Error(err))
		return
	}

	go startSystemMetricsUpdater(ctx)
	go startServiceMetricsUpdater(ctx, svc)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	go func() {
		log.Info(ctx, "starting HTTP server", logger.String("addr", cfg.Addr), logger.String("default_scheme", cfg.DefaultScheme))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error(ctx, "HTTP server failed", logger.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	log.Info(ctx, "shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(ctx, "server shutdown failed", logger.Error(err))
	}

	log.Info(ctx, "server stopped")
}

// buildService wires the scheme registry, dedupe backend and score archive
// selected by cfg into a service. The service is not started.
func buildService(ctx context.Context, cfg *config.Config, log logger.Logger) (*app.Service, error) {
	opts := []app.Option{
		app.WithLogger(log),
		app.WithWorkerCount(cfg.WorkerCount),
		app.WithQueueSize(cfg.QueueSize),
		app.WithDedupeSize(cfg.DedupeSize),
		app.WithBatchConcurrency(cfg.BatchConcurrency),
		app.WithDefaultScheme(cfg.DefaultScheme),
	}

	if cfg.SchemeDir != "" {
		reg, err := scoring.LoadRegistry(cfg.SchemeDir)
		if err != nil {
			return nil, fmt.Errorf("load schemes from %s: %w", cfg.SchemeDir, err)
		}
		log.Info(ctx, "loaded scoring schemes", logger.String("dir", cfg.SchemeDir), logger.Any("schemes", reg.Names()))
		opts = append(opts, app.WithRegistry(reg))
	}

	if cfg.DedupeBackend == config.DedupeRedis {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		d := dedupe.NewRedisDeduper(client,
			dedupe.WithTTL(time.Duration(cfg.DedupeTTLSeconds)*time.Second),
			dedupe.WithLogger(logger.Named("dedupe")),
		)
		pingCtx, cancel := context.WithTimeout(ctx, startupTimeout)
		if err := d.Ping(pingCtx); err != nil {
			// The deduper fails open, so an unreachable redis only weakens idempotency.
			log.Warn(ctx, "redis dedupe backend unreachable", logger.String("addr", cfg.RedisAddr), logger.Error(err))
		}
		cancel()
		opts = append(opts, app.WithDeduper(d))
	}

	if cfg.ArchiveDriver != config.ArchiveNone {
		openCtx, cancel := context.WithTimeout(ctx, startupTimeout)
		defer cancel()
		store, err := archive.Open(openCtx, cfg.ArchiveDriver, cfg.ArchiveDSN, archive.WithLogger(logger.Named("archive")))
		if err != nil {
			return nil, fmt.Errorf("open %s archive: %w", cfg.ArchiveDriver, err)
		}
		opts = append(opts, app.WithArchive(store))
	}

	return app.New(opts...), nil
}

// metricsOptions maps the metrics_* settings onto manager options.
func metricsOptions(cfg *config.Config) []metrics.Option {
	return []metrics.Option{
		metrics.WithMetricsEnabled(cfg.MetricsEnabled),
		metrics.WithScoreBuckets(cfg.MetricsScoreBuckets),
		metrics.WithLatencyBuckets(cfg.MetricsLatencyBuckets),
		metrics.WithConstLabels(cfg.MetricsLabels),
	}
}

// newMux registers every HTTP surface on a fresh mux.
func newMux(ctx context.Context, cfg *config.Config, svc *app.Service) (*http.ServeMux, error) {
	mux := http.NewServeMux()

	if err := swagger.Register(ctx, mux); err != nil {
		return nil, err
	}
	site.Register(ctx, mux, svc)

	apiServer := api.NewServer(svc, svc,
		api.WithMaxLimit(cfg.MaxLeaderboardLimit),
		api.WithMaxBatchSize(cfg.MaxBatchSize),
	)
	apiServer.Register(ctx, mux)
	return mux, nil
}

// startSystemMetricsUpdater refreshes runtime gauges until ctx is done.
func startSystemMetricsUpdater(ctx context.Context) {
	ticker := time.NewTicker(systemMetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updateSystemMetrics()
		}
	}
}

// startServiceMetricsUpdater refreshes queue, dedupe and board gauges until ctx is done.
func startServiceMetricsUpdater(ctx context.Context, svc *app.Service) {
	ticker := time.NewTicker(serviceMetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			// GetStats updates the service gauges as a side effect.
			_ = svc.GetStats()
		}
	}
}

func updateSystemMetrics() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	metrics.UpdateSystemMemoryUsage(m.Alloc)
	metrics.UpdateSystemGoroutineCount(runtime.NumGoroutine())

	if m.NumGC > 0 {
		avgPauseMs := float64(m.PauseTotalNs) / float64(m.NumGC) / nanosecondsPerMillisecond
		metrics.RecordSystemGCPauseTime(avgPauseMs)
	}
}
