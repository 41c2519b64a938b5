package seeder

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/xplor/crewscore/pkg/logger"
)

const (
	directoryPermission = 0o750
	filePermission      = 0o600
	settlePollInterval  = 100 * time.Millisecond
)

// Run executes a complete seeding run against cfg.BaseURL. Submission
// failures are counted, not fatal; an unhealthy service, boards that never
// settle or an inconsistent leaderboard fail the run. The report is
// returned with whatever was collected, also on error.
func Run(ctx context.Context, cfg Config) (*Report, error) {
	cfg = cfg.withDefaults()
	log := cfg.Logger
	report := &Report{Seed: cfg.Seed, StartTime: time.Now(), Tiers: map[string]int{}}
	defer func() { report.Duration = time.Since(report.StartTime) }()

	log.Info(ctx, "starting seeding run",
		logger.String("baseURL", cfg.BaseURL),
		logger.String("scheme", cfg.Scheme),
		logger.Int("profiles", cfg.Profiles),
		logger.Int("workers", cfg.Workers),
		logger.Any("seed", cfg.Seed))

	c := newClient(cfg.BaseURL, cfg.Timeout)
	if err := c.health(ctx); err != nil {
		return report, fmt.Errorf("health check: %w", err)
	}

	before, err := c.ranked(ctx, cfg.Scheme)
	if err != nil {
		return report, fmt.Errorf("read stats: %w", err)
	}

	subs, err := newGenerator(cfg.Seed, cfg.Scheme).generate(cfg.Profiles, time.Now())
	if err != nil {
		return report, fmt.Errorf("generate profiles: %w", err)
	}
	report.Generated = len(subs)

	if err := submitAll(ctx, c, cfg.Workers, subs, report); err != nil {
		return report, err
	}
	log.Info(ctx, "submissions sent",
		logger.Int("accepted", report.Accepted),
		logger.Int("duplicate", report.Duplicate),
		logger.Int("failed", report.Failed))

	if err := settle(ctx, c, cfg.Scheme, before+report.Accepted, cfg.Settle); err != nil {
		return report, err
	}

	rankings, err := rankAll(ctx, c, cfg, subs)
	if err != nil {
		return report, err
	}
	report.Ranked = len(rankings)
	for _, r := range rankings {
		report.Tiers[r.Tier]++
	}

	report.Leaderboard, err = c.leaderboard(ctx, cfg.Scheme, cfg.TopN)
	if err != nil {
		return report, fmt.Errorf("leaderboard: %w", err)
	}

	if cfg.OutputFile != "" {
		if err := saveSubmissions(cfg.OutputFile, subs); err != nil {
			log.Warn(ctx, "failed to save submissions", logger.String("file", cfg.OutputFile), logger.Error(err))
		}
	}

	if err := Verify(report.Leaderboard, rankings); err != nil {
		return report, err
	}
	log.Info(ctx, "seeding run verified",
		logger.Int("ranked", report.Ranked),
		logger.Int("leaderboard", len(report.Leaderboard)),
		logger.Duration("elapsed", time.Since(report.StartTime)))
	return report, nil
}

func submitAll(ctx context.Context, c *client, workers int, subs []Submission, report *Report) error {
	var accepted, duplicate, failed atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for _, sub := range subs {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			switch c.submit(gctx, sub) {
			case outcomeAccepted:
				accepted.Add(1)
			case outcomeDuplicate:
				duplicate.Add(1)
			default:
				failed.Add(1)
			}
			return nil
		})
	}
	_ = g.Wait()

	report.Accepted = int(accepted.Load())
	report.Duplicate = int(duplicate.Load())
	report.Failed = int(failed.Load())
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("submit: %w", err)
	}
	return nil
}

// settle waits until the scheme's board holds want crew members.
func settle(ctx context.Context, c *client, scheme string, want int, limit time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, limit)
	defer cancel()

	ticker := time.NewTicker(settlePollInterval)
	defer ticker.Stop()

	got := 0
	for {
		n, err := c.ranked(ctx, scheme)
		if err == nil {
			got = n
			if got >= want {
				return nil
			}
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("%w: %d of %d crew ranked after %s", ErrNotSettled, got, want, limit)
		case <-ticker.C:
		}
	}
}

// rankAll fetches the rank of every generated crew member. Crew that are
// not ranked (failed submissions) are skipped.
func rankAll(ctx context.Context, c *client, cfg Config, subs []Submission) ([]Entry, error) {
	results := make([]Entry, len(subs))
	found := make([]bool, len(subs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.Workers)
	for i, sub := range subs {
		g.Go(func() error {
			e, err := c.rank(gctx, cfg.Scheme, sub.CrewID)
			if err != nil {
				return nil //nolint:nilerr // unranked crew are reported by count
			}
			results[i], found[i] = e, true
			return nil
		})
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("rank: %w", err)
	}

	out := make([]Entry, 0, len(subs))
	for i, ok := range found {
		if ok {
			out = append(out, results[i])
		}
	}
	return out, nil
}

func saveSubmissions(path string, subs []Submission) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, directoryPermission); err != nil {
			return fmt.Errorf("create directory: %w", err)
		}
	}
	data, err := json.MarshalIndent(subs, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal submissions: %w", err)
	}
	return os.WriteFile(path, append(data, '\n'), filePermission)
}
