// Package seeder drives a running crew ratings service over HTTP: it
// generates random crew profiles, submits them concurrently, reads back
// ranks and the leaderboard, and checks that the two agree.
package seeder

import (
	"runtime"
	"time"

	"github.com/xplor/crewscore/internal/domain/types"
	"github.com/xplor/crewscore/pkg/logger"
)

// Defaults applied by Config.withDefaults.
const (
	DefaultBaseURL  = "http://localhost:9080"
	DefaultProfiles = 1000
	DefaultTopN     = 50
	DefaultTimeout  = 30 * time.Second
	DefaultSettle   = 30 * time.Second
	DefaultScheme   = "cri"
)

// Config holds configuration for a seeding run.
type Config struct {
	BaseURL    string        // base URL of the service
	Scheme     string        // scheme every submission is scored under
	Profiles   int           // number of crew profiles to generate
	TopN       int           // leaderboard entries to fetch
	Workers    int           // concurrent HTTP requests
	Timeout    time.Duration // per-request timeout
	Settle     time.Duration // how long to wait for the boards to absorb submissions
	Seed       uint64        // profile generator seed; 0 picks one from the clock
	OutputFile string        // optional JSON dump of the generated submissions
	Logger     logger.Logger
}

func (c Config) withDefaults() Config {
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	if c.Scheme == "" {
		c.Scheme = DefaultScheme
	}
	if c.Profiles <= 0 {
		c.Profiles = DefaultProfiles
	}
	if c.TopN <= 0 {
		c.TopN = DefaultTopN
	}
	if c.Workers <= 0 {
		c.Workers = runtime.NumCPU() * 2
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.Settle <= 0 {
		c.Settle = DefaultSettle
	}
	if c.Seed == 0 {
		c.Seed = uint64(time.Now().UnixNano())
	}
	if c.Logger == nil {
		c.Logger = logger.Get()
	}
	return c
}

// Submission is the POST /submissions body.
type Submission struct {
	SubmissionID string         `json:"submission_id"`
	CrewID       string         `json:"crew_id"`
	Scheme       string         `json:"scheme"`
	Profile      map[string]any `json:"profile"`
	TS           string         `json:"ts"`
}

// Entry is a leaderboard row as served by /leaderboard and /rank.
type Entry = types.Entry

type ackResponse struct {
	Status       string `json:"status"`
	Duplicate    bool   `json:"duplicate"`
	SubmissionID string `json:"submission_id"`
}

// Report summarises a seeding run.
type Report struct {
	Seed        uint64
	Generated   int
	Accepted    int
	Duplicate   int
	Failed      int
	Ranked      int
	Leaderboard []Entry
	Tiers       map[string]int // ranked crew members per tier label
	StartTime   time.Time
	Duration    time.Duration
}

// SubmissionsPerSecond is the submit throughput of the run.
func (r *Report) SubmissionsPerSecond() float64 {
	if r.Duration <= 0 {
		return 0
	}
	return float64(r.Accepted+r.Duplicate+r.Failed) / r.Duration.Seconds()
}
