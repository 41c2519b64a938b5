// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/xplor/crewscore/internal/domain/dedupe"
	"github.com/xplor/crewscore/internal/domain/model"
	"github.com/xplor/crewscore/internal/domain/scoring"
	"github.com/xplor/crewscore/internal/domain/types"
)

const (
	defaultMaxLimit     = 1000
	defaultMaxBatchSize = 500
	defaultLimit        = 10
	maxBodyBytes        = 1 << 20
)

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	dedupe.Deduper

	// Submit queues a submission for async scoring. Returns false on backpressure.
	Submit(ctx context.Context, sub model.Submission) bool

	Score(ctx context.Context, scheme string, p scoring.Profile) (scoring.Result, error)
	ScoreBatch(ctx context.Context, scheme string, ps []scoring.Profile) ([]scoring.Result, error)

	// Read operations expose leaderboard data.
	TopN(ctx context.Context, scheme string, n int) ([]Entry, error)
	Rank(ctx context.Context, scheme, crewID string) (Entry, error)
	History(ctx context.Context, crewID string, limit int) ([]model.ScoreCard, error)

	Schemes() []scoring.Scheme
	Scheme(name string) (scoring.Scheme, error)
}

// Entry mirrors the read shape returned by leaderboard queries.
type Entry = types.Entry

// Option configures the Server.
type Option func(*Server)

// WithMaxLimit caps the leaderboard and history limit parameter.
func WithMaxLimit(n int) Option {
	return func(s *Server) {
		if n > 0 {
			s.maxLimit = n
		}
	}
}

// WithMaxBatchSize caps the number of profiles in a batch request.
func WithMaxBatchSize(n int) Option {
	return func(s *Server) {
		if n > 0 {
			s.maxBatchSize = n
		}
	}
}

// Server wires HTTP routes for the business API.
type Server struct {
	maxLimit     int
	maxBatchSize int

	healthHandler      *HealthHandler
	statsHandler       *StatsHandler
	schemesHandler     *SchemesHandler
	scoreHandler       *ScoreHandler
	submissionsHandler *SubmissionsHandler
	leaderboardHandler *LeaderboardHandler
	rankHandler        *RankHandler
	historyHandler     *HistoryHandler
	dashboardHandler   *dashboardHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider, opts ...Option) *Server {
	s := &Server{maxLimit: defaultMaxLimit, maxBatchSize: defaultMaxBatchSize}
	for _, opt := range opts {
		opt(s)
	}
	s.healthHandler = NewHealthHandler()
	s.statsHandler = NewStatsHandler(statsProvider)
	s.schemesHandler = NewSchemesHandler(deps)
	s.scoreHandler = NewScoreHandler(deps, s.maxBatchSize)
	s.submissionsHandler = NewSubmissionsHandler(deps)
	s.leaderboardHandler = NewLeaderboardHandler(deps, s.maxLimit)
	s.rankHandler = NewRankHandler(deps)
	s.historyHandler = NewHistoryHandler(deps, s.maxLimit)
	s.dashboardHandler = newDashboardHandler()
	return s
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	mux.HandleFunc("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("/dashboard", s.dashboardHandler.HandleDashboard)
	mux.HandleFunc("/stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))
	mux.HandleFunc("/schemes", MetricsMiddleware(s.schemesHandler.HandleList, "schemes"))
	mux.HandleFunc("/schemes/", MetricsMiddleware(s.schemesHandler.HandleGet, "scheme"))
	mux.HandleFunc("/score", MetricsMiddleware(s.scoreHandler.HandleScore, "score"))
	mux.HandleFunc("/score/batch", MetricsMiddleware(s.scoreHandler.HandleBatch, "score_batch"))
	mux.HandleFunc("/submissions", MetricsMiddleware(s.submissionsHandler.HandlePostSubmission, "submissions"))
	mux.HandleFunc("/leaderboard", MetricsMiddleware(s.leaderboardHandler.HandleGetLeaderboard, "leaderboard"))
	mux.HandleFunc("/rank/", MetricsMiddleware(s.rankHandler.HandleGetRank, "rank"))
	mux.HandleFunc("/history/", MetricsMiddleware(s.historyHandler.HandleGetHistory, "history"))
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// fail writes err with the status and code chosen by classify.
func fail(w http.ResponseWriter, err error) {
	status, code := classify(err)
	writeError(w, status, code, err)
}

// readBody reads a bounded request body and checks it against a schema.
func readBody(w http.ResponseWriter, r *http.Request, schema string) ([]byte, error) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, ErrLimitExceeded
		}
		return nil, errors.Join(ErrBadRequest, err)
	}
	if err := validateEnvelope(schema, body); err != nil {
		return nil, err
	}
	return body, nil
}
