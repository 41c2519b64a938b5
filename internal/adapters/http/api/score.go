package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/xplor/crewscore/internal/domain/scoring"
)

// ScoreDependencies computes scores synchronously.
type ScoreDependencies interface {
	Score(ctx context.Context, scheme string, p scoring.Profile) (scoring.Result, error)
	ScoreBatch(ctx context.Context, scheme string, ps []scoring.Profile) ([]scoring.Result, error)
}

// ScoreHandler handles synchronous scoring requests.
type ScoreHandler struct {
	deps         ScoreDependencies
	maxBatchSize int
}

// NewScoreHandler creates a new score handler.
func NewScoreHandler(deps ScoreDependencies, maxBatchSize int) *ScoreHandler {
	return &ScoreHandler{deps: deps, maxBatchSize: maxBatchSize}
}

type scoreRequest struct {
	Scheme  string          `json:"scheme"`
	CrewID  string          `json:"crew_id"`
	Profile scoring.Profile `json:"profile"`
}

type batchRequest struct {
	Scheme   string            `json:"scheme"`
	Profiles []scoring.Profile `json:"profiles"`
}

type batchResponse struct {
	Scheme  string           `json:"scheme"`
	Count   int              `json:"count"`
	Results []scoring.Result `json:"results"`
}

// HandleScore handles POST /score.
func (h *ScoreHandler) HandleScore(w http.ResponseWriter, r *http.Request) {
	const op = "api.score"
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	body, err := readBody(w, r, "score")
	if err != nil {
		fail(w, Wrap(op, err))
		return
	}
	var req scoreRequest
	if err := json.Unmarshal(body, &req); err != nil {
		fail(w, WrapKind(op, ErrBadRequest, err))
		return
	}
	res, err := h.deps.Score(r.Context(), req.Scheme, req.Profile)
	if err != nil {
		fail(w, Wrap(op, err))
		return
	}
	res.CrewID = req.CrewID
	writeJSON(w, http.StatusOK, res)
}

// HandleBatch handles POST /score/batch.
func (h *ScoreHandler) HandleBatch(w http.ResponseWriter, r *http.Request) {
	const op = "api.score_batch"
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	body, err := readBody(w, r, "batch")
	if err != nil {
		fail(w, Wrap(op, err))
		return
	}
	var req batchRequest
	if err := json.Unmarshal(body, &req); err != nil {
		fail(w, WrapKind(op, ErrBadRequest, err))
		return
	}
	if len(req.Profiles) > h.maxBatchSize {
		fail(w, WrapKind(op, ErrLimitExceeded,
			fmt.Errorf("%d profiles exceeds the batch limit of %d", len(req.Profiles), h.maxBatchSize)))
		return
	}
	results, err := h.deps.ScoreBatch(r.Context(), req.Scheme, req.Profiles)
	if err != nil {
		fail(w, Wrap(op, err))
		return
	}
	scheme := req.Scheme
	if len(results) > 0 {
		scheme = results[0].Scheme
	}
	writeJSON(w, http.StatusOK, batchResponse{Scheme: scheme, Count: len(results), Results: results})
}
