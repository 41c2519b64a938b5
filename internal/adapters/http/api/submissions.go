package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/xplor/crewscore/internal/domain/dedupe"
	"github.com/xplor/crewscore/internal/domain/model"
	"github.com/xplor/crewscore/internal/domain/scoring"
	"github.com/xplor/crewscore/pkg/metrics"
)

// SubmissionDependencies defines what the submissions handler needs.
type SubmissionDependencies interface {
	dedupe.Deduper
	SchemeDependencies
	Submit(ctx context.Context, sub model.Submission) bool
}

// SubmissionsHandler accepts crew profiles for asynchronous scoring.
type SubmissionsHandler struct {
	deps SubmissionDependencies
}

// NewSubmissionsHandler creates a new submissions handler.
func NewSubmissionsHandler(deps SubmissionDependencies) *SubmissionsHandler {
	return &SubmissionsHandler{deps: deps}
}

// submissionRequest mirrors the OpenAPI schema for POST /submissions.
type submissionRequest struct {
	SubmissionID string          `json:"submission_id"`
	CrewID       string          `json:"crew_id"`
	Scheme       string          `json:"scheme"`
	Profile      scoring.Profile `json:"profile"`
	TS           string          `json:"ts"`
}

func (s submissionRequest) validate() error {
	if strings.TrimSpace(s.CrewID) == "" {
		return errors.New("missing crew_id")
	}
	if s.TS != "" {
		if _, err := time.Parse(time.RFC3339, s.TS); err != nil {
			return errors.New("invalid ts; must be RFC3339")
		}
	}
	return nil
}

type ackResponse struct {
	Status       string `json:"status"`
	Duplicate    bool   `json:"duplicate"`
	SubmissionID string `json:"submission_id"`
}

// HandlePostSubmission handles POST /submissions requests.
func (h *SubmissionsHandler) HandlePostSubmission(w http.ResponseWriter, r *http.Request) {
	const op = "api.post_submission"
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	body, err := readBody(w, r, "submission")
	if err != nil {
		metrics.RecordSubmissionRejected("invalid")
		fail(w, Wrap(op, err))
		return
	}
	var req submissionRequest
	if err := json.Unmarshal(body, &req); err != nil {
		metrics.RecordSubmissionRejected("invalid")
		fail(w, WrapKind(op, ErrBadRequest, err))
		return
	}
	if err := req.validate(); err != nil {
		metrics.RecordSubmissionRejected("invalid")
		fail(w, WrapKind(op, ErrBadRequest, err))
		return
	}
	scheme, err := canonicalScheme(h.deps, req.Scheme)
	if err != nil {
		metrics.RecordSubmissionRejected("unknown_scheme")
		fail(w, Wrap(op, err))
		return
	}

	sub := model.Submission{
		SubmissionID: strings.TrimSpace(req.SubmissionID),
		CrewID:       strings.TrimSpace(req.CrewID),
		Scheme:       scheme,
		Profile:      req.Profile,
	}
	if req.TS != "" {
		sub.TS, _ = time.Parse(time.RFC3339, req.TS)
	}
	if sub.SubmissionID == "" {
		sub.SubmissionID = sub.DeriveID()
	}

	// Idempotency check - mark as seen first
	if h.deps.SeenAndRecord(r.Context(), sub.SubmissionID) {
		writeJSON(w, http.StatusOK, ackResponse{Status: "duplicate", Duplicate: true, SubmissionID: sub.SubmissionID})
		return
	}

	if ok := h.deps.Submit(r.Context(), sub); !ok {
		// Rollback the "seen" status since enqueue failed
		h.deps.Unrecord(r.Context(), sub.SubmissionID)
		fail(w, NewKind(op, ErrBackpressure))
		return
	}
	writeJSON(w, http.StatusAccepted, ackResponse{Status: "accepted", SubmissionID: sub.SubmissionID})
}
