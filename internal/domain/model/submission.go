// Package model contains domain models passed between layers.
package model

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	"github.com/xplor/crewscore/internal/domain/scoring"
)

// Submission is a crew profile sent for asynchronous scoring.
// Fields mirror the OpenAPI schema for /submissions.
type Submission struct {
	SubmissionID string          // unique id for idempotency
	CrewID       string          // crew member identifier
	Scheme       string          // scoring scheme name, e.g. "cri"
	Profile      scoring.Profile // free-form profile fields
	TS           time.Time       // submission timestamp
}

// DeriveID returns a stable id for submissions sent without one. Identical
// crew, scheme and profile content always hash to the same id.
func (s Submission) DeriveID() string {
	// encoding/json sorts map keys, so the encoding is canonical.
	body, err := json.Marshal(struct {
		CrewID  string          `json:"crew_id"`
		Scheme  string          `json:"scheme"`
		Profile scoring.Profile `json:"profile"`
	}{s.CrewID, s.Scheme, s.Profile})
	if err != nil {
		body = []byte(s.CrewID + "|" + s.Scheme)
	}
	sum := sha256.Sum256(body)
	return "sub-" + hex.EncodeToString(sum[:16])
}

// ScoreCard is the persisted outcome of scoring one submission.
type ScoreCard struct {
	SubmissionID string            `json:"submission_id"`
	CrewID       string            `json:"crew_id"`
	Scheme       string            `json:"scheme"`
	Total        int               `json:"total"`
	Tier         string            `json:"tier"`
	Breakdown    scoring.Breakdown `json:"breakdown"`
	ScoredAt     time.Time         `json:"scored_at"`
}

// NewScoreCard builds a card from a submission and its result.
func NewScoreCard(sub Submission, res scoring.Result, at time.Time) ScoreCard {
	return ScoreCard{
		SubmissionID: sub.SubmissionID,
		CrewID:       sub.CrewID,
		Scheme:       res.Scheme,
		Total:        res.Total,
		Tier:         res.Tier.Label,
		Breakdown:    res.Breakdown,
		ScoredAt:     at.UTC(),
	}
}
