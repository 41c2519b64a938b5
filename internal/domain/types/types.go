// Package types contains common types used across the application
package types

import "time"

// Entry represents a leaderboard entry
type Entry struct {
	Rank         int       `json:"rank"`
	CrewID       string    `json:"crew_id"`
	Score        int       `json:"score"`
	Tier         string    `json:"tier"`
	SubmissionID string    `json:"submission_id,omitempty"`
	UpdatedAt    time.Time `json:"updated_at"`
}
