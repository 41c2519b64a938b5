// Package repository keeps per-scheme crew leaderboards in memory.
package repository

import (
	"context"
	"errors"

	"github.com/xplor/crewscore/internal/domain/types"
)

var (
	ErrNotFound     = errors.New("crew member not found")
	ErrInvalidLimit = errors.New("invalid leaderboard limit")
	ErrClosed       = errors.New("leaderboard closed")
)

// Store provides read/write access to one scheme's ranking.
type Store interface {
	// Upsert replaces the crew member's entry with e. The latest score wins,
	// even when it is lower; "latest" is decided by UpdatedAt, so an entry
	// older than the stored one is dropped. Returns true when the ranking changed.
	Upsert(ctx context.Context, e types.Entry) (bool, error)

	// Rank returns the entry with its current rank.
	// Returns ErrNotFound if the crew member is unknown.
	Rank(ctx context.Context, crewID string) (types.Entry, error)

	// TopN returns the top-N entries ordered by score desc, crew id asc.
	TopN(ctx context.Context, n int) ([]types.Entry, error)

	// Count returns the number of ranked crew members.
	Count(ctx context.Context) int

	Close() error
}
