package seeder

import (
	"errors"
	"fmt"
)

// Verify checks that a top-N leaderboard is ordered with competition ranks
// and that individually fetched ranks agree with it.
func Verify(leaderboard, rankings []Entry) error {
	var errs []error

	for i, e := range leaderboard {
		if i == 0 {
			if e.Rank != 1 {
				errs = append(errs, fmt.Errorf("%w: first entry %s has rank %d", ErrInconsistent, e.CrewID, e.Rank))
			}
			continue
		}
		prev := leaderboard[i-1]
		switch {
		case e.Score > prev.Score:
			errs = append(errs, fmt.Errorf("%w: entry %d (%d) scores above entry %d (%d)", ErrInconsistent, i, e.Score, i-1, prev.Score))
		case e.Score == prev.Score && e.Rank != prev.Rank:
			errs = append(errs, fmt.Errorf("%w: tied entries %s and %s have ranks %d and %d", ErrInconsistent, prev.CrewID, e.CrewID, prev.Rank, e.Rank))
		case e.Score < prev.Score && e.Rank != i+1:
			errs = append(errs, fmt.Errorf("%w: entry %s at position %d has rank %d", ErrInconsistent, e.CrewID, i+1, e.Rank))
		}
	}

	if len(leaderboard) == 0 {
		if len(rankings) > 0 {
			errs = append(errs, fmt.Errorf("%w: empty leaderboard with %d ranked crew", ErrInconsistent, len(rankings)))
		}
		return errors.Join(errs...)
	}

	byCrew := make(map[string]Entry, len(leaderboard))
	for _, e := range leaderboard {
		byCrew[e.CrewID] = e
	}
	floor := leaderboard[len(leaderboard)-1].Score
	for _, r := range rankings {
		e, ok := byCrew[r.CrewID]
		switch {
		case ok && (e.Rank != r.Rank || e.Score != r.Score):
			errs = append(errs, fmt.Errorf("%w: %s is #%d (%d) on the leaderboard but #%d (%d) by rank", ErrInconsistent, r.CrewID, e.Rank, e.Score, r.Rank, r.Score))
		case !ok && r.Score > floor:
			errs = append(errs, fmt.Errorf("%w: %s scores %d but is missing from a leaderboard ending at %d", ErrInconsistent, r.CrewID, r.Score, floor))
		}
	}
	return errors.Join(errs...)
}
