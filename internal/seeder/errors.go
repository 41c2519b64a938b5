package seeder

import "errors"

var (
	// ErrUnhealthy is returned when /healthz does not answer 200.
	ErrUnhealthy = errors.New("service unhealthy")
	// ErrUnexpectedStatus wraps non-2xx answers from read endpoints.
	ErrUnexpectedStatus = errors.New("unexpected status")
	// ErrNotSettled is returned when the boards never caught up with the accepted submissions.
	ErrNotSettled = errors.New("submissions not settled")
	// ErrInconsistent is returned when ranks and the leaderboard disagree.
	ErrInconsistent = errors.New("leaderboard inconsistent")
)
