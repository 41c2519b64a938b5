package service

import "errors"

var (
	// ErrNotStarted is returned by operations called before Start.
	ErrNotStarted = errors.New("service not started")
	// ErrArchiveDisabled is returned by History when no archive is configured.
	ErrArchiveDisabled = errors.New("score archive disabled")
	// ErrCrewNotFound is returned by Rank for crew members without a score.
	ErrCrewNotFound = errors.New("crew member not found")
)
