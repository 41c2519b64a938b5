package archive

import "errors"

var (
	// ErrUnsupportedDriver is returned for drivers other than sqlite and postgres.
	ErrUnsupportedDriver = errors.New("unsupported archive driver")
	// ErrMissingDSN is returned when no data source name is configured.
	ErrMissingDSN = errors.New("archive dsn not specified")
	// ErrInvalidCard is returned when a card has no submission or crew id.
	ErrInvalidCard = errors.New("invalid score card")
)
