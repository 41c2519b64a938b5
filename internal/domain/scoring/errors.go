package scoring

import "errors"

// Sentinel kinds for scheme loading and lookup. The engine itself never fails.
var (
	ErrUnknownScheme = errors.New("unknown scoring scheme")
	ErrInvalidScheme = errors.New("invalid scoring scheme")
)
