package device

import "errors"

var (
	// ErrInvalidTimeout is returned for a non-positive query timeout.
	ErrInvalidTimeout = errors.New("query timeout must be positive")
)
