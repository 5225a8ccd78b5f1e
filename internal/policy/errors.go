package policy

import "errors"

var (
	// ErrInvalidBaseURL is returned by New when the base URL cannot be
	// parsed, has no host, or is not http or https.
	ErrInvalidBaseURL = errors.New("invalid base URL")

	// ErrNegativeDepth is returned by New when maxDepth is below zero.
	ErrNegativeDepth = errors.New("invalid max depth: must be non-negative")
)
