package config

import "errors"

// Configuration validation errors returned by Config.Validate.
var (
	// ErrNoTarget is returned when no base URL or directory is given.
	ErrNoTarget = errors.New("no target specified: provide a base URL")

	// ErrInvalidDepth is returned for a negative crawl depth.
	ErrInvalidDepth = errors.New("invalid depth: must be non-negative")

	// ErrInvalidWorkers is returned when fewer than one worker is requested.
	ErrInvalidWorkers = errors.New("invalid workers: must be at least 1")

	// ErrInvalidPerOriginLimit is returned for a negative per-origin limit.
	ErrInvalidPerOriginLimit = errors.New("invalid per-origin limit: must be non-negative")

	// ErrInvalidCrawlDelay is returned when the crawl delay is negative.
	ErrInvalidCrawlDelay = errors.New("invalid crawl delay: must be non-negative")

	// ErrInvalidRetries is returned for a negative retry count.
	ErrInvalidRetries = errors.New("invalid retries: must be non-negative")

	// ErrInvalidTimeout is returned when the timeout is not positive.
	ErrInvalidTimeout = errors.New("invalid timeout: must be positive")

	// ErrInvalidMaxBodySize is returned when the body size limit is not positive.
	ErrInvalidMaxBodySize = errors.New("invalid max body size: must be positive")

	// ErrInvalidBatchSize is returned when the batch size is not positive.
	ErrInvalidBatchSize = errors.New("invalid batch size: must be positive")

	// ErrNoOutputDir is returned when the output directory is empty.
	ErrNoOutputDir = errors.New("no output directory specified")

	// ErrDuplicateOutput is returned when two targets map to the same
	// output directory.
	ErrDuplicateOutput = errors.New("duplicate target output directory")

	// ErrConflictingReportFormats is returned when both --json and
	// --markdown are specified.
	ErrConflictingReportFormats = errors.New("conflicting report formats: --json and --markdown cannot be used together")
)
