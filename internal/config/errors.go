package config

import "errors"

// Configuration validation errors.
// These errors are returned by Config.Validate() and are fatal at startup:
// the run never begins when one of them is returned.
//
// Design decision: We use package-level sentinel errors rather than
// creating new error instances in Validate(). This allows callers to use
// errors.Is() for programmatic error handling while still providing
// human-readable messages.
var (
	// ErrMissingAppName is returned when no application name is given.
	// The name identifies the artifact directory, so nothing can be stored without it.
	ErrMissingAppName = errors.New("missing application name: use --name")

	// ErrMissingTarget is returned when neither a URL nor a documentation path is given.
	ErrMissingTarget = errors.New("no target specified: provide --url or --docs")

	// ErrInvalidURL is returned when the target URL is not an absolute http(s) URL.
	ErrInvalidURL = errors.New("invalid target URL: must be an absolute http or https URL")

	// ErrInvalidMaxDepth is returned when the crawl depth is negative.
	ErrInvalidMaxDepth = errors.New("invalid max depth: must be non-negative")

	// ErrInvalidMaxPages is returned when the page budget is less than one.
	ErrInvalidMaxPages = errors.New("invalid max pages: must be at least 1")

	// ErrInvalidConcurrency is returned when the worker count is less than one.
	ErrInvalidConcurrency = errors.New("invalid concurrency: must be at least 1")

	// ErrInvalidTimeout is returned when the page timeout is not positive.
	ErrInvalidTimeout = errors.New("invalid timeout: must be positive")

	// ErrInvalidDelay is returned when the settle or crawl delay is negative.
	ErrInvalidDelay = errors.New("invalid delay: must be non-negative")

	// ErrInvalidWaitStrategy is returned for an unknown wait strategy.
	ErrInvalidWaitStrategy = errors.New("invalid wait strategy: use load, domcontentloaded or networkidle")

	// ErrInvalidBatchSize is returned when the batch size is not positive.
	ErrInvalidBatchSize = errors.New("invalid batch size: must be positive")
)
