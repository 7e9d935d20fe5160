package config

import "errors"

// Configuration validation errors.
// These errors are returned by Config.Validate() and provide specific
// information about what is wrong with the configuration.
//
// Design decision: We use package-level sentinel errors rather than
// creating new error instances in Validate(). This allows callers to use
// errors.Is() for programmatic error handling while still providing
// human-readable messages.
var (
	// ErrNoEventSource is returned when neither the capture server nor the
	// forward proxy is enabled, so no share traffic could ever be observed.
	ErrNoEventSource = errors.New("no event source: set listen_addr or proxy_addr")

	// ErrInvalidConcurrency is returned when the pipeline concurrency is not positive.
	ErrInvalidConcurrency = errors.New("invalid concurrency: must be positive")

	// ErrConflictingReportFormats is returned when both --json and --markdown
	// are specified. Only one output format can be used at a time.
	ErrConflictingReportFormats = errors.New("conflicting report formats: --json and --markdown cannot be used together")

	// ErrInvalidMaxBodySize is returned when the max body size is negative.
	// A negative body size is invalid; use 0 to use the default limit.
	ErrInvalidMaxBodySize = errors.New("invalid max body size: must be non-negative")

	// ErrInvalidLogFormat is returned when the log format is not "text" or "json".
	ErrInvalidLogFormat = errors.New("invalid log format: must be \"text\" or \"json\"")

	// ErrNoDBDir is returned when no database directory is configured.
	ErrNoDBDir = errors.New("no database directory specified")

	// ErrInvalidEnvValue is returned when a SOCIALMARK_* variable cannot be parsed.
	ErrInvalidEnvValue = errors.New("invalid environment value")
)
