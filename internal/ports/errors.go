package ports

import "errors"

// Standard application-level errors.
// Components wrap these with context; callers test them with errors.Is.
var (
	// General Errors
	ErrUnknown            = errors.New("unknown error occurred")
	ErrInvalidRequest     = errors.New("invalid request parameters or format")
	ErrNotFound           = errors.New("resource not found")
	ErrContextCanceled    = errors.New("operation canceled via context")
	ErrConfigurationError = errors.New("invalid or missing configuration")

	// Pipeline Errors
	ErrDataUnavailable   = errors.New("no ratio data for requested start date")
	ErrEmptyInput        = errors.New("no sequences to cluster")
	ErrInvalidK          = errors.New("cluster count out of range")
	ErrMissingInstrument = errors.New("instrument missing from price store")

	// Data Source Errors
	ErrTableFormat     = errors.New("malformed price table")
	ErrDuplicateEntry  = errors.New("duplicate table entry")
	ErrDBConnection    = errors.New("database connection error")
	ErrQueryFailed     = errors.New("database query failed")
	ErrExchangeFailure = errors.New("exchange request failed")
	ErrRateLimited     = errors.New("API rate limit exceeded")
	ErrTimeout         = errors.New("operation timed out")
)
