package fetcher

import (
	"fmt"

	"github.com/rohmanhakim/archivist/internal/metadata"
	"github.com/rohmanhakim/archivist/pkg/failure"
)

type FetchErrorCause string

const (
	ErrCauseTimeout        FetchErrorCause = "timeout"
	ErrCauseNetworkFailure FetchErrorCause = "network issues"
	ErrCauseBodyTooLarge   FetchErrorCause = "body too large"
	ErrCauseBadRequest     FetchErrorCause = "request could not be built"
)

type FetchError struct {
	Message   string
	Retryable bool
	Cause     FetchErrorCause

	// Partial carries the truncated result when the size cap was hit,
	// so the worker can still archive the prefix.
	Partial *FetchResult
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetcher error: %s", e.Cause)
}

func (e *FetchError) Severity() failure.Severity {
	if e.Retryable {
		return failure.SeverityRecoverable
	}
	return failure.SeverityFatal
}

// IsRetryable returns whether this error is retryable
func (e *FetchError) IsRetryable() bool {
	return e.Retryable
}

// mapFetchErrorToMetadataCause maps fetcher-local error semantics
// to the canonical metadata.ErrorCause table.
//
// This mapping is observational only and MUST NOT be used
// to derive control-flow decisions.
func mapFetchErrorToMetadataCause(err *FetchError) metadata.ErrorCause {
	switch err.Cause {
	case ErrCauseTimeout, ErrCauseNetworkFailure:
		return metadata.CauseNetworkFailure
	case ErrCauseBodyTooLarge:
		return metadata.CauseContentInvalid
	default:
		return metadata.CauseUnknown
	}
}
