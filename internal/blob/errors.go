package blob

import (
	"fmt"

	"github.com/rohmanhakim/archivist/pkg/failure"
)

type BlobErrorCause string

const (
	ErrCauseNotFound               BlobErrorCause = "container not found"
	ErrCauseUnreachable            BlobErrorCause = "blob store unreachable"
	ErrCauseTruncated              BlobErrorCause = "range truncated"
	ErrCauseHeaderSeparatorMissing BlobErrorCause = "header separator missing"
	ErrCauseAppendFailure          BlobErrorCause = "append failure"
)

type BlobError struct {
	Message   string
	Retryable bool
	Cause     BlobErrorCause
}

func (e *BlobError) Error() string {
	return fmt.Sprintf("blob error: %s", e.Cause)
}

func (e *BlobError) Severity() failure.Severity {
	if e.Retryable {
		return failure.SeverityRecoverable
	}
	return failure.SeverityFatal
}

func (e *BlobError) IsRetryable() bool {
	return e.Retryable
}
