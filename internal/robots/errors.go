package robots

import (
	"fmt"

	"github.com/rohmanhakim/archivist/pkg/failure"
)

type failureError = failure.ClassifiedError

type RobotsErrorCause string

const (
	ErrCauseFetchFailure RobotsErrorCause = "robots fetch failure"
)

type RobotsError struct {
	Message   string
	Retryable bool
	Cause     RobotsErrorCause
}

func (e *RobotsError) Error() string {
	return fmt.Sprintf("robots error: %s", e.Cause)
}

func (e *RobotsError) Severity() failure.Severity {
	if e.Retryable {
		return failure.SeverityRecoverable
	}
	return failure.SeverityFatal
}

func (e *RobotsError) IsRetryable() bool {
	return e.Retryable
}
