package frontier

import (
	"fmt"

	"github.com/rohmanhakim/archivist/pkg/failure"
)

type FrontierErrorCause string

const (
	ErrCauseClaimFailure  FrontierErrorCause = "claim failure"
	ErrCauseUpdateFailure FrontierErrorCause = "update failure"
)

type FrontierError struct {
	Message string
	Cause   FrontierErrorCause
}

func (e *FrontierError) Error() string {
	return fmt.Sprintf("frontier error: %s: %s", e.Cause, e.Message)
}

func (e *FrontierError) Severity() failure.Severity {
	// frontier failures never lose URLs: the lease lapses and the row
	// becomes eligible again, so the worker can keep going
	return failure.SeverityRecoverable
}
