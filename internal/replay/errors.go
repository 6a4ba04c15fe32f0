package replay

import (
	"fmt"

	"github.com/rohmanhakim/archivist/pkg/failure"
)

type ReplayErrorCause string

const (
	ErrCauseResolverMiss  ReplayErrorCause = "no snapshot at or before instant"
	ErrCauseBadRequest    ReplayErrorCause = "malformed replay request"
	ErrCauseRecordCorrupt ReplayErrorCause = "archived record corrupt"
	ErrCauseStoreFailure  ReplayErrorCause = "store failure"
)

type ReplayError struct {
	Message string
	Cause   ReplayErrorCause
}

func (e *ReplayError) Error() string {
	return fmt.Sprintf("replay error: %s: %s", e.Cause, e.Message)
}

func (e *ReplayError) Severity() failure.Severity {
	return failure.SeverityRecoverable
}
