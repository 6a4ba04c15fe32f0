package warc

import (
	"fmt"

	"github.com/rohmanhakim/archivist/pkg/failure"
)

type CodecErrorCause string

const (
	ErrCauseSeparatorMissing CodecErrorCause = "header separator missing"
	ErrCauseLengthMismatch   CodecErrorCause = "content length mismatch"
	ErrCauseHeaderMissing    CodecErrorCause = "required header missing"
	ErrCauseHeaderInvalid    CodecErrorCause = "header invalid"
)

// CodecError marks a record that cannot be decoded. Corrupt records are
// never retried: replay surfaces them as server errors and the record is
// quarantined by logging.
type CodecError struct {
	Message string
	Cause   CodecErrorCause
}

func (e *CodecError) Error() string {
	return fmt.Sprintf("record codec error: %s: %s", e.Cause, e.Message)
}

func (e *CodecError) Severity() failure.Severity {
	return failure.SeverityFatal
}
