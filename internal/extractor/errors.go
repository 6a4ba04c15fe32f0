package extractor

import (
	"fmt"

	"github.com/rohmanhakim/archivist/pkg/failure"
)

type ExtractionErrorCause string

const (
	ErrCauseParseFailure ExtractionErrorCause = "html parse failure"
)

type ExtractionError struct {
	Message string
	Cause   ExtractionErrorCause
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extractor error: %s", e.Cause)
}

func (e *ExtractionError) Severity() failure.Severity {
	// a page that cannot be parsed still archived fine; only link
	// discovery is lost
	return failure.SeverityRecoverable
}
