package fileutil

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/rohmanhakim/archivist/pkg/failure"
)

// EnsureDir checks if a given directory plus the following path exists, then creates one if not
func EnsureDir(dir string, path ...string) failure.ClassifiedError {
	targetPath := []string{dir}
	targetPath = append(targetPath, path...)

	target := filepath.Join(targetPath...)
	if err := os.MkdirAll(target, 0755); err != nil {
		return &FileError{
			Message:   fmt.Sprintf("%v", err),
			Retryable: false,
			Cause:     ErrCausePathError,
		}
	}
	return nil
}
