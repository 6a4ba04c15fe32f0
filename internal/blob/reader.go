package blob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/rohmanhakim/archivist/internal/warc"
	"github.com/rohmanhakim/archivist/pkg/failure"
)

/*
Responsibilities
- Fetch the exact (container, offset, length) slice from the blob store
- Decode the record and return the payload verbatim

The reader is stateless and safe for concurrent use. It performs no
caching; replay traffic goes straight to the store on every request.
*/

type RangeReader interface {
	Read(ctx context.Context, containerID string, offset, length int64) ([]byte, failure.ClassifiedError)
}

// HTTPRangeReader reads container slices with ranged GETs against an
// HTTP blob store (MinIO, S3, or anything speaking Range requests).
// Transient transport failures are retried inside the client; whatever
// survives the retries is surfaced as Unreachable.
type HTTPRangeReader struct {
	client  *retryablehttp.Client
	baseURL string
}

func NewHTTPRangeReader(baseURL string) *HTTPRangeReader {
	client := retryablehttp.NewClient()
	client.Logger = nil
	client.RetryMax = 3
	return &HTTPRangeReader{
		client:  client,
		baseURL: baseURL,
	}
}

func (r *HTTPRangeReader) Read(ctx context.Context, containerID string, offset, length int64) ([]byte, failure.ClassifiedError) {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, r.baseURL+"/"+containerID, nil)
	if err != nil {
		return nil, &BlobError{
			Message:   err.Error(),
			Retryable: false,
			Cause:     ErrCauseUnreachable,
		}
	}
	req.Header.Set("Range", fmt.Sprintf("bytes=%d-%d", offset, offset+length-1))

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, &BlobError{
			Message:   err.Error(),
			Retryable: true,
			Cause:     ErrCauseUnreachable,
		}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusPartialContent:
		// 206 for honored ranges; 200 when the store ignores Range
	case resp.StatusCode == http.StatusNotFound:
		return nil, &BlobError{
			Message:   containerID,
			Retryable: false,
			Cause:     ErrCauseNotFound,
		}
	default:
		return nil, &BlobError{
			Message:   fmt.Sprintf("status %d reading %s", resp.StatusCode, containerID),
			Retryable: false,
			Cause:     ErrCauseUnreachable,
		}
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, length))
	if err != nil {
		return nil, &BlobError{
			Message:   err.Error(),
			Retryable: true,
			Cause:     ErrCauseUnreachable,
		}
	}
	if int64(len(raw)) < length {
		return nil, &BlobError{
			Message:   fmt.Sprintf("wanted %d bytes, got %d", length, len(raw)),
			Retryable: false,
			Cause:     ErrCauseTruncated,
		}
	}

	return decodePayload(raw)
}

// FSRangeReader reads container slices from the local blob directory.
// Used when the replay process shares a filesystem with the workers.
type FSRangeReader struct {
	baseDir string
}

func NewFSRangeReader(baseDir string) *FSRangeReader {
	return &FSRangeReader{baseDir: baseDir}
}

func (r *FSRangeReader) Read(ctx context.Context, containerID string, offset, length int64) ([]byte, failure.ClassifiedError) {
	file, err := os.Open(ContainerPath(r.baseDir, containerID))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, &BlobError{
				Message:   containerID,
				Retryable: false,
				Cause:     ErrCauseNotFound,
			}
		}
		return nil, &BlobError{
			Message:   err.Error(),
			Retryable: true,
			Cause:     ErrCauseUnreachable,
		}
	}
	defer file.Close()

	raw := make([]byte, length)
	n, err := file.ReadAt(raw, offset)
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, &BlobError{
			Message:   err.Error(),
			Retryable: true,
			Cause:     ErrCauseUnreachable,
		}
	}
	if int64(n) < length {
		return nil, &BlobError{
			Message:   fmt.Sprintf("wanted %d bytes, got %d", length, n),
			Retryable: false,
			Cause:     ErrCauseTruncated,
		}
	}

	return decodePayload(raw)
}

// decodePayload strips the record headers and returns the payload slice.
func decodePayload(raw []byte) ([]byte, failure.ClassifiedError) {
	record, err := warc.Decode(raw)
	if err != nil {
		var codecErr *warc.CodecError
		if errors.As(err, &codecErr) && codecErr.Cause == warc.ErrCauseSeparatorMissing {
			return nil, &BlobError{
				Message:   codecErr.Message,
				Retryable: false,
				Cause:     ErrCauseHeaderSeparatorMissing,
			}
		}
		return nil, err
	}
	return record.Payload(), nil
}
