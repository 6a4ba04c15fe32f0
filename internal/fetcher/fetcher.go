package fetcher

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/opencontainers/go-digest"
	"github.com/rohmanhakim/archivist/internal/metadata"
	"github.com/rohmanhakim/archivist/pkg/failure"
)

/*
Responsibilities

- Perform HTTP requests with a per-request deadline
- Stream the body, hashing incrementally, bounded by a size cap
- Report status and media type; classification is the worker's job

Fetch Semantics

- Every HTTP status yields a result; only transport-level failures,
  deadline expiry, and the size cap are errors
- The media type defaults to text/html when the server sends none
- No retries here: retry policy is retry-by-reclaim in the worker loop

The fetcher never parses content; it only returns bytes and metadata.
*/

type Fetcher interface {
	Fetch(ctx context.Context, fetchParam FetchParam) (FetchResult, failure.ClassifiedError)
}

const defaultMediaType = "text/html"

type StreamingFetcher struct {
	metadataSink metadata.MetadataSink
	httpClient   *http.Client
	timeout      time.Duration
	maxBodySize  int64
}

// NewStreamingFetcher wires the process-wide HTTP client. The client is
// shared by reference for connection pooling; construct once at worker
// start.
func NewStreamingFetcher(
	metadataSink metadata.MetadataSink,
	httpClient *http.Client,
	timeout time.Duration,
	maxBodySize int64,
) StreamingFetcher {
	return StreamingFetcher{
		metadataSink: metadataSink,
		httpClient:   httpClient,
		timeout:      timeout,
		maxBodySize:  maxBodySize,
	}
}

func (f *StreamingFetcher) Fetch(ctx context.Context, fetchParam FetchParam) (FetchResult, failure.ClassifiedError) {
	callerMethod := "StreamingFetcher.Fetch"

	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	result, err := f.performFetch(ctx, fetchParam)
	if err != nil {
		var fetchError *FetchError
		if errors.As(err, &fetchError) {
			f.metadataSink.RecordError(
				ctx,
				"fetcher",
				callerMethod,
				mapFetchErrorToMetadataCause(fetchError),
				fmt.Sprintf("%s: %s", fetchParam.fetchUrl.String(), fetchError.Message),
			)
		}
		return FetchResult{}, err
	}

	return result, nil
}

func (f *StreamingFetcher) performFetch(ctx context.Context, fetchParam FetchParam) (FetchResult, failure.ClassifiedError) {
	fetchURL := fetchParam.fetchUrl
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fetchURL.String(), nil)
	if err != nil {
		return FetchResult{}, &FetchError{
			Message:   fmt.Sprintf("failed to create request: %v", err),
			Retryable: false,
			Cause:     ErrCauseBadRequest,
		}
	}
	req.Header.Set("User-Agent", fetchParam.userAgent)

	instant := time.Now().UTC()
	resp, err := f.httpClient.Do(req)
	if err != nil {
		if isDeadlineError(err) {
			return FetchResult{}, &FetchError{
				Message:   fmt.Sprintf("request deadline exceeded: %v", err),
				Retryable: true,
				Cause:     ErrCauseTimeout,
			}
		}
		return FetchResult{}, &FetchError{
			Message:   fmt.Sprintf("request failed: %v", err),
			Retryable: true,
			Cause:     ErrCauseNetworkFailure,
		}
	}
	defer resp.Body.Close()

	mediaType := resp.Header.Get("Content-Type")
	if mediaType == "" {
		mediaType = defaultMediaType
	}

	// Stream the body, hashing each chunk as it arrives. Hash and
	// buffer always see exactly the same bytes; the digest is the
	// dedup identity of whatever gets persisted.
	hasher := sha256.New()
	body := make([]byte, 0, 64*1024)
	buf := make([]byte, 32*1024)
	tooLarge := false

	for {
		n, readErr := resp.Body.Read(buf)
		if n > 0 {
			remaining := f.maxBodySize - int64(len(body))
			if int64(n) > remaining {
				hasher.Write(buf[:remaining])
				body = append(body, buf[:remaining]...)
				tooLarge = true
				break
			}
			hasher.Write(buf[:n])
			body = append(body, buf[:n]...)
		}
		if readErr != nil {
			if errors.Is(readErr, io.EOF) {
				break
			}
			if isDeadlineError(readErr) {
				return FetchResult{}, &FetchError{
					Message:   fmt.Sprintf("body read deadline exceeded: %v", readErr),
					Retryable: true,
					Cause:     ErrCauseTimeout,
				}
			}
			return FetchResult{}, &FetchError{
				Message:   fmt.Sprintf("failed to read response body: %v", readErr),
				Retryable: true,
				Cause:     ErrCauseNetworkFailure,
			}
		}
	}

	result := FetchResult{
		url:           fetchURL,
		instant:       instant,
		body:          body,
		mediaType:     mediaType,
		httpStatus:    resp.StatusCode,
		payloadDigest: digest.NewDigest(digest.SHA256, hasher),
		truncated:     tooLarge,
	}

	if tooLarge {
		return FetchResult{}, &FetchError{
			Message:   fmt.Sprintf("body exceeded %d bytes", f.maxBodySize),
			Retryable: false,
			Cause:     ErrCauseBodyTooLarge,
			Partial:   &result,
		}
	}

	return result, nil
}

func isDeadlineError(err error) bool {
	return errors.Is(err, context.DeadlineExceeded) || errors.Is(err, os.ErrDeadlineExceeded)
}
