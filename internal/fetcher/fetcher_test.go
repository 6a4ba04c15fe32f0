package fetcher_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/opencontainers/go-digest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rohmanhakim/archivist/internal/fetcher"
	"github.com/rohmanhakim/archivist/internal/metadata"
)

func newFetcher(timeout time.Duration, maxBody int64) fetcher.StreamingFetcher {
	return fetcher.NewStreamingFetcher(metadata.NoopSink{}, &http.Client{}, timeout, maxBody)
}

func mustParse(t *testing.T, raw string) url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	require.NoError(t, err)
	return *u
}

func TestFetchComputesStreamingDigest(t *testing.T) {
	body := []byte("<html><body>archived content</body></html>")
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write(body)
	}))
	defer server.Close()

	f := newFetcher(5*time.Second, 1<<20)
	result, err := f.Fetch(context.Background(), fetcher.NewFetchParam(mustParse(t, server.URL), "archivist/1.0"))
	require.Nil(t, err)

	assert.Equal(t, body, result.Body())
	assert.Equal(t, digest.FromBytes(body), result.PayloadDigest())
	assert.Equal(t, http.StatusOK, result.HTTPStatus())
	assert.Equal(t, "text/html; charset=utf-8", result.MediaType())
	assert.False(t, result.Truncated())
}

func TestFetchDefaultsMediaType(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// suppress the sniffer's Content-Type
		w.Header()["Content-Type"] = nil
		w.Write([]byte("bytes"))
	}))
	defer server.Close()

	f := newFetcher(5*time.Second, 1<<20)
	result, err := f.Fetch(context.Background(), fetcher.NewFetchParam(mustParse(t, server.URL), "archivist/1.0"))
	require.Nil(t, err)
	assert.Equal(t, "text/html", result.MediaType())
}

func TestFetchReturnsResultForClientErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusGone)
	}))
	defer server.Close()

	// 4xx is not a fetch error: the worker archives it with its status
	f := newFetcher(5*time.Second, 1<<20)
	result, err := f.Fetch(context.Background(), fetcher.NewFetchParam(mustParse(t, server.URL), "archivist/1.0"))
	require.Nil(t, err)
	assert.Equal(t, http.StatusGone, result.HTTPStatus())
}

func TestFetchBodyTooLargeKeepsTruncatedPrefix(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(make([]byte, 4096))
	}))
	defer server.Close()

	f := newFetcher(5*time.Second, 1000)
	_, err := f.Fetch(context.Background(), fetcher.NewFetchParam(mustParse(t, server.URL), "archivist/1.0"))
	require.NotNil(t, err)

	var fetchErr *fetcher.FetchError
	require.True(t, errors.As(err, &fetchErr))
	assert.Equal(t, fetcher.ErrCauseBodyTooLarge, fetchErr.Cause)
	require.NotNil(t, fetchErr.Partial)
	assert.Len(t, fetchErr.Partial.Body(), 1000)
	assert.True(t, fetchErr.Partial.Truncated())
	// the digest covers exactly the stored prefix
	assert.Equal(t, digest.FromBytes(fetchErr.Partial.Body()), fetchErr.Partial.PayloadDigest())
}

func TestFetchTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(300 * time.Millisecond)
	}))
	defer server.Close()

	f := newFetcher(30*time.Millisecond, 1<<20)
	_, err := f.Fetch(context.Background(), fetcher.NewFetchParam(mustParse(t, server.URL), "archivist/1.0"))
	require.NotNil(t, err)

	var fetchErr *fetcher.FetchError
	require.True(t, errors.As(err, &fetchErr))
	assert.Equal(t, fetcher.ErrCauseTimeout, fetchErr.Cause)
	assert.True(t, fetchErr.IsRetryable())
}

func TestFetchNetworkFailure(t *testing.T) {
	f := newFetcher(time.Second, 1<<20)
	_, err := f.Fetch(context.Background(),
		fetcher.NewFetchParam(mustParse(t, "http://127.0.0.1:1"), "archivist/1.0"))
	require.NotNil(t, err)

	var fetchErr *fetcher.FetchError
	require.True(t, errors.As(err, &fetchErr))
	assert.Equal(t, fetcher.ErrCauseNetworkFailure, fetchErr.Cause)
	assert.True(t, fetchErr.IsRetryable())
}
