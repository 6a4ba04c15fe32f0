package fetcher

import (
	"net/url"
	"time"

	"github.com/opencontainers/go-digest"
)

// HTTP boundary

type FetchParam struct {
	fetchUrl  url.URL
	userAgent string
}

func NewFetchParam(fetchUrl url.URL, userAgent string) FetchParam {
	return FetchParam{
		fetchUrl:  fetchUrl,
		userAgent: userAgent,
	}
}

func (f *FetchParam) FetchURL() url.URL {
	return f.fetchUrl
}

// FetchResult is one fetched version of one URL: the body bytes, the
// streaming digest computed over exactly those bytes, and the response
// metadata the archive needs. The body buffer is shared downstream
// (dedup probe, codec, link extraction) and must not be mutated.
type FetchResult struct {
	url           url.URL
	instant       time.Time
	body          []byte
	mediaType     string
	httpStatus    int
	payloadDigest digest.Digest
	truncated     bool
}

func (f *FetchResult) URL() url.URL {
	return f.url
}

func (f *FetchResult) Instant() time.Time {
	return f.instant
}

func (f *FetchResult) Body() []byte {
	return f.body
}

func (f *FetchResult) MediaType() string {
	return f.mediaType
}

func (f *FetchResult) HTTPStatus() int {
	return f.httpStatus
}

func (f *FetchResult) PayloadDigest() digest.Digest {
	return f.payloadDigest
}

// Truncated reports whether the body hit the size cap. Truncated
// results are still archived; the digest covers the stored prefix.
func (f *FetchResult) Truncated() bool {
	return f.truncated
}

// NewFetchResultForTest creates a FetchResult for testing purposes.
// This allows test packages to construct FetchResult values without
// accessing unexported fields directly.
func NewFetchResultForTest(
	url url.URL,
	body []byte,
	httpStatus int,
	mediaType string,
	payloadDigest digest.Digest,
	instant time.Time,
) FetchResult {
	return FetchResult{
		url:           url,
		instant:       instant,
		body:          body,
		mediaType:     mediaType,
		httpStatus:    httpStatus,
		payloadDigest: payloadDigest,
	}
}
