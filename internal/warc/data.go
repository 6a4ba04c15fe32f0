package warc

import (
	"time"

	"github.com/opencontainers/go-digest"
)

// RecordKind distinguishes a full capture from a dedup stub.
type RecordKind string

const (
	KindResponse RecordKind = "response"
	KindRevisit  RecordKind = "revisit"
)

// header names of the container record format
const (
	HeaderKind          = "Record-Kind"
	HeaderRecordID      = "Record-Id"
	HeaderFetchDate     = "Fetch-Date"
	HeaderTargetURI     = "Target-URI"
	HeaderPayloadDigest = "Payload-Digest"
	HeaderContentType   = "Content-Type"
	HeaderContentLength = "Content-Length"
)

// httpMessageType is the declared content type of every record payload.
const httpMessageType = "application/http; msgtype=response"

// fetchDateLayout is ISO-8601 UTC at second precision.
const fetchDateLayout = "2006-01-02T15:04:05Z"

// Record is one persisted capture: typed headers plus the raw payload
// bytes exactly as fetched. A revisit record asserts that the payload
// for its target equals a prior response record with the same digest
// and therefore carries no payload of its own.
type Record struct {
	kind          RecordKind
	recordID      string
	fetchDate     time.Time
	targetURI     string
	payloadDigest digest.Digest
	payload       []byte
}

func (r *Record) Kind() RecordKind {
	return r.kind
}

func (r *Record) RecordID() string {
	return r.recordID
}

func (r *Record) FetchDate() time.Time {
	return r.fetchDate
}

func (r *Record) TargetURI() string {
	return r.targetURI
}

func (r *Record) PayloadDigest() digest.Digest {
	return r.payloadDigest
}

func (r *Record) Payload() []byte {
	return r.payload
}
