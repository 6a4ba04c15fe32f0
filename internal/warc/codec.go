package warc

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/opencontainers/go-digest"
	"github.com/rohmanhakim/archivist/pkg/failure"
)

/*
Responsibilities
- Encode one capture into a container record: header block, blank line, payload
- Decode a record back into typed headers plus the verbatim payload slice
- Reject records whose declared Content-Length disagrees with available bytes

Record layout

	<Name>: <value>\r\n      (one per header)
	\r\n
	<payload bytes, length == Content-Length>

Header names are case-insensitive and order-insensitive on decode.
The codec never interprets the payload; whatever was fetched is what
comes back.
*/

var headerSeparator = []byte("\r\n\r\n")

// NewResponseRecord builds a full capture carrying the payload bytes.
func NewResponseRecord(
	targetURI string,
	fetchDate time.Time,
	payloadDigest digest.Digest,
	payload []byte,
) Record {
	return Record{
		kind:          KindResponse,
		recordID:      "urn:uuid:" + uuid.NewString(),
		fetchDate:     fetchDate.UTC(),
		targetURI:     targetURI,
		payloadDigest: payloadDigest,
		payload:       payload,
	}
}

// NewRevisitRecord builds a dedup stub referencing a prior response
// record by digest. It carries a zero-length payload.
func NewRevisitRecord(
	targetURI string,
	fetchDate time.Time,
	payloadDigest digest.Digest,
) Record {
	return Record{
		kind:          KindRevisit,
		recordID:      "urn:uuid:" + uuid.NewString(),
		fetchDate:     fetchDate.UTC(),
		targetURI:     targetURI,
		payloadDigest: payloadDigest,
	}
}

// Encode serializes the record for container append.
func Encode(record Record) []byte {
	var buf bytes.Buffer

	writeHeader := func(name, value string) {
		buf.WriteString(name)
		buf.WriteString(": ")
		buf.WriteString(value)
		buf.WriteString("\r\n")
	}

	writeHeader(HeaderKind, string(record.kind))
	writeHeader(HeaderRecordID, record.recordID)
	writeHeader(HeaderFetchDate, record.fetchDate.UTC().Format(fetchDateLayout))
	writeHeader(HeaderTargetURI, record.targetURI)
	writeHeader(HeaderPayloadDigest, record.payloadDigest.String())
	writeHeader(HeaderContentType, httpMessageType)
	writeHeader(HeaderContentLength, strconv.Itoa(len(record.payload)))

	buf.WriteString("\r\n")
	buf.Write(record.payload)

	return buf.Bytes()
}

// Decode parses one record from raw. Everything after the first blank
// line is the raw payload, returned verbatim (bounded by Content-Length).
func Decode(raw []byte) (Record, failure.ClassifiedError) {
	sep := bytes.Index(raw, headerSeparator)
	if sep < 0 {
		return Record{}, &CodecError{
			Message: "no blank line between headers and payload",
			Cause:   ErrCauseSeparatorMissing,
		}
	}

	headers, err := parseHeaders(raw[:sep])
	if err != nil {
		return Record{}, err
	}

	contentLength, err := requiredInt(headers, HeaderContentLength)
	if err != nil {
		return Record{}, err
	}

	body := raw[sep+len(headerSeparator):]
	if contentLength != len(body) {
		return Record{}, &CodecError{
			Message: fmt.Sprintf("declared %d bytes, %d available", contentLength, len(body)),
			Cause:   ErrCauseLengthMismatch,
		}
	}

	record, err := recordFromHeaders(headers)
	if err != nil {
		return Record{}, err
	}
	record.payload = body[:contentLength]

	return record, nil
}

// parseHeaders splits the header block into a lowercase-keyed map.
func parseHeaders(block []byte) (map[string]string, failure.ClassifiedError) {
	headers := make(map[string]string)
	for _, line := range strings.Split(string(block), "\r\n") {
		if line == "" {
			continue
		}
		name, value, found := strings.Cut(line, ":")
		if !found {
			return nil, &CodecError{
				Message: fmt.Sprintf("malformed header line %q", line),
				Cause:   ErrCauseHeaderInvalid,
			}
		}
		headers[strings.ToLower(strings.TrimSpace(name))] = strings.TrimSpace(value)
	}
	return headers, nil
}

func recordFromHeaders(headers map[string]string) (Record, failure.ClassifiedError) {
	kind, err := requiredValue(headers, HeaderKind)
	if err != nil {
		return Record{}, err
	}
	if kind != string(KindResponse) && kind != string(KindRevisit) {
		return Record{}, &CodecError{
			Message: fmt.Sprintf("unknown record kind %q", kind),
			Cause:   ErrCauseHeaderInvalid,
		}
	}

	recordID, err := requiredValue(headers, HeaderRecordID)
	if err != nil {
		return Record{}, err
	}

	rawDate, err := requiredValue(headers, HeaderFetchDate)
	if err != nil {
		return Record{}, err
	}
	fetchDate, parseErr := time.Parse(fetchDateLayout, rawDate)
	if parseErr != nil {
		return Record{}, &CodecError{
			Message: fmt.Sprintf("fetch date %q: %v", rawDate, parseErr),
			Cause:   ErrCauseHeaderInvalid,
		}
	}

	targetURI, err := requiredValue(headers, HeaderTargetURI)
	if err != nil {
		return Record{}, err
	}

	rawDigest, err := requiredValue(headers, HeaderPayloadDigest)
	if err != nil {
		return Record{}, err
	}
	payloadDigest, digestErr := digest.Parse(rawDigest)
	if digestErr != nil {
		return Record{}, &CodecError{
			Message: fmt.Sprintf("payload digest %q: %v", rawDigest, digestErr),
			Cause:   ErrCauseHeaderInvalid,
		}
	}

	return Record{
		kind:          RecordKind(kind),
		recordID:      recordID,
		fetchDate:     fetchDate,
		targetURI:     targetURI,
		payloadDigest: payloadDigest,
	}, nil
}

func requiredValue(headers map[string]string, name string) (string, failure.ClassifiedError) {
	value, ok := headers[strings.ToLower(name)]
	if !ok {
		return "", &CodecError{
			Message: name,
			Cause:   ErrCauseHeaderMissing,
		}
	}
	return value, nil
}

func requiredInt(headers map[string]string, name string) (int, failure.ClassifiedError) {
	value, err := requiredValue(headers, name)
	if err != nil {
		return 0, err
	}
	n, parseErr := strconv.Atoi(value)
	if parseErr != nil || n < 0 {
		return 0, &CodecError{
			Message: fmt.Sprintf("%s: %q", name, value),
			Cause:   ErrCauseHeaderInvalid,
		}
	}
	return n, nil
}
