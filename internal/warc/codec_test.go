package warc_test

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/opencontainers/go-digest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rohmanhakim/archivist/internal/warc"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	payload := []byte("HTTP/1.1 200 OK\r\n\r\n<html>hello</html>")
	fetchDate := time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)
	payloadDigest := digest.FromBytes(payload)

	record := warc.NewResponseRecord("https://example.com/page", fetchDate, payloadDigest, payload)
	encoded := warc.Encode(record)

	decoded, err := warc.Decode(encoded)
	require.Nil(t, err)

	assert.Equal(t, warc.KindResponse, decoded.Kind())
	assert.Equal(t, "https://example.com/page", decoded.TargetURI())
	assert.Equal(t, fetchDate, decoded.FetchDate())
	assert.Equal(t, payloadDigest, decoded.PayloadDigest())
	assert.Equal(t, payload, decoded.Payload())
	assert.True(t, strings.HasPrefix(decoded.RecordID(), "urn:uuid:"))
}

func TestEncodeHeaderLayout(t *testing.T) {
	payload := []byte("body")
	record := warc.NewResponseRecord(
		"https://example.com/",
		time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		digest.FromBytes(payload),
		payload,
	)
	encoded := warc.Encode(record)

	headerEnd := bytes.Index(encoded, []byte("\r\n\r\n"))
	require.Greater(t, headerEnd, 0, "record must contain a blank-line separator")

	headerBlock := string(encoded[:headerEnd])
	assert.Contains(t, headerBlock, "Record-Kind: response\r\n")
	assert.Contains(t, headerBlock, "Fetch-Date: 2024-03-01T00:00:00Z\r\n")
	assert.Contains(t, headerBlock, "Target-URI: https://example.com/\r\n")
	assert.Contains(t, headerBlock, "Payload-Digest: "+digest.FromBytes(payload).String()+"\r\n")
	assert.Contains(t, headerBlock, "Content-Type: application/http; msgtype=response\r\n")
	assert.Contains(t, headerBlock, "Content-Length: 4")

	assert.Equal(t, payload, encoded[headerEnd+4:])
}

func TestRevisitCarriesNoPayload(t *testing.T) {
	priorDigest := digest.FromBytes([]byte("the original body"))
	record := warc.NewRevisitRecord("https://example.com/", time.Now().UTC(), priorDigest)
	encoded := warc.Encode(record)

	decoded, err := warc.Decode(encoded)
	require.Nil(t, err)

	assert.Equal(t, warc.KindRevisit, decoded.Kind())
	assert.Empty(t, decoded.Payload())
	assert.Equal(t, priorDigest, decoded.PayloadDigest())
}

func TestDecodeHeadersCaseInsensitive(t *testing.T) {
	raw := "record-kind: response\r\n" +
		"RECORD-ID: urn:uuid:0b4ee4a4-77a1-4a55-9f65-9ddb9f76a0e6\r\n" +
		"fetch-date: 2024-01-01T00:00:00Z\r\n" +
		"target-uri: https://a/\r\n" +
		"payload-digest: " + digest.FromBytes([]byte("xy")).String() + "\r\n" +
		"content-type: application/http; msgtype=response\r\n" +
		"content-length: 2\r\n" +
		"\r\nxy"

	decoded, err := warc.Decode([]byte(raw))
	require.Nil(t, err)
	assert.Equal(t, []byte("xy"), decoded.Payload())
}

func TestDecodeMissingSeparator(t *testing.T) {
	_, err := warc.Decode([]byte("Record-Kind: response\r\nContent-Length: 4\r\nbody"))
	require.NotNil(t, err)

	var codecErr *warc.CodecError
	require.True(t, errors.As(err, &codecErr))
	assert.Equal(t, warc.ErrCauseSeparatorMissing, codecErr.Cause)
}

func TestDecodeLengthMismatch(t *testing.T) {
	payload := []byte("short")
	record := warc.NewResponseRecord("https://a/", time.Now().UTC(), digest.FromBytes(payload), payload)
	encoded := warc.Encode(record)

	// chop the tail so fewer bytes remain than Content-Length declares
	truncated := encoded[:len(encoded)-3]

	_, err := warc.Decode(truncated)
	require.NotNil(t, err)

	var codecErr *warc.CodecError
	require.True(t, errors.As(err, &codecErr))
	assert.Equal(t, warc.ErrCauseLengthMismatch, codecErr.Cause)
}

func TestDecodeMissingRequiredHeader(t *testing.T) {
	raw := "Record-Kind: response\r\nContent-Length: 0\r\n\r\n"
	_, err := warc.Decode([]byte(raw))
	require.NotNil(t, err)

	var codecErr *warc.CodecError
	require.True(t, errors.As(err, &codecErr))
	assert.Equal(t, warc.ErrCauseHeaderMissing, codecErr.Cause)
}
