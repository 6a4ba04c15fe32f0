package replay_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/opencontainers/go-digest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rohmanhakim/archivist/internal/blob"
	"github.com/rohmanhakim/archivist/internal/replay"
	"github.com/rohmanhakim/archivist/internal/snapshot"
	"github.com/rohmanhakim/archivist/internal/store"
	"github.com/rohmanhakim/archivist/internal/warc"
)

// archiveFixture persists one HTML capture end to end: container record
// on disk, payload row, snapshot row.
func archiveFixture(t *testing.T, db *store.DB, blobDir, pageURL, timestamp, body string) {
	t.Helper()
	ctx := context.Background()

	appender, err := blob.NewFSAppender(blobDir, "us-east-1")
	require.Nil(t, err)
	defer appender.Close()

	payloadBytes := []byte(body)
	d := digest.FromBytes(payloadBytes)
	record := warc.NewResponseRecord(pageURL, ts(timestamp), d, payloadBytes)
	coords, appendErr := appender.Append(warc.Encode(record))
	require.Nil(t, appendErr)

	repo := snapshot.NewRepo(db)
	_, insertErr := repo.Insert(ctx, snapshot.Snapshot{
		URL:           pageURL,
		Timestamp:     ts(timestamp),
		ContainerID:   coords.ContainerID(),
		Offset:        coords.Offset(),
		Length:        coords.Length(),
		ContentDigest: d.Encoded(),
		Status:        200,
		MediaType:     "text/html",
		PayloadDigest: d,
	})
	require.NoError(t, insertErr)
}

func TestReplayRewritesHTML(t *testing.T) {
	db := openTestStore(t)
	blobDir := t.TempDir()
	archiveFixture(t, db, blobDir,
		"https://a/index.html", "20240101120000",
		`<html><body><a href="/x">link</a></body></html>`)

	assembler := replay.NewAssembler(replay.NewResolver(db), blob.NewFSRangeReader(blobDir))

	replayURL, err := replay.ParseReplayURL("20240601000000", "https://a/index.html")
	require.NoError(t, err)

	response, replayErr := assembler.Replay(context.Background(), replayURL)
	require.Nil(t, replayErr)

	assert.Equal(t, 200, response.Status)
	assert.Equal(t, "text/html", response.MediaType)
	assert.Contains(t, string(response.Body), `<a href="/at/20240101120000/https://a/x">`)
}

func TestReplayMissIsResolverMiss(t *testing.T) {
	db := openTestStore(t)
	assembler := replay.NewAssembler(replay.NewResolver(db), blob.NewFSRangeReader(t.TempDir()))

	replayURL, err := replay.ParseReplayURL("20240101000000", "https://never-archived.example/")
	require.NoError(t, err)

	_, replayErr := assembler.Replay(context.Background(), replayURL)
	require.NotNil(t, replayErr)

	var re *replay.ReplayError
	require.True(t, errors.As(replayErr, &re))
	assert.Equal(t, replay.ErrCauseResolverMiss, re.Cause)
}

func TestReplayNonHTMLPassesThroughVerbatim(t *testing.T) {
	db := openTestStore(t)
	blobDir := t.TempDir()
	ctx := context.Background()

	appender, err := blob.NewFSAppender(blobDir, "us-east-1")
	require.Nil(t, err)
	body := []byte(`{"plain": "json", "href": "/x"}`)
	d := digest.FromBytes(body)
	coords, appendErr := appender.Append(warc.Encode(
		warc.NewResponseRecord("https://a/data.json", ts("20240101000000"), d, body)))
	require.Nil(t, appendErr)
	require.NoError(t, appender.Close())

	repo := snapshot.NewRepo(db)
	_, insertErr := repo.Insert(ctx, snapshot.Snapshot{
		URL: "https://a/data.json", Timestamp: ts("20240101000000"),
		ContainerID: coords.ContainerID(), Offset: coords.Offset(), Length: coords.Length(),
		ContentDigest: d.Encoded(), Status: 200, MediaType: "application/json",
		PayloadDigest: d,
	})
	require.NoError(t, insertErr)

	assembler := replay.NewAssembler(replay.NewResolver(db), blob.NewFSRangeReader(blobDir))
	replayURL, err := replay.ParseReplayURL("20240601000000", "https://a/data.json")
	require.NoError(t, err)

	response, replayErr := assembler.Replay(ctx, replayURL)
	require.Nil(t, replayErr)
	assert.Equal(t, "application/json", response.MediaType)
	assert.Equal(t, body, response.Body)
}

func TestHandlerServesReplayAndMisses(t *testing.T) {
	db := openTestStore(t)
	blobDir := t.TempDir()
	archiveFixture(t, db, blobDir,
		"https://a/index.html", "20240101120000",
		`<html><body><a href="/x">link</a></body></html>`)

	assembler := replay.NewAssembler(replay.NewResolver(db), blob.NewFSRangeReader(blobDir))
	handler := replay.NewHandler(assembler, snapshot.NewRepo(db))

	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/at/20240601000000/https://a/index.html", nil))
	assert.Equal(t, http.StatusOK, recorder.Code)
	assert.Contains(t, recorder.Body.String(), "/at/20240101120000/https://a/x")

	recorder = httptest.NewRecorder()
	handler.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/at/20231231000000/https://a/index.html", nil))
	assert.Equal(t, http.StatusNotFound, recorder.Code)

	recorder = httptest.NewRecorder()
	handler.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/at/banana/https://a/index.html", nil))
	assert.Equal(t, http.StatusBadRequest, recorder.Code)
}

func TestHandlerListsSnapshots(t *testing.T) {
	db := openTestStore(t)
	blobDir := t.TempDir()
	archiveFixture(t, db, blobDir,
		"https://a/index.html", "20240101120000",
		`<html><body>v1</body></html>`)

	assembler := replay.NewAssembler(replay.NewResolver(db), blob.NewFSRangeReader(blobDir))
	handler := replay.NewHandler(assembler, snapshot.NewRepo(db))

	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/snapshots?url=https%3A%2F%2Fa%2Findex.html", nil))
	assert.Equal(t, http.StatusOK, recorder.Code)
	assert.Contains(t, recorder.Body.String(), "/at/20240101120000/https://a/index.html")
}
