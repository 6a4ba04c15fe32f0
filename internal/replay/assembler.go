package replay

import (
	"context"
	"errors"
	"net/url"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/rohmanhakim/archivist/internal/blob"
	"github.com/rohmanhakim/archivist/pkg/failure"
)

/*
Responsibilities
- Compose resolver + byte-range reader + rewriter into one response
- Preserve the snapshot's original status and media type; coerce the
  media type to text/html when the body was rewritten

Corrupt records are quarantined by logging: the snapshot row stays, the
request fails with ErrCauseRecordCorrupt, and an operator can chase the
container coordinates from the log line.
*/

type Assembler struct {
	resolver Resolver
	reader   blob.RangeReader
	log      *logrus.Entry
}

func NewAssembler(resolver Resolver, reader blob.RangeReader) Assembler {
	return Assembler{
		resolver: resolver,
		reader:   reader,
		log:      logrus.WithField("component", "replay"),
	}
}

// Replay serves the nearest-preceding capture of replayURL.
func (a *Assembler) Replay(ctx context.Context, replayURL ReplayURL) (Response, failure.ClassifiedError) {
	snap, found, err := a.resolver.Resolve(ctx, replayURL.originalURL, replayURL.instant)
	if err != nil {
		return Response{}, &ReplayError{Message: err.Error(), Cause: ErrCauseStoreFailure}
	}
	if !found {
		return Response{}, &ReplayError{Message: replayURL.originalURL, Cause: ErrCauseResolverMiss}
	}

	body, readErr := a.reader.Read(ctx, snap.ContainerID, snap.Offset, snap.Length)
	if readErr != nil {
		var blobErr *blob.BlobError
		if errors.As(readErr, &blobErr) &&
			(blobErr.Cause == blob.ErrCauseHeaderSeparatorMissing || blobErr.Cause == blob.ErrCauseTruncated) {
			// quarantine: the stored record cannot be decoded
			a.log.WithFields(logrus.Fields{
				"snapshot":  snap.ID,
				"container": snap.ContainerID,
				"offset":    snap.Offset,
				"length":    snap.Length,
			}).Error("corrupt archive record")
			return Response{}, &ReplayError{Message: readErr.Error(), Cause: ErrCauseRecordCorrupt}
		}
		return Response{}, &ReplayError{Message: readErr.Error(), Cause: ErrCauseStoreFailure}
	}

	mediaType := snap.MediaType
	if strings.Contains(mediaType, "html") {
		base, parseErr := url.Parse(snap.URL)
		if parseErr == nil {
			rewriter := NewRewriter(snap.Timestamp, *base)
			if rewritten, rewriteErr := rewriter.RewriteHTML(body); rewriteErr == nil {
				body = rewritten
				mediaType = "text/html"
			}
		}
	}

	return Response{
		Status:    snap.Status,
		MediaType: mediaType,
		Body:      body,
	}, nil
}
