package replay

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/opencontainers/go-digest"
	"github.com/rohmanhakim/archivist/internal/snapshot"
	"github.com/rohmanhakim/archivist/internal/store"
)

/*
Responsibilities
- Locate the nearest-preceding snapshot for (url, instant)
- Join the payload index so the returned coordinates always point at
  bytes: for revisit snapshots the coordinates come from the payload
  row, for response snapshots from the snapshot row itself

No approximate URL matching: the caller normalizes, the resolver looks
up exactly what it is given.
*/

type Resolver struct {
	db *store.DB
}

func NewResolver(db *store.DB) Resolver {
	return Resolver{db: db}
}

// Resolve returns the snapshot with the greatest timestamp ≤ instant
// for url, with coordinates dereferenced through the payload index.
// The bool reports whether anything was found.
func (r *Resolver) Resolve(ctx context.Context, url string, instant time.Time) (snapshot.Snapshot, bool, error) {
	row := r.db.SQL.QueryRowContext(ctx,
		`SELECT s.id, s.url, s.timestamp,
		        COALESCE(p.container_id, s.container_id),
		        COALESCE(p."offset", s."offset"),
		        COALESCE(p.size, s.length),
		        s.content_digest, s.status, s.media_type, s.payload_digest
		 FROM snapshots s
		 LEFT JOIN payloads p ON s.payload_digest = p.digest
		 WHERE s.url = ? AND s.timestamp <= ?
		 ORDER BY s.timestamp DESC
		 LIMIT 1`,
		url, instant.UTC().UnixMicro())

	var s snapshot.Snapshot
	var micros int64
	var payloadDigest sql.NullString
	err := row.Scan(&s.ID, &s.URL, &micros, &s.ContainerID, &s.Offset, &s.Length,
		&s.ContentDigest, &s.Status, &s.MediaType, &payloadDigest)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return snapshot.Snapshot{}, false, nil
		}
		return snapshot.Snapshot{}, false, err
	}

	s.Timestamp = time.UnixMicro(micros).UTC()
	if payloadDigest.Valid {
		s.PayloadDigest = digest.Digest(payloadDigest.String)
	}
	return s, true, nil
}
