package payload

import (
	"context"
	"database/sql"
	"errors"

	"github.com/opencontainers/go-digest"
	"github.com/rohmanhakim/archivist/internal/blob"
	"github.com/rohmanhakim/archivist/internal/store"
)

/*
Responsibilities
- Map payload digests to the container coordinates of the record that
  first stored that body
- Enforce global deduplication with insert-or-ignore semantics

Correctness rests on the digest being computed over the exact persisted
payload bytes. Rows are never deleted while any snapshot references
them; the core never deletes them at all.
*/

type Index struct {
	db *store.DB
}

func NewIndex(db *store.DB) Index {
	return Index{db: db}
}

// Contains reports whether a payload with this digest is already stored.
func (i *Index) Contains(ctx context.Context, d digest.Digest) (bool, error) {
	row := i.db.SQL.QueryRowContext(ctx,
		`SELECT 1 FROM payloads WHERE digest = ?`, d.String())
	var one int
	if err := row.Scan(&one); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// Insert records the coordinates for a digest. Concurrent inserts with
// the same digest all succeed; only the first row persists.
func (i *Index) Insert(ctx context.Context, d digest.Digest, coords blob.Coordinates) error {
	_, err := i.db.SQL.ExecContext(ctx,
		`INSERT INTO payloads (digest, container_id, "offset", size)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT (digest) DO NOTHING`,
		d.String(), coords.ContainerID(), coords.Offset(), coords.Length())
	return err
}

// Lookup returns the stored coordinates for a digest.
func (i *Index) Lookup(ctx context.Context, d digest.Digest) (blob.Coordinates, bool, error) {
	row := i.db.SQL.QueryRowContext(ctx,
		`SELECT container_id, "offset", size FROM payloads WHERE digest = ?`, d.String())
	var containerID string
	var offset, size int64
	if err := row.Scan(&containerID, &offset, &size); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return blob.Coordinates{}, false, nil
		}
		return blob.Coordinates{}, false, err
	}
	return blob.NewCoordinates(containerID, offset, size), true, nil
}
