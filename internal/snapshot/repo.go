package snapshot

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"github.com/opencontainers/go-digest"
	"github.com/rohmanhakim/archivist/internal/store"
)

/*
Responsibilities
- Persist snapshot rows pointing at container coordinates
- Serve per-URL history for the predictive scheduler
- Serve per-URL listings for the timeline surface

The (url, timestamp) pair is unique; the microsecond instant makes
collisions a non-issue in practice.
*/

type Repo struct {
	db *store.DB
}

func NewRepo(db *store.DB) Repo {
	return Repo{db: db}
}

// Insert stores one snapshot row and returns its id: s.ID when set,
// otherwise a newly generated one.
func (r *Repo) Insert(ctx context.Context, s Snapshot) (string, error) {
	id := s.ID
	if id == "" {
		id = uuid.NewString()
	}

	var payloadDigest any
	if s.PayloadDigest != "" {
		payloadDigest = s.PayloadDigest.String()
	}

	_, err := r.db.SQL.ExecContext(ctx,
		`INSERT INTO snapshots
		 (id, url, timestamp, container_id, "offset", length, content_digest, status, media_type, payload_digest)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, s.URL, s.Timestamp.UTC().UnixMicro(), s.ContainerID, s.Offset, s.Length,
		s.ContentDigest, s.Status, s.MediaType, payloadDigest)
	if err != nil {
		return "", err
	}
	return id, nil
}

// History returns the (timestamp, content_digest) pairs for a URL in
// ascending time order.
func (r *Repo) History(ctx context.Context, url string) ([]HistoryEntry, error) {
	rows, err := r.db.SQL.QueryContext(ctx,
		`SELECT timestamp, content_digest FROM snapshots WHERE url = ? ORDER BY timestamp ASC`,
		url)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var history []HistoryEntry
	for rows.Next() {
		var micros int64
		var entry HistoryEntry
		if err := rows.Scan(&micros, &entry.ContentDigest); err != nil {
			return nil, err
		}
		entry.Timestamp = microsToTime(micros)
		history = append(history, entry)
	}
	return history, rows.Err()
}

// ListByURL returns the snapshot descriptors for a URL, newest first.
func (r *Repo) ListByURL(ctx context.Context, url string, limit int) ([]Snapshot, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.db.SQL.QueryContext(ctx,
		`SELECT id, url, timestamp, container_id, "offset", length, content_digest, status, media_type, payload_digest
		 FROM snapshots WHERE url = ? ORDER BY timestamp DESC LIMIT ?`,
		url, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var snapshots []Snapshot
	for rows.Next() {
		s, err := scanSnapshot(rows)
		if err != nil {
			return nil, err
		}
		snapshots = append(snapshots, s)
	}
	return snapshots, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSnapshot(row rowScanner) (Snapshot, error) {
	var s Snapshot
	var micros int64
	var payloadDigest sql.NullString
	err := row.Scan(&s.ID, &s.URL, &micros, &s.ContainerID, &s.Offset, &s.Length,
		&s.ContentDigest, &s.Status, &s.MediaType, &payloadDigest)
	if err != nil {
		return Snapshot{}, err
	}
	s.Timestamp = microsToTime(micros)
	if payloadDigest.Valid {
		s.PayloadDigest = digest.Digest(payloadDigest.String)
	}
	return s, nil
}
