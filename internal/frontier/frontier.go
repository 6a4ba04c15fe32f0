package frontier

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/rohmanhakim/archivist/internal/store"
	"github.com/rohmanhakim/archivist/pkg/failure"
	"github.com/rohmanhakim/archivist/pkg/urlutil"
)

/*
Frontier Responsibilities
- Durable ordering: priority DESC, then discovery time
- Deduplicate URLs (the url column is the primary key)
- Track crawl depth
- Hand out short exclusive leases so concurrent workers make progress
- Knows nothing about:
	- fetching
	- admission policy
	- storage

It is a data structure + lease protocol, not a pipeline executor.

Lease protocol: a claim sets leased_until = now + lease in the same
statement that selects eligible rows, so no two overlapping leases can
exist for one row. Leases are advisory; recovery from a dead worker is
simply the lease lapsing.
*/

type Frontier struct {
	db    *store.DB
	lease time.Duration
}

func NewFrontier(db *store.DB) Frontier {
	return Frontier{
		db:    db,
		lease: DefaultLeaseDuration,
	}
}

// NewFrontierWithLease creates a Frontier with a custom lease duration.
// This constructor is provided for testing and single-host deployments.
func NewFrontierWithLease(db *store.DB, lease time.Duration) Frontier {
	return Frontier{
		db:    db,
		lease: lease,
	}
}

// Enqueue inserts a URL, deriving and storing its domain. Re-enqueueing
// a known URL is a no-op; cycles in the link graph terminate here.
func (f *Frontier) Enqueue(ctx context.Context, url string, priority, depth int) failure.ClassifiedError {
	now := time.Now().UTC().UnixMicro()
	_, err := f.db.SQL.ExecContext(ctx,
		`INSERT INTO url_frontier (url, domain, priority, depth, created_at, next_fetch_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT (url) DO NOTHING`,
		url, urlutil.Domain(url), priority, depth, now, now)
	if err != nil {
		return &FrontierError{Message: err.Error(), Cause: ErrCauseUpdateFailure}
	}
	return nil
}

// Claim atomically selects up to batchSize eligible rows and leases
// them. Rows under a live lease or scheduled in the future are skipped
// by the predicate; because the select-and-lease is one statement,
// concurrent claimants can never observe the same row as eligible.
func (f *Frontier) Claim(ctx context.Context, batchSize int) ([]Entry, failure.ClassifiedError) {
	now := time.Now().UTC()
	rows, err := f.db.SQL.QueryContext(ctx,
		`UPDATE url_frontier
		 SET leased_until = ?
		 WHERE url IN (
			SELECT url FROM url_frontier
			WHERE (leased_until IS NULL OR leased_until < ?)
			  AND next_fetch_at <= ?
			ORDER BY priority DESC, created_at ASC
			LIMIT ?
		 )
		 RETURNING url, domain, depth, priority, created_at`,
		now.Add(f.lease).UnixMicro(), now.UnixMicro(), now.UnixMicro(), batchSize)
	if err != nil {
		return nil, &FrontierError{Message: err.Error(), Cause: ErrCauseClaimFailure}
	}
	defer rows.Close()

	type claimedRow struct {
		entry     Entry
		priority  int
		createdAt int64
	}
	var claimed []claimedRow
	for rows.Next() {
		var row claimedRow
		if err := rows.Scan(&row.entry.url, &row.entry.domain, &row.entry.depth,
			&row.priority, &row.createdAt); err != nil {
			return nil, &FrontierError{Message: err.Error(), Cause: ErrCauseClaimFailure}
		}
		claimed = append(claimed, row)
	}
	if err := rows.Err(); err != nil {
		return nil, &FrontierError{Message: err.Error(), Cause: ErrCauseClaimFailure}
	}

	// RETURNING emits rows in storage order; restore the claim order
	sort.Slice(claimed, func(i, j int) bool {
		if claimed[i].priority != claimed[j].priority {
			return claimed[i].priority > claimed[j].priority
		}
		return claimed[i].createdAt < claimed[j].createdAt
	})

	entries := make([]Entry, 0, len(claimed))
	for _, row := range claimed {
		entries = append(entries, row.entry)
	}
	return entries, nil
}

// Complete removes a finished URL. Idempotent: completing an unknown
// URL is a no-op.
func (f *Frontier) Complete(ctx context.Context, url string) failure.ClassifiedError {
	_, err := f.db.SQL.ExecContext(ctx, `DELETE FROM url_frontier WHERE url = ?`, url)
	if err != nil {
		return &FrontierError{Message: err.Error(), Cause: ErrCauseUpdateFailure}
	}
	return nil
}

// Fail releases the lease and pushes the URL into the future by the
// given backoff, counting the attempt.
func (f *Frontier) Fail(ctx context.Context, url string, backoff time.Duration) failure.ClassifiedError {
	next := time.Now().UTC().Add(backoff).UnixMicro()
	_, err := f.db.SQL.ExecContext(ctx,
		`UPDATE url_frontier
		 SET fetch_attempts = fetch_attempts + 1, next_fetch_at = ?, leased_until = NULL
		 WHERE url = ?`,
		next, url)
	if err != nil {
		return &FrontierError{Message: err.Error(), Cause: ErrCauseUpdateFailure}
	}
	return nil
}

// Reschedule keeps a URL in the frontier with a new fetch time and
// priority, clearing the lease and the attempt counter.
func (f *Frontier) Reschedule(ctx context.Context, url string, nextFetchAt time.Time, priority int) failure.ClassifiedError {
	_, err := f.db.SQL.ExecContext(ctx,
		`UPDATE url_frontier
		 SET next_fetch_at = ?, priority = ?, leased_until = NULL, fetch_attempts = 0
		 WHERE url = ?`,
		nextFetchAt.UTC().UnixMicro(), priority, url)
	if err != nil {
		return &FrontierError{Message: err.Error(), Cause: ErrCauseUpdateFailure}
	}
	return nil
}

// PendingCount reports queue depth, optionally filtered by domain.
// Diagnostics only.
func (f *Frontier) PendingCount(ctx context.Context, domain string) (int, error) {
	query := `SELECT COUNT(*) FROM url_frontier`
	args := []any{}
	if domain = strings.TrimSpace(domain); domain != "" {
		query += ` WHERE domain = ?`
		args = append(args, domain)
	}
	var count int
	err := f.db.SQL.QueryRowContext(ctx, query, args...).Scan(&count)
	return count, err
}
