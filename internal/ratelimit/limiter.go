package ratelimit

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/rohmanhakim/archivist/internal/store"
)

/*
RateLimiter
Specialized component to manage request admission during crawling
Responsibilities:
- Count admissions per (domain, region) in fixed wall-clock windows
- Enforce a per-region cap and a cross-region global cap
- Make sure the crawling fleet as a whole respects per-domain budgets

Counters live in the shared database so workers in distinct processes
and regions see the same budget. Check-then-increment is not atomic
across claimants; with k concurrent admitters the window can overshoot
by at most k-1. That is the accepted price of a single-statement upsert.
*/

const (
	DefaultWindow       = 60 * time.Second
	DefaultPerRegionCap = 5
	DefaultGlobalCap    = 10

	// windows older than this are swept
	windowRetention = time.Hour
)

type Limiter struct {
	db           *store.DB
	window       time.Duration
	perRegionCap int
	globalCap    int
	log          *logrus.Entry
}

func NewLimiter(db *store.DB) Limiter {
	return NewLimiterWithCaps(db, DefaultWindow, DefaultPerRegionCap, DefaultGlobalCap)
}

func NewLimiterWithCaps(db *store.DB, window time.Duration, perRegionCap, globalCap int) Limiter {
	return Limiter{
		db:           db,
		window:       window,
		perRegionCap: perRegionCap,
		globalCap:    globalCap,
		log:          logrus.WithField("component", "ratelimit"),
	}
}

// Admit reports whether one more request for domain from region fits
// the current window, incrementing the counter when it does.
func (l *Limiter) Admit(ctx context.Context, domain, region string) (bool, error) {
	windowStart := l.currentWindowStart()

	regional, err := l.regionalCount(ctx, domain, region, windowStart)
	if err != nil {
		return false, err
	}
	if regional >= l.perRegionCap {
		l.log.WithFields(logrus.Fields{"domain": domain, "region": region}).
			Warn("regional rate limit exceeded")
		return false, nil
	}

	global, err := l.globalCount(ctx, domain, windowStart)
	if err != nil {
		return false, err
	}
	if global >= l.globalCap {
		l.log.WithField("domain", domain).Warn("global rate limit exceeded")
		return false, nil
	}

	_, err = l.db.SQL.ExecContext(ctx,
		`INSERT INTO rate_limits (domain, region, window_start, request_count)
		 VALUES (?, ?, ?, 1)
		 ON CONFLICT (domain, region, window_start)
		 DO UPDATE SET request_count = request_count + 1`,
		domain, region, windowStart.UnixMicro())
	if err != nil {
		return false, err
	}
	return true, nil
}

func (l *Limiter) regionalCount(ctx context.Context, domain, region string, windowStart time.Time) (int, error) {
	row := l.db.SQL.QueryRowContext(ctx,
		`SELECT request_count FROM rate_limits
		 WHERE domain = ? AND region = ? AND window_start = ?`,
		domain, region, windowStart.UnixMicro())
	var count int
	if err := row.Scan(&count); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, nil
		}
		return 0, err
	}
	return count, nil
}

func (l *Limiter) globalCount(ctx context.Context, domain string, windowStart time.Time) (int, error) {
	row := l.db.SQL.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(request_count), 0) FROM rate_limits
		 WHERE domain = ? AND window_start = ?`,
		domain, windowStart.UnixMicro())
	var count int
	if err := row.Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

// currentWindowStart aligns now to the wall-clock window grid.
func (l *Limiter) currentWindowStart() time.Time {
	windowSeconds := int64(l.window / time.Second)
	aligned := (time.Now().UTC().Unix() / windowSeconds) * windowSeconds
	return time.Unix(aligned, 0).UTC()
}

// Sweep deletes windows past retention. Run periodically.
func (l *Limiter) Sweep(ctx context.Context) error {
	cutoff := time.Now().UTC().Add(-windowRetention)
	result, err := l.db.SQL.ExecContext(ctx,
		`DELETE FROM rate_limits WHERE window_start < ?`, cutoff.UnixMicro())
	if err != nil {
		return err
	}
	if n, err := result.RowsAffected(); err == nil && n > 0 {
		l.log.WithField("windows", n).Debug("swept expired rate windows")
	}
	return nil
}
