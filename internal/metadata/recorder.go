package metadata

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/rohmanhakim/archivist/internal/store"
	"github.com/rohmanhakim/archivist/pkg/urlutil"
)

func domainOf(url string) string {
	return urlutil.Domain(url)
}

// MetadataSink receives observational events from pipeline stages.
// Implementations must never fail the caller: recording problems are
// logged and swallowed.
type MetadataSink interface {
	TrackEvent(ctx context.Context, url string, status EventStatus, httpStatus *int, duration time.Duration)
	RecordError(ctx context.Context, packageName, action string, cause ErrorCause, details string)
}

// Recorder writes crawl events to the shared database and mirrors them
// to structured logs.
type Recorder struct {
	db     *store.DB
	worker string
	log    *logrus.Entry
}

func NewRecorder(db *store.DB, worker string) Recorder {
	return Recorder{
		db:     db,
		worker: worker,
		log:    logrus.WithField("worker", worker),
	}
}

func (r *Recorder) TrackEvent(ctx context.Context, url string, status EventStatus, httpStatus *int, duration time.Duration) {
	domain := domainOf(url)
	var statusCol any
	if httpStatus != nil {
		statusCol = *httpStatus
	}

	_, err := r.db.SQL.ExecContext(ctx,
		`INSERT INTO crawl_events (domain, url, status, http_status, duration_ms, at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		domain, url, string(status), statusCol, duration.Milliseconds(),
		time.Now().UTC().UnixMicro())
	if err != nil {
		r.log.WithError(err).WithField("url", url).Warn("failed to track crawl event")
	}

	fields := logrus.Fields{
		"url":         url,
		"domain":      domain,
		"status":      status,
		"duration_ms": duration.Milliseconds(),
	}
	if httpStatus != nil {
		fields["http_status"] = *httpStatus
	}
	r.log.WithFields(fields).Info("crawl event")
}

func (r *Recorder) RecordError(ctx context.Context, packageName, action string, cause ErrorCause, details string) {
	r.log.WithFields(logrus.Fields{
		"package": packageName,
		"action":  action,
		"cause":   cause,
	}).Error(details)
}

// NoopSink discards everything. Used by tests that assert on behavior
// rather than observability.
type NoopSink struct{}

func (NoopSink) TrackEvent(context.Context, string, EventStatus, *int, time.Duration) {}

func (NoopSink) RecordError(context.Context, string, string, ErrorCause, string) {}
