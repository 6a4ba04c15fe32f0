package scheduler

import (
	"context"
	"net/url"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/rohmanhakim/archivist/internal/blob"
	"github.com/rohmanhakim/archivist/internal/extractor"
	"github.com/rohmanhakim/archivist/internal/fetcher"
	"github.com/rohmanhakim/archivist/internal/frontier"
	"github.com/rohmanhakim/archivist/internal/metadata"
	"github.com/rohmanhakim/archivist/internal/payload"
	"github.com/rohmanhakim/archivist/internal/predict"
	"github.com/rohmanhakim/archivist/internal/ratelimit"
	"github.com/rohmanhakim/archivist/internal/region"
	"github.com/rohmanhakim/archivist/internal/robots"
	"github.com/rohmanhakim/archivist/internal/snapshot"
	"github.com/rohmanhakim/archivist/internal/warc"
	"github.com/rohmanhakim/archivist/pkg/failure"
	"github.com/rohmanhakim/archivist/pkg/timeutil"
)

/*
 Scheduler is the sole control-plane authority of the crawl.

 - All semantic admission checks (robots, rate limits) happen between
   claim and fetch; pipeline stages may detect and classify failure,
   but must never decide retry, continuation, or abortion.
 - The scheduler is the sole authority on:
	- retry (always retry-by-reclaim through the frontier)
	- continue
	- complete vs. reschedule
 - Metadata emission is observational only and MUST NOT influence
   scheduling, retries, or crawl termination.

 Per claimed URL the states run
 Claimed → Admitted → Fetched → Persisted → Scheduled → (Completed | Rescheduled),
 and any failure in Admitted..Persisted lands in Failed: the URL goes
 back to the frontier with a backoff, or — when its lease simply lapses
 because this process died — becomes claimable again untouched. The
 pipeline never loses URLs.

 All steps past claim are best-effort: individual failures are logged
 and the loop advances to the next URL; no step blocks the whole batch.
*/

type Scheduler struct {
	frontier     *frontier.Frontier
	rateLimiter  *ratelimit.Limiter
	router       region.Router
	workerRegion region.Region
	robot        robots.Robot
	htmlFetcher  fetcher.Fetcher
	payloadIndex payload.Index
	snapshots    snapshot.Repo
	appender     blob.Appender
	extractor    extractor.LinkExtractor
	predictor    predict.Predictor
	metadataSink metadata.MetadataSink
	sleeper      timeutil.Sleeper
	params       Params
	log          *logrus.Entry
}

// NewScheduler wires a worker with injected dependencies. Everything
// stateful (database, HTTP client, container) is constructed by the
// caller once per process and shared by reference.
func NewScheduler(
	f *frontier.Frontier,
	rateLimiter *ratelimit.Limiter,
	workerRegion region.Region,
	robot robots.Robot,
	htmlFetcher fetcher.Fetcher,
	payloadIndex payload.Index,
	snapshots snapshot.Repo,
	appender blob.Appender,
	metadataSink metadata.MetadataSink,
	sleeper timeutil.Sleeper,
	params Params,
) Scheduler {
	return Scheduler{
		frontier:     f,
		rateLimiter:  rateLimiter,
		router:       region.NewRouter(),
		workerRegion: workerRegion,
		robot:        robot,
		htmlFetcher:  htmlFetcher,
		payloadIndex: payloadIndex,
		snapshots:    snapshots,
		appender:     appender,
		extractor:    extractor.NewLinkExtractor(),
		predictor:    predict.NewPredictor(),
		metadataSink: metadataSink,
		sleeper:      sleeper,
		params:       params,
		log:          logrus.WithField("region", workerRegion.String()),
	}
}

// Seed enqueues a starting URL at depth 0.
func (s *Scheduler) Seed(ctx context.Context, rawURL string) failure.ClassifiedError {
	return s.frontier.Enqueue(ctx, rawURL, 0, 0)
}

// Run drives the claim loop until the context is cancelled. Workers
// share the frontier; each claims its own batches. A sweeper goroutine
// purges expired rate windows.
func (s *Scheduler) Run(ctx context.Context) error {
	group, ctx := errgroup.WithContext(ctx)

	for i := 0; i < s.params.Workers; i++ {
		group.Go(func() error {
			s.claimLoop(ctx)
			return nil
		})
	}

	group.Go(func() error {
		s.sweepLoop(ctx)
		return nil
	})

	return group.Wait()
}

func (s *Scheduler) claimLoop(ctx context.Context) {
	for ctx.Err() == nil {
		batch, err := s.frontier.Claim(ctx, s.params.BatchSize)
		if err != nil {
			s.log.WithError(err).Error("frontier claim failed")
			s.sleeper.SleepContext(ctx, idleSleep)
			continue
		}
		if len(batch) == 0 {
			s.sleeper.SleepContext(ctx, idleSleep)
			continue
		}

		for _, entry := range batch {
			if ctx.Err() != nil {
				// graceful shutdown: unprocessed leases lapse and the
				// URLs are reclaimed elsewhere
				return
			}
			s.ProcessEntry(ctx, entry)
		}
	}
}

func (s *Scheduler) sweepLoop(ctx context.Context) {
	for ctx.Err() == nil {
		if err := s.rateLimiter.Sweep(ctx); err != nil {
			s.log.WithError(err).Warn("rate window sweep failed")
		}
		s.sleeper.SleepContext(ctx, sweepInterval)
	}
}

// ProcessEntry runs one claimed URL through the pipeline. Exported so
// scenario tests can drive single URLs without the loop.
func (s *Scheduler) ProcessEntry(ctx context.Context, entry frontier.Entry) {
	rawURL := entry.URL()
	startTime := time.Now()

	parsedURL, err := url.Parse(rawURL)
	if err != nil {
		// a URL that no longer parses will never fetch; drop it
		s.log.WithField("url", rawURL).Warn("unparseable frontier url")
		_ = s.frontier.Complete(ctx, rawURL)
		return
	}

	// 1. Robots admission
	if decision := s.robot.Decide(ctx, *parsedURL); !decision.Allowed {
		s.metadataSink.TrackEvent(ctx, rawURL, metadata.StatusRobotsDenied, nil, time.Since(startTime))
		_ = s.frontier.Complete(ctx, rawURL)
		return
	}

	// 2. Rate-limit admission against the domain's affinity region
	domainRegion := s.router.Route(entry.Domain())
	admitted, admitErr := s.rateLimiter.Admit(ctx, entry.Domain(), domainRegion.String())
	if admitErr != nil {
		s.log.WithError(admitErr).WithField("url", rawURL).Error("rate limiter failure")
		_ = s.frontier.Fail(ctx, rawURL, ShortBackoff)
		return
	}
	if !admitted {
		s.metadataSink.TrackEvent(ctx, rawURL, metadata.StatusRateLimited, nil, time.Since(startTime))
		_ = s.frontier.Fail(ctx, rawURL, ShortBackoff)
		return
	}

	// 3. Fetch
	result, fetchErr := s.htmlFetcher.Fetch(ctx, fetcher.NewFetchParam(*parsedURL, s.params.UserAgent))
	if fetchErr != nil {
		s.handleFetchError(ctx, rawURL, fetchErr, startTime)
		return
	}

	duration := time.Since(startTime)
	httpStatus := result.HTTPStatus()

	// 4. Status disposition before touching storage
	switch {
	case httpStatus >= 500:
		s.metadataSink.TrackEvent(ctx, rawURL, metadata.StatusError, &httpStatus, duration)
		_ = s.frontier.Fail(ctx, rawURL, LongBackoff)
		return
	case httpStatus == 408 || httpStatus == 429:
		s.metadataSink.TrackEvent(ctx, rawURL, metadata.StatusError, &httpStatus, duration)
		_ = s.frontier.Fail(ctx, rawURL, ShortBackoff)
		return
	}

	s.metadataSink.TrackEvent(ctx, rawURL, metadata.StatusSuccess, &httpStatus, duration)

	// 5-6. Dedup, persist record, insert snapshot
	if err := s.persist(ctx, result); err != nil {
		s.log.WithError(err).WithField("url", rawURL).Error("persist failed")
		_ = s.frontier.Fail(ctx, rawURL, ShortBackoff)
		return
	}

	// 7. Link discovery
	if strings.Contains(result.MediaType(), "html") && entry.Depth() < s.params.MaxDepth {
		s.enqueueDiscovered(ctx, result, entry.Depth())
	}

	// 8. Scheduling decision
	s.finish(ctx, rawURL)
}

func (s *Scheduler) handleFetchError(ctx context.Context, rawURL string, fetchErr failure.ClassifiedError, startTime time.Time) {
	duration := time.Since(startTime)

	if fe, ok := fetchErr.(*fetcher.FetchError); ok && fe.Cause == fetcher.ErrCauseBodyTooLarge && fe.Partial != nil {
		// archive the truncated prefix; refetching would just truncate again
		httpStatus := fe.Partial.HTTPStatus()
		s.metadataSink.TrackEvent(ctx, rawURL, metadata.StatusError, &httpStatus, duration)
		if err := s.persist(ctx, *fe.Partial); err != nil {
			s.log.WithError(err).WithField("url", rawURL).Error("persist of truncated body failed")
			_ = s.frontier.Fail(ctx, rawURL, ShortBackoff)
			return
		}
		_ = s.frontier.Complete(ctx, rawURL)
		return
	}

	s.metadataSink.TrackEvent(ctx, rawURL, metadata.StatusError, nil, duration)
	_ = s.frontier.Fail(ctx, rawURL, ShortBackoff)
}

// persist writes the container record (full or revisit), updates the
// payload index on first sight, and inserts the snapshot row.
func (s *Scheduler) persist(ctx context.Context, result fetcher.FetchResult) error {
	pageURL := result.URL()
	targetURI := pageURL.String()

	isDuplicate, err := s.payloadIndex.Contains(ctx, result.PayloadDigest())
	if err != nil {
		return err
	}

	var record warc.Record
	if isDuplicate {
		record = warc.NewRevisitRecord(targetURI, result.Instant(), result.PayloadDigest())
	} else {
		record = warc.NewResponseRecord(targetURI, result.Instant(), result.PayloadDigest(), result.Body())
	}

	coords, appendErr := s.appender.Append(warc.Encode(record))
	if appendErr != nil {
		return appendErr
	}

	if !isDuplicate {
		// insert-or-ignore: a concurrent first-store of the same digest
		// is fine, one of the rows wins
		if err := s.payloadIndex.Insert(ctx, result.PayloadDigest(), coords); err != nil {
			return err
		}
	}

	_, err = s.snapshots.Insert(ctx, snapshot.Snapshot{
		URL:           targetURI,
		Timestamp:     result.Instant(),
		ContainerID:   coords.ContainerID(),
		Offset:        coords.Offset(),
		Length:        coords.Length(),
		ContentDigest: result.PayloadDigest().Encoded(),
		Status:        result.HTTPStatus(),
		MediaType:     result.MediaType(),
		PayloadDigest: result.PayloadDigest(),
	})
	return err
}

func (s *Scheduler) enqueueDiscovered(ctx context.Context, result fetcher.FetchResult, depth int) {
	links, err := s.extractor.ExtractLinks(result.URL(), result.Body())
	if err != nil {
		s.log.WithError(err).WithField("url", result.URL().String()).Warn("link extraction failed")
		return
	}
	for _, link := range links {
		if err := s.frontier.Enqueue(ctx, link.String(), 0, depth+1); err != nil {
			s.log.WithError(err).WithField("link", link.String()).Warn("enqueue failed")
		}
	}
}

// finish reschedules URLs with enough history for prediction and
// completes the rest.
func (s *Scheduler) finish(ctx context.Context, rawURL string) {
	history, err := s.snapshots.History(ctx, rawURL)
	if err != nil {
		s.log.WithError(err).WithField("url", rawURL).Warn("history lookup failed")
		_ = s.frontier.Complete(ctx, rawURL)
		return
	}

	if len(history) < 2 {
		_ = s.frontier.Complete(ctx, rawURL)
		return
	}

	prediction := s.predictor.Predict(history, time.Now().UTC())
	s.log.WithFields(logrus.Fields{
		"url":      rawURL,
		"next":     prediction.NextFetchAt,
		"priority": prediction.Priority,
	}).Info("rescheduling")
	if err := s.frontier.Reschedule(ctx, rawURL, prediction.NextFetchAt, prediction.Priority); err != nil {
		s.log.WithError(err).WithField("url", rawURL).Warn("reschedule failed")
	}
}
