package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/rohmanhakim/archivist/internal/blob"
	"github.com/rohmanhakim/archivist/internal/config"
	"github.com/rohmanhakim/archivist/internal/fetcher"
	"github.com/rohmanhakim/archivist/internal/frontier"
	"github.com/rohmanhakim/archivist/internal/metadata"
	"github.com/rohmanhakim/archivist/internal/payload"
	"github.com/rohmanhakim/archivist/internal/ratelimit"
	"github.com/rohmanhakim/archivist/internal/region"
	"github.com/rohmanhakim/archivist/internal/robots"
	"github.com/rohmanhakim/archivist/internal/scheduler"
	"github.com/rohmanhakim/archivist/internal/snapshot"
	"github.com/rohmanhakim/archivist/internal/store"
	"github.com/rohmanhakim/archivist/pkg/timeutil"
)

var (
	seedURLs  []string
	batchSize int
	workers   int
	maxDepth  int
)

var crawlCmd = &cobra.Command{
	Use:   "crawl",
	Short: "Run a crawl worker until interrupted.",
	Long: `crawl claims URLs from the shared frontier, fetches them, deduplicates
payloads against the global index, appends records to this worker's
container, and reschedules URLs from their change history.

Workers are horizontally scalable: start one per process, anywhere the
database and blob directory are reachable. A worker that dies loses
nothing; its leases lapse and other workers reclaim the URLs.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.FromEnv()
		if err != nil {
			return err
		}

		db, err := store.Open(cfg.DBPath())
		if err != nil {
			return fmt.Errorf("open store: %w", err)
		}
		defer db.Close()

		workerRegion := region.FromEnv()
		logrus.WithField("region", workerRegion.String()).Info("crawl worker starting")

		appender, appendErr := blob.NewFSAppender(cfg.BlobDir(), workerRegion.String())
		if appendErr != nil {
			return fmt.Errorf("open container: %w", appendErr)
		}
		defer appender.Close()

		// process-wide shared HTTP client for connection pooling
		httpClient := &http.Client{}

		front := frontier.NewFrontierWithLease(db, cfg.LeaseDuration())
		limiter := ratelimit.NewLimiterWithCaps(db, ratelimit.DefaultWindow, cfg.PerRegionCap(), cfg.GlobalCap())
		recorder := metadata.NewRecorder(db, appender.ContainerID())
		robot := robots.NewCachedRobot(cfg.UserAgent(), httpClient)
		streamingFetcher := fetcher.NewStreamingFetcher(&recorder, httpClient, cfg.FetchTimeout(), cfg.MaxBodySize())
		sleeper := timeutil.NewRealSleeper()

		params := scheduler.DefaultParams()
		params.BatchSize = batchSize
		params.Workers = workers
		params.MaxDepth = maxDepth
		params.UserAgent = cfg.UserAgent()

		worker := scheduler.NewScheduler(
			&front,
			&limiter,
			workerRegion,
			&robot,
			&streamingFetcher,
			payload.NewIndex(db),
			snapshot.NewRepo(db),
			appender,
			&recorder,
			&sleeper,
			params,
		)

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		for _, seed := range seedURLs {
			if err := worker.Seed(ctx, seed); err != nil {
				return fmt.Errorf("seed %s: %w", seed, err)
			}
		}

		return worker.Run(ctx)
	},
}

func init() {
	crawlCmd.Flags().StringArrayVar(&seedURLs, "seed-url", nil, "URL to enqueue at depth 0 before crawling (repeatable)")
	crawlCmd.Flags().IntVar(&batchSize, "batch", 10, "frontier claim batch size")
	crawlCmd.Flags().IntVar(&workers, "workers", 4, "concurrent claim loops in this process")
	crawlCmd.Flags().IntVar(&maxDepth, "max-depth", 10, "maximum link depth to enqueue")
}
