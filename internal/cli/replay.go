package cmd

import (
	"fmt"
	"net/http"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/rohmanhakim/archivist/internal/blob"
	"github.com/rohmanhakim/archivist/internal/config"
	"github.com/rohmanhakim/archivist/internal/replay"
	"github.com/rohmanhakim/archivist/internal/snapshot"
	"github.com/rohmanhakim/archivist/internal/store"
)

var replayCmd = &cobra.Command{
	Use:   "replay",
	Short: "Serve archived pages over time-travel URLs.",
	Long: `replay starts the HTTP server answering

    GET /at/<YYYYMMDDHHMMSS>/<url>

with the nearest-preceding snapshot of <url>, fetched by byte range
from the blob store and, for HTML, rewritten so links stay inside the
archive. Containers are read over HTTP when ARCHIVIST_BLOB_BASE_URL is
set, or from the local blob directory otherwise.`,
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

		var reader blob.RangeReader
		if cfg.BlobBaseURL() != "" {
			reader = blob.NewHTTPRangeReader(cfg.BlobBaseURL())
		} else {
			reader = blob.NewFSRangeReader(cfg.BlobDir())
		}

		assembler := replay.NewAssembler(replay.NewResolver(db), reader)
		handler := replay.NewHandler(assembler, snapshot.NewRepo(db))

		logrus.WithField("addr", cfg.ListenAddr()).Info("replay server listening")
		return http.ListenAndServe(cfg.ListenAddr(), handler)
	},
}
