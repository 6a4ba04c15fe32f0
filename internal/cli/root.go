package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/rohmanhakim/archivist/internal/build"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "archivist",
	Short: "A distributed web-archiving platform.",
	Long: `archivist crawls URLs, persists raw responses in a content-addressed,
append-only archive, and replays any past version of a page through a
time-travel URL.

Workers share a durable URL frontier with crash-safe leases, deduplicate
payloads globally by digest, and reschedule URLs from their observed
change history. The replay server resolves (url, instant) to the
nearest-preceding snapshot and rewrites HTML so archived pages stay
inside the archive when browsed.`,
	Version: build.FullVersion(),
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(crawlCmd)
	rootCmd.AddCommand(replayCmd)
}
