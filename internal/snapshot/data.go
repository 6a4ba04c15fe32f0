package snapshot

import (
	"time"

	"github.com/opencontainers/go-digest"
)

// Snapshot is one captured version of one URL at one instant. Rows are
// insert-only: the crawler creates them, replay reads them, nothing
// mutates or deletes them.
type Snapshot struct {
	ID            string
	URL           string
	Timestamp     time.Time
	ContainerID   string
	Offset        int64
	Length        int64
	ContentDigest string
	Status        int
	MediaType     string
	PayloadDigest digest.Digest // payload index key; empty when the row has no payload index entry
}

// HistoryEntry is the (timestamp, digest) pair the predictive scheduler
// consumes, ordered by time.
type HistoryEntry struct {
	Timestamp     time.Time
	ContentDigest string
}

func microsToTime(micros int64) time.Time {
	return time.UnixMicro(micros).UTC()
}
