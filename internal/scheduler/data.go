package scheduler

import "time"

// Backoff dispositions of the worker loop. Transient conditions come
// back quickly; server errors wait out the hour.
const (
	ShortBackoff = 60 * time.Second
	LongBackoff  = time.Hour

	// idle wait between empty claims
	idleSleep = 5 * time.Second

	// cadence of the rate-window sweeper
	sweepInterval = time.Hour
)

// Params bounds one worker process.
type Params struct {
	BatchSize int
	Workers   int
	MaxDepth  int
	UserAgent string
}

func DefaultParams() Params {
	return Params{
		BatchSize: 10,
		Workers:   4,
		MaxDepth:  10,
		UserAgent: "archivist/1.0",
	}
}
