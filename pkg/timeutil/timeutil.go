package timeutil

import (
	"math"
	"math/rand"
	"time"
)

// DurationPtr is a helper function to create a pointer to a time.Duration
func DurationPtr(d time.Duration) *time.Duration {
	return &d
}

// MaxDuration returns the largest duration in the slice,
// or zero for an empty slice.
func MaxDuration(durations []time.Duration) time.Duration {
	var max time.Duration
	for _, d := range durations {
		if d > max {
			max = d
		}
	}
	return max
}

// ExponentialBackoffDelay computes the delay before the next attempt.
// attempt is 1-based: the first backoff (attempt=1) is the initial duration.
// A pseudo-random jitter in [0, jitter) is added on top of the capped delay.
func ExponentialBackoffDelay(
	attempt int,
	jitter time.Duration,
	rng rand.Rand,
	param BackoffParam,
) time.Duration {
	if attempt < 1 {
		attempt = 1
	}

	exponent := float64(attempt - 1)
	delay := float64(param.InitialDuration()) * math.Pow(param.Multiplier(), exponent)
	if delay > float64(param.MaxDuration()) {
		delay = float64(param.MaxDuration())
	}

	if jitter > 0 {
		delay += float64(rng.Int63n(int64(jitter)))
	}

	return time.Duration(delay)
}
