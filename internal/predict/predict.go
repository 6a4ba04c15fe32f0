package predict

import (
	"time"

	"github.com/rohmanhakim/archivist/internal/snapshot"
)

/*
Responsibilities
- Turn a URL's snapshot history into a next-fetch time and priority

The model is deliberately small: count content changes between adjacent
snapshots, average the intervals at which they happened, and aim the
next fetch slightly ahead of the expected change. Pages that never
change decay toward week-scale revisits; churny pages climb the
priority ladder.
*/

// Prediction is the scheduling decision derived from history.
type Prediction struct {
	NextFetchAt       time.Time
	Priority          int
	ChangeProbability float64
	Confidence        float64
}

const (
	// aim 20% ahead of the average change interval
	earlyBias = 0.8

	maxPriority      = 10
	stableRevisitMin = 7 * 24 * time.Hour
	coldRevisit      = 24 * time.Hour
)

type Predictor struct{}

func NewPredictor() Predictor {
	return Predictor{}
}

// Predict derives the next fetch from ordered history. now is injected
// so decisions are reproducible in tests.
func (p *Predictor) Predict(history []snapshot.HistoryEntry, now time.Time) Prediction {
	if len(history) < 2 {
		return Prediction{
			NextFetchAt:       now.Add(coldRevisit),
			Priority:          5,
			ChangeProbability: 0.5,
			Confidence:        0.2,
		}
	}

	// interval of a change is measured from the previous change point
	// (the first snapshot for the first change), so stretches of
	// unchanged captures lengthen the expected cadence
	changes := 0
	var changeIntervals time.Duration
	lastChange := history[0].Timestamp
	for i := 1; i < len(history); i++ {
		if history[i].ContentDigest != history[i-1].ContentDigest {
			changes++
			changeIntervals += history[i].Timestamp.Sub(lastChange)
			lastChange = history[i].Timestamp
		}
	}

	if changes == 0 {
		age := now.Sub(history[len(history)-1].Timestamp)
		revisit := 2 * age
		if revisit < stableRevisitMin {
			revisit = stableRevisitMin
		}
		return Prediction{
			NextFetchAt:       now.Add(revisit),
			Priority:          1,
			ChangeProbability: 0.1,
			Confidence:        0.6,
		}
	}

	avgChangeInterval := changeIntervals / time.Duration(changes)

	priority := 2 * changes
	if priority > maxPriority {
		priority = maxPriority
	}

	confidence := float64(changes) / float64(len(history))
	if confidence > 0.9 {
		confidence = 0.9
	}

	return Prediction{
		NextFetchAt:       now.Add(time.Duration(earlyBias * float64(avgChangeInterval))),
		Priority:          priority,
		ChangeProbability: 0.8,
		Confidence:        confidence,
	}
}
