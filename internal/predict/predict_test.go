package predict_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/rohmanhakim/archivist/internal/predict"
	"github.com/rohmanhakim/archivist/internal/snapshot"
)

var now = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func entry(at time.Time, digest string) snapshot.HistoryEntry {
	return snapshot.HistoryEntry{Timestamp: at, ContentDigest: digest}
}

func TestColdStartDefaults(t *testing.T) {
	p := predict.NewPredictor()

	for _, history := range [][]snapshot.HistoryEntry{
		nil,
		{entry(now.Add(-24*time.Hour), "h1")},
	} {
		prediction := p.Predict(history, now)
		assert.Equal(t, now.Add(24*time.Hour), prediction.NextFetchAt)
		assert.Equal(t, 5, prediction.Priority)
		assert.InDelta(t, 0.5, prediction.ChangeProbability, 1e-9)
		assert.InDelta(t, 0.2, prediction.Confidence, 1e-9)
	}
}

func TestStablePageDecays(t *testing.T) {
	p := predict.NewPredictor()

	// unchanged for two days: revisit no sooner than a week out
	history := []snapshot.HistoryEntry{
		entry(now.Add(-48*time.Hour), "h1"),
		entry(now.Add(-24*time.Hour), "h1"),
	}
	prediction := p.Predict(history, now)
	assert.Equal(t, now.Add(7*24*time.Hour), prediction.NextFetchAt)
	assert.Equal(t, 1, prediction.Priority)
	assert.InDelta(t, 0.1, prediction.ChangeProbability, 1e-9)
	assert.InDelta(t, 0.6, prediction.Confidence, 1e-9)
}

func TestStalePageDoublesItsAge(t *testing.T) {
	p := predict.NewPredictor()

	// unchanged and last seen five days ago: 2·age beats the week floor
	history := []snapshot.HistoryEntry{
		entry(now.Add(-10*24*time.Hour), "h1"),
		entry(now.Add(-5*24*time.Hour), "h1"),
	}
	prediction := p.Predict(history, now)
	assert.Equal(t, now.Add(10*24*time.Hour), prediction.NextFetchAt)
}

func TestChurnyPageTracksChangeCadence(t *testing.T) {
	p := predict.NewPredictor()

	day := 24 * time.Hour
	t0 := now.Add(-4 * day)
	history := []snapshot.HistoryEntry{
		entry(t0, "h1"),
		entry(t0.Add(1*day), "h1"),
		entry(t0.Add(2*day), "h2"),
		entry(t0.Add(3*day), "h2"),
		entry(t0.Add(4*day), "h3"),
	}

	prediction := p.Predict(history, now)

	// two changes, each two days after the previous change point:
	// average cadence 2d, aimed 20% early
	expectedNext := now.Add(time.Duration(0.8 * float64(2*day)))
	assert.Equal(t, expectedNext, prediction.NextFetchAt)
	assert.Equal(t, 4, prediction.Priority)
	assert.InDelta(t, 0.8, prediction.ChangeProbability, 1e-9)
	assert.InDelta(t, 0.4, prediction.Confidence, 1e-9)
}

func TestPriorityIsCapped(t *testing.T) {
	p := predict.NewPredictor()

	history := make([]snapshot.HistoryEntry, 0, 12)
	for i := 0; i < 12; i++ {
		history = append(history, entry(now.Add(time.Duration(i-12)*time.Hour), string(rune('a'+i))))
	}

	prediction := p.Predict(history, now)
	assert.Equal(t, 10, prediction.Priority)
}

func TestConfidenceIsCapped(t *testing.T) {
	p := predict.NewPredictor()

	// every capture differs: changes/n would be close to 1
	history := []snapshot.HistoryEntry{
		entry(now.Add(-3*time.Hour), "a"),
		entry(now.Add(-2*time.Hour), "b"),
		entry(now.Add(-1*time.Hour), "c"),
	}
	prediction := p.Predict(history, now)
	assert.LessOrEqual(t, prediction.Confidence, 0.9)
}
