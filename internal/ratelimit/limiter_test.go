package ratelimit_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rohmanhakim/archivist/internal/ratelimit"
	"github.com/rohmanhakim/archivist/internal/store"
)

func openTestStore(t *testing.T) *store.DB {
	t.Helper()
	db, err := store.Open(filepath.Join(t.TempDir(), "ratelimit.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

// Regional and global caps interact: with per-region 2 and global 3,
// the sequence R1,R1,R2,R2,R3 admits exactly the first three.
func TestRegionalAndGlobalCaps(t *testing.T) {
	db := openTestStore(t)
	// hour-wide window so the test cannot straddle a boundary
	limiter := ratelimit.NewLimiterWithCaps(db, time.Hour, 2, 3)
	ctx := context.Background()

	sequence := []struct {
		region string
		want   bool
	}{
		{"us-east-1", true},
		{"us-east-1", true},
		{"eu-west-1", true},
		{"eu-west-1", false},
		{"ap-south-1", false},
	}

	for i, step := range sequence {
		got, err := limiter.Admit(ctx, "example.com", step.region)
		require.NoError(t, err)
		assert.Equal(t, step.want, got, "admission %d from %s", i+1, step.region)
	}
}

func TestDomainsHaveIndependentBudgets(t *testing.T) {
	db := openTestStore(t)
	limiter := ratelimit.NewLimiterWithCaps(db, time.Hour, 1, 1)
	ctx := context.Background()

	first, err := limiter.Admit(ctx, "a.example", "us-east-1")
	require.NoError(t, err)
	assert.True(t, first)

	// a.example is exhausted, b.example is untouched
	denied, err := limiter.Admit(ctx, "a.example", "us-east-1")
	require.NoError(t, err)
	assert.False(t, denied)

	other, err := limiter.Admit(ctx, "b.example", "us-east-1")
	require.NoError(t, err)
	assert.True(t, other)
}

func TestSweepDeletesOnlyExpiredWindows(t *testing.T) {
	db := openTestStore(t)
	limiter := ratelimit.NewLimiterWithCaps(db, time.Hour, 5, 10)
	ctx := context.Background()

	_, err := limiter.Admit(ctx, "example.com", "us-east-1")
	require.NoError(t, err)

	// plant a window two hours in the past
	stale := time.Now().UTC().Add(-2 * time.Hour).UnixMicro()
	_, err = db.SQL.Exec(
		`INSERT INTO rate_limits (domain, region, window_start, request_count) VALUES (?, ?, ?, ?)`,
		"old.example", "us-east-1", stale, 3)
	require.NoError(t, err)

	require.NoError(t, limiter.Sweep(ctx))

	var rows int
	require.NoError(t, db.SQL.QueryRow(`SELECT COUNT(*) FROM rate_limits`).Scan(&rows))
	assert.Equal(t, 1, rows, "only the current window survives the sweep")
}
