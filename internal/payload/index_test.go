package payload_test

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/opencontainers/go-digest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rohmanhakim/archivist/internal/blob"
	"github.com/rohmanhakim/archivist/internal/payload"
	"github.com/rohmanhakim/archivist/internal/store"
)

func openTestStore(t *testing.T) *store.DB {
	t.Helper()
	db, err := store.Open(filepath.Join(t.TempDir(), "payload.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestContainsAfterInsert(t *testing.T) {
	index := payload.NewIndex(openTestStore(t))
	ctx := context.Background()
	d := digest.FromBytes([]byte("a body"))

	exists, err := index.Contains(ctx, d)
	require.NoError(t, err)
	assert.False(t, exists)

	require.NoError(t, index.Insert(ctx, d, blob.NewCoordinates("c1", 0, 64)))

	exists, err = index.Contains(ctx, d)
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestInsertIsFirstWriterWins(t *testing.T) {
	index := payload.NewIndex(openTestStore(t))
	ctx := context.Background()
	d := digest.FromBytes([]byte("a body"))

	require.NoError(t, index.Insert(ctx, d, blob.NewCoordinates("c1", 0, 64)))
	// the second insert succeeds but changes nothing
	require.NoError(t, index.Insert(ctx, d, blob.NewCoordinates("c2", 999, 64)))

	coords, found, err := index.Lookup(ctx, d)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "c1", coords.ContainerID())
	assert.Equal(t, int64(0), coords.Offset())
}

func TestConcurrentInsertsAllSucceed(t *testing.T) {
	index := payload.NewIndex(openTestStore(t))
	ctx := context.Background()
	d := digest.FromBytes([]byte("contended body"))

	var wg sync.WaitGroup
	errs := make([]error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			errs[n] = index.Insert(ctx, d, blob.NewCoordinates("c", int64(n), 10))
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		assert.NoError(t, err)
	}

	_, found, err := index.Lookup(ctx, d)
	require.NoError(t, err)
	assert.True(t, found)
}

func TestLookupMissing(t *testing.T) {
	index := payload.NewIndex(openTestStore(t))
	_, found, err := index.Lookup(context.Background(), digest.FromBytes([]byte("never stored")))
	require.NoError(t, err)
	assert.False(t, found)
}
