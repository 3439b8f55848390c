package memory_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tofino/jobsite-crawler/internal/ingest"
	"github.com/tofino/jobsite-crawler/internal/store/memory"
)

func TestBlobStoreRoundTrip(t *testing.T) {
	t.Parallel()

	store := memory.NewBlobStore()
	data := []byte("<html>content</html>")
	require.NoError(t, store.Put(context.Background(), "job-1", data))

	got, err := store.Get(context.Background(), "job-1")
	require.NoError(t, err)
	assert.Equal(t, data, got)

	// The store holds its own copy.
	data[0] = 'X'
	got, err = store.Get(context.Background(), "job-1")
	require.NoError(t, err)
	assert.Equal(t, byte('<'), got[0])
}

func TestBlobStoreGetMissing(t *testing.T) {
	t.Parallel()

	store := memory.NewBlobStore()
	_, err := store.Get(context.Background(), "absent")
	assert.ErrorIs(t, err, ingest.ErrNotFound)
}
