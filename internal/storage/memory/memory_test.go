package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/shelfwatch/catalog-crawler/internal/catalog"
)

func TestBatchStoreLatestPicksNewestStartDate(t *testing.T) {
	t.Parallel()

	store := NewBatchStore()
	ctx := context.Background()

	older := catalog.Batch{ID: "b1", CodeName: "demo", StartedAt: time.Unix(100, 0)}
	newer := catalog.Batch{ID: "b2", CodeName: "demo", StartedAt: time.Unix(200, 0)}
	other := catalog.Batch{ID: "b3", CodeName: "other", StartedAt: time.Unix(300, 0)}

	require.NoError(t, store.CreateBatch(ctx, older))
	require.NoError(t, store.CreateBatch(ctx, newer))
	require.NoError(t, store.CreateBatch(ctx, other))

	got, err := store.LatestBatch(ctx, "demo")
	require.NoError(t, err)
	require.Equal(t, "b2", got.ID)

	_, err = store.LatestBatch(ctx, "missing")
	require.ErrorIs(t, err, catalog.ErrNoBatch)
}

func TestBatchStoreSetCheckpoint(t *testing.T) {
	t.Parallel()

	store := NewBatchStore()
	ctx := context.Background()

	require.NoError(t, store.CreateBatch(ctx, catalog.Batch{ID: "b1", CodeName: "demo"}))
	require.NoError(t, store.SetCheckpoint(ctx, "b1", "https://shop.example.com/guns?page=2"))

	got, err := store.LatestBatch(ctx, "demo")
	require.NoError(t, err)
	require.NotNil(t, got.Checkpoint)
	require.Equal(t, "https://shop.example.com/guns?page=2", *got.Checkpoint)
}

func TestFrontierStoreEnqueueIsIdempotent(t *testing.T) {
	t.Parallel()

	store := NewFrontierStore()
	ctx := context.Background()

	require.NoError(t, store.Enqueue(ctx, "b1", "demo", []string{"/a", "/b", "/a"}))
	require.NoError(t, store.Enqueue(ctx, "b1", "demo", []string{"/a"}))

	urls, err := store.ListPending(ctx, "b1", false)
	require.NoError(t, err)
	require.Equal(t, []string{"/a", "/b"}, urls)
}

func TestFrontierStoreMarkFetchedExcludesFromPending(t *testing.T) {
	t.Parallel()

	store := NewFrontierStore()
	ctx := context.Background()

	require.NoError(t, store.Enqueue(ctx, "b1", "demo", []string{"/a", "/b"}))
	require.NoError(t, store.MarkFetched(ctx, "b1", "/a"))
	require.NoError(t, store.MarkFetched(ctx, "b1", "/a"))

	pending, err := store.ListPending(ctx, "b1", false)
	require.NoError(t, err)
	require.Equal(t, []string{"/b"}, pending)

	all, err := store.ListPending(ctx, "b1", true)
	require.NoError(t, err)
	require.Equal(t, []string{"/a", "/b"}, all)
}

func TestProductStoreRoundTrip(t *testing.T) {
	t.Parallel()

	store := NewProductStore(map[string]int64{"demo": 7})
	ctx := context.Background()

	id, err := store.ResolveSource(ctx, "demo")
	require.NoError(t, err)
	require.Equal(t, int64(7), id)

	_, err = store.ResolveSource(ctx, "missing")
	require.ErrorIs(t, err, catalog.ErrSourceNotFound)

	exists, err := store.ProductExists(ctx, "/a", 7)
	require.NoError(t, err)
	require.False(t, exists)

	productID, err := store.InsertProduct(ctx, catalog.ProductRecord{Title: "Bow", ProductURL: "/a"}, 7)
	require.NoError(t, err)
	require.NoError(t, store.InsertMedia(ctx, productID, "https://cdn.example.com/a.jpg"))

	exists, err = store.ProductExists(ctx, "/a", 7)
	require.NoError(t, err)
	require.True(t, exists)
	require.Equal(t, []string{"https://cdn.example.com/a.jpg"}, store.Media(productID))
}
