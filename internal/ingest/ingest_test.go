package ingest

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/shelfwatch/catalog-crawler/internal/catalog"
	"github.com/shelfwatch/catalog-crawler/internal/storage/memory"
)

func TestGateExistsReflectsIngestedProducts(t *testing.T) {
	t.Parallel()

	store := memory.NewProductStore(map[string]int64{"demo": 1})
	gate := NewGate(store, nil)
	ctx := context.Background()

	require.False(t, gate.Exists(ctx, "/a", "demo"))

	_, err := store.InsertProduct(ctx, catalog.ProductRecord{Title: "Bow", ProductURL: "/a"}, 1)
	require.NoError(t, err)

	require.True(t, gate.Exists(ctx, "/a", "demo"))
	require.False(t, gate.Exists(ctx, "/b", "demo"))
}

func TestGateFailsClosedForUnknownSource(t *testing.T) {
	t.Parallel()

	gate := NewGate(memory.NewProductStore(nil), nil)
	require.False(t, gate.Exists(context.Background(), "/a", "unregistered"))
}

func TestSinkIngestInsertsProductAndMedia(t *testing.T) {
	t.Parallel()

	store := memory.NewProductStore(map[string]int64{"demo": 1})
	sink := NewSink(store, nil)
	ctx := context.Background()

	sink.Ingest(ctx, []catalog.ProductRecord{{
		Title:        "Bow",
		ProductURL:   "/a",
		Availability: 1,
		Images:       []string{"https://cdn.example.com/1.jpg", "https://cdn.example.com/2.jpg"},
	}}, "demo")

	products := store.Products()
	require.Len(t, products, 1)
	require.Equal(t, "/a", products[0].ProductURL)
	require.Equal(t, []string{"https://cdn.example.com/1.jpg", "https://cdn.example.com/2.jpg"}, store.Media(1))
}

func TestSinkSkipsWholeSliceWhenSourceUnknown(t *testing.T) {
	t.Parallel()

	store := memory.NewProductStore(nil)
	sink := NewSink(store, nil)

	sink.Ingest(context.Background(), []catalog.ProductRecord{
		{Title: "Bow", ProductURL: "/a"},
		{Title: "Arrow", ProductURL: "/b"},
	}, "unregistered")

	require.Empty(t, store.Products())
}

type flakyProductStore struct {
	*memory.ProductStore
	failURL string
}

func (s *flakyProductStore) InsertProduct(ctx context.Context, rec catalog.ProductRecord, sourceID int64) (int64, error) {
	if rec.ProductURL == s.failURL {
		return 0, errors.New("deadlock detected")
	}
	return s.ProductStore.InsertProduct(ctx, rec, sourceID)
}

func TestSinkContinuesPastSingleRowFailure(t *testing.T) {
	t.Parallel()

	inner := memory.NewProductStore(map[string]int64{"demo": 1})
	store := &flakyProductStore{ProductStore: inner, failURL: "/bad"}
	sink := NewSink(store, nil)

	sink.Ingest(context.Background(), []catalog.ProductRecord{
		{Title: "First", ProductURL: "/ok-1"},
		{Title: "Broken", ProductURL: "/bad"},
		{Title: "Last", ProductURL: "/ok-2"},
	}, "demo")

	products := inner.Products()
	require.Len(t, products, 2)
	require.Equal(t, "/ok-1", products[0].ProductURL)
	require.Equal(t, "/ok-2", products[1].ProductURL)
}

func TestSinkSkipsInvalidRecords(t *testing.T) {
	t.Parallel()

	store := memory.NewProductStore(map[string]int64{"demo": 1})
	sink := NewSink(store, nil)

	sink.Ingest(context.Background(), []catalog.ProductRecord{
		{Title: "", ProductURL: "/a"}, // missing title
		{Title: "Fine", ProductURL: "/b"},
	}, "demo")

	products := store.Products()
	require.Len(t, products, 1)
	require.Equal(t, "/b", products[0].ProductURL)
}
