package batch

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/shelfwatch/catalog-crawler/internal/catalog"
	"github.com/shelfwatch/catalog-crawler/internal/storage/memory"
)

type fakeIDGen struct {
	next int
}

func (g *fakeIDGen) NewID() (string, error) {
	g.next++
	return string(rune('a' + g.next - 1)), nil
}

type fixedClock struct {
	now time.Time
}

func (c *fixedClock) Now() time.Time { return c.now }

func newManager(t *testing.T) (*Manager, *memory.BatchStore, *fixedClock) {
	t.Helper()
	store := memory.NewBatchStore()
	clock := &fixedClock{now: time.Unix(1000, 0).UTC()}
	return New(store, &fakeIDGen{}, clock, nil), store, clock
}

func TestResolveOrCreateCreatesWhenAbsent(t *testing.T) {
	t.Parallel()

	mgr, _, clock := newManager(t)
	ctx := context.Background()

	b, err := mgr.ResolveOrCreate(ctx, "demo")
	require.NoError(t, err)
	require.NotEmpty(t, b.ID)
	require.Equal(t, "demo", b.CodeName)
	require.Equal(t, clock.now, b.StartedAt)
	require.Nil(t, b.Checkpoint)
}

func TestResolveOrCreateResumesExisting(t *testing.T) {
	t.Parallel()

	mgr, _, clock := newManager(t)
	ctx := context.Background()

	first, err := mgr.ResolveOrCreate(ctx, "demo")
	require.NoError(t, err)

	// Subsequent resolves return the same batch; no second row is created.
	clock.now = clock.now.Add(time.Hour)
	second, err := mgr.ResolveOrCreate(ctx, "demo")
	require.NoError(t, err)
	require.Equal(t, first.ID, second.ID)
}

func TestCheckpointVisibleOnNextResolve(t *testing.T) {
	t.Parallel()

	mgr, _, _ := newManager(t)
	ctx := context.Background()

	b, err := mgr.ResolveOrCreate(ctx, "demo")
	require.NoError(t, err)

	require.NoError(t, mgr.AdvanceCheckpoint(ctx, b.ID, "X"))

	resumed, err := mgr.ResolveOrCreate(ctx, "demo")
	require.NoError(t, err)
	require.NotNil(t, resumed.Checkpoint)
	require.Equal(t, "X", *resumed.Checkpoint)
}

type failingBatchStore struct {
	catalog.BatchStore
}

func (failingBatchStore) LatestBatch(context.Context, string) (catalog.Batch, error) {
	return catalog.Batch{}, errors.New("connection refused")
}

func TestStoreErrorPropagates(t *testing.T) {
	t.Parallel()

	mgr := New(failingBatchStore{}, &fakeIDGen{}, &fixedClock{}, nil)
	_, err := mgr.ResolveOrCreate(context.Background(), "demo")
	require.Error(t, err)
	require.NotErrorIs(t, err, catalog.ErrNoBatch)
}
