package postgres

import (
	"context"
	"testing"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/require"
)

func TestEnqueueSkipsExistingURL(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewFrontierStore(mock, nil)
	require.NoError(t, err)

	// /a already present, /b inserted.
	mock.ExpectQuery("SELECT 1 FROM frontier_url").
		WithArgs("b1", "/a").
		WillReturnRows(pgxmock.NewRows([]string{"?column?"}).AddRow(1))
	mock.ExpectQuery("SELECT 1 FROM frontier_url").
		WithArgs("b1", "/b").
		WillReturnRows(pgxmock.NewRows([]string{"?column?"}))
	mock.ExpectExec("INSERT INTO frontier_url").
		WithArgs("/b", "b1", "demo").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err = store.Enqueue(context.Background(), "b1", "demo", []string{"/a", "/b"})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestListPendingFiltersFetched(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewFrontierStore(mock, nil)
	require.NoError(t, err)

	mock.ExpectQuery("SELECT url FROM frontier_url WHERE batch_id = \\$1 AND is_fetched = FALSE").
		WithArgs("b1").
		WillReturnRows(pgxmock.NewRows([]string{"url"}).AddRow("/b").AddRow("/c"))

	urls, err := store.ListPending(context.Background(), "b1", false)
	require.NoError(t, err)
	require.Equal(t, []string{"/b", "/c"}, urls)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMarkFetchedIsIdempotentUpdate(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewFrontierStore(mock, nil)
	require.NoError(t, err)

	mock.ExpectExec("UPDATE frontier_url SET is_fetched = TRUE").
		WithArgs("b1", "/a").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec("UPDATE frontier_url SET is_fetched = TRUE").
		WithArgs("b1", "/a").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	require.NoError(t, store.MarkFetched(context.Background(), "b1", "/a"))
	require.NoError(t, store.MarkFetched(context.Background(), "b1", "/a"))
	require.NoError(t, mock.ExpectationsWereMet())
}
