package executor

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/shelfwatch/catalog-crawler/internal/catalog"
)

type scriptedFetcher struct {
	calls     int
	successAt int // attempt number that succeeds; 0 means never
	status    int // status for failing attempts; 0 means transport error
}

func (f *scriptedFetcher) Fetch(_ context.Context, req catalog.FetchRequest) (catalog.RawResponse, error) {
	f.calls++
	if f.successAt > 0 && f.calls >= f.successAt {
		return catalog.RawResponse{
			URL:         req.URL,
			StatusCode:  http.StatusOK,
			ContentType: "text/html",
			Body:        []byte("<html>ok</html>"),
		}, nil
	}
	if f.status == 0 {
		return catalog.RawResponse{}, errors.New("connection reset by peer")
	}
	return catalog.RawResponse{URL: req.URL, StatusCode: f.status}, nil
}

func newTestExecutor(fetcher catalog.Fetcher, creds CredentialRefresher, recycler Recycler, maxAttempts int) *Executor {
	e := New(fetcher, FixedPolicy{}, creds, recycler, Config{
		Source:      "demo",
		MaxAttempts: maxAttempts,
	}, nil)
	e.sleep = func(context.Context, time.Duration) {}
	return e
}

func TestFetchExhaustsBudgetExactly(t *testing.T) {
	t.Parallel()

	fetcher := &scriptedFetcher{status: http.StatusBadGateway}
	e := newTestExecutor(fetcher, nil, nil, 4)

	_, err := e.Fetch(context.Background(), catalog.FetchRequest{URL: "/c"})
	require.ErrorIs(t, err, ErrRetriesExhausted)
	require.Equal(t, 4, fetcher.calls)
}

func TestFetchStopsAtFirstSuccess(t *testing.T) {
	t.Parallel()

	fetcher := &scriptedFetcher{successAt: 3, status: http.StatusServiceUnavailable}
	e := newTestExecutor(fetcher, nil, nil, 10)

	resp, err := e.Fetch(context.Background(), catalog.FetchRequest{URL: "/a"})
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, 3, fetcher.calls)
}

type countingRefresher struct {
	calls int
}

func (r *countingRefresher) Refresh(context.Context) error {
	r.calls++
	return nil
}

func TestUnauthorizedTriggersCredentialRefresh(t *testing.T) {
	t.Parallel()

	fetcher := &scriptedFetcher{successAt: 3, status: http.StatusUnauthorized}
	creds := &countingRefresher{}
	e := newTestExecutor(fetcher, creds, nil, 5)

	resp, err := e.Fetch(context.Background(), catalog.FetchRequest{URL: "/a"})
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, 2, creds.calls)
}

type countingRecycler struct {
	calls int
}

func (r *countingRecycler) Recycle(context.Context) error {
	r.calls++
	return nil
}

func TestTransportErrorRecyclesResource(t *testing.T) {
	t.Parallel()

	fetcher := &scriptedFetcher{successAt: 2} // transport error on attempt 1
	recycler := &countingRecycler{}
	e := newTestExecutor(fetcher, nil, recycler, 5)

	_, err := e.Fetch(context.Background(), catalog.FetchRequest{URL: "/a"})
	require.NoError(t, err)
	require.Equal(t, 1, recycler.calls)
}

func TestValidateRejectionCountsAsFailedAttempt(t *testing.T) {
	t.Parallel()

	fetcher := &scriptedFetcher{successAt: 1} // 200 every time
	e := New(fetcher, FixedPolicy{}, nil, nil, Config{
		Source:      "demo",
		MaxAttempts: 3,
		Validate: func(resp catalog.RawResponse) error {
			return fmt.Errorf("got %s, want application/json", resp.ContentType)
		},
	}, nil)
	e.sleep = func(context.Context, time.Duration) {}

	_, err := e.Fetch(context.Background(), catalog.FetchRequest{URL: "/a"})
	require.ErrorIs(t, err, ErrRetriesExhausted)
	require.Equal(t, 3, fetcher.calls)
}

func TestCanceledContextStopsRetrying(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	fetcher := &scriptedFetcher{status: http.StatusBadGateway}
	e := newTestExecutor(fetcher, nil, nil, 5)

	_, err := e.Fetch(ctx, catalog.FetchRequest{URL: "/a"})
	require.ErrorIs(t, err, context.Canceled)
	require.Zero(t, fetcher.calls)
}

func TestTransportFailureUsesCooldownBackoff(t *testing.T) {
	t.Parallel()

	policy := FixedPolicy{Retry: 10 * time.Second, Cooldown: time.Minute}
	require.Equal(t, time.Minute, policy.Backoff(1, FailureTransport))
	require.Equal(t, 10*time.Second, policy.Backoff(1, FailureHTTP))
	require.Equal(t, 10*time.Second, policy.Backoff(1, FailureUnauthorized))
}
