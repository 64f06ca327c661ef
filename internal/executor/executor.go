// Package executor wraps a fetcher in bounded retries with backoff and
// resource recycling.
package executor

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/shelfwatch/catalog-crawler/internal/catalog"
	"github.com/shelfwatch/catalog-crawler/internal/metrics"
)

// ErrRetriesExhausted is raised after the attempt budget is spent. It is
// fatal to the current batch pass and must reach the run supervisor.
var ErrRetriesExhausted = errors.New("content not found: max retries exceeded")

// CredentialRefresher renews credentials after an unauthenticated
// response. Refreshing does not consume extra attempts.
type CredentialRefresher interface {
	Refresh(ctx context.Context) error
}

// Recycler tears down and recreates a fragile fetch resource (typically a
// browser session) between attempts.
type Recycler interface {
	Recycle(ctx context.Context) error
}

// Config controls Executor behavior.
type Config struct {
	// Source labels logs and metrics.
	Source string
	// MaxAttempts is the per-target attempt budget. Site-specific;
	// observed values run 4 to 10.
	MaxAttempts int
	// Validate rejects responses that came back 2xx but are unusable
	// (wrong content type, empty body). A rejection counts as a failed
	// attempt.
	Validate func(catalog.RawResponse) error
}

// Executor performs a fetch with bounded retries. HTTP-level failures and
// invalid payloads retry after a short sleep; transport failures recycle
// the underlying resource and observe a long cooldown first.
type Executor struct {
	fetcher  catalog.Fetcher
	policy   Policy
	creds    CredentialRefresher
	recycler Recycler
	cfg      Config
	logger   *zap.Logger

	// sleep is swapped in tests.
	sleep func(ctx context.Context, d time.Duration)
}

// New constructs an Executor. creds and recycler may be nil when the
// underlying fetcher has no credentials or recyclable resources.
func New(fetcher catalog.Fetcher, policy Policy, creds CredentialRefresher, recycler Recycler, cfg Config, logger *zap.Logger) *Executor {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 5
	}
	if policy == nil {
		policy = NewFixedPolicy()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Executor{
		fetcher:  fetcher,
		policy:   policy,
		creds:    creds,
		recycler: recycler,
		cfg:      cfg,
		logger:   logger,
		sleep:    sleepCtx,
	}
}

// Fetch retrieves the target, retrying up to the configured budget. After
// the final failed attempt it returns ErrRetriesExhausted wrapping the
// last failure; that error is never swallowed here.
func (e *Executor) Fetch(ctx context.Context, req catalog.FetchRequest) (catalog.RawResponse, error) {
	var lastFailure error

	for attempt := 1; attempt <= e.cfg.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return catalog.RawResponse{}, err
		}
		metrics.FetchAttempt(e.cfg.Source)

		resp, err := e.fetcher.Fetch(ctx, req)
		kind, failure := e.classify(resp, err)
		if failure == nil {
			return resp, nil
		}
		lastFailure = failure
		metrics.FetchRetry(e.cfg.Source)
		e.logger.Warn("fetch attempt failed",
			zap.String("url", req.URL),
			zap.Int("attempt", attempt),
			zap.Error(failure),
		)

		e.recover(ctx, kind)
		if attempt < e.cfg.MaxAttempts {
			e.sleep(ctx, e.policy.Backoff(attempt, kind))
		}
	}

	metrics.FetchFailure(e.cfg.Source)
	return catalog.RawResponse{}, fmt.Errorf("%w: %s after %d attempts: %v",
		ErrRetriesExhausted, req.URL, e.cfg.MaxAttempts, lastFailure)
}

// classify buckets an attempt outcome. A nil failure means the response
// is usable.
func (e *Executor) classify(resp catalog.RawResponse, err error) (FailureKind, error) {
	switch {
	case err != nil:
		return FailureTransport, err
	case resp.StatusCode == http.StatusUnauthorized:
		return FailureUnauthorized, fmt.Errorf("unauthenticated (status %d)", resp.StatusCode)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return FailureHTTP, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	if e.cfg.Validate != nil {
		if verr := e.cfg.Validate(resp); verr != nil {
			return FailureHTTP, fmt.Errorf("invalid payload: %w", verr)
		}
	}
	return 0, nil
}

// recover performs between-attempt repair: credential refresh after a
// 401, resource recycling after a transport failure. Repair failures are
// logged and the retry proceeds regardless.
func (e *Executor) recover(ctx context.Context, kind FailureKind) {
	switch kind {
	case FailureUnauthorized:
		if e.creds == nil {
			return
		}
		if err := e.creds.Refresh(ctx); err != nil {
			e.logger.Warn("credential refresh failed", zap.Error(err))
		}
	case FailureTransport:
		if e.recycler == nil {
			return
		}
		metrics.SessionRecycle(e.cfg.Source)
		if err := e.recycler.Recycle(ctx); err != nil {
			e.logger.Warn("resource recycle failed", zap.Error(err))
		}
	}
}

func sleepCtx(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
	}
}
