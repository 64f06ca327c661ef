package apifetcher

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// RefreshFunc obtains a fresh set of auth headers, typically by replaying
// a login or key exchange against the source.
type RefreshFunc func(ctx context.Context) (map[string]string, error)

// TokenSource holds the auth headers attached to API requests and
// re-derives them on demand when the source starts answering 401.
type TokenSource struct {
	mu      sync.RWMutex
	headers map[string]string
	refresh RefreshFunc
	logger  *zap.Logger
}

// NewTokenSource constructs a TokenSource seeded with static headers.
// refresh may be nil for sources whose credentials never expire.
func NewTokenSource(headers map[string]string, refresh RefreshFunc, logger *zap.Logger) *TokenSource {
	if logger == nil {
		logger = zap.NewNop()
	}
	copied := make(map[string]string, len(headers))
	for k, v := range headers {
		copied[k] = v
	}
	return &TokenSource{headers: copied, refresh: refresh, logger: logger}
}

// Headers returns the current auth headers.
func (t *TokenSource) Headers() map[string]string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make(map[string]string, len(t.headers))
	for k, v := range t.headers {
		out[k] = v
	}
	return out
}

// Refresh re-derives the auth headers. Without a refresh function it is a
// no-op, leaving the seeded headers in place.
func (t *TokenSource) Refresh(ctx context.Context) error {
	if t.refresh == nil {
		return nil
	}
	headers, err := t.refresh(ctx)
	if err != nil {
		return err
	}
	t.mu.Lock()
	t.headers = headers
	t.mu.Unlock()
	t.logger.Info("api credentials refreshed", zap.Int("headers", len(headers)))
	return nil
}
