package executor

import "time"

// FailureKind classifies a failed attempt for backoff purposes.
type FailureKind int

// Failure kinds observed between attempts.
const (
	// FailureHTTP covers bad statuses, empty bodies, and malformed
	// content types.
	FailureHTTP FailureKind = iota
	// FailureUnauthorized covers 401 responses; credentials are
	// refreshed before the next attempt.
	FailureUnauthorized
	// FailureTransport covers thrown transport errors and dead browser
	// sessions, which usually mean rate limiting or anti-automation
	// defenses upstream.
	FailureTransport
)

// Policy decides how long to wait before the next attempt.
type Policy interface {
	Backoff(attempt int, kind FailureKind) time.Duration
}

// FixedPolicy sleeps a short fixed duration between ordinary attempts and
// a much longer cooldown after transport failures.
type FixedPolicy struct {
	Retry    time.Duration
	Cooldown time.Duration
}

// NewFixedPolicy builds a policy with the crawl defaults: 10s between
// attempts, a 60s cooldown after transport failures.
func NewFixedPolicy() FixedPolicy {
	return FixedPolicy{
		Retry:    10 * time.Second,
		Cooldown: time.Minute,
	}
}

// Backoff returns the wait duration before the next attempt.
func (p FixedPolicy) Backoff(_ int, kind FailureKind) time.Duration {
	if kind == FailureTransport {
		return p.Cooldown
	}
	return p.Retry
}
