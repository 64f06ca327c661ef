// Package apifetcher implements catalog.Fetcher over plain HTTP using the
// Colly collector. It serves sources whose catalog is reachable without a
// browser: JSON product APIs and server-rendered listing pages.
package apifetcher

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gocolly/colly/v2"

	"github.com/shelfwatch/catalog-crawler/internal/catalog"
)

// Config controls collector behavior.
type Config struct {
	UserAgent string
	Timeout   time.Duration
	// Tokens, when set, contributes auth headers to every request and is
	// refreshed by the retry layer on authorization failures.
	Tokens *TokenSource
}

// Fetcher issues single GET requests through a cloned Colly collector.
// HTTP-level failures come back as a RawResponse with the error status
// code; the error return is reserved for transport problems (DNS, TLS,
// timeouts) so callers can tell the two apart.
type Fetcher struct {
	cfg           Config
	baseCollector *colly.Collector
}

// New builds a Fetcher.
func New(cfg Config) *Fetcher {
	c := colly.NewCollector(colly.Async(false))
	c.WithTransport(newHTTPTransport())
	return &Fetcher{cfg: cfg, baseCollector: c}
}

// Fetch executes one HTTP GET.
func (f *Fetcher) Fetch(ctx context.Context, request catalog.FetchRequest) (catalog.RawResponse, error) {
	var (
		result   catalog.RawResponse
		gotBody  bool
		fetchErr error
	)
	start := time.Now()

	collector := f.baseCollector.Clone()
	collector.IgnoreRobotsTxt = true
	if f.cfg.UserAgent != "" {
		collector.UserAgent = f.cfg.UserAgent
	}
	timeout := f.cfg.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	collector.SetRequestTimeout(timeout)

	collector.OnRequest(func(r *colly.Request) {
		for key, values := range request.Headers {
			for _, v := range values {
				r.Headers.Add(key, v)
			}
		}
		if f.cfg.Tokens != nil {
			for key, v := range f.cfg.Tokens.Headers() {
				r.Headers.Set(key, v)
			}
		}
	})

	capture := func(r *colly.Response) {
		result = catalog.RawResponse{
			URL:         r.Request.URL.String(),
			StatusCode:  r.StatusCode,
			ContentType: r.Headers.Get("Content-Type"),
			Headers:     r.Headers.Clone(),
			Body:        append([]byte(nil), r.Body...),
			Duration:    time.Since(start),
		}
		gotBody = true
	}

	collector.OnResponse(capture)
	collector.OnError(func(r *colly.Response, err error) {
		// Colly routes HTTP error statuses here too. A populated status
		// code means the server answered, which is not a transport
		// failure for our purposes.
		if r != nil && r.StatusCode != 0 {
			capture(r)
			return
		}
		fetchErr = err
	})

	done := make(chan error, 1)
	go func() {
		done <- collector.Visit(request.URL)
	}()

	select {
	case <-ctx.Done():
		return catalog.RawResponse{}, fmt.Errorf("fetch canceled: %w", ctx.Err())
	case err := <-done:
		if gotBody {
			return result, nil
		}
		if fetchErr != nil {
			return catalog.RawResponse{}, fmt.Errorf("fetching %s: %w", request.URL, fetchErr)
		}
		if err != nil {
			return catalog.RawResponse{}, fmt.Errorf("visiting %s: %w", request.URL, err)
		}
		return catalog.RawResponse{}, fmt.Errorf("fetching %s: no response received", request.URL)
	}
}

func newHTTPTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
	}
}
