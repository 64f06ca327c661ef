// Package headless implements catalog.Fetcher with a real browser, for
// sources that render their catalog with JavaScript or fingerprint plain
// HTTP clients.
package headless

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/shelfwatch/catalog-crawler/internal/catalog"
)

// Config controls navigation behavior.
type Config struct {
	UserAgent         string
	NavigationTimeout time.Duration
	// WaitSelector is the element whose presence marks the page as
	// rendered. Defaults to body.
	WaitSelector string
	// ConsentSelector, when set, names a consent or age-gate control
	// that is clicked if present after navigation.
	ConsentSelector string
}

// Fetcher drives a managed browser session and returns the rendered DOM.
type Fetcher struct {
	cfg      Config
	sessions *Manager
	logger   *zap.Logger
}

// New builds a Fetcher on top of a session Manager.
func New(cfg Config, sessions *Manager, logger *zap.Logger) *Fetcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.NavigationTimeout <= 0 {
		cfg.NavigationTimeout = 60 * time.Second
	}
	if cfg.WaitSelector == "" {
		cfg.WaitSelector = "body"
	}
	return &Fetcher{cfg: cfg, sessions: sessions, logger: logger}
}

// Fetch navigates to the URL in a fresh tab and returns the rendered
// document. Navigation-level failures (browser died, timeout, devtools
// connection lost) come back as errors; HTTP error pages come back as a
// RawResponse carrying the document status.
func (f *Fetcher) Fetch(ctx context.Context, request catalog.FetchRequest) (catalog.RawResponse, error) {
	session, err := f.sessions.Acquire(ctx)
	if err != nil {
		return catalog.RawResponse{}, err
	}

	taskCtx, cancelTab := chromedp.NewContext(session.Context())
	defer cancelTab()
	taskCtx, cancel := context.WithTimeout(taskCtx, f.cfg.NavigationTimeout)
	defer cancel()

	// Honor caller cancellation too; the tab context descends from the
	// browser, not from ctx.
	stop := propagateCancel(ctx, cancel)
	defer stop()

	meta := newResponseMeta()
	chromedp.ListenTarget(taskCtx, meta.captureEvent)

	start := time.Now()
	var html, finalURL string
	actions := []chromedp.Action{
		f.networkSetupAction(request.Headers),
		chromedp.Navigate(request.URL),
		chromedp.WaitReady(f.cfg.WaitSelector, chromedp.ByQuery),
		f.consentAction(),
		chromedp.Sleep(500 * time.Millisecond),
		chromedp.Location(&finalURL),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	}
	if err := chromedp.Run(taskCtx, actions...); err != nil {
		return catalog.RawResponse{}, fmt.Errorf("rendering %s: %w", request.URL, err)
	}

	status, headers, responseURL := meta.snapshotWithFallbacks(request.URL, finalURL)
	return catalog.RawResponse{
		URL:         responseURL,
		StatusCode:  status,
		ContentType: headers.Get("Content-Type"),
		Headers:     headers,
		Body:        []byte(html),
		Duration:    time.Since(start),
	}, nil
}

func (f *Fetcher) networkSetupAction(headers http.Header) chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		if err := network.Enable().Do(ctx); err != nil {
			return fmt.Errorf("enable network domain: %w", err)
		}
		if f.cfg.UserAgent != "" {
			if err := emulation.SetUserAgentOverride(f.cfg.UserAgent).Do(ctx); err != nil {
				return fmt.Errorf("set user-agent: %w", err)
			}
		}
		if len(headers) > 0 {
			if err := network.SetExtraHTTPHeaders(toNetworkHeaders(headers)).Do(ctx); err != nil {
				return fmt.Errorf("set extra headers: %w", err)
			}
		}
		return nil
	})
}

// consentAction dismisses a consent or age-gate modal when one renders.
// Absence is normal: the source only serves the gate to fresh sessions.
func (f *Fetcher) consentAction() chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		if f.cfg.ConsentSelector == "" {
			return nil
		}
		var nodes []*cdp.Node
		if err := chromedp.Nodes(f.cfg.ConsentSelector, &nodes, chromedp.ByQuery, chromedp.AtLeast(0)).Do(ctx); err != nil {
			return fmt.Errorf("probing consent control: %w", err)
		}
		if len(nodes) == 0 {
			return nil
		}
		f.logger.Info("dismissing consent gate", zap.String("selector", f.cfg.ConsentSelector))
		if err := chromedp.MouseClickNode(nodes[0]).Do(ctx); err != nil {
			return fmt.Errorf("clicking consent control: %w", err)
		}
		return chromedp.Sleep(2 * time.Second).Do(ctx)
	})
}

// propagateCancel cancels the tab when the caller's context ends.
func propagateCancel(ctx context.Context, cancel context.CancelFunc) func() {
	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			cancel()
		case <-done:
		}
	}()
	return func() { close(done) }
}

type responseMeta struct {
	mu      sync.RWMutex
	status  int
	headers http.Header
	url     string
}

func newResponseMeta() *responseMeta {
	return &responseMeta{headers: http.Header{}}
}

func (m *responseMeta) captureEvent(ev any) {
	resp, ok := ev.(*network.EventResponseReceived)
	if !ok || resp.Type != network.ResourceTypeDocument || resp.Response == nil {
		return
	}
	headers := http.Header{}
	for key, value := range resp.Response.Headers {
		switch v := value.(type) {
		case string:
			headers.Add(key, v)
		case []string:
			for _, entry := range v {
				headers.Add(key, entry)
			}
		case []interface{}:
			for _, entry := range v {
				headers.Add(key, fmt.Sprint(entry))
			}
		default:
			headers.Add(key, fmt.Sprint(v))
		}
	}
	m.mu.Lock()
	m.status = int(resp.Response.Status)
	m.headers = headers
	m.url = resp.Response.URL
	m.mu.Unlock()
}

// snapshotWithFallbacks fills in what the network events did not report.
// Cached documents sometimes produce no response event; the page still
// rendered, so treat it as a 200 at the best-known URL.
func (m *responseMeta) snapshotWithFallbacks(requestURL, finalURL string) (int, http.Header, string) {
	m.mu.RLock()
	status, url := m.status, m.url
	headers := make(http.Header, len(m.headers))
	for k, values := range m.headers {
		headers[k] = append([]string(nil), values...)
	}
	m.mu.RUnlock()

	switch {
	case url != "":
	case finalURL != "":
		url = finalURL
	default:
		url = requestURL
	}
	if status == 0 {
		status = http.StatusOK
	}
	return status, headers, url
}

func toNetworkHeaders(h http.Header) network.Headers {
	headers := network.Headers{}
	for key, values := range h {
		switch len(values) {
		case 0:
		case 1:
			headers[key] = values[0]
		default:
			headers[key] = append([]string(nil), values...)
		}
	}
	return headers
}
