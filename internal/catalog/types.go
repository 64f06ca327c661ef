// Package catalog defines core types shared across subsystems.
package catalog

import (
	"net/http"
	"time"
)

// Source identifies a catalog origin. Rows are static reference data,
// read-only to the crawler.
type Source struct {
	ID       int64  `json:"id"`
	CodeName string `json:"code_name"`
}

// Batch represents one crawl run for a source. The batch with the latest
// StartedAt for a code name is the active batch; there is no explicit
// closed state.
type Batch struct {
	ID         string    `json:"batch_id"`
	CodeName   string    `json:"code_name"`
	StartedAt  time.Time `json:"start_date"`
	Checkpoint *string   `json:"checkpoint,omitempty"`
}

// FrontierURL is a discovered URL awaiting or having completed fetch.
// Fetched transitions false to true exactly once and is never reverted.
type FrontierURL struct {
	URL      string `json:"url"`
	BatchID  string `json:"batch_id"`
	CodeName string `json:"code_name"`
	Fetched  bool   `json:"is_fetched"`
}

// URLState tracks where a frontier URL sits in its lifecycle during a
// batch pass.
type URLState string

// Per-URL lifecycle states.
const (
	URLStateDiscovered URLState = "discovered"
	URLStatePending    URLState = "pending"
	URLStateFetching   URLState = "fetching"
	URLStateIngested   URLState = "ingested"
	URLStateSkipped    URLState = "skipped-duplicate"
	URLStateFailed     URLState = "failed-permanently"
)

// FetchRequest captures everything needed to fetch one target.
type FetchRequest struct {
	URL     string
	Headers http.Header
}

// RawResponse is the payload returned by a Fetcher implementation before
// any extraction happens.
type RawResponse struct {
	URL         string
	StatusCode  int
	ContentType string
	Headers     http.Header
	Body        []byte
	Duration    time.Duration
}

// ListingPage is the result of running a listing extraction: the product
// URLs found on one discovery page plus the next page to walk, if any.
type ListingPage struct {
	Title       string
	ProductURLs []string
	NextURL     string
}
