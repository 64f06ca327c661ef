package catalog

import (
	"context"
	"errors"
	"time"
)

// Sentinel errors shared by store implementations.
var (
	// ErrNoBatch is returned when a source has no batch yet.
	ErrNoBatch = errors.New("no batch for source")
	// ErrSourceNotFound is returned when a code name is not registered
	// in the source table.
	ErrSourceNotFound = errors.New("source code name not found")
)

// BatchStore persists crawl batches and their checkpoints.
type BatchStore interface {
	// LatestBatch returns the batch with the most recent start date for
	// the code name, or ErrNoBatch.
	LatestBatch(ctx context.Context, codeName string) (Batch, error)
	CreateBatch(ctx context.Context, b Batch) error
	SetCheckpoint(ctx context.Context, batchID, url string) error
}

// FrontierStore persists discovered URLs per batch.
type FrontierStore interface {
	// Enqueue inserts each URL that is not already present for the
	// batch. Re-enqueuing an existing (batch, url) pair is a no-op.
	Enqueue(ctx context.Context, batchID, codeName string, urls []string) error
	// ListPending returns the batch URLs in insertion order, filtered to
	// unfetched rows unless includeFetched is set.
	ListPending(ctx context.Context, batchID string, includeFetched bool) ([]string, error)
	// MarkFetched flips is_fetched for the URL. Idempotent.
	MarkFetched(ctx context.Context, batchID, url string) error
}

// ProductStore persists canonical product rows and their media.
type ProductStore interface {
	// ResolveSource maps a code name to its source id, or
	// ErrSourceNotFound.
	ResolveSource(ctx context.Context, codeName string) (int64, error)
	ProductExists(ctx context.Context, productURL string, sourceID int64) (bool, error)
	// InsertProduct inserts one row and returns the generated id.
	InsertProduct(ctx context.Context, rec ProductRecord, sourceID int64) (int64, error)
	InsertMedia(ctx context.Context, productID int64, link string) error
}

// Fetcher retrieves a single target and returns the raw payload.
// Implementations report HTTP-level failures through StatusCode and
// reserve the error return for transport or browser-session failures.
type Fetcher interface {
	Fetch(ctx context.Context, req FetchRequest) (RawResponse, error)
}

// Extractor turns raw fetched payloads into canonical records. One
// implementation per source; must not fail on missing optional fields.
type Extractor interface {
	// ExtractListing parses a discovery page into product URLs and the
	// next page to walk.
	ExtractListing(raw RawResponse) (ListingPage, error)
	// ExtractProduct parses a product page into a canonical record, or
	// ErrProductGone when the upstream reports the product missing.
	ExtractProduct(raw RawResponse) (ProductRecord, error)
}

// ErrProductGone is returned by extractors for pages the upstream serves
// as not-found; the URL is treated as done, not retried.
var ErrProductGone = errors.New("product page not found upstream")

// Notifier reports batch lifecycle events to an external channel.
// Fire-and-forget: send failures must never abort a crawl.
type Notifier interface {
	Send(ctx context.Context, msg string) error
}

// BlobStore archives raw artifacts and returns a URI.
type BlobStore interface {
	PutObject(ctx context.Context, path string, contentType string, data []byte) (string, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces batch and run tokens.
type IDGenerator interface {
	NewID() (string, error)
}
