// Package worker runs the two phases of a catalog pass: walking listing
// pages to fill the frontier, and replaying the frontier through fetch,
// extraction, and ingest.
package worker

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/shelfwatch/catalog-crawler/internal/batch"
	"github.com/shelfwatch/catalog-crawler/internal/catalog"
	"github.com/shelfwatch/catalog-crawler/internal/executor"
	"github.com/shelfwatch/catalog-crawler/internal/ingest"
)

// Config controls Worker behavior for one source.
type Config struct {
	// CodeName identifies the source in the registry and on every row
	// the pass writes.
	CodeName string
	// SeedURL is the first listing page when no checkpoint exists.
	SeedURL string
	// ArchivePrefix, when an archiver is wired, prefixes stored raw
	// payload paths.
	ArchivePrefix string
}

// Worker executes catalog passes for a single source.
type Worker struct {
	batches   *batch.Manager
	frontier  catalog.FrontierStore
	gate      *ingest.Gate
	sink      *ingest.Sink
	fetch     *executor.Executor
	extractor catalog.Extractor
	limiter   *rate.Limiter
	archive   catalog.BlobStore
	cfg       Config
	logger    *zap.Logger
}

// New constructs a Worker. limiter and archive may be nil: no limiter
// means unthrottled replay, no archive means raw payloads are dropped
// after extraction.
func New(
	batches *batch.Manager,
	frontier catalog.FrontierStore,
	gate *ingest.Gate,
	sink *ingest.Sink,
	fetch *executor.Executor,
	extractor catalog.Extractor,
	limiter *rate.Limiter,
	archive catalog.BlobStore,
	cfg Config,
	logger *zap.Logger,
) *Worker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Worker{
		batches:   batches,
		frontier:  frontier,
		gate:      gate,
		sink:      sink,
		fetch:     fetch,
		extractor: extractor,
		limiter:   limiter,
		archive:   archive,
		cfg:       cfg,
		logger:    logger.With(zap.String("code_name", cfg.CodeName)),
	}
}

// Discover walks listing pages from the batch checkpoint (or the seed)
// and enqueues every product URL found. The checkpoint advances after
// each page is fully enqueued, so a crash resumes at the page that was
// being walked, never past it.
func (w *Worker) Discover(ctx context.Context) error {
	b, err := w.batches.ResolveOrCreate(ctx, w.cfg.CodeName)
	if err != nil {
		return err
	}

	pageURL := w.cfg.SeedURL
	if b.Checkpoint != nil && *b.Checkpoint != "" {
		pageURL = *b.Checkpoint
		w.logger.Info("resuming discovery from checkpoint", zap.String("url", pageURL))
	}

	pages := 0
	for pageURL != "" {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := w.wait(ctx); err != nil {
			return err
		}

		raw, err := w.fetch.Fetch(ctx, catalog.FetchRequest{URL: pageURL})
		if err != nil {
			return fmt.Errorf("fetching listing %s: %w", pageURL, err)
		}
		w.archiveRaw(ctx, raw)

		page, err := w.extractor.ExtractListing(raw)
		if err != nil {
			return fmt.Errorf("extracting listing %s: %w", pageURL, err)
		}

		if err := w.frontier.Enqueue(ctx, b.ID, w.cfg.CodeName, page.ProductURLs); err != nil {
			return fmt.Errorf("enqueueing %d urls from %s: %w", len(page.ProductURLs), pageURL, err)
		}
		pages++
		w.logger.Info("listing page walked",
			zap.String("url", pageURL),
			zap.Int("products", len(page.ProductURLs)),
			zap.String("next", page.NextURL),
		)

		if page.NextURL == "" {
			break
		}
		if err := w.batches.AdvanceCheckpoint(ctx, b.ID, page.NextURL); err != nil {
			return fmt.Errorf("advancing checkpoint to %s: %w", page.NextURL, err)
		}
		pageURL = page.NextURL
	}

	w.logger.Info("discovery finished", zap.Int("pages", pages))
	return nil
}

// IngestPending replays unfetched frontier URLs through fetch,
// extraction, and ingest. Dedup runs before the fetch so known products
// cost nothing, and again before the write in case a parallel pass got
// there first. A fetch that exhausts its retry budget aborts the whole
// pass with the URL left unfetched; the supervisor restarts from there.
func (w *Worker) IngestPending(ctx context.Context) error {
	b, err := w.batches.ResolveOrCreate(ctx, w.cfg.CodeName)
	if err != nil {
		return err
	}

	pending, err := w.frontier.ListPending(ctx, b.ID, false)
	if err != nil {
		return fmt.Errorf("listing pending urls: %w", err)
	}
	w.logger.Info("replaying frontier", zap.Int("pending", len(pending)))

	for _, url := range pending {
		if err := ctx.Err(); err != nil {
			return err
		}

		if w.gate.Exists(ctx, url, w.cfg.CodeName) {
			if err := w.frontier.MarkFetched(ctx, b.ID, url); err != nil {
				return fmt.Errorf("marking duplicate %s: %w", url, err)
			}
			continue
		}

		if err := w.wait(ctx); err != nil {
			return err
		}

		raw, err := w.fetch.Fetch(ctx, catalog.FetchRequest{URL: url})
		if err != nil {
			return fmt.Errorf("fetching product %s: %w", url, err)
		}
		w.archiveRaw(ctx, raw)

		rec, err := w.extractor.ExtractProduct(raw)
		switch {
		case errors.Is(err, catalog.ErrProductGone):
			w.logger.Info("product gone upstream", zap.String("url", url))
			if err := w.frontier.MarkFetched(ctx, b.ID, url); err != nil {
				return fmt.Errorf("marking gone product %s: %w", url, err)
			}
			continue
		case err != nil:
			return fmt.Errorf("extracting product %s: %w", url, err)
		}

		// Frontier rows may predate the product row when two passes
		// overlap; re-check right before writing.
		if !w.gate.Exists(ctx, url, w.cfg.CodeName) {
			w.sink.Ingest(ctx, []catalog.ProductRecord{rec}, w.cfg.CodeName)
		}

		if err := w.frontier.MarkFetched(ctx, b.ID, url); err != nil {
			return fmt.Errorf("marking fetched %s: %w", url, err)
		}
	}

	w.logger.Info("frontier replay finished")
	return nil
}

// RunPass executes discovery then ingestion as one unit of supervised
// work.
func (w *Worker) RunPass(ctx context.Context) error {
	if err := w.Discover(ctx); err != nil {
		return fmt.Errorf("discovery phase: %w", err)
	}
	if err := w.IngestPending(ctx); err != nil {
		return fmt.Errorf("ingestion phase: %w", err)
	}
	return nil
}

func (w *Worker) wait(ctx context.Context) error {
	if w.limiter == nil {
		return nil
	}
	return w.limiter.Wait(ctx)
}

// archiveRaw stores the raw payload when an archiver is wired. Archive
// failures are logged and dropped: the payload is a convenience copy,
// not pipeline state.
func (w *Worker) archiveRaw(ctx context.Context, raw catalog.RawResponse) {
	if w.archive == nil {
		return
	}
	path := w.cfg.ArchivePrefix + sanitizePath(raw.URL)
	uri, err := w.archive.PutObject(ctx, path, raw.ContentType, raw.Body)
	if err != nil {
		w.logger.Warn("archiving raw payload failed", zap.String("url", raw.URL), zap.Error(err))
		return
	}
	w.logger.Debug("raw payload archived", zap.String("uri", uri))
}

// sanitizePath flattens a URL into an object path.
func sanitizePath(url string) string {
	return strings.NewReplacer("://", "/", "?", "_", "&", "_", "=", "-").Replace(url)
}
