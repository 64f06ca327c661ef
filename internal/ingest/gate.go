// Package ingest persists canonical records and guards against
// re-ingesting items already stored.
package ingest

import (
	"context"

	"go.uber.org/zap"

	"github.com/shelfwatch/catalog-crawler/internal/catalog"
	"github.com/shelfwatch/catalog-crawler/internal/metrics"
)

// Gate answers whether an item was already ingested for a source. It is
// consulted before frontier replay and again immediately before ingest,
// the second check being a safety net against races between the frontier
// and the product store.
type Gate struct {
	store  catalog.ProductStore
	logger *zap.Logger
}

// NewGate constructs a Gate.
func NewGate(store catalog.ProductStore, logger *zap.Logger) *Gate {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Gate{store: store, logger: logger}
}

// Exists reports whether a product with (productURL, source) was already
// ingested. It fails closed: an unregistered code name or a store error
// logs a warning and reports "not found" instead of raising, which halts
// writes for that source without killing the pass.
func (g *Gate) Exists(ctx context.Context, productURL, codeName string) bool {
	sourceID, err := g.store.ResolveSource(ctx, codeName)
	if err != nil {
		g.logger.Warn("dedup check halted, source not resolvable",
			zap.String("code_name", codeName),
			zap.Error(err),
		)
		return false
	}
	exists, err := g.store.ProductExists(ctx, productURL, sourceID)
	if err != nil {
		g.logger.Warn("dedup lookup failed",
			zap.String("product_url", productURL),
			zap.Error(err),
		)
		return false
	}
	if exists {
		metrics.DuplicateSkipped(codeName)
		g.logger.Debug("product already ingested",
			zap.String("product_url", productURL),
			zap.String("code_name", codeName),
		)
	}
	return exists
}
