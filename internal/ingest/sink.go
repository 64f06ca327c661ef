package ingest

import (
	"context"

	"go.uber.org/zap"

	"github.com/shelfwatch/catalog-crawler/internal/catalog"
	"github.com/shelfwatch/catalog-crawler/internal/metrics"
)

// Sink inserts canonical product rows and their media links. Ingestion is
// best-effort per record: a failure inserting record k does not roll back
// records 1..k-1, and individual insert failures are logged and
// swallowed.
type Sink struct {
	store  catalog.ProductStore
	logger *zap.Logger
}

// NewSink constructs a Sink.
func NewSink(store catalog.ProductStore, logger *zap.Logger) *Sink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Sink{store: store, logger: logger}
}

// Ingest resolves the source id and inserts each record followed by one
// media row per image. When the code name cannot be resolved the whole
// slice is skipped with a warning and no partial insert happens.
func (s *Sink) Ingest(ctx context.Context, records []catalog.ProductRecord, codeName string) {
	sourceID, err := s.store.ResolveSource(ctx, codeName)
	if err != nil {
		s.logger.Warn("ingestion halted, source not resolvable",
			zap.String("code_name", codeName),
			zap.Int("records_dropped", len(records)),
			zap.Error(err),
		)
		return
	}

	for _, rec := range records {
		if err := rec.Validate(); err != nil {
			s.logger.Warn("skipping invalid record",
				zap.String("product_url", rec.ProductURL),
				zap.Error(err),
			)
			continue
		}
		productID, err := s.store.InsertProduct(ctx, rec, sourceID)
		if err != nil {
			s.logger.Error("product insert failed",
				zap.String("product_url", rec.ProductURL),
				zap.Error(err),
			)
			continue
		}
		metrics.ProductIngested(codeName)
		s.logger.Info("product inserted",
			zap.String("title", rec.Title),
			zap.Int64("product_id", productID),
		)
		for _, link := range rec.Images {
			if err := s.store.InsertMedia(ctx, productID, link); err != nil {
				s.logger.Error("media insert failed",
					zap.Int64("product_id", productID),
					zap.String("link", link),
					zap.Error(err),
				)
			}
		}
	}
}
